package session

import (
	"context"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
)

func counterValue(t *testing.T, reg *prometheus.Registry, name string, labels map[string]string) float64 {
	t.Helper()

	families, err := reg.Gather()
	if err != nil {
		t.Fatalf("Gather: %v", err)
	}
	for _, mf := range families {
		if mf.GetName() != name {
			continue
		}
	metrics:
		for _, m := range mf.GetMetric() {
			for _, lp := range m.GetLabel() {
				if want, ok := labels[lp.GetName()]; ok && want != lp.GetValue() {
					continue metrics
				}
			}
			return m.GetCounter().GetValue()
		}
	}
	return 0
}

func TestMetrics(t *testing.T) {
	t.Parallel()

	reg := prometheus.NewRegistry()
	metrics, err := NewMetrics(reg)
	if err != nil {
		t.Fatalf("NewMetrics: %v", err)
	}

	h := newHarness(t, false)
	m, err := NewManager(Deps{Slot: h.slot, Demo: h.demo, Log: quietLog(), Metrics: metrics})
	if err != nil {
		t.Fatalf("NewManager: %v", err)
	}
	defer m.Close()

	ctx := context.Background()
	_ = m.Login(ctx, "coach@demo.com", demoPassword)
	_ = m.Login(ctx, "nobody@x.com", "nope")
	_ = m.SignUp(ctx, "new@x.com", "pw", "A", "B")

	if v := counterValue(t, reg, "gymleague_session_login_total", map[string]string{"path": "demo", "result": "ok"}); v != 1 {
		t.Fatalf("demo ok logins=%v", v)
	}
	if v := counterValue(t, reg, "gymleague_session_login_total", map[string]string{"path": "demo", "result": "error"}); v != 1 {
		t.Fatalf("demo failed logins=%v", v)
	}
	if v := counterValue(t, reg, "gymleague_session_signup_total", map[string]string{"mode": "local", "result": "ok"}); v != 1 {
		t.Fatalf("local signups=%v", v)
	}
	if v := counterValue(t, reg, "gymleague_session_transitions_total", map[string]string{"status": "demo_active", "source": "demo"}); v != 2 {
		t.Fatalf("demo_active transitions=%v", v)
	}

	if _, err := NewMetrics(reg); err == nil {
		t.Fatalf("expected duplicate registration error")
	}
}
