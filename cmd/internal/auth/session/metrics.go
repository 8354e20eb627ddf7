package session

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics counts session activity. A nil *Metrics records nothing.
type Metrics struct {
	transitions *prometheus.CounterVec
	logins      *prometheus.CounterVec
	signups     *prometheus.CounterVec
}

// Login path labels.
const (
	pathDemo     = "demo"
	pathProvider = "provider"
)

// Signup mode labels.
const (
	modeLocal    = "local"
	modeProvider = "provider"
)

// NewMetrics creates the collectors and registers them with reg.
func NewMetrics(reg prometheus.Registerer) (*Metrics, error) {
	m := &Metrics{
		transitions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "gymleague",
			Subsystem: "session",
			Name:      "transitions_total",
			Help:      "Session state transitions by resulting status and source.",
		}, []string{"status", "source"}),
		logins: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "gymleague",
			Subsystem: "session",
			Name:      "login_total",
			Help:      "Login attempts by path and result.",
		}, []string{"path", "result"}),
		signups: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "gymleague",
			Subsystem: "session",
			Name:      "signup_total",
			Help:      "Signup attempts by mode and result.",
		}, []string{"mode", "result"}),
	}

	if reg != nil {
		for _, c := range []prometheus.Collector{m.transitions, m.logins, m.signups} {
			if err := reg.Register(c); err != nil {
				return nil, err
			}
		}
	}
	return m, nil
}

func result(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}

func (m *Metrics) transition(s State) {
	if m == nil {
		return
	}
	m.transitions.WithLabelValues(string(s.Status), string(s.Source)).Inc()
}

func (m *Metrics) login(path string, err error) {
	if m == nil {
		return
	}
	m.logins.WithLabelValues(path, result(err)).Inc()
}

func (m *Metrics) signup(mode string, err error) {
	if m == nil {
		return
	}
	m.signups.WithLabelValues(mode, result(err)).Inc()
}
