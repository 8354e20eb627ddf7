package session

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"gymleague/cmd/account"
	"gymleague/cmd/identity"
	"gymleague/cmd/internal/auth/demo"
	"gymleague/cmd/internal/auth/slot"
	"gymleague/cmd/internal/profile"
)

const demoPassword = "demo123"

func quietLog() *slog.Logger { return slog.New(slog.NewTextHandler(io.Discard, nil)) }

// recorder keeps the cross-collaborator call order.
type recorder struct {
	mu    sync.Mutex
	calls []string
}

func (r *recorder) add(call string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = append(r.calls, call)
}

func (r *recorder) list() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.calls...)
}

func (r *recorder) count(call string) int {
	n := 0
	for _, c := range r.list() {
		if c == call {
			n++
		}
	}
	return n
}

type fakeAccount struct {
	id       string
	password string
	verified bool
}

// fakeProvider behaves like a provider: SignIn announces the new session on
// the event stream before returning.
type fakeProvider struct {
	rec    *recorder
	events *identity.Broadcaster

	mu         sync.Mutex
	accounts   map[string]fakeAccount
	current    *identity.Session
	currentErr error
	signInErr  error
	signOutErr error
	subErr     error
	nextID     int
	// muteSignIn drops the session-established event of SignIn.
	muteSignIn bool
}

func newFakeProvider(rec *recorder) *fakeProvider {
	return &fakeProvider{
		rec:      rec,
		events:   identity.NewBroadcaster(quietLog(), 8),
		accounts: make(map[string]fakeAccount),
	}
}

func (p *fakeProvider) addAccount(email, password string, verified bool) string {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.nextID++
	id := fmt.Sprintf("acct-%d", p.nextID)
	p.accounts[account.NormalizeEmail(email)] = fakeAccount{id: id, password: password, verified: verified}
	return id
}

func (p *fakeProvider) hasAccount(email string) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	_, ok := p.accounts[account.NormalizeEmail(email)]
	return ok
}

func (p *fakeProvider) SignIn(_ context.Context, email, password string) (identity.Session, error) {
	p.rec.add("sign_in")

	p.mu.Lock()
	if p.signInErr != nil {
		err := p.signInErr
		p.mu.Unlock()
		return identity.Session{}, err
	}
	a, ok := p.accounts[account.NormalizeEmail(email)]
	if !ok || a.password != password {
		p.mu.Unlock()
		return identity.Session{}, identity.AuthError{Op: "fake.SignIn", Reason: identity.ReasonInvalidCredentials}
	}
	if !a.verified {
		p.mu.Unlock()
		return identity.Session{}, identity.AuthError{Op: "fake.SignIn", Reason: identity.ReasonEmailNotVerified}
	}
	sess := identity.Session{ID: "sess-" + a.id, AccountID: a.id, Email: email, AccessToken: "tok", ExpiresAt: time.Now().Add(time.Hour)}
	p.current = &sess
	mute := p.muteSignIn
	p.mu.Unlock()

	if !mute {
		out := sess
		p.events.Publish(identity.Event{Kind: identity.EventSessionEstablished, Session: &out})
	}
	return sess, nil
}

func (p *fakeProvider) SignUp(_ context.Context, email, password string, _ account.ProfileSeed) (string, error) {
	p.rec.add("sign_up")

	if p.hasAccount(email) {
		return "", identity.AuthError{Op: "fake.SignUp", Reason: identity.ReasonAccountExists}
	}
	return p.addAccount(email, password, true), nil
}

func (p *fakeProvider) SignOut(context.Context) error {
	p.rec.add("sign_out")

	p.mu.Lock()
	p.current = nil
	err := p.signOutErr
	p.mu.Unlock()

	p.events.Publish(identity.Event{Kind: identity.EventSessionEnded})
	return err
}

func (p *fakeProvider) CurrentSession(context.Context) (*identity.Session, error) {
	p.rec.add("current_session")

	p.mu.Lock()
	defer p.mu.Unlock()
	if p.currentErr != nil {
		return nil, p.currentErr
	}
	if p.current == nil {
		return nil, nil
	}
	out := *p.current
	return &out, nil
}

func (p *fakeProvider) Subscribe(context.Context) (identity.Subscription, error) {
	p.rec.add("subscribe")

	p.mu.Lock()
	err := p.subErr
	p.mu.Unlock()
	if err != nil {
		return nil, err
	}
	return p.events.Subscribe(), nil
}

// recordingProfiles wraps a profile store and logs writes to rec.
type recordingProfiles struct {
	profile.Store
	rec    *recorder
	actors []string
}

func (r *recordingProfiles) CreateProfile(ctx context.Context, p account.Profile) (account.Profile, error) {
	r.rec.add("create_profile")
	actor, _ := profile.ActorFrom(ctx)
	r.actors = append(r.actors, actor)
	return r.Store.CreateProfile(ctx, p)
}

func testCatalog(t *testing.T) *demo.Resolver {
	t.Helper()

	gym := "demo-gym-id"
	at := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	mk := func(id, email string, role account.Role, gymID *string) account.Profile {
		return account.Profile{ID: id, Email: email, FirstName: "Demo", LastName: string(role), Role: role, GymID: gymID, IsActive: true, CreatedAt: at, UpdatedAt: at}
	}

	r, err := demo.NewResolver(demo.Catalog{
		Password: demoPassword,
		Accounts: map[string]account.Profile{
			"admin@demo.com":    mk("demo-admin-id", "admin@demo.com", account.RoleAdmin, nil),
			"coach@demo.com":    mk("demo-coach-id", "coach@demo.com", account.RoleCoach, &gym),
			"gymadmin@demo.com": mk("demo-gymadmin-id", "gymadmin@demo.com", account.RoleGymAdmin, &gym),
			"gymnast@demo.com":  mk("demo-gymnast-id", "gymnast@demo.com", account.RoleGymnast, &gym),
		},
	})
	if err != nil {
		t.Fatalf("NewResolver: %v", err)
	}
	return r
}

type harness struct {
	m        *Manager
	slot     *slot.Memory
	provider *fakeProvider
	profiles *recordingProfiles
	rec      *recorder
	demo     *demo.Resolver
}

// newHarness builds a Manager. withProvider=false means no provider is configured.
func newHarness(t *testing.T, withProvider bool) *harness {
	t.Helper()

	rec := &recorder{}
	h := &harness{
		slot:     slot.NewMemory(quietLog()),
		rec:      rec,
		demo:     testCatalog(t),
		profiles: &recordingProfiles{Store: profile.NewMemoryStore(account.Gym{ID: "demo-gym-id", Name: "Demo Gym"}), rec: rec},
	}

	d := Deps{Slot: h.slot, Demo: h.demo, Profiles: h.profiles, Log: quietLog()}
	if withProvider {
		h.provider = newFakeProvider(rec)
		d.Provider = h.provider
	}

	m, err := NewManager(d)
	if err != nil {
		t.Fatalf("NewManager: %v", err)
	}
	t.Cleanup(m.Close)
	h.m = m
	return h
}

// seedProfile inserts a profile row as its own actor.
func (h *harness) seedProfile(t *testing.T, id, email string) {
	t.Helper()

	p, err := account.NewSignupProfile(account.ProfileSeed{ID: id, Email: email}, time.Now().UTC())
	if err != nil {
		t.Fatalf("NewSignupProfile: %v", err)
	}
	if _, err := h.profiles.Store.CreateProfile(profile.WithActor(context.Background(), id), p); err != nil {
		t.Fatalf("seed profile: %v", err)
	}
}

func waitFor(t *testing.T, m *Manager, what string, ok func(State) bool) State {
	t.Helper()

	deadline := time.Now().Add(2 * time.Second)
	for {
		s := m.Current()
		if ok(s) {
			return s
		}
		if time.Now().After(deadline) {
			t.Fatalf("timed out waiting for %s; last state %+v", what, s)
		}
		time.Sleep(5 * time.Millisecond)
	}
}
