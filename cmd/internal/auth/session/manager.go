package session

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"gymleague/cmd/account"
	"gymleague/cmd/identity"
	"gymleague/cmd/internal/auth/demo"
	"gymleague/cmd/internal/auth/slot"
	"gymleague/cmd/internal/profile"
)

// Deps are the Manager's collaborators. Provider nil means no identity
// provider is configured: login accepts demo credentials only and signup
// creates a local demo profile.
type Deps struct {
	Slot     slot.Slot
	Demo     *demo.Resolver
	Profiles profile.Store
	Provider identity.Provider

	Log     *slog.Logger
	Metrics *Metrics
	Clock   func() time.Time
	NewID   func() string
}

// Manager is the session state machine. Construct one per process and pass
// it to every consumer.
//
// State is guarded by a mutex but operations are not serialized: a login, the
// startup path and the provider's change notifications may interleave, and
// the last write wins.
type Manager struct {
	slot     slot.Slot
	demo     *demo.Resolver
	loader   *Loader
	profiles profile.Store
	provider identity.Provider
	log      *slog.Logger
	metrics  *Metrics
	now      func() time.Time
	newID    func() string

	// ctx bounds work done on the manager's own goroutine.
	ctx    context.Context
	cancel context.CancelFunc

	mu       sync.Mutex
	state    State
	started  bool
	closed   bool
	sub      identity.Subscription
	subDone  chan struct{}
	watchers map[*watcher]struct{}

	// pending marks the sign-in event of a provider SignUp; that SignUp sets
	// the resulting state itself.
	pending pendingSignup
}

// pendingSignup matches by account while the sign-in call is in flight and by
// session id once it has returned. It is reset by the next Login or SignUp.
type pendingSignup struct {
	accountID string
	sessionID string
	seen      bool
}

func (p pendingSignup) matches(sess identity.Session) bool {
	switch {
	case p.sessionID != "":
		return sess.ID == p.sessionID
	case p.accountID != "":
		return sess.AccountID == p.accountID
	}
	return false
}

// NewManager validates deps and returns a Manager in StatusInitializing.
func NewManager(d Deps) (*Manager, error) {
	if d.Slot == nil {
		return nil, errors.New("session: slot is required")
	}
	if d.Provider != nil && d.Profiles == nil {
		return nil, errors.New("session: a profile store is required with a provider")
	}
	if d.Log == nil {
		d.Log = slog.Default()
	}
	if d.Clock == nil {
		d.Clock = time.Now
	}
	if d.NewID == nil {
		d.NewID = account.NewID
	}

	ctx, cancel := context.WithCancel(context.Background())
	return &Manager{
		slot:     d.Slot,
		demo:     d.Demo,
		loader:   NewLoader(d.Profiles),
		profiles: d.Profiles,
		provider: d.Provider,
		log:      d.Log,
		metrics:  d.Metrics,
		now:      d.Clock,
		newID:    d.NewID,
		ctx:      ctx,
		cancel:   cancel,
		state:    initialState(),
		watchers: make(map[*watcher]struct{}),
	}, nil
}

// Current returns a snapshot of the state.
func (m *Manager) Current() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state.Clone()
}

// HasProvider reports whether an identity provider is configured.
func (m *Manager) HasProvider() bool { return m.provider != nil }

// Start resolves the initial state: a stored demo profile wins without
// contacting the provider; otherwise the provider's current session (if any)
// is loaded. Start absorbs every failure into the state. It may run once.
// StatusInitializing is not re-entered when a Login or SignUp ran first.
func (m *Manager) Start(ctx context.Context) error {
	m.mu.Lock()
	switch {
	case m.closed:
		m.mu.Unlock()
		return ErrClosed
	case m.started:
		m.mu.Unlock()
		return ErrAlreadyStarted
	}
	m.started = true
	s := m.state
	if s.Status == StatusInitializing {
		s = initialState()
	}
	s.Loading = true
	m.setLocked(s)
	m.mu.Unlock()

	if p, ok := m.slot.Read(ctx); ok {
		m.log.Info("session.start", "status", StatusDemoActive, "profile_id", p.ID)
		m.set(demoState(*p))
		return nil
	}

	if m.provider == nil {
		m.log.Info("session.start", "status", StatusUnauthenticated, "provider", false)
		m.set(signedOutState(nil))
		return nil
	}

	if err := m.ensureSubscription(); err != nil {
		m.log.Warn("session.subscribe_failed", "err", err)
	}

	sess, err := m.provider.CurrentSession(ctx)
	if err != nil {
		m.log.Warn("session.start.provider_failed", "err", err)
		m.set(signedOutState(FailureOf(err)))
		return nil
	}
	if sess == nil {
		m.log.Info("session.start", "status", StatusUnauthenticated, "provider", true)
		m.set(signedOutState(nil))
		return nil
	}

	m.establish(ctx, *sess)
	return nil
}

// Login signs in. Demo credentials are resolved first and never reach the
// provider. A provider sign-in completes asynchronously: the resulting state
// is set when the provider's session-established notification is handled.
func (m *Manager) Login(ctx context.Context, email, password string) error {
	if m.isClosed() {
		return ErrClosed
	}
	m.beginLoading()
	m.resetPending()

	if p, ok := m.demo.Resolve(email, password); ok {
		m.enterDemo(ctx, p)
		m.metrics.login(pathDemo, nil)
		m.log.Info("session.login", "path", pathDemo, "profile_id", p.ID)
		return nil
	}

	if m.provider == nil {
		err := identity.AuthError{Op: "session.Login", Reason: identity.ReasonInvalidCredentials}
		m.fail(err)
		m.metrics.login(pathDemo, err)
		return err
	}

	if err := m.ensureSubscription(); err != nil {
		m.fail(err)
		m.metrics.login(pathProvider, err)
		return err
	}

	if _, err := m.provider.SignIn(ctx, email, password); err != nil {
		m.fail(err)
		m.metrics.login(pathProvider, err)
		m.log.Info("session.login_failed", "path", pathProvider, "reason", string(identity.ReasonOf(err)))
		return err
	}

	m.metrics.login(pathProvider, nil)
	m.log.Info("session.login", "path", pathProvider)
	return nil
}

// SignUp registers a new gymnast.
//
// Without a provider the profile is synthesized locally and stored in the
// demo slot. With a provider it runs create account, sign in, create profile
// in order and stops at the first failure. Earlier steps are not undone: an
// account created before a failing step remains at the provider.
func (m *Manager) SignUp(ctx context.Context, email, password, firstName, lastName string) error {
	if m.isClosed() {
		return ErrClosed
	}
	m.beginLoading()
	m.resetPending()

	seed := account.ProfileSeed{Email: email, FirstName: firstName, LastName: lastName}

	if m.provider == nil {
		seed.ID = m.newID()
		p, err := account.NewSignupProfile(seed, m.now().UTC())
		m.metrics.signup(modeLocal, err)
		if err != nil {
			m.fail(err)
			return err
		}
		m.enterDemo(ctx, p)
		m.log.Info("session.signup", "mode", modeLocal, "profile_id", p.ID)
		return nil
	}

	err := m.signUpWithProvider(ctx, seed, password)
	m.metrics.signup(modeProvider, err)
	return err
}

func (m *Manager) signUpWithProvider(ctx context.Context, seed account.ProfileSeed, password string) error {
	if err := m.ensureSubscription(); err != nil {
		m.fail(err)
		return err
	}

	accountID, err := m.provider.SignUp(ctx, seed.Email, password, seed)
	if err != nil {
		m.log.Info("session.signup_failed", "step", "create_account", "reason", string(identity.ReasonOf(err)))
		m.fail(err)
		return err
	}

	// The profile insert is only permitted for a signed-in actor.
	m.mu.Lock()
	m.pending = pendingSignup{accountID: accountID}
	m.mu.Unlock()

	sess, err := m.provider.SignIn(ctx, seed.Email, password)
	m.mu.Lock()
	switch {
	case m.pending.accountID != accountID:
	case err != nil || m.pending.seen:
		m.pending = pendingSignup{}
	default:
		m.pending = pendingSignup{sessionID: sess.ID}
	}
	m.mu.Unlock()
	if err != nil {
		m.log.Warn("session.signup_failed", "step", "sign_in", "account_id", accountID, "account_kept", true, "err", err)
		m.fail(err)
		return err
	}
	ident := sess

	seed.ID = accountID
	p, err := account.NewSignupProfile(seed, m.now().UTC())
	if err == nil {
		p, err = m.profiles.CreateProfile(profile.WithActor(ctx, sess.AccountID), p)
	}
	if err != nil {
		// TODO: delete the provider account here once identity.Provider grows a DeleteAccount.
		m.log.Warn("session.signup_failed", "step", "create_profile", "account_id", accountID, "account_kept", true, "err", err)
		m.set(State{Status: StatusError, Source: SourceProvider, Identity: &ident, Err: FailureOf(err)})
		return err
	}

	m.set(State{Status: StatusAuthenticated, Source: SourceProvider, Profile: &p, Identity: &ident})
	m.log.Info("session.signup", "mode", modeProvider, "account_id", accountID)
	return nil
}

// Logout clears the demo slot, signs out of the provider and always ends in
// StatusUnauthenticated. A provider sign-out failure is recorded in the
// state, not returned.
func (m *Manager) Logout(ctx context.Context) error {
	if err := m.slot.Clear(ctx); err != nil {
		m.log.Warn("session.slot_clear_failed", "err", err)
	}

	var f *Failure
	if m.provider != nil {
		if err := m.provider.SignOut(ctx); err != nil {
			m.log.Warn("session.sign_out_failed", "err", err)
			f = &Failure{Kind: FailureSignOut, Message: err.Error()}
		}
	}

	m.set(signedOutState(f))
	m.log.Info("session.logout")
	return nil
}

// Subscribe returns a channel receiving the current state followed by every
// transition. A subscriber that falls behind skips to the newest state.
// The channel is closed by cancel or Close.
func (m *Manager) Subscribe(buf int) (<-chan State, func()) {
	if buf < 1 {
		buf = 1
	}
	w := &watcher{ch: make(chan State, buf)}

	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		close(w.ch)
		return w.ch, func() {}
	}
	m.watchers[w] = struct{}{}
	w.ch <- m.state.Clone()
	m.mu.Unlock()

	var once sync.Once
	return w.ch, func() {
		once.Do(func() {
			m.mu.Lock()
			defer m.mu.Unlock()
			if _, ok := m.watchers[w]; ok {
				delete(m.watchers, w)
				close(w.ch)
			}
		})
	}
}

// Close releases the provider subscription and closes subscriber channels.
// Idempotent.
func (m *Manager) Close() {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return
	}
	m.closed = true
	sub, done := m.sub, m.subDone
	m.sub = nil
	for w := range m.watchers {
		delete(m.watchers, w)
		close(w.ch)
	}
	m.mu.Unlock()

	m.cancel()
	if sub != nil {
		sub.Cancel()
		<-done
	}
}

func (m *Manager) ensureSubscription() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return ErrClosed
	}
	if m.sub != nil || m.provider == nil {
		return nil
	}

	sub, err := m.provider.Subscribe(m.ctx)
	if err != nil {
		return err
	}
	m.sub = sub
	m.subDone = make(chan struct{})
	go m.watch(sub, m.subDone)
	return nil
}

func (m *Manager) watch(sub identity.Subscription, done chan struct{}) {
	defer close(done)
	for ev := range sub.Events() {
		m.handle(ev)
	}
}

func (m *Manager) handle(ev identity.Event) {
	switch ev.Kind {
	case identity.EventSessionEstablished:
		if ev.Session == nil {
			return
		}
		m.mu.Lock()
		if m.pending.matches(*ev.Session) {
			if m.pending.sessionID != "" {
				m.pending = pendingSignup{}
			} else {
				m.pending.seen = true
			}
			m.mu.Unlock()
			m.log.Debug("session.event.absorbed", "kind", string(ev.Kind), "account_id", ev.Session.AccountID)
			return
		}
		m.mu.Unlock()
		m.establish(m.ctx, *ev.Session)

	case identity.EventSessionEnded:
		if err := m.slot.Clear(m.ctx); err != nil {
			m.log.Warn("session.slot_clear_failed", "err", err)
		}
		m.modify(func(s State) (State, bool) {
			if s.Status == StatusUnauthenticated && s.Identity == nil && s.Profile == nil {
				return s, false
			}
			return signedOutState(nil), true
		})
		m.log.Info("session.ended")
	}
}

// establish loads the profile behind sess. A load failure keeps the identity
// and moves to StatusError.
func (m *Manager) establish(ctx context.Context, sess identity.Session) {
	res := m.loader.Load(ctx, sess.AccountID)

	if !res.OK() {
		m.log.Warn("session.profile_load_failed", "account_id", sess.AccountID, "err", res.Err)
		m.set(State{Status: StatusError, Source: SourceProvider, Identity: &sess, Err: FailureOf(res.Err)})
		return
	}

	if m.Current().Source == SourceDemo {
		if err := m.slot.Clear(ctx); err != nil {
			m.log.Warn("session.slot_clear_failed", "err", err)
		}
	}
	m.set(State{Status: StatusAuthenticated, Source: SourceProvider, Profile: res.Profile, Identity: &sess})
	m.log.Info("session.authenticated", "account_id", sess.AccountID, "role", string(res.Profile.Role))
}

func (m *Manager) enterDemo(ctx context.Context, p account.Profile) {
	if err := m.slot.Write(ctx, p); err != nil {
		m.log.Warn("session.slot_write_failed", "profile_id", p.ID, "err", err)
	}
	m.set(demoState(p))
}

func (m *Manager) resetPending() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.pending = pendingSignup{}
}

func (m *Manager) beginLoading() {
	m.modify(func(s State) (State, bool) {
		s.Loading = true
		s.Err = nil
		return s, true
	})
}

func (m *Manager) fail(err error) {
	f := FailureOf(err)
	m.modify(func(s State) (State, bool) {
		s.Status = StatusError
		s.Loading = false
		s.Err = f
		return s, true
	})
}

func (m *Manager) set(s State) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.setLocked(s)
}

func (m *Manager) modify(fn func(State) (State, bool)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if s, changed := fn(m.state); changed {
		m.setLocked(s)
	}
}

func (m *Manager) setLocked(s State) {
	m.state = s.Clone()
	m.metrics.transition(s)
	m.log.Debug("session.transition", "status", string(s.Status), "source", string(s.Source), "loading", s.Loading)
	for w := range m.watchers {
		w.offer(m.state.Clone())
	}
}

func (m *Manager) isClosed() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.closed
}

type watcher struct {
	ch chan State
}

// offer never blocks. When the buffer is full the oldest state is dropped.
func (w *watcher) offer(s State) {
	select {
	case w.ch <- s:
		return
	default:
	}
	select {
	case <-w.ch:
	default:
	}
	select {
	case w.ch <- s:
	default:
	}
}
