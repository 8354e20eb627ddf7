package session

import (
	"gymleague/cmd/account"
	"gymleague/cmd/identity"
)

// Status is the state machine position.
type Status string

const (
	StatusInitializing    Status = "initializing"
	StatusDemoActive      Status = "demo_active"
	StatusAuthenticated   Status = "authenticated"
	StatusUnauthenticated Status = "unauthenticated"
	StatusError           Status = "error"
)

// Source names what drives State.Profile.
type Source string

const (
	SourceNone     Source = "none"
	SourceDemo     Source = "demo"
	SourceProvider Source = "provider"
)

// State is one observable snapshot. Identity is non-nil only for SourceProvider.
type State struct {
	Status   Status            `json:"status"`
	Source   Source            `json:"source"`
	Profile  *account.Profile  `json:"profile"`
	Identity *identity.Session `json:"identity"`
	Loading  bool              `json:"is_loading"`
	Err      *Failure          `json:"error"`
}

// Clone returns a deep copy safe to hand to another goroutine.
func (s State) Clone() State {
	out := s
	if s.Profile != nil {
		p := s.Profile.Clone()
		out.Profile = &p
	}
	if s.Identity != nil {
		id := *s.Identity
		out.Identity = &id
	}
	if s.Err != nil {
		f := *s.Err
		out.Err = &f
	}
	return out
}

func initialState() State {
	return State{Status: StatusInitializing, Source: SourceNone}
}

func demoState(p account.Profile) State {
	return State{Status: StatusDemoActive, Source: SourceDemo, Profile: &p}
}

func signedOutState(f *Failure) State {
	return State{Status: StatusUnauthenticated, Source: SourceNone, Err: f}
}
