package profile

import (
	"context"
	"strings"
	"sync"

	"gymleague/cmd/account"
)

// MemoryStore is an in-process Store. Its write rule mirrors the Postgres
// policy: the actor must be present and equal the new row's id.
type MemoryStore struct {
	mu       sync.Mutex
	profiles map[string]account.Profile
	emails   map[string]string
	gyms     map[string]account.Gym
}

// NewMemoryStore constructs a MemoryStore knowing the given gyms.
func NewMemoryStore(gyms ...account.Gym) *MemoryStore {
	s := &MemoryStore{
		profiles: make(map[string]account.Profile),
		emails:   make(map[string]string),
		gyms:     make(map[string]account.Gym),
	}
	for _, g := range gyms {
		s.gyms[g.ID] = g
	}
	return s
}

// PutGym adds or replaces a gym.
func (s *MemoryStore) PutGym(g account.Gym) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.gyms[g.ID] = g
}

func (s *MemoryStore) GetProfile(ctx context.Context, id string) (account.Profile, error) {
	if err := ctx.Err(); err != nil {
		return account.Profile{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.profiles[strings.TrimSpace(id)]
	if !ok {
		return account.Profile{}, account.NotFoundError{Op: "profile.MemoryStore.GetProfile", Resource: "profile"}
	}
	return s.join(p), nil
}

func (s *MemoryStore) CreateProfile(ctx context.Context, p account.Profile) (account.Profile, error) {
	const op = "profile.MemoryStore.CreateProfile"

	if err := ctx.Err(); err != nil {
		return account.Profile{}, err
	}

	p = p.NormalizeOptional()
	p.Gym = nil
	if err := p.Validate(); err != nil {
		return account.Profile{}, err
	}

	actor, ok := ActorFrom(ctx)
	if !ok || actor != p.ID {
		return account.Profile{}, account.PermissionError{Op: op, Resource: "profiles"}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.profiles[p.ID]; ok {
		return account.Profile{}, account.ConflictError{Op: op, Field: "id"}
	}
	emailNorm := account.NormalizeEmail(p.Email)
	if _, ok := s.emails[emailNorm]; ok {
		return account.Profile{}, account.ConflictError{Op: op, Field: "email"}
	}
	if p.GymID != nil {
		if _, ok := s.gyms[*p.GymID]; !ok {
			return account.Profile{}, account.NotFoundError{Op: op, Resource: "gym"}
		}
	}

	stored := p.Clone()
	s.profiles[p.ID] = stored
	s.emails[emailNorm] = p.ID
	return s.join(stored), nil
}

// join must be called with mu held.
func (s *MemoryStore) join(p account.Profile) account.Profile {
	out := p.Clone()
	if out.GymID != nil {
		if g, ok := s.gyms[*out.GymID]; ok {
			gc := g
			if g.City != nil {
				c := *g.City
				gc.City = &c
			}
			out.Gym = &gc
		}
	}
	return out
}
