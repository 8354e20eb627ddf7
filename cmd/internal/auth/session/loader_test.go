package session

import (
	"context"
	"errors"
	"testing"

	"gymleague/cmd/account"
	"gymleague/cmd/internal/profile"
)

type panickingStore struct{ profile.Store }

func (panickingStore) GetProfile(context.Context, string) (account.Profile, error) {
	panic("driver exploded")
}

type wrongRowStore struct{ profile.Store }

func (wrongRowStore) GetProfile(context.Context, string) (account.Profile, error) {
	return account.Profile{ID: "other", Email: "o@x.com", Role: account.RoleGymnast}, nil
}

func TestLoader_Load(t *testing.T) {
	t.Parallel()

	store := profile.NewMemoryStore(account.Gym{ID: "g1", Name: "North"})
	gym := "g1"
	p := account.Profile{ID: "u1", Email: "u1@x.com", Role: account.RoleCoach, GymID: &gym, IsActive: true}
	if _, err := store.CreateProfile(profile.WithActor(context.Background(), "u1"), p); err != nil {
		t.Fatalf("seed: %v", err)
	}

	res := NewLoader(store).Load(context.Background(), "u1")
	if !res.OK() || res.Profile.Gym == nil || res.Profile.Gym.Name != "North" {
		t.Fatalf("unexpected result %+v", res)
	}
}

func TestLoader_Failures(t *testing.T) {
	t.Parallel()

	cases := map[string]*Loader{
		"missing row": NewLoader(profile.NewMemoryStore()),
		"panic":       NewLoader(panickingStore{}),
		"wrong row":   NewLoader(wrongRowStore{}),
		"no store":    NewLoader(nil),
	}
	for name, l := range cases {
		res := l.Load(context.Background(), "u1")
		if res.OK() || res.Profile != nil {
			t.Fatalf("%s: expected failure, got %+v", name, res)
		}
		var ple *ProfileLoadError
		if !errors.As(res.Err, &ple) || ple.AccountID != "u1" {
			t.Fatalf("%s: err=%v want *ProfileLoadError", name, res.Err)
		}
		if !errors.Is(res.Err, ErrProfileLoad) {
			t.Fatalf("%s: expected ErrProfileLoad kind", name)
		}
		if f := FailureOf(res.Err); f.Kind != FailureProfileLoad {
			t.Fatalf("%s: failure kind=%s", name, f.Kind)
		}
	}

	if res := NewLoader(profile.NewMemoryStore()).Load(context.Background(), "u1"); !account.IsNotFound(res.Err) {
		t.Fatalf("missing row must keep the not-found cause: %v", res.Err)
	}
}
