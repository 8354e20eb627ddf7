package profile

import (
	"context"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"gymleague/cmd/account"
	"gymleague/cmd/internal/pgstore"
	"gymleague/cmd/internal/pgstore/pgtest"
)

func newIntegrationStore(t *testing.T) (*PostgresStore, *pgxpool.Pool, string) {
	t.Helper()

	pool := pgtest.OpenPool(t)
	schema := pgtest.Schema(t, pool, Schema)

	s, err := NewPostgresStore(pool, WithSchema(schema))
	if err != nil {
		t.Fatalf("NewPostgresStore: %v", err)
	}
	return s, pool, schema
}

func TestPostgresStore_CreateAndGetWithGym(t *testing.T) {
	t.Parallel()

	s, pool, schema := newIntegrationStore(t)
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Second)
	defer cancel()

	if _, err := pool.Exec(ctx, `INSERT INTO `+pgstore.Ident(schema, "gyms")+` (id, name, city) VALUES ($1, $2, $3)`,
		"g1", "North Gym", "Oslo"); err != nil {
		t.Fatalf("seed gym: %v", err)
	}

	id := account.NewID()
	p := gymnast(id, "Ana@Example.com")
	p.GymID = strPtr("g1")
	p.DateOfBirth = strPtr("2010-05-06")

	created, err := s.CreateProfile(WithActor(ctx, id), p)
	if err != nil {
		t.Fatalf("CreateProfile: %v", err)
	}
	if created.Gym == nil || created.Gym.Name != "North Gym" {
		t.Fatalf("expected joined gym: %+v", created.Gym)
	}

	got, err := s.GetProfile(ctx, id)
	if err != nil {
		t.Fatalf("GetProfile: %v", err)
	}
	if got.Role != account.RoleGymnast || got.DateOfBirth == nil || *got.DateOfBirth != "2010-05-06" {
		t.Fatalf("unexpected profile: %+v", got)
	}

	dup := gymnast(account.NewID(), "ana@example.com")
	if _, err := s.CreateProfile(WithActor(ctx, dup.ID), dup); !account.IsConflict(err) {
		t.Fatalf("duplicate email: got %v", err)
	}

	missingGym := gymnast(account.NewID(), "x@example.com")
	missingGym.GymID = strPtr("nope")
	if _, err := s.CreateProfile(WithActor(ctx, missingGym.ID), missingGym); !account.IsNotFound(err) {
		t.Fatalf("missing gym: got %v", err)
	}

	if _, err := s.GetProfile(ctx, account.NewID()); !account.IsNotFound(err) {
		t.Fatalf("missing profile: got %v", err)
	}
}

func TestPostgresStore_PolicyRejectsForeignActor(t *testing.T) {
	t.Parallel()

	s, pool, _ := newIntegrationStore(t)
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Second)
	defer cancel()

	var super bool
	if err := pool.QueryRow(ctx, `SELECT rolsuper FROM pg_roles WHERE rolname = current_user`).Scan(&super); err != nil {
		t.Fatalf("role lookup: %v", err)
	}
	if super {
		t.Skip("superusers bypass row-level security")
	}

	p := gymnast(account.NewID(), "y@example.com")
	_, err := s.CreateProfile(WithActor(ctx, account.NewID()), p)
	if !account.IsPermissionDenied(err) {
		t.Fatalf("got %v want permission denied", err)
	}
}
