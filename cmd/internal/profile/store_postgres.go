package profile

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"gymleague/cmd/account"
	"gymleague/cmd/internal/pgstore"
)

// ActorSetting is the transaction-local setting the row-level security
// policies read the acting account id from.
const ActorSetting = "app.account_id"

// PostgresStore is a Store backed by Postgres.
type PostgresStore struct {
	pool   *pgxpool.Pool
	schema string
}

// PostgresOption configures a PostgresStore.
type PostgresOption func(*PostgresStore) error

// WithSchema sets the schema holding the profiles and gyms tables.
func WithSchema(schema string) PostgresOption {
	return func(s *PostgresStore) error {
		v, err := pgstore.ValidSchema(schema)
		if err != nil {
			return err
		}
		s.schema = v
		return nil
	}
}

// NewPostgresStore constructs a PostgresStore.
func NewPostgresStore(pool *pgxpool.Pool, opts ...PostgresOption) (*PostgresStore, error) {
	if pool == nil {
		return nil, errors.New("profile: nil pool")
	}
	st := &PostgresStore{pool: pool, schema: pgstore.DefaultSchema}
	for _, opt := range opts {
		if opt == nil {
			continue
		}
		if err := opt(st); err != nil {
			return nil, err
		}
	}
	return st, nil
}

var profileUniqueFields = map[string]string{
	"profiles_pkey":          "id",
	"uq_profiles_email_norm": "email",
}

type queryRower interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

func (s *PostgresStore) selectProfileSQL() string {
	return `SELECT p.id, p.email, p.first_name, p.last_name, p.role, p.gym_id, p.phone,
	               to_char(p.date_of_birth, 'YYYY-MM-DD'), p.is_active, p.created_at, p.updated_at,
	               g.id, g.name, g.city, g.created_at
	          FROM ` + pgstore.Ident(s.schema, "profiles") + ` p
	     LEFT JOIN ` + pgstore.Ident(s.schema, "gyms") + ` g ON g.id = p.gym_id
	         WHERE p.id = $1`
}

func (s *PostgresStore) scanProfile(ctx context.Context, q queryRower, op, id string) (account.Profile, error) {
	var (
		p       account.Profile
		role    string
		gymID   *string
		gymName *string
		gymCity *string
		gymAt   *time.Time
	)
	err := q.QueryRow(ctx, s.selectProfileSQL(), id).Scan(
		&p.ID, &p.Email, &p.FirstName, &p.LastName, &role, &p.GymID, &p.Phone,
		&p.DateOfBirth, &p.IsActive, &p.CreatedAt, &p.UpdatedAt,
		&gymID, &gymName, &gymCity, &gymAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return account.Profile{}, account.NotFoundError{Op: op, Resource: "profile"}
		}
		return account.Profile{}, err
	}

	p.Role = account.Role(role)
	if gymID != nil {
		g := account.Gym{ID: *gymID, City: gymCity}
		if gymName != nil {
			g.Name = *gymName
		}
		if gymAt != nil {
			g.CreatedAt = *gymAt
		}
		p.Gym = &g
	}
	return p, nil
}

func (s *PostgresStore) GetProfile(ctx context.Context, id string) (account.Profile, error) {
	const op = "profile.GetProfile"

	id = strings.TrimSpace(id)
	if id == "" {
		return account.Profile{}, account.Invalid(op, "missing id")
	}
	return s.scanProfile(ctx, s.pool, op, id)
}

// CreateProfile inserts p inside a transaction that exposes the actor to the
// row-level security policy. The policy outcome is reported, not re-checked.
func (s *PostgresStore) CreateProfile(ctx context.Context, p account.Profile) (account.Profile, error) {
	const op = "profile.CreateProfile"

	p = p.NormalizeOptional()
	if err := p.Validate(); err != nil {
		return account.Profile{}, err
	}
	actor, _ := ActorFrom(ctx)

	now := time.Now().UTC()
	if p.CreatedAt.IsZero() {
		p.CreatedAt = now
	}
	if p.UpdatedAt.IsZero() {
		p.UpdatedAt = p.CreatedAt
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return account.Profile{}, err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if _, err := tx.Exec(ctx, `SELECT set_config($1, $2, true)`, ActorSetting, actor); err != nil {
		return account.Profile{}, err
	}

	_, err = tx.Exec(ctx,
		`INSERT INTO `+pgstore.Ident(s.schema, "profiles")+` (
		     id, email, email_norm, first_name, last_name, role, gym_id, phone,
		     date_of_birth, is_active, created_at, updated_at
		   ) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9::date, $10, $11, $12)`,
		p.ID,
		strings.TrimSpace(p.Email),
		account.NormalizeEmail(p.Email),
		p.FirstName,
		p.LastName,
		string(p.Role),
		p.GymID,
		p.Phone,
		p.DateOfBirth,
		p.IsActive,
		p.CreatedAt,
		p.UpdatedAt,
	)
	if err != nil {
		return account.Profile{}, mapWriteError(op, err)
	}

	out, err := s.scanProfile(ctx, tx, op, p.ID)
	if err != nil {
		return account.Profile{}, err
	}

	if err := tx.Commit(ctx); err != nil {
		return account.Profile{}, err
	}
	return out, nil
}

func mapWriteError(op string, err error) error {
	if field, ok := pgstore.UniqueViolation(err, profileUniqueFields); ok {
		return account.ConflictError{Op: op, Field: field}
	}
	if pgstore.IsInsufficientPrivilege(err) {
		return account.PermissionError{Op: op, Resource: "profiles"}
	}
	if pgstore.IsForeignKeyViolation(err) {
		return account.NotFoundError{Op: op, Resource: "gym"}
	}
	return err
}

// Schema returns the DDL for the gyms and profiles tables, including the
// row-level security policy that lets an account insert only its own row.
func Schema(schema string) string {
	gyms := pgstore.Ident(schema, "gyms")
	profiles := pgstore.Ident(schema, "profiles")

	return fmt.Sprintf(`
CREATE TABLE IF NOT EXISTS %[1]s (
  id TEXT PRIMARY KEY,
  name TEXT NOT NULL,
  city TEXT NULL,
  created_at TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS %[2]s (
  id TEXT PRIMARY KEY,
  email TEXT NOT NULL,
  email_norm TEXT NOT NULL,
  first_name TEXT NOT NULL DEFAULT '',
  last_name TEXT NOT NULL DEFAULT '',
  role TEXT NOT NULL,
  gym_id TEXT NULL REFERENCES %[1]s(id),
  phone TEXT NULL,
  date_of_birth DATE NULL,
  is_active BOOLEAN NOT NULL DEFAULT TRUE,
  created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
  updated_at TIMESTAMPTZ NOT NULL DEFAULT now(),
  CONSTRAINT uq_profiles_email_norm UNIQUE (email_norm),
  CONSTRAINT chk_profiles_role CHECK (role IN ('admin', 'coach', 'gym_admin', 'gymnast'))
);

ALTER TABLE %[2]s ENABLE ROW LEVEL SECURITY;
ALTER TABLE %[2]s FORCE ROW LEVEL SECURITY;

DROP POLICY IF EXISTS profiles_select_all ON %[2]s;
CREATE POLICY profiles_select_all ON %[2]s FOR SELECT USING (true);

DROP POLICY IF EXISTS profiles_insert_self ON %[2]s;
CREATE POLICY profiles_insert_self ON %[2]s FOR INSERT
  WITH CHECK (id = current_setting('%[3]s', true));
`, gyms, profiles, ActorSetting)
}
