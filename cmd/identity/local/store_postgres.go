package local

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"gymleague/cmd/account"
	"gymleague/cmd/internal/pgstore"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresStore implements AccountStore over PostgreSQL.
// The pgx pool is owned by the caller; this store never closes it.
type PostgresStore struct {
	pool   *pgxpool.Pool
	schema string
}

// PostgresOption configures the store.
type PostgresOption func(*PostgresStore) error

// WithSchema sets the schema holding the provider tables (default "gymleague").
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
	st := &PostgresStore{pool: pool, schema: pgstore.DefaultSchema}
	for _, opt := range opts {
		if opt == nil {
			continue
		}
		if err := opt(st); err != nil {
			return nil, err
		}
	}
	if st.pool == nil {
		return nil, fmt.Errorf("local: nil pool")
	}
	return st, nil
}

var accountUniqueFields = map[string]string{
	"accounts_pkey":          "id",
	"uq_accounts_email_norm": "email",
}

func (s *PostgresStore) CreateAccount(ctx context.Context, in Account) (Account, error) {
	const op = "local.CreateAccount"

	if err := ctx.Err(); err != nil {
		return Account{}, err
	}
	if strings.TrimSpace(in.ID) == "" || strings.TrimSpace(in.EmailNorm) == "" || in.PasswordHash == "" {
		return Account{}, account.Invalid(op, "missing id, email or password hash")
	}
	if in.CreatedAt.IsZero() {
		in.CreatedAt = time.Now().UTC()
	}

	_, err := s.pool.Exec(ctx,
		`INSERT INTO `+pgstore.Ident(s.schema, "accounts")+` (
		     id, email, email_norm, password_hash, email_verified, first_name, last_name, created_at
		   ) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		in.ID,
		in.Email,
		in.EmailNorm,
		in.PasswordHash,
		in.EmailVerified,
		in.FirstName,
		in.LastName,
		in.CreatedAt,
	)
	if err != nil {
		if field, ok := pgstore.UniqueViolation(err, accountUniqueFields); ok {
			return Account{}, account.ConflictError{Op: op, Field: field}
		}
		return Account{}, err
	}
	return in, nil
}

func (s *PostgresStore) GetAccountByEmail(ctx context.Context, emailNorm string) (Account, error) {
	const op = "local.GetAccountByEmail"

	if err := ctx.Err(); err != nil {
		return Account{}, err
	}

	var a Account
	err := s.pool.QueryRow(ctx,
		`SELECT id, email, email_norm, password_hash, email_verified, first_name, last_name, created_at
		   FROM `+pgstore.Ident(s.schema, "accounts")+`
		  WHERE email_norm = $1`,
		emailNorm,
	).Scan(&a.ID, &a.Email, &a.EmailNorm, &a.PasswordHash, &a.EmailVerified, &a.FirstName, &a.LastName, &a.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Account{}, account.NotFoundError{Op: op, Resource: "account"}
		}
		return Account{}, err
	}
	return a, nil
}

func (s *PostgresStore) MarkEmailVerified(ctx context.Context, accountID string) error {
	const op = "local.MarkEmailVerified"

	ct, err := s.pool.Exec(ctx,
		`UPDATE `+pgstore.Ident(s.schema, "accounts")+` SET email_verified = TRUE WHERE id = $1`,
		accountID,
	)
	if err != nil {
		return err
	}
	if ct.RowsAffected() == 0 {
		return account.NotFoundError{Op: op, Resource: "account"}
	}
	return nil
}

func (s *PostgresStore) CreateSession(ctx context.Context, in SessionRecord) error {
	const op = "local.CreateSession"

	if strings.TrimSpace(in.ID) == "" || strings.TrimSpace(in.AccountID) == "" {
		return account.Invalid(op, "missing session or account id")
	}

	_, err := s.pool.Exec(ctx,
		`INSERT INTO `+pgstore.Ident(s.schema, "provider_sessions")+` (
		     id, account_id, token_hash, created_at, expires_at
		   ) VALUES ($1, $2, $3, $4, $5)`,
		in.ID, in.AccountID, in.TokenHash, in.CreatedAt, in.ExpiresAt,
	)
	if err != nil {
		if field, ok := pgstore.UniqueViolation(err, map[string]string{"provider_sessions_pkey": "id"}); ok {
			return account.ConflictError{Op: op, Field: field}
		}
		if pgstore.IsForeignKeyViolation(err) {
			return account.NotFoundError{Op: op, Resource: "account"}
		}
		return err
	}
	return nil
}

func (s *PostgresStore) GetSession(ctx context.Context, sessionID string) (SessionRecord, error) {
	const op = "local.GetSession"

	var r SessionRecord
	err := s.pool.QueryRow(ctx,
		`SELECT id, account_id, token_hash, created_at, expires_at, revoked_at
		   FROM `+pgstore.Ident(s.schema, "provider_sessions")+`
		  WHERE id = $1`,
		sessionID,
	).Scan(&r.ID, &r.AccountID, &r.TokenHash, &r.CreatedAt, &r.ExpiresAt, &r.RevokedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return SessionRecord{}, account.NotFoundError{Op: op, Resource: "session"}
		}
		return SessionRecord{}, err
	}
	return r, nil
}

// RevokeSession sets revoked_at once; revoking twice keeps the first timestamp.
func (s *PostgresStore) RevokeSession(ctx context.Context, sessionID string, now time.Time) error {
	const op = "local.RevokeSession"

	if now.IsZero() {
		now = time.Now().UTC()
	}

	ct, err := s.pool.Exec(ctx,
		`UPDATE `+pgstore.Ident(s.schema, "provider_sessions")+`
		    SET revoked_at = COALESCE(revoked_at, $1)
		  WHERE id = $2`,
		now, sessionID,
	)
	if err != nil {
		return err
	}
	if ct.RowsAffected() == 0 {
		return account.NotFoundError{Op: op, Resource: "session"}
	}
	return nil
}

// Schema returns the DDL for the provider tables in schema.
func Schema(schema string) string {
	accounts := pgstore.Ident(schema, "accounts")
	sessions := pgstore.Ident(schema, "provider_sessions")

	return fmt.Sprintf(`
CREATE TABLE IF NOT EXISTS %s (
  id TEXT PRIMARY KEY,
  email TEXT NOT NULL,
  email_norm TEXT NOT NULL,
  password_hash TEXT NOT NULL,
  email_verified BOOLEAN NOT NULL DEFAULT FALSE,
  first_name TEXT NOT NULL DEFAULT '',
  last_name TEXT NOT NULL DEFAULT '',
  created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
  CONSTRAINT uq_accounts_email_norm UNIQUE (email_norm)
);

CREATE TABLE IF NOT EXISTS %s (
  id TEXT PRIMARY KEY,
  account_id TEXT NOT NULL REFERENCES %s(id) ON DELETE CASCADE,
  token_hash TEXT NOT NULL,
  created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
  expires_at TIMESTAMPTZ NOT NULL,
  revoked_at TIMESTAMPTZ NULL,
  CONSTRAINT chk_provider_sessions_id_ulid_len CHECK (char_length(id) = 26),
  CONSTRAINT chk_provider_sessions_hash_len CHECK (char_length(token_hash) = 64)
);

CREATE INDEX IF NOT EXISTS idx_provider_sessions_account_id ON %s (account_id);
`, accounts, sessions, accounts, sessions)
}
