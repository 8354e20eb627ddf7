// Package pgstore holds the small pgx helpers shared by the Postgres-backed stores:
// identifier quoting, schema validation and SQLSTATE classification.
//
// The pool is always owned by the caller; nothing here closes it.
package pgstore

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// SQLSTATE codes the stores map to account error kinds.
const (
	CodeUniqueViolation       = "23505"
	CodeForeignKeyViolation   = "23503"
	CodeInsufficientPrivilege = "42501"
)

// DefaultSchema is the schema used when none is configured.
const DefaultSchema = "gymleague"

var identRe = regexp.MustCompile(`^[a-zA-Z_][a-zA-Z0-9_]*$`)

// ValidSchema trims schema and checks it is a legal PostgreSQL identifier.
func ValidSchema(schema string) (string, error) {
	schema = strings.TrimSpace(schema)
	if schema == "" {
		return "", fmt.Errorf("pgstore: empty schema")
	}
	if !identRe.MatchString(schema) {
		return "", fmt.Errorf("pgstore: invalid schema identifier")
	}
	return schema, nil
}

// Ident safely quotes a schema-qualified identifier: "schema"."name".
func Ident(schema, name string) string {
	return pgx.Identifier{schema, name}.Sanitize()
}

// Code returns the SQLSTATE of err, or "" if err is not a server error.
func Code(err error) string {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return ""
	}
	return pgErr.Code
}

// UniqueViolation reports whether err is a unique violation and, if so, the
// logical field it hit. fields maps constraint names to field names; when the
// constraint is unknown the first field whose name appears in the constraint
// name wins, else "unique".
func UniqueViolation(err error, fields map[string]string) (string, bool) {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) || pgErr.Code != CodeUniqueViolation {
		return "", false
	}

	c := strings.ToLower(strings.TrimSpace(pgErr.ConstraintName))
	if f, ok := fields[c]; ok {
		return f, true
	}
	for _, f := range fields {
		if strings.Contains(c, f) {
			return f, true
		}
	}
	return "unique", true
}

// IsForeignKeyViolation reports SQLSTATE 23503.
func IsForeignKeyViolation(err error) bool { return Code(err) == CodeForeignKeyViolation }

// IsInsufficientPrivilege reports SQLSTATE 42501, which is also what a row-level
// security WITH CHECK failure raises.
func IsInsufficientPrivilege(err error) bool { return Code(err) == CodeInsufficientPrivilege }

// Ping checks that a connection can be acquired within timeout.
func Ping(parent context.Context, pool *pgxpool.Pool, timeout time.Duration) error {
	ctx, cancel := context.WithTimeout(parent, timeout)
	defer cancel()

	conn, err := pool.Acquire(ctx)
	if err != nil {
		return err
	}
	conn.Release()
	return nil
}

// TrimPtr trims a string pointer, returning nil if the result is empty.
func TrimPtr(p *string) *string {
	if p == nil {
		return nil
	}
	s := strings.TrimSpace(*p)
	if s == "" {
		return nil
	}
	return &s
}
