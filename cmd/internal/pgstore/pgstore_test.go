package pgstore

import (
	"errors"
	"fmt"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"
)

func TestValidSchema(t *testing.T) {
	t.Parallel()

	cases := []struct {
		in string
		ok bool
	}{
		{in: "gymleague", ok: true},
		{in: "  league_it_01 ", ok: true},
		{in: "", ok: false},
		{in: "bad-name", ok: false},
		{in: `x"; DROP TABLE y; --`, ok: false},
	}
	for _, tc := range cases {
		_, err := ValidSchema(tc.in)
		if (err == nil) != tc.ok {
			t.Fatalf("ValidSchema(%q) err=%v want ok=%v", tc.in, err, tc.ok)
		}
	}
}

func TestIdent(t *testing.T) {
	t.Parallel()

	if got := Ident("gymleague", "profiles"); got != `"gymleague"."profiles"` {
		t.Fatalf("Ident=%s", got)
	}
}

func TestUniqueViolation(t *testing.T) {
	t.Parallel()

	fields := map[string]string{"uq_profiles_email": "email", "profiles_pkey": "id"}

	err := fmt.Errorf("insert: %w", &pgconn.PgError{Code: CodeUniqueViolation, ConstraintName: "profiles_pkey"})
	if f, ok := UniqueViolation(err, fields); !ok || f != "id" {
		t.Fatalf("UniqueViolation=%q,%v want id", f, ok)
	}

	err = &pgconn.PgError{Code: CodeUniqueViolation, ConstraintName: "other_unique"}
	if f, ok := UniqueViolation(err, fields); !ok || f != "unique" {
		t.Fatalf("UniqueViolation=%q,%v want unique", f, ok)
	}

	if _, ok := UniqueViolation(errors.New("boom"), fields); ok {
		t.Fatalf("plain error is not a unique violation")
	}
}

func TestCodeClassifiers(t *testing.T) {
	t.Parallel()

	if !IsInsufficientPrivilege(&pgconn.PgError{Code: CodeInsufficientPrivilege}) {
		t.Fatalf("expected insufficient privilege")
	}
	if !IsForeignKeyViolation(fmt.Errorf("wrap: %w", &pgconn.PgError{Code: CodeForeignKeyViolation})) {
		t.Fatalf("expected fk violation")
	}
	if Code(errors.New("x")) != "" {
		t.Fatalf("non-pg errors have no code")
	}
}
