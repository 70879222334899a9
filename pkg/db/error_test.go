package db

import (
	"errors"
	"fmt"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/gorm"
)

func TestIsDuplicateKeyErr(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want bool
	}{
		{name: "nil", err: nil, want: false},
		{name: "gorm", err: fmt.Errorf("create user: %w", gorm.ErrDuplicatedKey), want: true},
		{name: "postgres", err: &pgconn.PgError{Code: "23505"}, want: true},
		{name: "postgres_other", err: &pgconn.PgError{Code: "23503"}, want: false},
		{name: "sqlite", err: errors.New("UNIQUE constraint failed: users.external_id"), want: true},
		{name: "mysql", err: errors.New("Error 1062 (23000): Duplicate entry"), want: true},
		{name: "other", err: errors.New("boom"), want: false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := IsDuplicateKeyErr(tc.err); got != tc.want {
				t.Fatalf("IsDuplicateKeyErr(%v) = %v, want %v", tc.err, got, tc.want)
			}
		})
	}
}

func TestDialectSelectsDriver(t *testing.T) {
	for _, tc := range []struct {
		dbType string
		want   string
	}{
		{dbType: "postgres", want: "postgres"},
		{dbType: "mysql", want: "mysql"},
		{dbType: "sqlite", want: "sqlite"},
	} {
		cfg := testConfig(tc.dbType)
		dialector, err := Dialect(cfg)
		if err != nil {
			t.Fatalf("dialect %s: %v", tc.dbType, err)
		}
		if dialector.Name() != tc.want {
			t.Fatalf("expected %s dialector, got %s", tc.want, dialector.Name())
		}
	}

	if _, err := Dialect(testConfig("oracle")); err == nil {
		t.Fatalf("expected unsupported dialect error")
	}
}
