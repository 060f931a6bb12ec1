// Package storetest connects tests to a disposable Postgres database.
package storetest

import (
	"context"
	"fmt"
	"os"
	"testing"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"

	"bookrental/internal/store"
)

// Open returns a migrated store with empty tables. The test is skipped when
// no database is reachable.
func Open(t testing.TB) *store.Store {
	t.Helper()

	dsn := os.Getenv("TEST_DATABASE_URL")
	if dsn == "" {
		dsn = fmt.Sprintf("host=%s port=%s user=%s password=%s dbname=%s sslmode=disable",
			env("PGHOST", "localhost"), env("PGPORT", "5432"), env("PGUSER", "user"),
			env("PGPASSWORD", "password"), env("PGDATABASE", "testdb"))
	}

	db, err := sqlx.Open("postgres", dsn)
	if err != nil {
		t.Fatalf("failed to open database connection: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		t.Skipf("skipping postgres tests: could not connect to postgres: %v", err)
	}

	s := store.New(db)
	if err := s.Migrate(context.Background()); err != nil {
		t.Fatalf("failed to migrate schema: %v", err)
	}
	if _, err := db.Exec(`TRUNCATE TABLE journal_events, payments, borrowings, books, users CASCADE`); err != nil {
		t.Fatalf("failed to truncate tables: %v", err)
	}

	t.Cleanup(func() { db.Close() })
	return s
}

func env(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}
