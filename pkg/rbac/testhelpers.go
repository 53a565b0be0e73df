package rbac

import (
	"context"
	"database/sql"
	"os"
	"testing"

	_ "github.com/lib/pq"
)

// SkipIfNoDatabase skips the test unless TEST_POSTGRES_PRIMARY is set.
// Unit tests run against in-memory SQLite; tests that need real
// Postgres semantics use this to gate themselves for CI.
func SkipIfNoDatabase(t *testing.T) string {
	t.Helper()

	dbURL := os.Getenv("TEST_POSTGRES_PRIMARY")
	if dbURL == "" {
		t.Skip("Skipping test: TEST_POSTGRES_PRIMARY environment variable not set (database not available)")
	}

	return dbURL
}

// RequireDatabase connects to the test Postgres or skips
func RequireDatabase(t *testing.T) *sql.DB {
	t.Helper()

	dbURL := SkipIfNoDatabase(t)

	db, err := sql.Open("postgres", dbURL)
	if err != nil {
		t.Skipf("Failed to connect to database: %v", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		t.Skipf("Database not reachable: %v", err)
	}

	return db
}

// mustInitialize runs migrations and seeds against the given database
func mustInitialize(t *testing.T, db *sql.DB) {
	t.Helper()
	if err := Initialize(context.Background(), db); err != nil {
		t.Fatalf("Failed to initialize schema: %v", err)
	}
}
