// Package testutil holds shared test helpers: the Postgres test harness and
// httptest mocks for the identity service and the webhook sink.
package testutil

import (
	"database/sql"
	"os"
	"testing"

	_ "github.com/jackc/pgx/v5/stdlib"

	"github.com/sidekek/minecraft-discord-bridge/db"
)

// SetupTestDB opens the database named by TEST_PG_DSN and applies migrations.
// Tests that need Postgres are skipped when the variable is unset so the
// suite still passes on machines without a local database.
func SetupTestDB(t *testing.T) *sql.DB {
	t.Helper()
	dsn := os.Getenv("TEST_PG_DSN")
	if dsn == "" {
		t.Skip("TEST_PG_DSN not set; skipping database-backed test")
	}
	dbx, err := sql.Open("pgx", dsn)
	if err != nil {
		t.Fatalf("open test db: %v", err)
	}
	t.Cleanup(func() { _ = dbx.Close() })
	if err := dbx.Ping(); err != nil {
		t.Fatalf("ping test db: %v", err)
	}
	if err := db.RunMigrations(dbx); err != nil {
		t.Fatalf("migrate test db: %v", err)
	}
	return dbx
}
