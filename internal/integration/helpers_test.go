package integration

import (
	"context"
	"os"
	"testing"

	"taskmanager/internal/db"
	"taskmanager/internal/migrations"

	"github.com/jackc/pgx/v5/pgxpool"
)

// connect returns a migrated pool or skips when DATABASE_URL is not set.
func connect(t *testing.T) *pgxpool.Pool {
	t.Helper()
	dsn := os.Getenv("DATABASE_URL")
	if dsn == "" {
		t.Skip("DATABASE_URL not set")
	}

	pool, err := db.Connect(context.Background(), dsn)
	if err != nil {
		t.Fatalf("connect db: %v", err)
	}
	t.Cleanup(pool.Close)

	if _, err := migrations.Apply(context.Background(), pool, migrations.Embedded()); err != nil {
		t.Fatalf("apply migrations: %v", err)
	}
	return pool
}
