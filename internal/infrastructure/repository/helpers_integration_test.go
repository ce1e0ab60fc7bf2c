package repository_test

import (
	"context"
	"os"
	"testing"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/leadflow/lead-import/internal/infrastructure/repository"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

func openTestDB(t *testing.T) (*gorm.DB, *pgxpool.Pool) {
	t.Helper()

	dsn := os.Getenv("TEST_DATABASE_URL")
	if dsn == "" {
		t.Skip("TEST_DATABASE_URL is not set")
	}

	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatalf("failed to connect db: %v", err)
	}
	if err := repository.Migrate(context.Background(), db); err != nil {
		t.Fatalf("failed schema setup: %v", err)
	}

	pool, err := pgxpool.New(context.Background(), dsn)
	if err != nil {
		t.Fatalf("failed to create pgx pool: %v", err)
	}
	t.Cleanup(pool.Close)

	return db, pool
}

// testTeam returns a team id unique to the test so parallel runs against the
// same database do not see each other's rows.
func testTeam(t *testing.T, db *gorm.DB) string {
	t.Helper()

	teamID := "team-" + uuid.NewString()
	t.Cleanup(func() {
		db.Exec("DELETE FROM leads WHERE team_id = ?", teamID)
		db.Exec("DELETE FROM custom_field_definitions WHERE team_id = ?", teamID)
		db.Exec("DELETE FROM lead_import_tasks WHERE team_id = ?", teamID)
		db.Exec("DELETE FROM lead_import_jobs WHERE team_id = ?", teamID)
	})
	return teamID
}
