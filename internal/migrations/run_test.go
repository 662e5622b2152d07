package migrations

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	_ "github.com/jackc/pgx/v5/stdlib"
)

func getTestDB(t *testing.T) (*sql.DB, func()) {
	ctx := context.Background()

	pgContainer, err := postgres.Run(ctx,
		"postgres:15-alpine",
		postgres.WithDatabase("testdb"),
		postgres.WithUsername("user"),
		postgres.WithPassword("password"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(60*time.Second),
		),
	)
	require.NoError(t, err)

	dsn, err := pgContainer.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)

	db, err := sql.Open("pgx", dsn)
	require.NoError(t, err)

	cleanup := func() {
		db.Close()
		if err := pgContainer.Terminate(ctx); err != nil {
			t.Logf("failed to terminate container: %s", err)
		}
	}

	return db, cleanup
}

func tableExists(t *testing.T, db *sql.DB, name string) bool {
	var exists bool
	err := db.QueryRow(`
		SELECT EXISTS (
			SELECT 1 FROM information_schema.tables
			WHERE table_schema = 'public' AND table_name = $1
		)`, name).Scan(&exists)
	require.NoError(t, err)
	return exists
}

func TestRunMigrations(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping postgres integration test in short mode")
	}
	db, cleanup := getTestDB(t)
	defer cleanup()

	require.NoError(t, Run(db))

	for _, table := range []string{
		"users", "subscription_plans", "user_subscriptions",
		"suppliers", "resources", "tasks", "notifications",
		"content_pages", "contact_queries", "shared_thoughts",
	} {
		require.Truef(t, tableExists(t, db, table), "table %s should exist", table)
	}

	version, dirty, err := Version(db)
	require.NoError(t, err)
	require.False(t, dirty)
	require.Equal(t, uint(4), version)

	require.NoError(t, Run(db), "running migrations twice should be a no-op")
}

func TestSingleActiveSubscriptionIndex(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping postgres integration test in short mode")
	}
	db, cleanup := getTestDB(t)
	defer cleanup()
	require.NoError(t, Run(db))

	var userID, planID int64
	require.NoError(t, db.QueryRow(`INSERT INTO users (email) VALUES ('a@example.com') RETURNING id`).Scan(&userID))
	require.NoError(t, db.QueryRow(`INSERT INTO subscription_plans (name, price) VALUES ('Basic', 9.99) RETURNING id`).Scan(&planID))

	_, err := db.Exec(`INSERT INTO user_subscriptions (user_id, plan_id, active) VALUES ($1, $2, true)`, userID, planID)
	require.NoError(t, err)
	_, err = db.Exec(`INSERT INTO user_subscriptions (user_id, plan_id, active) VALUES ($1, $2, true)`, userID, planID)
	require.Error(t, err, "a second active subscription must violate the partial unique index")

	_, err = db.Exec(`INSERT INTO user_subscriptions (user_id, plan_id, active) VALUES ($1, $2, false)`, userID, planID)
	require.NoError(t, err)
}

func TestDownRollsBack(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping postgres integration test in short mode")
	}
	db, cleanup := getTestDB(t)
	defer cleanup()

	require.NoError(t, Run(db))
	require.NoError(t, Down(db, 1))
	require.False(t, tableExists(t, db, "content_pages"))
	require.True(t, tableExists(t, db, "users"))
}
