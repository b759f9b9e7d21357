package postgres

import (
	"context"
	"database/sql"
	"testing"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	pgcontainer "github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"game-catalog-pipeline/internal/domain"
	"game-catalog-pipeline/internal/storage/migrations"
)

// setupTestDB starts a throwaway PostgreSQL container, applies the
// embedded migrations and returns a pool plus a cleanup function.
func setupTestDB(t *testing.T) (*Pool, func()) {
	t.Helper()

	ctx := context.Background()

	container, err := pgcontainer.Run(ctx, "postgres:15-alpine",
		pgcontainer.WithDatabase("testdb"),
		pgcontainer.WithUsername("test"),
		pgcontainer.WithPassword("test"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(60*time.Second),
		),
	)
	require.NoError(t, err, "failed to start postgres container")

	dsn, err := container.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err, "failed to get connection string")

	migrateDB, err := sql.Open("pgx", dsn)
	require.NoError(t, err)
	require.NoError(t, migrations.Up(migrateDB), "failed to apply migrations")
	require.NoError(t, migrateDB.Close())

	pool, err := NewPool(ctx, dsn)
	require.NoError(t, err, "failed to create pool")

	cleanup := func() {
		pool.Close()
		if err := container.Terminate(ctx); err != nil {
			t.Logf("failed to terminate container: %v", err)
		}
	}
	return pool, cleanup
}

// ptr is a helper to create pointers to values.
func ptr[T any](v T) *T {
	return &v
}

// insertTestGame inserts a minimal valid game row.
func insertTestGame(t *testing.T, ctx context.Context, pool *Pool, storeID int64, name, slug string) *domain.Game {
	t.Helper()

	g, err := NewGameStore(pool).Insert(ctx, &domain.Game{
		StoreID:       ptr(storeID),
		Name:          name,
		OriginalName:  name,
		Slug:          slug,
		OriginalSlug:  slug,
		GameType:      domain.GameTypeGame,
		ReleaseStatus: domain.ReleaseStatusReleased,
	})
	require.NoError(t, err)
	return g
}
