package postgres

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"game-catalog-pipeline/internal/domain"
	"game-catalog-pipeline/internal/storage"
)

func TestGameReleaseStore_FindByLogicalKey(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()
	ctx := context.Background()

	g := insertTestGame(t, ctx, pool, 100, "Hades", "hades")
	st := NewGameReleaseStore(pool)

	date := time.Date(2020, 9, 17, 0, 0, 0, 0, time.UTC)
	r, err := st.Insert(ctx, &domain.GameRelease{
		GameID:      g.ID,
		Platform:    domain.PlatformPC,
		Store:       domain.StorefrontSteam,
		StoreAppID:  ptr("1145360"),
		ReleaseDate: &date,
		Status:      domain.ReleaseStatusReleased,
		PriceCents:  ptr(int64(2499)),
		Followers:   ptr(int64(30000)),
		DataSource:  domain.DataSourceStore,
	})
	require.NoError(t, err)
	assert.NotZero(t, r.ID)

	found, err := st.Find(ctx, g.ID, domain.PlatformPC, domain.StorefrontSteam, ptr("1145360"))
	require.NoError(t, err)
	assert.Equal(t, r.ID, found.ID)
	require.NotNil(t, found.PriceCents)
	assert.Equal(t, int64(2499), *found.PriceCents)

	_, err = st.Find(ctx, g.ID, domain.PlatformPC, domain.StorefrontSteam, ptr("999"))
	assert.ErrorIs(t, err, storage.ErrNotFound)

	// Same key again violates the unique index.
	_, err = st.Insert(ctx, &domain.GameRelease{
		GameID:     g.ID,
		Platform:   domain.PlatformPC,
		Store:      domain.StorefrontSteam,
		StoreAppID: ptr("1145360"),
		Status:     domain.ReleaseStatusReleased,
		DataSource: domain.DataSourceStore,
	})
	assert.ErrorIs(t, err, storage.ErrDuplicateKey)

	// A nil store app id is its own key slot.
	psn, err := st.Insert(ctx, &domain.GameRelease{
		GameID:     g.ID,
		Platform:   domain.PlatformPlayStation,
		Store:      domain.StorefrontPSN,
		Status:     domain.ReleaseStatusReleased,
		DataSource: domain.DataSourceMeta,
	})
	require.NoError(t, err)

	foundPSN, err := st.Find(ctx, g.ID, domain.PlatformPlayStation, domain.StorefrontPSN, nil)
	require.NoError(t, err)
	assert.Equal(t, psn.ID, foundPSN.ID)

	all, err := st.GetByGame(ctx, g.ID)
	require.NoError(t, err)
	assert.Len(t, all, 2)
}

func TestGameReleaseStore_UpdatePatches(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()
	ctx := context.Background()

	g := insertTestGame(t, ctx, pool, 200, "Celeste", "celeste")
	st := NewGameReleaseStore(pool)

	r, err := st.Insert(ctx, &domain.GameRelease{
		GameID:     g.ID,
		Platform:   domain.PlatformPC,
		Store:      domain.StorefrontSteam,
		StoreAppID: ptr("504230"),
		Status:     domain.ReleaseStatusUpcoming,
		DataSource: domain.DataSourceStore,
	})
	require.NoError(t, err)

	date := time.Date(2018, 1, 25, 0, 0, 0, 0, time.UTC)
	r.Status = domain.ReleaseStatusReleased
	r.ReleaseDate = &date
	r.PriceCents = ptr(int64(1999))
	require.NoError(t, st.Update(ctx, r))

	got, err := st.Find(ctx, g.ID, domain.PlatformPC, domain.StorefrontSteam, ptr("504230"))
	require.NoError(t, err)
	assert.Equal(t, domain.ReleaseStatusReleased, got.Status)
	require.NotNil(t, got.ReleaseDate)
	assert.Equal(t, date, got.ReleaseDate.UTC())
}

func TestGameReleaseStore_RepointSkipsClashes(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()
	ctx := context.Background()

	from := insertTestGame(t, ctx, pool, 300, "Dup A", "dup-a")
	to := insertTestGame(t, ctx, pool, 301, "Dup B", "dup-b")
	st := NewGameReleaseStore(pool)

	// Clashing key exists on both games; a second PSN row only on from.
	for _, gameID := range []int64{from.ID, to.ID} {
		_, err := st.Insert(ctx, &domain.GameRelease{
			GameID:     gameID,
			Platform:   domain.PlatformPC,
			Store:      domain.StorefrontSteam,
			StoreAppID: ptr("300"),
			Status:     domain.ReleaseStatusReleased,
			DataSource: domain.DataSourceStore,
		})
		require.NoError(t, err)
	}
	_, err := st.Insert(ctx, &domain.GameRelease{
		GameID:     from.ID,
		Platform:   domain.PlatformPlayStation,
		Store:      domain.StorefrontPSN,
		Status:     domain.ReleaseStatusReleased,
		DataSource: domain.DataSourceMeta,
	})
	require.NoError(t, err)

	require.NoError(t, st.Repoint(ctx, from.ID, to.ID))

	moved, err := st.GetByGame(ctx, to.ID)
	require.NoError(t, err)
	assert.Len(t, moved, 2, "PSN row moved, clashing PC row skipped")
}
