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

func TestGameStore_InsertAndLookups(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()
	ctx := context.Background()

	st := NewGameStore(pool)
	date := time.Date(2017, 2, 24, 0, 0, 0, 0, time.UTC)
	g, err := st.Insert(ctx, &domain.Game{
		StoreID:         ptr(int64(367520)),
		MetaID:          ptr(int64(9767)),
		Name:            "Hollow Knight",
		OriginalName:    "Hollow Knight",
		Slug:            "hollow-knight",
		OriginalSlug:    "hollow-knight",
		GameType:        domain.GameTypeGame,
		ReleaseDate:     &date,
		ReleaseDateRaw:  "24 Feb, 2017",
		ReleaseStatus:   domain.ReleaseStatusReleased,
		PopularityScore: 85,
		FollowersCache:  ptr(int64(120000)),
		Platforms:       domain.PlatformSummary{PC: true},
	})
	require.NoError(t, err)
	assert.NotZero(t, g.ID)
	assert.NotZero(t, g.CreatedAt)

	byID, err := st.GetByID(ctx, g.ID)
	require.NoError(t, err)
	assert.Equal(t, "Hollow Knight", byID.Name)
	require.NotNil(t, byID.ReleaseDate)
	assert.Equal(t, date, byID.ReleaseDate.UTC())
	assert.True(t, byID.Platforms.PC)

	byStore, err := st.GetByStoreID(ctx, 367520)
	require.NoError(t, err)
	assert.Equal(t, g.ID, byStore.ID)

	byMeta, err := st.GetByMetaID(ctx, 9767)
	require.NoError(t, err)
	assert.Equal(t, g.ID, byMeta.ID)

	bySlug, err := st.GetBySlug(ctx, "HOLLOW-knight")
	require.NoError(t, err)
	assert.Equal(t, g.ID, bySlug.ID, "slug lookup is case-insensitive")

	_, err = st.GetByID(ctx, 999999)
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestGameStore_UniqueViolations(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()
	ctx := context.Background()

	st := NewGameStore(pool)
	insertTestGame(t, ctx, pool, 100, "Celeste", "celeste")

	// Same store id.
	_, err := st.Insert(ctx, &domain.Game{
		StoreID: ptr(int64(100)),
		Name:    "Other", OriginalName: "Other",
		Slug: "other", OriginalSlug: "other",
		GameType:      domain.GameTypeGame,
		ReleaseStatus: domain.ReleaseStatusReleased,
	})
	assert.ErrorIs(t, err, storage.ErrDuplicateKey)

	// Same slug, different case: the functional lower(slug) index fires.
	_, err = st.Insert(ctx, &domain.Game{
		StoreID: ptr(int64(101)),
		Name:    "Celeste Again", OriginalName: "Celeste Again",
		Slug: "CELESTE", OriginalSlug: "celeste-again",
		GameType:      domain.GameTypeGame,
		ReleaseStatus: domain.ReleaseStatusReleased,
	})
	assert.ErrorIs(t, err, storage.ErrDuplicateKey)

	taken, err := st.SlugTaken(ctx, "Celeste", 0)
	require.NoError(t, err)
	assert.True(t, taken)

	g, err := st.GetByStoreID(ctx, 100)
	require.NoError(t, err)
	taken, err = st.SlugTaken(ctx, "celeste", g.ID)
	require.NoError(t, err)
	assert.False(t, taken, "a row never collides with itself")
}

func TestGameStore_UpdatePatchesRow(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()
	ctx := context.Background()

	st := NewGameStore(pool)
	g := insertTestGame(t, ctx, pool, 200, "Hades", "hades")

	now := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	g.MetaID = ptr(int64(274))
	g.PopularityScore = 90
	g.FollowersCache = ptr(int64(50000))
	g.Platforms = domain.PlatformSummary{PC: true, Consoles: []domain.Platform{domain.PlatformNintendo}}
	g.StoreLastRefreshAt = &now
	require.NoError(t, st.Update(ctx, g))

	got, err := st.GetByID(ctx, g.ID)
	require.NoError(t, err)
	require.NotNil(t, got.MetaID)
	assert.Equal(t, int64(274), *got.MetaID)
	assert.Equal(t, 90, got.PopularityScore)
	assert.True(t, got.Platforms.PC)
	assert.Equal(t, []domain.Platform{domain.PlatformNintendo}, got.Platforms.Consoles)
	require.NotNil(t, got.StoreLastRefreshAt)
	assert.Equal(t, now, got.StoreLastRefreshAt.UTC())

	missing := *got
	missing.ID = 999999
	assert.ErrorIs(t, st.Update(ctx, &missing), storage.ErrNotFound)
}

func TestGameStore_ListMatchCandidates(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()
	ctx := context.Background()

	st := NewGameStore(pool)
	g := insertTestGame(t, ctx, pool, 300, "Stellar Blade", "stellar-blade")

	company, err := NewCompanyStore(pool).Insert(ctx, &domain.Company{Name: "Shift Up", Slug: "shift-up"})
	require.NoError(t, err)
	require.NoError(t, NewGameCompanyRoleStore(pool).Upsert(ctx, g.ID, company.ID, domain.CompanyRoleDeveloper))

	_, err = NewGameReleaseStore(pool).Insert(ctx, &domain.GameRelease{
		GameID:     g.ID,
		Platform:   domain.PlatformPC,
		Store:      domain.StorefrontSteam,
		StoreAppID: ptr("300"),
		Status:     domain.ReleaseStatusReleased,
		DataSource: domain.DataSourceStore,
	})
	require.NoError(t, err)

	cands, err := st.ListMatchCandidates(ctx, storage.CandidateQuery{
		Slugs:         []string{"stellar-blade"},
		MissingMetaID: true,
		Limit:         10,
	})
	require.NoError(t, err)
	require.Len(t, cands, 1)
	cand := cands[0]
	assert.Equal(t, g.ID, cand.GameID)
	assert.Equal(t, "Stellar Blade", cand.Name)
	assert.Equal(t, []string{"shift-up"}, cand.CompanySlugs)
	assert.True(t, cand.HasPCRelease)

	// The row has a store id, so it is no candidate for store-side records.
	cands, err = st.ListMatchCandidates(ctx, storage.CandidateQuery{
		Slugs:          []string{"stellar-blade"},
		MissingStoreID: true,
		Limit:          10,
	})
	require.NoError(t, err)
	assert.Empty(t, cands)

	// Name terms reach the same row.
	cands, err = st.ListMatchCandidates(ctx, storage.CandidateQuery{
		Names: []string{"stellar blade"},
		Limit: 10,
	})
	require.NoError(t, err)
	require.Len(t, cands, 1)
}

func TestGameStore_SelectionQueries(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()
	ctx := context.Background()

	st := NewGameStore(pool)
	now := time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)

	soon := now.AddDate(0, 0, 30)
	windowed := insertTestGame(t, ctx, pool, 1, "Windowed", "windowed")
	windowed.ReleaseDate = &soon
	require.NoError(t, st.Update(ctx, windowed))

	past := now.AddDate(-1, 0, 0)
	old := insertTestGame(t, ctx, pool, 2, "Old Release", "old-release")
	old.ReleaseDate = &past
	require.NoError(t, st.Update(ctx, old))

	announced := insertTestGame(t, ctx, pool, 3, "Announced", "announced")
	announced.ComingSoon = true
	require.NoError(t, st.Update(ctx, announced))

	window, err := st.ListRefreshWindow(ctx, now, 10)
	require.NoError(t, err)
	require.Len(t, window, 2)
	for _, g := range window {
		assert.NotEqual(t, old.ID, g.ID, "past releases stay out of the window")
	}

	ids, err := st.ListStoreIDs(ctx)
	require.NoError(t, err)
	assert.ElementsMatch(t, []int64{1, 2, 3}, ids)

	// Missing-details selection needs popularity >= 40.
	popular := insertTestGame(t, ctx, pool, 4, "Popular", "popular")
	popular.PopularityScore = 80
	require.NoError(t, st.Update(ctx, popular))

	missing, err := st.ListMissingDetails(ctx, 10)
	require.NoError(t, err)
	require.Len(t, missing, 1)
	assert.Equal(t, popular.ID, missing[0].ID)

	// Full-refresh pages need store id + detail + release.
	_, err = NewGameDetailStore(pool).Insert(ctx, &domain.GameDetail{GameID: popular.ID})
	require.NoError(t, err)
	_, err = NewGameReleaseStore(pool).Insert(ctx, &domain.GameRelease{
		GameID:     popular.ID,
		Platform:   domain.PlatformPC,
		Store:      domain.StorefrontSteam,
		StoreAppID: ptr("4"),
		Status:     domain.ReleaseStatusReleased,
		DataSource: domain.DataSourceStore,
	})
	require.NoError(t, err)

	page, err := st.ListFullRefresh(ctx, 0, 10)
	require.NoError(t, err)
	require.Len(t, page, 1)
	assert.Equal(t, popular.ID, page[0].ID)

	page, err = st.ListFullRefresh(ctx, popular.ID, 10)
	require.NoError(t, err)
	assert.Empty(t, page, "keyset pagination is strictly after the cursor")
}

func TestGameStore_ListSlugCollisionPairs(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()
	ctx := context.Background()

	st := NewGameStore(pool)
	keep := insertTestGame(t, ctx, pool, 10, "Stellar Blade", "stellar-blade")
	drop := insertTestGame(t, ctx, pool, 11, "Stellar Blade", "stellar-blade-2")
	insertTestGame(t, ctx, pool, 12, "Subnautica", "subnautica")

	pairs, err := st.ListSlugCollisionPairs(ctx, 10)
	require.NoError(t, err)
	require.Len(t, pairs, 1)
	assert.Equal(t, keep.ID, pairs[0].KeepID)
	assert.Equal(t, drop.ID, pairs[0].DropID)
	assert.Equal(t, "stellar-blade", pairs[0].BaseSlug)
}

func TestGameStore_DeleteCascades(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()
	ctx := context.Background()

	st := NewGameStore(pool)
	g := insertTestGame(t, ctx, pool, 20, "Doomed", "doomed")

	_, err := NewGameDetailStore(pool).Insert(ctx, &domain.GameDetail{GameID: g.ID})
	require.NoError(t, err)
	_, err = NewGameReleaseStore(pool).Insert(ctx, &domain.GameRelease{
		GameID:     g.ID,
		Platform:   domain.PlatformPC,
		Store:      domain.StorefrontSteam,
		StoreAppID: ptr("20"),
		Status:     domain.ReleaseStatusReleased,
		DataSource: domain.DataSourceStore,
	})
	require.NoError(t, err)

	require.NoError(t, st.Delete(ctx, g.ID))

	_, err = st.GetByID(ctx, g.ID)
	assert.ErrorIs(t, err, storage.ErrNotFound)
	_, err = NewGameDetailStore(pool).GetByGameID(ctx, g.ID)
	assert.ErrorIs(t, err, storage.ErrNotFound)
	releases, err := NewGameReleaseStore(pool).GetByGame(ctx, g.ID)
	require.NoError(t, err)
	assert.Empty(t, releases)
}

func TestDB_InTxRollsBackOnError(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()
	ctx := context.Background()

	db := NewDB(pool)
	wantErr := assert.AnError
	err := db.InTx(ctx, func(st storage.Stores) error {
		_, insertErr := st.Games.Insert(ctx, &domain.Game{
			StoreID: ptr(int64(777)),
			Name:    "Phantom", OriginalName: "Phantom",
			Slug: "phantom", OriginalSlug: "phantom",
			GameType:      domain.GameTypeGame,
			ReleaseStatus: domain.ReleaseStatusReleased,
		})
		require.NoError(t, insertErr)
		return wantErr
	})
	require.ErrorIs(t, err, wantErr)

	_, err = db.Stores().Games.GetByStoreID(ctx, 777)
	assert.ErrorIs(t, err, storage.ErrNotFound)
}
