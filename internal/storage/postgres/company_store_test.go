package postgres

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"game-catalog-pipeline/internal/domain"
	"game-catalog-pipeline/internal/storage"
)

func TestCompanyStore_InsertAndLookups(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()
	ctx := context.Background()

	st := NewCompanyStore(pool)
	c, err := st.Insert(ctx, &domain.Company{Name: "Team Cherry", Slug: "team-cherry"})
	require.NoError(t, err)
	assert.NotZero(t, c.ID)

	bySlug, err := st.GetBySlug(ctx, "TEAM-CHERRY")
	require.NoError(t, err)
	assert.Equal(t, c.ID, bySlug.ID, "slug lookup is case-insensitive")

	byName, err := st.GetByName(ctx, "team cherry")
	require.NoError(t, err)
	assert.Equal(t, c.ID, byName.ID, "name lookup is case-insensitive")

	_, err = st.GetBySlug(ctx, "nobody")
	assert.ErrorIs(t, err, storage.ErrNotFound)

	_, err = st.Insert(ctx, &domain.Company{Name: "TEAM CHERRY", Slug: "team-cherry-au"})
	assert.ErrorIs(t, err, storage.ErrDuplicateKey, "names are unique case-insensitively")

	taken, err := st.SlugTaken(ctx, "team-cherry")
	require.NoError(t, err)
	assert.True(t, taken)
	taken, err = st.SlugTaken(ctx, "team-cherry-au")
	require.NoError(t, err)
	assert.False(t, taken)
}

func TestGameCompanyRoleStore_UpsertAndRepoint(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()
	ctx := context.Background()

	companies := NewCompanyStore(pool)
	roles := NewGameCompanyRoleStore(pool)

	gameA := insertTestGame(t, ctx, pool, 100, "Hollow Knight", "hollow-knight")
	gameB := insertTestGame(t, ctx, pool, 101, "Hollow Knight Silksong", "hollow-knight-silksong")
	cherry, err := companies.Insert(ctx, &domain.Company{Name: "Team Cherry", Slug: "team-cherry"})
	require.NoError(t, err)

	require.NoError(t, roles.Upsert(ctx, gameA.ID, cherry.ID, domain.CompanyRoleDeveloper))
	require.NoError(t, roles.Upsert(ctx, gameA.ID, cherry.ID, domain.CompanyRoleDeveloper), "duplicate link is a no-op")
	require.NoError(t, roles.Upsert(ctx, gameA.ID, cherry.ID, domain.CompanyRolePublisher))

	links, err := roles.ListByGame(ctx, gameA.ID)
	require.NoError(t, err)
	assert.Len(t, links, 2, "one link per role")

	// Target already has the developer link; repoint drops that one.
	require.NoError(t, roles.Upsert(ctx, gameB.ID, cherry.ID, domain.CompanyRoleDeveloper))
	require.NoError(t, roles.Repoint(ctx, gameA.ID, gameB.ID))

	moved, err := roles.ListByGame(ctx, gameB.ID)
	require.NoError(t, err)
	assert.Len(t, moved, 2)
	remaining, err := roles.ListByGame(ctx, gameA.ID)
	require.NoError(t, err)
	assert.Empty(t, remaining, "clashing links are deleted, not duplicated")
}
