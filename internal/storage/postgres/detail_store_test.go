package postgres

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"game-catalog-pipeline/internal/domain"
	"game-catalog-pipeline/internal/storage"
)

func TestGameDetailStore_InsertUpdateRoundTrip(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()
	ctx := context.Background()

	g := insertTestGame(t, ctx, pool, 100, "Hollow Knight", "hollow-knight")
	st := NewGameDetailStore(pool)

	d, err := st.Insert(ctx, &domain.GameDetail{
		GameID:          g.ID,
		Screenshots:     []string{"https://cdn.example/ss1.jpg", "https://cdn.example/ss2.jpg"},
		VideoURL:        ptr("https://cdn.example/trailer.mp4"),
		Description:     ptr("A challenging action adventure."),
		Genres:          []string{"Action", "Metroidvania"},
		Tags:            []string{"Souls-like"},
		MetacriticScore: ptr(90),
	})
	require.NoError(t, err)
	assert.NotZero(t, d.ID)

	got, err := st.GetByGameID(ctx, g.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{"Action", "Metroidvania"}, got.Genres)
	require.NotNil(t, got.VideoURL)
	assert.Equal(t, "https://cdn.example/trailer.mp4", *got.VideoURL)

	got.Description = ptr("Updated copy.")
	got.Rating = ptr(4.6)
	require.NoError(t, st.Update(ctx, got))

	updated, err := st.GetByGameID(ctx, g.ID)
	require.NoError(t, err)
	require.NotNil(t, updated.Description)
	assert.Equal(t, "Updated copy.", *updated.Description)
	require.NotNil(t, updated.Rating)
	assert.InDelta(t, 4.6, *updated.Rating, 0.0001)

	// One detail row per game.
	_, err = st.Insert(ctx, &domain.GameDetail{GameID: g.ID})
	assert.ErrorIs(t, err, storage.ErrDuplicateKey)
}

func TestGameDetailStore_Repoint(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()
	ctx := context.Background()

	from := insertTestGame(t, ctx, pool, 200, "Source Row", "source-row")
	to := insertTestGame(t, ctx, pool, 201, "Target Row", "target-row")
	st := NewGameDetailStore(pool)

	_, err := st.Insert(ctx, &domain.GameDetail{GameID: from.ID, Description: ptr("moved")})
	require.NoError(t, err)

	require.NoError(t, st.Repoint(ctx, from.ID, to.ID))

	_, err = st.GetByGameID(ctx, from.ID)
	assert.ErrorIs(t, err, storage.ErrNotFound)
	moved, err := st.GetByGameID(ctx, to.ID)
	require.NoError(t, err)
	require.NotNil(t, moved.Description)
	assert.Equal(t, "moved", *moved.Description)

	// Repoint onto a game that already has a detail row is a no-op.
	other := insertTestGame(t, ctx, pool, 202, "Other Row", "other-row")
	_, err = st.Insert(ctx, &domain.GameDetail{GameID: other.ID, Description: ptr("kept")})
	require.NoError(t, err)
	require.NoError(t, st.Repoint(ctx, other.ID, to.ID))

	kept, err := st.GetByGameID(ctx, to.ID)
	require.NoError(t, err)
	assert.Equal(t, "moved", *kept.Description, "existing target detail wins")
}
