package postgres

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExclusionStore_MergeWordsORsBits(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()
	ctx := context.Background()

	st := NewExclusionStore(pool)

	words, err := st.LoadWords(ctx)
	require.NoError(t, err)
	assert.Empty(t, words)

	// IDs 1 and 64: word 0 bit 1, word 1 bit 0.
	require.NoError(t, st.MergeWords(ctx, map[int64]int64{0: 1 << 1, 1: 1}))

	words, err = st.LoadWords(ctx)
	require.NoError(t, err)
	assert.Equal(t, map[int64]int64{0: 1 << 1, 1: 1}, words)

	// Merging ORs into existing rows instead of overwriting them.
	require.NoError(t, st.MergeWords(ctx, map[int64]int64{0: 1 << 5, 2: 1 << 62}))

	words, err = st.LoadWords(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1<<1|1<<5), words[0])
	assert.Equal(t, int64(1), words[1])
	assert.Equal(t, int64(1)<<62, words[2])

	// An empty merge is a no-op.
	require.NoError(t, st.MergeWords(ctx, nil))
	again, err := st.LoadWords(ctx)
	require.NoError(t, err)
	assert.Equal(t, words, again)
}
