package postgres

import (
	"context"
	"fmt"

	"game-catalog-pipeline/internal/storage"
)

// ExclusionStore implements storage.ExclusionStore using PostgreSQL. The
// bitmap is stored sparsely, one 64-bit word per row.
type ExclusionStore struct {
	q DBTX
}

// NewExclusionStore creates a new ExclusionStore.
func NewExclusionStore(q DBTX) *ExclusionStore {
	return &ExclusionStore{q: q}
}

// Compile-time interface check.
var _ storage.ExclusionStore = (*ExclusionStore)(nil)

// LoadWords retrieves the whole bitmap as word index -> bits.
func (s *ExclusionStore) LoadWords(ctx context.Context) (map[int64]int64, error) {
	rows, err := s.q.Query(ctx, `SELECT word_index, bits FROM steam_exclusion_bitmap`)
	if err != nil {
		return nil, fmt.Errorf("load exclusion bitmap: %w", err)
	}
	defer rows.Close()

	words := make(map[int64]int64)
	for rows.Next() {
		var index, bits int64
		if err := rows.Scan(&index, &bits); err != nil {
			return nil, fmt.Errorf("scan exclusion word: %w", err)
		}
		words[index] = bits
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate exclusion words: %w", err)
	}
	return words, nil
}

// MergeWords ORs the given words into the persisted bitmap.
func (s *ExclusionStore) MergeWords(ctx context.Context, words map[int64]int64) error {
	query := `
		INSERT INTO steam_exclusion_bitmap (word_index, bits)
		VALUES ($1, $2)
		ON CONFLICT (word_index)
		DO UPDATE SET bits = steam_exclusion_bitmap.bits | EXCLUDED.bits
	`
	for index, bits := range words {
		if bits == 0 {
			continue
		}
		if _, err := s.q.Exec(ctx, query, index, bits); err != nil {
			return fmt.Errorf("merge exclusion word %d: %w", index, err)
		}
	}
	return nil
}
