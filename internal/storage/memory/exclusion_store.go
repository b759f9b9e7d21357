package memory

import (
	"context"

	"game-catalog-pipeline/internal/storage"
)

// ExclusionStore is an in-memory implementation of storage.ExclusionStore.
type ExclusionStore struct {
	s *session
}

// Compile-time interface check.
var _ storage.ExclusionStore = (*ExclusionStore)(nil)

// LoadWords retrieves the whole bitmap as word index -> bits.
func (st *ExclusionStore) LoadWords(_ context.Context) (map[int64]int64, error) {
	defer st.s.acquire()()

	words := make(map[int64]int64, len(st.s.state().exclusions))
	for w, bits := range st.s.state().exclusions {
		words[w] = bits
	}
	return words, nil
}

// MergeWords ORs the given words into the persisted bitmap.
func (st *ExclusionStore) MergeWords(_ context.Context, words map[int64]int64) error {
	defer st.s.acquire()()
	state := st.s.state()

	for w, bits := range words {
		if bits == 0 {
			continue
		}
		state.exclusions[w] |= bits
	}
	return nil
}
