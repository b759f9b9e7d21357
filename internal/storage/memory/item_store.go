package memory

import (
	"context"

	"game-catalog-pipeline/internal/domain"
	"game-catalog-pipeline/internal/storage"
)

// PipelineItemStore is an in-memory implementation of
// storage.PipelineItemStore.
type PipelineItemStore struct {
	s *session
}

// Compile-time interface check.
var _ storage.PipelineItemStore = (*PipelineItemStore)(nil)

// Insert adds an item row.
func (st *PipelineItemStore) Insert(_ context.Context, it *domain.PipelineItem) error {
	if it == nil || it.RunID == "" || !it.TargetType.IsValid() {
		return storage.ErrInvalidInput
	}

	defer st.s.acquire()()
	state := st.s.state()

	state.nextItemID++
	cp := *it
	cp.ID = state.nextItemID
	cp.CreatedAt = st.s.now()
	state.items = append(state.items, &cp)
	return nil
}

// ListByRun retrieves all items of a run in insertion order.
func (st *PipelineItemStore) ListByRun(_ context.Context, runID string) ([]*domain.PipelineItem, error) {
	defer st.s.acquire()()

	var out []*domain.PipelineItem
	for _, it := range st.s.state().items {
		if it.RunID == runID {
			cp := *it
			out = append(out, &cp)
		}
	}
	return out, nil
}
