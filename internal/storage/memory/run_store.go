package memory

import (
	"context"
	"fmt"
	"time"

	"game-catalog-pipeline/internal/domain"
	"game-catalog-pipeline/internal/storage"
)

// PipelineRunStore is an in-memory implementation of storage.PipelineRunStore.
type PipelineRunStore struct {
	s *session
}

// Compile-time interface check.
var _ storage.PipelineRunStore = (*PipelineRunStore)(nil)

// Insert adds a new run row.
func (st *PipelineRunStore) Insert(_ context.Context, r *domain.PipelineRun) error {
	if r == nil || r.ID == "" || !r.PipelineType.IsValid() {
		return storage.ErrInvalidInput
	}

	defer st.s.acquire()()
	state := st.s.state()

	if _, exists := state.runs[r.ID]; exists {
		return fmt.Errorf("insert run: %w", storage.ErrDuplicateKey)
	}

	cp := *r
	cp.CreatedAt = st.s.now()
	state.runs[r.ID] = &cp
	return nil
}

// Finalize writes the terminal status, counters and summary message.
func (st *PipelineRunStore) Finalize(_ context.Context, runID string, status domain.RunStatus, total, completed, failed int, finishedAt time.Time, message *string) error {
	defer st.s.acquire()()

	r, ok := st.s.state().runs[runID]
	if !ok {
		return storage.ErrNotFound
	}

	r.Status = status
	r.TotalItems = total
	r.CompletedItems = completed
	r.FailedItems = failed
	r.FinishedAt = &finishedAt
	r.SummaryMessage = message
	return nil
}

// GetByID retrieves a run by its ID.
func (st *PipelineRunStore) GetByID(_ context.Context, runID string) (*domain.PipelineRun, error) {
	defer st.s.acquire()()

	r, ok := st.s.state().runs[runID]
	if !ok {
		return nil, storage.ErrNotFound
	}
	cp := *r
	return &cp, nil
}
