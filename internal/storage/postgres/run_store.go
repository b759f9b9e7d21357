package postgres

import (
	"context"
	"fmt"
	"time"

	"game-catalog-pipeline/internal/domain"
	"game-catalog-pipeline/internal/storage"
)

// PipelineRunStore implements storage.PipelineRunStore using PostgreSQL.
type PipelineRunStore struct {
	q DBTX
}

// NewPipelineRunStore creates a new PipelineRunStore.
func NewPipelineRunStore(q DBTX) *PipelineRunStore {
	return &PipelineRunStore{q: q}
}

// Compile-time interface check.
var _ storage.PipelineRunStore = (*PipelineRunStore)(nil)

// Insert adds a new run row. Returns ErrDuplicateKey if the run ID exists.
func (s *PipelineRunStore) Insert(ctx context.Context, r *domain.PipelineRun) error {
	if r == nil || r.ID == "" || !r.PipelineType.IsValid() {
		return storage.ErrInvalidInput
	}

	query := `
		INSERT INTO pipeline_runs (
			id, pipeline_type, triggered_by, status, started_at,
			total_items, completed_items, failed_items, summary_message
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`
	_, err := s.q.Exec(ctx, query,
		r.ID,
		string(r.PipelineType),
		r.Trigger,
		string(r.Status),
		r.StartedAt,
		r.TotalItems,
		r.CompletedItems,
		r.FailedItems,
		r.SummaryMessage,
	)
	if err != nil {
		if isDuplicateKeyError(err) {
			return fmt.Errorf("insert run: %w", storage.ErrDuplicateKey)
		}
		return fmt.Errorf("insert run: %w", err)
	}
	return nil
}

// Finalize writes the terminal status, counters and summary message.
func (s *PipelineRunStore) Finalize(ctx context.Context, runID string, status domain.RunStatus, total, completed, failed int, finishedAt time.Time, message *string) error {
	query := `
		UPDATE pipeline_runs SET
			status = $2, total_items = $3, completed_items = $4,
			failed_items = $5, finished_at = $6, summary_message = $7
		WHERE id = $1
	`
	tag, err := s.q.Exec(ctx, query, runID, string(status), total, completed, failed, finishedAt, message)
	if err != nil {
		return fmt.Errorf("finalize run: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return storage.ErrNotFound
	}
	return nil
}

// GetByID retrieves a run by its ID.
func (s *PipelineRunStore) GetByID(ctx context.Context, runID string) (*domain.PipelineRun, error) {
	query := `
		SELECT id, pipeline_type, triggered_by, status, started_at,
		       finished_at, total_items, completed_items, failed_items,
		       summary_message, created_at
		FROM pipeline_runs
		WHERE id = $1
	`
	var r domain.PipelineRun
	var pipelineType, status string
	err := s.q.QueryRow(ctx, query, runID).Scan(
		&r.ID,
		&pipelineType,
		&r.Trigger,
		&status,
		&r.StartedAt,
		&r.FinishedAt,
		&r.TotalItems,
		&r.CompletedItems,
		&r.FailedItems,
		&r.SummaryMessage,
		&r.CreatedAt,
	)
	if err != nil {
		if isNotFoundError(err) {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("get run by id: %w", err)
	}

	r.PipelineType = domain.PipelineType(pipelineType)
	r.Status = domain.RunStatus(status)
	return &r, nil
}
