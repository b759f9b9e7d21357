package postgres

import (
	"context"
	"fmt"

	"game-catalog-pipeline/internal/domain"
	"game-catalog-pipeline/internal/storage"
)

// PipelineItemStore implements storage.PipelineItemStore using PostgreSQL.
type PipelineItemStore struct {
	q DBTX
}

// NewPipelineItemStore creates a new PipelineItemStore.
func NewPipelineItemStore(q DBTX) *PipelineItemStore {
	return &PipelineItemStore{q: q}
}

// Compile-time interface check.
var _ storage.PipelineItemStore = (*PipelineItemStore)(nil)

// Insert adds an item row.
func (s *PipelineItemStore) Insert(ctx context.Context, it *domain.PipelineItem) error {
	if it == nil || it.RunID == "" || !it.TargetType.IsValid() {
		return storage.ErrInvalidInput
	}

	query := `
		INSERT INTO pipeline_items (run_id, target_type, target_id, action, status, reason)
		VALUES ($1, $2, $3, $4, $5, $6)
	`
	_, err := s.q.Exec(ctx, query,
		it.RunID,
		string(it.TargetType),
		it.TargetID,
		string(it.Action),
		string(it.Status),
		it.Reason,
	)
	if err != nil {
		return fmt.Errorf("insert pipeline item: %w", err)
	}
	return nil
}

// ListByRun retrieves all items of a run in insertion order.
func (s *PipelineItemStore) ListByRun(ctx context.Context, runID string) ([]*domain.PipelineItem, error) {
	query := `
		SELECT id, run_id, target_type, target_id, action, status, reason, created_at
		FROM pipeline_items
		WHERE run_id = $1
		ORDER BY id ASC
	`
	rows, err := s.q.Query(ctx, query, runID)
	if err != nil {
		return nil, fmt.Errorf("list pipeline items: %w", err)
	}
	defer rows.Close()

	var items []*domain.PipelineItem
	for rows.Next() {
		var it domain.PipelineItem
		var targetType, action, status string
		err := rows.Scan(&it.ID, &it.RunID, &targetType, &it.TargetID, &action, &status, &it.Reason, &it.CreatedAt)
		if err != nil {
			return nil, fmt.Errorf("scan pipeline item row: %w", err)
		}
		it.TargetType = domain.TargetType(targetType)
		it.Action = domain.ItemAction(action)
		it.Status = domain.ItemStatus(status)
		items = append(items, &it)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate pipeline item rows: %w", err)
	}
	return items, nil
}
