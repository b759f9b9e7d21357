package persist

import (
	"context"

	"game-catalog-pipeline/internal/domain"
)

// TrailerResolver fills a missing trailer URL at detail-creation time.
// Implementations may call external services; errors are non-fatal.
type TrailerResolver interface {
	ResolveTrailer(ctx context.Context, name string) (*string, error)
}

// NopTrailerResolver never resolves anything.
type NopTrailerResolver struct{}

// ResolveTrailer always returns nil.
func (NopTrailerResolver) ResolveTrailer(context.Context, string) (*string, error) {
	return nil, nil
}

// SaveOptions controls one save invocation.
type SaveOptions struct {
	// RunID links item rows to a pipeline run; empty skips item rows.
	RunID string
	// AllowCreate permits inserting games absent from the catalog.
	AllowCreate bool
	// DryRun executes the full save and rolls the transaction back.
	DryRun bool
}

// SaveResult is the outcome of saving one record.
type SaveResult struct {
	Action  domain.ItemAction
	GameID  int64
	Failure *domain.FailureDetail
	// Decision is set when cross-source matching was consulted.
	Decision *domain.MatchingDecision
}

// Failed reports whether the save did not commit.
func (r SaveResult) Failed() bool {
	return r.Failure != nil
}

// BatchResult aggregates the outcomes of a SaveMany call.
type BatchResult struct {
	Created  int
	Updated  int
	Skipped  int
	Failed   int
	Failures []domain.FailureDetail
}

// Total returns the number of records accounted for.
func (b BatchResult) Total() int {
	return b.Created + b.Updated + b.Skipped + b.Failed
}

func (b *BatchResult) add(r SaveResult) {
	if r.Failure != nil {
		b.Failed++
		b.Failures = append(b.Failures, *r.Failure)
		return
	}
	switch r.Action {
	case domain.ItemActionCreated:
		b.Created++
	case domain.ItemActionUpdated:
		b.Updated++
	default:
		b.Skipped++
	}
}
