package pipeline

import (
	"errors"
	"fmt"

	"github.com/go-playground/validator/v10"
)

// ErrInvalidCommand wraps parameter validation failures so callers can
// map them to a distinct exit code.
var ErrInvalidCommand = errors.New("invalid command")

// TriggerManual marks runs started from the CLI.
const TriggerManual = "manual"

// Run modes. Bootstrap ignores the persisted exclusion bitmap and is
// allowed to create rows everywhere; operational is the steady state.
const (
	ModeBootstrap   = "bootstrap"
	ModeOperational = "operational"
)

var validate = validator.New()

// RefreshWindowCommand re-fetches games that are coming soon or release
// within the refresh window.
type RefreshWindowCommand struct {
	Limit  int `validate:"min=1,max=10000"`
	DryRun bool
}

// IngestNewCommand fetches store IDs absent from the catalog.
type IngestNewCommand struct {
	Mode   string `validate:"oneof=bootstrap operational"`
	Limit  int    `validate:"min=1,max=50000"`
	DryRun bool
}

// SingleCommand refreshes exactly one record.
type SingleCommand struct {
	IDKind  string   `validate:"oneof=internal store meta"`
	ID      int64    `validate:"min=1"`
	Sources []string `validate:"omitempty,dive,oneof=store meta"`
	DryRun  bool
}

// FullRefreshCommand iterates the entire catalog in keyset pages.
type FullRefreshCommand struct {
	Mode      string `validate:"oneof=bootstrap operational"`
	BatchSize int    `validate:"min=100,max=2000"`
	DryRun    bool
}

// BackfillDetailsCommand re-fetches popular base games that lack a
// detail or release row.
type BackfillDetailsCommand struct {
	Limit       int `validate:"min=1,max=10000"`
	Concurrency int `validate:"min=1,max=8"`
}

// MergeDuplicatesCommand collapses suffixed duplicate rows that the
// matching engine scores as the same title.
type MergeDuplicatesCommand struct {
	Limit  int `validate:"min=1,max=1000"`
	DryRun bool
}

func validateCommand(cmd any) error {
	if err := validate.Struct(cmd); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidCommand, err)
	}
	return nil
}
