package domain

import "time"

// PipelineType names the command that produced a run.
type PipelineType string

const (
	PipelineRefreshWindow   PipelineType = "refresh-window"
	PipelineIngestNew       PipelineType = "ingest-new"
	PipelineSingle          PipelineType = "single"
	PipelineFullRefresh     PipelineType = "full-refresh"
	PipelineBackfillDetails PipelineType = "backfill-details"
	PipelineMergeDuplicates PipelineType = "merge-duplicates"
)

// String returns the string representation of PipelineType.
func (t PipelineType) String() string {
	return string(t)
}

// IsValid checks if the pipeline type is a valid value.
func (t PipelineType) IsValid() bool {
	switch t {
	case PipelineRefreshWindow, PipelineIngestNew, PipelineSingle,
		PipelineFullRefresh, PipelineBackfillDetails, PipelineMergeDuplicates:
		return true
	}
	return false
}

// RunStatus is the terminal state of a pipeline run.
type RunStatus string

const (
	RunStatusRunning   RunStatus = "running"
	RunStatusCompleted RunStatus = "completed"
	RunStatusFailed    RunStatus = "failed"
)

// String returns the string representation of RunStatus.
func (s RunStatus) String() string {
	return string(s)
}

// IsValid checks if the run status is a valid value.
func (s RunStatus) IsValid() bool {
	return s == RunStatusRunning || s == RunStatusCompleted || s == RunStatusFailed
}

// PipelineRun is one command invocation. Append-only.
// Corresponds to pipeline_runs table in PostgreSQL.
type PipelineRun struct {
	ID             string // UUID
	PipelineType   PipelineType
	Trigger        string // cli | cron | manual
	Status         RunStatus
	StartedAt      time.Time
	FinishedAt     *time.Time
	TotalItems     int
	CompletedItems int
	FailedItems    int
	SummaryMessage *string
	CreatedAt      time.Time
}

// TargetType classifies what a pipeline item refers to.
type TargetType string

const (
	TargetStoreApp TargetType = "store_app"
	TargetMetaGame TargetType = "meta_game"
	TargetGame     TargetType = "game"
)

// String returns the string representation of TargetType.
func (t TargetType) String() string {
	return string(t)
}

// IsValid checks if the target type is a valid value.
func (t TargetType) IsValid() bool {
	return t == TargetStoreApp || t == TargetMetaGame || t == TargetGame
}

// ItemAction records what the save did to the target row.
type ItemAction string

const (
	ItemActionCreated ItemAction = "created"
	ItemActionUpdated ItemAction = "updated"
	ItemActionSkipped ItemAction = "skipped"
)

// String returns the string representation of ItemAction.
func (a ItemAction) String() string {
	return string(a)
}

// IsValid checks if the item action is a valid value.
func (a ItemAction) IsValid() bool {
	return a == ItemActionCreated || a == ItemActionUpdated || a == ItemActionSkipped
}

// ItemStatus is the per-record outcome.
type ItemStatus string

const (
	ItemStatusSuccess ItemStatus = "success"
	ItemStatusFailed  ItemStatus = "failed"
)

// String returns the string representation of ItemStatus.
func (s ItemStatus) String() string {
	return string(s)
}

// IsValid checks if the item status is a valid value.
func (s ItemStatus) IsValid() bool {
	return s == ItemStatusSuccess || s == ItemStatusFailed
}

// PipelineItem is one processed target within a run. Append-only; for
// successful saves the row is written inside the same transaction as the
// game mutation, so an item exists iff the game row was committed.
// Corresponds to pipeline_items table in PostgreSQL.
type PipelineItem struct {
	ID         int64
	RunID      string
	TargetType TargetType
	TargetID   string
	Action     ItemAction
	Status     ItemStatus
	Reason     *string
	CreatedAt  time.Time
}

// RunSummary is the caller-facing result of a command invocation.
type RunSummary struct {
	RunID          string          `json:"runId"`
	Phase          string          `json:"phase"`
	TotalProcessed int             `json:"totalProcessed"`
	Created        int             `json:"created"`
	Updated        int             `json:"updated"`
	Skipped        int             `json:"skipped"`
	Failed         int             `json:"failed"`
	Failures       []FailureDetail `json:"failures"`
	FinishedAt     time.Time       `json:"finishedAt"`
}
