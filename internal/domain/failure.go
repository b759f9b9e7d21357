package domain

// SaveFailureReason classifies why a single record failed to persist.
type SaveFailureReason string

const (
	FailureStoreAppNotFound    SaveFailureReason = "StoreAppNotFound"
	FailureMetaGameNotFound    SaveFailureReason = "MetaGameNotFound"
	FailureValidationFailed    SaveFailureReason = "ValidationFailed"
	FailureDuplicateConstraint SaveFailureReason = "DuplicateConstraint"
	FailureRateLimit           SaveFailureReason = "RateLimit"
	FailureUnknown             SaveFailureReason = "Unknown"
)

// String returns the string representation of SaveFailureReason.
func (r SaveFailureReason) String() string {
	return string(r)
}

// IsValid checks if the failure reason is a valid value.
func (r SaveFailureReason) IsValid() bool {
	switch r {
	case FailureStoreAppNotFound, FailureMetaGameNotFound, FailureValidationFailed,
		FailureDuplicateConstraint, FailureRateLimit, FailureUnknown:
		return true
	}
	return false
}

// FailureDetail is one classified per-record failure, carried on batch
// results and run summaries. Individual failures never abort a batch.
type FailureDetail struct {
	TargetType TargetType        `json:"targetType"`
	TargetID   string            `json:"targetId"`
	Reason     SaveFailureReason `json:"reason"`
	Message    string            `json:"message"`
}
