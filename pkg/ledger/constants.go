package ledger

const (
	operationProcessCompletion   = "process_completion"
	operationProcessManualCredit = "process_manual_credit"
	operationAppend              = "append"
	operationReconcile           = "reconcile"
	operationAwardBadge          = "award_badge"
	operationRankChange          = "rank_change"

	operationStatusOK        = "ok"
	operationStatusError     = "error"
	operationStatusDuplicate = "duplicate"

	idempotencyKeyDelimiter = ":"

	defaultMetadataJSON  = "{}"
	defaultPageSize      = 200
	maxPageSize          = 1000
	defaultMaxEarnings   = 1
	constraintRetryLimit = 3

	maxShapingPercent = 50
	secondsPerDay     = 86400
)

// SourceType names what produced a ledger entry.
type SourceType string

const (
	SourceDrillCompletion SourceType = "drill_completion"
	SourceManualCredit    SourceType = "manual_credit"
	SourceBadgeAward      SourceType = "badge_award"
	SourcePerfectBonus    SourceType = "perfect_bonus"
	SourceWorkoutBonus    SourceType = "workout_bonus"
)

// String returns the raw source type.
func (sourceType SourceType) String() string {
	return string(sourceType)
}

// ParseSourceType validates a stored source type.
func ParseSourceType(raw string) (SourceType, error) {
	switch SourceType(raw) {
	case SourceDrillCompletion, SourceManualCredit, SourceBadgeAward, SourcePerfectBonus, SourceWorkoutBonus:
		return SourceType(raw), nil
	default:
		return "", ErrInvalidSourceType
	}
}

// EventKind classifies an event receipt.
type EventKind string

const (
	EventCompletion   EventKind = "completion"
	EventManualCredit EventKind = "manual_credit"
)

// String returns the raw event kind.
func (kind EventKind) String() string {
	return string(kind)
}

// ParseEventKind validates a stored event kind.
func ParseEventKind(raw string) (EventKind, error) {
	switch EventKind(raw) {
	case EventCompletion, EventManualCredit:
		return EventKind(raw), nil
	default:
		return "", ErrInvalidEventKind
	}
}
