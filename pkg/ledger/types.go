package ledger

import (
	"encoding/json"
	"fmt"
	"strings"
)

// UserID identifies a player.
type UserID struct {
	value string
}

// CurrencyKey is the slug of a currency in the catalog.
type CurrencyKey struct {
	value string
}

// EntryID identifies a ledger entry.
type EntryID struct {
	value string
}

// IdempotencyKey scopes duplicate detection.
type IdempotencyKey struct {
	value string
}

// DrillID identifies a drill in the content library.
type DrillID struct {
	value string
}

// SeriesID identifies a drill series.
type SeriesID struct {
	value string
}

// ActorID identifies the administrator behind a manual adjustment.
type ActorID struct {
	value string
}

// MetadataJSON stores arbitrary entry metadata.
type MetadataJSON struct {
	value string
}

// BadgeID identifies a badge in the catalog.
type BadgeID int64

// Delta is a signed, non-zero currency amount. Positive values credit, negative values debit.
type Delta int64

// NewUserID validates and normalizes a user id.
func NewUserID(raw string) (UserID, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return UserID{}, fmt.Errorf("%w: empty value", ErrInvalidUserID)
	}
	return UserID{value: trimmed}, nil
}

// String returns the normalized identifier.
func (id UserID) String() string {
	return id.value
}

// IsZero reports whether the id was never set.
func (id UserID) IsZero() bool {
	return id.value == ""
}

// NewCurrencyKey validates and normalizes a currency key.
func NewCurrencyKey(raw string) (CurrencyKey, error) {
	trimmed := strings.ToLower(strings.TrimSpace(raw))
	if trimmed == "" {
		return CurrencyKey{}, fmt.Errorf("%w: empty value", ErrInvalidCurrencyKey)
	}
	if strings.ContainsAny(trimmed, " \t"+idempotencyKeyDelimiter) {
		return CurrencyKey{}, fmt.Errorf("%w: %q contains whitespace or delimiter", ErrInvalidCurrencyKey, trimmed)
	}
	return CurrencyKey{value: trimmed}, nil
}

// String returns the normalized key.
func (key CurrencyKey) String() string {
	return key.value
}

// IsZero reports whether the key was never set.
func (key CurrencyKey) IsZero() bool {
	return key.value == ""
}

// NewEntryID validates an entry id.
func NewEntryID(raw string) (EntryID, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return EntryID{}, fmt.Errorf("%w: empty value", ErrInvalidEntryID)
	}
	return EntryID{value: trimmed}, nil
}

// String returns the normalized identifier.
func (id EntryID) String() string {
	return id.value
}

// NewIdempotencyKey validates and normalizes an idempotency key.
func NewIdempotencyKey(raw string) (IdempotencyKey, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return IdempotencyKey{}, fmt.Errorf("%w: empty value", ErrInvalidIdempotencyKey)
	}
	return IdempotencyKey{value: trimmed}, nil
}

// String returns the normalized key.
func (key IdempotencyKey) String() string {
	return key.value
}

// IsZero reports whether the key was never set.
func (key IdempotencyKey) IsZero() bool {
	return key.value == ""
}

// NewDrillID validates a drill id.
func NewDrillID(raw string) (DrillID, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return DrillID{}, fmt.Errorf("%w: empty value", ErrInvalidDrillID)
	}
	return DrillID{value: trimmed}, nil
}

// String returns the normalized identifier.
func (id DrillID) String() string {
	return id.value
}

// NewSeriesID validates a series id.
func NewSeriesID(raw string) (SeriesID, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return SeriesID{}, fmt.Errorf("%w: empty value", ErrInvalidSeriesID)
	}
	return SeriesID{value: trimmed}, nil
}

// String returns the normalized identifier.
func (id SeriesID) String() string {
	return id.value
}

// NewActorID validates an actor id.
func NewActorID(raw string) (ActorID, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return ActorID{}, fmt.Errorf("%w: empty value", ErrInvalidActorID)
	}
	return ActorID{value: trimmed}, nil
}

// String returns the normalized identifier.
func (id ActorID) String() string {
	return id.value
}

// NewMetadataJSON validates a metadata object (defaulting to "{}" for empty inputs).
func NewMetadataJSON(raw string) (MetadataJSON, error) {
	normalized := strings.TrimSpace(raw)
	if normalized == "" {
		normalized = defaultMetadataJSON
	}
	var object map[string]any
	if err := json.Unmarshal([]byte(normalized), &object); err != nil {
		return MetadataJSON{}, fmt.Errorf("%w: must be a json object", ErrInvalidMetadataJSON)
	}
	return MetadataJSON{value: normalized}, nil
}

// MetadataFromMap encodes a flat map into metadata.
func MetadataFromMap(fields map[string]string) MetadataJSON {
	if len(fields) == 0 {
		return MetadataJSON{value: defaultMetadataJSON}
	}
	raw, err := json.Marshal(fields)
	if err != nil {
		return MetadataJSON{value: defaultMetadataJSON}
	}
	return MetadataJSON{value: string(raw)}
}

// String returns the normalized JSON blob.
func (metadata MetadataJSON) String() string {
	if metadata.value == "" {
		return defaultMetadataJSON
	}
	return metadata.value
}

// NewBadgeID validates a badge id.
func NewBadgeID(raw int64) (BadgeID, error) {
	if raw <= 0 {
		return 0, fmt.Errorf("%w: must be positive", ErrInvalidBadgeID)
	}
	return BadgeID(raw), nil
}

// Int64 returns the raw id.
func (id BadgeID) Int64() int64 {
	return int64(id)
}

// NewDelta validates a signed amount and rejects zero.
func NewDelta(raw int64) (Delta, error) {
	if raw == 0 {
		return 0, WrapError("ledger", "delta", "zero", ErrZeroDelta)
	}
	return Delta(raw), nil
}

// Int64 returns the raw amount.
func (delta Delta) Int64() int64 {
	return int64(delta)
}

// deriveIdempotencyKey builds the per-currency ledger key sourceType:sourceId:currencyKey.
func deriveIdempotencyKey(sourceType SourceType, sourceID string, currency CurrencyKey) (IdempotencyKey, error) {
	combined := strings.Join([]string{sourceType.String(), sourceID, currency.String()}, idempotencyKeyDelimiter)
	return NewIdempotencyKey(combined)
}

// EntryInput describes a ledger append before the store assigns identity.
type EntryInput struct {
	UserID         UserID
	CurrencyKey    CurrencyKey
	Delta          Delta
	Reason         string
	SourceType     SourceType
	SourceID       string
	IdempotencyKey IdempotencyKey
	EventKey       IdempotencyKey
	Metadata       MetadataJSON
}

// Entry is a single immutable line in the ledger.
type Entry struct {
	EntryID        EntryID
	Sequence       int64
	UserID         UserID
	CurrencyKey    CurrencyKey
	Delta          Delta
	Reason         string
	SourceType     SourceType
	SourceID       string
	IdempotencyKey IdempotencyKey
	EventKey       IdempotencyKey
	Metadata       MetadataJSON
	CreatedUnixUTC int64
}

// WalletBalance is the projection of ledger deltas for one (user, currency) pair.
type WalletBalance struct {
	UserID         UserID
	CurrencyKey    CurrencyKey
	Balance        int64
	UpdatedUnixUTC int64
}

// BadgeProgress counts completed drills toward a simple badge.
type BadgeProgress struct {
	UserID          UserID
	BadgeID         BadgeID
	DrillsCompleted int64
	UpdatedUnixUTC  int64
}

// BadgeAward records one earning of a badge.
type BadgeAward struct {
	UserID         UserID
	BadgeID        BadgeID
	Earning        int
	EventKey       IdempotencyKey
	SourceEntryID  *EntryID
	AwardedUnixUTC int64
}

// RankState is the current rank pointer for a (user, currency) pair.
type RankState struct {
	UserID         UserID
	CurrencyKey    CurrencyKey
	RankOrder      int
	UpdatedUnixUTC int64
}

// RankTransition is an audit row written whenever a rank pointer moves.
type RankTransition struct {
	UserID         UserID
	CurrencyKey    CurrencyKey
	FromOrder      int
	ToOrder        int
	EventKey       IdempotencyKey
	CreatedUnixUTC int64
}

// EventReceipt marks an event as processed for a user.
type EventReceipt struct {
	UserID         UserID
	EventKey       IdempotencyKey
	Kind           EventKind
	CreatedUnixUTC int64
}

// EntryQuery selects a page of ledger entries in ascending (created, sequence) order.
// Sequences start at 1, so a zero AfterSequence reads from the first entry whatever its timestamp.
type EntryQuery struct {
	UserID        UserID
	CurrencyKey   *CurrencyKey
	AfterUnixUTC  int64
	AfterSequence int64
	Limit         int
}

// HasCursor reports whether the query resumes after a previously returned entry.
func (query EntryQuery) HasCursor() bool {
	return query.AfterSequence > 0
}

// CompletionEvent is emitted by the drill player when a drill is finished.
// Perfect and CompletesWorkout unlock the catalog's perfect drill and workout bonuses.
type CompletionEvent struct {
	UserID           UserID
	DrillID          DrillID
	SeriesID         SeriesID
	CompletedUnixUTC int64
	IdempotencyKey   IdempotencyKey
	Perfect          bool
	CompletesWorkout bool
}

// ManualCreditEvent is an administrative point adjustment.
type ManualCreditEvent struct {
	UserID         UserID
	CurrencyKey    CurrencyKey
	Delta          Delta
	Reason         string
	ActorID        ActorID
	IdempotencyKey IdempotencyKey
}

// RankChange reports a moved rank pointer. From is nil when the user had no rank yet.
type RankChange struct {
	CurrencyKey CurrencyKey
	From        *Rank
	To          *Rank
}

// AwardResult is returned by the orchestrator for UI notification.
type AwardResult struct {
	CreditsGranted []Entry
	BadgesAwarded  []BadgeAward
	RankChanges    []RankChange
	Duplicate      bool
}
