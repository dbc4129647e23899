// Package awardsv1 is the internal RPC contract of the awards service.
package awardsv1

type CompletionRequest struct {
	UserId           string `json:"user_id"`
	DrillId          string `json:"drill_id"`
	SeriesId         string `json:"series_id"`
	CompletedUnixUtc int64  `json:"completed_unix_utc,omitempty"`
	IdempotencyKey   string `json:"idempotency_key"`
	Perfect          bool   `json:"perfect,omitempty"`
	CompletesWorkout bool   `json:"completes_workout,omitempty"`
}

type ManualCreditRequest struct {
	UserId         string `json:"user_id"`
	CurrencyKey    string `json:"currency_key"`
	Delta          int64  `json:"delta"`
	Reason         string `json:"reason"`
	ActorId        string `json:"actor_id"`
	IdempotencyKey string `json:"idempotency_key"`
}

type Entry struct {
	EntryId        string `json:"entry_id"`
	Sequence       int64  `json:"sequence"`
	UserId         string `json:"user_id"`
	CurrencyKey    string `json:"currency_key"`
	Delta          int64  `json:"delta"`
	Reason         string `json:"reason"`
	SourceType     string `json:"source_type"`
	SourceId       string `json:"source_id"`
	IdempotencyKey string `json:"idempotency_key"`
	EventKey       string `json:"event_key"`
	MetadataJson   string `json:"metadata_json"`
	CreatedUnixUtc int64  `json:"created_unix_utc"`
}

type BadgeAward struct {
	BadgeId        int64  `json:"badge_id"`
	Title          string `json:"title"`
	Earning        int32  `json:"earning"`
	EventKey       string `json:"event_key"`
	SourceEntryId  string `json:"source_entry_id,omitempty"`
	AwardedUnixUtc int64  `json:"awarded_unix_utc"`
}

type Rank struct {
	Order           int32  `json:"order"`
	Title           string `json:"title"`
	CurrencyKey     string `json:"currency_key"`
	CreditsRequired int64  `json:"credits_required"`
}

// RankChange leaves From or To nil when the user is unranked on that side.
type RankChange struct {
	CurrencyKey string `json:"currency_key"`
	From        *Rank  `json:"from,omitempty"`
	To          *Rank  `json:"to,omitempty"`
}

type AwardResponse struct {
	CreditsGranted []*Entry      `json:"credits_granted"`
	BadgesAwarded  []*BadgeAward `json:"badges_awarded"`
	RankChanges    []*RankChange `json:"rank_changes"`
	Duplicate      bool          `json:"duplicate"`
}

type BalanceRequest struct {
	UserId      string `json:"user_id"`
	CurrencyKey string `json:"currency_key"`
}

type BalanceResponse struct {
	UserId         string `json:"user_id"`
	CurrencyKey    string `json:"currency_key"`
	Balance        int64  `json:"balance"`
	UpdatedUnixUtc int64  `json:"updated_unix_utc"`
}

type HeldBadgesRequest struct {
	UserId string `json:"user_id"`
}

type HeldBadgesResponse struct {
	BadgeIds []int64 `json:"badge_ids"`
}

type CurrentRankRequest struct {
	UserId      string `json:"user_id"`
	CurrencyKey string `json:"currency_key"`
}

type CurrentRankResponse struct {
	Rank *Rank `json:"rank"`
}

type ReconcileRequest struct {
	UserId      string `json:"user_id"`
	CurrencyKey string `json:"currency_key"`
}

type ReconcileResponse struct {
	BalanceBefore int64 `json:"balance_before"`
	BalanceAfter  int64 `json:"balance_after"`
	Drift         int64 `json:"drift"`
}

type ListEntriesRequest struct {
	UserId        string `json:"user_id"`
	CurrencyKey   string `json:"currency_key,omitempty"`
	AfterUnixUtc  int64  `json:"after_unix_utc,omitempty"`
	AfterSequence int64  `json:"after_sequence,omitempty"`
	Limit         int32  `json:"limit,omitempty"`
}

type ListEntriesResponse struct {
	Entries []*Entry `json:"entries"`
}

type RankProgressRequest struct {
	UserId      string `json:"user_id"`
	CurrencyKey string `json:"currency_key"`
}

type RankProgressResponse struct {
	CurrencyKey   string  `json:"currency_key"`
	Balance       int64   `json:"balance"`
	Current       *Rank   `json:"current,omitempty"`
	Next          *Rank   `json:"next,omitempty"`
	CreditsToNext int64   `json:"credits_to_next"`
	Percentage    float64 `json:"percentage"`
}

type LeaderboardRequest struct {
	CurrencyKey string `json:"currency_key"`
	Limit       int32  `json:"limit,omitempty"`
}

type LeaderboardEntry struct {
	Position int32  `json:"position"`
	UserId   string `json:"user_id"`
	Balance  int64  `json:"balance"`
	Rank     *Rank  `json:"rank,omitempty"`
}

type LeaderboardResponse struct {
	Entries []*LeaderboardEntry `json:"entries"`
}

type StreakRequest struct {
	UserId string `json:"user_id"`
}

type StreakResponse struct {
	CurrentDays   int32 `json:"current_days"`
	LongestDays   int32 `json:"longest_days"`
	LastActiveDay int64 `json:"last_active_day"`
}

type RankDistributionRequest struct {
	CurrencyKey string `json:"currency_key"`
}

// RankBucket has no rank for players below the first threshold.
type RankBucket struct {
	Rank       *Rank `json:"rank,omitempty"`
	Users      int64 `json:"users"`
	Percentage int32 `json:"percentage"`
}

type RankDistributionResponse struct {
	Buckets []*RankBucket `json:"buckets"`
}
