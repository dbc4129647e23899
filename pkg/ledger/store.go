package ledger

import "context"

// Store persists ledger entries, projections and award state.
// Implementations must make every write issued through the txStore handed to WithTx atomic.
type Store interface {
	WithTx(ctx context.Context, fn func(ctx context.Context, txStore Store) error) error
	// LockUser serializes transactions of one user until the enclosing transaction ends.
	LockUser(ctx context.Context, userID UserID) error

	InsertEntry(ctx context.Context, entry Entry) (Entry, error)
	GetEntryByIdempotencyKey(ctx context.Context, userID UserID, idempotencyKey IdempotencyKey) (Entry, error)
	ListEntries(ctx context.Context, query EntryQuery) ([]Entry, error)
	ListEntriesByEvent(ctx context.Context, userID UserID, eventKey IdempotencyKey) ([]Entry, error)

	// GetWalletBalance returns a zero balance for an unseen pair.
	GetWalletBalance(ctx context.Context, userID UserID, currency CurrencyKey) (WalletBalance, error)
	ApplyWalletDelta(ctx context.Context, userID UserID, currency CurrencyKey, delta Delta, nowUnixUTC int64) (WalletBalance, error)
	SetWalletBalance(ctx context.Context, userID UserID, currency CurrencyKey, balance int64, nowUnixUTC int64) (WalletBalance, error)
	ListWalletBalances(ctx context.Context, userID UserID) ([]WalletBalance, error)
	TopWalletBalances(ctx context.Context, currency CurrencyKey, limit int) ([]WalletBalance, error)
	// CountWalletBalancesAtLeast counts users of a currency whose balance is at least minimum.
	CountWalletBalancesAtLeast(ctx context.Context, currency CurrencyKey, minimum int64) (int64, error)

	InsertEventReceipt(ctx context.Context, receipt EventReceipt) error
	GetEventReceipt(ctx context.Context, userID UserID, eventKey IdempotencyKey) (EventReceipt, error)

	IncrementBadgeProgress(ctx context.Context, userID UserID, badgeID BadgeID, nowUnixUTC int64) (BadgeProgress, error)
	ListBadgeProgress(ctx context.Context, userID UserID) ([]BadgeProgress, error)
	InsertBadgeAward(ctx context.Context, award BadgeAward) error
	ListBadgeAwards(ctx context.Context, userID UserID) ([]BadgeAward, error)
	ListBadgeAwardsByEvent(ctx context.Context, userID UserID, eventKey IdempotencyKey) ([]BadgeAward, error)

	// GetRankState returns RankOrder 0 when the user holds no rank in the currency.
	GetRankState(ctx context.Context, userID UserID, currency CurrencyKey) (RankState, error)
	UpsertRankState(ctx context.Context, state RankState) error
	InsertRankTransition(ctx context.Context, transition RankTransition) error
	ListRankTransitionsByEvent(ctx context.Context, userID UserID, eventKey IdempotencyKey) ([]RankTransition, error)

	// GetStreak returns a zero streak for a user without completions.
	GetStreak(ctx context.Context, userID UserID) (StreakState, error)
	UpsertStreak(ctx context.Context, state StreakState) error
}
