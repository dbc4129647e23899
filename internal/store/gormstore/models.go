package gormstore

import (
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// LedgerEntry mirrors the ledger_entries table. Sequence orders entries that share a timestamp.
type LedgerEntry struct {
	Sequence       int64          `gorm:"primaryKey;autoIncrement"`
	EntryID        string         `gorm:"not null;uniqueIndex"`
	UserID         string         `gorm:"not null;index:uniq_ledger_user_idem,unique,priority:1;index:idx_ledger_user_created,priority:1;index:idx_ledger_user_event,priority:1"`
	CurrencyKey    string         `gorm:"not null"`
	Delta          int64          `gorm:"not null"`
	Reason         string         `gorm:"not null;default:''"`
	SourceType     string         `gorm:"not null"`
	SourceID       string         `gorm:"not null"`
	IdempotencyKey string         `gorm:"not null;index:uniq_ledger_user_idem,unique,priority:2"`
	EventKey       string         `gorm:"not null;index:idx_ledger_user_event,priority:2"`
	Metadata       datatypes.JSON `gorm:"type:jsonb;not null"`
	CreatedUnixUTC int64          `gorm:"not null;index:idx_ledger_user_created,priority:2"`
}

func (LedgerEntry) TableName() string { return "ledger_entries" }

// WalletBalance mirrors the wallet_balances projection.
type WalletBalance struct {
	UserID         string `gorm:"primaryKey"`
	CurrencyKey    string `gorm:"primaryKey;index:idx_wallet_currency_balance,priority:1"`
	Balance        int64  `gorm:"not null;index:idx_wallet_currency_balance,priority:2"`
	UpdatedUnixUTC int64  `gorm:"not null"`
}

func (WalletBalance) TableName() string { return "wallet_balances" }

// EventReceipt mirrors event_receipts; the composite key deduplicates events per user.
type EventReceipt struct {
	UserID         string `gorm:"primaryKey"`
	EventKey       string `gorm:"primaryKey"`
	Kind           string `gorm:"not null"`
	CreatedUnixUTC int64  `gorm:"not null"`
}

func (EventReceipt) TableName() string { return "event_receipts" }

// BadgeProgress mirrors user_badge_progress.
type BadgeProgress struct {
	UserID          string `gorm:"primaryKey"`
	BadgeID         int64  `gorm:"primaryKey;autoIncrement:false"`
	DrillsCompleted int64  `gorm:"not null"`
	UpdatedUnixUTC  int64  `gorm:"not null"`
}

func (BadgeProgress) TableName() string { return "user_badge_progress" }

// BadgeAward mirrors user_badge_awards. One row per earning.
type BadgeAward struct {
	UserID         string  `gorm:"primaryKey;index:idx_award_user_event,priority:1"`
	BadgeID        int64   `gorm:"primaryKey;autoIncrement:false"`
	Earning        int     `gorm:"primaryKey;autoIncrement:false"`
	EventKey       string  `gorm:"not null;index:idx_award_user_event,priority:2"`
	SourceEntryID  *string `gorm:""`
	AwardedUnixUTC int64   `gorm:"not null"`
}

func (BadgeAward) TableName() string { return "user_badge_awards" }

// RankState mirrors user_rank_state.
type RankState struct {
	UserID         string `gorm:"primaryKey"`
	CurrencyKey    string `gorm:"primaryKey"`
	RankOrder      int    `gorm:"not null"`
	UpdatedUnixUTC int64  `gorm:"not null"`
}

func (RankState) TableName() string { return "user_rank_state" }

// RankTransition mirrors the rank_transitions audit table.
type RankTransition struct {
	ID             int64  `gorm:"primaryKey;autoIncrement"`
	UserID         string `gorm:"not null;index:idx_rank_transition_event,priority:1"`
	CurrencyKey    string `gorm:"not null"`
	FromOrder      int    `gorm:"not null"`
	ToOrder        int    `gorm:"not null"`
	EventKey       string `gorm:"not null;index:idx_rank_transition_event,priority:2"`
	CreatedUnixUTC int64  `gorm:"not null"`
}

func (RankTransition) TableName() string { return "rank_transitions" }

// UserStreak mirrors user_streaks. LastActiveDay counts UTC days since the epoch.
type UserStreak struct {
	UserID         string `gorm:"primaryKey"`
	CurrentDays    int    `gorm:"not null"`
	LongestDays    int    `gorm:"not null"`
	LastActiveDay  int64  `gorm:"not null"`
	UpdatedUnixUTC int64  `gorm:"not null"`
}

func (UserStreak) TableName() string { return "user_streaks" }

// AutoMigrate creates or updates every table the store uses.
func AutoMigrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&LedgerEntry{},
		&WalletBalance{},
		&EventReceipt{},
		&BadgeProgress{},
		&BadgeAward{},
		&RankState{},
		&RankTransition{},
		&UserStreak{},
	)
}
