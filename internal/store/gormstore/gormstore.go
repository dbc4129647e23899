package gormstore

import (
	"context"
	"database/sql/driver"
	"errors"
	"fmt"

	gosqlite "github.com/glebarez/go-sqlite"
	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/MarkoPoloResearchLab/gamification/pkg/ledger"
)

const (
	dialectPostgres       = "postgres"
	defaultMetadataJSON   = "{}"
	pgUniqueViolationCode = "23505"
	sqliteBusyCode        = 5
	sqliteLockedCode      = 6
	sqliteConstraintCode  = 19

	errorOperationStore  = "store"
	errorSubjectAward    = "award"
	errorSubjectBalance  = "balance"
	errorSubjectEntry    = "entry"
	errorSubjectLock     = "lock"
	errorSubjectProgress = "progress"
	errorSubjectRank     = "rank"
	errorSubjectReceipt  = "receipt"
	errorSubjectStreak   = "streak"
	errorSubjectTx       = "tx"
	errorCodeGet         = "get"
	errorCodeInsert      = "insert"
	errorCodeInvalid     = "invalid"
	errorCodeList        = "list"
	errorCodeLock        = "lock"
	errorCodeUpsert      = "upsert"
	errorCodeCommit      = "commit"
	errorCodeCount       = "count"
)

// Store implements ledger.Store using GORM.
type Store struct {
	db *gorm.DB
}

// New returns a Store backed by gorm.DB.
func New(db *gorm.DB) *Store {
	return &Store{db: db}
}

var _ ledger.Store = (*Store)(nil)

// WithTx executes fn within a transaction.
func (store *Store) WithTx(ctx context.Context, fn func(ctx context.Context, txStore ledger.Store) error) error {
	err := store.db.WithContext(ctx).Transaction(func(transaction *gorm.DB) error {
		return fn(ctx, &Store{db: transaction})
	})
	if err != nil && !isClassified(err) && (isUnavailable(err) || isUniqueViolation(err)) {
		return wrapStoreError(errorSubjectTx, errorCodeCommit, err)
	}
	return err
}

// LockUser takes a transaction-scoped advisory lock on PostgreSQL. SQLite serializes writers already.
func (store *Store) LockUser(ctx context.Context, userID ledger.UserID) error {
	if store.db.Dialector.Name() != dialectPostgres {
		return nil
	}
	err := store.db.WithContext(ctx).Exec("SELECT pg_advisory_xact_lock(hashtext(?))", userID.String()).Error
	if err != nil {
		return wrapStoreError(errorSubjectLock, errorCodeLock, err)
	}
	return nil
}

func (store *Store) InsertEntry(ctx context.Context, entry ledger.Entry) (ledger.Entry, error) {
	row := LedgerEntry{
		EntryID:        entry.EntryID.String(),
		UserID:         entry.UserID.String(),
		CurrencyKey:    entry.CurrencyKey.String(),
		Delta:          entry.Delta.Int64(),
		Reason:         entry.Reason,
		SourceType:     entry.SourceType.String(),
		SourceID:       entry.SourceID,
		IdempotencyKey: entry.IdempotencyKey.String(),
		EventKey:       entry.EventKey.String(),
		Metadata:       datatypesJSON(entry.Metadata.String()),
		CreatedUnixUTC: entry.CreatedUnixUTC,
	}
	if err := store.db.WithContext(ctx).Create(&row).Error; err != nil {
		return ledger.Entry{}, wrapStoreError(errorSubjectEntry, errorCodeInsert, err)
	}
	entry.Sequence = row.Sequence
	return entry, nil
}

func (store *Store) GetEntryByIdempotencyKey(ctx context.Context, userID ledger.UserID, idempotencyKey ledger.IdempotencyKey) (ledger.Entry, error) {
	var row LedgerEntry
	err := store.db.WithContext(ctx).
		Where("user_id = ? AND idempotency_key = ?", userID.String(), idempotencyKey.String()).
		Take(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ledger.Entry{}, ledger.ErrEntryNotFound
	}
	if err != nil {
		return ledger.Entry{}, wrapStoreError(errorSubjectEntry, errorCodeGet, err)
	}
	return mapEntry(row)
}

func (store *Store) ListEntries(ctx context.Context, query ledger.EntryQuery) ([]ledger.Entry, error) {
	statement := store.db.WithContext(ctx).Where("user_id = ?", query.UserID.String())
	if query.HasCursor() {
		statement = statement.Where("(created_unix_utc > ? OR (created_unix_utc = ? AND sequence > ?))", query.AfterUnixUTC, query.AfterUnixUTC, query.AfterSequence)
	}
	if query.CurrencyKey != nil {
		statement = statement.Where("currency_key = ?", query.CurrencyKey.String())
	}
	if query.Limit > 0 {
		statement = statement.Limit(query.Limit)
	}
	var rows []LedgerEntry
	if err := statement.Order("created_unix_utc ASC, sequence ASC").Find(&rows).Error; err != nil {
		return nil, wrapStoreError(errorSubjectEntry, errorCodeList, err)
	}
	return mapEntries(rows)
}

func (store *Store) ListEntriesByEvent(ctx context.Context, userID ledger.UserID, eventKey ledger.IdempotencyKey) ([]ledger.Entry, error) {
	var rows []LedgerEntry
	err := store.db.WithContext(ctx).
		Where("user_id = ? AND event_key = ?", userID.String(), eventKey.String()).
		Order("sequence ASC").
		Find(&rows).Error
	if err != nil {
		return nil, wrapStoreError(errorSubjectEntry, errorCodeList, err)
	}
	return mapEntries(rows)
}

func (store *Store) GetWalletBalance(ctx context.Context, userID ledger.UserID, currency ledger.CurrencyKey) (ledger.WalletBalance, error) {
	var row WalletBalance
	err := store.db.WithContext(ctx).
		Where("user_id = ? AND currency_key = ?", userID.String(), currency.String()).
		Take(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ledger.WalletBalance{UserID: userID, CurrencyKey: currency}, nil
	}
	if err != nil {
		return ledger.WalletBalance{}, wrapStoreError(errorSubjectBalance, errorCodeGet, err)
	}
	return ledger.WalletBalance{UserID: userID, CurrencyKey: currency, Balance: row.Balance, UpdatedUnixUTC: row.UpdatedUnixUTC}, nil
}

func (store *Store) ApplyWalletDelta(ctx context.Context, userID ledger.UserID, currency ledger.CurrencyKey, delta ledger.Delta, nowUnixUTC int64) (ledger.WalletBalance, error) {
	row := WalletBalance{UserID: userID.String(), CurrencyKey: currency.String(), Balance: delta.Int64(), UpdatedUnixUTC: nowUnixUTC}
	err := store.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "user_id"}, {Name: "currency_key"}},
			DoUpdates: clause.Assignments(map[string]interface{}{
				"balance":          gorm.Expr("wallet_balances.balance + excluded.balance"),
				"updated_unix_utc": gorm.Expr("excluded.updated_unix_utc"),
			}),
		}).
		Create(&row).Error
	if err != nil {
		return ledger.WalletBalance{}, wrapStoreError(errorSubjectBalance, errorCodeUpsert, err)
	}
	return store.GetWalletBalance(ctx, userID, currency)
}

func (store *Store) SetWalletBalance(ctx context.Context, userID ledger.UserID, currency ledger.CurrencyKey, balance int64, nowUnixUTC int64) (ledger.WalletBalance, error) {
	row := WalletBalance{UserID: userID.String(), CurrencyKey: currency.String(), Balance: balance, UpdatedUnixUTC: nowUnixUTC}
	err := store.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "user_id"}, {Name: "currency_key"}},
			DoUpdates: clause.AssignmentColumns([]string{"balance", "updated_unix_utc"}),
		}).
		Create(&row).Error
	if err != nil {
		return ledger.WalletBalance{}, wrapStoreError(errorSubjectBalance, errorCodeUpsert, err)
	}
	return ledger.WalletBalance{UserID: userID, CurrencyKey: currency, Balance: balance, UpdatedUnixUTC: nowUnixUTC}, nil
}

func (store *Store) ListWalletBalances(ctx context.Context, userID ledger.UserID) ([]ledger.WalletBalance, error) {
	var rows []WalletBalance
	err := store.db.WithContext(ctx).
		Where("user_id = ?", userID.String()).
		Order("currency_key ASC").
		Find(&rows).Error
	if err != nil {
		return nil, wrapStoreError(errorSubjectBalance, errorCodeList, err)
	}
	return mapBalances(rows)
}

func (store *Store) TopWalletBalances(ctx context.Context, currency ledger.CurrencyKey, limit int) ([]ledger.WalletBalance, error) {
	var rows []WalletBalance
	err := store.db.WithContext(ctx).
		Where("currency_key = ?", currency.String()).
		Order("balance DESC, user_id ASC").
		Limit(limit).
		Find(&rows).Error
	if err != nil {
		return nil, wrapStoreError(errorSubjectBalance, errorCodeList, err)
	}
	return mapBalances(rows)
}

func (store *Store) CountWalletBalancesAtLeast(ctx context.Context, currency ledger.CurrencyKey, minimum int64) (int64, error) {
	var count int64
	err := store.db.WithContext(ctx).
		Model(&WalletBalance{}).
		Where("currency_key = ? AND balance >= ?", currency.String(), minimum).
		Count(&count).Error
	if err != nil {
		return 0, wrapStoreError(errorSubjectBalance, errorCodeCount, err)
	}
	return count, nil
}

func (store *Store) InsertEventReceipt(ctx context.Context, receipt ledger.EventReceipt) error {
	row := EventReceipt{
		UserID:         receipt.UserID.String(),
		EventKey:       receipt.EventKey.String(),
		Kind:           receipt.Kind.String(),
		CreatedUnixUTC: receipt.CreatedUnixUTC,
	}
	if err := store.db.WithContext(ctx).Create(&row).Error; err != nil {
		return wrapStoreError(errorSubjectReceipt, errorCodeInsert, err)
	}
	return nil
}

func (store *Store) GetEventReceipt(ctx context.Context, userID ledger.UserID, eventKey ledger.IdempotencyKey) (ledger.EventReceipt, error) {
	var row EventReceipt
	err := store.db.WithContext(ctx).
		Where("user_id = ? AND event_key = ?", userID.String(), eventKey.String()).
		Take(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ledger.EventReceipt{}, ledger.ErrEventNotFound
	}
	if err != nil {
		return ledger.EventReceipt{}, wrapStoreError(errorSubjectReceipt, errorCodeGet, err)
	}
	kind, err := ledger.ParseEventKind(row.Kind)
	if err != nil {
		return ledger.EventReceipt{}, wrapStoreError(errorSubjectReceipt, errorCodeInvalid, err)
	}
	return ledger.EventReceipt{UserID: userID, EventKey: eventKey, Kind: kind, CreatedUnixUTC: row.CreatedUnixUTC}, nil
}

func (store *Store) IncrementBadgeProgress(ctx context.Context, userID ledger.UserID, badgeID ledger.BadgeID, nowUnixUTC int64) (ledger.BadgeProgress, error) {
	row := BadgeProgress{UserID: userID.String(), BadgeID: badgeID.Int64(), DrillsCompleted: 1, UpdatedUnixUTC: nowUnixUTC}
	err := store.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "user_id"}, {Name: "badge_id"}},
			DoUpdates: clause.Assignments(map[string]interface{}{
				"drills_completed": gorm.Expr("user_badge_progress.drills_completed + 1"),
				"updated_unix_utc": gorm.Expr("excluded.updated_unix_utc"),
			}),
		}).
		Create(&row).Error
	if err != nil {
		return ledger.BadgeProgress{}, wrapStoreError(errorSubjectProgress, errorCodeUpsert, err)
	}
	var stored BadgeProgress
	err = store.db.WithContext(ctx).
		Where("user_id = ? AND badge_id = ?", userID.String(), badgeID.Int64()).
		Take(&stored).Error
	if err != nil {
		return ledger.BadgeProgress{}, wrapStoreError(errorSubjectProgress, errorCodeGet, err)
	}
	return ledger.BadgeProgress{UserID: userID, BadgeID: badgeID, DrillsCompleted: stored.DrillsCompleted, UpdatedUnixUTC: stored.UpdatedUnixUTC}, nil
}

func (store *Store) ListBadgeProgress(ctx context.Context, userID ledger.UserID) ([]ledger.BadgeProgress, error) {
	var rows []BadgeProgress
	err := store.db.WithContext(ctx).
		Where("user_id = ?", userID.String()).
		Order("badge_id ASC").
		Find(&rows).Error
	if err != nil {
		return nil, wrapStoreError(errorSubjectProgress, errorCodeList, err)
	}
	progress := make([]ledger.BadgeProgress, 0, len(rows))
	for _, row := range rows {
		badgeID, err := ledger.NewBadgeID(row.BadgeID)
		if err != nil {
			return nil, wrapStoreError(errorSubjectProgress, errorCodeInvalid, err)
		}
		progress = append(progress, ledger.BadgeProgress{
			UserID:          userID,
			BadgeID:         badgeID,
			DrillsCompleted: row.DrillsCompleted,
			UpdatedUnixUTC:  row.UpdatedUnixUTC,
		})
	}
	return progress, nil
}

func (store *Store) InsertBadgeAward(ctx context.Context, award ledger.BadgeAward) error {
	row := BadgeAward{
		UserID:         award.UserID.String(),
		BadgeID:        award.BadgeID.Int64(),
		Earning:        award.Earning,
		EventKey:       award.EventKey.String(),
		AwardedUnixUTC: award.AwardedUnixUTC,
	}
	if award.SourceEntryID != nil {
		value := award.SourceEntryID.String()
		row.SourceEntryID = &value
	}
	if err := store.db.WithContext(ctx).Create(&row).Error; err != nil {
		return wrapStoreError(errorSubjectAward, errorCodeInsert, err)
	}
	return nil
}

func (store *Store) ListBadgeAwards(ctx context.Context, userID ledger.UserID) ([]ledger.BadgeAward, error) {
	var rows []BadgeAward
	err := store.db.WithContext(ctx).
		Where("user_id = ?", userID.String()).
		Order("awarded_unix_utc ASC, badge_id ASC, earning ASC").
		Find(&rows).Error
	if err != nil {
		return nil, wrapStoreError(errorSubjectAward, errorCodeList, err)
	}
	return mapAwards(rows)
}

func (store *Store) ListBadgeAwardsByEvent(ctx context.Context, userID ledger.UserID, eventKey ledger.IdempotencyKey) ([]ledger.BadgeAward, error) {
	var rows []BadgeAward
	err := store.db.WithContext(ctx).
		Where("user_id = ? AND event_key = ?", userID.String(), eventKey.String()).
		Order("awarded_unix_utc ASC, badge_id ASC, earning ASC").
		Find(&rows).Error
	if err != nil {
		return nil, wrapStoreError(errorSubjectAward, errorCodeList, err)
	}
	return mapAwards(rows)
}

func (store *Store) GetRankState(ctx context.Context, userID ledger.UserID, currency ledger.CurrencyKey) (ledger.RankState, error) {
	var row RankState
	err := store.db.WithContext(ctx).
		Where("user_id = ? AND currency_key = ?", userID.String(), currency.String()).
		Take(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ledger.RankState{UserID: userID, CurrencyKey: currency}, nil
	}
	if err != nil {
		return ledger.RankState{}, wrapStoreError(errorSubjectRank, errorCodeGet, err)
	}
	return ledger.RankState{UserID: userID, CurrencyKey: currency, RankOrder: row.RankOrder, UpdatedUnixUTC: row.UpdatedUnixUTC}, nil
}

func (store *Store) UpsertRankState(ctx context.Context, state ledger.RankState) error {
	row := RankState{
		UserID:         state.UserID.String(),
		CurrencyKey:    state.CurrencyKey.String(),
		RankOrder:      state.RankOrder,
		UpdatedUnixUTC: state.UpdatedUnixUTC,
	}
	err := store.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "user_id"}, {Name: "currency_key"}},
			DoUpdates: clause.AssignmentColumns([]string{"rank_order", "updated_unix_utc"}),
		}).
		Create(&row).Error
	if err != nil {
		return wrapStoreError(errorSubjectRank, errorCodeUpsert, err)
	}
	return nil
}

func (store *Store) InsertRankTransition(ctx context.Context, transition ledger.RankTransition) error {
	row := RankTransition{
		UserID:         transition.UserID.String(),
		CurrencyKey:    transition.CurrencyKey.String(),
		FromOrder:      transition.FromOrder,
		ToOrder:        transition.ToOrder,
		EventKey:       transition.EventKey.String(),
		CreatedUnixUTC: transition.CreatedUnixUTC,
	}
	if err := store.db.WithContext(ctx).Create(&row).Error; err != nil {
		return wrapStoreError(errorSubjectRank, errorCodeInsert, err)
	}
	return nil
}

func (store *Store) ListRankTransitionsByEvent(ctx context.Context, userID ledger.UserID, eventKey ledger.IdempotencyKey) ([]ledger.RankTransition, error) {
	var rows []RankTransition
	err := store.db.WithContext(ctx).
		Where("user_id = ? AND event_key = ?", userID.String(), eventKey.String()).
		Order("id ASC").
		Find(&rows).Error
	if err != nil {
		return nil, wrapStoreError(errorSubjectRank, errorCodeList, err)
	}
	transitions := make([]ledger.RankTransition, 0, len(rows))
	for _, row := range rows {
		currency, err := ledger.NewCurrencyKey(row.CurrencyKey)
		if err != nil {
			return nil, wrapStoreError(errorSubjectRank, errorCodeInvalid, err)
		}
		transitions = append(transitions, ledger.RankTransition{
			UserID:         userID,
			CurrencyKey:    currency,
			FromOrder:      row.FromOrder,
			ToOrder:        row.ToOrder,
			EventKey:       eventKey,
			CreatedUnixUTC: row.CreatedUnixUTC,
		})
	}
	return transitions, nil
}

func (store *Store) GetStreak(ctx context.Context, userID ledger.UserID) (ledger.StreakState, error) {
	var row UserStreak
	err := store.db.WithContext(ctx).Where("user_id = ?", userID.String()).Take(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ledger.StreakState{UserID: userID}, nil
	}
	if err != nil {
		return ledger.StreakState{}, wrapStoreError(errorSubjectStreak, errorCodeGet, err)
	}
	return ledger.StreakState{
		UserID:         userID,
		CurrentDays:    row.CurrentDays,
		LongestDays:    row.LongestDays,
		LastActiveDay:  row.LastActiveDay,
		UpdatedUnixUTC: row.UpdatedUnixUTC,
	}, nil
}

func (store *Store) UpsertStreak(ctx context.Context, state ledger.StreakState) error {
	row := UserStreak{
		UserID:         state.UserID.String(),
		CurrentDays:    state.CurrentDays,
		LongestDays:    state.LongestDays,
		LastActiveDay:  state.LastActiveDay,
		UpdatedUnixUTC: state.UpdatedUnixUTC,
	}
	err := store.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "user_id"}},
			DoUpdates: clause.AssignmentColumns([]string{"current_days", "longest_days", "last_active_day", "updated_unix_utc"}),
		}).
		Create(&row).Error
	if err != nil {
		return wrapStoreError(errorSubjectStreak, errorCodeUpsert, err)
	}
	return nil
}

// wrapStoreError attaches a stable code and folds driver failures into the ledger taxonomy.
func wrapStoreError(subject string, code string, err error) error {
	switch {
	case isClassified(err):
	case isUniqueViolation(err):
		err = fmt.Errorf("%w: %v", ledger.ErrConstraintViolation, err)
	case isUnavailable(err):
		err = fmt.Errorf("%w: %v", ledger.ErrUnavailable, err)
	}
	return ledger.WrapError(errorOperationStore, subject, code, err)
}

func isClassified(err error) bool {
	return errors.Is(err, ledger.ErrConstraintViolation) || errors.Is(err, ledger.ErrUnavailable)
}

func isUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == pgUniqueViolationCode
	}
	var sqliteErr *gosqlite.Error
	if errors.As(err, &sqliteErr) {
		return sqliteErr.Code()&0xFF == sqliteConstraintCode
	}
	return false
}

func isUnavailable(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) || errors.Is(err, driver.ErrBadConn) {
		return true
	}
	if pgconn.Timeout(err) {
		return true
	}
	var connectErr *pgconn.ConnectError
	if errors.As(err, &connectErr) {
		return true
	}
	var sqliteErr *gosqlite.Error
	if errors.As(err, &sqliteErr) {
		primary := sqliteErr.Code() & 0xFF
		return primary == sqliteBusyCode || primary == sqliteLockedCode
	}
	return false
}

func mapEntries(rows []LedgerEntry) ([]ledger.Entry, error) {
	entries := make([]ledger.Entry, 0, len(rows))
	for _, row := range rows {
		entry, err := mapEntry(row)
		if err != nil {
			return nil, err
		}
		entries = append(entries, entry)
	}
	return entries, nil
}

func mapEntry(row LedgerEntry) (ledger.Entry, error) {
	entry, err := parseEntry(row)
	if err != nil {
		return ledger.Entry{}, wrapStoreError(errorSubjectEntry, errorCodeInvalid, err)
	}
	return entry, nil
}

func parseEntry(row LedgerEntry) (ledger.Entry, error) {
	entryID, err := ledger.NewEntryID(row.EntryID)
	if err != nil {
		return ledger.Entry{}, err
	}
	userID, err := ledger.NewUserID(row.UserID)
	if err != nil {
		return ledger.Entry{}, err
	}
	currency, err := ledger.NewCurrencyKey(row.CurrencyKey)
	if err != nil {
		return ledger.Entry{}, err
	}
	delta, err := ledger.NewDelta(row.Delta)
	if err != nil {
		return ledger.Entry{}, err
	}
	sourceType, err := ledger.ParseSourceType(row.SourceType)
	if err != nil {
		return ledger.Entry{}, err
	}
	idempotencyKey, err := ledger.NewIdempotencyKey(row.IdempotencyKey)
	if err != nil {
		return ledger.Entry{}, err
	}
	eventKey, err := ledger.NewIdempotencyKey(row.EventKey)
	if err != nil {
		return ledger.Entry{}, err
	}
	metadata, err := ledger.NewMetadataJSON(string(row.Metadata))
	if err != nil {
		return ledger.Entry{}, err
	}
	return ledger.Entry{
		EntryID:        entryID,
		Sequence:       row.Sequence,
		UserID:         userID,
		CurrencyKey:    currency,
		Delta:          delta,
		Reason:         row.Reason,
		SourceType:     sourceType,
		SourceID:       row.SourceID,
		IdempotencyKey: idempotencyKey,
		EventKey:       eventKey,
		Metadata:       metadata,
		CreatedUnixUTC: row.CreatedUnixUTC,
	}, nil
}

func mapBalances(rows []WalletBalance) ([]ledger.WalletBalance, error) {
	balances := make([]ledger.WalletBalance, 0, len(rows))
	for _, row := range rows {
		userID, err := ledger.NewUserID(row.UserID)
		if err != nil {
			return nil, wrapStoreError(errorSubjectBalance, errorCodeInvalid, err)
		}
		currency, err := ledger.NewCurrencyKey(row.CurrencyKey)
		if err != nil {
			return nil, wrapStoreError(errorSubjectBalance, errorCodeInvalid, err)
		}
		balances = append(balances, ledger.WalletBalance{
			UserID:         userID,
			CurrencyKey:    currency,
			Balance:        row.Balance,
			UpdatedUnixUTC: row.UpdatedUnixUTC,
		})
	}
	return balances, nil
}

func mapAwards(rows []BadgeAward) ([]ledger.BadgeAward, error) {
	awards := make([]ledger.BadgeAward, 0, len(rows))
	for _, row := range rows {
		userID, err := ledger.NewUserID(row.UserID)
		if err != nil {
			return nil, wrapStoreError(errorSubjectAward, errorCodeInvalid, err)
		}
		badgeID, err := ledger.NewBadgeID(row.BadgeID)
		if err != nil {
			return nil, wrapStoreError(errorSubjectAward, errorCodeInvalid, err)
		}
		eventKey, err := ledger.NewIdempotencyKey(row.EventKey)
		if err != nil {
			return nil, wrapStoreError(errorSubjectAward, errorCodeInvalid, err)
		}
		award := ledger.BadgeAward{
			UserID:         userID,
			BadgeID:        badgeID,
			Earning:        row.Earning,
			EventKey:       eventKey,
			AwardedUnixUTC: row.AwardedUnixUTC,
		}
		if row.SourceEntryID != nil {
			entryID, err := ledger.NewEntryID(*row.SourceEntryID)
			if err != nil {
				return nil, wrapStoreError(errorSubjectAward, errorCodeInvalid, err)
			}
			award.SourceEntryID = &entryID
		}
		awards = append(awards, award)
	}
	return awards, nil
}

func datatypesJSON(raw string) datatypes.JSON {
	if raw == "" {
		return datatypes.JSON([]byte(defaultMetadataJSON))
	}
	return datatypes.JSON([]byte(raw))
}
