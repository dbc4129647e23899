package pgstore

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/MarkoPoloResearchLab/gamification/pkg/ledger"
)

const (
	pgUniqueViolationCode = "23505"

	errorOperationStore     = "store"
	errorSubjectAward       = "award"
	errorSubjectBalance     = "balance"
	errorSubjectEntry       = "entry"
	errorSubjectLock        = "lock"
	errorSubjectProgress    = "progress"
	errorSubjectRank        = "rank"
	errorSubjectReceipt     = "receipt"
	errorSubjectStreak      = "streak"
	errorSubjectTransaction = "transaction"
	errorCodeBegin          = "begin"
	errorCodeCommit         = "commit"
	errorCodeCount          = "count"
	errorCodeGet            = "get"
	errorCodeInsert         = "insert"
	errorCodeInvalid        = "invalid"
	errorCodeList           = "list"
	errorCodeLock           = "lock"
	errorCodeUpsert         = "upsert"

	entryColumns = `sequence, entry_id, user_id, currency_key, delta, reason, source_type, source_id,
		idempotency_key, event_key, metadata::text, created_unix_utc`

	sqlLockUser = `select pg_advisory_xact_lock(hashtext($1))`

	sqlInsertEntry = `
		insert into ledger_entries(
			entry_id, user_id, currency_key, delta, reason, source_type, source_id,
			idempotency_key, event_key, metadata, created_unix_utc
		)
		values($1, $2, $3, $4, $5, $6, $7, $8, $9, coalesce(nullif($10,''),'{}')::jsonb, $11)
		returning sequence
	`

	sqlSelectEntryByKey = `select ` + entryColumns + ` from ledger_entries
		where user_id = $1 and idempotency_key = $2`

	sqlListEntries = `select ` + entryColumns + ` from ledger_entries
		where user_id = $1
		and ($2 = '' or currency_key = $2)
		and ($4::bigint = 0 or created_unix_utc > $3 or (created_unix_utc = $3 and sequence > $4))
		order by created_unix_utc asc, sequence asc
		limit nullif($5::int, 0)`

	sqlListEntriesByEvent = `select ` + entryColumns + ` from ledger_entries
		where user_id = $1 and event_key = $2
		order by sequence asc`

	sqlSelectBalance = `
		select balance, updated_unix_utc from wallet_balances
		where user_id = $1 and currency_key = $2
	`

	sqlApplyWalletDelta = `
		insert into wallet_balances(user_id, currency_key, balance, updated_unix_utc)
		values($1, $2, $3, $4)
		on conflict (user_id, currency_key) do update
		set balance = wallet_balances.balance + excluded.balance, updated_unix_utc = excluded.updated_unix_utc
		returning balance, updated_unix_utc
	`

	sqlSetWalletBalance = `
		insert into wallet_balances(user_id, currency_key, balance, updated_unix_utc)
		values($1, $2, $3, $4)
		on conflict (user_id, currency_key) do update
		set balance = excluded.balance, updated_unix_utc = excluded.updated_unix_utc
	`

	sqlListBalances = `
		select user_id, currency_key, balance, updated_unix_utc from wallet_balances
		where user_id = $1
		order by currency_key asc
	`

	sqlTopBalances = `
		select user_id, currency_key, balance, updated_unix_utc from wallet_balances
		where currency_key = $1
		order by balance desc, user_id asc
		limit $2
	`

	sqlInsertReceipt = `
		insert into event_receipts(user_id, event_key, kind, created_unix_utc)
		values($1, $2, $3, $4)
	`

	sqlSelectReceipt = `
		select kind, created_unix_utc from event_receipts
		where user_id = $1 and event_key = $2
	`

	sqlIncrementProgress = `
		insert into user_badge_progress(user_id, badge_id, drills_completed, updated_unix_utc)
		values($1, $2, 1, $3)
		on conflict (user_id, badge_id) do update
		set drills_completed = user_badge_progress.drills_completed + 1, updated_unix_utc = excluded.updated_unix_utc
		returning drills_completed, updated_unix_utc
	`

	sqlListProgress = `
		select badge_id, drills_completed, updated_unix_utc from user_badge_progress
		where user_id = $1
		order by badge_id asc
	`

	sqlInsertAward = `
		insert into user_badge_awards(user_id, badge_id, earning, event_key, source_entry_id, awarded_unix_utc)
		values($1, $2, $3, $4, nullif($5,''), $6)
	`

	sqlListAwards = `
		select badge_id, earning, event_key, coalesce(source_entry_id,''), awarded_unix_utc from user_badge_awards
		where user_id = $1
		order by awarded_unix_utc asc, badge_id asc, earning asc
	`

	sqlListAwardsByEvent = `
		select badge_id, earning, event_key, coalesce(source_entry_id,''), awarded_unix_utc from user_badge_awards
		where user_id = $1 and event_key = $2
		order by awarded_unix_utc asc, badge_id asc, earning asc
	`

	sqlCountBalancesAtLeast = `
		select count(*) from wallet_balances
		where currency_key = $1 and balance >= $2
	`

	sqlSelectStreak = `
		select current_days, longest_days, last_active_day, updated_unix_utc from user_streaks
		where user_id = $1
	`

	sqlUpsertStreak = `
		insert into user_streaks(user_id, current_days, longest_days, last_active_day, updated_unix_utc)
		values($1, $2, $3, $4, $5)
		on conflict (user_id) do update
		set current_days = excluded.current_days,
			longest_days = excluded.longest_days,
			last_active_day = excluded.last_active_day,
			updated_unix_utc = excluded.updated_unix_utc
	`

	sqlSelectRankState = `
		select rank_order, updated_unix_utc from user_rank_state
		where user_id = $1 and currency_key = $2
	`

	sqlUpsertRankState = `
		insert into user_rank_state(user_id, currency_key, rank_order, updated_unix_utc)
		values($1, $2, $3, $4)
		on conflict (user_id, currency_key) do update
		set rank_order = excluded.rank_order, updated_unix_utc = excluded.updated_unix_utc
	`

	sqlInsertRankTransition = `
		insert into rank_transitions(user_id, currency_key, from_order, to_order, event_key, created_unix_utc)
		values($1, $2, $3, $4, $5, $6)
	`

	sqlListRankTransitionsByEvent = `
		select currency_key, from_order, to_order, created_unix_utc from rank_transitions
		where user_id = $1 and event_key = $2
		order by id asc
	`
)

// querier is satisfied by both the pool and an open transaction.
type querier interface {
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, arguments ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, arguments ...any) pgx.Row
}

// Store implements ledger.Store using a pgx connection pool. Inside WithTx the same type runs on the transaction.
type Store struct {
	pool *pgxpool.Pool
	db   querier
}

// New returns a Store backed by a pgx pool.
func New(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool, db: pool}
}

var _ ledger.Store = (*Store)(nil)

// Open connects a pool and verifies it answers.
func Open(ctx context.Context, databaseURL string) (*pgxpool.Pool, error) {
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, fmt.Errorf("open pgx pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping pgx pool: %w", err)
	}
	return pool, nil
}

func (store *Store) WithTx(ctx context.Context, fn func(ctx context.Context, txStore ledger.Store) error) error {
	if store.pool == nil {
		return fn(ctx, store)
	}
	tx, err := store.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return wrapStoreError(errorSubjectTransaction, errorCodeBegin, err)
	}
	if err := fn(ctx, &Store{db: tx}); err != nil {
		_ = tx.Rollback(ctx)
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		return wrapStoreError(errorSubjectTransaction, errorCodeCommit, err)
	}
	return nil
}

func (store *Store) LockUser(ctx context.Context, userID ledger.UserID) error {
	if _, err := store.db.Exec(ctx, sqlLockUser, userID.String()); err != nil {
		return wrapStoreError(errorSubjectLock, errorCodeLock, err)
	}
	return nil
}

func (store *Store) InsertEntry(ctx context.Context, entry ledger.Entry) (ledger.Entry, error) {
	err := store.db.QueryRow(ctx, sqlInsertEntry,
		entry.EntryID.String(),
		entry.UserID.String(),
		entry.CurrencyKey.String(),
		entry.Delta.Int64(),
		entry.Reason,
		entry.SourceType.String(),
		entry.SourceID,
		entry.IdempotencyKey.String(),
		entry.EventKey.String(),
		entry.Metadata.String(),
		entry.CreatedUnixUTC,
	).Scan(&entry.Sequence)
	if err != nil {
		return ledger.Entry{}, wrapStoreError(errorSubjectEntry, errorCodeInsert, err)
	}
	return entry, nil
}

func (store *Store) GetEntryByIdempotencyKey(ctx context.Context, userID ledger.UserID, idempotencyKey ledger.IdempotencyKey) (ledger.Entry, error) {
	rows, err := store.db.Query(ctx, sqlSelectEntryByKey, userID.String(), idempotencyKey.String())
	if err != nil {
		return ledger.Entry{}, wrapStoreError(errorSubjectEntry, errorCodeGet, err)
	}
	entries, err := scanEntries(rows)
	if err != nil {
		return ledger.Entry{}, wrapStoreError(errorSubjectEntry, errorCodeGet, err)
	}
	if len(entries) == 0 {
		return ledger.Entry{}, ledger.ErrEntryNotFound
	}
	return entries[0], nil
}

func (store *Store) ListEntries(ctx context.Context, query ledger.EntryQuery) ([]ledger.Entry, error) {
	currency := ""
	if query.CurrencyKey != nil {
		currency = query.CurrencyKey.String()
	}
	rows, err := store.db.Query(ctx, sqlListEntries, query.UserID.String(), currency, query.AfterUnixUTC, query.AfterSequence, query.Limit)
	if err != nil {
		return nil, wrapStoreError(errorSubjectEntry, errorCodeList, err)
	}
	entries, err := scanEntries(rows)
	if err != nil {
		return nil, wrapStoreError(errorSubjectEntry, errorCodeList, err)
	}
	return entries, nil
}

func (store *Store) ListEntriesByEvent(ctx context.Context, userID ledger.UserID, eventKey ledger.IdempotencyKey) ([]ledger.Entry, error) {
	rows, err := store.db.Query(ctx, sqlListEntriesByEvent, userID.String(), eventKey.String())
	if err != nil {
		return nil, wrapStoreError(errorSubjectEntry, errorCodeList, err)
	}
	entries, err := scanEntries(rows)
	if err != nil {
		return nil, wrapStoreError(errorSubjectEntry, errorCodeList, err)
	}
	return entries, nil
}

func (store *Store) GetWalletBalance(ctx context.Context, userID ledger.UserID, currency ledger.CurrencyKey) (ledger.WalletBalance, error) {
	balance := ledger.WalletBalance{UserID: userID, CurrencyKey: currency}
	err := store.db.QueryRow(ctx, sqlSelectBalance, userID.String(), currency.String()).Scan(&balance.Balance, &balance.UpdatedUnixUTC)
	if errors.Is(err, pgx.ErrNoRows) {
		return balance, nil
	}
	if err != nil {
		return ledger.WalletBalance{}, wrapStoreError(errorSubjectBalance, errorCodeGet, err)
	}
	return balance, nil
}

func (store *Store) ApplyWalletDelta(ctx context.Context, userID ledger.UserID, currency ledger.CurrencyKey, delta ledger.Delta, nowUnixUTC int64) (ledger.WalletBalance, error) {
	balance := ledger.WalletBalance{UserID: userID, CurrencyKey: currency}
	err := store.db.QueryRow(ctx, sqlApplyWalletDelta, userID.String(), currency.String(), delta.Int64(), nowUnixUTC).
		Scan(&balance.Balance, &balance.UpdatedUnixUTC)
	if err != nil {
		return ledger.WalletBalance{}, wrapStoreError(errorSubjectBalance, errorCodeUpsert, err)
	}
	return balance, nil
}

func (store *Store) SetWalletBalance(ctx context.Context, userID ledger.UserID, currency ledger.CurrencyKey, balance int64, nowUnixUTC int64) (ledger.WalletBalance, error) {
	if _, err := store.db.Exec(ctx, sqlSetWalletBalance, userID.String(), currency.String(), balance, nowUnixUTC); err != nil {
		return ledger.WalletBalance{}, wrapStoreError(errorSubjectBalance, errorCodeUpsert, err)
	}
	return ledger.WalletBalance{UserID: userID, CurrencyKey: currency, Balance: balance, UpdatedUnixUTC: nowUnixUTC}, nil
}

func (store *Store) ListWalletBalances(ctx context.Context, userID ledger.UserID) ([]ledger.WalletBalance, error) {
	rows, err := store.db.Query(ctx, sqlListBalances, userID.String())
	if err != nil {
		return nil, wrapStoreError(errorSubjectBalance, errorCodeList, err)
	}
	balances, err := scanBalances(rows)
	if err != nil {
		return nil, wrapStoreError(errorSubjectBalance, errorCodeList, err)
	}
	return balances, nil
}

func (store *Store) TopWalletBalances(ctx context.Context, currency ledger.CurrencyKey, limit int) ([]ledger.WalletBalance, error) {
	rows, err := store.db.Query(ctx, sqlTopBalances, currency.String(), limit)
	if err != nil {
		return nil, wrapStoreError(errorSubjectBalance, errorCodeList, err)
	}
	balances, err := scanBalances(rows)
	if err != nil {
		return nil, wrapStoreError(errorSubjectBalance, errorCodeList, err)
	}
	return balances, nil
}

func (store *Store) CountWalletBalancesAtLeast(ctx context.Context, currency ledger.CurrencyKey, minimum int64) (int64, error) {
	var count int64
	if err := store.db.QueryRow(ctx, sqlCountBalancesAtLeast, currency.String(), minimum).Scan(&count); err != nil {
		return 0, wrapStoreError(errorSubjectBalance, errorCodeCount, err)
	}
	return count, nil
}

func (store *Store) InsertEventReceipt(ctx context.Context, receipt ledger.EventReceipt) error {
	_, err := store.db.Exec(ctx, sqlInsertReceipt, receipt.UserID.String(), receipt.EventKey.String(), receipt.Kind.String(), receipt.CreatedUnixUTC)
	if err != nil {
		return wrapStoreError(errorSubjectReceipt, errorCodeInsert, err)
	}
	return nil
}

func (store *Store) GetEventReceipt(ctx context.Context, userID ledger.UserID, eventKey ledger.IdempotencyKey) (ledger.EventReceipt, error) {
	var kindValue string
	receipt := ledger.EventReceipt{UserID: userID, EventKey: eventKey}
	err := store.db.QueryRow(ctx, sqlSelectReceipt, userID.String(), eventKey.String()).Scan(&kindValue, &receipt.CreatedUnixUTC)
	if errors.Is(err, pgx.ErrNoRows) {
		return ledger.EventReceipt{}, ledger.ErrEventNotFound
	}
	if err != nil {
		return ledger.EventReceipt{}, wrapStoreError(errorSubjectReceipt, errorCodeGet, err)
	}
	kind, err := ledger.ParseEventKind(kindValue)
	if err != nil {
		return ledger.EventReceipt{}, wrapStoreError(errorSubjectReceipt, errorCodeInvalid, err)
	}
	receipt.Kind = kind
	return receipt, nil
}

func (store *Store) IncrementBadgeProgress(ctx context.Context, userID ledger.UserID, badgeID ledger.BadgeID, nowUnixUTC int64) (ledger.BadgeProgress, error) {
	progress := ledger.BadgeProgress{UserID: userID, BadgeID: badgeID}
	err := store.db.QueryRow(ctx, sqlIncrementProgress, userID.String(), badgeID.Int64(), nowUnixUTC).
		Scan(&progress.DrillsCompleted, &progress.UpdatedUnixUTC)
	if err != nil {
		return ledger.BadgeProgress{}, wrapStoreError(errorSubjectProgress, errorCodeUpsert, err)
	}
	return progress, nil
}

func (store *Store) ListBadgeProgress(ctx context.Context, userID ledger.UserID) ([]ledger.BadgeProgress, error) {
	rows, err := store.db.Query(ctx, sqlListProgress, userID.String())
	if err != nil {
		return nil, wrapStoreError(errorSubjectProgress, errorCodeList, err)
	}
	defer rows.Close()
	progress := make([]ledger.BadgeProgress, 0, 8)
	for rows.Next() {
		var (
			badgeValue int64
			row        = ledger.BadgeProgress{UserID: userID}
		)
		if err := rows.Scan(&badgeValue, &row.DrillsCompleted, &row.UpdatedUnixUTC); err != nil {
			return nil, wrapStoreError(errorSubjectProgress, errorCodeList, err)
		}
		badgeID, err := ledger.NewBadgeID(badgeValue)
		if err != nil {
			return nil, wrapStoreError(errorSubjectProgress, errorCodeInvalid, err)
		}
		row.BadgeID = badgeID
		progress = append(progress, row)
	}
	if err := rows.Err(); err != nil {
		return nil, wrapStoreError(errorSubjectProgress, errorCodeList, err)
	}
	return progress, nil
}

func (store *Store) InsertBadgeAward(ctx context.Context, award ledger.BadgeAward) error {
	sourceEntryID := ""
	if award.SourceEntryID != nil {
		sourceEntryID = award.SourceEntryID.String()
	}
	_, err := store.db.Exec(ctx, sqlInsertAward,
		award.UserID.String(),
		award.BadgeID.Int64(),
		award.Earning,
		award.EventKey.String(),
		sourceEntryID,
		award.AwardedUnixUTC,
	)
	if err != nil {
		return wrapStoreError(errorSubjectAward, errorCodeInsert, err)
	}
	return nil
}

func (store *Store) ListBadgeAwards(ctx context.Context, userID ledger.UserID) ([]ledger.BadgeAward, error) {
	rows, err := store.db.Query(ctx, sqlListAwards, userID.String())
	if err != nil {
		return nil, wrapStoreError(errorSubjectAward, errorCodeList, err)
	}
	awards, err := scanAwards(rows, userID)
	if err != nil {
		return nil, wrapStoreError(errorSubjectAward, errorCodeList, err)
	}
	return awards, nil
}

func (store *Store) ListBadgeAwardsByEvent(ctx context.Context, userID ledger.UserID, eventKey ledger.IdempotencyKey) ([]ledger.BadgeAward, error) {
	rows, err := store.db.Query(ctx, sqlListAwardsByEvent, userID.String(), eventKey.String())
	if err != nil {
		return nil, wrapStoreError(errorSubjectAward, errorCodeList, err)
	}
	awards, err := scanAwards(rows, userID)
	if err != nil {
		return nil, wrapStoreError(errorSubjectAward, errorCodeList, err)
	}
	return awards, nil
}

func (store *Store) GetStreak(ctx context.Context, userID ledger.UserID) (ledger.StreakState, error) {
	state := ledger.StreakState{UserID: userID}
	err := store.db.QueryRow(ctx, sqlSelectStreak, userID.String()).
		Scan(&state.CurrentDays, &state.LongestDays, &state.LastActiveDay, &state.UpdatedUnixUTC)
	if errors.Is(err, pgx.ErrNoRows) {
		return state, nil
	}
	if err != nil {
		return ledger.StreakState{}, wrapStoreError(errorSubjectStreak, errorCodeGet, err)
	}
	return state, nil
}

func (store *Store) UpsertStreak(ctx context.Context, state ledger.StreakState) error {
	_, err := store.db.Exec(ctx, sqlUpsertStreak, state.UserID.String(), state.CurrentDays, state.LongestDays, state.LastActiveDay, state.UpdatedUnixUTC)
	if err != nil {
		return wrapStoreError(errorSubjectStreak, errorCodeUpsert, err)
	}
	return nil
}

func (store *Store) GetRankState(ctx context.Context, userID ledger.UserID, currency ledger.CurrencyKey) (ledger.RankState, error) {
	state := ledger.RankState{UserID: userID, CurrencyKey: currency}
	err := store.db.QueryRow(ctx, sqlSelectRankState, userID.String(), currency.String()).Scan(&state.RankOrder, &state.UpdatedUnixUTC)
	if errors.Is(err, pgx.ErrNoRows) {
		return state, nil
	}
	if err != nil {
		return ledger.RankState{}, wrapStoreError(errorSubjectRank, errorCodeGet, err)
	}
	return state, nil
}

func (store *Store) UpsertRankState(ctx context.Context, state ledger.RankState) error {
	_, err := store.db.Exec(ctx, sqlUpsertRankState, state.UserID.String(), state.CurrencyKey.String(), state.RankOrder, state.UpdatedUnixUTC)
	if err != nil {
		return wrapStoreError(errorSubjectRank, errorCodeUpsert, err)
	}
	return nil
}

func (store *Store) InsertRankTransition(ctx context.Context, transition ledger.RankTransition) error {
	_, err := store.db.Exec(ctx, sqlInsertRankTransition,
		transition.UserID.String(),
		transition.CurrencyKey.String(),
		transition.FromOrder,
		transition.ToOrder,
		transition.EventKey.String(),
		transition.CreatedUnixUTC,
	)
	if err != nil {
		return wrapStoreError(errorSubjectRank, errorCodeInsert, err)
	}
	return nil
}

func (store *Store) ListRankTransitionsByEvent(ctx context.Context, userID ledger.UserID, eventKey ledger.IdempotencyKey) ([]ledger.RankTransition, error) {
	rows, err := store.db.Query(ctx, sqlListRankTransitionsByEvent, userID.String(), eventKey.String())
	if err != nil {
		return nil, wrapStoreError(errorSubjectRank, errorCodeList, err)
	}
	defer rows.Close()
	transitions := make([]ledger.RankTransition, 0, 2)
	for rows.Next() {
		var currencyValue string
		transition := ledger.RankTransition{UserID: userID, EventKey: eventKey}
		if err := rows.Scan(&currencyValue, &transition.FromOrder, &transition.ToOrder, &transition.CreatedUnixUTC); err != nil {
			return nil, wrapStoreError(errorSubjectRank, errorCodeList, err)
		}
		currency, err := ledger.NewCurrencyKey(currencyValue)
		if err != nil {
			return nil, wrapStoreError(errorSubjectRank, errorCodeInvalid, err)
		}
		transition.CurrencyKey = currency
		transitions = append(transitions, transition)
	}
	if err := rows.Err(); err != nil {
		return nil, wrapStoreError(errorSubjectRank, errorCodeList, err)
	}
	return transitions, nil
}

func scanEntries(rows pgx.Rows) ([]ledger.Entry, error) {
	defer rows.Close()
	entries := make([]ledger.Entry, 0, 32)
	for rows.Next() {
		var (
			sequence         int64
			entryIDValue     string
			userIDValue      string
			currencyValue    string
			deltaValue       int64
			reason           string
			sourceTypeValue  string
			sourceID         string
			idempotencyValue string
			eventKeyValue    string
			metadataValue    string
			createdUnixUTC   int64
		)
		if err := rows.Scan(
			&sequence,
			&entryIDValue,
			&userIDValue,
			&currencyValue,
			&deltaValue,
			&reason,
			&sourceTypeValue,
			&sourceID,
			&idempotencyValue,
			&eventKeyValue,
			&metadataValue,
			&createdUnixUTC,
		); err != nil {
			return nil, err
		}
		entryID, err := ledger.NewEntryID(entryIDValue)
		if err != nil {
			return nil, err
		}
		userID, err := ledger.NewUserID(userIDValue)
		if err != nil {
			return nil, err
		}
		currency, err := ledger.NewCurrencyKey(currencyValue)
		if err != nil {
			return nil, err
		}
		delta, err := ledger.NewDelta(deltaValue)
		if err != nil {
			return nil, err
		}
		sourceType, err := ledger.ParseSourceType(sourceTypeValue)
		if err != nil {
			return nil, err
		}
		idempotencyKey, err := ledger.NewIdempotencyKey(idempotencyValue)
		if err != nil {
			return nil, err
		}
		eventKey, err := ledger.NewIdempotencyKey(eventKeyValue)
		if err != nil {
			return nil, err
		}
		metadata, err := ledger.NewMetadataJSON(metadataValue)
		if err != nil {
			return nil, err
		}
		entries = append(entries, ledger.Entry{
			EntryID:        entryID,
			Sequence:       sequence,
			UserID:         userID,
			CurrencyKey:    currency,
			Delta:          delta,
			Reason:         reason,
			SourceType:     sourceType,
			SourceID:       sourceID,
			IdempotencyKey: idempotencyKey,
			EventKey:       eventKey,
			Metadata:       metadata,
			CreatedUnixUTC: createdUnixUTC,
		})
	}
	return entries, rows.Err()
}

func scanBalances(rows pgx.Rows) ([]ledger.WalletBalance, error) {
	defer rows.Close()
	balances := make([]ledger.WalletBalance, 0, 8)
	for rows.Next() {
		var userValue, currencyValue string
		var balance ledger.WalletBalance
		if err := rows.Scan(&userValue, &currencyValue, &balance.Balance, &balance.UpdatedUnixUTC); err != nil {
			return nil, err
		}
		userID, err := ledger.NewUserID(userValue)
		if err != nil {
			return nil, err
		}
		currency, err := ledger.NewCurrencyKey(currencyValue)
		if err != nil {
			return nil, err
		}
		balance.UserID = userID
		balance.CurrencyKey = currency
		balances = append(balances, balance)
	}
	return balances, rows.Err()
}

func scanAwards(rows pgx.Rows, userID ledger.UserID) ([]ledger.BadgeAward, error) {
	defer rows.Close()
	awards := make([]ledger.BadgeAward, 0, 4)
	for rows.Next() {
		var (
			badgeValue    int64
			eventValue    string
			sourceEntryID string
			award         = ledger.BadgeAward{UserID: userID}
		)
		if err := rows.Scan(&badgeValue, &award.Earning, &eventValue, &sourceEntryID, &award.AwardedUnixUTC); err != nil {
			return nil, err
		}
		badgeID, err := ledger.NewBadgeID(badgeValue)
		if err != nil {
			return nil, err
		}
		eventKey, err := ledger.NewIdempotencyKey(eventValue)
		if err != nil {
			return nil, err
		}
		award.BadgeID = badgeID
		award.EventKey = eventKey
		if sourceEntryID != "" {
			entryID, err := ledger.NewEntryID(sourceEntryID)
			if err != nil {
				return nil, err
			}
			award.SourceEntryID = &entryID
		}
		awards = append(awards, award)
	}
	return awards, rows.Err()
}

// wrapStoreError attaches a stable code and folds pgx failures into the ledger taxonomy.
func wrapStoreError(subject string, code string, err error) error {
	switch {
	case errors.Is(err, ledger.ErrConstraintViolation), errors.Is(err, ledger.ErrUnavailable):
	case isUniqueViolation(err):
		err = fmt.Errorf("%w: %v", ledger.ErrConstraintViolation, err)
	case isUnavailable(err):
		err = fmt.Errorf("%w: %v", ledger.ErrUnavailable, err)
	}
	return ledger.WrapError(errorOperationStore, subject, code, err)
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolationCode
}

func isUnavailable(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) || pgconn.Timeout(err) {
		return true
	}
	var connectErr *pgconn.ConnectError
	if errors.As(err, &connectErr) {
		return true
	}
	return errors.Is(err, pgx.ErrTxClosed)
}
