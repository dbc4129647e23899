package pgstore

import (
	"context"
	"errors"
	"os"
	"strconv"
	"testing"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/require"

	"github.com/MarkoPoloResearchLab/gamification/internal/catalogfile"
	"github.com/MarkoPoloResearchLab/gamification/pkg/ledger"
)

const postgresURLEnv = "AWARDS_TEST_POSTGRES_URL"

func openTestStore(test *testing.T) *Store {
	test.Helper()
	databaseURL := os.Getenv(postgresURLEnv)
	if databaseURL == "" {
		test.Skipf("%s not set", postgresURLEnv)
	}
	_, err := Migrate(databaseURL)
	require.NoError(test, err)
	pool, err := Open(context.Background(), databaseURL)
	require.NoError(test, err)
	test.Cleanup(pool.Close)
	return New(pool)
}

func uniqueUser(test *testing.T) ledger.UserID {
	test.Helper()
	userID, err := ledger.NewUserID("pg-" + uuid.NewString())
	require.NoError(test, err)
	return userID
}

func mustKey(test *testing.T, raw string) ledger.IdempotencyKey {
	test.Helper()
	key, err := ledger.NewIdempotencyKey(raw)
	require.NoError(test, err)
	return key
}

func TestServiceOverPostgres(test *testing.T) {
	store := openTestStore(test)
	ctx := context.Background()
	catalog, err := catalogfile.Default()
	require.NoError(test, err)
	clock := int64(1_700_000_000)
	service, err := ledger.NewService(store, catalog, func() int64 { clock++; return clock })
	require.NoError(test, err)

	player := uniqueUser(test)
	drillID, err := ledger.NewDrillID("lane-drill")
	require.NoError(test, err)
	seriesID, err := ledger.NewSeriesID("defense")
	require.NoError(test, err)

	var last ledger.AwardResult
	for index := 1; index <= 5; index++ {
		last, err = service.ProcessCompletion(ctx, ledger.CompletionEvent{
			UserID:         player,
			DrillID:        drillID,
			SeriesID:       seriesID,
			IdempotencyKey: mustKey(test, "evt-"+strconv.Itoa(index)),
		})
		require.NoError(test, err)
	}
	require.Len(test, last.BadgesAwarded, 1)
	require.Equal(test, ledger.BadgeID(3), last.BadgesAwarded[0].BadgeID)

	replay, err := service.ProcessCompletion(ctx, ledger.CompletionEvent{
		UserID:         player,
		DrillID:        drillID,
		SeriesID:       seriesID,
		IdempotencyKey: mustKey(test, "evt-5"),
	})
	require.NoError(test, err)
	require.True(test, replay.Duplicate)
	require.Len(test, replay.BadgesAwarded, 1)

	defense, err := ledger.NewCurrencyKey("defense_dollars")
	require.NoError(test, err)
	balance, err := service.GetBalance(ctx, player, defense)
	require.NoError(test, err)
	require.Equal(test, int64(12+4*11+25), balance.Balance, "first drill of the day earns 10 percent more")

	reconciled, err := service.Reconcile(ctx, player, defense)
	require.NoError(test, err)
	require.Zero(test, reconciled.Drift)
}

func TestStreakAndDistributionOverPostgres(test *testing.T) {
	store := openTestStore(test)
	ctx := context.Background()
	player := uniqueUser(test)

	empty, err := store.GetStreak(ctx, player)
	require.NoError(test, err)
	require.Zero(test, empty.CurrentDays)
	require.NoError(test, store.UpsertStreak(ctx, ledger.StreakState{UserID: player, CurrentDays: 3, LongestDays: 5, LastActiveDay: 19_675, UpdatedUnixUTC: 7}))
	stored, err := store.GetStreak(ctx, player)
	require.NoError(test, err)
	require.Equal(test, 3, stored.CurrentDays)
	require.Equal(test, 5, stored.LongestDays)

	currency, err := ledger.NewCurrencyKey("lax_credits")
	require.NoError(test, err)
	_, err = store.ApplyWalletDelta(ctx, player, currency, 120, 1)
	require.NoError(test, err)
	above, err := store.CountWalletBalancesAtLeast(ctx, currency, 100)
	require.NoError(test, err)
	require.GreaterOrEqual(test, above, int64(1))
}

func TestListEntriesFirstPageIncludesNegativeTimestamps(test *testing.T) {
	store := openTestStore(test)
	ctx := context.Background()
	player := uniqueUser(test)
	currency, err := ledger.NewCurrencyKey("lax_credits")
	require.NoError(test, err)
	entryID, err := ledger.NewEntryID(uuid.NewString())
	require.NoError(test, err)
	_, err = store.InsertEntry(ctx, ledger.Entry{
		EntryID:        entryID,
		UserID:         player,
		CurrencyKey:    currency,
		Delta:          5,
		Reason:         "backfill",
		SourceType:     ledger.SourceManualCredit,
		SourceID:       "evt-early",
		IdempotencyKey: mustKey(test, "manual_credit:evt-early:lax_credits"),
		EventKey:       mustKey(test, "evt-early"),
		CreatedUnixUTC: -3_600,
	})
	require.NoError(test, err)

	entries, err := store.ListEntries(ctx, ledger.EntryQuery{UserID: player})
	require.NoError(test, err)
	require.Len(test, entries, 1)
	require.Equal(test, int64(-3_600), entries[0].CreatedUnixUTC)
}

func TestReceiptConflictIsConstraintViolation(test *testing.T) {
	store := openTestStore(test)
	ctx := context.Background()
	receipt := ledger.EventReceipt{UserID: uniqueUser(test), EventKey: mustKey(test, "evt-1"), Kind: ledger.EventManualCredit, CreatedUnixUTC: 1}
	require.NoError(test, store.InsertEventReceipt(ctx, receipt))
	require.ErrorIs(test, store.InsertEventReceipt(ctx, receipt), ledger.ErrConstraintViolation)
}

func TestClassifiesPgErrors(test *testing.T) {
	test.Parallel()
	unique := wrapStoreError(errorSubjectEntry, errorCodeInsert, &pgconn.PgError{Code: pgUniqueViolationCode})
	require.ErrorIs(test, unique, ledger.ErrConstraintViolation)
	require.ErrorIs(test, wrapStoreError(errorSubjectEntry, errorCodeGet, context.Canceled), ledger.ErrUnavailable)
	plain := wrapStoreError(errorSubjectEntry, errorCodeGet, errors.New("syntax"))
	require.False(test, ledger.IsRetriable(plain))
}
