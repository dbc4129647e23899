package grpcserver

import (
	"context"
	"net"
	"path/filepath"
	"sync/atomic"
	"testing"

	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/status"
	"google.golang.org/grpc/test/bufconn"
	"gorm.io/gorm"

	awardsv1 "github.com/MarkoPoloResearchLab/gamification/api/awards/v1"
	"github.com/MarkoPoloResearchLab/gamification/internal/catalogfile"
	"github.com/MarkoPoloResearchLab/gamification/internal/store/gormstore"
	"github.com/MarkoPoloResearchLab/gamification/pkg/ledger"
)

const bufconnSize = 1 << 20

func startAwardClient(test *testing.T) *awardsv1.AwardServiceClient {
	test.Helper()
	path := filepath.Join(test.TempDir(), "awards.db")
	db, err := gorm.Open(sqlite.Open(path+"?_pragma=busy_timeout(5000)"), &gorm.Config{})
	require.NoError(test, err)
	sqlDB, err := db.DB()
	require.NoError(test, err)
	sqlDB.SetMaxOpenConns(1)
	require.NoError(test, gormstore.AutoMigrate(db))

	catalog, err := catalogfile.Default()
	require.NoError(test, err)
	var ticks atomic.Int64
	ticks.Store(1_700_000_000)
	clock := func() int64 { return ticks.Add(1) }
	service, err := ledger.NewService(gormstore.New(db), catalog, clock)
	require.NoError(test, err)

	listener := bufconn.Listen(bufconnSize)
	grpcServer := grpc.NewServer()
	awardsv1.RegisterAwardServiceServer(grpcServer, NewAwardServiceServer(service))
	go func() {
		if serveErr := grpcServer.Serve(listener); serveErr != nil {
			test.Logf("gRPC server error: %v", serveErr)
		}
	}()

	dialer := func(ctx context.Context, _ string) (net.Conn, error) {
		return listener.DialContext(ctx)
	}
	conn, err := grpc.NewClient("passthrough:///bufnet", grpc.WithContextDialer(dialer), grpc.WithTransportCredentials(insecure.NewCredentials()))
	require.NoError(test, err)
	test.Cleanup(func() {
		grpcServer.Stop()
		_ = conn.Close()
		_ = sqlDB.Close()
	})
	return awardsv1.NewAwardServiceClient(conn)
}

func requireCode(test *testing.T, err error, code codes.Code, reason string) {
	test.Helper()
	require.Error(test, err)
	statusValue, ok := status.FromError(err)
	require.True(test, ok, "expected a gRPC status, got %v", err)
	require.Equal(test, code, statusValue.Code())
	require.Equal(test, reason, statusValue.Message())
}

func TestCompletionFlowOverGRPC(test *testing.T) {
	test.Parallel()
	client := startAwardClient(test)
	ctx := context.Background()

	var last *awardsv1.AwardResponse
	for index := range 5 {
		response, err := client.ProcessCompletion(ctx, &awardsv1.CompletionRequest{
			UserId:         "user-1",
			DrillId:        "drill-attack",
			SeriesId:       "attack",
			IdempotencyKey: "completion-" + string(rune('a'+index)),
		})
		require.NoError(test, err)
		require.False(test, response.Duplicate)
		last = response
	}
	require.Len(test, last.BadgesAwarded, 1)
	require.Equal(test, int64(2), last.BadgesAwarded[0].BadgeId)
	require.NotEmpty(test, last.BadgesAwarded[0].Title)
	require.Len(test, last.CreditsGranted, 3)

	replay, err := client.ProcessCompletion(ctx, &awardsv1.CompletionRequest{
		UserId:         "user-1",
		DrillId:        "drill-attack",
		SeriesId:       "attack",
		IdempotencyKey: "completion-e",
	})
	require.NoError(test, err)
	require.True(test, replay.Duplicate)
	require.Len(test, replay.BadgesAwarded, 1)

	balance, err := client.GetBalance(ctx, &awardsv1.BalanceRequest{UserId: "user-1", CurrencyKey: "attack_tokens"})
	require.NoError(test, err)
	require.Equal(test, int64(13+4*12+25), balance.Balance, "first drill of the day earns 10 percent more")

	held, err := client.GetHeldBadges(ctx, &awardsv1.HeldBadgesRequest{UserId: "user-1"})
	require.NoError(test, err)
	require.Equal(test, []int64{2}, held.BadgeIds)

	rank, err := client.GetCurrentRank(ctx, &awardsv1.CurrentRankRequest{UserId: "user-1", CurrencyKey: "lax_credits"})
	require.NoError(test, err)
	require.Equal(test, "Rookie", rank.Rank.Title)

	progress, err := client.GetRankProgress(ctx, &awardsv1.RankProgressRequest{UserId: "user-1", CurrencyKey: "lax_credits"})
	require.NoError(test, err)
	require.Equal(test, int64(51), progress.Balance)
	require.Equal(test, "Junior Varsity", progress.Next.Title)
	require.Equal(test, int64(49), progress.CreditsToNext)

	entries, err := client.ListEntries(ctx, &awardsv1.ListEntriesRequest{UserId: "user-1", CurrencyKey: "attack_tokens", Limit: 3})
	require.NoError(test, err)
	require.Len(test, entries.Entries, 3)
	second, err := client.ListEntries(ctx, &awardsv1.ListEntriesRequest{
		UserId:        "user-1",
		CurrencyKey:   "attack_tokens",
		AfterUnixUtc:  entries.Entries[2].CreatedUnixUtc,
		AfterSequence: entries.Entries[2].Sequence,
	})
	require.NoError(test, err)
	require.Len(test, second.Entries, 3)
}

func TestBonusesStreakAndDistributionOverGRPC(test *testing.T) {
	test.Parallel()
	client := startAwardClient(test)
	ctx := context.Background()

	response, err := client.ProcessCompletion(ctx, &awardsv1.CompletionRequest{
		UserId:           "user-9",
		DrillId:          "drill-wall",
		SeriesId:         "wall_ball",
		IdempotencyKey:   "workout-1",
		Perfect:          true,
		CompletesWorkout: true,
	})
	require.NoError(test, err)
	require.Len(test, response.CreditsGranted, 4)
	sources := make([]string, 0, len(response.CreditsGranted))
	for _, entry := range response.CreditsGranted {
		sources = append(sources, entry.SourceType)
	}
	require.Equal(test, []string{"drill_completion", "drill_completion", "perfect_bonus", "workout_bonus"}, sources)

	balance, err := client.GetBalance(ctx, &awardsv1.BalanceRequest{UserId: "user-9", CurrencyKey: "lax_credits"})
	require.NoError(test, err)
	require.Equal(test, int64(11+5+20), balance.Balance)

	streak, err := client.GetStreak(ctx, &awardsv1.StreakRequest{UserId: "user-9"})
	require.NoError(test, err)
	require.Equal(test, int32(1), streak.CurrentDays)
	require.Equal(test, int32(1), streak.LongestDays)

	distribution, err := client.GetRankDistribution(ctx, &awardsv1.RankDistributionRequest{CurrencyKey: "lax_credits"})
	require.NoError(test, err)
	require.Len(test, distribution.Buckets, 1)
	require.Equal(test, "Rookie", distribution.Buckets[0].Rank.Title)
	require.Equal(test, int64(1), distribution.Buckets[0].Users)
	require.Equal(test, int32(100), distribution.Buckets[0].Percentage)

	_, err = client.ProcessManualCredit(ctx, &awardsv1.ManualCreditRequest{
		UserId: "user-9", CurrencyKey: "lax_credits", Delta: 5, Reason: "r", ActorId: "a", IdempotencyKey: "workout-1",
	})
	requireCode(test, err, codes.AlreadyExists, errorDuplicateSource)

	_, err = client.GetRankDistribution(ctx, &awardsv1.RankDistributionRequest{CurrencyKey: "gold_coins"})
	requireCode(test, err, codes.InvalidArgument, errorInvalidCurrency)
}

func TestManualCreditLeaderboardAndReconcile(test *testing.T) {
	test.Parallel()
	client := startAwardClient(test)
	ctx := context.Background()

	for _, credit := range []struct {
		user  string
		delta int64
	}{{user: "user-a", delta: 150}, {user: "user-b", delta: 1200}, {user: "user-c", delta: 40}} {
		response, err := client.ProcessManualCredit(ctx, &awardsv1.ManualCreditRequest{
			UserId:         credit.user,
			CurrencyKey:    "lax_credits",
			Delta:          credit.delta,
			Reason:         "tournament",
			ActorId:        "coach",
			IdempotencyKey: "grant-" + credit.user,
		})
		require.NoError(test, err)
		require.Len(test, response.CreditsGranted, 1)
		require.Len(test, response.RankChanges, 1)
	}

	board, err := client.GetLeaderboard(ctx, &awardsv1.LeaderboardRequest{CurrencyKey: "lax_credits", Limit: 2})
	require.NoError(test, err)
	require.Len(test, board.Entries, 2)
	require.Equal(test, "user-b", board.Entries[0].UserId)
	require.Equal(test, int32(1), board.Entries[0].Position)
	require.Equal(test, "All-Conference", board.Entries[0].Rank.Title)
	require.Equal(test, "user-a", board.Entries[1].UserId)

	reconciled, err := client.Reconcile(ctx, &awardsv1.ReconcileRequest{UserId: "user-b", CurrencyKey: "lax_credits"})
	require.NoError(test, err)
	require.Equal(test, int64(1200), reconciled.BalanceAfter)
	require.Zero(test, reconciled.Drift)
}

func TestErrorsMapToStatusCodes(test *testing.T) {
	test.Parallel()
	client := startAwardClient(test)
	ctx := context.Background()

	_, err := client.ProcessCompletion(ctx, &awardsv1.CompletionRequest{DrillId: "d", SeriesId: "attack", IdempotencyKey: "k"})
	requireCode(test, err, codes.InvalidArgument, errorInvalidUserID)

	_, err = client.ProcessManualCredit(ctx, &awardsv1.ManualCreditRequest{
		UserId: "user-1", CurrencyKey: "gold_coins", Delta: 5, Reason: "r", ActorId: "a", IdempotencyKey: "k",
	})
	requireCode(test, err, codes.InvalidArgument, errorInvalidCurrency)

	_, err = client.ProcessManualCredit(ctx, &awardsv1.ManualCreditRequest{
		UserId: "user-1", CurrencyKey: "lax_credits", Delta: 0, Reason: "r", ActorId: "a", IdempotencyKey: "k",
	})
	requireCode(test, err, codes.InvalidArgument, errorZeroDelta)

	_, err = client.ProcessManualCredit(ctx, &awardsv1.ManualCreditRequest{
		UserId: "user-1", CurrencyKey: "lax_credits", Delta: 5, Reason: " ", ActorId: "a", IdempotencyKey: "k",
	})
	requireCode(test, err, codes.InvalidArgument, errorInvalidReason)

	_, err = client.GetCurrentRank(ctx, &awardsv1.CurrentRankRequest{UserId: "user-1", CurrencyKey: "attack_tokens"})
	requireCode(test, err, codes.NotFound, errorNoRank)

	_, err = client.ListEntries(ctx, &awardsv1.ListEntriesRequest{UserId: "user-1", Limit: maxListEntriesLimit + 1})
	requireCode(test, err, codes.InvalidArgument, errorInvalidListLimit)
}

func TestMapToGRPCError(test *testing.T) {
	test.Parallel()
	cases := []struct {
		name   string
		source error
		code   codes.Code
	}{
		{name: "constraint", source: ledger.WrapError("append", "entry", "insert", ledger.ErrConstraintViolation), code: codes.Aborted},
		{name: "unavailable", source: ledger.ErrUnavailable, code: codes.Unavailable},
		{name: "catalog", source: ledger.ErrCatalogInconsistent, code: codes.FailedPrecondition},
		{name: "duplicate source", source: ledger.ErrDuplicateSource, code: codes.AlreadyExists},
		{name: "entry not found", source: ledger.ErrEntryNotFound, code: codes.NotFound},
		{name: "deadline", source: context.DeadlineExceeded, code: codes.DeadlineExceeded},
		{name: "unknown", source: net.ErrClosed, code: codes.Internal},
	}
	for _, testCase := range cases {
		test.Run(testCase.name, func(test *testing.T) {
			test.Parallel()
			statusValue, _ := status.FromError(mapToGRPCError(testCase.source))
			require.Equal(test, testCase.code, statusValue.Code())
		})
	}
}

func TestNormalizeLimit(test *testing.T) {
	test.Parallel()
	limit, err := normalizeLimit(0, defaultListEntriesLimit, maxListEntriesLimit)
	require.NoError(test, err)
	require.Equal(test, int32(defaultListEntriesLimit), limit)
	limit, err = normalizeLimit(7, defaultListEntriesLimit, maxListEntriesLimit)
	require.NoError(test, err)
	require.Equal(test, int32(7), limit)
	_, err = normalizeLimit(maxListEntriesLimit+1, defaultListEntriesLimit, maxListEntriesLimit)
	require.Error(test, err)
}
