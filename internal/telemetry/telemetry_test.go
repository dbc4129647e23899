package telemetry

import (
	"context"
	"errors"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/MarkoPoloResearchLab/gamification/pkg/ledger"
)

func mustUser(test *testing.T, raw string) ledger.UserID {
	test.Helper()
	userID, err := ledger.NewUserID(raw)
	require.NoError(test, err)
	return userID
}

func mustCurrency(test *testing.T, raw string) ledger.CurrencyKey {
	test.Helper()
	currency, err := ledger.NewCurrencyKey(raw)
	require.NoError(test, err)
	return currency
}

func TestZapLoggerLevels(test *testing.T) {
	test.Parallel()
	core, recorded := observer.New(zapcore.DebugLevel)
	logger := NewZapLogger(zap.New(core))
	player := mustUser(test, "player-1")
	lax := mustCurrency(test, "lax_credits")

	logger.LogOperation(context.Background(), ledger.OperationLog{Operation: "append", Status: "ok", UserID: player, CurrencyKey: lax, Delta: 10})
	logger.LogOperation(context.Background(), ledger.OperationLog{Operation: "process_completion", Status: "duplicate", UserID: player})
	logger.LogOperation(context.Background(), ledger.OperationLog{Operation: "process_completion", Status: "error", UserID: player, Error: errors.New("storage down")})
	logger.LogOperation(context.Background(), ledger.OperationLog{Operation: "reconcile", Status: "ok", UserID: player, CurrencyKey: lax, Drift: -5})

	entries := recorded.All()
	require.Len(test, entries, 4)
	require.Equal(test, zapcore.InfoLevel, entries[0].Level)
	require.Equal(test, int64(10), entries[0].ContextMap()["delta"])
	require.Equal(test, "duplicate event ignored", entries[1].Message)
	require.Equal(test, zapcore.ErrorLevel, entries[2].Level)
	require.Equal(test, "storage down", entries[2].ContextMap()["error"])
	require.Equal(test, zapcore.WarnLevel, entries[3].Level)
	require.Equal(test, int64(-5), entries[3].ContextMap()["drift"])
}

func TestMetricsCountOperations(test *testing.T) {
	test.Parallel()
	registry := prometheus.NewRegistry()
	metrics := NewMetrics(registry)
	player := mustUser(test, "player-2")
	lax := mustCurrency(test, "lax_credits")
	ctx := context.Background()

	metrics.LogOperation(ctx, ledger.OperationLog{Operation: "append", Status: "ok", UserID: player, CurrencyKey: lax, Delta: 10})
	metrics.LogOperation(ctx, ledger.OperationLog{Operation: "append", Status: "ok", UserID: player, CurrencyKey: lax, Delta: -4})
	metrics.LogOperation(ctx, ledger.OperationLog{Operation: "award_badge", Status: "ok", UserID: player, BadgeID: 7})
	metrics.LogOperation(ctx, ledger.OperationLog{Operation: "rank_change", Status: "ok", UserID: player, CurrencyKey: lax, RankOrder: 2})
	metrics.LogOperation(ctx, ledger.OperationLog{Operation: "reconcile", Status: "ok", UserID: player, CurrencyKey: lax, Drift: -3})
	metrics.LogOperation(ctx, ledger.OperationLog{Operation: "append", Status: "error", UserID: player, CurrencyKey: lax, Delta: 99})

	require.Equal(test, float64(2), testutil.ToFloat64(metrics.operations.WithLabelValues("append", "ok")))
	require.Equal(test, float64(1), testutil.ToFloat64(metrics.operations.WithLabelValues("append", "error")))
	require.Equal(test, float64(10), testutil.ToFloat64(metrics.currencyMoved.WithLabelValues("lax_credits", "credit")))
	require.Equal(test, float64(4), testutil.ToFloat64(metrics.currencyMoved.WithLabelValues("lax_credits", "debit")))
	require.Equal(test, float64(1), testutil.ToFloat64(metrics.badgesAwarded.WithLabelValues("7")))
	require.Equal(test, float64(1), testutil.ToFloat64(metrics.rankChanges.WithLabelValues("lax_credits")))
	require.Equal(test, float64(3), testutil.ToFloat64(metrics.reconcileDrift.WithLabelValues("lax_credits")))
}

type countingLogger struct {
	calls int
}

func (logger *countingLogger) LogOperation(context.Context, ledger.OperationLog) {
	logger.calls++
}

func TestMultiLoggerFansOut(test *testing.T) {
	test.Parallel()
	first := &countingLogger{}
	second := &countingLogger{}
	multi := MultiLogger{first, nil, second}
	multi.LogOperation(context.Background(), ledger.OperationLog{Operation: "append"})
	require.Equal(test, 1, first.calls)
	require.Equal(test, 1, second.calls)
}
