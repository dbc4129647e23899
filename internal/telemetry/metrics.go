package telemetry

import (
	"context"
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/MarkoPoloResearchLab/gamification/pkg/ledger"
)

const (
	operationAppend     = "append"
	operationAwardBadge = "award_badge"
	operationRankChange = "rank_change"
	operationReconcile  = "reconcile"

	directionCredit = "credit"
	directionDebit  = "debit"
)

// Metrics records ledger operations as Prometheus series.
type Metrics struct {
	operations     *prometheus.CounterVec
	duration       *prometheus.HistogramVec
	currencyMoved  *prometheus.CounterVec
	badgesAwarded  *prometheus.CounterVec
	rankChanges    *prometheus.CounterVec
	reconcileDrift *prometheus.CounterVec
}

// NewMetrics registers the ledger series on registerer.
func NewMetrics(registerer prometheus.Registerer) *Metrics {
	factory := promauto.With(registerer)
	return &Metrics{
		operations: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "awards",
			Name:      "operations_total",
			Help:      "Ledger operations by outcome.",
		}, []string{"operation", "status"}),
		duration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "awards",
			Name:      "operation_duration_seconds",
			Help:      "Latency of event processing and reconciliation.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"operation"}),
		currencyMoved: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "awards",
			Name:      "currency_moved_total",
			Help:      "Absolute currency amounts appended to the ledger.",
		}, []string{"currency", "direction"}),
		badgesAwarded: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "awards",
			Name:      "badges_awarded_total",
			Help:      "Badge earnings granted.",
		}, []string{"badge_id"}),
		rankChanges: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "awards",
			Name:      "rank_changes_total",
			Help:      "Rank pointer moves.",
		}, []string{"currency"}),
		reconcileDrift: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "awards",
			Name:      "reconcile_drift_total",
			Help:      "Absolute drift repaired by reconciliation.",
		}, []string{"currency"}),
	}
}

// LogOperation implements ledger.OperationLogger.
func (metrics *Metrics) LogOperation(_ context.Context, entry ledger.OperationLog) {
	metrics.operations.WithLabelValues(entry.Operation, entry.Status).Inc()
	if entry.Duration > 0 {
		metrics.duration.WithLabelValues(entry.Operation).Observe(entry.Duration.Seconds())
	}
	if entry.Status == statusError {
		return
	}
	switch entry.Operation {
	case operationAppend:
		amount := entry.Delta.Int64()
		direction := directionCredit
		if amount < 0 {
			amount = -amount
			direction = directionDebit
		}
		metrics.currencyMoved.WithLabelValues(entry.CurrencyKey.String(), direction).Add(float64(amount))
	case operationAwardBadge:
		metrics.badgesAwarded.WithLabelValues(strconv.FormatInt(entry.BadgeID.Int64(), 10)).Inc()
	case operationRankChange:
		metrics.rankChanges.WithLabelValues(entry.CurrencyKey.String()).Inc()
	case operationReconcile:
		drift := entry.Drift
		if drift < 0 {
			drift = -drift
		}
		metrics.reconcileDrift.WithLabelValues(entry.CurrencyKey.String()).Add(float64(drift))
	}
}
