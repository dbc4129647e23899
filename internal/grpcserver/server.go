package grpcserver

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	awardsv1 "github.com/MarkoPoloResearchLab/gamification/api/awards/v1"
	"github.com/MarkoPoloResearchLab/gamification/pkg/ledger"
)

const (
	errorInvalidUserID         = "invalid_user_id"
	errorInvalidCurrencyKey    = "invalid_currency_key"
	errorInvalidIdempotencyKey = "invalid_idempotency_key"
	errorInvalidDrillID        = "invalid_drill_id"
	errorInvalidSeriesID       = "invalid_series_id"
	errorInvalidActorID        = "invalid_actor_id"
	errorInvalidReason         = "invalid_reason"
	errorInvalidCurrency       = "invalid_currency"
	errorZeroDelta             = "zero_delta"
	errorInvalidListLimit      = "invalid_list_limit"
	errorDuplicateSource       = "duplicate_source"
	errorConstraintViolation   = "constraint_violation"
	errorUnavailable           = "unavailable"
	errorCatalogInconsistent   = "catalog_inconsistent"
	errorNoRank                = "no_rank"
	errorNotFound              = "not_found"
	errorInternal              = "internal"

	defaultListEntriesLimit = 50
	maxListEntriesLimit     = 200
	defaultLeaderboardLimit = 10
	maxLeaderboardLimit     = 100
)

// AwardServiceServer exposes the award orchestrator over gRPC.
type AwardServiceServer struct {
	awardsv1.UnimplementedAwardServiceServer
	awardService *ledger.Service
}

// NewAwardServiceServer constructs a gRPC server for the award service.
func NewAwardServiceServer(awardService *ledger.Service) *AwardServiceServer {
	return &AwardServiceServer{awardService: awardService}
}

func (server *AwardServiceServer) ProcessCompletion(ctx context.Context, request *awardsv1.CompletionRequest) (*awardsv1.AwardResponse, error) {
	userID, err := ledger.NewUserID(request.UserId)
	if err != nil {
		return nil, mapToGRPCError(err)
	}
	drillID, err := ledger.NewDrillID(request.DrillId)
	if err != nil {
		return nil, mapToGRPCError(err)
	}
	seriesID, err := ledger.NewSeriesID(request.SeriesId)
	if err != nil {
		return nil, mapToGRPCError(err)
	}
	idem, err := ledger.NewIdempotencyKey(request.IdempotencyKey)
	if err != nil {
		return nil, mapToGRPCError(err)
	}
	result, operationError := server.awardService.ProcessCompletion(ctx, ledger.CompletionEvent{
		UserID:           userID,
		DrillID:          drillID,
		SeriesID:         seriesID,
		CompletedUnixUTC: request.CompletedUnixUtc,
		IdempotencyKey:   idem,
		Perfect:          request.Perfect,
		CompletesWorkout: request.CompletesWorkout,
	})
	if operationError != nil {
		return nil, mapToGRPCError(operationError)
	}
	return awardsv1.FromAwardResult(result, server.awardService.Catalog()), nil
}

func (server *AwardServiceServer) ProcessManualCredit(ctx context.Context, request *awardsv1.ManualCreditRequest) (*awardsv1.AwardResponse, error) {
	userID, err := ledger.NewUserID(request.UserId)
	if err != nil {
		return nil, mapToGRPCError(err)
	}
	currency, err := ledger.NewCurrencyKey(request.CurrencyKey)
	if err != nil {
		return nil, mapToGRPCError(err)
	}
	delta, err := ledger.NewDelta(request.Delta)
	if err != nil {
		return nil, mapToGRPCError(err)
	}
	actorID, err := ledger.NewActorID(request.ActorId)
	if err != nil {
		return nil, mapToGRPCError(err)
	}
	idem, err := ledger.NewIdempotencyKey(request.IdempotencyKey)
	if err != nil {
		return nil, mapToGRPCError(err)
	}
	result, operationError := server.awardService.ProcessManualCredit(ctx, ledger.ManualCreditEvent{
		UserID:         userID,
		CurrencyKey:    currency,
		Delta:          delta,
		Reason:         strings.TrimSpace(request.Reason),
		ActorID:        actorID,
		IdempotencyKey: idem,
	})
	if operationError != nil {
		return nil, mapToGRPCError(operationError)
	}
	return awardsv1.FromAwardResult(result, server.awardService.Catalog()), nil
}

func (server *AwardServiceServer) GetBalance(ctx context.Context, request *awardsv1.BalanceRequest) (*awardsv1.BalanceResponse, error) {
	userID, currency, err := userAndCurrency(request.UserId, request.CurrencyKey)
	if err != nil {
		return nil, mapToGRPCError(err)
	}
	balance, operationError := server.awardService.GetBalance(ctx, userID, currency)
	if operationError != nil {
		return nil, mapToGRPCError(operationError)
	}
	return &awardsv1.BalanceResponse{
		UserId:         balance.UserID.String(),
		CurrencyKey:    balance.CurrencyKey.String(),
		Balance:        balance.Balance,
		UpdatedUnixUtc: balance.UpdatedUnixUTC,
	}, nil
}

func (server *AwardServiceServer) GetHeldBadges(ctx context.Context, request *awardsv1.HeldBadgesRequest) (*awardsv1.HeldBadgesResponse, error) {
	userID, err := ledger.NewUserID(request.UserId)
	if err != nil {
		return nil, mapToGRPCError(err)
	}
	held, operationError := server.awardService.GetHeldBadges(ctx, userID)
	if operationError != nil {
		return nil, mapToGRPCError(operationError)
	}
	response := &awardsv1.HeldBadgesResponse{BadgeIds: make([]int64, 0, len(held))}
	for _, badgeID := range held {
		response.BadgeIds = append(response.BadgeIds, badgeID.Int64())
	}
	return response, nil
}

func (server *AwardServiceServer) GetCurrentRank(ctx context.Context, request *awardsv1.CurrentRankRequest) (*awardsv1.CurrentRankResponse, error) {
	userID, currency, err := userAndCurrency(request.UserId, request.CurrencyKey)
	if err != nil {
		return nil, mapToGRPCError(err)
	}
	rank, operationError := server.awardService.GetCurrentRank(ctx, userID, currency)
	if operationError != nil {
		return nil, mapToGRPCError(operationError)
	}
	return &awardsv1.CurrentRankResponse{Rank: awardsv1.FromRank(&rank)}, nil
}

func (server *AwardServiceServer) Reconcile(ctx context.Context, request *awardsv1.ReconcileRequest) (*awardsv1.ReconcileResponse, error) {
	userID, currency, err := userAndCurrency(request.UserId, request.CurrencyKey)
	if err != nil {
		return nil, mapToGRPCError(err)
	}
	result, operationError := server.awardService.Reconcile(ctx, userID, currency)
	if operationError != nil {
		return nil, mapToGRPCError(operationError)
	}
	return &awardsv1.ReconcileResponse{
		BalanceBefore: result.Before.Balance,
		BalanceAfter:  result.After.Balance,
		Drift:         result.Drift,
	}, nil
}

func (server *AwardServiceServer) ListEntries(ctx context.Context, request *awardsv1.ListEntriesRequest) (*awardsv1.ListEntriesResponse, error) {
	userID, err := ledger.NewUserID(request.UserId)
	if err != nil {
		return nil, mapToGRPCError(err)
	}
	limit, err := normalizeLimit(request.Limit, defaultListEntriesLimit, maxListEntriesLimit)
	if err != nil {
		return nil, status.Error(codes.InvalidArgument, errorInvalidListLimit)
	}
	query := ledger.EntryQuery{
		UserID:        userID,
		AfterUnixUTC:  request.AfterUnixUtc,
		AfterSequence: request.AfterSequence,
		Limit:         int(limit),
	}
	if strings.TrimSpace(request.CurrencyKey) != "" {
		currency, err := ledger.NewCurrencyKey(request.CurrencyKey)
		if err != nil {
			return nil, mapToGRPCError(err)
		}
		query.CurrencyKey = &currency
	}
	entries, operationError := server.awardService.ListEntries(ctx, query)
	if operationError != nil {
		return nil, mapToGRPCError(operationError)
	}
	return &awardsv1.ListEntriesResponse{Entries: awardsv1.FromEntries(entries)}, nil
}

func (server *AwardServiceServer) GetRankProgress(ctx context.Context, request *awardsv1.RankProgressRequest) (*awardsv1.RankProgressResponse, error) {
	userID, currency, err := userAndCurrency(request.UserId, request.CurrencyKey)
	if err != nil {
		return nil, mapToGRPCError(err)
	}
	progress, operationError := server.awardService.RankProgress(ctx, userID, currency)
	if operationError != nil {
		return nil, mapToGRPCError(operationError)
	}
	return awardsv1.FromRankProgress(progress), nil
}

func (server *AwardServiceServer) GetLeaderboard(ctx context.Context, request *awardsv1.LeaderboardRequest) (*awardsv1.LeaderboardResponse, error) {
	currency, err := ledger.NewCurrencyKey(request.CurrencyKey)
	if err != nil {
		return nil, mapToGRPCError(err)
	}
	limit, err := normalizeLimit(request.Limit, defaultLeaderboardLimit, maxLeaderboardLimit)
	if err != nil {
		return nil, status.Error(codes.InvalidArgument, errorInvalidListLimit)
	}
	board, operationError := server.awardService.Leaderboard(ctx, currency, int(limit))
	if operationError != nil {
		return nil, mapToGRPCError(operationError)
	}
	return awardsv1.FromLeaderboard(board), nil
}

func (server *AwardServiceServer) GetStreak(ctx context.Context, request *awardsv1.StreakRequest) (*awardsv1.StreakResponse, error) {
	userID, err := ledger.NewUserID(request.UserId)
	if err != nil {
		return nil, mapToGRPCError(err)
	}
	streak, operationError := server.awardService.GetStreak(ctx, userID)
	if operationError != nil {
		return nil, mapToGRPCError(operationError)
	}
	return awardsv1.FromStreak(streak), nil
}

func (server *AwardServiceServer) GetRankDistribution(ctx context.Context, request *awardsv1.RankDistributionRequest) (*awardsv1.RankDistributionResponse, error) {
	currency, err := ledger.NewCurrencyKey(request.CurrencyKey)
	if err != nil {
		return nil, mapToGRPCError(err)
	}
	buckets, operationError := server.awardService.RankDistribution(ctx, currency)
	if operationError != nil {
		return nil, mapToGRPCError(operationError)
	}
	return awardsv1.FromRankDistribution(buckets), nil
}

func userAndCurrency(rawUser string, rawCurrency string) (ledger.UserID, ledger.CurrencyKey, error) {
	userID, err := ledger.NewUserID(rawUser)
	if err != nil {
		return ledger.UserID{}, ledger.CurrencyKey{}, err
	}
	currency, err := ledger.NewCurrencyKey(rawCurrency)
	if err != nil {
		return ledger.UserID{}, ledger.CurrencyKey{}, err
	}
	return userID, currency, nil
}

func normalizeLimit(limit int32, fallback int32, maximum int32) (int32, error) {
	if limit <= 0 {
		return fallback, nil
	}
	if limit > maximum {
		return 0, fmt.Errorf("limit exceeds maximum: %d > %d", limit, maximum)
	}
	return limit, nil
}

type errorMapping struct {
	target error
	code   codes.Code
	reason string
}

var errorMappings = []errorMapping{
	{target: ledger.ErrInvalidUserID, code: codes.InvalidArgument, reason: errorInvalidUserID},
	{target: ledger.ErrInvalidCurrencyKey, code: codes.InvalidArgument, reason: errorInvalidCurrencyKey},
	{target: ledger.ErrInvalidIdempotencyKey, code: codes.InvalidArgument, reason: errorInvalidIdempotencyKey},
	{target: ledger.ErrInvalidDrillID, code: codes.InvalidArgument, reason: errorInvalidDrillID},
	{target: ledger.ErrInvalidSeriesID, code: codes.InvalidArgument, reason: errorInvalidSeriesID},
	{target: ledger.ErrInvalidActorID, code: codes.InvalidArgument, reason: errorInvalidActorID},
	{target: ledger.ErrInvalidReason, code: codes.InvalidArgument, reason: errorInvalidReason},
	{target: ledger.ErrInvalidPageSize, code: codes.InvalidArgument, reason: errorInvalidListLimit},
	{target: ledger.ErrInvalidCurrency, code: codes.InvalidArgument, reason: errorInvalidCurrency},
	{target: ledger.ErrZeroDelta, code: codes.InvalidArgument, reason: errorZeroDelta},
	{target: ledger.ErrDuplicateSource, code: codes.AlreadyExists, reason: errorDuplicateSource},
	{target: ledger.ErrCatalogInconsistent, code: codes.FailedPrecondition, reason: errorCatalogInconsistent},
	{target: ledger.ErrConstraintViolation, code: codes.Aborted, reason: errorConstraintViolation},
	{target: ledger.ErrUnavailable, code: codes.Unavailable, reason: errorUnavailable},
	{target: ledger.ErrNoRank, code: codes.NotFound, reason: errorNoRank},
	{target: ledger.ErrEntryNotFound, code: codes.NotFound, reason: errorNotFound},
	{target: ledger.ErrEventNotFound, code: codes.NotFound, reason: errorNotFound},
}

func mapToGRPCError(source error) error {
	for _, mapping := range errorMappings {
		if errors.Is(source, mapping.target) {
			return status.Error(mapping.code, mapping.reason)
		}
	}
	if errors.Is(source, context.Canceled) {
		return status.Error(codes.Canceled, errorUnavailable)
	}
	if errors.Is(source, context.DeadlineExceeded) {
		return status.Error(codes.DeadlineExceeded, errorUnavailable)
	}
	return status.Error(codes.Internal, errorInternal)
}
