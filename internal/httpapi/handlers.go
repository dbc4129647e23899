package httpapi

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	awardsv1 "github.com/MarkoPoloResearchLab/gamification/api/awards/v1"
	"github.com/MarkoPoloResearchLab/gamification/pkg/ledger"
)

const (
	defaultEntriesLimit     = 50
	maxEntriesLimit         = 200
	defaultLeaderboardLimit = 10
	maxLeaderboardLimit     = 100
)

type completionRequest struct {
	DrillID          string `json:"drill_id"`
	SeriesID         string `json:"series_id"`
	IdempotencyKey   string `json:"idempotency_key"`
	CompletedUnixUTC int64  `json:"completed_unix_utc"`
	Perfect          bool   `json:"perfect"`
	CompletesWorkout bool   `json:"completes_workout"`
}

type manualCreditRequest struct {
	UserID         string `json:"user_id"`
	CurrencyKey    string `json:"currency_key"`
	Delta          int64  `json:"delta"`
	Reason         string `json:"reason"`
	IdempotencyKey string `json:"idempotency_key"`
}

type reconcileRequest struct {
	UserID      string `json:"user_id"`
	CurrencyKey string `json:"currency_key"`
}

type walletBalancePayload struct {
	CurrencyKey    string         `json:"currency_key"`
	DisplayName    string         `json:"display_name"`
	Balance        int64          `json:"balance"`
	UpdatedUnixUTC int64          `json:"updated_unix_utc"`
	Rank           *awardsv1.Rank `json:"rank,omitempty"`
}

type badgeStatusPayload struct {
	BadgeID         int64   `json:"badge_id"`
	Title           string  `json:"title"`
	Category        string  `json:"category"`
	Held            int     `json:"held"`
	MaximumEarnings int     `json:"maximum_earnings"`
	Current         int64   `json:"current"`
	Required        int64   `json:"required"`
	Percentage      float64 `json:"percentage"`
}

func (handler *httpHandler) handleCompletion(ctx *gin.Context) {
	claims := getClaims(ctx)
	if claims == nil {
		ctx.JSON(http.StatusUnauthorized, errorResponse("unauthorized", "missing session"))
		return
	}
	var request completionRequest
	if err := ctx.ShouldBindJSON(&request); err != nil {
		ctx.JSON(http.StatusBadRequest, errorResponse("invalid_payload", "expected JSON body"))
		return
	}
	event, err := buildCompletionEvent(claims.GetUserID(), request)
	if err != nil {
		handler.respondError(ctx, err)
		return
	}
	requestCtx, cancel := handler.requestContext(ctx)
	defer cancel()
	result, err := handler.service.ProcessCompletion(requestCtx, event)
	if err != nil {
		handler.respondError(ctx, err)
		return
	}
	ctx.JSON(http.StatusOK, awardsv1.FromAwardResult(result, handler.service.Catalog()))
}

func buildCompletionEvent(rawUser string, request completionRequest) (ledger.CompletionEvent, error) {
	userID, err := ledger.NewUserID(rawUser)
	if err != nil {
		return ledger.CompletionEvent{}, err
	}
	drillID, err := ledger.NewDrillID(request.DrillID)
	if err != nil {
		return ledger.CompletionEvent{}, err
	}
	seriesID, err := ledger.NewSeriesID(request.SeriesID)
	if err != nil {
		return ledger.CompletionEvent{}, err
	}
	idem, err := ledger.NewIdempotencyKey(request.IdempotencyKey)
	if err != nil {
		return ledger.CompletionEvent{}, err
	}
	return ledger.CompletionEvent{
		UserID:           userID,
		DrillID:          drillID,
		SeriesID:         seriesID,
		CompletedUnixUTC: request.CompletedUnixUTC,
		IdempotencyKey:   idem,
		Perfect:          request.Perfect,
		CompletesWorkout: request.CompletesWorkout,
	}, nil
}

func (handler *httpHandler) handleWallet(ctx *gin.Context) {
	userID, ok := handler.sessionUser(ctx)
	if !ok {
		return
	}
	requestCtx, cancel := handler.requestContext(ctx)
	defer cancel()
	balances, err := handler.service.GetBalances(requestCtx, userID)
	if err != nil {
		handler.respondError(ctx, err)
		return
	}
	held, err := handler.service.GetHeldBadges(requestCtx, userID)
	if err != nil {
		handler.respondError(ctx, err)
		return
	}
	catalog := handler.service.Catalog()
	payload := make([]walletBalancePayload, 0, len(balances))
	for _, balance := range balances {
		entry := walletBalancePayload{
			CurrencyKey:    balance.CurrencyKey.String(),
			Balance:        balance.Balance,
			UpdatedUnixUTC: balance.UpdatedUnixUTC,
		}
		if currency, found := catalog.Currency(balance.CurrencyKey); found {
			entry.DisplayName = currency.DisplayName
		}
		if rank, rankErr := handler.service.GetCurrentRank(requestCtx, userID, balance.CurrencyKey); rankErr == nil {
			entry.Rank = awardsv1.FromRank(&rank)
		}
		payload = append(payload, entry)
	}
	badgeIDs := make([]int64, 0, len(held))
	for _, badgeID := range held {
		badgeIDs = append(badgeIDs, badgeID.Int64())
	}
	ctx.JSON(http.StatusOK, gin.H{
		"user_id":   userID.String(),
		"balances":  payload,
		"badge_ids": badgeIDs,
	})
}

func (handler *httpHandler) handleBadges(ctx *gin.Context) {
	userID, ok := handler.sessionUser(ctx)
	if !ok {
		return
	}
	requestCtx, cancel := handler.requestContext(ctx)
	defer cancel()
	statuses, err := handler.service.BadgeStatuses(requestCtx, userID)
	if err != nil {
		handler.respondError(ctx, err)
		return
	}
	payload := make([]badgeStatusPayload, 0, len(statuses))
	for _, badgeStatus := range statuses {
		payload = append(payload, badgeStatusPayload{
			BadgeID:         badgeStatus.Badge.ID.Int64(),
			Title:           badgeStatus.Badge.Title,
			Category:        badgeStatus.Badge.Category,
			Held:            badgeStatus.Held,
			MaximumEarnings: badgeStatus.Badge.MaximumEarnings,
			Current:         badgeStatus.Progress.Current,
			Required:        badgeStatus.Progress.Required,
			Percentage:      badgeStatus.Progress.Percentage,
		})
	}
	ctx.JSON(http.StatusOK, gin.H{"badges": payload})
}

func (handler *httpHandler) handleRankProgress(ctx *gin.Context) {
	userID, ok := handler.sessionUser(ctx)
	if !ok {
		return
	}
	currency, err := ledger.NewCurrencyKey(ctx.Param("currency"))
	if err != nil {
		handler.respondError(ctx, err)
		return
	}
	requestCtx, cancel := handler.requestContext(ctx)
	defer cancel()
	progress, err := handler.service.RankProgress(requestCtx, userID, currency)
	if err != nil {
		handler.respondError(ctx, err)
		return
	}
	ctx.JSON(http.StatusOK, awardsv1.FromRankProgress(progress))
}

func (handler *httpHandler) handleRankDistribution(ctx *gin.Context) {
	if _, ok := handler.sessionUser(ctx); !ok {
		return
	}
	currency, err := ledger.NewCurrencyKey(ctx.Param("currency"))
	if err != nil {
		handler.respondError(ctx, err)
		return
	}
	requestCtx, cancel := handler.requestContext(ctx)
	defer cancel()
	buckets, err := handler.service.RankDistribution(requestCtx, currency)
	if err != nil {
		handler.respondError(ctx, err)
		return
	}
	ctx.JSON(http.StatusOK, awardsv1.FromRankDistribution(buckets))
}

func (handler *httpHandler) handleStreak(ctx *gin.Context) {
	userID, ok := handler.sessionUser(ctx)
	if !ok {
		return
	}
	requestCtx, cancel := handler.requestContext(ctx)
	defer cancel()
	streak, err := handler.service.GetStreak(requestCtx, userID)
	if err != nil {
		handler.respondError(ctx, err)
		return
	}
	ctx.JSON(http.StatusOK, awardsv1.FromStreak(streak))
}

func (handler *httpHandler) handleLeaderboard(ctx *gin.Context) {
	if _, ok := handler.sessionUser(ctx); !ok {
		return
	}
	currency, err := ledger.NewCurrencyKey(ctx.Param("currency"))
	if err != nil {
		handler.respondError(ctx, err)
		return
	}
	limit, err := queryLimit(ctx, defaultLeaderboardLimit, maxLeaderboardLimit)
	if err != nil {
		handler.respondError(ctx, err)
		return
	}
	requestCtx, cancel := handler.requestContext(ctx)
	defer cancel()
	board, err := handler.service.Leaderboard(requestCtx, currency, limit)
	if err != nil {
		handler.respondError(ctx, err)
		return
	}
	ctx.JSON(http.StatusOK, awardsv1.FromLeaderboard(board))
}

func (handler *httpHandler) handleEntries(ctx *gin.Context) {
	userID, ok := handler.sessionUser(ctx)
	if !ok {
		return
	}
	limit, err := queryLimit(ctx, defaultEntriesLimit, maxEntriesLimit)
	if err != nil {
		handler.respondError(ctx, err)
		return
	}
	query := ledger.EntryQuery{UserID: userID, Limit: limit}
	if rawCurrency := strings.TrimSpace(ctx.Query("currency")); rawCurrency != "" {
		currency, err := ledger.NewCurrencyKey(rawCurrency)
		if err != nil {
			handler.respondError(ctx, err)
			return
		}
		query.CurrencyKey = &currency
	}
	if query.AfterUnixUTC, err = queryInt64(ctx, "after_unix_utc"); err != nil {
		handler.respondError(ctx, err)
		return
	}
	if query.AfterSequence, err = queryInt64(ctx, "after_sequence"); err != nil {
		handler.respondError(ctx, err)
		return
	}
	requestCtx, cancel := handler.requestContext(ctx)
	defer cancel()
	entries, err := handler.service.ListEntries(requestCtx, query)
	if err != nil {
		handler.respondError(ctx, err)
		return
	}
	ctx.JSON(http.StatusOK, awardsv1.ListEntriesResponse{Entries: awardsv1.FromEntries(entries)})
}

func (handler *httpHandler) handleManualCredit(ctx *gin.Context) {
	claims := getClaims(ctx)
	var request manualCreditRequest
	if err := ctx.ShouldBindJSON(&request); err != nil {
		ctx.JSON(http.StatusBadRequest, errorResponse("invalid_payload", "expected JSON body"))
		return
	}
	event, err := buildManualCreditEvent(claims.GetUserID(), request)
	if err != nil {
		handler.respondError(ctx, err)
		return
	}
	requestCtx, cancel := handler.requestContext(ctx)
	defer cancel()
	result, err := handler.service.ProcessManualCredit(requestCtx, event)
	if err != nil {
		handler.respondError(ctx, err)
		return
	}
	ctx.JSON(http.StatusOK, awardsv1.FromAwardResult(result, handler.service.Catalog()))
}

func buildManualCreditEvent(rawActor string, request manualCreditRequest) (ledger.ManualCreditEvent, error) {
	actorID, err := ledger.NewActorID(rawActor)
	if err != nil {
		return ledger.ManualCreditEvent{}, err
	}
	userID, err := ledger.NewUserID(request.UserID)
	if err != nil {
		return ledger.ManualCreditEvent{}, err
	}
	currency, err := ledger.NewCurrencyKey(request.CurrencyKey)
	if err != nil {
		return ledger.ManualCreditEvent{}, err
	}
	delta, err := ledger.NewDelta(request.Delta)
	if err != nil {
		return ledger.ManualCreditEvent{}, err
	}
	idem, err := ledger.NewIdempotencyKey(request.IdempotencyKey)
	if err != nil {
		return ledger.ManualCreditEvent{}, err
	}
	return ledger.ManualCreditEvent{
		UserID:         userID,
		CurrencyKey:    currency,
		Delta:          delta,
		Reason:         strings.TrimSpace(request.Reason),
		ActorID:        actorID,
		IdempotencyKey: idem,
	}, nil
}

func (handler *httpHandler) handleReconcile(ctx *gin.Context) {
	var request reconcileRequest
	if err := ctx.ShouldBindJSON(&request); err != nil {
		ctx.JSON(http.StatusBadRequest, errorResponse("invalid_payload", "expected JSON body"))
		return
	}
	userID, err := ledger.NewUserID(request.UserID)
	if err != nil {
		handler.respondError(ctx, err)
		return
	}
	currency, err := ledger.NewCurrencyKey(request.CurrencyKey)
	if err != nil {
		handler.respondError(ctx, err)
		return
	}
	requestCtx, cancel := handler.requestContext(ctx)
	defer cancel()
	result, err := handler.service.Reconcile(requestCtx, userID, currency)
	if err != nil {
		handler.respondError(ctx, err)
		return
	}
	ctx.JSON(http.StatusOK, awardsv1.ReconcileResponse{
		BalanceBefore: result.Before.Balance,
		BalanceAfter:  result.After.Balance,
		Drift:         result.Drift,
	})
}

func (handler *httpHandler) sessionUser(ctx *gin.Context) (ledger.UserID, bool) {
	claims := getClaims(ctx)
	if claims == nil {
		ctx.JSON(http.StatusUnauthorized, errorResponse("unauthorized", "missing session"))
		return ledger.UserID{}, false
	}
	userID, err := ledger.NewUserID(claims.GetUserID())
	if err != nil {
		ctx.JSON(http.StatusUnauthorized, errorResponse("unauthorized", "session has no user"))
		return ledger.UserID{}, false
	}
	return userID, true
}

func (handler *httpHandler) requestContext(ctx *gin.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx.Request.Context(), handler.cfg.RequestTimeout)
}

func queryLimit(ctx *gin.Context, fallback int, maximum int) (int, error) {
	raw := strings.TrimSpace(ctx.Query("limit"))
	if raw == "" {
		return fallback, nil
	}
	limit, err := strconv.Atoi(raw)
	if err != nil || limit <= 0 || limit > maximum {
		return 0, ledger.ErrInvalidPageSize
	}
	return limit, nil
}

func queryInt64(ctx *gin.Context, name string) (int64, error) {
	raw := strings.TrimSpace(ctx.Query(name))
	if raw == "" {
		return 0, nil
	}
	value, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return 0, errInvalidQuery
	}
	return value, nil
}

var errInvalidQuery = errors.New("invalid query parameter")

func (handler *httpHandler) respondError(ctx *gin.Context, err error) {
	statusCode, code := classifyError(err)
	message := err.Error()
	if statusCode >= http.StatusInternalServerError {
		handler.logger.Error("request failed", zap.String("path", ctx.FullPath()), zap.Error(err))
		message = "request failed"
	}
	ctx.JSON(statusCode, errorResponse(code, message))
}
