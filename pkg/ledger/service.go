package ledger

import (
	"context"
	"errors"
	"fmt"
	"iter"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Service is the award orchestrator: every event runs as one atomic unit of work per user.
type Service struct {
	store      Store
	catalog    *Catalog
	nowFn      func() int64
	logger     OperationLogger
	locker     UserLocker
	newID      func() string
	retryLimit int
	journal    *Journal
	projector  *Projector
	tracker    *Tracker
}

// RankBucket counts the users holding one rank of a currency. Rank is nil for users below every threshold.
type RankBucket struct {
	Rank       *Rank
	Users      int64
	Percentage int
}

// LeaderboardEntry is one row of a currency leaderboard.
type LeaderboardEntry struct {
	Position int
	UserID   UserID
	Balance  int64
	Rank     *Rank
}

// NewService wires a Service.
func NewService(store Store, catalog *Catalog, now func() int64, options ...ServiceOption) (*Service, error) {
	if store == nil {
		return nil, fmt.Errorf("%w: store dependency is nil", ErrInvalidServiceConfig)
	}
	if catalog == nil {
		return nil, fmt.Errorf("%w: catalog dependency is nil", ErrInvalidServiceConfig)
	}
	if now == nil {
		return nil, fmt.Errorf("%w: clock dependency is nil", ErrInvalidServiceConfig)
	}
	service := &Service{
		store:      store,
		catalog:    catalog,
		nowFn:      now,
		locker:     NewKeyedLocker(),
		newID:      uuid.NewString,
		retryLimit: constraintRetryLimit,
	}
	for _, option := range options {
		if option != nil {
			option(service)
		}
	}
	journal, err := NewJournal(catalog, service.newID)
	if err != nil {
		return nil, err
	}
	projector, err := NewProjector(catalog, journal)
	if err != nil {
		return nil, err
	}
	tracker, err := NewTracker(catalog)
	if err != nil {
		return nil, err
	}
	service.journal = journal
	service.projector = projector
	service.tracker = tracker
	return service, nil
}

// Catalog returns the catalog the service evaluates against.
func (service *Service) Catalog() *Catalog {
	return service.catalog
}

type eventPlan struct {
	kind       EventKind
	userID     UserID
	eventKey   IdempotencyKey
	credits    []EntryInput
	completion *CompletionEvent
}

// ProcessCompletion credits a completed drill, advances badge counters and evaluates awards.
// A replayed idempotency key returns the original result with Duplicate set.
func (service *Service) ProcessCompletion(ctx context.Context, event CompletionEvent) (AwardResult, error) {
	started := time.Now()
	plan, err := service.completionPlan(event)
	if err != nil {
		service.logOperation(ctx, OperationLog{
			Operation:      operationProcessCompletion,
			UserID:         event.UserID,
			IdempotencyKey: event.IdempotencyKey,
			Error:          err,
		})
		return AwardResult{}, err
	}
	result, err := service.runEvent(ctx, plan)
	service.logEvent(ctx, operationProcessCompletion, plan, result, err, time.Since(started))
	return result, err
}

// ProcessManualCredit runs an administrative adjustment through the same pipeline without progress recording.
func (service *Service) ProcessManualCredit(ctx context.Context, event ManualCreditEvent) (AwardResult, error) {
	started := time.Now()
	plan, err := service.manualCreditPlan(event)
	if err != nil {
		service.logOperation(ctx, OperationLog{
			Operation:      operationProcessManualCredit,
			UserID:         event.UserID,
			CurrencyKey:    event.CurrencyKey,
			Delta:          event.Delta,
			IdempotencyKey: event.IdempotencyKey,
			Error:          err,
		})
		return AwardResult{}, err
	}
	result, err := service.runEvent(ctx, plan)
	service.logEvent(ctx, operationProcessManualCredit, plan, result, err, time.Since(started))
	return result, err
}

func (service *Service) completionPlan(event CompletionEvent) (eventPlan, error) {
	switch {
	case event.UserID.IsZero():
		return eventPlan{}, WrapError(operationProcessCompletion, "user", "invalid", ErrInvalidUserID)
	case event.DrillID.String() == "":
		return eventPlan{}, WrapError(operationProcessCompletion, "drill", "invalid", ErrInvalidDrillID)
	case event.SeriesID.String() == "":
		return eventPlan{}, WrapError(operationProcessCompletion, "series", "invalid", ErrInvalidSeriesID)
	case event.IdempotencyKey.IsZero():
		return eventPlan{}, WrapError(operationProcessCompletion, "idempotency_key", "invalid", ErrInvalidIdempotencyKey)
	}
	completion := event
	return eventPlan{
		kind:       EventCompletion,
		userID:     event.UserID,
		eventKey:   event.IdempotencyKey,
		completion: &completion,
	}, nil
}

// completionCredits advances the streak and builds the shaped credits of a completion.
// The streak counts server days so a client timestamp cannot extend it.
func (service *Service) completionCredits(ctx context.Context, txStore Store, plan eventPlan, nowUnixUTC int64) ([]EntryInput, error) {
	event := plan.completion
	streak, err := txStore.GetStreak(ctx, plan.userID)
	if err != nil {
		return nil, err
	}
	streak.UserID = plan.userID
	advanced, firstOfDay := streak.advance(activityDay(nowUnixUTC), nowUnixUTC)
	if firstOfDay {
		if err := txStore.UpsertStreak(ctx, advanced); err != nil {
			return nil, err
		}
	}
	percent := service.catalog.ShapingPercent(advanced.CurrentDays, firstOfDay)
	metadata := MetadataFromMap(map[string]string{
		"drill_id":      event.DrillID.String(),
		"series_id":     event.SeriesID.String(),
		"completed_at":  strconv.FormatInt(event.CompletedUnixUTC, 10),
		"streak_days":   strconv.Itoa(advanced.CurrentDays),
		"bonus_percent": strconv.Itoa(percent),
	})

	rewards := service.catalog.RewardsFor(event.SeriesID)
	shaping := service.catalog.Shaping()
	credits := make([]EntryInput, 0, len(rewards)+len(shaping.PerfectBonus)+len(shaping.WorkoutBonus))
	for _, reward := range rewards {
		credits = append(credits, completionInput(plan, reward.CurrencyKey, shapeAmount(reward.Amount, percent), "drill completion", SourceDrillCompletion, metadata))
	}
	if event.Perfect {
		for _, reward := range shaping.PerfectBonus {
			credits = append(credits, completionInput(plan, reward.CurrencyKey, reward.Amount, "perfect drill bonus", SourcePerfectBonus, metadata))
		}
	}
	if event.CompletesWorkout {
		for _, reward := range shaping.WorkoutBonus {
			credits = append(credits, completionInput(plan, reward.CurrencyKey, reward.Amount, "workout completion bonus", SourceWorkoutBonus, metadata))
		}
	}
	return credits, nil
}

func completionInput(plan eventPlan, currency CurrencyKey, amount Delta, reason string, source SourceType, metadata MetadataJSON) EntryInput {
	return EntryInput{
		UserID:      plan.userID,
		CurrencyKey: currency,
		Delta:       amount,
		Reason:      reason,
		SourceType:  source,
		SourceID:    plan.eventKey.String(),
		EventKey:    plan.eventKey,
		Metadata:    metadata,
	}
}

func (service *Service) manualCreditPlan(event ManualCreditEvent) (eventPlan, error) {
	switch {
	case event.UserID.IsZero():
		return eventPlan{}, WrapError(operationProcessManualCredit, "user", "invalid", ErrInvalidUserID)
	case !service.catalog.HasCurrency(event.CurrencyKey):
		return eventPlan{}, WrapError(operationProcessManualCredit, "currency", "unknown", fmt.Errorf("%w: %q", ErrInvalidCurrency, event.CurrencyKey.String()))
	case event.Delta == 0:
		return eventPlan{}, WrapError(operationProcessManualCredit, "delta", "zero", ErrZeroDelta)
	case strings.TrimSpace(event.Reason) == "":
		return eventPlan{}, WrapError(operationProcessManualCredit, "reason", "invalid", ErrInvalidReason)
	case event.ActorID.String() == "":
		return eventPlan{}, WrapError(operationProcessManualCredit, "actor", "invalid", ErrInvalidActorID)
	case event.IdempotencyKey.IsZero():
		return eventPlan{}, WrapError(operationProcessManualCredit, "idempotency_key", "invalid", ErrInvalidIdempotencyKey)
	}
	return eventPlan{
		kind:     EventManualCredit,
		userID:   event.UserID,
		eventKey: event.IdempotencyKey,
		credits: []EntryInput{{
			UserID:      event.UserID,
			CurrencyKey: event.CurrencyKey,
			Delta:       event.Delta,
			Reason:      strings.TrimSpace(event.Reason),
			SourceType:  SourceManualCredit,
			SourceID:    event.IdempotencyKey.String(),
			EventKey:    event.IdempotencyKey,
			Metadata:    MetadataFromMap(map[string]string{"actor_id": event.ActorID.String()}),
		}},
	}, nil
}

// runEvent serializes on the user and replays the event when it lost a uniqueness race.
func (service *Service) runEvent(ctx context.Context, plan eventPlan) (AwardResult, error) {
	unlock, err := service.locker.Lock(ctx, plan.userID)
	if err != nil {
		return AwardResult{}, err
	}
	defer unlock()

	for attempt := 1; ; attempt++ {
		result, err := service.applyEvent(ctx, plan)
		if err == nil {
			return result, nil
		}
		if !errors.Is(err, ErrConstraintViolation) {
			return AwardResult{}, err
		}
		if attempt >= service.retryLimit {
			return AwardResult{}, WrapError("service", "event", "retries_exhausted", err)
		}
	}
}

func (service *Service) applyEvent(ctx context.Context, plan eventPlan) (AwardResult, error) {
	var result AwardResult
	err := service.store.WithTx(ctx, func(ctx context.Context, txStore Store) error {
		if err := txStore.LockUser(ctx, plan.userID); err != nil {
			return err
		}
		receipt, err := txStore.GetEventReceipt(ctx, plan.userID, plan.eventKey)
		if err == nil {
			if receipt.Kind != plan.kind {
				return WrapError("service", "event", "kind_mismatch", fmt.Errorf("%w: idempotency key %q already used by a %s event", ErrDuplicateSource, plan.eventKey.String(), receipt.Kind.String()))
			}
			replayed, err := service.loadEventResult(ctx, txStore, plan.userID, plan.eventKey)
			if err != nil {
				return err
			}
			result = replayed
			return nil
		}
		if !errors.Is(err, ErrEventNotFound) {
			return err
		}

		nowUnixUTC := service.nowFn()
		if err := txStore.InsertEventReceipt(ctx, EventReceipt{
			UserID:         plan.userID,
			EventKey:       plan.eventKey,
			Kind:           plan.kind,
			CreatedUnixUTC: nowUnixUTC,
		}); err != nil {
			return err
		}

		credits := plan.credits
		if plan.completion != nil {
			credits, err = service.completionCredits(ctx, txStore, plan, nowUnixUTC)
			if err != nil {
				return err
			}
		}

		outcome := newAwardResult()
		touched := make(map[CurrencyKey]struct{})
		for _, input := range credits {
			entry, err := service.credit(ctx, txStore, input, nowUnixUTC)
			if err != nil {
				return err
			}
			outcome.CreditsGranted = append(outcome.CreditsGranted, entry)
			touched[entry.CurrencyKey] = struct{}{}
		}

		if plan.completion != nil {
			if _, err := service.tracker.RecordCompletion(ctx, txStore, plan.userID, plan.completion.DrillID, plan.completion.SeriesID, nowUnixUTC); err != nil {
				return err
			}
		}

		earnings, err := service.tracker.EvaluateBadges(ctx, txStore, plan.userID)
		if err != nil {
			return err
		}
		for _, earning := range earnings {
			award := BadgeAward{
				UserID:         plan.userID,
				BadgeID:        earning.Badge.ID,
				Earning:        earning.Earning,
				EventKey:       plan.eventKey,
				AwardedUnixUTC: nowUnixUTC,
			}
			if bonus := earning.Badge.Bonus; bonus != nil {
				entry, err := service.credit(ctx, txStore, badgeBonusInput(plan, earning, *bonus), nowUnixUTC)
				if err != nil {
					return err
				}
				entryID := entry.EntryID
				award.SourceEntryID = &entryID
				outcome.CreditsGranted = append(outcome.CreditsGranted, entry)
				touched[entry.CurrencyKey] = struct{}{}
			}
			if err := txStore.InsertBadgeAward(ctx, award); err != nil {
				return err
			}
			outcome.BadgesAwarded = append(outcome.BadgesAwarded, award)
		}

		for _, currency := range service.catalog.RankCurrencies() {
			if _, ok := touched[currency]; !ok {
				continue
			}
			balance, err := txStore.GetWalletBalance(ctx, plan.userID, currency)
			if err != nil {
				return err
			}
			change, err := service.tracker.ApplyRank(ctx, txStore, plan.userID, currency, balance.Balance, plan.eventKey, nowUnixUTC)
			if err != nil {
				return err
			}
			if change != nil {
				outcome.RankChanges = append(outcome.RankChanges, *change)
			}
		}
		result = outcome
		return nil
	})
	if err != nil {
		return AwardResult{}, err
	}
	return result, nil
}

// credit appends an entry and projects it in the same transaction.
func (service *Service) credit(ctx context.Context, txStore Store, input EntryInput, nowUnixUTC int64) (Entry, error) {
	appended, err := service.journal.Append(ctx, txStore, input, nowUnixUTC)
	if err != nil {
		return Entry{}, err
	}
	if appended.Duplicate {
		return appended.Entry, nil
	}
	if _, err := service.projector.ApplyDelta(ctx, txStore, input.UserID, input.CurrencyKey, input.Delta, nowUnixUTC); err != nil {
		return Entry{}, err
	}
	return appended.Entry, nil
}

func badgeBonusInput(plan eventPlan, earning BadgeEarning, bonus Reward) EntryInput {
	badgeID := strconv.FormatInt(earning.Badge.ID.Int64(), 10)
	earningNumber := strconv.Itoa(earning.Earning)
	return EntryInput{
		UserID:      plan.userID,
		CurrencyKey: bonus.CurrencyKey,
		Delta:       bonus.Amount,
		Reason:      "badge bonus: " + earning.Badge.Title,
		SourceType:  SourceBadgeAward,
		SourceID:    "badge-" + badgeID + "-" + earningNumber,
		EventKey:    plan.eventKey,
		Metadata:    MetadataFromMap(map[string]string{"badge_id": badgeID, "earning": earningNumber}),
	}
}

// loadEventResult rebuilds the result an already processed event produced.
func (service *Service) loadEventResult(ctx context.Context, store Store, userID UserID, eventKey IdempotencyKey) (AwardResult, error) {
	entries, err := store.ListEntriesByEvent(ctx, userID, eventKey)
	if err != nil {
		return AwardResult{}, err
	}
	awards, err := store.ListBadgeAwardsByEvent(ctx, userID, eventKey)
	if err != nil {
		return AwardResult{}, err
	}
	transitions, err := store.ListRankTransitionsByEvent(ctx, userID, eventKey)
	if err != nil {
		return AwardResult{}, err
	}
	result := newAwardResult()
	result.Duplicate = true
	result.CreditsGranted = append(result.CreditsGranted, entries...)
	result.BadgesAwarded = append(result.BadgesAwarded, awards...)
	for _, transition := range transitions {
		result.RankChanges = append(result.RankChanges, service.tracker.rankChange(transition))
	}
	return result, nil
}

// GetBalance returns the projected balance of one currency, zero when unseen.
func (service *Service) GetBalance(ctx context.Context, userID UserID, currency CurrencyKey) (WalletBalance, error) {
	if userID.IsZero() {
		return WalletBalance{}, ErrInvalidUserID
	}
	return service.projector.GetBalance(ctx, service.store, userID, currency)
}

// GetBalances returns one balance per catalog currency.
func (service *Service) GetBalances(ctx context.Context, userID UserID) ([]WalletBalance, error) {
	if userID.IsZero() {
		return nil, ErrInvalidUserID
	}
	stored, err := service.store.ListWalletBalances(ctx, userID)
	if err != nil {
		return nil, err
	}
	byCurrency := make(map[CurrencyKey]WalletBalance, len(stored))
	for _, balance := range stored {
		byCurrency[balance.CurrencyKey] = balance
	}
	currencies := service.catalog.Currencies()
	balances := make([]WalletBalance, 0, len(currencies))
	for _, currency := range currencies {
		balance, ok := byCurrency[currency.Key]
		if !ok {
			balance = WalletBalance{UserID: userID, CurrencyKey: currency.Key}
		}
		balances = append(balances, balance)
	}
	return balances, nil
}

// GetHeldBadges returns the distinct badge ids the user holds, ascending.
func (service *Service) GetHeldBadges(ctx context.Context, userID UserID) ([]BadgeID, error) {
	awards, err := service.GetBadgeAwards(ctx, userID)
	if err != nil {
		return nil, err
	}
	seen := make(map[BadgeID]struct{}, len(awards))
	held := make([]BadgeID, 0, len(awards))
	for _, award := range awards {
		if _, ok := seen[award.BadgeID]; ok {
			continue
		}
		seen[award.BadgeID] = struct{}{}
		held = append(held, award.BadgeID)
	}
	sortBadgeIDs(held)
	return held, nil
}

// GetBadgeAwards returns every award row of the user.
func (service *Service) GetBadgeAwards(ctx context.Context, userID UserID) ([]BadgeAward, error) {
	if userID.IsZero() {
		return nil, ErrInvalidUserID
	}
	return service.store.ListBadgeAwards(ctx, userID)
}

// GetCurrentRank evaluates the rank from the current balance. ErrNoRank means no threshold is met.
func (service *Service) GetCurrentRank(ctx context.Context, userID UserID, currency CurrencyKey) (Rank, error) {
	balance, err := service.GetBalance(ctx, userID, currency)
	if err != nil {
		return Rank{}, err
	}
	rank, ok := service.tracker.EvaluateRank(currency, balance.Balance)
	if !ok {
		return Rank{}, WrapError("rank", "current", "none", ErrNoRank)
	}
	return rank, nil
}

// RankProgress reports the current and next rank of a currency.
func (service *Service) RankProgress(ctx context.Context, userID UserID, currency CurrencyKey) (RankProgress, error) {
	balance, err := service.GetBalance(ctx, userID, currency)
	if err != nil {
		return RankProgress{}, err
	}
	return service.tracker.RankProgress(currency, balance.Balance), nil
}

// BadgeStatuses reports progress toward every catalog badge.
func (service *Service) BadgeStatuses(ctx context.Context, userID UserID) ([]BadgeStatus, error) {
	if userID.IsZero() {
		return nil, ErrInvalidUserID
	}
	return service.tracker.BadgeStatuses(ctx, service.store, userID)
}

// Leaderboard returns the top balances of a currency with their ranks.
func (service *Service) Leaderboard(ctx context.Context, currency CurrencyKey, limit int) ([]LeaderboardEntry, error) {
	if !service.catalog.HasCurrency(currency) {
		return nil, WrapError("leaderboard", "currency", "unknown", fmt.Errorf("%w: %q", ErrInvalidCurrency, currency.String()))
	}
	normalized, err := normalizePageSize(limit)
	if err != nil {
		return nil, err
	}
	balances, err := service.store.TopWalletBalances(ctx, currency, normalized)
	if err != nil {
		return nil, err
	}
	board := make([]LeaderboardEntry, 0, len(balances))
	for index, balance := range balances {
		row := LeaderboardEntry{Position: index + 1, UserID: balance.UserID, Balance: balance.Balance}
		if rank, ok := service.tracker.EvaluateRank(currency, balance.Balance); ok {
			row.Rank = &rank
		}
		board = append(board, row)
	}
	return board, nil
}

// RankDistribution counts users per rank of a currency from the wallet projection.
// Buckets follow the ladder with the unranked bucket first; empty buckets are left out.
func (service *Service) RankDistribution(ctx context.Context, currency CurrencyKey) ([]RankBucket, error) {
	if !service.catalog.HasCurrency(currency) {
		return nil, WrapError("distribution", "currency", "unknown", fmt.Errorf("%w: %q", ErrInvalidCurrency, currency.String()))
	}
	ladder := service.catalog.Ranks(currency)
	var total int64
	atLeast := make([]int64, len(ladder))
	err := service.store.WithTx(ctx, func(ctx context.Context, txStore Store) error {
		var err error
		if total, err = txStore.CountWalletBalancesAtLeast(ctx, currency, math.MinInt64); err != nil {
			return err
		}
		for index, rank := range ladder {
			if atLeast[index], err = txStore.CountWalletBalancesAtLeast(ctx, currency, rank.CreditsRequired); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	buckets := make([]RankBucket, 0, len(ladder)+1)
	if total == 0 {
		return buckets, nil
	}
	unranked := total
	if len(ladder) > 0 {
		unranked -= atLeast[0]
	}
	if unranked > 0 {
		buckets = append(buckets, RankBucket{Users: unranked, Percentage: shareOf(unranked, total)})
	}
	for index := range ladder {
		users := atLeast[index]
		if index+1 < len(ladder) {
			users -= atLeast[index+1]
		}
		if users == 0 {
			continue
		}
		rank := ladder[index]
		buckets = append(buckets, RankBucket{Rank: &rank, Users: users, Percentage: shareOf(users, total)})
	}
	return buckets, nil
}

// GetStreak returns the activity streak of a user. A streak not extended yesterday or today reports zero current days.
func (service *Service) GetStreak(ctx context.Context, userID UserID) (StreakState, error) {
	if userID.IsZero() {
		return StreakState{}, ErrInvalidUserID
	}
	streak, err := service.store.GetStreak(ctx, userID)
	if err != nil {
		return StreakState{}, err
	}
	streak.UserID = userID
	return streak.asOf(activityDay(service.nowFn())), nil
}

// ListEntries returns one page of ledger history.
func (service *Service) ListEntries(ctx context.Context, query EntryQuery) ([]Entry, error) {
	if query.UserID.IsZero() {
		return nil, ErrInvalidUserID
	}
	if query.CurrencyKey != nil && !service.catalog.HasCurrency(*query.CurrencyKey) {
		return nil, WrapError("entries", "currency", "unknown", fmt.Errorf("%w: %q", ErrInvalidCurrency, query.CurrencyKey.String()))
	}
	limit, err := normalizePageSize(query.Limit)
	if err != nil {
		return nil, err
	}
	query.Limit = limit
	return service.store.ListEntries(ctx, query)
}

// Entries lazily scans the full history of a user.
func (service *Service) Entries(ctx context.Context, userID UserID, currency *CurrencyKey) iter.Seq2[Entry, error] {
	return service.journal.Entries(ctx, service.store, userID, currency, defaultPageSize)
}

// Reconcile rebuilds a wallet projection from the ledger and realigns the rank pointer.
func (service *Service) Reconcile(ctx context.Context, userID UserID, currency CurrencyKey) (ReconcileResult, error) {
	started := time.Now()
	result, err := service.reconcile(ctx, userID, currency)
	service.logOperation(ctx, OperationLog{
		Operation:   operationReconcile,
		UserID:      userID,
		CurrencyKey: currency,
		Drift:       result.Drift,
		Error:       err,
		Duration:    time.Since(started),
	})
	return result, err
}

func (service *Service) reconcile(ctx context.Context, userID UserID, currency CurrencyKey) (ReconcileResult, error) {
	if userID.IsZero() {
		return ReconcileResult{}, ErrInvalidUserID
	}
	eventKey, err := NewIdempotencyKey(operationReconcile + idempotencyKeyDelimiter + service.newID())
	if err != nil {
		return ReconcileResult{}, err
	}
	unlock, err := service.locker.Lock(ctx, userID)
	if err != nil {
		return ReconcileResult{}, err
	}
	defer unlock()

	var result ReconcileResult
	err = service.store.WithTx(ctx, func(ctx context.Context, txStore Store) error {
		if err := txStore.LockUser(ctx, userID); err != nil {
			return err
		}
		nowUnixUTC := service.nowFn()
		reconciled, err := service.projector.Reconcile(ctx, txStore, userID, currency, nowUnixUTC)
		if err != nil {
			return err
		}
		if _, err := service.tracker.ApplyRank(ctx, txStore, userID, currency, reconciled.After.Balance, eventKey, nowUnixUTC); err != nil {
			return err
		}
		result = reconciled
		return nil
	})
	if err != nil {
		return ReconcileResult{}, err
	}
	return result, nil
}

func (service *Service) logEvent(ctx context.Context, operation string, plan eventPlan, result AwardResult, operationError error, elapsed time.Duration) {
	entry := OperationLog{
		Operation:      operation,
		UserID:         plan.userID,
		IdempotencyKey: plan.eventKey,
		Error:          operationError,
		Duration:       elapsed,
	}
	if operationError == nil && result.Duplicate {
		entry.Status = operationStatusDuplicate
	}
	service.logOperation(ctx, entry)
	if operationError != nil || result.Duplicate {
		return
	}
	for _, credit := range result.CreditsGranted {
		service.logOperation(ctx, OperationLog{
			Operation:      operationAppend,
			UserID:         credit.UserID,
			CurrencyKey:    credit.CurrencyKey,
			Delta:          credit.Delta,
			IdempotencyKey: credit.IdempotencyKey,
		})
	}
	for _, award := range result.BadgesAwarded {
		service.logOperation(ctx, OperationLog{
			Operation:      operationAwardBadge,
			UserID:         award.UserID,
			BadgeID:        award.BadgeID,
			IdempotencyKey: award.EventKey,
		})
	}
	for _, change := range result.RankChanges {
		order := 0
		if change.To != nil {
			order = change.To.Order
		}
		service.logOperation(ctx, OperationLog{
			Operation:      operationRankChange,
			UserID:         plan.userID,
			CurrencyKey:    change.CurrencyKey,
			RankOrder:      order,
			IdempotencyKey: plan.eventKey,
		})
	}
}

func (service *Service) logOperation(ctx context.Context, entry OperationLog) {
	if service.logger == nil {
		return
	}
	if entry.Status == "" {
		if entry.Error != nil {
			entry.Status = operationStatusError
		} else {
			entry.Status = operationStatusOK
		}
	}
	service.logger.LogOperation(ctx, entry)
}

// shareOf is users as a rounded percentage of total.
func shareOf(users int64, total int64) int {
	return int((users*100 + total/2) / total)
}

func newAwardResult() AwardResult {
	return AwardResult{
		CreditsGranted: []Entry{},
		BadgesAwarded:  []BadgeAward{},
		RankChanges:    []RankChange{},
	}
}
