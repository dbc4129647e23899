package ledger

import (
	"context"
	"fmt"
)

// BadgeEarning is a badge that became eligible, with the earning number it would take.
type BadgeEarning struct {
	Badge   Badge
	Earning int
}

// Progress is a current/required pair with a percentage in [0, 100].
type Progress struct {
	Current    int64
	Required   int64
	Percentage float64
}

// BadgeStatus is a player's standing on one badge.
type BadgeStatus struct {
	Badge    Badge
	Held     int
	Progress Progress
}

// RankProgress describes where a balance sits inside a rank ladder.
type RankProgress struct {
	CurrencyKey   CurrencyKey
	Balance       int64
	Current       *Rank
	Next          *Rank
	CreditsToNext int64
	Percentage    float64
}

// Tracker maintains drill counters and evaluates badge and rank rules.
type Tracker struct {
	catalog *Catalog
}

// NewTracker wires a tracker.
func NewTracker(catalog *Catalog) (*Tracker, error) {
	if catalog == nil {
		return nil, fmt.Errorf("%w: catalog dependency is nil", ErrInvalidServiceConfig)
	}
	return &Tracker{catalog: catalog}, nil
}

// RecordCompletion increments the counter of every simple badge tracking the series.
// The caller guarantees it runs once per genuine completion.
func (tracker *Tracker) RecordCompletion(ctx context.Context, store Store, userID UserID, drillID DrillID, seriesID SeriesID, nowUnixUTC int64) ([]BadgeProgress, error) {
	if userID.IsZero() {
		return nil, ErrInvalidUserID
	}
	if drillID.String() == "" {
		return nil, ErrInvalidDrillID
	}
	if seriesID.String() == "" {
		return nil, ErrInvalidSeriesID
	}
	badges := tracker.catalog.SimpleBadgesForSeries(seriesID)
	updated := make([]BadgeProgress, 0, len(badges))
	for _, badge := range badges {
		progress, err := store.IncrementBadgeProgress(ctx, userID, badge.ID, nowUnixUTC)
		if err != nil {
			return nil, err
		}
		updated = append(updated, progress)
	}
	return updated, nil
}

// EvaluateBadges returns the earnings the user qualifies for right now and does not hold yet.
// Simple badges are evaluated first, then combination badges in prerequisite order, so a
// combination unlocked by badges earned in the same pass is included.
func (tracker *Tracker) EvaluateBadges(ctx context.Context, store Store, userID UserID) ([]BadgeEarning, error) {
	drills, held, err := tracker.loadStanding(ctx, store, userID)
	if err != nil {
		return nil, err
	}
	earnings := make([]BadgeEarning, 0)
	for _, badge := range tracker.catalog.SimpleBadges() {
		earnings = appendEarnings(earnings, badge, held, simpleEarningsAllowed(badge, drills[badge.ID]))
	}
	for _, badge := range tracker.catalog.CombinationBadges() {
		earnings = appendEarnings(earnings, badge, held, combinationEarningsAllowed(badge, held))
	}
	return earnings, nil
}

// BadgeStatuses reports held counts and progress toward the next earning of every badge.
func (tracker *Tracker) BadgeStatuses(ctx context.Context, store Store, userID UserID) ([]BadgeStatus, error) {
	drills, held, err := tracker.loadStanding(ctx, store, userID)
	if err != nil {
		return nil, err
	}
	badges := tracker.catalog.Badges()
	statuses := make([]BadgeStatus, 0, len(badges))
	for _, badge := range badges {
		count := held[badge.ID]
		next := min(count+1, badge.MaximumEarnings)
		var progress Progress
		switch requirement := badge.Requirement.(type) {
		case SimpleRequirement:
			progress = newProgress(drills[badge.ID], requirement.DrillsRequired*int64(next))
		case CombinationRequirement:
			satisfied := int64(0)
			for _, prerequisiteID := range requirement.PrerequisiteBadgeIDs {
				if held[prerequisiteID] >= next {
					satisfied++
				}
			}
			progress = newProgress(satisfied, int64(len(requirement.PrerequisiteBadgeIDs)))
		}
		if count >= badge.MaximumEarnings {
			progress.Current = progress.Required
			progress.Percentage = 100
		}
		statuses = append(statuses, BadgeStatus{Badge: badge, Held: count, Progress: progress})
	}
	return statuses, nil
}

// EvaluateRank returns the highest rank of the currency whose threshold the balance meets.
func (tracker *Tracker) EvaluateRank(currency CurrencyKey, balance int64) (Rank, bool) {
	return rankForBalance(tracker.catalog.Ranks(currency), balance)
}

// RankProgress places a balance inside the currency ladder.
func (tracker *Tracker) RankProgress(currency CurrencyKey, balance int64) RankProgress {
	ladder := tracker.catalog.Ranks(currency)
	result := RankProgress{CurrencyKey: currency, Balance: balance}
	current, ok := rankForBalance(ladder, balance)
	floor := int64(0)
	if ok {
		result.Current = &current
		floor = current.CreditsRequired
	}
	for index := range ladder {
		if ladder[index].CreditsRequired > balance {
			next := ladder[index]
			result.Next = &next
			break
		}
	}
	if result.Next == nil {
		result.Percentage = 100
		return result
	}
	result.CreditsToNext = result.Next.CreditsRequired - balance
	band := result.Next.CreditsRequired - floor
	if band > 0 {
		result.Percentage = clampPercentage(float64(balance-floor) / float64(band) * 100)
	}
	return result
}

// ApplyRank moves the stored rank pointer to match balance and records the transition.
// It returns nil when the pointer did not move.
func (tracker *Tracker) ApplyRank(ctx context.Context, store Store, userID UserID, currency CurrencyKey, balance int64, eventKey IdempotencyKey, nowUnixUTC int64) (*RankChange, error) {
	ladder := tracker.catalog.Ranks(currency)
	if len(ladder) == 0 {
		return nil, nil
	}
	state, err := store.GetRankState(ctx, userID, currency)
	if err != nil {
		return nil, err
	}
	target, ok := rankForBalance(ladder, balance)
	targetOrder := 0
	if ok {
		targetOrder = target.Order
	}
	if targetOrder == state.RankOrder {
		return nil, nil
	}
	if err := store.UpsertRankState(ctx, RankState{
		UserID:         userID,
		CurrencyKey:    currency,
		RankOrder:      targetOrder,
		UpdatedUnixUTC: nowUnixUTC,
	}); err != nil {
		return nil, err
	}
	transition := RankTransition{
		UserID:         userID,
		CurrencyKey:    currency,
		FromOrder:      state.RankOrder,
		ToOrder:        targetOrder,
		EventKey:       eventKey,
		CreatedUnixUTC: nowUnixUTC,
	}
	if err := store.InsertRankTransition(ctx, transition); err != nil {
		return nil, err
	}
	change := tracker.rankChange(transition)
	return &change, nil
}

func (tracker *Tracker) rankChange(transition RankTransition) RankChange {
	return RankChange{
		CurrencyKey: transition.CurrencyKey,
		From:        tracker.rankByOrder(transition.CurrencyKey, transition.FromOrder),
		To:          tracker.rankByOrder(transition.CurrencyKey, transition.ToOrder),
	}
}

func (tracker *Tracker) rankByOrder(currency CurrencyKey, order int) *Rank {
	if order == 0 {
		return nil
	}
	for _, rank := range tracker.catalog.Ranks(currency) {
		if rank.Order == order {
			return &rank
		}
	}
	return nil
}

func (tracker *Tracker) loadStanding(ctx context.Context, store Store, userID UserID) (map[BadgeID]int64, map[BadgeID]int, error) {
	progressRows, err := store.ListBadgeProgress(ctx, userID)
	if err != nil {
		return nil, nil, err
	}
	awards, err := store.ListBadgeAwards(ctx, userID)
	if err != nil {
		return nil, nil, err
	}
	drills := make(map[BadgeID]int64, len(progressRows))
	for _, row := range progressRows {
		drills[row.BadgeID] = row.DrillsCompleted
	}
	held := make(map[BadgeID]int, len(awards))
	for _, award := range awards {
		held[award.BadgeID]++
	}
	return drills, held, nil
}

// appendEarnings adds the earnings between the held count and allowed, and counts them as held.
func appendEarnings(earnings []BadgeEarning, badge Badge, held map[BadgeID]int, allowed int) []BadgeEarning {
	allowed = min(allowed, badge.MaximumEarnings)
	for earning := held[badge.ID] + 1; earning <= allowed; earning++ {
		earnings = append(earnings, BadgeEarning{Badge: badge, Earning: earning})
	}
	if allowed > held[badge.ID] {
		held[badge.ID] = allowed
	}
	return earnings
}

// The k-th earning of a simple badge needs k times its drill threshold.
func simpleEarningsAllowed(badge Badge, drillsCompleted int64) int {
	requirement, ok := badge.Requirement.(SimpleRequirement)
	if !ok || requirement.DrillsRequired <= 0 {
		return 0
	}
	allowed := drillsCompleted / requirement.DrillsRequired
	if allowed > int64(badge.MaximumEarnings) {
		return badge.MaximumEarnings
	}
	return int(allowed)
}

// The k-th earning of a combination badge needs every prerequisite held at least k times.
func combinationEarningsAllowed(badge Badge, held map[BadgeID]int) int {
	requirement, ok := badge.Requirement.(CombinationRequirement)
	if !ok || len(requirement.PrerequisiteBadgeIDs) == 0 {
		return 0
	}
	allowed := badge.MaximumEarnings
	for _, prerequisiteID := range requirement.PrerequisiteBadgeIDs {
		allowed = min(allowed, held[prerequisiteID])
	}
	return allowed
}

func rankForBalance(ladder []Rank, balance int64) (Rank, bool) {
	var (
		best  Rank
		found bool
	)
	for _, rank := range ladder {
		if rank.CreditsRequired <= balance {
			best = rank
			found = true
		}
	}
	return best, found
}

func newProgress(current int64, required int64) Progress {
	if required <= 0 {
		return Progress{Current: current, Required: required, Percentage: 100}
	}
	return Progress{
		Current:    min(current, required),
		Required:   required,
		Percentage: clampPercentage(float64(current) / float64(required) * 100),
	}
}

func clampPercentage(value float64) float64 {
	return max(0, min(value, 100))
}
