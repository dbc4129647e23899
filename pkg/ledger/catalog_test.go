package ledger

import (
	"errors"
	"testing"

	"github.com/shopspring/decimal"
)

func baseCatalogSpec(test *testing.T) CatalogSpec {
	test.Helper()
	academy := mustCurrency(test, academyCredits)
	return CatalogSpec{
		Currencies: []CurrencyType{{Key: academy, DisplayName: "Academy Credits"}},
		Rewards:    []RewardRule{{Credits: []Reward{{CurrencyKey: academy, Amount: 10}}}},
		Badges: []Badge{
			{ID: 1, Title: "One", Requirement: SimpleRequirement{SeriesID: mustSeries(test, seriesS), DrillsRequired: 1}},
			{ID: 2, Title: "Two", Requirement: SimpleRequirement{SeriesID: mustSeries(test, seriesT), DrillsRequired: 3}},
		},
		Ranks: []Rank{
			{Order: 1, Title: "Rookie", CurrencyKey: academy, CreditsRequired: 0},
			{Order: 2, Title: "Junior Varsity", CurrencyKey: academy, CreditsRequired: 100},
		},
	}
}

func TestNewCatalogRejectsInconsistentSpecs(test *testing.T) {
	test.Parallel()
	testCases := []struct {
		name     string
		mutate   func(test *testing.T, spec *CatalogSpec)
		wantCode string
	}{
		{
			name:     "no currencies",
			mutate:   func(test *testing.T, spec *CatalogSpec) { spec.Currencies = nil },
			wantCode: "empty",
		},
		{
			name: "duplicate currency",
			mutate: func(test *testing.T, spec *CatalogSpec) {
				spec.Currencies = append(spec.Currencies, spec.Currencies[0])
			},
			wantCode: "duplicate",
		},
		{
			name: "negative conversion rate",
			mutate: func(test *testing.T, spec *CatalogSpec) {
				spec.Currencies[0].ConversionRate = decimal.NewFromInt(-1)
			},
			wantCode: "conversion_rate",
		},
		{
			name: "duplicate badge",
			mutate: func(test *testing.T, spec *CatalogSpec) {
				spec.Badges = append(spec.Badges, spec.Badges[0])
			},
			wantCode: "duplicate",
		},
		{
			name: "badge without requirement",
			mutate: func(test *testing.T, spec *CatalogSpec) {
				spec.Badges = append(spec.Badges, Badge{ID: 9, Title: "Empty"})
			},
			wantCode: "requirement",
		},
		{
			name: "non positive threshold",
			mutate: func(test *testing.T, spec *CatalogSpec) {
				spec.Badges[0].Requirement = SimpleRequirement{SeriesID: mustSeries(test, seriesS), DrillsRequired: 0}
			},
			wantCode: "threshold",
		},
		{
			name: "unknown prerequisite",
			mutate: func(test *testing.T, spec *CatalogSpec) {
				spec.Badges = append(spec.Badges, Badge{ID: 3, Requirement: CombinationRequirement{PrerequisiteBadgeIDs: []BadgeID{1, 42}}})
			},
			wantCode: "prerequisite",
		},
		{
			name: "self prerequisite",
			mutate: func(test *testing.T, spec *CatalogSpec) {
				spec.Badges = append(spec.Badges, Badge{ID: 3, Requirement: CombinationRequirement{PrerequisiteBadgeIDs: []BadgeID{3}}})
			},
			wantCode: "cycle",
		},
		{
			name: "prerequisite cycle",
			mutate: func(test *testing.T, spec *CatalogSpec) {
				spec.Badges = append(spec.Badges,
					Badge{ID: 3, Requirement: CombinationRequirement{PrerequisiteBadgeIDs: []BadgeID{1, 5}}},
					Badge{ID: 4, Requirement: CombinationRequirement{PrerequisiteBadgeIDs: []BadgeID{3}}},
					Badge{ID: 5, Requirement: CombinationRequirement{PrerequisiteBadgeIDs: []BadgeID{4, 2}}},
				)
			},
			wantCode: "cycle",
		},
		{
			name: "bonus in unknown currency",
			mutate: func(test *testing.T, spec *CatalogSpec) {
				spec.Badges[0].Bonus = &Reward{CurrencyKey: mustCurrency(test, "gold_coins"), Amount: 5}
			},
			wantCode: "currency",
		},
		{
			name: "rank thresholds not increasing",
			mutate: func(test *testing.T, spec *CatalogSpec) {
				spec.Ranks[1].CreditsRequired = 0
			},
			wantCode: "monotonic",
		},
		{
			name: "duplicate rank order",
			mutate: func(test *testing.T, spec *CatalogSpec) {
				spec.Ranks[1].Order = 1
			},
			wantCode: "duplicate",
		},
		{
			name: "reward with zero amount",
			mutate: func(test *testing.T, spec *CatalogSpec) {
				spec.Rewards[0].Credits[0].Amount = 0
			},
			wantCode: "amount",
		},
		{
			name: "two default rules",
			mutate: func(test *testing.T, spec *CatalogSpec) {
				spec.Rewards = append(spec.Rewards, spec.Rewards[0])
			},
			wantCode: "duplicate",
		},
		{
			name: "reward lists a currency twice",
			mutate: func(test *testing.T, spec *CatalogSpec) {
				spec.Rewards[0].Credits = append(spec.Rewards[0].Credits, spec.Rewards[0].Credits[0])
			},
			wantCode: "duplicate",
		},
		{
			name:     "first of day bonus above cap",
			mutate:   func(test *testing.T, spec *CatalogSpec) { spec.Shaping.FirstOfDayPercent = 60 },
			wantCode: "first_of_day",
		},
		{
			name: "one day streak tier",
			mutate: func(test *testing.T, spec *CatalogSpec) {
				spec.Shaping.StreakTiers = []StreakTier{{MinDays: 1, BonusPercent: 5}}
			},
			wantCode: "streak",
		},
		{
			name: "streak tier above cap",
			mutate: func(test *testing.T, spec *CatalogSpec) {
				spec.Shaping.StreakTiers = []StreakTier{{MinDays: 7, BonusPercent: 75}}
			},
			wantCode: "streak",
		},
		{
			name: "longer streak grants less",
			mutate: func(test *testing.T, spec *CatalogSpec) {
				spec.Shaping.StreakTiers = []StreakTier{{MinDays: 7, BonusPercent: 10}, {MinDays: 3, BonusPercent: 20}}
			},
			wantCode: "monotonic",
		},
		{
			name: "perfect bonus lists a currency twice",
			mutate: func(test *testing.T, spec *CatalogSpec) {
				academy := mustCurrency(test, academyCredits)
				spec.Shaping.PerfectBonus = []Reward{{CurrencyKey: academy, Amount: 5}, {CurrencyKey: academy, Amount: 1}}
			},
			wantCode: "duplicate",
		},
		{
			name: "negative workout bonus",
			mutate: func(test *testing.T, spec *CatalogSpec) {
				spec.Shaping.WorkoutBonus = []Reward{{CurrencyKey: mustCurrency(test, academyCredits), Amount: -20}}
			},
			wantCode: "amount",
		},
	}

	for _, testCase := range testCases {
		testCase := testCase
		test.Run(testCase.name, func(test *testing.T) {
			test.Parallel()
			spec := baseCatalogSpec(test)
			testCase.mutate(test, &spec)
			_, err := NewCatalog(spec)
			if !errors.Is(err, ErrCatalogInconsistent) {
				test.Fatalf("expected ErrCatalogInconsistent, got %v", err)
			}
			var operationError OperationError
			if !errors.As(err, &operationError) || operationError.Code() != testCase.wantCode {
				test.Fatalf("expected code %q, got %v", testCase.wantCode, err)
			}
		})
	}
}

func TestCatalogOrdersCombinationsAfterPrerequisites(test *testing.T) {
	test.Parallel()
	spec := baseCatalogSpec(test)
	spec.Badges = append(spec.Badges,
		Badge{ID: 3, Requirement: CombinationRequirement{PrerequisiteBadgeIDs: []BadgeID{7, 1}}},
		Badge{ID: 7, Requirement: CombinationRequirement{PrerequisiteBadgeIDs: []BadgeID{1, 2}}},
		Badge{ID: 8, Requirement: CombinationRequirement{PrerequisiteBadgeIDs: []BadgeID{3, 7, 3}}},
	)
	catalog := mustCatalog(test, spec)

	order := make([]BadgeID, 0)
	for _, badge := range catalog.CombinationBadges() {
		order = append(order, badge.ID)
	}
	if len(order) != 3 || order[0] != 7 || order[1] != 3 || order[2] != 8 {
		test.Fatalf("expected [7 3 8], got %v", order)
	}
	badge, ok := catalog.Badge(8)
	if !ok {
		test.Fatalf("badge 8 missing")
	}
	prerequisites := badge.Requirement.(CombinationRequirement).PrerequisiteBadgeIDs
	if len(prerequisites) != 2 {
		test.Fatalf("expected deduplicated prerequisites, got %v", prerequisites)
	}
}

func TestCatalogDefaultsAndLookups(test *testing.T) {
	test.Parallel()
	spec := baseCatalogSpec(test)
	attack := mustCurrency(test, attackTokens)
	spec.Currencies = append(spec.Currencies, CurrencyType{Key: attack, ConversionRate: decimal.RequireFromString("0.5")})
	spec.Rewards = append(spec.Rewards, RewardRule{SeriesID: seriesRef(test, seriesAttack), Credits: []Reward{{CurrencyKey: attack, Amount: 4}}})
	catalog := mustCatalog(test, spec)

	academy, ok := catalog.Currency(mustCurrency(test, academyCredits))
	if !ok || !academy.ConversionRate.Equal(decimal.NewFromInt(1)) {
		test.Fatalf("expected default conversion rate 1, got %+v", academy)
	}
	attackType, _ := catalog.Currency(attack)
	if attackType.DisplayName != attackTokens || attackType.ConversionRate.String() != "0.5" {
		test.Fatalf("unexpected attack currency: %+v", attackType)
	}
	if rewards := catalog.RewardsFor(mustSeries(test, seriesAttack)); len(rewards) != 1 || rewards[0].CurrencyKey != attack {
		test.Fatalf("expected series rule, got %+v", rewards)
	}
	if rewards := catalog.RewardsFor(mustSeries(test, "unknown-series")); len(rewards) != 1 || rewards[0].Amount != 10 {
		test.Fatalf("expected default rule, got %+v", rewards)
	}
	badge, _ := catalog.Badge(1)
	if badge.MaximumEarnings != 1 {
		test.Fatalf("expected default maximum earnings 1, got %d", badge.MaximumEarnings)
	}
	if got := catalog.SimpleBadgesForSeries(mustSeries(test, seriesT)); len(got) != 1 || got[0].ID != 2 {
		test.Fatalf("unexpected series badges: %+v", got)
	}
	if currencies := catalog.RankCurrencies(); len(currencies) != 1 || currencies[0].String() != academyCredits {
		test.Fatalf("unexpected rank currencies: %v", currencies)
	}
}

func TestCatalogShapingPercent(test *testing.T) {
	test.Parallel()
	spec := baseCatalogSpec(test)
	spec.Shaping = RewardShaping{
		StreakTiers:       []StreakTier{{MinDays: 30, BonusPercent: 30}, {MinDays: 3, BonusPercent: 5}, {MinDays: 7, BonusPercent: 15}},
		FirstOfDayPercent: 10,
	}
	catalog := mustCatalog(test, spec)

	testCases := []struct {
		name       string
		streakDays int
		firstOfDay bool
		want       int
	}{
		{name: "new player", streakDays: 1, firstOfDay: true, want: 10},
		{name: "second workout today", streakDays: 1, firstOfDay: false, want: 0},
		{name: "three day streak", streakDays: 3, firstOfDay: false, want: 5},
		{name: "week streak first today", streakDays: 7, firstOfDay: true, want: 25},
		{name: "month streak", streakDays: 30, firstOfDay: false, want: 30},
		{name: "long streak first today", streakDays: 400, firstOfDay: true, want: 40},
	}
	for _, testCase := range testCases {
		if got := catalog.ShapingPercent(testCase.streakDays, testCase.firstOfDay); got != testCase.want {
			test.Fatalf("%s: expected %d%%, got %d%%", testCase.name, testCase.want, got)
		}
	}
	if tiers := catalog.Shaping().StreakTiers; tiers[0].MinDays != 3 || tiers[2].MinDays != 30 {
		test.Fatalf("expected tiers ordered by days, got %+v", tiers)
	}

	spec.Shaping = RewardShaping{StreakTiers: []StreakTier{{MinDays: 30, BonusPercent: 50}}, FirstOfDayPercent: 20}
	capped := mustCatalog(test, spec)
	if got := capped.ShapingPercent(45, true); got != maxShapingPercent {
		test.Fatalf("expected bonus capped at %d%%, got %d%%", maxShapingPercent, got)
	}
}
