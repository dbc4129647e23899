package ledger

import (
	"sort"
	"strings"

	"github.com/shopspring/decimal"
)

// CurrencyType is an immutable currency definition.
type CurrencyType struct {
	Key            CurrencyKey
	DisplayName    string
	ConversionRate decimal.Decimal
}

// Requirement is the unlock rule of a badge: SimpleRequirement or CombinationRequirement.
type Requirement interface {
	isRequirement()
}

// SimpleRequirement is met when enough drills of one series are completed.
type SimpleRequirement struct {
	SeriesID       SeriesID
	DrillsRequired int64
}

// CombinationRequirement is met when every prerequisite badge is held.
type CombinationRequirement struct {
	PrerequisiteBadgeIDs []BadgeID
}

func (SimpleRequirement) isRequirement()      {}
func (CombinationRequirement) isRequirement() {}

// Reward is a fixed currency amount granted by a rule.
type Reward struct {
	CurrencyKey CurrencyKey
	Amount      Delta
}

// Badge is a catalog achievement.
type Badge struct {
	ID              BadgeID
	Title           string
	Category        string
	Requirement     Requirement
	MaximumEarnings int
	Bonus           *Reward
}

// Rank is one tier of a currency ladder.
type Rank struct {
	Order           int
	Title           string
	CurrencyKey     CurrencyKey
	CreditsRequired int64
}

// RewardRule maps a series to the credits a completed drill grants. A nil SeriesID marks the default rule.
type RewardRule struct {
	SeriesID *SeriesID
	Credits  []Reward
}

// StreakTier raises completion credits once a streak reaches MinDays consecutive days.
type StreakTier struct {
	MinDays      int
	BonusPercent int
}

// RewardShaping adjusts the credits of a completed drill. The zero value grants the base rewards only.
type RewardShaping struct {
	StreakTiers       []StreakTier
	FirstOfDayPercent int
	PerfectBonus      []Reward
	WorkoutBonus      []Reward
}

// CatalogSpec is the raw catalog handed to NewCatalog.
type CatalogSpec struct {
	Currencies []CurrencyType
	Badges     []Badge
	Ranks      []Rank
	Rewards    []RewardRule
	Shaping    RewardShaping
}

// Catalog is the validated, read-only registry consulted by every component.
type Catalog struct {
	currencies       map[CurrencyKey]CurrencyType
	currencyOrder    []CurrencyKey
	badges           map[BadgeID]Badge
	badgeOrder       []BadgeID
	simpleOrder      []BadgeID
	simpleBySeries   map[SeriesID][]BadgeID
	combinationOrder []BadgeID
	ranks            map[CurrencyKey][]Rank
	rankCurrencies   []CurrencyKey
	rewardsBySeries  map[SeriesID][]Reward
	defaultRewards   []Reward
	shaping          RewardShaping
}

// NewCatalog validates a catalog spec. Every violation is reported as ErrCatalogInconsistent.
func NewCatalog(spec CatalogSpec) (*Catalog, error) {
	catalog := &Catalog{
		currencies:      make(map[CurrencyKey]CurrencyType, len(spec.Currencies)),
		badges:          make(map[BadgeID]Badge, len(spec.Badges)),
		simpleBySeries:  make(map[SeriesID][]BadgeID),
		ranks:           make(map[CurrencyKey][]Rank),
		rewardsBySeries: make(map[SeriesID][]Reward),
	}
	if err := catalog.loadCurrencies(spec.Currencies); err != nil {
		return nil, err
	}
	if err := catalog.loadBadges(spec.Badges); err != nil {
		return nil, err
	}
	if err := catalog.orderCombinations(); err != nil {
		return nil, err
	}
	if err := catalog.loadRanks(spec.Ranks); err != nil {
		return nil, err
	}
	if err := catalog.loadRewards(spec.Rewards); err != nil {
		return nil, err
	}
	if err := catalog.loadShaping(spec.Shaping); err != nil {
		return nil, err
	}
	return catalog, nil
}

func (catalog *Catalog) loadCurrencies(currencies []CurrencyType) error {
	if len(currencies) == 0 {
		return catalogError("currency", "empty", "at least one currency is required")
	}
	for _, currency := range currencies {
		if currency.Key.IsZero() {
			return catalogError("currency", "invalid", "currency key is empty")
		}
		if _, exists := catalog.currencies[currency.Key]; exists {
			return catalogError("currency", "duplicate", "currency %q declared twice", currency.Key.String())
		}
		if currency.ConversionRate.IsZero() {
			currency.ConversionRate = decimal.NewFromInt(1)
		}
		if currency.ConversionRate.IsNegative() {
			return catalogError("currency", "conversion_rate", "currency %q has negative conversion rate", currency.Key.String())
		}
		if strings.TrimSpace(currency.DisplayName) == "" {
			currency.DisplayName = currency.Key.String()
		}
		catalog.currencies[currency.Key] = currency
		catalog.currencyOrder = append(catalog.currencyOrder, currency.Key)
	}
	return nil
}

func (catalog *Catalog) loadBadges(badges []Badge) error {
	for _, badge := range badges {
		if badge.ID <= 0 {
			return catalogError("badge", "invalid", "badge id %d is not positive", badge.ID)
		}
		if _, exists := catalog.badges[badge.ID]; exists {
			return catalogError("badge", "duplicate", "badge %d declared twice", badge.ID)
		}
		if badge.MaximumEarnings == 0 {
			badge.MaximumEarnings = defaultMaxEarnings
		}
		if badge.MaximumEarnings < 0 {
			return catalogError("badge", "maximum_earnings", "badge %d has negative maximum earnings", badge.ID)
		}
		if badge.Bonus != nil {
			if !catalog.HasCurrency(badge.Bonus.CurrencyKey) {
				return catalogError("badge", "currency", "badge %d bonus references unknown currency %q", badge.ID, badge.Bonus.CurrencyKey.String())
			}
			if badge.Bonus.Amount == 0 {
				return catalogError("badge", "bonus", "badge %d bonus amount is zero", badge.ID)
			}
		}
		switch requirement := badge.Requirement.(type) {
		case SimpleRequirement:
			if requirement.SeriesID.String() == "" {
				return catalogError("badge", "series", "badge %d has empty series", badge.ID)
			}
			if requirement.DrillsRequired <= 0 {
				return catalogError("badge", "threshold", "badge %d requires %d drills", badge.ID, requirement.DrillsRequired)
			}
			catalog.simpleOrder = append(catalog.simpleOrder, badge.ID)
			catalog.simpleBySeries[requirement.SeriesID] = append(catalog.simpleBySeries[requirement.SeriesID], badge.ID)
		case CombinationRequirement:
			if len(requirement.PrerequisiteBadgeIDs) == 0 {
				return catalogError("badge", "prerequisites", "combination badge %d has no prerequisites", badge.ID)
			}
			badge.Requirement = CombinationRequirement{PrerequisiteBadgeIDs: uniqueBadgeIDs(requirement.PrerequisiteBadgeIDs)}
		default:
			return catalogError("badge", "requirement", "badge %d has no requirement", badge.ID)
		}
		catalog.badges[badge.ID] = badge
		catalog.badgeOrder = append(catalog.badgeOrder, badge.ID)
	}
	sortBadgeIDs(catalog.badgeOrder)
	sortBadgeIDs(catalog.simpleOrder)
	for series := range catalog.simpleBySeries {
		sortBadgeIDs(catalog.simpleBySeries[series])
	}
	return nil
}

// orderCombinations validates prerequisite references and topologically sorts combination badges.
func (catalog *Catalog) orderCombinations() error {
	indegree := make(map[BadgeID]int)
	dependents := make(map[BadgeID][]BadgeID)
	for _, badgeID := range catalog.badgeOrder {
		combination, ok := catalog.badges[badgeID].Requirement.(CombinationRequirement)
		if !ok {
			continue
		}
		indegree[badgeID] += 0
		for _, prerequisiteID := range combination.PrerequisiteBadgeIDs {
			if prerequisiteID == badgeID {
				return catalogError("badge", "cycle", "badge %d lists itself as a prerequisite", badgeID)
			}
			prerequisite, exists := catalog.badges[prerequisiteID]
			if !exists {
				return catalogError("badge", "prerequisite", "badge %d references unknown prerequisite %d", badgeID, prerequisiteID)
			}
			if _, isCombination := prerequisite.Requirement.(CombinationRequirement); isCombination {
				indegree[badgeID]++
				dependents[prerequisiteID] = append(dependents[prerequisiteID], badgeID)
			}
		}
	}

	ready := make([]BadgeID, 0, len(indegree))
	for badgeID, degree := range indegree {
		if degree == 0 {
			ready = append(ready, badgeID)
		}
	}
	sortBadgeIDs(ready)
	for len(ready) > 0 {
		current := ready[0]
		ready = ready[1:]
		catalog.combinationOrder = append(catalog.combinationOrder, current)
		released := false
		for _, dependent := range dependents[current] {
			indegree[dependent]--
			if indegree[dependent] == 0 {
				ready = append(ready, dependent)
				released = true
			}
		}
		if released {
			sortBadgeIDs(ready)
		}
	}
	if len(catalog.combinationOrder) != len(indegree) {
		cyclic := make([]BadgeID, 0)
		for badgeID, degree := range indegree {
			if degree > 0 {
				cyclic = append(cyclic, badgeID)
			}
		}
		sortBadgeIDs(cyclic)
		return catalogError("badge", "cycle", "prerequisite cycle among badges %v", cyclic)
	}
	return nil
}

func (catalog *Catalog) loadRanks(ranks []Rank) error {
	seenOrders := make(map[CurrencyKey]map[int]struct{})
	for _, rank := range ranks {
		if !catalog.HasCurrency(rank.CurrencyKey) {
			return catalogError("rank", "currency", "rank %d references unknown currency %q", rank.Order, rank.CurrencyKey.String())
		}
		if rank.Order <= 0 {
			return catalogError("rank", "order", "rank order %d is not positive", rank.Order)
		}
		if rank.CreditsRequired < 0 {
			return catalogError("rank", "threshold", "rank %d requires negative credits", rank.Order)
		}
		orders, ok := seenOrders[rank.CurrencyKey]
		if !ok {
			orders = make(map[int]struct{})
			seenOrders[rank.CurrencyKey] = orders
			catalog.rankCurrencies = append(catalog.rankCurrencies, rank.CurrencyKey)
		}
		if _, exists := orders[rank.Order]; exists {
			return catalogError("rank", "duplicate", "rank order %d declared twice for %q", rank.Order, rank.CurrencyKey.String())
		}
		orders[rank.Order] = struct{}{}
		catalog.ranks[rank.CurrencyKey] = append(catalog.ranks[rank.CurrencyKey], rank)
	}
	for currency, ladder := range catalog.ranks {
		sort.Slice(ladder, func(left, right int) bool { return ladder[left].Order < ladder[right].Order })
		for index := 1; index < len(ladder); index++ {
			if ladder[index].CreditsRequired <= ladder[index-1].CreditsRequired {
				return catalogError("rank", "monotonic", "rank %d of %q does not require more credits than rank %d", ladder[index].Order, currency.String(), ladder[index-1].Order)
			}
		}
	}
	return nil
}

func (catalog *Catalog) loadRewards(rules []RewardRule) error {
	defaultSeen := false
	for _, rule := range rules {
		if err := catalog.checkCredits("reward", rule.Credits); err != nil {
			return err
		}
		if rule.SeriesID == nil {
			if defaultSeen {
				return catalogError("reward", "duplicate", "default reward rule declared twice")
			}
			defaultSeen = true
			catalog.defaultRewards = append([]Reward(nil), rule.Credits...)
			continue
		}
		if _, exists := catalog.rewardsBySeries[*rule.SeriesID]; exists {
			return catalogError("reward", "duplicate", "reward rule for series %q declared twice", rule.SeriesID.String())
		}
		catalog.rewardsBySeries[*rule.SeriesID] = append([]Reward(nil), rule.Credits...)
	}
	return nil
}

func (catalog *Catalog) loadShaping(shaping RewardShaping) error {
	if shaping.FirstOfDayPercent < 0 || shaping.FirstOfDayPercent > maxShapingPercent {
		return catalogError("shaping", "first_of_day", "first of day bonus %d%% is outside 0..%d", shaping.FirstOfDayPercent, maxShapingPercent)
	}
	tiers := append([]StreakTier(nil), shaping.StreakTiers...)
	sort.Slice(tiers, func(left, right int) bool { return tiers[left].MinDays < tiers[right].MinDays })
	for index, tier := range tiers {
		if tier.MinDays < 2 {
			return catalogError("shaping", "streak", "streak tier needs at least 2 days, got %d", tier.MinDays)
		}
		if tier.BonusPercent <= 0 || tier.BonusPercent > maxShapingPercent {
			return catalogError("shaping", "streak", "streak tier of %d days grants %d%%, outside 1..%d", tier.MinDays, tier.BonusPercent, maxShapingPercent)
		}
		if index > 0 && tier.MinDays == tiers[index-1].MinDays {
			return catalogError("shaping", "duplicate", "streak tier of %d days declared twice", tier.MinDays)
		}
		if index > 0 && tier.BonusPercent < tiers[index-1].BonusPercent {
			return catalogError("shaping", "monotonic", "streak tier of %d days grants less than a shorter streak", tier.MinDays)
		}
	}
	for _, bonus := range [][]Reward{shaping.PerfectBonus, shaping.WorkoutBonus} {
		if err := catalog.checkCredits("shaping", bonus); err != nil {
			return err
		}
		for _, credit := range bonus {
			if credit.Amount < 0 {
				return catalogError("shaping", "amount", "bonus for %q is negative", credit.CurrencyKey.String())
			}
		}
	}
	catalog.shaping = RewardShaping{
		StreakTiers:       tiers,
		FirstOfDayPercent: shaping.FirstOfDayPercent,
		PerfectBonus:      append([]Reward(nil), shaping.PerfectBonus...),
		WorkoutBonus:      append([]Reward(nil), shaping.WorkoutBonus...),
	}
	return nil
}

// checkCredits rejects unknown currencies, zero amounts and a currency listed twice in one credit list.
func (catalog *Catalog) checkCredits(subject string, credits []Reward) error {
	seen := make(map[CurrencyKey]struct{}, len(credits))
	for _, credit := range credits {
		if !catalog.HasCurrency(credit.CurrencyKey) {
			return catalogError(subject, "currency", "%s references unknown currency %q", subject, credit.CurrencyKey.String())
		}
		if credit.Amount == 0 {
			return catalogError(subject, "amount", "%s for %q has zero amount", subject, credit.CurrencyKey.String())
		}
		if _, exists := seen[credit.CurrencyKey]; exists {
			return catalogError(subject, "duplicate", "%s lists currency %q twice", subject, credit.CurrencyKey.String())
		}
		seen[credit.CurrencyKey] = struct{}{}
	}
	return nil
}

// HasCurrency reports whether key is a known currency.
func (catalog *Catalog) HasCurrency(key CurrencyKey) bool {
	_, ok := catalog.currencies[key]
	return ok
}

// Currency returns a currency definition.
func (catalog *Catalog) Currency(key CurrencyKey) (CurrencyType, bool) {
	currency, ok := catalog.currencies[key]
	return currency, ok
}

// Currencies returns currencies in declaration order.
func (catalog *Catalog) Currencies() []CurrencyType {
	out := make([]CurrencyType, 0, len(catalog.currencyOrder))
	for _, key := range catalog.currencyOrder {
		out = append(out, catalog.currencies[key])
	}
	return out
}

// Badge returns a badge by id.
func (catalog *Catalog) Badge(id BadgeID) (Badge, bool) {
	badge, ok := catalog.badges[id]
	return badge, ok
}

// Badges returns all badges ordered by id.
func (catalog *Catalog) Badges() []Badge {
	return catalog.collectBadges(catalog.badgeOrder)
}

// SimpleBadges returns simple badges ordered by id.
func (catalog *Catalog) SimpleBadges() []Badge {
	return catalog.collectBadges(catalog.simpleOrder)
}

// SimpleBadgesForSeries returns the simple badges counting drills of a series.
func (catalog *Catalog) SimpleBadgesForSeries(series SeriesID) []Badge {
	return catalog.collectBadges(catalog.simpleBySeries[series])
}

// CombinationBadges returns combination badges so that every badge follows its combination prerequisites.
func (catalog *Catalog) CombinationBadges() []Badge {
	return catalog.collectBadges(catalog.combinationOrder)
}

// Ranks returns the ladder of a currency ordered by rank order.
func (catalog *Catalog) Ranks(currency CurrencyKey) []Rank {
	return append([]Rank(nil), catalog.ranks[currency]...)
}

// RankCurrencies lists currencies that carry a rank ladder.
func (catalog *Catalog) RankCurrencies() []CurrencyKey {
	return append([]CurrencyKey(nil), catalog.rankCurrencies...)
}

// RewardsFor returns the credits granted for one completed drill of a series.
func (catalog *Catalog) RewardsFor(series SeriesID) []Reward {
	if rewards, ok := catalog.rewardsBySeries[series]; ok {
		return append([]Reward(nil), rewards...)
	}
	return append([]Reward(nil), catalog.defaultRewards...)
}

// Shaping returns the reward shaping rules with streak tiers ordered by MinDays.
func (catalog *Catalog) Shaping() RewardShaping {
	return RewardShaping{
		StreakTiers:       append([]StreakTier(nil), catalog.shaping.StreakTiers...),
		FirstOfDayPercent: catalog.shaping.FirstOfDayPercent,
		PerfectBonus:      append([]Reward(nil), catalog.shaping.PerfectBonus...),
		WorkoutBonus:      append([]Reward(nil), catalog.shaping.WorkoutBonus...),
	}
}

// ShapingPercent is the bonus applied to the base credits of a completion, capped at 50 percent.
func (catalog *Catalog) ShapingPercent(streakDays int, firstOfDay bool) int {
	percent := 0
	for _, tier := range catalog.shaping.StreakTiers {
		if streakDays >= tier.MinDays {
			percent = tier.BonusPercent
		}
	}
	if firstOfDay {
		percent += catalog.shaping.FirstOfDayPercent
	}
	return min(percent, maxShapingPercent)
}

func (catalog *Catalog) collectBadges(ids []BadgeID) []Badge {
	out := make([]Badge, 0, len(ids))
	for _, id := range ids {
		out = append(out, catalog.badges[id])
	}
	return out
}

func sortBadgeIDs(ids []BadgeID) {
	sort.Slice(ids, func(left, right int) bool { return ids[left] < ids[right] })
}

func uniqueBadgeIDs(ids []BadgeID) []BadgeID {
	seen := make(map[BadgeID]struct{}, len(ids))
	out := make([]BadgeID, 0, len(ids))
	for _, id := range ids {
		if _, exists := seen[id]; exists {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	sortBadgeIDs(out)
	return out
}
