// Package catalogfile loads the gamification catalog from TOML.
package catalogfile

import (
	"bytes"
	_ "embed"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"

	"github.com/MarkoPoloResearchLab/gamification/pkg/ledger"
)

//go:embed default_catalog.toml
var defaultCatalog []byte

type catalogDocument struct {
	Currencies []currencyRecord `toml:"currencies" validate:"required,min=1,dive"`
	Rewards    []rewardRecord   `toml:"rewards" validate:"dive"`
	Badges     []badgeRecord    `toml:"badges" validate:"dive"`
	Ranks      []rankRecord     `toml:"ranks" validate:"dive"`
	Shaping    *shapingRecord   `toml:"shaping"`
}

type currencyRecord struct {
	Key            string `toml:"key" validate:"required"`
	DisplayName    string `toml:"display_name"`
	ConversionRate string `toml:"conversion_rate"`
}

type creditRecord struct {
	Currency string `toml:"currency" validate:"required"`
	Amount   int64  `toml:"amount" validate:"ne=0"`
}

type rewardRecord struct {
	SeriesID string         `toml:"series_id"`
	Credits  []creditRecord `toml:"credits" validate:"required,min=1,dive"`
}

type simpleRecord struct {
	SeriesID       string `toml:"series_id" validate:"required"`
	DrillsRequired int64  `toml:"drills_required" validate:"gt=0"`
}

type combinationRecord struct {
	PrerequisiteBadgeIDs []int64 `toml:"prerequisite_badge_ids" validate:"required,min=1,dive,gt=0"`
}

type badgeRecord struct {
	ID              int64              `toml:"id" validate:"gt=0"`
	Title           string             `toml:"title" validate:"required"`
	Category        string             `toml:"category"`
	MaximumEarnings int                `toml:"maximum_earnings" validate:"gte=0"`
	Simple          *simpleRecord      `toml:"simple" validate:"required_without=Combination"`
	Combination     *combinationRecord `toml:"combination"`
	Bonus           *creditRecord      `toml:"bonus"`
}

type rankRecord struct {
	Order           int    `toml:"order" validate:"gt=0"`
	Title           string `toml:"title" validate:"required"`
	Currency        string `toml:"currency" validate:"required"`
	CreditsRequired int64  `toml:"credits_required" validate:"gte=0"`
}

type streakTierRecord struct {
	MinDays      int `toml:"min_days" validate:"gt=1"`
	BonusPercent int `toml:"bonus_percent" validate:"gt=0"`
}

type shapingRecord struct {
	FirstOfDayPercent int                `toml:"first_of_day_percent" validate:"gte=0"`
	StreakTiers       []streakTierRecord `toml:"streak_tiers" validate:"dive"`
	PerfectBonus      []creditRecord     `toml:"perfect_bonus" validate:"dive"`
	WorkoutBonus      []creditRecord     `toml:"workout_bonus" validate:"dive"`
}

var recordValidator = validator.New(validator.WithRequiredStructEnabled())

// Default returns the embedded catalog.
func Default() (*ledger.Catalog, error) {
	return Parse(defaultCatalog)
}

// Load reads a catalog file. An empty path selects the embedded catalog.
func Load(path string) (*ledger.Catalog, error) {
	if strings.TrimSpace(path) == "" {
		return Default()
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read catalog %s: %w", path, err)
	}
	return Parse(data)
}

// Parse decodes and validates a TOML catalog. Any problem is reported as ErrCatalogInconsistent.
func Parse(data []byte) (*ledger.Catalog, error) {
	var document catalogDocument
	metadata, err := toml.NewDecoder(bytes.NewReader(data)).Decode(&document)
	if err != nil {
		return nil, inconsistent("decode", "%v", err)
	}
	if undecoded := metadata.Undecoded(); len(undecoded) > 0 {
		keys := make([]string, 0, len(undecoded))
		for _, key := range undecoded {
			keys = append(keys, key.String())
		}
		return nil, inconsistent("unknown_key", "unknown keys %s", strings.Join(keys, ", "))
	}
	if err := recordValidator.Struct(document); err != nil {
		return nil, inconsistent("invalid", "%s", describeValidation(err))
	}
	spec, err := document.toSpec()
	if err != nil {
		return nil, err
	}
	return ledger.NewCatalog(spec)
}

func (document catalogDocument) toSpec() (ledger.CatalogSpec, error) {
	var spec ledger.CatalogSpec
	for _, record := range document.Currencies {
		key, err := ledger.NewCurrencyKey(record.Key)
		if err != nil {
			return ledger.CatalogSpec{}, inconsistent("currency", "%v", err)
		}
		currency := ledger.CurrencyType{Key: key, DisplayName: strings.TrimSpace(record.DisplayName)}
		if strings.TrimSpace(record.ConversionRate) != "" {
			rate, err := decimal.NewFromString(strings.TrimSpace(record.ConversionRate))
			if err != nil {
				return ledger.CatalogSpec{}, inconsistent("conversion_rate", "currency %q: %v", record.Key, err)
			}
			currency.ConversionRate = rate
		}
		spec.Currencies = append(spec.Currencies, currency)
	}
	for _, record := range document.Rewards {
		rule := ledger.RewardRule{}
		if strings.TrimSpace(record.SeriesID) != "" {
			series, err := ledger.NewSeriesID(record.SeriesID)
			if err != nil {
				return ledger.CatalogSpec{}, inconsistent("reward", "%v", err)
			}
			rule.SeriesID = &series
		}
		for _, credit := range record.Credits {
			reward, err := credit.toReward()
			if err != nil {
				return ledger.CatalogSpec{}, err
			}
			rule.Credits = append(rule.Credits, reward)
		}
		spec.Rewards = append(spec.Rewards, rule)
	}
	for _, record := range document.Badges {
		badge, err := record.toBadge()
		if err != nil {
			return ledger.CatalogSpec{}, err
		}
		spec.Badges = append(spec.Badges, badge)
	}
	for _, record := range document.Ranks {
		currency, err := ledger.NewCurrencyKey(record.Currency)
		if err != nil {
			return ledger.CatalogSpec{}, inconsistent("rank", "%v", err)
		}
		spec.Ranks = append(spec.Ranks, ledger.Rank{
			Order:           record.Order,
			Title:           strings.TrimSpace(record.Title),
			CurrencyKey:     currency,
			CreditsRequired: record.CreditsRequired,
		})
	}
	if document.Shaping != nil {
		shaping, err := document.Shaping.toShaping()
		if err != nil {
			return ledger.CatalogSpec{}, err
		}
		spec.Shaping = shaping
	}
	return spec, nil
}

func (record shapingRecord) toShaping() (ledger.RewardShaping, error) {
	shaping := ledger.RewardShaping{FirstOfDayPercent: record.FirstOfDayPercent}
	for _, tier := range record.StreakTiers {
		shaping.StreakTiers = append(shaping.StreakTiers, ledger.StreakTier{MinDays: tier.MinDays, BonusPercent: tier.BonusPercent})
	}
	var err error
	if shaping.PerfectBonus, err = toRewards(record.PerfectBonus); err != nil {
		return ledger.RewardShaping{}, err
	}
	if shaping.WorkoutBonus, err = toRewards(record.WorkoutBonus); err != nil {
		return ledger.RewardShaping{}, err
	}
	return shaping, nil
}

func toRewards(records []creditRecord) ([]ledger.Reward, error) {
	rewards := make([]ledger.Reward, 0, len(records))
	for _, record := range records {
		reward, err := record.toReward()
		if err != nil {
			return nil, err
		}
		rewards = append(rewards, reward)
	}
	return rewards, nil
}

func (record badgeRecord) toBadge() (ledger.Badge, error) {
	badgeID, err := ledger.NewBadgeID(record.ID)
	if err != nil {
		return ledger.Badge{}, inconsistent("badge", "%v", err)
	}
	badge := ledger.Badge{
		ID:              badgeID,
		Title:           strings.TrimSpace(record.Title),
		Category:        strings.TrimSpace(record.Category),
		MaximumEarnings: record.MaximumEarnings,
	}
	switch {
	case record.Simple != nil && record.Combination != nil:
		return ledger.Badge{}, inconsistent("badge", "badge %d declares both simple and combination", record.ID)
	case record.Simple != nil:
		series, err := ledger.NewSeriesID(record.Simple.SeriesID)
		if err != nil {
			return ledger.Badge{}, inconsistent("badge", "badge %d: %v", record.ID, err)
		}
		badge.Requirement = ledger.SimpleRequirement{SeriesID: series, DrillsRequired: record.Simple.DrillsRequired}
	case record.Combination != nil:
		prerequisites := make([]ledger.BadgeID, 0, len(record.Combination.PrerequisiteBadgeIDs))
		for _, raw := range record.Combination.PrerequisiteBadgeIDs {
			prerequisite, err := ledger.NewBadgeID(raw)
			if err != nil {
				return ledger.Badge{}, inconsistent("badge", "badge %d: %v", record.ID, err)
			}
			prerequisites = append(prerequisites, prerequisite)
		}
		badge.Requirement = ledger.CombinationRequirement{PrerequisiteBadgeIDs: prerequisites}
	default:
		return ledger.Badge{}, inconsistent("badge", "badge %d declares no requirement", record.ID)
	}
	if record.Bonus != nil {
		bonus, err := record.Bonus.toReward()
		if err != nil {
			return ledger.Badge{}, err
		}
		badge.Bonus = &bonus
	}
	return badge, nil
}

func (record creditRecord) toReward() (ledger.Reward, error) {
	currency, err := ledger.NewCurrencyKey(record.Currency)
	if err != nil {
		return ledger.Reward{}, inconsistent("credit", "%v", err)
	}
	amount, err := ledger.NewDelta(record.Amount)
	if err != nil {
		return ledger.Reward{}, inconsistent("credit", "currency %q: %v", record.Currency, err)
	}
	return ledger.Reward{CurrencyKey: currency, Amount: amount}, nil
}

func describeValidation(err error) string {
	var validationErrors validator.ValidationErrors
	if !errors.As(err, &validationErrors) {
		return err.Error()
	}
	problems := make([]string, 0, len(validationErrors))
	for _, fieldError := range validationErrors {
		problems = append(problems, fmt.Sprintf("%s failed %s", fieldError.Namespace(), fieldError.Tag()))
	}
	return strings.Join(problems, "; ")
}

func inconsistent(code string, format string, args ...any) error {
	return ledger.WrapError("catalog", "file", code, fmt.Errorf("%w: %s", ledger.ErrCatalogInconsistent, fmt.Sprintf(format, args...)))
}
