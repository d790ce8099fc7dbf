package dosage

import (
	"fmt"
	"io"
	"os"

	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"

	"github.com/erazemk/krma/internal/model"
)

// Stage is an age-based life-stage bucket.
type Stage string

// Life stages, youngest first.
const (
	StageInfant     Stage = "infant"
	StageWeaned     Stage = "weaned"
	StageJuvenile   Stage = "juvenile"
	StageYoungAdult Stage = "young_adult"
	StageAdult      Stage = "adult"
)

// Stages lists every stage youngest first.
var Stages = []Stage{StageInfant, StageWeaned, StageJuvenile, StageYoungAdult, StageAdult}

// StageForAge buckets an age in years. The thresholds do not depend on species.
func StageForAge(years float64) Stage {
	switch {
	case years < 0.25:
		return StageInfant
	case years < 0.5:
		return StageWeaned
	case years < 1:
		return StageJuvenile
	case years < 2:
		return StageYoungAdult
	}
	return StageAdult
}

// Profile selects the reference table for a body size.
type Profile string

// Species profiles.
const (
	ProfileSmall Profile = "small" // goats, sheep
	ProfileLarge Profile = "large" // camels
)

// ProfileFor maps a farm species onto its dosage profile.
func ProfileFor(species string) Profile {
	if species == model.SpeciesCamel {
		return ProfileLarge
	}
	return ProfileSmall
}

// Rate is the base daily ration of one feed category for one stage.
type Rate struct {
	Amount decimal.Decimal // kg per head per day
	Meals  int
	Note   string
}

// StageTable holds the rates of one life stage.
type StageTable struct {
	DefaultWeight decimal.Decimal
	Rates         map[model.FeedCategory]Rate
}

// ProfileTable is the reference data for one species profile.
type ProfileTable struct {
	LowWeight  decimal.Decimal
	HighWeight decimal.Decimal
	Stages     map[Stage]StageTable
}

// Table is the full reference matrix: profile × stage × feed category.
type Table map[Profile]ProfileTable

func d(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func rates(roughage, grain, concentrate, supplement, mineral Rate) map[model.FeedCategory]Rate {
	return map[model.FeedCategory]Rate{
		model.CategoryRoughage:    roughage,
		model.CategoryGrain:       grain,
		model.CategoryConcentrate: concentrate,
		model.CategorySupplement:  supplement,
		model.CategoryMineral:     mineral,
	}
}

// DefaultTable is the built-in reference table. Category "other" has no
// reference amount.
var DefaultTable = Table{
	ProfileSmall: {
		LowWeight:  d("20"),
		HighWeight: d("50"),
		Stages: map[Stage]StageTable{
			StageInfant: {DefaultWeight: d("5"), Rates: rates(
				Rate{d("0.10"), 2, "creep hay alongside milk"},
				Rate{d("0.05"), 2, "starter grain introduced gradually"},
				Rate{d("0.05"), 2, "creep concentrate"},
				Rate{d("0.01"), 1, "milk replacer supplement"},
				Rate{d("0.005"), 1, "free-choice kid mineral"},
			)},
			StageWeaned: {DefaultWeight: d("15"), Rates: rates(
				Rate{d("0.40"), 2, "good quality hay, rumen development"},
				Rate{d("0.15"), 2, "grain limited to avoid bloat"},
				Rate{d("0.12"), 2, "grower pellets"},
				Rate{d("0.02"), 1, "protein supplement"},
				Rate{d("0.01"), 1, "loose mineral"},
			)},
			StageJuvenile: {DefaultWeight: d("25"), Rates: rates(
				Rate{d("0.80"), 2, "hay or browse ad lib"},
				Rate{d("0.25"), 2, "grain for frame growth"},
				Rate{d("0.20"), 2, "grower concentrate"},
				Rate{d("0.03"), 1, "protein supplement"},
				Rate{d("0.015"), 1, "loose mineral"},
			)},
			StageYoungAdult: {DefaultWeight: d("40"), Rates: rates(
				Rate{d("1.20"), 2, "maintenance hay"},
				Rate{d("0.35"), 2, "grain for first breeding"},
				Rate{d("0.30"), 2, "breeder concentrate"},
				Rate{d("0.04"), 1, "protein supplement"},
				Rate{d("0.02"), 1, "loose mineral"},
			)},
			StageAdult: {DefaultWeight: d("50"), Rates: rates(
				Rate{d("1.50"), 2, "maintenance hay"},
				Rate{d("0.40"), 2, "grain, more in late gestation"},
				Rate{d("0.35"), 2, "production concentrate"},
				Rate{d("0.05"), 1, "protein supplement"},
				Rate{d("0.02"), 1, "loose mineral"},
			)},
		},
	},
	ProfileLarge: {
		LowWeight:  d("200"),
		HighWeight: d("500"),
		Stages: map[Stage]StageTable{
			StageInfant: {DefaultWeight: d("40"), Rates: rates(
				Rate{d("1.0"), 3, "soft forage alongside milk"},
				Rate{d("0.5"), 2, "starter grain"},
				Rate{d("0.5"), 2, "calf concentrate"},
				Rate{d("0.1"), 1, "milk replacer supplement"},
				Rate{d("0.05"), 1, "calf mineral"},
			)},
			StageWeaned: {DefaultWeight: d("100"), Rates: rates(
				Rate{d("4.0"), 3, "forage and browse"},
				Rate{d("1.5"), 2, "grain limited"},
				Rate{d("1.2"), 2, "grower concentrate"},
				Rate{d("0.2"), 1, "protein supplement"},
				Rate{d("0.1"), 1, "salt and mineral"},
			)},
			StageJuvenile: {DefaultWeight: d("200"), Rates: rates(
				Rate{d("6.0"), 2, "forage ad lib"},
				Rate{d("2.0"), 2, "grain for growth"},
				Rate{d("1.8"), 2, "grower concentrate"},
				Rate{d("0.3"), 1, "protein supplement"},
				Rate{d("0.12"), 1, "salt and mineral"},
			)},
			StageYoungAdult: {DefaultWeight: d("350"), Rates: rates(
				Rate{d("8.0"), 2, "maintenance forage"},
				Rate{d("2.5"), 2, "grain for first breeding"},
				Rate{d("2.2"), 2, "breeder concentrate"},
				Rate{d("0.4"), 1, "protein supplement"},
				Rate{d("0.15"), 1, "salt and mineral"},
			)},
			StageAdult: {DefaultWeight: d("450"), Rates: rates(
				Rate{d("10.0"), 2, "maintenance forage"},
				Rate{d("3.0"), 2, "grain, more for working animals"},
				Rate{d("2.5"), 2, "production concentrate"},
				Rate{d("0.5"), 1, "protein supplement"},
				Rate{d("0.2"), 1, "salt and mineral"},
			)},
		},
	},
}

// Validate checks that every profile has weight tiers and every stage a
// default weight and sane rates.
func (t Table) Validate() error {
	if len(t) == 0 {
		return fmt.Errorf("dosage table is empty")
	}
	for p, pt := range t {
		if !pt.LowWeight.IsPositive() || !pt.HighWeight.GreaterThan(pt.LowWeight) {
			return fmt.Errorf("profile %s: need 0 < low_weight < high_weight", p)
		}
		for _, s := range Stages {
			st, ok := pt.Stages[s]
			if !ok {
				return fmt.Errorf("profile %s: missing stage %s", p, s)
			}
			if !st.DefaultWeight.IsPositive() {
				return fmt.Errorf("profile %s stage %s: default weight must be positive", p, s)
			}
			for c, r := range st.Rates {
				if r.Amount.IsNegative() || r.Meals < 1 {
					return fmt.Errorf("profile %s stage %s %s: amount must be >= 0 and meals >= 1", p, s, c)
				}
			}
		}
	}
	return nil
}

type rateFile struct {
	Amount float64 `yaml:"amount"`
	Meals  int     `yaml:"meals"`
	Note   string  `yaml:"note"`
}

type stageFile struct {
	DefaultWeight float64             `yaml:"default_weight"`
	Feeds         map[string]rateFile `yaml:"feeds"`
}

type profileFile struct {
	LowWeight  float64              `yaml:"low_weight"`
	HighWeight float64              `yaml:"high_weight"`
	Stages     map[string]stageFile `yaml:"stages"`
}

// LoadTable reads a reference table from YAML of the form
//
//	small:
//	  low_weight: 20
//	  high_weight: 50
//	  stages:
//	    adult:
//	      default_weight: 50
//	      feeds:
//	        roughage: {amount: 1.5, meals: 2, note: maintenance hay}
func LoadTable(r io.Reader) (Table, error) {
	var raw map[string]profileFile
	if err := yaml.NewDecoder(r).Decode(&raw); err != nil {
		return nil, fmt.Errorf("decoding dosage table: %w", err)
	}

	t := Table{}
	for pname, pf := range raw {
		p := Profile(pname)
		if p != ProfileSmall && p != ProfileLarge {
			return nil, fmt.Errorf("unknown dosage profile %q", pname)
		}
		pt := ProfileTable{
			LowWeight:  decimal.NewFromFloat(pf.LowWeight),
			HighWeight: decimal.NewFromFloat(pf.HighWeight),
			Stages:     map[Stage]StageTable{},
		}
		for sname, sf := range pf.Stages {
			st := StageTable{
				DefaultWeight: decimal.NewFromFloat(sf.DefaultWeight),
				Rates:         map[model.FeedCategory]Rate{},
			}
			for cname, rf := range sf.Feeds {
				c, err := model.ParseFeedCategory(cname)
				if err != nil {
					return nil, fmt.Errorf("profile %s stage %s: %w", pname, sname, err)
				}
				st.Rates[c] = Rate{Amount: decimal.NewFromFloat(rf.Amount), Meals: rf.Meals, Note: rf.Note}
			}
			pt.Stages[Stage(sname)] = st
		}
		t[p] = pt
	}

	if err := t.Validate(); err != nil {
		return nil, err
	}
	return t, nil
}

// LoadTableFile reads a YAML reference table from path.
func LoadTableFile(path string) (Table, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening dosage table: %w", err)
	}
	defer f.Close()
	return LoadTable(f)
}
