// Package dosage recommends daily feed amounts for a group of animals from a
// reference table. Recommendations have no side effects and never touch
// storage. A TableWatcher can reload the table from its YAML file.
package dosage

import (
	"errors"
	"fmt"
	"math"
	"strings"
	"sync"

	"github.com/shopspring/decimal"

	"github.com/erazemk/krma/internal/model"
)

// ErrNoReference is returned when the table has no rate for the requested
// profile, stage and category.
var ErrNoReference = fmt.Errorf("%w: no reference rate", model.ErrValidation)

// Multipliers applied on top of the base rate.
var (
	HeavyMultiplier  = decimal.RequireFromString("1.15")
	LightMultiplier  = decimal.RequireFromString("0.85")
	FemaleMultiplier = decimal.RequireFromString("1.10")
)

// FemaleShareThreshold is the share of females above which the reproductive
// load adjustment applies.
var FemaleShareThreshold = decimal.RequireFromString("0.7")

const daysPerYear = 365.25

// Input describes the group to dose.
type Input struct {
	Animals  []model.Animal
	Category model.FeedCategory
	Profile  Profile
	AsOf     model.Date // reference date for ages
}

// Recommendation is the suggested daily ration per head.
type Recommendation struct {
	Amount           decimal.Decimal    `json:"amount"`
	MealCount        int                `json:"meal_count"`
	Stage            Stage              `json:"stage"`
	Category         model.FeedCategory `json:"category"`
	HeadCount        int                `json:"head_count"`
	AverageAge       float64            `json:"average_age"`
	AverageWeight    decimal.Decimal    `json:"average_weight"`
	WeightDefaulted  bool               `json:"weight_defaulted"`
	WeightMultiplier decimal.Decimal    `json:"weight_multiplier"`
	FemaleAdjusted   bool               `json:"female_adjusted"`
	Justification    string             `json:"justification"`
}

// Engine computes recommendations from a reference table. The table can be
// swapped while recommendations are running.
type Engine struct {
	mu    sync.RWMutex
	table Table
}

// New returns an engine over table. A nil table selects DefaultTable.
func New(table Table) *Engine {
	if table == nil {
		table = DefaultTable
	}
	return &Engine{table: table}
}

// SetTable replaces the reference table. A nil table restores DefaultTable.
func (e *Engine) SetTable(table Table) {
	if table == nil {
		table = DefaultTable
	}
	e.mu.Lock()
	e.table = table
	e.mu.Unlock()
}

func (e *Engine) currentTable() Table {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.table
}

// Recommend returns the ration for the live animals in the group, or nil
// when no live animal remains.
func (e *Engine) Recommend(in Input) (*Recommendation, error) {
	var group []model.Animal
	for _, a := range in.Animals {
		if a.Live() {
			group = append(group, a)
		}
	}
	if len(group) == 0 {
		return nil, nil
	}

	pt, ok := e.currentTable()[in.Profile]
	if !ok {
		return nil, fmt.Errorf("%w: unknown profile %q", ErrNoReference, in.Profile)
	}
	category, err := model.ParseFeedCategory(string(in.Category))
	if err != nil {
		return nil, err
	}

	avgAge, aged := averageAge(group, in.AsOf)
	stage := StageAdult
	if aged {
		stage = StageForAge(avgAge)
	}

	st := pt.Stages[stage]
	rate, ok := st.Rates[category]
	if !ok {
		return nil, fmt.Errorf("%w: %s %s %s", ErrNoReference, in.Profile, stage, category)
	}

	weight, weighed := averageWeight(group)
	if !weighed {
		weight = st.DefaultWeight
	}

	weightMult := decimal.NewFromInt(1)
	switch {
	case weight.GreaterThan(pt.HighWeight):
		weightMult = HeavyMultiplier
	case weight.LessThan(pt.LowWeight):
		weightMult = LightMultiplier
	}

	amount := rate.Amount.Mul(weightMult)
	femaleAdjusted := femaleShare(group).GreaterThan(FemaleShareThreshold)
	if femaleAdjusted {
		amount = amount.Mul(FemaleMultiplier)
	}

	rec := &Recommendation{
		Amount:           amount.Round(2),
		MealCount:        rate.Meals,
		Stage:            stage,
		Category:         category,
		HeadCount:        len(group),
		AverageAge:       math.Round(avgAge*100) / 100,
		AverageWeight:    weight.Round(1),
		WeightDefaulted:  !weighed,
		WeightMultiplier: weightMult,
		FemaleAdjusted:   femaleAdjusted,
	}
	rec.Justification = justify(rec, aged, rate.Note)
	return rec, nil
}

// IsNoReference reports whether err means the table has no rate to offer.
func IsNoReference(err error) bool {
	return errors.Is(err, ErrNoReference)
}

// averageAge returns the mean age in years of the animals with a birth date.
func averageAge(group []model.Animal, asOf model.Date) (float64, bool) {
	var sum float64
	var n int
	for _, a := range group {
		if a.BirthDate.IsZero() {
			continue
		}
		days := a.BirthDate.DaysUntil(asOf)
		if days < 0 {
			days = 0
		}
		sum += float64(days) / daysPerYear
		n++
	}
	if n == 0 {
		return 0, false
	}
	return sum / float64(n), true
}

func averageWeight(group []model.Animal) (decimal.Decimal, bool) {
	sum := decimal.Zero
	n := 0
	for _, a := range group {
		if a.Weight.Valid {
			sum = sum.Add(a.Weight.Decimal)
			n++
		}
	}
	if n == 0 {
		return decimal.Zero, false
	}
	return sum.Div(decimal.NewFromInt(int64(n))), true
}

func femaleShare(group []model.Animal) decimal.Decimal {
	females := 0
	for _, a := range group {
		if a.Gender == model.GenderFemale {
			females++
		}
	}
	return decimal.NewFromInt(int64(females)).Div(decimal.NewFromInt(int64(len(group))))
}

func justify(r *Recommendation, aged bool, note string) string {
	var b strings.Builder
	stage := strings.ReplaceAll(string(r.Stage), "_", " ")
	if aged {
		fmt.Fprintf(&b, "%s stage (average age %.2f years)", stage, r.AverageAge)
	} else {
		fmt.Fprintf(&b, "%s stage (no birth dates recorded)", stage)
	}

	fmt.Fprintf(&b, "; average weight %s kg", r.AverageWeight.String())
	if r.WeightDefaulted {
		b.WriteString(" (stage default)")
	}
	if !r.WeightMultiplier.Equal(decimal.NewFromInt(1)) {
		fmt.Fprintf(&b, " x%s", r.WeightMultiplier.String())
	}

	if note != "" {
		fmt.Fprintf(&b, "; %s", note)
	}
	if r.FemaleAdjusted {
		fmt.Fprintf(&b, "; female majority x%s", FemaleMultiplier.String())
	}
	return b.String()
}
