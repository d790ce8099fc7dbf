// Package reorder turns stock levels and scheduled consumption into purchase
// suggestions. It is read-only and has no storage dependency.
package reorder

import (
	"sort"

	"github.com/shopspring/decimal"

	"github.com/erazemk/krma/internal/model"
)

// Policy holds the tunable parts of the advisor.
type Policy struct {
	// TargetMultiple sizes a purchase to restore stock to this multiple of
	// the reorder threshold.
	TargetMultiple decimal.Decimal
	CriticalDays   int
	WarningDays    int
}

// DefaultPolicy restores stock to three times the threshold and treats a week
// of cover as critical and two weeks as a warning.
func DefaultPolicy() Policy {
	return Policy{
		TargetMultiple: decimal.NewFromInt(3),
		CriticalDays:   7,
		WarningDays:    14,
	}
}

// Input is everything the advisor needs about one feed type.
type Input struct {
	FeedTypeID       int64
	FeedTypeName     string
	OnHand           decimal.Decimal
	ReorderThreshold decimal.Decimal
	DailyConsumption decimal.Decimal
	AverageUnitCost  decimal.Decimal // zero without purchase history
}

var two = decimal.NewFromInt(2)

// Suggest computes the suggestion for one feed type.
func Suggest(in Input, p Policy) model.ReorderSuggestion {
	s := model.ReorderSuggestion{
		FeedTypeID:        in.FeedTypeID,
		FeedTypeName:      in.FeedTypeName,
		OnHand:            in.OnHand,
		ReorderThreshold:  in.ReorderThreshold,
		DailyConsumption:  in.DailyConsumption,
		AverageUnitCost:   in.AverageUnitCost,
		SuggestedQuantity: decimal.Zero,
		EstimatedCost:     decimal.Zero,
		Urgency:           model.UrgencyOK,
	}

	var days decimal.Decimal
	consuming := in.DailyConsumption.IsPositive()
	if consuming {
		days = in.OnHand.Div(in.DailyConsumption)
		rounded, _ := days.Round(1).Float64()
		s.DaysRemaining = &rounded
	}

	switch {
	case in.OnHand.LessThan(in.ReorderThreshold),
		consuming && days.LessThanOrEqual(decimal.NewFromInt(int64(p.CriticalDays))):
		s.Urgency = model.UrgencyCritical
	case in.OnHand.LessThan(in.ReorderThreshold.Mul(two)),
		consuming && days.LessThanOrEqual(decimal.NewFromInt(int64(p.WarningDays))):
		s.Urgency = model.UrgencyWarning
	}

	if s.Urgency == model.UrgencyOK {
		return s
	}

	byThreshold := p.TargetMultiple.Mul(in.ReorderThreshold).Sub(in.OnHand)
	byCover := in.DailyConsumption.Mul(decimal.NewFromInt(int64(p.WarningDays))).Sub(in.OnHand)
	s.SuggestedQuantity = decimal.Max(decimal.Zero, byThreshold, byCover).Round(2)
	s.EstimatedCost = s.SuggestedQuantity.Mul(in.AverageUnitCost).Round(2)
	return s
}

// Report builds the full report, most urgent first.
func Report(asOf model.Date, inputs []Input, p Policy) *model.ReorderReport {
	r := &model.ReorderReport{
		AsOf:               asOf,
		Suggestions:        make([]model.ReorderSuggestion, 0, len(inputs)),
		TotalEstimatedCost: decimal.Zero,
	}
	for _, in := range inputs {
		s := Suggest(in, p)
		switch s.Urgency {
		case model.UrgencyCritical:
			r.CriticalCount++
		case model.UrgencyWarning:
			r.WarningCount++
		}
		r.TotalEstimatedCost = r.TotalEstimatedCost.Add(s.EstimatedCost)
		r.Suggestions = append(r.Suggestions, s)
	}

	sort.SliceStable(r.Suggestions, func(i, j int) bool {
		a, b := r.Suggestions[i], r.Suggestions[j]
		if ra, rb := model.UrgencyRank(a.Urgency), model.UrgencyRank(b.Urgency); ra != rb {
			return ra < rb
		}
		return a.FeedTypeName < b.FeedTypeName
	})
	return r
}
