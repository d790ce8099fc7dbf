package reorder

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/erazemk/krma/internal/model"
)

func d(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func TestSuggestHayCritical(t *testing.T) {
	s := Suggest(Input{
		FeedTypeName:     "Hay",
		OnHand:           d("40"),
		ReorderThreshold: d("50"),
		DailyConsumption: d("10"),
		AverageUnitCost:  d("0.5"),
	}, DefaultPolicy())

	assert.Equal(t, model.UrgencyCritical, s.Urgency)
	require.NotNil(t, s.DaysRemaining)
	assert.Equal(t, 4.0, *s.DaysRemaining)
	// max(3*50 - 40, 10*14 - 40) = 110
	assert.Equal(t, "110", s.SuggestedQuantity.String())
	assert.Equal(t, "55", s.EstimatedCost.String())
}

func TestSuggestUrgencyTiers(t *testing.T) {
	tests := []struct {
		name      string
		onHand    string
		threshold string
		daily     string
		want      string
	}{
		{"below threshold, nothing consumed", "10", "20", "0", model.UrgencyCritical},
		{"a week of cover", "70", "0", "10", model.UrgencyCritical},
		{"under twice the threshold", "30", "20", "0", model.UrgencyWarning},
		{"two weeks of cover", "140", "0", "10", model.UrgencyWarning},
		{"plenty", "150", "20", "10", model.UrgencyOK},
		{"no threshold, no use", "0", "0", "0", model.UrgencyOK},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := Suggest(Input{
				OnHand:           d(tt.onHand),
				ReorderThreshold: d(tt.threshold),
				DailyConsumption: d(tt.daily),
			}, DefaultPolicy())
			assert.Equal(t, tt.want, s.Urgency)
			if tt.want == model.UrgencyOK {
				assert.True(t, s.SuggestedQuantity.IsZero())
			}
		})
	}
}

func TestSuggestNoConsumptionHasNoDaysRemaining(t *testing.T) {
	s := Suggest(Input{OnHand: d("5"), ReorderThreshold: d("10")}, DefaultPolicy())
	assert.Nil(t, s.DaysRemaining)
	assert.Equal(t, model.UrgencyCritical, s.Urgency)
	assert.Equal(t, "25", s.SuggestedQuantity.String())
	assert.True(t, s.EstimatedCost.IsZero(), "no purchase history costs nothing")
}

func TestSuggestRoundsDaysRemaining(t *testing.T) {
	s := Suggest(Input{OnHand: d("100"), DailyConsumption: d("3")}, DefaultPolicy())
	require.NotNil(t, s.DaysRemaining)
	assert.Equal(t, 33.3, *s.DaysRemaining)
	assert.Equal(t, model.UrgencyOK, s.Urgency)
}

func TestReportRollup(t *testing.T) {
	asOf := model.MustParseDate("2024-03-10")
	r := Report(asOf, []Input{
		{FeedTypeID: 1, FeedTypeName: "Salt", OnHand: d("100")},
		{FeedTypeID: 2, FeedTypeName: "Hay", OnHand: d("40"), ReorderThreshold: d("50"), DailyConsumption: d("10"), AverageUnitCost: d("0.5")},
		{FeedTypeID: 3, FeedTypeName: "Barley", OnHand: d("30"), ReorderThreshold: d("20"), AverageUnitCost: d("1")},
		{FeedTypeID: 4, FeedTypeName: "Alfalfa", OnHand: d("1"), ReorderThreshold: d("5"), AverageUnitCost: d("2")},
	}, DefaultPolicy())

	require.Len(t, r.Suggestions, 4)
	assert.Equal(t, 2, r.CriticalCount)
	assert.Equal(t, 1, r.WarningCount)

	names := make([]string, len(r.Suggestions))
	for i, s := range r.Suggestions {
		names[i] = s.FeedTypeName
	}
	assert.Equal(t, []string{"Alfalfa", "Hay", "Barley", "Salt"}, names)

	// Alfalfa 14*2 + Hay 110*0.5 + Barley 30*1
	assert.Equal(t, "113", r.TotalEstimatedCost.String())
}
