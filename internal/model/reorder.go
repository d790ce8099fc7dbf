package model

import "github.com/shopspring/decimal"

// Urgency tiers, most urgent first.
const (
	UrgencyCritical = "critical"
	UrgencyWarning  = "warning"
	UrgencyOK       = "ok"
)

// UrgencyRank orders tiers for sorting; lower is more urgent.
func UrgencyRank(u string) int {
	switch u {
	case UrgencyCritical:
		return 0
	case UrgencyWarning:
		return 1
	}
	return 2
}

// ReorderSuggestion is the derived purchase advice for one feed type.
type ReorderSuggestion struct {
	FeedTypeID        int64           `json:"feed_type_id"`
	FeedTypeName      string          `json:"feed_type_name"`
	OnHand            decimal.Decimal `json:"on_hand"`
	ReorderThreshold  decimal.Decimal `json:"reorder_threshold"`
	DailyConsumption  decimal.Decimal `json:"daily_consumption"`
	DaysRemaining     *float64        `json:"days_remaining"` // nil when nothing is consumed
	SuggestedQuantity decimal.Decimal `json:"suggested_quantity"`
	AverageUnitCost   decimal.Decimal `json:"average_unit_cost"`
	EstimatedCost     decimal.Decimal `json:"estimated_cost"`
	Urgency           string          `json:"urgency"`
}

// ReorderReport is the full advisor output for a farm.
type ReorderReport struct {
	AsOf               Date                `json:"as_of"`
	Suggestions        []ReorderSuggestion `json:"suggestions"`
	CriticalCount      int                 `json:"critical_count"`
	WarningCount       int                 `json:"warning_count"`
	TotalEstimatedCost decimal.Decimal     `json:"total_estimated_cost"`
}
