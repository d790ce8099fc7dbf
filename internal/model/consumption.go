package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// ConsumptionEntry records the feed deducted for one calendar date.
type ConsumptionEntry struct {
	ID         int64             `json:"id"`
	FarmID     int64             `json:"farm_id"`
	ConsumedOn Date              `json:"consumed_on"`
	Lines      []ConsumptionLine `json:"lines"`
	CreatedAt  time.Time         `json:"created_at"`
}

// ConsumptionLine is one (schedule, pen, feed type) charge within an entry.
type ConsumptionLine struct {
	ScheduleID int64           `json:"schedule_id"`
	FeedTypeID int64           `json:"feed_type_id"`
	PenID      *int64          `json:"pen_id,omitempty"`
	AnimalID   *int64          `json:"animal_id,omitempty"`
	HeadCount  int             `json:"head_count"`
	Quantity   decimal.Decimal `json:"quantity"`
	UnitCost   decimal.Decimal `json:"unit_cost"`

	// Joined fields (not always populated).
	FeedTypeName string `json:"feed_type_name,omitempty"`
	PenName      string `json:"pen_name,omitempty"`
}

// Cost is the charged amount of the line.
func (l ConsumptionLine) Cost() decimal.Decimal {
	return l.Quantity.Mul(l.UnitCost)
}

// TotalQuantity sums all line quantities of the entry.
func (e ConsumptionEntry) TotalQuantity() decimal.Decimal {
	total := decimal.Zero
	for _, l := range e.Lines {
		total = total.Add(l.Quantity)
	}
	return total
}

// TotalCost sums all line costs of the entry.
func (e ConsumptionEntry) TotalCost() decimal.Decimal {
	total := decimal.Zero
	for _, l := range e.Lines {
		total = total.Add(l.Cost())
	}
	return total
}

// Shortage describes a feed type that could not cover a date's requirement.
type Shortage struct {
	FeedTypeID   int64           `json:"feed_type_id"`
	FeedTypeName string          `json:"feed_type_name"`
	Required     decimal.Decimal `json:"required"`
	Available    decimal.Decimal `json:"available"`
}

// Missing is how much stock is lacking.
func (s Shortage) Missing() decimal.Decimal {
	return s.Required.Sub(s.Available)
}

// Execution outcomes for a date.
const (
	ExecutionExecuted = "executed"
	ExecutionSkipped  = "skipped"
)

// ExecutionResult is the outcome of executing one date. A skipped result is
// an expected outcome, not an error.
type ExecutionResult struct {
	Date      Date              `json:"date"`
	Status    string            `json:"status"`
	Entry     *ConsumptionEntry `json:"entry,omitempty"`
	Shortages []Shortage        `json:"shortages,omitempty"`
}

// AutoResult is the outcome of executing every pending date in a window.
type AutoResult struct {
	From          Date                  `json:"from"`
	To            Date                  `json:"to"`
	ExecutedDates []Date                `json:"executed_dates"`
	SkippedDates  []Date                `json:"skipped_dates"`
	Shortages     map[string][]Shortage `json:"shortages,omitempty"`
	Message       string                `json:"message"`
}

// RestoredStock is the quantity of one feed type returned by an undo.
type RestoredStock struct {
	FeedTypeID int64           `json:"feed_type_id"`
	Quantity   decimal.Decimal `json:"quantity"`
}

// UndoResult is the outcome of undoing a date.
type UndoResult struct {
	Date          Date            `json:"date"`
	RestoredTotal decimal.Decimal `json:"restored_total"`
	Restored      []RestoredStock `json:"restored"`
}
