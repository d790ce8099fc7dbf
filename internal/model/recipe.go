package model

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// RecipeTolerance is how far the item percentages may sum away from 100.
var RecipeTolerance = decimal.RequireFromString("0.01")

// Recipe is a named blend of feed types.
type Recipe struct {
	ID        int64        `json:"id"`
	FarmID    int64        `json:"farm_id"`
	Name      string       `json:"name"`
	Notes     string       `json:"notes,omitempty"`
	Usable    bool         `json:"usable"`
	Items     []RecipeItem `json:"items"`
	CreatedAt time.Time    `json:"created_at"`
	UpdatedAt time.Time    `json:"updated_at"`
}

// RecipeItem is one component of a recipe.
type RecipeItem struct {
	FeedTypeID   int64           `json:"feed_type_id"`
	Percentage   decimal.Decimal `json:"percentage"`
	FeedTypeName string          `json:"feed_type_name,omitempty"`
}

// RecipeShare is a recipe item scaled to a concrete quantity.
type RecipeShare struct {
	FeedTypeID int64           `json:"feed_type_id"`
	Quantity   decimal.Decimal `json:"quantity"`
}

// ValidateDraft checks the structural rules every saved recipe must satisfy.
func (r Recipe) ValidateDraft() error {
	if strings.TrimSpace(r.Name) == "" {
		return Invalidf("recipe name required")
	}
	if len(r.Items) == 0 {
		return Invalidf("recipe needs at least one item")
	}
	seen := make(map[int64]bool, len(r.Items))
	for _, it := range r.Items {
		if it.FeedTypeID <= 0 {
			return Invalidf("recipe item feed_type_id required")
		}
		if seen[it.FeedTypeID] {
			return Invalidf("feed type %d appears more than once", it.FeedTypeID)
		}
		seen[it.FeedTypeID] = true
		if !it.Percentage.IsPositive() || it.Percentage.GreaterThan(hundred) {
			return Invalidf("percentage for feed type %d must be in (0, 100]", it.FeedTypeID)
		}
	}
	return nil
}

// TotalPercentage sums the item percentages.
func (r Recipe) TotalPercentage() decimal.Decimal {
	total := decimal.Zero
	for _, it := range r.Items {
		total = total.Add(it.Percentage)
	}
	return total
}

// ValidateUsable checks that the recipe may be used for feeding.
func (r Recipe) ValidateUsable() error {
	if err := r.ValidateDraft(); err != nil {
		return err
	}
	total := r.TotalPercentage()
	if total.Sub(hundred).Abs().GreaterThan(RecipeTolerance) {
		return Invalidf("recipe percentages sum to %s, want 100", total.String())
	}
	return nil
}

// Split apportions total across the items. Each share is rounded to three
// decimals; the last item absorbs the rounding remainder.
func (r Recipe) Split(total decimal.Decimal) ([]RecipeShare, error) {
	if err := r.ValidateUsable(); err != nil {
		return nil, err
	}
	if total.IsNegative() {
		return nil, Invalidf("total must not be negative")
	}

	shares := make([]RecipeShare, len(r.Items))
	assigned := decimal.Zero
	for i, it := range r.Items {
		var q decimal.Decimal
		if i == len(r.Items)-1 {
			q = total.Sub(assigned)
		} else {
			q = total.Mul(it.Percentage).Div(hundred).Round(3)
			assigned = assigned.Add(q)
		}
		shares[i] = RecipeShare{FeedTypeID: it.FeedTypeID, Quantity: q}
	}
	return shares, nil
}
