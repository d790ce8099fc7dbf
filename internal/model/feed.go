package model

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// FeedCategory classifies a feed type for dosing.
type FeedCategory string

// Feed categories.
const (
	CategoryRoughage    FeedCategory = "roughage"
	CategoryGrain       FeedCategory = "grain"
	CategoryConcentrate FeedCategory = "concentrate"
	CategorySupplement  FeedCategory = "supplement"
	CategoryMineral     FeedCategory = "mineral"
	CategoryOther       FeedCategory = "other"
)

// FeedCategories lists every category in display order.
var FeedCategories = []FeedCategory{
	CategoryRoughage,
	CategoryGrain,
	CategoryConcentrate,
	CategorySupplement,
	CategoryMineral,
	CategoryOther,
}

// ParseFeedCategory accepts singular, plural and upper-case spellings ("GRAINS").
func ParseFeedCategory(s string) (FeedCategory, error) {
	norm := strings.ToLower(strings.TrimSpace(s))
	for _, c := range FeedCategories {
		if norm == string(c) || norm == string(c)+"s" {
			return c, nil
		}
	}
	return "", Invalidf("unknown feed category %q", s)
}

// FeedType is a catalog entry tracked independently for stock and dosing.
type FeedType struct {
	ID               int64           `json:"id"`
	FarmID           int64           `json:"farm_id"`
	Name             string          `json:"name"`
	LocalName        string          `json:"local_name,omitempty"`
	Category         FeedCategory    `json:"category"`
	Unit             string          `json:"unit"`
	ProteinPct       decimal.Decimal `json:"protein_pct"`
	EnergyMJ         decimal.Decimal `json:"energy_mj"`
	ReorderThreshold decimal.Decimal `json:"reorder_threshold"`
	CreatedAt        time.Time       `json:"created_at"`
	UpdatedAt        time.Time       `json:"updated_at"`
	DeletedAt        *time.Time      `json:"deleted_at,omitempty"`
}

var hundred = decimal.NewFromInt(100)

// Validate checks the mutable catalog fields.
func (f FeedType) Validate() error {
	if strings.TrimSpace(f.Name) == "" {
		return Invalidf("feed type name required")
	}
	if _, err := ParseFeedCategory(string(f.Category)); err != nil {
		return err
	}
	if f.ProteinPct.IsNegative() || f.ProteinPct.GreaterThan(hundred) {
		return Invalidf("protein must be between 0 and 100 percent")
	}
	if f.EnergyMJ.IsNegative() {
		return Invalidf("energy must not be negative")
	}
	if f.ReorderThreshold.IsNegative() {
		return Invalidf("reorder threshold must not be negative")
	}
	return nil
}

// StockLot is one purchased batch of a feed type.
type StockLot struct {
	ID              int64           `json:"id"`
	FarmID          int64           `json:"farm_id"`
	FeedTypeID      int64           `json:"feed_type_id"`
	InitialQuantity decimal.Decimal `json:"initial_quantity"`
	Quantity        decimal.Decimal `json:"quantity"`
	UnitCost        decimal.Decimal `json:"unit_cost"`
	PurchasedOn     Date            `json:"purchased_on"`
	ExpiresOn       Date            `json:"expires_on"`
	Supplier        string          `json:"supplier,omitempty"`
	Notes           string          `json:"notes,omitempty"`
	CreatedAt       time.Time       `json:"created_at"`

	// Joined fields (not always populated).
	FeedTypeName string `json:"feed_type_name,omitempty"`
}

// Validate checks a lot before it is written.
func (l StockLot) Validate() error {
	if l.FeedTypeID <= 0 {
		return Invalidf("feed_type_id required")
	}
	if l.Quantity.IsNegative() {
		return Invalidf("quantity must not be negative")
	}
	if l.UnitCost.IsNegative() {
		return Invalidf("unit cost must not be negative")
	}
	if l.PurchasedOn.IsZero() {
		return Invalidf("purchase date required")
	}
	if !l.ExpiresOn.IsZero() && l.ExpiresOn.Before(l.PurchasedOn) {
		return Invalidf("expiry date before purchase date")
	}
	return nil
}

// StockTotal is the on-hand aggregate for one feed type.
type StockTotal struct {
	FeedTypeID       int64           `json:"feed_type_id"`
	FeedTypeName     string          `json:"feed_type_name"`
	Category         FeedCategory    `json:"category"`
	OnHand           decimal.Decimal `json:"on_hand"`
	ReorderThreshold decimal.Decimal `json:"reorder_threshold"`
	Low              bool            `json:"low"`
}
