package store

import (
	"context"
	"database/sql"

	"github.com/shopspring/decimal"

	"github.com/erazemk/krma/internal/model"
)

// DailyConsumption returns, per feed type, the quantity the schedules active
// on date would consume with today's head counts.
func DailyConsumption(ctx context.Context, db *sql.DB, farmID int64, date model.Date) (map[int64]decimal.Decimal, error) {
	demands, err := collectDemand(ctx, db, farmID, date)
	if err != nil {
		return nil, err
	}
	daily := make(map[int64]decimal.Decimal)
	for _, r := range aggregateDemand(demands) {
		daily[r.feedTypeID] = r.quantity
	}
	return daily, nil
}

// AverageUnitCosts returns the purchase-weighted average unit cost of every
// feed type with lot history.
func AverageUnitCosts(ctx context.Context, db *sql.DB, farmID int64) (map[int64]decimal.Decimal, error) {
	return averageUnitCosts(ctx, db, farmID)
}
