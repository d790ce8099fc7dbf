package store

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/erazemk/krma/internal/model"
)

func TestAddLotUpdatesOnHand(t *testing.T) {
	f := newFixture(t)
	hay := f.feedType(t, "Hay", model.CategoryRoughage, "50")

	requireDecimal(t, "0", f.onHand(t, hay.ID))

	f.lot(t, hay.ID, "25.5", "1.2", "2024-01-01", "")
	f.lot(t, hay.ID, "14.5", "1.4", "2024-01-05", "2024-06-01")

	requireDecimal(t, "40", f.onHand(t, hay.ID))

	totals, err := ListStock(f.ctx, f.db, f.farm.ID)
	require.NoError(t, err)
	require.Len(t, totals, 1)
	assert.True(t, totals[0].Low, "40 is below the threshold of 50")
	f.requireLedgerConsistent(t)
}

func TestAddLotRejectsInvalidInput(t *testing.T) {
	f := newFixture(t)
	hay := f.feedType(t, "Hay", model.CategoryRoughage, "0")

	tests := []struct {
		name string
		lot  model.StockLot
	}{
		{"zero quantity", model.StockLot{FeedTypeID: hay.ID, Quantity: dec("0"), UnitCost: dec("1"), PurchasedOn: day}},
		{"negative quantity", model.StockLot{FeedTypeID: hay.ID, Quantity: dec("-1"), UnitCost: dec("1"), PurchasedOn: day}},
		{"negative cost", model.StockLot{FeedTypeID: hay.ID, Quantity: dec("1"), UnitCost: dec("-0.01"), PurchasedOn: day}},
		{"no purchase date", model.StockLot{FeedTypeID: hay.ID, Quantity: dec("1"), UnitCost: dec("1")}},
		{"expires before purchase", model.StockLot{FeedTypeID: hay.ID, Quantity: dec("1"), UnitCost: dec("1"), PurchasedOn: day, ExpiresOn: day.AddDays(-1)}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := AddLot(f.ctx, f.db, f.farm.ID, tt.lot)
			require.ErrorIs(t, err, model.ErrValidation)
		})
	}

	_, err := AddLot(f.ctx, f.db, f.farm.ID, model.StockLot{FeedTypeID: 999, Quantity: dec("1"), UnitCost: dec("1"), PurchasedOn: day})
	require.ErrorIs(t, err, model.ErrNotFound)

	requireDecimal(t, "0", f.onHand(t, hay.ID))
}

func TestEditLotRecomputesOnHand(t *testing.T) {
	f := newFixture(t)
	hay := f.feedType(t, "Hay", model.CategoryRoughage, "0")
	lot := f.lot(t, hay.ID, "30", "1", "2024-01-01", "")
	f.lot(t, hay.ID, "10", "1", "2024-01-02", "")

	edited, err := EditLot(f.ctx, f.db, f.farm.ID, lot.ID, model.StockLot{
		Quantity:    dec("12.25"),
		UnitCost:    dec("1.1"),
		PurchasedOn: lot.PurchasedOn,
		Supplier:    "Coop",
	})
	require.NoError(t, err)
	assert.Equal(t, "Coop", edited.Supplier)
	assert.Equal(t, hay.ID, edited.FeedTypeID)
	requireDecimal(t, "30", edited.InitialQuantity)
	requireDecimal(t, "22.25", f.onHand(t, hay.ID))

	_, err = EditLot(f.ctx, f.db, f.farm.ID, lot.ID, model.StockLot{Quantity: dec("-1"), UnitCost: dec("1"), PurchasedOn: lot.PurchasedOn})
	require.ErrorIs(t, err, model.ErrValidation)
	f.requireLedgerConsistent(t)
}

func TestDeleteLot(t *testing.T) {
	f := newFixture(t)
	hay := f.feedType(t, "Hay", model.CategoryRoughage, "0")
	lot := f.lot(t, hay.ID, "30", "1", "2024-01-01", "")

	require.NoError(t, DeleteLot(f.ctx, f.db, f.farm.ID, lot.ID))
	requireDecimal(t, "0", f.onHand(t, hay.ID))

	err := DeleteLot(f.ctx, f.db, f.farm.ID, lot.ID)
	require.ErrorIs(t, err, model.ErrNotFound)
}

func TestListExpiringLots(t *testing.T) {
	f := newFixture(t)
	hay := f.feedType(t, "Hay", model.CategoryRoughage, "0")
	soon := f.lot(t, hay.ID, "10", "1", "2024-01-01", "2024-03-15")
	f.lot(t, hay.ID, "10", "1", "2024-01-01", "2024-05-01")
	f.lot(t, hay.ID, "10", "1", "2024-01-01", "")
	boundary := f.lot(t, hay.ID, "10", "1", "2024-01-01", "2024-03-17")
	f.lot(t, hay.ID, "10", "1", "2024-01-01", "2024-03-09")

	lots, err := ListExpiringLots(f.ctx, f.db, f.farm.ID, day, 7)
	require.NoError(t, err)
	require.Len(t, lots, 2)
	assert.Equal(t, soon.ID, lots[0].ID)
	assert.Equal(t, boundary.ID, lots[1].ID)
	assert.Equal(t, "Hay", lots[0].FeedTypeName)
}

func TestAverageUnitCosts(t *testing.T) {
	f := newFixture(t)
	hay := f.feedType(t, "Hay", model.CategoryRoughage, "0")
	never := f.feedType(t, "Salt", model.CategoryMineral, "0")
	f.lot(t, hay.ID, "10", "1", "2024-01-01", "")
	f.lot(t, hay.ID, "30", "3", "2024-01-02", "")

	costs, err := AverageUnitCosts(f.ctx, f.db, f.farm.ID)
	require.NoError(t, err)
	requireDecimal(t, "2.5", costs[hay.ID])
	requireDecimal(t, "0", costs[never.ID])
}
