package store

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/erazemk/krma/internal/model"
)

func TestCreateFeedType(t *testing.T) {
	f := newFixture(t)

	ft, err := CreateFeedType(f.ctx, f.db, f.farm.ID, model.FeedType{
		Name:             "Barley",
		LocalName:        "Ječmen",
		Category:         "GRAINS",
		ProteinPct:       dec("11.5"),
		EnergyMJ:         dec("12.8"),
		ReorderThreshold: dec("100"),
	})
	require.NoError(t, err)
	assert.Equal(t, model.CategoryGrain, ft.Category)
	assert.Equal(t, "kg", ft.Unit)
	assert.Equal(t, "Ječmen", ft.LocalName)
	requireDecimal(t, "11.5", ft.ProteinPct)

	_, err = CreateFeedType(f.ctx, f.db, f.farm.ID, model.FeedType{Name: "Barley", Category: model.CategoryGrain})
	require.ErrorIs(t, err, model.ErrConflict)

	_, err = CreateFeedType(f.ctx, f.db, f.farm.ID, model.FeedType{Name: "Rocks", Category: "rocks"})
	require.ErrorIs(t, err, model.ErrValidation)

	_, err = CreateFeedType(f.ctx, f.db, f.farm.ID, model.FeedType{Name: "X", Category: model.CategoryOther, ProteinPct: dec("101")})
	require.ErrorIs(t, err, model.ErrValidation)
}

func TestListAndUpdateFeedTypes(t *testing.T) {
	f := newFixture(t)
	hay := f.feedType(t, "Hay", model.CategoryRoughage, "50")
	f.feedType(t, "Barley", model.CategoryGrain, "20")

	all, err := ListFeedTypes(f.ctx, f.db, f.farm.ID, "")
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, "Barley", all[0].Name)

	grains, err := ListFeedTypes(f.ctx, f.db, f.farm.ID, model.CategoryGrain)
	require.NoError(t, err)
	require.Len(t, grains, 1)

	updated, err := UpdateFeedType(f.ctx, f.db, f.farm.ID, hay.ID, model.FeedType{
		Name:             "Alfalfa hay",
		Category:         model.CategoryRoughage,
		ReorderThreshold: dec("75"),
	})
	require.NoError(t, err)
	assert.Equal(t, hay.ID, updated.ID)
	assert.Equal(t, "Alfalfa hay", updated.Name)
	requireDecimal(t, "75", updated.ReorderThreshold)

	_, err = UpdateFeedType(f.ctx, f.db, f.farm.ID, 999, model.FeedType{Name: "X", Category: model.CategoryOther})
	require.ErrorIs(t, err, model.ErrNotFound)
}

func TestDeleteFeedTypeReferentialGuard(t *testing.T) {
	f := newFixture(t)

	stocked := f.feedType(t, "Hay", model.CategoryRoughage, "0")
	lot := f.lot(t, stocked.ID, "1", "1", "2024-01-01", "")
	err := DeleteFeedType(f.ctx, f.db, f.farm.ID, stocked.ID)
	require.ErrorIs(t, err, model.ErrConflict)

	// An emptied lot still references the type.
	_, err = EditLot(f.ctx, f.db, f.farm.ID, lot.ID, model.StockLot{Quantity: dec("0"), UnitCost: dec("1"), PurchasedOn: lot.PurchasedOn})
	require.NoError(t, err)
	require.ErrorIs(t, DeleteFeedType(f.ctx, f.db, f.farm.ID, stocked.ID), model.ErrConflict)

	scheduled := f.feedType(t, "Barley", model.CategoryGrain, "0")
	pen := f.pen(t, "Pen A", 1)
	s := f.schedule(t, model.PenTarget{PenID: pen.ID}, scheduled.ID, "1", "2024-01-01")
	require.ErrorIs(t, DeleteFeedType(f.ctx, f.db, f.farm.ID, scheduled.ID), model.ErrConflict)

	_, err = SetScheduleActive(f.ctx, f.db, f.farm.ID, s.ID, false)
	require.NoError(t, err)
	require.NoError(t, DeleteFeedType(f.ctx, f.db, f.farm.ID, scheduled.ID))

	_, err = GetFeedType(f.ctx, f.db, f.farm.ID, scheduled.ID)
	require.ErrorIs(t, err, model.ErrNotFound)

	// A deleted type frees its name and cannot be reactivated through a schedule.
	f.feedType(t, "Barley", model.CategoryGrain, "0")
	_, err = SetScheduleActive(f.ctx, f.db, f.farm.ID, s.ID, true)
	require.ErrorIs(t, err, model.ErrNotFound)
}
