package store

import (
	"context"
	"database/sql"
	"fmt"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/erazemk/krma/internal/db"
	"github.com/erazemk/krma/internal/model"
)

type fixture struct {
	ctx  context.Context
	db   *sql.DB
	farm *model.Farm
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	database := db.NewTestDB(t)
	ctx := context.Background()

	farm, err := CreateFarm(ctx, database, "Test farm", model.SpeciesGoat)
	require.NoError(t, err)

	return &fixture{ctx: ctx, db: database, farm: farm}
}

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func decimalNull(s string) decimal.NullDecimal {
	return decimal.NewNullDecimal(dec(s))
}

func requireDecimal(t *testing.T, want string, got decimal.Decimal) {
	t.Helper()
	require.Truef(t, dec(want).Equal(got), "want %s, got %s", want, got)
}

func (f *fixture) feedType(t *testing.T, name string, category model.FeedCategory, threshold string) *model.FeedType {
	t.Helper()
	ft, err := CreateFeedType(f.ctx, f.db, f.farm.ID, model.FeedType{
		Name:             name,
		Category:         category,
		ReorderThreshold: dec(threshold),
	})
	require.NoError(t, err)
	return ft
}

func (f *fixture) lot(t *testing.T, feedTypeID int64, qty, cost, purchased, expires string) *model.StockLot {
	t.Helper()
	l := model.StockLot{
		FeedTypeID:  feedTypeID,
		Quantity:    dec(qty),
		UnitCost:    dec(cost),
		PurchasedOn: model.MustParseDate(purchased),
	}
	if expires != "" {
		l.ExpiresOn = model.MustParseDate(expires)
	}
	lot, err := AddLot(f.ctx, f.db, f.farm.ID, l)
	require.NoError(t, err)
	return lot
}

// pen creates a pen holding n live females.
func (f *fixture) pen(t *testing.T, name string, n int) *model.Pen {
	t.Helper()
	p, err := CreatePen(f.ctx, f.db, f.farm.ID, name)
	require.NoError(t, err)
	for i := 0; i < n; i++ {
		f.animal(t, &p.ID, fmt.Sprintf("%s-%d", name, i+1))
	}
	return p
}

func (f *fixture) animal(t *testing.T, penID *int64, tag string) *model.Animal {
	t.Helper()
	a, err := CreateAnimal(f.ctx, f.db, f.farm.ID, model.Animal{
		PenID:     penID,
		Tag:       tag,
		Gender:    model.GenderFemale,
		BirthDate: model.MustParseDate("2021-01-01"),
	})
	require.NoError(t, err)
	return a
}

func (f *fixture) schedule(t *testing.T, target model.Target, feedTypeID int64, qty, start string) *model.Schedule {
	t.Helper()
	s, err := CreateSchedule(f.ctx, f.db, f.farm.ID, model.Schedule{
		Target:          target,
		FeedTypeID:      feedTypeID,
		QuantityPerHead: dec(qty),
		MealsPerDay:     2,
		StartOn:         model.MustParseDate(start),
		Active:          true,
	})
	require.NoError(t, err)
	return s
}

func (f *fixture) onHand(t *testing.T, feedTypeID int64) decimal.Decimal {
	t.Helper()
	q, err := OnHand(f.ctx, f.db, f.farm.ID, feedTypeID)
	require.NoError(t, err)
	return q
}

// requireLedgerConsistent checks that every materialised total equals the
// sum of its lots.
func (f *fixture) requireLedgerConsistent(t *testing.T) {
	t.Helper()
	totals, err := ListStock(f.ctx, f.db, f.farm.ID)
	require.NoError(t, err)
	for _, st := range totals {
		lots, err := ListLots(f.ctx, f.db, f.farm.ID, st.FeedTypeID)
		require.NoError(t, err)
		sum := decimal.Zero
		for _, l := range lots {
			sum = sum.Add(l.Quantity)
		}
		require.Truef(t, sum.Equal(st.OnHand), "%s: on_hand %s != lots %s", st.FeedTypeName, st.OnHand, sum)
	}
}
