package feeding

import (
	"context"
	"database/sql"
	"fmt"
	"sync"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/erazemk/krma/internal/db"
	"github.com/erazemk/krma/internal/metrics"
	"github.com/erazemk/krma/internal/model"
	"github.com/erazemk/krma/internal/store"
)

type memCache struct {
	mu            sync.Mutex
	reports       map[string]*model.ReorderReport
	gets          int
	invalidations int
}

func newMemCache() *memCache {
	return &memCache{reports: map[string]*model.ReorderReport{}}
}

func (c *memCache) GetReport(_ context.Context, farmID int64, asOf model.Date) (*model.ReorderReport, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.gets++
	r, ok := c.reports[fmt.Sprintf("%d/%s", farmID, asOf)]
	return r, ok, nil
}

func (c *memCache) SetReport(_ context.Context, farmID int64, r *model.ReorderReport) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.reports[fmt.Sprintf("%d/%s", farmID, r.AsOf)] = r
	return nil
}

func (c *memCache) InvalidateFarm(_ context.Context, farmID int64) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.invalidations++
	for k := range c.reports {
		delete(c.reports, k)
	}
	return nil
}

type fixture struct {
	ctx     context.Context
	db      *sql.DB
	farm    *model.Farm
	svc     *Service
	cache   *memCache
	metrics *metrics.Metrics
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	database := db.NewTestDB(t)
	ctx := context.Background()

	farm, err := store.CreateFarm(ctx, database, "Test farm", model.SpeciesGoat)
	require.NoError(t, err)

	c := newMemCache()
	m := metrics.New()
	return &fixture{
		ctx:     ctx,
		db:      database,
		farm:    farm,
		svc:     New(database, Config{}, nil, m, c, nil),
		cache:   c,
		metrics: m,
	}
}

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func (f *fixture) feedType(t *testing.T, name string, category model.FeedCategory, threshold string) *model.FeedType {
	t.Helper()
	ft, err := store.CreateFeedType(f.ctx, f.db, f.farm.ID, model.FeedType{
		Name:             name,
		Category:         category,
		ReorderThreshold: dec(threshold),
	})
	require.NoError(t, err)
	return ft
}

func (f *fixture) lot(t *testing.T, feedTypeID int64, qty, cost string) {
	t.Helper()
	_, err := store.AddLot(f.ctx, f.db, f.farm.ID, model.StockLot{
		FeedTypeID:  feedTypeID,
		Quantity:    dec(qty),
		UnitCost:    dec(cost),
		PurchasedOn: model.MustParseDate("2024-02-01"),
	})
	require.NoError(t, err)
}

// pen creates a pen holding n adult females.
func (f *fixture) pen(t *testing.T, name string, n int) *model.Pen {
	t.Helper()
	p, err := store.CreatePen(f.ctx, f.db, f.farm.ID, name)
	require.NoError(t, err)
	for i := 0; i < n; i++ {
		_, err := store.CreateAnimal(f.ctx, f.db, f.farm.ID, model.Animal{
			PenID:     &p.ID,
			Tag:       fmt.Sprintf("%s-%d", name, i+1),
			Gender:    model.GenderFemale,
			BirthDate: model.MustParseDate("2021-01-01"),
		})
		require.NoError(t, err)
	}
	return p
}

func (f *fixture) schedule(t *testing.T, penID, feedTypeID int64, qty, start string) *model.Schedule {
	t.Helper()
	s, err := store.CreateSchedule(f.ctx, f.db, f.farm.ID, model.Schedule{
		Target:          model.PenTarget{PenID: penID},
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
	q, err := store.OnHand(f.ctx, f.db, f.farm.ID, feedTypeID)
	require.NoError(t, err)
	return q
}

func dateStrings(dates []model.Date) []string {
	out := make([]string, len(dates))
	for i, d := range dates {
		out[i] = d.String()
	}
	return out
}

func TestExecuteAutoRunsPendingWindow(t *testing.T) {
	f := newFixture(t)
	hay := f.feedType(t, "Hay", model.CategoryRoughage, "0")
	f.lot(t, hay.ID, "100", "1")
	p := f.pen(t, "Pen A", 2)
	f.schedule(t, p.ID, hay.ID, "1", "2024-03-01")

	asOf := model.MustParseDate("2024-03-05")
	res, err := f.svc.ExecuteAuto(f.ctx, f.farm.ID, asOf, 7)
	require.NoError(t, err)

	assert.Equal(t, "2024-02-28", res.From.String())
	assert.Equal(t, []string{"2024-02-28", "2024-02-29", "2024-03-01", "2024-03-02", "2024-03-03", "2024-03-04", "2024-03-05"},
		dateStrings(res.ExecutedDates))
	assert.Empty(t, res.SkippedDates)
	assert.Contains(t, res.Message, "executed 7 date(s)")
	assert.True(t, dec("90").Equal(f.onHand(t, hay.ID)))

	again, err := f.svc.ExecuteAuto(f.ctx, f.farm.ID, asOf, 7)
	require.NoError(t, err)
	assert.Empty(t, again.ExecutedDates)
	assert.Contains(t, again.Message, "nothing to execute")
	assert.True(t, dec("90").Equal(f.onHand(t, hay.ID)))

	assert.Equal(t, 7.0, testutil.ToFloat64(f.metrics.Executions(metrics.OutcomeExecuted)))
}

func TestExecuteAutoStartsAfterLastExecuted(t *testing.T) {
	f := newFixture(t)
	_, err := f.svc.Execute(f.ctx, f.farm.ID, model.MustParseDate("2024-03-01"))
	require.NoError(t, err)

	res, err := f.svc.ExecuteAuto(f.ctx, f.farm.ID, model.MustParseDate("2024-03-03"), 7)
	require.NoError(t, err)
	assert.Equal(t, "2024-03-02", res.From.String())
	assert.Equal(t, []string{"2024-03-02", "2024-03-03"}, dateStrings(res.ExecutedDates))
}

func TestExecuteAutoCapsLookback(t *testing.T) {
	f := newFixture(t)
	res, err := f.svc.ExecuteAuto(f.ctx, f.farm.ID, model.MustParseDate("2024-03-31"), 100)
	require.NoError(t, err)
	assert.Equal(t, "2024-03-01", res.From.String())
	assert.Len(t, res.ExecutedDates, 31)
}

func TestExecuteAutoCollectsShortages(t *testing.T) {
	f := newFixture(t)
	hay := f.feedType(t, "Hay", model.CategoryRoughage, "0")
	f.lot(t, hay.ID, "5", "1")
	p := f.pen(t, "Pen A", 2)
	f.schedule(t, p.ID, hay.ID, "1", "2024-03-01")

	res, err := f.svc.ExecuteAuto(f.ctx, f.farm.ID, model.MustParseDate("2024-03-04"), 4)
	require.NoError(t, err)

	assert.Equal(t, []string{"2024-03-01", "2024-03-02"}, dateStrings(res.ExecutedDates))
	assert.Equal(t, []string{"2024-03-03", "2024-03-04"}, dateStrings(res.SkippedDates))
	require.Len(t, res.Shortages["2024-03-03"], 1)
	sh := res.Shortages["2024-03-03"][0]
	assert.True(t, dec("2").Equal(sh.Required))
	assert.True(t, dec("1").Equal(sh.Available))
	assert.Contains(t, res.Message, "skipped 2")

	assert.Equal(t, 2.0, testutil.ToFloat64(f.metrics.Shortages("Hay")))
	assert.True(t, dec("1").Equal(f.onHand(t, hay.ID)))
}

func TestExecuteAutoPassesOverSkippedDates(t *testing.T) {
	f := newFixture(t)
	hay := f.feedType(t, "Hay", model.CategoryRoughage, "0")
	f.lot(t, hay.ID, "5", "1")
	p := f.pen(t, "Pen A", 2)
	f.schedule(t, p.ID, hay.ID, "1", "2024-03-01")
	asOf := model.MustParseDate("2024-03-04")

	first, err := f.svc.ExecuteAuto(f.ctx, f.farm.ID, asOf, 4)
	require.NoError(t, err)
	assert.Equal(t, []string{"2024-03-03", "2024-03-04"}, dateStrings(first.SkippedDates))

	second, err := f.svc.ExecuteAuto(f.ctx, f.farm.ID, asOf, 4)
	require.NoError(t, err)
	assert.Empty(t, second.ExecutedDates)
	assert.Empty(t, second.SkippedDates)
	assert.Empty(t, second.Shortages)
	assert.Equal(t, 2.0, testutil.ToFloat64(f.metrics.Shortages("Hay")), "no new shortage reported")

	status, err := f.svc.Status(f.ctx, f.farm.ID, model.MustParseDate("2024-03-03"))
	require.NoError(t, err)
	assert.Equal(t, StatusSkipped, status.Status)

	// Restocking does not make auto mode retry; an explicit execute does.
	f.lot(t, hay.ID, "10", "1")
	third, err := f.svc.ExecuteAuto(f.ctx, f.farm.ID, asOf, 4)
	require.NoError(t, err)
	assert.Empty(t, third.ExecutedDates)

	res, err := f.svc.Execute(f.ctx, f.farm.ID, model.MustParseDate("2024-03-03"))
	require.NoError(t, err)
	assert.Equal(t, model.ExecutionExecuted, res.Status)

	status, err = f.svc.Status(f.ctx, f.farm.ID, model.MustParseDate("2024-03-03"))
	require.NoError(t, err)
	assert.Equal(t, StatusExecuted, status.Status)
	status, err = f.svc.Status(f.ctx, f.farm.ID, asOf)
	require.NoError(t, err)
	assert.Equal(t, StatusSkipped, status.Status)
	assert.True(t, dec("9").Equal(f.onHand(t, hay.ID)))
}

func TestExecuteAutoIgnoresLaterExecutedDates(t *testing.T) {
	f := newFixture(t)
	_, err := f.svc.Execute(f.ctx, f.farm.ID, model.MustParseDate("2024-03-20"))
	require.NoError(t, err)

	res, err := f.svc.ExecuteAuto(f.ctx, f.farm.ID, model.MustParseDate("2024-03-05"), 7)
	require.NoError(t, err)
	assert.Equal(t, "2024-02-28", res.From.String())
	assert.Equal(t, "2024-03-05", res.To.String())
	assert.Len(t, res.ExecutedDates, 7)
	assert.NotContains(t, res.Message, "nothing to execute")
}

func TestExecuteConflictAndUndo(t *testing.T) {
	f := newFixture(t)
	hay := f.feedType(t, "Hay", model.CategoryRoughage, "0")
	f.lot(t, hay.ID, "10", "1")
	p := f.pen(t, "Pen A", 3)
	f.schedule(t, p.ID, hay.ID, "1", "2024-03-01")
	day := model.MustParseDate("2024-03-10")

	_, err := f.svc.Execute(f.ctx, f.farm.ID, day)
	require.NoError(t, err)
	_, err = f.svc.Execute(f.ctx, f.farm.ID, day)
	require.ErrorIs(t, err, model.ErrAlreadyExecuted)
	assert.Equal(t, 1.0, testutil.ToFloat64(f.metrics.Executions(metrics.OutcomeConflict)))

	status, err := f.svc.Status(f.ctx, f.farm.ID, day)
	require.NoError(t, err)
	assert.Equal(t, StatusExecuted, status.Status)
	require.NotNil(t, status.Entry)

	before := f.cache.invalidations
	undo, err := f.svc.Undo(f.ctx, f.farm.ID, day)
	require.NoError(t, err)
	assert.True(t, dec("3").Equal(undo.RestoredTotal))
	assert.True(t, dec("10").Equal(f.onHand(t, hay.ID)))
	assert.Greater(t, f.cache.invalidations, before)

	status, err = f.svc.Status(f.ctx, f.farm.ID, day)
	require.NoError(t, err)
	assert.Equal(t, StatusNotExecuted, status.Status)

	_, err = f.svc.Undo(f.ctx, f.farm.ID, day)
	assert.ErrorIs(t, err, model.ErrNotExecuted)
}

func TestReorderReport(t *testing.T) {
	f := newFixture(t)
	hay := f.feedType(t, "Hay", model.CategoryRoughage, "50")
	f.lot(t, hay.ID, "40", "0.5")
	f.feedType(t, "Salt", model.CategoryMineral, "0")
	p := f.pen(t, "Pen A", 10)
	f.schedule(t, p.ID, hay.ID, "1", "2024-03-01")
	asOf := model.MustParseDate("2024-03-10")

	report, err := f.svc.ReorderReport(f.ctx, f.farm.ID, asOf)
	require.NoError(t, err)
	require.Len(t, report.Suggestions, 2)
	assert.Equal(t, 1, report.CriticalCount)

	s := report.Suggestions[0]
	assert.Equal(t, "Hay", s.FeedTypeName)
	assert.Equal(t, model.UrgencyCritical, s.Urgency)
	require.NotNil(t, s.DaysRemaining)
	assert.Equal(t, 4.0, *s.DaysRemaining)
	assert.True(t, dec("10").Equal(s.DailyConsumption))
	assert.True(t, dec("110").Equal(s.SuggestedQuantity))
	assert.True(t, dec("55").Equal(s.EstimatedCost))

	salt := report.Suggestions[1]
	assert.Equal(t, model.UrgencyOK, salt.Urgency)
	assert.Nil(t, salt.DaysRemaining)
	assert.True(t, salt.EstimatedCost.IsZero())

	// Served from cache until a mutation invalidates it.
	cached, err := f.svc.ReorderReport(f.ctx, f.farm.ID, asOf)
	require.NoError(t, err)
	assert.Same(t, report, cached)

	_, err = f.svc.Execute(f.ctx, f.farm.ID, asOf)
	require.NoError(t, err)
	fresh, err := f.svc.ReorderReport(f.ctx, f.farm.ID, asOf)
	require.NoError(t, err)
	assert.NotSame(t, report, fresh)
	assert.True(t, dec("30").Equal(fresh.Suggestions[0].OnHand))
}

func TestGenerateSchedules(t *testing.T) {
	f := newFixture(t)
	hay := f.feedType(t, "Hay", model.CategoryRoughage, "0")
	f.lot(t, hay.ID, "100", "1")
	lucerne := f.feedType(t, "Lucerne", model.CategoryRoughage, "0")
	f.lot(t, lucerne.ID, "200", "1")
	barley := f.feedType(t, "Barley", model.CategoryGrain, "0")
	f.feedType(t, "Molasses", model.CategoryOther, "0")

	full := f.pen(t, "Pen A", 4)
	empty := f.pen(t, "Pen B", 0)
	manual := f.schedule(t, full.ID, hay.ID, "1", "2024-01-01")

	res, err := f.svc.GenerateSchedules(f.ctx, f.farm.ID, GenerateRequest{From: model.MustParseDate("2024-03-01")})
	require.NoError(t, err)

	require.Len(t, res.Created, 2)
	byType := map[int64]model.Schedule{}
	for _, s := range res.Created {
		byType[s.FeedTypeID] = s
		assert.Equal(t, model.PenTarget{PenID: full.ID}, s.Target)
		assert.Equal(t, model.ScheduleSourceGenerated, s.Source)
		assert.Equal(t, "2024-03-01", s.StartOn.String())
		assert.Equal(t, "2024-03-31", s.EndOn.String())
		assert.True(t, s.Active)
	}
	require.Contains(t, byType, lucerne.ID, "largest on-hand roughage wins")
	require.Contains(t, byType, barley.ID)
	// Adult small ruminants at the default weight, all female: base x 1.10.
	assert.Equal(t, "1.65", byType[lucerne.ID].QuantityPerHead.StringFixed(2))
	assert.Equal(t, "0.44", byType[barley.ID].QuantityPerHead.StringFixed(2))
	assert.Equal(t, 2, byType[lucerne.ID].MealsPerDay)

	require.Len(t, res.Skipped, 1)
	assert.Equal(t, empty.ID, res.Skipped[0].PenID)
	assert.Equal(t, "no live occupants", res.Skipped[0].Reason)

	_, err = store.GetSchedule(f.ctx, f.db, f.farm.ID, manual.ID)
	require.NoError(t, err, "without replace existing schedules stay")

	res, err = f.svc.GenerateSchedules(f.ctx, f.farm.ID, GenerateRequest{From: model.MustParseDate("2024-04-01"), Replace: true})
	require.NoError(t, err)
	require.Len(t, res.Created, 2)
	_, err = store.GetSchedule(f.ctx, f.db, f.farm.ID, manual.ID)
	require.ErrorIs(t, err, model.ErrNotFound)

	all, err := store.ListSchedules(f.ctx, f.db, f.farm.ID, store.ScheduleFilter{PenID: full.ID})
	require.NoError(t, err)
	assert.Len(t, all, 2)
}

func TestGenerateSchedulesRequiresFrom(t *testing.T) {
	f := newFixture(t)
	_, err := f.svc.GenerateSchedules(f.ctx, f.farm.ID, GenerateRequest{})
	assert.ErrorIs(t, err, model.ErrValidation)
}

func TestPickFeedTypes(t *testing.T) {
	picks := pickFeedTypes([]model.StockTotal{
		{FeedTypeID: 5, Category: model.CategoryGrain, OnHand: dec("10")},
		{FeedTypeID: 3, Category: model.CategoryGrain, OnHand: dec("10")},
		{FeedTypeID: 9, Category: model.CategoryRoughage, OnHand: dec("1")},
		{FeedTypeID: 7, Category: model.CategoryGrain, OnHand: dec("2")},
	})
	require.Len(t, picks, 2)
	assert.Equal(t, int64(9), picks[0].FeedTypeID)
	assert.Equal(t, int64(3), picks[1].FeedTypeID, "ties go to the lowest id")
}

func TestRecommendForPen(t *testing.T) {
	f := newFixture(t)
	p := f.pen(t, "Pen A", 3)

	rec, err := f.svc.RecommendForPen(f.ctx, f.farm.ID, p.ID, model.CategoryGrain, model.MustParseDate("2024-03-01"))
	require.NoError(t, err)
	require.NotNil(t, rec)
	assert.Equal(t, 3, rec.HeadCount)

	_, err = f.svc.RecommendForPen(f.ctx, f.farm.ID, 999, model.CategoryGrain, model.MustParseDate("2024-03-01"))
	assert.ErrorIs(t, err, model.ErrNotFound)
}
