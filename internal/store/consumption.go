package store

import (
	"context"
	"database/sql"
	"fmt"
	"sort"

	"github.com/shopspring/decimal"

	"github.com/erazemk/krma/internal/db"
	"github.com/erazemk/krma/internal/model"
)

// demand is what one schedule requires on a date.
type demand struct {
	schedule model.Schedule
	penID    *int64
	animalID *int64
	heads    int
	quantity decimal.Decimal
}

// collectDemand resolves every schedule active on date against the live
// head count of its target. Targets with no live heads are dropped.
func collectDemand(ctx context.Context, q querier, farmID int64, date model.Date) ([]demand, error) {
	schedules, err := listSchedules(ctx, q, farmID, ScheduleFilter{ActiveOn: date})
	if err != nil {
		return nil, err
	}

	var demands []demand
	for _, s := range schedules {
		d := demand{schedule: s}
		switch t := s.Target.(type) {
		case model.PenTarget:
			penID := t.PenID
			d.penID = &penID
			err = q.QueryRowContext(ctx,
				`SELECT COUNT(*) FROM animals a
				 JOIN pens p ON p.id = a.pen_id AND p.archived_at IS NULL
				 WHERE a.farm_id = ? AND a.pen_id = ? AND `+liveAnimal,
				farmID, penID,
			).Scan(&d.heads)
			if err != nil {
				return nil, fmt.Errorf("counting pen occupants: %w", err)
			}
		case model.AnimalTarget:
			animalID := t.AnimalID
			d.animalID = &animalID
			var live int
			err = q.QueryRowContext(ctx,
				`SELECT a.pen_id, CASE WHEN `+liveAnimal+` THEN 1 ELSE 0 END
				 FROM animals a WHERE a.farm_id = ? AND a.id = ?`,
				farmID, animalID,
			).Scan(&d.penID, &live)
			if err == sql.ErrNoRows {
				continue
			}
			if err != nil {
				return nil, fmt.Errorf("checking scheduled animal: %w", err)
			}
			d.heads = live
		}
		if d.heads == 0 {
			continue
		}
		d.quantity = s.QuantityPerHead.Mul(decimal.NewFromInt(int64(d.heads)))
		demands = append(demands, d)
	}
	return demands, nil
}

// requirement is the aggregated demand for one feed type.
type requirement struct {
	feedTypeID int64
	name       string
	quantity   decimal.Decimal
}

func aggregateDemand(demands []demand) []requirement {
	byType := map[int64]*requirement{}
	for _, d := range demands {
		r, ok := byType[d.schedule.FeedTypeID]
		if !ok {
			r = &requirement{feedTypeID: d.schedule.FeedTypeID, name: d.schedule.FeedTypeName}
			byType[d.schedule.FeedTypeID] = r
		}
		r.quantity = r.quantity.Add(d.quantity)
	}

	reqs := make([]requirement, 0, len(byType))
	for _, r := range byType {
		reqs = append(reqs, *r)
	}
	sort.Slice(reqs, func(i, j int) bool { return reqs[i].feedTypeID < reqs[j].feedTypeID })
	return reqs
}

// ExecuteConsumption deducts one date's scheduled feed from stock and records
// the consumption entry. Either every required feed type is deducted or none
// is: when any type is short the result is skipped, lists the shortages and
// the date is marked skipped. A later successful run clears the mark.
// A date that already has an entry fails with model.ErrAlreadyExecuted.
func ExecuteConsumption(ctx context.Context, sqlDB *sql.DB, farmID int64, date model.Date) (*model.ExecutionResult, error) {
	if date.IsZero() {
		return nil, model.Invalidf("consumption date required")
	}

	tx, err := sqlDB.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	// The entry goes in first so the unique (farm, date) constraint decides
	// concurrent executions before any stock is touched.
	result, err := tx.ExecContext(ctx,
		`INSERT INTO consumption_entries (farm_id, consumed_on) VALUES (?, ?)`,
		farmID, date,
	)
	if db.IsUniqueViolation(err) {
		return nil, fmt.Errorf("executing %s: %w", date, model.ErrAlreadyExecuted)
	}
	if err != nil {
		return nil, fmt.Errorf("recording consumption entry: %w", err)
	}
	entryID, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("getting consumption entry id: %w", err)
	}

	demands, err := collectDemand(ctx, tx, farmID, date)
	if err != nil {
		return nil, err
	}
	reqs := aggregateDemand(demands)

	var shortages []model.Shortage
	for _, r := range reqs {
		available, err := onHand(ctx, tx, farmID, r.feedTypeID)
		if err != nil {
			return nil, err
		}
		if available.LessThan(r.quantity) {
			shortages = append(shortages, model.Shortage{
				FeedTypeID:   r.feedTypeID,
				FeedTypeName: r.name,
				Required:     r.quantity,
				Available:    available,
			})
		}
	}
	if len(shortages) > 0 {
		if _, err := tx.ExecContext(ctx, `DELETE FROM consumption_entries WHERE id = ?`, entryID); err != nil {
			return nil, fmt.Errorf("discarding consumption entry: %w", err)
		}
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO consumption_skips (farm_id, skipped_on, shortages) VALUES (?, ?, ?)
			 ON CONFLICT (farm_id, skipped_on) DO UPDATE SET
			     shortages = excluded.shortages, created_at = CURRENT_TIMESTAMP`,
			farmID, date, len(shortages),
		); err != nil {
			return nil, fmt.Errorf("recording skipped date: %w", err)
		}
		if err := tx.Commit(); err != nil {
			return nil, fmt.Errorf("committing skipped date: %w", err)
		}
		return &model.ExecutionResult{
			Date:      date,
			Status:    model.ExecutionSkipped,
			Shortages: shortages,
		}, nil
	}

	unitCosts := make(map[int64]decimal.Decimal, len(reqs))
	for _, r := range reqs {
		cost, err := drawLots(ctx, tx, farmID, entryID, r.feedTypeID, r.quantity)
		if err != nil {
			return nil, err
		}
		unitCosts[r.feedTypeID] = cost
	}

	entry := &model.ConsumptionEntry{ID: entryID, FarmID: farmID, ConsumedOn: date}
	for _, d := range demands {
		line := model.ConsumptionLine{
			ScheduleID:   d.schedule.ID,
			FeedTypeID:   d.schedule.FeedTypeID,
			PenID:        d.penID,
			AnimalID:     d.animalID,
			HeadCount:    d.heads,
			Quantity:     d.quantity,
			UnitCost:     unitCosts[d.schedule.FeedTypeID],
			FeedTypeName: d.schedule.FeedTypeName,
		}
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO consumption_lines (entry_id, schedule_id, feed_type_id, pen_id, animal_id,
			                                head_count, quantity, unit_cost)
			 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
			entryID, line.ScheduleID, line.FeedTypeID, line.PenID, line.AnimalID,
			line.HeadCount, line.Quantity, line.UnitCost,
		); err != nil {
			return nil, fmt.Errorf("recording consumption line: %w", err)
		}
		entry.Lines = append(entry.Lines, line)
	}

	for _, r := range reqs {
		if err := recomputeOnHand(ctx, tx, farmID, r.feedTypeID); err != nil {
			return nil, err
		}
	}

	if _, err := tx.ExecContext(ctx,
		`DELETE FROM consumption_skips WHERE farm_id = ? AND skipped_on = ?`, farmID, date,
	); err != nil {
		return nil, fmt.Errorf("clearing skipped date: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("committing consumption: %w", err)
	}

	return &model.ExecutionResult{
		Date:   date,
		Status: model.ExecutionExecuted,
		Entry:  entry,
	}, nil
}

type lotBalance struct {
	id       int64
	quantity decimal.Decimal
	unitCost decimal.Decimal
}

// drawLots takes quantity of a feed type from its lots in draw order and
// records each draw against the entry. It returns the weighted average unit
// cost of the lots that held stock before the draw.
func drawLots(ctx context.Context, tx *sql.Tx, farmID, entryID, feedTypeID int64, quantity decimal.Decimal) (decimal.Decimal, error) {
	rows, err := tx.QueryContext(ctx,
		`SELECT l.id, l.quantity, l.unit_cost FROM stock_lots l
		 WHERE l.farm_id = ? AND l.feed_type_id = ? AND CAST(l.quantity AS REAL) > 0
		 ORDER BY `+lotDrawOrder,
		farmID, feedTypeID,
	)
	if err != nil {
		return decimal.Zero, fmt.Errorf("listing lots to draw: %w", err)
	}
	var lots []lotBalance
	for rows.Next() {
		var l lotBalance
		if err := rows.Scan(&l.id, &l.quantity, &l.unitCost); err != nil {
			rows.Close()
			return decimal.Zero, fmt.Errorf("scanning lot: %w", err)
		}
		lots = append(lots, l)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return decimal.Zero, fmt.Errorf("listing lots to draw: %w", err)
	}

	held, value := decimal.Zero, decimal.Zero
	for _, l := range lots {
		held = held.Add(l.quantity)
		value = value.Add(l.quantity.Mul(l.unitCost))
	}
	unitCost := decimal.Zero
	if held.IsPositive() {
		unitCost = value.Div(held).Round(4)
	}

	remaining := quantity
	for _, l := range lots {
		if !remaining.IsPositive() {
			break
		}
		take := decimal.Min(remaining, l.quantity)
		if _, err := tx.ExecContext(ctx,
			`UPDATE stock_lots SET quantity = ? WHERE id = ?`, l.quantity.Sub(take), l.id,
		); err != nil {
			return decimal.Zero, fmt.Errorf("drawing from lot %d: %w", l.id, err)
		}
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO consumption_allocations (entry_id, lot_id, feed_type_id, quantity) VALUES (?, ?, ?, ?)`,
			entryID, l.id, feedTypeID, take,
		); err != nil {
			return decimal.Zero, fmt.Errorf("recording lot allocation: %w", err)
		}
		remaining = remaining.Sub(take)
	}
	if remaining.IsPositive() {
		// on_hand said there was enough; the lots disagree.
		return decimal.Zero, fmt.Errorf("feed type %d: lots short by %s despite on-hand total", feedTypeID, remaining)
	}
	return unitCost, nil
}

// UndoConsumption reverses a date's consumption: every lot is credited with
// exactly what was drawn from it and the entry is removed.
func UndoConsumption(ctx context.Context, db *sql.DB, farmID int64, date model.Date) (*model.UndoResult, error) {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	var entryID int64
	err = tx.QueryRowContext(ctx,
		`SELECT id FROM consumption_entries WHERE farm_id = ? AND consumed_on = ?`,
		farmID, date,
	).Scan(&entryID)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("undoing %s: %w", date, model.ErrNotExecuted)
	}
	if err != nil {
		return nil, fmt.Errorf("getting consumption entry: %w", err)
	}

	type allocation struct {
		lotID, feedTypeID int64
		quantity          decimal.Decimal
	}
	rows, err := tx.QueryContext(ctx,
		`SELECT lot_id, feed_type_id, quantity FROM consumption_allocations WHERE entry_id = ?`, entryID,
	)
	if err != nil {
		return nil, fmt.Errorf("listing lot allocations: %w", err)
	}
	var allocs []allocation
	for rows.Next() {
		var a allocation
		if err := rows.Scan(&a.lotID, &a.feedTypeID, &a.quantity); err != nil {
			rows.Close()
			return nil, fmt.Errorf("scanning lot allocation: %w", err)
		}
		allocs = append(allocs, a)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("listing lot allocations: %w", err)
	}

	restored := map[int64]decimal.Decimal{}
	for _, a := range allocs {
		var current decimal.Decimal
		if err := tx.QueryRowContext(ctx,
			`SELECT quantity FROM stock_lots WHERE id = ?`, a.lotID,
		).Scan(&current); err != nil {
			return nil, fmt.Errorf("reading lot %d: %w", a.lotID, err)
		}
		if _, err := tx.ExecContext(ctx,
			`UPDATE stock_lots SET quantity = ? WHERE id = ?`, current.Add(a.quantity), a.lotID,
		); err != nil {
			return nil, fmt.Errorf("crediting lot %d: %w", a.lotID, err)
		}
		restored[a.feedTypeID] = restored[a.feedTypeID].Add(a.quantity)
	}

	for _, stmt := range []string{
		`DELETE FROM consumption_allocations WHERE entry_id = ?`,
		`DELETE FROM consumption_lines WHERE entry_id = ?`,
		`DELETE FROM consumption_entries WHERE id = ?`,
	} {
		if _, err := tx.ExecContext(ctx, stmt, entryID); err != nil {
			return nil, fmt.Errorf("removing consumption entry: %w", err)
		}
	}

	res := &model.UndoResult{Date: date, RestoredTotal: decimal.Zero}
	for id, q := range restored {
		if err := recomputeOnHand(ctx, tx, farmID, id); err != nil {
			return nil, err
		}
		res.Restored = append(res.Restored, model.RestoredStock{FeedTypeID: id, Quantity: q})
		res.RestoredTotal = res.RestoredTotal.Add(q)
	}
	sort.Slice(res.Restored, func(i, j int) bool { return res.Restored[i].FeedTypeID < res.Restored[j].FeedTypeID })

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("committing undo: %w", err)
	}
	return res, nil
}

// GetConsumption returns the entry recorded for date.
func GetConsumption(ctx context.Context, db *sql.DB, farmID int64, date model.Date) (*model.ConsumptionEntry, error) {
	e := &model.ConsumptionEntry{}
	err := db.QueryRowContext(ctx,
		`SELECT id, farm_id, consumed_on, created_at FROM consumption_entries
		 WHERE farm_id = ? AND consumed_on = ?`, farmID, date,
	).Scan(&e.ID, &e.FarmID, &e.ConsumedOn, &e.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("getting %s: %w", date, model.ErrNotExecuted)
	}
	if err != nil {
		return nil, fmt.Errorf("getting consumption entry: %w", err)
	}

	e.Lines, err = entryLines(ctx, db, e.ID)
	if err != nil {
		return nil, err
	}
	return e, nil
}

func entryLines(ctx context.Context, db *sql.DB, entryID int64) ([]model.ConsumptionLine, error) {
	rows, err := db.QueryContext(ctx,
		`SELECT cl.schedule_id, cl.feed_type_id, cl.pen_id, cl.animal_id, cl.head_count,
		        cl.quantity, cl.unit_cost, ft.name, COALESCE(p.name, '')
		 FROM consumption_lines cl
		 JOIN feed_types ft ON ft.id = cl.feed_type_id
		 LEFT JOIN pens p ON p.id = cl.pen_id
		 WHERE cl.entry_id = ?
		 ORDER BY cl.id`, entryID,
	)
	if err != nil {
		return nil, fmt.Errorf("listing consumption lines: %w", err)
	}
	defer rows.Close()

	var lines []model.ConsumptionLine
	for rows.Next() {
		var l model.ConsumptionLine
		if err := rows.Scan(&l.ScheduleID, &l.FeedTypeID, &l.PenID, &l.AnimalID, &l.HeadCount,
			&l.Quantity, &l.UnitCost, &l.FeedTypeName, &l.PenName); err != nil {
			return nil, fmt.Errorf("scanning consumption line: %w", err)
		}
		lines = append(lines, l)
	}
	return lines, rows.Err()
}

// ListConsumption returns the entries between from and to inclusive, oldest
// first. A zero bound is open.
func ListConsumption(ctx context.Context, db *sql.DB, farmID int64, from, to model.Date) ([]model.ConsumptionEntry, error) {
	dates, err := ExecutedDates(ctx, db, farmID, from, to)
	if err != nil {
		return nil, err
	}

	entries := make([]model.ConsumptionEntry, 0, len(dates))
	for _, d := range dates {
		e, err := GetConsumption(ctx, db, farmID, d)
		if err != nil {
			return nil, err
		}
		entries = append(entries, *e)
	}
	return entries, nil
}

// ExecutedDates returns the dates between from and to inclusive that have a
// consumption entry. A zero bound is open.
func ExecutedDates(ctx context.Context, db *sql.DB, farmID int64, from, to model.Date) ([]model.Date, error) {
	dates, err := datesBetween(ctx, db,
		`SELECT consumed_on FROM consumption_entries
		 WHERE farm_id = ? AND consumed_on >= ? AND consumed_on <= ?
		 ORDER BY consumed_on`, farmID, from, to)
	if err != nil {
		return nil, fmt.Errorf("listing executed dates: %w", err)
	}
	return dates, nil
}

// SkippedDates returns the dates between from and to inclusive that were
// marked skipped for a shortage and not executed since. A zero bound is open.
func SkippedDates(ctx context.Context, db *sql.DB, farmID int64, from, to model.Date) ([]model.Date, error) {
	dates, err := datesBetween(ctx, db,
		`SELECT skipped_on FROM consumption_skips
		 WHERE farm_id = ? AND skipped_on >= ? AND skipped_on <= ?
		 ORDER BY skipped_on`, farmID, from, to)
	if err != nil {
		return nil, fmt.Errorf("listing skipped dates: %w", err)
	}
	return dates, nil
}

// IsSkipped reports whether date carries a skipped mark.
func IsSkipped(ctx context.Context, db *sql.DB, farmID int64, date model.Date) (bool, error) {
	var n int
	err := db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM consumption_skips WHERE farm_id = ? AND skipped_on = ?`,
		farmID, date,
	).Scan(&n)
	if err != nil {
		return false, fmt.Errorf("checking skipped date: %w", err)
	}
	return n > 0, nil
}

func datesBetween(ctx context.Context, db *sql.DB, query string, farmID int64, from, to model.Date) ([]model.Date, error) {
	lo, hi := "0000-01-01", "9999-12-31"
	if !from.IsZero() {
		lo = from.String()
	}
	if !to.IsZero() {
		hi = to.String()
	}

	rows, err := db.QueryContext(ctx, query, farmID, lo, hi)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var dates []model.Date
	for rows.Next() {
		var d model.Date
		if err := rows.Scan(&d); err != nil {
			return nil, err
		}
		dates = append(dates, d)
	}
	return dates, rows.Err()
}

// LastExecutedDate returns the most recent executed date on or before asOf,
// or the zero Date when there is none. A zero asOf is open.
func LastExecutedDate(ctx context.Context, db *sql.DB, farmID int64, asOf model.Date) (model.Date, error) {
	hi := "9999-12-31"
	if !asOf.IsZero() {
		hi = asOf.String()
	}

	var d model.Date
	err := db.QueryRowContext(ctx,
		`SELECT MAX(consumed_on) FROM consumption_entries WHERE farm_id = ? AND consumed_on <= ?`,
		farmID, hi,
	).Scan(&d)
	if err != nil {
		return model.Date{}, fmt.Errorf("getting last executed date: %w", err)
	}
	return d, nil
}

// IsExecuted reports whether date has a consumption entry.
func IsExecuted(ctx context.Context, db *sql.DB, farmID int64, date model.Date) (bool, error) {
	var n int
	err := db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM consumption_entries WHERE farm_id = ? AND consumed_on = ?`,
		farmID, date,
	).Scan(&n)
	if err != nil {
		return false, fmt.Errorf("checking consumption entry: %w", err)
	}
	return n > 0, nil
}
