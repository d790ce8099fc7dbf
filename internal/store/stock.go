package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/erazemk/krma/internal/model"
)

const lotColumns = `l.id, l.farm_id, l.feed_type_id, l.initial_quantity, l.quantity, l.unit_cost,
	l.purchased_on, l.expires_on, COALESCE(l.supplier, ''), COALESCE(l.notes, ''), l.created_at, ft.name`

// lotDrawOrder is the order lots are drawn down in: earliest expiry first,
// lots without expiry last, then oldest purchase.
const lotDrawOrder = `l.expires_on IS NULL, l.expires_on, l.purchased_on, l.id`

func scanLot(row interface{ Scan(...any) error }, l *model.StockLot) error {
	return row.Scan(&l.ID, &l.FarmID, &l.FeedTypeID, &l.InitialQuantity, &l.Quantity, &l.UnitCost,
		&l.PurchasedOn, &l.ExpiresOn, &l.Supplier, &l.Notes, &l.CreatedAt, &l.FeedTypeName)
}

// AddLot records a purchased batch and refreshes the type's on-hand total.
func AddLot(ctx context.Context, db *sql.DB, farmID int64, lot model.StockLot) (*model.StockLot, error) {
	if err := lot.Validate(); err != nil {
		return nil, err
	}
	if !lot.Quantity.IsPositive() {
		return nil, model.Invalidf("quantity must be greater than zero")
	}

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	ok, err := feedTypeExists(ctx, tx, farmID, lot.FeedTypeID)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, model.NotFoundf("feed type %d", lot.FeedTypeID)
	}

	result, err := tx.ExecContext(ctx,
		`INSERT INTO stock_lots (farm_id, feed_type_id, initial_quantity, quantity, unit_cost,
		                         purchased_on, expires_on, supplier, notes)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		farmID, lot.FeedTypeID, lot.Quantity, lot.Quantity, lot.UnitCost,
		lot.PurchasedOn, lot.ExpiresOn, lot.Supplier, lot.Notes,
	)
	if err != nil {
		return nil, fmt.Errorf("adding stock lot: %w", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("getting stock lot id: %w", err)
	}

	if err := recomputeOnHand(ctx, tx, farmID, lot.FeedTypeID); err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("committing stock lot: %w", err)
	}
	return GetLot(ctx, db, farmID, id)
}

// GetLot returns a stock lot by ID.
func GetLot(ctx context.Context, db *sql.DB, farmID, id int64) (*model.StockLot, error) {
	return getLot(ctx, db, farmID, id)
}

func getLot(ctx context.Context, q querier, farmID, id int64) (*model.StockLot, error) {
	l := &model.StockLot{}
	err := scanLot(q.QueryRowContext(ctx,
		`SELECT `+lotColumns+` FROM stock_lots l
		 JOIN feed_types ft ON ft.id = l.feed_type_id
		 WHERE l.farm_id = ? AND l.id = ?`, farmID, id,
	), l)
	if err == sql.ErrNoRows {
		return nil, model.NotFoundf("stock lot %d", id)
	}
	if err != nil {
		return nil, fmt.Errorf("getting stock lot: %w", err)
	}
	return l, nil
}

// EditLot updates a lot's remaining quantity, cost, dates and notes. The
// feed type of a lot never changes.
func EditLot(ctx context.Context, db *sql.DB, farmID, id int64, lot model.StockLot) (*model.StockLot, error) {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	current, err := getLot(ctx, tx, farmID, id)
	if err != nil {
		return nil, err
	}
	lot.FeedTypeID = current.FeedTypeID
	if err := lot.Validate(); err != nil {
		return nil, err
	}

	initial := current.InitialQuantity
	if lot.Quantity.GreaterThan(initial) {
		initial = lot.Quantity
	}

	_, err = tx.ExecContext(ctx,
		`UPDATE stock_lots SET initial_quantity = ?, quantity = ?, unit_cost = ?, purchased_on = ?,
		        expires_on = ?, supplier = ?, notes = ?
		 WHERE farm_id = ? AND id = ?`,
		initial, lot.Quantity, lot.UnitCost, lot.PurchasedOn, lot.ExpiresOn, lot.Supplier, lot.Notes,
		farmID, id,
	)
	if err != nil {
		return nil, fmt.Errorf("editing stock lot: %w", err)
	}

	if err := recomputeOnHand(ctx, tx, farmID, current.FeedTypeID); err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("committing stock lot edit: %w", err)
	}
	return GetLot(ctx, db, farmID, id)
}

// DeleteLot removes a lot. Fails while a recorded consumption drew from it.
func DeleteLot(ctx context.Context, db *sql.DB, farmID, id int64) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	current, err := getLot(ctx, tx, farmID, id)
	if err != nil {
		return err
	}

	var refs int
	err = tx.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM consumption_allocations WHERE lot_id = ?`, id,
	).Scan(&refs)
	if err != nil {
		return fmt.Errorf("checking lot consumption: %w", err)
	}
	if refs > 0 {
		return model.Conflictf("stock lot %d is referenced by %d consumption entries", id, refs)
	}

	if _, err := tx.ExecContext(ctx,
		`DELETE FROM stock_lots WHERE farm_id = ? AND id = ?`, farmID, id,
	); err != nil {
		return fmt.Errorf("deleting stock lot: %w", err)
	}

	if err := recomputeOnHand(ctx, tx, farmID, current.FeedTypeID); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing stock lot deletion: %w", err)
	}
	return nil
}

// ListLots returns lots in draw order, optionally for one feed type only.
func ListLots(ctx context.Context, db *sql.DB, farmID, feedTypeID int64) ([]model.StockLot, error) {
	var rows *sql.Rows
	var err error

	if feedTypeID > 0 {
		rows, err = db.QueryContext(ctx,
			`SELECT `+lotColumns+` FROM stock_lots l
			 JOIN feed_types ft ON ft.id = l.feed_type_id
			 WHERE l.farm_id = ? AND l.feed_type_id = ?
			 ORDER BY `+lotDrawOrder, farmID, feedTypeID,
		)
	} else {
		rows, err = db.QueryContext(ctx,
			`SELECT `+lotColumns+` FROM stock_lots l
			 JOIN feed_types ft ON ft.id = l.feed_type_id
			 WHERE l.farm_id = ?
			 ORDER BY ft.name, `+lotDrawOrder, farmID,
		)
	}
	if err != nil {
		return nil, fmt.Errorf("listing stock lots: %w", err)
	}
	return collectLots(rows)
}

// ListExpiringLots returns non-empty lots expiring between asOf and
// asOf+days inclusive.
func ListExpiringLots(ctx context.Context, db *sql.DB, farmID int64, asOf model.Date, days int) ([]model.StockLot, error) {
	if days < 0 {
		return nil, model.Invalidf("days must not be negative")
	}
	rows, err := db.QueryContext(ctx,
		`SELECT `+lotColumns+` FROM stock_lots l
		 JOIN feed_types ft ON ft.id = l.feed_type_id
		 WHERE l.farm_id = ? AND l.expires_on IS NOT NULL
		   AND l.expires_on >= ? AND l.expires_on <= ?
		   AND CAST(l.quantity AS REAL) > 0
		 ORDER BY l.expires_on, ft.name, l.id`,
		farmID, asOf, asOf.AddDays(days),
	)
	if err != nil {
		return nil, fmt.Errorf("listing expiring lots: %w", err)
	}
	return collectLots(rows)
}

func collectLots(rows *sql.Rows) ([]model.StockLot, error) {
	defer rows.Close()

	var lots []model.StockLot
	for rows.Next() {
		var l model.StockLot
		if err := scanLot(rows, &l); err != nil {
			return nil, fmt.Errorf("scanning stock lot: %w", err)
		}
		lots = append(lots, l)
	}
	return lots, rows.Err()
}

// ListStock returns the on-hand total of every catalog feed type, including
// types that were never stocked.
func ListStock(ctx context.Context, db *sql.DB, farmID int64) ([]model.StockTotal, error) {
	return listStock(ctx, db, farmID)
}

func listStock(ctx context.Context, q querier, farmID int64) ([]model.StockTotal, error) {
	rows, err := q.QueryContext(ctx,
		`SELECT ft.id, ft.name, ft.category, COALESCE(fs.on_hand, '0'), ft.reorder_threshold
		 FROM feed_types ft
		 LEFT JOIN feed_stock fs ON fs.farm_id = ft.farm_id AND fs.feed_type_id = ft.id
		 WHERE ft.farm_id = ? AND ft.deleted_at IS NULL
		 ORDER BY ft.name`, farmID,
	)
	if err != nil {
		return nil, fmt.Errorf("listing stock: %w", err)
	}
	defer rows.Close()

	var totals []model.StockTotal
	for rows.Next() {
		var s model.StockTotal
		if err := rows.Scan(&s.FeedTypeID, &s.FeedTypeName, &s.Category, &s.OnHand, &s.ReorderThreshold); err != nil {
			return nil, fmt.Errorf("scanning stock: %w", err)
		}
		s.Low = s.OnHand.LessThan(s.ReorderThreshold)
		totals = append(totals, s)
	}
	return totals, rows.Err()
}

// OnHand returns the aggregate quantity of a feed type.
func OnHand(ctx context.Context, db *sql.DB, farmID, feedTypeID int64) (decimal.Decimal, error) {
	return onHand(ctx, db, farmID, feedTypeID)
}

func onHand(ctx context.Context, q querier, farmID, feedTypeID int64) (decimal.Decimal, error) {
	var v decimal.Decimal
	err := q.QueryRowContext(ctx,
		`SELECT on_hand FROM feed_stock WHERE farm_id = ? AND feed_type_id = ?`,
		farmID, feedTypeID,
	).Scan(&v)
	if err == sql.ErrNoRows {
		return decimal.Zero, nil
	}
	if err != nil {
		return decimal.Zero, fmt.Errorf("getting on-hand quantity: %w", err)
	}
	return v, nil
}

func averageUnitCosts(ctx context.Context, q querier, farmID int64) (map[int64]decimal.Decimal, error) {
	rows, err := q.QueryContext(ctx,
		`SELECT feed_type_id, initial_quantity, unit_cost FROM stock_lots WHERE farm_id = ?`, farmID,
	)
	if err != nil {
		return nil, fmt.Errorf("listing lot costs: %w", err)
	}
	defer rows.Close()

	qty := map[int64]decimal.Decimal{}
	spend := map[int64]decimal.Decimal{}
	for rows.Next() {
		var id int64
		var initial, cost decimal.Decimal
		if err := rows.Scan(&id, &initial, &cost); err != nil {
			return nil, fmt.Errorf("scanning lot cost: %w", err)
		}
		qty[id] = qty[id].Add(initial)
		spend[id] = spend[id].Add(initial.Mul(cost))
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	avg := make(map[int64]decimal.Decimal, len(qty))
	for id, total := range qty {
		if total.IsPositive() {
			avg[id] = spend[id].Div(total).Round(4)
		}
	}
	return avg, nil
}

// recomputeOnHand rewrites the materialised total of a feed type from its
// lots. Callers run it inside the transaction that changed the lots.
func recomputeOnHand(ctx context.Context, tx *sql.Tx, farmID, feedTypeID int64) error {
	rows, err := tx.QueryContext(ctx,
		`SELECT quantity FROM stock_lots WHERE farm_id = ? AND feed_type_id = ?`,
		farmID, feedTypeID,
	)
	if err != nil {
		return fmt.Errorf("summing stock lots: %w", err)
	}
	total := decimal.Zero
	for rows.Next() {
		var q decimal.Decimal
		if err := rows.Scan(&q); err != nil {
			rows.Close()
			return fmt.Errorf("scanning lot quantity: %w", err)
		}
		total = total.Add(q)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return fmt.Errorf("summing stock lots: %w", err)
	}

	_, err = tx.ExecContext(ctx,
		`INSERT INTO feed_stock (farm_id, feed_type_id, on_hand) VALUES (?, ?, ?)
		 ON CONFLICT (farm_id, feed_type_id) DO UPDATE SET on_hand = excluded.on_hand, updated_at = CURRENT_TIMESTAMP`,
		farmID, feedTypeID, total,
	)
	if err != nil {
		return fmt.Errorf("updating on-hand total: %w", err)
	}
	return nil
}
