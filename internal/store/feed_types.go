package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/erazemk/krma/internal/db"
	"github.com/erazemk/krma/internal/model"
)

const feedTypeColumns = `id, farm_id, name, COALESCE(local_name, ''), category, unit,
	protein_pct, energy_mj, reorder_threshold, created_at, updated_at, deleted_at`

func scanFeedType(row interface{ Scan(...any) error }, f *model.FeedType) error {
	return row.Scan(&f.ID, &f.FarmID, &f.Name, &f.LocalName, &f.Category, &f.Unit,
		&f.ProteinPct, &f.EnergyMJ, &f.ReorderThreshold, &f.CreatedAt, &f.UpdatedAt, &f.DeletedAt)
}

func normaliseFeedType(f *model.FeedType) error {
	if err := f.Validate(); err != nil {
		return err
	}
	f.Category, _ = model.ParseFeedCategory(string(f.Category))
	if f.Unit == "" {
		f.Unit = "kg"
	}
	return nil
}

// CreateFeedType adds a feed type to the farm's catalog.
func CreateFeedType(ctx context.Context, sqlDB *sql.DB, farmID int64, f model.FeedType) (*model.FeedType, error) {
	if err := normaliseFeedType(&f); err != nil {
		return nil, err
	}

	result, err := sqlDB.ExecContext(ctx,
		`INSERT INTO feed_types (farm_id, name, local_name, category, unit, protein_pct, energy_mj, reorder_threshold)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		farmID, f.Name, f.LocalName, f.Category, f.Unit, f.ProteinPct, f.EnergyMJ, f.ReorderThreshold,
	)
	if db.IsUniqueViolation(err) {
		return nil, model.Conflictf("feed type %q already exists", f.Name)
	}
	if err != nil {
		return nil, fmt.Errorf("creating feed type: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("getting feed type id: %w", err)
	}

	return GetFeedType(ctx, sqlDB, farmID, id)
}

// GetFeedType returns a non-deleted feed type by ID.
func GetFeedType(ctx context.Context, db *sql.DB, farmID, id int64) (*model.FeedType, error) {
	f := &model.FeedType{}
	err := scanFeedType(db.QueryRowContext(ctx,
		`SELECT `+feedTypeColumns+` FROM feed_types
		 WHERE farm_id = ? AND id = ? AND deleted_at IS NULL`, farmID, id,
	), f)
	if err == sql.ErrNoRows {
		return nil, model.NotFoundf("feed type %d", id)
	}
	if err != nil {
		return nil, fmt.Errorf("getting feed type: %w", err)
	}
	return f, nil
}

// ListFeedTypes returns the farm's catalog, optionally filtered by category.
func ListFeedTypes(ctx context.Context, db *sql.DB, farmID int64, category model.FeedCategory) ([]model.FeedType, error) {
	var rows *sql.Rows
	var err error

	if category != "" {
		rows, err = db.QueryContext(ctx,
			`SELECT `+feedTypeColumns+` FROM feed_types
			 WHERE farm_id = ? AND deleted_at IS NULL AND category = ? ORDER BY name`,
			farmID, category,
		)
	} else {
		rows, err = db.QueryContext(ctx,
			`SELECT `+feedTypeColumns+` FROM feed_types
			 WHERE farm_id = ? AND deleted_at IS NULL ORDER BY name`, farmID,
		)
	}
	if err != nil {
		return nil, fmt.Errorf("listing feed types: %w", err)
	}
	defer rows.Close()

	var types []model.FeedType
	for rows.Next() {
		var f model.FeedType
		if err := scanFeedType(rows, &f); err != nil {
			return nil, fmt.Errorf("scanning feed type: %w", err)
		}
		types = append(types, f)
	}
	return types, rows.Err()
}

// UpdateFeedType replaces the mutable metadata of a feed type.
func UpdateFeedType(ctx context.Context, sqlDB *sql.DB, farmID, id int64, f model.FeedType) (*model.FeedType, error) {
	if err := normaliseFeedType(&f); err != nil {
		return nil, err
	}

	res, err := sqlDB.ExecContext(ctx,
		`UPDATE feed_types SET name = ?, local_name = ?, category = ?, unit = ?, protein_pct = ?,
		        energy_mj = ?, reorder_threshold = ?, updated_at = CURRENT_TIMESTAMP
		 WHERE farm_id = ? AND id = ? AND deleted_at IS NULL`,
		f.Name, f.LocalName, f.Category, f.Unit, f.ProteinPct, f.EnergyMJ, f.ReorderThreshold, farmID, id,
	)
	if db.IsUniqueViolation(err) {
		return nil, model.Conflictf("feed type %q already exists", f.Name)
	}
	if err != nil {
		return nil, fmt.Errorf("updating feed type: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return nil, model.NotFoundf("feed type %d", id)
	}

	return GetFeedType(ctx, sqlDB, farmID, id)
}

// DeleteFeedType soft-deletes a feed type. Fails while any stock lot or
// active schedule references it.
func DeleteFeedType(ctx context.Context, db *sql.DB, farmID, id int64) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	var lots, schedules int
	err = tx.QueryRowContext(ctx,
		`SELECT (SELECT COUNT(*) FROM stock_lots WHERE farm_id = ? AND feed_type_id = ?),
		        (SELECT COUNT(*) FROM schedules WHERE farm_id = ? AND feed_type_id = ? AND active = 1)`,
		farmID, id, farmID, id,
	).Scan(&lots, &schedules)
	if err != nil {
		return fmt.Errorf("checking feed type references: %w", err)
	}
	if lots > 0 {
		return model.Conflictf("feed type still referenced by %d stock lots", lots)
	}
	if schedules > 0 {
		return model.Conflictf("feed type still referenced by %d active schedules", schedules)
	}

	res, err := tx.ExecContext(ctx,
		`UPDATE feed_types SET deleted_at = CURRENT_TIMESTAMP
		 WHERE farm_id = ? AND id = ? AND deleted_at IS NULL`,
		farmID, id,
	)
	if err != nil {
		return fmt.Errorf("deleting feed type: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return model.NotFoundf("feed type %d", id)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing feed type deletion: %w", err)
	}
	return nil
}

func feedTypeExists(ctx context.Context, q querier, farmID, id int64) (bool, error) {
	var n int
	err := q.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM feed_types WHERE farm_id = ? AND id = ? AND deleted_at IS NULL`,
		farmID, id,
	).Scan(&n)
	if err != nil {
		return false, fmt.Errorf("checking feed type: %w", err)
	}
	return n > 0, nil
}
