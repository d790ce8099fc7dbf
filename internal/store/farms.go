package store

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/erazemk/krma/internal/model"
)

// CreateFarm creates a new farm.
func CreateFarm(ctx context.Context, db *sql.DB, name, species string) (*model.Farm, error) {
	if strings.TrimSpace(name) == "" {
		return nil, model.Invalidf("farm name required")
	}
	if species == "" {
		species = model.SpeciesGoat
	}
	if !model.ValidSpecies(species) {
		return nil, model.Invalidf("unknown species %q", species)
	}

	result, err := db.ExecContext(ctx,
		`INSERT INTO farms (name, species) VALUES (?, ?)`,
		name, species,
	)
	if err != nil {
		return nil, fmt.Errorf("creating farm: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("getting farm id: %w", err)
	}

	return GetFarm(ctx, db, id)
}

// GetFarm returns a farm by ID.
func GetFarm(ctx context.Context, db *sql.DB, id int64) (*model.Farm, error) {
	f := &model.Farm{}
	err := db.QueryRowContext(ctx,
		`SELECT id, name, species, created_at FROM farms WHERE id = ?`, id,
	).Scan(&f.ID, &f.Name, &f.Species, &f.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, model.NotFoundf("farm %d", id)
	}
	if err != nil {
		return nil, fmt.Errorf("getting farm: %w", err)
	}
	return f, nil
}

// ListFarms returns all farms.
func ListFarms(ctx context.Context, db *sql.DB) ([]model.Farm, error) {
	rows, err := db.QueryContext(ctx,
		`SELECT id, name, species, created_at FROM farms ORDER BY id`,
	)
	if err != nil {
		return nil, fmt.Errorf("listing farms: %w", err)
	}
	defer rows.Close()

	var farms []model.Farm
	for rows.Next() {
		var f model.Farm
		if err := rows.Scan(&f.ID, &f.Name, &f.Species, &f.CreatedAt); err != nil {
			return nil, fmt.Errorf("scanning farm: %w", err)
		}
		farms = append(farms, f)
	}
	return farms, rows.Err()
}
