package store

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/erazemk/krma/internal/model"
)

// liveAnimal is the SQL predicate for animals that count as pen occupants.
const liveAnimal = `a.status = 'active' AND a.archived_at IS NULL`

const penColumns = `p.id, p.farm_id, p.name, p.created_at, p.archived_at,
	(SELECT COUNT(*) FROM animals a WHERE a.pen_id = p.id AND ` + liveAnimal + `)`

func scanPen(row interface{ Scan(...any) error }, p *model.Pen) error {
	return row.Scan(&p.ID, &p.FarmID, &p.Name, &p.CreatedAt, &p.ArchivedAt, &p.Occupants)
}

// CreatePen creates a new pen on a farm.
func CreatePen(ctx context.Context, db *sql.DB, farmID int64, name string) (*model.Pen, error) {
	if strings.TrimSpace(name) == "" {
		return nil, model.Invalidf("pen name required")
	}

	result, err := db.ExecContext(ctx,
		`INSERT INTO pens (farm_id, name) VALUES (?, ?)`,
		farmID, name,
	)
	if err != nil {
		return nil, fmt.Errorf("creating pen: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("getting pen id: %w", err)
	}

	return GetPen(ctx, db, farmID, id)
}

// GetPen returns a pen with its live occupant count.
func GetPen(ctx context.Context, db *sql.DB, farmID, id int64) (*model.Pen, error) {
	p := &model.Pen{}
	err := scanPen(db.QueryRowContext(ctx,
		`SELECT `+penColumns+` FROM pens p WHERE p.farm_id = ? AND p.id = ?`, farmID, id,
	), p)
	if err == sql.ErrNoRows {
		return nil, model.NotFoundf("pen %d", id)
	}
	if err != nil {
		return nil, fmt.Errorf("getting pen: %w", err)
	}
	return p, nil
}

// ListPens returns the farm's pens that are not archived.
func ListPens(ctx context.Context, db *sql.DB, farmID int64) ([]model.Pen, error) {
	rows, err := db.QueryContext(ctx,
		`SELECT `+penColumns+` FROM pens p
		 WHERE p.farm_id = ? AND p.archived_at IS NULL
		 ORDER BY p.name, p.id`, farmID,
	)
	if err != nil {
		return nil, fmt.Errorf("listing pens: %w", err)
	}
	defer rows.Close()

	var pens []model.Pen
	for rows.Next() {
		var p model.Pen
		if err := scanPen(rows, &p); err != nil {
			return nil, fmt.Errorf("scanning pen: %w", err)
		}
		pens = append(pens, p)
	}
	return pens, rows.Err()
}

// ArchivePen archives a pen. Only empty pens can be archived.
func ArchivePen(ctx context.Context, db *sql.DB, farmID, id int64) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	var occupants int
	err = tx.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM animals a WHERE a.farm_id = ? AND a.pen_id = ? AND `+liveAnimal,
		farmID, id,
	).Scan(&occupants)
	if err != nil {
		return fmt.Errorf("counting pen occupants: %w", err)
	}
	if occupants > 0 {
		return model.Conflictf("pen still holds %d animals", occupants)
	}

	res, err := tx.ExecContext(ctx,
		`UPDATE pens SET archived_at = CURRENT_TIMESTAMP
		 WHERE farm_id = ? AND id = ? AND archived_at IS NULL`,
		farmID, id,
	)
	if err != nil {
		return fmt.Errorf("archiving pen: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return model.NotFoundf("pen %d", id)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing pen archive: %w", err)
	}
	return nil
}

func activePenExists(ctx context.Context, q querier, farmID, penID int64) (bool, error) {
	var n int
	err := q.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM pens WHERE farm_id = ? AND id = ? AND archived_at IS NULL`,
		farmID, penID,
	).Scan(&n)
	if err != nil {
		return false, fmt.Errorf("checking pen: %w", err)
	}
	return n > 0, nil
}

const animalColumns = `a.id, a.farm_id, a.pen_id, a.tag, a.gender, a.birth_date, a.weight,
	a.status, a.created_at, a.archived_at`

func scanAnimal(row interface{ Scan(...any) error }, a *model.Animal) error {
	return row.Scan(&a.ID, &a.FarmID, &a.PenID, &a.Tag, &a.Gender, &a.BirthDate, &a.Weight,
		&a.Status, &a.CreatedAt, &a.ArchivedAt)
}

// CreateAnimal registers an animal, optionally placing it in a pen.
func CreateAnimal(ctx context.Context, db *sql.DB, farmID int64, a model.Animal) (*model.Animal, error) {
	if strings.TrimSpace(a.Tag) == "" {
		return nil, model.Invalidf("animal tag required")
	}
	if a.Gender != model.GenderFemale && a.Gender != model.GenderMale {
		return nil, model.Invalidf("gender must be female or male")
	}
	if a.Status == "" {
		a.Status = model.AnimalStatusActive
	}
	if !model.ValidAnimalStatus(a.Status) {
		return nil, model.Invalidf("unknown animal status %q", a.Status)
	}
	if a.Weight.Valid && !a.Weight.Decimal.IsPositive() {
		return nil, model.Invalidf("weight must be greater than zero")
	}
	if a.PenID != nil {
		ok, err := activePenExists(ctx, db, farmID, *a.PenID)
		if err != nil {
			return nil, err
		}
		if !ok {
			return nil, model.NotFoundf("pen %d", *a.PenID)
		}
	}

	result, err := db.ExecContext(ctx,
		`INSERT INTO animals (farm_id, pen_id, tag, gender, birth_date, weight, status)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		farmID, a.PenID, a.Tag, a.Gender, a.BirthDate, a.Weight, a.Status,
	)
	if err != nil {
		return nil, fmt.Errorf("creating animal: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("getting animal id: %w", err)
	}

	return GetAnimal(ctx, db, farmID, id)
}

// GetAnimal returns an animal by ID.
func GetAnimal(ctx context.Context, db *sql.DB, farmID, id int64) (*model.Animal, error) {
	a := &model.Animal{}
	err := scanAnimal(db.QueryRowContext(ctx,
		`SELECT `+animalColumns+` FROM animals a WHERE a.farm_id = ? AND a.id = ?`, farmID, id,
	), a)
	if err == sql.ErrNoRows {
		return nil, model.NotFoundf("animal %d", id)
	}
	if err != nil {
		return nil, fmt.Errorf("getting animal: %w", err)
	}
	return a, nil
}

// MoveAnimal places an animal in a pen, or takes it out of any pen when
// penID is nil.
func MoveAnimal(ctx context.Context, db *sql.DB, farmID, id int64, penID *int64) error {
	if penID != nil {
		ok, err := activePenExists(ctx, db, farmID, *penID)
		if err != nil {
			return err
		}
		if !ok {
			return model.NotFoundf("pen %d", *penID)
		}
	}

	res, err := db.ExecContext(ctx,
		`UPDATE animals SET pen_id = ? WHERE farm_id = ? AND id = ? AND archived_at IS NULL`,
		penID, farmID, id,
	)
	if err != nil {
		return fmt.Errorf("moving animal: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return model.NotFoundf("animal %d", id)
	}
	return nil
}

// SetAnimalStatus records a status change (sold, dead, active).
func SetAnimalStatus(ctx context.Context, db *sql.DB, farmID, id int64, status string) error {
	if !model.ValidAnimalStatus(status) {
		return model.Invalidf("unknown animal status %q", status)
	}
	res, err := db.ExecContext(ctx,
		`UPDATE animals SET status = ? WHERE farm_id = ? AND id = ?`,
		status, farmID, id,
	)
	if err != nil {
		return fmt.Errorf("setting animal status: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return model.NotFoundf("animal %d", id)
	}
	return nil
}

// ArchiveAnimal archives an animal.
func ArchiveAnimal(ctx context.Context, db *sql.DB, farmID, id int64) error {
	res, err := db.ExecContext(ctx,
		`UPDATE animals SET archived_at = CURRENT_TIMESTAMP
		 WHERE farm_id = ? AND id = ? AND archived_at IS NULL`,
		farmID, id,
	)
	if err != nil {
		return fmt.Errorf("archiving animal: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return model.NotFoundf("animal %d", id)
	}
	return nil
}

// ListPenOccupants returns the live animals in a pen.
func ListPenOccupants(ctx context.Context, db *sql.DB, farmID, penID int64) ([]model.Animal, error) {
	rows, err := db.QueryContext(ctx,
		`SELECT `+animalColumns+` FROM animals a
		 WHERE a.farm_id = ? AND a.pen_id = ? AND `+liveAnimal+`
		 ORDER BY a.tag, a.id`, farmID, penID,
	)
	if err != nil {
		return nil, fmt.Errorf("listing pen occupants: %w", err)
	}
	defer rows.Close()

	var animals []model.Animal
	for rows.Next() {
		var a model.Animal
		if err := scanAnimal(rows, &a); err != nil {
			return nil, fmt.Errorf("scanning animal: %w", err)
		}
		animals = append(animals, a)
	}
	return animals, rows.Err()
}

// CountPenOccupants returns the number of live animals in a pen.
func CountPenOccupants(ctx context.Context, db *sql.DB, farmID, penID int64) (int, error) {
	var n int
	err := db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM animals a WHERE a.farm_id = ? AND a.pen_id = ? AND `+liveAnimal,
		farmID, penID,
	).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("counting pen occupants: %w", err)
	}
	return n, nil
}
