package store

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/erazemk/krma/internal/model"
)

const scheduleColumns = `s.id, s.farm_id, s.target_kind, s.target_id, s.feed_type_id, s.quantity_per_head,
	s.meals_per_day, s.start_on, s.end_on, s.active, s.source, COALESCE(s.notes, ''),
	s.created_at, s.updated_at, ft.name`

func scanSchedule(row interface{ Scan(...any) error }, s *model.Schedule) error {
	var ref model.TargetRef
	var active int
	err := row.Scan(&s.ID, &s.FarmID, &ref.Kind, &ref.ID, &s.FeedTypeID, &s.QuantityPerHead,
		&s.MealsPerDay, &s.StartOn, &s.EndOn, &active, &s.Source, &s.Notes,
		&s.CreatedAt, &s.UpdatedAt, &s.FeedTypeName)
	if err != nil {
		return err
	}
	s.Active = active == 1
	s.Target, err = ref.Target()
	return err
}

// ScheduleFilter narrows ListSchedules. Zero fields match everything.
type ScheduleFilter struct {
	PenID      int64
	AnimalID   int64
	FeedTypeID int64
	ActiveOn   model.Date
}

// checkScheduleRefs verifies the feed type and target exist and are usable.
func checkScheduleRefs(ctx context.Context, q querier, farmID int64, s model.Schedule) error {
	ok, err := feedTypeExists(ctx, q, farmID, s.FeedTypeID)
	if err != nil {
		return err
	}
	if !ok {
		return model.NotFoundf("feed type %d", s.FeedTypeID)
	}

	switch t := s.Target.(type) {
	case model.PenTarget:
		ok, err = activePenExists(ctx, q, farmID, t.PenID)
		if err != nil {
			return err
		}
		if !ok {
			return model.NotFoundf("pen %d", t.PenID)
		}
	case model.AnimalTarget:
		var n int
		err = q.QueryRowContext(ctx,
			`SELECT COUNT(*) FROM animals WHERE farm_id = ? AND id = ? AND archived_at IS NULL`,
			farmID, t.AnimalID,
		).Scan(&n)
		if err != nil {
			return fmt.Errorf("checking animal: %w", err)
		}
		if n == 0 {
			return model.NotFoundf("animal %d", t.AnimalID)
		}
	}
	return nil
}

func insertSchedule(ctx context.Context, q querier, farmID int64, s model.Schedule) (int64, error) {
	if s.Source == "" {
		s.Source = model.ScheduleSourceManual
	}
	result, err := q.ExecContext(ctx,
		`INSERT INTO schedules (farm_id, target_kind, target_id, feed_type_id, quantity_per_head,
		                        meals_per_day, start_on, end_on, active, source, notes)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		farmID, s.Target.Kind(), s.Target.ID(), s.FeedTypeID, s.QuantityPerHead,
		s.MealsPerDay, s.StartOn, s.EndOn, boolInt(s.Active), s.Source, s.Notes,
	)
	if err != nil {
		return 0, fmt.Errorf("creating schedule: %w", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("getting schedule id: %w", err)
	}
	return id, nil
}

// CreateSchedule adds a feeding schedule.
func CreateSchedule(ctx context.Context, db *sql.DB, farmID int64, s model.Schedule) (*model.Schedule, error) {
	if err := s.Validate(); err != nil {
		return nil, err
	}
	if err := checkScheduleRefs(ctx, db, farmID, s); err != nil {
		return nil, err
	}

	id, err := insertSchedule(ctx, db, farmID, s)
	if err != nil {
		return nil, err
	}
	return GetSchedule(ctx, db, farmID, id)
}

// GetSchedule returns a schedule by ID.
func GetSchedule(ctx context.Context, db *sql.DB, farmID, id int64) (*model.Schedule, error) {
	return getSchedule(ctx, db, farmID, id)
}

func getSchedule(ctx context.Context, q querier, farmID, id int64) (*model.Schedule, error) {
	s := &model.Schedule{}
	err := scanSchedule(q.QueryRowContext(ctx,
		`SELECT `+scheduleColumns+` FROM schedules s
		 JOIN feed_types ft ON ft.id = s.feed_type_id
		 WHERE s.farm_id = ? AND s.id = ?`, farmID, id,
	), s)
	if err == sql.ErrNoRows {
		return nil, model.NotFoundf("schedule %d", id)
	}
	if err != nil {
		return nil, fmt.Errorf("getting schedule: %w", err)
	}
	return s, nil
}

// ListSchedules returns the farm's schedules matching filter.
func ListSchedules(ctx context.Context, db *sql.DB, farmID int64, filter ScheduleFilter) ([]model.Schedule, error) {
	return listSchedules(ctx, db, farmID, filter)
}

func listSchedules(ctx context.Context, q querier, farmID int64, filter ScheduleFilter) ([]model.Schedule, error) {
	where := []string{"s.farm_id = ?"}
	args := []any{farmID}

	if filter.PenID > 0 {
		where = append(where, "s.target_kind = 'pen' AND s.target_id = ?")
		args = append(args, filter.PenID)
	}
	if filter.AnimalID > 0 {
		where = append(where, "s.target_kind = 'animal' AND s.target_id = ?")
		args = append(args, filter.AnimalID)
	}
	if filter.FeedTypeID > 0 {
		where = append(where, "s.feed_type_id = ?")
		args = append(args, filter.FeedTypeID)
	}
	if !filter.ActiveOn.IsZero() {
		where = append(where, "s.active = 1 AND s.start_on <= ? AND (s.end_on IS NULL OR s.end_on >= ?)")
		args = append(args, filter.ActiveOn, filter.ActiveOn)
	}

	rows, err := q.QueryContext(ctx,
		`SELECT `+scheduleColumns+` FROM schedules s
		 JOIN feed_types ft ON ft.id = s.feed_type_id
		 WHERE `+strings.Join(where, " AND ")+`
		 ORDER BY s.start_on, s.id`, args...,
	)
	if err != nil {
		return nil, fmt.Errorf("listing schedules: %w", err)
	}
	defer rows.Close()

	var schedules []model.Schedule
	for rows.Next() {
		var s model.Schedule
		if err := scanSchedule(rows, &s); err != nil {
			return nil, fmt.Errorf("scanning schedule: %w", err)
		}
		schedules = append(schedules, s)
	}
	return schedules, rows.Err()
}

// UpdateSchedule replaces every editable field of a schedule.
func UpdateSchedule(ctx context.Context, db *sql.DB, farmID, id int64, s model.Schedule) (*model.Schedule, error) {
	if err := s.Validate(); err != nil {
		return nil, err
	}
	if err := checkScheduleRefs(ctx, db, farmID, s); err != nil {
		return nil, err
	}

	res, err := db.ExecContext(ctx,
		`UPDATE schedules SET target_kind = ?, target_id = ?, feed_type_id = ?, quantity_per_head = ?,
		        meals_per_day = ?, start_on = ?, end_on = ?, active = ?, notes = ?,
		        updated_at = CURRENT_TIMESTAMP
		 WHERE farm_id = ? AND id = ?`,
		s.Target.Kind(), s.Target.ID(), s.FeedTypeID, s.QuantityPerHead,
		s.MealsPerDay, s.StartOn, s.EndOn, boolInt(s.Active), s.Notes,
		farmID, id,
	)
	if err != nil {
		return nil, fmt.Errorf("updating schedule: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return nil, model.NotFoundf("schedule %d", id)
	}
	return GetSchedule(ctx, db, farmID, id)
}

// SetScheduleActive toggles whether a schedule contributes to consumption.
func SetScheduleActive(ctx context.Context, db *sql.DB, farmID, id int64, active bool) (*model.Schedule, error) {
	if active {
		s, err := GetSchedule(ctx, db, farmID, id)
		if err != nil {
			return nil, err
		}
		if err := checkScheduleRefs(ctx, db, farmID, *s); err != nil {
			return nil, err
		}
	}

	res, err := db.ExecContext(ctx,
		`UPDATE schedules SET active = ?, updated_at = CURRENT_TIMESTAMP WHERE farm_id = ? AND id = ?`,
		boolInt(active), farmID, id,
	)
	if err != nil {
		return nil, fmt.Errorf("setting schedule active: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return nil, model.NotFoundf("schedule %d", id)
	}
	return GetSchedule(ctx, db, farmID, id)
}

// DeleteSchedule removes a schedule. Past consumption lines keep their
// schedule id for reference.
func DeleteSchedule(ctx context.Context, db *sql.DB, farmID, id int64) error {
	res, err := db.ExecContext(ctx,
		`DELETE FROM schedules WHERE farm_id = ? AND id = ?`, farmID, id,
	)
	if err != nil {
		return fmt.Errorf("deleting schedule: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return model.NotFoundf("schedule %d", id)
	}
	return nil
}

// PenSchedules is a batch of schedules targeting one pen.
type PenSchedules struct {
	PenID     int64
	Schedules []model.Schedule
}

// ReplacePenSchedules creates the schedules of every batch in one
// transaction. With replace set, each batch's pen loses its existing
// schedules first. Any failure leaves every pen as it was.
func ReplacePenSchedules(ctx context.Context, db *sql.DB, farmID int64, replace bool, batches []PenSchedules) ([]model.Schedule, error) {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	var ids []int64
	for _, b := range batches {
		if replace {
			if _, err := tx.ExecContext(ctx,
				`DELETE FROM schedules WHERE farm_id = ? AND target_kind = 'pen' AND target_id = ?`,
				farmID, b.PenID,
			); err != nil {
				return nil, fmt.Errorf("deleting schedules of pen %d: %w", b.PenID, err)
			}
		}

		for _, s := range b.Schedules {
			s.Target = model.PenTarget{PenID: b.PenID}
			if err := s.Validate(); err != nil {
				return nil, fmt.Errorf("pen %d: %w", b.PenID, err)
			}
			if err := checkScheduleRefs(ctx, tx, farmID, s); err != nil {
				return nil, fmt.Errorf("pen %d: %w", b.PenID, err)
			}
			id, err := insertSchedule(ctx, tx, farmID, s)
			if err != nil {
				return nil, err
			}
			ids = append(ids, id)
		}
	}

	created := make([]model.Schedule, 0, len(ids))
	for _, id := range ids {
		s, err := getSchedule(ctx, tx, farmID, id)
		if err != nil {
			return nil, err
		}
		created = append(created, *s)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("committing pen schedules: %w", err)
	}
	return created, nil
}
