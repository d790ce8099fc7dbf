package model

import (
	"encoding/json"
	"time"

	"github.com/shopspring/decimal"
)

// TargetKind names what a schedule feeds.
type TargetKind string

// Target kinds.
const (
	TargetPen    TargetKind = "pen"
	TargetAnimal TargetKind = "animal"
)

// Target is either a PenTarget or an AnimalTarget.
type Target interface {
	Kind() TargetKind
	ID() int64
	isTarget()
}

// PenTarget feeds every live occupant of a pen.
type PenTarget struct{ PenID int64 }

// AnimalTarget feeds a single animal.
type AnimalTarget struct{ AnimalID int64 }

func (t PenTarget) Kind() TargetKind    { return TargetPen }
func (t PenTarget) ID() int64           { return t.PenID }
func (PenTarget) isTarget()             {}
func (t AnimalTarget) Kind() TargetKind { return TargetAnimal }
func (t AnimalTarget) ID() int64        { return t.AnimalID }
func (AnimalTarget) isTarget()          {}

// TargetRef is the serialised form of a Target.
type TargetRef struct {
	Kind TargetKind `json:"kind"`
	ID   int64      `json:"id"`
}

// Target converts the reference into a Target.
func (r TargetRef) Target() (Target, error) {
	if r.ID <= 0 {
		return nil, Invalidf("target id required")
	}
	switch r.Kind {
	case TargetPen:
		return PenTarget{PenID: r.ID}, nil
	case TargetAnimal:
		return AnimalTarget{AnimalID: r.ID}, nil
	}
	return nil, Invalidf("target kind must be pen or animal, got %q", r.Kind)
}

// RefOf returns the serialised form of t.
func RefOf(t Target) TargetRef {
	if t == nil {
		return TargetRef{}
	}
	return TargetRef{Kind: t.Kind(), ID: t.ID()}
}

// Schedule sources.
const (
	ScheduleSourceManual    = "manual"
	ScheduleSourceGenerated = "generated"
)

// Schedule is a recurring daily feeding assignment.
type Schedule struct {
	ID              int64           `json:"id"`
	FarmID          int64           `json:"farm_id"`
	Target          Target          `json:"-"`
	FeedTypeID      int64           `json:"feed_type_id"`
	QuantityPerHead decimal.Decimal `json:"quantity_per_head"`
	MealsPerDay     int             `json:"meals_per_day"`
	StartOn         Date            `json:"start_on"`
	EndOn           Date            `json:"end_on"`
	Active          bool            `json:"active"`
	Source          string          `json:"source"`
	Notes           string          `json:"notes,omitempty"`
	CreatedAt       time.Time       `json:"created_at"`
	UpdatedAt       time.Time       `json:"updated_at"`

	// Joined fields (not always populated).
	FeedTypeName string `json:"feed_type_name,omitempty"`
}

// MarshalJSON adds the target reference to the encoded schedule.
func (s Schedule) MarshalJSON() ([]byte, error) {
	type plain Schedule
	return json.Marshal(struct {
		plain
		Target TargetRef `json:"target"`
	}{plain: plain(s), Target: RefOf(s.Target)})
}

// Validate checks the fields that do not need storage lookups.
func (s Schedule) Validate() error {
	if s.Target == nil {
		return Invalidf("schedule target required")
	}
	if s.Target.ID() <= 0 {
		return Invalidf("schedule target id required")
	}
	if s.FeedTypeID <= 0 {
		return Invalidf("feed_type_id required")
	}
	if !s.QuantityPerHead.IsPositive() {
		return Invalidf("daily quantity must be greater than zero")
	}
	if s.MealsPerDay < 1 {
		return Invalidf("meal count must be at least 1")
	}
	if s.StartOn.IsZero() {
		return Invalidf("start date required")
	}
	if !s.EndOn.IsZero() && s.EndOn.Before(s.StartOn) {
		return Invalidf("end date before start date")
	}
	return nil
}

// ActiveOn reports whether the schedule contributes to consumption on d.
func (s Schedule) ActiveOn(d Date) bool {
	if !s.Active || d.Before(s.StartOn) {
		return false
	}
	return s.EndOn.IsZero() || !d.After(s.EndOn)
}
