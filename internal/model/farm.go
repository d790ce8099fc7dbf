package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// Farm is the tenant every other record is scoped to.
type Farm struct {
	ID        int64     `json:"id"`
	Name      string    `json:"name"`
	Species   string    `json:"species"`
	CreatedAt time.Time `json:"created_at"`
}

// Species kept on a farm.
const (
	SpeciesGoat  = "goat"
	SpeciesSheep = "sheep"
	SpeciesCamel = "camel"
)

// ValidSpecies reports whether s is a known species.
func ValidSpecies(s string) bool {
	switch s {
	case SpeciesGoat, SpeciesSheep, SpeciesCamel:
		return true
	}
	return false
}

// Pen groups animals that are fed together.
type Pen struct {
	ID         int64      `json:"id"`
	FarmID     int64      `json:"farm_id"`
	Name       string     `json:"name"`
	Occupants  int        `json:"occupants"`
	CreatedAt  time.Time  `json:"created_at"`
	ArchivedAt *time.Time `json:"archived_at,omitempty"`
}

// Animal is a single head of livestock.
type Animal struct {
	ID         int64               `json:"id"`
	FarmID     int64               `json:"farm_id"`
	PenID      *int64              `json:"pen_id,omitempty"`
	Tag        string              `json:"tag"`
	Gender     string              `json:"gender"`
	BirthDate  Date                `json:"birth_date"`
	Weight     decimal.NullDecimal `json:"weight"`
	Status     string              `json:"status"`
	CreatedAt  time.Time           `json:"created_at"`
	ArchivedAt *time.Time          `json:"archived_at,omitempty"`
}

// Genders.
const (
	GenderFemale = "female"
	GenderMale   = "male"
)

// Animal statuses.
const (
	AnimalStatusActive = "active"
	AnimalStatusSold   = "sold"
	AnimalStatusDead   = "dead"
)

// ValidAnimalStatus reports whether s is a known animal status.
func ValidAnimalStatus(s string) bool {
	switch s {
	case AnimalStatusActive, AnimalStatusSold, AnimalStatusDead:
		return true
	}
	return false
}

// Live reports whether the animal counts as a pen occupant.
func (a Animal) Live() bool {
	return a.Status == AnimalStatusActive && a.ArchivedAt == nil
}
