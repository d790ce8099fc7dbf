package store

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/erazemk/krma/internal/model"
)

func TestPenOccupants(t *testing.T) {
	f := newFixture(t)
	pen := f.pen(t, "Pen A", 3)

	sold := f.animal(t, &pen.ID, "sold")
	require.NoError(t, SetAnimalStatus(f.ctx, f.db, f.farm.ID, sold.ID, model.AnimalStatusSold))

	n, err := CountPenOccupants(f.ctx, f.db, f.farm.ID, pen.ID)
	require.NoError(t, err)
	assert.Equal(t, 3, n)

	got, err := GetPen(f.ctx, f.db, f.farm.ID, pen.ID)
	require.NoError(t, err)
	assert.Equal(t, 3, got.Occupants)

	animals, err := ListPenOccupants(f.ctx, f.db, f.farm.ID, pen.ID)
	require.NoError(t, err)
	require.Len(t, animals, 3)
	assert.True(t, animals[0].Live())
	assert.Equal(t, "2021-01-01", animals[0].BirthDate.String())
	assert.False(t, animals[0].Weight.Valid)
}

func TestMoveAnimalAndArchivePen(t *testing.T) {
	f := newFixture(t)
	penA := f.pen(t, "Pen A", 0)
	penB := f.pen(t, "Pen B", 0)
	a := f.animal(t, &penA.ID, "g1")

	require.ErrorIs(t, ArchivePen(f.ctx, f.db, f.farm.ID, penA.ID), model.ErrConflict)

	require.NoError(t, MoveAnimal(f.ctx, f.db, f.farm.ID, a.ID, &penB.ID))
	require.NoError(t, ArchivePen(f.ctx, f.db, f.farm.ID, penA.ID))

	pens, err := ListPens(f.ctx, f.db, f.farm.ID)
	require.NoError(t, err)
	require.Len(t, pens, 1)
	assert.Equal(t, penB.ID, pens[0].ID)
	assert.Equal(t, 1, pens[0].Occupants)

	require.ErrorIs(t, MoveAnimal(f.ctx, f.db, f.farm.ID, a.ID, &penA.ID), model.ErrNotFound)
	require.NoError(t, MoveAnimal(f.ctx, f.db, f.farm.ID, a.ID, nil))

	got, err := GetAnimal(f.ctx, f.db, f.farm.ID, a.ID)
	require.NoError(t, err)
	assert.Nil(t, got.PenID)
}

func TestCreateAnimalWithWeight(t *testing.T) {
	f := newFixture(t)

	a, err := CreateAnimal(f.ctx, f.db, f.farm.ID, model.Animal{
		Tag:    "w1",
		Gender: model.GenderMale,
		Weight: decimalNull("42.5"),
	})
	require.NoError(t, err)
	require.True(t, a.Weight.Valid)
	requireDecimal(t, "42.5", a.Weight.Decimal)
	assert.True(t, a.BirthDate.IsZero())
	assert.Equal(t, model.AnimalStatusActive, a.Status)

	_, err = CreateAnimal(f.ctx, f.db, f.farm.ID, model.Animal{Tag: "bad", Gender: "x"})
	require.ErrorIs(t, err, model.ErrValidation)

	_, err = GetAnimal(f.ctx, f.db, f.farm.ID+1, a.ID)
	require.ErrorIs(t, err, model.ErrNotFound, "animals are scoped by farm")
}
