package model

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseFeedCategory(t *testing.T) {
	tests := map[string]FeedCategory{
		"grain":      CategoryGrain,
		"GRAINS":     CategoryGrain,
		" Roughage ": CategoryRoughage,
		"minerals":   CategoryMineral,
		"other":      CategoryOther,
	}
	for in, want := range tests {
		got, err := ParseFeedCategory(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}

	_, err := ParseFeedCategory("silage")
	assert.ErrorIs(t, err, ErrValidation)
}

func TestTargetRef(t *testing.T) {
	target, err := TargetRef{Kind: TargetPen, ID: 4}.Target()
	require.NoError(t, err)
	assert.Equal(t, PenTarget{PenID: 4}, target)
	assert.Equal(t, TargetRef{Kind: TargetPen, ID: 4}, RefOf(target))

	target, err = TargetRef{Kind: TargetAnimal, ID: 9}.Target()
	require.NoError(t, err)
	assert.Equal(t, AnimalTarget{AnimalID: 9}, target)

	_, err = TargetRef{Kind: "barn", ID: 1}.Target()
	assert.ErrorIs(t, err, ErrValidation)
	_, err = TargetRef{Kind: TargetPen}.Target()
	assert.ErrorIs(t, err, ErrValidation)
}

func TestScheduleActiveOn(t *testing.T) {
	s := Schedule{
		Target:          PenTarget{PenID: 1},
		FeedTypeID:      1,
		QuantityPerHead: decimal.NewFromInt(1),
		MealsPerDay:     1,
		StartOn:         MustParseDate("2024-03-01"),
		EndOn:           MustParseDate("2024-03-31"),
		Active:          true,
	}
	require.NoError(t, s.Validate())

	assert.False(t, s.ActiveOn(MustParseDate("2024-02-29")))
	assert.True(t, s.ActiveOn(MustParseDate("2024-03-01")))
	assert.True(t, s.ActiveOn(MustParseDate("2024-03-31")))
	assert.False(t, s.ActiveOn(MustParseDate("2024-04-01")))

	open := s
	open.EndOn = Date{}
	assert.True(t, open.ActiveOn(MustParseDate("2030-01-01")))

	off := s
	off.Active = false
	assert.False(t, off.ActiveOn(MustParseDate("2024-03-10")))
}

func TestShortageMissing(t *testing.T) {
	s := Shortage{Required: decimal.NewFromInt(8), Available: decimal.NewFromInt(5)}
	assert.Equal(t, "3", s.Missing().String())
}
