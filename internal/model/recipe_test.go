package model

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func recipeOf(pcts ...string) Recipe {
	r := Recipe{Name: "mix"}
	for i, p := range pcts {
		r.Items = append(r.Items, RecipeItem{FeedTypeID: int64(i + 1), Percentage: decimal.RequireFromString(p)})
	}
	return r
}

func TestRecipeValidateUsable(t *testing.T) {
	tests := []struct {
		name  string
		pcts  []string
		valid bool
	}{
		{"exactly 100", []string{"60", "40"}, true},
		{"within tolerance above", []string{"60", "40.01"}, true},
		{"within tolerance below", []string{"33.33", "33.33", "33.33"}, true},
		{"99.9", []string{"59.9", "40"}, false},
		{"100.1", []string{"60.1", "40"}, false},
		{"single item", []string{"100"}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := recipeOf(tt.pcts...).ValidateUsable()
			if tt.valid {
				assert.NoError(t, err)
			} else {
				assert.ErrorIs(t, err, ErrValidation)
			}
		})
	}
}

func TestRecipeValidateDraft(t *testing.T) {
	assert.ErrorIs(t, Recipe{Name: " "}.ValidateDraft(), ErrValidation)
	assert.ErrorIs(t, Recipe{Name: "empty"}.ValidateDraft(), ErrValidation)
	assert.ErrorIs(t, recipeOf("0", "100").ValidateDraft(), ErrValidation)
	assert.ErrorIs(t, recipeOf("100.5").ValidateDraft(), ErrValidation)
	assert.NoError(t, recipeOf("10", "20").ValidateDraft(), "drafts may sum below 100")

	dup := recipeOf("50", "50")
	dup.Items[1].FeedTypeID = dup.Items[0].FeedTypeID
	assert.ErrorIs(t, dup.ValidateDraft(), ErrValidation)
}

func TestRecipeSplit(t *testing.T) {
	shares, err := recipeOf("33.33", "33.33", "33.34").Split(decimal.NewFromInt(10))
	require.NoError(t, err)
	require.Len(t, shares, 3)

	assert.Equal(t, "3.333", shares[0].Quantity.String())
	assert.Equal(t, "3.333", shares[1].Quantity.String())
	assert.Equal(t, "3.334", shares[2].Quantity.String())

	total := decimal.Zero
	for _, s := range shares {
		total = total.Add(s.Quantity)
	}
	assert.True(t, total.Equal(decimal.NewFromInt(10)))

	_, err = recipeOf("50", "49").Split(decimal.NewFromInt(10))
	assert.ErrorIs(t, err, ErrValidation)
}
