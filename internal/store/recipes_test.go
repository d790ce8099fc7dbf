package store

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/erazemk/krma/internal/model"
)

func TestRecipeLifecycle(t *testing.T) {
	f := newFixture(t)
	hay := f.feedType(t, "Hay", model.CategoryRoughage, "0")
	barley := f.feedType(t, "Barley", model.CategoryGrain, "0")

	draft, err := CreateRecipe(f.ctx, f.db, f.farm.ID, model.Recipe{
		Name: "Winter mix",
		Items: []model.RecipeItem{
			{FeedTypeID: hay.ID, Percentage: dec("70")},
			{FeedTypeID: barley.ID, Percentage: dec("29.9")},
		},
	})
	require.NoError(t, err)
	assert.False(t, draft.Usable)
	require.Len(t, draft.Items, 2)
	assert.Equal(t, "Hay", draft.Items[0].FeedTypeName)

	_, err = MarkRecipeUsable(f.ctx, f.db, f.farm.ID, draft.ID)
	require.ErrorIs(t, err, model.ErrValidation, "99.9 percent is not usable")

	fixed, err := UpdateRecipe(f.ctx, f.db, f.farm.ID, draft.ID, model.Recipe{
		Name: "Winter mix",
		Items: []model.RecipeItem{
			{FeedTypeID: hay.ID, Percentage: dec("70")},
			{FeedTypeID: barley.ID, Percentage: dec("30")},
		},
	})
	require.NoError(t, err)

	usable, err := MarkRecipeUsable(f.ctx, f.db, f.farm.ID, fixed.ID)
	require.NoError(t, err)
	assert.True(t, usable.Usable)

	// A usable recipe refuses edits that break the sum.
	_, err = UpdateRecipe(f.ctx, f.db, f.farm.ID, draft.ID, model.Recipe{
		Name: "Winter mix",
		Items: []model.RecipeItem{
			{FeedTypeID: hay.ID, Percentage: dec("70.1")},
			{FeedTypeID: barley.ID, Percentage: dec("30")},
		},
	})
	require.ErrorIs(t, err, model.ErrValidation)

	got, err := GetRecipe(f.ctx, f.db, f.farm.ID, draft.ID)
	require.NoError(t, err)
	assert.True(t, got.Usable)
	requireDecimal(t, "30", got.Items[1].Percentage)

	list, err := ListRecipes(f.ctx, f.db, f.farm.ID)
	require.NoError(t, err)
	require.Len(t, list, 1)

	require.NoError(t, DeleteRecipe(f.ctx, f.db, f.farm.ID, draft.ID))
	_, err = GetRecipe(f.ctx, f.db, f.farm.ID, draft.ID)
	require.ErrorIs(t, err, model.ErrNotFound)
}

func TestCreateRecipeRejectsBadItems(t *testing.T) {
	f := newFixture(t)
	hay := f.feedType(t, "Hay", model.CategoryRoughage, "0")

	_, err := CreateRecipe(f.ctx, f.db, f.farm.ID, model.Recipe{
		Name: "Dup",
		Items: []model.RecipeItem{
			{FeedTypeID: hay.ID, Percentage: dec("50")},
			{FeedTypeID: hay.ID, Percentage: dec("50")},
		},
	})
	require.ErrorIs(t, err, model.ErrValidation)

	_, err = CreateRecipe(f.ctx, f.db, f.farm.ID, model.Recipe{
		Name:  "Unknown",
		Items: []model.RecipeItem{{FeedTypeID: 999, Percentage: dec("100")}},
	})
	require.ErrorIs(t, err, model.ErrNotFound)

	list, err := ListRecipes(f.ctx, f.db, f.farm.ID)
	require.NoError(t, err)
	assert.Empty(t, list)
}
