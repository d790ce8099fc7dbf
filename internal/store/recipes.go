package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/erazemk/krma/internal/model"
)

// CreateRecipe stores a draft recipe. Drafts need not sum to 100 percent.
func CreateRecipe(ctx context.Context, db *sql.DB, farmID int64, r model.Recipe) (*model.Recipe, error) {
	if err := r.ValidateDraft(); err != nil {
		return nil, err
	}

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	result, err := tx.ExecContext(ctx,
		`INSERT INTO recipes (farm_id, name, notes) VALUES (?, ?, ?)`,
		farmID, r.Name, r.Notes,
	)
	if err != nil {
		return nil, fmt.Errorf("creating recipe: %w", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("getting recipe id: %w", err)
	}

	if err := writeRecipeItems(ctx, tx, farmID, id, r.Items); err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("committing recipe: %w", err)
	}
	return GetRecipe(ctx, db, farmID, id)
}

func writeRecipeItems(ctx context.Context, tx *sql.Tx, farmID, recipeID int64, items []model.RecipeItem) error {
	if _, err := tx.ExecContext(ctx, `DELETE FROM recipe_items WHERE recipe_id = ?`, recipeID); err != nil {
		return fmt.Errorf("clearing recipe items: %w", err)
	}
	for i, it := range items {
		ok, err := feedTypeExists(ctx, tx, farmID, it.FeedTypeID)
		if err != nil {
			return err
		}
		if !ok {
			return model.NotFoundf("feed type %d", it.FeedTypeID)
		}
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO recipe_items (recipe_id, feed_type_id, percentage, position) VALUES (?, ?, ?, ?)`,
			recipeID, it.FeedTypeID, it.Percentage, i,
		); err != nil {
			return fmt.Errorf("adding recipe item: %w", err)
		}
	}
	return nil
}

// GetRecipe returns a recipe with its items in order.
func GetRecipe(ctx context.Context, db *sql.DB, farmID, id int64) (*model.Recipe, error) {
	return getRecipe(ctx, db, farmID, id)
}

func getRecipe(ctx context.Context, q querier, farmID, id int64) (*model.Recipe, error) {
	r := &model.Recipe{}
	var usable int
	err := q.QueryRowContext(ctx,
		`SELECT id, farm_id, name, COALESCE(notes, ''), usable, created_at, updated_at
		 FROM recipes WHERE farm_id = ? AND id = ?`, farmID, id,
	).Scan(&r.ID, &r.FarmID, &r.Name, &r.Notes, &usable, &r.CreatedAt, &r.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, model.NotFoundf("recipe %d", id)
	}
	if err != nil {
		return nil, fmt.Errorf("getting recipe: %w", err)
	}
	r.Usable = usable == 1

	rows, err := q.QueryContext(ctx,
		`SELECT ri.feed_type_id, ri.percentage, ft.name
		 FROM recipe_items ri
		 JOIN feed_types ft ON ft.id = ri.feed_type_id
		 WHERE ri.recipe_id = ?
		 ORDER BY ri.position`, id,
	)
	if err != nil {
		return nil, fmt.Errorf("listing recipe items: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var it model.RecipeItem
		if err := rows.Scan(&it.FeedTypeID, &it.Percentage, &it.FeedTypeName); err != nil {
			return nil, fmt.Errorf("scanning recipe item: %w", err)
		}
		r.Items = append(r.Items, it)
	}
	return r, rows.Err()
}

// ListRecipes returns every recipe of the farm with its items.
func ListRecipes(ctx context.Context, db *sql.DB, farmID int64) ([]model.Recipe, error) {
	rows, err := db.QueryContext(ctx,
		`SELECT id FROM recipes WHERE farm_id = ? ORDER BY name, id`, farmID,
	)
	if err != nil {
		return nil, fmt.Errorf("listing recipes: %w", err)
	}
	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			rows.Close()
			return nil, fmt.Errorf("scanning recipe: %w", err)
		}
		ids = append(ids, id)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("listing recipes: %w", err)
	}

	recipes := make([]model.Recipe, 0, len(ids))
	for _, id := range ids {
		r, err := GetRecipe(ctx, db, farmID, id)
		if err != nil {
			return nil, err
		}
		recipes = append(recipes, *r)
	}
	return recipes, nil
}

// UpdateRecipe replaces a recipe's name, notes and items. A usable recipe
// stays usable only if the new items still sum to 100.
func UpdateRecipe(ctx context.Context, db *sql.DB, farmID, id int64, r model.Recipe) (*model.Recipe, error) {
	if err := r.ValidateDraft(); err != nil {
		return nil, err
	}

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	current, err := getRecipe(ctx, tx, farmID, id)
	if err != nil {
		return nil, err
	}
	if current.Usable {
		if err := r.ValidateUsable(); err != nil {
			return nil, err
		}
	}

	if _, err := tx.ExecContext(ctx,
		`UPDATE recipes SET name = ?, notes = ?, updated_at = CURRENT_TIMESTAMP
		 WHERE farm_id = ? AND id = ?`,
		r.Name, r.Notes, farmID, id,
	); err != nil {
		return nil, fmt.Errorf("updating recipe: %w", err)
	}

	if err := writeRecipeItems(ctx, tx, farmID, id, r.Items); err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("committing recipe update: %w", err)
	}
	return GetRecipe(ctx, db, farmID, id)
}

// MarkRecipeUsable validates the percentages and flags the recipe usable.
func MarkRecipeUsable(ctx context.Context, db *sql.DB, farmID, id int64) (*model.Recipe, error) {
	r, err := GetRecipe(ctx, db, farmID, id)
	if err != nil {
		return nil, err
	}
	if err := r.ValidateUsable(); err != nil {
		return nil, err
	}

	if _, err := db.ExecContext(ctx,
		`UPDATE recipes SET usable = 1, updated_at = CURRENT_TIMESTAMP WHERE farm_id = ? AND id = ?`,
		farmID, id,
	); err != nil {
		return nil, fmt.Errorf("marking recipe usable: %w", err)
	}
	r.Usable = true
	return r, nil
}

// DeleteRecipe removes a recipe and its items.
func DeleteRecipe(ctx context.Context, db *sql.DB, farmID, id int64) error {
	res, err := db.ExecContext(ctx,
		`DELETE FROM recipes WHERE farm_id = ? AND id = ?`, farmID, id,
	)
	if err != nil {
		return fmt.Errorf("deleting recipe: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return model.NotFoundf("recipe %d", id)
	}
	return nil
}
