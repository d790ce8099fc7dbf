package api

import (
	"database/sql"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/erazemk/krma/internal/model"
	"github.com/erazemk/krma/internal/store"
)

// RecipesHandler handles the recipe book.
type RecipesHandler struct {
	DB  *sql.DB
	Log *zap.Logger
}

type recipeRequest struct {
	Name  string             `json:"name"`
	Notes string             `json:"notes"`
	Items []model.RecipeItem `json:"items"`
}

func (r recipeRequest) model() model.Recipe {
	return model.Recipe{Name: r.Name, Notes: r.Notes, Items: r.Items}
}

// List handles GET /api/v1/recipes.
func (h *RecipesHandler) List(c *gin.Context) {
	recipes, err := store.ListRecipes(c.Request.Context(), h.DB, farmID(c))
	if err != nil {
		respondError(c, h.Log, err, "failed to list recipes")
		return
	}
	if recipes == nil {
		recipes = []model.Recipe{}
	}
	c.JSON(http.StatusOK, recipes)
}

// Create handles POST /api/v1/recipes. New recipes are drafts until marked
// usable.
func (h *RecipesHandler) Create(c *gin.Context) {
	var req recipeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		jsonError(c, http.StatusBadRequest, "invalid request body")
		return
	}

	recipe, err := store.CreateRecipe(c.Request.Context(), h.DB, farmID(c), req.model())
	if err != nil {
		respondError(c, h.Log, err, "failed to create recipe")
		return
	}
	c.JSON(http.StatusCreated, recipe)
}

// Get handles GET /api/v1/recipes/:id.
func (h *RecipesHandler) Get(c *gin.Context) {
	id, ok := idParam(c, "id")
	if !ok {
		return
	}

	recipe, err := store.GetRecipe(c.Request.Context(), h.DB, farmID(c), id)
	if err != nil {
		respondError(c, h.Log, err, "failed to get recipe")
		return
	}
	c.JSON(http.StatusOK, recipe)
}

// Update handles PUT /api/v1/recipes/:id.
func (h *RecipesHandler) Update(c *gin.Context) {
	id, ok := idParam(c, "id")
	if !ok {
		return
	}

	var req recipeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		jsonError(c, http.StatusBadRequest, "invalid request body")
		return
	}

	recipe, err := store.UpdateRecipe(c.Request.Context(), h.DB, farmID(c), id, req.model())
	if err != nil {
		respondError(c, h.Log, err, "failed to update recipe")
		return
	}
	c.JSON(http.StatusOK, recipe)
}

// Delete handles DELETE /api/v1/recipes/:id.
func (h *RecipesHandler) Delete(c *gin.Context) {
	id, ok := idParam(c, "id")
	if !ok {
		return
	}

	if err := store.DeleteRecipe(c.Request.Context(), h.DB, farmID(c), id); err != nil {
		respondError(c, h.Log, err, "failed to delete recipe")
		return
	}
	c.Status(http.StatusNoContent)
}

// MarkUsable handles POST /api/v1/recipes/:id/usable.
func (h *RecipesHandler) MarkUsable(c *gin.Context) {
	id, ok := idParam(c, "id")
	if !ok {
		return
	}

	recipe, err := store.MarkRecipeUsable(c.Request.Context(), h.DB, farmID(c), id)
	if err != nil {
		respondError(c, h.Log, err, "failed to mark recipe usable")
		return
	}
	c.JSON(http.StatusOK, recipe)
}

// Split handles POST /api/v1/recipes/:id/split.
func (h *RecipesHandler) Split(c *gin.Context) {
	id, ok := idParam(c, "id")
	if !ok {
		return
	}

	var req struct {
		Total decimal.Decimal `json:"total"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		jsonError(c, http.StatusBadRequest, "invalid request body")
		return
	}

	recipe, err := store.GetRecipe(c.Request.Context(), h.DB, farmID(c), id)
	if err != nil {
		respondError(c, h.Log, err, "failed to get recipe")
		return
	}
	shares, err := recipe.Split(req.Total)
	if err != nil {
		respondError(c, h.Log, err, "failed to split recipe")
		return
	}
	c.JSON(http.StatusOK, gin.H{"recipe_id": recipe.ID, "total": req.Total, "shares": shares})
}
