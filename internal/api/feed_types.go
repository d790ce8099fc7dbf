package api

import (
	"database/sql"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/erazemk/krma/internal/feeding"
	"github.com/erazemk/krma/internal/model"
	"github.com/erazemk/krma/internal/store"
)

// FeedTypesHandler handles the feed catalog.
type FeedTypesHandler struct {
	DB  *sql.DB
	Svc *feeding.Service
	Log *zap.Logger
}

type feedTypeRequest struct {
	Name             string          `json:"name"`
	LocalName        string          `json:"local_name"`
	Category         string          `json:"category"`
	Unit             string          `json:"unit"`
	ProteinPct       decimal.Decimal `json:"protein_pct"`
	EnergyMJ         decimal.Decimal `json:"energy_mj"`
	ReorderThreshold decimal.Decimal `json:"reorder_threshold"`
}

func (r feedTypeRequest) model() model.FeedType {
	return model.FeedType{
		Name:             r.Name,
		LocalName:        r.LocalName,
		Category:         model.FeedCategory(r.Category),
		Unit:             r.Unit,
		ProteinPct:       r.ProteinPct,
		EnergyMJ:         r.EnergyMJ,
		ReorderThreshold: r.ReorderThreshold,
	}
}

// List handles GET /api/v1/feed-types?category=.
func (h *FeedTypesHandler) List(c *gin.Context) {
	var category model.FeedCategory
	if raw := c.Query("category"); raw != "" {
		parsed, err := model.ParseFeedCategory(raw)
		if err != nil {
			jsonError(c, http.StatusBadRequest, err.Error())
			return
		}
		category = parsed
	}

	types, err := store.ListFeedTypes(c.Request.Context(), h.DB, farmID(c), category)
	if err != nil {
		respondError(c, h.Log, err, "failed to list feed types")
		return
	}
	if types == nil {
		types = []model.FeedType{}
	}
	c.JSON(http.StatusOK, types)
}

// Create handles POST /api/v1/feed-types.
func (h *FeedTypesHandler) Create(c *gin.Context) {
	var req feedTypeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		jsonError(c, http.StatusBadRequest, "invalid request body")
		return
	}

	ft, err := store.CreateFeedType(c.Request.Context(), h.DB, farmID(c), req.model())
	if err != nil {
		respondError(c, h.Log, err, "failed to create feed type")
		return
	}
	h.Svc.Invalidate(c.Request.Context(), farmID(c))
	c.JSON(http.StatusCreated, ft)
}

// Get handles GET /api/v1/feed-types/:id.
func (h *FeedTypesHandler) Get(c *gin.Context) {
	id, ok := idParam(c, "id")
	if !ok {
		return
	}

	ft, err := store.GetFeedType(c.Request.Context(), h.DB, farmID(c), id)
	if err != nil {
		respondError(c, h.Log, err, "failed to get feed type")
		return
	}
	c.JSON(http.StatusOK, ft)
}

// Update handles PUT /api/v1/feed-types/:id.
func (h *FeedTypesHandler) Update(c *gin.Context) {
	id, ok := idParam(c, "id")
	if !ok {
		return
	}

	var req feedTypeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		jsonError(c, http.StatusBadRequest, "invalid request body")
		return
	}

	ft, err := store.UpdateFeedType(c.Request.Context(), h.DB, farmID(c), id, req.model())
	if err != nil {
		respondError(c, h.Log, err, "failed to update feed type")
		return
	}
	h.Svc.Invalidate(c.Request.Context(), farmID(c))
	c.JSON(http.StatusOK, ft)
}

// Delete handles DELETE /api/v1/feed-types/:id.
func (h *FeedTypesHandler) Delete(c *gin.Context) {
	id, ok := idParam(c, "id")
	if !ok {
		return
	}

	if err := store.DeleteFeedType(c.Request.Context(), h.DB, farmID(c), id); err != nil {
		respondError(c, h.Log, err, "failed to delete feed type")
		return
	}
	h.Svc.Invalidate(c.Request.Context(), farmID(c))
	c.Status(http.StatusNoContent)
}
