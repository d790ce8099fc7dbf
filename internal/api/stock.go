package api

import (
	"database/sql"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/erazemk/krma/internal/feeding"
	"github.com/erazemk/krma/internal/model"
	"github.com/erazemk/krma/internal/store"
)

const defaultExpiringDays = 30

// StockHandler handles stock lots and on-hand totals.
type StockHandler struct {
	DB  *sql.DB
	Svc *feeding.Service
	Log *zap.Logger
}

type lotRequest struct {
	FeedTypeID  int64           `json:"feed_type_id"`
	Quantity    decimal.Decimal `json:"quantity"`
	UnitCost    decimal.Decimal `json:"unit_cost"`
	PurchasedOn model.Date      `json:"purchased_on"`
	ExpiresOn   model.Date      `json:"expires_on"`
	Supplier    string          `json:"supplier"`
	Notes       string          `json:"notes"`
}

func (r lotRequest) model() model.StockLot {
	return model.StockLot{
		FeedTypeID:  r.FeedTypeID,
		Quantity:    r.Quantity,
		UnitCost:    r.UnitCost,
		PurchasedOn: r.PurchasedOn,
		ExpiresOn:   r.ExpiresOn,
		Supplier:    r.Supplier,
		Notes:       r.Notes,
	}
}

// Totals handles GET /api/v1/stock.
func (h *StockHandler) Totals(c *gin.Context) {
	totals, err := store.ListStock(c.Request.Context(), h.DB, farmID(c))
	if err != nil {
		respondError(c, h.Log, err, "failed to list stock")
		return
	}
	if totals == nil {
		totals = []model.StockTotal{}
	}
	c.JSON(http.StatusOK, totals)
}

// Expiring handles GET /api/v1/stock/expiring?days=&as_of=.
func (h *StockHandler) Expiring(c *gin.Context) {
	asOf, ok := queryDate(c, "as_of", today())
	if !ok {
		return
	}
	days := defaultExpiringDays
	if raw := c.Query("days"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			jsonError(c, http.StatusBadRequest, "invalid days")
			return
		}
		days = n
	}

	lots, err := store.ListExpiringLots(c.Request.Context(), h.DB, farmID(c), asOf, days)
	if err != nil {
		respondError(c, h.Log, err, "failed to list expiring lots")
		return
	}
	if lots == nil {
		lots = []model.StockLot{}
	}
	c.JSON(http.StatusOK, lots)
}

// ListLots handles GET /api/v1/stock/lots?feed_type_id=.
func (h *StockHandler) ListLots(c *gin.Context) {
	typeID, ok := queryID(c, "feed_type_id")
	if !ok {
		return
	}

	lots, err := store.ListLots(c.Request.Context(), h.DB, farmID(c), typeID)
	if err != nil {
		respondError(c, h.Log, err, "failed to list lots")
		return
	}
	if lots == nil {
		lots = []model.StockLot{}
	}
	c.JSON(http.StatusOK, lots)
}

// AddLot handles POST /api/v1/stock/lots.
func (h *StockHandler) AddLot(c *gin.Context) {
	var req lotRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		jsonError(c, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.PurchasedOn.IsZero() {
		req.PurchasedOn = today()
	}

	lot, err := store.AddLot(c.Request.Context(), h.DB, farmID(c), req.model())
	if err != nil {
		respondError(c, h.Log, err, "failed to add stock lot")
		return
	}
	h.Svc.Invalidate(c.Request.Context(), farmID(c))
	c.JSON(http.StatusCreated, lot)
}

// GetLot handles GET /api/v1/stock/lots/:id.
func (h *StockHandler) GetLot(c *gin.Context) {
	id, ok := idParam(c, "id")
	if !ok {
		return
	}

	lot, err := store.GetLot(c.Request.Context(), h.DB, farmID(c), id)
	if err != nil {
		respondError(c, h.Log, err, "failed to get stock lot")
		return
	}
	c.JSON(http.StatusOK, lot)
}

// EditLot handles PUT /api/v1/stock/lots/:id.
func (h *StockHandler) EditLot(c *gin.Context) {
	id, ok := idParam(c, "id")
	if !ok {
		return
	}

	var req lotRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		jsonError(c, http.StatusBadRequest, "invalid request body")
		return
	}

	lot, err := store.EditLot(c.Request.Context(), h.DB, farmID(c), id, req.model())
	if err != nil {
		respondError(c, h.Log, err, "failed to edit stock lot")
		return
	}
	h.Svc.Invalidate(c.Request.Context(), farmID(c))
	c.JSON(http.StatusOK, lot)
}

// DeleteLot handles DELETE /api/v1/stock/lots/:id.
func (h *StockHandler) DeleteLot(c *gin.Context) {
	id, ok := idParam(c, "id")
	if !ok {
		return
	}

	if err := store.DeleteLot(c.Request.Context(), h.DB, farmID(c), id); err != nil {
		respondError(c, h.Log, err, "failed to delete stock lot")
		return
	}
	h.Svc.Invalidate(c.Request.Context(), farmID(c))
	c.Status(http.StatusNoContent)
}
