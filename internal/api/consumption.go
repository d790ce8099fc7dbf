package api

import (
	"database/sql"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/erazemk/krma/internal/feeding"
	"github.com/erazemk/krma/internal/model"
	"github.com/erazemk/krma/internal/store"
)

const defaultHistoryDays = 30

// ConsumptionHandler handles daily consumption execution and history.
type ConsumptionHandler struct {
	DB  *sql.DB
	Svc *feeding.Service
	Log *zap.Logger
}

type executeRequest struct {
	Date         model.Date `json:"date"`
	Auto         bool       `json:"auto"`
	LookbackDays int        `json:"lookback_days"`
}

// Execute handles POST /api/v1/consumption. With auto set, every pending
// date up to date is executed.
func (h *ConsumptionHandler) Execute(c *gin.Context) {
	var req executeRequest
	if c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			jsonError(c, http.StatusBadRequest, "invalid request body")
			return
		}
	}
	if req.Date.IsZero() {
		req.Date = today()
	}
	if req.LookbackDays < 0 {
		jsonError(c, http.StatusBadRequest, "lookback_days must not be negative")
		return
	}

	if req.Auto {
		res, err := h.Svc.ExecuteAuto(c.Request.Context(), farmID(c), req.Date, req.LookbackDays)
		if err != nil {
			respondError(c, h.Log, err, "failed to execute consumption")
			return
		}
		c.JSON(http.StatusOK, res)
		return
	}

	res, err := h.Svc.Execute(c.Request.Context(), farmID(c), req.Date)
	if err != nil {
		respondError(c, h.Log, err, "failed to execute consumption")
		return
	}
	if res.Status == model.ExecutionSkipped {
		respondShortage(c, res)
		return
	}
	c.JSON(http.StatusCreated, res)
}

// List handles GET /api/v1/consumption?from=&to=.
func (h *ConsumptionHandler) List(c *gin.Context) {
	to, ok := queryDate(c, "to", today())
	if !ok {
		return
	}
	from, ok := queryDate(c, "from", to.AddDays(-(defaultHistoryDays - 1)))
	if !ok {
		return
	}
	if from.After(to) {
		jsonError(c, http.StatusBadRequest, "from is after to")
		return
	}

	entries, err := store.ListConsumption(c.Request.Context(), h.DB, farmID(c), from, to)
	if err != nil {
		respondError(c, h.Log, err, "failed to list consumption")
		return
	}
	if entries == nil {
		entries = []model.ConsumptionEntry{}
	}
	c.JSON(http.StatusOK, entries)
}

// Get handles GET /api/v1/consumption/:date.
func (h *ConsumptionHandler) Get(c *gin.Context) {
	date, ok := dateParam(c)
	if !ok {
		return
	}

	status, err := h.Svc.Status(c.Request.Context(), farmID(c), date)
	if err != nil {
		respondError(c, h.Log, err, "failed to get consumption status")
		return
	}
	c.JSON(http.StatusOK, status)
}

// Undo handles DELETE /api/v1/consumption/:date.
func (h *ConsumptionHandler) Undo(c *gin.Context) {
	date, ok := dateParam(c)
	if !ok {
		return
	}

	res, err := h.Svc.Undo(c.Request.Context(), farmID(c), date)
	if err != nil {
		respondError(c, h.Log, err, "failed to undo consumption")
		return
	}
	c.JSON(http.StatusOK, res)
}

func dateParam(c *gin.Context) (model.Date, bool) {
	d, err := model.ParseDate(c.Param("date"))
	if err != nil {
		jsonError(c, http.StatusBadRequest, "invalid date, want YYYY-MM-DD")
		return model.Date{}, false
	}
	return d, true
}
