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

// SchedulesHandler handles feeding schedules.
type SchedulesHandler struct {
	DB  *sql.DB
	Svc *feeding.Service
	Log *zap.Logger
}

type scheduleRequest struct {
	Target          model.TargetRef `json:"target"`
	FeedTypeID      int64           `json:"feed_type_id"`
	QuantityPerHead decimal.Decimal `json:"quantity_per_head"`
	MealsPerDay     int             `json:"meals_per_day"`
	StartOn         model.Date      `json:"start_on"`
	EndOn           model.Date      `json:"end_on"`
	Active          *bool           `json:"active"`
	Notes           string          `json:"notes"`
}

func (r scheduleRequest) model() (model.Schedule, error) {
	target, err := r.Target.Target()
	if err != nil {
		return model.Schedule{}, err
	}
	meals := r.MealsPerDay
	if meals == 0 {
		meals = 1
	}
	active := true
	if r.Active != nil {
		active = *r.Active
	}
	return model.Schedule{
		Target:          target,
		FeedTypeID:      r.FeedTypeID,
		QuantityPerHead: r.QuantityPerHead,
		MealsPerDay:     meals,
		StartOn:         r.StartOn,
		EndOn:           r.EndOn,
		Active:          active,
		Source:          model.ScheduleSourceManual,
		Notes:           r.Notes,
	}, nil
}

func (h *SchedulesHandler) bind(c *gin.Context) (model.Schedule, bool) {
	var req scheduleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		jsonError(c, http.StatusBadRequest, "invalid request body")
		return model.Schedule{}, false
	}
	s, err := req.model()
	if err != nil {
		jsonError(c, http.StatusBadRequest, err.Error())
		return model.Schedule{}, false
	}
	return s, true
}

// List handles GET /api/v1/schedules?pen_id=&animal_id=&feed_type_id=&active_on=.
func (h *SchedulesHandler) List(c *gin.Context) {
	var filter store.ScheduleFilter
	var ok bool
	if filter.PenID, ok = queryID(c, "pen_id"); !ok {
		return
	}
	if filter.AnimalID, ok = queryID(c, "animal_id"); !ok {
		return
	}
	if filter.FeedTypeID, ok = queryID(c, "feed_type_id"); !ok {
		return
	}
	if filter.ActiveOn, ok = queryDate(c, "active_on", model.Date{}); !ok {
		return
	}

	schedules, err := store.ListSchedules(c.Request.Context(), h.DB, farmID(c), filter)
	if err != nil {
		respondError(c, h.Log, err, "failed to list schedules")
		return
	}
	if schedules == nil {
		schedules = []model.Schedule{}
	}
	c.JSON(http.StatusOK, schedules)
}

// Create handles POST /api/v1/schedules.
func (h *SchedulesHandler) Create(c *gin.Context) {
	s, ok := h.bind(c)
	if !ok {
		return
	}

	created, err := store.CreateSchedule(c.Request.Context(), h.DB, farmID(c), s)
	if err != nil {
		respondError(c, h.Log, err, "failed to create schedule")
		return
	}
	h.Svc.Invalidate(c.Request.Context(), farmID(c))
	c.JSON(http.StatusCreated, created)
}

// Get handles GET /api/v1/schedules/:id.
func (h *SchedulesHandler) Get(c *gin.Context) {
	id, ok := idParam(c, "id")
	if !ok {
		return
	}

	s, err := store.GetSchedule(c.Request.Context(), h.DB, farmID(c), id)
	if err != nil {
		respondError(c, h.Log, err, "failed to get schedule")
		return
	}
	c.JSON(http.StatusOK, s)
}

// Update handles PUT /api/v1/schedules/:id.
func (h *SchedulesHandler) Update(c *gin.Context) {
	id, ok := idParam(c, "id")
	if !ok {
		return
	}
	s, ok := h.bind(c)
	if !ok {
		return
	}

	updated, err := store.UpdateSchedule(c.Request.Context(), h.DB, farmID(c), id, s)
	if err != nil {
		respondError(c, h.Log, err, "failed to update schedule")
		return
	}
	h.Svc.Invalidate(c.Request.Context(), farmID(c))
	c.JSON(http.StatusOK, updated)
}

// Delete handles DELETE /api/v1/schedules/:id.
func (h *SchedulesHandler) Delete(c *gin.Context) {
	id, ok := idParam(c, "id")
	if !ok {
		return
	}

	if err := store.DeleteSchedule(c.Request.Context(), h.DB, farmID(c), id); err != nil {
		respondError(c, h.Log, err, "failed to delete schedule")
		return
	}
	h.Svc.Invalidate(c.Request.Context(), farmID(c))
	c.Status(http.StatusNoContent)
}

// Toggle handles POST /api/v1/schedules/:id/toggle.
func (h *SchedulesHandler) Toggle(c *gin.Context) {
	id, ok := idParam(c, "id")
	if !ok {
		return
	}

	var req struct {
		Active *bool `json:"active"`
	}
	if err := c.ShouldBindJSON(&req); err != nil || req.Active == nil {
		jsonError(c, http.StatusBadRequest, "active is required")
		return
	}

	s, err := store.SetScheduleActive(c.Request.Context(), h.DB, farmID(c), id, *req.Active)
	if err != nil {
		respondError(c, h.Log, err, "failed to toggle schedule")
		return
	}
	h.Svc.Invalidate(c.Request.Context(), farmID(c))
	c.JSON(http.StatusOK, s)
}

// Generate handles POST /api/v1/schedules/generate.
func (h *SchedulesHandler) Generate(c *gin.Context) {
	var req feeding.GenerateRequest
	if c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			jsonError(c, http.StatusBadRequest, "invalid request body")
			return
		}
	}
	if req.From.IsZero() {
		req.From = today()
	}

	res, err := h.Svc.GenerateSchedules(c.Request.Context(), farmID(c), req)
	if err != nil {
		respondError(c, h.Log, err, "failed to generate schedules")
		return
	}
	c.JSON(http.StatusCreated, res)
}
