package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/erazemk/krma/internal/dosage"
	"github.com/erazemk/krma/internal/feeding"
	"github.com/erazemk/krma/internal/model"
)

// AdviceHandler serves reorder suggestions and dosage recommendations.
type AdviceHandler struct {
	Svc *feeding.Service
	Log *zap.Logger
}

// Reorder handles GET /api/v1/reorder?as_of=.
func (h *AdviceHandler) Reorder(c *gin.Context) {
	asOf, ok := queryDate(c, "as_of", today())
	if !ok {
		return
	}

	report, err := h.Svc.ReorderReport(c.Request.Context(), farmID(c), asOf)
	if err != nil {
		respondError(c, h.Log, err, "failed to build reorder report")
		return
	}
	c.JSON(http.StatusOK, report)
}

type recommendRequest struct {
	PenID    int64          `json:"pen_id"`
	Animals  []model.Animal `json:"animals"`
	Category string         `json:"category"`
	AsOf     model.Date     `json:"as_of"`
}

// Recommend handles POST /api/v1/dosage/recommend. The group is either the
// live occupants of pen_id or the animals given inline.
func (h *AdviceHandler) Recommend(c *gin.Context) {
	var req recommendRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		jsonError(c, http.StatusBadRequest, "invalid request body")
		return
	}
	category, err := model.ParseFeedCategory(req.Category)
	if err != nil {
		jsonError(c, http.StatusBadRequest, err.Error())
		return
	}
	if req.AsOf.IsZero() {
		req.AsOf = today()
	}
	if req.PenID > 0 && len(req.Animals) > 0 {
		jsonError(c, http.StatusBadRequest, "give either pen_id or animals, not both")
		return
	}

	var rec *dosage.Recommendation
	if req.PenID > 0 {
		rec, err = h.Svc.RecommendForPen(c.Request.Context(), farmID(c), req.PenID, category, req.AsOf)
	} else {
		for i := range req.Animals {
			if req.Animals[i].Status == "" {
				req.Animals[i].Status = model.AnimalStatusActive
			}
		}
		rec, err = h.Svc.Recommend(c.Request.Context(), farmID(c), req.Animals, category, req.AsOf)
	}
	if err != nil {
		respondError(c, h.Log, err, "failed to compute recommendation")
		return
	}
	c.JSON(http.StatusOK, gin.H{"recommendation": rec})
}
