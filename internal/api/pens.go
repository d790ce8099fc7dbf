package api

import (
	"database/sql"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/erazemk/krma/internal/model"
	"github.com/erazemk/krma/internal/store"
)

// PensHandler exposes the pens and animals that schedules target.
type PensHandler struct {
	DB  *sql.DB
	Log *zap.Logger
}

// List handles GET /api/v1/pens.
func (h *PensHandler) List(c *gin.Context) {
	pens, err := store.ListPens(c.Request.Context(), h.DB, farmID(c))
	if err != nil {
		respondError(c, h.Log, err, "failed to list pens")
		return
	}
	if pens == nil {
		pens = []model.Pen{}
	}
	c.JSON(http.StatusOK, pens)
}

// Get handles GET /api/v1/pens/:id and includes the live occupants.
func (h *PensHandler) Get(c *gin.Context) {
	id, ok := idParam(c, "id")
	if !ok {
		return
	}

	pen, err := store.GetPen(c.Request.Context(), h.DB, farmID(c), id)
	if err != nil {
		respondError(c, h.Log, err, "failed to get pen")
		return
	}
	animals, err := store.ListPenOccupants(c.Request.Context(), h.DB, farmID(c), id)
	if err != nil {
		respondError(c, h.Log, err, "failed to list pen occupants")
		return
	}
	if animals == nil {
		animals = []model.Animal{}
	}
	c.JSON(http.StatusOK, gin.H{"pen": pen, "animals": animals})
}
