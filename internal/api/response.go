package api

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/erazemk/krma/internal/model"
)

// jsonError writes a JSON error response.
func jsonError(c *gin.Context, status int, message string) {
	c.JSON(status, gin.H{"error": message})
}

// abortError writes a JSON error response and stops the handler chain.
func abortError(c *gin.Context, status int, message string) {
	c.AbortWithStatusJSON(status, gin.H{"error": message})
}

// respondError maps domain errors onto HTTP statuses. Anything unclassified
// is logged and reported as fallback.
func respondError(c *gin.Context, log *zap.Logger, err error, fallback string) {
	switch {
	case errors.Is(err, model.ErrValidation):
		jsonError(c, http.StatusBadRequest, err.Error())
	case errors.Is(err, model.ErrNotFound):
		jsonError(c, http.StatusNotFound, err.Error())
	case errors.Is(err, model.ErrConflict):
		jsonError(c, http.StatusConflict, err.Error())
	default:
		log.Error(fallback, zap.Error(err), zap.String("request_id", c.GetString(requestIDKey)))
		jsonError(c, http.StatusInternalServerError, fallback)
	}
}

type shortageView struct {
	FeedTypeID   int64           `json:"feed_type_id"`
	FeedTypeName string          `json:"feed_type_name"`
	Required     decimal.Decimal `json:"required"`
	Available    decimal.Decimal `json:"available"`
	Missing      decimal.Decimal `json:"missing"`
}

// respondShortage reports a skipped execution.
func respondShortage(c *gin.Context, res *model.ExecutionResult) {
	views := make([]shortageView, len(res.Shortages))
	for i, s := range res.Shortages {
		views[i] = shortageView{
			FeedTypeID:   s.FeedTypeID,
			FeedTypeName: s.FeedTypeName,
			Required:     s.Required,
			Available:    s.Available,
			Missing:      s.Missing(),
		}
	}
	c.JSON(http.StatusConflict, gin.H{
		"error":     "insufficient stock",
		"date":      res.Date,
		"status":    res.Status,
		"shortages": views,
	})
}

// idParam parses a positive integer path parameter.
func idParam(c *gin.Context, name string) (int64, bool) {
	id, err := strconv.ParseInt(c.Param(name), 10, 64)
	if err != nil || id <= 0 {
		jsonError(c, http.StatusBadRequest, "invalid "+name)
		return 0, false
	}
	return id, true
}

// queryID parses an optional positive integer query parameter; absent is 0.
func queryID(c *gin.Context, name string) (int64, bool) {
	raw := c.Query(name)
	if raw == "" {
		return 0, true
	}
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		jsonError(c, http.StatusBadRequest, "invalid "+name)
		return 0, false
	}
	return id, true
}

// queryDate parses an optional YYYY-MM-DD query parameter, defaulting to def.
func queryDate(c *gin.Context, name string, def model.Date) (model.Date, bool) {
	raw := c.Query(name)
	if raw == "" {
		return def, true
	}
	d, err := model.ParseDate(raw)
	if err != nil {
		jsonError(c, http.StatusBadRequest, "invalid "+name+", want YYYY-MM-DD")
		return model.Date{}, false
	}
	return d, true
}

func today() model.Date {
	return model.DateOf(time.Now())
}
