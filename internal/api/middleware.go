package api

import (
	"database/sql"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/erazemk/krma/internal/auth"
	"github.com/erazemk/krma/internal/model"
	"github.com/erazemk/krma/internal/store"
)

const (
	claimsKey       = "claims"
	requestIDKey    = "request_id"
	requestIDHeader = "X-Request-ID"
)

// RequestID tags every request with an id, reusing the caller's when given.
func RequestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader(requestIDHeader)
		if id == "" {
			id = uuid.NewString()
		}
		c.Set(requestIDKey, id)
		c.Header(requestIDHeader, id)
		c.Next()
	}
}

// LoggingMiddleware logs HTTP requests with method, path, status and duration.
func LoggingMiddleware(log *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		log.Info("request completed",
			zap.String("method", c.Request.Method),
			zap.String("path", c.Request.URL.Path),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("duration", time.Since(start)),
			zap.String("client_ip", c.ClientIP()),
			zap.String("request_id", c.GetString(requestIDKey)),
		)
	}
}

// AuthMiddleware validates the bearer token and rejects revoked tokens.
func AuthMiddleware(secret string, db *sql.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		if !strings.HasPrefix(header, "Bearer ") {
			abortError(c, http.StatusUnauthorized, "missing or invalid authorization header")
			return
		}

		claims, err := auth.ValidateToken(secret, strings.TrimPrefix(header, "Bearer "))
		if err != nil {
			abortError(c, http.StatusUnauthorized, "invalid token")
			return
		}

		revoked, err := store.IsTokenRevoked(c.Request.Context(), db, claims.ID, time.Now())
		if err != nil {
			abortError(c, http.StatusInternalServerError, "internal error")
			return
		}
		if revoked {
			abortError(c, http.StatusUnauthorized, "token revoked")
			return
		}

		c.Set(claimsKey, claims)
		c.Next()
	}
}

// RequireRole rejects callers below the given role.
func RequireRole(minimum string) gin.HandlerFunc {
	return func(c *gin.Context) {
		claims := GetClaims(c)
		if claims == nil {
			abortError(c, http.StatusUnauthorized, "not authenticated")
			return
		}
		if !model.RoleAtLeast(claims.Role, minimum) {
			abortError(c, http.StatusForbidden, "insufficient permissions")
			return
		}
		c.Next()
	}
}

// GetClaims retrieves the JWT claims of the request.
func GetClaims(c *gin.Context) *auth.Claims {
	v, ok := c.Get(claimsKey)
	if !ok {
		return nil
	}
	claims, _ := v.(*auth.Claims)
	return claims
}

// farmID is the tenant every request is scoped to. AuthMiddleware guarantees
// the claims are present.
func farmID(c *gin.Context) int64 {
	return GetClaims(c).FarmID
}
