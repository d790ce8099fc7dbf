package api

import (
	"database/sql"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/erazemk/krma/internal/store"
)

// AuthHandler handles token endpoints. Tokens are issued out of band by the
// CLI; the API only inspects and revokes them.
type AuthHandler struct {
	DB  *sql.DB
	Log *zap.Logger
}

// Me handles GET /api/v1/auth/me.
func (h *AuthHandler) Me(c *gin.Context) {
	claims := GetClaims(c)
	c.JSON(http.StatusOK, claims.Identity)
}

// Logout handles POST /api/v1/auth/logout.
func (h *AuthHandler) Logout(c *gin.Context) {
	claims := GetClaims(c)

	expiresAt := time.Now().Add(24 * time.Hour)
	if claims.ExpiresAt != nil {
		expiresAt = claims.ExpiresAt.Time
	}

	ctx := c.Request.Context()
	err := store.RevokeToken(ctx, h.DB, store.RevokedToken{
		JTI:       claims.ID,
		FarmID:    claims.FarmID,
		Username:  claims.Username,
		ExpiresAt: expiresAt,
	})
	if err != nil {
		respondError(c, h.Log, err, "failed to revoke token")
		return
	}

	if n, err := store.PurgeExpiredTokens(ctx, h.DB, time.Now()); err != nil {
		h.Log.Warn("purging expired revocations", zap.Error(err))
	} else if n > 0 {
		h.Log.Debug("expired revocations purged", zap.Int64("count", n))
	}

	h.Log.Info("token revoked", zap.String("user", claims.Username), zap.Int64("farm_id", claims.FarmID))
	c.JSON(http.StatusOK, gin.H{"message": "logged out"})
}
