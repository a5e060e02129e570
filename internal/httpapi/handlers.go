package httpapi

import (
	"database/sql"
	"errors"
	"net/http"
	"time"

	"callcenter-backend/internal/calltracker"
	"callcenter-backend/internal/config"
	"callcenter-backend/internal/messages"
	"callcenter-backend/internal/notify"
	"callcenter-backend/internal/telephony"
	"callcenter-backend/internal/users"
	"callcenter-backend/pkg/utils"

	"github.com/gin-gonic/gin"
)

// Handlers groups HTTP handlers for dependency injection.
// Keep these thin: parse/validate input, call internal services, return JSON.

type Handlers struct {
	Cfg      config.Config
	Users    *users.Service
	Messages *messages.Service
	Tracker  *calltracker.Tracker
	Gateway  telephony.Gateway
	Hub      *notify.Hub
	DB       *sql.DB
}

func (h Handlers) Healthz(c *gin.Context) {
	if h.DB != nil {
		if err := utils.HealthCheck(c.Request.Context(), h.DB, 2*time.Second); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "degraded"})
			return
		}
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// abortForError maps service errors to HTTP statuses. Anything unmapped is a 500
// with a generic body; internals never leak to clients.
func abortForError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, users.ErrInvalidArgument), errors.Is(err, messages.ErrInvalidArgument):
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
	case errors.Is(err, users.ErrInvalidCredentials):
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid credentials"})
	case errors.Is(err, users.ErrInvalidRefresh):
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid refresh token"})
	case errors.Is(err, users.ErrEmailTaken):
		c.AbortWithStatusJSON(http.StatusConflict, gin.H{"error": "email already registered"})
	case errors.Is(err, users.ErrNotFound):
		c.AbortWithStatusJSON(http.StatusNotFound, gin.H{"error": "not found"})
	case errors.Is(err, calltracker.ErrAlreadyAccepted):
		c.AbortWithStatusJSON(http.StatusConflict, gin.H{"error": "already accepted"})
	default:
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
	}
}
