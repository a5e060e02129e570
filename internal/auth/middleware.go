package auth

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
)

const authorizationHeader = "Authorization"
const bearerPrefix = "Bearer "
const accessTokenCookie = "accessToken"

// UserResolver re-checks that a token subject still maps to a live user.
// A deleted account must not keep a working token for its full TTL.
type UserResolver func(ctx context.Context, userID string) error

// RequireAccessToken verifies an access token and injects identity into
// request context. The token is read from the Authorization header or,
// failing that, the accessToken cookie (browser clients use the cookie).
func RequireAccessToken(m *Manager, resolve UserResolver) gin.HandlerFunc {
	return func(c *gin.Context) {
		tok := extractToken(c)
		if tok == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "missing bearer token"})
			return
		}

		claims, err := m.Verify(tok, TokenTypeAccess, time.Now())
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
			return
		}

		if resolve != nil {
			if err := resolve(c.Request.Context(), claims.UserID); err != nil {
				c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
				return
			}
		}

		ctx := WithIdentity(c.Request.Context(), claims.UserID, claims.Role)
		c.Request = c.Request.WithContext(ctx)

		// Also store on gin context for handler convenience.
		c.Set("user_id", claims.UserID)
		c.Set("role", claims.Role)

		c.Next()
	}
}

// RequireRole allows access only to callers holding one of the given roles.
// Chain it after RequireAccessToken.
func RequireRole(allowed ...string) gin.HandlerFunc {
	allowedSet := make(map[string]struct{}, len(allowed))
	for _, r := range allowed {
		allowedSet[r] = struct{}{}
	}

	return func(c *gin.Context) {
		role, err := Role(c.Request.Context())
		if err != nil || role == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "role required"})
			return
		}
		if _, ok := allowedSet[role]; !ok {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "forbidden"})
			return
		}
		c.Next()
	}
}

func extractToken(c *gin.Context) string {
	raw := strings.TrimSpace(c.GetHeader(authorizationHeader))
	if strings.HasPrefix(raw, bearerPrefix) {
		return strings.TrimPrefix(raw, bearerPrefix)
	}
	if cookie, err := c.Cookie(accessTokenCookie); err == nil && cookie != "" {
		return cookie
	}
	return ""
}
