package httpapi

import (
	"net/http"

	"callcenter-backend/internal/auth"
	"callcenter-backend/internal/users"

	"github.com/gin-gonic/gin"
)

const (
	accessTokenCookie  = "accessToken"
	refreshTokenCookie = "refreshToken"
)

func (h Handlers) setSessionCookies(c *gin.Context, pair auth.TokenPair) {
	secure := h.Cfg.IsProduction()
	c.SetCookie(accessTokenCookie, pair.AccessToken, int(h.Cfg.Auth.AccessTokenTTL.Seconds()), "/", "", secure, true)
	c.SetCookie(refreshTokenCookie, pair.RefreshToken, int(h.Cfg.Auth.RefreshTokenTTL.Seconds()), "/", "", secure, true)
}

func (h Handlers) clearSessionCookies(c *gin.Context) {
	secure := h.Cfg.IsProduction()
	c.SetCookie(accessTokenCookie, "", -1, "/", "", secure, true)
	c.SetCookie(refreshTokenCookie, "", -1, "/", "", secure, true)
}

// Register creates an account. The response never includes credentials; the
// client logs in separately.
func (h Handlers) Register(c *gin.Context) {
	var req users.RegisterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}

	u, err := h.Users.Register(c.Request.Context(), req)
	if err != nil {
		abortForError(c, err)
		return
	}
	c.JSON(http.StatusCreated, u)
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// Login verifies credentials and starts a session. Tokens go out both as
// httpOnly cookies (browser clients) and in the body (API clients).
func (h Handlers) Login(c *gin.Context) {
	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}

	res, err := h.Users.Login(c.Request.Context(), req.Email, req.Password)
	if err != nil {
		abortForError(c, err)
		return
	}

	h.setSessionCookies(c, res.Tokens)
	c.JSON(http.StatusOK, gin.H{
		"user":         res.User,
		"accessToken":  res.Tokens.AccessToken,
		"refreshToken": res.Tokens.RefreshToken,
	})
}

// Logout invalidates the refresh slot and clears session cookies.
func (h Handlers) Logout(c *gin.Context) {
	userID, err := auth.UserID(c.Request.Context())
	if err != nil || userID == "" {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "unauthenticated"})
		return
	}

	if err := h.Users.Logout(c.Request.Context(), userID); err != nil {
		abortForError(c, err)
		return
	}
	h.clearSessionCookies(c)
	c.JSON(http.StatusOK, gin.H{"status": "logged out"})
}

type refreshRequest struct {
	RefreshToken string `json:"refreshToken"`
}

// Refresh rotates the token pair. The refresh token is read from the body
// or, for browser clients, the refreshToken cookie.
func (h Handlers) Refresh(c *gin.Context) {
	var req refreshRequest
	_ = c.ShouldBindJSON(&req)
	if req.RefreshToken == "" {
		if cookie, err := c.Cookie(refreshTokenCookie); err == nil {
			req.RefreshToken = cookie
		}
	}
	if req.RefreshToken == "" {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "refreshToken required"})
		return
	}

	pair, err := h.Users.Refresh(c.Request.Context(), req.RefreshToken)
	if err != nil {
		abortForError(c, err)
		return
	}

	h.setSessionCookies(c, pair)
	c.JSON(http.StatusOK, gin.H{
		"accessToken":  pair.AccessToken,
		"refreshToken": pair.RefreshToken,
	})
}

// CurrentUser returns the authenticated account.
func (h Handlers) CurrentUser(c *gin.Context) {
	userID, err := auth.UserID(c.Request.Context())
	if err != nil || userID == "" {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "unauthenticated"})
		return
	}

	u, err := h.Users.Current(c.Request.Context(), userID)
	if err != nil {
		abortForError(c, err)
		return
	}
	c.JSON(http.StatusOK, u)
}

// Agents lists every account. Admin-only; enforced by route middleware.
func (h Handlers) Agents(c *gin.Context) {
	list, err := h.Users.ListAgents(c.Request.Context())
	if err != nil {
		abortForError(c, err)
		return
	}
	c.JSON(http.StatusOK, list)
}
