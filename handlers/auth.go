package handlers

import (
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/targup/targup/backend/auth-service/internal/apperrors"
	"github.com/targup/targup/backend/auth-service/internal/models"
	"github.com/targup/targup/backend/auth-service/internal/sessions"
	"github.com/targup/targup/backend/auth-service/internal/signin"
	"github.com/targup/targup/backend/auth-service/internal/tokens"
	"github.com/targup/targup/backend/auth-service/internal/users"
	"github.com/targup/targup/backend/auth-service/pkg/logger"
	"github.com/targup/targup/backend/auth-service/pkg/middleware"
)

const (
	stateCookie = "oauthState"
	stateMaxAge = 10 * 60
)

// LoginRequest is the body of POST /auth/login.
type LoginRequest struct {
	Email    string `json:"email" binding:"required"`
	Password string `json:"password" binding:"required"`
}

// userView is the subset of a user returned with a token.
type userView struct {
	ID    string `json:"id"`
	Email string `json:"email"`
	Name  string `json:"name"`
}

type tokenResponse struct {
	Success bool     `json:"success"`
	Data    userView `json:"data"`
	Token   string   `json:"token"`
}

// AuthHandler holds dependencies
type AuthHandler struct {
	signin   *signin.Service
	users    *users.Service
	issuer   *tokens.Issuer
	sessions *sessions.Service
	secure   bool
}

// NewAuthHandler wires the sign-in endpoints. secure marks cookies Secure.
func NewAuthHandler(si *signin.Service, u *users.Service, issuer *tokens.Issuer, s *sessions.Service, secure bool) *AuthHandler {
	return &AuthHandler{signin: si, users: u, issuer: issuer, sessions: s, secure: secure}
}

// Register routes under /auth
func (h *AuthHandler) Register(r gin.IRouter) {
	a := r.Group("/auth")
	a.GET("/:provider", h.Redirect)
	a.GET("/:provider/callback", h.Callback)
	a.POST("/login", h.Login)
	a.POST("/logout", middleware.AuthMiddleware(h.issuer), h.Logout)
}

// Redirect sends the browser to the provider's consent page.
func (h *AuthHandler) Redirect(c *gin.Context) {
	state := uuid.NewString()
	target, err := h.signin.AuthURL(c.Param("provider"), state)
	if err != nil {
		respondError(c, err)
		return
	}
	// Lax: the callback arrives as a cross-site top-level navigation
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(stateCookie, state, stateMaxAge, "/auth", "", h.secure, true)
	c.Redirect(http.StatusFound, target)
}

// Callback completes the provider sign-in and sets the session cookie.
func (h *AuthHandler) Callback(c *gin.Context) {
	provider := c.Param("provider")
	if e := c.Query("error"); e != "" {
		respondError(c, fmt.Errorf("%s denied access (%s): %w", provider, e, apperrors.ErrInvalidAuthCode))
		return
	}
	code := c.Query("code")
	if code == "" {
		respondError(c, fmt.Errorf("missing code: %w", apperrors.ErrInvalidAuthCode))
		return
	}
	want, err := c.Cookie(stateCookie)
	if err != nil || want == "" || want != c.Query("state") {
		respondError(c, fmt.Errorf("oauth state mismatch: %w", apperrors.ErrInvalidAuthCode))
		return
	}
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(stateCookie, "", -1, "/auth", "", h.secure, true)

	res, err := h.signin.CompleteProviderSignInWithMeta(c.Request.Context(), provider, code, meta(c))
	if err != nil {
		respondError(c, err)
		return
	}
	h.respondToken(c, res.User, res.Token)
}

// Login authenticates local email/password credentials.
func (h *AuthHandler) Login(c *gin.Context) {
	var req LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	u, err := h.users.Authenticate(c.Request.Context(), req.Email, req.Password)
	if err != nil {
		respondError(c, err)
		return
	}
	raw, claims, err := h.issuer.Sign(tokens.SignInput{UserID: u.ID, Email: u.Email, Name: u.Name, Provider: "local"})
	if err != nil {
		respondError(c, err)
		return
	}
	if err := h.sessions.Record(c.Request.Context(), claims, raw, meta(c)); err != nil {
		logger.Warnf("record session for user %s: %v", u.ID, err)
	}
	h.respondToken(c, u, raw)
}

// Logout revokes the presented token for the rest of its lifetime.
func (h *AuthHandler) Logout(c *gin.Context) {
	claims, _ := middleware.ClaimsFrom(c)
	if err := h.sessions.Revoke(c.Request.Context(), middleware.TokenFrom(c), claims); err != nil {
		respondError(c, err)
		return
	}
	h.clearCookie(c)
	c.JSON(http.StatusOK, gin.H{"success": true, "message": "logged out"})
}

func (h *AuthHandler) respondToken(c *gin.Context, u *models.User, token string) {
	c.SetSameSite(http.SameSiteStrictMode)
	c.SetCookie(middleware.CookieName, token, int(h.issuer.TTL()/time.Second), "/", "", h.secure, true)
	c.JSON(http.StatusOK, tokenResponse{
		Success: true,
		Data:    userView{ID: u.ID.String(), Email: u.Email.String(), Name: u.Name},
		Token:   token,
	})
}

func (h *AuthHandler) clearCookie(c *gin.Context) {
	c.SetSameSite(http.SameSiteStrictMode)
	c.SetCookie(middleware.CookieName, "", -1, "/", "", h.secure, true)
}

func meta(c *gin.Context) sessions.Meta {
	return sessions.Meta{UserAgent: c.Request.UserAgent(), IPAddress: c.ClientIP()}
}
