package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/targup/targup/backend/auth-service/internal/accounts"
	"github.com/targup/targup/backend/auth-service/internal/credentials"
	"github.com/targup/targup/backend/auth-service/internal/sessions"
	"github.com/targup/targup/backend/auth-service/internal/tokens"
	"github.com/targup/targup/backend/auth-service/internal/users"
	"github.com/targup/targup/backend/auth-service/pkg/middleware"
)

// RegisterRequest is the body of POST /users.
type RegisterRequest struct {
	Email    string `json:"email" binding:"required"`
	Password string `json:"password" binding:"required"`
	Name     string `json:"name"`
}

// ChangePasswordRequest is the body of PUT /api/v1/me/password.
type ChangePasswordRequest struct {
	CurrentPassword string `json:"currentPassword" binding:"required"`
	NewPassword     string `json:"newPassword" binding:"required"`
}

type sessionView struct {
	ID        string    `json:"id"`
	Provider  string    `json:"provider"`
	UserAgent string    `json:"userAgent,omitempty"`
	IPAddress string    `json:"ipAddress,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
	ExpiresAt time.Time `json:"expiresAt"`
	Current   bool      `json:"current"`
}

type accountView struct {
	Provider   string    `json:"provider"`
	ProviderID string    `json:"providerId"`
	Email      string    `json:"email"`
	CreatedAt  time.Time `json:"createdAt"`
}

// UsersHandler serves registration and the authenticated /api/v1/me routes.
type UsersHandler struct {
	users    *users.Service
	accounts accounts.Repository
	sessions *sessions.Service
	verifier middleware.Verifier
}

func NewUsersHandler(u *users.Service, a accounts.Repository, s *sessions.Service, v middleware.Verifier) *UsersHandler {
	return &UsersHandler{users: u, accounts: a, sessions: s, verifier: v}
}

func (h *UsersHandler) Register(r gin.IRouter) {
	r.POST("/users", h.Create)

	me := r.Group("/api/v1/me", middleware.AuthMiddleware(h.verifier))
	me.GET("", h.Me)
	me.PUT("/password", h.ChangePassword)
	me.GET("/accounts", h.Accounts)
	me.GET("/sessions", h.Sessions)
	me.DELETE("/sessions", h.RevokeSessions)
}

// Create registers a local user.
func (h *UsersHandler) Create(c *gin.Context) {
	var req RegisterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	u, err := h.users.Register(c.Request.Context(), req.Email, req.Password, req.Name)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"success": true, "data": u})
}

func (h *UsersHandler) Me(c *gin.Context) {
	claims, uid, ok := h.subject(c)
	if !ok {
		return
	}
	u, err := h.users.Get(c.Request.Context(), uid)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"data":    users.ToResponse(u),
		"claims": gin.H{
			"provider":  claims.Provider,
			"sessionId": claims.ID,
			"expiresAt": claims.ExpiresAt.Time,
		},
	})
}

func (h *UsersHandler) ChangePassword(c *gin.Context) {
	_, uid, ok := h.subject(c)
	if !ok {
		return
	}
	var req ChangePasswordRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	if err := h.users.ChangePassword(c.Request.Context(), uid, req.CurrentPassword, req.NewPassword); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "message": "password updated"})
}

// Accounts lists the provider identities linked to the caller.
func (h *UsersHandler) Accounts(c *gin.Context) {
	_, uid, ok := h.subject(c)
	if !ok {
		return
	}
	linked, err := h.accounts.FindByUserID(c.Request.Context(), uid)
	if err != nil {
		respondError(c, err)
		return
	}
	out := make([]accountView, 0, len(linked))
	for _, a := range linked {
		out = append(out, accountView{Provider: a.Provider, ProviderID: a.ProviderID, Email: a.Email, CreatedAt: a.CreatedAt})
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "data": out})
}

func (h *UsersHandler) Sessions(c *gin.Context) {
	claims, uid, ok := h.subject(c)
	if !ok {
		return
	}
	active, err := h.sessions.ListActive(c.Request.Context(), uid)
	if err != nil {
		respondError(c, err)
		return
	}
	out := make([]sessionView, 0, len(active))
	for _, s := range active {
		out = append(out, sessionView{
			ID:        s.ID.String(),
			Provider:  s.Provider,
			UserAgent: s.UserAgent,
			IPAddress: s.IPAddress,
			CreatedAt: s.CreatedAt,
			ExpiresAt: s.ExpiresAt,
			Current:   s.ID.String() == claims.ID,
		})
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "data": out})
}

// RevokeSessions signs the caller out everywhere, including this request's token.
func (h *UsersHandler) RevokeSessions(c *gin.Context) {
	claims, uid, ok := h.subject(c)
	if !ok {
		return
	}
	n, err := h.sessions.RevokeAll(c.Request.Context(), uid)
	if err != nil {
		respondError(c, err)
		return
	}
	// the presented token may predate the registry
	if err := h.sessions.Revoke(c.Request.Context(), middleware.TokenFrom(c), claims); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "revoked": n})
}

func (h *UsersHandler) subject(c *gin.Context) (*tokens.Claims, credentials.UserID, bool) {
	claims, ok := middleware.ClaimsFrom(c)
	if !ok {
		c.AbortWithStatus(http.StatusUnauthorized)
		return nil, credentials.UserID{}, false
	}
	uid, err := claims.UserID()
	if err != nil {
		respondError(c, err)
		return nil, credentials.UserID{}, false
	}
	return claims, uid, true
}
