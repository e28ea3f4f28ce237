package middleware

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/targup/targup/backend/auth-service/internal/apperrors"
	"github.com/targup/targup/backend/auth-service/internal/tokens"
)

const (
	// CookieName is the cookie the sign-in handlers set.
	CookieName = "accessToken"

	claimsKey = "claims"
	tokenKey  = "token"
)

// Verifier is the minimal interface the middleware depends on. Satisfied by
// *tokens.Issuer.
type Verifier interface {
	Verify(ctx context.Context, raw string) (*tokens.Claims, error)
}

var (
	errMissingToken = errors.New("missing Authorization header or accessToken cookie")
	errBadHeader    = errors.New("invalid Authorization header")
)

// AuthMiddleware returns a Gin middleware that verifies the Bearer token, or
// the accessToken cookie when no header is sent.
func AuthMiddleware(ver Verifier) gin.HandlerFunc {
	return func(c *gin.Context) {
		raw, err := extract(c)
		if err != nil {
			abort(c, http.StatusUnauthorized, apperrors.ErrorResponse{Message: err.Error(), Code: "INVALID_TOKEN"})
			return
		}

		claims, err := ver.Verify(c.Request.Context(), raw)
		if err != nil {
			status := apperrors.HTTPStatus(err)
			abort(c, status, apperrors.ToResponse(err))
			return
		}

		c.Set(claimsKey, claims)
		c.Set(tokenKey, raw)
		c.Next()
	}
}

func extract(c *gin.Context) (string, error) {
	if auth := c.GetHeader("Authorization"); auth != "" {
		token, ok := strings.CutPrefix(auth, "Bearer ")
		token = strings.TrimSpace(token)
		if !ok || token == "" {
			return "", errBadHeader
		}
		return token, nil
	}
	if cookie, err := c.Cookie(CookieName); err == nil && cookie != "" {
		return cookie, nil
	}
	return "", errMissingToken
}

func abort(c *gin.Context, status int, body apperrors.ErrorResponse) {
	c.AbortWithStatusJSON(status, body)
}

// ClaimsFrom returns the claims stored by AuthMiddleware.
func ClaimsFrom(c *gin.Context) (*tokens.Claims, bool) {
	v, ok := c.Get(claimsKey)
	if !ok {
		return nil, false
	}
	claims, ok := v.(*tokens.Claims)
	return claims, ok
}

// TokenFrom returns the raw token that authenticated the request.
func TokenFrom(c *gin.Context) string {
	return c.GetString(tokenKey)
}
