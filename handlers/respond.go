package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/targup/targup/backend/auth-service/internal/apperrors"
	"github.com/targup/targup/backend/auth-service/pkg/logger"
)

// respondError writes the mapped status and body for err. Server-side
// failures, and client errors whose detail is withheld, are logged here.
func respondError(c *gin.Context, err error) {
	status := apperrors.HTTPStatus(err)
	switch {
	case status >= http.StatusInternalServerError:
		logger.Errorf("%s %s: %v", c.Request.Method, c.FullPath(), err)
	case apperrors.Withheld(err):
		logger.Warnf("%s %s: %v", c.Request.Method, c.FullPath(), err)
	}
	c.AbortWithStatusJSON(status, apperrors.ToResponse(err))
}

func badRequest(c *gin.Context, err error) {
	c.AbortWithStatusJSON(http.StatusBadRequest, apperrors.ErrorResponse{Message: err.Error(), Code: "INVALID_REQUEST"})
}
