package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/duetapp/duet-sync/pkg/apperr"
)

// ErrorResponse represents an error response
type ErrorResponse struct {
	Error string `json:"error"`
}

func statusFromCode(code apperr.Code) int {
	switch code {
	case apperr.CodeNotFound:
		return http.StatusNotFound
	case apperr.CodeInvalidArgument:
		return http.StatusBadRequest
	case apperr.CodeAlreadyExists:
		return http.StatusConflict
	case apperr.CodePermissionDenied:
		return http.StatusForbidden
	case apperr.CodeUnauthenticated:
		return http.StatusUnauthorized
	case apperr.CodeUnavailable:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// respondError maps a domain error onto an HTTP status by its code.
func respondError(c *gin.Context, err error) {
	c.JSON(statusFromCode(apperr.CodeOf(err)), ErrorResponse{Error: err.Error()})
}
