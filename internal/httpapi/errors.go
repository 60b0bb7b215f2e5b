package httpapi

import (
	"errors"
	"net/http"

	"github.com/MrEthical07/medconfirm/internal/repositories"
	"github.com/MrEthical07/medconfirm/internal/services"
	"github.com/gin-gonic/gin"
)

type errorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

func errorBody(code, message string) errorResponse {
	return errorResponse{Error: code, Message: message}
}

// writeError maps repository and service errors to HTTP responses. Unknown
// errors become 500 and are attached to the gin context for the request log.
func writeError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, repositories.ErrNotFound):
		c.JSON(http.StatusNotFound, errorBody("not_found", "Resource not found"))
	case errors.Is(err, repositories.ErrConflict):
		c.JSON(http.StatusConflict, errorBody("conflict", "Resource already exists"))
	case errors.Is(err, services.ErrForbidden):
		c.JSON(http.StatusForbidden, errorBody("forbidden", err.Error()))
	case errors.Is(err, services.ErrSelfDelete),
		errors.Is(err, services.ErrInvalidInput),
		errors.Is(err, services.ErrSubscriptionInactive),
		errors.Is(err, repositories.ErrInvalidReference):
		c.JSON(http.StatusBadRequest, errorBody("invalid_request", err.Error()))
	default:
		_ = c.Error(err)
		c.JSON(http.StatusInternalServerError, errorBody("internal_error", "Internal server error"))
	}
}

func writeBindError(c *gin.Context, err error) {
	c.JSON(http.StatusBadRequest, errorBody("invalid_request", err.Error()))
}
