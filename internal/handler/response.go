package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"waselni/internal/domain"
	"waselni/internal/logger"
	"waselni/internal/session"
	"waselni/internal/store"
)

// ErrorResponse represents an error response.
type ErrorResponse struct {
	Error string `json:"error"`
	Field string `json:"field,omitempty"`
	// Allowed lists the statuses the trip can still move to after a
	// refused transition.
	Allowed []domain.TripStatus `json:"allowed,omitempty"`
}

// respondError sends an error response with the appropriate HTTP status code.
func respondError(c *gin.Context, err error) {
	code := mapErrorToHTTPStatus(err)
	resp := ErrorResponse{Error: err.Error()}

	var verr *store.ValidationError
	var terr *domain.InvalidTransitionError
	switch {
	case errors.As(err, &verr):
		resp.Field = verr.Field
	case errors.As(err, &terr):
		resp.Allowed = terr.From.NextStatuses()
	}
	if code >= http.StatusInternalServerError {
		logger.FromContext(c.Request.Context(), logrus.StandardLogger()).
			WithError(err).WithField("status", code).Error("request failed")
		_ = c.Error(err)
	}
	c.JSON(code, resp)
}

// respondJSON sends a JSON response with the given status code.
func respondJSON(c *gin.Context, code int, data any) {
	c.JSON(code, data)
}

// badRequest rejects a malformed request body or parameter.
func badRequest(c *gin.Context, msg string) {
	c.JSON(http.StatusBadRequest, ErrorResponse{Error: msg})
}

// mapErrorToHTTPStatus maps store, domain and session errors to HTTP status codes.
func mapErrorToHTTPStatus(err error) int {
	var (
		verr *store.ValidationError
		nerr *store.NotFoundError
		terr *domain.InvalidTransitionError
		ferr *domain.ForbiddenError
		serr *store.StoreError
	)

	switch {
	case errors.As(err, &verr):
		return http.StatusBadRequest

	case errors.As(err, &nerr), errors.Is(err, session.ErrNotFound):
		return http.StatusNotFound

	case errors.As(err, &ferr):
		return http.StatusForbidden

	case errors.As(err, &terr):
		return http.StatusConflict

	// No backend configured, or shutting down.
	case errors.Is(err, store.ErrUnconfigured), errors.Is(err, session.ErrClosed):
		return http.StatusServiceUnavailable

	case errors.As(err, &serr):
		return http.StatusBadGateway

	default:
		return http.StatusInternalServerError
	}
}
