package api

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/divitutor/backend/internal/apperr"
)

// APIError is the wire shape of a failure.
type APIError struct {
	Message string `json:"message"`
	Code    string `json:"code,omitempty"`
}

// ErrorEnvelope wraps every error response.
type ErrorEnvelope struct {
	Error APIError `json:"error"`
}

func respondOK(c *gin.Context, payload any) {
	c.JSON(http.StatusOK, payload)
}

func respondCreated(c *gin.Context, payload any) {
	c.JSON(http.StatusCreated, payload)
}

// respondError maps the service error taxonomy onto HTTP statuses:
// NotFound 404, Validation 422, UpstreamGeneration 502, StoreUnavailable
// 503, anything else 500.
func respondError(c *gin.Context, err error) {
	status := http.StatusInternalServerError
	code := "internal"

	var (
		nf *apperr.NotFound
		vl *apperr.Validation
		up *apperr.UpstreamGeneration
		su *apperr.StoreUnavailable
	)
	switch {
	case errors.As(err, &nf):
		status, code = http.StatusNotFound, "not_found"
	case errors.As(err, &vl):
		status, code = http.StatusUnprocessableEntity, "validation"
	case errors.As(err, &up):
		status, code = http.StatusBadGateway, "upstream_generation"
	case errors.As(err, &su):
		status, code = http.StatusServiceUnavailable, "store_unavailable"
	}

	msg := "unknown error"
	if err != nil {
		msg = err.Error()
	}
	c.JSON(status, ErrorEnvelope{Error: APIError{Message: msg, Code: code}})
}
