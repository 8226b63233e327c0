package api

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/userhub/user-service/internal/api/metrics"
	"github.com/userhub/user-service/internal/core/domain"
)

// errorResponse is the canonical error envelope for all API errors.
type errorResponse struct {
	Error string `json:"error"`
}

var failureStatus = map[domain.FailureKind]int{
	domain.KindValidation:     http.StatusBadRequest,
	domain.KindNotFound:       http.StatusNotFound,
	domain.KindConflict:       http.StatusConflict,
	domain.KindForbidden:      http.StatusForbidden,
	domain.KindInfrastructure: http.StatusInternalServerError,
}

// NewHTTPErrorHandler returns an echo.HTTPErrorHandler that:
//   - Maps use-case failures to their HTTP status codes.
//   - Logs unexpected errors internally without leaking details to the client.
//   - Renders a consistent JSON envelope: {"error": "<message>"}.
func NewHTTPErrorHandler(log zerolog.Logger) echo.HTTPErrorHandler {
	return func(err error, c echo.Context) {
		if c.Response().Committed {
			return
		}

		code, msg := resolveError(err, log, c)
		if c.Request().Method == http.MethodHead {
			_ = c.NoContent(code)
			return
		}
		_ = c.JSON(code, errorResponse{Error: msg})
	}
}

func resolveError(err error, log zerolog.Logger, c echo.Context) (int, string) {
	// Echo's own errors (bind failures, 404 from router, etc.)
	var he *echo.HTTPError
	if errors.As(err, &he) {
		return he.Code, fmt.Sprintf("%v", he.Message)
	}

	if f, ok := domain.AsFailure(err); ok {
		metrics.UseCaseFailuresTotal.WithLabelValues(string(f.Kind)).Inc()
		code, known := failureStatus[f.Kind]
		if known && f.Kind != domain.KindInfrastructure {
			return code, f.Message
		}
		err = f
	}

	// Unexpected error: log the real cause, return a generic message.
	log.Error().
		Err(err).
		Str("method", c.Request().Method).
		Str("path", c.Path()).
		Msg("unhandled error")

	return http.StatusInternalServerError, "internal server error"
}
