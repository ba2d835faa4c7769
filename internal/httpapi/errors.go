package httpapi

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/xef5000/UltimateLogger/logstore"
)

var (
	ErrInvalidID   = errors.New("log id must be a positive integer")
	ErrMissingType = errors.New("log type must not be empty")
)

type errorResponse struct {
	Error string `json:"error"`
}

func statusFor(err error) int {
	var httpErr *echo.HTTPError

	switch {
	case errors.As(err, &httpErr):
		return httpErr.Code
	case errors.Is(err, logstore.ErrRecordNotFound):
		return http.StatusNotFound
	case errors.Is(err, logstore.ErrInvalidPage),
		errors.Is(err, logstore.ErrMalformedFilter),
		errors.Is(err, logstore.ErrEmptyFilter),
		errors.Is(err, logstore.ErrInvalidPayloadJSON),
		errors.Is(err, ErrInvalidID),
		errors.Is(err, ErrMissingType):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

// handleError answers every handler error as {"error": "..."}. Internal errors are not echoed.
func (s *Server) handleError(err error, c echo.Context) {
	if c.Response().Committed {
		return
	}

	status := statusFor(err)

	message := err.Error()
	var httpErr *echo.HTTPError
	if errors.As(err, &httpErr) {
		if text, ok := httpErr.Message.(string); ok {
			message = text
		} else {
			message = http.StatusText(httpErr.Code)
		}
	}
	if status == http.StatusInternalServerError {
		message = http.StatusText(status)
	}

	if c.Request().Method == http.MethodHead {
		_ = c.NoContent(status)
		return
	}

	_ = c.JSON(status, errorResponse{Error: message})
}
