package framecap

import (
	"errors"
	"net/http"

	"github.com/hazyhaar/framecap/internal/capture"
	"github.com/hazyhaar/framecap/internal/compose"
	"github.com/hazyhaar/framecap/internal/dispatch"
)

var (
	// ErrInvalidSelection is returned for a selection smaller than
	// geometry.MinSelection on either axis.
	ErrInvalidSelection = errors.New("framecap: selection too small")
	// ErrNoTarget is returned when a command names neither a URL nor a display.
	ErrNoTarget = errors.New("framecap: no capture target")
	// ErrForbiddenTarget is returned when the URL guard rejects a target.
	ErrForbiddenTarget = errors.New("framecap: target not allowed")
	// ErrNoSurfaces is returned when no surface opener is configured.
	ErrNoSurfaces = errors.New("framecap: no surface opener configured")
	// ErrNoPrefs is returned by preference commands without a store.
	ErrNoPrefs = errors.New("framecap: no preference store configured")
)

// HTTPStatus maps a service error to an HTTP status code.
func HTTPStatus(err error) int {
	switch {
	case err == nil:
		return http.StatusOK
	case errors.Is(err, ErrInvalidSelection), errors.Is(err, ErrNoTarget):
		return http.StatusBadRequest
	case errors.Is(err, ErrForbiddenTarget):
		return http.StatusForbidden
	case errors.Is(err, ErrNoSurfaces), errors.Is(err, ErrNoPrefs):
		return http.StatusNotImplemented
	case errors.Is(err, capture.ErrCaptureUnavailable):
		return http.StatusBadGateway
	case errors.Is(err, dispatch.ErrNothingDelivered):
		return http.StatusBadGateway
	case errors.Is(err, compose.ErrEncoding):
		return http.StatusInternalServerError
	default:
		return http.StatusInternalServerError
	}
}
