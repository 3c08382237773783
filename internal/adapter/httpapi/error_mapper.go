package httpapi

import (
	"net/http"

	"litwatch/internal/domain"

	"github.com/labstack/echo/v4"
)

// mapDomainError converts a domain error into an appropriate
// echo.HTTPError. Validation problems surface their message; anything
// else stays opaque to the client.
func mapDomainError(err error) *echo.HTTPError {
	switch domain.KindOf(err) {
	case domain.ErrorKindValidation:
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	case domain.ErrorKindStore:
		return echo.NewHTTPError(http.StatusServiceUnavailable, "storage unavailable")
	default:
		return echo.NewHTTPError(http.StatusInternalServerError, "internal error")
	}
}
