package api

import (
	"errors"
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"

	"github.com/ripcoord/ripcoord/internal/assign"
	"github.com/ripcoord/ripcoord/internal/store"
)

// httpError maps a store/queue error to the status code spec §7 names:
// not-found -> 404, illegal transition / not-approvable -> 400 ("bad
// transition ... no state change"), no worker available -> 503, everything
// else -> 500.
func httpError(err error) *echo.HTTPError {
	switch {
	case errors.Is(err, store.ErrNotFound):
		return echo.NewHTTPError(http.StatusNotFound, err.Error())
	case errors.Is(err, store.ErrIllegalTransition), errors.Is(err, store.ErrNotApprovable):
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	case errors.Is(err, assign.ErrNoWorkerAvailable):
		return echo.NewHTTPError(http.StatusServiceUnavailable, err.Error())
	default:
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
}

func bindAndValidate(c echo.Context, v *validator.Validate, dst any) error {
	if err := c.Bind(dst); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if err := v.Struct(dst); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	return nil
}
