package controllers

import (
	"net/http"

	"assetflow/internal/apperrors"

	"github.com/labstack/echo/v4"
)

// httpError converts a service error into an echo HTTP error, preserving the
// status carried by application errors.
func httpError(err error) error {
	if appErr, ok := apperrors.As(err); ok {
		return echo.NewHTTPError(appErr.HTTPStatus(), appErr.Message)
	}
	return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
}
