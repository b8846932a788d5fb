package httpserver

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/Skotchmaster/language_school/internal/logging"
)

const internalErrorMessage = "Internal server error"

type errorResponse struct {
	Error string `json:"error"`
}

// ErrorHandler renders every error as {"error": message}. Server errors never expose their cause.
func ErrorHandler(err error, c echo.Context) {
	if c.Response().Committed {
		return
	}

	status := http.StatusInternalServerError
	msg := internalErrorMessage

	var he *echo.HTTPError
	if errors.As(err, &he) {
		status = he.Code
		if status < http.StatusInternalServerError {
			msg = messageOf(he)
		}
	}

	if status >= http.StatusInternalServerError {
		logging.FromContext(c.Request().Context()).Error("request_failed",
			"status", status,
			"path", c.Path(),
			"error", err,
		)
	}

	if c.Request().Method == http.MethodHead {
		err = c.NoContent(status)
	} else {
		err = c.JSON(status, errorResponse{Error: msg})
	}
	if err != nil {
		logging.FromContext(c.Request().Context()).Error("error_response_failed", "error", err)
	}
}

func messageOf(he *echo.HTTPError) string {
	switch m := he.Message.(type) {
	case string:
		return m
	case error:
		return m.Error()
	case nil:
		return http.StatusText(he.Code)
	default:
		return fmt.Sprint(m)
	}
}
