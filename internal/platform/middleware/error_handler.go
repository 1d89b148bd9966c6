package middleware

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/umutisafe/api/internal/platform/apperror"
)

// ErrorBody is the failure form of the response envelope.
type ErrorBody struct {
	Success bool        `json:"success"`
	Message string      `json:"message"`
	Code    string      `json:"code,omitempty"`
	Details interface{} `json:"details,omitempty"`
	Error   string      `json:"error,omitempty"`
	Stack   string      `json:"stack,omitempty"`
}

// ErrorHandler renders every error returned by a handler or middleware as
// the JSON envelope. Internal detail (cause, panic stack) is only exposed
// when exposeDetails is set, i.e. outside production.
func ErrorHandler(logger zerolog.Logger, exposeDetails bool) echo.HTTPErrorHandler {
	return func(err error, c echo.Context) {
		if c.Response().Committed {
			return
		}

		status, body := Classify(err, exposeDetails)
		if status >= http.StatusInternalServerError {
			logger.Error().Err(err).
				Str("request_id", fmt.Sprintf("%v", c.Get("request_id"))).
				Str("path", c.Request().URL.Path).
				Msg("unhandled error")
		}

		var writeErr error
		if c.Request().Method == http.MethodHead {
			writeErr = c.NoContent(status)
		} else {
			writeErr = c.JSON(status, body)
		}
		if writeErr != nil {
			logger.Error().Err(writeErr).Msg("write error response")
		}
	}
}

// Classify maps err to a status code and envelope.
func Classify(err error, exposeDetails bool) (int, ErrorBody) {
	var (
		appErr   *apperror.Error
		httpErr  *echo.HTTPError
		panicErr *PanicError
	)

	switch {
	case errors.As(err, &appErr):
		body := ErrorBody{Message: appErr.Message, Code: appErr.Kind.Code(), Details: appErr.Details}
		if appErr.Kind == apperror.KindInternal && exposeDetails && appErr.Err != nil {
			body.Error = appErr.Err.Error()
		}
		return appErr.Kind.Status(), body

	case errors.As(err, &httpErr):
		msg := fmt.Sprintf("%v", httpErr.Message)
		if httpErr.Code == http.StatusNotFound && msg == http.StatusText(http.StatusNotFound) {
			msg = "Route not found"
		}
		return httpErr.Code, ErrorBody{Message: msg, Code: codeForStatus(httpErr.Code)}

	case errors.Is(err, apperror.ErrNotFound):
		return http.StatusNotFound, ErrorBody{Message: "Resource not found", Code: apperror.CodeNotFound}

	case errors.As(err, &panicErr):
		body := ErrorBody{Message: "Server Error", Code: apperror.CodeInternal}
		if exposeDetails {
			body.Error = panicErr.Error()
			body.Stack = panicErr.Stack
		}
		return http.StatusInternalServerError, body
	}

	body := ErrorBody{Message: "Server Error", Code: apperror.CodeInternal}
	if exposeDetails {
		body.Error = err.Error()
	}
	return http.StatusInternalServerError, body
}

func codeForStatus(status int) string {
	switch status {
	case http.StatusBadRequest, http.StatusUnsupportedMediaType, http.StatusRequestEntityTooLarge:
		return apperror.CodeValidation
	case http.StatusUnauthorized:
		return apperror.CodeUnauthorized
	case http.StatusForbidden:
		return apperror.CodeForbidden
	case http.StatusNotFound, http.StatusMethodNotAllowed:
		return apperror.CodeNotFound
	case http.StatusConflict:
		return apperror.CodeConflict
	case http.StatusTooManyRequests:
		return "RATE_LIMITED"
	}
	if status >= 500 {
		return apperror.CodeInternal
	}
	return ""
}
