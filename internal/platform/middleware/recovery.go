package middleware

import (
	"fmt"
	"runtime/debug"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"
)

// PanicError carries a recovered panic to the error handler, which decides
// whether the stack is shown to the client.
type PanicError struct {
	Value any
	Stack string
}

func (e *PanicError) Error() string {
	return fmt.Sprintf("panic: %v", e.Value)
}

// Recovery turns a handler panic into a *PanicError so the request still
// gets an envelope response.
func Recovery(logger zerolog.Logger) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) (err error) {
			defer func() {
				r := recover()
				if r == nil {
					return
				}
				stack := string(debug.Stack())
				rid, _ := c.Get("request_id").(string)
				logger.Error().
					Str("request_id", rid).
					Interface("panic", r).
					Str("route", c.Path()).
					Str("stack", stack).
					Msg("handler panicked")
				err = &PanicError{Value: r, Stack: stack}
			}()
			return next(c)
		}
	}
}
