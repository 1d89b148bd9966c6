// Package response renders the JSON envelope shared by every endpoint:
// {success, message, data, pagination}.
package response

import (
	"github.com/labstack/echo/v4"

	"github.com/umutisafe/api/pkg/pagination"
)

type Envelope struct {
	Success    bool             `json:"success"`
	Message    string           `json:"message,omitempty"`
	Data       interface{}      `json:"data,omitempty"`
	Pagination *pagination.Meta `json:"pagination,omitempty"`
	Count      *int             `json:"count,omitempty"`
}

func OK(c echo.Context, status int, data interface{}) error {
	return c.JSON(status, Envelope{Success: true, Data: data})
}

func Message(c echo.Context, status int, msg string, data interface{}) error {
	return c.JSON(status, Envelope{Success: true, Message: msg, Data: data})
}

// List renders a non-paginated collection with its length.
func List(c echo.Context, status int, data interface{}, count int) error {
	return c.JSON(status, Envelope{Success: true, Data: data, Count: &count})
}

func Paged(c echo.Context, status int, data interface{}, total int, p pagination.Params) error {
	return c.JSON(status, Envelope{Success: true, Data: data, Pagination: pagination.NewMeta(total, p)})
}
