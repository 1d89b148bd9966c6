package blobstore

import (
	"errors"
	"io"
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"
)

// Handler serves GET /uploads/:key from any Store.
type Handler struct {
	store Store
}

func NewHandler(store Store) *Handler {
	return &Handler{store: store}
}

func (h *Handler) RegisterRoutes(e *echo.Echo) {
	e.GET(URLPrefix+":key", h.Serve)
}

func (h *Handler) Serve(c echo.Context) error {
	key := c.Param("key")
	if !ValidKey(key) {
		return echo.NewHTTPError(http.StatusNotFound, "File not found")
	}

	rc, obj, err := h.store.Open(c.Request().Context(), key)
	if errors.Is(err, ErrBlobNotFound) || errors.Is(err, ErrInvalidKey) {
		return echo.NewHTTPError(http.StatusNotFound, "File not found")
	}
	if err != nil {
		return err
	}
	defer rc.Close()

	contentType := obj.ContentType
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	resp := c.Response()
	resp.Header().Set(echo.HeaderContentType, contentType)
	if obj.Size > 0 {
		resp.Header().Set(echo.HeaderContentLength, strconv.FormatInt(obj.Size, 10))
	}
	resp.Header().Set("Cache-Control", "public, max-age=86400")
	resp.WriteHeader(http.StatusOK)
	_, err = io.Copy(resp, rc)
	return err
}
