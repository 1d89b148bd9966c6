package education

import (
	"net/http"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/umutisafe/api/internal/platform/apperror"
	"github.com/umutisafe/api/internal/platform/auth"
	"github.com/umutisafe/api/pkg/response"
)

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) RegisterRoutes(api *echo.Group, requireAuth echo.MiddlewareFunc) {
	admin := []echo.MiddlewareFunc{requireAuth, auth.RequireRole(auth.RoleAdmin)}

	g := api.Group("/education")
	g.GET("", h.List)
	g.GET("/:id", h.Get)
	g.POST("", h.Create, admin...)
	g.PUT("/:id", h.Update, admin...)
	g.DELETE("/:id", h.Delete, admin...)
}

func parseID(c echo.Context) (uuid.UUID, error) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return uuid.Nil, apperror.Validation("invalid id")
	}
	return id, nil
}

func (h *Handler) List(c echo.Context) error {
	tips, err := h.svc.List(c.Request().Context(), c.QueryParam("category"))
	if err != nil {
		return err
	}
	if tips == nil {
		tips = []*Tip{}
	}
	return response.OK(c, http.StatusOK, tips)
}

func (h *Handler) Get(c echo.Context) error {
	id, err := parseID(c)
	if err != nil {
		return err
	}
	t, err := h.svc.Get(c.Request().Context(), id)
	if err != nil {
		return err
	}
	return response.OK(c, http.StatusOK, t)
}

func (h *Handler) Create(c echo.Context) error {
	var in Input
	if err := c.Bind(&in); err != nil {
		return apperror.Validation("invalid request body").Wrap(err)
	}
	t, err := h.svc.Create(c.Request().Context(), in)
	if err != nil {
		return err
	}
	return response.Message(c, http.StatusCreated, "Education tip created successfully", t)
}

func (h *Handler) Update(c echo.Context) error {
	id, err := parseID(c)
	if err != nil {
		return err
	}
	var in Input
	if err := c.Bind(&in); err != nil {
		return apperror.Validation("invalid request body").Wrap(err)
	}
	t, err := h.svc.Update(c.Request().Context(), id, in)
	if err != nil {
		return err
	}
	return response.Message(c, http.StatusOK, "Education tip updated successfully", t)
}

func (h *Handler) Delete(c echo.Context) error {
	id, err := parseID(c)
	if err != nil {
		return err
	}
	if err := h.svc.Delete(c.Request().Context(), id); err != nil {
		return err
	}
	return response.Message(c, http.StatusOK, "Education tip deleted successfully", nil)
}
