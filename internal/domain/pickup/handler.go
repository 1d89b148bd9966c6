package pickup

import (
	"net/http"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/umutisafe/api/internal/platform/apperror"
	"github.com/umutisafe/api/internal/platform/auth"
	"github.com/umutisafe/api/pkg/pagination"
	"github.com/umutisafe/api/pkg/response"
)

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) RegisterRoutes(api *echo.Group, requireAuth echo.MiddlewareFunc) {
	g := api.Group("/pickups", requireAuth)
	chw := auth.RequireRole(auth.RoleCHW)

	g.GET("", h.List)
	g.POST("", h.Create)
	g.GET("/chw", h.ListForCHW, chw)
	g.GET("/chw/stats", h.CHWStats, chw)
	g.GET("/:id", h.Get)
	g.PUT("/:id/status", h.UpdateStatus, chw)
	g.PUT("/:id/cancel", h.Cancel)
}

func parseID(c echo.Context) (uuid.UUID, error) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return uuid.Nil, apperror.Validation("invalid id")
	}
	return id, nil
}

func nonNil(ps []*Pickup) []*Pickup {
	if ps == nil {
		return []*Pickup{}
	}
	return ps
}

func (h *Handler) Create(c echo.Context) error {
	var in CreateInput
	if err := c.Bind(&in); err != nil {
		return apperror.Validation("invalid request body").Wrap(err)
	}
	ctx := c.Request().Context()
	p, err := h.svc.Create(ctx, auth.UserIDFromContext(ctx), in)
	if err != nil {
		return err
	}
	return response.Message(c, http.StatusCreated, "Pickup request created successfully", p)
}

func (h *Handler) List(c echo.Context) error {
	p := pagination.FromContext(c, DefaultPageSize)
	ctx := c.Request().Context()
	ps, total, err := h.svc.ListMine(ctx, auth.UserIDFromContext(ctx), ListFilter{Status: c.QueryParam("status")}, p.Limit, p.Offset)
	if err != nil {
		return err
	}
	return response.Paged(c, http.StatusOK, nonNil(ps), total, p)
}

func (h *Handler) ListForCHW(c echo.Context) error {
	p := pagination.FromContext(c, DefaultPageSize)
	ctx := c.Request().Context()
	ps, total, err := h.svc.ListForCHW(ctx, auth.UserIDFromContext(ctx), ListFilter{Status: c.QueryParam("status")}, p.Limit, p.Offset)
	if err != nil {
		return err
	}
	return response.Paged(c, http.StatusOK, nonNil(ps), total, p)
}

func (h *Handler) Get(c echo.Context) error {
	id, err := parseID(c)
	if err != nil {
		return err
	}
	ctx := c.Request().Context()
	p, err := h.svc.Get(ctx, id, auth.UserIDFromContext(ctx))
	if err != nil {
		return err
	}
	return response.OK(c, http.StatusOK, p)
}

func (h *Handler) UpdateStatus(c echo.Context) error {
	id, err := parseID(c)
	if err != nil {
		return err
	}
	var in StatusInput
	if err := c.Bind(&in); err != nil {
		return apperror.Validation("invalid request body").Wrap(err)
	}
	ctx := c.Request().Context()
	p, err := h.svc.UpdateStatus(ctx, id, auth.UserIDFromContext(ctx), in)
	if err != nil {
		return err
	}
	return response.Message(c, http.StatusOK, "Pickup request updated successfully", p)
}

func (h *Handler) Cancel(c echo.Context) error {
	id, err := parseID(c)
	if err != nil {
		return err
	}
	ctx := c.Request().Context()
	p, err := h.svc.Cancel(ctx, id, auth.UserIDFromContext(ctx))
	if err != nil {
		return err
	}
	return response.Message(c, http.StatusOK, "Pickup request cancelled successfully", p)
}

func (h *Handler) CHWStats(c echo.Context) error {
	ctx := c.Request().Context()
	s, err := h.svc.CHWStats(ctx, auth.UserIDFromContext(ctx))
	if err != nil {
		return err
	}
	return response.OK(c, http.StatusOK, s)
}
