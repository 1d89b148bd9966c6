package admin

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/umutisafe/api/internal/domain/disposal"
	"github.com/umutisafe/api/internal/domain/pickup"
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

// RegisterRoutes mounts the dashboard endpoints. User management under
// /admin/users is registered by the user handler.
func (h *Handler) RegisterRoutes(api *echo.Group, requireAuth echo.MiddlewareFunc) {
	g := api.Group("/admin", requireAuth, auth.RequireRole(auth.RoleAdmin))
	g.GET("/stats", h.Stats)
	g.GET("/disposals", h.ListDisposals)
	g.GET("/pickups", h.ListPickups)
}

func (h *Handler) Stats(c echo.Context) error {
	st, err := h.svc.Stats(c.Request().Context())
	if err != nil {
		return err
	}
	return response.OK(c, http.StatusOK, st)
}

func (h *Handler) ListDisposals(c echo.Context) error {
	p := pagination.FromContext(c, DefaultPageSize)
	f := disposal.ListFilter{Status: c.QueryParam("status"), RiskLevel: c.QueryParam("riskLevel")}
	ds, total, err := h.svc.ListDisposals(c.Request().Context(), f, p.Limit, p.Offset)
	if err != nil {
		return err
	}
	if ds == nil {
		ds = []*disposal.Disposal{}
	}
	return response.Paged(c, http.StatusOK, ds, total, p)
}

func (h *Handler) ListPickups(c echo.Context) error {
	p := pagination.FromContext(c, DefaultPageSize)
	ps, total, err := h.svc.ListPickups(c.Request().Context(), pickup.ListFilter{Status: c.QueryParam("status")}, p.Limit, p.Offset)
	if err != nil {
		return err
	}
	if ps == nil {
		ps = []*pickup.Pickup{}
	}
	return response.Paged(c, http.StatusOK, ps, total, p)
}
