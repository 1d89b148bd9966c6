package user

import (
	"net/http"
	"strconv"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/umutisafe/api/internal/platform/apperror"
	"github.com/umutisafe/api/internal/platform/auth"
	"github.com/umutisafe/api/pkg/pagination"
	"github.com/umutisafe/api/pkg/response"
)

// AdminPageSize is the default page size of admin and directory listings.
const AdminPageSize = 20

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

// RegisterRoutes mounts /auth, /chws and /admin/users. authLimit, when
// given, applies to the public auth endpoints.
func (h *Handler) RegisterRoutes(api *echo.Group, requireAuth echo.MiddlewareFunc, authLimit ...echo.MiddlewareFunc) {
	a := api.Group("/auth")
	a.POST("/register", h.Register, authLimit...)
	a.POST("/login", h.Login, authLimit...)
	a.POST("/logout", h.Logout, requireAuth)
	a.GET("/me", h.Me, requireAuth)
	a.PUT("/profile", h.UpdateProfile, requireAuth)
	a.PUT("/password", h.ChangePassword, requireAuth)
	a.PUT("/change-password", h.ChangePassword, requireAuth)

	chws := api.Group("/chws")
	chws.GET("", h.ListCHWs)
	chws.GET("/nearby", h.NearbyCHWs)
	chws.PUT("/availability", h.UpdateAvailability, requireAuth, auth.RequireRole(auth.RoleCHW))
	chws.GET("/:id", h.GetCHW)

	adm := api.Group("/admin/users", requireAuth, auth.RequireRole(auth.RoleAdmin))
	adm.GET("", h.ListUsers)
	adm.GET("/pending", h.ListPending)
	adm.PUT("/:id", h.UpdateUser)
	adm.DELETE("/:id", h.DeleteUser)
	adm.PUT("/:id/approve", h.ApproveUser)
	adm.PUT("/:id/reject", h.RejectUser)
	adm.PUT("/:id/activate", h.ActivateUser)
	adm.PUT("/:id/deactivate", h.DeactivateUser)
}

func parseID(c echo.Context) (uuid.UUID, error) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return uuid.Nil, apperror.Validation("invalid id")
	}
	return id, nil
}

func bind(c echo.Context, v interface{}) error {
	if err := c.Bind(v); err != nil {
		return apperror.Validation("invalid request body").Wrap(err)
	}
	return nil
}

// -- Auth --

func (h *Handler) Register(c echo.Context) error {
	var in RegisterInput
	if err := bind(c, &in); err != nil {
		return err
	}
	res, err := h.svc.Register(c.Request().Context(), in)
	if err != nil {
		return err
	}
	msg := "User registered successfully"
	if !res.User.IsApproved {
		msg = "Registration successful! Your account is pending approval. You will receive an email once approved."
	}
	return response.Message(c, http.StatusCreated, msg, res)
}

func (h *Handler) Login(c echo.Context) error {
	var in LoginInput
	if err := bind(c, &in); err != nil {
		return err
	}
	res, err := h.svc.Login(c.Request().Context(), in)
	if err != nil {
		return err
	}
	return response.Message(c, http.StatusOK, "Login successful", res)
}

func (h *Handler) Logout(c echo.Context) error {
	ctx := c.Request().Context()
	jti, exp := auth.TokenFromContext(ctx)
	if err := h.svc.Logout(ctx, jti, exp); err != nil {
		return err
	}
	return response.Message(c, http.StatusOK, "Logged out successfully", nil)
}

func (h *Handler) Me(c echo.Context) error {
	ctx := c.Request().Context()
	u, err := h.svc.Me(ctx, auth.UserIDFromContext(ctx))
	if err != nil {
		return err
	}
	return response.OK(c, http.StatusOK, u)
}

func (h *Handler) UpdateProfile(c echo.Context) error {
	var in ProfileInput
	if err := bind(c, &in); err != nil {
		return err
	}
	ctx := c.Request().Context()
	u, err := h.svc.UpdateProfile(ctx, auth.UserIDFromContext(ctx), in)
	if err != nil {
		return err
	}
	return response.Message(c, http.StatusOK, "Profile updated successfully", u)
}

func (h *Handler) ChangePassword(c echo.Context) error {
	var in PasswordInput
	if err := bind(c, &in); err != nil {
		return err
	}
	ctx := c.Request().Context()
	if err := h.svc.ChangePassword(ctx, auth.UserIDFromContext(ctx), in); err != nil {
		return err
	}
	return response.Message(c, http.StatusOK, "Password changed successfully", nil)
}

// -- CHW directory --

func (h *Handler) ListCHWs(c echo.Context) error {
	p := pagination.FromContext(c, AdminPageSize)
	f := CHWFilter{
		Sector:       c.QueryParam("sector"),
		Availability: c.QueryParam("availability"),
		Search:       c.QueryParam("search"),
	}
	chws, total, err := h.svc.ListCHWs(c.Request().Context(), f, p.Limit, p.Offset)
	if err != nil {
		return err
	}
	return response.Paged(c, http.StatusOK, nonNil(chws), total, p)
}

func (h *Handler) NearbyCHWs(c echo.Context) error {
	limit, _ := strconv.Atoi(c.QueryParam("limit"))
	chws, err := h.svc.NearbyCHWs(c.Request().Context(), c.QueryParam("sector"), limit)
	if err != nil {
		return err
	}
	return response.OK(c, http.StatusOK, nonNil(chws))
}

func (h *Handler) GetCHW(c echo.Context) error {
	id, err := parseID(c)
	if err != nil {
		return err
	}
	chw, err := h.svc.GetCHW(c.Request().Context(), id)
	if err != nil {
		return err
	}
	return response.OK(c, http.StatusOK, chw)
}

func (h *Handler) UpdateAvailability(c echo.Context) error {
	var in struct {
		Availability string `json:"availability"`
	}
	if err := bind(c, &in); err != nil {
		return err
	}
	ctx := c.Request().Context()
	u, err := h.svc.UpdateAvailability(ctx, auth.UserIDFromContext(ctx), in.Availability)
	if err != nil {
		return err
	}
	return response.Message(c, http.StatusOK, "Availability updated successfully", u)
}

// -- Admin --

func (h *Handler) ListUsers(c echo.Context) error {
	p := pagination.FromContext(c, AdminPageSize)
	f := ListFilter{Role: c.QueryParam("role"), Search: c.QueryParam("search")}
	users, total, err := h.svc.ListUsers(c.Request().Context(), f, p.Limit, p.Offset)
	if err != nil {
		return err
	}
	return response.Paged(c, http.StatusOK, nonNil(users), total, p)
}

func (h *Handler) ListPending(c echo.Context) error {
	users, err := h.svc.ListPending(c.Request().Context())
	if err != nil {
		return err
	}
	return response.List(c, http.StatusOK, nonNil(users), len(users))
}

func (h *Handler) UpdateUser(c echo.Context) error {
	id, err := parseID(c)
	if err != nil {
		return err
	}
	var in AdminUpdateInput
	if err := bind(c, &in); err != nil {
		return err
	}
	ctx := c.Request().Context()
	u, err := h.svc.UpdateUser(ctx, id, auth.UserIDFromContext(ctx), in)
	if err != nil {
		return err
	}
	return response.Message(c, http.StatusOK, "User updated successfully", u)
}

func (h *Handler) DeleteUser(c echo.Context) error {
	id, err := parseID(c)
	if err != nil {
		return err
	}
	ctx := c.Request().Context()
	if err := h.svc.DeleteUser(ctx, id, auth.UserIDFromContext(ctx)); err != nil {
		return err
	}
	return response.Message(c, http.StatusOK, "User permanently deleted from database", nil)
}

func (h *Handler) ApproveUser(c echo.Context) error {
	id, err := parseID(c)
	if err != nil {
		return err
	}
	ctx := c.Request().Context()
	u, err := h.svc.ApproveUser(ctx, id, auth.UserIDFromContext(ctx))
	if err != nil {
		return err
	}
	return response.Message(c, http.StatusOK, "User approved successfully. Approval email sent.", u)
}

func (h *Handler) RejectUser(c echo.Context) error {
	id, err := parseID(c)
	if err != nil {
		return err
	}
	if err := h.svc.RejectUser(c.Request().Context(), id); err != nil {
		return err
	}
	return response.Message(c, http.StatusOK, "User registration rejected", nil)
}

func (h *Handler) ActivateUser(c echo.Context) error {
	id, err := parseID(c)
	if err != nil {
		return err
	}
	u, err := h.svc.ActivateUser(c.Request().Context(), id)
	if err != nil {
		return err
	}
	return response.Message(c, http.StatusOK, "User account activated successfully", u)
}

func (h *Handler) DeactivateUser(c echo.Context) error {
	id, err := parseID(c)
	if err != nil {
		return err
	}
	ctx := c.Request().Context()
	u, err := h.svc.DeactivateUser(ctx, id, auth.UserIDFromContext(ctx))
	if err != nil {
		return err
	}
	return response.Message(c, http.StatusOK, "User account deactivated successfully", u)
}

func nonNil(users []*User) []*User {
	if users == nil {
		return []*User{}
	}
	return users
}
