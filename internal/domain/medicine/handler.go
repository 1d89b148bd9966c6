package medicine

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/umutisafe/api/internal/platform/apperror"
	"github.com/umutisafe/api/internal/platform/auth"
	"github.com/umutisafe/api/internal/platform/blobstore"
	"github.com/umutisafe/api/pkg/pagination"
	"github.com/umutisafe/api/pkg/response"
)

type Handler struct {
	svc        *Service
	maxCSVSize int64
}

// NewHandler builds the registry handler. maxCSVSize caps uploaded CSV
// files; zero selects blobstore.DefaultMaxCSVSize.
func NewHandler(svc *Service, maxCSVSize int64) *Handler {
	if maxCSVSize <= 0 {
		maxCSVSize = blobstore.DefaultMaxCSVSize
	}
	return &Handler{svc: svc, maxCSVSize: maxCSVSize}
}

func (h *Handler) RegisterRoutes(api *echo.Group, requireAuth echo.MiddlewareFunc) {
	admin := []echo.MiddlewareFunc{requireAuth, auth.RequireRole(auth.RoleAdmin)}

	g := api.Group("/medicines")
	g.GET("", h.List)
	g.GET("/search", h.Search)
	g.POST("/predict/text", h.PredictFromText)
	g.POST("/upload-csv", h.UploadCSV, admin...)
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
	p := pagination.FromContext(c, DefaultPageSize)
	f := ListFilter{
		Search:    c.QueryParam("search"),
		Category:  c.QueryParam("category"),
		RiskLevel: c.QueryParam("riskLevel"),
	}
	meds, total, err := h.svc.List(c.Request().Context(), f, p.Limit, p.Offset)
	if err != nil {
		return err
	}
	if meds == nil {
		meds = []*Medicine{}
	}
	return response.Paged(c, http.StatusOK, meds, total, p)
}

func (h *Handler) Search(c echo.Context) error {
	meds, err := h.svc.Search(c.Request().Context(), c.QueryParam("q"))
	if err != nil {
		return err
	}
	return response.OK(c, http.StatusOK, meds)
}

func (h *Handler) Get(c echo.Context) error {
	id, err := parseID(c)
	if err != nil {
		return err
	}
	m, err := h.svc.Get(c.Request().Context(), id)
	if err != nil {
		return err
	}
	return response.OK(c, http.StatusOK, m)
}

func (h *Handler) Create(c echo.Context) error {
	var in Input
	if err := c.Bind(&in); err != nil {
		return apperror.Validation("invalid request body").Wrap(err)
	}
	m, err := h.svc.Create(c.Request().Context(), in)
	if err != nil {
		return err
	}
	return response.Message(c, http.StatusCreated, "Medicine created successfully", m)
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
	m, err := h.svc.Update(c.Request().Context(), id, in)
	if err != nil {
		return err
	}
	return response.Message(c, http.StatusOK, "Medicine updated successfully", m)
}

func (h *Handler) Delete(c echo.Context) error {
	id, err := parseID(c)
	if err != nil {
		return err
	}
	if err := h.svc.Delete(c.Request().Context(), id); err != nil {
		return err
	}
	return response.Message(c, http.StatusOK, "Medicine deleted successfully", nil)
}

func (h *Handler) PredictFromText(c echo.Context) error {
	var in PredictInput
	if err := c.Bind(&in); err != nil {
		return apperror.Validation("invalid request body").Wrap(err)
	}
	p, err := h.svc.PredictFromText(c.Request().Context(), in)
	if err != nil {
		return err
	}
	return response.OK(c, http.StatusOK, p)
}

// UploadCSV takes a multipart "file" and an optional mode (query or form
// field), defaulting to replace.
func (h *Handler) UploadCSV(c echo.Context) error {
	modeRaw := c.QueryParam("mode")
	if modeRaw == "" {
		modeRaw = c.FormValue("mode")
	}
	mode, ok := ParseImportMode(modeRaw)
	if !ok {
		return apperror.Validation(`mode must be "replace" or "append"`)
	}

	fh, err := c.FormFile("file")
	if err != nil {
		return apperror.Validation("Please upload a CSV file")
	}
	data, err := blobstore.ReadCSV(fh, h.maxCSVSize)
	switch {
	case errors.Is(err, blobstore.ErrNotCSV):
		return apperror.Validation("Only CSV files are allowed")
	case errors.Is(err, blobstore.ErrFileTooLarge):
		return apperror.Validation(fmt.Sprintf("CSV file exceeds the %d byte limit", h.maxCSVSize))
	case err != nil:
		return err
	}

	res, err := h.svc.ImportCSV(c.Request().Context(), data, mode)
	if err != nil {
		return err
	}
	msg := fmt.Sprintf("Imported %d medicines (%d created, %d updated, %d skipped)",
		res.Created+res.Updated, res.Created, res.Updated, res.Skipped)
	return response.Message(c, http.StatusOK, msg, res)
}
