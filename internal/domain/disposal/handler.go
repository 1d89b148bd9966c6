package disposal

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/umutisafe/api/internal/platform/apperror"
	"github.com/umutisafe/api/internal/platform/auth"
	"github.com/umutisafe/api/internal/platform/blobstore"
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
	g := api.Group("/disposals", requireAuth)
	g.GET("", h.List)
	g.POST("", h.Create)
	g.GET("/stats", h.Stats)
	g.GET("/:id", h.Get)
	g.PUT("/:id", h.Update)
	g.DELETE("/:id", h.Delete)
}

func parseID(c echo.Context) (uuid.UUID, error) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return uuid.Nil, apperror.Validation("invalid id")
	}
	return id, nil
}

func nonNil(ds []*Disposal) []*Disposal {
	if ds == nil {
		return []*Disposal{}
	}
	return ds
}

// formInput reads a multipart create request, where every field arrives as
// a string form value.
func formInput(c echo.Context) (CreateInput, error) {
	str := func(name string) *string {
		v := c.FormValue(name)
		if v == "" {
			return nil
		}
		return &v
	}
	var badNumber string
	num := func(name string) *float64 {
		v := strings.TrimSpace(c.FormValue(name))
		if v == "" {
			return nil
		}
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			badNumber = name
			return nil
		}
		return &f
	}

	in := CreateInput{
		GenericName:                 c.FormValue("genericName"),
		BrandName:                   str("brandName"),
		DosageForm:                  str("dosageForm"),
		PackagingType:               str("packagingType"),
		MedicineName:                str("medicineName"),
		PredictedCategory:           str("predictedCategory"),
		PredictedCategoryConfidence: num("predictedCategoryConfidence"),
		RiskLevel:                   str("riskLevel"),
		Confidence:                  num("confidence"),
		Reason:                      str("reason"),
		Notes:                       str("notes"),
		DisposalGuidance:            str("disposalGuidance"),
		HandlingMethod:              str("handlingMethod"),
		DisposalRemarks:             str("disposalRemarks"),
		CategoryCode:                str("categoryCode"),
		CategoryLabel:               str("categoryLabel"),
		SimilarGenericName:          str("similarGenericName"),
		SimilarityDistance:          num("similarityDistance"),
		PredictionInputType:         str("predictionInputType"),
		PredictionSource:            str("predictionSource"),
		ModelVersion:                str("modelVersion"),
		Analysis:                    str("analysis"),
		ImageURL:                    str("imageUrl"),
	}
	if badNumber != "" {
		return in, apperror.Validation(badNumber + " must be a number")
	}
	if raw := c.FormValue("metadata"); raw != "" {
		if !json.Valid([]byte(raw)) {
			return in, apperror.Validation("metadata must be valid JSON")
		}
		in.Metadata = json.RawMessage(raw)
	}
	return in, nil
}

func isMultipart(c echo.Context) bool {
	return strings.HasPrefix(c.Request().Header.Get(echo.HeaderContentType), echo.MIMEMultipartForm)
}

// Create accepts JSON, or multipart with an optional "image" file.
func (h *Handler) Create(c echo.Context) error {
	var (
		in  CreateInput
		img *blobstore.Upload
		err error
	)
	if isMultipart(c) {
		if in, err = formInput(c); err != nil {
			return err
		}
		if fh, ferr := c.FormFile("image"); ferr == nil {
			img, err = blobstore.ReadImage(fh)
			switch {
			case errors.Is(err, blobstore.ErrInvalidContentType):
				return apperror.Validation("Only image files are allowed")
			case errors.Is(err, blobstore.ErrFileTooLarge):
				return apperror.Validation("Image exceeds the 5MB limit")
			case err != nil:
				return err
			}
		}
	} else if err := c.Bind(&in); err != nil {
		return apperror.Validation("invalid request body").Wrap(err)
	}

	ctx := c.Request().Context()
	d, err := h.svc.Create(ctx, auth.UserIDFromContext(ctx), in, img)
	if err != nil {
		return err
	}
	return response.Message(c, http.StatusCreated, "Disposal created successfully", d)
}

func (h *Handler) List(c echo.Context) error {
	p := pagination.FromContext(c, DefaultPageSize)
	f := ListFilter{Status: c.QueryParam("status"), RiskLevel: c.QueryParam("riskLevel")}
	ctx := c.Request().Context()
	ds, total, err := h.svc.ListMine(ctx, auth.UserIDFromContext(ctx), f, p.Limit, p.Offset)
	if err != nil {
		return err
	}
	return response.Paged(c, http.StatusOK, nonNil(ds), total, p)
}

func (h *Handler) Get(c echo.Context) error {
	id, err := parseID(c)
	if err != nil {
		return err
	}
	ctx := c.Request().Context()
	d, err := h.svc.Get(ctx, id, auth.UserIDFromContext(ctx))
	if err != nil {
		return err
	}
	return response.OK(c, http.StatusOK, d)
}

func (h *Handler) Update(c echo.Context) error {
	id, err := parseID(c)
	if err != nil {
		return err
	}
	var in UpdateInput
	if err := c.Bind(&in); err != nil {
		return apperror.Validation("invalid request body").Wrap(err)
	}
	ctx := c.Request().Context()
	d, err := h.svc.Update(ctx, id, auth.UserIDFromContext(ctx), in)
	if err != nil {
		return err
	}
	return response.Message(c, http.StatusOK, "Disposal updated successfully", d)
}

func (h *Handler) Delete(c echo.Context) error {
	id, err := parseID(c)
	if err != nil {
		return err
	}
	ctx := c.Request().Context()
	if err := h.svc.Delete(ctx, id, auth.UserIDFromContext(ctx)); err != nil {
		return err
	}
	return response.Message(c, http.StatusOK, "Disposal deleted successfully", nil)
}

func (h *Handler) Stats(c echo.Context) error {
	ctx := c.Request().Context()
	s, err := h.svc.Stats(ctx, auth.UserIDFromContext(ctx))
	if err != nil {
		return err
	}
	return response.OK(c, http.StatusOK, s)
}
