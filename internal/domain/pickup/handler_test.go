package pickup

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/umutisafe/api/internal/platform/apperror"
	"github.com/umutisafe/api/internal/platform/auth"
)

func as(req *http.Request, id uuid.UUID, role string) *http.Request {
	return req.WithContext(auth.WithUser(req.Context(), id, role))
}

func decodePickup(t *testing.T, rec *httptest.ResponseRecorder) Pickup {
	t.Helper()
	var env struct {
		Success bool   `json:"success"`
		Data    Pickup `json:"data"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &env); err != nil {
		t.Fatalf("invalid JSON %q: %v", rec.Body.String(), err)
	}
	return env.Data
}

func TestHandler_Create(t *testing.T) {
	env := newTestEnv(t)
	h := NewHandler(env.svc)
	e := echo.New()
	chw := env.chws.add(auth.RoleCHW, true)
	requester := uuid.New()

	body := `{"chwId":"` + chw.String() + `","medicineName":"Ibuprofen","reason":"expired",` +
		`"pickupLocation":"Remera","preferredTime":"2026-04-01T09:00:00Z","consentGiven":true}`
	req := httptest.NewRequest(http.MethodPost, "/api/pickups", strings.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	if err := h.Create(e.NewContext(as(req, requester, auth.RoleUser), rec)); err != nil {
		t.Fatal(err)
	}
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d", rec.Code)
	}
	p := decodePickup(t, rec)
	if p.UserID != requester || p.CHWID != chw || p.Status != StatusPending {
		t.Errorf("unexpected pickup %+v", p)
	}
}

func TestHandler_CreateWithoutConsent(t *testing.T) {
	env := newTestEnv(t)
	h := NewHandler(env.svc)
	e := echo.New()
	chw := env.chws.add(auth.RoleCHW, true)

	body := `{"chwId":"` + chw.String() + `","medicineName":"Ibuprofen","reason":"expired",` +
		`"pickupLocation":"Remera","preferredTime":"2026-04-01T09:00:00Z","consentGiven":false}`
	req := httptest.NewRequest(http.MethodPost, "/api/pickups", strings.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	err := h.Create(e.NewContext(as(req, uuid.New(), auth.RoleUser), httptest.NewRecorder()))
	assertKind(t, err, apperror.KindValidation)
}

func TestHandler_CancelAndStatus(t *testing.T) {
	env := newTestEnv(t)
	h := NewHandler(env.svc)
	e := echo.New()
	owner := uuid.New()
	p := env.seed(t, owner, nil)

	req := httptest.NewRequest(http.MethodPut, "/api/pickups/"+p.ID.String()+"/status",
		strings.NewReader(`{"status":"scheduled"}`))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	c := e.NewContext(as(req, p.CHWID, auth.RoleCHW), rec)
	c.SetParamNames("id")
	c.SetParamValues(p.ID.String())
	if err := h.UpdateStatus(c); err != nil {
		t.Fatal(err)
	}
	if got := decodePickup(t, rec); got.Status != StatusScheduled {
		t.Errorf("expected scheduled, got %s", got.Status)
	}

	req = httptest.NewRequest(http.MethodPut, "/api/pickups/"+p.ID.String()+"/cancel", nil)
	rec = httptest.NewRecorder()
	c = e.NewContext(as(req, owner, auth.RoleUser), rec)
	c.SetParamNames("id")
	c.SetParamValues(p.ID.String())
	if err := h.Cancel(c); err != nil {
		t.Fatal(err)
	}
	if got := decodePickup(t, rec); got.Status != StatusCancelled {
		t.Errorf("expected cancelled, got %s", got.Status)
	}
}

func TestHandler_ListForCHWEmpty(t *testing.T) {
	env := newTestEnv(t)
	h := NewHandler(env.svc)
	e := echo.New()

	req := httptest.NewRequest(http.MethodGet, "/api/pickups/chw", nil)
	rec := httptest.NewRecorder()
	if err := h.ListForCHW(e.NewContext(as(req, uuid.New(), auth.RoleCHW), rec)); err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(rec.Body.String(), `"data":[]`) {
		t.Errorf("expected empty array, got %s", rec.Body.String())
	}
}

func TestHandler_InvalidID(t *testing.T) {
	env := newTestEnv(t)
	h := NewHandler(env.svc)
	e := echo.New()

	req := httptest.NewRequest(http.MethodGet, "/api/pickups/nope", nil)
	c := e.NewContext(as(req, uuid.New(), auth.RoleUser), httptest.NewRecorder())
	c.SetParamNames("id")
	c.SetParamValues("nope")
	assertKind(t, h.Get(c), apperror.KindValidation)
}
