package user

import (
	"context"
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

func newTestHandler(t *testing.T) (*Handler, *testEnv, *echo.Echo) {
	env := newTestEnv(t)
	return NewHandler(env.svc), env, echo.New()
}

func jsonRequest(method, target, body string) *http.Request {
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	return req
}

func asUser(req *http.Request, id uuid.UUID, role string) *http.Request {
	return req.WithContext(auth.WithUser(req.Context(), id, role))
}

type envelope struct {
	Success    bool            `json:"success"`
	Message    string          `json:"message"`
	Data       json.RawMessage `json:"data"`
	Pagination *struct {
		Total int `json:"total"`
		Pages int `json:"pages"`
	} `json:"pagination"`
}

func decode(t *testing.T, rec *httptest.ResponseRecorder) envelope {
	t.Helper()
	var env envelope
	if err := json.Unmarshal(rec.Body.Bytes(), &env); err != nil {
		t.Fatalf("invalid JSON %q: %v", rec.Body.String(), err)
	}
	return env
}

func TestHandler_Register(t *testing.T) {
	h, _, e := newTestHandler(t)

	body := `{"name":"Alice","email":"alice@example.com","password":"secret123","role":"chw"}`
	rec := httptest.NewRecorder()
	c := e.NewContext(jsonRequest(http.MethodPost, "/api/auth/register", body), rec)

	if err := h.Register(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rec.Code != http.StatusCreated {
		t.Errorf("expected 201, got %d", rec.Code)
	}
	env := decode(t, rec)
	if !env.Success || !strings.Contains(env.Message, "pending approval") {
		t.Errorf("unexpected envelope %+v", env)
	}
	var data struct {
		User  User   `json:"user"`
		Token string `json:"token"`
	}
	json.Unmarshal(env.Data, &data)
	if data.Token != "" || data.User.Role != auth.RoleCHW {
		t.Errorf("unexpected data %+v", data)
	}
}

func TestHandler_Register_GovDomainRejected(t *testing.T) {
	h, _, e := newTestHandler(t)
	body := `{"name":"Alice","email":"alice@umutisafe.gov.rw","password":"secret123"}`
	c := e.NewContext(jsonRequest(http.MethodPost, "/api/auth/register", body), httptest.NewRecorder())

	err := h.Register(c)
	if !apperror.Is(err, apperror.KindValidation) {
		t.Errorf("expected validation error, got %v", err)
	}
}

func TestHandler_Login(t *testing.T) {
	h, env, e := newTestHandler(t)
	env.seed(t, "Bea", "bea@example.com", auth.RoleUser, true, true)

	rec := httptest.NewRecorder()
	c := e.NewContext(jsonRequest(http.MethodPost, "/api/auth/login", `{"email":"bea@example.com","password":"secret123"}`), rec)
	if err := h.Login(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	var data LoginResult
	json.Unmarshal(decode(t, rec).Data, &data)
	if data.Token == "" || data.User == nil || data.User.Email != "bea@example.com" {
		t.Errorf("unexpected login result %+v", data)
	}
	if strings.Contains(rec.Body.String(), "password") {
		t.Error("response must not contain the password hash")
	}
}

func TestHandler_Login_Pending(t *testing.T) {
	h, env, e := newTestHandler(t)
	env.seed(t, "Cid", "cid@example.com", auth.RoleUser, false, true)

	c := e.NewContext(jsonRequest(http.MethodPost, "/api/auth/login", `{"email":"cid@example.com","password":"secret123"}`), httptest.NewRecorder())
	err := h.Login(c)
	if apperror.KindOf(err).Status() != http.StatusForbidden {
		t.Errorf("expected 403, got %v", err)
	}
}

func TestHandler_Me(t *testing.T) {
	h, env, e := newTestHandler(t)
	u := env.seed(t, "Dee", "dee@example.com", auth.RoleUser, true, true)

	req := asUser(httptest.NewRequest(http.MethodGet, "/api/auth/me", nil), u.ID, auth.RoleUser)
	rec := httptest.NewRecorder()
	if err := h.Me(e.NewContext(req, rec)); err != nil {
		t.Fatal(err)
	}
	var got User
	json.Unmarshal(decode(t, rec).Data, &got)
	if got.ID != u.ID {
		t.Errorf("expected %s, got %s", u.ID, got.ID)
	}
}

func TestHandler_Logout(t *testing.T) {
	h, env, e := newTestHandler(t)
	u := env.seed(t, "Eli", "eli@example.com", auth.RoleUser, true, true)
	_, claims, _ := env.tokens.Issue(u.ID, u.Role)

	req := httptest.NewRequest(http.MethodPost, "/api/auth/logout", nil)
	ctx := auth.WithUser(req.Context(), u.ID, u.Role)
	ctx = context.WithValue(ctx, auth.TokenIDKey, claims.ID)
	ctx = context.WithValue(ctx, auth.TokenExpKey, claims.ExpiresAt.Time)
	rec := httptest.NewRecorder()

	if err := h.Logout(e.NewContext(req.WithContext(ctx), rec)); err != nil {
		t.Fatal(err)
	}
	revoked, _ := env.revoked.IsRevoked(context.Background(), claims.ID)
	if !revoked {
		t.Error("expected token to be revoked after logout")
	}
}

func TestHandler_ApproveUser(t *testing.T) {
	h, env, e := newTestHandler(t)
	admin := env.seed(t, "Admin", "admin@umutisafe.gov.rw", auth.RoleAdmin, true, true)
	u := env.seed(t, "Fay", "fay@example.com", auth.RoleUser, false, true)

	req := asUser(httptest.NewRequest(http.MethodPut, "/", nil), admin.ID, auth.RoleAdmin)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	c.SetParamNames("id")
	c.SetParamValues(u.ID.String())
	if err := h.ApproveUser(c); err != nil {
		t.Fatal(err)
	}
	if rec.Code != http.StatusOK {
		t.Errorf("expected 200, got %d", rec.Code)
	}

	c = e.NewContext(req, httptest.NewRecorder())
	c.SetParamNames("id")
	c.SetParamValues(u.ID.String())
	if err := h.ApproveUser(c); apperror.KindOf(err).Status() != http.StatusConflict {
		t.Errorf("expected 409, got %v", err)
	}
}

func TestHandler_DeactivateSelf(t *testing.T) {
	h, env, e := newTestHandler(t)
	admin := env.seed(t, "Admin", "admin@umutisafe.gov.rw", auth.RoleAdmin, true, true)

	req := asUser(httptest.NewRequest(http.MethodPut, "/", nil), admin.ID, auth.RoleAdmin)
	c := e.NewContext(req, httptest.NewRecorder())
	c.SetParamNames("id")
	c.SetParamValues(admin.ID.String())
	if err := h.DeactivateUser(c); apperror.KindOf(err).Status() != http.StatusBadRequest {
		t.Errorf("expected 400, got %v", err)
	}
}

func TestHandler_InvalidID(t *testing.T) {
	h, _, e := newTestHandler(t)
	c := e.NewContext(httptest.NewRequest(http.MethodGet, "/", nil), httptest.NewRecorder())
	c.SetParamNames("id")
	c.SetParamValues("not-a-uuid")
	if err := h.GetCHW(c); !apperror.Is(err, apperror.KindValidation) {
		t.Errorf("expected validation error, got %v", err)
	}
}

func TestHandler_ListUsers_Paginated(t *testing.T) {
	h, env, e := newTestHandler(t)
	for i := 0; i < 3; i++ {
		env.seed(t, "User"+string(rune('A'+i)), "u"+string(rune('a'+i))+"@example.com", auth.RoleUser, true, true)
	}

	req := httptest.NewRequest(http.MethodGet, "/api/admin/users?limit=2&page=1", nil)
	rec := httptest.NewRecorder()
	if err := h.ListUsers(e.NewContext(req, rec)); err != nil {
		t.Fatal(err)
	}
	env2 := decode(t, rec)
	if env2.Pagination == nil || env2.Pagination.Total != 3 || env2.Pagination.Pages != 2 {
		t.Errorf("unexpected pagination %+v", env2.Pagination)
	}
	var users []User
	json.Unmarshal(env2.Data, &users)
	if len(users) != 2 {
		t.Errorf("expected 2 users on page, got %d", len(users))
	}
}

func TestHandler_ListCHWs_Empty(t *testing.T) {
	h, _, e := newTestHandler(t)
	rec := httptest.NewRecorder()
	if err := h.ListCHWs(e.NewContext(httptest.NewRequest(http.MethodGet, "/api/chws", nil), rec)); err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(rec.Body.String(), `"data":[]`) {
		t.Errorf("expected empty array, got %s", rec.Body.String())
	}
}
