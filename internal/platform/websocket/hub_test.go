package websocket

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	gorillawebsocket "github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/umutisafe/api/internal/platform/auth"
	"github.com/umutisafe/api/internal/platform/events"
)

func TestHub_RegisterUnregister(t *testing.T) {
	hub := NewHub(zerolog.Nop())
	a := newClient("user-1")
	b := newClient("user-1")

	hub.Register(a)
	hub.Register(b)
	if hub.ClientCount() != 2 || hub.UserCount("user-1") != 2 {
		t.Fatalf("expected 2 connections for user-1, got %d", hub.UserCount("user-1"))
	}

	hub.Unregister(a)
	hub.Unregister(a)
	if hub.UserCount("user-1") != 1 {
		t.Errorf("expected 1 connection left, got %d", hub.UserCount("user-1"))
	}
	if _, ok := <-a.Send; ok {
		t.Error("expected send channel to be closed")
	}
}

func TestHub_PublishToRecipients(t *testing.T) {
	hub := NewHub(zerolog.Nop())
	requester := uuid.New()
	chw := uuid.New()
	other := uuid.New()

	rc := newClient(requester.String())
	cc := newClient(chw.String())
	oc := newClient(other.String())
	hub.Register(rc)
	hub.Register(cc)
	hub.Register(oc)

	ev := events.New(events.PickupRequested, uuid.New(), requester, nil).For(requester, chw)
	if err := hub.Publish(context.Background(), ev); err != nil {
		t.Fatal(err)
	}

	for _, c := range []*Client{rc, cc} {
		select {
		case msg := <-c.Send:
			var got events.Event
			if err := json.Unmarshal(msg, &got); err != nil {
				t.Fatal(err)
			}
			if got.ID != ev.ID {
				t.Errorf("unexpected event %+v", got)
			}
		default:
			t.Errorf("expected %s to receive the event", c.UserID)
		}
	}
	select {
	case <-oc.Send:
		t.Error("unaddressed user must not receive the event")
	default:
	}
}

func TestHub_PublishWithoutRecipients(t *testing.T) {
	hub := NewHub(zerolog.Nop())
	c := newClient(uuid.NewString())
	hub.Register(c)

	if err := hub.Publish(context.Background(), events.New(events.DisposalCreated, uuid.New(), uuid.Nil, nil)); err != nil {
		t.Fatal(err)
	}
	if len(c.Send) != 0 {
		t.Error("expected no delivery without recipients")
	}
}

func TestHub_FullBufferDoesNotBlock(t *testing.T) {
	hub := NewHub(zerolog.Nop())
	user := uuid.New()
	c := newClient(user.String())
	hub.Register(c)

	done := make(chan struct{})
	go func() {
		for i := 0; i < sendBuffer+10; i++ {
			_ = hub.Publish(context.Background(), events.New(events.DisposalCreated, uuid.New(), uuid.Nil, nil).For(user))
		}
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("publish blocked on a full client buffer")
	}
	if len(c.Send) != sendBuffer {
		t.Errorf("expected buffer to hold %d events, got %d", sendBuffer, len(c.Send))
	}
}

func TestHub_Close(t *testing.T) {
	hub := NewHub(zerolog.Nop())
	c := newClient("u")
	hub.Register(c)
	if err := hub.Close(); err != nil {
		t.Fatal(err)
	}
	if hub.ClientCount() != 0 {
		t.Error("expected no clients after close")
	}
	hub.Unregister(c)
}

func TestOriginChecker(t *testing.T) {
	check := originChecker([]string{"https://app.umutisafe.rw"})
	req := httptest.NewRequest(http.MethodGet, "/", nil)

	if !check(req) {
		t.Error("expected request without origin to pass")
	}
	req.Header.Set("Origin", "https://app.umutisafe.rw")
	if !check(req) {
		t.Error("expected allowed origin to pass")
	}
	req.Header.Set("Origin", "https://evil.example.com")
	if check(req) {
		t.Error("expected foreign origin to be rejected")
	}
	if !originChecker([]string{"*"})(req) {
		t.Error("expected wildcard to accept any origin")
	}
}

func TestHandler_Connect_Unauthenticated(t *testing.T) {
	h := NewHandler(NewHub(zerolog.Nop()), nil)
	e := echo.New()
	c := e.NewContext(httptest.NewRequest(http.MethodGet, "/api/live", nil), httptest.NewRecorder())

	err := h.Connect(c)
	he, ok := err.(*echo.HTTPError)
	if !ok || he.Code != http.StatusUnauthorized {
		t.Errorf("expected 401, got %v", err)
	}
}

func TestHandler_DeliversOverWebSocket(t *testing.T) {
	hub := NewHub(zerolog.Nop())
	user := uuid.New()

	e := echo.New()
	withUser := func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			c.SetRequest(c.Request().WithContext(auth.WithUser(c.Request().Context(), user, auth.RoleUser)))
			return next(c)
		}
	}
	NewHandler(hub, nil).RegisterRoutes(e.Group("/api"), withUser)
	srv := httptest.NewServer(e)
	defer srv.Close()

	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http") + "/api/live"
	conn, _, err := gorillawebsocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	deadline := time.Now().Add(2 * time.Second)
	for hub.UserCount(user.String()) == 0 {
		if time.Now().After(deadline) {
			t.Fatal("client never registered")
		}
		time.Sleep(10 * time.Millisecond)
	}

	ev := events.New(events.PickupStatusChanged, uuid.New(), uuid.Nil, map[string]string{"to": "scheduled"}).For(user)
	if err := hub.Publish(context.Background(), ev); err != nil {
		t.Fatal(err)
	}

	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, msg, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	var got events.Event
	if err := json.Unmarshal(msg, &got); err != nil {
		t.Fatal(err)
	}
	if got.ID != ev.ID || got.Type != events.PickupStatusChanged {
		t.Errorf("unexpected event %+v", got)
	}
}
