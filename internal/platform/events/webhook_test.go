package events

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
)

func TestSignPayload_Verify(t *testing.T) {
	payload := []byte(`{"type":"pickup.requested"}`)
	sig := SignPayload(payload, "s3cret")
	if !VerifySignature(payload, "s3cret", sig) {
		t.Error("expected signature to verify")
	}
	if VerifySignature(payload, "other", sig) {
		t.Error("expected signature under another secret to fail")
	}
}

func TestNewWebhookPublisher_RejectsBadURL(t *testing.T) {
	for _, u := range []string{"", "ftp://example.com/hook", "://bad"} {
		if _, err := NewWebhookPublisher(u, "s"); err == nil {
			t.Errorf("expected %q to be rejected", u)
		}
	}
}

func TestWebhookPublisher_Publish(t *testing.T) {
	var got Event
	var sigHeader string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		sigHeader = r.Header.Get("X-Webhook-Signature")
		if !VerifySignature(body, "s3cret", strings.TrimPrefix(sigHeader, "sha256=")) {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		_ = json.Unmarshal(body, &got)
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	p, err := NewWebhookPublisher(srv.URL, "s3cret", WithRetryDelays())
	if err != nil {
		t.Fatal(err)
	}
	ev := New(DisposalCreated, uuid.New(), uuid.New(), nil)
	if err := p.Publish(context.Background(), ev); err != nil {
		t.Fatalf("publish: %v", err)
	}
	if got.ID != ev.ID || got.Type != DisposalCreated {
		t.Errorf("unexpected delivered event %+v", got)
	}
	if !strings.HasPrefix(sigHeader, "sha256=") {
		t.Errorf("signature header = %q", sigHeader)
	}
}

func TestWebhookPublisher_RetriesThenFails(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	p, _ := NewWebhookPublisher(srv.URL, "s", WithRetryDelays(time.Millisecond, time.Millisecond))
	err := p.Publish(context.Background(), New(PickupCancelled, uuid.New(), uuid.Nil, nil))
	if err == nil {
		t.Fatal("expected error after exhausting retries")
	}
	if n := atomic.LoadInt32(&calls); n != 3 {
		t.Errorf("expected 3 attempts, got %d", n)
	}
}

func TestWebhookPublisher_RecoversOnRetry(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) == 1 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	p, _ := NewWebhookPublisher(srv.URL, "s", WithRetryDelays(time.Millisecond))
	if err := p.Publish(context.Background(), New(PickupRequested, uuid.New(), uuid.Nil, nil)); err != nil {
		t.Fatalf("expected retry to succeed, got %v", err)
	}
}
