package events

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

func TestNew(t *testing.T) {
	agg := uuid.New()
	actor := uuid.New()
	ev := New(PickupRequested, agg, actor, map[string]string{"status": "pending"})

	if ev.ID == "" {
		t.Error("expected event id")
	}
	if ev.AggregateID != agg.String() || ev.ActorID != actor.String() {
		t.Errorf("unexpected ids %+v", ev)
	}
	var payload map[string]string
	if err := json.Unmarshal(ev.Payload, &payload); err != nil {
		t.Fatal(err)
	}
	if payload["status"] != "pending" {
		t.Errorf("payload = %v", payload)
	}
}

func TestNew_NilActor(t *testing.T) {
	ev := New(DisposalDeleted, uuid.New(), uuid.Nil, nil)
	if ev.ActorID != "" {
		t.Errorf("expected empty actor, got %q", ev.ActorID)
	}
	if ev.Payload != nil {
		t.Errorf("expected nil payload")
	}
}

func TestEmitter_PublishesInBackground(t *testing.T) {
	rec := &Recorder{}
	em := NewEmitter(rec, zerolog.Nop())
	em.Emit(New(DisposalCreated, uuid.New(), uuid.Nil, nil))
	em.Emit(New(DisposalCompleted, uuid.New(), uuid.Nil, nil))
	if err := em.Close(); err != nil {
		t.Fatal(err)
	}
	if len(rec.Events()) != 2 {
		t.Fatalf("expected 2 events, got %d", len(rec.Events()))
	}
}

func TestEmitter_SwallowsErrors(t *testing.T) {
	rec := &Recorder{Err: errors.New("broker down")}
	em := NewEmitter(rec, zerolog.Nop())
	em.Emit(New(PickupCancelled, uuid.New(), uuid.Nil, nil))
	if err := em.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	if len(rec.Events()) != 1 {
		t.Error("expected publish attempt")
	}
}

func TestEmitter_NilSafe(t *testing.T) {
	var em *Emitter
	em.Emit(New(PickupCancelled, uuid.New(), uuid.Nil, nil))
	if err := em.Close(); err != nil {
		t.Fatal(err)
	}
}

func TestNopPublisher(t *testing.T) {
	var p Publisher = NopPublisher{}
	if err := p.Publish(context.Background(), Event{}); err != nil {
		t.Fatal(err)
	}
}

func TestEvent_For(t *testing.T) {
	a, b := uuid.New(), uuid.New()
	ev := New(PickupRequested, uuid.New(), a, nil).For(a, uuid.Nil, b, a)
	if len(ev.Recipients) != 2 || ev.Recipients[0] != a.String() || ev.Recipients[1] != b.String() {
		t.Errorf("recipients = %v", ev.Recipients)
	}
}

func TestFanout(t *testing.T) {
	first := &Recorder{Err: errors.New("down")}
	second := &Recorder{}
	f := Fanout{first, second}

	err := f.Publish(context.Background(), New(DisposalCreated, uuid.New(), uuid.Nil, nil))
	if err == nil {
		t.Error("expected first publisher error to surface")
	}
	if len(second.Events()) != 1 {
		t.Error("expected second publisher to receive the event despite the first failing")
	}
	if err := f.Close(); err != nil {
		t.Errorf("close: %v", err)
	}
}
