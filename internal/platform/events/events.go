// Package events publishes disposal and pickup lifecycle events to an
// external broker. Publishing is best-effort: failures are logged and never
// propagate to the request that produced the event.
package events

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

const (
	DisposalCreated   = "disposal.created"
	DisposalCompleted = "disposal.completed"
	DisposalDeleted   = "disposal.deleted"

	PickupRequested     = "pickup.requested"
	PickupStatusChanged = "pickup.status_changed"
	PickupCancelled     = "pickup.cancelled"
)

type Event struct {
	ID          string          `json:"id"`
	Type        string          `json:"type"`
	AggregateID string          `json:"aggregate_id"`
	ActorID     string          `json:"actor_id,omitempty"`
	Payload     json.RawMessage `json:"payload,omitempty"`
	Recipients  []string        `json:"recipients,omitempty"`
	OccurredAt  time.Time       `json:"occurred_at"`
}

// For returns ev addressed to the given users. Nil ids and repeats are
// skipped.
func (ev Event) For(ids ...uuid.UUID) Event {
	seen := make(map[string]struct{}, len(ev.Recipients))
	for _, r := range ev.Recipients {
		seen[r] = struct{}{}
	}
	for _, id := range ids {
		if id == uuid.Nil {
			continue
		}
		s := id.String()
		if _, ok := seen[s]; ok {
			continue
		}
		seen[s] = struct{}{}
		ev.Recipients = append(ev.Recipients, s)
	}
	return ev
}

// New builds an event, marshalling payload to JSON. A payload that cannot be
// marshalled is dropped rather than failing the caller.
func New(eventType string, aggregateID, actorID uuid.UUID, payload any) Event {
	ev := Event{
		ID:          uuid.New().String(),
		Type:        eventType,
		AggregateID: aggregateID.String(),
		OccurredAt:  time.Now().UTC(),
	}
	if actorID != uuid.Nil {
		ev.ActorID = actorID.String()
	}
	if payload != nil {
		if b, err := json.Marshal(payload); err == nil {
			ev.Payload = b
		}
	}
	return ev
}

type Publisher interface {
	Publish(ctx context.Context, ev Event) error
	Close() error
}

// NopPublisher discards events. Used when EVENTS_BACKEND=none.
type NopPublisher struct{}

func (NopPublisher) Publish(context.Context, Event) error { return nil }
func (NopPublisher) Close() error                         { return nil }

// Fanout publishes every event to each publisher in turn. All publishers are
// attempted; their errors are joined.
type Fanout []Publisher

func (f Fanout) Publish(ctx context.Context, ev Event) error {
	var errs []error
	for _, p := range f {
		if err := p.Publish(ctx, ev); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (f Fanout) Close() error {
	var errs []error
	for _, p := range f {
		if err := p.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Emitter publishes on a background goroutine with its own timeout so the
// request path never waits on the broker.
type Emitter struct {
	pub     Publisher
	logger  zerolog.Logger
	timeout time.Duration
	wg      sync.WaitGroup
}

func NewEmitter(pub Publisher, logger zerolog.Logger) *Emitter {
	if pub == nil {
		pub = NopPublisher{}
	}
	return &Emitter{pub: pub, logger: logger, timeout: 10 * time.Second}
}

// Emit is safe to call on a nil *Emitter.
func (e *Emitter) Emit(ev Event) {
	if e == nil {
		return
	}
	e.wg.Add(1)
	go func() {
		defer e.wg.Done()
		ctx, cancel := context.WithTimeout(context.Background(), e.timeout)
		defer cancel()
		if err := e.pub.Publish(ctx, ev); err != nil {
			e.logger.Warn().Err(err).
				Str("event", ev.Type).
				Str("aggregate_id", ev.AggregateID).
				Msg("publish event failed")
		}
	}()
}

// Close waits for in-flight publishes and closes the publisher.
func (e *Emitter) Close() error {
	if e == nil {
		return nil
	}
	e.wg.Wait()
	return e.pub.Close()
}

// Recorder keeps published events in memory for tests.
type Recorder struct {
	mu     sync.Mutex
	events []Event
	Err    error
}

func (r *Recorder) Publish(_ context.Context, ev Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, ev)
	return r.Err
}

func (r *Recorder) Close() error { return nil }

func (r *Recorder) Events() []Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Event, len(r.events))
	copy(out, r.events)
	return out
}

// Types returns the recorded event types in publish order.
func (r *Recorder) Types() []string {
	evs := r.Events()
	out := make([]string, len(evs))
	for i, ev := range evs {
		out[i] = ev.Type
	}
	return out
}
