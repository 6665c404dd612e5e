// Package events is the in-process fan-out for facts about manual review
// tasks. Publishers emit an event only after the state change it describes
// is committed; subscribers observe (metrics, audit log) and never feed back
// into the operation that published.
package events

import (
	"context"
	"time"
)

// Event is a committed fact. EventName is the subscription key and is
// stable across releases since it labels metrics.
type Event interface {
	EventName() string
	OccurredAt() time.Time
}

// BaseEvent carries the commit timestamp, always in UTC.
type BaseEvent struct {
	Timestamp time.Time `json:"occurredAt"`
}

func (e BaseEvent) OccurredAt() time.Time {
	return e.Timestamp
}

// NewBaseEvent stamps an event with the current UTC time.
func NewBaseEvent() BaseEvent {
	return BaseEvent{Timestamp: time.Now().UTC()}
}

// Handler observes one event type. Errors from an asynchronous Publish are
// logged; only PublishSync hands them back to the caller.
type Handler interface {
	Handle(ctx context.Context, event Event) error
}

type HandlerFunc func(ctx context.Context, event Event) error

func (f HandlerFunc) Handle(ctx context.Context, event Event) error {
	return f(ctx, event)
}

// Bus delivers events to subscribers keyed by EventName.
type Bus interface {
	// Publish hands the event to subscribers without waiting; the caller's
	// request or consumer loop is never slowed by an observer.
	Publish(ctx context.Context, event Event)

	// PublishSync runs subscribers inline and joins their errors. Used where
	// ordering against the caller matters, such as tests and shutdown drains.
	PublishSync(ctx context.Context, event Event) error

	Subscribe(eventName string, handler Handler)
}
