package bus

import (
	"context"
	"encoding/json"
	"fmt"
	"time"
)

// Envelope is the wire format for events on both topics.
type Envelope struct {
	ID         string          `json:"id"`
	Type       string          `json:"type"`
	Sender     string          `json:"sender"`
	OccurredAt time.Time       `json:"occurred_at"`
	Payload    json.RawMessage `json:"payload"`
}

// Publisher sends outbound domain events to the bus.
type Publisher interface {
	Publish(ctx context.Context, eventType string, key string, payload interface{}) error
}

// HandlerFunc processes one inbound event payload. Errors propagate to the
// transport's redelivery policy.
type HandlerFunc func(ctx context.Context, payload json.RawMessage) error

// Registry is the static mapping from event-type tag to handler, built once
// at startup. Dispatch is a plain lookup.
type Registry struct {
	handlers map[string]HandlerFunc
}

func NewRegistry() *Registry {
	return &Registry{handlers: make(map[string]HandlerFunc)}
}

// On registers the handler for an event type. Registering the same type
// twice panics; that is a wiring bug.
func (r *Registry) On(eventType string, h HandlerFunc) {
	if _, exists := r.handlers[eventType]; exists {
		panic(fmt.Sprintf("bus: handler already registered for %s", eventType))
	}
	r.handlers[eventType] = h
}

// Dispatch routes an envelope to its handler. Unknown event types are
// ignored; the inbound topic is shared with other consumers.
func (r *Registry) Dispatch(ctx context.Context, env Envelope) error {
	h, ok := r.handlers[env.Type]
	if !ok {
		return nil
	}
	return h(ctx, env.Payload)
}

// Handles reports whether a handler is registered for the event type.
func (r *Registry) Handles(eventType string) bool {
	_, ok := r.handlers[eventType]
	return ok
}
