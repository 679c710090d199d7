package webhook

import (
	"context"
	"sync"

	"github.com/qazuor/qzpay-sub003/internal/logger"
)

// Handler processes a verified webhook event
type Handler func(ctx context.Context, event *Event) error

// DispatchResult reports what happened to a single event
type DispatchResult struct {
	Processed bool   `json:"processed"`
	Error     string `json:"error,omitempty"`
}

// Dispatcher routes events to handlers registered by type. Handler
// panics and errors are contained; they never propagate to the caller.
type Dispatcher struct {
	mu       sync.RWMutex
	handlers map[string]Handler
	logger   *logger.Logger
}

func NewDispatcher(log *logger.Logger) *Dispatcher {
	return &Dispatcher{
		handlers: make(map[string]Handler),
		logger:   log,
	}
}

// Register sets the handler for an event type, replacing any previous one
func (d *Dispatcher) Register(eventType string, h Handler) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.handlers[eventType] = h
}

func (d *Dispatcher) Unregister(eventType string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	delete(d.handlers, eventType)
}

// Process runs the handler registered for the event's type. An unknown
// type is not an error at the transport level; the result simply says
// nothing was processed.
func (d *Dispatcher) Process(ctx context.Context, event *Event) DispatchResult {
	d.mu.RLock()
	h, ok := d.handlers[event.Type]
	d.mu.RUnlock()

	if !ok {
		d.logger.Debugw("no handler registered for webhook event",
			"event_type", event.Type, "event_id", event.ID)
		return DispatchResult{Processed: false, Error: "No handler registered"}
	}

	if err := d.safeCall(ctx, h, event); err != nil {
		msg := err.Error()
		if msg == "" {
			msg = "Unknown error"
		}
		d.logger.Errorw("webhook handler failed",
			"event_type", event.Type, "event_id", event.ID, "error", err)
		return DispatchResult{Processed: false, Error: msg}
	}
	return DispatchResult{Processed: true}
}

func (d *Dispatcher) safeCall(ctx context.Context, h Handler, event *Event) (err error) {
	defer func() {
		if r := recover(); r != nil {
			d.logger.Errorw("webhook handler panicked",
				"event_type", event.Type, "event_id", event.ID, "panic", r)
			err = recoverToError(r)
		}
	}()
	return h(ctx, event)
}
