package publisher

import (
	"context"
	"sync"

	"github.com/ThreeDotsLabs/watermill/message"
	jsoniter "github.com/json-iterator/go"

	ierr "github.com/qazuor/qzpay-sub003/internal/errors"
	"github.com/qazuor/qzpay-sub003/internal/logger"
	"github.com/qazuor/qzpay-sub003/internal/pubsub"
	"github.com/qazuor/qzpay-sub003/internal/types"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// Topic carries every lifecycle event; handlers filter by event type
const Topic = "lifecycle.events"

// EventHandler consumes a lifecycle event. Handler errors are logged and
// swallowed: event delivery is best-effort and never rolls back the state
// transition that produced the event.
type EventHandler func(event *types.LifecycleEvent)

// Unsubscribe removes a previously registered handler
type Unsubscribe func()

type subscription struct {
	id      int64
	handler EventHandler
	once    bool
}

// EventBus publishes lifecycle events through the pubsub layer and fans
// them out to handlers registered by event type
type EventBus struct {
	pubsub pubsub.PubSub
	logger *logger.Logger

	mu     sync.Mutex
	nextID int64
	subs   map[string][]*subscription

	cancel context.CancelFunc
	done   chan struct{}
}

func NewEventBus(ps pubsub.PubSub, log *logger.Logger) (*EventBus, error) {
	ctx, cancel := context.WithCancel(context.Background())

	bus := &EventBus{
		pubsub: ps,
		logger: log,
		subs:   make(map[string][]*subscription),
		cancel: cancel,
		done:   make(chan struct{}),
	}

	messages, err := ps.Subscribe(ctx, Topic)
	if err != nil {
		cancel()
		return nil, ierr.WithError(err).
			WithMessage("failed to subscribe to lifecycle topic").
			Mark(ierr.ErrSystem)
	}

	go bus.consume(messages)
	return bus, nil
}

// Emit publishes an event. Delivery failures are logged, never returned:
// the caller's state transition already stands.
func (b *EventBus) Emit(ctx context.Context, event *types.LifecycleEvent) {
	raw, err := json.Marshal(event)
	if err != nil {
		b.logger.Errorw("failed to encode lifecycle event",
			"event_type", event.Type, "error", err)
		return
	}

	msg := message.NewMessage(event.ID, raw)
	if err := b.pubsub.Publish(ctx, Topic, msg); err != nil {
		b.logger.Errorw("failed to publish lifecycle event",
			"event_type", event.Type, "error", err)
	}
}

// On registers a handler for an event type and returns its unsubscribe
func (b *EventBus) On(eventType string, handler EventHandler) Unsubscribe {
	return b.register(eventType, handler, false)
}

// Once registers a handler that fires at most once
func (b *EventBus) Once(eventType string, handler EventHandler) Unsubscribe {
	return b.register(eventType, handler, true)
}

func (b *EventBus) register(eventType string, handler EventHandler, once bool) Unsubscribe {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.nextID++
	sub := &subscription{id: b.nextID, handler: handler, once: once}
	b.subs[eventType] = append(b.subs[eventType], sub)

	id := sub.id
	return func() {
		b.removeSubscription(eventType, id)
	}
}

func (b *EventBus) removeSubscription(eventType string, id int64) {
	b.mu.Lock()
	defer b.mu.Unlock()

	subs := b.subs[eventType]
	for i, sub := range subs {
		if sub.id == id {
			b.subs[eventType] = append(subs[:i], subs[i+1:]...)
			return
		}
	}
}

func (b *EventBus) consume(messages <-chan *message.Message) {
	defer close(b.done)

	for msg := range messages {
		var event types.LifecycleEvent
		if err := json.Unmarshal(msg.Payload, &event); err != nil {
			b.logger.Errorw("failed to decode lifecycle event", "error", err)
			msg.Ack()
			continue
		}
		b.dispatch(&event)
		msg.Ack()
	}
}

func (b *EventBus) dispatch(event *types.LifecycleEvent) {
	b.mu.Lock()
	subs := b.subs[event.Type]
	handlers := make([]*subscription, len(subs))
	copy(handlers, subs)
	remaining := subs[:0]
	for _, sub := range subs {
		if !sub.once {
			remaining = append(remaining, sub)
		}
	}
	b.subs[event.Type] = remaining
	b.mu.Unlock()

	for _, sub := range handlers {
		b.safeInvoke(sub.handler, event)
	}
}

func (b *EventBus) safeInvoke(handler EventHandler, event *types.LifecycleEvent) {
	defer func() {
		if r := recover(); r != nil {
			b.logger.Errorw("lifecycle event handler panicked",
				"event_type", event.Type, "panic", r)
		}
	}()
	handler(event)
}

// Close releases every subscription and stops the consume loop
func (b *EventBus) Close() error {
	b.mu.Lock()
	b.subs = make(map[string][]*subscription)
	b.mu.Unlock()

	b.cancel()
	err := b.pubsub.Close()
	<-b.done
	return err
}
