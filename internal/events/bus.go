package events

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// BroadcastChannel is the Redis channel carrying every published event.
const BroadcastChannel = "comanda:events"

// Handler consumes a single event. Delivery is at-least-once; handlers must
// tolerate replays of the same event.
type Handler func(ctx context.Context, evt Event) error

// Bus dispatches events to in-process subscribers and re-broadcasts them so
// other instances observe the same stream.
type Bus struct {
	rdb    *redis.Client
	logger *slog.Logger
	source string

	mu       sync.RWMutex
	handlers map[string][]Handler
}

// NewBus constructs a Bus. rdb may be nil for purely in-process use (tests).
func NewBus(rdb *redis.Client, logger *slog.Logger) *Bus {
	return &Bus{
		rdb:      rdb,
		logger:   logger,
		source:   uuid.NewString(),
		handlers: make(map[string][]Handler),
	}
}

// Subscribe registers a handler for the named event.
func (b *Bus) Subscribe(name string, h Handler) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.handlers[name] = append(b.handlers[name], h)
}

// Publish marshals payload, dispatches to local subscribers and broadcasts
// the event. Subscriber failures are logged and isolated so one failing
// side-effect module never stops the rest of the fan-out.
func (b *Bus) Publish(ctx context.Context, name string, payload any) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("events: marshal %s: %w", name, err)
	}
	evt := Event{Name: name, Source: b.source, At: time.Now().UTC(), Data: data}

	b.dispatch(ctx, evt)

	if b.rdb != nil {
		raw, err := json.Marshal(evt)
		if err != nil {
			return fmt.Errorf("events: marshal envelope %s: %w", name, err)
		}
		if err := b.rdb.Publish(ctx, BroadcastChannel, raw).Err(); err != nil {
			b.warn("broadcast failed", name, err)
		}
	}
	return nil
}

// Listen consumes the broadcast channel and dispatches events originating
// from other instances until ctx is cancelled. Local events were already
// dispatched synchronously and are skipped by source id.
func (b *Bus) Listen(ctx context.Context) error {
	if b.rdb == nil {
		<-ctx.Done()
		return ctx.Err()
	}
	sub := b.rdb.Subscribe(ctx, BroadcastChannel)
	defer func() { _ = sub.Close() }()

	ch := sub.Channel()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case msg, ok := <-ch:
			if !ok {
				return nil
			}
			var evt Event
			if err := json.Unmarshal([]byte(msg.Payload), &evt); err != nil {
				b.warn("drop undecodable event", "", err)
				continue
			}
			if evt.Source == b.source {
				continue
			}
			b.dispatch(ctx, evt)
		}
	}
}

func (b *Bus) dispatch(ctx context.Context, evt Event) {
	b.mu.RLock()
	handlers := append([]Handler(nil), b.handlers[evt.Name]...)
	b.mu.RUnlock()

	for _, h := range handlers {
		func() {
			defer func() {
				if r := recover(); r != nil {
					b.warn("subscriber panicked", evt.Name, fmt.Errorf("%v", r))
				}
			}()
			if err := h(ctx, evt); err != nil {
				b.warn("subscriber failed", evt.Name, err)
			}
		}()
	}
}

func (b *Bus) warn(msg, event string, err error) {
	if b.logger == nil {
		return
	}
	b.logger.Warn(msg, slog.String("event", event), slog.Any("error", err))
}
