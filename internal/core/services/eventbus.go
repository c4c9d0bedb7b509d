package services

import (
	"log/slog"
	"sync"
)

type EventType string

const (
	EventTypeAssigned  EventType = "assigned"
	EventTypeRunning   EventType = "running"
	EventTypeCompleted EventType = "completed"
	EventTypeFailed    EventType = "failed"
	EventTypeRequeued  EventType = "requeued"
)

// BroadcastChannel receives every published event regardless of job id.
const BroadcastChannel = "*"

type Event struct {
	JobID     string    `json:"job_id"`
	Type      EventType `json:"type"`
	Data      string    `json:"data,omitempty"` // JSON payload
	Timestamp int64     `json:"timestamp"`
}

// EventBus fans job lifecycle events out to in-process subscribers (the SSE
// endpoint, mostly). Channels are buffered; a slow subscriber drops events
// rather than blocking the scheduler.
type EventBus struct {
	logger *slog.Logger
	mu     sync.RWMutex
	subs   map[string][]chan Event // key: job id or BroadcastChannel
}

func NewEventBus(logger *slog.Logger) *EventBus {
	return &EventBus{
		logger: logger,
		subs:   make(map[string][]chan Event),
	}
}

// Subscribe returns a channel receiving events for one job id (or
// BroadcastChannel for everything) and an unsubscribe func that closes it.
func (b *EventBus) Subscribe(key string) (<-chan Event, func()) {
	b.mu.Lock()
	defer b.mu.Unlock()

	ch := make(chan Event, 100)
	b.subs[key] = append(b.subs[key], ch)

	unsub := func() {
		b.mu.Lock()
		defer b.mu.Unlock()

		subscribers := b.subs[key]
		for i, sub := range subscribers {
			if sub == ch {
				close(ch)
				b.subs[key] = append(subscribers[:i], subscribers[i+1:]...)
				break
			}
		}
		if len(b.subs[key]) == 0 {
			delete(b.subs, key)
		}
	}

	return ch, unsub
}

// Publish delivers the event to the job's subscribers and to broadcast
// listeners. Never blocks.
func (b *EventBus) Publish(ev Event) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	for _, ch := range b.subs[ev.JobID] {
		select {
		case ch <- ev:
		default:
			b.logger.Warn("event dropped, subscriber too slow", "job_id", ev.JobID)
		}
	}
	if ev.JobID != BroadcastChannel {
		for _, ch := range b.subs[BroadcastChannel] {
			select {
			case ch <- ev:
			default:
			}
		}
	}
}
