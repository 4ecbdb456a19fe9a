package events

import (
	"context"
	"encoding/json"
	"sync"

	cloudevents "github.com/cloudevents/sdk-go/v2"
	"go.uber.org/zap"
)

const subscriberBufferSize = 32

// Hub is an in-process Writer delivering progress events to live subscribers.
// Slow subscribers miss events rather than blocking the producer.
type Hub struct {
	mu          sync.Mutex
	subscribers map[int]chan ProgressEvent
	next        int
	closed      bool
}

func NewHub() *Hub {
	return &Hub{subscribers: make(map[int]chan ProgressEvent)}
}

// Subscribe registers a subscriber. The returned func unregisters it and closes the channel.
func (h *Hub) Subscribe() (<-chan ProgressEvent, func()) {
	h.mu.Lock()
	defer h.mu.Unlock()

	ch := make(chan ProgressEvent, subscriberBufferSize)
	if h.closed {
		close(ch)
		return ch, func() {}
	}

	id := h.next
	h.next++
	h.subscribers[id] = ch

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			h.mu.Lock()
			defer h.mu.Unlock()
			if c, ok := h.subscribers[id]; ok {
				delete(h.subscribers, id)
				close(c)
			}
		})
	}
}

func (h *Hub) Write(_ context.Context, _ string, e cloudevents.Event) error {
	if e.Type() != ProgressMessageKind {
		return nil
	}

	var event ProgressEvent
	if err := json.Unmarshal(e.Data(), &event); err != nil {
		return err
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	for id, ch := range h.subscribers {
		select {
		case ch <- event:
		default:
			zap.S().Named("event_hub").Debugw("subscriber too slow, dropping event", "subscriber", id, "job_id", event.JobID)
		}
	}
	return nil
}

func (h *Hub) Close(_ context.Context) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	for id, ch := range h.subscribers {
		delete(h.subscribers, id)
		close(ch)
	}
	h.closed = true
	return nil
}
