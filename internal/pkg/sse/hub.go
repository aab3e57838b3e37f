package sse

import (
	"sync"
)

// Event represents an event delivered to hub subscribers
type Event struct {
	Topic string
	Event string
	Data  interface{}
}

// Hub fans events out to per-topic subscribers
type Hub struct {
	mu          sync.RWMutex
	subscribers map[string]map[chan Event]struct{}
	bufferSize  int
}

// NewHub creates a new Hub instance
func NewHub() *Hub {
	return &Hub{
		subscribers: make(map[string]map[chan Event]struct{}),
		bufferSize:  10,
	}
}

// Subscribe registers a new subscriber for a topic and returns the event channel and cleanup function
func (h *Hub) Subscribe(topic string) (<-chan Event, func()) {
	h.mu.Lock()
	defer h.mu.Unlock()

	ch := make(chan Event, h.bufferSize)

	if h.subscribers[topic] == nil {
		h.subscribers[topic] = make(map[chan Event]struct{})
	}
	h.subscribers[topic][ch] = struct{}{}

	var once sync.Once
	cleanup := func() {
		once.Do(func() {
			h.mu.Lock()
			defer h.mu.Unlock()
			subs, ok := h.subscribers[topic]
			if !ok {
				return
			}
			if _, ok := subs[ch]; !ok {
				return
			}
			delete(subs, ch)
			close(ch)
			if len(subs) == 0 {
				delete(h.subscribers, topic)
			}
		})
	}

	return ch, cleanup
}

// Publish sends an event to all subscribers of a topic.
// A full subscriber loses its oldest pending event so the newest one is always delivered.
func (h *Hub) Publish(topic string, event Event) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	event.Topic = topic
	for ch := range h.subscribers[topic] {
		for {
			select {
			case ch <- event:
			default:
				select {
				case <-ch:
				default:
				}
				continue
			}
			break
		}
	}
}

// SubscriberCount returns the number of active subscribers for a topic
func (h *Hub) SubscriberCount(topic string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()

	return len(h.subscribers[topic])
}

// Close removes and closes every subscriber channel
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()

	for topic, subs := range h.subscribers {
		for ch := range subs {
			close(ch)
		}
		delete(h.subscribers, topic)
	}
}
