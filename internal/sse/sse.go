// Package sse fans out run events to Server-Sent Events subscribers.
package sse

import (
	"fmt"
	"io"
	"strings"
	"sync"
)

// Event is one message of a run's stream.
type Event struct {
	Name string // SSE event name, "msg" when empty
	Data string
}

// Hub is a per-run publish/subscribe hub. Slow subscribers lose messages
// instead of blocking the publisher.
type Hub struct {
	mu     sync.Mutex
	conns  map[string][]chan Event
	buffer int
}

func NewHub(buffer int) *Hub {
	if buffer <= 0 {
		buffer = 16
	}
	return &Hub{conns: map[string][]chan Event{}, buffer: buffer}
}

// Subscribe registers a subscriber for run id and returns its channel and
// the function that unsubscribes it.
func (h *Hub) Subscribe(id string) (<-chan Event, func()) {
	ch := make(chan Event, h.buffer)

	h.mu.Lock()
	h.conns[id] = append(h.conns[id], ch)
	h.mu.Unlock()

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			h.mu.Lock()
			defer h.mu.Unlock()
			list := h.conns[id]
			for i, c := range list {
				if c == ch {
					h.conns[id] = append(list[:i], list[i+1:]...)
					break
				}
			}
			if len(h.conns[id]) == 0 {
				delete(h.conns, id)
			}
		})
	}
	return ch, cancel
}

// Publish sends ev to every subscriber of run id.
func (h *Hub) Publish(id string, ev Event) {
	h.mu.Lock()
	list := append([]chan Event(nil), h.conns[id]...)
	h.mu.Unlock()

	for _, ch := range list {
		select {
		case ch <- ev:
		default:
			// subscriber is full
		}
	}
}

// Write encodes ev in the text/event-stream format.
func Write(w io.Writer, ev Event) error {
	name := ev.Name
	if name == "" {
		name = "msg"
	}
	var b strings.Builder
	fmt.Fprintf(&b, "event: %s\n", name)
	for _, line := range strings.Split(ev.Data, "\n") {
		fmt.Fprintf(&b, "data: %s\n", line)
	}
	b.WriteString("\n")
	_, err := io.WriteString(w, b.String())
	return err
}
