package events

import (
	"context"
	"sync"
)

// Journal keeps the most recent events for status endpoints
type Journal struct {
	mu       sync.RWMutex
	events   []*Event
	next     int
	full     bool
	capacity int
}

// NewJournal creates a journal holding at most capacity events
func NewJournal(capacity int) *Journal {
	if capacity <= 0 {
		capacity = 100
	}
	return &Journal{
		events:   make([]*Event, capacity),
		capacity: capacity,
	}
}

// Record appends an event, evicting the oldest when full
func (j *Journal) Record(e *Event) {
	j.mu.Lock()
	defer j.mu.Unlock()

	j.events[j.next] = e
	j.next = (j.next + 1) % j.capacity
	if j.next == 0 {
		j.full = true
	}
}

// Recent returns events oldest first
func (j *Journal) Recent() []*Event {
	j.mu.RLock()
	defer j.mu.RUnlock()

	if !j.full {
		out := make([]*Event, j.next)
		copy(out, j.events[:j.next])
		return out
	}

	out := make([]*Event, 0, j.capacity)
	out = append(out, j.events[j.next:]...)
	out = append(out, j.events[:j.next]...)
	return out
}

// Follow records every event from sub until ctx is done or sub is closed
func (j *Journal) Follow(ctx context.Context, sub Subscriber) error {
	for {
		select {
		case e, ok := <-sub:
			if !ok {
				return nil
			}
			j.Record(e)
		case <-ctx.Done():
			return nil
		}
	}
}
