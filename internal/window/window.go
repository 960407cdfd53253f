// Package window maintains the bounded view of recent conversation history
// usable without deep-history delegation.
package window

import (
	"fmt"
	"sync"

	"github.com/junkielabs/junkie/internal/timeline"
)

// DefaultCapacity is the default window size W.
const DefaultCapacity = 100

// Window is the bounded ordered buffer of recent messages for one
// conversation: oldest to newest, append-only at the tail, FIFO eviction at
// the head. Eviction is silent; it is bounded memory, not an error.
//
// Turns for a conversation run sequentially, so the mutex only guards
// readers (stats, snapshots) racing the appending turn.
type Window struct {
	mu       sync.RWMutex
	messages []timeline.Message
	capacity int
	evicted  uint64
}

// New creates a window with the given capacity. Non-positive capacities
// fall back to DefaultCapacity.
func New(capacity int) *Window {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &Window{
		messages: make([]timeline.Message, 0, capacity),
		capacity: capacity,
	}
}

// Append adds a finalized message at the tail, evicting from the head when
// over capacity. Messages must arrive in non-decreasing SentAt order;
// appending an older message is an upstream ordering fault.
func (w *Window) Append(msg timeline.Message) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if n := len(w.messages); n > 0 && msg.SentAt.Before(w.messages[n-1].SentAt) {
		return fmt.Errorf("append out of order: message %s at %s is older than window tail %s",
			msg.ID, msg.SentAt, w.messages[n-1].SentAt)
	}

	w.messages = append(w.messages, msg)
	if len(w.messages) > w.capacity {
		over := len(w.messages) - w.capacity
		w.messages = append(w.messages[:0], w.messages[over:]...)
		w.evicted += uint64(over)
	}
	return nil
}

// Snapshot returns a copy of the buffered messages, oldest to newest.
func (w *Window) Snapshot() []timeline.Message {
	w.mu.RLock()
	defer w.mu.RUnlock()

	out := make([]timeline.Message, len(w.messages))
	copy(out, w.messages)
	return out
}

// Len returns the number of buffered messages.
func (w *Window) Len() int {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return len(w.messages)
}

// Capacity returns W.
func (w *Window) Capacity() int {
	return w.capacity
}

// Evicted returns how many messages have been silently dropped from the
// head since creation.
func (w *Window) Evicted() uint64 {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.evicted
}

// Oldest returns the head message and false when the window is empty.
func (w *Window) Oldest() (timeline.Message, bool) {
	w.mu.RLock()
	defer w.mu.RUnlock()

	if len(w.messages) == 0 {
		return timeline.Message{}, false
	}
	return w.messages[0], true
}
