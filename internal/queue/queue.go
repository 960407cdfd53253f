// Package queue schedules turns: strictly sequential within one
// conversation so window appends stay ordered, fully parallel across
// conversations.
package queue

import (
	"container/list"
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/junkielabs/junkie/internal/chat"
)

// Turn is one queued unit of work.
type Turn struct {
	Msg        chat.IncomingMessage
	EnqueuedAt time.Time
}

// conversationQueue holds one conversation's pending turns plus its
// processing slot. At most one turn per conversation is ever checked out.
type conversationQueue struct {
	id         string
	turns      *list.List
	processing bool
}

func (q *conversationQueue) dequeueable() bool {
	return !q.processing && q.turns.Len() > 0
}

// Manager owns the per-conversation queues and hands turns to workers in
// round-robin order across conversations.
type Manager struct {
	mu     sync.Mutex
	queues map[string]*conversationQueue
	order  []string
	next   int
	closed bool

	notify chan struct{}
	logger *zap.Logger
	clock  func() time.Time
}

// NewManager creates an empty scheduler.
func NewManager(logger *zap.Logger) *Manager {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Manager{
		queues: make(map[string]*conversationQueue),
		notify: make(chan struct{}, 1),
		logger: logger,
		clock:  time.Now,
	}
}

// Submit enqueues one inbound message for its conversation.
func (m *Manager) Submit(msg chat.IncomingMessage) error {
	if msg.ConversationID == "" {
		return fmt.Errorf("queue: message %s has no conversation", msg.ID)
	}

	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return fmt.Errorf("queue: closed")
	}

	q, ok := m.queues[msg.ConversationID]
	if !ok {
		q = &conversationQueue{id: msg.ConversationID, turns: list.New()}
		m.queues[msg.ConversationID] = q
		m.order = append(m.order, msg.ConversationID)
	}
	q.turns.PushBack(Turn{Msg: msg, EnqueuedAt: m.clock()})
	depth := q.turns.Len()
	m.mu.Unlock()

	m.logger.Debug("turn enqueued",
		zap.String("conversation_id", msg.ConversationID),
		zap.String("message_id", msg.ID),
		zap.Int("depth", depth))

	m.signal()
	return nil
}

// Next blocks until a turn is available or the context ends. The returned
// turn's conversation is marked busy until Complete is called for it.
func (m *Manager) Next(ctx context.Context) (Turn, bool) {
	for {
		if turn, ok := m.tryDequeue(); ok {
			// A single wakeup token serves all workers; pass it on when
			// more work is already waiting.
			m.signalIfPending()
			return turn, true
		}
		select {
		case <-ctx.Done():
			return Turn{}, false
		case <-m.notify:
		}
	}
}

// tryDequeue scans conversations round-robin for one with pending work and
// a free processing slot.
func (m *Manager) tryDequeue() (Turn, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return Turn{}, false
	}

	for i := 0; i < len(m.order); i++ {
		idx := (m.next + i) % len(m.order)
		q := m.queues[m.order[idx]]
		if !q.dequeueable() {
			continue
		}

		front := q.turns.Front()
		q.turns.Remove(front)
		q.processing = true
		m.next = (idx + 1) % len(m.order)
		return front.Value.(Turn), true
	}
	return Turn{}, false
}

// Complete frees the conversation's processing slot after a turn finishes.
func (m *Manager) Complete(conversationID string) {
	m.mu.Lock()
	if q, ok := m.queues[conversationID]; ok {
		q.processing = false
	}
	m.mu.Unlock()
	m.signal()
}

// Depth returns how many turns are pending across all conversations.
func (m *Manager) Depth() int {
	m.mu.Lock()
	defer m.mu.Unlock()

	total := 0
	for _, q := range m.queues {
		total += q.turns.Len()
	}
	return total
}

// Close stops accepting and dispensing work.
func (m *Manager) Close() {
	m.mu.Lock()
	m.closed = true
	m.mu.Unlock()
	m.signal()
}

// signalIfPending re-arms the wakeup token when dequeueable work remains.
func (m *Manager) signalIfPending() {
	m.mu.Lock()
	pending := false
	for _, q := range m.queues {
		if q.dequeueable() {
			pending = true
			break
		}
	}
	m.mu.Unlock()
	if pending {
		m.signal()
	}
}

// signal wakes one waiting worker; a full notify buffer already means a
// wakeup is pending.
func (m *Manager) signal() {
	select {
	case m.notify <- struct{}{}:
	default:
	}
}
