// Package sandbox manages isolated code-execution sessions. Each
// conversation owns at most one active session, created lazily on first
// need and reclaimed on TTL expiry or explicit termination.
package sandbox

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
)

// ErrUnavailable wraps any failure to create or reach a session. Callers
// treat it as a signal to fall back to non-sandboxed handling.
var ErrUnavailable = errors.New("sandbox unavailable")

// DefaultTTL is the session lifetime when none is configured.
const DefaultTTL = 10 * time.Minute

// Status is the lifecycle state of a session.
type Status int

const (
	// StatusActive means the session is usable.
	StatusActive Status = iota
	// StatusExpired means the TTL elapsed; the session must be recreated.
	StatusExpired
	// StatusTerminated means the session was explicitly closed.
	StatusTerminated
)

// String returns the status name used in logs.
func (s Status) String() string {
	switch s {
	case StatusActive:
		return "active"
	case StatusExpired:
		return "expired"
	case StatusTerminated:
		return "terminated"
	default:
		return "unknown"
	}
}

// Session is one isolated execution environment bound to a conversation.
type Session struct {
	ID             string
	ConversationID string
	CreatedAt      time.Time
	TTL            time.Duration
	status         Status
}

// Status returns the lifecycle state as of now.
func (s *Session) statusAt(now time.Time) Status {
	if s.status == StatusActive && now.After(s.CreatedAt.Add(s.TTL)) {
		return StatusExpired
	}
	return s.status
}

// Backend creates, drives, and tears down the actual execution
// environments. Implementations are external services; the manager never
// depends on their internals.
type Backend interface {
	Create(ctx context.Context, ttl time.Duration) (string, error)
	Execute(ctx context.Context, sessionID, command string) (string, error)
	Terminate(ctx context.Context, sessionID string) error
}

// Manager owns the session-per-conversation map. Turns for one conversation
// run sequentially, so per-conversation access is already serialized; the
// mutex guards the map against concurrent conversations and the janitor.
type Manager struct {
	backend Backend
	ttl     time.Duration
	maxTTL  time.Duration
	logger  *zap.Logger
	clock   func() time.Time

	mu       sync.Mutex
	sessions map[string]*Session
}

// Option configures a Manager.
type Option func(*Manager)

// WithTTL sets the session lifetime, capped to the configured maximum.
func WithTTL(ttl time.Duration) Option {
	return func(m *Manager) { m.ttl = ttl }
}

// WithMaxTTL bounds how long any session may be asked to live.
func WithMaxTTL(max time.Duration) Option {
	return func(m *Manager) { m.maxTTL = max }
}

// WithLogger attaches a logger.
func WithLogger(logger *zap.Logger) Option {
	return func(m *Manager) { m.logger = logger }
}

// WithClock replaces the time source, for tests.
func WithClock(clock func() time.Time) Option {
	return func(m *Manager) { m.clock = clock }
}

// NewManager creates a session manager over the given backend.
func NewManager(backend Backend, opts ...Option) (*Manager, error) {
	if backend == nil {
		return nil, errors.New("sandbox: backend is required")
	}
	m := &Manager{
		backend:  backend,
		ttl:      DefaultTTL,
		maxTTL:   time.Hour,
		logger:   zap.NewNop(),
		clock:    time.Now,
		sessions: make(map[string]*Session),
	}
	for _, opt := range opts {
		opt(m)
	}
	if m.ttl <= 0 {
		m.ttl = DefaultTTL
	}
	if m.ttl > m.maxTTL {
		m.ttl = m.maxTTL
	}
	return m, nil
}

// Acquire returns the conversation's active session, creating one when none
// exists or the previous one expired. Creation failure wraps
// ErrUnavailable.
func (m *Manager) Acquire(ctx context.Context, conversationID string) (*Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.clock()
	if existing, ok := m.sessions[conversationID]; ok {
		switch existing.statusAt(now) {
		case StatusActive:
			return existing, nil
		case StatusExpired:
			m.logger.Info("sandbox session expired",
				zap.String("conversation_id", conversationID),
				zap.String("session_id", existing.ID))
			m.teardownLocked(ctx, existing)
		}
	}

	id, err := m.backend.Create(ctx, m.ttl)
	if err != nil {
		delete(m.sessions, conversationID)
		return nil, fmt.Errorf("%w: create session for %s: %v", ErrUnavailable, conversationID, err)
	}

	session := &Session{
		ID:             id,
		ConversationID: conversationID,
		CreatedAt:      now,
		TTL:            m.ttl,
		status:         StatusActive,
	}
	m.sessions[conversationID] = session
	m.logger.Info("sandbox session created",
		zap.String("conversation_id", conversationID),
		zap.String("session_id", id),
		zap.Duration("ttl", m.ttl))
	return session, nil
}

// Ensure acquires the conversation's session and returns its ID. It exists
// so the router can guarantee a session before dispatching execution work.
func (m *Manager) Ensure(ctx context.Context, conversationID string) (string, error) {
	session, err := m.Acquire(ctx, conversationID)
	if err != nil {
		return "", err
	}
	return session.ID, nil
}

// Execute runs a command in the conversation's session, acquiring one
// first if needed.
func (m *Manager) Execute(ctx context.Context, conversationID, command string) (string, error) {
	session, err := m.Acquire(ctx, conversationID)
	if err != nil {
		return "", err
	}

	output, err := m.backend.Execute(ctx, session.ID, command)
	if err != nil {
		return "", fmt.Errorf("execute in session %s: %w", session.ID, err)
	}
	return output, nil
}

// Terminate explicitly closes the conversation's session. A missing session
// is not an error.
func (m *Manager) Terminate(ctx context.Context, conversationID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	session, ok := m.sessions[conversationID]
	if !ok {
		return nil
	}
	m.teardownLocked(ctx, session)
	delete(m.sessions, conversationID)
	return nil
}

// CleanupExpired tears down every session past its TTL and returns how many
// were reclaimed. The janitor loop calls this periodically.
func (m *Manager) CleanupExpired(ctx context.Context) int {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.clock()
	reclaimed := 0
	for conversationID, session := range m.sessions {
		if session.statusAt(now) != StatusExpired {
			continue
		}
		m.teardownLocked(ctx, session)
		delete(m.sessions, conversationID)
		reclaimed++
	}
	if reclaimed > 0 {
		m.logger.Info("expired sandbox sessions reclaimed", zap.Int("count", reclaimed))
	}
	return reclaimed
}

// Active returns how many sessions are currently usable.
func (m *Manager) Active() int {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.clock()
	count := 0
	for _, session := range m.sessions {
		if session.statusAt(now) == StatusActive {
			count++
		}
	}
	return count
}

// RunJanitor reclaims expired sessions on the given interval until the
// context is cancelled, then terminates everything left.
func (m *Manager) RunJanitor(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			m.Shutdown(context.Background())
			return
		case <-ticker.C:
			m.CleanupExpired(ctx)
		}
	}
}

// Shutdown terminates every session regardless of state.
func (m *Manager) Shutdown(ctx context.Context) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for conversationID, session := range m.sessions {
		m.teardownLocked(ctx, session)
		delete(m.sessions, conversationID)
	}
}

// teardownLocked closes a session best-effort. The caller holds the mutex.
func (m *Manager) teardownLocked(ctx context.Context, session *Session) {
	if session.status == StatusTerminated {
		return
	}
	if err := m.backend.Terminate(ctx, session.ID); err != nil {
		m.logger.Warn("sandbox termination failed",
			zap.String("session_id", session.ID),
			zap.Error(err))
	}
	session.status = StatusTerminated
}
