package chat

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"net"
	"os"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/junkielabs/junkie/internal/timeline"
)

// incomingBuffer bounds how many undelivered events the transport holds
// before dropping.
const incomingBuffer = 100

// wireInbound is the JSONL frame the gateway writes to us.
type wireInbound struct {
	ID             string `json:"id"`
	ConversationID string `json:"conversation_id"`
	ChannelID      string `json:"channel_id"`
	AuthorID       string `json:"author_id"`
	AuthorName     string `json:"author_name"`
	Text           string `json:"text"`
	SentAtMilli    int64  `json:"sent_at"`
	ReplyToID      string `json:"reply_to_id"`
	ReplyToText    string `json:"reply_to_text"`
	Kind           string `json:"kind"`
}

// wireOutbound is the JSONL frame we write to the gateway.
type wireOutbound struct {
	ConversationID string `json:"conversation_id"`
	Text           string `json:"text"`
}

// SocketMessenger speaks line-delimited JSON over a UNIX socket to the
// platform gateway. The gateway connects to us; multiple gateway
// connections are tolerated and outbound frames go to all of them.
type SocketMessenger struct {
	socketPath string
	logger     *zap.Logger

	mu       sync.Mutex
	listener net.Listener
	conns    map[net.Conn]struct{}
	started  bool

	// names remembers the display name of every author seen on inbound
	// frames, so raw wire mentions of known users can be rewritten here
	// rather than trusting the gateway to do it.
	namesMu sync.RWMutex
	names   map[string]string

	incoming chan IncomingMessage
}

// NewSocketMessenger creates a messenger serving the given socket path.
func NewSocketMessenger(socketPath string, logger *zap.Logger) (*SocketMessenger, error) {
	if socketPath == "" {
		return nil, fmt.Errorf("chat: socket path is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SocketMessenger{
		socketPath: socketPath,
		logger:     logger,
		conns:      make(map[net.Conn]struct{}),
		names:      make(map[string]string),
		incoming:   make(chan IncomingMessage, incomingBuffer),
	}, nil
}

// Start binds the socket and begins accepting gateway connections. It
// returns once listening; the accept loop runs until the context is
// cancelled or Close is called.
func (m *SocketMessenger) Start(ctx context.Context) error {
	m.mu.Lock()
	if m.started {
		m.mu.Unlock()
		return fmt.Errorf("chat: messenger already started")
	}

	// A previous run may have left the socket file behind.
	_ = os.Remove(m.socketPath)

	listener, err := net.Listen("unix", m.socketPath)
	if err != nil {
		m.mu.Unlock()
		return fmt.Errorf("chat: listen on %s: %w", m.socketPath, err)
	}
	m.listener = listener
	m.started = true
	m.mu.Unlock()

	m.logger.Info("gateway socket listening", zap.String("path", m.socketPath))

	go func() {
		<-ctx.Done()
		_ = m.Close()
	}()
	go m.acceptLoop()
	return nil
}

func (m *SocketMessenger) acceptLoop() {
	for {
		conn, err := m.listener.Accept()
		if err != nil {
			// Listener closed; shut the stream down.
			close(m.incoming)
			return
		}

		m.mu.Lock()
		m.conns[conn] = struct{}{}
		m.mu.Unlock()

		m.logger.Info("gateway connected")
		go m.readLoop(conn)
	}
}

func (m *SocketMessenger) readLoop(conn net.Conn) {
	defer func() {
		m.mu.Lock()
		delete(m.conns, conn)
		m.mu.Unlock()
		_ = conn.Close()
		m.logger.Info("gateway disconnected")
	}()

	scanner := bufio.NewScanner(conn)
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)

	for scanner.Scan() {
		var frame wireInbound
		if err := json.Unmarshal(scanner.Bytes(), &frame); err != nil {
			m.logger.Warn("undecodable gateway frame", zap.Error(err))
			continue
		}

		msg := m.toIncoming(frame)
		select {
		case m.incoming <- msg:
		default:
			m.logger.Warn("inbound buffer full, dropping event",
				zap.String("conversation_id", msg.ConversationID),
				zap.String("message_id", msg.ID))
		}
	}
}

func (m *SocketMessenger) toIncoming(f wireInbound) IncomingMessage {
	if f.AuthorID != "" && f.AuthorName != "" {
		m.namesMu.Lock()
		m.names[f.AuthorID] = f.AuthorName
		m.namesMu.Unlock()
	}

	id := f.ID
	if id == "" {
		id = uuid.NewString()
	}
	kind := f.Kind
	if kind == "" {
		kind = KindMessage
	}
	return IncomingMessage{
		ID:             id,
		ConversationID: f.ConversationID,
		ChannelID:      f.ChannelID,
		AuthorID:       f.AuthorID,
		AuthorName:     f.AuthorName,
		Text:           NormalizeInbound(f.Text, m.lookupName),
		SentAt:         timeline.FromUnixMilli(f.SentAtMilli),
		ReplyToID:      f.ReplyToID,
		ReplyToText:    NormalizeInbound(f.ReplyToText, m.lookupName),
		Kind:           kind,
	}
}

func (m *SocketMessenger) lookupName(id string) (string, bool) {
	m.namesMu.RLock()
	defer m.namesMu.RUnlock()
	name, ok := m.names[id]
	return name, ok
}

// Subscribe implements Messenger.
func (m *SocketMessenger) Subscribe(_ context.Context) (<-chan IncomingMessage, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.started {
		return nil, fmt.Errorf("chat: messenger not started")
	}
	return m.incoming, nil
}

// Send implements Messenger. The text is restored to wire mention form,
// split into platform-sized chunks, and written to every connected
// gateway.
func (m *SocketMessenger) Send(ctx context.Context, conversationID, text string) error {
	chunks := Split(RestoreOutbound(text), MaxMessageLength)
	if len(chunks) == 0 {
		return nil
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if len(m.conns) == 0 {
		return fmt.Errorf("chat: no gateway connected")
	}

	for _, chunk := range chunks {
		if err := ctx.Err(); err != nil {
			return fmt.Errorf("chat: send cancelled: %w", err)
		}
		frame, err := json.Marshal(wireOutbound{ConversationID: conversationID, Text: chunk})
		if err != nil {
			return fmt.Errorf("chat: encode outbound frame: %w", err)
		}
		for conn := range m.conns {
			if _, err := fmt.Fprintf(conn, "%s\n", frame); err != nil {
				m.logger.Warn("gateway write failed", zap.Error(err))
			}
		}
	}
	return nil
}

// Close stops listening and drops every gateway connection.
func (m *SocketMessenger) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.listener != nil {
		_ = m.listener.Close()
		m.listener = nil
	}
	for conn := range m.conns {
		_ = conn.Close()
		delete(m.conns, conn)
	}
	return nil
}
