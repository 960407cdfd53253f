// Package store persists the full message history beyond the bounded
// in-memory window. The history collaborator searches it; the engine
// archives every finalized turn into it.
package store

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	lru "github.com/hashicorp/golang-lru/v2"
	"go.uber.org/zap"
	_ "modernc.org/sqlite"

	"github.com/junkielabs/junkie/internal/timeline"
)

// DefaultCacheSize is how many conversations keep their recent slice hot.
const DefaultCacheSize = 128

const schema = `
CREATE TABLE IF NOT EXISTS messages (
	message_id      TEXT PRIMARY KEY,
	conversation_id TEXT NOT NULL,
	author_id       TEXT NOT NULL,
	author_name     TEXT NOT NULL,
	content         TEXT NOT NULL,
	sent_at         INTEGER NOT NULL,
	reply_to_id     TEXT NOT NULL DEFAULT ''
);
CREATE INDEX IF NOT EXISTS idx_messages_conversation
	ON messages(conversation_id, sent_at);
`

// Archive is the SQLite-backed message store. Reads of a conversation's
// recent tail are served from an LRU cache that writes invalidate.
type Archive struct {
	db     *sql.DB
	cache  *lru.Cache[string, []timeline.Message]
	logger *zap.Logger
}

// Option configures an Archive.
type Option func(*archiveConfig)

type archiveConfig struct {
	cacheSize int
	logger    *zap.Logger
}

// WithCacheSize sets how many conversations the hot cache holds.
func WithCacheSize(size int) Option {
	return func(c *archiveConfig) { c.cacheSize = size }
}

// WithLogger attaches a logger.
func WithLogger(logger *zap.Logger) Option {
	return func(c *archiveConfig) { c.logger = logger }
}

// Open opens (creating if needed) the archive at path. Use ":memory:" for
// an ephemeral archive.
func Open(path string, opts ...Option) (*Archive, error) {
	cfg := archiveConfig{cacheSize: DefaultCacheSize, logger: zap.NewNop()}
	for _, opt := range opts {
		opt(&cfg)
	}

	db, err := sql.Open("sqlite", path+"?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)")
	if err != nil {
		return nil, fmt.Errorf("store: open %s: %w", path, err)
	}
	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("store: create schema: %w", err)
	}

	cache, err := lru.New[string, []timeline.Message](cfg.cacheSize)
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("store: create cache: %w", err)
	}

	return &Archive{db: db, cache: cache, logger: cfg.logger}, nil
}

// Close releases the underlying database.
func (a *Archive) Close() error {
	return a.db.Close()
}

// Append records a finalized message. Re-appending the same message ID
// overwrites, which makes turn retries safe.
func (a *Archive) Append(ctx context.Context, conversationID string, msg timeline.Message) error {
	_, err := a.db.ExecContext(ctx, `
		INSERT OR REPLACE INTO messages
			(message_id, conversation_id, author_id, author_name, content, sent_at, reply_to_id)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		msg.ID, conversationID, msg.AuthorID, msg.AuthorName, msg.Text,
		msg.SentAt.UnixMilli(), msg.ReplyToID)
	if err != nil {
		return fmt.Errorf("store: append message %s: %w", msg.ID, err)
	}
	a.cache.Remove(conversationID)
	return nil
}

// Recent returns the conversation's newest messages, oldest first.
func (a *Archive) Recent(ctx context.Context, conversationID string, limit int) ([]timeline.Message, error) {
	if cached, ok := a.cache.Get(conversationID); ok && len(cached) >= limit {
		out := make([]timeline.Message, limit)
		copy(out, cached[len(cached)-limit:])
		return out, nil
	}

	rows, err := a.db.QueryContext(ctx, `
		SELECT message_id, author_id, author_name, content, sent_at, reply_to_id
		FROM messages
		WHERE conversation_id = ?
		ORDER BY sent_at DESC, message_id DESC
		LIMIT ?`, conversationID, limit)
	if err != nil {
		return nil, fmt.Errorf("store: recent for %s: %w", conversationID, err)
	}
	defer func() { _ = rows.Close() }()

	messages, err := scanMessages(rows)
	if err != nil {
		return nil, err
	}
	// Rows arrive newest first; flip to window order.
	for i, j := 0, len(messages)-1; i < j; i, j = i+1, j-1 {
		messages[i], messages[j] = messages[j], messages[i]
	}

	a.cache.Add(conversationID, messages)
	return messages, nil
}

// Search finds archived messages whose content matches the query's
// keywords, oldest first. Short words are dropped; they match everything.
func (a *Archive) Search(ctx context.Context, conversationID, query string, limit int) ([]timeline.Message, error) {
	keywords := extractKeywords(query)
	if len(keywords) == 0 {
		return nil, nil
	}

	conditions := make([]string, 0, len(keywords))
	args := []any{conversationID}
	for _, kw := range keywords {
		conditions = append(conditions, "content LIKE ? ESCAPE '\\'")
		args = append(args, "%"+escapeLike(kw)+"%")
	}
	args = append(args, limit)

	rows, err := a.db.QueryContext(ctx, `
		SELECT message_id, author_id, author_name, content, sent_at, reply_to_id
		FROM messages
		WHERE conversation_id = ? AND (`+strings.Join(conditions, " OR ")+`)
		ORDER BY sent_at ASC, message_id ASC
		LIMIT ?`, args...)
	if err != nil {
		return nil, fmt.Errorf("store: search for %s: %w", conversationID, err)
	}
	defer func() { _ = rows.Close() }()

	return scanMessages(rows)
}

// UpdateText rewrites an edited message's content.
func (a *Archive) UpdateText(ctx context.Context, conversationID, messageID, text string) error {
	_, err := a.db.ExecContext(ctx,
		`UPDATE messages SET content = ? WHERE message_id = ?`, text, messageID)
	if err != nil {
		return fmt.Errorf("store: update message %s: %w", messageID, err)
	}
	a.cache.Remove(conversationID)
	return nil
}

// Delete removes a retracted message.
func (a *Archive) Delete(ctx context.Context, conversationID, messageID string) error {
	_, err := a.db.ExecContext(ctx,
		`DELETE FROM messages WHERE message_id = ?`, messageID)
	if err != nil {
		return fmt.Errorf("store: delete message %s: %w", messageID, err)
	}
	a.cache.Remove(conversationID)
	return nil
}

// Count returns how many messages the conversation has archived.
func (a *Archive) Count(ctx context.Context, conversationID string) (int, error) {
	var n int
	err := a.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM messages WHERE conversation_id = ?`, conversationID).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("store: count for %s: %w", conversationID, err)
	}
	return n, nil
}

func scanMessages(rows *sql.Rows) ([]timeline.Message, error) {
	var messages []timeline.Message
	for rows.Next() {
		var msg timeline.Message
		var sentAtMilli int64
		if err := rows.Scan(&msg.ID, &msg.AuthorID, &msg.AuthorName, &msg.Text,
			&sentAtMilli, &msg.ReplyToID); err != nil {
			return nil, fmt.Errorf("store: scan message: %w", err)
		}
		msg.SentAt = timeline.FromUnixMilli(sentAtMilli)
		messages = append(messages, msg)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("store: iterate messages: %w", err)
	}
	return messages, nil
}

// extractKeywords keeps the query's content-bearing words.
func extractKeywords(query string) []string {
	fields := strings.Fields(strings.ToLower(query))
	keywords := make([]string, 0, len(fields))
	for _, f := range fields {
		f = strings.Trim(f, ".,!?:;\"'()@")
		if len(f) > 3 {
			keywords = append(keywords, f)
		}
	}
	return keywords
}

func escapeLike(s string) string {
	s = strings.ReplaceAll(s, `\`, `\\`)
	s = strings.ReplaceAll(s, `%`, `\%`)
	return strings.ReplaceAll(s, `_`, `\_`)
}
