package collab

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/junkielabs/junkie/internal/chat"
	"github.com/junkielabs/junkie/internal/timeline"
)

// searchLimit caps how many archived messages one lookup returns.
const searchLimit = 25

// HistorySearcher finds archived messages relevant to a query. The message
// archive satisfies this.
type HistorySearcher interface {
	Search(ctx context.Context, conversationID, query string, limit int) ([]timeline.Message, error)
}

// HistoryCollaborator answers lookups that reach past the retained window by
// searching the message archive.
type HistoryCollaborator struct {
	searcher HistorySearcher
	logger   *zap.Logger
}

// NewHistory creates the archive-backed history collaborator.
func NewHistory(searcher HistorySearcher, logger *zap.Logger) (*HistoryCollaborator, error) {
	if searcher == nil {
		return nil, fmt.Errorf("collaborator %s: searcher is required", History)
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &HistoryCollaborator{searcher: searcher, logger: logger}, nil
}

// ID implements Collaborator.
func (h *HistoryCollaborator) ID() ID { return History }

// Invoke searches the archive and returns matching lines, oldest first,
// stamped with absolute times so the synthesizer never has to guess ages
// for old content.
func (h *HistoryCollaborator) Invoke(ctx context.Context, req Request) (Result, error) {
	// Mention tokens make poor search terms; the bare names are what
	// archived text actually contains.
	matches, err := h.searcher.Search(ctx, req.ConversationID, chat.StripMentions(req.Query), searchLimit)
	if err != nil {
		return Result{}, fmt.Errorf("collaborator %s: %w", History, err)
	}

	h.logger.Debug("archive searched",
		zap.String("conversation_id", req.ConversationID),
		zap.Int("matches", len(matches)))

	if len(matches) == 0 {
		return Result{
			Success: true,
			Payload: "No earlier messages matched the request.",
		}, nil
	}

	var b strings.Builder
	b.WriteString("Earlier messages found:\n")
	for _, msg := range matches {
		stamp := msg.SentAt.In(timeline.DisplayZone).Format("Jan 02, 15:04")
		fmt.Fprintf(&b, "[%s] %s: %s\n", stamp, msg.AuthorName, msg.Text)
	}
	return Result{Success: true, Payload: strings.TrimRight(b.String(), "\n")}, nil
}
