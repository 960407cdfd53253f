package window

import (
	"strings"

	"github.com/junkielabs/junkie/internal/chat"
)

// recallPhrases are explicit requests to look back at prior conversation.
var recallPhrases = []string{
	"what did i say",
	"what did you say",
	"what did we talk about",
	"who said",
	"who did",
	"who mentioned",
	"earlier",
	"previously",
	"a while ago",
	"last week",
	"last month",
	"remember when",
	"scroll back",
}

// NeedsDeepHistory reports whether the query plausibly references content
// older than what the window retains. This is a hint, not a guarantee: a
// false negative falls through to a direct answer, a false positive costs
// one extra delegation call.
func (w *Window) NeedsDeepHistory(query string) bool {
	lowered := strings.ToLower(query)

	for _, phrase := range recallPhrases {
		if strings.Contains(lowered, phrase) {
			// Only treat recall phrasing as deep when the window has
			// already evicted something or is empty; otherwise the
			// answer is still in view.
			if w.Evicted() > 0 || w.Len() == 0 {
				return true
			}
		}
	}

	// A mention of someone who never appears in the retained window
	// suggests the referenced activity predates it.
	for _, id := range chat.Mentions(query) {
		if !w.containsAuthor(id) {
			return true
		}
	}

	return false
}

// containsAuthor reports whether any retained message was written by the
// given author ID.
func (w *Window) containsAuthor(authorID string) bool {
	w.mu.RLock()
	defer w.mu.RUnlock()

	for i := range w.messages {
		if w.messages[i].AuthorID == authorID {
			return true
		}
	}
	return false
}
