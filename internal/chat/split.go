package chat

import (
	"strings"
	"unicode/utf8"
)

// MaxMessageLength is the platform's per-message character cap, with a
// little headroom under the hard 2000 limit for mention expansion.
const MaxMessageLength = 1900

// Split breaks text into delivery-sized chunks, preferring paragraph
// breaks, then line breaks, then word boundaries. A single overlong word
// is hard-cut as the last resort.
func Split(text string, limit int) []string {
	if limit <= 0 {
		limit = MaxMessageLength
	}
	text = strings.TrimSpace(text)
	if text == "" {
		return nil
	}
	if len(text) <= limit {
		return []string{text}
	}

	var chunks []string
	for len(text) > limit {
		cut := splitPoint(text, limit)
		chunks = append(chunks, strings.TrimSpace(text[:cut]))
		text = strings.TrimSpace(text[cut:])
	}
	if text != "" {
		chunks = append(chunks, text)
	}
	return chunks
}

// splitPoint finds the best boundary at or before limit.
func splitPoint(text string, limit int) int {
	window := text[:limit]

	if i := strings.LastIndex(window, "\n\n"); i > 0 {
		return i
	}
	if i := strings.LastIndex(window, "\n"); i > 0 {
		return i
	}
	if i := strings.LastIndex(window, " "); i > 0 {
		return i
	}
	// Hard cut: back up so the cut lands on a rune boundary.
	cut := limit
	for cut > 0 && !utf8.RuneStart(text[cut]) {
		cut--
	}
	if cut == 0 {
		_, size := utf8.DecodeRuneInString(text)
		return size
	}
	return cut
}
