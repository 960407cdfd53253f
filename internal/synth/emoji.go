package synth

import "strings"

// emojiRanges covers the blocks that matter for chat emoji. Skin-tone
// modifiers and ZWJ sequences fall inside these ranges too.
var emojiRanges = [][2]rune{
	{0x1F300, 0x1FAFF}, // pictographs, emoticons, transport, symbols
	{0x2600, 0x27BF},   // misc symbols and dingbats
	{0x2B00, 0x2BFF},   // arrows and stars
	{0xFE00, 0xFE0F},   // variation selectors
	{0x1F1E6, 0x1F1FF}, // regional indicators
}

func isEmoji(r rune) bool {
	for _, rng := range emojiRanges {
		if r >= rng[0] && r <= rng[1] {
			return true
		}
	}
	return false
}

func containsEmoji(text string) bool {
	return strings.ContainsFunc(text, isEmoji)
}

func stripEmoji(text string) string {
	var b strings.Builder
	b.Grow(len(text))
	for _, r := range text {
		if !isEmoji(r) {
			b.WriteRune(r)
		}
	}
	out := b.String()
	for strings.Contains(out, "  ") {
		out = strings.ReplaceAll(out, "  ", " ")
	}
	return strings.TrimSpace(out)
}
