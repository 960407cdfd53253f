package chat

import (
	"fmt"
	"regexp"
	"strings"
)

// mentionPattern matches the @Name(ID) form used everywhere outside the
// platform wire. Names never contain parentheses or angle brackets.
var mentionPattern = regexp.MustCompile(`@([^()<>]+?)\s*\((\d+)\)`)

// wireMentionPattern matches the platform's raw <@ID> form.
var wireMentionPattern = regexp.MustCompile(`<@!?(\d+)>`)

// mentionPunctPattern finds a mention token directly followed by
// punctuation, which the output contract forbids.
var mentionPunctPattern = regexp.MustCompile(`(@[^()<>]+?\s*\(\d+\))([.,!?:;])`)

// FormatMention renders one user reference in the required form.
func FormatMention(name, id string) string {
	return fmt.Sprintf("@%s(%s)", name, id)
}

// NameLookup resolves a platform user ID to a display name. Unknown IDs
// return ok=false and keep the raw token.
type NameLookup func(id string) (name string, ok bool)

// NormalizeInbound rewrites raw <@ID> wire mentions into @Name(ID) so
// everything downstream sees one mention form.
func NormalizeInbound(text string, lookup NameLookup) string {
	return wireMentionPattern.ReplaceAllStringFunc(text, func(token string) string {
		id := wireMentionPattern.FindStringSubmatch(token)[1]
		if lookup == nil {
			return token
		}
		name, ok := lookup(id)
		if !ok {
			return token
		}
		return FormatMention(name, id)
	})
}

// RestoreOutbound rewrites @Name(ID) mentions back to the platform's raw
// <@ID> form for delivery.
func RestoreOutbound(text string) string {
	return mentionPattern.ReplaceAllString(text, "<@$2>")
}

// EnforceMentionSpacing inserts the required separating space between a
// mention token and trailing punctuation: "@Alex(12345)!" becomes
// "@Alex(12345) !".
func EnforceMentionSpacing(text string) string {
	return mentionPunctPattern.ReplaceAllString(text, "$1 $2")
}

// Mentions returns the IDs referenced in the text, in order of appearance.
func Mentions(text string) []string {
	matches := mentionPattern.FindAllStringSubmatch(text, -1)
	if len(matches) == 0 {
		return nil
	}
	ids := make([]string, 0, len(matches))
	for _, m := range matches {
		ids = append(ids, m[2])
	}
	return ids
}

// StripMentions replaces every mention with the bare name, for places that
// must not ping anyone (logs, prompts).
func StripMentions(text string) string {
	return strings.TrimSpace(mentionPattern.ReplaceAllString(text, "$1"))
}
