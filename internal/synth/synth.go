// Package synth produces the single user-facing reply for a turn. It folds
// collaborator output into prose, enforces the output contract (mention
// form, forbidden phrases, emoji and length rules), and converts failures
// into honest hedges instead of fabricated answers.
package synth

import (
	"context"
	"fmt"
	"strings"
	"time"
	"unicode"
	"unicode/utf8"

	"go.uber.org/zap"

	"github.com/junkielabs/junkie/internal/chat"
	"github.com/junkielabs/junkie/internal/classify"
	"github.com/junkielabs/junkie/internal/collab"
	"github.com/junkielabs/junkie/internal/timeline"
)

// DefaultVerbosityFlag expands a reply into structured sections.
const DefaultVerbosityFlag = "--long"

// briefReplyCap bounds reply length when mirroring a short user message.
const briefReplyCap = 400

// ClockSkewReply is sent when a turn aborts because message timestamps
// cannot be trusted. Deliberately vague: guessing at orderings is worse
// than asking for a retry.
const ClockSkewReply = "Something's off on my end right now. Give it a moment and ask again."

// StyleConfig is the enumerated output contract.
type StyleConfig struct {
	// MatchUserLength keeps replies to short messages short.
	MatchUserLength bool
	// AllowEmoji permits emoji, and then only when the user's own message
	// used one first.
	AllowEmoji bool
	// ForbiddenPhrases are scrubbed from output, case-insensitively.
	ForbiddenPhrases []string
	// VerbosityFlag in the user's message requests the expanded form.
	// DefaultVerbosityFlag when empty.
	VerbosityFlag string
}

func (s StyleConfig) flag() string {
	if s.VerbosityFlag == "" {
		return DefaultVerbosityFlag
	}
	return s.VerbosityFlag
}

// Generator produces prose from a prompt.
type Generator interface {
	Generate(ctx context.Context, prompt string) (string, error)
}

// Input is everything one synthesis needs.
type Input struct {
	Task classify.Task
	// Result is nil for direct answers.
	Result  *collab.Result
	Current timeline.ResolvedMessage
	Window  []timeline.ResolvedMessage
	Style   StyleConfig
	Now     time.Time
}

// Synthesizer merges reasoning and collaborator output into one reply.
type Synthesizer struct {
	generator Generator
	logger    *zap.Logger
}

// New creates a synthesizer.
func New(generator Generator, logger *zap.Logger) (*Synthesizer, error) {
	if generator == nil {
		return nil, fmt.Errorf("synth: generator is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Synthesizer{generator: generator, logger: logger}, nil
}

// Synthesize produces the reply text. Failed delegation yields a fixed
// uncertainty statement without touching the generator; everything else is
// generated and then passed through the output contract.
func (s *Synthesizer) Synthesize(ctx context.Context, in Input) (string, error) {
	if in.Result != nil && !in.Result.Success {
		s.logger.Info("delegation failed, hedging",
			zap.String("task", in.Task.String()),
			zap.String("reason", string(in.Result.Reason)))
		return s.enforce(uncertaintyStatement(in.Result.Reason), in), nil
	}

	prompt := s.buildPrompt(in)
	text, err := s.generator.Generate(ctx, prompt)
	if err != nil {
		return "", fmt.Errorf("synth: %w", err)
	}

	text = s.enforce(text, in)
	if in.Result != nil && len(in.Result.Citations) > 0 {
		text = appendCitations(text, in.Result.Citations)
	}
	return text, nil
}

// uncertaintyStatement is the honest hedge for a delegation that failed
// even after fallback. It names what could not be done and nothing more.
func uncertaintyStatement(reason collab.FailureReason) string {
	switch reason {
	case collab.ReasonTimeout:
		return "I couldn't verify that in time. I'd rather not guess, so ask me again in a bit."
	case collab.ReasonMalformed:
		return "I couldn't verify that right now. What I got back didn't hold up, and I'd rather not guess."
	default:
		return "I couldn't verify that right now, and I'd rather not guess. Try me again in a bit."
	}
}

// buildPrompt assembles the temporal header, the windowed history, the
// current request, the style directives, and any verified material.
func (s *Synthesizer) buildPrompt(in Input) string {
	longForm := wantsLongForm(in.Current.Text, in.Style)
	query := stripFlag(in.Current.Text, in.Style.flag())

	var b strings.Builder
	fmt.Fprintf(&b, "Current time: %s IST.\n", in.Now.In(timeline.DisplayZone).Format("Mon Jan 02, 15:04"))
	b.WriteString("Recent conversation, oldest first. Bracketed ages are relative to the current time.\n\n")
	for _, line := range FormatWindow(in.Window) {
		b.WriteString(line)
		b.WriteByte('\n')
	}

	fmt.Fprintf(&b, "\nReply to %s, who just said: %s\n", in.Current.AuthorName, query)

	if in.Result != nil && in.Result.Success {
		b.WriteString("\nVerified material to fold into the answer. Treat this as ground truth; do not contradict or pad it:\n")
		b.WriteString(in.Result.Payload)
		b.WriteByte('\n')
	}

	b.WriteString("\nRules: write one conversational reply, plain prose. ")
	b.WriteString("Refer to people only as @Name(ID), with a space before any punctuation that follows. ")
	b.WriteString("Never mention tools, delegation, or other assistants.\n")
	if longForm {
		b.WriteString("The user asked for the expanded form: organize the reply into short titled sections.\n")
	} else {
		b.WriteString("Keep it brief, a few sentences at most.\n")
	}
	return b.String()
}

// enforce applies the deterministic output contract to generated (or
// templated) text. Same input text and style always yields the same output.
func (s *Synthesizer) enforce(text string, in Input) string {
	text = strings.TrimSpace(text)
	text = scrubForbidden(text, in.Style.ForbiddenPhrases)

	if !(in.Style.AllowEmoji && containsEmoji(in.Current.Text)) {
		text = stripEmoji(text)
	}

	longForm := wantsLongForm(in.Current.Text, in.Style)
	if in.Style.MatchUserLength && !longForm {
		text = trimToMirror(text, in.Current.Text)
	}

	return chat.EnforceMentionSpacing(text)
}

// FormatWindow renders resolved messages as prompt/context lines.
func FormatWindow(window []timeline.ResolvedMessage) []string {
	lines := make([]string, 0, len(window))
	for _, msg := range window {
		marker := ""
		if msg.IsCurrent {
			marker = " <- current"
		}
		lines = append(lines, fmt.Sprintf("[%s] %s: %s%s", msg.RelativeLabel, msg.AuthorName, msg.Text, marker))
	}
	return lines
}

func wantsLongForm(text string, style StyleConfig) bool {
	return strings.Contains(text, style.flag())
}

func stripFlag(text, flag string) string {
	return strings.TrimSpace(strings.ReplaceAll(text, flag, ""))
}

func scrubForbidden(text string, phrases []string) string {
	for _, phrase := range phrases {
		if phrase == "" {
			continue
		}
		for {
			start, end := foldIndex(text, phrase)
			if start < 0 {
				break
			}
			text = text[:start] + text[end:]
		}
	}
	// Collapse doubled spaces left behind by removals.
	for strings.Contains(text, "  ") {
		text = strings.ReplaceAll(text, "  ", " ")
	}
	return strings.TrimSpace(text)
}

// foldIndex locates the first case-insensitive occurrence of phrase in
// text and returns its byte bounds. Bounds are measured against text
// itself: indexing into a lowered copy would skew them for runes whose
// case mapping changes byte length.
func foldIndex(text, phrase string) (start, end int) {
	for i := range text {
		if n, ok := foldPrefix(text[i:], phrase); ok {
			return i, i + n
		}
	}
	return -1, -1
}

// foldPrefix reports whether s begins with a case-insensitive match of
// phrase, and how many bytes of s that match spans.
func foldPrefix(s, phrase string) (int, bool) {
	n := 0
	for _, pr := range phrase {
		sr, size := utf8.DecodeRuneInString(s[n:])
		if size == 0 {
			return 0, false
		}
		if sr != pr && unicode.ToLower(sr) != unicode.ToLower(pr) {
			return 0, false
		}
		n += size
	}
	return n, true
}

// trimToMirror caps the reply when the user's message was short. Cuts at a
// paragraph boundary where possible.
func trimToMirror(text, userText string) string {
	limit := len(userText) * 4
	if limit < briefReplyCap {
		limit = briefReplyCap
	}
	if len(text) <= limit {
		return text
	}
	for limit > 0 && !utf8.RuneStart(text[limit]) {
		limit--
	}
	window := text[:limit]
	if i := strings.LastIndex(window, "\n\n"); i > 0 {
		return strings.TrimSpace(window[:i])
	}
	if i := strings.LastIndex(window, ". "); i > 0 {
		return strings.TrimSpace(window[:i+1])
	}
	return strings.TrimSpace(window)
}

func appendCitations(text string, citations []collab.Citation) string {
	labels := make([]string, 0, len(citations))
	for _, c := range citations {
		if c.URL != "" {
			labels = append(labels, fmt.Sprintf("%s (%s)", c.Label, c.URL))
		} else {
			labels = append(labels, c.Label)
		}
	}
	return text + "\n\nSources: " + strings.Join(labels, ", ")
}
