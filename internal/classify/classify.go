// Package classify maps an incoming request onto the fixed capability
// taxonomy that drives delegation.
package classify

import (
	"regexp"
	"strings"

	"github.com/junkielabs/junkie/internal/timeline"
)

// Task is the capability category assigned to an incoming message.
// Exactly one label is produced per message.
type Task int

const (
	// TaskDirect means answer without delegation.
	TaskDirect Task = iota
	// TaskDeepResearch is an open-ended factual question needing verification.
	TaskDeepResearch
	// TaskQuickCompute is a short calculation or single verifiable fact.
	TaskQuickCompute
	// TaskSandboxedExec is code execution, file manipulation, or multi-step
	// computation.
	TaskSandboxedExec
	// TaskDeepHistory needs conversation history beyond the window.
	TaskDeepHistory
	// TaskPlatformIntegration is an explicit platform action request.
	TaskPlatformIntegration
)

// String returns the task name used in logs.
func (t Task) String() string {
	switch t {
	case TaskDirect:
		return "direct"
	case TaskDeepResearch:
		return "deep_research"
	case TaskQuickCompute:
		return "quick_compute"
	case TaskSandboxedExec:
		return "sandboxed_exec"
	case TaskDeepHistory:
		return "deep_history"
	case TaskPlatformIntegration:
		return "platform_integration"
	default:
		return "unknown"
	}
}

// ReplyContext carries the message a user replied to. It resolves anaphora
// ("this", "that") by contributing its text to classification; it is never
// classified on its own and never treated as the current message.
type ReplyContext struct {
	Target timeline.ResolvedMessage
}

// HistoryHinter signals that a query plausibly reaches past the retained
// window. The window manager satisfies this.
type HistoryHinter interface {
	NeedsDeepHistory(query string) bool
}

// Classifier applies the priority-ordered rule table. Rules are evaluated
// first-match-wins, so ambiguous inputs resolve to the most specific rule.
type Classifier struct {
	hinter HistoryHinter
}

// New creates a classifier. A nil hinter disables the window-based part of
// the deep-history rule; the phrase-based part still applies.
func New(hinter HistoryHinter) *Classifier {
	return &Classifier{hinter: hinter}
}

var (
	platformTriggers = []string{
		"remind me",
		"set a reminder",
		"schedule a",
		"create an event",
		"add to calendar",
		"add to my calendar",
		"send an email",
		"send a mail",
		"create an issue",
		"open a ticket",
		"create a poll",
		"pin this",
	}

	execTriggers = []string{
		"run this",
		"run the code",
		"run some code",
		"execute",
		"write a script",
		"write and run",
		"plot",
		"generate a chart",
		"generate a graph",
		"benchmark",
		"simulate",
		"parse this file",
		"create a file",
		"pip install",
	}

	quickTriggers = []string{
		"quick",
		"what's the square root",
		"convert",
		"how many",
		"what time is it",
		"when was",
		"population of",
		"capital of",
	}

	historyTriggers = []string{
		"what did i say",
		"what did you say",
		"what did we talk about",
		"who said",
		"who mentioned",
		"earlier",
		"previously",
		"remember when",
		"last week",
		"last month",
	}

	researchTriggers = []string{
		"latest",
		"news",
		"current",
		"research",
		"compare",
		"look up",
		"search for",
		"find out",
		"verify",
		"is it true",
		"who is",
		"what is",
		"what are",
		"how does",
		"why",
	}

	// arithmeticPattern catches inline calculations like "847 × 392" or
	// "12.5 * 3".
	arithmeticPattern = regexp.MustCompile(`\d+(?:\.\d+)?\s*[-+*/x×^%]\s*\d`)
)

// Classify assigns exactly one task to the current message. Reply context,
// when present, is unioned into the text under inspection.
func (c *Classifier) Classify(current timeline.ResolvedMessage, reply *ReplyContext) Task {
	text := current.Text
	if reply != nil {
		text = text + "\n" + reply.Target.Text
	}
	lowered := strings.ToLower(text)

	switch {
	case containsAny(lowered, platformTriggers):
		return TaskPlatformIntegration
	case containsAny(lowered, execTriggers):
		return TaskSandboxedExec
	case arithmeticPattern.MatchString(lowered) || containsAny(lowered, quickTriggers):
		return TaskQuickCompute
	case containsAny(lowered, historyTriggers) ||
		(c.hinter != nil && c.hinter.NeedsDeepHistory(current.Text)):
		return TaskDeepHistory
	case containsAny(lowered, researchTriggers) || strings.HasSuffix(strings.TrimSpace(lowered), "?"):
		return TaskDeepResearch
	default:
		return TaskDirect
	}
}

func containsAny(text string, phrases []string) bool {
	for _, phrase := range phrases {
		if strings.Contains(text, phrase) {
			return true
		}
	}
	return false
}
