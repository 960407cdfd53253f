package classify_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/junkielabs/junkie/internal/classify"
	"github.com/junkielabs/junkie/internal/timeline"
)

type stubHinter struct{ deep bool }

func (s stubHinter) NeedsDeepHistory(string) bool { return s.deep }

func current(text string) timeline.ResolvedMessage {
	return timeline.ResolvedMessage{
		Message: timeline.Message{
			ID:         "m1",
			AuthorID:   "1001",
			AuthorName: "Priya",
			Text:       text,
			SentAt:     time.Date(2024, time.May, 2, 11, 0, 0, 0, timeline.DisplayZone),
		},
		RelativeLabel: "0m ago",
		IsCurrent:     true,
	}
}

func TestClassifier_RuleTable(t *testing.T) {
	c := classify.New(stubHinter{})

	tests := []struct {
		name string
		text string
		want classify.Task
	}{
		{"platform action", "remind me to submit the report at 6pm", classify.TaskPlatformIntegration},
		{"platform beats exec", "schedule a run this evening and execute the plan", classify.TaskPlatformIntegration},
		{"sandboxed execution", "write a script that renames all these files", classify.TaskSandboxedExec},
		{"chart request", "plot the monthly totals from this CSV", classify.TaskSandboxedExec},
		{"arithmetic", "what's 847 × 392", classify.TaskQuickCompute},
		{"ascii arithmetic", "12.5 * 3 please", classify.TaskQuickCompute},
		{"quick fact", "quick: capital of mongolia", classify.TaskQuickCompute},
		{"history recall", "what did I say about the venue?", classify.TaskDeepHistory},
		{"open research", "compare the newest mirrorless cameras", classify.TaskDeepResearch},
		{"bare question", "is the library open on sundays?", classify.TaskDeepResearch},
		{"chitchat", "good morning folks", classify.TaskDirect},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, c.Classify(current(tt.text), nil))
		})
	}
}

func TestClassifier_HinterTriggersDeepHistory(t *testing.T) {
	withHint := classify.New(stubHinter{deep: true})
	withoutHint := classify.New(stubHinter{deep: false})

	// No explicit recall phrasing; only the window hint differs.
	msg := current("did anyone settle the venue debate")

	assert.Equal(t, classify.TaskDeepHistory, withHint.Classify(msg, nil))
	assert.Equal(t, classify.TaskDirect, withoutHint.Classify(msg, nil))
}

func TestClassifier_ReplyContextUnioned(t *testing.T) {
	c := classify.New(stubHinter{})

	reply := &classify.ReplyContext{
		Target: timeline.ResolvedMessage{
			Message: timeline.Message{ID: "m0", Text: "execute the migration script on staging"},
		},
	}

	// "do this" alone is DIRECT; the replied-to text pulls it to exec.
	assert.Equal(t, classify.TaskDirect, c.Classify(current("do this"), nil))
	assert.Equal(t, classify.TaskSandboxedExec, c.Classify(current("do this"), reply))
}

func TestClassifier_Deterministic(t *testing.T) {
	c := classify.New(stubHinter{})
	msg := current("run this benchmark and compare the latest results?")

	first := c.Classify(msg, nil)
	for i := 0; i < 50; i++ {
		assert.Equal(t, first, c.Classify(msg, nil))
	}
	assert.Equal(t, classify.TaskSandboxedExec, first)
}
