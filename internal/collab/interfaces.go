// Package collab defines the uniform contract for the specialized helper
// agents the assistant delegates sub-tasks to, plus the built-in
// implementations. Collaborators are opaque beyond Invoke: the caller never
// depends on what sits behind one.
package collab

import (
	"context"
)

// ID names a delegation target. The set is closed; routing tables key on it.
type ID string

const (
	// Research handles open-ended factual questions needing verification.
	Research ID = "research"
	// QuickCompute handles short calculations and single verifiable facts.
	QuickCompute ID = "quick-compute"
	// SandboxExec runs code and file manipulation inside an isolated session.
	SandboxExec ID = "sandbox-exec"
	// History looks up conversation content older than the retained window.
	History ID = "history"
	// Integration performs explicit platform actions (reminders, events).
	Integration ID = "integration"
)

// Request is the task payload handed to a collaborator.
type Request struct {
	// ConversationID scopes the task to one conversation.
	ConversationID string
	// ChannelID is set when the platform action needs a channel target.
	ChannelID string
	// Query is the task text, typically the user's message.
	Query string
	// ContextLines are formatted recent-window lines, oldest first.
	ContextLines []string
	// SessionHint carries an existing sandbox session ID, when one exists.
	SessionHint string
}

// FailureReason is the typed cause attached to an unsuccessful Result.
type FailureReason string

const (
	ReasonNone      FailureReason = ""
	ReasonTimeout   FailureReason = "timeout"
	ReasonRefused   FailureReason = "refused"
	ReasonMalformed FailureReason = "malformed"
)

// Citation is a source reference a collaborator attaches to its payload.
type Citation struct {
	Label string `json:"label"`
	URL   string `json:"url,omitempty"`
}

// Result is the settled outcome of one collaborator call: either a usable
// payload with optional citations, or a typed failure reason. It is a value,
// not an error; transport faults are converted to failures at the router
// boundary and never reach the synthesizer as errors.
type Result struct {
	Success   bool
	Payload   string
	Citations []Citation
	Reason    FailureReason
}

// Failure builds an unsuccessful Result with the given reason.
func Failure(reason FailureReason) Result {
	return Result{Success: false, Reason: reason}
}

// Collaborator is the single interface every delegation target satisfies.
// Invoke returns a transport-level error only when the call itself could not
// complete (connection refused, context cancelled); a collaborator that
// answered, even unhelpfully, returns a Result and a nil error.
type Collaborator interface {
	ID() ID
	Invoke(ctx context.Context, req Request) (Result, error)
}
