package collab

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/junkielabs/junkie/internal/sandbox"
)

// SandboxRunner executes a command inside the conversation's isolated
// session. The sandbox manager satisfies this.
type SandboxRunner interface {
	Execute(ctx context.Context, conversationID, command string) (string, error)
}

// ExecCollaborator runs code and file manipulation tasks inside the
// per-conversation sandbox session.
type ExecCollaborator struct {
	runner SandboxRunner
	logger *zap.Logger
}

// NewExec creates the sandbox-backed execution collaborator.
func NewExec(runner SandboxRunner, logger *zap.Logger) (*ExecCollaborator, error) {
	if runner == nil {
		return nil, fmt.Errorf("collaborator %s: runner is required", SandboxExec)
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ExecCollaborator{runner: runner, logger: logger}, nil
}

// ID implements Collaborator.
func (e *ExecCollaborator) ID() ID { return SandboxExec }

// Invoke runs the task in the conversation's sandbox. An unavailable
// sandbox settles as refused so the router can fall back to a
// non-sandboxed collaborator.
func (e *ExecCollaborator) Invoke(ctx context.Context, req Request) (Result, error) {
	output, err := e.runner.Execute(ctx, req.ConversationID, req.Query)
	if err != nil {
		if errors.Is(err, sandbox.ErrUnavailable) {
			e.logger.Warn("sandbox unavailable",
				zap.String("conversation_id", req.ConversationID),
				zap.Error(err))
			return Failure(ReasonRefused), nil
		}
		return Result{}, fmt.Errorf("collaborator %s: %w", SandboxExec, err)
	}

	if strings.TrimSpace(output) == "" {
		return Failure(ReasonMalformed), nil
	}
	return Result{Success: true, Payload: output}, nil
}
