package sandbox

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/junkielabs/junkie/internal/command"
)

// runFunc and runWithInputFunc are seams over the command package so tests
// can script backend behavior without spawning processes.
type runFunc func(ctx context.Context, name string, args ...string) (string, error)
type runWithInputFunc func(ctx context.Context, input, name string, args ...string) (string, error)

// CLIBackend drives execution environments through a provisioning CLI:
// `<tool> create --ttl <seconds>` prints a session ID, `<tool> exec <id>`
// reads the command on stdin, `<tool> kill <id>` tears the session down.
type CLIBackend struct {
	tool         string
	run          runFunc
	runWithInput runWithInputFunc
}

// NewCLIBackend creates a backend using the given provisioning tool.
func NewCLIBackend(tool string) (*CLIBackend, error) {
	if tool == "" {
		return nil, fmt.Errorf("sandbox: provisioning tool is required")
	}
	return &CLIBackend{
		tool:         tool,
		run:          command.Run,
		runWithInput: command.RunWithInput,
	}, nil
}

// Create implements Backend.
func (b *CLIBackend) Create(ctx context.Context, ttl time.Duration) (string, error) {
	seconds := strconv.Itoa(int(ttl / time.Second))
	output, err := b.run(ctx, b.tool, "create", "--ttl", seconds)
	if err != nil {
		return "", err
	}
	id := strings.TrimSpace(output)
	if id == "" {
		return "", fmt.Errorf("sandbox: %s create returned no session id", b.tool)
	}
	return id, nil
}

// Execute implements Backend.
func (b *CLIBackend) Execute(ctx context.Context, sessionID, cmd string) (string, error) {
	return b.runWithInput(ctx, cmd, b.tool, "exec", sessionID)
}

// Terminate implements Backend.
func (b *CLIBackend) Terminate(ctx context.Context, sessionID string) error {
	_, err := b.run(ctx, b.tool, "kill", sessionID)
	return err
}
