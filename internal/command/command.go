// Package command wraps external process execution. Every exec in the
// codebase goes through here so timeouts and error detail stay consistent.
package command

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"strings"
	"time"
)

// DefaultTimeout bounds commands whose context carries no deadline.
const DefaultTimeout = 30 * time.Second

// Run executes a command and returns its combined output. A default
// timeout is applied when the context has no deadline.
func Run(ctx context.Context, name string, args ...string) (string, error) {
	ctx, cancel := withDefaultDeadline(ctx)
	defer cancel()

	cmd := exec.CommandContext(ctx, name, args...)
	output, err := cmd.CombinedOutput()
	if err != nil {
		return "", describe(name, args, string(output), err)
	}
	return string(output), nil
}

// RunWithInput executes a command with input on stdin and returns stdout,
// with stderr appended when non-empty.
func RunWithInput(ctx context.Context, input, name string, args ...string) (string, error) {
	ctx, cancel := withDefaultDeadline(ctx)
	defer cancel()

	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Stdin = strings.NewReader(input)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()
	output := stdout.String()
	if stderr.Len() > 0 {
		if output != "" {
			output += "\n"
		}
		output += "stderr: " + stderr.String()
	}
	if err != nil {
		return output, describe(name, args, output, err)
	}
	return output, nil
}

func withDefaultDeadline(ctx context.Context) (context.Context, context.CancelFunc) {
	if _, hasDeadline := ctx.Deadline(); hasDeadline {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, DefaultTimeout)
}

func describe(name string, args []string, output string, err error) error {
	if exitErr, ok := err.(*exec.ExitError); ok {
		return fmt.Errorf("command failed: %s %s (exit code %d): %s",
			name, strings.Join(args, " "), exitErr.ExitCode(), output)
	}
	return fmt.Errorf("command failed: %s %s: %w (output: %s)",
		name, strings.Join(args, " "), err, output)
}
