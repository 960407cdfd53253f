// Package llm wraps the language-generation CLI the assistant uses to
// produce prose. The engine depends only on the Generator interface; the
// CLI client here is the production implementation.
package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/junkielabs/junkie/internal/command"
)

// DefaultTimeout bounds a single generation call.
const DefaultTimeout = 30 * time.Second

// Generator produces text from a prompt.
type Generator interface {
	Generate(ctx context.Context, prompt string) (string, error)
}

// Config holds the generation CLI settings.
type Config struct {
	// Command is the CLI binary to invoke.
	Command string
	// Args are fixed arguments prepended to every call.
	Args []string
	// Model selects the model, passed as --model when set.
	Model string
	// Timeout bounds one call; DefaultTimeout when zero.
	Timeout time.Duration
}

// commandRunner is the exec seam, replaceable in tests.
type commandRunner interface {
	RunWithInput(ctx context.Context, input, name string, args ...string) (string, error)
}

type realRunner struct{}

func (realRunner) RunWithInput(ctx context.Context, input, name string, args ...string) (string, error) {
	return command.RunWithInput(ctx, input, name, args...)
}

// Client runs the generation CLI with the prompt on stdin and parses the
// JSON answer.
type Client struct {
	config Config
	runner commandRunner
	logger *zap.Logger
}

// NewClient creates a generation client.
func NewClient(config Config, logger *zap.Logger) (*Client, error) {
	if config.Command == "" {
		return nil, fmt.Errorf("llm: command cannot be empty")
	}
	if config.Timeout == 0 {
		config.Timeout = DefaultTimeout
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Client{config: config, runner: realRunner{}, logger: logger}, nil
}

// cliResponse is the JSON envelope the generation CLI prints. Some builds
// use "result", others "message"; both are accepted.
type cliResponse struct {
	Result  string `json:"result"`
	Message string `json:"message"`
	IsError bool   `json:"is_error"`
}

// Generate implements Generator.
func (c *Client) Generate(ctx context.Context, prompt string) (string, error) {
	if strings.TrimSpace(prompt) == "" {
		return "", fmt.Errorf("llm: prompt cannot be empty")
	}

	callCtx, cancel := context.WithTimeout(ctx, c.config.Timeout)
	defer cancel()

	args := append([]string{}, c.config.Args...)
	if c.config.Model != "" {
		args = append(args, "--model", c.config.Model)
	}

	start := time.Now()
	output, err := c.runner.RunWithInput(callCtx, prompt, c.config.Command, args...)
	if err != nil {
		if callCtx.Err() != nil {
			return "", fmt.Errorf("llm: generation timed out after %s: %w", c.config.Timeout, callCtx.Err())
		}
		return "", fmt.Errorf("llm: generation failed: %w", err)
	}

	c.logger.Debug("generation completed",
		zap.Duration("elapsed", time.Since(start)),
		zap.Int("output_bytes", len(output)))

	return parseOutput(output)
}

// parseOutput extracts the text from the CLI's JSON envelope, falling back
// to the raw output when it is not JSON at all.
func parseOutput(output string) (string, error) {
	trimmed := strings.TrimSpace(output)
	if trimmed == "" {
		return "", fmt.Errorf("llm: empty output")
	}

	var decoded cliResponse
	if err := json.Unmarshal([]byte(trimmed), &decoded); err != nil {
		return trimmed, nil
	}
	if decoded.IsError {
		text := decoded.Result
		if text == "" {
			text = decoded.Message
		}
		return "", fmt.Errorf("llm: generation reported an error: %s", text)
	}
	if decoded.Result != "" {
		return decoded.Result, nil
	}
	if decoded.Message != "" {
		return decoded.Message, nil
	}
	return "", fmt.Errorf("llm: output carried no text")
}
