package command

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRun(t *testing.T) {
	output, err := Run(context.Background(), "echo", "hello", "world")
	require.NoError(t, err)
	assert.Contains(t, output, "hello world")
}

func TestRun_ExitCode(t *testing.T) {
	_, err := Run(context.Background(), "sh", "-c", "exit 3")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "(exit code 3)")
}

func TestRun_NotFound(t *testing.T) {
	_, err := Run(context.Background(), "definitely-not-a-command-xyz")
	assert.Error(t, err)
}

func TestRun_ContextCancellation(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	start := time.Now()
	_, err := Run(ctx, "sleep", "5")
	require.Error(t, err)
	assert.Less(t, time.Since(start), 2*time.Second)
}

func TestRunWithInput(t *testing.T) {
	output, err := RunWithInput(context.Background(), "alpha\nbeta\n", "grep", "beta")
	require.NoError(t, err)
	assert.Contains(t, output, "beta")
	assert.NotContains(t, output, "alpha")
}

func TestRunWithInput_StderrAppended(t *testing.T) {
	output, err := RunWithInput(context.Background(), "", "sh", "-c", "echo out; echo oops >&2")
	require.NoError(t, err)
	assert.Contains(t, output, "out")
	assert.Contains(t, output, "stderr: oops")
}
