package collab

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"
)

// Generator produces text from a prompt. The language-generation client
// satisfies this.
type Generator interface {
	Generate(ctx context.Context, prompt string) (string, error)
}

const quickComputePreamble = "Answer with the single fact or calculation result requested. " +
	"Be terse: one line, no preamble, no caveats. If the request cannot be " +
	"answered from general knowledge or arithmetic, say exactly: UNANSWERABLE.\n\n"

// GeneratorCollaborator answers quick-compute tasks (short arithmetic,
// single verifiable facts) through a lightweight generation call instead of
// a network round trip to a research agent.
type GeneratorCollaborator struct {
	id        ID
	generator Generator
	preamble  string
	logger    *zap.Logger
}

// NewQuickCompute creates the generator-backed quick-compute collaborator.
func NewQuickCompute(generator Generator, logger *zap.Logger) (*GeneratorCollaborator, error) {
	if generator == nil {
		return nil, fmt.Errorf("collaborator %s: generator is required", QuickCompute)
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &GeneratorCollaborator{
		id:        QuickCompute,
		generator: generator,
		preamble:  quickComputePreamble,
		logger:    logger,
	}, nil
}

// ID implements Collaborator.
func (g *GeneratorCollaborator) ID() ID { return g.id }

// Invoke runs one bounded generation call. A declined answer settles as
// refused rather than passing a non-answer to the synthesizer.
func (g *GeneratorCollaborator) Invoke(ctx context.Context, req Request) (Result, error) {
	prompt := g.preamble + req.Query
	output, err := g.generator.Generate(ctx, prompt)
	if err != nil {
		return Result{}, fmt.Errorf("collaborator %s: %w", g.id, err)
	}

	trimmed := strings.TrimSpace(output)
	if trimmed == "" {
		return Failure(ReasonMalformed), nil
	}
	if strings.Contains(trimmed, "UNANSWERABLE") {
		g.logger.Debug("quick compute declined", zap.String("conversation_id", req.ConversationID))
		return Failure(ReasonRefused), nil
	}
	return Result{Success: true, Payload: trimmed}, nil
}
