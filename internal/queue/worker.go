package queue

import (
	"context"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/junkielabs/junkie/internal/chat"
)

// DefaultWorkers is the worker count when none is configured.
const DefaultWorkers = 4

// Processor runs one turn end to end. The engine satisfies this.
type Processor interface {
	ProcessTurn(ctx context.Context, msg chat.IncomingMessage) error
}

// Pool drives the manager with a fixed set of workers. Parallelism across
// conversations is bounded by the worker count; within a conversation the
// manager's processing slot keeps turns sequential regardless.
type Pool struct {
	manager   *Manager
	processor Processor
	workers   int
	logger    *zap.Logger
}

// NewPool creates a worker pool.
func NewPool(manager *Manager, processor Processor, workers int, logger *zap.Logger) *Pool {
	if workers <= 0 {
		workers = DefaultWorkers
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Pool{
		manager:   manager,
		processor: processor,
		workers:   workers,
		logger:    logger,
	}
}

// Run blocks until the context ends and every worker has drained out.
func (p *Pool) Run(ctx context.Context) error {
	var g errgroup.Group
	for i := 0; i < p.workers; i++ {
		i := i
		g.Go(func() error {
			p.work(ctx, i)
			return nil
		})
	}
	return g.Wait()
}

func (p *Pool) work(ctx context.Context, id int) {
	for {
		turn, ok := p.manager.Next(ctx)
		if !ok {
			return
		}

		start := time.Now()
		err := p.processor.ProcessTurn(ctx, turn.Msg)
		p.manager.Complete(turn.Msg.ConversationID)

		if err != nil {
			p.logger.Error("turn failed",
				zap.Int("worker", id),
				zap.String("conversation_id", turn.Msg.ConversationID),
				zap.String("message_id", turn.Msg.ID),
				zap.Duration("elapsed", time.Since(start)),
				zap.Error(err))
			continue
		}
		p.logger.Debug("turn completed",
			zap.Int("worker", id),
			zap.String("conversation_id", turn.Msg.ConversationID),
			zap.Duration("queued", start.Sub(turn.EnqueuedAt)),
			zap.Duration("elapsed", time.Since(start)))
	}
}
