// Package route turns a task classification into collaborator calls: a
// fixed primary/fallback plan per category, one fallback attempt at most,
// and all failures settled into typed results before synthesis.
package route

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/junkielabs/junkie/internal/classify"
	"github.com/junkielabs/junkie/internal/collab"
)

// DefaultCallTimeout bounds a single collaborator call.
const DefaultCallTimeout = 25 * time.Second

// Plan is the delegation decision for one classified task.
type Plan struct {
	Primary           collab.ID
	Fallback          collab.ID
	RequiresChannelID bool
}

// Delegates reports whether the plan involves any collaborator at all.
func (p Plan) Delegates() bool { return p.Primary != "" }

// PlanFor maps a classification to its delegation plan. The table is fixed;
// classifications the table does not delegate (direct answers) yield an
// empty plan.
func PlanFor(task classify.Task) Plan {
	switch task {
	case classify.TaskDeepResearch:
		return Plan{Primary: collab.Research, Fallback: collab.QuickCompute}
	case classify.TaskQuickCompute:
		return Plan{Primary: collab.QuickCompute, Fallback: collab.Research}
	case classify.TaskSandboxedExec:
		return Plan{Primary: collab.SandboxExec, Fallback: collab.QuickCompute}
	case classify.TaskDeepHistory:
		return Plan{Primary: collab.History}
	case classify.TaskPlatformIntegration:
		return Plan{Primary: collab.Integration, RequiresChannelID: true}
	default:
		return Plan{}
	}
}

// SessionEnsurer guarantees a sandbox session exists for a conversation
// before the exec collaborator is invoked. The sandbox manager satisfies
// this.
type SessionEnsurer interface {
	Ensure(ctx context.Context, conversationID string) (sessionID string, err error)
}

// Router executes delegation plans against registered collaborators.
type Router struct {
	collaborators map[collab.ID]collab.Collaborator
	sessions      SessionEnsurer
	callTimeout   time.Duration
	logger        *zap.Logger
}

// Option configures a Router.
type Option func(*Router)

// WithSessionEnsurer wires the sandbox session guarantee for exec plans.
func WithSessionEnsurer(sessions SessionEnsurer) Option {
	return func(r *Router) { r.sessions = sessions }
}

// WithCallTimeout sets the per-call timeout.
func WithCallTimeout(timeout time.Duration) Option {
	return func(r *Router) { r.callTimeout = timeout }
}

// WithLogger attaches a logger.
func WithLogger(logger *zap.Logger) Option {
	return func(r *Router) { r.logger = logger }
}

// New creates a router over the given collaborators.
func New(collaborators []collab.Collaborator, opts ...Option) *Router {
	byID := make(map[collab.ID]collab.Collaborator, len(collaborators))
	for _, c := range collaborators {
		byID[c.ID()] = c
	}
	r := &Router{
		collaborators: byID,
		callTimeout:   DefaultCallTimeout,
		logger:        zap.NewNop(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Route executes one plan: primary first, then the fallback exactly once if
// the primary fails and a fallback exists. Every outcome is a settled
// Result; errors never escape to the caller as errors.
func (r *Router) Route(ctx context.Context, plan Plan, req collab.Request) collab.Result {
	if !plan.Delegates() {
		return collab.Failure(collab.ReasonRefused)
	}
	if plan.RequiresChannelID && req.ChannelID == "" {
		r.logger.Warn("plan needs a channel but request has none",
			zap.String("primary", string(plan.Primary)),
			zap.String("conversation_id", req.ConversationID))
		return collab.Failure(collab.ReasonRefused)
	}

	result := r.attempt(ctx, plan.Primary, plan, req)
	if result.Success || plan.Fallback == "" {
		return result
	}

	r.logger.Info("primary collaborator failed, trying fallback",
		zap.String("primary", string(plan.Primary)),
		zap.String("fallback", string(plan.Fallback)),
		zap.String("reason", string(result.Reason)))

	fallback := r.attempt(ctx, plan.Fallback, plan, req)
	if fallback.Success {
		return fallback
	}
	// Report the primary's reason; it is the more informative of the two.
	if fallback.Reason == collab.ReasonNone {
		fallback.Reason = result.Reason
	}
	return fallback
}

// attempt makes one bounded call and converts every failure mode to a
// settled Result.
func (r *Router) attempt(ctx context.Context, id collab.ID, plan Plan, req collab.Request) collab.Result {
	target, ok := r.collaborators[id]
	if !ok {
		r.logger.Error("no collaborator registered", zap.String("collaborator", string(id)))
		return collab.Failure(collab.ReasonRefused)
	}

	// The exec collaborator needs a live session before it is invoked; a
	// session that cannot be created counts as this attempt failing.
	if id == collab.SandboxExec && r.sessions != nil {
		sessionID, err := r.sessions.Ensure(ctx, req.ConversationID)
		if err != nil {
			r.logger.Warn("sandbox session unavailable",
				zap.String("conversation_id", req.ConversationID),
				zap.Error(err))
			return collab.Failure(collab.ReasonRefused)
		}
		req.SessionHint = sessionID
	}

	callCtx, cancel := context.WithTimeout(ctx, r.callTimeout)
	defer cancel()

	start := time.Now()
	result, err := target.Invoke(callCtx, req)
	elapsed := time.Since(start)

	if err != nil {
		reason := collab.ReasonRefused
		if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
			reason = collab.ReasonTimeout
		}
		r.logger.Warn("collaborator call failed",
			zap.String("collaborator", string(id)),
			zap.Duration("elapsed", elapsed),
			zap.Error(err))
		return collab.Failure(reason)
	}

	r.logger.Debug("collaborator call settled",
		zap.String("collaborator", string(id)),
		zap.Bool("success", result.Success),
		zap.Duration("elapsed", elapsed))
	return result
}

// Dispatch is one independent sub-task within a turn.
type Dispatch struct {
	Plan    Plan
	Request collab.Request
}

// RouteAll executes independent sub-tasks concurrently and waits for every
// one to settle before returning. The context carries the turn deadline;
// calls still pending when it expires are cancelled and settle as timeouts.
func (r *Router) RouteAll(ctx context.Context, dispatches []Dispatch) []collab.Result {
	results := make([]collab.Result, len(dispatches))

	var g errgroup.Group
	for i, d := range dispatches {
		i, d := i, d
		g.Go(func() error {
			results[i] = r.Route(ctx, d.Plan, d.Request)
			return nil
		})
	}
	_ = g.Wait()
	return results
}
