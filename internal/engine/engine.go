// Package engine runs one turn end to end: resolve the timeline, classify
// the request, delegate when called for, synthesize the reply, deliver it,
// and finalize the window and archive.
package engine

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/junkielabs/junkie/internal/chat"
	"github.com/junkielabs/junkie/internal/classify"
	"github.com/junkielabs/junkie/internal/collab"
	"github.com/junkielabs/junkie/internal/route"
	"github.com/junkielabs/junkie/internal/synth"
	"github.com/junkielabs/junkie/internal/timeline"
	"github.com/junkielabs/junkie/internal/window"
)

// DefaultTurnDeadline bounds one turn's total latency.
const DefaultTurnDeadline = 60 * time.Second

// synthesisFailureReply goes out when reply generation itself broke. Prose,
// never an error code.
const synthesisFailureReply = "I lost my train of thought there. Mind asking that again?"

// Delegator executes a delegation plan. The router satisfies this.
type Delegator interface {
	Route(ctx context.Context, plan route.Plan, req collab.Request) collab.Result
}

// Replier produces the user-facing text. The synthesizer satisfies this.
type Replier interface {
	Synthesize(ctx context.Context, in synth.Input) (string, error)
}

// Sender delivers replies. The chat messenger satisfies this.
type Sender interface {
	Send(ctx context.Context, conversationID, text string) error
}

// Archiver persists finalized messages. The store satisfies this; nil
// disables persistence.
type Archiver interface {
	Append(ctx context.Context, conversationID string, msg timeline.Message) error
	UpdateText(ctx context.Context, conversationID, messageID, text string) error
	Delete(ctx context.Context, conversationID, messageID string) error
	Recent(ctx context.Context, conversationID string, limit int) ([]timeline.Message, error)
}

// Config wires an Engine.
type Config struct {
	Delegator Delegator
	Replier   Replier
	Messenger Sender
	// Archive may be nil; the window then starts empty on every boot.
	Archive Archiver

	Style          synth.StyleConfig
	TurnDeadline   time.Duration
	WindowCapacity int
	SkewTolerance  time.Duration
	Logger         *zap.Logger
	// Clock supplies "now" for each turn; time.Now when nil.
	Clock func() time.Time
}

// Engine processes turns. It satisfies the queue's Processor interface.
// Turns for one conversation arrive sequentially from the scheduler; the
// window map mutex only guards cross-conversation access.
type Engine struct {
	delegator Delegator
	replier   Replier
	messenger Sender
	archive   Archiver

	resolver     *timeline.Resolver
	style        synth.StyleConfig
	turnDeadline time.Duration
	windowCap    int
	logger       *zap.Logger
	clock        func() time.Time

	mu      sync.Mutex
	windows map[string]*window.Window
}

// New creates an engine.
func New(cfg Config) (*Engine, error) {
	if cfg.Delegator == nil {
		return nil, fmt.Errorf("engine: delegator is required")
	}
	if cfg.Replier == nil {
		return nil, fmt.Errorf("engine: replier is required")
	}
	if cfg.Messenger == nil {
		return nil, fmt.Errorf("engine: messenger is required")
	}
	if cfg.TurnDeadline <= 0 {
		cfg.TurnDeadline = DefaultTurnDeadline
	}
	if cfg.WindowCapacity <= 0 {
		cfg.WindowCapacity = window.DefaultCapacity
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	if cfg.Clock == nil {
		cfg.Clock = time.Now
	}

	return &Engine{
		delegator:    cfg.Delegator,
		replier:      cfg.Replier,
		messenger:    cfg.Messenger,
		archive:      cfg.Archive,
		resolver:     timeline.NewResolver(cfg.SkewTolerance),
		style:        cfg.Style,
		turnDeadline: cfg.TurnDeadline,
		windowCap:    cfg.WindowCapacity,
		logger:       cfg.Logger,
		clock:        cfg.Clock,
	}, nil
}

// ProcessTurn handles one inbound event.
func (e *Engine) ProcessTurn(ctx context.Context, msg chat.IncomingMessage) error {
	switch msg.Kind {
	case chat.KindEdit:
		return e.handleEdit(ctx, msg)
	case chat.KindDelete:
		return e.handleDelete(ctx, msg)
	}

	now := e.clock()
	win := e.windowFor(ctx, msg.ConversationID)
	current := toTimelineMessage(msg)

	history := append(win.Snapshot(), current)
	resolved, err := e.resolver.Resolve(history, now)
	if err != nil {
		if timeline.IsClockSkew(err) {
			e.logger.Warn("turn aborted on clock skew",
				zap.String("conversation_id", msg.ConversationID),
				zap.String("message_id", msg.ID),
				zap.Error(err))
			return e.messenger.Send(ctx, msg.ConversationID, synth.ClockSkewReply)
		}
		return fmt.Errorf("engine: resolve timeline: %w", err)
	}

	resolvedCurrent := resolved[len(resolved)-1]
	task := classify.New(win).Classify(resolvedCurrent, e.replyContext(msg, resolved))

	e.logger.Info("turn classified",
		zap.String("conversation_id", msg.ConversationID),
		zap.String("message_id", msg.ID),
		zap.String("task", task.String()))

	turnCtx, cancel := context.WithTimeout(ctx, e.turnDeadline)
	defer cancel()

	var result *collab.Result
	if plan := route.PlanFor(task); plan.Delegates() {
		settled := e.delegator.Route(turnCtx, plan, collab.Request{
			ConversationID: msg.ConversationID,
			ChannelID:      msg.ChannelID,
			Query:          msg.Text,
			ContextLines:   synth.FormatWindow(resolved),
		})
		result = &settled
	}

	reply, err := e.replier.Synthesize(turnCtx, synth.Input{
		Task:    task,
		Result:  result,
		Current: resolvedCurrent,
		Window:  resolved,
		Style:   e.style,
		Now:     now,
	})
	if err != nil {
		// The user still gets prose; the error stays in the logs.
		if sendErr := e.messenger.Send(ctx, msg.ConversationID, synthesisFailureReply); sendErr != nil {
			e.logger.Error("failure reply undeliverable", zap.Error(sendErr))
		}
		return fmt.Errorf("engine: synthesize: %w", err)
	}

	if err := e.messenger.Send(turnCtx, msg.ConversationID, reply); err != nil {
		return fmt.Errorf("engine: send reply: %w", err)
	}

	e.finalize(ctx, win, msg.ConversationID, current)
	return nil
}

// finalize appends the now-answered message to the window and the archive.
// The turn deadline no longer applies; persistence should not be lost to a
// slow collaborator earlier in the turn.
func (e *Engine) finalize(ctx context.Context, win *window.Window, conversationID string, current timeline.Message) {
	if err := win.Append(current); err != nil {
		e.logger.Warn("window append rejected",
			zap.String("conversation_id", conversationID),
			zap.Error(err))
		return
	}
	if e.archive == nil {
		return
	}
	if err := e.archive.Append(context.WithoutCancel(ctx), conversationID, current); err != nil {
		e.logger.Error("archive append failed",
			zap.String("conversation_id", conversationID),
			zap.Error(err))
	}
}

func (e *Engine) handleEdit(ctx context.Context, msg chat.IncomingMessage) error {
	if e.archive == nil {
		return nil
	}
	if err := e.archive.UpdateText(ctx, msg.ConversationID, msg.ID, msg.Text); err != nil {
		return fmt.Errorf("engine: apply edit: %w", err)
	}
	return nil
}

func (e *Engine) handleDelete(ctx context.Context, msg chat.IncomingMessage) error {
	if e.archive == nil {
		return nil
	}
	if err := e.archive.Delete(ctx, msg.ConversationID, msg.ID); err != nil {
		return fmt.Errorf("engine: apply delete: %w", err)
	}
	return nil
}

// windowFor returns the conversation's window, hydrating a new one from
// the archive so restarts keep recent context.
func (e *Engine) windowFor(ctx context.Context, conversationID string) *window.Window {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.windows == nil {
		e.windows = make(map[string]*window.Window)
	}
	if win, ok := e.windows[conversationID]; ok {
		return win
	}

	win := window.New(e.windowCap)
	if e.archive != nil {
		recent, err := e.archive.Recent(ctx, conversationID, e.windowCap)
		if err != nil {
			e.logger.Warn("window hydration failed",
				zap.String("conversation_id", conversationID),
				zap.Error(err))
		}
		for _, msg := range recent {
			if err := win.Append(msg); err != nil {
				e.logger.Warn("hydrated message out of order",
					zap.String("message_id", msg.ID),
					zap.Error(err))
				break
			}
		}
	}
	e.windows[conversationID] = win
	return win
}

// replyContext resolves the replied-to message: from the window when still
// retained, from the quoted text otherwise.
func (e *Engine) replyContext(msg chat.IncomingMessage, resolved []timeline.ResolvedMessage) *classify.ReplyContext {
	if msg.ReplyToID == "" {
		return nil
	}
	for _, r := range resolved {
		if r.ID == msg.ReplyToID && !r.IsCurrent {
			return &classify.ReplyContext{Target: r}
		}
	}
	if msg.ReplyToText != "" {
		return &classify.ReplyContext{Target: timeline.ResolvedMessage{
			Message: timeline.Message{ID: msg.ReplyToID, Text: msg.ReplyToText},
		}}
	}
	return nil
}

func toTimelineMessage(msg chat.IncomingMessage) timeline.Message {
	return timeline.Message{
		ID:         msg.ID,
		AuthorID:   msg.AuthorID,
		AuthorName: msg.AuthorName,
		Text:       msg.Text,
		SentAt:     msg.SentAt,
		ReplyToID:  msg.ReplyToID,
	}
}
