// Package mocks holds the shared test doubles for the boundaries the
// engine depends on. Package-local stubs stay in their own packages; these
// are the ones several test suites need.
package mocks

import (
	"context"
	"sync"

	"github.com/junkielabs/junkie/internal/collab"
	"github.com/junkielabs/junkie/internal/route"
	"github.com/junkielabs/junkie/internal/timeline"
)

// Messenger records every send and never fails unless told to.
type Messenger struct {
	mu    sync.Mutex
	sends []Sent
	Err   error
}

// Sent is one recorded delivery.
type Sent struct {
	ConversationID string
	Text           string
}

// Send implements chat.Messenger's send half.
func (m *Messenger) Send(_ context.Context, conversationID, text string) error {
	if m.Err != nil {
		return m.Err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sends = append(m.sends, Sent{ConversationID: conversationID, Text: text})
	return nil
}

// Sends returns a copy of everything delivered so far.
func (m *Messenger) Sends() []Sent {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Sent, len(m.sends))
	copy(out, m.sends)
	return out
}

// Generator returns scripted outputs in order, repeating the last one.
type Generator struct {
	mu      sync.Mutex
	Outputs []string
	Err     error
	prompts []string
}

// Generate implements the generator contract.
func (g *Generator) Generate(_ context.Context, prompt string) (string, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.Err != nil {
		return "", g.Err
	}
	g.prompts = append(g.prompts, prompt)
	if len(g.Outputs) == 0 {
		return "scripted reply", nil
	}
	out := g.Outputs[0]
	if len(g.Outputs) > 1 {
		g.Outputs = g.Outputs[1:]
	}
	return out, nil
}

// Prompts returns every prompt seen so far.
func (g *Generator) Prompts() []string {
	g.mu.Lock()
	defer g.mu.Unlock()
	out := make([]string, len(g.prompts))
	copy(out, g.prompts)
	return out
}

// Delegator returns a scripted result and records what it was asked.
type Delegator struct {
	mu       sync.Mutex
	Result   collab.Result
	plans    []route.Plan
	requests []collab.Request
}

// Route implements the engine's delegator contract.
func (d *Delegator) Route(_ context.Context, plan route.Plan, req collab.Request) collab.Result {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.plans = append(d.plans, plan)
	d.requests = append(d.requests, req)
	return d.Result
}

// Calls returns the recorded plans and requests.
func (d *Delegator) Calls() ([]route.Plan, []collab.Request) {
	d.mu.Lock()
	defer d.mu.Unlock()
	plans := make([]route.Plan, len(d.plans))
	copy(plans, d.plans)
	reqs := make([]collab.Request, len(d.requests))
	copy(reqs, d.requests)
	return plans, reqs
}

// Archive is an in-memory stand-in for the message store.
type Archive struct {
	mu       sync.Mutex
	messages map[string][]timeline.Message
	Err      error
}

// NewArchive creates an empty in-memory archive.
func NewArchive() *Archive {
	return &Archive{messages: make(map[string][]timeline.Message)}
}

// Append implements the archiver contract.
func (a *Archive) Append(_ context.Context, conversationID string, msg timeline.Message) error {
	if a.Err != nil {
		return a.Err
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	a.messages[conversationID] = append(a.messages[conversationID], msg)
	return nil
}

// UpdateText implements the archiver contract.
func (a *Archive) UpdateText(_ context.Context, conversationID, messageID, text string) error {
	if a.Err != nil {
		return a.Err
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	for i, msg := range a.messages[conversationID] {
		if msg.ID == messageID {
			a.messages[conversationID][i].Text = text
		}
	}
	return nil
}

// Delete implements the archiver contract.
func (a *Archive) Delete(_ context.Context, conversationID, messageID string) error {
	if a.Err != nil {
		return a.Err
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	kept := a.messages[conversationID][:0]
	for _, msg := range a.messages[conversationID] {
		if msg.ID != messageID {
			kept = append(kept, msg)
		}
	}
	a.messages[conversationID] = kept
	return nil
}

// Recent implements the archiver contract.
func (a *Archive) Recent(_ context.Context, conversationID string, limit int) ([]timeline.Message, error) {
	if a.Err != nil {
		return nil, a.Err
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	all := a.messages[conversationID]
	if len(all) > limit {
		all = all[len(all)-limit:]
	}
	out := make([]timeline.Message, len(all))
	copy(out, all)
	return out, nil
}

// Stored returns the conversation's archived messages.
func (a *Archive) Stored(conversationID string) []timeline.Message {
	a.mu.Lock()
	defer a.mu.Unlock()
	out := make([]timeline.Message, len(a.messages[conversationID]))
	copy(out, a.messages[conversationID])
	return out
}
