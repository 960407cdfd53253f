package collab

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"
)

// httpRequest is the wire form posted to an HTTP collaborator.
type httpRequest struct {
	ConversationID string   `json:"conversation_id"`
	ChannelID      string   `json:"channel_id,omitempty"`
	Query          string   `json:"query"`
	Context        []string `json:"context,omitempty"`
	SessionHint    string   `json:"session_hint,omitempty"`
}

// httpResponse is the wire form an HTTP collaborator answers with.
type httpResponse struct {
	Payload   string     `json:"payload"`
	Citations []Citation `json:"citations,omitempty"`
}

// HTTPCollaborator invokes a helper agent over a JSON POST endpoint.
type HTTPCollaborator struct {
	id       ID
	endpoint string
	client   *http.Client
	logger   *zap.Logger
}

// HTTPOption configures an HTTPCollaborator.
type HTTPOption func(*HTTPCollaborator)

// WithHTTPClient replaces the default client, mainly for tests.
func WithHTTPClient(client *http.Client) HTTPOption {
	return func(h *HTTPCollaborator) { h.client = client }
}

// WithHTTPLogger attaches a logger.
func WithHTTPLogger(logger *zap.Logger) HTTPOption {
	return func(h *HTTPCollaborator) { h.logger = logger }
}

// NewHTTP creates a collaborator that posts tasks to endpoint. The caller
// bounds each call through the context; no client-level timeout is set so
// the per-call deadline stays the single source of truth.
func NewHTTP(id ID, endpoint string, opts ...HTTPOption) (*HTTPCollaborator, error) {
	if endpoint == "" {
		return nil, fmt.Errorf("collaborator %s: endpoint is required", id)
	}
	h := &HTTPCollaborator{
		id:       id,
		endpoint: endpoint,
		client:   &http.Client{},
		logger:   zap.NewNop(),
	}
	for _, opt := range opts {
		opt(h)
	}
	return h, nil
}

// ID implements Collaborator.
func (h *HTTPCollaborator) ID() ID { return h.id }

// Invoke posts the task and decodes the answer. HTTP-level rejections
// (non-2xx) settle as refused, undecodable or empty bodies as malformed;
// only transport faults surface as errors.
func (h *HTTPCollaborator) Invoke(ctx context.Context, req Request) (Result, error) {
	body, err := json.Marshal(httpRequest{
		ConversationID: req.ConversationID,
		ChannelID:      req.ChannelID,
		Query:          req.Query,
		Context:        req.ContextLines,
		SessionHint:    req.SessionHint,
	})
	if err != nil {
		return Result{}, fmt.Errorf("collaborator %s: encode request: %w", h.id, err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, h.endpoint, bytes.NewReader(body))
	if err != nil {
		return Result{}, fmt.Errorf("collaborator %s: build request: %w", h.id, err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	start := time.Now()
	resp, err := h.client.Do(httpReq)
	if err != nil {
		return Result{}, fmt.Errorf("collaborator %s: %w", h.id, err)
	}
	defer func() { _ = resp.Body.Close() }()

	h.logger.Debug("collaborator responded",
		zap.String("collaborator", string(h.id)),
		zap.Int("status", resp.StatusCode),
		zap.Duration("elapsed", time.Since(start)))

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return Failure(ReasonRefused), nil
	}

	var decoded httpResponse
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return Failure(ReasonMalformed), nil
	}
	if strings.TrimSpace(decoded.Payload) == "" {
		return Failure(ReasonMalformed), nil
	}

	return Result{Success: true, Payload: decoded.Payload, Citations: decoded.Citations}, nil
}
