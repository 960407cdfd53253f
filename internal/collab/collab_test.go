package collab_test

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/junkielabs/junkie/internal/collab"
	"github.com/junkielabs/junkie/internal/sandbox"
	"github.com/junkielabs/junkie/internal/timeline"
)

func TestHTTPCollaborator_Success(t *testing.T) {
	var got map[string]any
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		_ = json.NewEncoder(w).Encode(map[string]any{
			"payload": "The venue opens at 9am.",
			"citations": []map[string]string{
				{"label": "venue site", "url": "https://example.com/hours"},
			},
		})
	}))
	defer server.Close()

	c, err := collab.NewHTTP(collab.Research, server.URL)
	require.NoError(t, err)

	result, err := c.Invoke(context.Background(), collab.Request{
		ConversationID: "conv-1",
		Query:          "when does the venue open?",
		ContextLines:   []string{"[2m ago] Priya: planning the visit"},
	})
	require.NoError(t, err)

	assert.True(t, result.Success)
	assert.Equal(t, "The venue opens at 9am.", result.Payload)
	require.Len(t, result.Citations, 1)
	assert.Equal(t, "venue site", result.Citations[0].Label)

	assert.Equal(t, "conv-1", got["conversation_id"])
	assert.Equal(t, "when does the venue open?", got["query"])
}

func TestHTTPCollaborator_NonOKSettlesAsRefused(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "overloaded", http.StatusServiceUnavailable)
	}))
	defer server.Close()

	c, err := collab.NewHTTP(collab.Research, server.URL)
	require.NoError(t, err)

	result, err := c.Invoke(context.Background(), collab.Request{Query: "anything"})
	require.NoError(t, err)
	assert.False(t, result.Success)
	assert.Equal(t, collab.ReasonRefused, result.Reason)
}

func TestHTTPCollaborator_MalformedBody(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"not json", "definitely not json"},
		{"empty payload", `{"payload": "  "}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
				fmt.Fprint(w, tt.body)
			}))
			defer server.Close()

			c, err := collab.NewHTTP(collab.Research, server.URL)
			require.NoError(t, err)

			result, err := c.Invoke(context.Background(), collab.Request{Query: "anything"})
			require.NoError(t, err)
			assert.Equal(t, collab.ReasonMalformed, result.Reason)
		})
	}
}

func TestHTTPCollaborator_DeadlinePropagates(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-r.Context().Done()
	}))
	defer server.Close()

	c, err := collab.NewHTTP(collab.Research, server.URL)
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	_, err = c.Invoke(ctx, collab.Request{Query: "anything"})
	require.Error(t, err)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

type stubSearcher struct {
	matches []timeline.Message
	err     error
}

func (s stubSearcher) Search(context.Context, string, string, int) ([]timeline.Message, error) {
	return s.matches, s.err
}

func TestHistoryCollaborator_FormatsMatches(t *testing.T) {
	sentAt := time.Date(2024, time.January, 3, 9, 30, 0, 0, timeline.DisplayZone)
	c, err := collab.NewHistory(stubSearcher{matches: []timeline.Message{
		{ID: "m1", AuthorName: "Alex", Text: "demo is friday", SentAt: sentAt},
	}}, nil)
	require.NoError(t, err)

	result, err := c.Invoke(context.Background(), collab.Request{Query: "who said the demo date"})
	require.NoError(t, err)
	assert.True(t, result.Success)
	assert.Contains(t, result.Payload, "[Jan 03, 09:30] Alex: demo is friday")
}

func TestHistoryCollaborator_NoMatches(t *testing.T) {
	c, err := collab.NewHistory(stubSearcher{}, nil)
	require.NoError(t, err)

	result, err := c.Invoke(context.Background(), collab.Request{Query: "anything"})
	require.NoError(t, err)
	assert.True(t, result.Success)
	assert.Contains(t, result.Payload, "No earlier messages matched")
}

type capturingSearcher struct {
	query string
}

func (s *capturingSearcher) Search(_ context.Context, _, query string, _ int) ([]timeline.Message, error) {
	s.query = query
	return nil, nil
}

func TestHistoryCollaborator_StripsMentionTokens(t *testing.T) {
	searcher := &capturingSearcher{}
	c, err := collab.NewHistory(searcher, nil)
	require.NoError(t, err)

	_, err = c.Invoke(context.Background(), collab.Request{Query: "what did @Alex(12345) promise"})
	require.NoError(t, err)
	assert.Equal(t, "what did Alex promise", searcher.query)
}

type stubRunner struct {
	output string
	err    error
}

func (s stubRunner) Execute(context.Context, string, string) (string, error) {
	return s.output, s.err
}

func TestExecCollaborator_SandboxUnavailableSettlesAsRefused(t *testing.T) {
	c, err := collab.NewExec(stubRunner{err: fmt.Errorf("%w: quota", sandbox.ErrUnavailable)}, nil)
	require.NoError(t, err)

	result, err := c.Invoke(context.Background(), collab.Request{Query: "run it"})
	require.NoError(t, err)
	assert.False(t, result.Success)
	assert.Equal(t, collab.ReasonRefused, result.Reason)
}

func TestExecCollaborator_Output(t *testing.T) {
	c, err := collab.NewExec(stubRunner{output: "332424\n"}, nil)
	require.NoError(t, err)

	result, err := c.Invoke(context.Background(), collab.Request{Query: "847 * 392"})
	require.NoError(t, err)
	assert.True(t, result.Success)
	assert.Equal(t, "332424\n", result.Payload)
}

type stubGenerator struct {
	output string
	err    error
}

func (s stubGenerator) Generate(context.Context, string) (string, error) {
	return s.output, s.err
}

func TestGeneratorCollaborator_QuickAnswer(t *testing.T) {
	c, err := collab.NewQuickCompute(stubGenerator{output: "332,424\n"}, nil)
	require.NoError(t, err)

	result, err := c.Invoke(context.Background(), collab.Request{Query: "what's 847 × 392"})
	require.NoError(t, err)
	assert.True(t, result.Success)
	assert.Equal(t, "332,424", result.Payload)
}

func TestGeneratorCollaborator_DeclineSettlesAsRefused(t *testing.T) {
	c, err := collab.NewQuickCompute(stubGenerator{output: "UNANSWERABLE"}, nil)
	require.NoError(t, err)

	result, err := c.Invoke(context.Background(), collab.Request{Query: "predict tomorrow's close"})
	require.NoError(t, err)
	assert.Equal(t, collab.ReasonRefused, result.Reason)
}

func TestGeneratorCollaborator_GenerationErrorPropagates(t *testing.T) {
	c, err := collab.NewQuickCompute(stubGenerator{err: errors.New("process died")}, nil)
	require.NoError(t, err)

	_, err = c.Invoke(context.Background(), collab.Request{Query: "anything"})
	assert.Error(t, err)
}
