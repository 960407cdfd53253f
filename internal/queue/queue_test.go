package queue_test

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/junkielabs/junkie/internal/chat"
	"github.com/junkielabs/junkie/internal/queue"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func msg(conversationID, id string) chat.IncomingMessage {
	return chat.IncomingMessage{ID: id, ConversationID: conversationID, Text: "hi"}
}

// recorder tracks processing order and overlap per conversation.
type recorder struct {
	mu       sync.Mutex
	order    map[string][]string
	inFlight map[string]int
	overlap  bool
	delay    time.Duration
	started  chan string
	release  chan struct{}
}

func newRecorder() *recorder {
	return &recorder{
		order:    make(map[string][]string),
		inFlight: make(map[string]int),
	}
}

func (r *recorder) ProcessTurn(_ context.Context, m chat.IncomingMessage) error {
	r.mu.Lock()
	r.inFlight[m.ConversationID]++
	if r.inFlight[m.ConversationID] > 1 {
		r.overlap = true
	}
	r.order[m.ConversationID] = append(r.order[m.ConversationID], m.ID)
	r.mu.Unlock()

	if r.started != nil {
		r.started <- m.ConversationID
	}
	if r.release != nil {
		<-r.release
	}
	if r.delay > 0 {
		time.Sleep(r.delay)
	}

	r.mu.Lock()
	r.inFlight[m.ConversationID]--
	r.mu.Unlock()
	return nil
}

func TestManager_PerConversationFIFO(t *testing.T) {
	m := queue.NewManager(nil)
	defer m.Close()
	rec := newRecorder()
	pool := queue.NewPool(m, rec, 4, nil)

	for i := 0; i < 10; i++ {
		require.NoError(t, m.Submit(msg("conv-1", fmt.Sprintf("m%02d", i))))
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- pool.Run(ctx) }()

	require.Eventually(t, func() bool {
		rec.mu.Lock()
		defer rec.mu.Unlock()
		return len(rec.order["conv-1"]) == 10
	}, 5*time.Second, 10*time.Millisecond)

	cancel()
	require.NoError(t, <-done)

	want := make([]string, 10)
	for i := range want {
		want[i] = fmt.Sprintf("m%02d", i)
	}
	assert.Equal(t, want, rec.order["conv-1"])
	assert.False(t, rec.overlap, "turns for one conversation must never overlap")
}

func TestManager_ConversationsRunInParallel(t *testing.T) {
	m := queue.NewManager(nil)
	defer m.Close()

	rec := newRecorder()
	rec.started = make(chan string, 2)
	rec.release = make(chan struct{})
	pool := queue.NewPool(m, rec, 2, nil)

	require.NoError(t, m.Submit(msg("conv-a", "a1")))
	require.NoError(t, m.Submit(msg("conv-b", "b1")))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- pool.Run(ctx) }()

	// Both conversations must enter processing while neither has finished.
	seen := map[string]bool{}
	for i := 0; i < 2; i++ {
		select {
		case id := <-rec.started:
			seen[id] = true
		case <-time.After(2 * time.Second):
			t.Fatal("conversations did not process in parallel")
		}
	}
	assert.True(t, seen["conv-a"] && seen["conv-b"])

	close(rec.release)
	cancel()
	require.NoError(t, <-done)
}

func TestManager_SameConversationSerializedAcrossWorkers(t *testing.T) {
	m := queue.NewManager(nil)
	defer m.Close()

	rec := newRecorder()
	rec.delay = 20 * time.Millisecond
	pool := queue.NewPool(m, rec, 8, nil)

	for i := 0; i < 6; i++ {
		require.NoError(t, m.Submit(msg("conv-1", fmt.Sprintf("m%d", i))))
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- pool.Run(ctx) }()

	require.Eventually(t, func() bool {
		rec.mu.Lock()
		defer rec.mu.Unlock()
		return len(rec.order["conv-1"]) == 6
	}, 5*time.Second, 10*time.Millisecond)

	cancel()
	require.NoError(t, <-done)
	assert.False(t, rec.overlap)
}

func TestManager_SubmitAfterCloseFails(t *testing.T) {
	m := queue.NewManager(nil)
	m.Close()
	assert.Error(t, m.Submit(msg("conv-1", "m1")))
}

func TestManager_SubmitWithoutConversationFails(t *testing.T) {
	m := queue.NewManager(nil)
	defer m.Close()
	assert.Error(t, m.Submit(chat.IncomingMessage{ID: "m1"}))
}

func TestManager_Depth(t *testing.T) {
	m := queue.NewManager(nil)
	defer m.Close()

	require.NoError(t, m.Submit(msg("conv-a", "a1")))
	require.NoError(t, m.Submit(msg("conv-a", "a2")))
	require.NoError(t, m.Submit(msg("conv-b", "b1")))
	assert.Equal(t, 3, m.Depth())

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	_, ok := m.Next(ctx)
	require.True(t, ok)
	assert.Equal(t, 2, m.Depth())
}

func TestManager_NextUnblocksOnContextEnd(t *testing.T) {
	m := queue.NewManager(nil)
	defer m.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	start := time.Now()
	_, ok := m.Next(ctx)
	assert.False(t, ok)
	assert.Less(t, time.Since(start), 2*time.Second)
}
