package store_test

import (
	"context"
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/junkielabs/junkie/internal/store"
	"github.com/junkielabs/junkie/internal/timeline"
)

func openTestArchive(t *testing.T) *store.Archive {
	t.Helper()
	a, err := store.Open(filepath.Join(t.TempDir(), "archive.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = a.Close() })
	return a
}

func archived(id, author, text string, sentAt time.Time) timeline.Message {
	return timeline.Message{
		ID:         id,
		AuthorID:   "7001",
		AuthorName: author,
		Text:       text,
		SentAt:     sentAt,
	}
}

func TestArchive_AppendAndRecent(t *testing.T) {
	a := openTestArchive(t)
	ctx := context.Background()
	base := time.Date(2024, time.April, 1, 10, 0, 0, 0, timeline.DisplayZone)

	for i := 0; i < 10; i++ {
		msg := archived(fmt.Sprintf("m%02d", i), "Priya", fmt.Sprintf("note %d", i), base.Add(time.Duration(i)*time.Minute))
		require.NoError(t, a.Append(ctx, "conv-1", msg))
	}

	recent, err := a.Recent(ctx, "conv-1", 3)
	require.NoError(t, err)
	require.Len(t, recent, 3)
	assert.Equal(t, "m07", recent[0].ID)
	assert.Equal(t, "m09", recent[2].ID)
	assert.True(t, recent[0].SentAt.Before(recent[2].SentAt))
}

func TestArchive_RecentServedFromCacheAfterFirstRead(t *testing.T) {
	a := openTestArchive(t)
	ctx := context.Background()
	base := time.Date(2024, time.April, 1, 10, 0, 0, 0, timeline.DisplayZone)

	require.NoError(t, a.Append(ctx, "conv-1", archived("m1", "Priya", "first", base)))

	first, err := a.Recent(ctx, "conv-1", 5)
	require.NoError(t, err)
	second, err := a.Recent(ctx, "conv-1", 1)
	require.NoError(t, err)
	assert.Equal(t, first, second)
}

func TestArchive_AppendInvalidatesRecent(t *testing.T) {
	a := openTestArchive(t)
	ctx := context.Background()
	base := time.Date(2024, time.April, 1, 10, 0, 0, 0, timeline.DisplayZone)

	require.NoError(t, a.Append(ctx, "conv-1", archived("m1", "Priya", "first", base)))
	_, err := a.Recent(ctx, "conv-1", 10)
	require.NoError(t, err)

	require.NoError(t, a.Append(ctx, "conv-1", archived("m2", "Priya", "second", base.Add(time.Minute))))
	recent, err := a.Recent(ctx, "conv-1", 10)
	require.NoError(t, err)
	require.Len(t, recent, 2)
	assert.Equal(t, "m2", recent[1].ID)
}

func TestArchive_ConversationsAreIsolated(t *testing.T) {
	a := openTestArchive(t)
	ctx := context.Background()
	base := time.Date(2024, time.April, 1, 10, 0, 0, 0, timeline.DisplayZone)

	require.NoError(t, a.Append(ctx, "conv-a", archived("m1", "Priya", "alpha", base)))
	require.NoError(t, a.Append(ctx, "conv-b", archived("m2", "Alex", "beta", base)))

	recent, err := a.Recent(ctx, "conv-a", 10)
	require.NoError(t, err)
	require.Len(t, recent, 1)
	assert.Equal(t, "m1", recent[0].ID)
}

func TestArchive_SearchMatchesKeywords(t *testing.T) {
	a := openTestArchive(t)
	ctx := context.Background()
	base := time.Date(2024, time.April, 1, 10, 0, 0, 0, timeline.DisplayZone)

	require.NoError(t, a.Append(ctx, "conv-1", archived("m1", "Priya", "the venue is booked for friday", base)))
	require.NoError(t, a.Append(ctx, "conv-1", archived("m2", "Alex", "lunch tomorrow?", base.Add(time.Minute))))
	require.NoError(t, a.Append(ctx, "conv-1", archived("m3", "Priya", "venue deposit paid", base.Add(2*time.Minute))))

	matches, err := a.Search(ctx, "conv-1", "what did we decide about the venue?", 10)
	require.NoError(t, err)
	require.Len(t, matches, 2)
	assert.Equal(t, "m1", matches[0].ID)
	assert.Equal(t, "m3", matches[1].ID)
}

func TestArchive_SearchIgnoresShortWords(t *testing.T) {
	a := openTestArchive(t)
	ctx := context.Background()
	base := time.Date(2024, time.April, 1, 10, 0, 0, 0, timeline.DisplayZone)

	require.NoError(t, a.Append(ctx, "conv-1", archived("m1", "Priya", "a b c", base)))

	matches, err := a.Search(ctx, "conv-1", "a of to it", 10)
	require.NoError(t, err)
	assert.Empty(t, matches)
}

func TestArchive_UpdateAndDelete(t *testing.T) {
	a := openTestArchive(t)
	ctx := context.Background()
	base := time.Date(2024, time.April, 1, 10, 0, 0, 0, timeline.DisplayZone)

	require.NoError(t, a.Append(ctx, "conv-1", archived("m1", "Priya", "original text", base)))
	require.NoError(t, a.UpdateText(ctx, "conv-1", "m1", "edited text"))

	recent, err := a.Recent(ctx, "conv-1", 10)
	require.NoError(t, err)
	require.Len(t, recent, 1)
	assert.Equal(t, "edited text", recent[0].Text)

	require.NoError(t, a.Delete(ctx, "conv-1", "m1"))
	count, err := a.Count(ctx, "conv-1")
	require.NoError(t, err)
	assert.Zero(t, count)
}

func TestArchive_SentAtRoundTripsInDisplayZone(t *testing.T) {
	a := openTestArchive(t)
	ctx := context.Background()
	sentAt := time.Date(2024, time.April, 1, 4, 30, 0, 0, time.UTC) // 10:00 IST

	require.NoError(t, a.Append(ctx, "conv-1", archived("m1", "Priya", "zoned", sentAt)))

	recent, err := a.Recent(ctx, "conv-1", 1)
	require.NoError(t, err)
	require.Len(t, recent, 1)
	assert.True(t, recent[0].SentAt.Equal(sentAt))
	assert.Equal(t, "10:00", recent[0].SentAt.Format("15:04"))
}
