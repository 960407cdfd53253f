// Package timeline converts raw message timestamps into the relative, zoned
// time model the rest of the pipeline works with.
package timeline

import (
	"fmt"
	"time"
)

const (
	// DefaultSkewTolerance is how far a message timestamp may sit ahead of
	// "now" before the turn is aborted as a clock fault.
	DefaultSkewTolerance = 5 * time.Second

	// FreshnessThreshold is the age beyond which messages get an absolute
	// label instead of a relative one.
	FreshnessThreshold = 7 * 24 * time.Hour

	// absoluteLabelFormat renders timestamps older than the freshness
	// threshold, e.g. "Jan 01, 09:00".
	absoluteLabelFormat = "Jan 02, 15:04"
)

// DisplayZone is the fixed zone all timestamps are normalized to before
// comparison or labeling: IST (Asia/Kolkata, UTC+5:30).
var DisplayZone = time.FixedZone("IST", 5*3600+30*60)

// FromUnixMilli rebuilds a timestamp from its archived millisecond form,
// already normalized to the display zone.
func FromUnixMilli(milli int64) time.Time {
	return time.UnixMilli(milli).In(DisplayZone)
}

// Message is one inbound chat message. Immutable once created.
type Message struct {
	ID         string
	AuthorID   string
	AuthorName string
	Text       string
	SentAt     time.Time
	ReplyToID  string
}

// ResolvedMessage is a Message stamped with its age label relative to a
// specific "now". Labels cannot be cached across turns.
type ResolvedMessage struct {
	Message
	RelativeLabel string
	IsCurrent     bool
}

// Resolver stamps message sequences against an explicit "now". It is pure:
// identical inputs always yield identical output.
type Resolver struct {
	zone          *time.Location
	skewTolerance time.Duration
}

// NewResolver creates a resolver using the fixed display zone. A
// non-positive tolerance falls back to DefaultSkewTolerance.
func NewResolver(skewTolerance time.Duration) *Resolver {
	if skewTolerance <= 0 {
		skewTolerance = DefaultSkewTolerance
	}
	return &Resolver{
		zone:          DisplayZone,
		skewTolerance: skewTolerance,
	}
}

// Resolve labels every message relative to now and marks the last one as
// current. Input order is preserved. Returns a ClockSkewError if any
// message claims to be from the future beyond the skew tolerance.
func (r *Resolver) Resolve(msgs []Message, now time.Time) ([]ResolvedMessage, error) {
	if len(msgs) == 0 {
		return nil, nil
	}

	now = now.In(r.zone)
	resolved := make([]ResolvedMessage, 0, len(msgs))

	for i, msg := range msgs {
		sentAt := msg.SentAt.In(r.zone)
		if sentAt.Sub(now) > r.skewTolerance {
			return nil, &ClockSkewError{
				MessageID: msg.ID,
				SentAt:    sentAt,
				Now:       now,
			}
		}

		resolved = append(resolved, ResolvedMessage{
			Message:       msg,
			RelativeLabel: r.label(sentAt, now),
			IsCurrent:     i == len(msgs)-1,
		})
	}

	return resolved, nil
}

// label renders the age of sentAt relative to now. Bucket lower bounds are
// inclusive; a message a few seconds ahead (within tolerance) reads as 0m.
func (r *Resolver) label(sentAt, now time.Time) string {
	age := now.Sub(sentAt)
	if age < 0 {
		age = 0
	}

	switch {
	case age < time.Hour:
		return fmt.Sprintf("%dm ago", int(age.Minutes()))
	case age < 24*time.Hour:
		return fmt.Sprintf("%dh ago", int(age.Hours()))
	case age < FreshnessThreshold:
		return fmt.Sprintf("%dd ago", int(age.Hours()/24))
	default:
		return sentAt.Format(absoluteLabelFormat)
	}
}
