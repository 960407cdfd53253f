package timeline

import (
	"errors"
	"fmt"
	"time"
)

// ClockSkewError indicates a message timestamp ahead of "now" beyond the
// skew tolerance. It is fatal to the turn: messages cannot be safely
// ordered against a faulty clock.
type ClockSkewError struct {
	MessageID string
	SentAt    time.Time
	Now       time.Time
}

func (e *ClockSkewError) Error() string {
	return fmt.Sprintf("clock skew: message %s sent at %s is after now (%s)",
		e.MessageID, e.SentAt.Format(time.RFC3339), e.Now.Format(time.RFC3339))
}

// IsClockSkew reports whether err is (or wraps) a ClockSkewError.
func IsClockSkew(err error) bool {
	var skew *ClockSkewError
	return errors.As(err, &skew)
}
