package alarm

import (
	"errors"
	"fmt"
	"time"
	"unicode/utf8"
)

// MaxMessageBytes is the longest message an alarm may carry.
const MaxMessageBytes = 127

var (
	// ErrNotFound is returned when no alarm has the requested id.
	ErrNotFound = errors.New("alarm not found")
	// ErrAlreadyCancelling is returned when a cancel was already requested for the id.
	ErrAlreadyCancelling = errors.New("alarm is already being cancelled")
	// ErrInvalidID is returned for non-positive ids.
	ErrInvalidID = errors.New("alarm id must be positive")
	// ErrInvalidPeriod is returned for non-positive or fractional-second periods.
	ErrInvalidPeriod = errors.New("alarm period must be a positive number of seconds")
	// ErrMessageTooLong is returned when the message exceeds MaxMessageBytes.
	ErrMessageTooLong = errors.New("alarm message is too long")
)

// Alarm is one periodic display request.
type Alarm struct {
	// Deadline is the submission (or last replacement) time plus Period.
	Deadline time.Time
	// Message is the text shown on every display.
	Message string
	// ID is the externally supplied identity and the list sort key.
	ID int64
	// Period is the redisplay interval.
	Period time.Duration
	// Revision counts replacements, zero for an alarm never replaced.
	Revision uint64
	// Generation is assigned by the store on insert. An id submitted again
	// after its alarm was removed gets a new generation; a replace keeps it.
	Generation uint64
	// CancelRequested is set once and never reset.
	CancelRequested bool
	// Replaced is set when an update for the same id arrives.
	Replaced bool
}

// New builds an alarm with its deadline computed from now.
func New(id int64, period time.Duration, message string, now time.Time) Alarm {
	return Alarm{
		ID:       id,
		Period:   period,
		Message:  message,
		Deadline: now.Add(period),
	}
}

// Validate checks the externally supplied fields.
func (a *Alarm) Validate() error {
	if a.ID <= 0 {
		return fmt.Errorf("%w: %d", ErrInvalidID, a.ID)
	}

	if a.Period <= 0 || a.Period%time.Second != 0 {
		return fmt.Errorf("%w: %s", ErrInvalidPeriod, a.Period)
	}

	if len(a.Message) > MaxMessageBytes {
		return fmt.Errorf("%w: %d bytes, limit is %d", ErrMessageTooLong, len(a.Message), MaxMessageBytes)
	}

	return nil
}

// Seconds returns the period in whole seconds.
func (a *Alarm) Seconds() int64 {
	return int64(a.Period / time.Second)
}

// TruncateMessage cuts s to at most MaxMessageBytes without splitting a UTF-8 sequence.
func TruncateMessage(s string) string {
	if len(s) <= MaxMessageBytes {
		return s
	}

	cut := MaxMessageBytes
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}

	return s[:cut]
}
