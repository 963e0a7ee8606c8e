package event

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// Event is a persisted master record, the source of truth for a (possibly
// recurring) series. RecurringRule holds a canonical RRULE string; empty means
// a one-off event.
type Event struct {
	ID            string
	Title         string
	Description   string
	StartTime     time.Time
	EndTime       time.Time
	AllDay        bool
	Location      string
	OwnerID       string
	Attendees     []string
	Color         string
	RecurringRule string
	RecurrenceID  *time.Time
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

func (e Event) StartAt() time.Time { return e.StartTime }

func (e Event) IsRecurringInstance() bool { return false }

// Duration is the event length, preserved when occurrences are materialized.
func (e Event) Duration() time.Duration { return e.EndTime.Sub(e.StartTime) }

// Instance is a derived occurrence of a recurring master within a queried
// window. Instances are never persisted; they are recomputed from the master
// and its rule on every read.
type Instance struct {
	ID              string
	OriginalEventID string
	Title           string
	Description     string
	StartTime       time.Time
	EndTime         time.Time
	AllDay          bool
	Location        string
	OwnerID         string
	Attendees       []string
	Color           string
	RecurrenceID    time.Time
}

func (i Instance) StartAt() time.Time { return i.StartTime }

func (i Instance) IsRecurringInstance() bool { return true }

// Entry is either a persisted Event or a derived Instance. Range reads return
// a merged, start-sorted list of both variants.
type Entry interface {
	StartAt() time.Time
	IsRecurringInstance() bool
}

// ErrEventNotFound is returned when the target event does not exist or is not
// owned by the caller; the two cases are deliberately indistinguishable.
var ErrEventNotFound = errors.New("event not found")

// ValidationError reports malformed or missing input. It is always detected
// before any mutation reaches the store.
type ValidationError struct {
	Message string
}

func (e *ValidationError) Error() string {
	return e.Message
}

func validationErrorf(format string, args ...any) error {
	return &ValidationError{Message: fmt.Sprintf(format, args...)}
}

// ConflictError reports that a candidate interval overlaps existing owned
// events. It carries every blocking id so the caller can resolve manually.
type ConflictError struct {
	ConflictingEventIDs []string
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("event conflicts with existing events: %s", strings.Join(e.ConflictingEventIDs, ", "))
}
