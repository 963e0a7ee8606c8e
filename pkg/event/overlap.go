package event

import "time"

// Span is a candidate time interval checked against stored events.
type Span struct {
	Start time.Time
	End   time.Time
}

// Overlaps reports whether span a conflicts with span b.
//
// Timed spans use strict half-open interval intersection: touching endpoints
// (a.End == b.Start) do not overlap, so back-to-back meetings never conflict.
//
// All-day spans compare at day granularity with a one-day-forward boundary on
// the compared side, because the End of an all-day event is not reliably
// exclusive in the stored data.
func Overlaps(a, b Span, allDay bool) bool {
	if allDay {
		return a.Start.Before(b.Start.Add(24*time.Hour)) && a.End.After(b.Start)
	}
	return a.Start.Before(b.End) && a.End.After(b.Start)
}
