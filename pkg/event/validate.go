package event

import (
	"regexp"
	"strings"
)

const (
	maxTitleLen       = 100
	maxDescriptionLen = 500
	maxLocationLen    = 200

	// DefaultColor is applied when no color is supplied.
	DefaultColor = "#4285f4"
)

var (
	emailPattern = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)
	colorPattern = regexp.MustCompile(`^#([A-Fa-f0-9]{6}|[A-Fa-f0-9]{3})$`)
)

// normalizeEvent trims string fields, lowercases attendee addresses, and
// applies the default color. Called before validateEvent on every write.
func normalizeEvent(e *Event) {
	e.Title = strings.TrimSpace(e.Title)
	e.Description = strings.TrimSpace(e.Description)
	e.Location = strings.TrimSpace(e.Location)
	e.Color = strings.TrimSpace(e.Color)
	if e.Color == "" {
		e.Color = DefaultColor
	}
	for i, attendee := range e.Attendees {
		e.Attendees[i] = strings.ToLower(strings.TrimSpace(attendee))
	}
}

// validateEvent enforces the event invariants: required title and times,
// strict start < end ordering, field length limits, attendee email format,
// and hex color format.
func validateEvent(e *Event) error {
	if e.Title == "" {
		return validationErrorf("event title is required")
	}
	if len(e.Title) > maxTitleLen {
		return validationErrorf("title cannot be more than %d characters", maxTitleLen)
	}
	if len(e.Description) > maxDescriptionLen {
		return validationErrorf("description cannot be more than %d characters", maxDescriptionLen)
	}
	if len(e.Location) > maxLocationLen {
		return validationErrorf("location cannot be more than %d characters", maxLocationLen)
	}
	if e.StartTime.IsZero() || e.EndTime.IsZero() {
		return validationErrorf("event start and end times are required")
	}
	if !e.StartTime.Before(e.EndTime) {
		return validationErrorf("event end time must be after start time")
	}
	for _, attendee := range e.Attendees {
		if !emailPattern.MatchString(attendee) {
			return validationErrorf("invalid attendee email address: %q", attendee)
		}
	}
	if !colorPattern.MatchString(e.Color) {
		return validationErrorf("color must be a valid hex color code")
	}
	return nil
}
