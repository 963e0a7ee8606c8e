package event_bus

import "time"

const (
	TypeCalendarEventCreated EventType = "calendar.event.created"
	TypeCalendarEventUpdated EventType = "calendar.event.updated"
	TypeCalendarEventDeleted EventType = "calendar.event.deleted"
)

type CalendarEventCreated struct {
	ID        string
	Title     string
	StartTime time.Time
	EndTime   time.Time
	AllDay    bool
	Recurring bool
	OwnerID   string
}

type CalendarEventUpdated struct {
	ID        string
	Title     string
	StartTime time.Time
	EndTime   time.Time
	OwnerID   string
}

type CalendarEventDeleted struct {
	ID      string
	OwnerID string
}
