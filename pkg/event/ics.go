package event

import (
	"net/http"
	"time"

	ics "github.com/arran4/golang-ical"
)

// ExportICal serves the caller's events for a required start/end range as an
// iCalendar feed, with recurring masters already expanded into concrete
// occurrences so any calendar client can render them without RRULE support.
func (h *Handler) ExportICal(w http.ResponseWriter, r *http.Request) {
	fromParsed, err := time.Parse(time.RFC3339, r.URL.Query().Get("start"))
	if err != nil {
		w.Header().Set("Content-Type", "application/json")
		writeBadRequest(w, "Invalid start (date) format", "'start' must be in RFC3339 format")
		return
	}
	toParsed, err := time.Parse(time.RFC3339, r.URL.Query().Get("end"))
	if err != nil {
		w.Header().Set("Content-Type", "application/json")
		writeBadRequest(w, "Invalid end (date) format", "'end' must be in RFC3339 format")
		return
	}

	entries, err := h.service.List(r.Context(), &fromParsed, &toParsed)
	if err != nil {
		w.Header().Set("Content-Type", "application/json")
		h.writeError(w, err)
		return
	}

	calendar := entriesToICal(entries)

	w.Header().Set("Content-Type", "text/calendar; charset=utf-8")
	w.Header().Set("Content-Disposition", `attachment; filename="agendo.ics"`)
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write([]byte(calendar.Serialize())); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
}

func entriesToICal(entries []Entry) *ics.Calendar {
	calendar := ics.NewCalendar()
	calendar.SetMethod(ics.MethodPublish)
	calendar.SetProductId("-//Agendo//Calendar//EN")

	for _, entry := range entries {
		switch e := entry.(type) {
		case Event:
			// A recurring master is represented by its expanded instances;
			// emitting the master as well would duplicate the first occurrence.
			if e.RecurringRule != "" {
				continue
			}
			vEvent := calendar.AddEvent(e.ID)
			fillVEvent(vEvent, e.Title, e.Description, e.Location, e.StartTime, e.EndTime, e.AllDay, e.Attendees)
			vEvent.SetCreatedTime(e.CreatedAt)
			vEvent.SetModifiedAt(e.UpdatedAt)
			vEvent.SetDtStampTime(e.UpdatedAt)
		case Instance:
			vEvent := calendar.AddEvent(e.ID)
			fillVEvent(vEvent, e.Title, e.Description, e.Location, e.StartTime, e.EndTime, e.AllDay, e.Attendees)
			vEvent.SetDtStampTime(e.RecurrenceID)
		}
	}
	return calendar
}

func fillVEvent(vEvent *ics.VEvent, title, description, location string, start, end time.Time, allDay bool, attendees []string) {
	vEvent.SetSummary(title)
	if description != "" {
		vEvent.SetDescription(description)
	}
	if location != "" {
		vEvent.SetLocation(location)
	}
	if allDay {
		vEvent.SetAllDayStartAt(start)
		vEvent.SetAllDayEndAt(end)
	} else {
		vEvent.SetStartAt(start)
		vEvent.SetEndAt(end)
	}
	for _, attendee := range attendees {
		vEvent.AddAttendee(attendee)
	}
}
