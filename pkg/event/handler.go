package event

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/agendo/agendo/internal/rest"
	"github.com/agendo/agendo/pkg/user"
	"github.com/gorilla/mux"
	log "github.com/sirupsen/logrus"
)

type Handler struct {
	service *Service
}

func NewHandler(service *Service) *Handler {
	return &Handler{service}
}

// EventDTO is the wire shape for both persisted events and derived instances.
// Instances carry isRecurringInstance=true and originalEventId; they cannot be
// mutated through the API.
type EventDTO struct {
	ID                  string     `json:"id"`
	Title               string     `json:"title"`
	Description         string     `json:"description"`
	Start               time.Time  `json:"start"`
	End                 time.Time  `json:"end"`
	AllDay              bool       `json:"allDay"`
	Location            string     `json:"location"`
	OwnerID             string     `json:"ownerId"`
	Attendees           []string   `json:"attendees"`
	Color               string     `json:"color"`
	RecurringRule       *string    `json:"recurringRule"`
	RecurrenceID        *time.Time `json:"recurrenceId,omitempty"`
	IsRecurringInstance bool       `json:"isRecurringInstance,omitempty"`
	OriginalEventID     string     `json:"originalEventId,omitempty"`
	CreatedAt           *time.Time `json:"createdAt,omitempty"`
	UpdatedAt           *time.Time `json:"updatedAt,omitempty"`
}

type RecurrenceOptionsDTO struct {
	Frequency  string     `json:"frequency"`
	Interval   int        `json:"interval,omitempty"`
	Count      int        `json:"count,omitempty"`
	Until      *time.Time `json:"until,omitempty"`
	ByWeekday  []string   `json:"byweekday,omitempty"`
	ByMonthDay []int      `json:"bymonthday,omitempty"`
}

type createEventRequest struct {
	Title             string                `json:"title"`
	Description       string                `json:"description"`
	Start             *time.Time            `json:"start"`
	End               *time.Time            `json:"end"`
	AllDay            bool                  `json:"allDay"`
	Location          string                `json:"location"`
	Attendees         []string              `json:"attendees"`
	Color             string                `json:"color"`
	RecurringRule     string                `json:"recurringRule"`
	RecurrenceOptions *RecurrenceOptionsDTO `json:"recurrenceOptions"`
}

type updateEventRequest struct {
	Title             *string               `json:"title"`
	Description       *string               `json:"description"`
	Start             *time.Time            `json:"start"`
	End               *time.Time            `json:"end"`
	AllDay            *bool                 `json:"allDay"`
	Location          *string               `json:"location"`
	Attendees         *[]string             `json:"attendees"`
	Color             *string               `json:"color"`
	RecurringRule     *string               `json:"recurringRule"`
	RecurrenceOptions *RecurrenceOptionsDTO `json:"recurrenceOptions"`
}

type conflictResponse struct {
	Error               string   `json:"error"`
	ConflictingEventIDs []string `json:"conflictingEventIds"`
}

// GetEvents lists the caller's events. When both start and end query params
// are given (RFC3339), recurring masters are expanded over that range and the
// merged list is sorted by start time.
func (h *Handler) GetEvents(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")

	var from, to *time.Time
	fromString := r.URL.Query().Get("start")
	toString := r.URL.Query().Get("end")
	if fromString != "" || toString != "" {
		fromParsed, err := time.Parse(time.RFC3339, fromString)
		if err != nil {
			writeBadRequest(w, "Invalid start (date) format", "'start' must be in RFC3339 format")
			return
		}
		toParsed, err := time.Parse(time.RFC3339, toString)
		if err != nil {
			writeBadRequest(w, "Invalid end (date) format", "'end' must be in RFC3339 format")
			return
		}
		from, to = &fromParsed, &toParsed
	}

	entries, err := h.service.List(r.Context(), from, to)
	if err != nil {
		h.writeError(w, err)
		return
	}

	dtos := make([]EventDTO, 0, len(entries))
	for _, entry := range entries {
		dtos = append(dtos, entryToDTO(entry))
	}

	w.WriteHeader(http.StatusOK)
	if err := json.NewEncoder(w).Encode(dtos); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
}

func (h *Handler) GetEvent(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")

	eventId := mux.Vars(r)["eventId"]
	event, err := h.service.Get(r.Context(), eventId)
	if err != nil {
		h.writeError(w, err)
		return
	}

	w.WriteHeader(http.StatusOK)
	if err := json.NewEncoder(w).Encode(eventToDTO(*event)); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
}

// GetEventsByDate returns the events starting on the given calendar day
// (path segment in YYYY-MM-DD form).
func (h *Handler) GetEventsByDate(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")

	dateString := mux.Vars(r)["date"]
	day, err := time.Parse("2006-01-02", dateString)
	if err != nil {
		writeBadRequest(w, "Invalid date format", "date must be in YYYY-MM-DD format")
		return
	}

	events, err := h.service.GetForDay(r.Context(), day)
	if err != nil {
		h.writeError(w, err)
		return
	}

	dtos := make([]EventDTO, 0, len(events))
	for _, event := range events {
		dtos = append(dtos, eventToDTO(event))
	}

	w.WriteHeader(http.StatusOK)
	if err := json.NewEncoder(w).Encode(dtos); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
}

func (h *Handler) CreateEvent(w http.ResponseWriter, r *http.Request) {
	log.Debug("Creating new calendar event")
	w.Header().Set("Content-Type", "application/json")

	var req createEventRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	created, err := h.service.Create(r.Context(), requestToEvent(req), recurrenceFromDTO(req.RecurrenceOptions))
	if err != nil {
		h.writeError(w, err)
		return
	}

	w.WriteHeader(http.StatusCreated)
	if err := json.NewEncoder(w).Encode(eventToDTO(*created)); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
}

func (h *Handler) UpdateEvent(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")

	eventId := mux.Vars(r)["eventId"]
	var req updateEventRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	update := EventUpdate{
		Title:             req.Title,
		Description:       req.Description,
		StartTime:         req.Start,
		EndTime:           req.End,
		AllDay:            req.AllDay,
		Location:          req.Location,
		Attendees:         req.Attendees,
		Color:             req.Color,
		RecurringRule:     req.RecurringRule,
		RecurrenceOptions: recurrenceFromDTO(req.RecurrenceOptions),
	}

	updated, err := h.service.Update(r.Context(), eventId, update)
	if err != nil {
		h.writeError(w, err)
		return
	}

	w.WriteHeader(http.StatusOK)
	if err := json.NewEncoder(w).Encode(eventToDTO(*updated)); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
}

func (h *Handler) DeleteEvent(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")

	eventId := mux.Vars(r)["eventId"]
	if err := h.service.Delete(r.Context(), eventId); err != nil {
		h.writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) writeError(w http.ResponseWriter, err error) {
	var validationErr *ValidationError
	var conflictErr *ConflictError
	switch {
	case errors.As(err, &validationErr):
		w.WriteHeader(http.StatusBadRequest)
		_ = json.NewEncoder(w).Encode(rest.ErrorResponse{Error: validationErr.Message})
	case errors.As(err, &conflictErr):
		w.WriteHeader(http.StatusConflict)
		_ = json.NewEncoder(w).Encode(conflictResponse{
			Error:               "Event conflicts with existing events",
			ConflictingEventIDs: conflictErr.ConflictingEventIDs,
		})
	case errors.Is(err, ErrEventNotFound):
		w.WriteHeader(http.StatusNotFound)
		_ = json.NewEncoder(w).Encode(rest.ErrorResponse{Error: "Event not found"})
	case errors.Is(err, user.ErrNoUser):
		w.WriteHeader(http.StatusUnauthorized)
		_ = json.NewEncoder(w).Encode(rest.ErrorResponse{Error: "Authentication required"})
	default:
		log.Errorf("event handler error: %v", err)
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}

func writeBadRequest(w http.ResponseWriter, message, details string) {
	w.WriteHeader(http.StatusBadRequest)
	_ = json.NewEncoder(w).Encode(rest.ErrorResponse{Error: message, Details: details})
}

func requestToEvent(req createEventRequest) Event {
	event := Event{
		Title:         req.Title,
		Description:   req.Description,
		AllDay:        req.AllDay,
		Location:      req.Location,
		Attendees:     req.Attendees,
		Color:         req.Color,
		RecurringRule: req.RecurringRule,
	}
	if req.Start != nil {
		event.StartTime = *req.Start
	}
	if req.End != nil {
		event.EndTime = *req.End
	}
	return event
}

func recurrenceFromDTO(dto *RecurrenceOptionsDTO) *RecurrenceOptions {
	if dto == nil {
		return nil
	}
	return &RecurrenceOptions{
		Frequency:  dto.Frequency,
		Interval:   dto.Interval,
		Count:      dto.Count,
		Until:      dto.Until,
		ByWeekday:  dto.ByWeekday,
		ByMonthDay: dto.ByMonthDay,
	}
}

func eventToDTO(e Event) EventDTO {
	dto := EventDTO{
		ID:           e.ID,
		Title:        e.Title,
		Description:  e.Description,
		Start:        e.StartTime,
		End:          e.EndTime,
		AllDay:       e.AllDay,
		Location:     e.Location,
		OwnerID:      e.OwnerID,
		Attendees:    e.Attendees,
		Color:        e.Color,
		RecurrenceID: e.RecurrenceID,
		CreatedAt:    &e.CreatedAt,
		UpdatedAt:    &e.UpdatedAt,
	}
	if e.RecurringRule != "" {
		rule := e.RecurringRule
		dto.RecurringRule = &rule
	}
	return dto
}

func instanceToDTO(i Instance) EventDTO {
	recurrenceId := i.RecurrenceID
	return EventDTO{
		ID:                  i.ID,
		Title:               i.Title,
		Description:         i.Description,
		Start:               i.StartTime,
		End:                 i.EndTime,
		AllDay:              i.AllDay,
		Location:            i.Location,
		OwnerID:             i.OwnerID,
		Attendees:           i.Attendees,
		Color:               i.Color,
		RecurrenceID:        &recurrenceId,
		IsRecurringInstance: true,
		OriginalEventID:     i.OriginalEventID,
	}
}

func entryToDTO(entry Entry) EventDTO {
	switch e := entry.(type) {
	case Event:
		return eventToDTO(e)
	case Instance:
		return instanceToDTO(e)
	default:
		return EventDTO{}
	}
}
