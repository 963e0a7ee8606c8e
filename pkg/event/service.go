package event

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/agendo/agendo/internal/event_bus"
	"github.com/agendo/agendo/internal/utils"
	"github.com/agendo/agendo/pkg/user"
	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"
)

// Service orchestrates the event lifecycle: validation, conflict clearance,
// recurrence compilation, persistence, and read-side instance expansion.
// All operations are scoped to the authenticated owner taken from the context.
type Service struct {
	repo  Repository
	bus   *event_bus.EventBus
	clock utils.Clock
}

func NewService(repo Repository, bus *event_bus.EventBus, clock utils.Clock) *Service {
	return &Service{
		repo:  repo,
		bus:   bus,
		clock: clock,
	}
}

// EventUpdate is an explicit partial-update payload: nil means "leave the
// stored value unchanged". Updates are merged with the stored record and the
// result is re-validated before anything is written.
type EventUpdate struct {
	Title             *string
	Description       *string
	StartTime         *time.Time
	EndTime           *time.Time
	AllDay            *bool
	Location          *string
	Attendees         *[]string
	Color             *string
	RecurringRule     *string
	RecurrenceOptions *RecurrenceOptions
}

func (u EventUpdate) IsEmpty() bool {
	return u.Title == nil && u.Description == nil && u.StartTime == nil && u.EndTime == nil &&
		u.AllDay == nil && u.Location == nil && u.Attendees == nil && u.Color == nil &&
		u.RecurringRule == nil && u.RecurrenceOptions == nil
}

// Create validates the event, clears it against existing timed events of the
// same owner, compiles any recurrence specification, and persists it. The
// conflict check and insert run in one transaction with the owner's writers
// serialized, so two concurrent creates cannot both pass the check.
func (s *Service) Create(ctx context.Context, event Event, recurrence *RecurrenceOptions) (*Event, error) {
	ownerId, err := user.CurrentId(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get current user: %w", err)
	}
	event.OwnerID = ownerId

	normalizeEvent(&event)
	if err := validateEvent(&event); err != nil {
		return nil, err
	}

	if recurrence != nil {
		rule, err := CompileRecurrence(*recurrence)
		if err != nil {
			return nil, &ValidationError{Message: err.Error()}
		}
		event.RecurringRule = rule
	}

	event.ID = uuid.NewString()
	now := s.clock.Now()
	event.CreatedAt = now
	event.UpdatedAt = now

	err = s.repo.WithTransaction(ctx, func(repo Repository) error {
		if err := repo.LockOwner(ctx, ownerId); err != nil {
			return err
		}
		if !event.AllDay {
			conflicts, err := repo.FindConflicts(ctx, ownerId, Span{Start: event.StartTime, End: event.EndTime}, false, "")
			if err != nil {
				return fmt.Errorf("failed to check conflicts: %w", err)
			}
			if len(conflicts) > 0 {
				return &ConflictError{ConflictingEventIDs: conflicts}
			}
		}
		_, err := repo.Insert(ctx, event)
		return err
	})
	if err != nil {
		return nil, err
	}

	s.publish(ctx, event_bus.TypeCalendarEventCreated, event_bus.CalendarEventCreated{
		ID:        event.ID,
		Title:     event.Title,
		StartTime: event.StartTime,
		EndTime:   event.EndTime,
		AllDay:    event.AllDay,
		Recurring: event.RecurringRule != "",
		OwnerID:   event.OwnerID,
	})

	return &event, nil
}

// List returns the owner's events. With a range, recurring masters matching
// the range are additionally expanded into instances and the merged result is
// sorted ascending by start. Without a range, all masters are returned sorted
// by start with no expansion.
func (s *Service) List(ctx context.Context, from, to *time.Time) ([]Entry, error) {
	ownerId, err := user.CurrentId(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get current user: %w", err)
	}

	if from == nil || to == nil {
		masters, err := s.repo.FindByOwner(ctx, ownerId)
		if err != nil {
			return nil, fmt.Errorf("failed to fetch events: %w", err)
		}
		entries := make([]Entry, 0, len(masters))
		for _, master := range masters {
			entries = append(entries, master)
		}
		return entries, nil
	}

	masters, err := s.repo.FindByOwnerInRange(ctx, ownerId, *from, *to)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch events: %w", err)
	}

	entries := make([]Entry, 0, len(masters))
	for _, master := range masters {
		entries = append(entries, master)
		for _, instance := range ExpandInstances(master, *from, *to) {
			entries = append(entries, instance)
		}
	}
	sort.SliceStable(entries, func(i, j int) bool {
		return entries[i].StartAt().Before(entries[j].StartAt())
	})
	return entries, nil
}

// Get returns a single master event by id, scoped to the owner.
func (s *Service) Get(ctx context.Context, id string) (*Event, error) {
	ownerId, err := user.CurrentId(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get current user: %w", err)
	}
	event, err := s.repo.FindByID(ctx, ownerId, id)
	if err != nil {
		return nil, err
	}
	return &event, nil
}

// GetForDay returns the owner's master events starting on the given calendar
// day, sorted by start.
func (s *Service) GetForDay(ctx context.Context, day time.Time) ([]Event, error) {
	ownerId, err := user.CurrentId(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get current user: %w", err)
	}
	return s.repo.FindByOwnerOnDay(ctx, ownerId, day)
}

// Update merges the partial payload with the stored record, re-validates the
// result, and re-checks conflicts (excluding the event itself) when time
// fields of a timed event changed.
func (s *Service) Update(ctx context.Context, id string, update EventUpdate) (*Event, error) {
	ownerId, err := user.CurrentId(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get current user: %w", err)
	}

	if update.IsEmpty() {
		return nil, validationErrorf("no fields to update")
	}

	var updated Event
	err = s.repo.WithTransaction(ctx, func(repo Repository) error {
		if err := repo.LockOwner(ctx, ownerId); err != nil {
			return err
		}

		existing, err := repo.FindByID(ctx, ownerId, id)
		if err != nil {
			return err
		}

		updated = existing
		applyUpdate(&updated, update)

		if update.RecurrenceOptions != nil {
			rule, err := CompileRecurrence(*update.RecurrenceOptions)
			if err != nil {
				return &ValidationError{Message: err.Error()}
			}
			updated.RecurringRule = rule
		}

		normalizeEvent(&updated)
		if err := validateEvent(&updated); err != nil {
			return err
		}

		timeChanged := update.StartTime != nil || update.EndTime != nil
		if timeChanged && !existing.AllDay {
			conflicts, err := repo.FindConflicts(ctx, ownerId, Span{Start: updated.StartTime, End: updated.EndTime}, false, id)
			if err != nil {
				return fmt.Errorf("failed to check conflicts: %w", err)
			}
			if len(conflicts) > 0 {
				return &ConflictError{ConflictingEventIDs: conflicts}
			}
		}

		updated.UpdatedAt = s.clock.Now()
		_, err = repo.Update(ctx, updated)
		return err
	})
	if err != nil {
		return nil, err
	}

	s.publish(ctx, event_bus.TypeCalendarEventUpdated, event_bus.CalendarEventUpdated{
		ID:        updated.ID,
		Title:     updated.Title,
		StartTime: updated.StartTime,
		EndTime:   updated.EndTime,
		OwnerID:   updated.OwnerID,
	})

	return &updated, nil
}

// Delete removes a master event by id, scoped to the owner. Derived instances
// are never persisted, so there is nothing to cascade.
func (s *Service) Delete(ctx context.Context, id string) error {
	ownerId, err := user.CurrentId(ctx)
	if err != nil {
		return fmt.Errorf("failed to get current user: %w", err)
	}
	if err := s.repo.Delete(ctx, ownerId, id); err != nil {
		return err
	}

	s.publish(ctx, event_bus.TypeCalendarEventDeleted, event_bus.CalendarEventDeleted{
		ID:      id,
		OwnerID: ownerId,
	})
	return nil
}

func applyUpdate(event *Event, update EventUpdate) {
	if update.Title != nil {
		event.Title = *update.Title
	}
	if update.Description != nil {
		event.Description = *update.Description
	}
	if update.StartTime != nil {
		event.StartTime = *update.StartTime
	}
	if update.EndTime != nil {
		event.EndTime = *update.EndTime
	}
	if update.AllDay != nil {
		event.AllDay = *update.AllDay
	}
	if update.Location != nil {
		event.Location = *update.Location
	}
	if update.Attendees != nil {
		event.Attendees = *update.Attendees
	}
	if update.Color != nil {
		event.Color = *update.Color
	}
	if update.RecurringRule != nil {
		event.RecurringRule = *update.RecurringRule
	}
}

func (s *Service) publish(ctx context.Context, eventType event_bus.EventType, data any) {
	if s.bus == nil {
		return
	}
	if err := s.bus.Publish(event_bus.NewEvent(ctx, eventType, data)); err != nil {
		log.Errorf("failed to publish %s notification: %v", eventType, err)
	}
}
