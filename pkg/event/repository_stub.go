package event

import (
	"context"
	"sort"
	"sync"
	"time"
)

// RepositoryStub is an in-memory Repository used by service and handler tests.
type RepositoryStub struct {
	mu     sync.RWMutex
	events map[string]Event // id -> event
}

func NewRepositoryStub() *RepositoryStub {
	return &RepositoryStub{
		events: make(map[string]Event),
	}
}

func (r *RepositoryStub) WithTransaction(ctx context.Context, fn func(repo Repository) error) error {
	// Snapshot current state so a failing fn leaves the stub untouched.
	r.mu.Lock()
	original := make(map[string]Event, len(r.events))
	for k, v := range r.events {
		original[k] = v
	}
	r.mu.Unlock()

	if err := fn(r); err != nil {
		r.mu.Lock()
		r.events = original
		r.mu.Unlock()
		return err
	}
	return nil
}

func (r *RepositoryStub) LockOwner(ctx context.Context, ownerId string) error {
	return nil
}

func (r *RepositoryStub) Insert(ctx context.Context, event Event) (Event, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.events[event.ID] = event
	return event, nil
}

func (r *RepositoryStub) FindByID(ctx context.Context, ownerId string, id string) (Event, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	event, exists := r.events[id]
	if !exists || event.OwnerID != ownerId {
		return Event{}, ErrEventNotFound
	}
	return event, nil
}

func (r *RepositoryStub) FindByOwner(ctx context.Context, ownerId string) ([]Event, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	result := make([]Event, 0, len(r.events))
	for _, event := range r.events {
		if event.OwnerID == ownerId {
			result = append(result, event)
		}
	}
	sortByStart(result)
	return result, nil
}

func (r *RepositoryStub) FindByOwnerInRange(ctx context.Context, ownerId string, from, to time.Time) ([]Event, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var result []Event
	for _, event := range r.events {
		if event.OwnerID != ownerId {
			continue
		}
		startsIn := !event.StartTime.Before(from) && event.StartTime.Before(to)
		endsIn := event.EndTime.After(from) && !event.EndTime.After(to)
		spans := !event.StartTime.After(from) && !event.EndTime.Before(to)
		if startsIn || endsIn || spans {
			result = append(result, event)
		}
	}
	sortByStart(result)
	return result, nil
}

func (r *RepositoryStub) FindByOwnerOnDay(ctx context.Context, ownerId string, day time.Time) ([]Event, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	dayEnd := day.Add(24 * time.Hour)
	var result []Event
	for _, event := range r.events {
		if event.OwnerID == ownerId && !event.StartTime.Before(day) && event.StartTime.Before(dayEnd) {
			result = append(result, event)
		}
	}
	sortByStart(result)
	return result, nil
}

func (r *RepositoryStub) FindConflicts(ctx context.Context, ownerId string, candidate Span, allDay bool, excludeId string) ([]string, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var matching []Event
	for _, event := range r.events {
		if event.OwnerID != ownerId || event.AllDay != allDay {
			continue
		}
		if excludeId != "" && event.ID == excludeId {
			continue
		}
		if Overlaps(Span{Start: event.StartTime, End: event.EndTime}, candidate, allDay) {
			matching = append(matching, event)
		}
	}
	sortByStart(matching)

	ids := make([]string, 0, len(matching))
	for _, event := range matching {
		ids = append(ids, event.ID)
	}
	return ids, nil
}

func (r *RepositoryStub) Update(ctx context.Context, event Event) (Event, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	existing, exists := r.events[event.ID]
	if !exists || existing.OwnerID != event.OwnerID {
		return Event{}, ErrEventNotFound
	}
	r.events[event.ID] = event
	return event, nil
}

func (r *RepositoryStub) Delete(ctx context.Context, ownerId string, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	existing, exists := r.events[id]
	if !exists || existing.OwnerID != ownerId {
		return ErrEventNotFound
	}
	delete(r.events, id)
	return nil
}

func sortByStart(events []Event) {
	sort.Slice(events, func(i, j int) bool {
		return events[i].StartTime.Before(events[j].StartTime)
	})
}
