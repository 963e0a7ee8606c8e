package event

import (
	"context"
	"testing"
	"time"

	"github.com/agendo/agendo/internal/event_bus"
	"github.com/agendo/agendo/internal/utils"
	"github.com/agendo/agendo/pkg/user"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testNow = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func setupServiceTest(t *testing.T) (*Service, context.Context, *utils.MockClock) {
	t.Helper()
	clock := &utils.MockClock{FixedNow: testNow}
	service := NewService(NewRepositoryStub(), event_bus.NewEventBus(), clock)
	ctx := user.WithId(context.Background(), "user-1")
	return service, ctx, clock
}

func timedEvent(title string, start time.Time, duration time.Duration) Event {
	return Event{
		Title:     title,
		StartTime: start,
		EndTime:   start.Add(duration),
	}
}

func TestService_Create(t *testing.T) {
	start := time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC)

	t.Run("creates a valid event with defaults applied", func(t *testing.T) {
		s, ctx, _ := setupServiceTest(t)

		created, err := s.Create(ctx, Event{
			Title:     "  Team sync  ",
			StartTime: start,
			EndTime:   start.Add(time.Hour),
			Attendees: []string{" Alice@Example.COM "},
		}, nil)

		require.NoError(t, err)
		assert.NotEmpty(t, created.ID)
		assert.Equal(t, "Team sync", created.Title)
		assert.Equal(t, DefaultColor, created.Color)
		assert.Equal(t, []string{"alice@example.com"}, created.Attendees)
		assert.Equal(t, "user-1", created.OwnerID)
		assert.Equal(t, testNow, created.CreatedAt)
		assert.Equal(t, testNow, created.UpdatedAt)
	})

	t.Run("rejects missing title", func(t *testing.T) {
		s, ctx, _ := setupServiceTest(t)

		_, err := s.Create(ctx, timedEvent("   ", start, time.Hour), nil)

		var validationErr *ValidationError
		require.ErrorAs(t, err, &validationErr)
	})

	t.Run("rejects end not after start", func(t *testing.T) {
		s, ctx, _ := setupServiceTest(t)

		_, err := s.Create(ctx, Event{Title: "Backwards", StartTime: start, EndTime: start}, nil)

		var validationErr *ValidationError
		require.ErrorAs(t, err, &validationErr)
	})

	t.Run("rejects missing times", func(t *testing.T) {
		s, ctx, _ := setupServiceTest(t)

		_, err := s.Create(ctx, Event{Title: "No times"}, nil)

		var validationErr *ValidationError
		require.ErrorAs(t, err, &validationErr)
	})

	t.Run("rejects invalid attendee address", func(t *testing.T) {
		s, ctx, _ := setupServiceTest(t)

		e := timedEvent("Guests", start, time.Hour)
		e.Attendees = []string{"not-an-email"}
		_, err := s.Create(ctx, e, nil)

		var validationErr *ValidationError
		require.ErrorAs(t, err, &validationErr)
	})

	t.Run("rejects invalid color", func(t *testing.T) {
		s, ctx, _ := setupServiceTest(t)

		e := timedEvent("Colorful", start, time.Hour)
		e.Color = "blue"
		_, err := s.Create(ctx, e, nil)

		var validationErr *ValidationError
		require.ErrorAs(t, err, &validationErr)
	})

	t.Run("rejects overlapping timed event with conflicting ids", func(t *testing.T) {
		s, ctx, _ := setupServiceTest(t)

		first, err := s.Create(ctx, timedEvent("First", start, time.Hour), nil)
		require.NoError(t, err)

		_, err = s.Create(ctx, timedEvent("Second", start.Add(30*time.Minute), time.Hour), nil)

		var conflictErr *ConflictError
		require.ErrorAs(t, err, &conflictErr)
		assert.Equal(t, []string{first.ID}, conflictErr.ConflictingEventIDs)
	})

	t.Run("allows back-to-back events", func(t *testing.T) {
		s, ctx, _ := setupServiceTest(t)

		_, err := s.Create(ctx, timedEvent("First", start, time.Hour), nil)
		require.NoError(t, err)

		_, err = s.Create(ctx, timedEvent("Second", start.Add(time.Hour), time.Hour), nil)
		require.NoError(t, err)
	})

	t.Run("does not conflict-check all-day events on create", func(t *testing.T) {
		s, ctx, _ := setupServiceTest(t)

		_, err := s.Create(ctx, timedEvent("Timed", start, time.Hour), nil)
		require.NoError(t, err)

		allDay := timedEvent("Holiday", start, 24*time.Hour)
		allDay.AllDay = true
		_, err = s.Create(ctx, allDay, nil)
		require.NoError(t, err)
	})

	t.Run("compiles recurrence options into a stored rule", func(t *testing.T) {
		s, ctx, _ := setupServiceTest(t)

		created, err := s.Create(ctx, timedEvent("Standup", start, 30*time.Minute),
			&RecurrenceOptions{Frequency: "WEEKLY", ByWeekday: []string{"MO", "WE"}})

		require.NoError(t, err)
		assert.Contains(t, created.RecurringRule, "FREQ=WEEKLY")
		assert.Contains(t, created.RecurringRule, "BYDAY=MO,WE")
	})

	t.Run("invalid recurrence spec aborts creation", func(t *testing.T) {
		s, ctx, _ := setupServiceTest(t)

		_, err := s.Create(ctx, timedEvent("Broken", start, time.Hour),
			&RecurrenceOptions{Frequency: "SOMETIMES"})

		var validationErr *ValidationError
		require.ErrorAs(t, err, &validationErr)

		entries, err := s.List(ctx, nil, nil)
		require.NoError(t, err)
		assert.Empty(t, entries)
	})

	t.Run("fails without caller identity", func(t *testing.T) {
		s, _, _ := setupServiceTest(t)

		_, err := s.Create(context.Background(), timedEvent("Nobody", start, time.Hour), nil)
		assert.ErrorIs(t, err, user.ErrNoUser)
	})
}

func TestService_List(t *testing.T) {
	start := time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)

	t.Run("without range returns masters only, no expansion", func(t *testing.T) {
		s, ctx, _ := setupServiceTest(t)

		_, err := s.Create(ctx, timedEvent("Standup", start, 30*time.Minute),
			&RecurrenceOptions{Frequency: "DAILY"})
		require.NoError(t, err)
		_, err = s.Create(ctx, timedEvent("Review", start.Add(2*time.Hour), time.Hour), nil)
		require.NoError(t, err)

		entries, err := s.List(ctx, nil, nil)
		require.NoError(t, err)
		require.Len(t, entries, 2)
		for _, entry := range entries {
			assert.False(t, entry.IsRecurringInstance())
		}
	})

	t.Run("with range expands recurring masters and sorts by start", func(t *testing.T) {
		s, ctx, _ := setupServiceTest(t)

		master, err := s.Create(ctx, timedEvent("Standup", start, 30*time.Minute),
			&RecurrenceOptions{Frequency: "WEEKLY", ByWeekday: []string{"MO", "WE"}})
		require.NoError(t, err)
		_, err = s.Create(ctx, timedEvent("Planning", start.Add(26*time.Hour), time.Hour), nil)
		require.NoError(t, err)

		from := time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC)
		to := time.Date(2026, 3, 15, 23, 59, 59, 0, time.UTC)
		entries, err := s.List(ctx, &from, &to)
		require.NoError(t, err)

		// master + 4 instances + single event
		require.Len(t, entries, 6)
		for i := 1; i < len(entries); i++ {
			assert.False(t, entries[i].StartAt().Before(entries[i-1].StartAt()), "entries must be sorted by start")
		}

		var instanceCount int
		for _, entry := range entries {
			if entry.IsRecurringInstance() {
				instanceCount++
				instance := entry.(Instance)
				assert.Equal(t, master.ID, instance.OriginalEventID)
			}
		}
		assert.Equal(t, 4, instanceCount)
	})

	t.Run("scopes results to the owner", func(t *testing.T) {
		s, ctx, _ := setupServiceTest(t)

		_, err := s.Create(ctx, timedEvent("Mine", start, time.Hour), nil)
		require.NoError(t, err)

		otherCtx := user.WithId(context.Background(), "user-2")
		entries, err := s.List(otherCtx, nil, nil)
		require.NoError(t, err)
		assert.Empty(t, entries)
	})
}

func TestService_GetForDay(t *testing.T) {
	s, ctx, _ := setupServiceTest(t)
	day := time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC)

	_, err := s.Create(ctx, timedEvent("On the day", day.Add(10*time.Hour), time.Hour), nil)
	require.NoError(t, err)
	_, err = s.Create(ctx, timedEvent("Day after", day.Add(34*time.Hour), time.Hour), nil)
	require.NoError(t, err)

	events, err := s.GetForDay(ctx, day)
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, "On the day", events[0].Title)
}

func TestService_Update(t *testing.T) {
	start := time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC)

	t.Run("not found for unknown id", func(t *testing.T) {
		s, ctx, _ := setupServiceTest(t)

		_, err := s.Update(ctx, "missing", EventUpdate{Title: stringPtr("New")})
		assert.ErrorIs(t, err, ErrEventNotFound)
	})

	t.Run("rejects empty payload", func(t *testing.T) {
		s, ctx, _ := setupServiceTest(t)

		created, err := s.Create(ctx, timedEvent("Event", start, time.Hour), nil)
		require.NoError(t, err)

		_, err = s.Update(ctx, created.ID, EventUpdate{})
		var validationErr *ValidationError
		require.ErrorAs(t, err, &validationErr)
	})

	t.Run("rejects blank title", func(t *testing.T) {
		s, ctx, _ := setupServiceTest(t)

		created, err := s.Create(ctx, timedEvent("Event", start, time.Hour), nil)
		require.NoError(t, err)

		_, err = s.Update(ctx, created.ID, EventUpdate{Title: stringPtr("   ")})
		var validationErr *ValidationError
		require.ErrorAs(t, err, &validationErr)
	})

	t.Run("rejects merged end before existing start without touching the store", func(t *testing.T) {
		s, ctx, _ := setupServiceTest(t)

		created, err := s.Create(ctx, timedEvent("Event", start, time.Hour), nil)
		require.NoError(t, err)

		badEnd := start.Add(-time.Hour)
		_, err = s.Update(ctx, created.ID, EventUpdate{EndTime: &badEnd})
		var validationErr *ValidationError
		require.ErrorAs(t, err, &validationErr)

		unchanged, err := s.Get(ctx, created.ID)
		require.NoError(t, err)
		assert.True(t, created.EndTime.Equal(unchanged.EndTime))
	})

	t.Run("color-only update never self-conflicts", func(t *testing.T) {
		s, ctx, _ := setupServiceTest(t)

		created, err := s.Create(ctx, timedEvent("Event", start, time.Hour), nil)
		require.NoError(t, err)

		updated, err := s.Update(ctx, created.ID, EventUpdate{Color: stringPtr("#ff0000")})
		require.NoError(t, err)
		assert.Equal(t, "#ff0000", updated.Color)
	})

	t.Run("time change re-checks conflicts excluding own id", func(t *testing.T) {
		s, ctx, clock := setupServiceTest(t)

		first, err := s.Create(ctx, timedEvent("First", start, time.Hour), nil)
		require.NoError(t, err)
		second, err := s.Create(ctx, timedEvent("Second", start.Add(time.Hour), time.Hour), nil)
		require.NoError(t, err)

		// Shifting second onto first must conflict and report only first.
		newStart := start.Add(30 * time.Minute)
		_, err = s.Update(ctx, second.ID, EventUpdate{StartTime: &newStart})
		var conflictErr *ConflictError
		require.ErrorAs(t, err, &conflictErr)
		assert.Equal(t, []string{first.ID}, conflictErr.ConflictingEventIDs)

		// Moving it to a free slot succeeds and bumps UpdatedAt.
		later := testNow.Add(time.Hour)
		clock.SetNow(later)
		freeStart := start.Add(5 * time.Hour)
		updated, err := s.Update(ctx, second.ID, EventUpdate{StartTime: &freeStart, EndTime: timePtr(freeStart.Add(time.Hour))})
		require.NoError(t, err)
		assert.Equal(t, later, updated.UpdatedAt)
	})

	t.Run("recurrence options replace the stored rule", func(t *testing.T) {
		s, ctx, _ := setupServiceTest(t)

		created, err := s.Create(ctx, timedEvent("Standup", start, 30*time.Minute),
			&RecurrenceOptions{Frequency: "DAILY"})
		require.NoError(t, err)

		updated, err := s.Update(ctx, created.ID, EventUpdate{
			RecurrenceOptions: &RecurrenceOptions{Frequency: "WEEKLY", ByWeekday: []string{"FR"}},
		})
		require.NoError(t, err)
		assert.Contains(t, updated.RecurringRule, "FREQ=WEEKLY")
		assert.Contains(t, updated.RecurringRule, "BYDAY=FR")
	})

	t.Run("foreign-owned event is not found", func(t *testing.T) {
		s, ctx, _ := setupServiceTest(t)

		created, err := s.Create(ctx, timedEvent("Event", start, time.Hour), nil)
		require.NoError(t, err)

		otherCtx := user.WithId(context.Background(), "user-2")
		_, err = s.Update(otherCtx, created.ID, EventUpdate{Title: stringPtr("Hijack")})
		assert.ErrorIs(t, err, ErrEventNotFound)
	})
}

func TestService_Delete(t *testing.T) {
	start := time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC)

	t.Run("deletes an owned event", func(t *testing.T) {
		s, ctx, _ := setupServiceTest(t)

		created, err := s.Create(ctx, timedEvent("Event", start, time.Hour), nil)
		require.NoError(t, err)

		require.NoError(t, s.Delete(ctx, created.ID))

		_, err = s.Get(ctx, created.ID)
		assert.ErrorIs(t, err, ErrEventNotFound)
	})

	t.Run("not found for unknown id", func(t *testing.T) {
		s, ctx, _ := setupServiceTest(t)

		err := s.Delete(ctx, "missing")
		assert.ErrorIs(t, err, ErrEventNotFound)
	})

	t.Run("not found for foreign-owned id", func(t *testing.T) {
		s, ctx, _ := setupServiceTest(t)

		created, err := s.Create(ctx, timedEvent("Event", start, time.Hour), nil)
		require.NoError(t, err)

		otherCtx := user.WithId(context.Background(), "user-2")
		err = s.Delete(otherCtx, created.ID)
		assert.ErrorIs(t, err, ErrEventNotFound)
	})
}

func stringPtr(s string) *string { return &s }

func timePtr(t time.Time) *time.Time { return &t }
