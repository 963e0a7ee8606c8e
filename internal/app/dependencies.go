package app

import (
	"github.com/agendo/agendo/internal/event_bus"
	"github.com/agendo/agendo/internal/utils"
	"github.com/agendo/agendo/pkg/event"
	"github.com/agendo/agendo/pkg/user"
	"github.com/jackc/pgx/v5/pgxpool"
	log "github.com/sirupsen/logrus"
)

// Dependencies holds all services and handlers for the application.
type Dependencies struct {
	Bus   *event_bus.EventBus
	Clock utils.Clock

	EventRepository event.Repository
	EventService    *event.Service
	EventHandler    *event.Handler
}

// BuildDependencies initializes and wires all application services and handlers.
func BuildDependencies(db *pgxpool.Pool) *Dependencies {
	deps := &Dependencies{}

	deps.Bus = event_bus.NewEventBus()
	deps.Clock = utils.SystemClock{}

	deps.EventRepository = event.NewRepository(db)
	deps.EventService = event.NewService(deps.EventRepository, deps.Bus, deps.Clock)
	deps.EventHandler = event.NewHandler(deps.EventService)

	registerAuditListeners(deps.Bus)

	return deps
}

// registerAuditListeners logs every calendar mutation with the acting caller.
func registerAuditListeners(bus *event_bus.EventBus) {
	event_bus.SubscribeTyped[event_bus.CalendarEventCreated](bus, event_bus.TypeCalendarEventCreated,
		func(e event_bus.EventT[event_bus.CalendarEventCreated]) error {
			callerId, _ := user.CurrentId(e.Context())
			log.WithFields(log.Fields{
				"eventId":   e.Data.ID,
				"ownerId":   e.Data.OwnerID,
				"callerId":  callerId,
				"allDay":    e.Data.AllDay,
				"recurring": e.Data.Recurring,
			}).Infof("calendar event created: %s", e.Data.Title)
			return nil
		})

	event_bus.SubscribeTyped[event_bus.CalendarEventUpdated](bus, event_bus.TypeCalendarEventUpdated,
		func(e event_bus.EventT[event_bus.CalendarEventUpdated]) error {
			log.WithFields(log.Fields{
				"eventId": e.Data.ID,
				"ownerId": e.Data.OwnerID,
			}).Infof("calendar event updated: %s", e.Data.Title)
			return nil
		})

	event_bus.SubscribeTyped[event_bus.CalendarEventDeleted](bus, event_bus.TypeCalendarEventDeleted,
		func(e event_bus.EventT[event_bus.CalendarEventDeleted]) error {
			log.WithFields(log.Fields{
				"eventId": e.Data.ID,
				"ownerId": e.Data.OwnerID,
			}).Info("calendar event deleted")
			return nil
		})
}
