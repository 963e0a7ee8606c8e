package app

import (
	"github.com/gorilla/mux"
)

// RegisterRoutes registers all API endpoints.
func RegisterRoutes(r *mux.Router, deps *Dependencies) {

	// Calendar events. The ical and date routes are registered before the
	// {eventId} route so mux does not swallow them as event ids.
	r.HandleFunc("/api/event/ical", deps.EventHandler.ExportICal).Queries("start", "{start}", "end", "{end}").Methods("GET")
	r.HandleFunc("/api/event/date/{date}", deps.EventHandler.GetEventsByDate).Methods("GET")
	r.HandleFunc("/api/event", deps.EventHandler.GetEvents).Methods("GET")
	r.HandleFunc("/api/event", deps.EventHandler.CreateEvent).Methods("POST")
	r.HandleFunc("/api/event/{eventId}", deps.EventHandler.GetEvent).Methods("GET")
	r.HandleFunc("/api/event/{eventId}", deps.EventHandler.UpdateEvent).Methods("PUT")
	r.HandleFunc("/api/event/{eventId}", deps.EventHandler.DeleteEvent).Methods("DELETE")
}
