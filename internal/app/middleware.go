package app

import (
	"net/http"

	"github.com/agendo/agendo/pkg/user"
	"github.com/gorilla/mux"
	log "github.com/sirupsen/logrus"
)

// SetupMiddleware wires all HTTP middlewares for the application.
func SetupMiddleware(r *mux.Router) {

	// Propagate the authenticated caller id into the context for downstream
	// services. Authentication itself happens in the fronting layer; an
	// absent header surfaces as 401 from the service layer.
	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
			ctx := req.Context()

			userIdHeader := req.Header.Get("X-User-Id")
			if userIdHeader != "" {
				log.Debugf("request authenticated as user %s", userIdHeader)
				ctx = user.WithId(ctx, userIdHeader)
			}
			next.ServeHTTP(w, req.WithContext(ctx))
		})
	})
}
