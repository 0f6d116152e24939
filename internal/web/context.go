package web

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/JonMunkholm/stockroom/internal/core"
	"github.com/JonMunkholm/stockroom/internal/logging"
)

// Identity headers set by the upstream proxy after it authenticates the user.
const (
	headerActorID    = "X-Actor-ID"
	headerActorEmail = "X-Actor-Email"
	headerActorName  = "X-Actor-Name"
)

// requireActor reads the actor from the identity headers and stores it, the
// client IP and the user agent in the request context. Requests without an
// actor id get 401.
func requireActor(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		actor := core.Actor{
			ID:       strings.TrimSpace(r.Header.Get(headerActorID)),
			Email:    strings.TrimSpace(r.Header.Get(headerActorEmail)),
			FullName: strings.TrimSpace(r.Header.Get(headerActorName)),
		}
		if actor.ID == "" {
			writeJSON(w, r, http.StatusUnauthorized, ErrorResponse{
				Error:   "missing actor",
				Message: "You are not signed in",
				Action:  "Sign in again",
				Code:    "AUTH003",
			})
			return
		}

		ctx := core.ContextWithActor(r.Context(), actor)
		ctx = core.ContextWithIPAddress(ctx, r.RemoteAddr)
		ctx = core.ContextWithUserAgent(ctx, r.UserAgent())
		ctx = logging.ContextWith(ctx, "tenant_id", chi.URLParam(r, "tenantID"), "actor_id", actor.ID)

		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// actorFrom returns the actor stored by requireActor.
func actorFrom(r *http.Request) core.Actor {
	a, _ := core.ActorFromContext(r.Context())
	return a
}
