package middleware

import (
	"context"
	"net/http"
	"strings"

	apperrors "roomdesk/pkg/errors"
	httputil "roomdesk/pkg/http"
)

const (
	HeaderActorID   = "X-Actor-ID"
	HeaderActorRole = "X-Actor-Role"

	ActorKey contextKey = "actor"
)

type Role string

const (
	RoleRequester Role = "requester"
	RoleReviewer  Role = "reviewer"
	RoleAdmin     Role = "admin"
)

// Actor is the caller identity placed in the request context. It is taken
// from headers set by the gateway in front of the services.
type Actor struct {
	ID   string
	Role Role
}

// Privileged reports whether the actor may decide, resolve or cancel.
func (a Actor) Privileged() bool {
	return a.Role == RoleReviewer || a.Role == RoleAdmin
}

func WithActor(ctx context.Context, actor Actor) context.Context {
	return context.WithValue(ctx, ActorKey, actor)
}

func ActorFromContext(ctx context.Context) (Actor, bool) {
	actor, ok := ctx.Value(ActorKey).(Actor)
	return actor, ok && actor.ID != ""
}

// ActorIdentity reads the actor headers into the context. Requests without an
// actor pass through untouched; handlers decide whether one is required.
func ActorIdentity() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			id := strings.TrimSpace(r.Header.Get(HeaderActorID))
			if id == "" {
				next.ServeHTTP(w, r)
				return
			}

			role := Role(strings.ToLower(strings.TrimSpace(r.Header.Get(HeaderActorRole))))
			switch role {
			case RoleRequester, RoleReviewer, RoleAdmin:
			case "":
				role = RoleRequester
			default:
				_ = httputil.WriteError(w, apperrors.InvalidInput("unknown actor role: "+string(role)))
				return
			}

			next.ServeHTTP(w, r.WithContext(WithActor(r.Context(), Actor{ID: id, Role: role})))
		})
	}
}

// RequireActor returns the request actor or an Unauthorized error.
func RequireActor(r *http.Request) (Actor, error) {
	actor, ok := ActorFromContext(r.Context())
	if !ok {
		return Actor{}, apperrors.Unauthorized("missing " + HeaderActorID + " header")
	}
	return actor, nil
}

// RequirePrivileged returns the request actor when it is a reviewer or admin.
func RequirePrivileged(r *http.Request) (Actor, error) {
	actor, err := RequireActor(r)
	if err != nil {
		return Actor{}, err
	}
	if !actor.Privileged() {
		return Actor{}, apperrors.Forbidden("reviewer or admin role required")
	}
	return actor, nil
}
