package shared

import (
	"log/slog"
	"net/http"
)

// DispatchRoles may create, mutate and consolidate trips. Role names come
// from the upstream user directory and are treated as opaque strings here.
var DispatchRoles = []string{
	"Superadmin",
	"admin",
	"dispatch-srg",
	"dispatch-demra",
	"dispatchpos-demra",
	"dispatchpos-srg",
}

// RoleGate authorizes requests against the role stored in the session. The
// authentication flow itself lives outside this service; the gate only
// consumes its result.
type RoleGate struct {
	Logger *slog.Logger
}

// Require allows the request through when the session role matches any of
// the given roles, otherwise responds 403.
func (g RoleGate) Require(roles ...string) func(http.Handler) http.Handler {
	allowed := make(map[string]struct{}, len(roles))
	for _, role := range roles {
		allowed[role] = struct{}{}
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			actor := ActorFromContext(r.Context())
			if actor.IsZero() {
				http.Redirect(w, r, "/login", http.StatusSeeOther)
				return
			}
			if _, ok := allowed[actor.Role]; !ok {
				if g.Logger != nil {
					g.Logger.Warn("role denied", slog.String("role", actor.Role), slog.String("path", r.URL.Path))
				}
				http.Error(w, http.StatusText(http.StatusForbidden), http.StatusForbidden)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
