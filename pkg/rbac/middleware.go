package rbac

import (
	"net/http"

	"github.com/grantcue/grantcue/pkg/audit"
	"github.com/grantcue/grantcue/pkg/middleware"
	"github.com/grantcue/grantcue/pkg/observability"
)

// Guard provides permission-gating middleware for HTTP routes. Each
// request gets a session bound to the caller's identity; a denial is
// indistinguishable from a missing permission.
type Guard struct {
	resolver    *Resolver
	auditLogger audit.Logger
	metrics     *observability.Metrics
}

// NewGuard creates route-guard middleware over a resolver
func NewGuard(resolver *Resolver, auditLogger audit.Logger, metrics *observability.Metrics) *Guard {
	if auditLogger == nil {
		auditLogger = audit.NopLogger()
	}
	return &Guard{
		resolver:    resolver,
		auditLogger: auditLogger,
		metrics:     metrics,
	}
}

// sessionFor builds and loads a session for the request's identity
func (g *Guard) sessionFor(r *http.Request) *Session {
	authCtx := middleware.GetAuthContext(r)
	session := NewSession(g.resolver, authCtx.Identity()).WithSessionMetrics(g.metrics)
	session.Load(r.Context())
	return session
}

// RequirePermission gates a route behind one permission reference
func (g *Guard) RequirePermission(ref PermissionRef) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			authCtx := middleware.GetAuthContext(r)
			if authCtx == nil || authCtx.User == nil {
				http.Error(w, "Authentication required", http.StatusUnauthorized)
				return
			}

			session := g.sessionFor(r)
			if !session.HasPermission(ref) {
				g.deny(w, r, ref.String())
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// RequireAnyPermission gates a route behind at least one of the references
func (g *Guard) RequireAnyPermission(refs ...PermissionRef) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			authCtx := middleware.GetAuthContext(r)
			if authCtx == nil || authCtx.User == nil {
				http.Error(w, "Authentication required", http.StatusUnauthorized)
				return
			}

			session := g.sessionFor(r)
			if !session.HasAnyPermission(refs...) {
				g.deny(w, r, refsString(refs))
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// RequireAllPermissions gates a route behind every one of the references
func (g *Guard) RequireAllPermissions(refs ...PermissionRef) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			authCtx := middleware.GetAuthContext(r)
			if authCtx == nil || authCtx.User == nil {
				http.Error(w, "Authentication required", http.StatusUnauthorized)
				return
			}

			session := g.sessionFor(r)
			if !session.HasAllPermissions(refs...) {
				g.deny(w, r, refsString(refs))
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// RequireRole gates a route behind an exact role name. No
// platform-admin override: role identity is independent of the bypass.
func (g *Guard) RequireRole(roleName string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			authCtx := middleware.GetAuthContext(r)
			if authCtx == nil || authCtx.User == nil {
				http.Error(w, "Authentication required", http.StatusUnauthorized)
				return
			}

			session := g.sessionFor(r)
			if !session.HasRole(roleName) {
				g.deny(w, r, "role:"+roleName)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

func (g *Guard) deny(w http.ResponseWriter, r *http.Request, what string) {
	identity := middleware.GetAuthContext(r).Identity()
	_ = g.auditLogger.LogAccessDenied(r.Context(), identity.UserID, identity.OrgID, what)
	http.Error(w, "Insufficient permissions", http.StatusForbidden)
}

func refsString(refs []PermissionRef) string {
	out := ""
	for i, ref := range refs {
		if i > 0 {
			out += ","
		}
		out += ref.String()
	}
	return out
}
