package middleware

import (
	"net/http"

	"github.com/gorilla/mux"

	"github.com/grantcue/grantcue/pkg/auth"
	"github.com/grantcue/grantcue/pkg/contextkeys"
)

// OrgHeader is the fallback header carrying the active organization
// for routes without an {org_id} path variable.
const OrgHeader = "X-GrantCue-Org"

// OrgContextMiddleware binds the request's organization onto the auth
// context. The organization comes from the {org_id} path variable or,
// failing that, the X-GrantCue-Org header. Requests without either
// pass through org-less; permission checks then deny by definition.
func OrgContextMiddleware(tm *auth.TokenManager) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			orgID := mux.Vars(r)["org_id"]
			if orgID == "" {
				orgID = r.Header.Get(OrgHeader)
			}
			if orgID == "" {
				next.ServeHTTP(w, r)
				return
			}

			org, err := tm.GetOrganization(r.Context(), orgID)
			if err != nil {
				http.Error(w, "Organization not found", http.StatusNotFound)
				return
			}

			authCtx := GetAuthContext(r)
			if authCtx == nil {
				authCtx = &auth.AuthContext{}
			}
			authCtx.Organization = org

			ctx := contextkeys.WithAuth(r.Context(), authCtx)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
