package rbac

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/grantcue/grantcue/pkg/auth"
	"github.com/grantcue/grantcue/pkg/contextkeys"
)

// authedRequest builds a request carrying an authenticated caller
func authedRequest(method, target string, user *auth.User, org *auth.Organization) *http.Request {
	r := httptest.NewRequest(method, target, nil)
	if user == nil && org == nil {
		return r
	}
	ctx := contextkeys.WithAuth(r.Context(), &auth.AuthContext{User: user, Organization: org})
	return r.WithContext(ctx)
}

func okHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
}

func TestGuard_RequirePermission(t *testing.T) {
	reader := &fakeReader{access: accessWith(PermGrantsView)}
	guard := NewGuard(NewResolver(reader, nil), nil, nil)
	handler := guard.RequirePermission(Fine(PermGrantsView))(okHandler())

	user := &auth.User{ID: "u1"}
	org := &auth.Organization{ID: "o1"}

	// No authenticated user
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, authedRequest("GET", "/x", nil, nil))
	if w.Code != http.StatusUnauthorized {
		t.Errorf("Expected 401 without a user, got %d", w.Code)
	}

	// Held permission
	w = httptest.NewRecorder()
	handler.ServeHTTP(w, authedRequest("GET", "/x", user, org))
	if w.Code != http.StatusOK {
		t.Errorf("Expected 200 with held permission, got %d", w.Code)
	}

	// Missing permission
	handler = guard.RequirePermission(Fine(PermOrgDelete))(okHandler())
	w = httptest.NewRecorder()
	handler.ServeHTTP(w, authedRequest("GET", "/x", user, org))
	if w.Code != http.StatusForbidden {
		t.Errorf("Expected 403 without the permission, got %d", w.Code)
	}

	// Platform admin bypasses the permission requirement
	admin := &auth.User{ID: "u2", IsPlatformAdmin: true}
	w = httptest.NewRecorder()
	handler.ServeHTTP(w, authedRequest("GET", "/x", admin, org))
	if w.Code != http.StatusOK {
		t.Errorf("Expected 200 for platform admin, got %d", w.Code)
	}
}

func TestGuard_RequireAnyPermission(t *testing.T) {
	reader := &fakeReader{access: accessWith(PermTasksView)}
	guard := NewGuard(NewResolver(reader, nil), nil, nil)

	user := &auth.User{ID: "u1"}
	org := &auth.Organization{ID: "o1"}

	handler := guard.RequireAnyPermission(Fine(PermGrantsView), Fine(PermTasksView))(okHandler())
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, authedRequest("GET", "/x", user, org))
	if w.Code != http.StatusOK {
		t.Errorf("Expected 200 when one of the permissions is held, got %d", w.Code)
	}

	handler = guard.RequireAnyPermission(Fine(PermOrgDelete), Fine(PermBillingManage))(okHandler())
	w = httptest.NewRecorder()
	handler.ServeHTTP(w, authedRequest("GET", "/x", user, org))
	if w.Code != http.StatusForbidden {
		t.Errorf("Expected 403 when none of the permissions is held, got %d", w.Code)
	}
}

func TestGuard_RequireAllPermissions(t *testing.T) {
	reader := &fakeReader{access: accessWith(PermGrantsView, PermTasksView)}
	guard := NewGuard(NewResolver(reader, nil), nil, nil)

	user := &auth.User{ID: "u1"}
	org := &auth.Organization{ID: "o1"}

	handler := guard.RequireAllPermissions(Fine(PermGrantsView), Fine(PermTasksView))(okHandler())
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, authedRequest("GET", "/x", user, org))
	if w.Code != http.StatusOK {
		t.Errorf("Expected 200 when all permissions are held, got %d", w.Code)
	}

	handler = guard.RequireAllPermissions(Fine(PermGrantsView), Fine(PermOrgDelete))(okHandler())
	w = httptest.NewRecorder()
	handler.ServeHTTP(w, authedRequest("GET", "/x", user, org))
	if w.Code != http.StatusForbidden {
		t.Errorf("Expected 403 when one permission is missing, got %d", w.Code)
	}
}

func TestGuard_RequireRole(t *testing.T) {
	reader := &fakeReader{access: ResolvedAccess{Roles: []Role{{ID: "r1", Name: RoleViewer}}}}
	guard := NewGuard(NewResolver(reader, nil), nil, nil)

	org := &auth.Organization{ID: "o1"}

	handler := guard.RequireRole(RoleViewer)(okHandler())
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, authedRequest("GET", "/x", &auth.User{ID: "u1"}, org))
	if w.Code != http.StatusOK {
		t.Errorf("Expected 200 with held role, got %d", w.Code)
	}

	handler = guard.RequireRole(RoleOrgAdmin)(okHandler())
	w = httptest.NewRecorder()
	handler.ServeHTTP(w, authedRequest("GET", "/x", &auth.User{ID: "u1"}, org))
	if w.Code != http.StatusForbidden {
		t.Errorf("Expected 403 without the role, got %d", w.Code)
	}

	// No platform-admin bypass on role checks
	admin := &auth.User{ID: "u2", IsPlatformAdmin: true}
	w = httptest.NewRecorder()
	handler.ServeHTTP(w, authedRequest("GET", "/x", admin, org))
	if w.Code != http.StatusForbidden {
		t.Errorf("Expected 403 for platform admin without the role, got %d", w.Code)
	}
}
