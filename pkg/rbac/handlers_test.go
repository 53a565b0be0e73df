package rbac

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gorilla/mux"

	"github.com/grantcue/grantcue/pkg/auth"
	"github.com/grantcue/grantcue/pkg/contextkeys"
)

type handlerFixture struct {
	db       *sql.DB
	store    *Store
	resolver *Resolver
	router   *mux.Router
}

func setupHandlers(t *testing.T) *handlerFixture {
	t.Helper()

	db := setupTestDB(t)
	t.Cleanup(func() { db.Close() })

	store := NewStore(db)
	resolver := NewResolver(store, nil)

	router := mux.NewRouter()
	handlers := NewHandlers(store, resolver, nil)
	handlers.RegisterRoutes(router, NewGuard(resolver, nil, nil))

	return &handlerFixture{db: db, store: store, resolver: resolver, router: router}
}

// grantAdmin assigns the org_admin system role to the user
func (f *handlerFixture) grantAdmin(t *testing.T, userID, orgID string) {
	t.Helper()

	admin, err := f.store.GetRoleByName(context.Background(), RoleOrgAdmin, orgID)
	if err != nil {
		t.Fatalf("Failed to get org_admin role: %v", err)
	}
	assignTestRole(t, f.store, userID, orgID, admin.ID)
}

func (f *handlerFixture) do(t *testing.T, method, target string, body interface{}, user *auth.User, org *auth.Organization) *httptest.ResponseRecorder {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("Failed to encode request body: %v", err)
		}
	}

	r := httptest.NewRequest(method, target, &buf)
	if user != nil || org != nil {
		ctx := contextkeys.WithAuth(r.Context(), &auth.AuthContext{User: user, Organization: org})
		r = r.WithContext(ctx)
	}

	w := httptest.NewRecorder()
	f.router.ServeHTTP(w, r)
	return w
}

var (
	testAdmin  = &auth.User{ID: "admin-1"}
	testMember = &auth.User{ID: "member-1"}
	testOrg    = &auth.Organization{ID: "org-1"}
)

func TestHandlers_ListPermissions(t *testing.T) {
	f := setupHandlers(t)

	w := f.do(t, "GET", "/rbac/permissions", nil, testMember, testOrg)
	if w.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d: %s", w.Code, w.Body.String())
	}

	var grouped map[string][]Permission
	if err := json.NewDecoder(w.Body).Decode(&grouped); err != nil {
		t.Fatalf("Failed to decode response: %v", err)
	}

	if len(grouped[CategoryGrants]) != 4 {
		t.Errorf("Expected 4 grants permissions, got %d", len(grouped[CategoryGrants]))
	}
	if len(grouped[CategoryAdmin]) != 2 {
		t.Errorf("Expected 2 admin permissions, got %d", len(grouped[CategoryAdmin]))
	}
}

func TestHandlers_RoleLifecycle(t *testing.T) {
	f := setupHandlers(t)
	f.grantAdmin(t, testAdmin.ID, testOrg.ID)

	// Create
	w := f.do(t, "POST", "/rbac/roles", map[string]interface{}{
		"name":         "grant-writers",
		"display_name": "Grant Writers",
		"permissions":  []string{"grants:view", "grants:create"},
	}, testAdmin, testOrg)
	if w.Code != http.StatusCreated {
		t.Fatalf("Expected 201, got %d: %s", w.Code, w.Body.String())
	}

	var created RoleWithPermissions
	if err := json.NewDecoder(w.Body).Decode(&created); err != nil {
		t.Fatalf("Failed to decode created role: %v", err)
	}
	if created.ID == "" || len(created.Permissions) != 2 {
		t.Fatalf("Unexpected created role: %+v", created)
	}

	// Get
	w = f.do(t, "GET", "/rbac/roles/"+created.ID, nil, testMember, testOrg)
	if w.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d", w.Code)
	}

	// Update
	w = f.do(t, "PUT", "/rbac/roles/"+created.ID, map[string]interface{}{
		"display_name": "Senior Grant Writers",
		"permissions":  []string{"grants:view", "grants:create", "grants:edit"},
	}, testAdmin, testOrg)
	if w.Code != http.StatusOK {
		t.Fatalf("Expected 200 on update, got %d: %s", w.Code, w.Body.String())
	}

	var updated RoleWithPermissions
	if err := json.NewDecoder(w.Body).Decode(&updated); err != nil {
		t.Fatalf("Failed to decode updated role: %v", err)
	}
	if len(updated.Permissions) != 3 {
		t.Errorf("Expected 3 permissions after update, got %d", len(updated.Permissions))
	}

	// Delete
	w = f.do(t, "DELETE", "/rbac/roles/"+created.ID, nil, testAdmin, testOrg)
	if w.Code != http.StatusNoContent {
		t.Fatalf("Expected 204 on delete, got %d", w.Code)
	}

	w = f.do(t, "GET", "/rbac/roles/"+created.ID, nil, testMember, testOrg)
	if w.Code != http.StatusNotFound {
		t.Errorf("Expected 404 after delete, got %d", w.Code)
	}
}

func TestHandlers_MutationsRequireManagePermission(t *testing.T) {
	f := setupHandlers(t)

	// testMember holds no roles at all
	w := f.do(t, "POST", "/rbac/roles", map[string]interface{}{
		"name":         "sneaky",
		"display_name": "Sneaky",
	}, testMember, testOrg)
	if w.Code != http.StatusForbidden {
		t.Errorf("Expected 403 for non-admin create, got %d", w.Code)
	}

	// Unauthenticated
	w = f.do(t, "POST", "/rbac/roles", map[string]interface{}{
		"name":         "anon",
		"display_name": "Anon",
	}, nil, nil)
	if w.Code != http.StatusUnauthorized {
		t.Errorf("Expected 401 for unauthenticated create, got %d", w.Code)
	}
}

func TestHandlers_SystemRoleConflicts(t *testing.T) {
	f := setupHandlers(t)
	f.grantAdmin(t, testAdmin.ID, testOrg.ID)

	viewer, err := f.store.GetRoleByName(context.Background(), RoleViewer, testOrg.ID)
	if err != nil {
		t.Fatalf("Failed to get viewer role: %v", err)
	}

	w := f.do(t, "PUT", "/rbac/roles/"+viewer.ID, map[string]interface{}{
		"display_name": "Hijacked",
	}, testAdmin, testOrg)
	if w.Code != http.StatusConflict {
		t.Errorf("Expected 409 updating a system role, got %d", w.Code)
	}

	w = f.do(t, "DELETE", "/rbac/roles/"+viewer.ID, nil, testAdmin, testOrg)
	if w.Code != http.StatusConflict {
		t.Errorf("Expected 409 deleting a system role, got %d", w.Code)
	}
}

func TestHandlers_AssignmentLifecycle(t *testing.T) {
	f := setupHandlers(t)
	f.grantAdmin(t, testAdmin.ID, testOrg.ID)

	viewer, err := f.store.GetRoleByName(context.Background(), RoleViewer, testOrg.ID)
	if err != nil {
		t.Fatalf("Failed to get viewer role: %v", err)
	}

	// Assign
	w := f.do(t, "POST", "/rbac/users/"+testMember.ID+"/roles", map[string]string{
		"role_id": viewer.ID,
	}, testAdmin, testOrg)
	if w.Code != http.StatusCreated {
		t.Fatalf("Expected 201 on assign, got %d: %s", w.Code, w.Body.String())
	}

	// List the user's assignments
	w = f.do(t, "GET", "/rbac/users/"+testMember.ID+"/roles", nil, testAdmin, testOrg)
	if w.Code != http.StatusOK {
		t.Fatalf("Expected 200 listing assignments, got %d", w.Code)
	}
	var assignments []RoleAssignment
	if err := json.NewDecoder(w.Body).Decode(&assignments); err != nil {
		t.Fatalf("Failed to decode assignments: %v", err)
	}
	if len(assignments) != 1 || assignments[0].RoleID != viewer.ID {
		t.Fatalf("Unexpected assignments: %+v", assignments)
	}

	// Effective permissions now include the viewer set
	w = f.do(t, "GET", "/rbac/users/"+testMember.ID+"/permissions", nil, testAdmin, testOrg)
	if w.Code != http.StatusOK {
		t.Fatalf("Expected 200 for effective permissions, got %d", w.Code)
	}
	var access ResolvedAccess
	if err := json.NewDecoder(w.Body).Decode(&access); err != nil {
		t.Fatalf("Failed to decode access: %v", err)
	}
	if !access.HasPermission(PermGrantsView) {
		t.Error("Expected effective permissions to include grants:view")
	}
	if access.HasPermission(PermOrgDelete) {
		t.Error("Did not expect org:delete in viewer's effective permissions")
	}

	// Revoke
	w = f.do(t, "DELETE", "/rbac/users/"+testMember.ID+"/roles/"+viewer.ID, nil, testAdmin, testOrg)
	if w.Code != http.StatusNoContent {
		t.Fatalf("Expected 204 on revoke, got %d", w.Code)
	}

	w = f.do(t, "DELETE", "/rbac/users/"+testMember.ID+"/roles/"+viewer.ID, nil, testAdmin, testOrg)
	if w.Code != http.StatusNotFound {
		t.Errorf("Expected 404 on double revoke, got %d", w.Code)
	}
}

func TestHandlers_CheckPermission(t *testing.T) {
	f := setupHandlers(t)

	viewer, err := f.store.GetRoleByName(context.Background(), RoleViewer, testOrg.ID)
	if err != nil {
		t.Fatalf("Failed to get viewer role: %v", err)
	}
	assignTestRole(t, f.store, testMember.ID, testOrg.ID, viewer.ID)

	check := func(t *testing.T, permission string, user *auth.User, org *auth.Organization) (bool, int) {
		t.Helper()
		w := f.do(t, "POST", "/rbac/check", map[string]string{"permission": permission}, user, org)
		if w.Code != http.StatusOK {
			return false, w.Code
		}
		var resp struct {
			Allowed bool `json:"allowed"`
		}
		if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
			t.Fatalf("Failed to decode check response: %v", err)
		}
		return resp.Allowed, w.Code
	}

	// Fine-grained name the viewer holds
	if allowed, code := check(t, "grants:view", testMember, testOrg); code != http.StatusOK || !allowed {
		t.Errorf("Expected grants:view allowed, got allowed=%v code=%d", allowed, code)
	}

	// Legacy name satisfied through expansion
	if allowed, _ := check(t, "view", testMember, testOrg); !allowed {
		t.Error("Expected legacy view allowed for viewer")
	}

	// Permission the viewer lacks
	if allowed, _ := check(t, "org:delete", testMember, testOrg); allowed {
		t.Error("Expected org:delete denied for viewer")
	}

	// The fresh check observes a revocation immediately
	if err := f.store.RevokeRole(context.Background(), testMember.ID, testOrg.ID, viewer.ID); err != nil {
		t.Fatalf("Failed to revoke role: %v", err)
	}
	if allowed, _ := check(t, "grants:view", testMember, testOrg); allowed {
		t.Error("Expected check to deny right after revocation")
	}

	// Unauthenticated callers get 401
	w := f.do(t, "POST", "/rbac/check", map[string]string{"permission": "grants:view"}, nil, nil)
	if w.Code != http.StatusUnauthorized {
		t.Errorf("Expected 401 for unauthenticated check, got %d", w.Code)
	}
}
