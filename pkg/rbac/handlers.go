package rbac

import (
	"errors"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/grantcue/grantcue/pkg/audit"
	"github.com/grantcue/grantcue/pkg/httputil"
	"github.com/grantcue/grantcue/pkg/middleware"
)

// Handlers provides the role-management HTTP surface. Every mutation
// invalidates the affected cached resolutions, so the next permission
// check observes the change.
type Handlers struct {
	store       *Store
	resolver    *Resolver
	auditLogger audit.Logger
}

// NewHandlers creates role-management handlers
func NewHandlers(store *Store, resolver *Resolver, auditLogger audit.Logger) *Handlers {
	if auditLogger == nil {
		auditLogger = audit.NopLogger()
	}
	return &Handlers{
		store:       store,
		resolver:    resolver,
		auditLogger: auditLogger,
	}
}

// RegisterRoutes registers all role-management routes. The guard gates
// mutations behind admin:manage_roles.
func (h *Handlers) RegisterRoutes(router *mux.Router, guard *Guard) {
	manage := guard.RequirePermission(Fine(PermAdminManageRoles))

	router.Handle("/rbac/permissions", http.HandlerFunc(h.ListPermissions)).Methods("GET")

	router.Handle("/rbac/roles", http.HandlerFunc(h.ListRoles)).Methods("GET")
	router.Handle("/rbac/roles", manage(http.HandlerFunc(h.CreateRole))).Methods("POST")
	router.Handle("/rbac/roles/{id}", http.HandlerFunc(h.GetRole)).Methods("GET")
	router.Handle("/rbac/roles/{id}", manage(http.HandlerFunc(h.UpdateRole))).Methods("PUT")
	router.Handle("/rbac/roles/{id}", manage(http.HandlerFunc(h.DeleteRole))).Methods("DELETE")

	router.Handle("/rbac/users/{id}/roles", manage(http.HandlerFunc(h.AssignRole))).Methods("POST")
	router.Handle("/rbac/users/{id}/roles", http.HandlerFunc(h.ListUserRoles)).Methods("GET")
	router.Handle("/rbac/users/{id}/roles/{role_id}", manage(http.HandlerFunc(h.RevokeRole))).Methods("DELETE")
	router.Handle("/rbac/users/{id}/permissions", http.HandlerFunc(h.GetUserPermissions)).Methods("GET")

	router.Handle("/rbac/check", http.HandlerFunc(h.CheckPermission)).Methods("POST")
}

// ListPermissions returns the permission catalog grouped by category
func (h *Handlers) ListPermissions(w http.ResponseWriter, r *http.Request) {
	permissions, err := h.store.ListPermissions(r.Context())
	if err != nil {
		httputil.WriteInternalError(w, err)
		return
	}

	grouped := make(map[string][]Permission)
	for _, p := range permissions {
		grouped[p.Category] = append(grouped[p.Category], p)
	}

	httputil.WriteSuccess(w, grouped)
}

// ListRoles returns system roles plus the current org's custom roles
func (h *Handlers) ListRoles(w http.ResponseWriter, r *http.Request) {
	identity := middleware.GetAuthContext(r).Identity()
	if identity.OrgID == "" {
		httputil.WriteValidationError(w, "organization context required")
		return
	}

	roles, err := h.store.ListRoles(r.Context(), identity.OrgID)
	if err != nil {
		httputil.WriteInternalError(w, err)
		return
	}

	httputil.WriteSuccess(w, roles)
}

// GetRole returns one role with its permission set
func (h *Handlers) GetRole(w http.ResponseWriter, r *http.Request) {
	roleID, ok := httputil.PathStringOrError(w, r, "id")
	if !ok {
		return
	}

	role, err := h.store.GetRole(r.Context(), roleID)
	if errors.Is(err, ErrRoleNotFound) {
		httputil.WriteNotFoundError(w, "role not found")
		return
	}
	if err != nil {
		httputil.WriteInternalError(w, err)
		return
	}

	httputil.WriteSuccess(w, role)
}

type roleRequest struct {
	Name        string           `json:"name"`
	DisplayName string           `json:"display_name"`
	Description string           `json:"description"`
	Permissions []PermissionName `json:"permissions"`
}

// CreateRole creates a custom role scoped to the current organization
func (h *Handlers) CreateRole(w http.ResponseWriter, r *http.Request) {
	identity := middleware.GetAuthContext(r).Identity()
	if identity.OrgID == "" {
		httputil.WriteValidationError(w, "organization context required")
		return
	}

	var req roleRequest
	if !httputil.ParseJSONOrError(w, r, &req) {
		return
	}
	if req.Name == "" || req.DisplayName == "" {
		httputil.WriteValidationError(w, "name and display_name are required")
		return
	}

	orgID := identity.OrgID
	role := &RoleWithPermissions{
		Role: Role{
			Name:        req.Name,
			DisplayName: req.DisplayName,
			Description: req.Description,
			OrgID:       &orgID,
		},
	}
	if identity.UserID != "" {
		uid := identity.UserID
		role.CreatedBy = &uid
	}

	if err := h.store.CreateRole(r.Context(), role, req.Permissions); err != nil {
		httputil.WriteInternalError(w, err)
		return
	}

	h.auditLogger.LogRoleChange(r.Context(), audit.EventTypeRoleCreate,
		identity.UserID, orgID, audit.ResourceTypeRole, role.ID,
		audit.EventStatusSuccess, "created role "+role.Name)
	h.resolver.InvalidateOrg(r.Context(), orgID)

	httputil.WriteCreated(w, role)
}

// UpdateRole updates a custom role's metadata and permission set
func (h *Handlers) UpdateRole(w http.ResponseWriter, r *http.Request) {
	identity := middleware.GetAuthContext(r).Identity()
	roleID, ok := httputil.PathStringOrError(w, r, "id")
	if !ok {
		return
	}

	var req roleRequest
	if !httputil.ParseJSONOrError(w, r, &req) {
		return
	}

	role := &RoleWithPermissions{
		Role: Role{
			ID:          roleID,
			DisplayName: req.DisplayName,
			Description: req.Description,
		},
	}

	err := h.store.UpdateRole(r.Context(), role, req.Permissions)
	if errors.Is(err, ErrRoleNotFound) {
		httputil.WriteNotFoundError(w, "role not found")
		return
	}
	if errors.Is(err, ErrSystemRoleImmutable) {
		httputil.WriteErrorMessage(w, http.StatusConflict, "system roles cannot be modified")
		return
	}
	if err != nil {
		httputil.WriteInternalError(w, err)
		return
	}

	h.auditLogger.LogRoleChange(r.Context(), audit.EventTypeRoleUpdate,
		identity.UserID, identity.OrgID, audit.ResourceTypeRole, roleID,
		audit.EventStatusSuccess, "updated role")
	h.resolver.InvalidateOrg(r.Context(), identity.OrgID)

	httputil.WriteSuccess(w, role)
}

// DeleteRole deletes a custom role and its assignments
func (h *Handlers) DeleteRole(w http.ResponseWriter, r *http.Request) {
	identity := middleware.GetAuthContext(r).Identity()
	roleID, ok := httputil.PathStringOrError(w, r, "id")
	if !ok {
		return
	}

	err := h.store.DeleteRole(r.Context(), roleID)
	if errors.Is(err, ErrRoleNotFound) {
		httputil.WriteNotFoundError(w, "role not found")
		return
	}
	if errors.Is(err, ErrSystemRoleImmutable) {
		httputil.WriteErrorMessage(w, http.StatusConflict, "system roles cannot be deleted")
		return
	}
	if err != nil {
		httputil.WriteInternalError(w, err)
		return
	}

	h.auditLogger.LogRoleChange(r.Context(), audit.EventTypeRoleDelete,
		identity.UserID, identity.OrgID, audit.ResourceTypeRole, roleID,
		audit.EventStatusSuccess, "deleted role")
	h.resolver.InvalidateOrg(r.Context(), identity.OrgID)

	httputil.WriteNoContent(w)
}

// AssignRole binds a role to a user within the current organization
func (h *Handlers) AssignRole(w http.ResponseWriter, r *http.Request) {
	identity := middleware.GetAuthContext(r).Identity()
	userID, ok := httputil.PathStringOrError(w, r, "id")
	if !ok {
		return
	}
	if identity.OrgID == "" {
		httputil.WriteValidationError(w, "organization context required")
		return
	}

	var req struct {
		RoleID string `json:"role_id"`
	}
	if !httputil.ParseJSONOrError(w, r, &req) {
		return
	}
	if req.RoleID == "" {
		httputil.WriteValidationError(w, "role_id is required")
		return
	}

	assignment := &RoleAssignment{
		UserID: userID,
		OrgID:  identity.OrgID,
		RoleID: req.RoleID,
	}
	if identity.UserID != "" {
		uid := identity.UserID
		assignment.GrantedBy = &uid
	}

	if err := h.store.AssignRole(r.Context(), assignment); err != nil {
		httputil.WriteInternalError(w, err)
		return
	}

	h.auditLogger.LogRoleChange(r.Context(), audit.EventTypeRoleAssign,
		identity.UserID, identity.OrgID, audit.ResourceTypeAssignment, assignment.ID,
		audit.EventStatusSuccess, "assigned role "+req.RoleID+" to user "+userID)
	h.resolver.Invalidate(r.Context(), userID, identity.OrgID)

	httputil.WriteCreated(w, assignment)
}

// ListUserRoles returns a user's role assignments in the current org
func (h *Handlers) ListUserRoles(w http.ResponseWriter, r *http.Request) {
	identity := middleware.GetAuthContext(r).Identity()
	userID, ok := httputil.PathStringOrError(w, r, "id")
	if !ok {
		return
	}

	assignments, err := h.store.ListAssignments(r.Context(), userID, identity.OrgID)
	if err != nil {
		httputil.WriteInternalError(w, err)
		return
	}

	httputil.WriteSuccess(w, assignments)
}

// RevokeRole removes a user's role assignment in the current org
func (h *Handlers) RevokeRole(w http.ResponseWriter, r *http.Request) {
	identity := middleware.GetAuthContext(r).Identity()
	userID, ok := httputil.PathStringOrError(w, r, "id")
	if !ok {
		return
	}
	roleID, ok := httputil.PathStringOrError(w, r, "role_id")
	if !ok {
		return
	}

	err := h.store.RevokeRole(r.Context(), userID, identity.OrgID, roleID)
	if errors.Is(err, ErrAssignmentNotFound) {
		httputil.WriteNotFoundError(w, "assignment not found")
		return
	}
	if err != nil {
		httputil.WriteInternalError(w, err)
		return
	}

	h.auditLogger.LogRoleChange(r.Context(), audit.EventTypeRoleRevoke,
		identity.UserID, identity.OrgID, audit.ResourceTypeAssignment, "",
		audit.EventStatusSuccess, "revoked role "+roleID+" from user "+userID)
	h.resolver.Invalidate(r.Context(), userID, identity.OrgID)

	httputil.WriteNoContent(w)
}

// GetUserPermissions returns a user's effective permission set
func (h *Handlers) GetUserPermissions(w http.ResponseWriter, r *http.Request) {
	identity := middleware.GetAuthContext(r).Identity()
	userID, ok := httputil.PathStringOrError(w, r, "id")
	if !ok {
		return
	}

	access := h.resolver.Resolve(r.Context(), userID, identity.OrgID)
	httputil.WriteSuccess(w, access)
}

// CheckPermission is the strong-consistency check endpoint. It
// re-resolves against the backing store for the caller's identity.
func (h *Handlers) CheckPermission(w http.ResponseWriter, r *http.Request) {
	authCtx := middleware.GetAuthContext(r)
	if authCtx == nil || authCtx.User == nil {
		httputil.WriteErrorMessage(w, http.StatusUnauthorized, "authentication required")
		return
	}

	var req struct {
		Permission string `json:"permission"`
	}
	if !httputil.ParseJSONOrError(w, r, &req) {
		return
	}
	if req.Permission == "" {
		httputil.WriteValidationError(w, "permission is required")
		return
	}

	session := NewSession(h.resolver, authCtx.Identity())
	allowed := session.CheckPermission(r.Context(), ParseRef(req.Permission))

	httputil.WriteSuccess(w, map[string]interface{}{
		"permission": req.Permission,
		"allowed":    allowed,
	})
}
