package rbac

import (
	"time"
)

// PermissionName is a colon-namespaced capability string ("resource:action")
type PermissionName string

// Fine-grained permission names
const (
	PermGrantsView       PermissionName = "grants:view"
	PermGrantsCreate     PermissionName = "grants:create"
	PermGrantsEdit       PermissionName = "grants:edit"
	PermGrantsDelete     PermissionName = "grants:delete"
	PermTasksView        PermissionName = "tasks:view"
	PermTasksEdit        PermissionName = "tasks:edit"
	PermTeamInvite       PermissionName = "team:invite"
	PermTeamRemove       PermissionName = "team:remove"
	PermTeamEditRoles    PermissionName = "team:edit_roles"
	PermOrgViewSettings  PermissionName = "org:view_settings"
	PermOrgEditSettings  PermissionName = "org:edit_settings"
	PermOrgEditProfile   PermissionName = "org:edit_profile"
	PermOrgDelete        PermissionName = "org:delete"
	PermBillingView      PermissionName = "billing:view"
	PermBillingManage    PermissionName = "billing:manage"
	PermDocumentsView    PermissionName = "documents:view"
	PermDocumentsUpload  PermissionName = "documents:upload"
	PermDocumentsDelete  PermissionName = "documents:delete"
	PermAIRunChecklist   PermissionName = "ai:run_checklist"
	PermAIRunScoring     PermissionName = "ai:run_scoring"
	PermAdminManageRoles PermissionName = "admin:manage_roles"
	PermAdminViewAudit   PermissionName = "admin:view_audit"
)

// Permission is an immutable catalog entry
type Permission struct {
	ID          string         `json:"id"`
	Name        PermissionName `json:"name"`
	Category    string         `json:"category"`
	Description string         `json:"description"`
}

// Role represents a named set of permissions. System roles are global
// and immutable; custom roles belong to exactly one organization.
type Role struct {
	ID           string    `json:"id"`
	Name         string    `json:"name"`
	DisplayName  string    `json:"display_name"`
	Description  string    `json:"description"`
	IsSystemRole bool      `json:"is_system_role"`
	OrgID        *string   `json:"org_id,omitempty"` // nil for system roles
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
	CreatedBy    *string   `json:"created_by,omitempty"`
}

// RoleWithPermissions is a role plus its resolved permission set
type RoleWithPermissions struct {
	Role
	Permissions []Permission `json:"permissions"`
}

// RoleAssignment binds a user to a role within an organization
type RoleAssignment struct {
	ID        string    `json:"id"`
	UserID    string    `json:"user_id"`
	OrgID     string    `json:"org_id"`
	RoleID    string    `json:"role_id"`
	GrantedBy *string   `json:"granted_by,omitempty"`
	GrantedAt time.Time `json:"granted_at"`
}

// ResolvedAccess is the effective role and permission set for one
// (user, organization) pair. It is derived, never persisted.
type ResolvedAccess struct {
	Roles       []Role       `json:"roles"`
	Permissions []Permission `json:"permissions"`
}

// HasPermission reports whether the resolved set contains name exactly
func (ra ResolvedAccess) HasPermission(name PermissionName) bool {
	for _, p := range ra.Permissions {
		if p.Name == name {
			return true
		}
	}
	return false
}

// HasRole reports whether the resolved set contains a role with the given name
func (ra ResolvedAccess) HasRole(name string) bool {
	for _, r := range ra.Roles {
		if r.Name == name {
			return true
		}
	}
	return false
}

// System role names
const (
	RoleOrgAdmin     = "org_admin"
	RoleGrantManager = "grant_manager"
	RoleContributor  = "contributor"
	RoleViewer       = "viewer"
)

// RefKind discriminates fine-grained permission references from legacy ones
type RefKind int

const (
	RefFine RefKind = iota
	RefLegacy
)

// PermissionRef is a tagged reference to either a fine-grained catalog
// permission or one of the coarse legacy permissions.
type PermissionRef struct {
	Kind RefKind
	Name PermissionName
}

// Fine builds a reference to a fine-grained permission
func Fine(name PermissionName) PermissionRef {
	return PermissionRef{Kind: RefFine, Name: name}
}

// LegacyRef builds a reference to a legacy permission name
func LegacyRef(name LegacyPermission) PermissionRef {
	return PermissionRef{Kind: RefLegacy, Name: PermissionName(name)}
}

// ParseRef classifies a raw permission string from an API boundary.
// The five legacy names are tagged as legacy; everything else is
// treated as a fine-grained name, known to the catalog or not.
func ParseRef(raw string) PermissionRef {
	if IsLegacyPermission(raw) {
		return LegacyRef(LegacyPermission(raw))
	}
	return Fine(PermissionName(raw))
}

func (r PermissionRef) String() string {
	return string(r.Name)
}
