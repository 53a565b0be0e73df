package rbac

// Permission categories
const (
	CategoryGrants       = "grants"
	CategoryTasks        = "tasks"
	CategoryTeam         = "team"
	CategoryOrganization = "organization"
	CategoryBilling      = "billing"
	CategoryDocuments    = "documents"
	CategoryAI           = "ai"
	CategoryAdmin        = "admin"
)

// CatalogEntry describes one permission in the static catalog
type CatalogEntry struct {
	Name        PermissionName
	Category    string
	Description string
}

// Catalog returns the full fine-grained permission catalog. The catalog
// is seed data: the store writes it once and treats it as immutable.
func Catalog() []CatalogEntry {
	return []CatalogEntry{
		{PermGrantsView, CategoryGrants, "View grant opportunities and applications"},
		{PermGrantsCreate, CategoryGrants, "Create tracked grant applications"},
		{PermGrantsEdit, CategoryGrants, "Edit grant applications and deadlines"},
		{PermGrantsDelete, CategoryGrants, "Delete grant applications"},
		{PermTasksView, CategoryTasks, "View application tasks and checklists"},
		{PermTasksEdit, CategoryTasks, "Create, edit and complete tasks"},
		{PermTeamInvite, CategoryTeam, "Invite members to the organization"},
		{PermTeamRemove, CategoryTeam, "Remove members from the organization"},
		{PermTeamEditRoles, CategoryTeam, "Change role assignments of members"},
		{PermOrgViewSettings, CategoryOrganization, "View organization settings"},
		{PermOrgEditSettings, CategoryOrganization, "Edit organization settings"},
		{PermOrgEditProfile, CategoryOrganization, "Edit the organization profile"},
		{PermOrgDelete, CategoryOrganization, "Delete the organization"},
		{PermBillingView, CategoryBilling, "View plan and invoices"},
		{PermBillingManage, CategoryBilling, "Change plan and payment details"},
		{PermDocumentsView, CategoryDocuments, "View uploaded documents"},
		{PermDocumentsUpload, CategoryDocuments, "Upload documents"},
		{PermDocumentsDelete, CategoryDocuments, "Delete documents"},
		{PermAIRunChecklist, CategoryAI, "Generate AI application checklists"},
		{PermAIRunScoring, CategoryAI, "Run AI success scoring"},
		{PermAdminManageRoles, CategoryAdmin, "Create and manage custom roles"},
		{PermAdminViewAudit, CategoryAdmin, "View the audit trail"},
	}
}

// CatalogNames returns every permission name in the catalog
func CatalogNames() []PermissionName {
	entries := Catalog()
	names := make([]PermissionName, 0, len(entries))
	for _, e := range entries {
		names = append(names, e.Name)
	}
	return names
}

// SystemRoleDefinition describes one system role and its permission grants
type SystemRoleDefinition struct {
	Name        string
	DisplayName string
	Description string
	Permissions []PermissionName
}

// SystemRoles returns the global role definitions seeded for every
// organization. These are immutable from this package's perspective.
func SystemRoles() []SystemRoleDefinition {
	return []SystemRoleDefinition{
		{
			Name:        RoleOrgAdmin,
			DisplayName: "Organization Admin",
			Description: "Full access to the organization",
			Permissions: CatalogNames(),
		},
		{
			Name:        RoleGrantManager,
			DisplayName: "Grant Manager",
			Description: "Manages the grant pipeline and team workload",
			Permissions: []PermissionName{
				PermGrantsView, PermGrantsCreate, PermGrantsEdit, PermGrantsDelete,
				PermTasksView, PermTasksEdit,
				PermTeamInvite,
				PermOrgViewSettings,
				PermBillingView,
				PermDocumentsView, PermDocumentsUpload, PermDocumentsDelete,
				PermAIRunChecklist, PermAIRunScoring,
			},
		},
		{
			Name:        RoleContributor,
			DisplayName: "Contributor",
			Description: "Works on applications and tasks",
			Permissions: []PermissionName{
				PermGrantsView, PermGrantsCreate, PermGrantsEdit,
				PermTasksView, PermTasksEdit,
				PermOrgViewSettings,
				PermDocumentsView, PermDocumentsUpload,
				PermAIRunChecklist,
			},
		},
		{
			Name:        RoleViewer,
			DisplayName: "Viewer",
			Description: "Read-only access",
			Permissions: []PermissionName{
				PermGrantsView,
				PermTasksView,
				PermOrgViewSettings,
				PermDocumentsView,
			},
		},
	}
}
