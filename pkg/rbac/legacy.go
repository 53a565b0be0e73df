package rbac

// LegacyPermission is one of the coarse permission names retained for
// call sites written against the pre-catalog model.
type LegacyPermission string

const (
	LegacyView          LegacyPermission = "view"
	LegacyEditOrg       LegacyPermission = "edit_org"
	LegacyManageTeam    LegacyPermission = "manage_team"
	LegacyManageBilling LegacyPermission = "manage_billing"
	LegacyDeleteOrg     LegacyPermission = "delete_org"
)

// legacyExpansions is the fixed mapping from legacy names to the
// fine-grained permissions that satisfy them. A legacy check passes
// when the user holds at least one of the mapped permissions.
var legacyExpansions = map[LegacyPermission][]PermissionName{
	LegacyView:          {PermGrantsView, PermTasksView, PermOrgViewSettings},
	LegacyEditOrg:       {PermOrgEditSettings, PermOrgEditProfile},
	LegacyManageTeam:    {PermTeamInvite, PermTeamRemove, PermTeamEditRoles},
	LegacyManageBilling: {PermBillingManage},
	LegacyDeleteOrg:     {PermOrgDelete},
}

// ExpandLegacy returns the fine-grained permissions a legacy name maps
// to. Unrecognized names expand to nil, which no permission set can
// satisfy.
func ExpandLegacy(name LegacyPermission) []PermissionName {
	return legacyExpansions[name]
}

// IsLegacyPermission reports whether raw is one of the five legacy names
func IsLegacyPermission(raw string) bool {
	_, ok := legacyExpansions[LegacyPermission(raw)]
	return ok
}
