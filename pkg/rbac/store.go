package rbac

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Sentinel errors returned by the store
var (
	ErrRoleNotFound        = errors.New("role not found")
	ErrSystemRoleImmutable = errors.New("system roles cannot be modified")
	ErrAssignmentNotFound  = errors.New("role assignment not found")
)

// Store handles role, permission and assignment persistence
type Store struct {
	db *sql.DB
}

// NewStore creates a new store
func NewStore(db *sql.DB) *Store {
	return &Store{db: db}
}

// GetUserAccess returns the roles assigned to a user within an
// organization together with the deduplicated union of their
// permissions, in a single query. Roles and their permission rows come
// from one read, so a decision never mixes two snapshots.
func (s *Store) GetUserAccess(ctx context.Context, userID, orgID string) (ResolvedAccess, error) {
	query := `
		SELECT r.id, r.name, r.display_name, r.description, r.is_system_role, r.org_id,
		       r.created_at, r.updated_at,
		       p.id, p.name, p.category, p.description
		FROM role_assignments ra
		JOIN roles r ON r.id = ra.role_id
		LEFT JOIN role_permissions rp ON rp.role_id = r.id
		LEFT JOIN permissions p ON p.id = rp.permission_id
		WHERE ra.user_id = $1 AND ra.org_id = $2
		ORDER BY r.name ASC
	`

	rows, err := s.db.QueryContext(ctx, query, userID, orgID)
	if err != nil {
		return ResolvedAccess{}, fmt.Errorf("failed to query user access: %w", err)
	}
	defer rows.Close()

	var access ResolvedAccess
	seenRoles := make(map[string]bool)
	seenPerms := make(map[PermissionName]bool)

	for rows.Next() {
		var role Role
		var roleOrgID sql.NullString
		var permID, permName, permCategory, permDescription sql.NullString

		err := rows.Scan(
			&role.ID,
			&role.Name,
			&role.DisplayName,
			&role.Description,
			&role.IsSystemRole,
			&roleOrgID,
			&role.CreatedAt,
			&role.UpdatedAt,
			&permID,
			&permName,
			&permCategory,
			&permDescription,
		)
		if err != nil {
			return ResolvedAccess{}, fmt.Errorf("failed to scan user access row: %w", err)
		}

		if roleOrgID.Valid {
			oid := roleOrgID.String
			role.OrgID = &oid
		}

		if !seenRoles[role.ID] {
			seenRoles[role.ID] = true
			access.Roles = append(access.Roles, role)
		}

		// LEFT JOIN: a role with no permissions yields NULL permission columns
		if permID.Valid {
			name := PermissionName(permName.String)
			if !seenPerms[name] {
				seenPerms[name] = true
				access.Permissions = append(access.Permissions, Permission{
					ID:          permID.String,
					Name:        name,
					Category:    permCategory.String,
					Description: permDescription.String,
				})
			}
		}
	}

	if err := rows.Err(); err != nil {
		return ResolvedAccess{}, fmt.Errorf("failed to read user access rows: %w", err)
	}

	return access, nil
}

// ListPermissions returns the persisted permission catalog
func (s *Store) ListPermissions(ctx context.Context) ([]Permission, error) {
	query := `
		SELECT id, name, category, description
		FROM permissions
		ORDER BY category ASC, name ASC
	`

	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list permissions: %w", err)
	}
	defer rows.Close()

	var permissions []Permission
	for rows.Next() {
		var p Permission
		if err := rows.Scan(&p.ID, &p.Name, &p.Category, &p.Description); err != nil {
			return nil, fmt.Errorf("failed to scan permission: %w", err)
		}
		permissions = append(permissions, p)
	}

	return permissions, rows.Err()
}

// GetRole retrieves a role with its permissions
func (s *Store) GetRole(ctx context.Context, roleID string) (*RoleWithPermissions, error) {
	query := `
		SELECT id, name, display_name, description, is_system_role, org_id, created_at, updated_at, created_by
		FROM roles
		WHERE id = $1
	`

	var role RoleWithPermissions
	var orgID, createdBy sql.NullString

	err := s.db.QueryRowContext(ctx, query, roleID).Scan(
		&role.ID,
		&role.Name,
		&role.DisplayName,
		&role.Description,
		&role.IsSystemRole,
		&orgID,
		&role.CreatedAt,
		&role.UpdatedAt,
		&createdBy,
	)
	if err == sql.ErrNoRows {
		return nil, ErrRoleNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get role: %w", err)
	}

	if orgID.Valid {
		oid := orgID.String
		role.OrgID = &oid
	}
	if createdBy.Valid {
		cb := createdBy.String
		role.CreatedBy = &cb
	}

	permissions, err := s.getRolePermissions(ctx, role.ID)
	if err != nil {
		return nil, err
	}
	role.Permissions = permissions

	return &role, nil
}

// GetRoleByName retrieves a role by name, preferring an org-scoped
// custom role over a system role of the same name.
func (s *Store) GetRoleByName(ctx context.Context, name string, orgID string) (*RoleWithPermissions, error) {
	query := `
		SELECT id
		FROM roles
		WHERE name = $1 AND (org_id = $2 OR org_id IS NULL)
		ORDER BY org_id DESC NULLS LAST
		LIMIT 1
	`

	var roleID string
	err := s.db.QueryRowContext(ctx, query, name, orgID).Scan(&roleID)
	if err == sql.ErrNoRows {
		return nil, ErrRoleNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get role by name: %w", err)
	}

	return s.GetRole(ctx, roleID)
}

// ListRoles returns system roles plus the organization's custom roles
func (s *Store) ListRoles(ctx context.Context, orgID string) ([]RoleWithPermissions, error) {
	query := `
		SELECT id, name, display_name, description, is_system_role, org_id, created_at, updated_at, created_by
		FROM roles
		WHERE org_id = $1 OR is_system_role = TRUE
		ORDER BY is_system_role DESC, name ASC
	`

	rows, err := s.db.QueryContext(ctx, query, orgID)
	if err != nil {
		return nil, fmt.Errorf("failed to list roles: %w", err)
	}
	defer rows.Close()

	var roles []RoleWithPermissions
	for rows.Next() {
		var role RoleWithPermissions
		var roleOrgID, createdBy sql.NullString

		err := rows.Scan(
			&role.ID,
			&role.Name,
			&role.DisplayName,
			&role.Description,
			&role.IsSystemRole,
			&roleOrgID,
			&role.CreatedAt,
			&role.UpdatedAt,
			&createdBy,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan role: %w", err)
		}

		if roleOrgID.Valid {
			oid := roleOrgID.String
			role.OrgID = &oid
		}
		if createdBy.Valid {
			cb := createdBy.String
			role.CreatedBy = &cb
		}

		roles = append(roles, role)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	for i := range roles {
		permissions, err := s.getRolePermissions(ctx, roles[i].ID)
		if err != nil {
			return nil, err
		}
		roles[i].Permissions = permissions
	}

	return roles, nil
}

// CreateRole creates a custom role scoped to one organization
func (s *Store) CreateRole(ctx context.Context, role *RoleWithPermissions, permissionNames []PermissionName) error {
	if role.ID == "" {
		role.ID = uuid.NewString()
	}
	role.IsSystemRole = false

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	now := time.Now()
	_, err = tx.ExecContext(ctx, `
		INSERT INTO roles (id, name, display_name, description, is_system_role, org_id, created_at, updated_at, created_by)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`,
		role.ID,
		role.Name,
		role.DisplayName,
		role.Description,
		false,
		role.OrgID,
		now,
		now,
		role.CreatedBy,
	)
	if err != nil {
		return fmt.Errorf("failed to create role: %w", err)
	}

	if err := s.replaceRolePermissions(ctx, tx, role.ID, permissionNames); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit role: %w", err)
	}

	role.CreatedAt = now
	role.UpdatedAt = now

	permissions, err := s.getRolePermissions(ctx, role.ID)
	if err != nil {
		return err
	}
	role.Permissions = permissions
	return nil
}

// UpdateRole updates a custom role's metadata and permission set.
// System roles are immutable.
func (s *Store) UpdateRole(ctx context.Context, role *RoleWithPermissions, permissionNames []PermissionName) error {
	existing, err := s.GetRole(ctx, role.ID)
	if err != nil {
		return err
	}
	if existing.IsSystemRole {
		return ErrSystemRoleImmutable
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	role.UpdatedAt = time.Now()
	_, err = tx.ExecContext(ctx, `
		UPDATE roles
		SET display_name = $1, description = $2, updated_at = $3
		WHERE id = $4
	`,
		role.DisplayName,
		role.Description,
		role.UpdatedAt,
		role.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to update role: %w", err)
	}

	if err := s.replaceRolePermissions(ctx, tx, role.ID, permissionNames); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit role update: %w", err)
	}

	permissions, err := s.getRolePermissions(ctx, role.ID)
	if err != nil {
		return err
	}
	role.Permissions = permissions
	return nil
}

// DeleteRole deletes a custom role and its assignments
func (s *Store) DeleteRole(ctx context.Context, roleID string) error {
	role, err := s.GetRole(ctx, roleID)
	if err != nil {
		return err
	}
	if role.IsSystemRole {
		return ErrSystemRoleImmutable
	}

	_, err = s.db.ExecContext(ctx, `DELETE FROM roles WHERE id = $1`, roleID)
	if err != nil {
		return fmt.Errorf("failed to delete role: %w", err)
	}
	return nil
}

// AssignRole binds a user to a role within an organization
func (s *Store) AssignRole(ctx context.Context, assignment *RoleAssignment) error {
	if assignment.ID == "" {
		assignment.ID = uuid.NewString()
	}

	now := time.Now()
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO role_assignments (id, user_id, org_id, role_id, granted_by, granted_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`,
		assignment.ID,
		assignment.UserID,
		assignment.OrgID,
		assignment.RoleID,
		assignment.GrantedBy,
		now,
	)
	if err != nil {
		return fmt.Errorf("failed to assign role: %w", err)
	}

	assignment.GrantedAt = now
	return nil
}

// RevokeRole removes a user's role assignment within an organization
func (s *Store) RevokeRole(ctx context.Context, userID, orgID, roleID string) error {
	result, err := s.db.ExecContext(ctx, `
		DELETE FROM role_assignments
		WHERE user_id = $1 AND org_id = $2 AND role_id = $3
	`, userID, orgID, roleID)
	if err != nil {
		return fmt.Errorf("failed to revoke role: %w", err)
	}

	affected, err := result.RowsAffected()
	if err == nil && affected == 0 {
		return ErrAssignmentNotFound
	}
	return nil
}

// ListAssignments returns a user's assignments within an organization
func (s *Store) ListAssignments(ctx context.Context, userID, orgID string) ([]RoleAssignment, error) {
	query := `
		SELECT id, user_id, org_id, role_id, granted_by, granted_at
		FROM role_assignments
		WHERE user_id = $1 AND org_id = $2
		ORDER BY granted_at DESC
	`

	rows, err := s.db.QueryContext(ctx, query, userID, orgID)
	if err != nil {
		return nil, fmt.Errorf("failed to list assignments: %w", err)
	}
	defer rows.Close()

	var assignments []RoleAssignment
	for rows.Next() {
		var a RoleAssignment
		var grantedBy sql.NullString

		err := rows.Scan(&a.ID, &a.UserID, &a.OrgID, &a.RoleID, &grantedBy, &a.GrantedAt)
		if err != nil {
			return nil, fmt.Errorf("failed to scan assignment: %w", err)
		}

		if grantedBy.Valid {
			gb := grantedBy.String
			a.GrantedBy = &gb
		}

		assignments = append(assignments, a)
	}

	return assignments, rows.Err()
}

// getRolePermissions loads the permission set for one role
func (s *Store) getRolePermissions(ctx context.Context, roleID string) ([]Permission, error) {
	query := `
		SELECT p.id, p.name, p.category, p.description
		FROM role_permissions rp
		JOIN permissions p ON p.id = rp.permission_id
		WHERE rp.role_id = $1
		ORDER BY p.name ASC
	`

	rows, err := s.db.QueryContext(ctx, query, roleID)
	if err != nil {
		return nil, fmt.Errorf("failed to get role permissions: %w", err)
	}
	defer rows.Close()

	var permissions []Permission
	for rows.Next() {
		var p Permission
		if err := rows.Scan(&p.ID, &p.Name, &p.Category, &p.Description); err != nil {
			return nil, fmt.Errorf("failed to scan role permission: %w", err)
		}
		permissions = append(permissions, p)
	}

	return permissions, rows.Err()
}

// replaceRolePermissions rewrites a role's permission rows inside tx.
// Unknown permission names are rejected rather than silently dropped.
func (s *Store) replaceRolePermissions(ctx context.Context, tx *sql.Tx, roleID string, names []PermissionName) error {
	if _, err := tx.ExecContext(ctx, `DELETE FROM role_permissions WHERE role_id = $1`, roleID); err != nil {
		return fmt.Errorf("failed to clear role permissions: %w", err)
	}

	for _, name := range names {
		var permID string
		err := tx.QueryRowContext(ctx, `SELECT id FROM permissions WHERE name = $1`, string(name)).Scan(&permID)
		if err == sql.ErrNoRows {
			return fmt.Errorf("unknown permission: %s", name)
		}
		if err != nil {
			return fmt.Errorf("failed to look up permission %s: %w", name, err)
		}

		_, err = tx.ExecContext(ctx, `
			INSERT INTO role_permissions (role_id, permission_id)
			VALUES ($1, $2)
		`, roleID, permID)
		if err != nil {
			return fmt.Errorf("failed to grant permission %s: %w", name, err)
		}
	}

	return nil
}
