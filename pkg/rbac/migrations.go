package rbac

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"
)

// Migration represents a database migration
type Migration struct {
	Version     int
	Description string
	SQL         string
}

// GetMigrations returns all access-control migrations
func GetMigrations() []Migration {
	return []Migration{
		{
			Version:     1,
			Description: "Create permissions table",
			SQL: `
				CREATE TABLE IF NOT EXISTS permissions (
					id TEXT PRIMARY KEY,
					name VARCHAR(255) NOT NULL UNIQUE,
					category VARCHAR(64) NOT NULL,
					description TEXT NOT NULL DEFAULT ''
				);

				CREATE INDEX IF NOT EXISTS idx_permissions_category ON permissions(category);
			`,
		},
		{
			Version:     2,
			Description: "Create roles table",
			SQL: `
				CREATE TABLE IF NOT EXISTS roles (
					id TEXT PRIMARY KEY,
					name VARCHAR(255) NOT NULL,
					display_name VARCHAR(255) NOT NULL,
					description TEXT NOT NULL DEFAULT '',
					is_system_role BOOLEAN NOT NULL DEFAULT FALSE,
					org_id TEXT,
					created_at TIMESTAMP NOT NULL,
					updated_at TIMESTAMP NOT NULL,
					created_by TEXT,
					UNIQUE(name, org_id)
				);

				CREATE INDEX IF NOT EXISTS idx_roles_org_id ON roles(org_id);
				CREATE INDEX IF NOT EXISTS idx_roles_name ON roles(name);
			`,
		},
		{
			Version:     3,
			Description: "Create role_permissions table",
			SQL: `
				CREATE TABLE IF NOT EXISTS role_permissions (
					role_id TEXT NOT NULL REFERENCES roles(id) ON DELETE CASCADE,
					permission_id TEXT NOT NULL REFERENCES permissions(id) ON DELETE CASCADE,
					PRIMARY KEY (role_id, permission_id)
				);

				CREATE INDEX IF NOT EXISTS idx_role_permissions_role_id ON role_permissions(role_id);
			`,
		},
		{
			Version:     4,
			Description: "Create role_assignments table",
			SQL: `
				CREATE TABLE IF NOT EXISTS role_assignments (
					id TEXT PRIMARY KEY,
					user_id TEXT NOT NULL,
					org_id TEXT NOT NULL,
					role_id TEXT NOT NULL REFERENCES roles(id) ON DELETE CASCADE,
					granted_by TEXT,
					granted_at TIMESTAMP NOT NULL,
					UNIQUE(user_id, org_id, role_id)
				);

				CREATE INDEX IF NOT EXISTS idx_role_assignments_user_org ON role_assignments(user_id, org_id);
				CREATE INDEX IF NOT EXISTS idx_role_assignments_role_id ON role_assignments(role_id);
			`,
		},
	}
}

// RunMigrations executes all pending migrations
func RunMigrations(ctx context.Context, db *sql.DB) error {
	_, err := db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS rbac_migrations (
			version INT PRIMARY KEY,
			description TEXT NOT NULL,
			applied_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
		)
	`)
	if err != nil {
		return fmt.Errorf("failed to create migrations table: %w", err)
	}

	rows, err := db.QueryContext(ctx, "SELECT version FROM rbac_migrations ORDER BY version")
	if err != nil {
		return fmt.Errorf("failed to query migrations: %w", err)
	}

	appliedVersions := make(map[int]bool)
	for rows.Next() {
		var version int
		if err := rows.Scan(&version); err != nil {
			rows.Close()
			return fmt.Errorf("failed to scan migration version: %w", err)
		}
		appliedVersions[version] = true
	}
	rows.Close()

	for _, migration := range GetMigrations() {
		if appliedVersions[migration.Version] {
			continue
		}

		tx, err := db.BeginTx(ctx, nil)
		if err != nil {
			return fmt.Errorf("failed to start transaction: %w", err)
		}

		if _, err := tx.ExecContext(ctx, migration.SQL); err != nil {
			tx.Rollback()
			return fmt.Errorf("failed to execute migration %d: %w", migration.Version, err)
		}

		if _, err := tx.ExecContext(ctx,
			"INSERT INTO rbac_migrations (version, description) VALUES ($1, $2)",
			migration.Version, migration.Description,
		); err != nil {
			tx.Rollback()
			return fmt.Errorf("failed to record migration %d: %w", migration.Version, err)
		}

		if err := tx.Commit(); err != nil {
			return fmt.Errorf("failed to commit migration %d: %w", migration.Version, err)
		}
	}

	return nil
}

// SeedCatalog inserts any catalog permissions missing from the
// permissions table. Existing rows are left untouched: the catalog is
// append-only seed data.
func SeedCatalog(ctx context.Context, db *sql.DB) error {
	for _, entry := range Catalog() {
		var existing string
		err := db.QueryRowContext(ctx,
			`SELECT id FROM permissions WHERE name = $1`, string(entry.Name)).Scan(&existing)
		if err == nil {
			continue
		}
		if err != sql.ErrNoRows {
			return fmt.Errorf("failed to check permission %s: %w", entry.Name, err)
		}

		_, err = db.ExecContext(ctx, `
			INSERT INTO permissions (id, name, category, description)
			VALUES ($1, $2, $3, $4)
		`, uuid.NewString(), string(entry.Name), entry.Category, entry.Description)
		if err != nil {
			return fmt.Errorf("failed to seed permission %s: %w", entry.Name, err)
		}
	}

	return nil
}

// SeedSystemRoles creates the global system roles if they don't exist
// and reconciles their permission sets with the definitions.
func SeedSystemRoles(ctx context.Context, db *sql.DB) error {
	store := NewStore(db)

	for _, def := range SystemRoles() {
		var roleID string
		err := db.QueryRowContext(ctx,
			`SELECT id FROM roles WHERE name = $1 AND org_id IS NULL`, def.Name).Scan(&roleID)
		if err == sql.ErrNoRows {
			roleID = uuid.NewString()
			_, err = db.ExecContext(ctx, `
				INSERT INTO roles (id, name, display_name, description, is_system_role, org_id, created_at, updated_at)
				VALUES ($1, $2, $3, $4, TRUE, NULL, CURRENT_TIMESTAMP, CURRENT_TIMESTAMP)
			`, roleID, def.Name, def.DisplayName, def.Description)
			if err != nil {
				return fmt.Errorf("failed to create system role %s: %w", def.Name, err)
			}
		} else if err != nil {
			return fmt.Errorf("failed to check system role %s: %w", def.Name, err)
		}

		tx, err := db.BeginTx(ctx, nil)
		if err != nil {
			return fmt.Errorf("failed to start transaction: %w", err)
		}
		if err := store.replaceRolePermissions(ctx, tx, roleID, def.Permissions); err != nil {
			tx.Rollback()
			return fmt.Errorf("failed to seed permissions for role %s: %w", def.Name, err)
		}
		if err := tx.Commit(); err != nil {
			return fmt.Errorf("failed to commit system role %s: %w", def.Name, err)
		}
	}

	return nil
}

// Initialize runs migrations and seeds the catalog and system roles
func Initialize(ctx context.Context, db *sql.DB) error {
	if err := RunMigrations(ctx, db); err != nil {
		return err
	}
	if err := SeedCatalog(ctx, db); err != nil {
		return err
	}
	return SeedSystemRoles(ctx, db)
}
