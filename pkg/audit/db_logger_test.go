package audit

import (
	"context"
	"database/sql"
	"testing"

	_ "github.com/mattn/go-sqlite3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupLogger(t *testing.T) (*DBLogger, *sql.DB) {
	t.Helper()

	db, err := sql.Open("sqlite3", ":memory:")
	require.NoError(t, err)
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { db.Close() })

	logger, err := NewDBLogger(db)
	require.NoError(t, err)

	return logger, db
}

func countEvents(t *testing.T, db *sql.DB, eventType EventType) int {
	t.Helper()

	var count int
	err := db.QueryRow(`SELECT COUNT(*) FROM audit_events WHERE event_type = $1`, string(eventType)).Scan(&count)
	require.NoError(t, err)
	return count
}

func TestNewDBLogger_RequiresDB(t *testing.T) {
	_, err := NewDBLogger(nil)
	assert.Error(t, err)
}

func TestDBLogger_Log(t *testing.T) {
	logger, db := setupLogger(t)
	ctx := context.Background()

	event := newEvent(EventTypeRoleCreate, EventStatusSuccess)
	event.UserID = "user-1"
	event.OrgID = "org-1"
	event.ResourceType = ResourceTypeRole
	event.ResourceID = "role-1"
	event.Message = "created role editors"
	event.Metadata = map[string]interface{}{"permissions": 3}

	require.NoError(t, logger.Log(ctx, event))
	assert.NotEmpty(t, event.ID, "Log should assign an ID")

	var userID, metadata string
	err := db.QueryRow(`SELECT user_id, metadata FROM audit_events WHERE id = $1`, event.ID).
		Scan(&userID, &metadata)
	require.NoError(t, err)
	assert.Equal(t, "user-1", userID)
	assert.JSONEq(t, `{"permissions": 3}`, metadata)
}

func TestDBLogger_Log_EmptyFieldsAreNull(t *testing.T) {
	logger, db := setupLogger(t)

	event := newEvent(EventTypeRoleDelete, EventStatusSuccess)
	require.NoError(t, logger.Log(context.Background(), event))

	var userID, orgID, metadata sql.NullString
	err := db.QueryRow(`SELECT user_id, org_id, metadata FROM audit_events WHERE id = $1`, event.ID).
		Scan(&userID, &orgID, &metadata)
	require.NoError(t, err)
	assert.False(t, userID.Valid)
	assert.False(t, orgID.Valid)
	assert.False(t, metadata.Valid)
}

func TestDBLogger_LogRoleChange(t *testing.T) {
	logger, db := setupLogger(t)

	err := logger.LogRoleChange(context.Background(), EventTypeRoleAssign,
		"admin-1", "org-1", ResourceTypeAssignment, "assignment-1",
		EventStatusSuccess, "assigned viewer to user-2")
	require.NoError(t, err)

	assert.Equal(t, 1, countEvents(t, db, EventTypeRoleAssign))
}

func TestDBLogger_LogAccessDenied(t *testing.T) {
	logger, db := setupLogger(t)

	err := logger.LogAccessDenied(context.Background(), "user-1", "org-1", "admin:manage_roles")
	require.NoError(t, err)

	var resourceType, resourceID, status string
	err = db.QueryRow(`SELECT resource_type, resource_id, status FROM audit_events LIMIT 1`).
		Scan(&resourceType, &resourceID, &status)
	require.NoError(t, err)
	assert.Equal(t, string(ResourceTypePermission), resourceType)
	assert.Equal(t, "admin:manage_roles", resourceID)
	assert.Equal(t, string(EventStatusDenied), status)
}

func TestNopLogger(t *testing.T) {
	logger := NopLogger()
	ctx := context.Background()

	assert.NoError(t, logger.Log(ctx, newEvent(EventTypeRoleCreate, EventStatusSuccess)))
	assert.NoError(t, logger.LogAccessDenied(ctx, "u", "o", "p"))
	assert.NoError(t, logger.LogRoleChange(ctx, EventTypeRoleUpdate, "u", "o", ResourceTypeRole, "r", EventStatusSuccess, ""))
	assert.NoError(t, logger.Close())
}
