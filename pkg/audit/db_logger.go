package audit

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
)

// DBLogger writes audit events to the audit_events table
type DBLogger struct {
	db *sql.DB
}

// NewDBLogger creates a database-backed audit logger
func NewDBLogger(db *sql.DB) (*DBLogger, error) {
	if db == nil {
		return nil, fmt.Errorf("database connection is required")
	}

	logger := &DBLogger{db: db}
	if err := logger.ensureTable(); err != nil {
		return nil, fmt.Errorf("failed to ensure audit_events table: %w", err)
	}

	return logger, nil
}

func (l *DBLogger) ensureTable() error {
	query := `
	CREATE TABLE IF NOT EXISTS audit_events (
		id TEXT PRIMARY KEY,
		timestamp TIMESTAMP NOT NULL,
		event_type VARCHAR(100) NOT NULL,
		status VARCHAR(20) NOT NULL,
		user_id TEXT,
		org_id TEXT,
		resource_type VARCHAR(50),
		resource_id TEXT,
		request_id TEXT,
		message TEXT,
		metadata TEXT
	);

	CREATE INDEX IF NOT EXISTS idx_audit_events_timestamp ON audit_events(timestamp DESC);
	CREATE INDEX IF NOT EXISTS idx_audit_events_event_type ON audit_events(event_type);
	CREATE INDEX IF NOT EXISTS idx_audit_events_org_id ON audit_events(org_id);
	CREATE INDEX IF NOT EXISTS idx_audit_events_user_id ON audit_events(user_id);
	`

	_, err := l.db.Exec(query)
	return err
}

// Log records an audit event
func (l *DBLogger) Log(ctx context.Context, event *Event) error {
	if event.ID == "" {
		event.ID = uuid.NewString()
	}

	var metadataJSON []byte
	if event.Metadata != nil {
		var err error
		metadataJSON, err = json.Marshal(event.Metadata)
		if err != nil {
			return fmt.Errorf("failed to marshal metadata: %w", err)
		}
	}

	_, err := l.db.ExecContext(ctx, `
		INSERT INTO audit_events (id, timestamp, event_type, status, user_id, org_id, resource_type, resource_id, request_id, message, metadata)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
	`,
		event.ID,
		event.Timestamp,
		string(event.EventType),
		string(event.Status),
		nullable(event.UserID),
		nullable(event.OrgID),
		nullable(string(event.ResourceType)),
		nullable(event.ResourceID),
		nullable(event.RequestID),
		nullable(event.Message),
		nullableBytes(metadataJSON),
	)
	if err != nil {
		return fmt.Errorf("failed to insert audit event: %w", err)
	}

	return nil
}

// LogRoleChange records a role definition or assignment mutation
func (l *DBLogger) LogRoleChange(ctx context.Context, eventType EventType, actorID, orgID string, resourceType ResourceType, resourceID string, status EventStatus, message string) error {
	event := newEvent(eventType, status)
	event.UserID = actorID
	event.OrgID = orgID
	event.ResourceType = resourceType
	event.ResourceID = resourceID
	event.Message = message
	return l.Log(ctx, event)
}

// LogAccessDenied records a denied authorization decision
func (l *DBLogger) LogAccessDenied(ctx context.Context, userID, orgID, permission string) error {
	event := newEvent(EventTypeAuthzCheckDenied, EventStatusDenied)
	event.UserID = userID
	event.OrgID = orgID
	event.ResourceType = ResourceTypePermission
	event.ResourceID = permission
	return l.Log(ctx, event)
}

// Close is a no-op; the logger does not own the connection
func (l *DBLogger) Close() error {
	return nil
}

func nullable(s string) interface{} {
	if s == "" {
		return nil
	}
	return s
}

func nullableBytes(b []byte) interface{} {
	if len(b) == 0 {
		return nil
	}
	return string(b)
}
