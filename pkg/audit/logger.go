package audit

import (
	"context"
	"time"
)

// Logger is the interface for audit logging
type Logger interface {
	// Log records an audit event
	Log(ctx context.Context, event *Event) error

	// LogRoleChange records a role definition or assignment mutation
	LogRoleChange(ctx context.Context, eventType EventType, actorID, orgID string, resourceType ResourceType, resourceID string, status EventStatus, message string) error

	// LogAccessDenied records a denied authorization decision
	LogAccessDenied(ctx context.Context, userID, orgID, permission string) error

	// Close flushes and releases the logger
	Close() error
}

// NopLogger returns a logger that discards everything
func NopLogger() Logger {
	return &nopLogger{}
}

type nopLogger struct{}

func (l *nopLogger) Log(ctx context.Context, event *Event) error { return nil }

func (l *nopLogger) LogRoleChange(ctx context.Context, eventType EventType, actorID, orgID string, resourceType ResourceType, resourceID string, status EventStatus, message string) error {
	return nil
}

func (l *nopLogger) LogAccessDenied(ctx context.Context, userID, orgID, permission string) error {
	return nil
}

func (l *nopLogger) Close() error { return nil }

// newEvent fills the common fields of an event
func newEvent(eventType EventType, status EventStatus) *Event {
	return &Event{
		Timestamp: time.Now(),
		EventType: eventType,
		Status:    status,
	}
}
