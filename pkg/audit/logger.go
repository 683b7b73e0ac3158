package audit

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/solarpro/erp/pkg/contextkeys"
	"github.com/solarpro/erp/pkg/httputil"
)

// Logger is the interface for audit logging
type Logger interface {
	// Log records an audit event
	Log(ctx context.Context, event *AuditEvent) error

	// Close flushes any buffered events
	Close() error
}

// WithLogger adds an audit logger to the context
func WithLogger(ctx context.Context, logger Logger) context.Context {
	return context.WithValue(ctx, contextkeys.AuditLoggerKey, logger)
}

// FromContext retrieves the audit logger from context
func FromContext(ctx context.Context) Logger {
	if logger, ok := ctx.Value(contextkeys.AuditLoggerKey).(Logger); ok {
		return logger
	}
	return NoOp()
}

// NoOp returns a logger that discards every event.
func NoOp() Logger {
	return noOpLogger{}
}

type noOpLogger struct{}

func (noOpLogger) Log(ctx context.Context, event *AuditEvent) error { return nil }

func (noOpLogger) Close() error { return nil }

// NewEvent creates an event with the request id and user id taken from ctx.
func NewEvent(ctx context.Context, eventType EventType, status EventStatus) *AuditEvent {
	return &AuditEvent{
		Timestamp: time.Now().UTC(),
		EventType: eventType,
		Status:    status,
		UserID:    contextkeys.GetUserID(ctx),
		RequestID: contextkeys.GetRequestID(ctx),
		Metadata:  make(map[string]interface{}),
	}
}

// WithRequest copies method, path and client address from r onto the event.
func (e *AuditEvent) WithRequest(r *http.Request) *AuditEvent {
	if r == nil {
		return e
	}
	e.Method = r.Method
	e.Path = r.URL.Path
	e.IPAddress = httputil.ClientIP(r)
	return e
}

// LogSuccess logs a successful event through the context's logger
func LogSuccess(ctx context.Context, eventType EventType, resourceType, resourceID, message string) error {
	event := NewEvent(ctx, eventType, EventStatusSuccess)
	event.ResourceType = resourceType
	event.ResourceID = resourceID
	event.Message = message
	return FromContext(ctx).Log(ctx, event)
}

// LogFailure logs a failed event through the context's logger
func LogFailure(ctx context.Context, eventType EventType, message string, err error) error {
	event := NewEvent(ctx, eventType, EventStatusFailure)
	event.Message = message
	if err != nil {
		event.ErrorMessage = err.Error()
	}
	return FromContext(ctx).Log(ctx, event)
}

// LogDenied logs an access denied event through the context's logger
func LogDenied(ctx context.Context, role, resourceType, reason string) error {
	event := NewEvent(ctx, EventTypeAuthzAccessDenied, EventStatusDenied)
	event.Role = role
	event.ResourceType = resourceType
	event.Message = fmt.Sprintf("Access denied: %s", reason)
	return FromContext(ctx).Log(ctx, event)
}
