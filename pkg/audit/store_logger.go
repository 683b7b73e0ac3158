package audit

import (
	"context"
	"fmt"

	"github.com/solarpro/erp/pkg/storage"
)

// AuditCollection is the collection audit events are appended to.
const AuditCollection = "audit_logs"

// StoreLogger persists audit events through a storage.Writer.
type StoreLogger struct {
	writer storage.Writer
}

// NewStoreLogger creates a logger appending to the audit_logs collection.
func NewStoreLogger(writer storage.Writer) (*StoreLogger, error) {
	if writer == nil {
		return nil, fmt.Errorf("storage writer is required")
	}
	return &StoreLogger{writer: writer}, nil
}

// Log inserts one audit_logs row for event.
func (l *StoreLogger) Log(ctx context.Context, event *AuditEvent) error {
	metadata := make(map[string]interface{}, len(event.Metadata)+4)
	for k, v := range event.Metadata {
		metadata[k] = v
	}
	for k, v := range map[string]string{
		"method":     event.Method,
		"path":       event.Path,
		"ip_address": event.IPAddress,
		"error":      event.ErrorMessage,
	} {
		if v != "" {
			metadata[k] = v
		}
	}

	rec := storage.Record{
		"event_type":    string(event.EventType),
		"status":        string(event.Status),
		"user_id":       nullable(event.UserID),
		"role":          nullable(event.Role),
		"resource_type": nullable(event.ResourceType),
		"resource_id":   nullable(event.ResourceID),
		"request_id":    nullable(event.RequestID),
		"message":       event.Message,
		"metadata":      metadata,
	}
	if !event.Timestamp.IsZero() {
		rec["created_at"] = event.Timestamp
	}

	if _, err := l.writer.Insert(ctx, AuditCollection, rec); err != nil {
		return fmt.Errorf("failed to insert audit event: %w", err)
	}
	return nil
}

// Close is a no-op; the writer is owned by the caller.
func (l *StoreLogger) Close() error {
	return nil
}

func nullable(s string) interface{} {
	if s == "" {
		return nil
	}
	return s
}
