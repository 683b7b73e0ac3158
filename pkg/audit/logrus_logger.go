package audit

import (
	"context"

	"github.com/sirupsen/logrus"
)

// LogrusLogger writes audit events as structured log entries.
type LogrusLogger struct {
	logger logrus.FieldLogger
}

// NewLogrusLogger creates a logger that writes through logger.
func NewLogrusLogger(logger logrus.FieldLogger) *LogrusLogger {
	return &LogrusLogger{logger: logger}
}

// Log writes event at info level, or warn level when it was not a success.
func (l *LogrusLogger) Log(ctx context.Context, event *AuditEvent) error {
	fields := logrus.Fields{
		"audit":      true,
		"event_type": event.EventType,
		"status":     event.Status,
	}
	for k, v := range map[string]string{
		"user_id":       event.UserID,
		"role":          event.Role,
		"resource_type": event.ResourceType,
		"resource_id":   event.ResourceID,
		"request_id":    event.RequestID,
		"method":        event.Method,
		"path":          event.Path,
		"ip_address":    event.IPAddress,
		"error":         event.ErrorMessage,
	} {
		if v != "" {
			fields[k] = v
		}
	}
	for k, v := range event.Metadata {
		fields["meta_"+k] = v
	}

	entry := l.logger.WithFields(fields)
	if event.Status == EventStatusSuccess {
		entry.Info(event.Message)
	} else {
		entry.Warn(event.Message)
	}
	return nil
}

// Close is a no-op.
func (l *LogrusLogger) Close() error {
	return nil
}
