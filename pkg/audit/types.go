package audit

import (
	"encoding/json"
	"time"
)

// EventType represents the category of audit event
type EventType string

const (
	// Authentication events
	EventTypeAuthSignup      EventType = "auth.signup"
	EventTypeAuthLogin       EventType = "auth.login"
	EventTypeAuthLoginFailed EventType = "auth.login_failed"
	EventTypeAuthLogout      EventType = "auth.logout"

	// Authorization events
	EventTypeAuthzAccessDenied EventType = "authz.access_denied"

	// Configuration events
	EventTypeConfigCreate EventType = "config.create"

	// Data mutation events
	EventTypeDataCreate        EventType = "data.create"
	EventTypeDataLeadConvert   EventType = "data.lead_convert"
	EventTypeDataProfileUpdate EventType = "data.profile_update"
)

// EventStatus represents the outcome of an event
type EventStatus string

const (
	EventStatusSuccess EventStatus = "success"
	EventStatusFailure EventStatus = "failure"
	EventStatusDenied  EventStatus = "denied"
)

// AuditEvent represents a single audit log entry
type AuditEvent struct {
	Timestamp time.Time   `json:"timestamp"`
	EventType EventType   `json:"event_type"`
	Status    EventStatus `json:"status"`

	// Actor
	UserID string `json:"user_id,omitempty"`
	Role   string `json:"role,omitempty"`

	// Resource
	ResourceType string `json:"resource_type,omitempty"`
	ResourceID   string `json:"resource_id,omitempty"`

	// Request context
	RequestID string `json:"request_id,omitempty"`
	Method    string `json:"method,omitempty"`
	Path      string `json:"path,omitempty"`
	IPAddress string `json:"ip_address,omitempty"`

	Message      string                 `json:"message,omitempty"`
	ErrorMessage string                 `json:"error_message,omitempty"`
	Metadata     map[string]interface{} `json:"metadata,omitempty"`
}

// ToJSON converts the audit event to JSON
func (e *AuditEvent) ToJSON() ([]byte, error) {
	return json.Marshal(e)
}
