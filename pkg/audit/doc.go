// Package audit records security-relevant events: sign-ups, sign-ins,
// authorization denials and configuration changes.
//
// Destinations implement Logger. LogrusLogger writes structured log entries,
// StoreLogger appends rows to the audit_logs collection, and MultiLogger fans
// an event out to several destinations:
//
//	logger := audit.NewMultiLogger(audit.NewLogrusLogger(log), storeLogger)
//	router.Use(audit.Middleware(logger))
//
// Handlers reach the logger through FromContext, which falls back to a no-op
// logger when none was installed.
package audit
