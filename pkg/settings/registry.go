package settings

import (
	"context"
	"fmt"

	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/solarpro/erp/pkg/audit"
	"github.com/solarpro/erp/pkg/observability"
	"github.com/solarpro/erp/pkg/rbac"
	"github.com/solarpro/erp/pkg/storage"
)

var tracer = otel.Tracer("github.com/solarpro/erp/pkg/settings")

// Operation outcomes reported to metrics
const (
	outcomeSuccess       = "success"
	outcomeForbidden     = "forbidden"
	outcomeInvalidKind   = "invalid_kind"
	outcomeInvalidConfig = "invalid_config"
	outcomeError         = "error"
)

// reservedFields are assigned by the store and never taken from a request body
var reservedFields = []string{"type", "id", "created_at", "updated_at"}

// Registry is the single list/create surface over every configuration kind.
// Only admins may use it.
type Registry struct {
	store       storage.Store
	logger      logrus.FieldLogger
	metrics     *observability.Metrics
	otelMetrics *observability.OTelMetrics
}

// RegistryOption configures a Registry
type RegistryOption func(*Registry)

// WithMetrics records operations in Prometheus
func WithMetrics(m *observability.Metrics) RegistryOption {
	return func(r *Registry) {
		r.metrics = m
	}
}

// WithOTelMetrics records operations through OpenTelemetry
func WithOTelMetrics(m *observability.OTelMetrics) RegistryOption {
	return func(r *Registry) {
		r.otelMetrics = m
	}
}

// NewRegistry creates a registry over store
func NewRegistry(store storage.Store, logger logrus.FieldLogger, opts ...RegistryOption) *Registry {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	r := &Registry{store: store, logger: logger}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// List returns every entity of kind, newest first
func (r *Registry) List(ctx context.Context, caller rbac.Role, kind string) (records []storage.Record, err error) {
	ctx, span := r.startSpan(ctx, "settings.list", kind, caller)
	defer func() { r.finish(ctx, span, "list", kind, err) }()

	k, collection, err := r.authorize(ctx, caller, kind)
	if err != nil {
		return nil, err
	}

	records, err = r.store.Select(ctx, storage.From(collection).OrderBy("created_at", true))
	if err != nil {
		return nil, &StorageError{Op: "list", Collection: collection, Err: err}
	}
	if records == nil {
		records = []storage.Record{}
	}
	span.SetAttributes(attribute.Int("settings.count", len(records)))

	r.logger.WithFields(logrus.Fields{
		"kind":  k,
		"count": len(records),
	}).Debug("Listed settings")
	return records, nil
}

// Create inserts body as a new entity of kind and returns the stored row.
// Identical bodies create distinct rows.
func (r *Registry) Create(ctx context.Context, caller rbac.Role, kind string, body map[string]any) (created storage.Record, err error) {
	ctx, span := r.startSpan(ctx, "settings.create", kind, caller)
	defer func() { r.finish(ctx, span, "create", kind, err) }()

	k, collection, err := r.authorize(ctx, caller, kind)
	if err != nil {
		return nil, err
	}

	rec, err := buildRecord(k, body)
	if err != nil {
		return nil, err
	}

	created, err = r.store.Insert(ctx, collection, rec)
	if err != nil {
		return nil, &StorageError{Op: "create", Collection: collection, Err: err}
	}

	id := fmt.Sprint(created["id"])
	span.SetAttributes(attribute.String("settings.id", id))
	if auditErr := audit.LogSuccess(ctx, audit.EventTypeConfigCreate, collection, id,
		fmt.Sprintf("Created %s", k)); auditErr != nil {
		r.logger.WithError(auditErr).Warn("Failed to record audit event")
	}

	r.logger.WithFields(logrus.Fields{
		"kind": k,
		"id":   id,
	}).Info("Created setting")
	return created, nil
}

// authorize checks the kind first, then the caller's role. No settings
// collection is read or written before both pass; a denial only reaches the
// audit trail.
func (r *Registry) authorize(ctx context.Context, caller rbac.Role, kind string) (Kind, string, error) {
	k, err := ParseKind(kind)
	if err != nil {
		return "", "", err
	}
	collection, _ := CollectionFor(k)

	if !rbac.IsAdmin(caller) {
		if auditErr := audit.LogDenied(ctx, string(caller), collection, "settings require admin role"); auditErr != nil {
			r.logger.WithError(auditErr).Warn("Failed to record audit event")
		}
		return "", "", &ForbiddenError{Kind: k, Role: caller}
	}
	return k, collection, nil
}

func buildRecord(kind Kind, body map[string]any) (storage.Record, error) {
	rec := make(storage.Record, len(body))
	for key, v := range body {
		rec[key] = v
	}
	for _, key := range reservedFields {
		delete(rec, key)
	}

	if kind.HasConfig() {
		cfg, err := ParseConfig(rec["config"])
		if err != nil {
			return nil, err
		}
		rec["config"] = cfg
	}

	if err := storage.ValidateRecord(rec); err != nil {
		return nil, &InvalidConfigError{Field: "body", Reason: err.Error()}
	}
	return rec, nil
}

func (r *Registry) startSpan(ctx context.Context, name, kind string, caller rbac.Role) (context.Context, trace.Span) {
	return tracer.Start(ctx, name, trace.WithAttributes(
		attribute.String("settings.kind", kind),
		attribute.String("rbac.role", string(caller)),
	))
}

func (r *Registry) finish(ctx context.Context, span trace.Span, op, kind string, err error) {
	outcome := outcomeFor(err)
	if outcome == outcomeInvalidKind {
		kind = "unknown"
	}

	if err != nil {
		span.RecordError(err)
		if outcome == outcomeError {
			span.SetStatus(codes.Error, err.Error())
		}
	}
	span.SetAttributes(attribute.String("settings.outcome", outcome))
	span.End()

	if r.metrics != nil {
		r.metrics.RecordSettingsOperation(kind, op, outcome)
	}
	if r.otelMetrics != nil {
		r.otelMetrics.RecordSettingsOperation(ctx, kind, op, outcome)
	}
}

func outcomeFor(err error) string {
	switch {
	case err == nil:
		return outcomeSuccess
	case IsInvalidKind(err):
		return outcomeInvalidKind
	case IsForbidden(err):
		return outcomeForbidden
	case IsInvalidConfig(err):
		return outcomeInvalidConfig
	default:
		return outcomeError
	}
}
