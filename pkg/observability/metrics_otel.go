package observability

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// OTelMetrics holds OpenTelemetry metric instruments
type OTelMetrics struct {
	settingsOperations metric.Int64Counter
	authzDenials       metric.Int64Counter
	storageOperations  metric.Int64Counter
	storageDuration    metric.Float64Histogram
}

// NewOTelMetrics creates instruments on the global meter provider
func NewOTelMetrics() (*OTelMetrics, error) {
	return NewOTelMetricsWithMeter(otel.Meter("github.com/solarpro/erp"))
}

// NewOTelMetricsWithMeter creates instruments on meter
func NewOTelMetricsWithMeter(meter metric.Meter) (*OTelMetrics, error) {
	m := &OTelMetrics{}
	var err error

	m.settingsOperations, err = meter.Int64Counter(
		"solarpro.settings.operations",
		metric.WithDescription("Settings registry operations"),
		metric.WithUnit("{operation}"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create settings operations counter: %w", err)
	}

	m.authzDenials, err = meter.Int64Counter(
		"solarpro.authz.denials",
		metric.WithDescription("Requests rejected by a role gate"),
		metric.WithUnit("{request}"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create authz denials counter: %w", err)
	}

	m.storageOperations, err = meter.Int64Counter(
		"solarpro.storage.operations",
		metric.WithDescription("Storage operations"),
		metric.WithUnit("{operation}"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create storage operations counter: %w", err)
	}

	m.storageDuration, err = meter.Float64Histogram(
		"solarpro.storage.duration",
		metric.WithDescription("Storage operation duration in seconds"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create storage duration histogram: %w", err)
	}

	return m, nil
}

// RecordSettingsOperation counts one settings registry call
func (m *OTelMetrics) RecordSettingsOperation(ctx context.Context, kind, operation, outcome string) {
	m.settingsOperations.Add(ctx, 1, metric.WithAttributes(
		attribute.String("kind", kind),
		attribute.String("operation", operation),
		attribute.String("outcome", outcome),
	))
}

// RecordDenial counts one rejected request
func (m *OTelMetrics) RecordDenial(ctx context.Context, route, role string) {
	m.authzDenials.Add(ctx, 1, metric.WithAttributes(
		attribute.String("route", route),
		attribute.String("role", role),
	))
}

// ObserveStoreOperation records one storage call
func (m *OTelMetrics) ObserveStoreOperation(operation, collection string, duration time.Duration, err error) {
	ctx := context.Background()
	attrs := []attribute.KeyValue{
		attribute.String("operation", operation),
		attribute.String("collection", collection),
		attribute.Bool("error", err != nil),
	}
	m.storageOperations.Add(ctx, 1, metric.WithAttributes(attrs...))
	m.storageDuration.Record(ctx, duration.Seconds(), metric.WithAttributes(attrs...))
}

// StoreObserver receives one call per storage operation.
type StoreObserver interface {
	ObserveStoreOperation(operation, collection string, duration time.Duration, err error)
}

// StoreObservers fans a storage observation out to every member.
type StoreObservers []StoreObserver

// ObserveStoreOperation forwards to every observer.
func (o StoreObservers) ObserveStoreOperation(operation, collection string, duration time.Duration, err error) {
	for _, obs := range o {
		if obs != nil {
			obs.ObserveStoreOperation(operation, collection, duration, err)
		}
	}
}
