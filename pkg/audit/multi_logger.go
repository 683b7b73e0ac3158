package audit

import (
	"context"
	"fmt"
	"sync"

	"github.com/solarpro/erp/pkg/async"
)

// MultiLogger logs to multiple audit loggers simultaneously
type MultiLogger struct {
	loggers []Logger
	pool    *async.WorkerPool // nil means synchronous
	wg      sync.WaitGroup
	errChan chan error
}

// NewMultiLogger creates a new multi-logger that writes to multiple destinations
func NewMultiLogger(loggers ...Logger) *MultiLogger {
	return &MultiLogger{
		loggers: loggers,
		errChan: make(chan error, 64),
	}
}

// SetAsync hands delivery to pool so Log returns before destinations finish.
// Passing nil restores synchronous delivery.
func (m *MultiLogger) SetAsync(pool *async.WorkerPool) {
	m.pool = pool
}

// Log logs an audit event to all configured loggers
func (m *MultiLogger) Log(ctx context.Context, event *AuditEvent) error {
	if len(m.loggers) == 0 {
		return nil
	}

	if m.pool != nil {
		m.logAsync(context.WithoutCancel(ctx), event)
		return nil
	}

	var firstErr error
	for _, logger := range m.loggers {
		// A failing destination does not stop the others.
		if err := logger.Log(ctx, event); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

func (m *MultiLogger) logAsync(ctx context.Context, event *AuditEvent) {
	for _, logger := range m.loggers {
		l := logger
		m.wg.Add(1)
		err := m.pool.Submit(func(context.Context) error {
			defer m.wg.Done()
			if err := l.Log(ctx, event); err != nil {
				m.recordError(err)
			}
			return nil
		})
		if err != nil {
			m.wg.Done()
			m.recordError(fmt.Errorf("audit event %s not delivered: %w", event.EventType, err))
		}
	}
}

func (m *MultiLogger) recordError(err error) {
	select {
	case m.errChan <- err:
	default:
	}
}

// Wait waits for all async logging operations to complete
func (m *MultiLogger) Wait() {
	m.wg.Wait()
}

// GetErrors returns any errors that occurred during async logging
func (m *MultiLogger) GetErrors() []error {
	var errs []error
	for {
		select {
		case err := <-m.errChan:
			errs = append(errs, err)
		default:
			return errs
		}
	}
}

// Close waits for pending events and closes all loggers
func (m *MultiLogger) Close() error {
	m.wg.Wait()

	var firstErr error
	for _, logger := range m.loggers {
		if err := logger.Close(); err != nil && firstErr == nil {
			firstErr = fmt.Errorf("failed to close logger: %w", err)
		}
	}
	return firstErr
}
