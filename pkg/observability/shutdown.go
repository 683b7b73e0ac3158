package observability

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
)

// ShutdownFunc is a function to call during shutdown
type ShutdownFunc func(context.Context) error

// Lifecycle runs HTTP servers until the context is cancelled or one of them
// fails, then shuts everything down within a timeout.
type Lifecycle struct {
	logger          logrus.FieldLogger
	shutdownTimeout time.Duration

	mu            sync.Mutex
	servers       map[string]*http.Server
	order         []string
	workers       []worker
	shutdownFuncs []ShutdownFunc
}

// NewLifecycle creates a lifecycle with the given shutdown timeout (30s when zero).
func NewLifecycle(logger logrus.FieldLogger, timeout time.Duration) *Lifecycle {
	if timeout == 0 {
		timeout = 30 * time.Second
	}
	return &Lifecycle{
		logger:          logger,
		shutdownTimeout: timeout,
		servers:         make(map[string]*http.Server),
	}
}

// AddServer registers a server to run under name.
func (l *Lifecycle) AddServer(name string, srv *http.Server) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.servers[name] = srv
	l.order = append(l.order, name)
}

type worker struct {
	name string
	run  func(context.Context) error
}

// AddWorker runs fn alongside the servers. fn must return once its context
// is cancelled; a non-nil error stops the whole lifecycle.
func (l *Lifecycle) AddWorker(name string, fn func(context.Context) error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.workers = append(l.workers, worker{name: name, run: fn})
}

// RegisterShutdownFunc registers a function to call after the servers stopped
func (l *Lifecycle) RegisterShutdownFunc(fn ShutdownFunc) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.shutdownFuncs = append(l.shutdownFuncs, fn)
}

// Run serves until ctx is done or a server fails. Shutdown functions run in
// registration order once every server has stopped.
func (l *Lifecycle) Run(ctx context.Context) error {
	l.mu.Lock()
	names := append([]string(nil), l.order...)
	workers := append([]worker(nil), l.workers...)
	l.mu.Unlock()

	g, gctx := errgroup.WithContext(ctx)
	for _, w := range workers {
		w := w
		g.Go(func() error {
			defer RecoverPanic(l.logger, "worker "+w.name)
			if err := w.run(gctx); err != nil && !errors.Is(err, context.Canceled) {
				return fmt.Errorf("%s worker: %w", w.name, err)
			}
			return nil
		})
	}
	for _, name := range names {
		name, srv := name, l.servers[name]
		g.Go(func() error {
			defer RecoverPanic(l.logger, "server "+name)
			l.logger.WithFields(logrus.Fields{"server": name, "addr": srv.Addr}).Info("Server listening")
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return fmt.Errorf("%s server: %w", name, err)
			}
			return nil
		})
	}

	g.Go(func() error {
		<-gctx.Done()
		l.logger.Info("Starting graceful shutdown")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), l.shutdownTimeout)
		defer cancel()

		var errs []error
		for _, name := range names {
			if err := l.servers[name].Shutdown(shutdownCtx); err != nil {
				l.logger.WithError(err).WithField("server", name).Error("Server shutdown error")
				errs = append(errs, err)
			}
		}
		return errors.Join(errs...)
	})

	runErr := g.Wait()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), l.shutdownTimeout)
	defer cancel()

	l.mu.Lock()
	funcs := append([]ShutdownFunc(nil), l.shutdownFuncs...)
	l.mu.Unlock()

	var errs []error
	for i, fn := range funcs {
		if err := fn(shutdownCtx); err != nil {
			l.logger.WithError(err).Errorf("Shutdown function %d failed", i)
			errs = append(errs, err)
		}
	}

	if runErr != nil {
		return runErr
	}
	if len(errs) > 0 {
		return fmt.Errorf("shutdown completed with %d errors: %w", len(errs), errors.Join(errs...))
	}

	l.logger.Info("Graceful shutdown complete")
	return nil
}
