package async

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

// ErrPoolClosed is returned by Submit after Shutdown
var ErrPoolClosed = errors.New("worker pool shut down")

// Task is a unit of background work
type Task func(ctx context.Context) error

// run calls fn, converting a panic into an error
func run(ctx context.Context, fn Task) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v\n%s", r, debug.Stack())
		}
	}()
	return fn(ctx)
}

// WorkerPool runs submitted tasks on a fixed number of goroutines.
// Task errors are delivered on Errors() and dropped when nobody reads them.
type WorkerPool struct {
	taskName string
	timeout  time.Duration
	logger   logrus.FieldLogger

	mu     sync.RWMutex
	closed bool
	workCh chan Task
	errCh  chan error
	doneCh chan struct{}

	ctx          context.Context
	cancel       context.CancelFunc
	shutdownOnce sync.Once
}

// NewWorkerPool starts workers goroutines. Each task gets its own timeout.
func NewWorkerPool(ctx context.Context, workers int, taskName string, timeout time.Duration, logger logrus.FieldLogger) *WorkerPool {
	if workers < 1 {
		workers = 1
	}
	ctx, cancel := context.WithCancel(ctx)

	pool := &WorkerPool{
		taskName: taskName,
		timeout:  timeout,
		logger:   logger.WithField("pool", taskName),
		workCh:   make(chan Task, workers*16),
		errCh:    make(chan error, workers*16),
		doneCh:   make(chan struct{}),
		ctx:      ctx,
		cancel:   cancel,
	}

	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			pool.worker()
		}()
	}
	go func() {
		wg.Wait()
		close(pool.doneCh)
	}()

	return pool
}

// Submit queues fn, blocking while the queue is full
func (p *WorkerPool) Submit(fn Task) error {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.closed {
		return ErrPoolClosed
	}

	select {
	case p.workCh <- fn:
		return nil
	case <-p.ctx.Done():
		return ErrPoolClosed
	}
}

// Shutdown stops accepting tasks and waits up to timeout for queued ones
func (p *WorkerPool) Shutdown(timeout time.Duration) error {
	var err error
	p.shutdownOnce.Do(func() {
		p.mu.Lock()
		p.closed = true
		close(p.workCh)
		p.mu.Unlock()

		select {
		case <-p.doneCh:
		case <-time.After(timeout):
			err = fmt.Errorf("worker pool %s shutdown timed out after %v", p.taskName, timeout)
		}
		p.cancel()
	})
	return err
}

// Errors returns the channel task failures are reported on
func (p *WorkerPool) Errors() <-chan error {
	return p.errCh
}

func (p *WorkerPool) worker() {
	for fn := range p.workCh {
		ctx, cancel := context.WithTimeout(p.ctx, p.timeout)
		err := run(ctx, fn)
		cancel()
		if err == nil {
			continue
		}
		select {
		case p.errCh <- err:
		default:
			p.logger.WithError(err).Warn("Error channel full, dropping task error")
		}
	}
}
