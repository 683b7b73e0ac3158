// Package async runs background work with panic recovery and per-task
// timeouts.
//
// WorkerPool bounds concurrency for a stream of tasks, such as audit events
// fanned out to slow destinations:
//
//	pool := async.NewWorkerPool(ctx, 4, "audit", 5*time.Second, logger)
//	defer pool.Shutdown(5 * time.Second)
//	pool.Submit(func(ctx context.Context) error { return dest.Log(ctx, event) })
//
// Failed and panicking tasks are reported on Errors().
package async
