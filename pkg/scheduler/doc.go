// Package scheduler runs periodic maintenance jobs on cron schedules:
// flushing the audit archive and sampling connection pool statistics.
//
//	sched := scheduler.New(logger, time.Minute)
//	if err := sched.Add("audit-flush", "@every 1m", archive.Flush); err != nil {
//		return err
//	}
//	sched.Start()
//	defer sched.Stop(ctx)
//
// Jobs never overlap with themselves; a run that is still going when the
// next tick arrives causes that tick to be skipped.
package scheduler
