// Package scheduler fires project syncs on cron schedules.
//
// Each project carries its own cron expression. Triggers fire independently
// and concurrently, each in its own goroutine. A guard from package indexer
// (one lock per project, or one for the process) makes sure at most one run
// per scope is in flight; a trigger that finds the guard held is skipped,
// logged and recorded as a skipped run. It is never queued. A skip does not
// walk the tree or call the search backend; the history row is its only
// write.
//
// Every run performs a provisioning check first. Its failure is logged and
// the sync proceeds anyway. Errors and panics inside a run are logged,
// recorded in the run history and never stop the scheduler.
//
// Run blocks until its context is cancelled, waking hourly (by default) to
// log upcoming fire times and prune old history. Once shutdown begins no new
// trigger is admitted (ErrShuttingDown). In-flight runs get a grace period,
// are then cancelled, and Run returns after they have recorded their outcome.
package scheduler
