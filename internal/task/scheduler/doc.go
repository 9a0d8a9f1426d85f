// Package scheduler triggers named jobs on cron or fixed-interval schedules.
//
// Jobs never overlap: a trigger that fires while the previous run of the same
// job is still in flight is skipped. Stop waits for running jobs.
package scheduler
