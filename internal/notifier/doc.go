// Package notifier delivers direct messages asynchronously.
//
// Notifications go through a bounded queue drained by a small worker pool.
// Sends are rate limited (golang.org/x/time/rate), retried with jittered
// exponential backoff, and de-duplicated: an identical notification to the
// same target within the dedup window is dropped. Dedup state can be
// persisted so it survives restarts.
package notifier
