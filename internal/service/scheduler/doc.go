// Package scheduler runs the alarm coordinator and its display workers.
//
// Scheduler is the single entry point used by every front-end: Submit and
// Cancel mutate the store under its exclusive lock, List copies a snapshot
// under the shared lock, and Run executes the coordinator until its context
// is cancelled. The coordinator sleeps on the store's wake channel and, on
// every wakeup, drains the armed tracker: new alarms get a display worker,
// cancelled alarms are unlinked. A display worker keeps only the alarm id and
// re-resolves it through the store on every period, which is how replacements
// and cancellations reach it.
package scheduler
