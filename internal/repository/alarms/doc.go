// Package alarms implements the in-memory Alarm Store.
//
// The Store owns every live alarm record in a slice ordered by ascending id.
// Readers (display workers, list dumps) share a sync.RWMutex read lock and
// only ever receive copies; writers (submit, cancel, replace and the
// coordinator's take step) hold the exclusive lock. Callers keep ids, never
// record pointers, so a record unlinked by one goroutine can never be read
// through a stale reference by another.
//
// The Store also owns the nearest-deadline tracker and the coordinator's
// wake signal.
package alarms
