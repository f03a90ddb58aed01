package alarms

import (
	"fmt"
	"slices"
	"sync"
	"time"

	domain "github.com/oshokin/alarm-cond/internal/domain/alarm"
)

// Action tells the coordinator what to do with a taken alarm.
type Action int

const (
	// ActionNone means the armed id no longer needs handling.
	ActionNone Action = iota
	// ActionDisplay means a display worker must be started for the alarm.
	ActionDisplay
	// ActionRemove means the alarm was cancelled and has been unlinked.
	ActionRemove
)

// Dispatch is the outcome of one coordinator take step.
type Dispatch struct {
	// Alarm is a copy of the resolved alarm; zero when it could not be resolved.
	Alarm domain.Alarm
	// ID is the armed id that was consumed.
	ID int64
	// Action is what the coordinator has to do next.
	Action Action
}

// record is a store-owned list node.
type record struct {
	// alarm holds the current content of the node.
	alarm domain.Alarm
	// dispatched is set once the coordinator handed the alarm to a worker.
	dispatched bool
}

// pending reports whether the coordinator still has to look at the record.
func (r *record) pending() bool {
	return !r.dispatched || r.alarm.CancelRequested
}

// tracker is the nearest-deadline slot the coordinator is armed on.
type tracker struct {
	// deadline is the deadline of the armed alarm.
	deadline time.Time
	// id is the armed alarm id.
	id int64
	// set is false while the coordinator is idle.
	set bool
}

// Store is the synchronized container of all live alarms.
type Store struct {
	// now returns the current time; replaced in tests.
	now func() time.Time
	// wake carries at most one pending signal for the coordinator.
	wake chan struct{}
	// records is sorted by ascending alarm id and unique by id.
	records []*record
	// armed tracks the alarm the coordinator should handle next.
	armed tracker
	// generation is the last generation handed to an inserted alarm.
	generation uint64
	// mu is the readers-writer admission gate for records and armed.
	mu sync.RWMutex
}

// Option configures a Store.
type Option func(*Store)

// WithClock overrides the time source used to compute deadlines.
func WithClock(now func() time.Time) Option {
	return func(s *Store) {
		if now != nil {
			s.now = now
		}
	}
}

// New creates an empty store.
func New(opts ...Option) *Store {
	s := &Store{
		now:  time.Now,
		wake: make(chan struct{}, 1),
	}

	for _, opt := range opts {
		opt(s)
	}

	return s
}

// Wake returns the channel signalled whenever the armed deadline changes.
// A receive does not imply there is work: the receiver must re-check via Take.
func (s *Store) Wake() <-chan struct{} {
	return s.wake
}

// Submit inserts a new alarm or, when the id is already present, replaces the
// period, message and deadline of the existing one. It returns a copy of the
// committed alarm and whether the submit was handled as a replace.
func (s *Store) Submit(a domain.Alarm) (domain.Alarm, bool, error) {
	if err := a.Validate(); err != nil {
		return domain.Alarm{}, false, fmt.Errorf("submit alarm: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()

	idx, found := s.search(a.ID)
	if found {
		r := s.records[idx]
		r.alarm.Period = a.Period
		r.alarm.Message = a.Message
		r.alarm.Deadline = now.Add(a.Period)
		r.alarm.Replaced = true
		r.alarm.Revision++

		s.armLocked(r.alarm.ID, r.alarm.Deadline)

		return r.alarm, true, nil
	}

	s.generation++

	r := &record{
		alarm: domain.New(a.ID, a.Period, a.Message, now),
	}
	r.alarm.Generation = s.generation
	s.records = slices.Insert(s.records, idx, r)

	s.armLocked(r.alarm.ID, r.alarm.Deadline)

	return r.alarm, false, nil
}

// MarkCancel flags the alarm for removal and wakes the coordinator for it.
func (s *Store) MarkCancel(id int64) (domain.Alarm, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	r := s.lookup(id)
	if r == nil {
		return domain.Alarm{}, fmt.Errorf("cancel alarm %d: %w", id, domain.ErrNotFound)
	}

	if r.alarm.CancelRequested {
		return r.alarm, fmt.Errorf("cancel alarm %d: %w", id, domain.ErrAlreadyCancelling)
	}

	r.alarm.CancelRequested = true

	s.armed = tracker{id: id, deadline: r.alarm.Deadline, set: true}
	s.signal()

	return r.alarm, nil
}

// Find returns a copy of the alarm with the given id.
func (s *Store) Find(id int64) (domain.Alarm, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	r := s.lookup(id)
	if r == nil {
		return domain.Alarm{}, false
	}

	return r.alarm, true
}

// Snapshot copies every alarm out in ascending id order. The read lock is held
// only for the copy.
func (s *Store) Snapshot() []domain.Alarm {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]domain.Alarm, len(s.records))
	for i, r := range s.records {
		result[i] = r.alarm
	}

	return result
}

// Len returns the number of live alarms.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return len(s.records)
}

// Armed returns the alarm id and deadline the coordinator is armed on.
func (s *Store) Armed() (int64, time.Time, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.armed.id, s.armed.deadline, s.armed.set
}

// Take consumes the armed id under exclusive access and resolves it. A
// cancelled alarm is unlinked, a new alarm is marked dispatched. Before
// returning, the tracker is re-armed on the pending alarm with the earliest
// deadline, so the coordinator can keep calling Take until it reports false.
func (s *Store) Take() (Dispatch, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.armed.set {
		return Dispatch{}, false
	}

	id := s.armed.id
	s.armed = tracker{}

	defer s.rearmLocked()

	r := s.lookup(id)
	switch {
	case r == nil:
		return Dispatch{ID: id, Action: ActionNone}, true
	case r.alarm.CancelRequested:
		s.remove(r)

		return Dispatch{ID: id, Action: ActionRemove, Alarm: r.alarm}, true
	case r.dispatched:
		return Dispatch{ID: id, Action: ActionNone, Alarm: r.alarm}, true
	default:
		r.dispatched = true

		return Dispatch{ID: id, Action: ActionDisplay, Alarm: r.alarm}, true
	}
}

// remove unlinks the node with the same identity as r. It is a no-op when the
// node is no longer linked. Callers must hold the write lock.
func (s *Store) remove(r *record) bool {
	idx := slices.Index(s.records, r)
	if idx < 0 {
		return false
	}

	s.records = slices.Delete(s.records, idx, idx+1)

	return true
}

// search returns the position of id, or where it would be inserted.
func (s *Store) search(id int64) (int, bool) {
	return slices.BinarySearchFunc(s.records, id, func(r *record, target int64) int {
		switch {
		case r.alarm.ID < target:
			return -1
		case r.alarm.ID > target:
			return 1
		default:
			return 0
		}
	})
}

// lookup returns the node for id or nil. Callers must hold either lock.
func (s *Store) lookup(id int64) *record {
	idx, found := s.search(id)
	if !found {
		return nil
	}

	return s.records[idx]
}

// armLocked points the tracker at id when nothing is armed or the deadline is
// earlier than the armed one, signalling the coordinator once.
func (s *Store) armLocked(id int64, deadline time.Time) {
	if s.armed.set && !deadline.Before(s.armed.deadline) {
		return
	}

	s.armed = tracker{id: id, deadline: deadline, set: true}
	s.signal()
}

// rearmLocked arms the tracker on the pending record with the earliest
// deadline, or leaves it idle when nothing is pending.
func (s *Store) rearmLocked() {
	if s.armed.set {
		return
	}

	var next *record

	for _, r := range s.records {
		if !r.pending() {
			continue
		}

		if next == nil || r.alarm.Deadline.Before(next.alarm.Deadline) {
			next = r
		}
	}

	if next != nil {
		s.armed = tracker{id: next.alarm.ID, deadline: next.alarm.Deadline, set: true}
	}
}

// signal performs a non-blocking send on the wake channel.
func (s *Store) signal() {
	select {
	case s.wake <- struct{}{}:
	default:
	}
}
