package scheduler

import (
	"context"
	"sync"
	"time"

	domain "github.com/oshokin/alarm-cond/internal/domain/alarm"
	"github.com/oshokin/alarm-cond/internal/logger"
	"github.com/oshokin/alarm-cond/internal/notice"
	"github.com/oshokin/alarm-cond/internal/repository/alarms"
)

// Store is the subset of the alarm store the scheduler depends on.
type Store interface {
	Submit(a domain.Alarm) (domain.Alarm, bool, error)
	MarkCancel(id int64) (domain.Alarm, error)
	Find(id int64) (domain.Alarm, bool)
	Snapshot() []domain.Alarm
	Take() (alarms.Dispatch, bool)
	Wake() <-chan struct{}
}

// Scheduler coordinates alarm intake, the coordinator loop and display workers.
type Scheduler struct {
	// store owns every live alarm.
	store Store
	// sink receives every notice.
	sink notice.Sink
	// now returns the time stamped on notices.
	now func() time.Time
	// workers tracks running display workers.
	workers sync.WaitGroup
	// active counts running display workers.
	active int
	// mu protects active.
	mu sync.Mutex
}

// Option configures a Scheduler.
type Option func(*Scheduler)

// WithClock overrides the time source used for notice timestamps.
func WithClock(now func() time.Time) Option {
	return func(s *Scheduler) {
		if now != nil {
			s.now = now
		}
	}
}

// New creates a scheduler over store, reporting to sink.
func New(store Store, sink notice.Sink, opts ...Option) *Scheduler {
	if sink == nil {
		sink = notice.Discard
	}

	s := &Scheduler{
		store: store,
		sink:  sink,
		now:   time.Now,
	}

	for _, opt := range opts {
		opt(s)
	}

	return s
}

// Submit inserts the alarm, or replaces the existing alarm with the same id.
// The returned flag reports whether the submit was handled as a replace.
func (s *Scheduler) Submit(ctx context.Context, id int64, period time.Duration, message string) (domain.Alarm, bool, error) {
	committed, replaced, err := s.store.Submit(domain.Alarm{
		ID:      id,
		Period:  period,
		Message: message,
	})
	if err != nil {
		return domain.Alarm{}, false, err
	}

	kind := domain.KindReceived
	if replaced {
		kind = domain.KindReplaceReceived
	}

	s.notify(ctx, kind, committed)

	return committed, replaced, nil
}

// Cancel requests cancellation of the alarm. It fails with domain.ErrNotFound
// or domain.ErrAlreadyCancelling; neither is fatal.
func (s *Scheduler) Cancel(ctx context.Context, id int64) (domain.Alarm, error) {
	cancelled, err := s.store.MarkCancel(id)
	if err != nil {
		logger.DebugKV(ctx, "Cancel rejected", "alarm_id", id, "error", err)

		return cancelled, err
	}

	s.notify(ctx, domain.KindCancelReceived, cancelled)

	return cancelled, nil
}

// List returns every live alarm in ascending id order.
func (s *Scheduler) List(_ context.Context) []domain.Alarm {
	return s.store.Snapshot()
}

// ActiveWorkers returns the number of running display workers.
func (s *Scheduler) ActiveWorkers() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.active
}

// notify stamps and emits a notice.
func (s *Scheduler) notify(ctx context.Context, kind domain.NoticeKind, a domain.Alarm) {
	s.sink.Notify(ctx, domain.Notice{
		Kind:  kind,
		At:    s.now(),
		Alarm: a,
	})
}
