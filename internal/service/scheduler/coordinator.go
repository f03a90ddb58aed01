package scheduler

import (
	"context"

	domain "github.com/oshokin/alarm-cond/internal/domain/alarm"
	"github.com/oshokin/alarm-cond/internal/logger"
	"github.com/oshokin/alarm-cond/internal/repository/alarms"
)

// Run executes the coordinator until ctx is cancelled, then waits for every
// display worker to return. Only one Run may be active per Scheduler.
func (s *Scheduler) Run(ctx context.Context) error {
	ctx = logger.WithName(ctx, "coordinator")

	defer s.workers.Wait()

	logger.Debug(ctx, "Coordinator idle")

	for {
		select {
		case <-ctx.Done():
			logger.Debug(ctx, "Coordinator stopping")

			return nil
		case <-s.store.Wake():
		}

		// The tracker may have moved several times since the signal was sent,
		// so drain it instead of trusting the wakeup.
		for {
			dispatch, ok := s.store.Take()
			if !ok {
				break
			}

			s.handle(ctx, dispatch)
		}

		logger.Debug(ctx, "Coordinator idle")
	}
}

// handle acts on one taken alarm.
func (s *Scheduler) handle(ctx context.Context, dispatch alarms.Dispatch) {
	switch dispatch.Action {
	case alarms.ActionDisplay:
		logger.DebugKV(ctx, "Starting display worker", "alarm_id", dispatch.ID)
		s.spawn(ctx, dispatch.ID, dispatch.Alarm.Generation)
		s.notify(ctx, domain.KindProcessed, dispatch.Alarm)
	case alarms.ActionRemove:
		logger.DebugKV(ctx, "Removed cancelled alarm", "alarm_id", dispatch.ID)
		s.notify(ctx, domain.KindProcessed, dispatch.Alarm)
	default:
		logger.DebugKV(ctx, "Nothing to do for armed alarm", "alarm_id", dispatch.ID)
	}
}

// spawn starts a display worker bound to one generation of id.
func (s *Scheduler) spawn(ctx context.Context, id int64, generation uint64) {
	s.mu.Lock()
	s.active++
	s.mu.Unlock()

	s.workers.Go(func() {
		defer func() {
			s.mu.Lock()
			s.active--
			s.mu.Unlock()
		}()

		s.display(logger.WithKV(logger.WithName(ctx, "display"), "alarm_id", id), id, generation)
	})
}
