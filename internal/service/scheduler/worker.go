package scheduler

import (
	"context"
	"time"

	domain "github.com/oshokin/alarm-cond/internal/domain/alarm"
	"github.com/oshokin/alarm-cond/internal/logger"
)

// display is the body of a display worker. It holds only the alarm id and
// generation and re-resolves the alarm on every iteration. The worker ends
// when the alarm is gone or belongs to a later generation, when its
// cancellation is observed, or when ctx is cancelled.
func (s *Scheduler) display(ctx context.Context, id int64, generation uint64) {
	var (
		shown     = domain.Alarm{ID: id}
		displayed bool
		revision  uint64
	)

	for {
		current, ok := s.store.Find(id)

		switch {
		case !ok:
			logger.Debug(ctx, "Alarm no longer exists")
			s.notify(ctx, domain.KindDisplayExiting, shown)

			return
		case current.Generation != generation:
			logger.DebugKV(ctx, "Alarm id was reused", "generation", generation, "current_generation", current.Generation)
			s.notify(ctx, domain.KindDisplayExiting, shown)

			return
		case current.CancelRequested:
			logger.Debug(ctx, "Alarm cancelled")
			s.notify(ctx, domain.KindDisplayExiting, current)

			return
		}

		if current.Replaced && current.Revision != revision {
			previous := shown
			if !displayed {
				previous = current
			}

			s.sink.Notify(ctx, domain.Notice{
				Kind:     domain.KindDisplayReplaced,
				At:       s.now(),
				Alarm:    current,
				Previous: previous,
			})
		}

		revision = current.Revision
		shown = current
		displayed = true

		s.notify(ctx, domain.KindDisplayed, current)

		if !sleep(ctx, current.Period) {
			logger.Debug(ctx, "Display worker stopping")

			return
		}
	}
}

// sleep waits for d and reports false if ctx ended first.
func sleep(ctx context.Context, d time.Duration) bool {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}
