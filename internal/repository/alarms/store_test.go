package alarms

import (
	"errors"
	"fmt"
	"math/rand/v2"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	domain "github.com/oshokin/alarm-cond/internal/domain/alarm"
)

// fixedClock returns a controllable time source.
func fixedClock(start time.Time) (func() time.Time, func(time.Duration)) {
	var (
		mu  sync.Mutex
		now = start
	)

	get := func() time.Time {
		mu.Lock()
		defer mu.Unlock()

		return now
	}

	advance := func(d time.Duration) {
		mu.Lock()
		defer mu.Unlock()

		now = now.Add(d)
	}

	return get, advance
}

func newAlarm(id, seconds int64, message string) domain.Alarm {
	return domain.Alarm{
		ID:      id,
		Period:  time.Duration(seconds) * time.Second,
		Message: message,
	}
}

func ids(alarms []domain.Alarm) []int64 {
	result := make([]int64, 0, len(alarms))
	for _, a := range alarms {
		result = append(result, a.ID)
	}

	return result
}

// drainWake reports whether a wake signal was pending and consumes it.
func drainWake(s *Store) bool {
	select {
	case <-s.Wake():
		return true
	default:
		return false
	}
}

// TestStore_SubmitOrdersByID covers the ascending-id ordering regardless of arrival order.
func TestStore_SubmitOrdersByID(t *testing.T) {
	t.Parallel()

	s := New()

	for _, id := range []int64{3, 1, 2} {
		_, replaced, err := s.Submit(newAlarm(id, 10-id, "m"+strconv.FormatInt(id, 10)))
		require.NoError(t, err)
		require.False(t, replaced)
	}

	require.Equal(t, []int64{1, 2, 3}, ids(s.Snapshot()))
	require.Equal(t, 3, s.Len())
}

// TestStore_SubmitReplace checks that a duplicate id updates in place without growing the list.
func TestStore_SubmitReplace(t *testing.T) {
	t.Parallel()

	now, advance := fixedClock(time.Unix(1000, 0))
	s := New(WithClock(now))

	first, replaced, err := s.Submit(newAlarm(5, 3, "A"))
	require.NoError(t, err)
	require.False(t, replaced)
	require.Equal(t, time.Unix(1003, 0), first.Deadline)

	_, _, err = s.Submit(newAlarm(9, 3, "other"))
	require.NoError(t, err)

	advance(time.Second)

	second, replaced, err := s.Submit(newAlarm(5, 4, "B"))
	require.NoError(t, err)
	require.True(t, replaced)
	require.Equal(t, 2, s.Len())

	require.True(t, second.Replaced)
	require.Equal(t, uint64(1), second.Revision)
	require.Equal(t, "B", second.Message)
	require.Equal(t, 4*time.Second, second.Period)
	require.Equal(t, time.Unix(1005, 0), second.Deadline)

	other, ok := s.Find(9)
	require.True(t, ok)
	require.False(t, other.Replaced)
	require.Equal(t, "other", other.Message)
}

// TestStore_GenerationPerInsert keeps the generation across replaces and changes it when a removed id returns.
func TestStore_GenerationPerInsert(t *testing.T) {
	t.Parallel()

	s := New()

	first, _, err := s.Submit(newAlarm(4, 5, "old"))
	require.NoError(t, err)
	require.NotZero(t, first.Generation)

	replaced, _, err := s.Submit(newAlarm(4, 5, "replaced"))
	require.NoError(t, err)
	require.Equal(t, first.Generation, replaced.Generation)

	_, err = s.MarkCancel(4)
	require.NoError(t, err)

	d, ok := s.Take()
	require.True(t, ok)
	require.Equal(t, ActionRemove, d.Action)

	again, isReplace, err := s.Submit(newAlarm(4, 5, "new"))
	require.NoError(t, err)
	require.False(t, isReplace)
	require.NotEqual(t, first.Generation, again.Generation)

	found, ok := s.Find(4)
	require.True(t, ok)
	require.Equal(t, again.Generation, found.Generation)

	d, ok = s.Take()
	require.True(t, ok)
	require.Equal(t, ActionDisplay, d.Action)
	require.Equal(t, again.Generation, d.Alarm.Generation)
}

// TestStore_SubmitValidation ensures invalid submits leave the store untouched.
func TestStore_SubmitValidation(t *testing.T) {
	t.Parallel()

	s := New()

	_, _, err := s.Submit(newAlarm(0, 1, "x"))
	require.ErrorIs(t, err, domain.ErrInvalidID)

	_, _, err = s.Submit(newAlarm(1, 0, "x"))
	require.ErrorIs(t, err, domain.ErrInvalidPeriod)

	require.Zero(t, s.Len())
	require.False(t, drainWake(s))
}

// TestStore_MarkCancel covers NotFound, success and AlreadyCancelling.
func TestStore_MarkCancel(t *testing.T) {
	t.Parallel()

	s := New()

	_, _, err := s.Submit(newAlarm(1, 5, "one"))
	require.NoError(t, err)
	_, _, err = s.Submit(newAlarm(2, 5, "two"))
	require.NoError(t, err)

	before := s.Snapshot()

	_, err = s.MarkCancel(7)
	require.ErrorIs(t, err, domain.ErrNotFound)
	require.Equal(t, before, s.Snapshot())

	drainWake(s)

	cancelled, err := s.MarkCancel(2)
	require.NoError(t, err)
	require.True(t, cancelled.CancelRequested)
	require.True(t, drainWake(s))

	id, _, armed := s.Armed()
	require.True(t, armed)
	require.Equal(t, int64(2), id)

	again, err := s.MarkCancel(2)
	require.ErrorIs(t, err, domain.ErrAlreadyCancelling)
	require.True(t, again.CancelRequested)
	require.False(t, drainWake(s))
	require.Equal(t, 2, s.Len())
}

// TestStore_ArmsNearestDeadline checks the tracker only moves to earlier deadlines.
func TestStore_ArmsNearestDeadline(t *testing.T) {
	t.Parallel()

	now, _ := fixedClock(time.Unix(0, 0))
	s := New(WithClock(now))

	_, _, err := s.Submit(newAlarm(1, 10, "late"))
	require.NoError(t, err)
	require.True(t, drainWake(s))

	_, _, err = s.Submit(newAlarm(2, 20, "later"))
	require.NoError(t, err)
	require.False(t, drainWake(s), "a later deadline must not wake the coordinator")

	_, _, err = s.Submit(newAlarm(3, 5, "soon"))
	require.NoError(t, err)
	require.True(t, drainWake(s))

	id, deadline, armed := s.Armed()
	require.True(t, armed)
	require.Equal(t, int64(3), id)
	require.Equal(t, time.Unix(5, 0), deadline)
}

// TestStore_WakeIsCoalesced ensures repeated signals never block and collapse into one.
func TestStore_WakeIsCoalesced(t *testing.T) {
	t.Parallel()

	now, advance := fixedClock(time.Unix(100, 0))
	s := New(WithClock(now))

	for id := int64(10); id > 0; id-- {
		advance(-time.Second)

		_, _, err := s.Submit(newAlarm(id, 1, "x"))
		require.NoError(t, err)
	}

	require.True(t, drainWake(s))
	require.False(t, drainWake(s))
}

// TestStore_TakeDrainsPending verifies no submitted alarm is lost between coordinator wakeups.
func TestStore_TakeDrainsPending(t *testing.T) {
	t.Parallel()

	now, _ := fixedClock(time.Unix(0, 0))
	s := New(WithClock(now))

	for _, a := range []domain.Alarm{newAlarm(4, 1, "a"), newAlarm(2, 8, "b"), newAlarm(9, 3, "c")} {
		_, _, err := s.Submit(a)
		require.NoError(t, err)
	}

	var order []int64

	for {
		d, ok := s.Take()
		if !ok {
			break
		}

		require.Equal(t, ActionDisplay, d.Action)
		order = append(order, d.ID)
	}

	// Earliest deadline first once the armed alarm is served.
	require.Equal(t, []int64{4, 9, 2}, order)

	_, _, armed := s.Armed()
	require.False(t, armed)
	require.Equal(t, 3, s.Len())
}

// TestStore_TakeCancel verifies cancelled alarms are unlinked by the take step.
func TestStore_TakeCancel(t *testing.T) {
	t.Parallel()

	s := New()

	_, _, err := s.Submit(newAlarm(1, 2, "x"))
	require.NoError(t, err)

	d, ok := s.Take()
	require.True(t, ok)
	require.Equal(t, ActionDisplay, d.Action)

	_, err = s.MarkCancel(1)
	require.NoError(t, err)

	d, ok = s.Take()
	require.True(t, ok)
	require.Equal(t, ActionRemove, d.Action)
	require.Equal(t, int64(1), d.Alarm.ID)
	require.True(t, d.Alarm.CancelRequested)

	_, found := s.Find(1)
	require.False(t, found)

	_, ok = s.Take()
	require.False(t, ok)
}

// TestStore_TakeDispatchedReplace ensures a replace of a running alarm does not dispatch it twice.
func TestStore_TakeDispatchedReplace(t *testing.T) {
	t.Parallel()

	s := New()

	_, _, err := s.Submit(newAlarm(5, 3, "A"))
	require.NoError(t, err)

	d, ok := s.Take()
	require.True(t, ok)
	require.Equal(t, ActionDisplay, d.Action)

	_, replaced, err := s.Submit(newAlarm(5, 3, "B"))
	require.NoError(t, err)
	require.True(t, replaced)

	d, ok = s.Take()
	require.True(t, ok)
	require.Equal(t, ActionNone, d.Action)
	require.Equal(t, "B", d.Alarm.Message)
}

// TestStore_TakeUnknownID treats an armed id that vanished as a no-op iteration.
func TestStore_TakeUnknownID(t *testing.T) {
	t.Parallel()

	s := New()
	s.armed = tracker{id: 42, set: true}

	d, ok := s.Take()
	require.True(t, ok)
	require.Equal(t, ActionNone, d.Action)
	require.Equal(t, int64(42), d.ID)
}

// TestStore_RemoveByIdentity verifies remove matches node identity and tolerates absent nodes.
func TestStore_RemoveByIdentity(t *testing.T) {
	t.Parallel()

	s := New()

	_, _, err := s.Submit(newAlarm(1, 1, "x"))
	require.NoError(t, err)

	stale := &record{alarm: newAlarm(1, 1, "x")}

	s.mu.Lock()
	require.False(t, s.remove(stale))
	require.True(t, s.remove(s.records[0]))
	s.mu.Unlock()

	require.Zero(t, s.Len())
}

// TestStore_RandomOperationsKeepInvariants runs random operation sequences and checks uniqueness and order.
func TestStore_RandomOperationsKeepInvariants(t *testing.T) {
	t.Parallel()

	rng := rand.New(rand.NewPCG(1, 2))
	s := New()

	for range 2000 {
		id := rng.Int64N(20) + 1

		switch rng.IntN(3) {
		case 0:
			before := s.Len()
			_, existed := s.Find(id)

			_, replaced, err := s.Submit(newAlarm(id, rng.Int64N(5)+1, "m"))
			require.NoError(t, err)
			require.Equal(t, existed, replaced)

			if existed {
				require.Equal(t, before, s.Len())
			} else {
				require.Equal(t, before+1, s.Len())
			}
		case 1:
			_, _ = s.MarkCancel(id) //nolint:errcheck // Outcomes are validated by the invariants below.
		default:
			_, _ = s.Take()
		}

		snapshot := s.Snapshot()
		for i := 1; i < len(snapshot); i++ {
			require.Less(t, snapshot[i-1].ID, snapshot[i].ID)
		}
	}
}

// TestStore_ReplaceIsAtomicForReaders checks concurrent readers never see a half-applied replace.
func TestStore_ReplaceIsAtomicForReaders(t *testing.T) {
	t.Parallel()

	s := New()

	_, _, err := s.Submit(newAlarm(1, 1, "period=1"))
	require.NoError(t, err)

	const readers = 8

	var (
		wg   sync.WaitGroup
		stop = make(chan struct{})
		errs = make(chan error, readers)
	)

	for range readers {
		wg.Go(func() {
			for {
				select {
				case <-stop:
					return
				default:
				}

				a, ok := s.Find(1)
				if !ok {
					errs <- errors.New("alarm vanished")
					return
				}

				if want := fmt.Sprintf("period=%d", a.Seconds()); a.Message != want {
					errs <- fmt.Errorf("torn read: period %d with message %q", a.Seconds(), a.Message)
					return
				}
			}
		})
	}

	for i := range 5000 {
		seconds := int64(i%7) + 1

		_, _, err := s.Submit(newAlarm(1, seconds, fmt.Sprintf("period=%d", seconds)))
		require.NoError(t, err)
	}

	close(stop)
	wg.Wait()
	close(errs)

	for err := range errs {
		require.NoError(t, err)
	}
}
