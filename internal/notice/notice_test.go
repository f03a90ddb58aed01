package notice

import (
	"bytes"
	"context"
	"testing"
	"testing/synctest"
	"time"

	"github.com/stretchr/testify/require"

	domain "github.com/oshokin/alarm-cond/internal/domain/alarm"
)

var testAlarm = domain.Alarm{
	ID:       2,
	Period:   2 * time.Second,
	Message:  "Hello!",
	Deadline: time.Unix(1002, 0),
}

// TestFormat pins the rendered wording of every notice kind.
func TestFormat(t *testing.T) {
	t.Parallel()

	at := time.Unix(1000, 0)
	replaced := testAlarm
	replaced.Replaced = true
	replaced.Message = "Bye!"

	cases := []struct {
		notice domain.Notice
		want   string
	}{
		{
			domain.Notice{Kind: domain.KindReceived, At: at, Alarm: testAlarm},
			"First Alarm Request With Message Number (2) Received at <1000>: <2 Hello!>",
		},
		{
			domain.Notice{Kind: domain.KindReplaceReceived, At: at, Alarm: replaced},
			"Replacement Alarm Request With Message Number (2) Received at <1000>: <2 Bye!>",
		},
		{
			domain.Notice{Kind: domain.KindCancelReceived, At: at, Alarm: testAlarm},
			"Cancel Alarm Request With Message Number (2) Received at <1000>: <2 Hello!>",
		},
		{
			domain.Notice{Kind: domain.KindProcessed, At: at, Alarm: testAlarm},
			"Alarm Request With Message Number (2) Processed at <1000>: <2 Hello!>",
		},
		{
			domain.Notice{Kind: domain.KindDisplayed, At: at, Alarm: testAlarm},
			"Alarm With Message Number (2) Displayed at <1000>: <2 Hello!>",
		},
		{
			domain.Notice{Kind: domain.KindDisplayed, At: at, Alarm: replaced},
			"Replacement Alarm With Message Number (2) Displayed at <1000>: <2 Bye!>",
		},
		{
			domain.Notice{Kind: domain.KindDisplayReplaced, At: at, Alarm: replaced, Previous: testAlarm},
			"Alarm With Message Number (2) Replaced at <1000>: <2 Hello!>",
		},
		{
			domain.Notice{Kind: domain.KindDisplayExiting, At: at, Alarm: testAlarm},
			"Display thread exiting at <1000>: <2 Hello!>",
		},
	}

	for _, tc := range cases {
		t.Run(tc.notice.Kind.String(), func(t *testing.T) {
			t.Parallel()
			require.Equal(t, tc.want, Format(&tc.notice))
		})
	}
}

// TestFormatList checks the list dump layout.
func TestFormatList(t *testing.T) {
	t.Parallel()

	other := domain.Alarm{ID: 3, Period: time.Second, Message: "x", Deadline: time.Unix(1005, 0)}

	require.Equal(t, "[list: ]", FormatList(nil, time.Unix(1000, 0)))
	require.Equal(t,
		`[list: 1002(2)["Hello!"]1005(5)["x"]]`,
		FormatList([]domain.Alarm{testAlarm, other}, time.Unix(1000, 0)),
	)
}

// TestWriter verifies each notice becomes one line.
func TestWriter(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer

	w := NewWriter(&buf)
	w.Notify(context.Background(), domain.Notice{Kind: domain.KindDisplayed, At: time.Unix(1, 0), Alarm: testAlarm})
	w.Notify(context.Background(), domain.Notice{Kind: domain.KindDisplayExiting, At: time.Unix(3, 0), Alarm: testAlarm})

	require.Equal(t,
		"Alarm With Message Number (2) Displayed at <1>: <2 Hello!>\n"+
			"Display thread exiting at <3>: <2 Hello!>\n",
		buf.String(),
	)
}

// TestMulti checks fan-out to every sink.
func TestMulti(t *testing.T) {
	t.Parallel()

	a, b := NewRecorder(), NewRecorder()
	Multi{a, b, Discard}.Notify(context.Background(), domain.Notice{Kind: domain.KindReceived, Alarm: testAlarm})

	require.Len(t, a.Notices(), 1)
	require.Len(t, b.Notices(), 1)
}

// TestRecorder_FilterAndWait exercises filtering and waiting for a condition.
func TestRecorder_FilterAndWait(t *testing.T) {
	t.Parallel()

	synctest.Test(t, func(t *testing.T) {
		r := NewRecorder()
		ctx := context.Background()

		go func() {
			time.Sleep(time.Second)
			r.Notify(ctx, domain.Notice{Kind: domain.KindReceived, Alarm: testAlarm})
			r.Notify(ctx, domain.Notice{Kind: domain.KindProcessed, Alarm: testAlarm})
			r.Notify(ctx, domain.Notice{Kind: domain.KindProcessed, Alarm: domain.Alarm{ID: 9}})
		}()

		err := r.Wait(ctx, func(notices []domain.Notice) bool { return len(notices) == 3 })
		require.NoError(t, err)

		require.Len(t, r.Filter(2), 2)
		require.Len(t, r.Filter(2, domain.KindProcessed), 1)
		require.Empty(t, r.Filter(9, domain.KindReceived))

		timeout, cancel := context.WithTimeout(ctx, time.Second)
		defer cancel()

		err = r.Wait(timeout, func(notices []domain.Notice) bool { return len(notices) > 3 })
		require.ErrorIs(t, err, context.DeadlineExceeded)
	})
}

// TestHub_Broadcast delivers notices to every subscriber and closes on context end.
func TestHub_Broadcast(t *testing.T) {
	t.Parallel()

	synctest.Test(t, func(t *testing.T) {
		h := NewHub(4)

		ctx, cancel := context.WithCancel(context.Background())
		first := h.Subscribe(ctx)
		second := h.Subscribe(context.Background())

		require.Equal(t, 2, h.Len())

		n := domain.Notice{Kind: domain.KindDisplayed, Alarm: testAlarm}
		h.Notify(context.Background(), n)

		require.Equal(t, n, <-first.C())
		require.Equal(t, n, <-second.C())

		cancel()
		synctest.Wait()

		_, open := <-first.C()
		require.False(t, open)
		require.Equal(t, 1, h.Len())

		require.NoError(t, second.Close())
		require.NoError(t, second.Close())
		require.Zero(t, h.Len())
	})
}

// TestHub_DropsSlowSubscriber closes a subscriber whose buffer overflows.
func TestHub_DropsSlowSubscriber(t *testing.T) {
	t.Parallel()

	h := NewHub(1)
	sub := h.Subscribe(context.Background())

	n := domain.Notice{Kind: domain.KindDisplayed, Alarm: testAlarm}
	h.Notify(context.Background(), n)
	h.Notify(context.Background(), n)

	require.Zero(t, h.Len())

	got, open := <-sub.C()
	require.True(t, open)
	require.Equal(t, n, got)

	_, open = <-sub.C()
	require.False(t, open)
	require.ErrorIs(t, sub.Err(), ErrSlowSubscriber)
}

// TestHub_Close ends live subscriptions and refuses new ones.
func TestHub_Close(t *testing.T) {
	t.Parallel()

	h := NewHub(1)
	live := h.Subscribe(context.Background())

	h.Close()

	_, open := <-live.C()
	require.False(t, open)
	require.ErrorIs(t, live.Err(), ErrHubClosed)

	late := h.Subscribe(context.Background())

	_, open = <-late.C()
	require.False(t, open)
	require.ErrorIs(t, late.Err(), ErrHubClosed)
	require.Zero(t, h.Len())
}
