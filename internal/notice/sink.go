package notice

import (
	"context"
	"fmt"
	"io"
	"sync"

	domain "github.com/oshokin/alarm-cond/internal/domain/alarm"
	"github.com/oshokin/alarm-cond/internal/logger"
)

// Sink consumes notices. Implementations must be safe for concurrent use and
// must not call back into the scheduler.
type Sink interface {
	Notify(ctx context.Context, n domain.Notice)
}

// SinkFunc adapts a function to Sink.
type SinkFunc func(ctx context.Context, n domain.Notice)

// Notify calls f.
func (f SinkFunc) Notify(ctx context.Context, n domain.Notice) {
	f(ctx, n)
}

// Discard drops every notice.
//
//nolint:gochecknoglobals // Stateless sink shared by callers that do not need output.
var Discard Sink = SinkFunc(func(context.Context, domain.Notice) {})

// Multi fans a notice out to every sink in order.
type Multi []Sink

// Notify forwards n to every sink.
func (m Multi) Notify(ctx context.Context, n domain.Notice) {
	for _, s := range m {
		s.Notify(ctx, n)
	}
}

// Writer renders notices as lines on an io.Writer.
type Writer struct {
	// w receives the formatted lines.
	w io.Writer
	// mu keeps lines from different goroutines from interleaving.
	mu sync.Mutex
}

// NewWriter creates a Writer on w.
func NewWriter(w io.Writer) *Writer {
	return &Writer{
		w: w,
	}
}

// Notify writes the formatted notice followed by a newline.
func (w *Writer) Notify(ctx context.Context, n domain.Notice) {
	line := Format(&n)

	w.mu.Lock()
	_, err := fmt.Fprintln(w.w, line)
	w.mu.Unlock()

	if err != nil {
		logger.ErrorKV(ctx, "Failed to write notice", "kind", n.Kind.String(), "alarm_id", n.Alarm.ID, "error", err)
	}
}

// Recorder keeps every notice in memory.
type Recorder struct {
	// notices holds the recorded notices in arrival order.
	notices []domain.Notice
	// changed is closed and replaced whenever a notice is recorded.
	changed chan struct{}
	// mu protects notices and changed.
	mu sync.Mutex
}

// NewRecorder creates an empty Recorder.
func NewRecorder() *Recorder {
	return &Recorder{
		changed: make(chan struct{}),
	}
}

// Notify records n.
func (r *Recorder) Notify(_ context.Context, n domain.Notice) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.notices = append(r.notices, n)
	close(r.changed)
	r.changed = make(chan struct{})
}

// Notices returns a copy of everything recorded so far.
func (r *Recorder) Notices() []domain.Notice {
	r.mu.Lock()
	defer r.mu.Unlock()

	result := make([]domain.Notice, len(r.notices))
	copy(result, r.notices)

	return result
}

// Filter returns the recorded notices for the alarm id with the given kinds.
// With no kinds every notice for the id is returned.
func (r *Recorder) Filter(id int64, kinds ...domain.NoticeKind) []domain.Notice {
	var result []domain.Notice

	for _, n := range r.Notices() {
		if n.Alarm.ID != id {
			continue
		}

		if len(kinds) == 0 {
			result = append(result, n)
			continue
		}

		for _, k := range kinds {
			if n.Kind == k {
				result = append(result, n)
				break
			}
		}
	}

	return result
}

// Wait blocks until cond holds for the recorded notices or ctx is done.
func (r *Recorder) Wait(ctx context.Context, cond func([]domain.Notice) bool) error {
	for {
		r.mu.Lock()
		ok := cond(r.notices)
		changed := r.changed
		r.mu.Unlock()

		if ok {
			return nil
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-changed:
		}
	}
}
