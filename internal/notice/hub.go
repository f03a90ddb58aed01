package notice

import (
	"context"
	"errors"
	"sync"

	domain "github.com/oshokin/alarm-cond/internal/domain/alarm"
	"github.com/oshokin/alarm-cond/internal/logger"
)

// DefaultSubscriptionBuffer is the per-subscriber queue length used when none is configured.
const DefaultSubscriptionBuffer = 64

var (
	// ErrSlowSubscriber is reported by a subscription dropped for falling behind.
	ErrSlowSubscriber = errors.New("subscriber fell behind the notice stream")
	// ErrHubClosed is reported by subscriptions ended by Hub.Close.
	ErrHubClosed = errors.New("notice hub closed")
)

// Hub broadcasts notices to subscribers.
//
// A subscriber that cannot keep up is dropped and its channel closed; the
// holder has to subscribe again.
type Hub struct {
	// subs is the set of live subscriptions.
	subs map[*Subscription]struct{}
	// buffer is the channel capacity of new subscriptions.
	buffer int
	// closed is set by Close; later subscriptions start closed.
	closed bool
	// mu protects subs and closed.
	mu sync.Mutex
}

// NewHub creates a Hub whose subscriptions buffer up to buffer notices.
func NewHub(buffer int) *Hub {
	if buffer <= 0 {
		buffer = DefaultSubscriptionBuffer
	}

	return &Hub{
		subs:   make(map[*Subscription]struct{}),
		buffer: buffer,
	}
}

// Subscribe registers a new subscription. It is closed automatically when ctx is done.
func (h *Hub) Subscribe(ctx context.Context) *Subscription {
	sub := &Subscription{
		hub: h,
		c:   make(chan domain.Notice, h.buffer),
	}

	h.mu.Lock()
	if h.closed {
		sub.err = ErrHubClosed
		close(sub.c)
		h.mu.Unlock()

		return sub
	}

	h.subs[sub] = struct{}{}
	h.mu.Unlock()

	context.AfterFunc(ctx, func() {
		_ = sub.Close()
	})

	return sub
}

// Len returns the number of live subscriptions.
func (h *Hub) Len() int {
	h.mu.Lock()
	defer h.mu.Unlock()

	return len(h.subs)
}

// Notify publishes n to every subscriber without blocking.
func (h *Hub) Notify(ctx context.Context, n domain.Notice) {
	h.mu.Lock()
	defer h.mu.Unlock()

	for sub := range h.subs {
		select {
		case sub.c <- n:
		default:
			logger.WarnKV(ctx, "Dropping slow notice subscriber", "buffer", h.buffer)
			h.dropLocked(sub, ErrSlowSubscriber)
		}
	}
}

// Close ends every subscription with ErrHubClosed and refuses new ones.
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.closed = true

	for sub := range h.subs {
		h.dropLocked(sub, ErrHubClosed)
	}
}

// dropLocked removes sub, records why and closes its channel. Callers must hold mu.
func (h *Hub) dropLocked(sub *Subscription, err error) {
	if _, ok := h.subs[sub]; !ok {
		return
	}

	delete(h.subs, sub)
	sub.err = err
	close(sub.c)
}

// Subscription is one consumer of a Hub.
type Subscription struct {
	// hub is the owning hub.
	hub *Hub
	// c delivers notices; closed when the subscription ends.
	c chan domain.Notice
	// err records why the hub ended the subscription; guarded by hub.mu.
	err error
}

// C returns the notice channel. It is closed when the subscription ends.
func (s *Subscription) C() <-chan domain.Notice {
	return s.c
}

// Close ends the subscription. It is safe to call more than once.
func (s *Subscription) Close() error {
	s.hub.mu.Lock()
	defer s.hub.mu.Unlock()

	s.hub.dropLocked(s, nil)

	return nil
}

// Err reports why the subscription ended: ErrSlowSubscriber, ErrHubClosed,
// or nil when it is still open or was closed by its holder.
func (s *Subscription) Err() error {
	s.hub.mu.Lock()
	defer s.hub.mu.Unlock()

	return s.err
}
