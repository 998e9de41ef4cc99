package bus

import (
	"sync"

	"github.com/tawhid126/hotelhub/internal/domain"
	"go.uber.org/zap"
)

const defaultBufferSize = 8

// Filter selects which availability events a subscriber receives. Empty
// fields match any value.
type Filter struct {
	RoomCategoryID string
	HotelID        string
}

// Matches reports whether an event passes the filter.
func (f Filter) Matches(ev domain.AvailabilityEvent) bool {
	if f.RoomCategoryID != "" && f.RoomCategoryID != ev.RoomCategoryID {
		return false
	}
	if f.HotelID != "" && f.HotelID != ev.HotelID {
		return false
	}
	return true
}

// Subscription is a live registration with the bus. Its channel is closed
// when the subscription is removed or the bus shuts down.
type Subscription struct {
	id     uint64
	filter Filter
	ch     chan domain.AvailabilityEvent
}

// Events is the delivery channel. It carries at most the buffer size of
// recent events; older ones are dropped when the consumer falls behind.
func (s *Subscription) Events() <-chan domain.AvailabilityEvent {
	return s.ch
}

// Bus fans availability events out to live subscribers. It is an owned
// instance: constructed once at startup, passed by handle, and torn down
// with Close. Delivery is best-effort; there is no replay.
type Bus struct {
	logger *zap.Logger
	buffer int

	mu     sync.Mutex
	subs   map[uint64]*Subscription
	nextID uint64
	closed bool
}

type Option func(*Bus)

// WithBufferSize overrides the per-subscriber channel capacity.
func WithBufferSize(n int) Option {
	return func(b *Bus) {
		if n > 0 {
			b.buffer = n
		}
	}
}

func New(logger *zap.Logger, opts ...Option) *Bus {
	if logger == nil {
		logger = zap.NewNop()
	}
	b := &Bus{
		logger: logger,
		buffer: defaultBufferSize,
		subs:   make(map[uint64]*Subscription),
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Subscribe registers a delivery channel for events matching the filter.
// Subscribing to a closed bus yields a subscription whose channel is
// already closed.
func (b *Bus) Subscribe(f Filter) *Subscription {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.nextID++
	sub := &Subscription{
		id:     b.nextID,
		filter: f,
		ch:     make(chan domain.AvailabilityEvent, b.buffer),
	}
	if b.closed {
		close(sub.ch)
		return sub
	}
	b.subs[sub.id] = sub
	return sub
}

// Unsubscribe removes the subscription and closes its channel. Removing a
// subscription twice, or after Close, is a no-op.
func (b *Bus) Unsubscribe(sub *Subscription) {
	if sub == nil {
		return
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	if _, ok := b.subs[sub.id]; !ok {
		return
	}
	delete(b.subs, sub.id)
	close(sub.ch)
}

// Publish delivers the event to every matching subscriber without ever
// blocking on one. When a subscriber's buffer is full the oldest buffered
// event is dropped to make room, so a stalled consumer degrades alone.
// Publishing with no subscribers, or after Close, is a no-op.
func (b *Bus) Publish(ev domain.AvailabilityEvent) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return
	}

	for _, sub := range b.subs {
		if !sub.filter.Matches(ev) {
			continue
		}
		select {
		case sub.ch <- ev:
			continue
		default:
		}
		// Buffer full. Only Publish sends on the channel and it holds the
		// bus lock, so evicting one element guarantees room.
		select {
		case <-sub.ch:
			b.logger.Debug("dropped stale availability event",
				zap.String("room_category_id", ev.RoomCategoryID))
		default:
		}
		select {
		case sub.ch <- ev:
		default:
		}
	}
}

// SubscriberCount reports the number of live subscriptions.
func (b *Bus) SubscriberCount() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.subs)
}

// Close tears the bus down, closing every subscriber channel. Publish and
// Subscribe become no-ops afterwards.
func (b *Bus) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return
	}
	b.closed = true
	for id, sub := range b.subs {
		delete(b.subs, id)
		close(sub.ch)
	}
}
