package subscribe

import (
	"context"
	"time"

	"github.com/tawhid126/hotelhub/internal/bus"
	"github.com/tawhid126/hotelhub/internal/domain"
	"go.uber.org/zap"
)

// Snapshotter reads current availability from the ledger so a fresh
// attachment has data before its first event arrives.
type Snapshotter interface {
	Snapshot(ctx context.Context, categoryID string) (domain.AvailabilityUpdate, error)
}

// CategoryLister resolves a hotel filter to its room categories.
type CategoryLister interface {
	ListCategories(ctx context.Context, hotelID string) ([]domain.RoomCategory, error)
}

const defaultStreamBuffer = 8

// Service turns bus subscriptions into per-client live availability
// streams. Each attachment is independent: its own bus registration, its
// own buffer, its own cancellation.
type Service struct {
	bus        *bus.Bus
	ledger     Snapshotter
	categories CategoryLister
	logger     *zap.Logger
	buffer     int
}

type Option func(*Service)

// WithStreamBuffer overrides the per-client outgoing buffer size.
func WithStreamBuffer(n int) Option {
	return func(s *Service) {
		if n > 0 {
			s.buffer = n
		}
	}
}

func New(b *bus.Bus, ledger Snapshotter, categories CategoryLister, logger *zap.Logger, opts ...Option) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Service{
		bus:        b,
		ledger:     ledger,
		categories: categories,
		logger:     logger,
		buffer:     defaultStreamBuffer,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Attach registers a live view for the filter. The returned channel first
// carries a ledger snapshot per matched category, then bus events as they
// arrive. It closes when ctx ends or the bus shuts down; detaching
// releases the bus subscription in the same step. Duplicate or
// out-of-order deliveries are discarded by per-category timestamp.
func (s *Service) Attach(ctx context.Context, f bus.Filter) (<-chan domain.AvailabilityUpdate, error) {
	snapshots, err := s.initialSnapshots(ctx, f)
	if err != nil {
		return nil, err
	}

	sub := s.bus.Subscribe(f)
	out := make(chan domain.AvailabilityUpdate, s.buffer)

	go func() {
		defer close(out)
		defer s.bus.Unsubscribe(sub)

		lastSeen := make(map[string]time.Time, len(snapshots))
		for _, snap := range snapshots {
			lastSeen[snap.RoomCategoryID] = snap.Timestamp
			if !s.deliver(ctx, out, snap) {
				return
			}
		}

		for {
			select {
			case <-ctx.Done():
				return
			case ev, ok := <-sub.Events():
				if !ok {
					return
				}
				if last, seen := lastSeen[ev.RoomCategoryID]; seen && !ev.Timestamp.After(last) {
					continue
				}
				lastSeen[ev.RoomCategoryID] = ev.Timestamp
				if !s.deliver(ctx, out, ev.Update()) {
					return
				}
			}
		}
	}()

	return out, nil
}

func (s *Service) initialSnapshots(ctx context.Context, f bus.Filter) ([]domain.AvailabilityUpdate, error) {
	switch {
	case f.RoomCategoryID != "":
		snap, err := s.ledger.Snapshot(ctx, f.RoomCategoryID)
		if err != nil {
			return nil, err
		}
		return []domain.AvailabilityUpdate{snap}, nil
	case f.HotelID != "":
		cats, err := s.categories.ListCategories(ctx, f.HotelID)
		if err != nil {
			return nil, err
		}
		snaps := make([]domain.AvailabilityUpdate, 0, len(cats))
		for _, cat := range cats {
			snap, err := s.ledger.Snapshot(ctx, cat.ID)
			if err != nil {
				return nil, err
			}
			snaps = append(snaps, snap)
		}
		return snaps, nil
	default:
		// Unfiltered attach starts empty; events carry all state needed.
		return nil, nil
	}
}

// deliver pushes one update without ever parking this client's goroutine
// on a full buffer: the oldest pending update gives way. Only this
// goroutine sends on out, so evicting one element guarantees room.
func (s *Service) deliver(ctx context.Context, out chan domain.AvailabilityUpdate, upd domain.AvailabilityUpdate) bool {
	select {
	case <-ctx.Done():
		return false
	case out <- upd:
		return true
	default:
	}
	select {
	case <-out:
		s.logger.Debug("dropped stale availability update",
			zap.String("room_category_id", upd.RoomCategoryID))
	default:
	}
	select {
	case out <- upd:
	default:
	}
	return true
}
