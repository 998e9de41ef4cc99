package ledger

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/tawhid126/hotelhub/internal/clock"
	"github.com/tawhid126/hotelhub/internal/domain"
	"go.uber.org/zap"
)

// InventoryStore is the persistence collaborator. Counts are kept per
// (room category, night) cell; CompareAndApply is the only mutation and
// must be atomic: it adds delta iff the stored count still equals
// expected, failing with domain.ErrTxConflict otherwise.
type InventoryStore interface {
	Category(ctx context.Context, id string) (domain.RoomCategory, error)
	NightCount(ctx context.Context, categoryID string, night time.Time) (int, error)
	CompareAndApply(ctx context.Context, categoryID string, night time.Time, expected, delta int) error
}

// Publisher receives one availability event per committed mutation.
type Publisher interface {
	Publish(ev domain.AvailabilityEvent)
}

const (
	defaultIdempotencyTTL  = 10 * time.Minute
	defaultConflictRetries = 5
	defaultSnapshotNights  = 30
)

// Ledger is the single owner of reservation counts. Mutations of one
// (category, night) cell are linearized by an optimistic
// compare-and-apply loop against the store; disjoint cells never wait on
// one another. Successful results are remembered per request id for a
// bounded retention window so client retries cannot double-apply.
type Ledger struct {
	store     InventoryStore
	publisher Publisher
	clock     clock.Clock
	logger    *zap.Logger

	retention      time.Duration
	retries        int
	snapshotNights int

	group keyedGroup
}

type Option func(*Ledger)

// WithIdempotencyTTL overrides how long applied request ids are retained.
func WithIdempotencyTTL(d time.Duration) Option {
	return func(l *Ledger) {
		if d > 0 {
			l.retention = d
		}
	}
}

// WithConflictRetries overrides the compare-and-apply retry bound per night.
func WithConflictRetries(n int) Option {
	return func(l *Ledger) {
		if n > 0 {
			l.retries = n
		}
	}
}

// WithSnapshotNights overrides how far ahead Snapshot looks.
func WithSnapshotNights(n int) Option {
	return func(l *Ledger) {
		if n > 0 {
			l.snapshotNights = n
		}
	}
}

func WithLogger(logger *zap.Logger) Option {
	return func(l *Ledger) {
		if logger != nil {
			l.logger = logger
		}
	}
}

func New(store InventoryStore, publisher Publisher, clk clock.Clock, opts ...Option) *Ledger {
	l := &Ledger{
		store:          store,
		publisher:      publisher,
		clock:          clk,
		logger:         zap.NewNop(),
		retention:      defaultIdempotencyTTL,
		retries:        defaultConflictRetries,
		snapshotNights: defaultSnapshotNights,
	}
	l.group.init()
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Reserve books rooms for every night of the stay, failing with
// ErrNoAvailability if any night would exceed capacity. Exactly one
// availability event is published per successful call; replays with the
// same request id return the original event without touching the store.
func (l *Ledger) Reserve(ctx context.Context, d domain.ReservationDelta) (domain.AvailabilityEvent, error) {
	return l.apply(ctx, d, +1)
}

// Release returns previously reserved rooms for every night of the stay.
func (l *Ledger) Release(ctx context.Context, d domain.ReservationDelta) (domain.AvailabilityEvent, error) {
	return l.apply(ctx, d, -1)
}

func (l *Ledger) apply(ctx context.Context, d domain.ReservationDelta, direction int) (domain.AvailabilityEvent, error) {
	if err := d.Validate(); err != nil {
		return domain.AvailabilityEvent{}, err
	}

	fp := fingerprint(d, direction)

	for {
		ev, err, run := l.group.claim(ctx, d.RequestID, fp, l.clock.Now())
		if run {
			ev, err = l.execute(ctx, d, direction)
			l.group.finish(d.RequestID, fp, ev, err, l.clock.Now().Add(l.retention))
			return ev, err
		}
		if errors.Is(err, errWaitRetry) {
			continue
		}
		return ev, err
	}
}

func (l *Ledger) execute(ctx context.Context, d domain.ReservationDelta, direction int) (domain.AvailabilityEvent, error) {
	cat, err := l.store.Category(ctx, d.RoomCategoryID)
	if err != nil {
		return domain.AvailabilityEvent{}, err
	}
	if cat.Retired && direction > 0 {
		return domain.AvailabilityEvent{}, domain.ErrCategoryRetired
	}

	delta := d.Rooms * direction
	nights := d.Stay.Nights()
	applied := make([]time.Time, 0, len(nights))
	minAvailable := cat.TotalRooms

	for _, night := range nights {
		newCount, err := l.applyNight(ctx, cat, night, delta)
		if err != nil {
			l.rollback(ctx, cat, applied, -delta)
			return domain.AvailabilityEvent{}, err
		}
		applied = append(applied, night)
		if avail := cat.TotalRooms - newCount; avail < minAvailable {
			minAvailable = avail
		}
	}

	ev := domain.AvailabilityEvent{
		RoomCategoryID: cat.ID,
		HotelID:        cat.HotelID,
		AvailableRooms: minAvailable,
		TotalRooms:     cat.TotalRooms,
		Timestamp:      l.clock.Now(),
	}
	// Fire-and-forget: the bus never blocks the mutating caller.
	l.publisher.Publish(ev)
	return ev, nil
}

// applyNight runs the optimistic loop for one cell: read, bounds-check,
// compare-and-apply, retry on a lost race.
func (l *Ledger) applyNight(ctx context.Context, cat domain.RoomCategory, night time.Time, delta int) (int, error) {
	for attempt := 0; attempt < l.retries; attempt++ {
		cur, err := l.store.NightCount(ctx, cat.ID, night)
		if err != nil {
			return 0, err
		}
		next := cur + delta
		if next > cat.TotalRooms {
			return 0, domain.ErrNoAvailability
		}
		if next < 0 {
			return 0, domain.ErrReleaseExceedsHeld
		}
		err = l.store.CompareAndApply(ctx, cat.ID, night, cur, delta)
		if err == nil {
			return next, nil
		}
		if !errors.Is(err, domain.ErrTxConflict) {
			return 0, err
		}
	}
	return 0, domain.ErrTxConflict
}

// rollback undoes nights already applied when a later night of the same
// stay fails, so a partially available range never leaks reservations.
func (l *Ledger) rollback(ctx context.Context, cat domain.RoomCategory, nights []time.Time, delta int) {
	for _, night := range nights {
		if _, err := l.applyNight(ctx, cat, night, delta); err != nil {
			l.logger.Error("inventory rollback failed",
				zap.String("room_category_id", cat.ID),
				zap.Time("night", night),
				zap.Error(err))
		}
	}
}

// Snapshot reads current availability for a category over the snapshot
// horizon: the number of rooms still bookable for every night of it.
func (l *Ledger) Snapshot(ctx context.Context, categoryID string) (domain.AvailabilityUpdate, error) {
	if categoryID == "" {
		return domain.AvailabilityUpdate{}, domain.ErrInvalidID
	}
	cat, err := l.store.Category(ctx, categoryID)
	if err != nil {
		return domain.AvailabilityUpdate{}, err
	}

	start := domain.Night(l.clock.Now())
	minAvailable := cat.TotalRooms
	for i := 0; i < l.snapshotNights; i++ {
		cur, err := l.store.NightCount(ctx, cat.ID, start.AddDate(0, 0, i))
		if err != nil {
			return domain.AvailabilityUpdate{}, err
		}
		if avail := cat.TotalRooms - cur; avail < minAvailable {
			minAvailable = avail
		}
	}

	return domain.AvailabilityUpdate{
		RoomCategoryID: cat.ID,
		HotelID:        cat.HotelID,
		AvailableRooms: minAvailable,
		TotalRooms:     cat.TotalRooms,
		Timestamp:      l.clock.Now(),
	}, nil
}

func fingerprint(d domain.ReservationDelta, direction int) string {
	op := "reserve"
	if direction < 0 {
		op = "release"
	}
	return fmt.Sprintf("%s|%s|%s|%s|%d",
		op,
		d.RoomCategoryID,
		d.Stay.CheckIn.Format(time.DateOnly),
		d.Stay.CheckOut.Format(time.DateOnly),
		d.Rooms,
	)
}
