package ledger

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/tawhid126/hotelhub/internal/clock"
	"github.com/tawhid126/hotelhub/internal/domain"
	"github.com/tawhid126/hotelhub/internal/storage/memory"
)

type fakePublisher struct {
	mu     sync.Mutex
	events []domain.AvailabilityEvent
}

func (p *fakePublisher) Publish(ev domain.AvailabilityEvent) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, ev)
}

func (p *fakePublisher) published() []domain.AvailabilityEvent {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]domain.AvailabilityEvent, len(p.events))
	copy(out, p.events)
	return out
}

// conflictingStore forces a number of CompareAndApply failures before
// delegating, to exercise the retry loop.
type conflictingStore struct {
	*memory.Store
	mu        sync.Mutex
	conflicts int
}

func (s *conflictingStore) CompareAndApply(ctx context.Context, categoryID string, night time.Time, expected, delta int) error {
	s.mu.Lock()
	if s.conflicts > 0 {
		s.conflicts--
		s.mu.Unlock()
		return domain.ErrTxConflict
	}
	s.mu.Unlock()
	return s.Store.CompareAndApply(ctx, categoryID, night, expected, delta)
}

func seedCategory(t *testing.T, store *memory.Store, id string, total int) domain.RoomCategory {
	t.Helper()
	cat := domain.RoomCategory{ID: id, HotelID: "hotel-1", Name: "Deluxe King " + id, TotalRooms: total}
	if err := store.CreateCategory(context.Background(), cat); err != nil {
		t.Fatalf("seed category: %v", err)
	}
	return cat
}

func stay(t *testing.T, checkIn, checkOut string) domain.Stay {
	t.Helper()
	in, err := time.Parse(time.DateOnly, checkIn)
	if err != nil {
		t.Fatalf("parse check-in: %v", err)
	}
	out, err := time.Parse(time.DateOnly, checkOut)
	if err != nil {
		t.Fatalf("parse check-out: %v", err)
	}
	return domain.NewStay(in, out)
}

func TestLedger_Reserve(t *testing.T) {
	t.Parallel()

	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	t.Run("reserves when capacity available", func(t *testing.T) {
		store := memory.NewStore()
		seedCategory(t, store, "cat-1", 10)
		pub := &fakePublisher{}
		l := New(store, pub, clock.NewFixed(now))

		ev, err := l.Reserve(context.Background(), domain.ReservationDelta{
			RequestID:      "req-1",
			RoomCategoryID: "cat-1",
			Stay:           stay(t, "2025-06-10", "2025-06-12"),
			Rooms:          3,
		})
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if ev.AvailableRooms != 7 {
			t.Fatalf("expected 7 available, got %d", ev.AvailableRooms)
		}
		if ev.TotalRooms != 10 {
			t.Fatalf("expected total 10, got %d", ev.TotalRooms)
		}
		if ev.HotelID != "hotel-1" {
			t.Fatalf("expected hotel-1, got %s", ev.HotelID)
		}
		if got := len(pub.published()); got != 1 {
			t.Fatalf("expected 1 published event, got %d", got)
		}
	})

	t.Run("fails when any night is full", func(t *testing.T) {
		store := memory.NewStore()
		seedCategory(t, store, "cat-1", 1)
		pub := &fakePublisher{}
		l := New(store, pub, clock.NewFixed(now))
		ctx := context.Background()

		if _, err := l.Reserve(ctx, domain.ReservationDelta{
			RequestID:      "req-1",
			RoomCategoryID: "cat-1",
			Stay:           stay(t, "2025-06-11", "2025-06-12"),
			Rooms:          1,
		}); err != nil {
			t.Fatalf("seed reserve failed: %v", err)
		}

		_, err := l.Reserve(ctx, domain.ReservationDelta{
			RequestID:      "req-2",
			RoomCategoryID: "cat-1",
			Stay:           stay(t, "2025-06-10", "2025-06-13"),
			Rooms:          1,
		})
		if !errors.Is(err, domain.ErrNoAvailability) {
			t.Fatalf("expected ErrNoAvailability, got %v", err)
		}

		// The night before the full one must have been rolled back.
		count, err := store.NightCount(ctx, "cat-1", stay(t, "2025-06-10", "2025-06-11").CheckIn)
		if err != nil {
			t.Fatalf("night count: %v", err)
		}
		if count != 0 {
			t.Fatalf("expected rollback to 0, got %d", count)
		}
		if got := len(pub.published()); got != 1 {
			t.Fatalf("expected only the seed event, got %d", got)
		}
	})

	t.Run("unknown category", func(t *testing.T) {
		l := New(memory.NewStore(), &fakePublisher{}, clock.NewFixed(now))
		_, err := l.Reserve(context.Background(), domain.ReservationDelta{
			RequestID:      "req-1",
			RoomCategoryID: "cat-missing",
			Stay:           stay(t, "2025-06-10", "2025-06-11"),
			Rooms:          1,
		})
		if !errors.Is(err, domain.ErrCategoryNotFound) {
			t.Fatalf("expected ErrCategoryNotFound, got %v", err)
		}
	})

	t.Run("retired category refuses new reservations", func(t *testing.T) {
		store := memory.NewStore()
		seedCategory(t, store, "cat-1", 5)
		if err := store.RetireCategory(context.Background(), "cat-1"); err != nil {
			t.Fatalf("retire: %v", err)
		}
		l := New(store, &fakePublisher{}, clock.NewFixed(now))

		_, err := l.Reserve(context.Background(), domain.ReservationDelta{
			RequestID:      "req-1",
			RoomCategoryID: "cat-1",
			Stay:           stay(t, "2025-06-10", "2025-06-11"),
			Rooms:          1,
		})
		if !errors.Is(err, domain.ErrCategoryRetired) {
			t.Fatalf("expected ErrCategoryRetired, got %v", err)
		}
	})

	t.Run("validation", func(t *testing.T) {
		l := New(memory.NewStore(), &fakePublisher{}, clock.NewFixed(now))
		ctx := context.Background()

		if _, err := l.Reserve(ctx, domain.ReservationDelta{
			RoomCategoryID: "cat-1",
			Stay:           stay(t, "2025-06-10", "2025-06-11"),
			Rooms:          1,
		}); !errors.Is(err, domain.ErrRequestIDRequired) {
			t.Fatalf("expected ErrRequestIDRequired, got %v", err)
		}
		if _, err := l.Reserve(ctx, domain.ReservationDelta{
			RequestID:      "req-1",
			RoomCategoryID: "cat-1",
			Stay:           stay(t, "2025-06-10", "2025-06-11"),
			Rooms:          0,
		}); !errors.Is(err, domain.ErrInvalidRooms) {
			t.Fatalf("expected ErrInvalidRooms, got %v", err)
		}
		if _, err := l.Reserve(ctx, domain.ReservationDelta{
			RequestID:      "req-1",
			RoomCategoryID: "cat-1",
			Stay:           stay(t, "2025-06-11", "2025-06-11"),
			Rooms:          1,
		}); !errors.Is(err, domain.ErrInvalidStay) {
			t.Fatalf("expected ErrInvalidStay, got %v", err)
		}
	})

	t.Run("retries through transient conflicts", func(t *testing.T) {
		store := &conflictingStore{Store: memory.NewStore(), conflicts: 3}
		seedCategory(t, store.Store, "cat-1", 2)
		l := New(store, &fakePublisher{}, clock.NewFixed(now), WithConflictRetries(5))

		if _, err := l.Reserve(context.Background(), domain.ReservationDelta{
			RequestID:      "req-1",
			RoomCategoryID: "cat-1",
			Stay:           stay(t, "2025-06-10", "2025-06-11"),
			Rooms:          1,
		}); err != nil {
			t.Fatalf("expected success after retries, got %v", err)
		}
	})

	t.Run("surfaces conflict when retries exhaust", func(t *testing.T) {
		store := &conflictingStore{Store: memory.NewStore(), conflicts: 100}
		seedCategory(t, store.Store, "cat-1", 2)
		l := New(store, &fakePublisher{}, clock.NewFixed(now), WithConflictRetries(3))

		_, err := l.Reserve(context.Background(), domain.ReservationDelta{
			RequestID:      "req-1",
			RoomCategoryID: "cat-1",
			Stay:           stay(t, "2025-06-10", "2025-06-11"),
			Rooms:          1,
		})
		if !errors.Is(err, domain.ErrTxConflict) {
			t.Fatalf("expected ErrTxConflict, got %v", err)
		}
	})
}

func TestLedger_Idempotency(t *testing.T) {
	t.Parallel()

	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	t.Run("replay returns original event without re-applying", func(t *testing.T) {
		store := memory.NewStore()
		seedCategory(t, store, "cat-1", 5)
		pub := &fakePublisher{}
		l := New(store, pub, clock.NewFixed(now))
		ctx := context.Background()

		delta := domain.ReservationDelta{
			RequestID:      "req-1",
			RoomCategoryID: "cat-1",
			Stay:           stay(t, "2025-06-10", "2025-06-11"),
			Rooms:          2,
		}

		first, err := l.Reserve(ctx, delta)
		if err != nil {
			t.Fatalf("first reserve: %v", err)
		}
		replay, err := l.Reserve(ctx, delta)
		if err != nil {
			t.Fatalf("replay: %v", err)
		}
		if replay != first {
			t.Fatalf("expected replay to return original event, got %+v vs %+v", replay, first)
		}

		count, err := store.NightCount(ctx, "cat-1", delta.Stay.CheckIn)
		if err != nil {
			t.Fatalf("night count: %v", err)
		}
		if count != 2 {
			t.Fatalf("expected reserved count 2 after replay, got %d", count)
		}
		if got := len(pub.published()); got != 1 {
			t.Fatalf("expected exactly 1 published event, got %d", got)
		}
	})

	t.Run("replay with different payload conflicts", func(t *testing.T) {
		store := memory.NewStore()
		seedCategory(t, store, "cat-1", 5)
		l := New(store, &fakePublisher{}, clock.NewFixed(now))
		ctx := context.Background()

		if _, err := l.Reserve(ctx, domain.ReservationDelta{
			RequestID:      "req-1",
			RoomCategoryID: "cat-1",
			Stay:           stay(t, "2025-06-10", "2025-06-11"),
			Rooms:          2,
		}); err != nil {
			t.Fatalf("first reserve: %v", err)
		}

		_, err := l.Reserve(ctx, domain.ReservationDelta{
			RequestID:      "req-1",
			RoomCategoryID: "cat-1",
			Stay:           stay(t, "2025-06-10", "2025-06-11"),
			Rooms:          3,
		})
		if !errors.Is(err, domain.ErrIdempotencyConflict) {
			t.Fatalf("expected ErrIdempotencyConflict, got %v", err)
		}
	})

	t.Run("records age out after retention", func(t *testing.T) {
		store := memory.NewStore()
		seedCategory(t, store, "cat-1", 5)
		clk := clock.NewManual(now)
		l := New(store, &fakePublisher{}, clk, WithIdempotencyTTL(time.Minute))
		ctx := context.Background()

		delta := domain.ReservationDelta{
			RequestID:      "req-1",
			RoomCategoryID: "cat-1",
			Stay:           stay(t, "2025-06-10", "2025-06-11"),
			Rooms:          1,
		}
		if _, err := l.Reserve(ctx, delta); err != nil {
			t.Fatalf("first reserve: %v", err)
		}

		clk.Advance(3 * time.Minute)

		// After retention the id is forgotten: the same request applies again.
		if _, err := l.Reserve(ctx, delta); err != nil {
			t.Fatalf("reserve after retention: %v", err)
		}
		count, err := store.NightCount(ctx, "cat-1", delta.Stay.CheckIn)
		if err != nil {
			t.Fatalf("night count: %v", err)
		}
		if count != 2 {
			t.Fatalf("expected count 2 after retention expiry, got %d", count)
		}
	})
}

func TestLedger_ReleaseRoundTrip(t *testing.T) {
	t.Parallel()

	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	store := memory.NewStore()
	seedCategory(t, store, "cat-1", 4)
	l := New(store, &fakePublisher{}, clock.NewFixed(now))
	ctx := context.Background()

	s := stay(t, "2025-06-10", "2025-06-13")

	if _, err := l.Reserve(ctx, domain.ReservationDelta{
		RequestID: "req-1", RoomCategoryID: "cat-1", Stay: s, Rooms: 3,
	}); err != nil {
		t.Fatalf("reserve: %v", err)
	}

	ev, err := l.Release(ctx, domain.ReservationDelta{
		RequestID: "req-2", RoomCategoryID: "cat-1", Stay: s, Rooms: 3,
	})
	if err != nil {
		t.Fatalf("release: %v", err)
	}
	if ev.AvailableRooms != 4 {
		t.Fatalf("expected full availability after release, got %d", ev.AvailableRooms)
	}

	for _, night := range s.Nights() {
		count, err := store.NightCount(ctx, "cat-1", night)
		if err != nil {
			t.Fatalf("night count: %v", err)
		}
		if count != 0 {
			t.Fatalf("expected count back to 0 for %v, got %d", night, count)
		}
	}

	t.Run("release below zero refused", func(t *testing.T) {
		_, err := l.Release(ctx, domain.ReservationDelta{
			RequestID: "req-3", RoomCategoryID: "cat-1", Stay: s, Rooms: 1,
		})
		if !errors.Is(err, domain.ErrReleaseExceedsHeld) {
			t.Fatalf("expected ErrReleaseExceedsHeld, got %v", err)
		}
	})
}

func TestLedger_LastRoomRace(t *testing.T) {
	t.Parallel()

	store := memory.NewStore()
	seedCategory(t, store, "cat-1", 1)
	pub := &fakePublisher{}
	l := New(store, pub, clock.NewSystem(), WithConflictRetries(50))
	ctx := context.Background()

	s := stay(t, "2025-06-10", "2025-06-11")

	const callers = 20
	var wg sync.WaitGroup
	errs := make([]error, callers)
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = l.Reserve(ctx, domain.ReservationDelta{
				RequestID:      "req-" + string(rune('a'+i)),
				RoomCategoryID: "cat-1",
				Stay:           s,
				Rooms:          1,
			})
		}(i)
	}
	wg.Wait()

	successes := 0
	for _, err := range errs {
		if err == nil {
			successes++
			continue
		}
		if !errors.Is(err, domain.ErrNoAvailability) && !errors.Is(err, domain.ErrTxConflict) {
			t.Fatalf("unexpected error: %v", err)
		}
	}
	if successes != 1 {
		t.Fatalf("expected exactly 1 winner of the last room, got %d", successes)
	}

	count, err := store.NightCount(ctx, "cat-1", s.CheckIn)
	if err != nil {
		t.Fatalf("night count: %v", err)
	}
	if count != 1 {
		t.Fatalf("expected reserved count 1, got %d", count)
	}
	if got := len(pub.published()); got != 1 {
		t.Fatalf("expected 1 published event, got %d", got)
	}
}

func TestLedger_FullThenReleaseScenario(t *testing.T) {
	t.Parallel()

	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	store := memory.NewStore()
	seedCategory(t, store, "cat-1", 3)
	l := New(store, &fakePublisher{}, clock.NewFixed(now))
	ctx := context.Background()

	s := stay(t, "2025-06-10", "2025-06-11")

	if _, err := l.Reserve(ctx, domain.ReservationDelta{
		RequestID: "req-1", RoomCategoryID: "cat-1", Stay: s, Rooms: 3,
	}); err != nil {
		t.Fatalf("fill reserve: %v", err)
	}

	if _, err := l.Reserve(ctx, domain.ReservationDelta{
		RequestID: "req-2", RoomCategoryID: "cat-1", Stay: s, Rooms: 1,
	}); !errors.Is(err, domain.ErrNoAvailability) {
		t.Fatalf("expected ErrNoAvailability when full, got %v", err)
	}

	if _, err := l.Release(ctx, domain.ReservationDelta{
		RequestID: "req-3", RoomCategoryID: "cat-1", Stay: s, Rooms: 1,
	}); err != nil {
		t.Fatalf("release: %v", err)
	}

	ev, err := l.Reserve(ctx, domain.ReservationDelta{
		RequestID: "req-4", RoomCategoryID: "cat-1", Stay: s, Rooms: 1,
	})
	if err != nil {
		t.Fatalf("reserve after release: %v", err)
	}
	if ev.AvailableRooms != 0 {
		t.Fatalf("expected 0 available after refilling, got %d", ev.AvailableRooms)
	}
}

func TestLedger_Snapshot(t *testing.T) {
	t.Parallel()

	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	store := memory.NewStore()
	seedCategory(t, store, "cat-1", 5)
	l := New(store, &fakePublisher{}, clock.NewFixed(now), WithSnapshotNights(7))
	ctx := context.Background()

	if _, err := l.Reserve(ctx, domain.ReservationDelta{
		RequestID:      "req-1",
		RoomCategoryID: "cat-1",
		Stay:           stay(t, "2025-06-03", "2025-06-05"),
		Rooms:          2,
	}); err != nil {
		t.Fatalf("reserve: %v", err)
	}

	snap, err := l.Snapshot(ctx, "cat-1")
	if err != nil {
		t.Fatalf("snapshot: %v", err)
	}
	if snap.AvailableRooms != 3 {
		t.Fatalf("expected min availability 3 over horizon, got %d", snap.AvailableRooms)
	}
	if snap.TotalRooms != 5 {
		t.Fatalf("expected total 5, got %d", snap.TotalRooms)
	}

	if _, err := l.Snapshot(ctx, "cat-missing"); !errors.Is(err, domain.ErrCategoryNotFound) {
		t.Fatalf("expected ErrCategoryNotFound, got %v", err)
	}
}
