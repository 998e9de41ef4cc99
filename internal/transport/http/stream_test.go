package http

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/tawhid126/hotelhub/internal/bus"
	"github.com/tawhid126/hotelhub/internal/clock"
	"github.com/tawhid126/hotelhub/internal/domain"
	"github.com/tawhid126/hotelhub/internal/ledger"
	"github.com/tawhid126/hotelhub/internal/storage/memory"
	"github.com/tawhid126/hotelhub/internal/subscribe"
)

type streamStack struct {
	store  *memory.Store
	ledger *ledger.Ledger
	server *httptest.Server
}

func newStreamStack(t *testing.T) *streamStack {
	t.Helper()
	store := memory.NewStore()
	eventBus := bus.New(nil)
	t.Cleanup(eventBus.Close)

	ledgerSvc := ledger.New(store, eventBus, clock.NewSystem())
	subSvc := subscribe.New(eventBus, ledgerSvc, store, nil)

	server := httptest.NewServer(HandleAvailabilityStream(subSvc, nil))
	t.Cleanup(server.Close)

	err := store.CreateCategory(context.Background(), domain.RoomCategory{
		ID: "cat-1", HotelID: "hotel-1", Name: "Deluxe King", TotalRooms: 5,
	})
	if err != nil {
		t.Fatalf("create category: %v", err)
	}
	return &streamStack{store: store, ledger: ledgerSvc, server: server}
}

func (s *streamStack) dial(t *testing.T, query string) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(s.server.URL, "http") + "?" + query
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial %s: %v", url, err)
	}
	t.Cleanup(func() { conn.Close() })
	return conn
}

func readUpdate(t *testing.T, conn *websocket.Conn) availabilityResponse {
	t.Helper()
	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var upd availabilityResponse
	if err := conn.ReadJSON(&upd); err != nil {
		t.Fatalf("read update: %v", err)
	}
	return upd
}

func TestHandleAvailabilityStream(t *testing.T) {
	t.Parallel()

	t.Run("snapshot then live updates", func(t *testing.T) {
		stack := newStreamStack(t)
		conn := stack.dial(t, "room_category_id=cat-1")

		snap := readUpdate(t, conn)
		if snap.RoomCategoryID != "cat-1" || snap.AvailableRooms != 5 {
			t.Fatalf("unexpected snapshot %+v", snap)
		}

		_, err := stack.ledger.Reserve(context.Background(), domain.ReservationDelta{
			RequestID:      "req-1",
			RoomCategoryID: "cat-1",
			Stay: domain.NewStay(
				time.Now().UTC().AddDate(0, 0, 1),
				time.Now().UTC().AddDate(0, 0, 3),
			),
			Rooms: 2,
		})
		if err != nil {
			t.Fatalf("reserve: %v", err)
		}

		upd := readUpdate(t, conn)
		if upd.AvailableRooms != 3 {
			t.Fatalf("expected availability 3, got %d", upd.AvailableRooms)
		}
	})

	t.Run("unknown category rejected before upgrade", func(t *testing.T) {
		stack := newStreamStack(t)
		resp, err := http.Get(stack.server.URL + "?room_category_id=cat-missing")
		if err != nil {
			t.Fatalf("get: %v", err)
		}
		defer resp.Body.Close()

		if resp.StatusCode != http.StatusNotFound {
			t.Fatalf("status = %d", resp.StatusCode)
		}
	})

	t.Run("client disconnect detaches promptly", func(t *testing.T) {
		stack := newStreamStack(t)
		conn := stack.dial(t, "room_category_id=cat-1")
		readUpdate(t, conn)
		conn.Close()

		// The handler goroutines wind down once the peer is gone; further
		// mutations must not panic or block.
		time.Sleep(50 * time.Millisecond)
		_, err := stack.ledger.Reserve(context.Background(), domain.ReservationDelta{
			RequestID:      "req-after-close",
			RoomCategoryID: "cat-1",
			Stay: domain.NewStay(
				time.Now().UTC().AddDate(0, 0, 1),
				time.Now().UTC().AddDate(0, 0, 2),
			),
			Rooms: 1,
		})
		if err != nil {
			t.Fatalf("reserve after disconnect: %v", err)
		}
	})
}
