package http

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"github.com/tawhid126/hotelhub/internal/bus"
	"github.com/tawhid126/hotelhub/internal/domain"
	"go.uber.org/zap"
)

const streamWriteWait = 10 * time.Second

// Attacher is the minimal interface needed to open a live availability
// stream.
type Attacher interface {
	Attach(ctx context.Context, f bus.Filter) (<-chan domain.AvailabilityUpdate, error)
}

var streamUpgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// Browser origin policy is enforced by the CORS layer; the stream is
	// advisory data only.
	CheckOrigin: func(r *http.Request) bool { return true },
}

// HandleAvailabilityStream returns a websocket handler for
// GET /availability/stream?room_category_id=&hotel_id=. Each connection
// owns one subscription; closing the socket detaches it.
func HandleAvailabilityStream(svc Attacher, logger *zap.Logger) http.HandlerFunc {
	if logger == nil {
		logger = zap.NewNop()
	}
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			writeError(w, http.StatusMethodNotAllowed, codeMethodNotAllowed, "method not allowed")
			return
		}

		filter := bus.Filter{
			RoomCategoryID: r.URL.Query().Get("room_category_id"),
			HotelID:        r.URL.Query().Get("hotel_id"),
		}

		ctx, cancel := context.WithCancel(r.Context())
		defer cancel()

		updates, err := svc.Attach(ctx, filter)
		if err != nil {
			switch {
			case errors.Is(err, domain.ErrCategoryNotFound):
				writeError(w, http.StatusNotFound, codeCategoryNotFound, err.Error())
			case errors.Is(err, domain.ErrInvalidID):
				writeError(w, http.StatusBadRequest, codeInvalidID, err.Error())
			default:
				writeError(w, http.StatusInternalServerError, codeInternalError, "internal error")
			}
			return
		}

		conn, err := streamUpgrader.Upgrade(w, r, nil)
		if err != nil {
			// Upgrade already wrote the response; cancel detaches the stream.
			return
		}
		defer conn.Close()

		// Reads only serve to notice the peer going away.
		readerDone := make(chan struct{})
		go func() {
			defer close(readerDone)
			for {
				if _, _, err := conn.ReadMessage(); err != nil {
					return
				}
			}
		}()

		for {
			select {
			case <-readerDone:
				return
			case upd, ok := <-updates:
				if !ok {
					_ = conn.WriteControl(
						websocket.CloseMessage,
						websocket.FormatCloseMessage(websocket.CloseGoingAway, "shutting down"),
						time.Now().Add(streamWriteWait),
					)
					return
				}
				_ = conn.SetWriteDeadline(time.Now().Add(streamWriteWait))
				if err := conn.WriteJSON(availabilityFromUpdate(upd)); err != nil {
					logger.Debug("stream write failed", zap.Error(err))
					return
				}
			}
		}
	}
}
