package http

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/tawhid126/hotelhub/internal/domain"
)

// SnapshotProvider is the minimal interface needed to read current
// availability.
type SnapshotProvider interface {
	Snapshot(ctx context.Context, categoryID string) (domain.AvailabilityUpdate, error)
}

// HandleAvailability returns an HTTP handler for availability snapshots
// at GET /availability/{categoryID}.
func HandleAvailability(svc SnapshotProvider) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			writeError(w, http.StatusMethodNotAllowed, codeMethodNotAllowed, "method not allowed")
			return
		}

		categoryID, ok := parseAvailabilityPath(r.URL.Path)
		if !ok {
			writeError(w, http.StatusNotFound, codeNotFound, "not found")
			return
		}

		snap, err := svc.Snapshot(r.Context(), categoryID)
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

		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(availabilityFromUpdate(snap))
	}
}

func parseAvailabilityPath(path string) (string, bool) {
	rest, ok := strings.CutPrefix(path, "/availability/")
	if !ok || rest == "" || strings.Contains(rest, "/") {
		return "", false
	}
	return rest, true
}

type availabilityResponse struct {
	RoomCategoryID string    `json:"room_category_id"`
	HotelID        string    `json:"hotel_id"`
	AvailableRooms int       `json:"available_rooms"`
	TotalRooms     int       `json:"total_rooms"`
	Timestamp      time.Time `json:"timestamp"`
}

func availabilityFromEvent(ev domain.AvailabilityEvent) availabilityResponse {
	return availabilityFromUpdate(ev.Update())
}

func availabilityFromUpdate(upd domain.AvailabilityUpdate) availabilityResponse {
	return availabilityResponse{
		RoomCategoryID: upd.RoomCategoryID,
		HotelID:        upd.HotelID,
		AvailableRooms: upd.AvailableRooms,
		TotalRooms:     upd.TotalRooms,
		Timestamp:      upd.Timestamp,
	}
}
