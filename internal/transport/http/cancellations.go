package http

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/tawhid126/hotelhub/internal/domain"
)

// Releaser is the minimal interface needed to cancel a booking.
type Releaser interface {
	Release(ctx context.Context, d domain.ReservationDelta) (domain.AvailabilityEvent, error)
}

// HandleCreateCancellation returns an HTTP handler that releases rooms
// back into inventory. The payload mirrors the booking it undoes, with
// its own request id.
func HandleCreateCancellation(svc Releaser) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			writeError(w, http.StatusMethodNotAllowed, codeMethodNotAllowed, "method not allowed")
			return
		}

		var req reservationRequest
		dec := json.NewDecoder(r.Body)
		dec.DisallowUnknownFields()
		if err := dec.Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, codeInvalidRequestBody, "invalid request body")
			return
		}

		delta, err := req.delta()
		if err != nil {
			writeReservationError(w, err)
			return
		}

		ev, err := svc.Release(r.Context(), delta)
		if err != nil {
			writeReservationError(w, err)
			return
		}

		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(bookingResponse{
			RequestID:    delta.RequestID,
			Status:       "cancelled",
			Availability: availabilityFromEvent(ev),
		})
	}
}
