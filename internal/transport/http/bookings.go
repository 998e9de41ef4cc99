package http

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/tawhid126/hotelhub/internal/domain"
)

// Reserver is the minimal interface needed to book rooms.
type Reserver interface {
	Reserve(ctx context.Context, d domain.ReservationDelta) (domain.AvailabilityEvent, error)
}

// HandleCreateBooking returns an HTTP handler for reserving rooms.
func HandleCreateBooking(svc Reserver) http.HandlerFunc {
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

		ev, err := svc.Reserve(r.Context(), delta)
		if err != nil {
			writeReservationError(w, err)
			return
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusCreated)
		_ = json.NewEncoder(w).Encode(bookingResponse{
			RequestID:    delta.RequestID,
			Status:       "confirmed",
			Availability: availabilityFromEvent(ev),
		})
	}
}

type reservationRequest struct {
	RequestID      string `json:"request_id"`
	RoomCategoryID string `json:"room_category_id"`
	CheckIn        string `json:"check_in"`
	CheckOut       string `json:"check_out"`
	Rooms          int    `json:"rooms"`
}

func (r reservationRequest) delta() (domain.ReservationDelta, error) {
	checkIn, err := time.Parse(time.DateOnly, r.CheckIn)
	if err != nil {
		return domain.ReservationDelta{}, domain.ErrInvalidStay
	}
	checkOut, err := time.Parse(time.DateOnly, r.CheckOut)
	if err != nil {
		return domain.ReservationDelta{}, domain.ErrInvalidStay
	}
	d := domain.ReservationDelta{
		RequestID:      r.RequestID,
		RoomCategoryID: r.RoomCategoryID,
		Stay:           domain.NewStay(checkIn, checkOut),
		Rooms:          r.Rooms,
	}
	if err := d.Validate(); err != nil {
		return domain.ReservationDelta{}, err
	}
	return d, nil
}

type bookingResponse struct {
	RequestID    string               `json:"request_id"`
	Status       string               `json:"status"`
	Availability availabilityResponse `json:"availability"`
}

// writeReservationError maps ledger and validation errors for the booking
// mutation endpoints. Sold-out stays get their own code: callers must be
// able to tell "not available" apart from genuine failures.
func writeReservationError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, domain.ErrRequestIDRequired):
		writeError(w, http.StatusBadRequest, codeRequestIDRequired, err.Error())
	case errors.Is(err, domain.ErrInvalidRooms):
		writeError(w, http.StatusBadRequest, codeInvalidRooms, err.Error())
	case errors.Is(err, domain.ErrInvalidStay):
		writeError(w, http.StatusBadRequest, codeInvalidStay, err.Error())
	case errors.Is(err, domain.ErrInvalidID):
		writeError(w, http.StatusBadRequest, codeInvalidID, err.Error())
	case errors.Is(err, domain.ErrCategoryNotFound):
		writeError(w, http.StatusNotFound, codeCategoryNotFound, err.Error())
	case errors.Is(err, domain.ErrCategoryRetired):
		writeError(w, http.StatusConflict, codeCategoryRetired, err.Error())
	case errors.Is(err, domain.ErrNoAvailability):
		writeError(w, http.StatusConflict, codeNoAvailability, "no rooms available for the requested stay")
	case errors.Is(err, domain.ErrReleaseExceedsHeld):
		writeError(w, http.StatusConflict, codeReleaseExceedsHeld, err.Error())
	case errors.Is(err, domain.ErrIdempotencyConflict):
		writeError(w, http.StatusConflict, codeIdempotencyConflict, err.Error())
	case errors.Is(err, domain.ErrTxConflict):
		writeError(w, http.StatusServiceUnavailable, codeWriteConflict, "inventory busy, retry shortly")
	default:
		writeError(w, http.StatusInternalServerError, codeInternalError, "internal error")
	}
}
