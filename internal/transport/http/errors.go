package http

import (
	"encoding/json"
	"net/http"
)

const (
	codeMethodNotAllowed      = "method_not_allowed"
	codeNotFound              = "not_found"
	codeInvalidRequestBody    = "invalid_request_body"
	codeInvalidStay           = "invalid_stay"
	codeInvalidRooms          = "invalid_rooms"
	codeInvalidCapacity       = "invalid_capacity"
	codeInvalidID             = "invalid_id"
	codeHotelIDRequired       = "hotel_id_required"
	codeCategoryNameRequired  = "category_name_required"
	codeRequestIDRequired     = "request_id_required"
	codeIdempotencyConflict   = "idempotency_conflict"
	codeNoAvailability        = "no_availability"
	codeReleaseExceedsHeld    = "release_exceeds_reserved"
	codeCategoryNotFound      = "category_not_found"
	codeCategoryExists        = "category_already_exists"
	codeCategoryRetired       = "category_retired"
	codeWriteConflict         = "write_conflict"
	codeTooManyRequests       = "too_many_requests"
	codeIdentityRequired      = "identity_required"
	codeResetDisabled         = "reset_disabled"
	codeForbidden             = "forbidden"
	codeInternalError         = "internal_error"
)

type errorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

func writeError(w http.ResponseWriter, status int, code, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	payload, err := json.Marshal(errorResponse{
		Error: msg,
		Code:  code,
	})
	if err != nil {
		_, _ = w.Write([]byte(`{"error":"internal error","code":"internal_error"}`))
		return
	}
	_, _ = w.Write(payload)
}
