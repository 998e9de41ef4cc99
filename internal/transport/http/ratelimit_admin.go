package http

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/tawhid126/hotelhub/internal/ratelimit"
)

// WindowResetter is the minimal interface needed for the development-only
// rate limit reset endpoint.
type WindowResetter interface {
	Reset(identity string) error
}

// HandleRateLimitReset returns a handler for POST /admin/ratelimit/reset.
// It clears the windows of a single identity. The in-memory store has no
// safe clear-all, so an empty identity is refused with an explanation
// rather than silently wiping state.
func HandleRateLimitReset(gov WindowResetter) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			writeError(w, http.StatusMethodNotAllowed, codeMethodNotAllowed, "method not allowed")
			return
		}

		var req resetRequest
		dec := json.NewDecoder(r.Body)
		dec.DisallowUnknownFields()
		if err := dec.Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, codeInvalidRequestBody, "invalid request body")
			return
		}
		if req.Identity == "" {
			writeError(w, http.StatusBadRequest, codeIdentityRequired,
				"identity required: clearing all rate limit state needs a process restart")
			return
		}

		if err := gov.Reset(req.Identity); err != nil {
			if errors.Is(err, ratelimit.ErrResetDisabled) {
				writeError(w, http.StatusForbidden, codeResetDisabled, err.Error())
				return
			}
			writeError(w, http.StatusInternalServerError, codeInternalError, "internal error")
			return
		}

		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(resetResponse{Identity: req.Identity, Cleared: true})
	}
}

type resetRequest struct {
	Identity string `json:"identity"`
}

type resetResponse struct {
	Identity string `json:"identity"`
	Cleared  bool   `json:"cleared"`
}
