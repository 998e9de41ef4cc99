package http

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/tawhid126/hotelhub/internal/ratelimit"
)

type fakeResetter struct {
	err  error
	last string
}

func (f *fakeResetter) Reset(identity string) error {
	f.last = identity
	return f.err
}

func TestHandleRateLimitReset(t *testing.T) {
	t.Parallel()

	t.Run("success", func(t *testing.T) {
		gov := &fakeResetter{}
		handler := HandleRateLimitReset(gov)

		req := httptest.NewRequest(http.MethodPost, "/admin/ratelimit/reset",
			strings.NewReader(`{"identity": "ip:1.2.3.4"}`))
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)

		if rec.Code != http.StatusOK {
			t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
		}
		if gov.last != "ip:1.2.3.4" {
			t.Errorf("reset called with %q", gov.last)
		}
		var resp resetResponse
		if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
			t.Fatalf("decode response: %v", err)
		}
		if !resp.Cleared || resp.Identity != "ip:1.2.3.4" {
			t.Fatalf("unexpected response %+v", resp)
		}
	})

	t.Run("empty identity refused", func(t *testing.T) {
		handler := HandleRateLimitReset(&fakeResetter{})
		req := httptest.NewRequest(http.MethodPost, "/admin/ratelimit/reset",
			strings.NewReader(`{"identity": ""}`))
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)

		if rec.Code != http.StatusBadRequest {
			t.Fatalf("status = %d", rec.Code)
		}
		got := decodeErrorBody(t, rec)
		if got.Code != codeIdentityRequired {
			t.Fatalf("code = %q", got.Code)
		}
		if !strings.Contains(got.Error, "process restart") {
			t.Fatalf("message should point at a restart, got %q", got.Error)
		}
	})

	t.Run("disabled in production", func(t *testing.T) {
		handler := HandleRateLimitReset(&fakeResetter{err: ratelimit.ErrResetDisabled})
		req := httptest.NewRequest(http.MethodPost, "/admin/ratelimit/reset",
			strings.NewReader(`{"identity": "ip:1.2.3.4"}`))
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)

		if rec.Code != http.StatusForbidden {
			t.Fatalf("status = %d", rec.Code)
		}
		if got := decodeErrorBody(t, rec); got.Code != codeResetDisabled {
			t.Fatalf("code = %q", got.Code)
		}
	})

	t.Run("method not allowed", func(t *testing.T) {
		handler := HandleRateLimitReset(&fakeResetter{})
		req := httptest.NewRequest(http.MethodGet, "/admin/ratelimit/reset", nil)
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)

		if rec.Code != http.StatusMethodNotAllowed {
			t.Fatalf("status = %d", rec.Code)
		}
	})
}
