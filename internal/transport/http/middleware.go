package http

import (
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/tawhid126/hotelhub/internal/ratelimit"
	"go.uber.org/zap"
)

// RequestLogger logs basic request details and latency.
func RequestLogger(next http.Handler, logger *zap.Logger) http.Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)

		logger.Info("request",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", rec.status),
			zap.Duration("duration", time.Since(start)),
		)
	})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

// Admitter is the minimal governor interface the middleware needs.
type Admitter interface {
	Admit(identity, routeClass string) ratelimit.Decision
}

// RouteClassifier maps a request to its admission policy class. An empty
// class exempts the request from rate limiting.
func RouteClassifier() func(*http.Request) string {
	return func(r *http.Request) string {
		switch {
		case strings.HasPrefix(r.URL.Path, "/auth/"):
			return "auth"
		case r.Method == http.MethodPost &&
			(r.URL.Path == "/bookings" || r.URL.Path == "/cancellations"):
			return "mutation"
		default:
			return ""
		}
	}
}

// RateLimit consults the governor before any handler work. Rejected
// requests get 429 with a Retry-After hint and never reach the ledger.
func RateLimit(gov Admitter, classify func(*http.Request) string, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		class := classify(r)
		if class == "" {
			next.ServeHTTP(w, r)
			return
		}

		decision := gov.Admit(CallerIdentity(r), class)
		if !decision.Allowed {
			seconds := int(decision.RetryAfter.Round(time.Second) / time.Second)
			if seconds < 1 {
				seconds = 1
			}
			w.Header().Set("Retry-After", strconv.Itoa(seconds))
			writeError(w, http.StatusTooManyRequests, codeTooManyRequests, "too many requests")
			return
		}
		next.ServeHTTP(w, r)
	})
}

// CallerIdentity derives the opaque caller key used for rate limiting.
// Identity issuance itself is out of scope; the nearest network address
// stands in for it.
func CallerIdentity(r *http.Request) string {
	if fwd := r.Header.Get("X-Forwarded-For"); fwd != "" {
		first, _, _ := strings.Cut(fwd, ",")
		if first = strings.TrimSpace(first); first != "" {
			return "ip:" + first
		}
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return "ip:" + r.RemoteAddr
	}
	return "ip:" + host
}
