package ledger

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/tawhid126/hotelhub/internal/domain"
)

// errWaitRetry signals that a concurrent call holding the same request id
// finished and the waiter should re-check the result cache.
var errWaitRetry = errors.New("retry after inflight call")

const pruneInterval = time.Minute

type cachedResult struct {
	fingerprint string
	event       domain.AvailabilityEvent
	expiresAt   time.Time
}

type inflightCall struct {
	done chan struct{}
}

// keyedGroup serializes concurrent calls sharing one request id and keeps
// successful results for the retention window. Only the first caller for
// an id executes; duplicates either get the cached event or wait and
// re-check. Entries age out so memory stays bounded.
type keyedGroup struct {
	mu        sync.Mutex
	results   map[string]cachedResult
	inflight  map[string]*inflightCall
	nextPrune time.Time
}

func (g *keyedGroup) init() {
	g.results = make(map[string]cachedResult)
	g.inflight = make(map[string]*inflightCall)
}

// claim resolves a request id to one of three outcomes: a cached result
// (run=false), an instruction to wait-and-retry behind an inflight twin
// (run=false, errWaitRetry), or ownership of the execution (run=true).
func (g *keyedGroup) claim(ctx context.Context, requestID, fp string, now time.Time) (domain.AvailabilityEvent, error, bool) {
	g.mu.Lock()
	g.pruneLocked(now)

	if res, ok := g.results[requestID]; ok {
		if now.After(res.expiresAt) {
			delete(g.results, requestID)
		} else {
			g.mu.Unlock()
			if res.fingerprint != fp {
				return domain.AvailabilityEvent{}, domain.ErrIdempotencyConflict, false
			}
			return res.event, nil, false
		}
	}

	if call, ok := g.inflight[requestID]; ok {
		g.mu.Unlock()
		select {
		case <-call.done:
			return domain.AvailabilityEvent{}, errWaitRetry, false
		case <-ctx.Done():
			return domain.AvailabilityEvent{}, ctx.Err(), false
		}
	}

	g.inflight[requestID] = &inflightCall{done: make(chan struct{})}
	g.mu.Unlock()
	return domain.AvailabilityEvent{}, nil, true
}

// finish records the outcome of an owned execution and releases waiters.
// Failures are not cached: a retry with the same id may attempt again.
func (g *keyedGroup) finish(requestID, fp string, ev domain.AvailabilityEvent, err error, expiresAt time.Time) {
	g.mu.Lock()
	call := g.inflight[requestID]
	delete(g.inflight, requestID)
	if err == nil {
		g.results[requestID] = cachedResult{
			fingerprint: fp,
			event:       ev,
			expiresAt:   expiresAt,
		}
	}
	g.mu.Unlock()
	if call != nil {
		close(call.done)
	}
}

func (g *keyedGroup) pruneLocked(now time.Time) {
	if now.Before(g.nextPrune) {
		return
	}
	g.nextPrune = now.Add(pruneInterval)
	for id, res := range g.results {
		if now.After(res.expiresAt) {
			delete(g.results, id)
		}
	}
}
