package ratelimit

import (
	"context"
	"errors"
	"hash/fnv"
	"sync"
	"time"

	"github.com/tawhid126/hotelhub/internal/clock"
	"go.uber.org/zap"
)

// ErrResetDisabled is returned when Reset is called outside development
// mode. The governor fails closed: production state is never cleared.
var ErrResetDisabled = errors.New("rate limit reset disabled outside development mode")

const shardCount = 64

// Policy is the admission configuration for one route class.
type Policy struct {
	Limit  int
	Window time.Duration
}

// Decision is the outcome of one admission check. RetryAfter is only set
// on rejection and counts down to the end of the active window.
type Decision struct {
	Allowed    bool
	RetryAfter time.Duration
}

type windowEntry struct {
	windowStart time.Time
	count       int
}

type shard struct {
	mu      sync.Mutex
	entries map[string]*windowEntry
}

// Governor admits requests per (identity, route class) using fixed-window
// counting: the window is keyed by floor(now/window), so a burst may reach
// 2x the limit across a boundary. Identities are spread over FNV-hashed
// shards so unrelated callers never contend; Admit never blocks. Stale
// entries are evicted lazily on access and by Sweep.
type Governor struct {
	policies map[string]Policy
	clock    clock.Clock
	logger   *zap.Logger
	devMode  bool
	shards   [shardCount]*shard
}

type Option func(*Governor)

// WithDevMode enables the Reset escape hatch. Never set in production.
func WithDevMode(enabled bool) Option {
	return func(g *Governor) { g.devMode = enabled }
}

func WithLogger(logger *zap.Logger) Option {
	return func(g *Governor) {
		if logger != nil {
			g.logger = logger
		}
	}
}

func New(policies map[string]Policy, clk clock.Clock, opts ...Option) *Governor {
	g := &Governor{
		policies: policies,
		clock:    clk,
		logger:   zap.NewNop(),
	}
	for i := range g.shards {
		g.shards[i] = &shard{entries: make(map[string]*windowEntry)}
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Admit decides whether one request from identity may proceed under the
// route class policy. Unknown classes are admitted: only configured
// surfaces are governed.
func (g *Governor) Admit(identity, routeClass string) Decision {
	pol, ok := g.policies[routeClass]
	if !ok || pol.Limit <= 0 || pol.Window <= 0 {
		return Decision{Allowed: true}
	}

	key := routeClass + "|" + identity
	sh := g.shardFor(key)
	now := g.clock.Now()
	windowStart := now.Truncate(pol.Window)

	sh.mu.Lock()
	defer sh.mu.Unlock()

	e := sh.entries[key]
	if e == nil || e.windowStart.Before(windowStart) {
		sh.entries[key] = &windowEntry{windowStart: windowStart, count: 1}
		return Decision{Allowed: true}
	}
	if e.count >= pol.Limit {
		return Decision{
			Allowed:    false,
			RetryAfter: e.windowStart.Add(pol.Window).Sub(now),
		}
	}
	e.count++
	return Decision{Allowed: true}
}

// Reset clears every window for one identity across all route classes.
// Development-only; refused otherwise. Clearing all identities is not
// supported — that requires a process restart.
func (g *Governor) Reset(identity string) error {
	if !g.devMode {
		return ErrResetDisabled
	}
	suffix := "|" + identity
	for _, sh := range g.shards {
		sh.mu.Lock()
		for key := range sh.entries {
			if len(key) >= len(suffix) && key[len(key)-len(suffix):] == suffix {
				delete(sh.entries, key)
			}
		}
		sh.mu.Unlock()
	}
	g.logger.Info("rate limit windows reset", zap.String("identity", identity))
	return nil
}

// Sweep evicts entries whose window has fully elapsed and reports how
// many were removed. Keeps memory bounded for one-off callers.
func (g *Governor) Sweep() int {
	now := g.clock.Now()
	evicted := 0
	for _, sh := range g.shards {
		sh.mu.Lock()
		for key, e := range sh.entries {
			pol, ok := g.policyForKey(key)
			if !ok || !now.Before(e.windowStart.Add(pol.Window)) {
				delete(sh.entries, key)
				evicted++
			}
		}
		sh.mu.Unlock()
	}
	return evicted
}

// Run sweeps periodically until the context ends.
func (g *Governor) Run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := g.Sweep(); n > 0 {
				g.logger.Debug("evicted idle rate windows", zap.Int("count", n))
			}
		}
	}
}

func (g *Governor) shardFor(key string) *shard {
	h := fnv.New32a()
	_, _ = h.Write([]byte(key))
	return g.shards[h.Sum32()%shardCount]
}

func (g *Governor) policyForKey(key string) (Policy, bool) {
	for i := 0; i < len(key); i++ {
		if key[i] == '|' {
			pol, ok := g.policies[key[:i]]
			return pol, ok
		}
	}
	return Policy{}, false
}
