// Package ratelimit implements a per-host token bucket that spaces out page
// loads against the same site.
package ratelimit

import (
	"context"
	"fmt"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/JakeFAU/sale-monitor/internal/metrics"
)

// Defaults for the host table bounds.
const (
	DefaultMaxHosts = 1024
	DefaultIdleTTL  = 10 * time.Minute
)

// Limiter manages per-host rate limits. The host table is bounded: idle
// entries expire after IdleTTL and the least recently used host is evicted
// once MaxHosts is reached.
type Limiter struct {
	mu           sync.Mutex
	limiters     map[string]*hostLimiter
	defaultRate  rate.Limit
	defaultBurst int
	maxHosts     int
	idleTTL      time.Duration
	now          func() time.Time
}

type hostLimiter struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// Config holds rate limiter configuration. A non-positive RPS disables
// limiting.
type Config struct {
	DefaultRPS   float64
	DefaultBurst int
	MaxHosts     int
	IdleTTL      time.Duration
}

// Enabled reports whether cfg limits anything.
func (c Config) Enabled() bool {
	return c.DefaultRPS > 0
}

// New creates a new Limiter.
func New(cfg Config) *Limiter {
	r := rate.Limit(cfg.DefaultRPS)
	if !cfg.Enabled() {
		r = rate.Inf
	}
	burst := cfg.DefaultBurst
	if burst <= 0 {
		burst = 1
	}
	maxHosts := cfg.MaxHosts
	if maxHosts <= 0 {
		maxHosts = DefaultMaxHosts
	}
	idle := cfg.IdleTTL
	if idle <= 0 {
		idle = DefaultIdleTTL
	}
	metrics.Init()
	return &Limiter{
		limiters:     make(map[string]*hostLimiter),
		defaultRate:  r,
		defaultBurst: burst,
		maxHosts:     maxHosts,
		idleTTL:      idle,
		now:          time.Now,
	}
}

// Wait blocks until a token is available for the URL's host, respecting the context.
func (l *Limiter) Wait(ctx context.Context, rawURL string) error {
	if l.defaultRate == rate.Inf {
		return nil
	}
	host := hostOf(rawURL)
	limiter := l.limiterFor(host)

	start := time.Now()
	if err := limiter.Wait(ctx); err != nil {
		return fmt.Errorf("rate limit wait for %s: %w", host, err)
	}
	// Immediate grants are not worth a histogram sample.
	if d := time.Since(start); d > time.Millisecond {
		metrics.ObserveRateLimitDelay(d)
	}
	return nil
}

func (l *Limiter) limiterFor(host string) *rate.Limiter {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	if entry, ok := l.limiters[host]; ok {
		entry.lastSeen = now
		return entry.limiter
	}
	if len(l.limiters) >= l.maxHosts {
		l.evictLocked(now)
	}
	entry := &hostLimiter{limiter: rate.NewLimiter(l.defaultRate, l.defaultBurst), lastSeen: now}
	l.limiters[host] = entry
	return entry.limiter
}

// evictLocked drops idle hosts, then the least recently used one if the
// table is still full. l.mu must be held.
func (l *Limiter) evictLocked(now time.Time) {
	var (
		oldestHost string
		oldest     time.Time
	)
	for host, entry := range l.limiters {
		if now.Sub(entry.lastSeen) > l.idleTTL {
			delete(l.limiters, host)
			continue
		}
		if oldestHost == "" || entry.lastSeen.Before(oldest) {
			oldestHost, oldest = host, entry.lastSeen
		}
	}
	if len(l.limiters) >= l.maxHosts && oldestHost != "" {
		delete(l.limiters, oldestHost)
	}
}

func (l *Limiter) hosts() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.limiters)
}

func hostOf(rawURL string) string {
	return metrics.SanitizeSite(rawURL)
}
