// Package ratelimit counts requests per client in fixed one-minute windows.
package ratelimit

import (
	"math"
	"net/http"
	"strconv"
	"sync"
	"time"
)

const window = time.Minute

type Limiter struct {
	limit      int
	staleAfter time.Duration
	now        func() time.Time

	mu      sync.Mutex
	windows map[string]*bucket

	stop     chan struct{}
	stopOnce sync.Once
}

type bucket struct {
	opened time.Time
	seen   time.Time
	count  int
}

type Config struct {
	RequestsPerMinute int
	CleanupInterval   time.Duration
	// StaleAfter forgets clients idle for longer than this.
	StaleAfter time.Duration
	Now        func() time.Time
}

func DefaultConfig() Config {
	return Config{
		RequestsPerMinute: 120,
		CleanupInterval:   5 * time.Minute,
		StaleAfter:        10 * time.Minute,
	}
}

// NewLimiter starts a background sweep of idle clients; Stop ends it.
func NewLimiter(cfg Config) *Limiter {
	def := DefaultConfig()
	if cfg.RequestsPerMinute <= 0 {
		cfg.RequestsPerMinute = def.RequestsPerMinute
	}
	if cfg.CleanupInterval <= 0 {
		cfg.CleanupInterval = def.CleanupInterval
	}
	if cfg.StaleAfter <= 0 {
		cfg.StaleAfter = def.StaleAfter
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}

	l := &Limiter{
		limit:      cfg.RequestsPerMinute,
		staleAfter: cfg.StaleAfter,
		now:        cfg.Now,
		windows:    make(map[string]*bucket),
		stop:       make(chan struct{}),
	}
	go l.sweep(cfg.CleanupInterval)
	return l
}

// Reserve counts one request for client. When the window is exhausted it returns
// false and the time left until the window reopens.
func (l *Limiter) Reserve(client string) (bool, time.Duration) {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	b := l.windows[client]
	if b == nil || now.Sub(b.opened) >= window {
		l.windows[client] = &bucket{opened: now, seen: now, count: 1}
		return true, 0
	}
	b.seen = now
	b.count++
	if b.count <= l.limit {
		return true, 0
	}
	return false, b.opened.Add(window).Sub(now)
}

func (l *Limiter) Allow(client string) bool {
	ok, _ := l.Reserve(client)
	return ok
}

func (l *Limiter) sweep(every time.Duration) {
	t := time.NewTicker(every)
	defer t.Stop()
	for {
		select {
		case <-l.stop:
			return
		case <-t.C:
			l.cleanupStaleEntries()
		}
	}
}

func (l *Limiter) cleanupStaleEntries() int {
	l.mu.Lock()
	defer l.mu.Unlock()

	cutoff := l.now().Add(-l.staleAfter)
	n := 0
	for client, b := range l.windows {
		if b.seen.Before(cutoff) {
			delete(l.windows, client)
			n++
		}
	}
	return n
}

// ActiveClients is the number of clients currently tracked.
func (l *Limiter) ActiveClients() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.windows)
}

func (l *Limiter) Stop() {
	l.stopOnce.Do(func() { close(l.stop) })
}

// Middleware answers over-limit requests with Retry-After set and either onLimit
// or a plain 429.
func (l *Limiter) Middleware(clientOf func(*http.Request) string, onLimit func(http.ResponseWriter, *http.Request)) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ok, wait := l.Reserve(clientOf(r))
			if ok {
				next.ServeHTTP(w, r)
				return
			}
			secs := int(math.Ceil(wait.Seconds()))
			if secs < 1 {
				secs = 1
			}
			w.Header().Set("Retry-After", strconv.Itoa(secs))
			if onLimit != nil {
				onLimit(w, r)
				return
			}
			http.Error(w, "Rate limit exceeded. Please try again later.", http.StatusTooManyRequests)
		})
	}
}
