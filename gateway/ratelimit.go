// Copyright 2025 Rampart Security
// SPDX-License-Identifier: BUSL-1.1

package gateway

import (
	"net"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"
)

// LimitProfile is a pair of sliding-window caps.
type LimitProfile struct {
	PerMinute int
	PerHour   int
}

// StrictProfile is applied to sensitive paths (auth endpoints) where
// brute-force pressure matters more than throughput.
var StrictProfile = LimitProfile{PerMinute: 10, PerHour: 100}

// LimitDecision is the outcome of a rate limit check.
type LimitDecision struct {
	Allowed         bool
	RemainingMinute int
	RemainingHour   int

	// RetryAfter is the window horizon in seconds of the first
	// exceeded window; zero when allowed.
	RetryAfter int
}

// clientWindows holds both sliding windows for one client.
type clientWindows struct {
	mu     sync.Mutex
	minute []time.Time
	hour   []time.Time
}

// prune drops stamps older than the horizon, in place.
func prune(stamps []time.Time, cutoff time.Time) []time.Time {
	i := 0
	for i < len(stamps) && stamps[i].Before(cutoff) {
		i++
	}
	return stamps[i:]
}

// SlidingWindowLimiter maintains per-client 60s and 3600s windows
// in process memory. A periodic sweep drops idle clients so the table
// stays bounded.
type SlidingWindowLimiter struct {
	defaults LimitProfile

	mu      sync.Mutex
	clients map[string]*clientWindows

	stop chan struct{}
	once sync.Once
}

// NewSlidingWindowLimiter creates a limiter with the given default
// profile and starts the idle-client sweep.
func NewSlidingWindowLimiter(defaults LimitProfile) *SlidingWindowLimiter {
	l := &SlidingWindowLimiter{
		defaults: defaults,
		clients:  make(map[string]*clientWindows),
		stop:     make(chan struct{}),
	}
	go l.sweepLoop(time.Minute)
	return l
}

// Allow records one request for the client and checks both windows
// against the profile.
func (l *SlidingWindowLimiter) Allow(clientID string, profile LimitProfile) LimitDecision {
	now := time.Now()

	l.mu.Lock()
	cw, ok := l.clients[clientID]
	if !ok {
		cw = &clientWindows{}
		l.clients[clientID] = cw
	}
	l.mu.Unlock()

	cw.mu.Lock()
	defer cw.mu.Unlock()

	cw.minute = prune(cw.minute, now.Add(-time.Minute))
	cw.hour = prune(cw.hour, now.Add(-time.Hour))

	if len(cw.minute) >= profile.PerMinute {
		return LimitDecision{RemainingHour: remaining(profile.PerHour, len(cw.hour)), RetryAfter: 60}
	}
	if len(cw.hour) >= profile.PerHour {
		return LimitDecision{RemainingMinute: remaining(profile.PerMinute, len(cw.minute)), RetryAfter: 3600}
	}

	cw.minute = append(cw.minute, now)
	cw.hour = append(cw.hour, now)

	return LimitDecision{
		Allowed:         true,
		RemainingMinute: remaining(profile.PerMinute, len(cw.minute)),
		RemainingHour:   remaining(profile.PerHour, len(cw.hour)),
	}
}

func remaining(limit, used int) int {
	if used >= limit {
		return 0
	}
	return limit - used
}

// Defaults returns the limiter's default profile.
func (l *SlidingWindowLimiter) Defaults() LimitProfile {
	return l.defaults
}

// sweepLoop periodically drops clients with no stamps in either window.
func (l *SlidingWindowLimiter) sweepLoop(interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			l.sweep(time.Now())
		case <-l.stop:
			return
		}
	}
}

// sweep removes idle clients. Exported through tests only.
func (l *SlidingWindowLimiter) sweep(now time.Time) {
	l.mu.Lock()
	defer l.mu.Unlock()

	for id, cw := range l.clients {
		cw.mu.Lock()
		cw.minute = prune(cw.minute, now.Add(-time.Minute))
		cw.hour = prune(cw.hour, now.Add(-time.Hour))
		idle := len(cw.minute) == 0 && len(cw.hour) == 0
		cw.mu.Unlock()

		if idle {
			delete(l.clients, id)
		}
	}
}

// Close stops the sweep goroutine.
func (l *SlidingWindowLimiter) Close() {
	l.once.Do(func() { close(l.stop) })
}

// ClientIdentity derives the rate-limit key for a request: the API key
// id when authenticated with one, else the first X-Forwarded-For hop,
// else X-Real-IP, else the peer address.
func ClientIdentity(r *http.Request) string {
	if principal := PrincipalFromContext(r.Context()); principal != nil && principal.APIKeyID != "" {
		return "key:" + principal.APIKeyID
	}

	if fwd := r.Header.Get("X-Forwarded-For"); fwd != "" {
		first := strings.TrimSpace(strings.SplitN(fwd, ",", 2)[0])
		if first != "" {
			return "ip:" + first
		}
	}
	if real := r.Header.Get("X-Real-IP"); real != "" {
		return "ip:" + real
	}

	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return "ip:" + r.RemoteAddr
	}
	return "ip:" + host
}

// rateLimitExemptPaths skip limiting entirely.
var rateLimitExemptPaths = map[string]struct{}{
	"/":             {},
	"/health":       {},
	"/health/ready": {},
	"/health/live":  {},
	"/metrics":      {},
}

// strictPrefixes select the strict profile by URL prefix.
var strictPrefixes = []string{
	"/api/v1/auth/",
}

// profileForPath selects the limit profile for a request path.
func profileForPath(defaults LimitProfile, path string) LimitProfile {
	for _, prefix := range strictPrefixes {
		if strings.HasPrefix(path, prefix) {
			return StrictProfile
		}
	}
	return defaults
}

// Middleware enforces the sliding-window limits and echoes the
// X-RateLimit headers on every limited path.
func (l *SlidingWindowLimiter) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if _, exempt := rateLimitExemptPaths[r.URL.Path]; exempt {
			next.ServeHTTP(w, r)
			return
		}

		profile := profileForPath(l.defaults, r.URL.Path)
		decision := l.Allow(ClientIdentity(r), profile)
		writeLimitHeaders(w, profile, decision)

		if !decision.Allowed {
			promRateLimitRejections.Inc()
			writeRateLimited(w, decision.RetryAfter)
			return
		}

		next.ServeHTTP(w, r)
	})
}

// writeLimitHeaders echoes the window state on every limited path.
func writeLimitHeaders(w http.ResponseWriter, profile LimitProfile, decision LimitDecision) {
	w.Header().Set("X-RateLimit-Limit-Minute", strconv.Itoa(profile.PerMinute))
	w.Header().Set("X-RateLimit-Remaining-Minute", strconv.Itoa(decision.RemainingMinute))
	w.Header().Set("X-RateLimit-Limit-Hour", strconv.Itoa(profile.PerHour))
	w.Header().Set("X-RateLimit-Remaining-Hour", strconv.Itoa(decision.RemainingHour))
}
