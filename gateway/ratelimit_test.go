// Copyright 2025 Rampart Security
// SPDX-License-Identifier: BUSL-1.1

package gateway

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestSlidingWindowMinuteLimit(t *testing.T) {
	l := NewSlidingWindowLimiter(LimitProfile{PerMinute: 3, PerHour: 100})
	defer l.Close()

	for i := 0; i < 3; i++ {
		if d := l.Allow("client-a", l.Defaults()); !d.Allowed {
			t.Fatalf("request %d rejected, want allowed", i+1)
		}
	}

	d := l.Allow("client-a", l.Defaults())
	if d.Allowed {
		t.Error("fourth request allowed, want rejected")
	}
	if d.RetryAfter != 60 {
		t.Errorf("RetryAfter = %d, want 60", d.RetryAfter)
	}

	// Another client has its own windows.
	if d := l.Allow("client-b", l.Defaults()); !d.Allowed {
		t.Error("independent client rejected")
	}
}

func TestSlidingWindowHourLimit(t *testing.T) {
	l := NewSlidingWindowLimiter(LimitProfile{PerMinute: 100, PerHour: 2})
	defer l.Close()

	l.Allow("client-a", l.Defaults())
	l.Allow("client-a", l.Defaults())

	d := l.Allow("client-a", l.Defaults())
	if d.Allowed {
		t.Error("request over hourly cap allowed")
	}
	if d.RetryAfter != 3600 {
		t.Errorf("RetryAfter = %d, want 3600", d.RetryAfter)
	}
}

func TestSlidingWindowRemainingCounts(t *testing.T) {
	l := NewSlidingWindowLimiter(LimitProfile{PerMinute: 5, PerHour: 10})
	defer l.Close()

	d := l.Allow("client-a", l.Defaults())
	if d.RemainingMinute != 4 {
		t.Errorf("RemainingMinute = %d, want 4", d.RemainingMinute)
	}
	if d.RemainingHour != 9 {
		t.Errorf("RemainingHour = %d, want 9", d.RemainingHour)
	}
}

func TestSweepDropsIdleClients(t *testing.T) {
	l := NewSlidingWindowLimiter(LimitProfile{PerMinute: 5, PerHour: 10})
	defer l.Close()

	l.Allow("client-a", l.Defaults())
	l.sweep(time.Now().Add(2 * time.Hour))

	l.mu.Lock()
	_, present := l.clients["client-a"]
	l.mu.Unlock()
	if present {
		t.Error("idle client survived the sweep")
	}
}

func TestProfileForPath(t *testing.T) {
	defaults := LimitProfile{PerMinute: 60, PerHour: 1000}

	if got := profileForPath(defaults, "/api/v1/auth/login"); got != StrictProfile {
		t.Errorf("auth path got %+v, want strict", got)
	}
	if got := profileForPath(defaults, "/api/v1/security/analyze"); got != defaults {
		t.Errorf("api path got %+v, want defaults", got)
	}
}

func TestClientIdentity(t *testing.T) {
	t.Run("api key wins", func(t *testing.T) {
		r := httptest.NewRequest("GET", "/api/v1/security/stats", nil)
		r.Header.Set("X-Forwarded-For", "10.0.0.1")
		ctx := context.WithValue(r.Context(), principalContextKey{}, &Principal{UserID: "u", APIKeyID: "key-1"})
		if got := ClientIdentity(r.WithContext(ctx)); got != "key:key-1" {
			t.Errorf("ClientIdentity = %q, want key:key-1", got)
		}
	})

	t.Run("first forwarded hop", func(t *testing.T) {
		r := httptest.NewRequest("GET", "/", nil)
		r.Header.Set("X-Forwarded-For", "203.0.113.9, 10.0.0.1")
		if got := ClientIdentity(r); got != "ip:203.0.113.9" {
			t.Errorf("ClientIdentity = %q", got)
		}
	})

	t.Run("real ip fallback", func(t *testing.T) {
		r := httptest.NewRequest("GET", "/", nil)
		r.Header.Set("X-Real-IP", "198.51.100.4")
		if got := ClientIdentity(r); got != "ip:198.51.100.4" {
			t.Errorf("ClientIdentity = %q", got)
		}
	})

	t.Run("peer address fallback", func(t *testing.T) {
		r := httptest.NewRequest("GET", "/", nil)
		r.RemoteAddr = "192.0.2.7:51234"
		if got := ClientIdentity(r); got != "ip:192.0.2.7" {
			t.Errorf("ClientIdentity = %q", got)
		}
	})
}

func TestRateLimitMiddlewareHeaders(t *testing.T) {
	l := NewSlidingWindowLimiter(LimitProfile{PerMinute: 1, PerHour: 10})
	defer l.Close()

	handler := l.Middleware(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	first := httptest.NewRecorder()
	handler.ServeHTTP(first, httptest.NewRequest("GET", "/api/v1/security/analyze", nil))
	if first.Code != http.StatusOK {
		t.Fatalf("first request status = %d", first.Code)
	}
	if got := first.Header().Get("X-RateLimit-Limit-Minute"); got != "1" {
		t.Errorf("X-RateLimit-Limit-Minute = %q", got)
	}

	second := httptest.NewRecorder()
	handler.ServeHTTP(second, httptest.NewRequest("GET", "/api/v1/security/analyze", nil))
	if second.Code != http.StatusTooManyRequests {
		t.Fatalf("second request status = %d, want 429", second.Code)
	}
	if got := second.Header().Get("Retry-After"); got != "60" {
		t.Errorf("Retry-After = %q, want 60", got)
	}
}

func TestRateLimitExemptPaths(t *testing.T) {
	l := NewSlidingWindowLimiter(LimitProfile{PerMinute: 1, PerHour: 1})
	defer l.Close()

	handler := l.Middleware(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	for i := 0; i < 5; i++ {
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, httptest.NewRequest("GET", "/health", nil))
		if rec.Code != http.StatusOK {
			t.Fatalf("health request %d status = %d", i+1, rec.Code)
		}
	}
}
