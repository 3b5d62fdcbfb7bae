// Copyright 2025 Rampart Security
// SPDX-License-Identifier: BUSL-1.1

package gateway

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/go-redis/redis/v8"
)

// RedisLimiter is the distributed variant of the sliding-window
// limiter, for multi-instance deployments where each gateway must see
// the same counters. Redis errors fail open: a degraded limiter must
// not take the API down.
type RedisLimiter struct {
	client   *redis.Client
	defaults LimitProfile
}

// NewRedisLimiter connects to Redis and verifies the connection.
func NewRedisLimiter(redisURL string, defaults LimitProfile) (*RedisLimiter, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse Redis URL: %w", err)
	}

	client := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	return &RedisLimiter{client: client, defaults: defaults}, nil
}

// NewRedisLimiterWithClient wraps an existing client (used in tests).
func NewRedisLimiterWithClient(client *redis.Client, defaults LimitProfile) *RedisLimiter {
	return &RedisLimiter{client: client, defaults: defaults}
}

// Allow records one request and checks both windows. Each window is a
// sorted set of nanosecond stamps scored by unix seconds; one pipeline
// prunes, counts, appends and refreshes the TTL.
func (l *RedisLimiter) Allow(ctx context.Context, clientID string, profile LimitProfile) LimitDecision {
	minuteCount, minuteOK := l.windowCount(ctx, clientID, "1m", time.Minute)
	hourCount, hourOK := l.windowCount(ctx, clientID, "1h", time.Hour)
	if !minuteOK || !hourOK {
		// Fail open on Redis errors
		return LimitDecision{Allowed: true, RemainingMinute: profile.PerMinute, RemainingHour: profile.PerHour}
	}

	if minuteCount > profile.PerMinute {
		return LimitDecision{RemainingHour: remaining(profile.PerHour, hourCount), RetryAfter: 60}
	}
	if hourCount > profile.PerHour {
		return LimitDecision{RemainingMinute: remaining(profile.PerMinute, minuteCount), RetryAfter: 3600}
	}

	return LimitDecision{
		Allowed:         true,
		RemainingMinute: remaining(profile.PerMinute, minuteCount),
		RemainingHour:   remaining(profile.PerHour, hourCount),
	}
}

// windowCount maintains one sliding window and returns the request
// count including the current request.
func (l *RedisLimiter) windowCount(ctx context.Context, clientID, suffix string, horizon time.Duration) (int, bool) {
	now := time.Now()
	key := fmt.Sprintf("ratelimit:%s:%s", clientID, suffix)

	pipe := l.client.Pipeline()

	minScore := now.Add(-horizon).Unix()
	pipe.ZRemRangeByScore(ctx, key, "0", fmt.Sprintf("%d", minScore))
	pipe.ZAdd(ctx, key, &redis.Z{
		Score:  float64(now.Unix()),
		Member: fmt.Sprintf("%d", now.UnixNano()),
	})
	card := pipe.ZCard(ctx, key)
	pipe.Expire(ctx, key, horizon+time.Minute)

	if _, err := pipe.Exec(ctx); err != nil {
		log.Printf("[RATELIMIT] Redis check failed for %s: %v (failing open)", clientID, err)
		return 0, false
	}

	return int(card.Val()), true
}

// Middleware enforces the shared windows, mirroring the in-memory
// limiter's header and rejection behavior.
func (l *RedisLimiter) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if _, exempt := rateLimitExemptPaths[r.URL.Path]; exempt {
			next.ServeHTTP(w, r)
			return
		}

		profile := profileForPath(l.defaults, r.URL.Path)
		decision := l.Allow(r.Context(), ClientIdentity(r), profile)
		writeLimitHeaders(w, profile, decision)

		if !decision.Allowed {
			promRateLimitRejections.Inc()
			writeRateLimited(w, decision.RetryAfter)
			return
		}

		next.ServeHTTP(w, r)
	})
}

// Defaults returns the limiter's default profile.
func (l *RedisLimiter) Defaults() LimitProfile {
	return l.defaults
}

// Close releases the Redis connection.
func (l *RedisLimiter) Close() error {
	return l.client.Close()
}
