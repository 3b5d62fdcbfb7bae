// Copyright 2025 Rampart Security
// SPDX-License-Identifier: BUSL-1.1

package usage

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"sync"
	"time"
)

// upsertSQL accumulates one hit into its hourly bucket. The unique
// index on (api_key_id, endpoint, usage_date, usage_hour) makes the
// increments commutative, so concurrent writers cannot lose counts.
const upsertSQL = `
	INSERT INTO rampart_api_key_usage (
		api_key_id, endpoint, usage_date, usage_hour,
		request_count, success_count, error_count, total_tokens, total_cost_cents
	) VALUES ($1, $2, $3, $4, 1, $5, $6, $7, $8)
	ON CONFLICT (api_key_id, endpoint, usage_date, usage_hour)
	DO UPDATE SET
		request_count = rampart_api_key_usage.request_count + 1,
		success_count = rampart_api_key_usage.success_count + $5,
		error_count = rampart_api_key_usage.error_count + $6,
		total_tokens = rampart_api_key_usage.total_tokens + $7,
		total_cost_cents = rampart_api_key_usage.total_cost_cents + $8,
		updated_at = NOW()
`

// Recorder meters API key usage off the request path. Track enqueues
// onto a buffered channel drained by a single writer goroutine; a full
// queue drops the event rather than blocking a request, and database
// failures are logged, never surfaced to callers.
type Recorder struct {
	db     *sql.DB
	events chan Event

	closeOnce sync.Once
	done      chan struct{}
}

// queueSize bounds the in-flight event backlog. At typical write
// latency this covers multi-second database stalls.
const queueSize = 4096

// NewRecorder creates a recorder and starts its writer goroutine.
func NewRecorder(db *sql.DB) *Recorder {
	r := &Recorder{
		db:     db,
		events: make(chan Event, queueSize),
		done:   make(chan struct{}),
	}
	go r.writeLoop()
	return r
}

// Track enqueues one usage event. Never blocks; an overflowing queue
// drops the event with a log line.
func (r *Recorder) Track(event Event) {
	if event.APIKeyID == "" {
		return
	}
	select {
	case r.events <- event:
	default:
		log.Printf("[USAGE] queue full, dropping event for key %s endpoint %s", event.APIKeyID, event.Endpoint)
	}
}

// writeLoop drains the queue into the bucket upsert.
func (r *Recorder) writeLoop() {
	defer close(r.done)

	for event := range r.events {
		if err := r.record(context.Background(), event); err != nil {
			log.Printf("[USAGE] failed to record usage for key %s: %v", event.APIKeyID, err)
		}
	}
}

// record performs the atomic bucket upsert for one event.
func (r *Recorder) record(ctx context.Context, event Event) error {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	now := time.Now().UTC()
	success, failure := 1, 0
	if !event.Success {
		success, failure = 0, 1
	}

	_, err := r.db.ExecContext(ctx, upsertSQL,
		event.APIKeyID, event.Endpoint,
		now.Format("2006-01-02"), now.Hour(),
		success, failure, event.Tokens, event.CostCents)
	return err
}

// Close stops accepting events and waits for the queue to drain.
func (r *Recorder) Close() {
	r.closeOnce.Do(func() {
		close(r.events)
		<-r.done
	})
}

// SummarizeKey rolls up one key's buckets since the window start.
func (r *Recorder) SummarizeKey(ctx context.Context, apiKeyID string, since time.Time) (*KeySummary, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT endpoint, usage_date, usage_hour,
		       request_count, success_count, error_count, total_tokens, total_cost_cents
		FROM rampart_api_key_usage
		WHERE api_key_id = $1 AND usage_date >= $2
		ORDER BY usage_date DESC, usage_hour DESC
	`, apiKeyID, since.UTC().Format("2006-01-02"))
	if err != nil {
		return nil, fmt.Errorf("failed to query usage: %w", err)
	}
	defer rows.Close()

	summary := &KeySummary{
		APIKeyID:   apiKeyID,
		ByEndpoint: map[string]int64{},
		Buckets:    []BucketSummary{},
	}

	for rows.Next() {
		var b BucketSummary
		if err := rows.Scan(&b.Endpoint, &b.Date, &b.Hour,
			&b.RequestCount, &b.SuccessCount, &b.ErrorCount,
			&b.TotalTokens, &b.CostCents); err != nil {
			return nil, fmt.Errorf("failed to scan usage row: %w", err)
		}

		summary.RequestCount += b.RequestCount
		summary.SuccessCount += b.SuccessCount
		summary.ErrorCount += b.ErrorCount
		summary.TotalTokens += b.TotalTokens
		summary.CostCents += b.CostCents
		summary.ByEndpoint[b.Endpoint] += b.RequestCount
		summary.Buckets = append(summary.Buckets, b)
	}
	return summary, rows.Err()
}
