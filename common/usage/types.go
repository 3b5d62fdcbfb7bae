// Copyright 2025 Rampart Security
// SPDX-License-Identifier: BUSL-1.1

package usage

import "time"

// Event is one metered hit against an API key. Events are folded into
// the (api_key_id, endpoint, UTC date, UTC hour) bucket counters.
type Event struct {
	APIKeyID string
	Endpoint string
	Success  bool
	Tokens   int

	// CostCents is the LLM cost attributed to this hit, zero for
	// non-LLM endpoints.
	CostCents int
}

// BucketSummary is one hourly counter row.
type BucketSummary struct {
	Endpoint     string    `json:"endpoint"`
	Date         time.Time `json:"date"`
	Hour         int       `json:"hour"`
	RequestCount int64     `json:"request_count"`
	SuccessCount int64     `json:"success_count"`
	ErrorCount   int64     `json:"error_count"`
	TotalTokens  int64     `json:"total_tokens"`
	CostCents    int64     `json:"total_cost_cents"`
}

// KeySummary is the roll-up for one API key over a window.
type KeySummary struct {
	APIKeyID     string           `json:"api_key_id"`
	RequestCount int64            `json:"request_count"`
	SuccessCount int64            `json:"success_count"`
	ErrorCount   int64            `json:"error_count"`
	TotalTokens  int64            `json:"total_tokens"`
	CostCents    int64            `json:"total_cost_cents"`
	ByEndpoint   map[string]int64 `json:"by_endpoint"`
	Buckets      []BucketSummary  `json:"buckets,omitempty"`
}
