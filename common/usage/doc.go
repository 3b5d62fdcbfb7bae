// Copyright 2025 Rampart Security
// SPDX-License-Identifier: BUSL-1.1

// Package usage meters API key traffic into hourly Postgres buckets and
// prices LLM completions. Recording happens off the request path on a
// single writer goroutine; a metering failure is logged, never returned
// to the caller.
package usage
