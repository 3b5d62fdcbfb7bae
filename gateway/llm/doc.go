// Copyright 2025 Rampart Security
// SPDX-License-Identifier: BUSL-1.1

// Package llm holds the upstream completion providers the proxy
// endpoint forwards to. Each provider speaks its vendor wire format
// and normalizes responses, including token usage, into a shared
// shape for cost attribution.
package llm
