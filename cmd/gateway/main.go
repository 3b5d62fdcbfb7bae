// Copyright 2025 Rampart Security
// SPDX-License-Identifier: BUSL-1.1

// Package main is the entry point for the Rampart gateway service.
//
// The gateway is an AI security layer that:
// - Detects prompt injection and jailbreak attempts
// - Monitors model output for data exfiltration
// - Detects and redacts PII in content
// - Enforces user-defined content policies
// - Proxies LLM completions through stored provider credentials
//
// Usage:
//
//	./gateway
//
// Environment Variables:
//
//	PORT - HTTP server port (default: 8080)
//	DATABASE_URL - PostgreSQL connection string
//	REDIS_URL - optional Redis URL for distributed rate limiting
//	JWT_SECRET_KEY - secret for session token signing
//	RAMPART_KEY_ENCRYPTION_SECRET - secret for provider credential encryption
package main

import (
	"rampart/platform/gateway"
)

func main() {
	gateway.Run()
}
