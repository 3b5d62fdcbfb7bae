// Copyright 2025 Rampart Security
// SPDX-License-Identifier: BUSL-1.1

/*
Package logger provides structured JSON logging for Rampart gateway
components.

# Overview

The logger outputs one JSON object per line to stdout, making logs easily
consumable by CloudWatch, ELK stack, or other log aggregation systems.

Each log entry includes:
  - Timestamp (RFC3339Nano format)
  - Log level (DEBUG, INFO, WARN, ERROR)
  - Component name (gateway, usage, llm-proxy, etc.)
  - Instance ID and container name (for distributed tracing)
  - API key ID (for per-tenant isolation)
  - Request ID (for request correlation)
  - Custom fields

# Usage

Create a logger for your component:

	log := logger.New("gateway")

Log messages with key and request context:

	log.Info("key-123", "req-456", "Analyzing prompt", map[string]interface{}{
	    "endpoint": "/api/v1/security/analyze",
	})

Log errors with status codes:

	log.ErrorWithCode("key-123", "req-456", "Analysis failed", 500, err, nil)

Log with duration tracking:

	start := time.Now()
	// ... do work ...
	log.InfoWithDuration("key-123", "req-456", "Analysis completed",
	    float64(time.Since(start).Milliseconds()), nil)

# Environment Variables

The logger reads these environment variables:

  - INSTANCE_ID: Deployment instance identifier
  - LOG_LEVEL: Minimum level to emit (default INFO)

# Thread Safety

Logger instances are safe for concurrent use from multiple goroutines.
*/
package logger
