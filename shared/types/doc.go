// Copyright 2025 Rampart Security
// SPDX-License-Identifier: BUSL-1.1

/*
Package types provides shared type definitions used across Rampart gateway
components.

# Deployment Modes

The gateway supports two deployment modes:

SaaS Mode (multi-tenant):
  - Strict per-key isolation
  - Refuses to boot with development-default secrets

Self-Hosted Mode (single-tenant):
  - Relaxed secret requirements for local evaluation
  - Self-managed deployment controls

# Thread Safety

All types in this package are value types and are safe for concurrent use.
*/
package types
