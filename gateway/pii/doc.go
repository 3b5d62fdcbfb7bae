// Package pii detects and redacts personally identifiable information
// in text. Detection combines a pinned regex catalogue with checksum
// validators, caller-supplied custom patterns, and an optional
// model-backed entity labeler. The package also carries the toxicity
// scoring plug-point used by the content filter endpoints.
package pii
