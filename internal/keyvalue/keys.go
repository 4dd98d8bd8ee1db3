// Copyright (c) 2018 The Activity Stream Authors.
// SPDX-License-Identifier: Apache-2.0

package keyvalue

// Well-known keys shared by the gateway and the ingester.
const (
	// LockKey is held by the single active ingester.
	LockKey = "lock"
	// MetricsKey caches the rendered metrics exposition bytes.
	MetricsKey = "metrics"
	// CheckKey is round-tripped by the health endpoint.
	CheckKey = "redis-check"
)

// NonceKey identifies one (key id, nonce) pair for replay detection.
func NonceKey(keyID, nonce string) string {
	return "nonce-" + keyID + "-" + nonce
}

// ScrollKey maps a public scroll id to the backend's private one.
func ScrollKey(publicID string) string {
	return "scroll-id-" + publicID
}

// FeedStatusKey holds the per-feed health flag written after each
// successful ingest cycle.
func FeedStatusKey(feedID string) string {
	return "feed-status-" + feedID
}
