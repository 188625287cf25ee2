// Package provider holds the pieces shared by all external rate sources:
// the fetch error taxonomy and the transport retry policy.
package provider

import "errors"

var (
	// ErrTransport tags network-level failures (connection refused, timeout,
	// non-success status after the retry budget is exhausted)
	ErrTransport = errors.New("transport failure")

	// ErrParse tags malformed payloads: broken HTML / JSON, or an expected
	// field that is missing or fails numeric parsing. Never retried
	ErrParse = errors.New("malformed source payload")

	// ErrNoAdvertisements tags an empty P2P market result
	ErrNoAdvertisements = errors.New("no advertisements returned")
)
