// Copyright The Linux Foundation and each contributor to LFX.
// SPDX-License-Identifier: MIT

package httpclient

import (
	"time"
)

// Config holds the configuration for the HTTP client
type Config struct {
	// Timeout is the HTTP client timeout for requests
	Timeout time.Duration

	// MaxRetries is the maximum number of retry attempts for failed requests
	MaxRetries int

	// RetryDelay is the delay between retry attempts
	RetryDelay time.Duration

	// RetryBackoff enables exponential backoff for retries
	RetryBackoff bool

	// RequestsPerSecond caps outgoing requests, zero disables the limiter
	RequestsPerSecond float64

	// Burst is the number of requests allowed above the steady rate
	Burst int
}

// DefaultConfig returns a Config with sensible defaults
func DefaultConfig() Config {
	return Config{
		Timeout:           30 * time.Second,
		MaxRetries:        2,
		RetryDelay:        1 * time.Second,
		RetryBackoff:      true,
		RequestsPerSecond: 10,
		Burst:             5,
	}
}
