// Copyright The Linux Foundation and each contributor to LFX.
// SPDX-License-Identifier: MIT

package nats

import (
	"time"
)

// Config represents NATS configuration
type Config struct {
	// URL is the NATS server URL
	URL string `json:"url"`
	// Timeout is the connection timeout duration
	Timeout time.Duration `json:"timeout"`
	// MaxReconnect is the maximum number of reconnection attempts
	MaxReconnect int `json:"max_reconnect"`
	// ReconnectWait is the time to wait between reconnection attempts
	ReconnectWait time.Duration `json:"reconnect_wait"`
	// Queue is the queue group notification subscriptions join
	Queue string `json:"queue"`
	// Workers is the number of goroutines handling notifications
	Workers int `json:"workers"`
	// ChangesSubject receives one message per document written or removed
	ChangesSubject string `json:"changes_subject"`
}

// notificationEnvelope is the body of a notification message once any
// messaging envelope has been removed.
type notificationEnvelope struct {
	EventType   string         `json:"event_type"`
	PublisherID string         `json:"publisher_id"`
	Payload     map[string]any `json:"payload"`
	Timestamp   string         `json:"timestamp,omitempty"`
	MessageID   string         `json:"message_id,omitempty"`
	Priority    string         `json:"priority,omitempty"`
}
