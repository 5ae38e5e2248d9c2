// Copyright The Linux Foundation and each contributor to LFX.
// SPDX-License-Identifier: MIT

package model

import "time"

// NotificationEvent is one change message emitted by an upstream service.
type NotificationEvent struct {
	EventType   string
	PublisherID string
	Payload     map[string]any
	Context     map[string]any
	Metadata    map[string]any
}

// TopicExchange names one notification stream a plugin listens to.
type TopicExchange struct {
	Topic    string
	Exchange string
}

// Subject returns the transport subject for the pair at the given priority.
func (t TopicExchange) Subject(priority string) string {
	return t.Exchange + "." + t.Topic + "." + priority
}

// Outcome is the result of dispatching one event. Every outcome is
// acknowledged to the transport.
type Outcome int

// Dispatch outcomes.
const (
	OutcomeHandled Outcome = iota
	OutcomeIgnored
	OutcomeFailed
)

func (o Outcome) String() string {
	switch o {
	case OutcomeHandled:
		return "handled"
	case OutcomeIgnored:
		return "ignored"
	case OutcomeFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// Index change operations.
const (
	ChangeIndexed = "indexed"
	ChangeDeleted = "deleted"
)

// IndexChange is published after the gateway writes to the index.
type IndexChange struct {
	Operation string         `json:"operation"`
	Type      string         `json:"type"`
	ID        string         `json:"id"`
	Index     string         `json:"index"`
	Parent    string         `json:"parent,omitempty"`
	Source    map[string]any `json:"source,omitempty"`
	Timestamp time.Time      `json:"timestamp"`
}
