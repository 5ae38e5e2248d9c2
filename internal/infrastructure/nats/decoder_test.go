// Copyright The Linux Foundation and each contributor to LFX.
// SPDX-License-Identifier: MIT

package nats

import (
	"encoding/json"
	"testing"

	"github.com/linuxfoundation/lfx-v2-search-gateway/internal/domain/model"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func osloWrap(t *testing.T, message map[string]any) []byte {
	t.Helper()
	inner, err := json.Marshal(message)
	require.NoError(t, err)
	outer, err := json.Marshal(map[string]any{
		"oslo.version": "2.0",
		"oslo.message": string(inner),
	})
	require.NoError(t, err)
	return outer
}

func TestDecodeNotification(t *testing.T) {
	tests := []struct {
		name     string
		data     func(t *testing.T) []byte
		expected model.NotificationEvent
	}{
		{
			name: "plain notification",
			data: func(t *testing.T) []byte {
				return []byte(`{
					"event_type": "compute.instance.update",
					"publisher_id": "compute.host1",
					"payload": {"instance_id": "s1"},
					"timestamp": "2026-10-01 10:00:00.000000",
					"message_id": "m-1",
					"priority": "INFO"
				}`)
			},
			expected: model.NotificationEvent{
				EventType:   "compute.instance.update",
				PublisherID: "compute.host1",
				Payload:     map[string]any{"instance_id": "s1"},
				Context:     map[string]any{},
				Metadata: map[string]any{
					"message_id": "m-1",
					"timestamp":  "2026-10-01 10:00:00.000000",
					"priority":   "INFO",
				},
			},
		},
		{
			name: "oslo envelope with request context",
			data: func(t *testing.T) []byte {
				return osloWrap(t, map[string]any{
					"event_type":          "dns.zone.create",
					"publisher_id":        "central.host1",
					"payload":             map[string]any{"id": "Z1"},
					"message_id":          "m-2",
					"_context_project_id": "T1",
					"_context_roles":      []any{"member"},
				})
			},
			expected: model.NotificationEvent{
				EventType:   "dns.zone.create",
				PublisherID: "central.host1",
				Payload:     map[string]any{"id": "Z1"},
				Context: map[string]any{
					"project_id": "T1",
					"roles":      []any{"member"},
				},
				Metadata: map[string]any{"message_id": "m-2"},
			},
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			assertion := assert.New(t)

			event, err := decodeNotification(tc.data(t))

			require.NoError(t, err)
			assertion.Equal(tc.expected, event)
		})
	}
}

func TestDecodeNotificationRejects(t *testing.T) {
	tests := []struct {
		name string
		data string
	}{
		{name: "not json", data: `event`},
		{name: "json array", data: `[1, 2]`},
		{name: "missing event type", data: `{"payload": {}}`},
		{name: "event type is not a string", data: `{"event_type": 7, "payload": {}}`},
		{name: "missing payload", data: `{"event_type": "image.update"}`},
		{name: "payload is not an object", data: `{"event_type": "image.update", "payload": "x"}`},
		{name: "oslo message is not a string", data: `{"oslo.message": {"event_type": "image.update"}}`},
		{name: "oslo message is not json", data: `{"oslo.message": "{"}`},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := decodeNotification([]byte(tc.data))
			assert.Error(t, err)
		})
	}
}
