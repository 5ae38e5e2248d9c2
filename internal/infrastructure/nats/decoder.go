// Copyright The Linux Foundation and each contributor to LFX.
// SPDX-License-Identifier: MIT

package nats

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/linuxfoundation/lfx-v2-search-gateway/internal/domain/model"
	"github.com/linuxfoundation/lfx-v2-search-gateway/pkg/constants"
)

// decodeNotification parses a message body into a notification event.
// Bodies wrapped in an oslo.message string are unwrapped first, and every
// _context_ key of the message becomes part of the event context.
func decodeNotification(data []byte) (model.NotificationEvent, error) {
	var message map[string]any
	if err := json.Unmarshal(data, &message); err != nil {
		return model.NotificationEvent{}, fmt.Errorf("notification is not a JSON object: %w", err)
	}

	if raw, wrapped := message[constants.OsloMessageKey]; wrapped {
		inner, ok := raw.(string)
		if !ok {
			return model.NotificationEvent{}, fmt.Errorf("%s must be a string", constants.OsloMessageKey)
		}
		message = nil
		if err := json.Unmarshal([]byte(inner), &message); err != nil {
			return model.NotificationEvent{}, fmt.Errorf("%s is not a JSON object: %w", constants.OsloMessageKey, err)
		}
	}

	eventCtx := map[string]any{}
	for key, value := range message {
		if name, ok := strings.CutPrefix(key, constants.OsloContextPrefix); ok {
			eventCtx[name] = value
			delete(message, key)
		}
	}

	// Round-trip through the typed envelope so field types are checked once.
	body, err := json.Marshal(message)
	if err != nil {
		return model.NotificationEvent{}, err
	}
	var envelope notificationEnvelope
	if err := json.Unmarshal(body, &envelope); err != nil {
		return model.NotificationEvent{}, fmt.Errorf("malformed notification: %w", err)
	}
	if envelope.EventType == "" {
		return model.NotificationEvent{}, fmt.Errorf("notification has no event_type")
	}
	if envelope.Payload == nil {
		return model.NotificationEvent{}, fmt.Errorf("notification %s has no payload", envelope.EventType)
	}

	metadata := map[string]any{}
	for key, value := range map[string]string{
		"message_id": envelope.MessageID,
		"timestamp":  envelope.Timestamp,
		"priority":   envelope.Priority,
	} {
		if value != "" {
			metadata[key] = value
		}
	}

	return model.NotificationEvent{
		EventType:   envelope.EventType,
		PublisherID: envelope.PublisherID,
		Payload:     envelope.Payload,
		Context:     eventCtx,
		Metadata:    metadata,
	}, nil
}
