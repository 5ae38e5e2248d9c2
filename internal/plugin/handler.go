// Copyright The Linux Foundation and each contributor to LFX.
// SPDX-License-Identifier: MIT

package plugin

import (
	"context"
	"fmt"
	"log/slog"
	"runtime/debug"
	"slices"
	"strings"

	"github.com/linuxfoundation/lfx-v2-search-gateway/internal/domain/model"
	"github.com/linuxfoundation/lfx-v2-search-gateway/pkg/log"
)

// Action applies one kind of notification to the index.
type Action func(ctx context.Context, payload map[string]any) error

// NotificationHandler translates a plugin's notifications into index mutations.
type NotificationHandler interface {
	// EventTypes lists the lower-cased event types the handler accepts
	EventTypes() []string
	// Handle never returns an error; failures are logged and reported as
	// model.OutcomeFailed
	Handle(ctx context.Context, event model.NotificationEvent) model.Outcome
}

type handler struct {
	docType string
	actions map[string]Action
}

func newHandler(docType string, actions map[string]Action) *handler {
	h := &handler{
		docType: docType,
		actions: make(map[string]Action, len(actions)),
	}
	for eventType, action := range actions {
		h.actions[strings.ToLower(eventType)] = action
	}
	return h
}

func (h *handler) EventTypes() []string {
	types := make([]string, 0, len(h.actions))
	for eventType := range h.actions {
		types = append(types, eventType)
	}
	slices.Sort(types)
	return types
}

func (h *handler) Handle(ctx context.Context, event model.NotificationEvent) (outcome model.Outcome) {
	eventType := strings.ToLower(event.EventType)
	ctx = log.AppendCtx(ctx, slog.String("document_type", h.docType))

	action, ok := h.actions[eventType]
	if !ok {
		slog.WarnContext(ctx, "handler received an event type it does not support",
			"event_type", event.EventType,
		)
		return model.OutcomeIgnored
	}

	defer func() {
		if r := recover(); r != nil {
			slog.ErrorContext(ctx, "panic while processing notification",
				"event_type", eventType,
				"publisher_id", event.PublisherID,
				"panic", fmt.Sprint(r),
				"stack", string(debug.Stack()),
			)
			outcome = model.OutcomeFailed
		}
	}()

	if err := action(ctx, event.Payload); err != nil {
		slog.ErrorContext(ctx, "failed to process notification",
			"event_type", eventType,
			"publisher_id", event.PublisherID,
			"error", err,
		)
		return model.OutcomeFailed
	}

	slog.DebugContext(ctx, "notification processed",
		"event_type", eventType,
	)
	return model.OutcomeHandled
}
