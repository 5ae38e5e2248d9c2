// Copyright The Linux Foundation and each contributor to LFX.
// SPDX-License-Identifier: MIT

package notification

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/linuxfoundation/lfx-v2-search-gateway/internal/domain/model"
	"github.com/linuxfoundation/lfx-v2-search-gateway/internal/domain/port"
	"github.com/linuxfoundation/lfx-v2-search-gateway/internal/plugin"
	"github.com/linuxfoundation/lfx-v2-search-gateway/pkg/log"
)

// Router dispatches notification events to the handler of the plugin that
// declared the event type.
type Router struct {
	handlers      map[string]plugin.NotificationHandler
	owners        map[string]string
	subscriptions []model.TopicExchange
}

var _ port.EventDispatcher = (*Router)(nil)

// NewRouter builds the dispatch table from every registered plugin. Two
// plugins claiming one event type is a configuration error. A plugin whose
// notification streams cannot be read is left out of the subscriptions
// without affecting the others.
func NewRouter(ctx context.Context, registry *plugin.Registry) (*Router, error) {
	r := &Router{
		handlers: map[string]plugin.NotificationHandler{},
		owners:   map[string]string{},
	}
	seen := map[model.TopicExchange]struct{}{}

	for _, p := range registry.Plugins() {
		docType := p.DocumentType()
		handler := p.NotificationHandler()
		for _, eventType := range handler.EventTypes() {
			key := strings.ToLower(eventType)
			if owner, exists := r.owners[key]; exists {
				return nil, fmt.Errorf("event type %s is claimed by both %s and %s", key, owner, docType)
			}
			r.handlers[key] = handler
			r.owners[key] = docType
		}

		topics, err := p.NotificationTopicsExchanges()
		if err != nil {
			slog.ErrorContext(ctx, "plugin notification streams are invalid, not subscribing",
				"document_type", docType,
				"error", err,
			)
			continue
		}
		for _, topic := range topics {
			if topic.Topic == "" || topic.Exchange == "" {
				slog.ErrorContext(ctx, "plugin declared an incomplete notification stream",
					"document_type", docType,
					"topic", topic.Topic,
					"exchange", topic.Exchange,
				)
				continue
			}
			if _, dup := seen[topic]; dup {
				continue
			}
			seen[topic] = struct{}{}
			r.subscriptions = append(r.subscriptions, topic)
		}
	}

	slog.InfoContext(ctx, "notification router ready",
		"event_types", len(r.handlers),
		"subscriptions", len(r.subscriptions),
	)
	return r, nil
}

// Subscriptions returns the distinct (topic, exchange) pairs to listen on.
func (r *Router) Subscriptions() []model.TopicExchange {
	out := make([]model.TopicExchange, len(r.subscriptions))
	copy(out, r.subscriptions)
	return out
}

// Owner returns the document type handling eventType.
func (r *Router) Owner(eventType string) (string, bool) {
	owner, ok := r.owners[strings.ToLower(eventType)]
	return owner, ok
}

// Dispatch hands the event to its handler. Unknown event types are dropped.
// The returned outcome never asks the transport to redeliver.
func (r *Router) Dispatch(ctx context.Context, event model.NotificationEvent) model.Outcome {
	eventType := strings.ToLower(event.EventType)
	handler, ok := r.handlers[eventType]
	if !ok {
		slog.DebugContext(ctx, "ignoring notification with no handler",
			"event_type", event.EventType,
		)
		return model.OutcomeIgnored
	}

	ctx = log.AppendCtx(ctx, slog.String("event_type", eventType))
	event.EventType = eventType
	return handler.Handle(ctx, event)
}
