// Copyright The Linux Foundation and each contributor to LFX.
// SPDX-License-Identifier: MIT

package nats

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/nats-io/nats.go"
)

// Connect opens the connection shared by the listener and the publisher.
func Connect(ctx context.Context, config Config) (*nats.Conn, error) {
	slog.InfoContext(ctx, "creating NATS connection",
		"url", config.URL,
		"timeout", config.Timeout,
	)

	// Configure NATS connection options
	opts := []nats.Option{
		nats.Name("lfx-v2-search-gateway"),
		nats.Timeout(config.Timeout),
		nats.MaxReconnects(config.MaxReconnect),
		nats.ReconnectWait(config.ReconnectWait),
		nats.DisconnectErrHandler(func(nc *nats.Conn, err error) {
			slog.WarnContext(ctx, "NATS disconnected", "error", err)
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			slog.InfoContext(ctx, "NATS reconnected", "url", nc.ConnectedUrl())
		}),
		nats.ClosedHandler(func(nc *nats.Conn) {
			slog.InfoContext(ctx, "NATS connection closed")
		}),
		nats.ErrorHandler(func(nc *nats.Conn, sub *nats.Subscription, err error) {
			subject := ""
			if sub != nil {
				subject = sub.Subject
			}
			if errors.Is(err, nats.ErrSlowConsumer) {
				// nats.go has dropped messages for this subscription
				pending := 0
				if sub != nil {
					pending, _, _ = sub.Pending()
				}
				slog.ErrorContext(ctx, "NATS slow consumer, notifications were dropped",
					"subject", subject,
					"pending", pending,
					"error", err,
				)
				return
			}
			slog.ErrorContext(ctx, "NATS async error", "subject", subject, "error", err)
		}),
	}

	// Establish connection
	conn, err := nats.Connect(config.URL, opts...)
	if err != nil {
		slog.ErrorContext(ctx, "failed to connect to NATS", "error", err)
		return nil, fmt.Errorf("failed to connect to NATS: %w", err)
	}

	slog.InfoContext(ctx, "NATS connection created successfully",
		"connected_url", conn.ConnectedUrl(),
		"status", conn.Status(),
	)

	return conn, nil
}
