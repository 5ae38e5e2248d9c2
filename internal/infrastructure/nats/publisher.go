// Copyright The Linux Foundation and each contributor to LFX.
// SPDX-License-Identifier: MIT

package nats

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/linuxfoundation/lfx-v2-search-gateway/internal/domain/model"
	"github.com/linuxfoundation/lfx-v2-search-gateway/internal/domain/port"
	"github.com/linuxfoundation/lfx-v2-search-gateway/pkg/constants"
)

// MessagePublisher is the part of *nats.Conn the publisher needs
type MessagePublisher interface {
	Publish(subject string, data []byte) error
}

// ChangePublisher announces index writes on a single subject.
type ChangePublisher struct {
	conn    MessagePublisher
	subject string
}

var _ port.ChangePublisher = (*ChangePublisher)(nil)

func (p *ChangePublisher) Publish(ctx context.Context, change model.IndexChange) error {
	data, err := json.Marshal(change)
	if err != nil {
		return fmt.Errorf("failed to encode index change for %s: %w", change.ID, err)
	}
	if err := p.conn.Publish(p.subject, data); err != nil {
		slog.ErrorContext(ctx, "failed to publish index change",
			"subject", p.subject,
			"id", change.ID,
			"error", err,
		)
		return fmt.Errorf("failed to publish index change: %w", err)
	}
	return nil
}

// NewChangePublisher publishes on subject, or on the default changes
// subject when subject is empty.
func NewChangePublisher(conn MessagePublisher, subject string) *ChangePublisher {
	if subject == "" {
		subject = constants.DefaultIndexChangesSubject
	}
	return &ChangePublisher{conn: conn, subject: subject}
}
