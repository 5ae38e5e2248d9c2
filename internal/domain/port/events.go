// Copyright The Linux Foundation and each contributor to LFX.
// SPDX-License-Identifier: MIT

package port

import (
	"context"

	"github.com/linuxfoundation/lfx-v2-search-gateway/internal/domain/model"
)

// EventDispatcher consumes notification events delivered by a transport.
type EventDispatcher interface {
	Dispatch(ctx context.Context, event model.NotificationEvent) model.Outcome
}

// ChangePublisher announces writes the gateway made to the index.
type ChangePublisher interface {
	Publish(ctx context.Context, change model.IndexChange) error
}
