// Copyright The Linux Foundation and each contributor to LFX.
// SPDX-License-Identifier: MIT

package port

import (
	"context"

	"github.com/linuxfoundation/lfx-v2-search-gateway/internal/domain/model"
)

// Authenticator defines the interface for authentication operations
type Authenticator interface {
	// ParseRequester validates a bearer token and returns the identity it carries
	ParseRequester(ctx context.Context, token string) (model.Requester, error)
}
