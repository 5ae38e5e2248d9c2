// Copyright The Linux Foundation and each contributor to LFX.
// SPDX-License-Identifier: MIT

package mock

import (
	"context"
	"log/slog"
	"os"
	"strings"

	"github.com/linuxfoundation/lfx-v2-search-gateway/internal/domain/model"
	"github.com/linuxfoundation/lfx-v2-search-gateway/internal/domain/port"
	"github.com/linuxfoundation/lfx-v2-search-gateway/pkg/errors"
)

// MockAuthService provides a mock implementation of the authentication service
type MockAuthService struct{}

// ParseRequester returns a requester built from environment variables (ignores token parameter)
func (m *MockAuthService) ParseRequester(ctx context.Context, token string) (model.Requester, error) {

	principal := os.Getenv("JWT_AUTH_DISABLED_MOCK_LOCAL_PRINCIPAL")
	if principal == "" {
		return model.Requester{}, errors.NewUnauthorized("mock principal not configured in JWT_AUTH_DISABLED_MOCK_LOCAL_PRINCIPAL")
	}

	var roles []string
	if raw := os.Getenv("MOCK_ROLES"); raw != "" {
		roles = strings.Split(raw, ",")
	}
	requester := model.NewRequester(principal, os.Getenv("MOCK_PROJECT_ID"), roles)

	slog.DebugContext(ctx, "parsed mock requester",
		"user_id", requester.UserID,
		"project_id", requester.ProjectID,
		"admin", requester.IsAdmin,
	)

	return requester, nil
}

// NewMockAuthService creates a new mock authentication service
func NewMockAuthService() port.Authenticator {
	return &MockAuthService{}
}
