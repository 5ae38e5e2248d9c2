// Copyright The Linux Foundation and each contributor to LFX.
// SPDX-License-Identifier: MIT

package mock

import (
	"context"
	"log/slog"
	"slices"
	"sync"

	"github.com/linuxfoundation/lfx-v2-search-gateway/internal/domain/model"
	"github.com/linuxfoundation/lfx-v2-search-gateway/internal/domain/port"
)

// MockChangePublisher records published index changes.
type MockChangePublisher struct {
	mu      sync.Mutex
	changes []model.IndexChange
	err     error
}

// NewMockChangePublisher creates a recording publisher.
func NewMockChangePublisher() *MockChangePublisher {
	return &MockChangePublisher{}
}

var _ port.ChangePublisher = (*MockChangePublisher)(nil)

// Publish records change.
func (m *MockChangePublisher) Publish(ctx context.Context, change model.IndexChange) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	slog.DebugContext(ctx, "mock index change published",
		"operation", change.Operation,
		"document_type", change.Type,
		"id", change.ID,
	)
	m.changes = append(m.changes, change)
	return nil
}

// Changes returns the changes published so far.
func (m *MockChangePublisher) Changes() []model.IndexChange {
	m.mu.Lock()
	defer m.mu.Unlock()
	return slices.Clone(m.changes)
}

// SetError makes Publish fail with err.
func (m *MockChangePublisher) SetError(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.err = err
}
