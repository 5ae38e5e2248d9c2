// Copyright The Linux Foundation and each contributor to LFX.
// SPDX-License-Identifier: MIT

package service

import (
	"context"
	"testing"

	"github.com/linuxfoundation/lfx-v2-search-gateway/internal/domain/model"
	"github.com/linuxfoundation/lfx-v2-search-gateway/internal/infrastructure/mock"
	"github.com/linuxfoundation/lfx-v2-search-gateway/internal/plugin"

	"github.com/stretchr/testify/require"
)

func newTestRegistry(t *testing.T, store *mock.MockDocumentStore) *plugin.Registry {
	t.Helper()
	dns := mock.NewMockDNSSource()
	recordSets := plugin.NewRecordSetPlugin(store, dns)
	registry, err := plugin.NewRegistry(
		plugin.NewImagePlugin(store, mock.NewMockImageSource(), nil),
		plugin.NewServerPlugin(store, mock.NewMockComputeSource()),
		plugin.NewZonePlugin(store, dns, recordSets),
		recordSets,
	)
	require.NoError(t, err)
	return registry
}

// seed serializes and stores source through the plugin of docType.
func seed(t *testing.T, registry *plugin.Registry, store *mock.MockDocumentStore, docType string, source map[string]any) {
	t.Helper()
	p, ok := registry.Plugin(docType)
	require.True(t, ok)
	doc, err := p.Serialize(context.Background(), source)
	require.NoError(t, err)
	require.NoError(t, store.Index(context.Background(), doc))
}

func tenant(projectID string, roles ...string) model.Requester {
	return model.NewRequester("user-"+projectID, projectID, roles)
}

func admin(projectID string) model.Requester {
	return model.NewRequester("admin-"+projectID, projectID, []string{"admin"})
}
