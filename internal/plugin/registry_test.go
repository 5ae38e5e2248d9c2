// Copyright The Linux Foundation and each contributor to LFX.
// SPDX-License-Identifier: MIT

package plugin

import (
	"testing"

	"github.com/linuxfoundation/lfx-v2-search-gateway/internal/domain/model"
	"github.com/linuxfoundation/lfx-v2-search-gateway/internal/infrastructure/mock"
	"github.com/linuxfoundation/lfx-v2-search-gateway/pkg/constants"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestPlugins(opts ...Option) []Plugin {
	store := mock.NewMockDocumentStore()
	dns := mock.NewMockDNSSource()
	recordSets := NewRecordSetPlugin(store, dns, opts...)
	return []Plugin{
		NewImagePlugin(store, mock.NewMockImageSource(), nil, opts...),
		NewServerPlugin(store, mock.NewMockComputeSource(), opts...),
		NewZonePlugin(store, dns, recordSets, opts...),
		recordSets,
	}
}

func TestNewRegistry(t *testing.T) {
	store := mock.NewMockDocumentStore()
	dns := mock.NewMockDNSSource()
	recordSets := NewRecordSetPlugin(store, dns)
	zones := NewZonePlugin(store, dns, recordSets)

	tests := []struct {
		name        string
		plugins     []Plugin
		expectError bool
	}{
		{name: "all plugins", plugins: newTestPlugins()},
		{name: "nothing registered", plugins: nil, expectError: true},
		{name: "duplicate type", plugins: []Plugin{zones, recordSets, zones}, expectError: true},
		{name: "child without its parent", plugins: []Plugin{recordSets}, expectError: true},
		{
			name:        "child in another index than its parent",
			plugins:     []Plugin{zones, NewRecordSetPlugin(store, dns, WithIndex("dns"))},
			expectError: true,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			assertion := assert.New(t)

			registry, err := NewRegistry(tc.plugins...)

			if tc.expectError {
				assertion.Error(err)
				assertion.Nil(registry)
				return
			}
			assertion.NoError(err)
			assertion.NotNil(registry)
		})
	}
}

func TestRegistryLookups(t *testing.T) {
	assertion := assert.New(t)
	registry, err := NewRegistry(newTestPlugins()...)
	require.NoError(t, err)

	assertion.Equal([]string{ImageType, ServerType, ZoneType, RecordSetType}, registry.Types())
	assertion.Equal([]string{constants.DefaultIndex}, registry.Indices())

	p, ok := registry.Plugin(ZoneType)
	assertion.True(ok)
	assertion.Equal(ZoneType, p.DocumentType())
	_, ok = registry.Plugin("OS::Unknown")
	assertion.False(ok)

	info := registry.Info()
	assertion.Len(info, 4)
	for _, entry := range info {
		assertion.Equal(constants.DefaultIndex, entry.Index)
		assertion.Equal(entry.Type, entry.Name)
	}

	raw := registry.RawFields([]string{ZoneType, "OS::Unknown"})
	assertion.Equal(map[string]struct{}{"name": {}}, raw)
}

func TestRegistryMapping(t *testing.T) {
	assertion := assert.New(t)
	registry, err := NewRegistry(newTestPlugins()...)
	require.NoError(t, err)

	mapping, err := registry.Mapping(constants.DefaultIndex)
	require.NoError(t, err)

	properties := mapping["properties"].(map[string]any)
	assertion.Equal(map[string]any{"type": "keyword"}, properties[constants.DocumentTypeField])
	assertion.Equal(map[string]any{
		"type":      "join",
		"relations": map[string]any{ZoneType: RecordSetType},
	}, properties[constants.RelationField])
	assertion.Equal(map[string]any{
		"type":   "text",
		"fields": map[string]any{"raw": map[string]any{"type": "keyword"}},
	}, properties["name"])
	assertion.Equal(map[string]any{
		"type": "nested",
		"properties": map[string]any{
			"name": map[string]any{"type": "keyword"},
		},
	}, properties["security_groups"])
	assertion.Contains(properties, "members")
	assertion.Contains(properties, "zone_id")
}

// conflictingPlugin maps a field another plugin already maps differently.
type conflictingPlugin struct {
	Plugin
}

func (c conflictingPlugin) DocumentType() string             { return "Test::Conflict" }
func (c conflictingPlugin) IndexName() string                { return constants.DefaultIndex }
func (c conflictingPlugin) ParentRelation() (string, string) { return "", "" }
func (c conflictingPlugin) Mapping() map[string]model.Field {
	return map[string]model.Field{"name": {Type: model.FieldKeyword}}
}

func TestRegistryMappingConflict(t *testing.T) {
	assertion := assert.New(t)
	registry, err := NewRegistry(append(newTestPlugins(), conflictingPlugin{})...)
	require.NoError(t, err)

	_, err = registry.Mapping(constants.DefaultIndex)

	assertion.Error(err)
}

func TestRegistryRelation(t *testing.T) {
	assertion := assert.New(t)
	registry, err := NewRegistry(newTestPlugins()...)
	require.NoError(t, err)

	assertion.Equal(map[string]any{"name": ZoneType}, registry.Relation(ZoneType, ""))
	assertion.Equal(map[string]any{"name": RecordSetType, "parent": "Z1"}, registry.Relation(RecordSetType, "Z1"))
	assertion.Nil(registry.Relation(ImageType, ""))
	assertion.Nil(registry.Relation("OS::Unknown", ""))
}

func TestWithIndex(t *testing.T) {
	assertion := assert.New(t)
	registry, err := NewRegistry(newTestPlugins(WithIndex("openstack"))...)
	require.NoError(t, err)

	assertion.Equal([]string{"openstack"}, registry.Indices())
	mapping, err := registry.Mapping(constants.DefaultIndex)
	require.NoError(t, err)
	assertion.Len(mapping["properties"], 1)
}
