// Copyright The Linux Foundation and each contributor to LFX.
// SPDX-License-Identifier: MIT

package service

import (
	"net/url"
	"testing"

	"github.com/linuxfoundation/lfx-v2-search-gateway/internal/domain/model"
	"github.com/linuxfoundation/lfx-v2-search-gateway/internal/infrastructure/mock"
	"github.com/linuxfoundation/lfx-v2-search-gateway/internal/plugin"
	"github.com/linuxfoundation/lfx-v2-search-gateway/pkg/constants"
	"github.com/linuxfoundation/lfx-v2-search-gateway/pkg/errors"

	"github.com/stretchr/testify/assert"
)

func TestDecodeSearch(t *testing.T) {
	deserializer := NewRequestDeserializer(newTestRegistry(t, mock.NewMockDocumentStore()))
	allTypes := []string{plugin.ImageType, plugin.ServerType, plugin.ZoneType, plugin.RecordSetType}

	tests := []struct {
		name     string
		body     map[string]any
		expected model.SearchRequest
	}{
		{
			name: "empty body selects everything",
			body: map[string]any{},
			expected: model.SearchRequest{
				Indices: []string{constants.DefaultIndex},
				Types:   allTypes,
				Limit:   constants.DefaultSearchLimit,
			},
		},
		{
			name: "single type and numeric strings",
			body: map[string]any{
				"type":   plugin.ServerType,
				"limit":  "5",
				"offset": float64(10),
				"query":  map[string]any{"match_all": map[string]any{}},
			},
			expected: model.SearchRequest{
				Indices: []string{constants.DefaultIndex},
				Types:   []string{plugin.ServerType},
				Query:   map[string]any{"match_all": map[string]any{}},
				Limit:   5,
				Offset:  10,
			},
		},
		{
			name: "source as string",
			body: map[string]any{"type": []any{plugin.ZoneType}, "_source": "name"},
			expected: model.SearchRequest{
				Indices:        []string{constants.DefaultIndex},
				Types:          []string{plugin.ZoneType},
				Limit:          constants.DefaultSearchLimit,
				SourceIncludes: []string{"name"},
			},
		},
		{
			name: "source include and exclude",
			body: map[string]any{
				"type":    plugin.ZoneType,
				"_source": map[string]any{"include": []any{"name", "email"}, "exclude": "serial"},
			},
			expected: model.SearchRequest{
				Indices:        []string{constants.DefaultIndex},
				Types:          []string{plugin.ZoneType},
				Limit:          constants.DefaultSearchLimit,
				SourceIncludes: []string{"name", "email"},
				SourceExcludes: []string{"serial"},
			},
		},
		{
			name: "sort on analyzed fields uses the raw variant",
			body: map[string]any{
				"type": plugin.ZoneType,
				"sort": []any{"name", map[string]any{"serial": "desc"}, map[string]any{"name": map[string]any{"order": "asc"}}},
			},
			expected: model.SearchRequest{
				Indices: []string{constants.DefaultIndex},
				Types:   []string{plugin.ZoneType},
				Limit:   constants.DefaultSearchLimit,
				Sort: []any{
					"name.raw",
					map[string]any{"serial": "desc"},
					map[string]any{"name.raw": map[string]any{"order": "asc"}},
				},
			},
		},
		{
			name: "single sort field becomes a list",
			body: map[string]any{"type": plugin.ZoneType, "sort": "created_at"},
			expected: model.SearchRequest{
				Indices: []string{constants.DefaultIndex},
				Types:   []string{plugin.ZoneType},
				Limit:   constants.DefaultSearchLimit,
				Sort:    []any{"created_at"},
			},
		},
		{
			name: "highlight and all projects",
			body: map[string]any{
				"type":         plugin.ImageType,
				"highlight":    map[string]any{"fields": map[string]any{"name": map[string]any{}}},
				"all_projects": true,
			},
			expected: model.SearchRequest{
				Indices:     []string{constants.DefaultIndex},
				Types:       []string{plugin.ImageType},
				Limit:       constants.DefaultSearchLimit,
				Highlight:   map[string]any{"fields": map[string]any{"name": map[string]any{}}},
				AllProjects: true,
			},
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			assertion := assert.New(t)

			req, err := deserializer.DecodeSearch(tc.body)

			assertion.NoError(err)
			assertion.Equal(tc.expected, req)
		})
	}
}

func TestDecodeSearchRejects(t *testing.T) {
	deserializer := NewRequestDeserializer(newTestRegistry(t, mock.NewMockDocumentStore()))

	tests := []struct {
		name      string
		body      map[string]any
		forbidden bool
		message   string
	}{
		{name: "schema is read only", body: map[string]any{"schema": "x"}, forbidden: true},
		{name: "self is read only", body: map[string]any{"self": "x"}, forbidden: true},
		{name: "unknown index", body: map[string]any{"index": "nope"}, message: "Index 'nope' is not supported"},
		{name: "unknown type", body: map[string]any{"type": "OS::Nope"}, message: "Type 'OS::Nope' is not supported"},
		{name: "type is not a string", body: map[string]any{"type": float64(3)}},
		{name: "query is not an object", body: map[string]any{"query": "name:web"}},
		{name: "source is a number", body: map[string]any{"_source": float64(1)}, message: "'_source' must be a string, dict or list"},
		{name: "source has unknown keys", body: map[string]any{"_source": map[string]any{"fields": "name"}}, message: "'_source' must be a string, dict or list"},
		{name: "negative limit", body: map[string]any{"limit": float64(-1)}},
		{name: "fractional offset", body: map[string]any{"offset": 1.5}},
		{name: "non numeric limit", body: map[string]any{"limit": "ten"}},
		{name: "sort is a number", body: map[string]any{"sort": float64(1)}, message: "'sort' must be a string, dict or list"},
		{name: "sort list holds a number", body: map[string]any{"sort": []any{"name", float64(1)}}, message: "'sort' must be a string, dict or list"},
		{name: "highlight is a list", body: map[string]any{"highlight": []any{"name"}}},
		{name: "all projects is not boolean", body: map[string]any{"all_projects": "maybe"}},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			assertion := assert.New(t)

			_, err := deserializer.DecodeSearch(tc.body)

			if tc.forbidden {
				var forbidden errors.Forbidden
				assertion.ErrorAs(err, &forbidden)
				return
			}
			var validation errors.Validation
			assertion.ErrorAs(err, &validation)
			if tc.message != "" {
				assertion.Contains(err.Error(), tc.message)
			}
		})
	}
}

func TestDecodeFacets(t *testing.T) {
	deserializer := NewRequestDeserializer(newTestRegistry(t, mock.NewMockDocumentStore()))

	tests := []struct {
		name        string
		params      url.Values
		expected    model.FacetsRequest
		expectError bool
	}{
		{
			name:   "no parameters",
			params: url.Values{},
			expected: model.FacetsRequest{
				Indices: []string{constants.DefaultIndex},
				Types:   []string{plugin.ImageType, plugin.ServerType, plugin.ZoneType, plugin.RecordSetType},
			},
		},
		{
			name: "comma separated types and options",
			params: url.Values{
				"type":         []string{plugin.ServerType + "," + plugin.ZoneType},
				"all_projects": []string{"true"},
				"limit_terms":  []string{"3"},
			},
			expected: model.FacetsRequest{
				Indices:     []string{constants.DefaultIndex},
				Types:       []string{plugin.ServerType, plugin.ZoneType},
				AllProjects: true,
				LimitTerms:  3,
			},
		},
		{
			name:        "unknown type",
			params:      url.Values{"type": []string{"OS::Nope"}},
			expectError: true,
		},
		{
			name:        "negative limit terms",
			params:      url.Values{"limit_terms": []string{"-2"}},
			expectError: true,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			assertion := assert.New(t)

			req, err := deserializer.DecodeFacets(tc.params)

			if tc.expectError {
				var validation errors.Validation
				assertion.ErrorAs(err, &validation)
				return
			}
			assertion.NoError(err)
			assertion.Equal(tc.expected, req)
		})
	}
}

func TestDecodeIndex(t *testing.T) {
	deserializer := NewRequestDeserializer(newTestRegistry(t, mock.NewMockDocumentStore()))

	tests := []struct {
		name     string
		body     map[string]any
		expected []model.BulkAction
	}{
		{
			name: "missing action means index and defaults apply",
			body: map[string]any{
				"default_index": constants.DefaultIndex,
				"default_type":  plugin.ServerType,
				"actions": []any{
					map[string]any{"id": "s1", "data": map[string]any{"name": "web"}},
				},
			},
			expected: []model.BulkAction{{
				Op:    model.BulkOpIndex,
				Index: constants.DefaultIndex,
				Type:  plugin.ServerType,
				ID:    "s1",
				Source: map[string]any{
					"name":                      "web",
					constants.DocumentTypeField: plugin.ServerType,
				},
			}},
		},
		{
			name: "create of a parent type carries its relation",
			body: map[string]any{
				"actions": []any{
					map[string]any{
						"action": "create",
						"index":  constants.DefaultIndex,
						"type":   plugin.ZoneType,
						"id":     "z1",
						"data":   map[string]any{"name": "example.org."},
					},
				},
			},
			expected: []model.BulkAction{{
				Op:    model.BulkOpCreate,
				Index: constants.DefaultIndex,
				Type:  plugin.ZoneType,
				ID:    "z1",
				Source: map[string]any{
					"name":                      "example.org.",
					constants.DocumentTypeField: plugin.ZoneType,
					constants.RelationField:     map[string]any{"name": plugin.ZoneType},
				},
			}},
		},
		{
			name: "child takes its parent from the data",
			body: map[string]any{
				"default_index": constants.DefaultIndex,
				"actions": []any{
					map[string]any{
						"type": plugin.RecordSetType,
						"id":   "r1",
						"data": map[string]any{"zone_id": "z1"},
					},
				},
			},
			expected: []model.BulkAction{{
				Op:     model.BulkOpIndex,
				Index:  constants.DefaultIndex,
				Type:   plugin.RecordSetType,
				ID:     "r1",
				Parent: "z1",
				Source: map[string]any{
					"zone_id":                   "z1",
					constants.DocumentTypeField: plugin.RecordSetType,
					constants.RelationField:     map[string]any{"name": plugin.RecordSetType, "parent": "z1"},
				},
			}},
		},
		{
			name: "update with data and script",
			body: map[string]any{
				"default_index": constants.DefaultIndex,
				"default_type":  plugin.ImageType,
				"actions": []any{
					map[string]any{"action": "update", "id": "i1", "data": map[string]any{"status": "active"}},
					map[string]any{"action": "update", "id": "i2", "script": "ctx._source.min_ram += 1"},
				},
			},
			expected: []model.BulkAction{
				{
					Op:    model.BulkOpUpdate,
					Index: constants.DefaultIndex,
					Type:  plugin.ImageType,
					ID:    "i1",
					Doc:   map[string]any{"status": "active"},
				},
				{
					Op:     model.BulkOpUpdate,
					Index:  constants.DefaultIndex,
					Type:   plugin.ImageType,
					ID:     "i2",
					Script: "ctx._source.min_ram += 1",
					Params: map[string]any{},
				},
			},
		},
		{
			name: "delete with explicit parent",
			body: map[string]any{
				"actions": []any{
					map[string]any{
						"action": "delete",
						"index":  constants.DefaultIndex,
						"type":   plugin.RecordSetType,
						"id":     "r1",
						"parent": "z1",
					},
				},
			},
			expected: []model.BulkAction{{
				Op:     model.BulkOpDelete,
				Index:  constants.DefaultIndex,
				Type:   plugin.RecordSetType,
				ID:     "r1",
				Parent: "z1",
			}},
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			assertion := assert.New(t)

			req, err := deserializer.DecodeIndex(tc.body)

			assertion.NoError(err)
			assertion.Equal(tc.expected, req.Actions)
		})
	}
}

func TestDecodeIndexRejects(t *testing.T) {
	deserializer := NewRequestDeserializer(newTestRegistry(t, mock.NewMockDocumentStore()))
	action := func(fields map[string]any) map[string]any {
		out := map[string]any{"index": constants.DefaultIndex, "type": plugin.ServerType}
		for key, value := range fields {
			out[key] = value
		}
		return map[string]any{"actions": []any{out}}
	}

	tests := []struct {
		name    string
		body    map[string]any
		message string
	}{
		{name: "no actions", body: map[string]any{}},
		{name: "empty actions", body: map[string]any{"actions": []any{}}},
		{name: "action is not an object", body: map[string]any{"actions": []any{"index"}}},
		{name: "empty action type", body: action(map[string]any{"action": "", "data": map[string]any{}})},
		{name: "invalid action type", body: action(map[string]any{"action": "upsert", "data": map[string]any{}}), message: "Invalid action type: 'upsert'"},
		{name: "create without data", body: action(map[string]any{"action": "create", "id": "s1"})},
		{name: "update without id", body: action(map[string]any{"action": "update", "data": map[string]any{}})},
		{name: "update without data or script", body: action(map[string]any{"action": "update", "id": "s1"})},
		{name: "delete without id", body: action(map[string]any{"action": "delete"})},
		{name: "no index or type", body: map[string]any{"actions": []any{map[string]any{"data": map[string]any{}}}}},
		{name: "unknown default index", body: map[string]any{"default_index": "nope", "actions": []any{map[string]any{}}}},
		{name: "unknown type", body: map[string]any{"actions": []any{map[string]any{"index": constants.DefaultIndex, "type": "OS::Nope", "data": map[string]any{}}}}},
		{
			name: "child without parent",
			body: map[string]any{"actions": []any{map[string]any{
				"index": constants.DefaultIndex,
				"type":  plugin.RecordSetType,
				"id":    "r1",
				"data":  map[string]any{"name": "www"},
			}}},
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			assertion := assert.New(t)

			_, err := deserializer.DecodeIndex(tc.body)

			var validation errors.Validation
			assertion.ErrorAs(err, &validation)
			if tc.message != "" {
				assertion.Contains(err.Error(), tc.message)
			}
		})
	}
}
