// Copyright The Linux Foundation and each contributor to LFX.
// SPDX-License-Identifier: MIT

package service

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"slices"

	"github.com/linuxfoundation/lfx-v2-search-gateway/internal/domain/model"
	"github.com/linuxfoundation/lfx-v2-search-gateway/internal/domain/port"
	"github.com/linuxfoundation/lfx-v2-search-gateway/internal/plugin"
	"github.com/linuxfoundation/lfx-v2-search-gateway/pkg/errors"
)

// defaultTermsSize bounds facet options when the caller sets no limit.
const defaultTermsSize = 100

// ResourceSearch handles the search, facet and index operations.
// It depends on the store port rather than a concrete backend.
type ResourceSearch struct {
	registry *plugin.Registry
	store    port.DocumentStore
	builder  *QueryBuilder
	shaper   *ResponseShaper
}

// NewResourceSearch creates a new ResourceSearch instance
func NewResourceSearch(registry *plugin.Registry, store port.DocumentStore) *ResourceSearch {
	return &ResourceSearch{
		registry: registry,
		store:    store,
		builder:  NewQueryBuilder(registry),
		shaper:   NewResponseShaper(registry),
	}
}

// Search runs an access-scoped query and redacts the hits.
func (s *ResourceSearch) Search(ctx context.Context, requester model.Requester, req model.SearchRequest) (*model.SearchResult, error) {

	slog.DebugContext(ctx, "starting resource search",
		"types", req.Types,
		"indices", req.Indices,
		"all_projects", req.AllProjects,
	)

	query, err := s.builder.Build(requester, req.Types, req.Query, req.AllProjects)
	if err != nil {
		slog.ErrorContext(ctx, "failed to build scoped query", "error", err)
		return nil, err
	}

	body := map[string]any{
		"query": query,
		"from":  req.Offset,
		"size":  req.Limit,
	}
	if len(req.Sort) > 0 {
		body["sort"] = req.Sort
	}
	if len(req.Highlight) > 0 {
		body["highlight"] = req.Highlight
	}
	if len(req.SourceIncludes) > 0 || len(req.SourceExcludes) > 0 {
		source := map[string]any{}
		if len(req.SourceIncludes) > 0 {
			source["includes"] = req.SourceIncludes
		}
		if len(req.SourceExcludes) > 0 {
			source["excludes"] = req.SourceExcludes
		}
		body["_source"] = source
	}

	hits, err := s.store.Search(ctx, model.StoreQuery{
		Indices:           req.Indices,
		Body:              body,
		IgnoreUnavailable: true,
	})
	if err != nil {
		slog.ErrorContext(ctx, "search operation failed", "error", err)
		return nil, err
	}

	result := &model.SearchResult{
		Total: hits.Total,
		Hits:  s.shaper.Shape(ctx, hits.Hits, requester),
	}

	slog.DebugContext(ctx, "resource search completed",
		"total", result.Total,
		"returned", len(result.Hits),
	)

	return result, nil
}

// Facets lists, per requested type, the fields a requester may aggregate on
// and the options of the enumerable ones, counted within the requester's
// visible documents.
func (s *ResourceSearch) Facets(ctx context.Context, requester model.Requester, req model.FacetsRequest) (map[string][]model.Facet, error) {
	size := req.LimitTerms
	if size == 0 {
		size = defaultTermsSize
	}

	out := make(map[string][]model.Facet, len(req.Types))
	for _, docType := range req.Types {
		p, ok := s.registry.Plugin(docType)
		if !ok {
			return nil, errors.NewValidation(fmt.Sprintf("Type '%s' is not supported", docType))
		}
		facets, err := s.typeFacets(ctx, p, requester, req.AllProjects, size)
		if err != nil {
			return nil, err
		}
		out[docType] = facets
	}
	return out, nil
}

func (s *ResourceSearch) typeFacets(ctx context.Context, p plugin.Plugin, requester model.Requester, allProjects bool, size int) ([]model.Facet, error) {
	schema := p.Mapping()
	optionFields := p.FacetOptionFields()

	facets := make([]model.Facet, 0, len(p.FacetFields()))
	aggs := map[string]any{}
	aggFacet := map[string]int{}

	for _, name := range p.FacetFields() {
		if !p.FieldVisible(name, requester) {
			continue
		}
		field, nestedPath, ok := model.Lookup(schema, name)
		if !ok {
			slog.WarnContext(ctx, "facet field missing from mapping",
				"document_type", p.DocumentType(),
				"field", name,
			)
			continue
		}
		facets = append(facets, model.Facet{Name: name, Type: field.FacetType()})
		if !slices.Contains(optionFields, name) {
			continue
		}

		aggName := fmt.Sprintf("facet_%d", len(facets)-1)
		aggFacet[aggName] = len(facets) - 1
		facets[len(facets)-1].Options = []model.FacetOption{}

		terms := map[string]any{
			"terms": map[string]any{"field": name, "size": size},
		}
		if nestedPath == "" {
			aggs[aggName] = terms
			continue
		}
		aggs[aggName] = map[string]any{
			"nested": map[string]any{"path": nestedPath},
			"aggs":   map[string]any{aggName: terms},
		}
	}

	if len(aggs) == 0 {
		return facets, nil
	}

	query, err := s.builder.FacetQuery(requester, p.DocumentType(), allProjects)
	if err != nil {
		return nil, err
	}

	hits, err := s.store.Search(ctx, model.StoreQuery{
		Indices: []string{p.IndexName()},
		Body: map[string]any{
			"query": query,
			"size":  0,
			"aggs":  aggs,
		},
		IgnoreUnavailable: true,
	})
	if err != nil {
		slog.ErrorContext(ctx, "facet aggregation failed",
			"document_type", p.DocumentType(),
			"error", err,
		)
		return nil, err
	}

	for aggName, i := range aggFacet {
		facets[i].Options = bucketOptions(hits.Aggregations, aggName)
	}
	return facets, nil
}

// bucketOptions reads the buckets of aggregation name, descending into a
// nested wrapper of the same name.
func bucketOptions(aggregations map[string]any, name string) []model.FacetOption {
	agg, _ := aggregations[name].(map[string]any)
	if inner, ok := agg[name].(map[string]any); ok {
		agg = inner
	}
	buckets, _ := agg["buckets"].([]any)

	options := make([]model.FacetOption, 0, len(buckets))
	for _, raw := range buckets {
		bucket, ok := raw.(map[string]any)
		if !ok {
			continue
		}
		key := bucket["key"]
		if keyString, ok := bucket["key_as_string"]; ok {
			key = keyString
		}
		options = append(options, model.FacetOption{
			Key:      key,
			DocCount: intValue(bucket["doc_count"]),
		})
	}
	return options
}

func intValue(raw any) int {
	switch v := raw.(type) {
	case int:
		return v
	case int64:
		return int(v)
	case float64:
		return int(v)
	default:
		return 0
	}
}

// Index applies bulk actions on behalf of an administrator.
func (s *ResourceSearch) Index(ctx context.Context, requester model.Requester, req model.IndexRequest) (*model.BulkResult, error) {
	if !requester.IsAdmin {
		return nil, errors.NewForbidden("Indexing is restricted to administrators")
	}

	result, err := s.store.Bulk(ctx, req.Actions)
	if err != nil {
		slog.ErrorContext(ctx, "bulk index failed", "error", err)
		return nil, err
	}

	slog.InfoContext(ctx, "bulk index completed",
		"success", result.Success,
		"failed", result.Failed,
	)

	if result.Success == 0 && result.Failed > 0 {
		switch {
		case allStatus(result.Errors, http.StatusNotFound):
			return result, errors.NewNotFound(result.Errors[0].Message)
		case allStatus(result.Errors, http.StatusConflict):
			return result, errors.NewConflict(result.Errors[0].Message)
		}
	}
	return result, nil
}

func allStatus(items []model.BulkItemError, status int) bool {
	if len(items) == 0 {
		return false
	}
	for _, item := range items {
		if item.Status != status {
			return false
		}
	}
	return true
}

// PluginsInfo lists the registered document types.
func (s *ResourceSearch) PluginsInfo() []model.PluginInfo {
	return s.registry.Info()
}

// IsReady checks that the store is reachable.
func (s *ResourceSearch) IsReady(ctx context.Context) error {
	if err := s.store.IsReady(ctx); err != nil {
		return errors.NewServiceUnavailable("search store is not ready", err)
	}
	return nil
}
