// Copyright The Linux Foundation and each contributor to LFX.
// SPDX-License-Identifier: MIT

package service

import (
	"fmt"

	"github.com/linuxfoundation/lfx-v2-search-gateway/internal/domain/model"
	"github.com/linuxfoundation/lfx-v2-search-gateway/internal/plugin"
	"github.com/linuxfoundation/lfx-v2-search-gateway/pkg/constants"
	"github.com/linuxfoundation/lfx-v2-search-gateway/pkg/errors"
)

// QueryBuilder scopes queries to what a requester may see.
type QueryBuilder struct {
	registry *plugin.Registry
}

// NewQueryBuilder creates a QueryBuilder over the registered plugins.
func NewQueryBuilder(registry *plugin.Registry) *QueryBuilder {
	return &QueryBuilder{registry: registry}
}

// Build combines the caller's query with one access-scoped branch per
// document type. An admin asking for all projects gets the query restricted
// to the types only.
func (b *QueryBuilder) Build(requester model.Requester, docTypes []string, userQuery map[string]any, allProjects bool) (map[string]any, error) {
	if len(userQuery) == 0 {
		userQuery = map[string]any{"match_all": map[string]any{}}
	}

	if requester.IsAdmin && allProjects {
		return map[string]any{
			"bool": map[string]any{
				"must":   userQuery,
				"filter": typesFilter(docTypes),
			},
		}, nil
	}

	should := make([]any, 0, len(docTypes))
	for _, docType := range docTypes {
		filter, err := b.TypeFilter(requester, docType)
		if err != nil {
			return nil, err
		}
		should = append(should, map[string]any{
			"bool": map[string]any{
				"must":   userQuery,
				"filter": filter,
			},
		})
	}

	return map[string]any{
		"bool": map[string]any{
			"should":               should,
			"minimum_should_match": 1,
		},
	}, nil
}

// FacetQuery returns the query scoping aggregations over one document type.
func (b *QueryBuilder) FacetQuery(requester model.Requester, docType string, allProjects bool) (map[string]any, error) {
	if requester.IsAdmin && allProjects {
		return map[string]any{
			"bool": map[string]any{"filter": typesFilter([]string{docType})},
		}, nil
	}
	filter, err := b.TypeFilter(requester, docType)
	if err != nil {
		return nil, err
	}
	return map[string]any{
		"bool": map[string]any{"filter": filter},
	}, nil
}

// TypeFilter returns the type restriction AND the plugin's access rule. Any
// failure building the rule fails the request rather than dropping the rule.
func (b *QueryBuilder) TypeFilter(requester model.Requester, docType string) (filter []any, err error) {
	p, ok := b.registry.Plugin(docType)
	if !ok {
		return nil, errors.NewValidation(fmt.Sprintf("Type '%s' is not supported", docType))
	}

	defer func() {
		if r := recover(); r != nil {
			filter = nil
			err = errors.NewUnexpected(fmt.Sprintf("Error processing %s RBAC filter", docType), fmt.Errorf("%v", r))
		}
	}()

	rbac, errFilter := p.RBACFilter(requester)
	if errFilter != nil {
		return nil, errors.NewUnexpected(fmt.Sprintf("Error processing %s RBAC filter", docType), errFilter)
	}
	if len(rbac) == 0 {
		return nil, errors.NewUnexpected(fmt.Sprintf("Error processing %s RBAC filter", docType), fmt.Errorf("empty filter"))
	}

	return []any{
		map[string]any{"term": map[string]any{constants.DocumentTypeField: docType}},
		rbac,
	}, nil
}

func typesFilter(docTypes []string) map[string]any {
	values := make([]any, len(docTypes))
	for i, docType := range docTypes {
		values[i] = docType
	}
	return map[string]any{
		"terms": map[string]any{constants.DocumentTypeField: values},
	}
}
