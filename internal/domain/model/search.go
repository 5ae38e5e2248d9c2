// Copyright The Linux Foundation and each contributor to LFX.
// SPDX-License-Identifier: MIT

package model

// SearchRequest is a validated search call.
type SearchRequest struct {
	Indices        []string
	Types          []string
	Query          map[string]any
	Offset         int
	Limit          int
	Sort           []any
	SourceIncludes []string
	SourceExcludes []string
	Highlight      map[string]any
	AllProjects    bool
}

// FacetsRequest is a validated facet listing call.
type FacetsRequest struct {
	Indices     []string
	Types       []string
	AllProjects bool
	LimitTerms  int
}

// FacetOption is one bucket of a facet.
type FacetOption struct {
	Key      any `json:"key"`
	DocCount int `json:"doc_count"`
}

// Facet describes an aggregatable field and, for option fields, its values.
type Facet struct {
	Name    string        `json:"name"`
	Type    string        `json:"type"`
	Options []FacetOption `json:"options,omitempty"`
}

// IndexRequest is a validated call to the index API.
type IndexRequest struct {
	Actions []BulkAction
}

// PluginInfo is the discovery entry of one registered document type.
type PluginInfo struct {
	Index string `json:"index"`
	Type  string `json:"type"`
	Name  string `json:"name"`
}

// SearchResult is the shaped answer to a SearchRequest.
type SearchResult struct {
	Total int
	Hits  []Hit
}
