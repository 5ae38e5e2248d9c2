// Copyright The Linux Foundation and each contributor to LFX.
// SPDX-License-Identifier: MIT

package opensearch

import "encoding/json"

// Config represents OpenSearch configuration
type Config struct {
	URL   string `json:"url"`
	Index string `json:"index"`
}

// SearchResponse represents the OpenSearch search response
type SearchResponse struct {
	Hits         `json:"hits"`
	Aggregations json.RawMessage `json:"aggregations,omitempty"`
}

// Hits represents the hits in the search response
type Hits struct {
	Total `json:"total"`
	Hits  []Hit `json:"hits"`
}

// Total represents the total number of hits
type Total struct {
	Value int `json:"value"`
}

// Hit represents a single search result hit
type Hit struct {
	ID     string          `json:"_id"`
	Index  string          `json:"_index"`
	Source json.RawMessage `json:"_source"`
	Sort   []any           `json:"sort,omitempty"`
}

// GetResponse represents a single document lookup
type GetResponse struct {
	Found  bool            `json:"found"`
	Source json.RawMessage `json:"_source"`
}

// BulkResponse represents the per-item outcome of a bulk request
type BulkResponse struct {
	Errors bool       `json:"errors"`
	Items  []BulkItem `json:"items"`
}

// BulkItem is the outcome of one bulk action
type BulkItem struct {
	ID     string `json:"_id"`
	Status int    `json:"status"`
	Result string `json:"result,omitempty"`
	Reason string `json:"reason,omitempty"`
}

// bulkMeta is the action line preceding each bulk document
type bulkMeta struct {
	Op      string
	Index   string
	ID      string
	Routing string
}
