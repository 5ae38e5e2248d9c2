// Copyright The Linux Foundation and each contributor to LFX.
// SPDX-License-Identifier: MIT

package model

// DeleteResult tells callers what a delete did so they branch on outcome
// instead of on error kinds.
type DeleteResult int

// Delete results.
const (
	DeleteResultDeleted DeleteResult = iota
	DeleteResultAlreadyAbsent
	DeleteResultFailed
)

func (d DeleteResult) String() string {
	switch d {
	case DeleteResultDeleted:
		return "deleted"
	case DeleteResultAlreadyAbsent:
		return "already_absent"
	default:
		return "failed"
	}
}

// BulkOp is the operation of one bulk action.
type BulkOp string

// Bulk operations.
const (
	BulkOpIndex  BulkOp = "index"
	BulkOpCreate BulkOp = "create"
	BulkOpUpdate BulkOp = "update"
	BulkOpDelete BulkOp = "delete"
)

// BulkAction is one entry of a bulk request.
type BulkAction struct {
	Op     BulkOp
	Index  string
	Type   string
	ID     string
	Parent string
	// Source is the full document for index and create
	Source map[string]any
	// Doc is the partial document for update
	Doc    map[string]any
	Script string
	Params map[string]any
}

// BulkItemError describes one failed bulk action.
type BulkItemError struct {
	ID      string `json:"id,omitempty"`
	Type    string `json:"type,omitempty"`
	Status  int    `json:"status"`
	Message string `json:"message"`
}

// BulkResult summarizes a bulk request.
type BulkResult struct {
	Success int             `json:"success"`
	Failed  int             `json:"failed"`
	Errors  []BulkItemError `json:"errors"`
}

// StoreQuery is a search body addressed to one or more indices.
type StoreQuery struct {
	Indices           []string
	Body              map[string]any
	IgnoreUnavailable bool
}

// Hit is one matching document.
type Hit struct {
	ID     string
	Index  string
	Type   string
	Source map[string]any
	Sort   []any
}

// SearchHits is the store's answer to a StoreQuery.
type SearchHits struct {
	Total        int
	Hits         []Hit
	Aggregations map[string]any
}
