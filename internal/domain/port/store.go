// Copyright The Linux Foundation and each contributor to LFX.
// SPDX-License-Identifier: MIT

package port

import (
	"context"
	"iter"

	"github.com/linuxfoundation/lfx-v2-search-gateway/internal/domain/model"
)

// DocumentStore defines the search index operations the gateway relies on.
// This abstraction allows different store implementations (OpenSearch, in-memory)
// without the domain layer knowing about specific implementations
type DocumentStore interface {
	// CreateIndex creates the index with the given mapping if it does not exist
	CreateIndex(ctx context.Context, index string, mapping map[string]any) error

	// Index upserts a document by id, routed by its parent when it has one
	Index(ctx context.Context, doc model.Document) error

	// Get returns a stored document or an errors.NotFound
	Get(ctx context.Context, ref model.DocumentRef) (*model.Document, error)

	// Delete removes a document, reporting whether it was already absent
	Delete(ctx context.Context, ref model.DocumentRef) (model.DeleteResult, error)

	// Bulk applies the actions and reports per-action failures
	Bulk(ctx context.Context, actions []model.BulkAction) (*model.BulkResult, error)

	// Search runs a query body and returns hits and aggregations
	Search(ctx context.Context, query model.StoreQuery) (*model.SearchHits, error)

	// Scan lazily enumerates every document matching query
	Scan(ctx context.Context, index string, query map[string]any) iter.Seq2[model.Hit, error]

	// IsReady checks if the store is reachable
	IsReady(ctx context.Context) error
}
