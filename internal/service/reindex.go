// Copyright The Linux Foundation and each contributor to LFX.
// SPDX-License-Identifier: MIT

package service

import (
	"context"
	stderrors "errors"
	"fmt"
	"log/slog"
	"net/http"
	"slices"

	"github.com/linuxfoundation/lfx-v2-search-gateway/internal/domain/model"
	"github.com/linuxfoundation/lfx-v2-search-gateway/internal/domain/port"
	"github.com/linuxfoundation/lfx-v2-search-gateway/internal/plugin"
	"github.com/linuxfoundation/lfx-v2-search-gateway/pkg/constants"
	"github.com/linuxfoundation/lfx-v2-search-gateway/pkg/errors"
)

// Reindexer loads every upstream resource through the plugins' ListAll and
// writes it to the store in bulk batches. Resources that cannot be listed
// or serialized are reported as failures and do not stop the run.
type Reindexer struct {
	registry *plugin.Registry
	store    port.DocumentStore
}

func NewReindexer(registry *plugin.Registry, store port.DocumentStore) *Reindexer {
	return &Reindexer{registry: registry, store: store}
}

// Reindex loads the given types, or every registered type when types is
// empty. Parents are written before their children because the registry
// keeps registration order.
func (r *Reindexer) Reindex(ctx context.Context, types []string) (*model.BulkResult, error) {
	for _, docType := range types {
		if _, ok := r.registry.Plugin(docType); !ok {
			return nil, errors.NewValidation(fmt.Sprintf("Type '%s' is not supported", docType))
		}
	}

	total := &model.BulkResult{Errors: []model.BulkItemError{}}
	for _, p := range r.registry.Plugins() {
		if len(types) > 0 && !slices.Contains(types, p.DocumentType()) {
			continue
		}
		if err := r.reindexType(ctx, p, total); err != nil {
			return total, err
		}
	}
	return total, nil
}

func (r *Reindexer) reindexType(ctx context.Context, p plugin.Plugin, total *model.BulkResult) error {
	docType := p.DocumentType()
	batch := make([]model.BulkAction, 0, constants.BulkBatchSize)

	flush := func() error {
		if len(batch) == 0 {
			return nil
		}
		result, err := r.store.Bulk(ctx, batch)
		if err != nil {
			return err
		}
		total.Success += result.Success
		total.Failed += result.Failed
		total.Errors = append(total.Errors, result.Errors...)
		batch = batch[:0]
		return nil
	}

	listed := 0
	for doc, err := range p.ListAll(ctx) {
		if err != nil {
			slog.WarnContext(ctx, "skipping upstream resource",
				"document_type", docType,
				"id", doc.ID,
				"error", err,
			)
			status := http.StatusBadGateway
			var validation errors.Validation
			if stderrors.As(err, &validation) {
				status = http.StatusUnprocessableEntity
			}
			total.Failed++
			total.Errors = append(total.Errors, model.BulkItemError{
				ID:      doc.ID,
				Type:    docType,
				Status:  status,
				Message: err.Error(),
			})
			continue
		}
		listed++
		batch = append(batch, model.BulkAction{
			Op:     model.BulkOpIndex,
			Index:  doc.Index,
			Type:   doc.Type,
			ID:     doc.ID,
			Parent: doc.Parent,
			Source: doc.Source,
		})
		if len(batch) == constants.BulkBatchSize {
			if err := flush(); err != nil {
				return err
			}
		}
	}
	if err := flush(); err != nil {
		return err
	}

	slog.InfoContext(ctx, "reindexed document type",
		"document_type", docType,
		"listed", listed,
	)
	return nil
}
