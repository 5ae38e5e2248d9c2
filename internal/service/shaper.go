// Copyright The Linux Foundation and each contributor to LFX.
// SPDX-License-Identifier: MIT

package service

import (
	"context"
	"log/slog"

	"github.com/linuxfoundation/lfx-v2-search-gateway/internal/domain/model"
	"github.com/linuxfoundation/lfx-v2-search-gateway/internal/plugin"
	"github.com/linuxfoundation/lfx-v2-search-gateway/pkg/constants"
)

// ResponseShaper turns store hits into what a requester may read.
type ResponseShaper struct {
	registry *plugin.Registry
}

// NewResponseShaper creates a ResponseShaper.
func NewResponseShaper(registry *plugin.Registry) *ResponseShaper {
	return &ResponseShaper{registry: registry}
}

// Shape redacts every hit with its type's field rules and drops the
// internal join field. Hits of unregistered types are dropped.
func (s *ResponseShaper) Shape(ctx context.Context, hits []model.Hit, requester model.Requester) []model.Hit {
	shaped := make([]model.Hit, 0, len(hits))
	for _, hit := range hits {
		docType := hit.Type
		if docType == "" {
			docType, _ = hit.Source[constants.DocumentTypeField].(string)
		}
		p, ok := s.registry.Plugin(docType)
		if !ok {
			slog.WarnContext(ctx, "dropping hit of unregistered type",
				"document_type", docType,
				"id", hit.ID,
			)
			continue
		}

		source := p.Redact(hit.Source, requester)
		delete(source, constants.RelationField)

		hit.Type = docType
		hit.Source = source
		shaped = append(shaped, hit)
	}
	return shaped
}
