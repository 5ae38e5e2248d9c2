// Copyright The Linux Foundation and each contributor to LFX.
// SPDX-License-Identifier: MIT

package service

import (
	"github.com/linuxfoundation/lfx-v2-search-gateway/internal/domain/model"
)

// searchResultToResponse flattens a search result into the shaped document
// sources, in hit order.
func searchResultToResponse(result *model.SearchResult) []map[string]any {
	documents := make([]map[string]any, 0, len(result.Hits))
	for _, hit := range result.Hits {
		source := hit.Source
		if source == nil {
			source = map[string]any{}
		}
		documents = append(documents, source)
	}
	return documents
}
