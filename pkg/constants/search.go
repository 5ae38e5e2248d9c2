// Copyright The Linux Foundation and each contributor to LFX.
// SPDX-License-Identifier: MIT

package constants

const (
	// DefaultIndex is the single namespace shared by every document type
	DefaultIndex = "resources"

	// DocumentTypeField is stored on every document so searches can filter by type
	DocumentTypeField = "document_type"

	// RelationField is the join field linking child documents to their parent
	RelationField = "doc_relation"

	// DefaultSearchLimit is applied when a search request carries no limit
	DefaultSearchLimit = 10

	// ScanPageSize is the page size used when enumerating documents with search_after
	ScanPageSize = 500

	// BulkBatchSize bounds the number of actions sent in one bulk request
	BulkBatchSize = 200
)

const (
	// AdminRole grants access to every project and to the index API
	AdminRole = "admin"
)
