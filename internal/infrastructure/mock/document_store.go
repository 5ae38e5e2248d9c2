// Copyright The Linux Foundation and each contributor to LFX.
// SPDX-License-Identifier: MIT

package mock

import (
	"context"
	"encoding/json"
	"fmt"
	"iter"
	"log/slog"
	"net/http"
	"slices"
	"sort"
	"sync"

	"github.com/linuxfoundation/lfx-v2-search-gateway/internal/domain/model"
	"github.com/linuxfoundation/lfx-v2-search-gateway/internal/domain/port"
	"github.com/linuxfoundation/lfx-v2-search-gateway/pkg/constants"
	"github.com/linuxfoundation/lfx-v2-search-gateway/pkg/errors"
)

type storedDocument struct {
	doc model.Document
	raw []byte
}

// MockDocumentStore is an in-memory DocumentStore. It evaluates the query
// DSL subset the gateway emits, so search behaviour can be exercised without
// a running cluster.
type MockDocumentStore struct {
	mu        sync.RWMutex
	documents map[string]map[string]storedDocument
	mappings  map[string]map[string]any
	queries   []model.StoreQuery

	indexError  error
	searchError error
	deleteError error
	readyError  error
}

// NewMockDocumentStore creates an empty in-memory store.
func NewMockDocumentStore() *MockDocumentStore {
	return &MockDocumentStore{
		documents: map[string]map[string]storedDocument{},
		mappings:  map[string]map[string]any{},
	}
}

var _ port.DocumentStore = (*MockDocumentStore)(nil)

// CreateIndex records the mapping of index.
func (m *MockDocumentStore) CreateIndex(ctx context.Context, index string, mapping map[string]any) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.mappings[index] = mapping
	if _, ok := m.documents[index]; !ok {
		m.documents[index] = map[string]storedDocument{}
	}
	return nil
}

// Index upserts doc; the stored copy is detached from the caller's maps.
func (m *MockDocumentStore) Index(ctx context.Context, doc model.Document) error {
	if m.indexError != nil {
		return m.indexError
	}
	raw, err := json.Marshal(doc.Source)
	if err != nil {
		return fmt.Errorf("failed to encode document %s: %w", doc.ID, err)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.put(doc, raw)

	slog.DebugContext(ctx, "mock store indexed document",
		"index", doc.Index,
		"document_type", doc.Type,
		"id", doc.ID,
	)
	return nil
}

func (m *MockDocumentStore) put(doc model.Document, raw []byte) {
	if _, ok := m.documents[doc.Index]; !ok {
		m.documents[doc.Index] = map[string]storedDocument{}
	}
	m.documents[doc.Index][doc.ID] = storedDocument{doc: model.Document{
		ID:     doc.ID,
		Type:   doc.Type,
		Index:  doc.Index,
		Parent: doc.Parent,
	}, raw: raw}
}

// Get returns a detached copy of the referenced document.
func (m *MockDocumentStore) Get(ctx context.Context, ref model.DocumentRef) (*model.Document, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	stored, ok := m.lookup(ref)
	if !ok {
		return nil, errors.NewNotFound(fmt.Sprintf("document %s of type %s not found", ref.ID, ref.Type))
	}
	doc, err := stored.decode()
	if err != nil {
		return nil, err
	}
	return &doc, nil
}

func (m *MockDocumentStore) lookup(ref model.DocumentRef) (storedDocument, bool) {
	stored, ok := m.documents[ref.Index][ref.ID]
	if !ok || (ref.Type != "" && stored.doc.Type != ref.Type) {
		return storedDocument{}, false
	}
	return stored, true
}

func (s storedDocument) decode() (model.Document, error) {
	doc := s.doc
	if err := json.Unmarshal(s.raw, &doc.Source); err != nil {
		return model.Document{}, fmt.Errorf("failed to decode document %s: %w", doc.ID, err)
	}
	return doc, nil
}

// Delete removes the referenced document.
func (m *MockDocumentStore) Delete(ctx context.Context, ref model.DocumentRef) (model.DeleteResult, error) {
	if m.deleteError != nil {
		return model.DeleteResultFailed, m.deleteError
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.lookup(ref); !ok {
		return model.DeleteResultAlreadyAbsent, nil
	}
	delete(m.documents[ref.Index], ref.ID)
	return model.DeleteResultDeleted, nil
}

// Bulk applies actions one by one, collecting per-action failures.
func (m *MockDocumentStore) Bulk(ctx context.Context, actions []model.BulkAction) (*model.BulkResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	result := &model.BulkResult{Errors: []model.BulkItemError{}}
	fail := func(action model.BulkAction, status int, message string) {
		result.Failed++
		result.Errors = append(result.Errors, model.BulkItemError{
			ID:      action.ID,
			Type:    action.Type,
			Status:  status,
			Message: message,
		})
	}

	for _, action := range actions {
		ref := model.DocumentRef{Index: action.Index, Type: action.Type, ID: action.ID, Parent: action.Parent}
		stored, exists := m.lookup(ref)

		switch action.Op {
		case model.BulkOpIndex, model.BulkOpCreate:
			if action.Op == model.BulkOpCreate && exists {
				fail(action, http.StatusConflict, "document already exists")
				continue
			}
			source := cloneWithType(action.Source, action.Type)
			raw, err := json.Marshal(source)
			if err != nil {
				fail(action, http.StatusBadRequest, err.Error())
				continue
			}
			m.put(model.Document{ID: action.ID, Type: action.Type, Index: action.Index, Parent: action.Parent}, raw)
		case model.BulkOpUpdate:
			if !exists {
				fail(action, http.StatusNotFound, "document missing")
				continue
			}
			if action.Script != "" {
				fail(action, http.StatusBadRequest, "scripts are not supported by the in-memory store")
				continue
			}
			doc, err := stored.decode()
			if err != nil {
				fail(action, http.StatusInternalServerError, err.Error())
				continue
			}
			for key, value := range action.Doc {
				doc.Source[key] = value
			}
			raw, err := json.Marshal(doc.Source)
			if err != nil {
				fail(action, http.StatusBadRequest, err.Error())
				continue
			}
			m.put(doc, raw)
		case model.BulkOpDelete:
			if !exists {
				fail(action, http.StatusNotFound, "document missing")
				continue
			}
			delete(m.documents[action.Index], action.ID)
		default:
			fail(action, http.StatusBadRequest, fmt.Sprintf("unknown bulk operation %q", action.Op))
			continue
		}
		result.Success++
	}
	return result, nil
}

func cloneWithType(source map[string]any, docType string) map[string]any {
	out := make(map[string]any, len(source)+1)
	for key, value := range source {
		out[key] = value
	}
	if docType != "" {
		out[constants.DocumentTypeField] = docType
	}
	return out
}

// Search evaluates the query, sort, pagination, source filtering and
// aggregations of the body.
func (m *MockDocumentStore) Search(ctx context.Context, query model.StoreQuery) (*model.SearchHits, error) {
	if m.searchError != nil {
		return nil, m.searchError
	}

	m.mu.Lock()
	m.queries = append(m.queries, query)
	m.mu.Unlock()

	clause, _ := query.Body["query"].(map[string]any)
	hits, err := m.matching(query.Indices, clause)
	if err != nil {
		return nil, errors.NewValidation("invalid query", err)
	}

	sortHits(hits, query.Body["sort"])

	result := &model.SearchHits{Total: len(hits)}
	if aggs, ok := query.Body["aggs"].(map[string]any); ok {
		sources := make([]map[string]any, len(hits))
		for i, hit := range hits {
			sources[i] = hit.Source
		}
		aggregations, errAgg := aggregate(sources, aggs)
		if errAgg != nil {
			return nil, errors.NewValidation("invalid aggregation", errAgg)
		}
		result.Aggregations = aggregations
	}

	from := toInt(query.Body["from"])
	size := constants.DefaultSearchLimit
	if raw, ok := query.Body["size"]; ok {
		size = toInt(raw)
	}
	if from > len(hits) {
		from = len(hits)
	}
	end := min(from+size, len(hits))

	includes, excludes := sourceFilter(query.Body["_source"])
	for _, hit := range hits[from:end] {
		hit.Source = filterSource(hit.Source, includes, excludes)
		result.Hits = append(result.Hits, hit)
	}
	return result, nil
}

func (m *MockDocumentStore) matching(indices []string, clause map[string]any) ([]model.Hit, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var hits []model.Hit
	for index, documents := range m.documents {
		if len(indices) > 0 && !slices.Contains(indices, index) {
			continue
		}
		for _, stored := range documents {
			doc, err := stored.decode()
			if err != nil {
				return nil, err
			}
			ok, err := matches(doc.Source, doc.ID, clause)
			if err != nil {
				return nil, err
			}
			if ok {
				hits = append(hits, model.Hit{ID: doc.ID, Index: doc.Index, Type: doc.Type, Source: doc.Source})
			}
		}
	}
	sort.Slice(hits, func(i, j int) bool { return hits[i].ID < hits[j].ID })
	return hits, nil
}

// Scan yields every matching document.
func (m *MockDocumentStore) Scan(ctx context.Context, index string, query map[string]any) iter.Seq2[model.Hit, error] {
	return func(yield func(model.Hit, error) bool) {
		hits, err := m.matching([]string{index}, query)
		if err != nil {
			yield(model.Hit{}, err)
			return
		}
		for _, hit := range hits {
			if !yield(hit, nil) {
				return
			}
		}
	}
}

// IsReady returns the configured readiness error.
func (m *MockDocumentStore) IsReady(ctx context.Context) error {
	return m.readyError
}

// Queries returns the search bodies received so far.
func (m *MockDocumentStore) Queries() []model.StoreQuery {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return slices.Clone(m.queries)
}

// Mapping returns the mapping recorded for index.
func (m *MockDocumentStore) Mapping(index string) map[string]any {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.mappings[index]
}

// Count returns the number of documents stored in index.
func (m *MockDocumentStore) Count(index string) int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.documents[index])
}

// SetIndexError makes every Index call fail with err.
func (m *MockDocumentStore) SetIndexError(err error) {
	m.indexError = err
}

// SetSearchError makes every Search call fail with err.
func (m *MockDocumentStore) SetSearchError(err error) {
	m.searchError = err
}

// SetDeleteError makes every Delete call fail with err.
func (m *MockDocumentStore) SetDeleteError(err error) {
	m.deleteError = err
}

// SetIsReadyError sets the error returned by IsReady.
func (m *MockDocumentStore) SetIsReadyError(err error) {
	m.readyError = err
}

func sortHits(hits []model.Hit, raw any) {
	var keys []any
	switch v := raw.(type) {
	case []any:
		keys = v
	case nil:
		return
	default:
		keys = []any{v}
	}

	type sortKey struct {
		field string
		desc  bool
	}
	var order []sortKey
	for _, key := range keys {
		switch k := key.(type) {
		case string:
			order = append(order, sortKey{field: k})
		case map[string]any:
			for field, direction := range k {
				desc := direction == "desc"
				if opts, ok := direction.(map[string]any); ok {
					desc = opts["order"] == "desc"
				}
				order = append(order, sortKey{field: field, desc: desc})
			}
		}
	}

	sort.SliceStable(hits, func(i, j int) bool {
		for _, key := range order {
			a, b := first(values(hits[i].Source, key.field)), first(values(hits[j].Source, key.field))
			if a == nil || b == nil || fmt.Sprint(a) == fmt.Sprint(b) {
				continue
			}
			if key.desc {
				return less(b, a)
			}
			return less(a, b)
		}
		return false
	})
}

func first(list []any) any {
	if len(list) == 0 {
		return nil
	}
	return list[0]
}

func sourceFilter(raw any) ([]string, []string) {
	filter, ok := raw.(map[string]any)
	if !ok {
		return nil, nil
	}
	return stringList(filter["includes"]), stringList(filter["excludes"])
}

func stringList(raw any) []string {
	var out []string
	for _, item := range toList(raw) {
		if s, ok := item.(string); ok {
			out = append(out, s)
		}
	}
	return out
}

func filterSource(source map[string]any, includes, excludes []string) map[string]any {
	if len(includes) == 0 && len(excludes) == 0 {
		return source
	}
	out := make(map[string]any, len(source))
	for key, value := range source {
		if len(includes) > 0 && !slices.Contains(includes, key) {
			continue
		}
		if slices.Contains(excludes, key) {
			continue
		}
		out[key] = value
	}
	return out
}
