// Copyright The Linux Foundation and each contributor to LFX.
// SPDX-License-Identifier: MIT

package opensearch

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"testing"

	"github.com/linuxfoundation/lfx-v2-search-gateway/internal/domain/model"
	"github.com/linuxfoundation/lfx-v2-search-gateway/pkg/constants"
	"github.com/linuxfoundation/lfx-v2-search-gateway/pkg/errors"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// MockOpenSearchClient is a mock implementation of OpenSearchClientRetriever
type MockOpenSearchClient struct {
	searchResponses []*SearchResponse
	searchBodies    [][]byte
	searchError     error

	indexed  map[string][]byte
	routing  map[string]string
	getResp  *GetResponse
	deleted  bool
	bulkBody []byte
	bulkResp *BulkResponse
	err      error
}

func NewMockOpenSearchClient() *MockOpenSearchClient {
	return &MockOpenSearchClient{
		indexed: map[string][]byte{},
		routing: map[string]string{},
	}
}

func (m *MockOpenSearchClient) Search(ctx context.Context, indices []string, query []byte, ignoreUnavailable bool) (*SearchResponse, error) {
	m.searchBodies = append(m.searchBodies, query)
	if m.searchError != nil {
		return nil, m.searchError
	}
	if len(m.searchResponses) == 0 {
		return &SearchResponse{}, nil
	}
	resp := m.searchResponses[0]
	m.searchResponses = m.searchResponses[1:]
	return resp, nil
}

func (m *MockOpenSearchClient) Index(ctx context.Context, index, id, routing string, body []byte) error {
	if m.err != nil {
		return m.err
	}
	m.indexed[index+"/"+id] = body
	m.routing[index+"/"+id] = routing
	return nil
}

func (m *MockOpenSearchClient) Get(ctx context.Context, index, id, routing string) (*GetResponse, error) {
	if m.err != nil {
		return nil, m.err
	}
	return m.getResp, nil
}

func (m *MockOpenSearchClient) Delete(ctx context.Context, index, id, routing string) (bool, error) {
	return m.deleted, m.err
}

func (m *MockOpenSearchClient) Bulk(ctx context.Context, body []byte) (*BulkResponse, error) {
	m.bulkBody = body
	if m.err != nil {
		return nil, m.err
	}
	return m.bulkResp, nil
}

func (m *MockOpenSearchClient) CreateIndex(ctx context.Context, index string, body []byte) (bool, error) {
	m.indexed[index] = body
	return true, m.err
}

func (m *MockOpenSearchClient) IsReady(ctx context.Context) error {
	return m.err
}

func TestDocumentStoreIndexRoutesChildren(t *testing.T) {
	assertion := assert.New(t)
	client := NewMockOpenSearchClient()
	store := &DocumentStore{client: client}

	err := store.Index(context.Background(), model.Document{
		ID:     "R1",
		Type:   "OS::Designate::RecordSet",
		Index:  constants.DefaultIndex,
		Parent: "Z1",
		Source: map[string]any{"name": "www"},
	})

	require.NoError(t, err)
	assertion.JSONEq(`{"name":"www"}`, string(client.indexed[constants.DefaultIndex+"/R1"]))
	assertion.Equal("Z1", client.routing[constants.DefaultIndex+"/R1"])
}

func TestDocumentStoreGet(t *testing.T) {
	ref := model.DocumentRef{Index: constants.DefaultIndex, Type: "OS::Nova::Server", ID: "s1"}

	tests := []struct {
		name           string
		resp           *GetResponse
		err            error
		expectNotFound bool
		expectError    bool
	}{
		{
			name: "found",
			resp: &GetResponse{Found: true, Source: json.RawMessage(`{"name":"web","document_type":"OS::Nova::Server"}`)},
		},
		{
			name:           "missing",
			resp:           &GetResponse{Found: false},
			expectNotFound: true,
		},
		{
			name:           "other type under the same id",
			resp:           &GetResponse{Found: true, Source: json.RawMessage(`{"document_type":"OS::Glance::Image"}`)},
			expectNotFound: true,
		},
		{
			name:        "cluster unreachable",
			err:         &ResponseError{Op: "get", Err: fmt.Errorf("connection refused")},
			expectError: true,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			assertion := assert.New(t)
			client := NewMockOpenSearchClient()
			client.getResp = tc.resp
			client.err = tc.err
			store := &DocumentStore{client: client}

			doc, err := store.Get(context.Background(), ref)

			switch {
			case tc.expectNotFound:
				assertion.True(errors.IsNotFound(err))
			case tc.expectError:
				var unavailable errors.ServiceUnavailable
				assertion.ErrorAs(err, &unavailable)
			default:
				require.NoError(t, err)
				assertion.Equal("web", doc.Source["name"])
				assertion.Equal(ref.Type, doc.Type)
			}
		})
	}
}

func TestDocumentStoreDelete(t *testing.T) {
	tests := []struct {
		name     string
		deleted  bool
		err      error
		expected model.DeleteResult
	}{
		{name: "deleted", deleted: true, expected: model.DeleteResultDeleted},
		{name: "already absent", deleted: false, expected: model.DeleteResultAlreadyAbsent},
		{name: "failure", err: &ResponseError{Op: "delete", Status: http.StatusInternalServerError, Err: fmt.Errorf("shard failure")}, expected: model.DeleteResultFailed},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			assertion := assert.New(t)
			client := NewMockOpenSearchClient()
			client.deleted = tc.deleted
			client.err = tc.err
			store := &DocumentStore{client: client}

			result, err := store.Delete(context.Background(), model.DocumentRef{Index: constants.DefaultIndex, ID: "s1"})

			assertion.Equal(tc.expected, result)
			assertion.Equal(tc.err != nil, err != nil)
		})
	}
}

func TestRenderBulk(t *testing.T) {
	assertion := assert.New(t)

	body, err := renderBulk([]model.BulkAction{
		{Op: model.BulkOpIndex, Index: "resources", ID: "z1", Source: map[string]any{"name": "example.org."}},
		{Op: model.BulkOpCreate, Index: "resources", ID: "r\"1", Parent: "z1", Source: map[string]any{"zone_id": "z1"}},
		{Op: model.BulkOpUpdate, Index: "resources", ID: "i1", Doc: map[string]any{"status": "active"}},
		{Op: model.BulkOpUpdate, Index: "resources", ID: "i2", Script: "ctx._source.x = params.x", Params: map[string]any{"x": 1}},
		{Op: model.BulkOpDelete, Index: "resources", ID: "s1"},
	})
	require.NoError(t, err)

	lines := strings.Split(strings.TrimSuffix(string(body), "\n"), "\n")
	require.Len(t, lines, 9)
	expected := []string{
		`{"index":{"_index":"resources","_id":"z1"}}`,
		`{"name":"example.org."}`,
		`{"create":{"_index":"resources","_id":"r\"1","routing":"z1"}}`,
		`{"zone_id":"z1"}`,
		`{"update":{"_index":"resources","_id":"i1"}}`,
		`{"doc":{"status":"active"}}`,
		`{"update":{"_index":"resources","_id":"i2"}}`,
		`{"script":{"params":{"x":1},"source":"ctx._source.x = params.x"}}`,
		`{"delete":{"_index":"resources","_id":"s1"}}`,
	}
	for i, line := range lines {
		assertion.JSONEq(expected[i], line, "line %d", i)
	}
}

func TestDocumentStoreBulk(t *testing.T) {
	assertion := assert.New(t)
	client := NewMockOpenSearchClient()
	client.bulkResp = &BulkResponse{
		Errors: true,
		Items: []BulkItem{
			{ID: "z1", Status: http.StatusCreated, Result: "created"},
			{ID: "z2", Status: http.StatusConflict, Reason: "version_conflict_engine_exception: document already exists"},
			{ID: "z3", Status: http.StatusNotFound},
		},
	}
	store := &DocumentStore{client: client}

	result, err := store.Bulk(context.Background(), []model.BulkAction{
		{Op: model.BulkOpCreate, Index: "resources", Type: "OS::Designate::Zone", ID: "z1", Source: map[string]any{}},
		{Op: model.BulkOpCreate, Index: "resources", Type: "OS::Designate::Zone", ID: "z2", Source: map[string]any{}},
		{Op: model.BulkOpDelete, Index: "resources", Type: "OS::Designate::Zone", ID: "z3"},
	})

	require.NoError(t, err)
	assertion.Equal(1, result.Success)
	assertion.Equal(2, result.Failed)
	assertion.Equal([]model.BulkItemError{
		{ID: "z2", Type: "OS::Designate::Zone", Status: http.StatusConflict, Message: "version_conflict_engine_exception: document already exists"},
		{ID: "z3", Type: "OS::Designate::Zone", Status: http.StatusNotFound, Message: "Not Found"},
	}, result.Errors)
	assertion.Equal(5, bytes.Count(client.bulkBody, []byte("\n")))
}

func TestDocumentStoreSearch(t *testing.T) {
	assertion := assert.New(t)
	client := NewMockOpenSearchClient()
	client.searchResponses = []*SearchResponse{{
		Hits: Hits{
			Total: Total{Value: 2},
			Hits: []Hit{
				{ID: "s1", Index: "resources", Source: json.RawMessage(`{"name":"web","document_type":"OS::Nova::Server"}`)},
				{ID: "bad", Index: "resources", Source: json.RawMessage(`{"name":`)},
			},
		},
		Aggregations: json.RawMessage(`{"facet_0":{"buckets":[{"key":"ACTIVE","doc_count":1}]}}`),
	}}
	store := &DocumentStore{client: client}

	result, err := store.Search(context.Background(), model.StoreQuery{
		Indices: []string{"resources"},
		Body:    map[string]any{"query": map[string]any{"match_all": map[string]any{}}},
	})

	require.NoError(t, err)
	assertion.Equal(2, result.Total)
	require.Len(t, result.Hits, 1)
	assertion.Equal("OS::Nova::Server", result.Hits[0].Type)
	assertion.Equal(map[string]any{
		"facet_0": map[string]any{"buckets": []any{map[string]any{"key": "ACTIVE", "doc_count": float64(1)}}},
	}, result.Aggregations)
	assertion.JSONEq(`{"query":{"match_all":{}}}`, string(client.searchBodies[0]))
}

func TestDocumentStoreScanPages(t *testing.T) {
	assertion := assert.New(t)
	client := NewMockOpenSearchClient()

	fullPage := make([]Hit, constants.ScanPageSize)
	for i := range fullPage {
		fullPage[i] = Hit{ID: fmt.Sprintf("r%04d", i), Source: json.RawMessage(`{}`), Sort: []any{fmt.Sprintf("r%04d", i)}}
	}
	client.searchResponses = []*SearchResponse{
		{Hits: Hits{Hits: fullPage}},
		{Hits: Hits{Hits: []Hit{{ID: "zzz", Source: json.RawMessage(`{}`), Sort: []any{"zzz"}}}}},
	}
	store := &DocumentStore{client: client}

	count := 0
	for _, err := range store.Scan(context.Background(), "resources", map[string]any{"term": map[string]any{"zone_id": "z1"}}) {
		require.NoError(t, err)
		count++
	}

	assertion.Equal(constants.ScanPageSize+1, count)
	require.Len(t, client.searchBodies, 2)

	var first, second map[string]any
	require.NoError(t, json.Unmarshal(client.searchBodies[0], &first))
	require.NoError(t, json.Unmarshal(client.searchBodies[1], &second))
	assertion.NotContains(first, "search_after")
	assertion.Equal([]any{fmt.Sprintf("r%04d", constants.ScanPageSize-1)}, second["search_after"])
	assertion.Equal(map[string]any{"term": map[string]any{"zone_id": "z1"}}, second["query"])
}

func TestDocumentStoreScanStopsOnError(t *testing.T) {
	assertion := assert.New(t)
	client := NewMockOpenSearchClient()
	client.searchError = &ResponseError{Op: "search", Status: http.StatusServiceUnavailable, Err: fmt.Errorf("no shards")}
	store := &DocumentStore{client: client}

	var errs []error
	for _, err := range store.Scan(context.Background(), "resources", nil) {
		errs = append(errs, err)
	}

	require.Len(t, errs, 1)
	var unavailable errors.ServiceUnavailable
	assertion.ErrorAs(errs[0], &unavailable)
}

func TestTranslate(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		target any
	}{
		{name: "no response", err: &ResponseError{Op: "search", Err: fmt.Errorf("dial tcp")}, target: &errors.ServiceUnavailable{}},
		{name: "bad request", err: &ResponseError{Op: "search", Status: http.StatusBadRequest, Err: fmt.Errorf("parse")}, target: &errors.Validation{}},
		{name: "not found", err: &ResponseError{Op: "search", Status: http.StatusNotFound, Err: fmt.Errorf("no index")}, target: &errors.NotFound{}},
		{name: "conflict", err: &ResponseError{Op: "index", Status: http.StatusConflict, Err: fmt.Errorf("version")}, target: &errors.Conflict{}},
		{name: "server error", err: &ResponseError{Op: "index", Status: http.StatusInternalServerError, Err: fmt.Errorf("boom")}, target: &errors.Unexpected{}},
		{name: "plain error", err: fmt.Errorf("boom"), target: &errors.Unexpected{}},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			assertion := assert.New(t)
			assertion.ErrorAs(translate(tc.err), tc.target)
		})
	}
}

func TestNewDocumentStoreRequiresURL(t *testing.T) {
	assertion := assert.New(t)

	store, err := NewDocumentStore(context.Background(), Config{})

	assertion.Error(err)
	assertion.Nil(store)
}
