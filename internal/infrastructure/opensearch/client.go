// Copyright The Linux Foundation and each contributor to LFX.
// SPDX-License-Identifier: MIT

package opensearch

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/opensearch-project/opensearch-go/v4"
	"github.com/opensearch-project/opensearch-go/v4/opensearchapi"
)

type httpClient struct {
	client *opensearchapi.Client
}

// statusOf returns the HTTP status of an API response, 0 when no response
// was received.
func statusOf(resp *opensearch.Response) int {
	if resp == nil {
		return 0
	}
	return resp.StatusCode
}

// statusOfResult is statusOf for the typed results of the API client.
func statusOfResult[T any, PT interface {
	*T
	Inspect() opensearchapi.Inspect
}](result PT) int {
	if result == nil {
		return 0
	}
	return statusOf(result.Inspect().Response)
}

func (c *httpClient) Search(ctx context.Context, indices []string, query []byte, ignoreUnavailable bool) (*SearchResponse, error) {

	slog.DebugContext(ctx, "executing opensearch search",
		"indices", indices,
		"query", string(query),
	)

	searchRequest := opensearchapi.SearchReq{
		Indices: indices,
		Body:    bytes.NewReader(query),
		Params: opensearchapi.SearchParams{
			IgnoreUnavailable: &ignoreUnavailable,
		},
	}

	searchResponse, errSearchResponse := c.client.Search(ctx, &searchRequest)
	if errSearchResponse != nil {
		status := 0
		if searchResponse != nil {
			status = statusOf(searchResponse.Inspect().Response)
		}
		return nil, &ResponseError{Op: "search", Status: status, Err: errSearchResponse}
	}

	// Check for errors in the response
	if searchResponse.Errors {
		return nil, fmt.Errorf("opensearch search returned errors")
	}

	result := &SearchResponse{
		Hits: Hits{
			Total: Total{
				Value: searchResponse.Hits.Total.Value,
			},
			Hits: make([]Hit, len(searchResponse.Hits.Hits)),
		},
		Aggregations: searchResponse.Aggregations,
	}
	for i, hit := range searchResponse.Hits.Hits {
		result.Hits.Hits[i] = Hit{
			ID:     hit.ID,
			Index:  hit.Index,
			Source: hit.Source,
			Sort:   hit.Sort,
		}
	}

	return result, nil
}

func (c *httpClient) Index(ctx context.Context, index, id, routing string, body []byte) error {
	resp, err := c.client.Index(ctx, opensearchapi.IndexReq{
		Index:      index,
		DocumentID: id,
		Body:       bytes.NewReader(body),
		Params: opensearchapi.IndexParams{
			Routing: routing,
		},
	})
	if err != nil {
		status := 0
		if resp != nil {
			status = statusOf(resp.Inspect().Response)
		}
		return &ResponseError{Op: "index", Status: status, Err: err}
	}
	return nil
}

func (c *httpClient) Get(ctx context.Context, index, id, routing string) (*GetResponse, error) {
	resp, err := c.client.Document.Get(ctx, opensearchapi.DocumentGetReq{
		Index:      index,
		DocumentID: id,
		Params: opensearchapi.DocumentGetParams{
			Routing: routing,
		},
	})
	if err != nil {
		status := statusOfResult(resp)
		if status == http.StatusNotFound {
			return &GetResponse{Found: false}, nil
		}
		return nil, &ResponseError{Op: "get", Status: status, Err: err}
	}
	return &GetResponse{Found: resp.Found, Source: resp.Source}, nil
}

func (c *httpClient) Delete(ctx context.Context, index, id, routing string) (bool, error) {
	resp, err := c.client.Document.Delete(ctx, opensearchapi.DocumentDeleteReq{
		Index:      index,
		DocumentID: id,
		Params: opensearchapi.DocumentDeleteParams{
			Routing: routing,
		},
	})
	if err != nil {
		status := statusOfResult(resp)
		if status == http.StatusNotFound {
			return false, nil
		}
		return false, &ResponseError{Op: "delete", Status: status, Err: err}
	}
	return resp.Result != "not_found", nil
}

func (c *httpClient) Bulk(ctx context.Context, body []byte) (*BulkResponse, error) {
	resp, err := c.client.Bulk(ctx, opensearchapi.BulkReq{
		Body: bytes.NewReader(body),
	})
	if err != nil {
		return nil, &ResponseError{Op: "bulk", Status: statusOfResult(resp), Err: err}
	}

	result := &BulkResponse{Errors: resp.Errors}
	for _, entry := range resp.Items {
		for _, item := range entry {
			bulkItem := BulkItem{
				ID:     item.ID,
				Status: item.Status,
				Result: item.Result,
			}
			if item.Error != nil {
				bulkItem.Reason = fmt.Sprintf("%s: %s", item.Error.Type, item.Error.Reason)
			}
			result.Items = append(result.Items, bulkItem)
		}
	}
	return result, nil
}

func (c *httpClient) CreateIndex(ctx context.Context, index string, body []byte) (bool, error) {
	existsResp, err := c.client.Indices.Exists(ctx, opensearchapi.IndicesExistsReq{
		Indices: []string{index},
	})
	if statusOf(existsResp) == http.StatusOK {
		return false, nil
	}
	if err != nil && statusOf(existsResp) != http.StatusNotFound {
		return false, &ResponseError{Op: "index exists", Status: statusOf(existsResp), Err: err}
	}

	createResp, err := c.client.Indices.Create(ctx, opensearchapi.IndicesCreateReq{
		Index: index,
		Body:  bytes.NewReader(body),
	})
	if err != nil {
		return false, &ResponseError{Op: "create index", Status: statusOfResult(createResp), Err: err}
	}
	return true, nil
}

func (c *httpClient) IsReady(ctx context.Context) error {
	resp, err := c.client.Ping(ctx, nil)
	if err != nil {
		return &ResponseError{Op: "ping", Status: statusOf(resp), Err: err}
	}
	return nil
}

// ResponseError wraps a failed OpenSearch call with the HTTP status it
// returned, when one was received.
type ResponseError struct {
	Op     string
	Status int
	Err    error
}

func (e *ResponseError) Error() string {
	if e.Status == 0 {
		return fmt.Sprintf("opensearch %s failed: %v", e.Op, e.Err)
	}
	return fmt.Sprintf("opensearch %s failed with status %d: %v", e.Op, e.Status, e.Err)
}

func (e *ResponseError) Unwrap() error {
	return e.Err
}
