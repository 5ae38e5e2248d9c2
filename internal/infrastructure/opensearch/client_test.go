// Copyright The Linux Foundation and each contributor to LFX.
// SPDX-License-Identifier: MIT

package opensearch

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/linuxfoundation/lfx-v2-search-gateway/pkg/errors"

	"github.com/opensearch-project/opensearch-go/v4"
	"github.com/opensearch-project/opensearch-go/v4/opensearchapi"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestHTTPClient(t *testing.T, handler http.HandlerFunc) *httpClient {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	client, err := opensearchapi.NewClient(opensearchapi.Config{
		Client: opensearch.Config{Addresses: []string{server.URL}},
	})
	require.NoError(t, err)
	return &httpClient{client: client}
}

func failWith(status int) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodHead {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_, _ = fmt.Fprintf(w, `{"error":{"type":"rejected","reason":"rejected by test"},"status":%d}`, status)
	}
}

func TestHTTPClientKeepsFailureStatus(t *testing.T) {
	tests := []struct {
		name           string
		status         int
		call           func(c *httpClient) error
		expectedOp     string
		expectedTarget any
	}{
		{
			name:   "get",
			status: http.StatusBadRequest,
			call: func(c *httpClient) error {
				_, err := c.Get(context.Background(), "resources", "i1", "")
				return err
			},
			expectedOp:     "get",
			expectedTarget: &errors.Validation{},
		},
		{
			name:   "delete",
			status: http.StatusConflict,
			call: func(c *httpClient) error {
				_, err := c.Delete(context.Background(), "resources", "i1", "")
				return err
			},
			expectedOp:     "delete",
			expectedTarget: &errors.Conflict{},
		},
		{
			name:   "bulk",
			status: http.StatusBadRequest,
			call: func(c *httpClient) error {
				_, err := c.Bulk(context.Background(), []byte("{\"delete\":{\"_index\":\"resources\",\"_id\":\"i1\"}}\n"))
				return err
			},
			expectedOp:     "bulk",
			expectedTarget: &errors.Validation{},
		},
		{
			name:   "create index",
			status: http.StatusBadRequest,
			call: func(c *httpClient) error {
				_, err := c.CreateIndex(context.Background(), "resources", []byte(`{"mappings":{}}`))
				return err
			},
			expectedOp:     "create index",
			expectedTarget: &errors.Validation{},
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			assertion := assert.New(t)
			client := newTestHTTPClient(t, failWith(tc.status))

			err := tc.call(client)

			var responseErr *ResponseError
			require.ErrorAs(t, err, &responseErr)
			assertion.Equal(tc.expectedOp, responseErr.Op)
			assertion.Equal(tc.status, responseErr.Status)
			assertion.ErrorAs(translate(err), tc.expectedTarget)
		})
	}
}

func TestHTTPClientMissingDocument(t *testing.T) {
	assertion := assert.New(t)
	client := newTestHTTPClient(t, failWith(http.StatusNotFound))

	resp, err := client.Get(context.Background(), "resources", "gone", "")
	require.NoError(t, err)
	assertion.False(resp.Found)

	deleted, err := client.Delete(context.Background(), "resources", "gone", "")
	require.NoError(t, err)
	assertion.False(deleted)
}
