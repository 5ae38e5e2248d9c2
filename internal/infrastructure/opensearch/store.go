// Copyright The Linux Foundation and each contributor to LFX.
// SPDX-License-Identifier: MIT

package opensearch

import (
	"bytes"
	"context"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"iter"
	"log/slog"
	"net"
	"net/http"
	"text/template"
	"time"

	"github.com/linuxfoundation/lfx-v2-search-gateway/internal/domain/model"
	"github.com/linuxfoundation/lfx-v2-search-gateway/internal/domain/port"
	"github.com/linuxfoundation/lfx-v2-search-gateway/pkg/constants"
	"github.com/linuxfoundation/lfx-v2-search-gateway/pkg/errors"

	"github.com/opensearch-project/opensearch-go/v4"
	"github.com/opensearch-project/opensearch-go/v4/opensearchapi"
)

func quoteJSON(s string) (string, error) {
	quoted, err := json.Marshal(s)
	return string(quoted), err
}

var (
	bulkMetaTemplate = template.Must(
		template.New("bulkMeta").
			Funcs(template.FuncMap{"quote": quoteJSON}).
			Parse(bulkMetaSource))
	scanQueryTemplate = template.Must(template.New("scanQuery").Parse(scanQuerySource))
)

// OpenSearchClientRetriever defines the interface for OpenSearch operations
// This allows for easy mocking and testing
type OpenSearchClientRetriever interface {
	Search(ctx context.Context, indices []string, query []byte, ignoreUnavailable bool) (*SearchResponse, error)
	Index(ctx context.Context, index, id, routing string, body []byte) error
	Get(ctx context.Context, index, id, routing string) (*GetResponse, error)
	Delete(ctx context.Context, index, id, routing string) (bool, error)
	Bulk(ctx context.Context, body []byte) (*BulkResponse, error)
	CreateIndex(ctx context.Context, index string, body []byte) (bool, error)
	IsReady(ctx context.Context) error
}

// DocumentStore implements port.DocumentStore on OpenSearch. Child
// documents are routed by their parent id so they share its shard.
type DocumentStore struct {
	client OpenSearchClientRetriever
}

var _ port.DocumentStore = (*DocumentStore)(nil)

// CreateIndex creates index with mapping unless it already exists.
func (s *DocumentStore) CreateIndex(ctx context.Context, index string, mapping map[string]any) error {
	body, err := json.Marshal(map[string]any{"mappings": mapping})
	if err != nil {
		return errors.NewUnexpected("failed to encode index mapping", err)
	}

	created, err := s.client.CreateIndex(ctx, index, body)
	if err != nil {
		return translate(err)
	}
	slog.InfoContext(ctx, "opensearch index checked", "index", index, "created", created)
	return nil
}

func (s *DocumentStore) Index(ctx context.Context, doc model.Document) error {
	body, err := json.Marshal(doc.Source)
	if err != nil {
		return errors.NewValidation(fmt.Sprintf("document %s cannot be encoded", doc.ID), err)
	}
	if err := s.client.Index(ctx, doc.Index, doc.ID, doc.Parent, body); err != nil {
		return translate(err)
	}
	return nil
}

func (s *DocumentStore) Get(ctx context.Context, ref model.DocumentRef) (*model.Document, error) {
	resp, err := s.client.Get(ctx, ref.Index, ref.ID, ref.Parent)
	if err != nil {
		return nil, translate(err)
	}
	if !resp.Found {
		return nil, errors.NewNotFound(fmt.Sprintf("document %s of type %s not found", ref.ID, ref.Type))
	}

	var source map[string]any
	if err := json.Unmarshal(resp.Source, &source); err != nil {
		return nil, errors.NewUnexpected(fmt.Sprintf("document %s has an unreadable source", ref.ID), err)
	}
	if docType, _ := source[constants.DocumentTypeField].(string); ref.Type != "" && docType != ref.Type {
		return nil, errors.NewNotFound(fmt.Sprintf("document %s of type %s not found", ref.ID, ref.Type))
	}

	return &model.Document{
		ID:     ref.ID,
		Type:   ref.Type,
		Index:  ref.Index,
		Parent: ref.Parent,
		Source: source,
	}, nil
}

func (s *DocumentStore) Delete(ctx context.Context, ref model.DocumentRef) (model.DeleteResult, error) {
	deleted, err := s.client.Delete(ctx, ref.Index, ref.ID, ref.Parent)
	if err != nil {
		return model.DeleteResultFailed, translate(err)
	}
	if !deleted {
		return model.DeleteResultAlreadyAbsent, nil
	}
	return model.DeleteResultDeleted, nil
}

// Bulk sends the actions in batches and collects per-item failures.
func (s *DocumentStore) Bulk(ctx context.Context, actions []model.BulkAction) (*model.BulkResult, error) {
	result := &model.BulkResult{Errors: []model.BulkItemError{}}

	for start := 0; start < len(actions); start += constants.BulkBatchSize {
		batch := actions[start:min(start+constants.BulkBatchSize, len(actions))]
		body, err := renderBulk(batch)
		if err != nil {
			return nil, errors.NewValidation("invalid bulk action", err)
		}

		resp, err := s.client.Bulk(ctx, body)
		if err != nil {
			return nil, translate(err)
		}
		if len(resp.Items) != len(batch) {
			return nil, errors.NewUnexpected(fmt.Sprintf("bulk response has %d items for %d actions", len(resp.Items), len(batch)))
		}

		for i, item := range resp.Items {
			if item.Status >= http.StatusOK && item.Status < http.StatusMultipleChoices {
				result.Success++
				continue
			}
			message := item.Reason
			if message == "" {
				message = http.StatusText(item.Status)
			}
			result.Failed++
			result.Errors = append(result.Errors, model.BulkItemError{
				ID:      batch[i].ID,
				Type:    batch[i].Type,
				Status:  item.Status,
				Message: message,
			})
		}
	}

	slog.DebugContext(ctx, "opensearch bulk completed",
		"success", result.Success,
		"failed", result.Failed,
	)
	return result, nil
}

// renderBulk builds the newline-delimited bulk body.
func renderBulk(actions []model.BulkAction) ([]byte, error) {
	var out bytes.Buffer
	for _, action := range actions {
		var meta bytes.Buffer
		if err := bulkMetaTemplate.Execute(&meta, bulkMeta{
			Op:      string(action.Op),
			Index:   action.Index,
			ID:      action.ID,
			Routing: action.Parent,
		}); err != nil {
			return nil, err
		}
		if err := json.Compact(&out, meta.Bytes()); err != nil {
			return nil, err
		}
		out.WriteByte('\n')

		var document any
		switch action.Op {
		case model.BulkOpIndex, model.BulkOpCreate:
			document = action.Source
		case model.BulkOpUpdate:
			if action.Script != "" {
				document = map[string]any{"script": map[string]any{
					"source": action.Script,
					"params": action.Params,
				}}
			} else {
				document = map[string]any{"doc": action.Doc}
			}
		case model.BulkOpDelete:
			continue
		default:
			return nil, fmt.Errorf("unknown bulk operation %q", action.Op)
		}
		line, err := json.Marshal(document)
		if err != nil {
			return nil, err
		}
		out.Write(line)
		out.WriteByte('\n')
	}
	return out.Bytes(), nil
}

func (s *DocumentStore) Search(ctx context.Context, query model.StoreQuery) (*model.SearchHits, error) {
	body, err := json.Marshal(query.Body)
	if err != nil {
		return nil, errors.NewValidation("query cannot be encoded", err)
	}

	resp, err := s.client.Search(ctx, query.Indices, body, query.IgnoreUnavailable)
	if err != nil {
		return nil, translate(err)
	}

	result, err := convertResponse(ctx, resp)
	if err != nil {
		return nil, errors.NewUnexpected("failed to convert search response", err)
	}
	return result, nil
}

// convertResponse converts OpenSearch response to domain objects
func convertResponse(ctx context.Context, resp *SearchResponse) (*model.SearchHits, error) {
	result := &model.SearchHits{
		Total: resp.Hits.Total.Value,
		Hits:  make([]model.Hit, 0, len(resp.Hits.Hits)),
	}

	for _, hit := range resp.Hits.Hits {
		var source map[string]any
		if len(hit.Source) > 0 {
			if err := json.Unmarshal(hit.Source, &source); err != nil {
				// Log error but continue processing other hits
				slog.ErrorContext(ctx, "failed to convert hit", "hit_id", hit.ID, "error", err)
				continue
			}
		}
		docType, _ := source[constants.DocumentTypeField].(string)
		result.Hits = append(result.Hits, model.Hit{
			ID:     hit.ID,
			Index:  hit.Index,
			Type:   docType,
			Source: source,
			Sort:   hit.Sort,
		})
	}

	if len(resp.Aggregations) > 0 {
		if err := json.Unmarshal(resp.Aggregations, &result.Aggregations); err != nil {
			return nil, fmt.Errorf("unexpected aggregation shape: %w", err)
		}
	}
	return result, nil
}

type scanPage struct {
	Size  int
	Query string
	After string
}

// Scan walks every match with search_after, one page at a time.
func (s *DocumentStore) Scan(ctx context.Context, index string, query map[string]any) iter.Seq2[model.Hit, error] {
	return func(yield func(model.Hit, error) bool) {
		if len(query) == 0 {
			query = map[string]any{"match_all": map[string]any{}}
		}
		encodedQuery, err := json.Marshal(query)
		if err != nil {
			yield(model.Hit{}, errors.NewValidation("scan query cannot be encoded", err))
			return
		}

		page := scanPage{Size: constants.ScanPageSize, Query: string(encodedQuery)}
		for {
			var body bytes.Buffer
			if err := scanQueryTemplate.Execute(&body, page); err != nil {
				yield(model.Hit{}, errors.NewUnexpected("failed to render scan query", err))
				return
			}

			resp, err := s.client.Search(ctx, []string{index}, body.Bytes(), true)
			if err != nil {
				yield(model.Hit{}, translate(err))
				return
			}
			hits, err := convertResponse(ctx, resp)
			if err != nil {
				yield(model.Hit{}, errors.NewUnexpected("failed to convert scan page", err))
				return
			}

			for _, hit := range hits.Hits {
				if !yield(hit, nil) {
					return
				}
			}
			if len(resp.Hits.Hits) < page.Size {
				return
			}

			after, err := json.Marshal(resp.Hits.Hits[len(resp.Hits.Hits)-1].Sort)
			if err != nil {
				yield(model.Hit{}, errors.NewUnexpected("failed to encode scan cursor", err))
				return
			}
			page.After = string(after)
		}
	}
}

func (s *DocumentStore) IsReady(ctx context.Context) error {
	return s.client.IsReady(ctx)
}

// translate maps OpenSearch failures onto the error kinds callers branch on.
func translate(err error) error {
	var responseErr *ResponseError
	if !stderrors.As(err, &responseErr) {
		return errors.NewUnexpected("opensearch request failed", err)
	}
	switch responseErr.Status {
	case 0, http.StatusServiceUnavailable, http.StatusGatewayTimeout, http.StatusTooManyRequests:
		return errors.NewServiceUnavailable("opensearch is unavailable", err)
	case http.StatusBadRequest:
		return errors.NewValidation("opensearch rejected the request", err)
	case http.StatusNotFound:
		return errors.NewNotFound("opensearch resource not found", err)
	case http.StatusConflict:
		return errors.NewConflict("opensearch version conflict", err)
	default:
		return errors.NewUnexpected("opensearch request failed", err)
	}
}

// NewDocumentStore returns a DocumentStore talking to the cluster at config.URL
func NewDocumentStore(ctx context.Context, config Config) (*DocumentStore, error) {

	if config.URL == "" {
		slog.ErrorContext(ctx, "opensearch URL is required")
		return nil, fmt.Errorf("opensearch URL is required")
	}

	opensearchClient, errOpensearchClient := opensearchapi.NewClient(opensearchapi.Config{
		Client: opensearch.Config{
			Addresses: []string{config.URL},
			Transport: &http.Transport{
				MaxIdleConnsPerHost:   10,
				ResponseHeaderTimeout: 10 * time.Second,
				DialContext:           (&net.Dialer{Timeout: 3 * time.Second}).DialContext,
			},
		},
	})
	if errOpensearchClient != nil {
		slog.ErrorContext(ctx, "failed to create OpenSearch client", "error", errOpensearchClient)
		return nil, fmt.Errorf("failed to create OpenSearch client: %w", errOpensearchClient)
	}

	return &DocumentStore{
		client: &httpClient{
			client: opensearchClient,
		},
	}, nil
}
