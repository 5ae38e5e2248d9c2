// Copyright The Linux Foundation and each contributor to LFX.
// SPDX-License-Identifier: MIT

package service

import (
	"context"
	"log/slog"
	"net/url"
	"strings"

	"github.com/linuxfoundation/lfx-v2-search-gateway/internal/domain/model"
	"github.com/linuxfoundation/lfx-v2-search-gateway/internal/domain/port"
	"github.com/linuxfoundation/lfx-v2-search-gateway/internal/plugin"
	usecase "github.com/linuxfoundation/lfx-v2-search-gateway/internal/service"
	"github.com/linuxfoundation/lfx-v2-search-gateway/pkg/constants"
	"github.com/linuxfoundation/lfx-v2-search-gateway/pkg/errors"
	"github.com/linuxfoundation/lfx-v2-search-gateway/pkg/log"
)

// SearchPayload is the body of a search request with its credentials.
type SearchPayload struct {
	Authorization string
	Body          map[string]any
}

// FacetsPayload carries the facets query string.
type FacetsPayload struct {
	Authorization string
	Params        url.Values
}

// IndexPayload is the body of a bulk index request with its credentials.
type IndexPayload struct {
	Authorization string
	Body          map[string]any
}

// PluginsPayload carries the credentials of a plugin listing request.
type PluginsPayload struct {
	Authorization string
}

// search-gateway service implementation using clean architecture.
type searchGatewaysrvc struct {
	resourceService *usecase.ResourceSearch
	deserializer    *usecase.RequestDeserializer
	auth            port.Authenticator
}

// authorize validates the bearer token and stores the requester in the
// returned context.
func (s *searchGatewaysrvc) authorize(ctx context.Context, authorization string) (context.Context, model.Requester, error) {
	token, found := strings.CutPrefix(authorization, "Bearer ")
	if !found {
		token, found = strings.CutPrefix(authorization, "bearer ")
	}
	if !found || strings.TrimSpace(token) == "" {
		return ctx, model.Requester{}, errors.NewUnauthorized("missing bearer token")
	}

	requester, err := s.auth.ParseRequester(ctx, strings.TrimSpace(token))
	if err != nil {
		return ctx, model.Requester{}, err
	}

	// Log the requester for debugging purposes in all logs for this request.
	ctx = log.AppendCtx(ctx, slog.String("principal", requester.UserID))
	ctx = log.AppendCtx(ctx, slog.String("project_id", requester.ProjectID))

	return context.WithValue(ctx, constants.RequesterContextID, requester), requester, nil
}

// Search runs an access-scoped query.
func (s *searchGatewaysrvc) Search(ctx context.Context, p *SearchPayload) ([]map[string]any, error) {
	ctx, requester, err := s.authorize(ctx, p.Authorization)
	if err != nil {
		return nil, wrapError(ctx, err)
	}

	req, err := s.deserializer.DecodeSearch(p.Body)
	if err != nil {
		return nil, wrapError(ctx, err)
	}

	slog.DebugContext(ctx, "searchGateway.search",
		"types", req.Types,
		"offset", req.Offset,
		"limit", req.Limit,
	)

	result, err := s.resourceService.Search(ctx, requester, req)
	if err != nil {
		return nil, wrapError(ctx, err)
	}
	return searchResultToResponse(result), nil
}

// Facets lists the fields and options a requester can filter on.
func (s *searchGatewaysrvc) Facets(ctx context.Context, p *FacetsPayload) (map[string][]model.Facet, error) {
	ctx, requester, err := s.authorize(ctx, p.Authorization)
	if err != nil {
		return nil, wrapError(ctx, err)
	}

	req, err := s.deserializer.DecodeFacets(p.Params)
	if err != nil {
		return nil, wrapError(ctx, err)
	}

	facets, err := s.resourceService.Facets(ctx, requester, req)
	if err != nil {
		return nil, wrapError(ctx, err)
	}
	return facets, nil
}

// Index applies bulk document actions. Only administrators may call it.
func (s *searchGatewaysrvc) Index(ctx context.Context, p *IndexPayload) (*model.BulkResult, error) {
	ctx, requester, err := s.authorize(ctx, p.Authorization)
	if err != nil {
		return nil, wrapError(ctx, err)
	}
	if !requester.IsAdmin {
		return nil, wrapError(ctx, errors.NewForbidden("Indexing is restricted to administrators"))
	}

	req, err := s.deserializer.DecodeIndex(p.Body)
	if err != nil {
		return nil, wrapError(ctx, err)
	}

	result, err := s.resourceService.Index(ctx, requester, req)
	if err != nil {
		return nil, wrapError(ctx, err)
	}
	return result, nil
}

// Plugins lists the registered document types.
func (s *searchGatewaysrvc) Plugins(ctx context.Context, p *PluginsPayload) ([]model.PluginInfo, error) {
	ctx, _, err := s.authorize(ctx, p.Authorization)
	if err != nil {
		return nil, wrapError(ctx, err)
	}
	return s.resourceService.PluginsInfo(), nil
}

// Check if the service is able to take inbound requests.
func (s *searchGatewaysrvc) Readyz(ctx context.Context) ([]byte, error) {
	errIsReady := s.resourceService.IsReady(ctx)
	if errIsReady != nil {
		slog.ErrorContext(ctx, "searchGateway.readyz failed", "error", errIsReady)
		return nil, wrapError(ctx, errIsReady)
	}

	return []byte("OK\n"), nil
}

// Check if the service is alive.
func (s *searchGatewaysrvc) Livez(ctx context.Context) ([]byte, error) {
	// This always returns as long as the service is still running. As this
	// endpoint is expected to be used as a Kubernetes liveness check, this
	// service must likewise self-detect non-recoverable errors and
	// self-terminate.
	return []byte("OK\n"), nil
}

// NewSearchGateway returns the search gateway service implementation.
func NewSearchGateway(registry *plugin.Registry, store port.DocumentStore, auth port.Authenticator) *Endpoints {
	svc := &searchGatewaysrvc{
		resourceService: usecase.NewResourceSearch(registry, store),
		deserializer:    usecase.NewRequestDeserializer(registry),
		auth:            auth,
	}
	return newEndpoints(svc)
}
