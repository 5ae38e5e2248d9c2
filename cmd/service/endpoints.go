// Copyright The Linux Foundation and each contributor to LFX.
// SPDX-License-Identifier: MIT

package service

import (
	"context"

	goa "goa.design/goa/v3/pkg"
)

// Endpoints wraps the search gateway methods so transport independent
// middleware can be applied to them.
type Endpoints struct {
	Search  goa.Endpoint
	Facets  goa.Endpoint
	Index   goa.Endpoint
	Plugins goa.Endpoint
	Readyz  goa.Endpoint
	Livez   goa.Endpoint
}

// newEndpoints wraps the methods of s into endpoints.
func newEndpoints(s *searchGatewaysrvc) *Endpoints {
	return &Endpoints{
		Search: func(ctx context.Context, req any) (any, error) {
			return s.Search(ctx, req.(*SearchPayload))
		},
		Facets: func(ctx context.Context, req any) (any, error) {
			return s.Facets(ctx, req.(*FacetsPayload))
		},
		Index: func(ctx context.Context, req any) (any, error) {
			return s.Index(ctx, req.(*IndexPayload))
		},
		Plugins: func(ctx context.Context, req any) (any, error) {
			return s.Plugins(ctx, req.(*PluginsPayload))
		},
		Readyz: func(ctx context.Context, req any) (any, error) {
			return s.Readyz(ctx)
		},
		Livez: func(ctx context.Context, req any) (any, error) {
			return s.Livez(ctx)
		},
	}
}

// Use applies the given middleware to all the endpoints.
func (e *Endpoints) Use(m func(goa.Endpoint) goa.Endpoint) {
	e.Search = m(e.Search)
	e.Facets = m(e.Facets)
	e.Index = m(e.Index)
	e.Plugins = m(e.Plugins)
	e.Readyz = m(e.Readyz)
	e.Livez = m(e.Livez)
}
