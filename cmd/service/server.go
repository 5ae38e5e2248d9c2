// Copyright The Linux Foundation and each contributor to LFX.
// SPDX-License-Identifier: MIT

package service

import (
	"context"
	stderrors "errors"
	"io"
	"net/http"

	"github.com/linuxfoundation/lfx-v2-search-gateway/pkg/errors"

	goahttp "goa.design/goa/v3/http"
	goa "goa.design/goa/v3/pkg"
)

const serviceName = "search-gateway"

// MountPoint holds information about the mounted endpoints.
type MountPoint struct {
	// Method is the name of the service method served by the mounted HTTP handler.
	Method string
	// Verb is the HTTP method used to match requests to the mounted handler.
	Verb string
	// Pattern is the HTTP request path pattern used to match requests to the
	// mounted handler.
	Pattern string
}

// Server lists the search gateway endpoint HTTP handlers.
type Server struct {
	Mounts []*MountPoint

	endpoints *Endpoints
	decoder   func(*http.Request) goahttp.Decoder
	encoder   func(context.Context, http.ResponseWriter) goahttp.Encoder
	errh      func(context.Context, http.ResponseWriter, error)
}

type route struct {
	method  string
	verb    string
	pattern string
	handler http.HandlerFunc
}

// NewServer instantiates HTTP handlers for all the search gateway endpoints.
func NewServer(
	e *Endpoints,
	dec func(*http.Request) goahttp.Decoder,
	enc func(context.Context, http.ResponseWriter) goahttp.Encoder,
	errh func(context.Context, http.ResponseWriter, error),
) *Server {
	s := &Server{endpoints: e, decoder: dec, encoder: enc, errh: errh}
	for _, r := range s.routes() {
		s.Mounts = append(s.Mounts, &MountPoint{Method: r.method, Verb: r.verb, Pattern: r.pattern})
	}
	return s
}

// Mount configures the mux to serve the search gateway endpoints.
func Mount(mux goahttp.Muxer, s *Server) {
	for _, r := range s.routes() {
		mux.Handle(r.verb, r.pattern, r.handler)
	}
}

func (s *Server) routes() []route {
	return []route{
		{"search", http.MethodPost, "/v1/search", s.handle("search", s.endpoints.Search, s.decodeSearch, s.encodeJSON)},
		{"facets", http.MethodGet, "/v1/search/facets", s.handle("facets", s.endpoints.Facets, decodeFacets, s.encodeJSON)},
		{"plugins", http.MethodGet, "/v1/search/plugins", s.handle("plugins", s.endpoints.Plugins, decodePlugins, s.encodeJSON)},
		{"index", http.MethodPost, "/v1/index", s.handle("index", s.endpoints.Index, s.decodeIndex, s.encodeJSON)},
		{"livez", http.MethodGet, "/livez", s.handle("livez", s.endpoints.Livez, noPayload, encodeText)},
		{"readyz", http.MethodGet, "/readyz", s.handle("readyz", s.endpoints.Readyz, noPayload, encodeText)},
	}
}

func (s *Server) handle(
	method string,
	endpoint goa.Endpoint,
	decode func(*http.Request) (any, error),
	encode func(context.Context, http.ResponseWriter, any) error,
) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := context.WithValue(r.Context(), goahttp.AcceptTypeKey, r.Header.Get("Accept"))
		ctx = context.WithValue(ctx, goa.MethodKey, method)
		ctx = context.WithValue(ctx, goa.ServiceKey, serviceName)

		payload, err := decode(r)
		if err != nil {
			s.encodeError(ctx, w, wrapError(ctx, err))
			return
		}
		res, err := endpoint(ctx, payload)
		if err != nil {
			s.encodeError(ctx, w, err)
			return
		}
		if err := encode(ctx, w, res); err != nil {
			s.errh(ctx, w, err)
		}
	}
}

// decodeBody reads an optional JSON object body.
func (s *Server) decodeBody(r *http.Request) (map[string]any, error) {
	body := map[string]any{}
	if err := s.decoder(r).Decode(&body); err != nil {
		if stderrors.Is(err, io.EOF) {
			return map[string]any{}, nil
		}
		return nil, errors.NewValidation("request body must be a JSON object", err)
	}
	return body, nil
}

func (s *Server) decodeSearch(r *http.Request) (any, error) {
	body, err := s.decodeBody(r)
	if err != nil {
		return nil, err
	}
	return &SearchPayload{Authorization: r.Header.Get("Authorization"), Body: body}, nil
}

func (s *Server) decodeIndex(r *http.Request) (any, error) {
	body, err := s.decodeBody(r)
	if err != nil {
		return nil, err
	}
	return &IndexPayload{Authorization: r.Header.Get("Authorization"), Body: body}, nil
}

func decodeFacets(r *http.Request) (any, error) {
	return &FacetsPayload{Authorization: r.Header.Get("Authorization"), Params: r.URL.Query()}, nil
}

func decodePlugins(r *http.Request) (any, error) {
	return &PluginsPayload{Authorization: r.Header.Get("Authorization")}, nil
}

func noPayload(*http.Request) (any, error) {
	return nil, nil
}

func (s *Server) encodeJSON(ctx context.Context, w http.ResponseWriter, v any) error {
	enc := s.encoder(ctx, w)
	w.WriteHeader(http.StatusOK)
	return enc.Encode(v)
}

func encodeText(ctx context.Context, w http.ResponseWriter, v any) error {
	w.Header().Set("Content-Type", "text/plain")
	w.WriteHeader(http.StatusOK)
	_, err := w.Write(v.([]byte))
	return err
}

func (s *Server) encodeError(ctx context.Context, w http.ResponseWriter, err error) {
	var response *ErrorResponse
	if !stderrors.As(err, &response) {
		response = wrapError(ctx, err).(*ErrorResponse)
	}
	enc := s.encoder(ctx, w)
	w.WriteHeader(response.StatusCode())
	if errEncode := enc.Encode(response); errEncode != nil {
		s.errh(ctx, w, errEncode)
	}
}
