// Copyright The Linux Foundation and each contributor to LFX.
// SPDX-License-Identifier: MIT

package openstack

import (
	"context"
	"encoding/json"
	"fmt"
	"iter"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"sync"

	"github.com/linuxfoundation/lfx-v2-search-gateway/pkg/errors"
	"github.com/linuxfoundation/lfx-v2-search-gateway/pkg/httpclient"
)

const (
	tokenHeader        = "X-Auth-Token"
	subjectTokenHeader = "X-Subject-Token"
)

// Session holds one identity token shared by every service client. The
// token is obtained lazily and kept until Invalidate is called.
type Session struct {
	config     Config
	httpClient *httpclient.Client

	mu    sync.Mutex
	token string
}

// Token returns the cached token, authenticating first when there is none.
func (s *Session) Token(ctx context.Context) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.token != "" {
		return s.token, nil
	}

	var body passwordAuthRequest
	body.Auth.Identity.Methods = []string{"password"}
	body.Auth.Identity.Password.User = passwordUser{
		Name:     s.config.Username,
		Domain:   authName{Name: s.config.UserDomainName},
		Password: s.config.Password,
	}
	body.Auth.Scope.Project.Name = s.config.ProjectName
	body.Auth.Scope.Project.Domain = authName{Name: s.config.ProjectDomainName}

	payload, err := json.Marshal(body)
	if err != nil {
		return "", errors.NewUnexpected("failed to encode identity request", err)
	}

	resp, err := s.httpClient.Request(ctx, http.MethodPost, strings.TrimSuffix(s.config.AuthURL, "/")+"/v3/auth/tokens", payload, nil)
	if err != nil {
		return "", classify("identity", err)
	}
	token := resp.Headers.Get(subjectTokenHeader)
	if token == "" {
		return "", errors.NewUnauthorized("identity service returned no token")
	}

	slog.DebugContext(ctx, "obtained upstream token", "project", s.config.ProjectName)
	s.token = token
	return token, nil
}

// Invalidate drops the cached token.
func (s *Session) Invalidate() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.token = ""
}

// get fetches target with the session token and decodes the JSON body into out.
func (s *Session) get(ctx context.Context, target string, headers map[string]string, out any) error {
	return s.fetch(ctx, httpclient.Request{Method: http.MethodGet, URL: target, Headers: headers}, out)
}

// getOnce is get without transport retries. Callers own the retry policy.
func (s *Session) getOnce(ctx context.Context, target string, headers map[string]string, out any) error {
	return s.fetch(ctx, httpclient.Request{Method: http.MethodGet, URL: target, Headers: headers, NoRetry: true}, out)
}

func (s *Session) fetch(ctx context.Context, req httpclient.Request, out any) error {
	target := req.URL
	token, err := s.Token(ctx)
	if err != nil {
		return err
	}

	all := map[string]string{tokenHeader: token}
	for key, value := range req.Headers {
		all[key] = value
	}
	req.Headers = all

	resp, err := s.httpClient.Do(ctx, req)
	if err != nil {
		return classify(target, err)
	}
	if err := json.Unmarshal(resp.Body, out); err != nil {
		return errors.NewUnexpected(fmt.Sprintf("failed to decode response from %s", target), err)
	}
	return nil
}

// classify maps an upstream failure onto the error kinds plugins branch on.
func classify(target string, err error) error {
	switch status := httpclient.StatusCode(err); {
	case status == http.StatusUnauthorized:
		return errors.NewUnauthorized(fmt.Sprintf("%s rejected the session token", target), err)
	case status == http.StatusNotFound:
		return errors.NewNotFound(fmt.Sprintf("%s not found", target), err)
	case status == http.StatusBadRequest:
		return errors.NewValidation(fmt.Sprintf("%s rejected the request", target), err)
	case status == 0 || status >= http.StatusInternalServerError:
		return errors.NewServiceUnavailable(fmt.Sprintf("%s is unavailable", target), err)
	default:
		return errors.NewUnexpected(fmt.Sprintf("request to %s failed", target), err)
	}
}

// page decodes one listing response into its items and the next link.
type page func(body []byte) (items []map[string]any, next string, err error)

// paginate walks a listing from first until a page has no next link.
func (s *Session) paginate(ctx context.Context, first string, headers map[string]string, decode page) iter.Seq2[map[string]any, error] {
	return func(yield func(map[string]any, error) bool) {
		target := first
		for target != "" {
			var raw json.RawMessage
			if err := s.get(ctx, target, headers, &raw); err != nil {
				yield(nil, err)
				return
			}
			items, next, err := decode(raw)
			if err != nil {
				yield(nil, errors.NewUnexpected(fmt.Sprintf("unexpected listing from %s", target), err))
				return
			}
			for _, item := range items {
				if !yield(item, nil) {
					return
				}
			}
			if next == "" {
				return
			}
			target, err = resolve(target, next)
			if err != nil {
				yield(nil, errors.NewUnexpected("invalid next link", err))
				return
			}
		}
	}
}

// resolve turns a possibly relative next link into an absolute URL.
func resolve(current, next string) (string, error) {
	base, err := url.Parse(current)
	if err != nil {
		return "", err
	}
	ref, err := url.Parse(next)
	if err != nil {
		return "", err
	}
	return base.ResolveReference(ref).String(), nil
}

func endpoint(base string, elem ...string) string {
	escaped := make([]string, 0, len(elem)+1)
	escaped = append(escaped, strings.TrimSuffix(base, "/"))
	for _, e := range elem {
		escaped = append(escaped, url.PathEscape(e))
	}
	return strings.Join(escaped, "/")
}

// NewSession creates a session from config. No request is made until the
// first token is needed.
func NewSession(config Config) (*Session, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}
	return &Session{
		config: config,
		httpClient: httpclient.NewClient(httpclient.Config{
			Timeout:           config.Timeout,
			MaxRetries:        config.MaxRetries,
			RetryDelay:        config.RetryDelay,
			RetryBackoff:      true,
			RequestsPerSecond: config.RequestsPerSecond,
			Burst:             int(config.RequestsPerSecond),
		}),
	}, nil
}
