// Copyright The Linux Foundation and each contributor to LFX.
// SPDX-License-Identifier: MIT

package openstack

import (
	"context"
	"encoding/json"
	"iter"
	"strconv"

	"github.com/linuxfoundation/lfx-v2-search-gateway/internal/domain/port"
)

// ComputeClient reads servers of every project from the compute service.
type ComputeClient struct {
	session *Session
}

var _ port.ComputeSource = (*ComputeClient)(nil)

func (c *ComputeClient) ListServers(ctx context.Context) iter.Seq2[map[string]any, error] {
	first := endpoint(c.session.config.NovaURL, "servers", "detail") +
		"?all_tenants=1&limit=" + strconv.Itoa(c.session.config.PageSize)
	return c.session.paginate(ctx, first, nil, func(body []byte) ([]map[string]any, string, error) {
		var p serverPage
		if err := json.Unmarshal(body, &p); err != nil {
			return nil, "", err
		}
		for _, l := range p.Links {
			if l.Rel == "next" {
				return p.Servers, l.Href, nil
			}
		}
		return p.Servers, "", nil
	})
}

// GetServer returns errors.NotFound once the server is gone.
func (c *ComputeClient) GetServer(ctx context.Context, id string) (map[string]any, error) {
	var envelope serverEnvelope
	if err := c.session.get(ctx, endpoint(c.session.config.NovaURL, "servers", id), nil, &envelope); err != nil {
		return nil, err
	}
	return envelope.Server, nil
}

func NewComputeClient(session *Session) *ComputeClient {
	return &ComputeClient{session: session}
}
