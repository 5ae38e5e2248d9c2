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

const allProjectsHeader = "X-Auth-All-Projects"

// DNSClient reads zones and recordsets of every project from the DNS service.
type DNSClient struct {
	session *Session
}

var _ port.DNSSource = (*DNSClient)(nil)

func (c *DNSClient) allProjects() map[string]string {
	return map[string]string{allProjectsHeader: "true"}
}

func (c *DNSClient) ListZones(ctx context.Context) iter.Seq2[map[string]any, error] {
	first := endpoint(c.session.config.DesignateURL, "v2", "zones") + "?limit=" + strconv.Itoa(c.session.config.PageSize)
	return c.session.paginate(ctx, first, c.allProjects(), func(body []byte) ([]map[string]any, string, error) {
		var p zonePage
		if err := json.Unmarshal(body, &p); err != nil {
			return nil, "", err
		}
		return p.Zones, p.Links.Next, nil
	})
}

func (c *DNSClient) ListRecordSets(ctx context.Context, zoneID string) iter.Seq2[map[string]any, error] {
	first := endpoint(c.session.config.DesignateURL, "v2", "zones", zoneID, "recordsets") +
		"?limit=" + strconv.Itoa(c.session.config.PageSize)
	return c.session.paginate(ctx, first, c.allProjects(), func(body []byte) ([]map[string]any, string, error) {
		var p recordSetPage
		if err := json.Unmarshal(body, &p); err != nil {
			return nil, "", err
		}
		return p.RecordSets, p.Links.Next, nil
	})
}

func NewDNSClient(session *Session) *DNSClient {
	return &DNSClient{session: session}
}
