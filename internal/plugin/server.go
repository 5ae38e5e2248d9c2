// Copyright The Linux Foundation and each contributor to LFX.
// SPDX-License-Identifier: MIT

package plugin

import (
	"context"
	"fmt"
	"iter"
	"slices"
	"strings"

	"github.com/linuxfoundation/lfx-v2-search-gateway/internal/domain/model"
	"github.com/linuxfoundation/lfx-v2-search-gateway/internal/domain/port"
	"github.com/linuxfoundation/lfx-v2-search-gateway/pkg/errors"
)

// ServerType is the document type of compute instances.
const ServerType = "OS::Nova::Server"

// adminOnlyServerPrefix marks hypervisor placement fields hidden from tenants.
const adminOnlyServerPrefix = "OS-EXT-SRV-ATTR:"

var serverBaseFields = []string{
	"id", "name", "status", "tenant_id", "owner", "user_id", "flavor", "image",
	"networks", "created_at", "updated_at", "created", "updated",
}

// serverEvents are the compute notifications that change an indexed field.
var serverEvents = []string{
	"compute.instance.create.end",
	"compute.instance.update",
	"compute.instance.power_on.end",
	"compute.instance.power_off.end",
	"compute.instance.rebuild.end",
	"compute.instance.resize.confirm.end",
	"compute.instance.pause.end",
	"compute.instance.unpause.end",
	"compute.instance.suspend.end",
	"compute.instance.resume",
	"compute.instance.shutdown.end",
}

// ServerPlugin indexes compute instances.
type ServerPlugin struct {
	base
	compute port.ComputeSource
}

// NewServerPlugin creates the compute instance plugin.
func NewServerPlugin(store port.DocumentStore, compute port.ComputeSource, opts ...Option) *ServerPlugin {
	return &ServerPlugin{
		base:    newBase(ServerType, store, serverBaseFields, []model.TopicExchange{{Topic: "notifications", Exchange: "nova"}}, opts),
		compute: compute,
	}
}

func (p *ServerPlugin) Mapping() map[string]model.Field {
	keyword := model.Field{Type: model.FieldKeyword}
	return map[string]model.Field{
		"id":         keyword,
		"name":       {Type: model.FieldText, Raw: true},
		"status":     keyword,
		"tenant_id":  keyword,
		"owner":      keyword,
		"user_id":    keyword,
		"key_name":   keyword,
		"created":    {Type: model.FieldDate},
		"updated":    {Type: model.FieldDate},
		"created_at": {Type: model.FieldDate},
		"updated_at": {Type: model.FieldDate},
		"flavor": {Type: model.FieldObject, Properties: map[string]model.Field{
			"id": keyword,
		}},
		"image": {Type: model.FieldObject, Properties: map[string]model.Field{
			"id": keyword,
		}},
		"networks": {Type: model.FieldNested, Properties: map[string]model.Field{
			"name":                    keyword,
			"version":                 {Type: model.FieldInteger},
			"ipv4_addr":               {Type: model.FieldIP},
			"ipv6_addr":               {Type: model.FieldIP},
			"OS-EXT-IPS:type":         keyword,
			"OS-EXT-IPS-MAC:mac_addr": keyword,
		}},
		"security_groups": {Type: model.FieldNested, Properties: map[string]model.Field{
			"name": keyword,
		}},
		"OS-EXT-AZ:availability_zone":         keyword,
		"OS-EXT-STS:vm_state":                 keyword,
		"OS-EXT-STS:task_state":               keyword,
		"OS-EXT-STS:power_state":              {Type: model.FieldInteger},
		"OS-EXT-SRV-ATTR:host":                keyword,
		"OS-EXT-SRV-ATTR:hypervisor_hostname": keyword,
		"OS-EXT-SRV-ATTR:instance_name":       keyword,
	}
}

// FacetFields lists every mapped leaf except the raw upstream timestamps.
func (p *ServerPlugin) FacetFields() []string {
	return []string{
		"id", "name", "status", "tenant_id", "owner", "user_id", "key_name",
		"created_at", "updated_at", "flavor.id", "image.id",
		"networks.name", "networks.version", "networks.ipv4_addr", "networks.ipv6_addr",
		"networks.OS-EXT-IPS:type", "networks.OS-EXT-IPS-MAC:mac_addr",
		"security_groups.name",
		"OS-EXT-AZ:availability_zone", "OS-EXT-STS:vm_state", "OS-EXT-STS:task_state",
		"OS-EXT-STS:power_state",
		"OS-EXT-SRV-ATTR:host", "OS-EXT-SRV-ATTR:hypervisor_hostname", "OS-EXT-SRV-ATTR:instance_name",
	}
}

func (p *ServerPlugin) FacetOptionFields() []string {
	return []string{
		"status", "OS-EXT-AZ:availability_zone", "image.id", "flavor.id",
		"networks.name", "networks.OS-EXT-IPS:type", "networks.version",
		"security_groups.name",
	}
}

// RBACFilter restricts servers to the requester's tenant.
func (p *ServerPlugin) RBACFilter(requester model.Requester) (map[string]any, error) {
	return map[string]any{
		"term": map[string]any{"tenant_id": requester.ProjectID},
	}, nil
}

func (p *ServerPlugin) FieldVisible(field string, requester model.Requester) bool {
	return requester.IsAdmin || !strings.HasPrefix(field, adminOnlyServerPrefix)
}

func (p *ServerPlugin) Redact(source map[string]any, requester model.Requester) map[string]any {
	return p.redact(source, requester, p.FieldVisible)
}

// Serialize converts a server as returned by the compute API.
func (p *ServerPlugin) Serialize(ctx context.Context, source map[string]any) (model.Document, error) {
	id := stringField(source, "id")
	if id == "" {
		return model.Document{}, errors.NewValidation("server has no id")
	}

	doc := copySource(source)
	stripKeys(doc, "links")

	for _, key := range []string{"flavor", "image"} {
		if ref, ok := mapField(doc, key); ok {
			doc[key] = map[string]any{"id": stringField(ref, "id")}
			continue
		}
		// servers booted from volume report image as an empty string
		delete(doc, key)
	}

	doc["owner"] = doc["tenant_id"]
	doc["networks"] = flattenAddresses(doc)
	delete(doc, "addresses")

	doc["created_at"] = doc["created"]
	if truthy(doc["updated"]) {
		doc["updated_at"] = doc["updated"]
	} else {
		doc["updated_at"] = doc["created"]
	}

	return p.document(id, doc, ""), nil
}

// flattenAddresses turns the per-network address map into a list of
// addresses carrying their network name, with addr split by IP version.
func flattenAddresses(doc map[string]any) []any {
	addresses, _ := mapField(doc, "addresses")
	names := make([]string, 0, len(addresses))
	for name := range addresses {
		names = append(names, name)
	}
	slices.Sort(names)

	networks := []any{}
	for _, name := range names {
		for _, entry := range listField(addresses, name) {
			address, ok := entry.(map[string]any)
			if !ok {
				continue
			}
			network := copySource(address)
			network["name"] = name
			if stringValue(address["version"]) == "6" {
				renameKey(network, "addr", "ipv6_addr")
			} else {
				renameKey(network, "addr", "ipv4_addr")
			}
			networks = append(networks, network)
		}
	}
	return networks
}

func (p *ServerPlugin) ListAll(ctx context.Context) iter.Seq2[model.Document, error] {
	return func(yield func(model.Document, error) bool) {
		for server, err := range p.compute.ListServers(ctx) {
			if err != nil {
				yield(model.Document{}, fmt.Errorf("failed to list servers: %w", err))
				return
			}
			doc, errSerialize := p.Serialize(ctx, server)
			if !yield(doc, errSerialize) {
				return
			}
		}
	}
}

func (p *ServerPlugin) NotificationHandler() NotificationHandler {
	actions := make(map[string]Action, len(serverEvents)+1)
	for _, eventType := range serverEvents {
		actions[eventType] = p.refresh
	}
	actions["compute.instance.delete.end"] = p.delete
	return newHandler(p.docType, actions)
}

// refresh re-reads the instance named by the notification, since compute
// payloads lack most indexed fields. An instance gone from the compute
// service is removed from the index.
func (p *ServerPlugin) refresh(ctx context.Context, payload map[string]any) error {
	id := stringField(payload, "instance_id")
	if id == "" {
		return errors.NewValidation("compute notification has no instance_id")
	}

	server, err := p.compute.GetServer(ctx, id)
	if errors.IsNotFound(err) {
		return p.remove(ctx, p.ref(id, ""))
	}
	if err != nil {
		return fmt.Errorf("failed to fetch server %s: %w", id, err)
	}

	doc, err := p.Serialize(ctx, server)
	if err != nil {
		return err
	}
	return p.save(ctx, doc)
}

func (p *ServerPlugin) delete(ctx context.Context, payload map[string]any) error {
	id := stringField(payload, "instance_id")
	if id == "" {
		return errors.NewValidation("compute delete notification has no instance_id")
	}
	return p.remove(ctx, p.ref(id, ""))
}
