// Copyright The Linux Foundation and each contributor to LFX.
// SPDX-License-Identifier: MIT

package plugin

import (
	"context"
	"fmt"
	"iter"

	"github.com/linuxfoundation/lfx-v2-search-gateway/internal/domain/model"
	"github.com/linuxfoundation/lfx-v2-search-gateway/internal/domain/port"
	"github.com/linuxfoundation/lfx-v2-search-gateway/pkg/errors"
)

// RecordSetType is the document type of DNS recordsets, children of zones.
const RecordSetType = "OS::Designate::RecordSet"

// recordSetParentField holds the zone id every recordset is routed by.
const recordSetParentField = "zone_id"

var recordSetBaseFields = []string{"id", "name", "zone_id", "project_id", "type", "records"}

// RecordSetPlugin indexes DNS recordsets under their zone.
type RecordSetPlugin struct {
	base
	dns port.DNSSource
}

// NewRecordSetPlugin creates the recordset plugin.
func NewRecordSetPlugin(store port.DocumentStore, dns port.DNSSource, opts ...Option) *RecordSetPlugin {
	p := &RecordSetPlugin{
		base: newBase(RecordSetType, store, recordSetBaseFields, []model.TopicExchange{{Topic: "notifications", Exchange: "designate"}}, opts),
		dns:  dns,
	}
	p.relation = relationChild
	return p
}

func (p *RecordSetPlugin) ParentRelation() (string, string) {
	return ZoneType, recordSetParentField
}

func (p *RecordSetPlugin) Mapping() map[string]model.Field {
	keyword := model.Field{Type: model.FieldKeyword}
	return map[string]model.Field{
		"id":          keyword,
		"name":        {Type: model.FieldText, Raw: true},
		"zone_id":     keyword,
		"project_id":  keyword,
		"type":        keyword,
		"ttl":         {Type: model.FieldLong},
		"status":      keyword,
		"action":      keyword,
		"version":     {Type: model.FieldLong},
		"description": {Type: model.FieldText},
		"records": {Type: model.FieldObject, Properties: map[string]model.Field{
			"data": keyword,
		}},
		"created_at": {Type: model.FieldDate},
		"updated_at": {Type: model.FieldDate},
	}
}

func (p *RecordSetPlugin) FacetFields() []string {
	return []string{
		"id", "name", "zone_id", "project_id", "type", "ttl", "status",
		"action", "version", "records.data", "created_at", "updated_at",
	}
}

func (p *RecordSetPlugin) FacetOptionFields() []string {
	return []string{"type", "status", "action"}
}

// RBACFilter restricts recordsets to the requester's project.
func (p *RecordSetPlugin) RBACFilter(requester model.Requester) (map[string]any, error) {
	return map[string]any{
		"term": map[string]any{"project_id": requester.ProjectID},
	}, nil
}

func (p *RecordSetPlugin) FieldVisible(string, model.Requester) bool {
	return true
}

func (p *RecordSetPlugin) Redact(source map[string]any, requester model.Requester) map[string]any {
	return p.redact(source, requester, p.FieldVisible)
}

// Serialize converts a recordset from the DNS API or a DNS notification.
// A recordset without a zone id cannot be routed and is rejected.
func (p *RecordSetPlugin) Serialize(_ context.Context, source map[string]any) (model.Document, error) {
	id := stringField(source, "id")
	if id == "" {
		return model.Document{}, errors.NewValidation("recordset has no id")
	}

	doc := copySource(source)
	renameKey(doc, "tenant_id", "project_id")
	renameKey(doc, "domain_id", recordSetParentField)

	zoneID := stringField(doc, recordSetParentField)
	if zoneID == "" {
		return model.Document{}, errors.NewValidation(fmt.Sprintf("recordset %s has no zone id", id))
	}

	records := listField(doc, "records")
	normalized := make([]any, 0, len(records))
	for _, record := range records {
		if asMap, ok := record.(map[string]any); ok {
			normalized = append(normalized, map[string]any{"data": asMap["data"]})
			continue
		}
		normalized = append(normalized, map[string]any{"data": record})
	}
	doc["records"] = normalized
	defaultUpdatedAt(doc)

	return p.document(id, doc, zoneID), nil
}

// serializeForZone serializes a recordset listed under zone, inheriting the
// zone's id and project when the listing omits them.
func (p *RecordSetPlugin) serializeForZone(ctx context.Context, zone map[string]any, recordSet map[string]any) (model.Document, error) {
	source := copySource(recordSet)
	if stringField(source, recordSetParentField) == "" && stringField(source, "domain_id") == "" {
		source[recordSetParentField] = stringField(zone, "id")
	}
	if stringField(source, "project_id") == "" && stringField(source, "tenant_id") == "" {
		source["project_id"] = zone["project_id"]
	}
	return p.Serialize(ctx, source)
}

// ListAll walks every zone and yields its recordsets.
func (p *RecordSetPlugin) ListAll(ctx context.Context) iter.Seq2[model.Document, error] {
	return func(yield func(model.Document, error) bool) {
		for zone, err := range p.dns.ListZones(ctx) {
			if err != nil {
				yield(model.Document{}, fmt.Errorf("failed to list zones: %w", err))
				return
			}
			zone = normalizeZoneProject(zone)
			for recordSet, errList := range p.dns.ListRecordSets(ctx, stringField(zone, "id")) {
				if errList != nil {
					if !yield(model.Document{}, fmt.Errorf("failed to list recordsets of zone %s: %w", stringField(zone, "id"), errList)) {
						return
					}
					break
				}
				doc, errSerialize := p.serializeForZone(ctx, zone, recordSet)
				if !yield(doc, errSerialize) {
					return
				}
			}
		}
	}
}

func (p *RecordSetPlugin) NotificationHandler() NotificationHandler {
	return newHandler(p.docType, map[string]Action{
		"dns.recordset.create": p.createOrUpdate,
		"dns.recordset.update": p.createOrUpdate,
		"dns.recordset.delete": p.delete,
	})
}

func (p *RecordSetPlugin) createOrUpdate(ctx context.Context, payload map[string]any) error {
	doc, err := p.Serialize(ctx, payload)
	if err != nil {
		return err
	}
	return p.save(ctx, doc)
}

func (p *RecordSetPlugin) delete(ctx context.Context, payload map[string]any) error {
	id := stringField(payload, "id")
	zoneID := stringField(payload, "domain_id")
	if zoneID == "" {
		zoneID = stringField(payload, recordSetParentField)
	}
	if id == "" || zoneID == "" {
		return errors.NewValidation("recordset delete notification needs id and zone id")
	}
	return p.remove(ctx, p.ref(id, zoneID))
}
