// Copyright The Linux Foundation and each contributor to LFX.
// SPDX-License-Identifier: MIT

package plugin

import (
	"context"
	"fmt"
	"iter"
	"log/slog"
	"net/http"

	"github.com/linuxfoundation/lfx-v2-search-gateway/internal/domain/model"
	"github.com/linuxfoundation/lfx-v2-search-gateway/internal/domain/port"
	"github.com/linuxfoundation/lfx-v2-search-gateway/pkg/constants"
	"github.com/linuxfoundation/lfx-v2-search-gateway/pkg/errors"
)

// ZoneType is the document type of DNS zones.
const ZoneType = "OS::Designate::Zone"

var zoneBaseFields = []string{"id", "name", "project_id", "type", "status", "email"}

// ZonePlugin indexes DNS zones and keeps their recordsets consistent on
// create and delete.
type ZonePlugin struct {
	base
	dns        port.DNSSource
	recordSets *RecordSetPlugin
}

// NewZonePlugin creates the zone plugin. recordSets serializes the child
// documents indexed and deleted together with a zone.
func NewZonePlugin(store port.DocumentStore, dns port.DNSSource, recordSets *RecordSetPlugin, opts ...Option) *ZonePlugin {
	p := &ZonePlugin{
		base:       newBase(ZoneType, store, zoneBaseFields, []model.TopicExchange{{Topic: "notifications", Exchange: "designate"}}, opts),
		dns:        dns,
		recordSets: recordSets,
	}
	p.relation = relationParent
	return p
}

func (p *ZonePlugin) Mapping() map[string]model.Field {
	keyword := model.Field{Type: model.FieldKeyword}
	return map[string]model.Field{
		"id":             keyword,
		"name":           {Type: model.FieldText, Raw: true},
		"email":          keyword,
		"ttl":            {Type: model.FieldLong},
		"serial":         {Type: model.FieldLong},
		"status":         keyword,
		"action":         keyword,
		"type":           keyword,
		"masters":        keyword,
		"pool_id":        keyword,
		"project_id":     keyword,
		"version":        {Type: model.FieldLong},
		"description":    {Type: model.FieldText},
		"transferred_at": {Type: model.FieldDate},
		"created_at":     {Type: model.FieldDate},
		"updated_at":     {Type: model.FieldDate},
	}
}

func (p *ZonePlugin) FacetFields() []string {
	return []string{
		"id", "name", "email", "ttl", "serial", "status", "action", "type",
		"masters", "pool_id", "project_id", "version", "created_at", "updated_at",
	}
}

func (p *ZonePlugin) FacetOptionFields() []string {
	return []string{"status", "type", "action"}
}

// RBACFilter restricts zones to the requester's project.
func (p *ZonePlugin) RBACFilter(requester model.Requester) (map[string]any, error) {
	return map[string]any{
		"term": map[string]any{"project_id": requester.ProjectID},
	}, nil
}

func (p *ZonePlugin) FieldVisible(string, model.Requester) bool {
	return true
}

func (p *ZonePlugin) Redact(source map[string]any, requester model.Requester) map[string]any {
	return p.redact(source, requester, p.FieldVisible)
}

// normalizeZoneProject renames the notification tenant_id to project_id.
func normalizeZoneProject(zone map[string]any) map[string]any {
	if _, ok := zone["tenant_id"]; !ok {
		return zone
	}
	out := copySource(zone)
	renameKey(out, "tenant_id", "project_id")
	return out
}

// Serialize converts a zone from the DNS API or a DNS notification.
func (p *ZonePlugin) Serialize(_ context.Context, source map[string]any) (model.Document, error) {
	id := stringField(source, "id")
	if id == "" {
		return model.Document{}, errors.NewValidation("zone has no id")
	}

	doc := copySource(normalizeZoneProject(source))
	stripKeys(doc, "deleted", "deleted_at", "attributes", "recordsets", "links")

	if masters := listField(doc, "masters"); masters != nil {
		rendered := make([]any, 0, len(masters))
		for _, master := range masters {
			if m, ok := master.(map[string]any); ok {
				rendered = append(rendered, fmt.Sprintf("%s:%s", stringField(m, "host"), stringField(m, "port")))
				continue
			}
			rendered = append(rendered, stringValue(master))
		}
		doc["masters"] = rendered
	}
	defaultUpdatedAt(doc)

	return p.document(id, doc, ""), nil
}

func (p *ZonePlugin) ListAll(ctx context.Context) iter.Seq2[model.Document, error] {
	return func(yield func(model.Document, error) bool) {
		for zone, err := range p.dns.ListZones(ctx) {
			if err != nil {
				yield(model.Document{}, fmt.Errorf("failed to list zones: %w", err))
				return
			}
			doc, errSerialize := p.Serialize(ctx, zone)
			if !yield(doc, errSerialize) {
				return
			}
		}
	}
}

func (p *ZonePlugin) NotificationHandler() NotificationHandler {
	return newHandler(p.docType, map[string]Action{
		"dns.domain.create": p.create,
		"dns.domain.update": p.update,
		"dns.domain.exists": p.update,
		"dns.domain.delete": p.delete,
	})
}

func (p *ZonePlugin) update(ctx context.Context, payload map[string]any) error {
	doc, err := p.Serialize(ctx, payload)
	if err != nil {
		return err
	}
	return p.save(ctx, doc)
}

// create indexes the zone and, in the same pass, the recordsets the DNS
// service created with it.
func (p *ZonePlugin) create(ctx context.Context, payload map[string]any) error {
	doc, err := p.Serialize(ctx, payload)
	if err != nil {
		return err
	}
	if err := p.save(ctx, doc); err != nil {
		return err
	}

	zone := doc.Source
	indexed := 0
	for recordSet, errList := range p.dns.ListRecordSets(ctx, doc.ID) {
		if errList != nil {
			return fmt.Errorf("failed to list recordsets of zone %s: %w", doc.ID, errList)
		}
		child, errSerialize := p.recordSets.serializeForZone(ctx, zone, recordSet)
		if errSerialize != nil {
			slog.ErrorContext(ctx, "skipping recordset of new zone",
				"zone_id", doc.ID,
				"error", errSerialize,
			)
			continue
		}
		if errSave := p.recordSets.save(ctx, child); errSave != nil {
			return fmt.Errorf("failed to index recordset %s of zone %s: %w", child.ID, doc.ID, errSave)
		}
		indexed++
	}

	slog.DebugContext(ctx, "zone created with recordsets",
		"zone_id", doc.ID,
		"recordsets", indexed,
	)
	return nil
}

// delete removes the zone's recordsets and then the zone. Children that
// fail to delete keep the zone in place so a redelivery can finish the job.
func (p *ZonePlugin) delete(ctx context.Context, payload map[string]any) error {
	id := stringField(payload, "id")
	if id == "" {
		return errors.NewValidation("zone delete notification has no id")
	}

	query := map[string]any{
		"bool": map[string]any{
			"filter": []any{
				map[string]any{"term": map[string]any{constants.DocumentTypeField: RecordSetType}},
				map[string]any{"term": map[string]any{recordSetParentField: id}},
			},
		},
	}

	var actions []model.BulkAction
	for hit, err := range p.store.Scan(ctx, p.recordSets.IndexName(), query) {
		if err != nil {
			return fmt.Errorf("failed to scan recordsets of zone %s: %w", id, err)
		}
		actions = append(actions, model.BulkAction{
			Op:     model.BulkOpDelete,
			Index:  p.recordSets.IndexName(),
			Type:   RecordSetType,
			ID:     hit.ID,
			Parent: id,
		})
	}

	if len(actions) > 0 {
		result, err := p.store.Bulk(ctx, actions)
		if err != nil {
			return fmt.Errorf("failed to delete recordsets of zone %s: %w", id, err)
		}
		failed := 0
		for _, itemErr := range result.Errors {
			if itemErr.Status == http.StatusNotFound {
				slog.WarnContext(ctx, "recordset to delete was not found",
					"zone_id", id,
					"id", itemErr.ID,
				)
				continue
			}
			failed++
		}
		if failed > 0 {
			return fmt.Errorf("failed to delete %d recordsets of zone %s", failed, id)
		}
		for _, action := range actions {
			p.recordSets.announce(ctx, model.IndexChange{
				Operation: model.ChangeDeleted,
				Type:      action.Type,
				ID:        action.ID,
				Index:     action.Index,
				Parent:    action.Parent,
			})
		}
	}

	return p.remove(ctx, p.ref(id, ""))
}
