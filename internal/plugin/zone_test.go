// Copyright The Linux Foundation and each contributor to LFX.
// SPDX-License-Identifier: MIT

package plugin

import (
	"context"
	"fmt"
	"testing"

	"github.com/linuxfoundation/lfx-v2-search-gateway/internal/domain/model"
	"github.com/linuxfoundation/lfx-v2-search-gateway/internal/infrastructure/mock"
	"github.com/linuxfoundation/lfx-v2-search-gateway/pkg/constants"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type dnsFixture struct {
	store      *mock.MockDocumentStore
	dns        *mock.MockDNSSource
	publisher  *mock.MockChangePublisher
	zones      *ZonePlugin
	recordSets *RecordSetPlugin
}

func newDNSFixture() dnsFixture {
	f := dnsFixture{
		store:     mock.NewMockDocumentStore(),
		dns:       mock.NewMockDNSSource(),
		publisher: mock.NewMockChangePublisher(),
	}
	f.recordSets = NewRecordSetPlugin(f.store, f.dns, WithPublisher(f.publisher))
	f.zones = NewZonePlugin(f.store, f.dns, f.recordSets, WithPublisher(f.publisher))
	return f
}

func dnsEvent(eventType string, payload map[string]any) model.NotificationEvent {
	return model.NotificationEvent{EventType: eventType, PublisherID: "central.localhost", Payload: payload}
}

func zonePayload(id string) map[string]any {
	return map[string]any{
		"id":         id,
		"name":       "example.org.",
		"tenant_id":  "T1",
		"email":      "admin@example.org",
		"created_at": "2024-03-01T10:00:00Z",
		"updated_at": nil,
		"masters":    []any{map[string]any{"host": "192.0.2.1", "port": float64(53)}},
		"attributes": map[string]any{},
		"links":      map[string]any{"self": "http://dns/v2/zones/" + id},
	}
}

func TestZoneCreateIndexesRecordSets(t *testing.T) {
	assertion := assert.New(t)
	f := newDNSFixture()
	f.dns.AddZone(
		map[string]any{"id": "Z1"},
		map[string]any{"id": "R1", "name": "example.org.", "type": "SOA", "records": []any{"ns1.example.org. admin.example.org. 1 3600 600 86400 3600"}},
		map[string]any{"id": "R2", "name": "example.org.", "type": "NS", "records": []any{"ns1.example.org."}},
	)

	outcome := f.zones.NotificationHandler().Handle(context.Background(), dnsEvent("dns.domain.create", zonePayload("Z1")))

	assertion.Equal(model.OutcomeHandled, outcome)
	zone := getSource(t, f.store, ZoneType, "Z1")
	assertion.Equal("T1", zone["project_id"])
	assertion.NotContains(zone, "tenant_id")
	assertion.NotContains(zone, "links")
	assertion.NotContains(zone, "attributes")
	assertion.Equal([]any{"192.0.2.1:53"}, zone["masters"])
	assertion.Equal(zone["created_at"], zone["updated_at"])
	assertion.Equal(map[string]any{"name": ZoneType}, zone[constants.RelationField])

	for _, id := range []string{"R1", "R2"} {
		doc, err := f.store.Get(context.Background(), model.DocumentRef{Index: constants.DefaultIndex, Type: RecordSetType, ID: id, Parent: "Z1"})
		require.NoError(t, err)
		assertion.Equal("Z1", doc.Parent)
		assertion.Equal("Z1", doc.Source["zone_id"])
		assertion.Equal("T1", doc.Source["project_id"])
		assertion.Equal(map[string]any{"name": RecordSetType, "parent": "Z1"}, doc.Source[constants.RelationField])
	}
	assertion.Len(f.publisher.Changes(), 3)
}

func TestZoneCreateFailsWhenRecordSetsCannotBeListed(t *testing.T) {
	assertion := assert.New(t)
	f := newDNSFixture()
	f.dns.SetListError(fmt.Errorf("designate unavailable"))

	outcome := f.zones.NotificationHandler().Handle(context.Background(), dnsEvent("dns.domain.create", zonePayload("Z1")))

	assertion.Equal(model.OutcomeFailed, outcome)
	// the zone itself was indexed before the listing failed
	assertion.Equal(1, f.store.Count(constants.DefaultIndex))
}

func TestZoneDeleteCascades(t *testing.T) {
	assertion := assert.New(t)
	ctx := context.Background()
	f := newDNSFixture()
	handler := f.zones.NotificationHandler()
	recordSetHandler := f.recordSets.NotificationHandler()

	require.Equal(t, model.OutcomeHandled, handler.Handle(ctx, dnsEvent("dns.domain.create", zonePayload("Z1"))))
	require.Equal(t, model.OutcomeHandled, handler.Handle(ctx, dnsEvent("dns.domain.create", zonePayload("Z2"))))
	for _, rs := range []map[string]any{
		{"id": "R1", "domain_id": "Z1", "tenant_id": "T1", "name": "www.example.org."},
		{"id": "R2", "domain_id": "Z1", "tenant_id": "T1", "name": "mail.example.org."},
		{"id": "R3", "domain_id": "Z2", "tenant_id": "T1", "name": "www.example.org."},
	} {
		require.Equal(t, model.OutcomeHandled, recordSetHandler.Handle(ctx, dnsEvent("dns.recordset.create", rs)))
	}
	require.Equal(t, 5, f.store.Count(constants.DefaultIndex))

	outcome := handler.Handle(ctx, dnsEvent("dns.domain.delete", map[string]any{"id": "Z1"}))

	assertion.Equal(model.OutcomeHandled, outcome)
	for _, ref := range []model.DocumentRef{
		{Index: constants.DefaultIndex, Type: ZoneType, ID: "Z1"},
		{Index: constants.DefaultIndex, Type: RecordSetType, ID: "R1", Parent: "Z1"},
		{Index: constants.DefaultIndex, Type: RecordSetType, ID: "R2", Parent: "Z1"},
	} {
		_, err := f.store.Get(ctx, ref)
		assertion.Error(err, ref.ID)
	}
	_, err := f.store.Get(ctx, model.DocumentRef{Index: constants.DefaultIndex, Type: RecordSetType, ID: "R3", Parent: "Z2"})
	assertion.NoError(err)

	var deleted []string
	for _, change := range f.publisher.Changes() {
		if change.Operation == model.ChangeDeleted {
			deleted = append(deleted, change.ID)
		}
	}
	assertion.ElementsMatch([]string{"R1", "R2", "Z1"}, deleted)
}

func TestZoneDeleteMissing(t *testing.T) {
	assertion := assert.New(t)
	f := newDNSFixture()

	outcome := f.zones.NotificationHandler().Handle(context.Background(), dnsEvent("dns.domain.delete", map[string]any{"id": "missing"}))

	assertion.Equal(model.OutcomeHandled, outcome)
	assertion.Empty(f.publisher.Changes())
}

func TestZoneDeleteKeepsZoneWhenStoreFails(t *testing.T) {
	assertion := assert.New(t)
	ctx := context.Background()
	f := newDNSFixture()
	require.Equal(t, model.OutcomeHandled, f.zones.NotificationHandler().Handle(ctx, dnsEvent("dns.domain.create", zonePayload("Z1"))))
	f.store.SetDeleteError(fmt.Errorf("cluster read-only"))

	outcome := f.zones.NotificationHandler().Handle(ctx, dnsEvent("dns.domain.delete", map[string]any{"id": "Z1"}))

	assertion.Equal(model.OutcomeFailed, outcome)
	_, err := f.store.Get(ctx, model.DocumentRef{Index: constants.DefaultIndex, Type: ZoneType, ID: "Z1"})
	assertion.NoError(err)
}

func TestZoneUpdateIsIdempotent(t *testing.T) {
	assertion := assert.New(t)
	ctx := context.Background()
	f := newDNSFixture()
	handler := f.zones.NotificationHandler()
	payload := zonePayload("Z1")
	payload["serial"] = float64(1700000000)

	require.Equal(t, model.OutcomeHandled, handler.Handle(ctx, dnsEvent("dns.domain.update", payload)))
	first := getSource(t, f.store, ZoneType, "Z1")
	require.Equal(t, model.OutcomeHandled, handler.Handle(ctx, dnsEvent("DNS.Domain.Update", payload)))
	second := getSource(t, f.store, ZoneType, "Z1")

	assertion.Equal(first, second)
	assertion.Equal(1, f.store.Count(constants.DefaultIndex))
}

func TestRecordSetSerialize(t *testing.T) {
	tests := []struct {
		name        string
		source      map[string]any
		expected    map[string]any
		expectError bool
	}{
		{
			name: "notification payload",
			source: map[string]any{
				"id":         "R1",
				"domain_id":  "Z1",
				"tenant_id":  "T1",
				"records":    []any{"192.0.2.10", map[string]any{"data": "192.0.2.11", "id": "rec-2", "status": "ACTIVE"}},
				"created_at": "c",
				"updated_at": "",
			},
			expected: map[string]any{
				"id":                        "R1",
				"zone_id":                   "Z1",
				"project_id":                "T1",
				"records":                   []any{map[string]any{"data": "192.0.2.10"}, map[string]any{"data": "192.0.2.11"}},
				"created_at":                "c",
				"updated_at":                "c",
				constants.DocumentTypeField: RecordSetType,
				constants.RelationField:     map[string]any{"name": RecordSetType, "parent": "Z1"},
			},
		},
		{
			name:        "no zone",
			source:      map[string]any{"id": "R1"},
			expectError: true,
		},
		{
			name:        "no id",
			source:      map[string]any{"zone_id": "Z1"},
			expectError: true,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			assertion := assert.New(t)
			p := NewRecordSetPlugin(mock.NewMockDocumentStore(), mock.NewMockDNSSource())

			doc, err := p.Serialize(context.Background(), tc.source)

			if tc.expectError {
				assertion.Error(err)
				return
			}
			require.NoError(t, err)
			assertion.Equal(tc.expected, doc.Source)
			assertion.Equal("Z1", doc.Parent)
		})
	}
}

func TestRecordSetDelete(t *testing.T) {
	assertion := assert.New(t)
	ctx := context.Background()
	f := newDNSFixture()
	handler := f.recordSets.NotificationHandler()
	require.Equal(t, model.OutcomeHandled, handler.Handle(ctx, dnsEvent("dns.recordset.create", map[string]any{"id": "R1", "zone_id": "Z1", "project_id": "T1"})))

	assertion.Equal(model.OutcomeHandled, handler.Handle(ctx, dnsEvent("dns.recordset.delete", map[string]any{"id": "R1", "domain_id": "Z1"})))
	assertion.Equal(0, f.store.Count(constants.DefaultIndex))

	// already gone
	assertion.Equal(model.OutcomeHandled, handler.Handle(ctx, dnsEvent("dns.recordset.delete", map[string]any{"id": "R1", "domain_id": "Z1"})))
	// no zone to route by
	assertion.Equal(model.OutcomeFailed, handler.Handle(ctx, dnsEvent("dns.recordset.delete", map[string]any{"id": "R1"})))
}

func TestRecordSetListAllWalksZones(t *testing.T) {
	assertion := assert.New(t)
	f := newDNSFixture()
	f.dns.AddZone(map[string]any{"id": "Z1", "tenant_id": "T1"}, map[string]any{"id": "R1"}, map[string]any{"id": "R2"})
	f.dns.AddZone(map[string]any{"id": "Z2", "project_id": "T2"}, map[string]any{"id": "R3"})

	projects := map[string]any{}
	for doc, err := range f.recordSets.ListAll(context.Background()) {
		require.NoError(t, err)
		projects[doc.ID] = doc.Source["project_id"]
	}

	assertion.Equal(map[string]any{"R1": "T1", "R2": "T1", "R3": "T2"}, projects)
}
