// Copyright The Linux Foundation and each contributor to LFX.
// SPDX-License-Identifier: MIT

package plugin

import (
	"context"
	"fmt"
	"iter"
	"log/slog"
	"time"

	"github.com/linuxfoundation/lfx-v2-search-gateway/internal/domain/model"
	"github.com/linuxfoundation/lfx-v2-search-gateway/internal/domain/port"
	"github.com/linuxfoundation/lfx-v2-search-gateway/pkg/constants"
)

// Plugin is the per document type capability set: schema, access rules,
// serialization and change handling for one kind of upstream resource.
type Plugin interface {
	DocumentType() string
	IndexName() string
	Mapping() map[string]model.Field
	// ParentRelation returns the parent document type and the source field
	// holding the parent id, both empty for root types
	ParentRelation() (parentType string, parentField string)
	FacetFields() []string
	// FacetOptionFields lists the facet fields whose values are aggregated
	FacetOptionFields() []string
	RBACFilter(requester model.Requester) (map[string]any, error)
	FieldVisible(field string, requester model.Requester) bool
	Redact(source map[string]any, requester model.Requester) map[string]any
	Serialize(ctx context.Context, source map[string]any) (model.Document, error)
	ListAll(ctx context.Context) iter.Seq2[model.Document, error]
	NotificationHandler() NotificationHandler
	NotificationTopicsExchanges() ([]model.TopicExchange, error)
}

var (
	_ Plugin = (*ImagePlugin)(nil)
	_ Plugin = (*ServerPlugin)(nil)
	_ Plugin = (*ZonePlugin)(nil)
	_ Plugin = (*RecordSetPlugin)(nil)
)

// Option customizes a plugin at construction.
type Option func(*base)

// WithIndex overrides the index the plugin writes to.
func WithIndex(index string) Option {
	return func(b *base) {
		if index != "" {
			b.index = index
		}
	}
}

// WithPublisher announces every index write through publisher.
func WithPublisher(publisher port.ChangePublisher) Option {
	return func(b *base) {
		b.publisher = publisher
	}
}

// WithTopics replaces the default notification streams.
func WithTopics(topics ...model.TopicExchange) Option {
	return func(b *base) {
		b.topics = topics
	}
}

type relation int

const (
	relationNone relation = iota
	relationParent
	relationChild
)

// base carries what every plugin shares: identity, store access and the
// bookkeeping around writes.
type base struct {
	docType    string
	index      string
	store      port.DocumentStore
	publisher  port.ChangePublisher
	topics     []model.TopicExchange
	baseFields map[string]struct{}
	relation   relation
}

func newBase(docType string, store port.DocumentStore, baseFields []string, topics []model.TopicExchange, opts []Option) base {
	b := base{
		docType:    docType,
		index:      constants.DefaultIndex,
		store:      store,
		topics:     topics,
		baseFields: make(map[string]struct{}, len(baseFields)),
	}
	for _, field := range baseFields {
		b.baseFields[field] = struct{}{}
	}
	for _, opt := range opts {
		opt(&b)
	}
	return b
}

func (b *base) DocumentType() string {
	return b.docType
}

func (b *base) IndexName() string {
	return b.index
}

func (b *base) ParentRelation() (string, string) {
	return "", ""
}

// NotificationTopicsExchanges returns the streams the plugin listens to.
func (b *base) NotificationTopicsExchanges() ([]model.TopicExchange, error) {
	return b.topics, nil
}

func (b *base) isBaseField(field string) bool {
	if field == constants.DocumentTypeField {
		return true
	}
	_, ok := b.baseFields[field]
	return ok
}

// redact copies source keeping only the fields visible reports as readable.
func (b *base) redact(source map[string]any, requester model.Requester, visible func(string, model.Requester) bool) map[string]any {
	out := make(map[string]any, len(source))
	for key, value := range source {
		if b.isBaseField(key) || visible(key, requester) {
			out[key] = value
		}
	}
	return out
}

// document wraps a serialized source into a canonical document.
func (b *base) document(id string, source map[string]any, parent string) model.Document {
	source[constants.DocumentTypeField] = b.docType
	switch b.relation {
	case relationParent:
		source[constants.RelationField] = map[string]any{"name": b.docType}
	case relationChild:
		source[constants.RelationField] = map[string]any{"name": b.docType, "parent": parent}
	}
	return model.Document{
		ID:     id,
		Type:   b.docType,
		Index:  b.index,
		Parent: parent,
		Source: source,
	}
}

func (b *base) ref(id, parent string) model.DocumentRef {
	return model.DocumentRef{
		Index:  b.index,
		Type:   b.docType,
		ID:     id,
		Parent: parent,
	}
}

// save upserts doc and announces the change.
func (b *base) save(ctx context.Context, doc model.Document) error {
	if err := b.store.Index(ctx, doc); err != nil {
		return err
	}
	slog.DebugContext(ctx, "document indexed",
		"document_type", doc.Type,
		"id", doc.ID,
		"parent", doc.Parent,
	)
	b.announce(ctx, model.IndexChange{
		Operation: model.ChangeIndexed,
		Type:      doc.Type,
		ID:        doc.ID,
		Index:     doc.Index,
		Parent:    doc.Parent,
		Source:    doc.Source,
	})
	return nil
}

// remove deletes the referenced document. An absent document is logged and
// treated as done.
func (b *base) remove(ctx context.Context, ref model.DocumentRef) error {
	result, err := b.store.Delete(ctx, ref)
	switch result {
	case model.DeleteResultDeleted:
		b.announce(ctx, model.IndexChange{
			Operation: model.ChangeDeleted,
			Type:      ref.Type,
			ID:        ref.ID,
			Index:     ref.Index,
			Parent:    ref.Parent,
		})
		return nil
	case model.DeleteResultAlreadyAbsent:
		slog.WarnContext(ctx, "document to delete was not found",
			"document_type", ref.Type,
			"id", ref.ID,
		)
		return nil
	default:
		if err == nil {
			err = fmt.Errorf("delete %s %s failed", ref.Type, ref.ID)
		}
		return err
	}
}

func (b *base) announce(ctx context.Context, change model.IndexChange) {
	if b.publisher == nil {
		return
	}
	change.Timestamp = time.Now().UTC()
	if err := b.publisher.Publish(ctx, change); err != nil {
		slog.WarnContext(ctx, "failed to publish index change",
			"document_type", change.Type,
			"id", change.ID,
			"error", err,
		)
	}
}
