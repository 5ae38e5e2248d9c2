// Copyright The Linux Foundation and each contributor to LFX.
// SPDX-License-Identifier: MIT

package plugin

import (
	"context"
	"fmt"
	"iter"
	"log/slog"

	"github.com/linuxfoundation/lfx-v2-search-gateway/internal/domain/model"
	"github.com/linuxfoundation/lfx-v2-search-gateway/internal/domain/port"
	"github.com/linuxfoundation/lfx-v2-search-gateway/pkg/errors"
)

// ImageType is the document type of disk images.
const ImageType = "OS::Glance::Image"

const (
	visibilityPublic  = "public"
	visibilityPrivate = "private"
	memberAccepted    = "accepted"
)

// imageBaseFields are always returned, whatever the property protections say.
var imageBaseFields = []string{
	"checksum", "created_at", "container_format", "disk_format", "id",
	"min_disk", "min_ram", "name", "size", "virtual_size", "status", "tags",
	"updated_at", "visibility", "protected", "owner", "members",
}

// ImagePlugin indexes disk images and their sharing membership.
type ImagePlugin struct {
	base
	images port.ImageSource
	rules  *PropertyRules
}

// NewImagePlugin creates the image plugin. rules may be nil when no
// property protections are configured.
func NewImagePlugin(store port.DocumentStore, images port.ImageSource, rules *PropertyRules, opts ...Option) *ImagePlugin {
	return &ImagePlugin{
		base:   newBase(ImageType, store, imageBaseFields, []model.TopicExchange{{Topic: "notifications", Exchange: "glance"}}, opts),
		images: images,
		rules:  rules,
	}
}

func (p *ImagePlugin) Mapping() map[string]model.Field {
	return map[string]model.Field{
		"id":               {Type: model.FieldKeyword},
		"name":             {Type: model.FieldText, Raw: true},
		"checksum":         {Type: model.FieldKeyword},
		"container_format": {Type: model.FieldKeyword},
		"disk_format":      {Type: model.FieldKeyword},
		"kernel_id":        {Type: model.FieldKeyword},
		"ramdisk_id":       {Type: model.FieldKeyword},
		"min_disk":         {Type: model.FieldLong},
		"min_ram":          {Type: model.FieldLong},
		"size":             {Type: model.FieldLong},
		"virtual_size":     {Type: model.FieldLong},
		"owner":            {Type: model.FieldKeyword},
		"members":          {Type: model.FieldKeyword},
		"protected":        {Type: model.FieldBoolean},
		"status":           {Type: model.FieldKeyword},
		"tags":             {Type: model.FieldKeyword},
		"visibility":       {Type: model.FieldKeyword},
		"created_at":       {Type: model.FieldDate},
		"updated_at":       {Type: model.FieldDate},
	}
}

func (p *ImagePlugin) FacetFields() []string {
	return []string{
		"id", "name", "checksum", "container_format", "disk_format",
		"kernel_id", "ramdisk_id", "min_disk", "min_ram", "size",
		"virtual_size", "owner", "protected", "status", "tags",
		"visibility", "created_at", "updated_at",
	}
}

func (p *ImagePlugin) FacetOptionFields() []string {
	return []string{"disk_format", "container_format", "tags", "visibility", "protected", "status"}
}

// RBACFilter shows images owned by, public to, or shared with the tenant.
func (p *ImagePlugin) RBACFilter(requester model.Requester) (map[string]any, error) {
	return map[string]any{
		"bool": map[string]any{
			"should": []any{
				map[string]any{"term": map[string]any{"owner": requester.ProjectID}},
				map[string]any{"term": map[string]any{"visibility": visibilityPublic}},
				map[string]any{"term": map[string]any{"members": requester.ProjectID}},
			},
			"minimum_should_match": 1,
		},
	}, nil
}

func (p *ImagePlugin) FieldVisible(field string, requester model.Requester) bool {
	return p.isBaseField(field) || p.rules.CanRead(field, requester)
}

func (p *ImagePlugin) Redact(source map[string]any, requester model.Requester) map[string]any {
	return p.redact(source, requester, p.FieldVisible)
}

// Serialize converts an image as returned by the image API.
func (p *ImagePlugin) Serialize(ctx context.Context, source map[string]any) (model.Document, error) {
	id := stringField(source, "id")
	if id == "" {
		return model.Document{}, errors.NewValidation("image has no id")
	}

	doc := copySource(source)
	stripKeys(doc, "file", "locations")
	p.normalize(ctx, id, doc)
	return p.document(id, doc, ""), nil
}

// serializeNotification converts the image representation carried by
// image notifications, which reports visibility through is_public and keeps
// custom properties in a nested map.
func (p *ImagePlugin) serializeNotification(ctx context.Context, payload map[string]any) (model.Document, error) {
	id := stringField(payload, "id")
	if id == "" {
		return model.Document{}, errors.NewValidation("image notification has no id")
	}

	doc := copySource(payload)
	if isPublic, ok := payload["is_public"]; ok {
		if truthy(isPublic) {
			doc["visibility"] = visibilityPublic
		} else {
			doc["visibility"] = visibilityPrivate
		}
	}
	if properties, ok := mapField(payload, "properties"); ok {
		for key, value := range properties {
			doc[key] = value
		}
	}
	stripKeys(doc, "deleted_at", "deleted", "is_public", "properties", "file", "locations")
	p.normalize(ctx, id, doc)
	return p.document(id, doc, ""), nil
}

func (p *ImagePlugin) normalize(ctx context.Context, id string, doc map[string]any) {
	if stringField(doc, "visibility") == visibilityPublic {
		doc["members"] = []any{}
	} else {
		doc["members"] = p.memberIDs(ctx, id)
	}
	defaultList(doc, "tags")
	defaultUpdatedAt(doc)
}

// memberIDs returns the tenants that accepted a share of the image. A stale
// session is renewed and the call retried once; any remaining failure falls
// back to no members for this image only.
func (p *ImagePlugin) memberIDs(ctx context.Context, imageID string) []any {
	if p.images == nil {
		return []any{}
	}
	members, err := p.images.ListImageMembers(ctx, imageID)
	if errors.IsUnauthorized(err) {
		slog.WarnContext(ctx, "image service session rejected, re-authenticating",
			"image_id", imageID,
		)
		if errReauth := p.images.Reauthenticate(ctx); errReauth != nil {
			err = errReauth
		} else {
			members, err = p.images.ListImageMembers(ctx, imageID)
		}
	}
	if err != nil {
		slog.WarnContext(ctx, "failed to list image members, indexing without members",
			"image_id", imageID,
			"error", err,
		)
		return []any{}
	}

	ids := make([]any, 0, len(members))
	for _, member := range members {
		if stringField(member, "status") == memberAccepted {
			ids = append(ids, stringField(member, "member_id"))
		}
	}
	return ids
}

func (p *ImagePlugin) ListAll(ctx context.Context) iter.Seq2[model.Document, error] {
	return func(yield func(model.Document, error) bool) {
		for image, err := range p.images.ListImages(ctx) {
			if err != nil {
				yield(model.Document{}, fmt.Errorf("failed to list images: %w", err))
				return
			}
			doc, errSerialize := p.Serialize(ctx, image)
			if !yield(doc, errSerialize) {
				return
			}
		}
	}
}

func (p *ImagePlugin) NotificationHandler() NotificationHandler {
	return newHandler(p.docType, map[string]Action{
		"image.create":        p.createOrUpdate,
		"image.update":        p.createOrUpdate,
		"image.delete":        p.delete,
		"image.member.create": p.syncMembers,
		"image.member.update": p.syncMembers,
		"image.member.delete": p.syncMembers,
	})
}

func (p *ImagePlugin) createOrUpdate(ctx context.Context, payload map[string]any) error {
	doc, err := p.serializeNotification(ctx, payload)
	if err != nil {
		return err
	}
	return p.save(ctx, doc)
}

func (p *ImagePlugin) delete(ctx context.Context, payload map[string]any) error {
	id := stringField(payload, "id")
	if id == "" {
		return errors.NewValidation("image delete notification has no id")
	}
	return p.remove(ctx, p.ref(id, ""))
}

// syncMembers refreshes the members of the image a membership event refers
// to. Images not indexed yet are fetched whole from the image service.
func (p *ImagePlugin) syncMembers(ctx context.Context, payload map[string]any) error {
	imageID := stringField(payload, "image_id")
	if imageID == "" {
		return errors.NewValidation("image member notification has no image_id")
	}

	stored, err := p.store.Get(ctx, p.ref(imageID, ""))
	switch {
	case err == nil:
		source := copySource(stored.Source)
		p.normalize(ctx, imageID, source)
		return p.save(ctx, p.document(imageID, source, ""))
	case errors.IsNotFound(err):
		image, errGet := p.images.GetImage(ctx, imageID)
		if errGet != nil {
			return fmt.Errorf("failed to fetch image %s: %w", imageID, errGet)
		}
		doc, errSerialize := p.Serialize(ctx, image)
		if errSerialize != nil {
			return errSerialize
		}
		return p.save(ctx, doc)
	default:
		return err
	}
}
