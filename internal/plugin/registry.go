// Copyright The Linux Foundation and each contributor to LFX.
// SPDX-License-Identifier: MIT

package plugin

import (
	"fmt"
	"reflect"
	"slices"

	"github.com/linuxfoundation/lfx-v2-search-gateway/internal/domain/model"
	"github.com/linuxfoundation/lfx-v2-search-gateway/pkg/constants"
)

// Registry holds the plugins registered at startup. It is built once and
// read-only afterwards.
type Registry struct {
	plugins []Plugin
	byType  map[string]Plugin
}

// NewRegistry registers plugins in order, rejecting duplicate document types.
func NewRegistry(plugins ...Plugin) (*Registry, error) {
	if len(plugins) == 0 {
		return nil, fmt.Errorf("at least one plugin must be registered")
	}
	r := &Registry{
		plugins: make([]Plugin, 0, len(plugins)),
		byType:  make(map[string]Plugin, len(plugins)),
	}
	for _, p := range plugins {
		docType := p.DocumentType()
		if _, exists := r.byType[docType]; exists {
			return nil, fmt.Errorf("document type %s registered twice", docType)
		}
		r.byType[docType] = p
		r.plugins = append(r.plugins, p)
	}
	for _, p := range r.plugins {
		if parentType, _ := p.ParentRelation(); parentType != "" {
			parent, ok := r.byType[parentType]
			if !ok {
				return nil, fmt.Errorf("document type %s declares unregistered parent %s", p.DocumentType(), parentType)
			}
			if parent.IndexName() != p.IndexName() {
				return nil, fmt.Errorf("document type %s must share the index of its parent %s", p.DocumentType(), parentType)
			}
		}
	}
	return r, nil
}

// Plugin returns the plugin registered for docType.
func (r *Registry) Plugin(docType string) (Plugin, bool) {
	p, ok := r.byType[docType]
	return p, ok
}

// Plugins returns the registered plugins in registration order.
func (r *Registry) Plugins() []Plugin {
	return slices.Clone(r.plugins)
}

// Types returns the registered document types in registration order.
func (r *Registry) Types() []string {
	types := make([]string, 0, len(r.plugins))
	for _, p := range r.plugins {
		types = append(types, p.DocumentType())
	}
	return types
}

// Indices returns the distinct indices plugins write to.
func (r *Registry) Indices() []string {
	var indices []string
	for _, p := range r.plugins {
		if !slices.Contains(indices, p.IndexName()) {
			indices = append(indices, p.IndexName())
		}
	}
	return indices
}

// Info returns one discovery entry per registered type.
func (r *Registry) Info() []model.PluginInfo {
	info := make([]model.PluginInfo, 0, len(r.plugins))
	for _, p := range r.plugins {
		info = append(info, model.PluginInfo{
			Index: p.IndexName(),
			Type:  p.DocumentType(),
			Name:  p.DocumentType(),
		})
	}
	return info
}

// RawFields returns, per document type, the top-level fields that carry a
// raw sub-field for sorting.
func (r *Registry) RawFields(docTypes []string) map[string]struct{} {
	fields := map[string]struct{}{}
	for _, docType := range docTypes {
		p, ok := r.byType[docType]
		if !ok {
			continue
		}
		for name, field := range p.Mapping() {
			if field.Raw {
				fields[name] = struct{}{}
			}
		}
	}
	return fields
}

// Mapping merges the schemas of every plugin writing to index into one
// store mapping, adding the type field and the parent/child join field.
func (r *Registry) Mapping(index string) (map[string]any, error) {
	properties := map[string]any{
		constants.DocumentTypeField: model.Field{Type: model.FieldKeyword}.Mapping(),
	}
	relations := map[string][]string{}

	for _, p := range r.plugins {
		if p.IndexName() != index {
			continue
		}
		for name, field := range p.Mapping() {
			rendered := field.Mapping()
			if existing, ok := properties[name]; ok && !reflect.DeepEqual(existing, rendered) {
				return nil, fmt.Errorf("field %s of %s conflicts with an existing mapping in index %s", name, p.DocumentType(), index)
			}
			properties[name] = rendered
		}
		if parentType, _ := p.ParentRelation(); parentType != "" {
			relations[parentType] = append(relations[parentType], p.DocumentType())
		}
	}

	if len(relations) > 0 {
		joinRelations := make(map[string]any, len(relations))
		for parent, children := range relations {
			if len(children) == 1 {
				joinRelations[parent] = children[0]
				continue
			}
			joinRelations[parent] = children
		}
		properties[constants.RelationField] = map[string]any{
			"type":      "join",
			"relations": joinRelations,
		}
	}

	return map[string]any{
		"properties": properties,
	}, nil
}

// Relation returns the join field value stored on documents of docType, or
// nil when the type takes no part in a parent/child relation.
func (r *Registry) Relation(docType, parent string) map[string]any {
	p, ok := r.byType[docType]
	if !ok {
		return nil
	}
	if parentType, _ := p.ParentRelation(); parentType != "" {
		return map[string]any{"name": docType, "parent": parent}
	}
	for _, candidate := range r.plugins {
		if parentType, _ := candidate.ParentRelation(); parentType == docType {
			return map[string]any{"name": docType}
		}
	}
	return nil
}
