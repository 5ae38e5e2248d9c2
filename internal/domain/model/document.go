// Copyright The Linux Foundation and each contributor to LFX.
// SPDX-License-Identifier: MIT

package model

import "strings"

// Document is the canonical representation of one upstream resource in the
// search index. ID plus Type identify the entry; indexing the same pair again
// replaces it.
type Document struct {
	ID     string
	Type   string
	Index  string
	Parent string
	Source map[string]any
}

// Ref returns the reference used to fetch or delete the document.
func (d Document) Ref() DocumentRef {
	return DocumentRef{
		Index:  d.Index,
		Type:   d.Type,
		ID:     d.ID,
		Parent: d.Parent,
	}
}

// DocumentRef addresses a stored document. Parent is the routing key for
// child documents and must be set to reach them.
type DocumentRef struct {
	Index  string
	Type   string
	ID     string
	Parent string
}

// FieldType is the store type of a mapped field.
type FieldType string

// Field types understood by the store mapping.
const (
	FieldKeyword FieldType = "keyword"
	FieldText    FieldType = "text"
	FieldLong    FieldType = "long"
	FieldInteger FieldType = "integer"
	FieldBoolean FieldType = "boolean"
	FieldDate    FieldType = "date"
	FieldIP      FieldType = "ip"
	FieldObject  FieldType = "object"
	FieldNested  FieldType = "nested"
)

// Field describes one entry of a document type schema.
type Field struct {
	Type FieldType
	// Raw adds an unanalyzed "raw" sub-field used for sorting analyzed text
	Raw        bool
	Properties map[string]Field
}

// RawSuffix is appended to analyzed fields that carry an unanalyzed copy.
const RawSuffix = ".raw"

// Mapping renders the field as a store mapping fragment.
func (f Field) Mapping() map[string]any {
	out := map[string]any{}
	if f.Type != FieldObject {
		out["type"] = string(f.Type)
	}
	if f.Raw {
		out["fields"] = map[string]any{
			"raw": map[string]any{"type": string(FieldKeyword)},
		}
	}
	if len(f.Properties) > 0 {
		out["properties"] = Properties(f.Properties)
	}
	return out
}

// FacetType is the type name reported for the field in facet listings.
func (f Field) FacetType() string {
	switch f.Type {
	case FieldKeyword, FieldText:
		return "string"
	default:
		return string(f.Type)
	}
}

// Properties renders a schema as the "properties" section of a mapping.
func Properties(fields map[string]Field) map[string]any {
	out := make(map[string]any, len(fields))
	for name, field := range fields {
		out[name] = field.Mapping()
	}
	return out
}

// Lookup resolves a dotted field path in a schema. The second value is the
// path of the closest nested parent, empty when the field is not nested.
func Lookup(fields map[string]Field, path string) (Field, string, bool) {
	var (
		nestedPath string
		current    = fields
		prefix     string
	)
	for {
		name, rest, more := strings.Cut(path, ".")
		field, ok := current[name]
		if !ok {
			return Field{}, "", false
		}
		if prefix == "" {
			prefix = name
		} else {
			prefix = prefix + "." + name
		}
		if !more {
			return field, nestedPath, true
		}
		if field.Type == FieldNested {
			nestedPath = prefix
		}
		current = field.Properties
		path = rest
	}
}
