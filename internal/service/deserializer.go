// Copyright The Linux Foundation and each contributor to LFX.
// SPDX-License-Identifier: MIT

package service

import (
	"encoding/json"
	"fmt"
	"math"
	"net/url"
	"slices"
	"strconv"
	"strings"

	"github.com/linuxfoundation/lfx-v2-search-gateway/internal/domain/model"
	"github.com/linuxfoundation/lfx-v2-search-gateway/internal/plugin"
	"github.com/linuxfoundation/lfx-v2-search-gateway/pkg/constants"
	"github.com/linuxfoundation/lfx-v2-search-gateway/pkg/errors"
)

// forbiddenSearchKeys are response-only attributes a request may not set.
var forbiddenSearchKeys = []string{"schema", "self"}

// RequestDeserializer validates and normalizes inbound search, facet and
// index requests against the registered plugins.
type RequestDeserializer struct {
	registry *plugin.Registry
}

// NewRequestDeserializer creates a RequestDeserializer.
func NewRequestDeserializer(registry *plugin.Registry) *RequestDeserializer {
	return &RequestDeserializer{registry: registry}
}

// DecodeSearch validates a search body.
func (d *RequestDeserializer) DecodeSearch(body map[string]any) (model.SearchRequest, error) {
	for _, key := range forbiddenSearchKeys {
		if _, ok := body[key]; ok {
			return model.SearchRequest{}, errors.NewForbidden(fmt.Sprintf("Attribute '%s' is read-only", key))
		}
	}

	indices, docTypes, err := d.scope(body["index"], body["type"])
	if err != nil {
		return model.SearchRequest{}, err
	}

	req := model.SearchRequest{
		Indices: indices,
		Types:   docTypes,
		Limit:   constants.DefaultSearchLimit,
	}

	if raw, ok := body["query"]; ok && raw != nil {
		query, isMap := raw.(map[string]any)
		if !isMap {
			return model.SearchRequest{}, errors.NewValidation("'query' must be an object")
		}
		req.Query = query
	}

	if req.SourceIncludes, req.SourceExcludes, err = decodeSource(body["_source"]); err != nil {
		return model.SearchRequest{}, err
	}

	if raw, ok := body["limit"]; ok {
		if req.Limit, err = nonNegativeInt("limit", raw); err != nil {
			return model.SearchRequest{}, err
		}
	}
	if raw, ok := body["offset"]; ok {
		if req.Offset, err = nonNegativeInt("offset", raw); err != nil {
			return model.SearchRequest{}, err
		}
	}

	if req.Sort, err = normalizeSort(body["sort"], d.registry.RawFields(docTypes)); err != nil {
		return model.SearchRequest{}, err
	}

	if raw, ok := body["highlight"]; ok && raw != nil {
		highlight, isMap := raw.(map[string]any)
		if !isMap {
			return model.SearchRequest{}, errors.NewValidation("'highlight' must be an object")
		}
		req.Highlight = highlight
	}

	if req.AllProjects, err = boolValue("all_projects", body["all_projects"]); err != nil {
		return model.SearchRequest{}, err
	}

	return req, nil
}

// DecodeFacets validates facet listing parameters.
func (d *RequestDeserializer) DecodeFacets(params url.Values) (model.FacetsRequest, error) {
	var indexParam, typeParam any
	if values := params["index"]; len(values) > 0 {
		indexParam = splitParam(values)
	}
	if values := params["type"]; len(values) > 0 {
		typeParam = splitParam(values)
	}

	indices, docTypes, err := d.scope(indexParam, typeParam)
	if err != nil {
		return model.FacetsRequest{}, err
	}

	req := model.FacetsRequest{Indices: indices, Types: docTypes}
	if raw := params.Get("all_projects"); raw != "" {
		if req.AllProjects, err = boolValue("all_projects", raw); err != nil {
			return model.FacetsRequest{}, err
		}
	}
	if raw := params.Get("limit_terms"); raw != "" {
		if req.LimitTerms, err = nonNegativeInt("limit_terms", raw); err != nil {
			return model.FacetsRequest{}, err
		}
	}
	return req, nil
}

func splitParam(values []string) []any {
	var out []any
	for _, value := range values {
		for _, part := range strings.Split(value, ",") {
			if part = strings.TrimSpace(part); part != "" {
				out = append(out, part)
			}
		}
	}
	return out
}

// DecodeIndex validates an index API body into bulk actions.
func (d *RequestDeserializer) DecodeIndex(body map[string]any) (model.IndexRequest, error) {
	rawActions, ok := body["actions"].([]any)
	if !ok || len(rawActions) == 0 {
		return model.IndexRequest{}, errors.NewValidation("'actions' must be a non-empty list")
	}

	defaultIndex, err := optionalString("default_index", body["default_index"])
	if err != nil {
		return model.IndexRequest{}, err
	}
	if defaultIndex != "" && !slices.Contains(d.registry.Indices(), defaultIndex) {
		return model.IndexRequest{}, errors.NewValidation(fmt.Sprintf("Index '%s' is not supported", defaultIndex))
	}
	defaultType, err := optionalString("default_type", body["default_type"])
	if err != nil {
		return model.IndexRequest{}, err
	}
	if _, known := d.registry.Plugin(defaultType); defaultType != "" && !known {
		return model.IndexRequest{}, errors.NewValidation(fmt.Sprintf("Type '%s' is not supported", defaultType))
	}

	req := model.IndexRequest{Actions: make([]model.BulkAction, 0, len(rawActions))}
	for i, raw := range rawActions {
		actionBody, isMap := raw.(map[string]any)
		if !isMap {
			return model.IndexRequest{}, errors.NewValidation(fmt.Sprintf("Action %d must be an object", i))
		}
		action, errAction := d.decodeAction(i, actionBody, defaultIndex, defaultType)
		if errAction != nil {
			return model.IndexRequest{}, errAction
		}
		req.Actions = append(req.Actions, action)
	}
	return req, nil
}

func (d *RequestDeserializer) decodeAction(i int, body map[string]any, defaultIndex, defaultType string) (model.BulkAction, error) {
	op := model.BulkOpIndex
	if raw, ok := body["action"]; ok {
		name, isString := raw.(string)
		switch model.BulkOp(name) {
		case model.BulkOpIndex, model.BulkOpCreate, model.BulkOpUpdate, model.BulkOpDelete:
			op = model.BulkOp(name)
		default:
			if !isString || name == "" {
				return model.BulkAction{}, errors.NewValidation(fmt.Sprintf("Action %d has an empty action type", i))
			}
			return model.BulkAction{}, errors.NewValidation(fmt.Sprintf("Invalid action type: '%s'", name))
		}
	}

	index, err := optionalString("index", body["index"])
	if err != nil {
		return model.BulkAction{}, err
	}
	if index == "" {
		index = defaultIndex
	}
	docType, err := optionalString("type", body["type"])
	if err != nil {
		return model.BulkAction{}, err
	}
	if docType == "" {
		docType = defaultType
	}
	if index == "" || docType == "" {
		return model.BulkAction{}, errors.NewValidation(fmt.Sprintf("Action %d needs an index and a type, directly or through default_index and default_type", i))
	}
	if !slices.Contains(d.registry.Indices(), index) {
		return model.BulkAction{}, errors.NewValidation(fmt.Sprintf("Index '%s' is not supported", index))
	}
	p, known := d.registry.Plugin(docType)
	if !known {
		return model.BulkAction{}, errors.NewValidation(fmt.Sprintf("Type '%s' is not supported", docType))
	}

	id, err := optionalString("id", body["id"])
	if err != nil {
		return model.BulkAction{}, err
	}
	data, hasData := body["data"].(map[string]any)
	if _, present := body["data"]; present && !hasData {
		return model.BulkAction{}, errors.NewValidation(fmt.Sprintf("Action %d: 'data' must be an object", i))
	}
	script, err := optionalString("script", body["script"])
	if err != nil {
		return model.BulkAction{}, err
	}

	action := model.BulkAction{Op: op, Index: index, Type: docType, ID: id}

	switch op {
	case model.BulkOpIndex, model.BulkOpCreate:
		if !hasData {
			return model.BulkAction{}, errors.NewValidation(fmt.Sprintf("Action %d of type '%s' needs 'data'", i, op))
		}
		action.Source = data
	case model.BulkOpUpdate:
		if id == "" {
			return model.BulkAction{}, errors.NewValidation(fmt.Sprintf("Action %d of type 'update' needs an 'id'", i))
		}
		switch {
		case script != "":
			action.Script = script
			action.Params = map[string]any{}
			if params, isMap := body["params"].(map[string]any); isMap {
				action.Params = params
			} else if hasData {
				action.Params = data
			}
		case hasData:
			action.Doc = data
		default:
			return model.BulkAction{}, errors.NewValidation(fmt.Sprintf("Action %d of type 'update' needs 'data' or 'script'", i))
		}
	case model.BulkOpDelete:
		if id == "" {
			return model.BulkAction{}, errors.NewValidation(fmt.Sprintf("Action %d of type 'delete' needs an 'id'", i))
		}
	}

	if _, parentField := p.ParentRelation(); parentField != "" {
		parent, errParent := optionalString("parent", body["parent"])
		if errParent != nil {
			return model.BulkAction{}, errParent
		}
		if value, present := data[parentField]; parent == "" && present && value != nil {
			parent = fmt.Sprint(value)
		}
		if parent == "" {
			return model.BulkAction{}, errors.NewValidation(fmt.Sprintf("Action %d: documents of type '%s' need a parent through '%s' or 'parent'", i, docType, parentField))
		}
		action.Parent = parent
	}

	if action.Source != nil {
		source := make(map[string]any, len(action.Source)+2)
		for key, value := range action.Source {
			source[key] = value
		}
		source[constants.DocumentTypeField] = docType
		if relation := d.registry.Relation(docType, action.Parent); relation != nil {
			source[constants.RelationField] = relation
		}
		action.Source = source
	}

	return action, nil
}

// scope validates the requested indices and types. Missing values select
// every registered index and every type living in the selected indices.
func (d *RequestDeserializer) scope(rawIndex, rawType any) ([]string, []string, error) {
	indices, err := stringList("index", rawIndex)
	if err != nil {
		return nil, nil, err
	}
	registered := d.registry.Indices()
	for _, index := range indices {
		if !slices.Contains(registered, index) {
			return nil, nil, errors.NewValidation(fmt.Sprintf("Index '%s' is not supported", index))
		}
	}
	if len(indices) == 0 {
		indices = registered
	}

	docTypes, err := stringList("type", rawType)
	if err != nil {
		return nil, nil, err
	}
	for _, docType := range docTypes {
		p, ok := d.registry.Plugin(docType)
		if !ok {
			return nil, nil, errors.NewValidation(fmt.Sprintf("Type '%s' is not supported", docType))
		}
		if !slices.Contains(indices, p.IndexName()) {
			return nil, nil, errors.NewValidation(fmt.Sprintf("Type '%s' is not stored in the requested indices", docType))
		}
	}
	if len(docTypes) == 0 {
		for _, p := range d.registry.Plugins() {
			if slices.Contains(indices, p.IndexName()) {
				docTypes = append(docTypes, p.DocumentType())
			}
		}
	}
	return indices, docTypes, nil
}

// decodeSource accepts a field name, a list of field names, or an
// include/exclude object.
func decodeSource(raw any) ([]string, []string, error) {
	const message = "'_source' must be a string, dict or list"

	switch v := raw.(type) {
	case nil:
		return nil, nil, nil
	case string:
		return []string{v}, nil, nil
	case []any:
		includes, err := stringList("_source", v)
		if err != nil {
			return nil, nil, errors.NewValidation(message)
		}
		return includes, nil, nil
	case map[string]any:
		for key := range v {
			if key != "include" && key != "exclude" && key != "includes" && key != "excludes" {
				return nil, nil, errors.NewValidation(message)
			}
		}
		includes, err := stringList("_source", firstPresent(v, "include", "includes"))
		if err != nil {
			return nil, nil, errors.NewValidation(message)
		}
		excludes, err := stringList("_source", firstPresent(v, "exclude", "excludes"))
		if err != nil {
			return nil, nil, errors.NewValidation(message)
		}
		return includes, excludes, nil
	default:
		return nil, nil, errors.NewValidation(message)
	}
}

func firstPresent(m map[string]any, keys ...string) any {
	for _, key := range keys {
		if value, ok := m[key]; ok {
			return value
		}
	}
	return nil
}

// normalizeSort turns any accepted sort shape into a list, moving fields
// with a raw variant onto it.
func normalizeSort(raw any, rawFields map[string]struct{}) ([]any, error) {
	const message = "'sort' must be a string, dict or list"

	rewrite := func(field string) string {
		if _, ok := rawFields[field]; ok {
			return field + model.RawSuffix
		}
		return field
	}
	entry := func(item any) (any, error) {
		switch v := item.(type) {
		case string:
			return rewrite(v), nil
		case map[string]any:
			out := make(map[string]any, len(v))
			for field, order := range v {
				out[rewrite(field)] = order
			}
			return out, nil
		default:
			return nil, errors.NewValidation(message)
		}
	}

	switch v := raw.(type) {
	case nil:
		return nil, nil
	case string, map[string]any:
		normalized, err := entry(v)
		if err != nil {
			return nil, err
		}
		return []any{normalized}, nil
	case []any:
		out := make([]any, 0, len(v))
		for _, item := range v {
			normalized, err := entry(item)
			if err != nil {
				return nil, err
			}
			out = append(out, normalized)
		}
		return out, nil
	default:
		return nil, errors.NewValidation(message)
	}
}

func stringList(name string, raw any) ([]string, error) {
	switch v := raw.(type) {
	case nil:
		return nil, nil
	case string:
		return []string{v}, nil
	case []string:
		return v, nil
	case []any:
		out := make([]string, 0, len(v))
		for _, item := range v {
			s, ok := item.(string)
			if !ok {
				return nil, errors.NewValidation(fmt.Sprintf("'%s' must be a string or a list of strings", name))
			}
			out = append(out, s)
		}
		return out, nil
	default:
		return nil, errors.NewValidation(fmt.Sprintf("'%s' must be a string or a list of strings", name))
	}
}

func optionalString(name string, raw any) (string, error) {
	switch v := raw.(type) {
	case nil:
		return "", nil
	case string:
		return v, nil
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64), nil
	default:
		return "", errors.NewValidation(fmt.Sprintf("'%s' must be a string", name))
	}
}

// nonNegativeInt accepts JSON numbers and numeric strings.
func nonNegativeInt(name string, raw any) (int, error) {
	invalid := errors.NewValidation(fmt.Sprintf("Invalid value '%v' for '%s': must be a non-negative integer", raw, name))

	var n int
	switch v := raw.(type) {
	case float64:
		if v != math.Trunc(v) || v > math.MaxInt32 {
			return 0, invalid
		}
		n = int(v)
	case int:
		n = v
	case json.Number:
		parsed, err := strconv.Atoi(v.String())
		if err != nil {
			return 0, invalid
		}
		n = parsed
	case string:
		parsed, err := strconv.Atoi(strings.TrimSpace(v))
		if err != nil {
			return 0, invalid
		}
		n = parsed
	default:
		return 0, invalid
	}
	if n < 0 {
		return 0, invalid
	}
	return n, nil
}

func boolValue(name string, raw any) (bool, error) {
	switch v := raw.(type) {
	case nil:
		return false, nil
	case bool:
		return v, nil
	case string:
		parsed, err := strconv.ParseBool(v)
		if err != nil {
			return false, errors.NewValidation(fmt.Sprintf("'%s' must be a boolean", name))
		}
		return parsed, nil
	default:
		return false, errors.NewValidation(fmt.Sprintf("'%s' must be a boolean", name))
	}
}
