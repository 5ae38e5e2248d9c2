// Copyright The Linux Foundation and each contributor to LFX.
// SPDX-License-Identifier: MIT

package plugin

import (
	"fmt"
	"maps"
	"strconv"
)

func copySource(source map[string]any) map[string]any {
	out := make(map[string]any, len(source))
	maps.Copy(out, source)
	return out
}

func stripKeys(source map[string]any, keys ...string) {
	for _, key := range keys {
		delete(source, key)
	}
}

// truthy follows the loose notion of emptiness upstream payloads use:
// absent, null, false, zero, "" and empty collections are all false.
func truthy(v any) bool {
	switch value := v.(type) {
	case nil:
		return false
	case bool:
		return value
	case string:
		return value != ""
	case float64:
		return value != 0
	case int:
		return value != 0
	case int64:
		return value != 0
	case []any:
		return len(value) > 0
	case []string:
		return len(value) > 0
	case map[string]any:
		return len(value) > 0
	default:
		return true
	}
}

// defaultUpdatedAt copies created_at into updated_at when updated_at is
// absent or empty.
func defaultUpdatedAt(source map[string]any) {
	if truthy(source["updated_at"]) {
		return
	}
	if created, ok := source["created_at"]; ok {
		source["updated_at"] = created
	}
}

// renameKey moves from to to when from is present.
func renameKey(source map[string]any, from, to string) {
	if value, ok := source[from]; ok {
		source[to] = value
		delete(source, from)
	}
}

func stringValue(v any) string {
	switch value := v.(type) {
	case nil:
		return ""
	case string:
		return value
	case float64:
		return strconv.FormatFloat(value, 'f', -1, 64)
	case int:
		return strconv.Itoa(value)
	default:
		return fmt.Sprint(value)
	}
}

func stringField(source map[string]any, key string) string {
	return stringValue(source[key])
}

func mapField(source map[string]any, key string) (map[string]any, bool) {
	value, ok := source[key].(map[string]any)
	return value, ok
}

func listField(source map[string]any, key string) []any {
	switch value := source[key].(type) {
	case []any:
		return value
	case []string:
		out := make([]any, len(value))
		for i, s := range value {
			out[i] = s
		}
		return out
	case []map[string]any:
		out := make([]any, len(value))
		for i, m := range value {
			out[i] = m
		}
		return out
	default:
		return nil
	}
}

// defaultList sets key to an empty list when it is absent or null.
func defaultList(source map[string]any, key string) {
	if source[key] == nil {
		source[key] = []any{}
	}
}
