// Copyright The Linux Foundation and each contributor to LFX.
// SPDX-License-Identifier: MIT

package mock

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
)

// matches evaluates the subset of the query DSL the gateway emits against
// one document source.
func matches(source map[string]any, id string, query map[string]any) (bool, error) {
	if len(query) == 0 {
		return true, nil
	}
	if len(query) != 1 {
		return false, fmt.Errorf("query clause must have exactly one key, got %d", len(query))
	}

	for kind, body := range query {
		switch kind {
		case "match_all":
			return true, nil
		case "match_none":
			return false, nil
		case "term":
			field, value, err := singleField(body, "value")
			if err != nil {
				return false, err
			}
			return anyEqual(values(source, field), value), nil
		case "terms":
			clause, ok := body.(map[string]any)
			if !ok || len(clause) != 1 {
				return false, fmt.Errorf("terms clause must name one field")
			}
			for field, raw := range clause {
				candidates, ok := raw.([]any)
				if !ok {
					if asStrings, isStrings := raw.([]string); isStrings {
						for _, s := range asStrings {
							candidates = append(candidates, s)
						}
					} else {
						return false, fmt.Errorf("terms values for %s must be a list", field)
					}
				}
				docValues := values(source, field)
				for _, candidate := range candidates {
					if anyEqual(docValues, candidate) {
						return true, nil
					}
				}
			}
			return false, nil
		case "ids":
			clause, _ := body.(map[string]any)
			for _, candidate := range toList(clause["values"]) {
				if fmt.Sprint(candidate) == id {
					return true, nil
				}
			}
			return false, nil
		case "exists":
			clause, _ := body.(map[string]any)
			field, _ := clause["field"].(string)
			return len(values(source, field)) > 0, nil
		case "match", "match_phrase", "prefix", "wildcard":
			field, value, err := singleField(body, "query")
			if err != nil {
				return false, err
			}
			needle := strings.ToLower(strings.Trim(fmt.Sprint(value), "*"))
			for _, v := range values(source, field) {
				if strings.Contains(strings.ToLower(fmt.Sprint(v)), needle) {
					return true, nil
				}
			}
			return false, nil
		case "bool":
			clause, ok := body.(map[string]any)
			if !ok {
				return false, fmt.Errorf("bool clause must be an object")
			}
			return matchBool(source, id, clause)
		case "nested":
			clause, _ := body.(map[string]any)
			path, _ := clause["path"].(string)
			inner, _ := clause["query"].(map[string]any)
			for _, element := range toList(source[path]) {
				scoped := map[string]any{path: element}
				ok, err := matches(scoped, id, inner)
				if err != nil || ok {
					return ok, err
				}
			}
			return false, nil
		default:
			return false, fmt.Errorf("unsupported query clause %q", kind)
		}
	}
	return false, nil
}

func matchBool(source map[string]any, id string, clause map[string]any) (bool, error) {
	for _, key := range []string{"must", "filter"} {
		for _, sub := range clauses(clause[key]) {
			ok, err := matches(source, id, sub)
			if err != nil || !ok {
				return false, err
			}
		}
	}
	for _, sub := range clauses(clause["must_not"]) {
		ok, err := matches(source, id, sub)
		if err != nil {
			return false, err
		}
		if ok {
			return false, nil
		}
	}

	should := clauses(clause["should"])
	if len(should) == 0 {
		return true, nil
	}
	minimum := 0
	if clause["must"] == nil && clause["filter"] == nil {
		minimum = 1
	}
	if raw, ok := clause["minimum_should_match"]; ok {
		minimum = toInt(raw)
	}
	matched := 0
	for _, sub := range should {
		ok, err := matches(source, id, sub)
		if err != nil {
			return false, err
		}
		if ok {
			matched++
		}
	}
	return matched >= minimum, nil
}

// clauses accepts a single clause or a list of clauses.
func clauses(raw any) []map[string]any {
	switch v := raw.(type) {
	case map[string]any:
		return []map[string]any{v}
	case []any:
		out := make([]map[string]any, 0, len(v))
		for _, item := range v {
			if m, ok := item.(map[string]any); ok {
				out = append(out, m)
			}
		}
		return out
	case []map[string]any:
		return v
	default:
		return nil
	}
}

func singleField(body any, valueKey string) (string, any, error) {
	clause, ok := body.(map[string]any)
	if !ok || len(clause) != 1 {
		return "", nil, fmt.Errorf("clause must name exactly one field")
	}
	for field, raw := range clause {
		if wrapped, ok := raw.(map[string]any); ok {
			return field, wrapped[valueKey], nil
		}
		return field, raw, nil
	}
	return "", nil, nil
}

// values resolves a dotted path, fanning out over lists.
func values(source map[string]any, path string) []any {
	path = strings.TrimSuffix(path, ".raw")
	current := []any{source}
	for _, part := range strings.Split(path, ".") {
		var next []any
		for _, item := range current {
			m, ok := item.(map[string]any)
			if !ok {
				continue
			}
			value, ok := m[part]
			if !ok || value == nil {
				continue
			}
			if list := toList(value); list != nil {
				next = append(next, list...)
				continue
			}
			next = append(next, value)
		}
		current = next
	}
	return current
}

func toList(raw any) []any {
	switch v := raw.(type) {
	case []any:
		return v
	case []string:
		out := make([]any, len(v))
		for i, s := range v {
			out[i] = s
		}
		return out
	case []map[string]any:
		out := make([]any, len(v))
		for i, m := range v {
			out[i] = m
		}
		return out
	default:
		return nil
	}
}

func anyEqual(docValues []any, want any) bool {
	normalizedWant := normalize(want)
	for _, v := range docValues {
		if normalize(v) == normalizedWant {
			return true
		}
	}
	return false
}

// normalize makes numbers and strings comparable across JSON decoding.
func normalize(v any) any {
	switch value := v.(type) {
	case int:
		return float64(value)
	case int64:
		return float64(value)
	case float32:
		return float64(value)
	case float64, bool, string:
		return value
	default:
		return fmt.Sprint(value)
	}
}

func toInt(raw any) int {
	switch v := raw.(type) {
	case int:
		return v
	case float64:
		return int(v)
	case string:
		n, _ := strconv.Atoi(v)
		return n
	default:
		return 0
	}
}

// less orders two values, numbers numerically and everything else as text.
func less(a, b any) bool {
	na, okA := normalize(a).(float64)
	nb, okB := normalize(b).(float64)
	if okA && okB {
		return na < nb
	}
	return fmt.Sprint(a) < fmt.Sprint(b)
}

type bucket struct {
	key   any
	count int
}

// termsBuckets counts, per distinct value of field, the sources holding it.
func termsBuckets(sources []map[string]any, field string, size int) []any {
	counts := map[any]*bucket{}
	for _, source := range sources {
		seen := map[any]struct{}{}
		for _, v := range values(source, field) {
			key := normalize(v)
			if _, dup := seen[key]; dup {
				continue
			}
			seen[key] = struct{}{}
			if b, ok := counts[key]; ok {
				b.count++
				continue
			}
			counts[key] = &bucket{key: v, count: 1}
		}
	}

	ordered := make([]*bucket, 0, len(counts))
	for _, b := range counts {
		ordered = append(ordered, b)
	}
	sort.Slice(ordered, func(i, j int) bool {
		if ordered[i].count != ordered[j].count {
			return ordered[i].count > ordered[j].count
		}
		return less(ordered[i].key, ordered[j].key)
	})
	if size > 0 && len(ordered) > size {
		ordered = ordered[:size]
	}

	out := make([]any, 0, len(ordered))
	for _, b := range ordered {
		out = append(out, map[string]any{"key": b.key, "doc_count": b.count})
	}
	return out
}

// aggregate evaluates terms and nested aggregations.
func aggregate(sources []map[string]any, aggs map[string]any) (map[string]any, error) {
	out := make(map[string]any, len(aggs))
	for name, raw := range aggs {
		definition, ok := raw.(map[string]any)
		if !ok {
			return nil, fmt.Errorf("aggregation %s must be an object", name)
		}
		switch {
		case definition["terms"] != nil:
			terms, _ := definition["terms"].(map[string]any)
			field, _ := terms["field"].(string)
			out[name] = map[string]any{"buckets": termsBuckets(sources, field, toInt(terms["size"]))}
		case definition["nested"] != nil:
			nested, _ := definition["nested"].(map[string]any)
			path, _ := nested["path"].(string)
			var elements []map[string]any
			for _, source := range sources {
				for _, element := range toList(source[path]) {
					elements = append(elements, map[string]any{path: element})
				}
			}
			result := map[string]any{"doc_count": len(elements)}
			if sub, ok := definition["aggs"].(map[string]any); ok {
				inner, err := aggregate(elements, sub)
				if err != nil {
					return nil, err
				}
				for key, value := range inner {
					result[key] = value
				}
			}
			out[name] = result
		default:
			return nil, fmt.Errorf("unsupported aggregation %s", name)
		}
	}
	return out, nil
}
