package rule

import (
	"sort"
	"strings"
)

// selectData applies a selector to every item of a structured node-set.
// Arrays produced by a selection are flattened into the node-set. Object
// keys are visited in sorted order so that results are deterministic.
func selectData(items []any, s *step) []any {
	var out []any
	for _, item := range items {
		switch s.selector {
		case selectTag:
			out = appendFlat(out, childValues(item, s.name)...)
		case selectClass:
			out = appendFlat(out, descendantValues(item, s.name)...)
		case selectID:
			walkObjects(item, func(obj map[string]any) {
				if id, ok := obj["id"]; ok && isScalar(id) && stringify(id) == s.name {
					out = append(out, obj)
				}
			})
		case selectText:
			walkObjects(item, func(obj map[string]any) {
				for _, k := range sortedKeys(obj) {
					if v := obj[k]; isScalar(v) && strings.Contains(stringify(v), s.name) {
						out = append(out, obj)
						return
					}
				}
			})
		}
	}
	return out
}

// childValues returns the value under key for an object, or for each
// object element of an array.
func childValues(item any, key string) []any {
	switch x := item.(type) {
	case map[string]any:
		if v, ok := x[key]; ok {
			return []any{v}
		}
	case []any:
		var out []any
		for _, e := range x {
			out = append(out, childValues(e, key)...)
		}
		return out
	}
	return nil
}

// descendantValues returns every value stored under key at any depth.
func descendantValues(item any, key string) []any {
	var out []any
	var walk func(any)
	walk = func(x any) {
		switch x := x.(type) {
		case map[string]any:
			for _, k := range sortedKeys(x) {
				if k == key {
					out = append(out, x[k])
				}
				walk(x[k])
			}
		case []any:
			for _, e := range x {
				walk(e)
			}
		}
	}
	walk(item)
	return out
}

// walkObjects calls fn for item and every object nested in it, depth first.
func walkObjects(item any, fn func(map[string]any)) {
	switch x := item.(type) {
	case map[string]any:
		fn(x)
		for _, k := range sortedKeys(x) {
			walkObjects(x[k], fn)
		}
	case []any:
		for _, e := range x {
			walkObjects(e, fn)
		}
	}
}

// scalarLeaves returns the scalar values nested in item, stringified.
func scalarLeaves(item any) []string {
	var out []string
	var walk func(any)
	walk = func(x any) {
		switch x := x.(type) {
		case map[string]any:
			for _, k := range sortedKeys(x) {
				walk(x[k])
			}
		case []any:
			for _, e := range x {
				walk(e)
			}
		default:
			if s := stringify(x); s != "" {
				out = append(out, s)
			}
		}
	}
	walk(item)
	return out
}

func appendFlat(out []any, values ...any) []any {
	for _, v := range values {
		if v == nil {
			continue
		}
		if arr, ok := v.([]any); ok {
			out = append(out, arr...)
			continue
		}
		out = append(out, v)
	}
	return out
}

func sortedKeys(m map[string]any) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
