package rule

import (
	"encoding/json"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// Kind identifies the variant held by a Value.
type Kind int

// Value kinds.
const (
	KindEmpty Kind = iota
	KindMarkup
	KindData
	KindScalar
	KindList
)

func (k Kind) String() string {
	switch k {
	case KindEmpty:
		return "empty"
	case KindMarkup:
		return "markup"
	case KindData:
		return "data"
	case KindScalar:
		return "scalar"
	case KindList:
		return "list"
	}
	return "unknown"
}

// Value is an evaluation context or result: a markup node-set, a structured
// node-set, a scalar, a list of scalars, or nothing.
//
// Values are immutable. Node-sets keep the URL of the document they came
// from so that nested evaluation and scripts can resolve relative links.
type Value struct {
	kind    Kind
	sel     *goquery.Selection
	items   []any
	scalar  string
	list    []string
	baseURL string
}

// Scalar returns a scalar value.
func Scalar(s string) Value {
	return Value{kind: KindScalar, scalar: s}
}

// List returns a list value.
func List(items []string) Value {
	return Value{kind: KindList, list: items}
}

// Data returns a structured node-set holding the given JSON-like items.
func Data(baseURL string, items ...any) Value {
	if len(items) == 0 {
		return Value{baseURL: baseURL}
	}
	return Value{kind: KindData, items: items, baseURL: baseURL}
}

// Kind returns the variant held by v.
func (v Value) Kind() Kind { return v.kind }

// BaseURL returns the URL of the document v was derived from.
func (v Value) BaseURL() string { return v.baseURL }

// WithBaseURL returns a copy of v carrying baseURL.
func (v Value) WithBaseURL(baseURL string) Value {
	v.baseURL = baseURL
	return v
}

// Len returns the number of nodes or list elements in v.
// A non-empty scalar has length 1.
func (v Value) Len() int {
	switch v.kind {
	case KindMarkup:
		return v.sel.Length()
	case KindData:
		return len(v.items)
	case KindList:
		return len(v.list)
	case KindScalar:
		return 1
	}
	return 0
}

// IsEmpty reports whether v counts as an empty result: no nodes, no
// non-blank list elements, or a blank scalar.
func (v Value) IsEmpty() bool {
	switch v.kind {
	case KindMarkup:
		return v.sel.Length() == 0
	case KindData:
		return len(v.items) == 0
	case KindScalar:
		return strings.TrimSpace(v.scalar) == ""
	case KindList:
		for _, s := range v.list {
			if strings.TrimSpace(s) != "" {
				return false
			}
		}
		return true
	}
	return true
}

// String returns v as one string. Node-sets yield their visible text and
// lists are joined with newlines.
func (v Value) String() string {
	switch v.kind {
	case KindScalar:
		return v.scalar
	case KindEmpty:
		return ""
	}
	return strings.Join(v.Strings(), "\n")
}

// Strings returns v as a list of strings, one per node or element.
func (v Value) Strings() []string {
	switch v.kind {
	case KindMarkup:
		out := make([]string, 0, v.sel.Length())
		for _, n := range v.sel.Nodes {
			if s := visibleText(n); s != "" {
				out = append(out, s)
			}
		}
		return out
	case KindData:
		out := make([]string, 0, len(v.items))
		for _, item := range v.items {
			if s := stringify(item); s != "" {
				out = append(out, s)
			}
		}
		return out
	case KindScalar:
		return []string{v.scalar}
	case KindList:
		return v.list
	}
	return nil
}

// HTML returns the outer HTML of a markup node-set, or v as a string for
// any other kind.
func (v Value) HTML() string {
	if v.kind != KindMarkup {
		return v.String()
	}
	var b strings.Builder
	for i := range v.sel.Nodes {
		s, err := goquery.OuterHtml(v.sel.Eq(i))
		if err != nil {
			continue
		}
		b.WriteString(s)
	}
	return b.String()
}

// Items splits v into one value per node or element.
func (v Value) Items() []Value {
	switch v.kind {
	case KindMarkup:
		out := make([]Value, v.sel.Length())
		for i := range out {
			out[i] = Value{kind: KindMarkup, sel: v.sel.Eq(i), baseURL: v.baseURL}
		}
		return out
	case KindData:
		out := make([]Value, len(v.items))
		for i, item := range v.items {
			out[i] = Value{kind: KindData, items: []any{item}, baseURL: v.baseURL}
		}
		return out
	case KindList:
		out := make([]Value, len(v.list))
		for i, s := range v.list {
			out[i] = Value{kind: KindScalar, scalar: s, baseURL: v.baseURL}
		}
		return out
	case KindScalar:
		return []Value{v}
	}
	return nil
}

// export converts v into plain Go values for script bindings: markup nodes
// become their outer HTML, structured nodes their JSON-like value.
// Multi-node sets and lists become slices.
func (v Value) export() any {
	switch v.kind {
	case KindMarkup:
		out := make([]any, 0, v.sel.Length())
		for i := range v.sel.Nodes {
			s, err := goquery.OuterHtml(v.sel.Eq(i))
			if err != nil {
				continue
			}
			out = append(out, s)
		}
		if len(out) == 1 {
			return out[0]
		}
		return out
	case KindData:
		if len(v.items) == 1 {
			return v.items[0]
		}
		return append([]any(nil), v.items...)
	case KindScalar:
		return v.scalar
	case KindList:
		if len(v.list) == 1 {
			return v.list[0]
		}
		out := make([]any, len(v.list))
		for i, s := range v.list {
			out[i] = s
		}
		return out
	}
	return nil
}

// fromExported converts a script result back into a Value.
func fromExported(x any, baseURL string) Value {
	switch x := x.(type) {
	case nil:
		return Value{baseURL: baseURL}
	case string:
		return Value{kind: KindScalar, scalar: x, baseURL: baseURL}
	case []string:
		return Value{kind: KindList, list: x, baseURL: baseURL}
	case []any:
		list := make([]string, 0, len(x))
		for _, e := range x {
			if !isScalar(e) {
				return Data(baseURL, x...)
			}
			list = append(list, stringify(e))
		}
		return Value{kind: KindList, list: list, baseURL: baseURL}
	case map[string]any:
		return Data(baseURL, x)
	}
	return Value{kind: KindScalar, scalar: stringify(x), baseURL: baseURL}
}

func isScalar(x any) bool {
	switch x.(type) {
	case map[string]any, []any:
		return false
	}
	return true
}

// stringify renders a JSON-like value: numbers in canonical decimal form,
// null as "", objects and arrays as JSON.
func stringify(x any) string {
	switch x := x.(type) {
	case nil:
		return ""
	case string:
		return x
	case bool:
		return strconv.FormatBool(x)
	case int:
		return strconv.Itoa(x)
	case int32:
		return strconv.FormatInt(int64(x), 10)
	case int64:
		return strconv.FormatInt(x, 10)
	case uint64:
		return strconv.FormatUint(x, 10)
	case float32:
		return strconv.FormatFloat(float64(x), 'f', -1, 32)
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64)
	case json.Number:
		return x.String()
	}
	b, err := json.Marshal(x)
	if err != nil {
		return ""
	}
	return string(b)
}
