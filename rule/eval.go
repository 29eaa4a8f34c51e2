package rule

import (
	"context"
	"encoding/json"
	"regexp"
	"strings"

	"github.com/fwojciec/folio"
)

type mode int

const (
	// modeString treats a bare final segment as a terminal and converts
	// node-sets to text.
	modeString mode = iota

	// modeElements treats every segment as a selector.
	modeElements
)

// Terminal names recognized in string mode. Any other bare final segment
// reads the attribute (or object key) of that name.
const (
	terminalText      = "text"
	terminalTextNodes = "textNodes"
	terminalOwnText   = "ownText"
	terminalHTML      = "html"
)

func canceled(err error) error {
	return folio.Errorf(folio.ECANCELED, "rule evaluation canceled: %v", err)
}

// eval runs a compiled rule. Alternatives are tried in order and the first
// non-empty result wins. When every alternative fails the result is empty
// and the error of the last failing alternative, if any, is returned.
func (in *Interpreter) eval(ctx context.Context, v Value, p *program, m mode) (Value, error) {
	var lastErr error
	for i := range p.alts {
		if err := ctx.Err(); err != nil {
			return Value{}, canceled(err)
		}
		out, err := in.evalAlternative(ctx, v, &p.alts[i], m)
		if err != nil {
			if folio.ErrorCode(err) == folio.ECANCELED {
				return Value{}, err
			}
			lastErr = err
			continue
		}
		if !out.IsEmpty() {
			return out, nil
		}
	}
	return Value{baseURL: v.baseURL}, lastErr
}

func (in *Interpreter) evalAlternative(ctx context.Context, v Value, alt *alternative, m mode) (Value, error) {
	if alt.err != nil {
		return Value{}, alt.err
	}

	cur := v
	for i := range alt.steps {
		if err := ctx.Err(); err != nil {
			return Value{}, canceled(err)
		}

		s := &alt.steps[i]
		var err error
		switch {
		case s.kind == stepScript:
			cur, err = in.runScript(ctx, cur, s.script)
		case m == modeString && isTerminal(alt.steps, i):
			cur, err = applyTerminal(cur, s.name)
		default:
			cur, err = applyStep(cur, s)
		}
		if err != nil {
			return Value{}, err
		}
		if cur.IsEmpty() {
			return cur, nil
		}
	}

	if m == modeString {
		cur = finishString(cur, alt.filter)
	}
	return cur, nil
}

// isTerminal reports whether steps[i] is a bare segment that ends the
// alternative, or that only a script follows.
func isTerminal(steps []step, i int) bool {
	s := &steps[i]
	if !s.bare || s.hasIndex || s.kind != stepSelect {
		return false
	}
	last := len(steps) - 1
	return i == last || (i == last-1 && steps[last].kind == stepScript)
}

func (in *Interpreter) runScript(ctx context.Context, cur Value, code string) (Value, error) {
	if in.engine == nil {
		return Value{}, folio.Errorf(folio.ESCRIPT, "no script engine configured")
	}
	out, err := in.engine.Execute(ctx, code, map[string]any{
		"result":  cur.export(),
		"baseUrl": cur.baseURL,
	})
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return Value{}, canceled(ctxErr)
		}
		if folio.ErrorCode(err) == folio.EINTERNAL {
			return Value{}, folio.Errorf(folio.ESCRIPT, "script failed: %v", err)
		}
		return Value{}, err
	}
	return fromExported(out, cur.baseURL), nil
}

// finishString converts a string-mode result to trimmed scalars and applies
// the removal filter.
func finishString(v Value, filter *regexp.Regexp) Value {
	clean := func(s string) string {
		if filter != nil {
			s = filter.ReplaceAllString(s, "")
		}
		return strings.TrimSpace(s)
	}

	switch v.kind {
	case KindScalar:
		return Value{kind: KindScalar, scalar: clean(v.scalar), baseURL: v.baseURL}
	case KindEmpty:
		return v
	}

	var out []string
	for _, s := range v.Strings() {
		if s = clean(s); s != "" {
			out = append(out, s)
		}
	}
	return Value{kind: KindList, list: out, baseURL: v.baseURL}
}

// applyStep applies a selector or path step.
func applyStep(cur Value, s *step) (Value, error) {
	switch cur.kind {
	case KindEmpty:
		return cur, nil
	case KindMarkup:
		if s.kind == stepPath {
			return Value{}, folio.Errorf(folio.EPARSE, "path %q applied to an HTML document", s.name)
		}
		sel := selectMarkup(cur.sel, s)
		if s.hasIndex {
			i, ok := pickIndex(sel.Length(), s.index)
			if !ok {
				return Value{baseURL: cur.baseURL}, nil
			}
			sel = sel.Eq(i)
		}
		return Value{kind: KindMarkup, sel: sel, baseURL: cur.baseURL}, nil
	case KindData:
		var items []any
		if s.kind == stepPath {
			for _, item := range cur.items {
				items = appendFlat(items, s.path.Get(item)...)
			}
		} else {
			items = selectData(cur.items, s)
		}
		if s.hasIndex {
			i, ok := pickIndex(len(items), s.index)
			if !ok {
				return Value{baseURL: cur.baseURL}, nil
			}
			items = items[i : i+1]
		}
		return Data(cur.baseURL, items...), nil
	case KindScalar, KindList:
		return eachDocument(cur, func(doc Value) (Value, error) {
			return applyStep(doc, s)
		})
	}
	return Value{}, folio.Errorf(folio.EINTERNAL, "unknown value kind %v", cur.kind)
}

// applyTerminal extracts text, text nodes, markup or an attribute.
func applyTerminal(cur Value, name string) (Value, error) {
	switch cur.kind {
	case KindEmpty:
		return cur, nil
	case KindMarkup:
		var out []string
		for i, n := range cur.sel.Nodes {
			switch name {
			case terminalText:
				if s := visibleText(n); s != "" {
					out = append(out, s)
				}
			case terminalTextNodes:
				out = append(out, textNodes(n)...)
			case terminalOwnText:
				if s := ownText(n); s != "" {
					out = append(out, s)
				}
			case terminalHTML:
				s, err := cur.sel.Eq(i).Html()
				if err != nil {
					return Value{}, folio.Errorf(folio.EPARSE, "render markup: %v", err)
				}
				out = append(out, strings.TrimSpace(s))
			default:
				if s, ok := cur.sel.Eq(i).Attr(name); ok {
					out = append(out, s)
				}
			}
		}
		return Value{kind: KindList, list: out, baseURL: cur.baseURL}, nil
	case KindData:
		var out []string
		for _, item := range cur.items {
			switch name {
			case terminalText, terminalOwnText:
				out = append(out, stringify(item))
			case terminalTextNodes:
				out = append(out, scalarLeaves(item)...)
			case terminalHTML:
				b, err := json.Marshal(item)
				if err != nil {
					return Value{}, folio.Errorf(folio.EPARSE, "serialize value: %v", err)
				}
				out = append(out, string(b))
			default:
				for _, v := range appendFlat(nil, childValues(item, name)...) {
					out = append(out, stringify(v))
				}
			}
		}
		return Value{kind: KindList, list: out, baseURL: cur.baseURL}, nil
	case KindScalar:
		if looksLikeDocument(cur.scalar) {
			return eachDocument(cur, func(doc Value) (Value, error) {
				return applyTerminal(doc, name)
			})
		}
		switch name {
		case terminalText, terminalOwnText, terminalHTML, terminalTextNodes:
			return cur, nil
		}
		return Value{baseURL: cur.baseURL}, nil
	case KindList:
		var out []string
		for _, item := range cur.Items() {
			v, err := applyTerminal(item, name)
			if err != nil {
				return Value{}, err
			}
			out = append(out, v.Strings()...)
		}
		return Value{kind: KindList, list: out, baseURL: cur.baseURL}, nil
	}
	return Value{}, folio.Errorf(folio.EINTERNAL, "unknown value kind %v", cur.kind)
}

// eachDocument parses every scalar of cur as a document, applies fn and
// merges the results. Results whose kind differs from the first
// non-empty result are dropped.
func eachDocument(cur Value, fn func(Value) (Value, error)) (Value, error) {
	var merged Value
	merged.baseURL = cur.baseURL
	for _, item := range cur.Items() {
		doc, err := Parse(item.scalar, cur.baseURL)
		if err != nil {
			return Value{}, err
		}
		out, err := fn(doc)
		if err != nil {
			return Value{}, err
		}
		merged = merge(merged, out)
	}
	return merged, nil
}

func merge(a, b Value) Value {
	if b.IsEmpty() {
		return a
	}
	if a.kind == KindEmpty {
		return b
	}
	if isText(a) && isText(b) {
		list := append(append([]string(nil), a.Strings()...), b.Strings()...)
		return Value{kind: KindList, list: list, baseURL: a.baseURL}
	}
	if a.kind != b.kind {
		return a
	}
	switch a.kind {
	case KindMarkup:
		a.sel = a.sel.AddSelection(b.sel)
	case KindData:
		a.items = append(append([]any(nil), a.items...), b.items...)
	}
	return a
}

func isText(v Value) bool {
	return v.kind == KindScalar || v.kind == KindList
}

// pickIndex resolves a possibly negative index against a list of length n.
func pickIndex(n, index int) (int, bool) {
	if index < 0 {
		index += n
	}
	return index, index >= 0 && index < n
}

// flattenData expands array items so that each element becomes a node.
func flattenData(v Value) Value {
	if v.kind != KindData {
		return v
	}
	return Data(v.baseURL, appendFlat(nil, v.items...)...)
}
