// Package rule implements the extraction rule language.
//
// A rule is one or more alternatives separated by "||"; the first alternative
// producing a non-empty result wins. An alternative is a chain of "@"-separated
// steps, optionally followed by "##regex" which deletes every match from the
// result. Steps select nodes (class.NAME, id.NAME, tag.NAME, text.CONTENT, a
// bare tag NAME, or a JSONPath starting with "$"), optionally suffixed ".N"
// to pick one match, extract values (text, textNodes, ownText, html, or an
// attribute name), or hand the value so far to a script ("@js:").
package rule

import (
	"context"
	"strings"
	"sync"

	"github.com/fwojciec/folio"
)

// Interpreter evaluates extraction rules.
//
// Compiled rules are cached by their literal text; evaluation holds no other
// state, so one Interpreter may be shared by any number of goroutines.
type Interpreter struct {
	engine folio.ScriptEngine
	rules  sync.Map
}

// NewInterpreter returns an Interpreter. engine may be nil, in which case
// script steps fail and evaluation falls back to the next alternative.
func NewInterpreter(engine folio.ScriptEngine) *Interpreter {
	return &Interpreter{engine: engine}
}

func (in *Interpreter) program(rule string) *program {
	if p, ok := in.rules.Load(rule); ok {
		return p.(*program)
	}
	p, _ := in.rules.LoadOrStore(rule, compile(rule))
	return p.(*program)
}

// Evaluate evaluates rule in string mode and returns the raw result.
// A rule containing {{...}} placeholders is expanded as a template against v.
func (in *Interpreter) Evaluate(ctx context.Context, v Value, rule string) (Value, error) {
	if strings.TrimSpace(rule) == "" {
		return Value{baseURL: v.baseURL}, nil
	}
	if isTemplate(rule) {
		s, err := in.Expand(ctx, rule, v)
		if err != nil {
			return Value{}, err
		}
		return Value{kind: KindScalar, scalar: strings.TrimSpace(s), baseURL: v.baseURL}, nil
	}
	return in.eval(ctx, v, in.program(rule), modeString)
}

// String evaluates rule and joins a list result with newlines.
func (in *Interpreter) String(ctx context.Context, v Value, rule string) (string, error) {
	out, err := in.Evaluate(ctx, v, rule)
	if err != nil {
		return "", err
	}
	return out.String(), nil
}

// Strings evaluates rule and returns one string per result element.
func (in *Interpreter) Strings(ctx context.Context, v Value, rule string) ([]string, error) {
	out, err := in.Evaluate(ctx, v, rule)
	if err != nil {
		return nil, err
	}
	if out.IsEmpty() {
		return nil, nil
	}
	return out.Strings(), nil
}

// Elements evaluates rule in element mode, where every segment selects
// nodes, and returns the matched nodes in order. Array values are flattened
// so each element is its own node.
func (in *Interpreter) Elements(ctx context.Context, v Value, rule string) ([]Value, error) {
	if strings.TrimSpace(rule) == "" {
		return nil, nil
	}
	out, err := in.eval(ctx, v, in.program(rule), modeElements)
	if err != nil {
		return nil, err
	}
	if out.kind == KindScalar && looksLikeDocument(out.scalar) {
		if doc, err := Parse(out.scalar, out.baseURL); err == nil {
			out = doc
		}
	}
	return flattenData(out).Items(), nil
}

// Fields evaluates each named field of rules against v independently.
// A field that fails or has no rule yields "". Only cancellation aborts.
func (in *Interpreter) Fields(ctx context.Context, v Value, rules folio.RuleSet, fields ...string) (folio.Record, error) {
	rec := make(folio.Record, len(fields))
	for _, field := range fields {
		s, err := in.String(ctx, v, rules.Get(field))
		if err != nil {
			if folio.ErrorCode(err) == folio.ECANCELED {
				return nil, err
			}
			s = ""
		}
		rec[field] = s
	}
	return rec, nil
}

// Expand replaces each {{rule}} placeholder in tmpl with the string result
// of evaluating the rule against v. Expansion is a single pass.
func (in *Interpreter) Expand(ctx context.Context, tmpl string, v Value) (string, error) {
	return expand(tmpl, func(expr string) (string, error) {
		out, err := in.eval(ctx, v, in.program(expr), modeString)
		if err != nil {
			if folio.ErrorCode(err) == folio.ECANCELED {
				return "", err
			}
			return "", nil
		}
		return out.String(), nil
	})
}

func isTemplate(rule string) bool {
	if strings.HasPrefix(strings.TrimSpace(rule), scriptMarker) {
		return false
	}
	i := strings.Index(rule, "{{")
	return i >= 0 && strings.Contains(rule[i:], "}}")
}
