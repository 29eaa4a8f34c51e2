package rule

import (
	"strings"

	"github.com/ohler55/ojg/jp"
)

// Expand replaces each {{expr}} placeholder in tmpl with the value that the
// JSONPath expression expr selects from data. An expression without a
// leading '$' is read as "$." + expr.
//
// Numbers render in canonical decimal form; null and missing values render
// as "". When data is a single scalar, a placeholder that selects nothing
// renders the scalar itself. Substituted text is not expanded again, and an
// unterminated placeholder is copied verbatim.
func Expand(tmpl string, data any) string {
	out, _ := expand(tmpl, func(expr string) (string, error) {
		return lookup(expr, data), nil
	})
	return out
}

func lookup(expr string, data any) string {
	if !strings.HasPrefix(expr, "$") {
		expr = "$." + expr
	}
	if x, err := jp.ParseString(expr); err == nil {
		if res := x.Get(data); len(res) > 0 {
			return stringify(res[0])
		}
	}
	if isScalar(data) {
		return stringify(data)
	}
	return ""
}

func expand(tmpl string, resolve func(expr string) (string, error)) (string, error) {
	var b strings.Builder
	for {
		i := strings.Index(tmpl, "{{")
		if i < 0 {
			break
		}
		j := strings.Index(tmpl[i+2:], "}}")
		if j < 0 {
			break
		}
		s, err := resolve(strings.TrimSpace(tmpl[i+2 : i+2+j]))
		if err != nil {
			return "", err
		}
		b.WriteString(tmpl[:i])
		b.WriteString(s)
		tmpl = tmpl[i+2+j+2:]
	}
	b.WriteString(tmpl)
	return b.String(), nil
}
