package folio

import "context"

// ScriptEngine executes script steps of extraction rules.
type ScriptEngine interface {
	// Execute runs code with the given global bindings and returns the
	// value of the last expression. Failures are reported as ESCRIPT.
	Execute(ctx context.Context, code string, bindings map[string]any) (any, error)
}
