package mock

import (
	"context"

	"github.com/fwojciec/folio"
)

var _ folio.ScriptEngine = (*ScriptEngine)(nil)

// ScriptEngine is a mock implementation of folio.ScriptEngine.
type ScriptEngine struct {
	ExecuteFn func(ctx context.Context, code string, bindings map[string]any) (any, error)
}

func (e *ScriptEngine) Execute(ctx context.Context, code string, bindings map[string]any) (any, error) {
	return e.ExecuteFn(ctx, code, bindings)
}
