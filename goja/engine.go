// Package goja implements folio.ScriptEngine on the goja JavaScript runtime.
package goja

import (
	"context"
	"errors"
	"time"

	"github.com/dop251/goja"
	"github.com/fwojciec/folio"
)

// DefaultTimeout bounds the run time of one script.
const DefaultTimeout = 5 * time.Second

var _ folio.ScriptEngine = (*Engine)(nil)

// Engine runs each script in a fresh runtime, so scripts cannot share state
// and one Engine may be used concurrently.
type Engine struct {
	timeout time.Duration
	globals map[string]any
}

// Option configures an Engine.
type Option func(*Engine)

// WithTimeout sets the maximum run time of one script. Zero disables it.
func WithTimeout(d time.Duration) Option {
	return func(e *Engine) {
		e.timeout = d
	}
}

// WithGlobal installs a value available to every script.
func WithGlobal(name string, value any) Option {
	return func(e *Engine) {
		e.globals[name] = value
	}
}

// NewEngine creates a new Engine.
func NewEngine(opts ...Option) *Engine {
	e := &Engine{
		timeout: DefaultTimeout,
		globals: make(map[string]any),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

type interrupt struct{ reason string }

// Execute runs code with bindings as globals and exports the completion
// value. Undefined and null export as nil.
func (e *Engine) Execute(ctx context.Context, code string, bindings map[string]any) (any, error) {
	if err := ctx.Err(); err != nil {
		return nil, folio.Errorf(folio.ECANCELED, "script canceled")
	}

	vm := goja.New()
	vm.SetFieldNameMapper(goja.UncapFieldNameMapper())
	for name, v := range e.globals {
		if err := vm.Set(name, v); err != nil {
			return nil, folio.Errorf(folio.ESCRIPT, "bind %s: %v", name, err)
		}
	}
	for name, v := range bindings {
		if err := vm.Set(name, v); err != nil {
			return nil, folio.Errorf(folio.ESCRIPT, "bind %s: %v", name, err)
		}
	}

	done := make(chan struct{})
	defer close(done)

	var timeout <-chan time.Time
	if e.timeout > 0 {
		timer := time.NewTimer(e.timeout)
		defer timer.Stop()
		timeout = timer.C
	}
	go func() {
		select {
		case <-ctx.Done():
			vm.Interrupt(interrupt{reason: "canceled"})
		case <-timeout:
			vm.Interrupt(interrupt{reason: "timeout"})
		case <-done:
		}
	}()

	v, err := vm.RunString(code)
	if err != nil {
		var ie *goja.InterruptedError
		if errors.As(err, &ie) {
			if r, ok := ie.Value().(interrupt); ok && r.reason == "canceled" {
				return nil, folio.Errorf(folio.ECANCELED, "script canceled")
			}
			return nil, folio.Errorf(folio.ESCRIPT, "script exceeded %s", e.timeout)
		}
		return nil, folio.Errorf(folio.ESCRIPT, "script failed: %v", err)
	}

	if v == nil || goja.IsUndefined(v) || goja.IsNull(v) {
		return nil, nil
	}
	return v.Export(), nil
}
