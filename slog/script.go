package slog

import (
	"context"
	"log/slog"
	"time"

	"github.com/fwojciec/folio"
)

// Ensure LoggingScriptEngine implements folio.ScriptEngine.
var _ folio.ScriptEngine = (*LoggingScriptEngine)(nil)

// LoggingScriptEngine wraps a ScriptEngine with debug logging.
// Script source is not logged.
type LoggingScriptEngine struct {
	next   folio.ScriptEngine
	logger *slog.Logger
}

// NewLoggingScriptEngine creates a new LoggingScriptEngine.
func NewLoggingScriptEngine(next folio.ScriptEngine, logger *slog.Logger) *LoggingScriptEngine {
	return &LoggingScriptEngine{next: next, logger: logger}
}

// Execute delegates to the wrapped engine and logs the run.
func (e *LoggingScriptEngine) Execute(ctx context.Context, code string, bindings map[string]any) (result any, err error) {
	defer func(begin time.Time) {
		e.logger.Debug("script",
			"bytes", len(code),
			"duration", time.Since(begin),
			"err", err,
		)
	}(time.Now())
	return e.next.Execute(ctx, code, bindings)
}
