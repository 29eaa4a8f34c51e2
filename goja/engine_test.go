package goja_test

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/fwojciec/folio"
	"github.com/fwojciec/folio/goja"
	"github.com/fwojciec/folio/rule"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEngine_Execute(t *testing.T) {
	t.Parallel()

	t.Run("returns the completion value", func(t *testing.T) {
		t.Parallel()

		e := goja.NewEngine()
		got, err := e.Execute(context.Background(), `result.toUpperCase()`, map[string]any{"result": "abc"})

		require.NoError(t, err)
		assert.Equal(t, "ABC", got)
	})

	t.Run("exports arrays and objects", func(t *testing.T) {
		t.Parallel()

		e := goja.NewEngine()
		got, err := e.Execute(context.Background(), `JSON.parse(result).list.map(x => ({name: x.n}))`,
			map[string]any{"result": `{"list":[{"n":"a"},{"n":"b"}]}`})

		require.NoError(t, err)
		assert.Equal(t, []any{map[string]any{"name": "a"}, map[string]any{"name": "b"}}, got)
	})

	t.Run("undefined exports as nil", func(t *testing.T) {
		t.Parallel()

		e := goja.NewEngine()
		got, err := e.Execute(context.Background(), `var x = 1;`, nil)

		require.NoError(t, err)
		assert.Nil(t, got)
	})

	t.Run("exposes globals", func(t *testing.T) {
		t.Parallel()

		e := goja.NewEngine(goja.WithGlobal("prefix", "ch-"))
		got, err := e.Execute(context.Background(), `prefix + baseUrl`, map[string]any{"baseUrl": "x"})

		require.NoError(t, err)
		assert.Equal(t, "ch-x", got)
	})

	t.Run("script errors are ESCRIPT", func(t *testing.T) {
		t.Parallel()

		e := goja.NewEngine()
		_, err := e.Execute(context.Background(), `undefinedFunction()`, nil)

		assert.Equal(t, folio.ESCRIPT, folio.ErrorCode(err))
		assert.Contains(t, folio.ErrorMessage(err), "undefinedFunction")
	})

	t.Run("runaway scripts time out", func(t *testing.T) {
		t.Parallel()

		e := goja.NewEngine(goja.WithTimeout(20 * time.Millisecond))
		_, err := e.Execute(context.Background(), `for (;;) {}`, nil)

		assert.Equal(t, folio.ESCRIPT, folio.ErrorCode(err))
	})

	t.Run("context cancellation interrupts the script", func(t *testing.T) {
		t.Parallel()

		ctx, cancel := context.WithCancel(context.Background())
		go func() {
			time.Sleep(20 * time.Millisecond)
			cancel()
		}()

		e := goja.NewEngine(goja.WithTimeout(0))
		_, err := e.Execute(ctx, `for (;;) {}`, nil)

		assert.Equal(t, folio.ECANCELED, folio.ErrorCode(err))
	})
}

func TestEngine_WithInterpreter(t *testing.T) {
	t.Parallel()

	doc, err := rule.Parse(`<div id="c"><p>one</p><p>two</p></div>`, "https://example.com/c/1")
	require.NoError(t, err)

	in := rule.NewInterpreter(goja.NewEngine())
	got, err := in.String(context.Background(), doc, `id.c@text@js:result.split("\n").join(" | ") + " @ " + baseUrl`)

	require.NoError(t, err)
	assert.Equal(t, "one | two @ https://example.com/c/1", got)
	assert.False(t, strings.Contains(got, "\n"))
}
