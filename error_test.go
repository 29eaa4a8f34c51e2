package folio_test

import (
	"context"
	"fmt"
	"testing"

	"github.com/fwojciec/folio"
	"github.com/stretchr/testify/assert"
)

func TestErrorf(t *testing.T) {
	t.Parallel()

	err := folio.Errorf(folio.ENOTFOUND, "source %q not found", "test")

	assert.Equal(t, folio.ENOTFOUND, folio.ErrorCode(err))
	assert.Equal(t, "source \"test\" not found", folio.ErrorMessage(err))
}

func TestErrorCode_NilError(t *testing.T) {
	t.Parallel()

	assert.Empty(t, folio.ErrorCode(nil))
}

func TestErrorMessage_NilError(t *testing.T) {
	t.Parallel()

	assert.Empty(t, folio.ErrorMessage(nil))
}

func TestErrorCode_WrappedError(t *testing.T) {
	t.Parallel()

	err := fmt.Errorf("search: %w", folio.Errorf(folio.EPARSE, "bookList matched nothing"))

	assert.Equal(t, folio.EPARSE, folio.ErrorCode(err))
	assert.Equal(t, "bookList matched nothing", folio.ErrorMessage(err))
}

func TestErrorCode_ContextErrors(t *testing.T) {
	t.Parallel()

	t.Run("maps canceled context to ECANCELED", func(t *testing.T) {
		t.Parallel()

		assert.Equal(t, folio.ECANCELED, folio.ErrorCode(fmt.Errorf("fetch: %w", context.Canceled)))
	})

	t.Run("maps deadline to ENETWORK", func(t *testing.T) {
		t.Parallel()

		assert.Equal(t, folio.ENETWORK, folio.ErrorCode(context.DeadlineExceeded))
	})

	t.Run("other errors are internal", func(t *testing.T) {
		t.Parallel()

		err := fmt.Errorf("boom")
		assert.Equal(t, folio.EINTERNAL, folio.ErrorCode(err))
		assert.Equal(t, "Internal error.", folio.ErrorMessage(err))
	})
}
