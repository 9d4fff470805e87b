package domainerrors

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCodes(t *testing.T) {
	t.Run("wrap keeps cause reachable", func(t *testing.T) {
		cause := errors.New("socket closed")
		err := Wrap(cause, CodeLedgerUnavailable, "ledger unreachable")

		assert.True(t, HasCode(err, CodeLedgerUnavailable))
		assert.ErrorIs(t, err, cause)
		assert.Equal(t, "ledger unreachable", MessageOf(err))
	})

	t.Run("wrap of nil is nil", func(t *testing.T) {
		assert.NoError(t, Wrap(nil, CodeInternal, "unused"))
	})

	t.Run("outermost code wins", func(t *testing.T) {
		inner := New(CodeNotFound, "case not found")
		outer := Wrap(inner, CodeForbidden, "denied")
		assert.Equal(t, CodeForbidden, CodeOf(outer))
	})

	t.Run("plain errors are internal", func(t *testing.T) {
		err := fmt.Errorf("boom")
		assert.Equal(t, CodeInternal, CodeOf(err))
		assert.False(t, HasCode(err, CodeNotFound))
		assert.Equal(t, "internal error", MessageOf(err))
	})
}
