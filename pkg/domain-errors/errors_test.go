package domainerrors

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestHasCode(t *testing.T) {
	base := errors.New("pq: duplicate key")
	wrapped := Wrap(base, CodeDuplicateAward, "credential already awarded")

	assert.True(t, HasCode(wrapped, CodeDuplicateAward))
	assert.False(t, HasCode(wrapped, CodeNotFound))
	assert.ErrorIs(t, wrapped, base)

	t.Run("finds inner code through fmt wrapping", func(t *testing.T) {
		inner := New(CodeNotFound, "signatory not found")
		outer := fmt.Errorf("attach signatory: %w", inner)
		assert.True(t, Is(outer, CodeNotFound))
	})

	t.Run("finds nested domain codes", func(t *testing.T) {
		nested := Wrap(New(CodeInvalidImage, "too large"), CodeValidation, "bad signatory")
		assert.True(t, HasCode(nested, CodeInvalidImage))
		assert.Equal(t, CodeValidation, CodeOf(nested))
	})

	t.Run("plain errors carry no code", func(t *testing.T) {
		assert.False(t, HasCode(base, CodeInternal))
		assert.Equal(t, CodeInternal, CodeOf(base))
		assert.Equal(t, "internal error", MessageOf(base))
	})
}

func TestWrapNil(t *testing.T) {
	assert.NoError(t, Wrap(nil, CodeInternal, "ignored"))
}
