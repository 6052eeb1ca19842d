package apierr

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestKindOf(t *testing.T) {
	err := New(Backend, "create_relation", errors.New("Relation déjà existante"))
	wrapped := fmt.Errorf("failed to create: %w", err)

	k, ok := KindOf(wrapped)
	assert.True(t, ok)
	assert.Equal(t, Backend, k)
	assert.True(t, IsBackend(wrapped))
	assert.False(t, IsTransport(wrapped))
	assert.False(t, IsValidation(wrapped))

	_, ok = KindOf(errors.New("plain"))
	assert.False(t, ok)
	assert.False(t, IsBackend(nil))
}

func TestErrorMessage(t *testing.T) {
	assert.Equal(t, "Relation déjà existante", New(Backend, "op", errors.New("Relation déjà existante")).Error())
	assert.Equal(t, "quantity must be positive", Validationf("op", "quantity must be %s", "positive").Error())
	assert.True(t, IsValidation(Validationf("op", "x")))
	assert.Equal(t, "transport error (502)", (&Error{Kind: Transport, Status: 502}).Error())
	assert.Equal(t, "backend error", (&Error{Kind: Backend}).Error())

	cause := errors.New("dial tcp: refused")
	assert.ErrorIs(t, New(Transport, "op", cause), cause)
}
