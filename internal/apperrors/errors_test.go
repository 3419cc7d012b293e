package apperrors

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHTTPStatusPerKind(t *testing.T) {
	assert.Equal(t, http.StatusBadRequest, Validation("bad").HTTPStatus())
	assert.Equal(t, http.StatusUnauthorized, Authentication("who").HTTPStatus())
	assert.Equal(t, http.StatusForbidden, Forbidden("no").HTTPStatus())
	assert.Equal(t, http.StatusNotFound, NotFound("gone").HTTPStatus())
}

func TestConstructorsFormat(t *testing.T) {
	err := NotFound("transfer request %s not found", "tr-1")
	assert.Equal(t, "transfer request tr-1 not found", err.Error())
	assert.Equal(t, KindNotFound, err.Kind)
}

func TestKindHelpers(t *testing.T) {
	assert.True(t, IsValidation(Validation("x")))
	assert.True(t, IsAuthentication(Authentication("x")))
	assert.True(t, IsForbidden(Forbidden("x")))
	assert.True(t, IsNotFound(NotFound("x")))

	assert.False(t, IsValidation(NotFound("x")))
	assert.False(t, IsForbidden(errors.New("plain")))
	assert.False(t, IsNotFound(nil))
}

func TestAsSeesThroughWrapping(t *testing.T) {
	inner := Forbidden("insufficient permission")
	wrapped := fmt.Errorf("handling request: %w", inner)

	appErr, ok := As(wrapped)
	require.True(t, ok)
	assert.Equal(t, KindForbidden, appErr.Kind)
	assert.True(t, IsForbidden(wrapped))
}

func TestWrapKeepsCause(t *testing.T) {
	cause := errors.New("connection refused")
	err := Wrap(KindNotFound, cause, "role lookup failed")

	assert.Equal(t, "role lookup failed: connection refused", err.Error())
	assert.ErrorIs(t, err, cause)
	assert.True(t, IsNotFound(err))
}
