package apperrors

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestKindOf(t *testing.T) {
	err := New(KindBranchProtected, "cannot touch %s", "main")
	assert.Equal(t, KindBranchProtected, KindOf(err))
	assert.True(t, IsKind(err, KindBranchProtected))
	assert.False(t, IsKind(err, KindAuthFailed))

	// kind survives fmt.Errorf wrapping
	wrapped := fmt.Errorf("outer context: %w", err)
	assert.Equal(t, KindBranchProtected, KindOf(wrapped))
}

func TestWrapPreservesCause(t *testing.T) {
	cause := errors.New("socket closed")
	err := Wrap(KindRemoteUnreachable, cause, "push failed")

	assert.ErrorIs(t, err, cause)
	assert.Contains(t, err.Error(), "push failed")
	assert.Contains(t, err.Error(), "socket closed")
}

func TestKindOfPlainError(t *testing.T) {
	assert.Equal(t, KindInternal, KindOf(errors.New("plain")))
	assert.Equal(t, KindInternal, KindOf(nil))
}

func TestHTTPStatus(t *testing.T) {
	cases := map[Kind]int{
		KindInvalidRequest:    http.StatusBadRequest,
		KindAuthFailed:        http.StatusUnauthorized,
		KindBranchProtected:   http.StatusForbidden,
		KindBranchNotFound:    http.StatusNotFound,
		KindArtifactNotFound:  http.StatusNotFound,
		KindAlreadyExists:     http.StatusConflict,
		KindLockContention:    http.StatusConflict,
		KindMergeConflict:     http.StatusConflict,
		KindRemoteUnreachable: http.StatusGatewayTimeout,
		KindTimeout:           http.StatusGatewayTimeout,
		KindDataCorruption:    http.StatusUnprocessableEntity,
		KindInternal:          http.StatusInternalServerError,
	}
	for kind, want := range cases {
		assert.Equal(t, want, HTTPStatus(New(kind, "x")), "kind %s", kind)
	}
}
