package api

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFrameError(t *testing.T) {
	cause := errors.New("db down")
	err := newFrameError(KindDependency, MsgSendFailed, cause)

	assert.Equal(t, "dependency: Failed to send message: db down", err.Error())
	assert.ErrorIs(t, err, cause)

	wrapped := fmt.Errorf("handler: %w", err)
	assert.Same(t, err, asFrameError(wrapped))
}

func TestAsFrameError_PlainErrorBecomesDependency(t *testing.T) {
	fe := asFrameError(errors.New("boom"))
	assert.Equal(t, KindDependency, fe.Kind)
	assert.Equal(t, MsgInternalError, fe.Message)
}

func TestErrorKind_String(t *testing.T) {
	assert.Equal(t, "protocol", KindProtocol.String())
	assert.Equal(t, "not_found", KindNotFound.String())
	assert.Equal(t, "unknown", ErrorKind(42).String())
}
