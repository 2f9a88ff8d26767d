package domainerrors

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWrapPreservesCause(t *testing.T) {
	cause := errors.New("connection reset")
	err := Wrap(cause, CodeInternal, "failed to load snapshot")

	require.Error(t, err)
	assert.True(t, HasCode(err, CodeInternal))
	assert.ErrorIs(t, err, cause)
	assert.Equal(t, "failed to load snapshot: connection reset", err.Error())
}

func TestWrapNil(t *testing.T) {
	assert.NoError(t, Wrap(nil, CodeInternal, "unused"))
}

func TestHasCodeThroughFmtWrap(t *testing.T) {
	err := fmt.Errorf("verify: %w", New(CodeAttemptsExceeded, "too many attempts"))
	assert.True(t, HasCode(err, CodeAttemptsExceeded))
	assert.False(t, HasCode(err, CodeInvalidCode))
	assert.Equal(t, CodeAttemptsExceeded, CodeOf(err))
}

func TestCodeOfUncoded(t *testing.T) {
	assert.Equal(t, CodeInternal, CodeOf(errors.New("boom")))
}
