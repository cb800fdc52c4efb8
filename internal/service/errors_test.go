package service

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLinkError_Error(t *testing.T) {
	err := NewErrorWithCause(ErrParse, "failed to load link rules", errors.New("bad json")).
		WithContext("rules", "/docs/link_rules.json").
		WithContext("path", "/docs/a.md")

	assert.Equal(t,
		"[Parse] failed to load link rules | context: path=/docs/a.md, rules=/docs/link_rules.json | cause: bad json",
		err.Error())

	assert.Equal(t, "[Link] plain", NewError(ErrLink, "plain").Error())
}

func TestLinkError_Unwrap(t *testing.T) {
	cause := errors.New("disk full")
	err := WrapError(cause, ErrFileWrite, "failed to write linked document")

	assert.ErrorIs(t, err, cause)
	assert.True(t, IsErrorType(err, ErrFileWrite))
	assert.False(t, IsErrorType(err, ErrFileRead))

	wrapped := fmt.Errorf("outer: %w", err)
	assert.True(t, IsErrorType(wrapped, ErrFileWrite))
	assert.False(t, IsErrorType(errors.New("plain"), ErrUnknown))
}

func TestErrorType_String(t *testing.T) {
	assert.Equal(t, "FileNotFound", ErrFileNotFound.String())
	assert.Equal(t, "Store", ErrStore.String())
	assert.Equal(t, "Unknown", ErrorType(99).String())
}

func TestDefaultErrorHandler(t *testing.T) {
	h := NewDefaultErrorHandler()

	assert.True(t, h.Handle(NewError(ErrConfig, "bad cron")))
	assert.True(t, h.Handle(fmt.Errorf("job: %w", NewError(ErrLink, "bad rule"))))
	assert.False(t, h.Handle(errors.New("plain")))

	assert.Contains(t, h.GetAdvice(NewError(ErrParse, "x")), "link rules")
	assert.NotEmpty(t, h.GetAdvice(NewError(ErrUnknown, "x")))
}

func TestSafeExecute(t *testing.T) {
	require.NoError(t, SafeExecute(func() error { return nil }))

	want := errors.New("boom")
	assert.Equal(t, want, SafeExecute(func() error { return want }))

	err := SafeExecute(func() error { panic("nil map") })
	require.Error(t, err)
	assert.True(t, IsErrorType(err, ErrUnknown))
	assert.Contains(t, err.Error(), "runtime error: nil map")
}
