package errors_test

import (
	stderrors "errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/turtacn/KappaForge/pkg/errors"
)

func TestNew_CarriesCodeAndMessage(t *testing.T) {
	t.Parallel()

	err := errors.New(errors.CodeBondLabelUnpaired, "bond label 3 appears on a single site")
	require.NotNil(t, err)
	assert.Equal(t, errors.CodeBondLabelUnpaired, err.Code)
	assert.Contains(t, err.Error(), "BondLabelUnpaired")
	assert.Contains(t, err.Error(), "bond label 3")
	assert.NotEmpty(t, err.Stack)
}

func TestWrap_NilPassthrough(t *testing.T) {
	t.Parallel()

	assert.Nil(t, errors.Wrap(nil, errors.CodeInternal, "ignored"))
}

func TestWrap_PreservesCodeOnUnknown(t *testing.T) {
	t.Parallel()

	inner := errors.New(errors.CodeZeroReactivity, "no reactivity")
	outer := errors.Wrap(inner, errors.CodeUnknown, "step failed")

	assert.Equal(t, errors.CodeZeroReactivity, outer.Code)
	assert.True(t, stderrors.Is(outer, outer))
	assert.True(t, errors.IsCode(outer, errors.CodeZeroReactivity))
}

func TestIsCode_TraversesChains(t *testing.T) {
	t.Parallel()

	base := errors.New(errors.CodePatternUnderspecified, "wildcard state")
	wrapped := fmt.Errorf("instantiating: %w", base)

	assert.True(t, errors.IsCode(wrapped, errors.CodePatternUnderspecified))
	assert.False(t, errors.IsCode(wrapped, errors.CodeInvariantViolation))
	assert.False(t, errors.IsCode(nil, errors.CodePatternUnderspecified))
}

func TestGetCode(t *testing.T) {
	t.Parallel()

	assert.Equal(t, errors.CodeOK, errors.GetCode(nil))
	assert.Equal(t, errors.CodeUnknown, errors.GetCode(stderrors.New("plain")))
	assert.Equal(t, errors.CodeInvariantViolation,
		errors.GetCode(errors.Invariant("added agent is not detached")))
}

func TestWithDetail_ClonesSafely(t *testing.T) {
	t.Parallel()

	base := errors.InvalidParam("copy count must be positive")
	detailed := base.WithDetail("n=-2")

	assert.Empty(t, base.Detail)
	assert.Equal(t, "n=-2", detailed.Detail)
	assert.Contains(t, detailed.Error(), "n=-2")

	var nilErr *errors.AppError
	assert.Nil(t, nilErr.WithDetail("ignored"))
	assert.Nil(t, nilErr.WithCause(stderrors.New("x")))
}

func TestCodeString(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "ZeroReactivity", errors.CodeZeroReactivity.String())
	assert.Equal(t, "Code(99999)", errors.ErrorCode(99999).String())
}
