package apierrors

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestHTTPStatus(t *testing.T) {
	assert.Equal(t, 503, Transient.HTTPStatus())
	assert.Equal(t, 400, Validation.HTTPStatus())
	assert.Equal(t, 500, Inconsistency.HTTPStatus())
	assert.Equal(t, 402, Quota.HTTPStatus())
	assert.Equal(t, 500, Fatal.HTTPStatus())
	assert.Equal(t, 500, Kind("unknown").HTTPStatus())
}

func TestWrapPreservesInnerKind(t *testing.T) {
	inner := New(Quota, "dataset ceiling reached")
	outer := Wrap(Transient, "enqueue failed", inner)

	assert.Equal(t, Quota, outer.Kind)
	assert.Equal(t, Quota, KindOf(outer))
	assert.True(t, Is(outer, Quota))
	assert.False(t, Is(outer, Transient))
}

func TestWrapClassifiesPlainError(t *testing.T) {
	cause := errors.New("connection refused")
	wrapped := Wrap(Transient, "dial redis", cause)

	assert.Equal(t, Transient, wrapped.Kind)
	assert.ErrorIs(t, wrapped, cause)
}

func TestKindOfDefaultsToFatalForUnclassifiedError(t *testing.T) {
	assert.Equal(t, Fatal, KindOf(errors.New("boom")))
}

func TestErrorMessageIncludesCause(t *testing.T) {
	err := Wrap(Transient, "dial redis", errors.New("refused"))
	assert.Contains(t, err.Error(), "dial redis")
	assert.Contains(t, err.Error(), "refused")
}
