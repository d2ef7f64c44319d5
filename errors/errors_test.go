package errors

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWrap(t *testing.T) {
	original := New("original")
	wrapped := Wrap(original, "wrapped")

	assert.Contains(t, wrapped.Error(), "wrapped")
	assert.Contains(t, wrapped.Error(), "original")
	assert.True(t, Is(wrapped, original))
}

func TestWithDetail(t *testing.T) {
	err := WithDetail(New("store failure"), "job_id: j-1")

	details := GetAllDetails(err)
	require.Len(t, details, 1)
	assert.Equal(t, "job_id: j-1", details[0])
	assert.Equal(t, "store failure", err.Error())
}

func TestSentinelHelpers(t *testing.T) {
	tests := []struct {
		name  string
		err   error
		check func(error) bool
		want  bool
	}{
		{"not found constructor", NewNotFoundError("job %s", "j-1"), IsNotFoundError, true},
		{"not found wrapped twice", Wrap(NewNotFoundError("site"), "load"), IsNotFoundError, true},
		{"not found nil", nil, IsNotFoundError, false},
		{"invalid request", NewInvalidRequestError("title is required"), IsInvalidRequestError, true},
		{"invalid request mismatch", New("boom"), IsInvalidRequestError, false},
		{"configuration", NewConfigurationError("unknown provider %q", "x"), IsConfigurationError, true},
		{"configuration mismatch", ErrTimeout, IsConfigurationError, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.check(tt.err))
		})
	}
}

func TestNewNotFoundErrorMessage(t *testing.T) {
	err := NewNotFoundError("job %s", "j-1")
	assert.Equal(t, "job j-1: not found", err.Error())
}
