package util

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPtr(t *testing.T) {
	p := Ptr(42)
	assert.Equal(t, 42, *p)

	s := Ptr("queued")
	*s = "processing"
	assert.Equal(t, "processing", *s)
}
