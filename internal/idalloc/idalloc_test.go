package idalloc_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/taskforge-go/taskforge/internal/idalloc"
)

func TestAcquireReleaseRoundTrip(t *testing.T) {
	a := idalloc.New(2)

	id1, ok := a.Acquire()
	assert.True(t, ok)
	assert.Equal(t, 0, id1)

	id2, ok := a.Acquire()
	assert.True(t, ok)
	assert.Equal(t, 1, id2)

	_, ok = a.Acquire()
	assert.False(t, ok, "capacity exhausted")

	a.Release(id1)
	id3, ok := a.Acquire()
	assert.True(t, ok)
	assert.Equal(t, id1, id3, "released id is reacquired first")
}

func TestReleaseIsIdempotent(t *testing.T) {
	a := idalloc.New(1)
	id, _ := a.Acquire()
	a.Release(id)
	a.Release(id)
	_, ok := a.Acquire()
	assert.True(t, ok)
}

func TestReleaseOutOfRangeIsNoop(t *testing.T) {
	a := idalloc.New(1)
	assert.NotPanics(t, func() {
		a.Release(-1)
		a.Release(5)
	})
}
