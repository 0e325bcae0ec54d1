package bitset_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/taskforge-go/taskforge/internal/bitset"
)

func TestSetGetReset(t *testing.T) {
	b := bitset.New(10)
	assert.False(t, b.Get(3))

	b.Set(3)
	assert.True(t, b.Get(3))

	b.Reset(3)
	assert.False(t, b.Get(3))

	// Reset is idempotent.
	b.Reset(3)
	assert.False(t, b.Get(3))
}

func TestFirstUnset(t *testing.T) {
	b := bitset.New(4)
	assert.Equal(t, 0, b.FirstUnset())

	b.Set(0)
	assert.Equal(t, 1, b.FirstUnset())

	b.Set(1)
	b.Set(2)
	b.Set(3)
	assert.Equal(t, -1, b.FirstUnset())

	b.Reset(1)
	assert.Equal(t, 1, b.FirstUnset())
}

func TestCrossWordBoundary(t *testing.T) {
	b := bitset.New(130)
	for i := 0; i < 65; i++ {
		b.Set(i)
	}
	assert.Equal(t, 65, b.FirstUnset())
	assert.True(t, b.Get(64))
	assert.False(t, b.Get(65))
}

func TestOutOfRangePanics(t *testing.T) {
	b := bitset.New(4)
	require.Panics(t, func() { b.Set(4) })
	require.Panics(t, func() { b.Get(-1) })
	require.Panics(t, func() { b.Reset(100) })
}
