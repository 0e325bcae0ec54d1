// Package idalloc allocates dense, bounded task identifiers over a
// bit-vector (see internal/bitset). It implements C1 of the engine
// design: acquire() returns the smallest free id, release() frees it.
package idalloc

import "github.com/taskforge-go/taskforge/internal/bitset"

// Allocator hands out integer identifiers in [0, capacity).
//
// Not safe for concurrent use on its own; the engine serializes access
// under its structural mutex.
type Allocator struct {
	bits *bitset.BitSet
}

// New creates an Allocator with the given fixed capacity.
func New(capacity int) *Allocator {
	return &Allocator{bits: bitset.New(capacity)}
}

// Capacity returns the maximum number of simultaneously live ids.
func (a *Allocator) Capacity() int {
	return a.bits.Capacity()
}

// Acquire returns the smallest currently unset id and marks it used, or
// reports ok=false if every id in [0, Capacity()) is in use.
func (a *Allocator) Acquire() (id int, ok bool) {
	id = a.bits.FirstUnset()
	if id < 0 {
		return 0, false
	}
	a.bits.Set(id)
	return id, true
}

// Release frees id so a subsequent Acquire may return it again.
// Idempotent: releasing an already-free id is a no-op.
func (a *Allocator) Release(id int) {
	if id < 0 || id >= a.bits.Capacity() {
		return
	}
	a.bits.Reset(id)
}
