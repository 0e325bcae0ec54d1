// Package container implements the ordered key->value collection that
// the scheduler and task queue are built on: insertion-ordered,
// index-addressable, filterable and stably sortable.
//
// The original collaborator this package replaces was a hand-rolled
// doubly-linked list of records. Go's slice append/remove already gives
// O(1) amortized tail insertion and straightforward index access, so the
// record list here is a plain slice rather than a chain of pointers; an
// auxiliary map keeps key lookup off the hot scheduling path.
package container

// record is one key/value pair, kept in insertion order.
type record[V any] struct {
	key   string
	value V
}

// Dictionary is an insertion-ordered collection of key/value pairs.
//
// Not safe for concurrent use; callers serialize access (the engine
// does so with its own mutex where required).
type Dictionary[V any] struct {
	records []record[V]
	index   map[string]int
}

// New creates an empty Dictionary.
func New[V any]() *Dictionary[V] {
	return &Dictionary[V]{
		index: make(map[string]int),
	}
}

// Append inserts key/value at the tail. O(1) amortized.
func (d *Dictionary[V]) Append(key string, value V) {
	d.index[key] = len(d.records)
	d.records = append(d.records, record[V]{key: key, value: value})
}

// Size returns the number of elements.
func (d *Dictionary[V]) Size() int {
	return len(d.records)
}

// HeadValue returns the value of the first element and true, or the
// zero value and false if the dictionary is empty.
func (d *Dictionary[V]) HeadValue() (V, bool) {
	var zero V
	if len(d.records) == 0 {
		return zero, false
	}
	return d.records[0].value, true
}

// RemoveByIndex removes and returns the i-th element's value.
func (d *Dictionary[V]) RemoveByIndex(i int) (V, bool) {
	var zero V
	if i < 0 || i >= len(d.records) {
		return zero, false
	}
	v := d.records[i].value
	delete(d.index, d.records[i].key)
	d.records = append(d.records[:i], d.records[i+1:]...)
	d.reindex()
	return v, true
}

// Get returns the value stored under key.
func (d *Dictionary[V]) Get(key string) (V, bool) {
	var zero V
	i, ok := d.index[key]
	if !ok {
		return zero, false
	}
	return d.records[i].value, true
}

// reindex rebuilds the key->position map after a structural mutation.
func (d *Dictionary[V]) reindex() {
	for i, r := range d.records {
		d.index[r.key] = i
	}
}

// Filter returns a new Dictionary containing the elements for which
// pred(key, value, index) is true, in original order.
func (d *Dictionary[V]) Filter(pred func(key string, value V, index int) bool) *Dictionary[V] {
	out := New[V]()
	for i, r := range d.records {
		if pred(r.key, r.value, i) {
			out.Append(r.key, r.value)
		}
	}
	return out
}

// Sort returns a new Dictionary whose elements are a stable permutation
// of this dictionary's elements ordered by less (less(a, b) reports
// whether a should sort before b). Ties preserve original insertion
// order.
func (d *Dictionary[V]) Sort(less func(a, b V) bool) *Dictionary[V] {
	ordered := make([]record[V], len(d.records))
	copy(ordered, d.records)

	// Stable insertion sort: O(n^2), acceptable for the typical small
	// pending-task counts this is used for (see spec's stable_sort note).
	for i := 1; i < len(ordered); i++ {
		j := i
		for j > 0 && less(ordered[j].value, ordered[j-1].value) {
			ordered[j], ordered[j-1] = ordered[j-1], ordered[j]
			j--
		}
	}

	out := New[V]()
	for _, r := range ordered {
		out.Append(r.key, r.value)
	}
	return out
}

// ForEach visits every value in current order. fn may mutate the
// pointed-to value but must not structurally mutate the dictionary.
func (d *Dictionary[V]) ForEach(fn func(key string, value V)) {
	for _, r := range d.records {
		fn(r.key, r.value)
	}
}

// ForEachWithArgs is ForEach with an extra captured argument, matching
// the collaborator contract's for_each_with_args.
func (d *Dictionary[V]) ForEachWithArgs(fn func(key string, value V, args any), args any) {
	for _, r := range d.records {
		fn(r.key, r.value, args)
	}
}
