package container_test

import (
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/taskforge-go/taskforge/internal/container"
)

func TestAppendAndHeadValue(t *testing.T) {
	d := container.New[int]()
	_, ok := d.HeadValue()
	assert.False(t, ok)

	d.Append("a", 1)
	d.Append("b", 2)

	head, ok := d.HeadValue()
	assert.True(t, ok)
	assert.Equal(t, 1, head)
	assert.Equal(t, 2, d.Size())
}

func TestRemoveByIndexPreservesOrder(t *testing.T) {
	d := container.New[string]()
	d.Append("0", "zero")
	d.Append("1", "one")
	d.Append("2", "two")

	v, ok := d.RemoveByIndex(1)
	assert.True(t, ok)
	assert.Equal(t, "one", v)
	assert.Equal(t, 2, d.Size())

	head, _ := d.HeadValue()
	assert.Equal(t, "zero", head)

	got, ok := d.Get("2")
	assert.True(t, ok)
	assert.Equal(t, "two", got)
}

func TestFilterPreservesOrder(t *testing.T) {
	d := container.New[int]()
	for i := 0; i < 5; i++ {
		d.Append(strconv.Itoa(i), i)
	}

	evens := d.Filter(func(_ string, v int, _ int) bool { return v%2 == 0 })
	var collected []int
	evens.ForEach(func(_ string, v int) { collected = append(collected, v) })
	assert.Equal(t, []int{0, 2, 4}, collected)
}

func TestSortIsStable(t *testing.T) {
	type item struct {
		priority int
		seq      int
	}
	d := container.New[item]()
	d.Append("a", item{priority: 5, seq: 0})
	d.Append("b", item{priority: 0, seq: 1})
	d.Append("c", item{priority: 5, seq: 2})
	d.Append("d", item{priority: 0, seq: 3})

	sorted := d.Sort(func(a, b item) bool { return a.priority < b.priority })

	var seqs []int
	sorted.ForEach(func(_ string, v item) { seqs = append(seqs, v.seq) })
	// priority 0 items (seq 1, 3) first in original order, then priority 5 (seq 0, 2).
	assert.Equal(t, []int{1, 3, 0, 2}, seqs)
}

func TestForEachWithArgs(t *testing.T) {
	d := container.New[int]()
	d.Append("a", 1)
	d.Append("b", 2)

	sum := 0
	d.ForEachWithArgs(func(_ string, v int, args any) {
		acc := args.(*int)
		*acc += v
	}, &sum)
	assert.Equal(t, 3, sum)
}
