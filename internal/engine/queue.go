package engine

import (
	"strconv"

	"github.com/taskforge-go/taskforge/internal/container"
)

// taskQueue is the insertion-ordered queue of pending tasks, backed by
// internal/container.Dictionary keyed by decimal task id.
type taskQueue struct {
	d *container.Dictionary[*Task]
}

func newTaskQueue() *taskQueue {
	return &taskQueue{d: container.New[*Task]()}
}

// enqueue appends t at the tail. O(1).
func (q *taskQueue) enqueue(t *Task) {
	q.d.Append(strconv.Itoa(t.id), t)
}

// popHead removes and returns the head task, or nil if empty.
func (q *taskQueue) popHead() *Task {
	if q.d.Size() == 0 {
		return nil
	}
	v, _ := q.d.RemoveByIndex(0)
	return v
}

// peekHead returns the head task without removing it, or nil if empty.
func (q *taskQueue) peekHead() *Task {
	v, ok := q.d.HeadValue()
	if !ok {
		return nil
	}
	return v
}

func (q *taskQueue) size() int {
	return q.d.Size()
}

// stableSortByPriority returns a new queue whose elements are a
// permutation of this queue sorted by ascending priority value
// (less(a,b) = a.priority < b.priority), so lower priority value sorts
// earlier; ties keep original insertion order.
func (q *taskQueue) stableSortByPriority() *taskQueue {
	sorted := q.d.Sort(func(a, b *Task) bool { return a.priority < b.priority })
	return &taskQueue{d: sorted}
}

// forEach visits every pending task in current order, in place. fn may
// mutate the task's scheduling fields but must not enqueue/dequeue.
func (q *taskQueue) forEach(fn func(*Task)) {
	q.d.ForEach(func(_ string, t *Task) { fn(t) })
}

// removeByID removes the task with the given id wherever it sits in the
// queue. Returns true if found. Cancel does not use it: Cancel acts only
// on running tasks.
func (q *taskQueue) removeByID(id int) bool {
	before := q.d.Size()
	filtered := q.d.Filter(func(_ string, t *Task, _ int) bool { return t.id != id })
	if filtered.Size() == before {
		return false
	}
	q.d = filtered
	return true
}
