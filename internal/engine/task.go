package engine

import (
	"sync/atomic"

	"github.com/taskforge-go/taskforge/internal/bus"
)

// ReleasePolicy controls whether the engine frees a Task automatically
// after it completes.
type ReleasePolicy int

const (
	// ReleaseDefault frees the task (and its id) once it has run its
	// last iteration.
	ReleaseDefault ReleasePolicy = iota
	// ReleaseManual retains the task after completion; the engine never
	// frees it, so its id stays reserved. No exported operation releases
	// a retained task.
	ReleaseManual
)

// Callback is the unit of work a Task wraps. args is the opaque value
// captured at MakeTask/RunWithArgs time.
type Callback func(args any) any

// defaultPriority, defaultDelayMs and defaultRepeatLeft mirror the
// make_task defaults
const (
	defaultPriority   = 5
	defaultDelayMs    = 0
	defaultRepeatLeft = 1
)

// Task is a unit of submitted work together with its scheduling
// metadata and result slot. Fields are only mutated by the scheduler
// and the worker that currently owns the task, both of which run under
// the engine's structural mutex or the task's own slot discipline; see
// doc comments on individual fields for which actor writes them.
type Task struct {
	id       int
	callback Callback
	args     any

	priority   int
	delayMs    int64
	intervalMs int64
	repeatLeft int
	infinite   bool
	release    ReleasePolicy

	completionEvent string

	// finalizer runs once at terminal release (see WithFinalizer).
	finalizer func(*Task)

	// worker is set by the scheduler when it assigns the task and
	// cleared by the worker once the callback has returned.
	worker *worker

	// lastCheckMs and timeToFireMs are scheduler-only bookkeeping,
	// touched exclusively during a scheduling tick.
	lastCheckMs  int64
	timeToFireMs int64

	// isRunning and isDone are observable flags, each set exactly once
	// per iteration in that order. Accessed atomically so await and the
	// owning worker agree on acquire/release ordering without a lock.
	isRunning atomic.Bool
	isDone    atomic.Bool

	// result is boxed behind a pointer because atomic.Value requires a
	// consistent concrete type across Store calls, which a generic
	// Callback's return value cannot guarantee across invocations.
	result atomic.Pointer[any] // valid only once isDone is true.

	// freed is set once the task's id has been released back to the
	// allocator (DEFAULT release or cancel). Await treats this as a
	// signal that the task's metadata is gone and returns none.
	freed atomic.Bool

	bus *bus.Bus
}

// WithPriority sets the task's priority (0 = most urgent). Returns the
// same task for fluent chaining.
func (t *Task) WithPriority(p int) *Task {
	if t == nil {
		fatalInvalidArgument("with_priority: nil task")
	}
	if p < 0 {
		fatalInvalidArgument("with_priority: negative priority %d", p)
	}
	t.priority = p
	return t
}

// WithDelay sets the number of milliseconds to wait after submission
// before first execution.
func (t *Task) WithDelay(ms int64) *Task {
	if t == nil {
		fatalInvalidArgument("with_delay: nil task")
	}
	if ms < 0 {
		fatalInvalidArgument("with_delay: negative delay %d", ms)
	}
	t.delayMs = ms
	return t
}

// WithInterval makes the task periodic: after each completion it is
// re-queued with delay = intervalMs, up to count total invocations.
// count == 0 means infinite repetition.
func (t *Task) WithInterval(intervalMs int64, count int) *Task {
	if t == nil {
		fatalInvalidArgument("with_interval: nil task")
	}
	if intervalMs < 0 || count < 0 {
		fatalInvalidArgument("with_interval: negative interval or count")
	}
	t.intervalMs = intervalMs
	t.infinite = count == 0
	t.repeatLeft = count
	return t
}

// AsManual sets the task's release policy to MANUAL: the engine never
// frees it automatically.
func (t *Task) AsManual() *Task {
	if t == nil {
		fatalInvalidArgument("as_manual: nil task")
	}
	t.release = ReleaseManual
	return t
}

// OnComplete subscribes fn, with captured, to the task's completion
// event. fn receives the callback's result and captured, in that order,
// matching the CompletionBus's (args, captured) contract.
func (t *Task) OnComplete(fn func(result any, captured any), captured any) *Task {
	if t == nil {
		fatalInvalidArgument("on_complete: nil task")
	}
	if fn == nil {
		fatalInvalidArgument("on_complete: nil callback")
	}
	t.bus.Subscribe(completionCtx, t.completionEvent, func(args any, cap any) {
		fn(args, cap)
	}, captured)
	return t
}

// WithFinalizer registers fn to run once the task reaches its terminal
// release (DEFAULT release after its last iteration, or cancellation).
// It is distinct from OnComplete: OnComplete fires once per iteration
// with the callback's result, WithFinalizer fires once per task
// lifetime with the task itself, after the engine's own id-release and
// event-teardown bookkeeping has already run.
func (t *Task) WithFinalizer(fn func(*Task)) *Task {
	if t == nil {
		fatalInvalidArgument("with_finalizer: nil task")
	}
	if fn == nil {
		fatalInvalidArgument("with_finalizer: nil finalizer")
	}
	t.finalizer = fn
	return t
}

// IsRunning reports whether a worker has started the task's callback in
// the current iteration. It stays true after the callback returns; only
// a periodic task's re-queue clears it.
func (t *Task) IsRunning() bool {
	return t.isRunning.Load()
}

// IsDone reports whether the callback has returned for the current
// iteration.
func (t *Task) IsDone() bool {
	return t.isDone.Load()
}

// Result returns the callback's most recent return value. Valid only
// once IsDone() is true.
func (t *Task) Result() any {
	p := t.result.Load()
	if p == nil {
		return nil
	}
	return *p
}

// ID returns the task's reserved identifier, stable across periodic
// iterations.
func (t *Task) ID() int {
	return t.id
}
