// Package engine implements the task execution engine: a fixed-size
// worker pool driven by a priority/deadline-aware scheduler, bounded
// task identifiers, cooperative cancellation and completion callbacks.
//
// An Engine value is produced by a Builder; all operations route
// through it, and the Builder enforces that tunables are fixed before
// the engine starts rather than via a runtime-checked global.
package engine

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/taskforge-go/taskforge/internal/bus"
	"github.com/taskforge-go/taskforge/internal/diagnostics"
	"github.com/taskforge-go/taskforge/internal/idalloc"
	"github.com/taskforge-go/taskforge/internal/platform/logger"
)

// Defaults for the engine's tunables.
const (
	defaultPoolSize     = 8
	defaultIDCapacity   = 100
	defaultAwaitTimeout = 15 * time.Second
)

// schedulerTaskID marks the pinned scheduler task, which is never drawn
// from the id allocator (it is not addressable by MakeTask/Cancel).
const schedulerTaskID = -1

// Engine is the process-wide coordinator: WorkerPool, TaskQueue,
// IdAllocator, a mutex for structural changes, and the tunables fixed
// at construction.
type Engine struct {
	mu    sync.Mutex
	pool  *workerPool
	queue *taskQueue
	ids   *idalloc.Allocator
	bus   *bus.Bus

	telemetry *diagnostics.Telemetry
	log       logger.Logger

	poolSize     int
	idCapacity   int
	awaitTimeout time.Duration

	startedAt time.Time
	live      atomic.Bool
}

// Builder fixes an Engine's tunables before Init constructs it. Every
// setter fatally aborts if called after Init, matching the "set_* after
// init is fatal" rule
type Builder struct {
	mu sync.Mutex

	poolSize     int
	idCapacity   int
	awaitTimeout time.Duration

	bus       *bus.Bus
	telemetry *diagnostics.Telemetry
	log       logger.Logger

	done bool
}

// NewBuilder returns a Builder seeded with the documented defaults.
func NewBuilder() *Builder {
	return &Builder{
		poolSize:     defaultPoolSize,
		idCapacity:   defaultIDCapacity,
		awaitTimeout: defaultAwaitTimeout,
		bus:          bus.New(),
		log:          logger.Noop(),
	}
}

func (b *Builder) guardMutable(op string) {
	if b.done {
		fatalInvalidArgument("%s: engine already initialized", op)
	}
}

// SetPoolSize sets the worker pool size (must be positive).
func (b *Builder) SetPoolSize(n int) *Builder {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.guardMutable("set_pool_size")
	if n <= 0 {
		fatalInvalidArgument("set_pool_size: non-positive pool size %d", n)
	}
	b.poolSize = n
	return b
}

// SetIDCapacity sets the maximum number of simultaneously live task ids.
func (b *Builder) SetIDCapacity(n int) *Builder {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.guardMutable("set_id_capacity")
	if n <= 0 {
		fatalInvalidArgument("set_id_capacity: non-positive capacity %d", n)
	}
	b.idCapacity = n
	return b
}

// SetAwaitTimeout sets the default timeout Await uses when the caller
// does not supply one.
func (b *Builder) SetAwaitTimeout(d time.Duration) *Builder {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.guardMutable("set_await_timeout")
	if d <= 0 {
		fatalInvalidArgument("set_await_timeout: non-positive timeout %s", d)
	}
	b.awaitTimeout = d
	return b
}

// WithBus overrides the CompletionBus collaborator (default: a fresh
// bus.New()).
func (b *Builder) WithBus(cb *bus.Bus) *Builder {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.guardMutable("with_bus")
	b.bus = cb
	return b
}

// WithTelemetry attaches a diagnostics.Telemetry instance so the engine
// publishes Prometheus metrics and trace spans as it runs.
func (b *Builder) WithTelemetry(t *diagnostics.Telemetry) *Builder {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.guardMutable("with_telemetry")
	b.telemetry = t
	return b
}

// WithLogger overrides the structured logger (default: a no-op logger).
func (b *Builder) WithLogger(l logger.Logger) *Builder {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.guardMutable("with_logger")
	b.log = l
	return b
}

// Init constructs and starts the Engine: its worker pool, and the
// Scheduler pinned to the pool's first worker. Calling Init twice on
// the same Builder is fatal.
func (b *Builder) Init() *Engine {
	b.mu.Lock()
	b.guardMutable("init")
	b.done = true
	poolSize, idCapacity, awaitTimeout := b.poolSize, b.idCapacity, b.awaitTimeout
	busInst, tel, log := b.bus, b.telemetry, b.log
	b.mu.Unlock()

	e := &Engine{
		ids:          idalloc.New(idCapacity),
		queue:        newTaskQueue(),
		bus:          busInst,
		telemetry:    tel,
		log:          log,
		poolSize:     poolSize,
		idCapacity:   idCapacity,
		awaitTimeout: awaitTimeout,
		startedAt:    time.Now(),
	}
	e.pool = newWorkerPool(e, poolSize)
	e.live.Store(true)

	sched := &Task{
		id:      schedulerTaskID,
		args:    nil,
		release: ReleaseManual,
		bus:     e.bus,
	}
	sched.callback = e.schedulerCallback
	e.pool.at(0).assign(sched)

	e.log.Info("engine initialized", "pool_size", poolSize, "id_capacity", idCapacity)
	return e
}

func (e *Engine) isLive() bool {
	return e.live.Load()
}

// Destroy stops the scheduler and every worker loop. Callbacks already
// running are not interrupted. Calling Destroy on an already-destroyed
// engine is fatal.
func (e *Engine) Destroy() {
	e.mu.Lock()
	if !e.isLive() {
		e.mu.Unlock()
		fatalNotInitialized("destroy: engine not initialized")
	}
	e.live.Store(false)
	e.mu.Unlock()

	// Give the scheduler task, pinned to worker 0, one tick to observe
	// the live flag and return before its worker is torn down.
	time.Sleep(pollInterval * 2)
	e.pool.shutdown()

	if e.telemetry != nil {
		_ = e.telemetry.Close()
	}
	e.log.Info("engine destroyed")
}

// MakeTask allocates an id and default metadata for a new task. Returns
// ErrUnavailable, without changing engine state, if the id allocator is
// exhausted.
func (e *Engine) MakeTask(callback Callback, args any) (*Task, error) {
	if callback == nil {
		fatalInvalidArgument("make_task: nil callback")
	}
	e.mu.Lock()
	if !e.isLive() {
		e.mu.Unlock()
		fatalNotInitialized("make_task: engine not initialized")
	}
	id, ok := e.ids.Acquire()
	e.mu.Unlock()

	if !ok {
		if e.telemetry != nil {
			e.telemetry.Metrics.TasksUnavailable.Inc()
		}
		return nil, ErrUnavailable
	}

	return &Task{
		id:              id,
		callback:        callback,
		args:            args,
		priority:        defaultPriority,
		delayMs:         defaultDelayMs,
		repeatLeft:      defaultRepeatLeft,
		release:         ReleaseDefault,
		completionEvent: completionEventName(id),
		bus:             e.bus,
	}, nil
}

// Run enqueues t for execution after its configured delay: it sets
// last_check_ms to now and time_to_fire_ms to the configured delay,
// then enqueues it for the scheduler to pick up.
func (e *Engine) Run(t *Task) error {
	if t == nil {
		fatalInvalidArgument("run: nil task")
	}
	e.mu.Lock()
	if !e.isLive() {
		e.mu.Unlock()
		fatalNotInitialized("run: engine not initialized")
	}
	now := e.nowMs()
	t.lastCheckMs = now
	t.timeToFireMs = t.delayMs
	e.queue.enqueue(t)
	depth := e.queue.size()
	e.mu.Unlock()

	if e.telemetry != nil {
		e.telemetry.Metrics.TasksSubmitted.Inc()
		e.telemetry.Metrics.QueueDepth.Set(float64(depth))
	}
	return nil
}

// RunWithArgs sets t's args before enqueueing it.
func (e *Engine) RunWithArgs(t *Task, args any) error {
	if t == nil {
		fatalInvalidArgument("run_with_args: nil task")
	}
	t.args = args
	return e.Run(t)
}

// Start is MakeTask followed by Run.
func (e *Engine) Start(callback Callback, args any) (*Task, error) {
	t, err := e.MakeTask(callback, args)
	if err != nil {
		return nil, err
	}
	if err := e.Run(t); err != nil {
		return nil, err
	}
	return t, nil
}

// Await blocks until t completes or timeout elapses (defaulting to the
// engine's await_timeout_ms). On timeout while t is still running, it
// cancels t and returns (nil, false); if t was freed before its callback
// returned (cancelled), it also returns (nil, false). A task that
// completed and was then released still yields its result.
func (e *Engine) Await(t *Task, timeout ...time.Duration) (any, bool) {
	if t == nil {
		fatalInvalidArgument("await: nil task")
	}
	to := e.awaitTimeout
	if len(timeout) > 0 {
		to = timeout[0]
	}
	deadline := time.Now().Add(to)

	for time.Now().Before(deadline) {
		if t.isDone.Load() {
			return t.Result(), true
		}
		if t.freed.Load() {
			return nil, false
		}
		time.Sleep(pollInterval)
	}

	if t.isRunning.Load() {
		e.Cancel(t)
	}
	return nil, false
}

// Cancel terminates t's worker cooperatively and releases t, iff t is
// currently running. Returns whether cancellation took effect.
func (e *Engine) Cancel(t *Task) bool {
	if t == nil {
		fatalInvalidArgument("cancel: nil task")
	}
	e.mu.Lock()
	if !e.isLive() {
		e.mu.Unlock()
		fatalNotInitialized("cancel: engine not initialized")
	}
	w := t.worker
	running := t.isRunning.Load()
	e.mu.Unlock()

	if w == nil || !running {
		return false
	}

	e.pool.rebuild(w)
	if e.telemetry != nil {
		e.telemetry.Metrics.TasksCancelled.Inc()
	}
	e.destroyTask(t)
	return true
}

// destroyTask releases t's id and completion event, marking it freed so
// any in-flight Await returns none.
func (e *Engine) destroyTask(t *Task) {
	e.mu.Lock()
	e.ids.Release(t.id)
	e.mu.Unlock()
	e.bus.UnsubscribeEvent(completionCtx, t.completionEvent)
	t.freed.Store(true)
	if t.finalizer != nil {
		t.finalizer(t)
	}
}

// onCallbackReturned runs the completion protocol and
// then either re-queues t (periodic), destroys it (DEFAULT release), or
// leaves it retained (MANUAL release). Called by the worker that just
// ran t's callback, after it has published result and is_done.
func (e *Engine) onCallbackReturned(t *Task) {
	if e.telemetry != nil {
		e.telemetry.Metrics.TasksCompleted.Inc()
	}

	if n, ok := e.bus.Subscribers(completionCtx, t.completionEvent); ok && n > 0 {
		e.bus.Notify(completionCtx, t.completionEvent, t.Result())
		e.bus.UnsubscribeEvent(completionCtx, t.completionEvent)
	}

	if t.infinite || t.repeatLeft > 1 {
		t.isRunning.Store(false)
		t.isDone.Store(false)
		if !t.infinite {
			t.repeatLeft--
		}
		t.delayMs = t.intervalMs

		e.mu.Lock()
		now := e.nowMs()
		t.lastCheckMs = now
		t.timeToFireMs = t.delayMs
		e.queue.enqueue(t)
		e.mu.Unlock()
		return
	}

	if t.release == ReleaseDefault {
		e.destroyTask(t)
	}
}

// Stats is a point-in-time snapshot of engine and process state.
type Stats struct {
	diagnostics.ProcessStats
	QueueDepth int
	PoolSize   int
}

// Stats samples the host process (via internal/diagnostics) and the
// engine's own queue depth and pool size.
func (e *Engine) Stats(ctx context.Context) (Stats, error) {
	ps, err := diagnostics.CollectProcessStats(ctx)
	if err != nil {
		return Stats{}, err
	}
	e.mu.Lock()
	depth := e.queue.size()
	e.mu.Unlock()
	return Stats{ProcessStats: ps, QueueDepth: depth, PoolSize: e.pool.size()}, nil
}
