package engine

import (
	"context"
	"sync"
	"sync/atomic"
	"time"
)

// pollInterval is the worker's yield duration between samples of an
// empty or already-running current-task slot.
const pollInterval = time.Millisecond

// worker is one slot in the fixed-size pool. Its loop runs on its own
// goroutine and only ever touches currentTask/busy for the task it
// currently owns.
type worker struct {
	index       int
	pool        *workerPool
	currentTask atomic.Pointer[Task]
	busy        atomic.Bool
	stop        chan struct{}

	// abandoned is set by cancel when this worker is being retired
	// while its callback is still running. The goroutine keeps running
	// to completion (Go has no forcible thread termination) but, on
	// return, discards the result instead of publishing it or running
	// the completion protocol.
	abandoned atomic.Bool
}

func newWorker(index int, pool *workerPool) *worker {
	return &worker{index: index, pool: pool, stop: make(chan struct{})}
}

func (w *worker) run() {
	for {
		select {
		case <-w.stop:
			return
		default:
		}

		t := w.currentTask.Load()
		if t == nil || t.isRunning.Load() {
			time.Sleep(pollInterval)
			continue
		}

		t.isRunning.Store(true)
		w.busy.Store(true)

		result := w.invoke(t)
		if tel := w.pool.engine.telemetry; tel != nil && t.id != schedulerTaskID {
			tel.Metrics.WorkersBusy.Dec()
		}

		if w.abandoned.Load() {
			return
		}

		t.result.Store(&result)
		t.isDone.Store(true)

		w.pool.engine.mu.Lock()
		t.worker = nil
		w.pool.engine.mu.Unlock()

		w.pool.engine.onCallbackReturned(t)

		w.currentTask.Store(nil)
		w.busy.Store(false)
	}
}

// invoke runs t's callback, bracketed by a trace span and a duration
// observation when the engine has telemetry attached.
func (w *worker) invoke(t *Task) any {
	tel := w.pool.engine.telemetry
	if tel == nil {
		return t.callback(t.args)
	}

	_, span := tel.StartCallbackSpan(context.Background(), t.completionEvent)
	start := time.Now()
	result := t.callback(t.args)
	tel.Metrics.CallbackDuration.Observe(time.Since(start).Seconds())
	span.End()
	return result
}

// assign places t in the worker's current-task slot. It takes no lock;
// Init and the scheduler tick call it without holding the engine's
// structural mutex.
func (w *worker) assign(t *Task) {
	t.worker = w
	w.currentTask.Store(t)
}

// idle reports whether the worker can accept a new task.
func (w *worker) idle() bool {
	return !w.busy.Load() && w.currentTask.Load() == nil
}

// workerPool is the fixed array of workers sized to the pool size.
type workerPool struct {
	mu      sync.Mutex
	workers []*worker
	engine  *Engine
}

func newWorkerPool(e *Engine, size int) *workerPool {
	p := &workerPool{engine: e, workers: make([]*worker, size)}
	for i := range p.workers {
		w := newWorker(i, p)
		p.workers[i] = w
		go w.run()
	}
	return p
}

// findIdle returns the first idle worker, or nil.
func (p *workerPool) findIdle() *worker {
	p.mu.Lock()
	defer p.mu.Unlock()
	for _, w := range p.workers {
		if w.idle() {
			return w
		}
	}
	return nil
}

// at returns the worker occupying the given pool slot, used to pin the
// scheduler to the first worker.
func (p *workerPool) at(index int) *worker {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.workers[index]
}

func (p *workerPool) size() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.workers)
}

// rebuild retires w cooperatively and replaces its pool slot with a
// freshly started worker, matching the cancel contract:
// "reconstructs the worker (new thread, cleared slot, busy=false)".
func (p *workerPool) rebuild(w *worker) {
	p.mu.Lock()
	defer p.mu.Unlock()

	w.abandoned.Store(true)
	close(w.stop)

	fresh := newWorker(w.index, p)
	p.workers[w.index] = fresh
	go fresh.run()
}

// shutdown stops every worker's loop. In-flight callbacks are not
// interrupted: Destroy calls this without cancelling running tasks, so
// a callback that is still executing runs to completion.
func (p *workerPool) shutdown() {
	p.mu.Lock()
	defer p.mu.Unlock()
	for _, w := range p.workers {
		select {
		case <-w.stop:
		default:
			close(w.stop)
		}
	}
}
