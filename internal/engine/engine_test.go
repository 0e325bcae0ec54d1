package engine_test

import (
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/taskforge-go/taskforge/internal/engine"
)

func echo(s any) any { return s }

func TestSimpleEcho(t *testing.T) {
	e := engine.NewBuilder().SetPoolSize(2).Init()
	defer e.Destroy()

	task, err := e.Start(echo, "testValue")
	require.NoError(t, err)

	result, ok := e.Await(task)
	assert.True(t, ok)
	assert.Equal(t, "testValue", result)
}

func TestOnCompleteTransform(t *testing.T) {
	e := engine.NewBuilder().SetPoolSize(2).Init()
	defer e.Destroy()

	buf := new(string)
	task, err := e.MakeTask(echo, buf)
	require.NoError(t, err)

	task.OnComplete(func(result any, _ any) {
		*buf = "valueTest"
	}, nil)

	require.NoError(t, e.Run(task))
	_, ok := e.Await(task)
	assert.True(t, ok)
	assert.Equal(t, "valueTest", *buf)
}

func TestExhaustingWorkers(t *testing.T) {
	e := engine.NewBuilder().SetPoolSize(4).SetIDCapacity(16).Init()
	defer e.Destroy()

	var tasks []*taskAwaiter
	for i := 0; i < 16; i++ {
		tk, err := e.Start(echo, i)
		require.NoError(t, err)
		tasks = append(tasks, &taskAwaiter{task: tk, want: i})
	}

	deadline := time.Now().Add(2 * time.Second)
	for _, ta := range tasks {
		for time.Now().Before(deadline) && !ta.task.IsDone() {
			time.Sleep(time.Millisecond)
		}
		assert.True(t, ta.task.IsDone())
	}

	last := tasks[len(tasks)-1]
	result, ok := e.Await(last.task)
	assert.True(t, ok)
	assert.Equal(t, last.want, result)
}

type taskAwaiter struct {
	task *engine.Task
	want any
}

func TestPriorityPreemption(t *testing.T) {
	e := engine.NewBuilder().SetPoolSize(3).Init()
	defer e.Destroy()

	var mu sync.Mutex
	var order []string

	mark := func(name string) engine.Callback {
		return func(args any) any {
			mu.Lock()
			order = append(order, name)
			mu.Unlock()
			return nil
		}
	}

	a, err := e.MakeTask(mark("A"), nil)
	require.NoError(t, err)
	a.WithPriority(5).WithDelay(100)
	require.NoError(t, e.Run(a))

	b, err := e.MakeTask(mark("B"), nil)
	require.NoError(t, err)
	b.WithPriority(0).WithDelay(0)
	require.NoError(t, e.Run(b))

	e.Await(a)
	e.Await(b)

	mu.Lock()
	defer mu.Unlock()
	require.Len(t, order, 2)
	assert.Equal(t, "B", order[0])
	assert.Equal(t, "A", order[1])
}

func TestPeriodicRepetition(t *testing.T) {
	e := engine.NewBuilder().SetPoolSize(2).Init()
	defer e.Destroy()

	var ctr int64

	task, err := e.MakeTask(func(args any) any {
		return atomic.AddInt64(&ctr, 1)
	}, nil)
	require.NoError(t, err)
	task.WithInterval(10, 3)
	firstID := task.ID()

	require.NoError(t, e.Run(task))
	e.Await(task)
	time.Sleep(80 * time.Millisecond)

	assert.Equal(t, int64(3), atomic.LoadInt64(&ctr))
	assert.Equal(t, firstID, task.ID())
}

func TestCancelOnTimeout(t *testing.T) {
	e := engine.NewBuilder().SetPoolSize(2).SetIDCapacity(1).SetAwaitTimeout(50 * time.Millisecond).Init()
	defer e.Destroy()

	task, err := e.Start(func(args any) any {
		time.Sleep(10 * time.Second)
		return nil
	}, nil)
	require.NoError(t, err)

	_, ok := e.Await(task)
	assert.False(t, ok)

	follow, err := e.MakeTask(echo, "next")
	require.NoError(t, err)
	assert.Equal(t, task.ID(), follow.ID())
}

func TestIDExhaustionIsRecoverable(t *testing.T) {
	e := engine.NewBuilder().SetPoolSize(2).SetIDCapacity(2).Init()
	defer e.Destroy()

	t1, err := e.MakeTask(echo, nil)
	require.NoError(t, err)
	_, err = e.MakeTask(echo, nil)
	require.NoError(t, err)

	_, err = e.MakeTask(echo, nil)
	assert.ErrorIs(t, err, engine.ErrUnavailable)

	require.NoError(t, e.Run(t1))
	_, ok := e.Await(t1)
	assert.True(t, ok)

	_, err = e.MakeTask(echo, nil)
	assert.NoError(t, err)
}

func TestManualReleaseRetainsID(t *testing.T) {
	e := engine.NewBuilder().SetPoolSize(2).SetIDCapacity(1).Init()
	defer e.Destroy()

	task, err := e.MakeTask(echo, "kept")
	require.NoError(t, err)
	task.AsManual()

	require.NoError(t, e.Run(task))
	_, ok := e.Await(task)
	assert.True(t, ok)

	_, err = e.MakeTask(echo, nil)
	assert.ErrorIs(t, err, engine.ErrUnavailable, "manual task must not have freed its id")
}
