package bus_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/taskforge-go/taskforge/internal/bus"
)

func TestSubscribeNotifyOrder(t *testing.T) {
	b := bus.New()
	var order []int

	b.Subscribe("ctx", "done", func(args any, captured any) {
		order = append(order, captured.(int))
	}, 1)
	b.Subscribe("ctx", "done", func(args any, captured any) {
		order = append(order, captured.(int))
	}, 2)
	b.Subscribe("ctx", "done", func(args any, captured any) {
		order = append(order, captured.(int))
	}, 3)

	b.Notify("ctx", "done", nil)
	assert.Equal(t, []int{1, 2, 3}, order)
}

func TestNotifyPassesArgsAndCaptured(t *testing.T) {
	b := bus.New()
	var gotArgs, gotCaptured any

	b.Subscribe("ctx", "evt", func(args any, captured any) {
		gotArgs = args
		gotCaptured = captured
	}, "captured-value")

	b.Notify("ctx", "evt", "args-value")
	assert.Equal(t, "args-value", gotArgs)
	assert.Equal(t, "captured-value", gotCaptured)
}

func TestSubscribersReportsCountAndPresence(t *testing.T) {
	b := bus.New()

	_, ok := b.Subscribers("ctx", "evt")
	assert.False(t, ok)

	b.Subscribe("ctx", "evt", func(any, any) {}, nil)
	b.Subscribe("ctx", "evt", func(any, any) {}, nil)

	n, ok := b.Subscribers("ctx", "evt")
	assert.True(t, ok)
	assert.Equal(t, 2, n)
}

func TestUnsubscribeEventRemovesAll(t *testing.T) {
	b := bus.New()
	calls := 0
	b.Subscribe("ctx", "evt", func(any, any) { calls++ }, nil)
	b.Subscribe("ctx", "evt", func(any, any) { calls++ }, nil)

	b.UnsubscribeEvent("ctx", "evt")
	b.Notify("ctx", "evt", nil)

	assert.Equal(t, 0, calls)
	_, ok := b.Subscribers("ctx", "evt")
	assert.False(t, ok)
}

func TestDistinctKeysAreIndependent(t *testing.T) {
	b := bus.New()
	var aCalled, bCalled bool
	b.Subscribe("ctx1", "evt", func(any, any) { aCalled = true }, nil)
	b.Subscribe("ctx2", "evt", func(any, any) { bCalled = true }, nil)

	b.Notify("ctx1", "evt", nil)
	assert.True(t, aCalled)
	assert.False(t, bCalled)
}
