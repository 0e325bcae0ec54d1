package engine

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestAgeSnapsToZeroWhenImminent(t *testing.T) {
	e := &Engine{}
	task := &Task{priority: 3, lastCheckMs: 0, timeToFireMs: 4}

	e.age(task, 10) // delta 10, timeToFireMs -> -6, <= threshold

	assert.Equal(t, 0, task.priority)
	assert.Equal(t, int64(10), task.lastCheckMs)
}

func TestAgeRelaxesWhenFarOut(t *testing.T) {
	e := &Engine{}
	task := &Task{priority: 3, lastCheckMs: 0, timeToFireMs: 6000}

	e.age(task, 0)

	assert.Equal(t, 4, task.priority)
}

func TestAgeGentlyPromotesInMiddleWindow(t *testing.T) {
	e := &Engine{}
	task := &Task{priority: 3, lastCheckMs: 0, timeToFireMs: 1000}

	e.age(task, 0)

	assert.Equal(t, 2, task.priority)
}

func TestAgeNeverPromotesBelowZero(t *testing.T) {
	e := &Engine{}
	task := &Task{priority: 0, lastCheckMs: 0, timeToFireMs: 1000}

	e.age(task, 0)

	assert.Equal(t, 0, task.priority)
}
