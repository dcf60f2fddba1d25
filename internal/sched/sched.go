// Package sched provides one-shot named timers that run on the owner's loop.
// Callbacks never run on their own goroutine; the loop calls Run on every tick.
package sched

import (
	"sort"
	"time"
)

type task struct {
	name string
	due  time.Time
	fn   func(now time.Time)
}

// Queue holds pending one-shot tasks.
// Not safe for concurrent use; call only from the loop goroutine.
type Queue struct {
	now   time.Time
	tasks []task
}

// New creates a queue whose clock starts at start.
func New(start time.Time) *Queue {
	return &Queue{now: start}
}

// After schedules fn to run delay after the last time passed to Run (or start).
// A pending task with the same name is replaced.
func (q *Queue) After(name string, delay time.Duration, fn func(now time.Time)) {
	q.Cancel(name)
	q.tasks = append(q.tasks, task{name: name, due: q.now.Add(delay), fn: fn})
}

// Cancel removes a pending task. It reports whether one was removed.
func (q *Queue) Cancel(name string) bool {
	for i, t := range q.tasks {
		if t.name == name {
			q.tasks = append(q.tasks[:i], q.tasks[i+1:]...)
			return true
		}
	}
	return false
}

// Run advances the clock to now and runs every task that is due, earliest first.
// Tasks scheduled by a callback are measured from now and run on a later call
// if not yet due. Late tasks run once; there is no catch-up.
func (q *Queue) Run(now time.Time) int {
	q.now = now

	var due []task
	pending := q.tasks[:0]
	for _, t := range q.tasks {
		if !t.due.After(now) {
			due = append(due, t)
		} else {
			pending = append(pending, t)
		}
	}
	q.tasks = pending

	sort.SliceStable(due, func(i, j int) bool { return due[i].due.Before(due[j].due) })
	for _, t := range due {
		t.fn(now)
	}
	return len(due)
}
