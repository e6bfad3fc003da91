package queue

import (
	"sync"
	"sync/atomic"
)

// Task is a function forked on a pool. It runs exactly once,
// either on a worker or on the goroutine waiting for its group.
type Task struct {
	f       func()
	claimed atomic.Bool
	wg      *sync.WaitGroup
}

func (t *Task) claim() bool {
	return t.claimed.CompareAndSwap(false, true)
}

func (t *Task) run() {
	defer t.wg.Done()
	t.f()
}
