package queue

import (
	"fmt"
	"sync"
)

/*
Pool runs tasks on a fixed number of goroutines. Tasks are forked
through a Group and joined with its Wait method. The goroutine
calling Wait counts as one of the pool's threads: it runs the tasks
of its group that no worker has taken yet, so a pool of n threads
starts n-1 workers and a pool of 1 thread runs everything in place.
*/
type Pool struct {
	queue   memQueue
	lock    sync.Mutex
	cond    *sync.Cond
	closed  bool
	workers int
	wg      sync.WaitGroup
}

// NewPool returns a pool with the given number of threads,
// at least one.
func NewPool(threads int) *Pool {
	if threads < 1 {
		threads = 1
	}
	p := &Pool{workers: threads - 1}
	p.cond = sync.NewCond(&p.lock)
	p.wg.Add(p.workers)
	for i := 0; i < p.workers; i++ {
		go p.work()
	}
	return p
}

// Threads returns the number of goroutines the pool runs tasks on,
// counting the waiting one.
func (p *Pool) Threads() int {
	return p.workers + 1
}

// Pending returns the number of tasks waiting for a worker
func (p *Pool) Pending() int {
	p.lock.Lock()
	defer p.lock.Unlock()
	return p.queue.pending
}

// Close stops the pool workers once the queue is drained and
// waits for them to return.
func (p *Pool) Close() {
	p.lock.Lock()
	p.closed = true
	p.cond.Broadcast()
	p.lock.Unlock()
	p.wg.Wait()
}

// Group returns a new group to fork tasks on the pool
func (p *Pool) Group() *Group {
	return &Group{pool: p}
}

func (p *Pool) push(t *Task) {
	p.lock.Lock()
	p.queue.push(t)
	p.lock.Unlock()
	p.cond.Signal()
}

func (p *Pool) pull() *Task {
	p.lock.Lock()
	defer p.lock.Unlock()
	for p.queue.pending == 0 && !p.closed {
		p.cond.Wait()
	}
	return p.queue.pull()
}

func (p *Pool) work() {
	defer p.wg.Done()
	for {
		t := p.pull()
		if t == nil {
			return
		}
		if t.claim() {
			t.run()
		}
	}
}

/*
Group is a set of tasks forked together. Its Go and Wait methods
are meant to be called from the same goroutine.
*/
type Group struct {
	pool  *Pool
	tasks []*Task
	wg    sync.WaitGroup
}

// Go forks a task running f
func (g *Group) Go(f func()) {
	t := &Task{f: f, wg: &g.wg}
	g.wg.Add(1)
	g.tasks = append(g.tasks, t)
	if g.pool.workers > 0 {
		g.pool.push(t)
	}
}

// Wait runs the group tasks no worker has taken yet in the calling
// goroutine and then waits for the rest to finish.
func (g *Group) Wait() {
	for _, t := range g.tasks {
		if t.claim() {
			t.run()
		}
	}
	g.wg.Wait()
	g.tasks = nil
}

type memQueue struct {
	pendingTasks []*Task
	head         int
	tail         int
	pending      int
}

func (mq *memQueue) String() string {
	return fmt.Sprintf("{Queue pending: %d (%v head:%d tail:%d)", mq.pending, mq.pendingTasks, mq.head, mq.tail)
}

func (mq *memQueue) push(t *Task) {
	if mq.pending == len(mq.pendingTasks) {
		mq.reorder()
		mq.pendingTasks = append(mq.pendingTasks, t)
		mq.tail = (mq.pending + 1) % len(mq.pendingTasks)
	} else {
		mq.pendingTasks[mq.tail] = t
		mq.tail = (mq.tail + 1) % len(mq.pendingTasks)
	}
	mq.pending++
}

func (mq *memQueue) pull() *Task {
	if mq.pending == 0 {
		return nil
	}
	mq.pending--
	t := mq.pendingTasks[mq.head]
	mq.pendingTasks[mq.head] = nil
	mq.head = (mq.head + 1) % len(mq.pendingTasks)
	return t
}

func (mq *memQueue) reorder() {
	if mq.head == 0 {
		return
	}
	mq.pendingTasks = append(mq.pendingTasks[mq.head:], mq.pendingTasks[0:mq.head]...)
	mq.head = 0
	mq.tail = mq.pending % len(mq.pendingTasks)
}
