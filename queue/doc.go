/*
Package queue provides the bounded worker pool trees are grown on.

Work is forked in groups and joined per group, so that a task may
itself fork and wait for subtasks (scoring the candidates of a node,
then growing its branches) without the pool ever running more than
its configured number of goroutines or deadlocking on nested waits.
Pending tasks are kept in an in-memory FIFO ring buffer.
*/
package queue
