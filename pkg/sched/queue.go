package sched

import "container/heap"

// taskHeap implements container/heap.Interface for pending tasks, sorted by
// expiration (earliest first) and then by seq.
type taskHeap []*Task

func (h taskHeap) Len() int { return len(h) }

func (h taskHeap) Less(i, j int) bool {
	a, b := h[i], h[j]
	if !a.expiration.Equal(b.expiration) {
		return a.expiration.Before(b.expiration)
	}
	return a.seq < b.seq
}

func (h taskHeap) Swap(i, j int) {
	h[i], h[j] = h[j], h[i]
	h[i].index = i
	h[j].index = j
}

func (h *taskHeap) Push(x any) {
	t := x.(*Task)
	t.index = len(*h)
	*h = append(*h, t)
}

func (h *taskHeap) Pop() any {
	old := *h
	n := len(old)
	t := old[n-1]
	old[n-1] = nil
	t.index = -1
	*h = old[:n-1]
	return t
}

// taskQueue orders pending tasks by deadline. Fresh tasks are FIFO among
// equal expirations; continuations jump ahead of them.
type taskQueue struct {
	h       taskHeap
	nextSeq int64
	contSeq int64
}

func newTaskQueue() *taskQueue {
	q := &taskQueue{}
	heap.Init(&q.h)
	return q
}

// insert queues a freshly scheduled task and reports whether it became the
// new head.
func (q *taskQueue) insert(t *Task) bool {
	q.nextSeq++
	t.seq = q.nextSeq
	return q.push(t)
}

// insertContinuation queues a continuation ahead of every queued task with the
// same expiration and reports whether it became the new head.
func (q *taskQueue) insertContinuation(t *Task) bool {
	q.contSeq--
	t.seq = q.contSeq
	t.continuation = true
	return q.push(t)
}

func (q *taskQueue) push(t *Task) bool {
	heap.Push(&q.h, t)
	return q.h[0] == t
}

// peekFirst returns the earliest task without removing it, or nil.
func (q *taskQueue) peekFirst() *Task {
	if len(q.h) == 0 {
		return nil
	}
	return q.h[0]
}

// popFirst removes and returns the earliest task, or nil when empty. The
// returned task is detached: its index is -1.
func (q *taskQueue) popFirst() *Task {
	if len(q.h) == 0 {
		return nil
	}
	return heap.Pop(&q.h).(*Task)
}

// remove drops t from the queue. It returns false if t was not queued, which
// covers tasks that were already canceled, popped or executed.
func (q *taskQueue) remove(t *Task) bool {
	if t == nil || t.index < 0 || t.index >= len(q.h) || q.h[t.index] != t {
		return false
	}
	heap.Remove(&q.h, t.index)
	return true
}

func (q *taskQueue) len() int {
	return len(q.h)
}

func (q *taskQueue) isEmpty() bool {
	return len(q.h) == 0
}
