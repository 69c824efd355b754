package sched

import (
	"testing"
	"time"
)

var base = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

func newTestTask(id uint64, exp time.Duration) *Task {
	return &Task{id: id, expiration: base.Add(exp), index: -1}
}

func drainIDs(q *taskQueue) []uint64 {
	var ids []uint64
	for t := q.popFirst(); t != nil; t = q.popFirst() {
		ids = append(ids, t.id)
	}
	return ids
}

func equalIDs(a, b []uint64) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func TestTaskQueue_OrdersByExpiration(t *testing.T) {
	q := newTaskQueue()
	q.insert(newTestTask(1, 5*time.Second))
	q.insert(newTestTask(2, 250*time.Millisecond))
	q.insert(newTestTask(3, 10*time.Second))
	q.insert(newTestTask(4, -time.Millisecond))

	got := drainIDs(q)
	want := []uint64{4, 2, 1, 3}
	if !equalIDs(got, want) {
		t.Errorf("expected %v, got %v", want, got)
	}
}

func TestTaskQueue_FreshTasksAreFIFO(t *testing.T) {
	q := newTaskQueue()
	for i := uint64(1); i <= 5; i++ {
		q.insert(newTestTask(i, time.Second))
	}
	got := drainIDs(q)
	want := []uint64{1, 2, 3, 4, 5}
	if !equalIDs(got, want) {
		t.Errorf("expected %v, got %v", want, got)
	}
}

func TestTaskQueue_ContinuationJumpsAhead(t *testing.T) {
	q := newTaskQueue()
	q.insert(newTestTask(1, time.Second))
	q.insert(newTestTask(2, time.Second))
	q.insert(newTestTask(3, 500*time.Millisecond))

	if q.insertContinuation(newTestTask(10, time.Second)) {
		t.Error("continuation should not become head while an earlier task is queued")
	}
	q.insertContinuation(newTestTask(11, time.Second))

	got := drainIDs(q)
	want := []uint64{3, 11, 10, 1, 2}
	if !equalIDs(got, want) {
		t.Errorf("expected %v, got %v", want, got)
	}
}

func TestTaskQueue_InsertReportsNewHead(t *testing.T) {
	q := newTaskQueue()
	if !q.insert(newTestTask(1, time.Second)) {
		t.Error("first insert should become head")
	}
	if q.insert(newTestTask(2, 2*time.Second)) {
		t.Error("later expiration should not become head")
	}
	if q.insert(newTestTask(3, time.Second)) {
		t.Error("equal expiration inserted fresh should not become head")
	}
	if !q.insertContinuation(newTestTask(4, time.Second)) {
		t.Error("continuation at the head's expiration should become head")
	}
	if !q.insert(newTestTask(5, 0)) {
		t.Error("earlier expiration should become head")
	}
}

func TestTaskQueue_RemoveIsIdempotent(t *testing.T) {
	q := newTaskQueue()
	a := newTestTask(1, time.Second)
	b := newTestTask(2, 2*time.Second)
	c := newTestTask(3, 3*time.Second)
	q.insert(a)
	q.insert(b)
	q.insert(c)

	if !q.remove(b) {
		t.Fatal("expected first remove to succeed")
	}
	if q.remove(b) {
		t.Error("expected second remove to be a no-op")
	}
	if b.index != -1 {
		t.Errorf("expected removed task index -1, got %d", b.index)
	}

	popped := q.popFirst()
	if popped != a {
		t.Fatalf("expected task 1, got %d", popped.id)
	}
	if q.remove(a) {
		t.Error("removing a popped task should be a no-op")
	}
	if q.remove(nil) {
		t.Error("removing nil should be a no-op")
	}
	if q.len() != 1 || q.peekFirst() != c {
		t.Errorf("expected only task 3 to remain, got len %d", q.len())
	}
}

func TestTaskQueue_RemoveForeignTask(t *testing.T) {
	q1, q2 := newTaskQueue(), newTaskQueue()
	a := newTestTask(1, time.Second)
	b := newTestTask(2, time.Second)
	q1.insert(a)
	q2.insert(b)

	// Both sit at index 0 of their own queues.
	if q1.remove(b) {
		t.Error("expected remove of a task from another queue to fail")
	}
	if q1.len() != 1 {
		t.Errorf("expected q1 untouched, got len %d", q1.len())
	}
}

func TestTaskQueue_EmptyQueue(t *testing.T) {
	q := newTaskQueue()
	if !q.isEmpty() {
		t.Error("expected new queue to be empty")
	}
	if q.peekFirst() != nil || q.popFirst() != nil {
		t.Error("expected nil from an empty queue")
	}
	q.insert(newTestTask(1, 0))
	q.popFirst()
	if !q.isEmpty() || q.peekFirst() != nil {
		t.Error("expected queue to be empty after popping its only task")
	}
}

func TestTaskQueue_RemoveKeepsOrder(t *testing.T) {
	q := newTaskQueue()
	tasks := make([]*Task, 0, 20)
	for i := 0; i < 20; i++ {
		task := newTestTask(uint64(i), time.Duration((i*7)%20)*time.Millisecond)
		tasks = append(tasks, task)
		q.insert(task)
	}
	for i := 0; i < 20; i += 3 {
		q.remove(tasks[i])
	}

	var last time.Time
	for task := q.popFirst(); task != nil; task = q.popFirst() {
		if task.id%3 == 0 {
			t.Errorf("task %d was removed but still popped", task.id)
		}
		if task.expiration.Before(last) {
			t.Errorf("task %d popped out of order", task.id)
		}
		last = task.expiration
	}
}
