package cron

import "container/heap"

// triggerHeap implements container/heap.Interface for Trigger, sorted by At
// (earliest first).
type triggerHeap []Trigger

func (h triggerHeap) Len() int           { return len(h) }
func (h triggerHeap) Less(i, j int) bool { return h[i].At.Before(h[j].At) }
func (h triggerHeap) Swap(i, j int)      { h[i], h[j] = h[j], h[i] }

func (h *triggerHeap) Push(x any) {
	*h = append(*h, x.(Trigger))
}

func (h *triggerHeap) Pop() any {
	old := *h
	n := len(old)
	x := old[n-1]
	*h = old[:n-1]
	return x
}

func heapPush(h *triggerHeap, t Trigger) {
	heap.Push(h, t)
}

// heapPop panics if the heap is empty.
func heapPop(h *triggerHeap) Trigger {
	return heap.Pop(h).(Trigger)
}

// heapRemoveJob removes every trigger of job and reports whether any was
// found.
func heapRemoveJob(h *triggerHeap, job string) bool {
	found := false
	for i := 0; i < h.Len(); {
		if (*h)[i].Job == job {
			heap.Remove(h, i)
			found = true
			continue
		}
		i++
	}
	return found
}
