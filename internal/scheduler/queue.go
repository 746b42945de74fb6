package scheduler

import "container/heap"

// readyQueue is a priority heap of dependency-satisfied tasks.
// Ordering: CurrentPriority descending, then deadline ascending (tasks with a
// deadline sort before tasks without one at equal priority), then CreatedAt
// ascending, then registration sequence as the final FIFO tie-break.
type readyQueue struct {
	items []*Task
}

func newReadyQueue() *readyQueue {
	return &readyQueue{}
}

func (q *readyQueue) Len() int { return len(q.items) }

func (q *readyQueue) Less(i, j int) bool {
	a, b := q.items[i], q.items[j]

	if a.CurrentPriority != b.CurrentPriority {
		return a.CurrentPriority > b.CurrentPriority
	}

	switch {
	case a.Deadline != nil && b.Deadline != nil:
		if !a.Deadline.Equal(*b.Deadline) {
			return a.Deadline.Before(*b.Deadline)
		}
	case a.Deadline != nil:
		return true
	case b.Deadline != nil:
		return false
	}

	if !a.CreatedAt.Equal(b.CreatedAt) {
		return a.CreatedAt.Before(b.CreatedAt)
	}
	return a.seq < b.seq
}

func (q *readyQueue) Swap(i, j int) {
	q.items[i], q.items[j] = q.items[j], q.items[i]
	q.items[i].heapIndex = i
	q.items[j].heapIndex = j
}

// Push appends a task. Called by heap.Push, not directly.
func (q *readyQueue) Push(x any) {
	task := x.(*Task)
	task.heapIndex = len(q.items)
	q.items = append(q.items, task)
}

// Pop removes the last task. Called by heap.Pop, not directly.
func (q *readyQueue) Pop() any {
	old := q.items
	n := len(old)
	task := old[n-1]
	old[n-1] = nil // avoid memory leak
	task.heapIndex = -1
	q.items = old[:n-1]
	return task
}

// push adds a task to the queue.
func (q *readyQueue) push(task *Task) {
	heap.Push(q, task)
}

// pop removes and returns the highest-priority task, or nil if empty.
func (q *readyQueue) pop() *Task {
	if len(q.items) == 0 {
		return nil
	}
	return heap.Pop(q).(*Task)
}

// remove drops a specific task from the queue if present.
func (q *readyQueue) remove(task *Task) {
	if task.heapIndex >= 0 && task.heapIndex < len(q.items) && q.items[task.heapIndex] == task {
		heap.Remove(q, task.heapIndex)
	}
}

// reheap restores heap order after task priorities changed in place.
func (q *readyQueue) reheap() {
	heap.Init(q)
}
