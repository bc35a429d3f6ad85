package service

import (
	"container/heap"
	"sync"

	"github.com/kestrel-run/orchestra/internal/domain/task"
)

// queueItem is one entry in the priority heap: higher Priority first,
// ties broken by earlier sequence number (FIFO within a priority band).
type queueItem struct {
	task *task.Task
	seq  int64
}

type priorityHeap []*queueItem

func (h priorityHeap) Len() int { return len(h) }
func (h priorityHeap) Less(i, j int) bool {
	if h[i].task.Priority != h[j].task.Priority {
		return h[i].task.Priority > h[j].task.Priority
	}
	return h[i].seq < h[j].seq
}
func (h priorityHeap) Swap(i, j int) { h[i], h[j] = h[j], h[i] }
func (h *priorityHeap) Push(x any)   { *h = append(*h, x.(*queueItem)) }
func (h *priorityHeap) Pop() any {
	old := *h
	n := len(old)
	item := old[n-1]
	*h = old[:n-1]
	return item
}

// TaskQueue is a thread-safe priority queue of ready-to-run tasks,
// feeding the dispatcher's worker pool.
type TaskQueue struct {
	mu   sync.Mutex
	heap priorityHeap
	seq  int64
}

func NewTaskQueue() *TaskQueue {
	q := &TaskQueue{}
	heap.Init(&q.heap)
	return q
}

func (q *TaskQueue) Push(t *task.Task) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.seq++
	heap.Push(&q.heap, &queueItem{task: t, seq: q.seq})
}

// Pop removes and returns the highest-priority task, or nil if empty.
func (q *TaskQueue) Pop() *task.Task {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.heap.Len() == 0 {
		return nil
	}
	item := heap.Pop(&q.heap).(*queueItem)
	return item.task
}

func (q *TaskQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.heap.Len()
}
