package queue

import (
	"container/heap"
	"sort"
	"sync"
	"time"

	"github.com/sohaibzafar701/robofleet/pkg/api"
)

// item wraps a task with its enqueue priority for heap ordering.
type item struct {
	priority  int
	createdAt time.Time
	task      api.Task
	index     int
}

// taskHeap orders by priority descending, then creation time ascending,
// giving a strict total order: equal-priority tasks are FIFO.
type taskHeap []*item

func (h taskHeap) Len() int { return len(h) }

func (h taskHeap) Less(i, j int) bool {
	if h[i].priority != h[j].priority {
		return h[i].priority > h[j].priority
	}
	return h[i].createdAt.Before(h[j].createdAt)
}

func (h taskHeap) Swap(i, j int) {
	h[i], h[j] = h[j], h[i]
	h[i].index = i
	h[j].index = j
}

func (h *taskHeap) Push(x any) {
	it := x.(*item)
	it.index = len(*h)
	*h = append(*h, it)
}

func (h *taskHeap) Pop() any {
	old := *h
	n := len(old)
	it := old[n-1]
	old[n-1] = nil
	it.index = -1
	*h = old[:n-1]
	return it
}

// TaskQueue is a priority-ordered, dependency-aware holding area for
// work that has not been assigned yet.
type TaskQueue struct {
	mu        sync.Mutex
	heap      taskHeap
	items     map[string]*item
	completed map[string]bool
}

func New() *TaskQueue {
	return &TaskQueue{
		items:     make(map[string]*item),
		completed: make(map[string]bool),
	}
}

// Add enqueues a task. Returns false if the task id is already queued.
func (q *TaskQueue) Add(task api.Task, priority int) bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	if _, exists := q.items[task.TaskID]; exists {
		return false
	}
	createdAt := task.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now()
	}
	it := &item{priority: priority, createdAt: createdAt, task: task}
	heap.Push(&q.heap, it)
	q.items[task.TaskID] = it
	return true
}

// NextReady pops and returns the highest-priority task if its
// dependencies are all completed. Only the head is inspected: a blocked
// head hides ready lower-priority tasks (deliberate head-of-line
// behavior). The enqueue priority is returned so callers can requeue.
func (q *TaskQueue) NextReady() (api.Task, int, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.heap) == 0 {
		return api.Task{}, 0, false
	}
	head := q.heap[0]
	if !head.task.CanStart(q.completed) {
		return api.Task{}, 0, false
	}
	heap.Pop(&q.heap)
	delete(q.items, head.task.TaskID)
	return head.task, head.priority, true
}

// Remove drops a queued task. Returns false if it is not queued.
func (q *TaskQueue) Remove(taskID string) bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	it, ok := q.items[taskID]
	if !ok {
		return false
	}
	heap.Remove(&q.heap, it.index)
	delete(q.items, taskID)
	return true
}

// MarkCompleted records a task id as done for dependency checks.
func (q *TaskQueue) MarkCompleted(taskID string) {
	q.mu.Lock()
	q.completed[taskID] = true
	q.mu.Unlock()
}

// Get returns a queued task by id.
func (q *TaskQueue) Get(taskID string) (api.Task, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	it, ok := q.items[taskID]
	if !ok {
		return api.Task{}, false
	}
	return it.task, true
}

// PendingTasks returns all queued tasks in priority order.
func (q *TaskQueue) PendingTasks() []api.Task {
	q.mu.Lock()
	defer q.mu.Unlock()
	tmp := make([]*item, len(q.heap))
	copy(tmp, q.heap)
	sort.Slice(tmp, func(i, j int) bool {
		if tmp[i].priority != tmp[j].priority {
			return tmp[i].priority > tmp[j].priority
		}
		return tmp[i].createdAt.Before(tmp[j].createdAt)
	})
	out := make([]api.Task, 0, len(tmp))
	for _, it := range tmp {
		out = append(out, it.task)
	}
	return out
}

// Size returns the number of queued tasks.
func (q *TaskQueue) Size() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.heap)
}

// IsEmpty reports whether the queue has no tasks.
func (q *TaskQueue) IsEmpty() bool {
	return q.Size() == 0
}
