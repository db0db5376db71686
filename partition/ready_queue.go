package partition

import (
	"sync"
)

type task struct {
	key string
	run func()
}

// readyQueue wraps a buffered channel. Keyed tasks are
// queued at most once until a worker dequeues them.
type readyQueue struct {
	mu    sync.Mutex
	ready map[string]bool
	queue chan task
}

func newReadyQueue(capacity int) *readyQueue {
	return &readyQueue{
		ready: make(map[string]bool),
		queue: make(chan task, capacity),
	}
}

// reserve returns false if a task with the same key is
// already queued. Tasks without a key are always accepted.
func (readyQueue *readyQueue) reserve(key string) bool {
	if key == "" {
		return true
	}

	readyQueue.mu.Lock()
	defer readyQueue.mu.Unlock()

	if readyQueue.ready[key] {
		return false
	}

	readyQueue.ready[key] = true

	return true
}

func (readyQueue *readyQueue) release(key string) {
	if key == "" {
		return
	}

	readyQueue.mu.Lock()
	delete(readyQueue.ready, key)
	readyQueue.mu.Unlock()
}
