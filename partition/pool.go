// Package partition runs the operations of each partition
// serially on the goroutine that owns it.
//
// Partition p is owned by worker p % threads for the life of the
// pool. Tasks for one partition never run concurrently and run in
// the order they were queued. Tasks for different partitions run
// in parallel.
package partition

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"runtime/debug"
	"sync"

	"github.com/jrife/murre/storage/recordstore"
	"go.uber.org/zap"
)

const defaultQueueSize = 1024

var (
	// ErrClosed is returned after the pool was stopped
	ErrClosed = errors.New("partition pool is stopped")
	// ErrInvalidPartition is returned for a negative partition id
	ErrInvalidPartition = errors.New("invalid partition id")
)

// PanicError is returned by Submit when the task panicked
type PanicError struct {
	Value interface{}
	Stack []byte
}

func (err *PanicError) Error() string {
	return fmt.Sprintf("partition task panicked: %v", err.Value)
}

// Config configures a Pool
type Config struct {
	// Threads is the number of partition goroutines.
	// Defaults to runtime.NumCPU().
	Threads int
	// QueueSize is the capacity of each goroutine's queue
	QueueSize int
	Logger    *zap.Logger
}

// Pool is a fixed set of partition goroutines
type Pool struct {
	workers  []*readyQueue
	logger   *zap.Logger
	mu       sync.RWMutex
	stopped  bool
	stop     chan struct{}
	wg       sync.WaitGroup
	stopOnce sync.Once
}

// NewPool creates a pool and starts its goroutines
func NewPool(config Config) *Pool {
	if config.Threads <= 0 {
		config.Threads = runtime.NumCPU()
	}

	if config.QueueSize <= 0 {
		config.QueueSize = defaultQueueSize
	}

	if config.Logger == nil {
		config.Logger = zap.L()
	}

	pool := &Pool{
		workers: make([]*readyQueue, config.Threads),
		logger:  config.Logger,
		stop:    make(chan struct{}),
	}

	for i := range pool.workers {
		pool.workers[i] = newReadyQueue(config.QueueSize)
		pool.wg.Add(1)

		go pool.processReadyQueue(i)
	}

	return pool
}

// Threads returns the number of partition goroutines
func (pool *Pool) Threads() int {
	return len(pool.workers)
}

// Owner returns the index of the goroutine owning a partition
func (pool *Pool) Owner(partitionID int) int {
	return partitionID % len(pool.workers)
}

func (pool *Pool) processReadyQueue(i int) {
	defer pool.wg.Done()

	logger := pool.logger.With(zap.Int("partition_thread", i))
	readyQueue := pool.workers[i]

	for {
		select {
		case t := <-readyQueue.queue:
			readyQueue.release(t.key)
			pool.run(logger, t)
		case <-pool.stop:
			return
		}
	}
}

func (pool *Pool) run(logger *zap.Logger, t task) {
	defer func() {
		if r := recover(); r != nil {
			logger.Error("partition task panicked", zap.Any("panic", r), zap.ByteString("stack", debug.Stack()))
		}
	}()

	t.run()
}

func (pool *Pool) enqueue(ctx context.Context, partitionID int, t task) error {
	if partitionID < 0 {
		return ErrInvalidPartition
	}

	pool.mu.RLock()
	defer pool.mu.RUnlock()

	if pool.stopped {
		return ErrClosed
	}

	select {
	case pool.workers[pool.Owner(partitionID)].queue <- t:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-pool.stop:
		return ErrClosed
	}
}

// Execute queues task on the partition's goroutine without waiting
// for it to run. It blocks while the goroutine's queue is full.
func (pool *Pool) Execute(partitionID int, task func()) error {
	return pool.enqueue(context.Background(), partitionID, taskOf("", task))
}

// Schedule queues task unless a task with the same key is
// already queued. It returns false if the task was coalesced.
func (pool *Pool) Schedule(partitionID int, key string, fn func()) (bool, error) {
	if partitionID < 0 {
		return false, ErrInvalidPartition
	}

	readyQueue := pool.workers[pool.Owner(partitionID)]

	if !readyQueue.reserve(key) {
		return false, nil
	}

	if err := pool.enqueue(context.Background(), partitionID, taskOf(key, fn)); err != nil {
		readyQueue.release(key)

		return false, err
	}

	return true, nil
}

// Submit runs task on the partition's goroutine and waits for it
// to finish or for ctx to be done. A task must not Submit to its
// own goroutine. If ctx is done after the task was queued the task
// may still run.
func (pool *Pool) Submit(ctx context.Context, partitionID int, task func(ctx context.Context) error) error {
	done := make(chan error, 1)

	err := pool.enqueue(ctx, partitionID, taskOf("", func() {
		done <- runTask(ctx, task)
	}))

	if err != nil {
		return err
	}

	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		return ctx.Err()
	case <-pool.stop:
		return ErrClosed
	}
}

// Dispatcher returns a dispatcher running tasks on the
// partition's goroutine
func (pool *Pool) Dispatcher(partitionID int) recordstore.Dispatcher {
	return func(task func()) {
		if err := pool.Execute(partitionID, task); err != nil {
			pool.logger.Warn("could not dispatch task", zap.Int("partition", partitionID), zap.Error(err))
		}
	}
}

// Stop stops every goroutine after its current task. Queued
// tasks are dropped.
func (pool *Pool) Stop() {
	pool.stopOnce.Do(func() {
		close(pool.stop)

		pool.mu.Lock()
		pool.stopped = true
		pool.mu.Unlock()
	})

	pool.wg.Wait()
}

func taskOf(key string, fn func()) task {
	return task{key: key, run: fn}
}

func runTask(ctx context.Context, task func(ctx context.Context) error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = &PanicError{Value: r, Stack: debug.Stack()}
		}
	}()

	return task(ctx)
}
