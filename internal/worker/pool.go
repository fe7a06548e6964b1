// Package worker runs background jobs off the board lock.
package worker

import (
	"context"
	"sync"

	"localboard/internal/logger"
)

var log = logger.Tag("worker")

// DefaultQueueSize is the number of pending tasks a pool buffers.
const DefaultQueueSize = 1000

// Task is a function that represents a background job.
type Task func(ctx context.Context) error

// Pool runs tasks on a fixed set of workers.
type Pool struct {
	taskQueue chan Task
	ctx       context.Context
	cancel    context.CancelFunc
	wg        sync.WaitGroup

	mu      sync.RWMutex
	closing bool
}

// NewPool starts size workers with a queue of queueSize pending tasks. A
// pool of one worker runs tasks in submission order.
func NewPool(size, queueSize int) *Pool {
	if size < 1 {
		size = 1
	}
	if queueSize < 1 {
		queueSize = DefaultQueueSize
	}
	ctx, cancel := context.WithCancel(context.Background())
	wp := &Pool{
		taskQueue: make(chan Task, queueSize),
		ctx:       ctx,
		cancel:    cancel,
	}
	for range size {
		wp.wg.Add(1)
		go wp.startWorker()
	}
	return wp
}

func (wp *Pool) startWorker() {
	defer wp.wg.Done()
	for task := range wp.taskQueue {
		if err := task(wp.ctx); err != nil {
			log.Errorf("worker task failed: %v", err)
		}
	}
}

// Submit queues t without blocking. It reports false when the queue is full
// or the pool is shutting down; the task is then dropped.
func (wp *Pool) Submit(t Task) bool {
	wp.mu.RLock()
	defer wp.mu.RUnlock()
	if wp.closing {
		log.Warnf("task submitted during shutdown, dropping")
		return false
	}
	select {
	case wp.taskQueue <- t:
		return true
	default:
		log.Warnf("task queue full, dropping task")
		return false
	}
}

// Shutdown stops accepting tasks and waits for the queued ones to finish.
// When ctx ends first the running tasks see their context cancelled and
// Shutdown returns ctx.Err().
func (wp *Pool) Shutdown(ctx context.Context) error {
	wp.mu.Lock()
	if wp.closing {
		wp.mu.Unlock()
		return nil
	}
	wp.closing = true
	close(wp.taskQueue)
	wp.mu.Unlock()

	done := make(chan struct{})
	go func() {
		wp.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		wp.cancel()
		return nil
	case <-ctx.Done():
		wp.cancel()
		<-done
		return ctx.Err()
	}
}
