package workerpool

import (
	"context"
	"errors"
	"fmt"
	"sync"
)

var ErrClosed = errors.New("workerpool: closed")

// Task is a unit of work for the pool. Fn must be safe to run concurrently
// with other tasks; ResultC, if set, receives exactly one Result.
type Task struct {
	Fn      func() (any, error)
	ResultC chan Result
}

type Result struct {
	Value any
	Err   error
}

type WorkerPool struct {
	tasks  chan Task
	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
	once   sync.Once
}

// NewWorkerPool starts workerCount workers reading from a queue of queueSize.
func NewWorkerPool(workerCount int, queueSize int) *WorkerPool {
	if workerCount < 1 {
		workerCount = 1
	}
	if queueSize < 0 {
		queueSize = 0
	}
	ctx, cancel := context.WithCancel(context.Background())
	wp := &WorkerPool{
		tasks:  make(chan Task, queueSize),
		ctx:    ctx,
		cancel: cancel,
	}
	wp.wg.Add(workerCount)
	for i := 0; i < workerCount; i++ {
		go wp.worker()
	}
	return wp
}

func (wp *WorkerPool) worker() {
	defer wp.wg.Done()
	for {
		select {
		case <-wp.ctx.Done():
			return
		case task := <-wp.tasks:
			run(task)
		}
	}
}

func run(task Task) {
	var res Result
	func() {
		defer func() {
			if r := recover(); r != nil {
				res = Result{Err: fmt.Errorf("workerpool: task panicked: %v", r)}
			}
		}()
		res.Value, res.Err = task.Fn()
	}()
	if task.ResultC != nil {
		task.ResultC <- res
	}
}

// Submit queues a task, waiting for room until ctx is done or the pool
// is closed.
func (wp *WorkerPool) Submit(ctx context.Context, task Task) error {
	if task.Fn == nil {
		return errors.New("workerpool: nil task")
	}
	select {
	case <-wp.ctx.Done():
		return ErrClosed
	default:
	}
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-wp.ctx.Done():
		return ErrClosed
	case wp.tasks <- task:
		return nil
	}
}

// Do runs fn on the pool and waits for its result.
func (wp *WorkerPool) Do(ctx context.Context, fn func() (any, error)) (any, error) {
	resC := make(chan Result, 1)
	if err := wp.Submit(ctx, Task{Fn: fn, ResultC: resC}); err != nil {
		return nil, err
	}
	select {
	case res := <-resC:
		return res.Value, res.Err
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-wp.ctx.Done():
		return nil, ErrClosed
	}
}

// Go runs fn on the pool without waiting. When the queue is full fn gets
// its own goroutine, so tasks may safely call Go themselves.
func (wp *WorkerPool) Go(fn func()) {
	task := Task{Fn: func() (any, error) {
		fn()
		return nil, nil
	}}
	select {
	case <-wp.ctx.Done():
		return
	case wp.tasks <- task:
	default:
		go run(task)
	}
}

// Close stops the workers and waits for running tasks to finish. Queued
// tasks that have not started are dropped.
func (wp *WorkerPool) Close() {
	wp.once.Do(func() {
		wp.cancel()
		wp.wg.Wait()
	})
}
