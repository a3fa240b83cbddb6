package service

import (
	"context"

	"shift-scheduler/pkg/workerpool"
)

// AsyncService moves blocking work off the bot's update loop.
type AsyncService struct {
	Pool *workerpool.WorkerPool
}

func NewAsyncService(pool *workerpool.WorkerPool) *AsyncService {
	return &AsyncService{Pool: pool}
}

func (a *AsyncService) SubmitAsync(ctx context.Context, fn func() (any, error)) (any, error) {
	return a.Pool.Do(ctx, fn)
}

// Go fires fn on the pool. It matches the scheduler hook of workflow.Runner.
func (a *AsyncService) Go(fn func()) {
	a.Pool.Go(fn)
}

// Await is the typed form of SubmitAsync.
func Await[T any](ctx context.Context, a *AsyncService, fn func() (T, error)) (T, error) {
	v, err := a.SubmitAsync(ctx, func() (any, error) { return fn() })
	if err != nil {
		var zero T
		return zero, err
	}
	t, _ := v.(T)
	return t, nil
}
