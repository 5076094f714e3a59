// internal/bot/worker.go
package bot

import (
	"context"
	"sync"

	"go.uber.org/zap"

	"github.com/whaleshi/b/internal/task"
)

// TaskExecutor is satisfied by *Engine.
type TaskExecutor interface {
	ExecuteTask(ctx context.Context, t *task.Task) TaskResult
}

type WorkerPool struct {
	wg       sync.WaitGroup
	ctx      context.Context
	tasks    <-chan *task.Task
	executor TaskExecutor
	logger   *zap.Logger

	mu      sync.Mutex
	results []TaskResult
}

func NewWorkerPool(ctx context.Context, executor TaskExecutor, tasks <-chan *task.Task, logger *zap.Logger) *WorkerPool {
	return &WorkerPool{
		ctx:      ctx,
		tasks:    tasks,
		executor: executor,
		logger:   logger,
	}
}

func (wp *WorkerPool) Start(n int) {
	for i := 0; i < n; i++ {
		wp.wg.Add(1)
		go wp.worker(i + 1)
	}
}

// Wait blocks until every worker exits and returns the collected results.
func (wp *WorkerPool) Wait() []TaskResult {
	wp.wg.Wait()
	wp.mu.Lock()
	defer wp.mu.Unlock()
	return append([]TaskResult(nil), wp.results...)
}

func (wp *WorkerPool) worker(id int) {
	defer wp.wg.Done()
	logger := wp.logger.With(zap.Int("worker_id", id))
	logger.Debug("Worker started")

	for {
		select {
		case <-wp.ctx.Done():
			logger.Info("Worker shutting down due to context cancellation")
			return
		case t, ok := <-wp.tasks:
			if !ok {
				logger.Debug("Task channel closed")
				return
			}
			// select picks randomly when both are ready
			if wp.ctx.Err() != nil {
				return
			}
			wp.handleTask(t, logger)
		}
	}
}

func (wp *WorkerPool) handleTask(t *task.Task, logger *zap.Logger) {
	logger.Info("Executing task", zap.String("task", t.String()))
	res := wp.executor.ExecuteTask(wp.ctx, t)

	wp.mu.Lock()
	wp.results = append(wp.results, res)
	wp.mu.Unlock()
}
