// internal/bot/runner.go
package bot

import (
	"context"
	"fmt"
	"sort"

	"go.uber.org/zap"

	"github.com/whaleshi/b/internal/task"
)

// Runner executes tasks.yaml with a fixed number of workers.
type Runner struct {
	executor    TaskExecutor
	taskManager *task.Manager
	workers     int
	logger      *zap.Logger
}

func NewRunner(executor TaskExecutor, workers int, logger *zap.Logger) *Runner {
	if workers <= 0 {
		workers = 1
	}
	return &Runner{
		executor:    executor,
		taskManager: task.NewManager(logger),
		workers:     workers,
		logger:      logger,
	}
}

// Run loads tasksPath and runs every task once. Results come back in task order.
func (r *Runner) Run(ctx context.Context, tasksPath string) ([]TaskResult, error) {
	tasks, err := r.taskManager.LoadTasks(tasksPath)
	if err != nil {
		return nil, err
	}
	return r.RunTasks(ctx, tasks), nil
}

func (r *Runner) RunTasks(ctx context.Context, tasks []*task.Task) []TaskResult {
	r.logger.Info(fmt.Sprintf("📋 Loaded %d trading tasks", len(tasks)))

	taskCh := make(chan *task.Task, len(tasks))
	for _, t := range tasks {
		taskCh <- t
	}
	close(taskCh)

	workers := r.workers
	if workers > len(tasks) {
		workers = len(tasks)
	}
	r.logger.Info(fmt.Sprintf("🚀 Starting execution with %d workers", workers))

	pool := NewWorkerPool(ctx, r.executor, taskCh, r.logger)
	pool.Start(workers)
	results := pool.Wait()

	sort.SliceStable(results, func(i, j int) bool {
		return results[i].Task.ID < results[j].Task.ID
	})

	failed := 0
	for _, res := range results {
		if !res.OK() {
			failed++
		}
	}
	r.logger.Info("✅ All workers finished",
		zap.Int("executed", len(results)),
		zap.Int("failed", failed),
		zap.Int("skipped", len(tasks)-len(results)))
	return results
}
