// internal/monitor/scheduler.go
package monitor

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"go.uber.org/zap"
)

// ErrSchedulerStopped is returned by Schedule after Stop.
var ErrSchedulerStopped = errors.New("scheduler stopped")

// Task is a periodic poll. Resource identifies the slot; Params describe the
// inputs. Poll runs immediately and then every Interval until superseded.
type Task struct {
	Resource string
	Params   string
	Interval time.Duration
	Poll     func(ctx context.Context) (interface{}, error)
	// Sink receives results of the current generation only.
	// It must not call back into the Scheduler.
	Sink func(result interface{}, err error)
}

func (t Task) validate() error {
	if t.Resource == "" {
		return fmt.Errorf("task resource is required")
	}
	if t.Poll == nil {
		return fmt.Errorf("task %s: poll func is required", t.Resource)
	}
	if t.Interval <= 0 {
		return fmt.Errorf("task %s: interval must be positive", t.Resource)
	}
	return nil
}

type running struct {
	params string
	gen    uint64
	cancel context.CancelFunc
}

// Scheduler owns cancellable periodic tasks, one per resource.
// Scheduling a resource with new params cancels the previous task;
// its in-flight result is dropped (last request wins).
type Scheduler struct {
	logger *zap.Logger

	mu      sync.Mutex
	tasks   map[string]*running
	gen     uint64
	stopped bool

	// delivery serializes the generation check with the sink call
	delivery sync.Mutex
	wg       sync.WaitGroup
}

func NewScheduler(logger *zap.Logger) *Scheduler {
	return &Scheduler{
		tasks:  make(map[string]*running),
		logger: logger.Named("scheduler"),
	}
}

// Schedule starts task under its resource and returns its generation.
// Re-scheduling identical params keeps the running task.
func (s *Scheduler) Schedule(ctx context.Context, task Task) (uint64, error) {
	if err := task.validate(); err != nil {
		return 0, err
	}

	s.delivery.Lock()
	defer s.delivery.Unlock()
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.stopped {
		return 0, ErrSchedulerStopped
	}
	if cur, ok := s.tasks[task.Resource]; ok {
		if cur.params == task.Params {
			return cur.gen, nil
		}
		cur.cancel()
		s.logger.Debug("Task superseded",
			zap.String("resource", task.Resource),
			zap.String("old_params", cur.params),
			zap.String("new_params", task.Params))
	}

	s.gen++
	taskCtx, cancel := context.WithCancel(ctx)
	r := &running{params: task.Params, gen: s.gen, cancel: cancel}
	s.tasks[task.Resource] = r

	s.wg.Add(1)
	go s.run(taskCtx, task, r.gen)
	return r.gen, nil
}

// Cancel stops the task under resource. It reports whether one was running.
func (s *Scheduler) Cancel(resource string) bool {
	s.delivery.Lock()
	defer s.delivery.Unlock()
	s.mu.Lock()
	defer s.mu.Unlock()

	cur, ok := s.tasks[resource]
	if !ok {
		return false
	}
	cur.cancel()
	delete(s.tasks, resource)
	return true
}

// Current reports whether gen is still the live generation of resource.
func (s *Scheduler) Current(resource string, gen uint64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	cur, ok := s.tasks[resource]
	return ok && cur.gen == gen
}

// Active lists the scheduled resources.
func (s *Scheduler) Active() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, 0, len(s.tasks))
	for res := range s.tasks {
		out = append(out, res)
	}
	sort.Strings(out)
	return out
}

// Stop cancels every task and waits for the loops to exit.
func (s *Scheduler) Stop() {
	s.delivery.Lock()
	s.mu.Lock()
	s.stopped = true
	for res, cur := range s.tasks {
		cur.cancel()
		delete(s.tasks, res)
	}
	s.mu.Unlock()
	s.delivery.Unlock()

	s.wg.Wait()
	s.logger.Debug("Scheduler stopped")
}

func (s *Scheduler) run(ctx context.Context, task Task, gen uint64) {
	defer s.wg.Done()

	ticker := time.NewTicker(task.Interval)
	defer ticker.Stop()

	for {
		result, err := task.Poll(ctx)
		s.deliver(ctx, task, gen, result, err)

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

func (s *Scheduler) deliver(ctx context.Context, task Task, gen uint64, result interface{}, err error) {
	if task.Sink == nil {
		return
	}
	s.delivery.Lock()
	defer s.delivery.Unlock()

	if ctx.Err() != nil || !s.Current(task.Resource, gen) {
		s.logger.Debug("Dropping superseded result",
			zap.String("resource", task.Resource),
			zap.Uint64("generation", gen))
		return
	}
	task.Sink(result, err)
}
