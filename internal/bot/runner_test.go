package bot_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/whaleshi/b/internal/bot"
	"github.com/whaleshi/b/internal/task"
)

type fakeExecutor struct {
	mu       sync.Mutex
	seen     []string
	inFlight int32
	peak     int32
	delay    time.Duration
	fail     map[string]error
}

func (f *fakeExecutor) ExecuteTask(ctx context.Context, t *task.Task) bot.TaskResult {
	n := atomic.AddInt32(&f.inFlight, 1)
	defer atomic.AddInt32(&f.inFlight, -1)
	for {
		peak := atomic.LoadInt32(&f.peak)
		if n <= peak || atomic.CompareAndSwapInt32(&f.peak, peak, n) {
			break
		}
	}

	select {
	case <-time.After(f.delay):
	case <-ctx.Done():
		return bot.TaskResult{Task: t, Err: ctx.Err()}
	}

	f.mu.Lock()
	f.seen = append(f.seen, t.TaskName)
	f.mu.Unlock()
	return bot.TaskResult{Task: t, TxHash: common.HexToHash("0x01"), Err: f.fail[t.TaskName]}
}

func buyTasks(names ...string) []*task.Task {
	out := make([]*task.Task, 0, len(names))
	for i, n := range names {
		out = append(out, &task.Task{ID: i, TaskName: n, WalletName: "main", Operation: task.OperationBuy, Token: tokenAddr, Amount: "1"})
	}
	return out
}

func TestRunner_RunsEveryTaskInOrder(t *testing.T) {
	exec := &fakeExecutor{delay: 10 * time.Millisecond, fail: map[string]error{"b": errors.New("reverted")}}
	r := bot.NewRunner(exec, 2, zaptest.NewLogger(t))

	results := r.RunTasks(context.Background(), buyTasks("a", "b", "c", "d"))
	require.Len(t, results, 4)
	for i, res := range results {
		assert.Equal(t, i, res.Task.ID)
	}
	assert.True(t, results[0].OK())
	assert.False(t, results[1].OK())
	assert.LessOrEqual(t, atomic.LoadInt32(&exec.peak), int32(2))
}

func TestRunner_CancelStopsWorkers(t *testing.T) {
	exec := &fakeExecutor{delay: time.Second}
	r := bot.NewRunner(exec, 1, zaptest.NewLogger(t))

	ctx, cancel := context.WithCancel(context.Background())
	time.AfterFunc(20*time.Millisecond, cancel)

	start := time.Now()
	results := r.RunTasks(ctx, buyTasks("a", "b", "c"))
	assert.Less(t, time.Since(start), 500*time.Millisecond)
	require.NotEmpty(t, results)
	assert.ErrorIs(t, results[0].Err, context.Canceled)
	assert.Less(t, len(results), 3)
}

func TestRunner_LoadsTaskFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tasks.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
tasks:
  - task_name: one
    wallet: main
    operation: buy
    token: "0x00000000000000000000000000000000000000aa"
    amount: "0.1"
  - task_name: broken
    wallet: main
    operation: teleport
`), 0o600))

	exec := &fakeExecutor{}
	results, err := bot.NewRunner(exec, 4, zaptest.NewLogger(t)).Run(context.Background(), path)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, []string{"one"}, exec.seen)

	_, err = bot.NewRunner(exec, 1, zaptest.NewLogger(t)).Run(context.Background(), filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}
