// internal/bot/tasks.go
package bot

import (
	"context"
	"fmt"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"

	"github.com/whaleshi/b/internal/dex"
	"github.com/whaleshi/b/internal/task"
)

// TaskResult is the outcome of one task from tasks.yaml.
type TaskResult struct {
	Task   *task.Task
	TxHash common.Hash
	// Token is the created token for a create task.
	Token    common.Address
	Err      error
	Duration time.Duration
}

// OK reports whether the task succeeded.
func (r TaskResult) OK() bool { return r.Err == nil }

func (r TaskResult) String() string {
	if r.Err != nil {
		return fmt.Sprintf("❌ %s: %s", r.Task.TaskName, dex.UserMessage(r.Err))
	}
	if r.Task.Operation == task.OperationCreate {
		return fmt.Sprintf("✅ %s: token %s (tx %s)", r.Task.TaskName, r.Token.Hex(), r.TxHash.Hex())
	}
	return fmt.Sprintf("✅ %s: tx %s", r.Task.TaskName, r.TxHash.Hex())
}

// ExecuteTask runs one task through the wallet's executor or launcher.
func (e *Engine) ExecuteTask(ctx context.Context, t *task.Task) TaskResult {
	start := time.Now()
	res := TaskResult{Task: t}
	logger := e.logger.With(
		zap.String("task", t.TaskName),
		zap.String("operation", string(t.Operation)),
		zap.String("wallet", t.WalletName))

	switch t.Operation {
	case task.OperationBuy:
		tx, err := e.Buy(ctx, t.WalletName, t.Token, t.Amount)
		if err == nil {
			res.TxHash = tx.TxHash
		}
		res.Err = err
	case task.OperationSell:
		tx, err := e.Sell(ctx, t.WalletName, t.Token, t.Amount)
		if err == nil {
			res.TxHash = tx.TxHash
		}
		res.Err = err
	case task.OperationSellPercent:
		tx, err := e.SellPercent(ctx, t.WalletName, t.Token, t.Percent)
		if err == nil {
			res.TxHash = tx.TxHash
		}
		res.Err = err
	case task.OperationCreate:
		launched, err := e.Create(ctx, t.WalletName, t.Name, t.Symbol, t.MetadataURI, t.InitialBuy)
		if err == nil {
			res.TxHash, res.Token = launched.TxHash, launched.Token
		}
		res.Err = err
	default:
		res.Err = fmt.Errorf("unsupported operation: %s", t.Operation)
	}
	res.Duration = time.Since(start)

	if res.Err != nil {
		logger.Error("Task execution failed", zap.Error(res.Err))
	} else {
		logger.Info("Task executed successfully",
			zap.String("tx", res.TxHash.Hex()),
			zap.Duration("elapsed", res.Duration))
	}
	return res
}
