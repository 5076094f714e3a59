// =============================================
// File: internal/task/task.go
// =============================================
package task

import (
	"fmt"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
)

// Operation defines the supported task operations.
type Operation string

const (
	OperationBuy         Operation = "buy"
	OperationSell        Operation = "sell"
	OperationSellPercent Operation = "sell_percent"
	OperationCreate      Operation = "create"
)

func parseOperation(s string) (Operation, error) {
	op := Operation(strings.ToLower(strings.TrimSpace(s)))
	switch op {
	case OperationBuy, OperationSell, OperationSellPercent, OperationCreate:
		return op, nil
	default:
		return "", fmt.Errorf("unsupported operation: %q", s)
	}
}

// Task is one trading instruction from tasks.yaml.
type Task struct {
	ID         int
	TaskName   string
	WalletName string
	Operation  Operation
	Token      common.Address
	// Amount in human units: native for buy, tokens for sell.
	Amount  string
	Percent int

	// create
	Name        string
	Symbol      string
	MetadataURI string
	InitialBuy  string

	CreatedAt time.Time
}

// Validate checks the fields required by the task's operation.
func (t *Task) Validate() error {
	if t.TaskName == "" {
		return fmt.Errorf("task name cannot be empty")
	}
	if t.WalletName == "" {
		return fmt.Errorf("wallet name cannot be empty")
	}

	switch t.Operation {
	case OperationBuy, OperationSell:
		if t.Token == (common.Address{}) {
			return fmt.Errorf("token address is required for %s", t.Operation)
		}
		if strings.TrimSpace(t.Amount) == "" {
			return fmt.Errorf("amount is required for %s", t.Operation)
		}
	case OperationSellPercent:
		if t.Token == (common.Address{}) {
			return fmt.Errorf("token address is required for %s", t.Operation)
		}
		if t.Percent < 1 || t.Percent > 100 {
			return fmt.Errorf("percent must be between 1 and 100, got %d", t.Percent)
		}
	case OperationCreate:
		if strings.TrimSpace(t.Name) == "" || strings.TrimSpace(t.Symbol) == "" {
			return fmt.Errorf("name and symbol are required for create")
		}
	default:
		return fmt.Errorf("invalid operation: %s", t.Operation)
	}
	return nil
}

// String is used in logs and the task list.
func (t *Task) String() string {
	switch t.Operation {
	case OperationSellPercent:
		return fmt.Sprintf("%s: sell %d%% of %s (%s)", t.TaskName, t.Percent, t.Token.Hex(), t.WalletName)
	case OperationCreate:
		return fmt.Sprintf("%s: create %s/%s (%s)", t.TaskName, t.Name, t.Symbol, t.WalletName)
	default:
		return fmt.Sprintf("%s: %s %s of %s (%s)", t.TaskName, t.Operation, t.Amount, t.Token.Hex(), t.WalletName)
	}
}
