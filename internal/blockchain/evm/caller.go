// internal/blockchain/evm/caller.go
package evm

import (
	"context"
	"math/big"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"
)

const (
	DefaultReadTimeout = 10 * time.Second
	DefaultReadRetries = 2
)

// LatencyRecorder receives per-attempt read latency.
type LatencyRecorder interface {
	RecordRPCLatency(method, endpoint string, duration time.Duration)
}

// RetryConfig bounds every read attempt.
type RetryConfig struct {
	Timeout         time.Duration
	MaxRetries      uint
	InitialInterval time.Duration
	MaxInterval     time.Duration
}

// DefaultRetryConfig: fixed timeout, two retries with exponential backoff.
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		Timeout:         DefaultReadTimeout,
		MaxRetries:      DefaultReadRetries,
		InitialInterval: 500 * time.Millisecond,
		MaxInterval:     5 * time.Second,
	}
}

// Caller performs idempotent reads with a per-attempt timeout and bounded retry.
// Writes never go through it.
type Caller struct {
	backend Backend
	retry   RetryConfig
	metrics LatencyRecorder
	logger  *zap.Logger
}

func NewCaller(backend Backend, retry RetryConfig, logger *zap.Logger) *Caller {
	if retry.Timeout <= 0 {
		retry.Timeout = DefaultReadTimeout
	}
	if retry.InitialInterval <= 0 {
		retry.InitialInterval = 500 * time.Millisecond
	}
	if retry.MaxInterval <= 0 {
		retry.MaxInterval = 5 * time.Second
	}
	return &Caller{
		backend: backend,
		retry:   retry,
		logger:  logger.Named("evm-caller"),
	}
}

// WithMetrics attaches a latency recorder.
func (c *Caller) WithMetrics(m LatencyRecorder) *Caller {
	c.metrics = m
	return c
}

// Backend returns the underlying node backend.
func (c *Caller) Backend() Backend {
	return c.backend
}

// Call executes eth_call against latest state.
func (c *Caller) Call(ctx context.Context, to common.Address, data []byte) ([]byte, error) {
	msg := ethereum.CallMsg{To: &to, Data: data}
	return retryRead(ctx, c, "eth_call", func(attemptCtx context.Context) ([]byte, error) {
		return c.backend.CallContract(attemptCtx, msg, nil)
	})
}

// Balance reads the native balance of account.
func (c *Caller) Balance(ctx context.Context, account common.Address) (*big.Int, error) {
	return retryRead(ctx, c, "eth_getBalance", func(attemptCtx context.Context) (*big.Int, error) {
		return c.backend.BalanceAt(attemptCtx, account, nil)
	})
}

func retryRead[T any](ctx context.Context, c *Caller, method string, fn func(context.Context) (T, error)) (T, error) {
	operation := func() (T, error) {
		attemptCtx, cancel := context.WithTimeout(ctx, c.retry.Timeout)
		defer cancel()

		start := time.Now()
		res, err := fn(attemptCtx)
		if c.metrics != nil {
			c.metrics.RecordRPCLatency(method, "primary", time.Since(start))
		}
		if err != nil {
			if !IsRetryableError(err) {
				return res, backoff.Permanent(err)
			}
			return res, err
		}
		return res, nil
	}

	expBackoff := backoff.NewExponentialBackOff()
	expBackoff.InitialInterval = c.retry.InitialInterval
	expBackoff.MaxInterval = c.retry.MaxInterval

	return backoff.Retry(ctx, operation,
		backoff.WithBackOff(expBackoff),
		backoff.WithMaxTries(c.retry.MaxRetries+1),
		backoff.WithNotify(func(err error, next time.Duration) {
			c.logger.Debug("Read failed, retrying",
				zap.String("method", method),
				zap.Duration("next_attempt", next),
				zap.Error(err))
		}),
	)
}
