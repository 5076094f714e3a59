// internal/multicall/multicall.go
package multicall

import (
	"context"
	"errors"
	"fmt"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"

	"github.com/whaleshi/b/internal/contracts"
)

// ErrSlotFailed marks a slot the aggregator reported as unsuccessful.
var ErrSlotFailed = errors.New("multicall slot failed")

// Reader is an eth_call executor, normally *evm.Caller.
type Reader interface {
	Call(ctx context.Context, to common.Address, data []byte) ([]byte, error)
}

// Call3 mirrors Multicall3.Call3.
type Call3 struct {
	Target       common.Address
	AllowFailure bool
	CallData     []byte
}

// Result3 mirrors Multicall3.Result.
type Result3 struct {
	Success    bool
	ReturnData []byte
}

// Client batches reads through aggregate3.
type Client struct {
	reader  Reader
	address common.Address
}

func NewClient(reader Reader, address common.Address) *Client {
	return &Client{reader: reader, address: address}
}

// Aggregate3 executes calls in one round trip. The returned slice is aligned
// with calls; individual failures are reported per slot, not as an error.
func (c *Client) Aggregate3(ctx context.Context, calls []Call3) ([]Result3, error) {
	if len(calls) == 0 {
		return nil, nil
	}

	data, err := contracts.Multicall3ABI.Pack("aggregate3", calls)
	if err != nil {
		return nil, fmt.Errorf("pack aggregate3: %w", err)
	}

	raw, err := c.reader.Call(ctx, c.address, data)
	if err != nil {
		return nil, fmt.Errorf("aggregate3 call: %w", err)
	}

	out, err := contracts.Multicall3ABI.Unpack("aggregate3", raw)
	if err != nil {
		return nil, fmt.Errorf("unpack aggregate3: %w", err)
	}
	if len(out) == 0 {
		return nil, errors.New("aggregate3 returned no data")
	}

	results := *abi.ConvertType(out[0], new([]Result3)).(*[]Result3)
	if len(results) != len(calls) {
		return nil, fmt.Errorf("aggregate3 returned %d results for %d calls", len(results), len(calls))
	}
	return results, nil
}

// Result is one decoded slot: either Value or Err is meaningful.
type Result[T any] struct {
	Index int
	Value T
	Err   error
}

// OK reports whether the slot decoded.
func (r Result[T]) OK() bool { return r.Err == nil }

// SlotError describes a slot that failed or did not decode.
type SlotError struct {
	Index  int
	Target common.Address
	Err    error
}

func (e SlotError) Error() string {
	return fmt.Sprintf("slot %d (%s): %v", e.Index, e.Target.Hex(), e.Err)
}

func (e SlotError) Unwrap() error { return e.Err }

// Decode turns a raw slot into a typed Result.
func Decode[T any](index int, res Result3, decode func([]byte) (T, error)) Result[T] {
	if !res.Success {
		return Result[T]{Index: index, Err: ErrSlotFailed}
	}
	v, err := decode(res.ReturnData)
	if err != nil {
		return Result[T]{Index: index, Err: fmt.Errorf("decode: %w", err)}
	}
	return Result[T]{Index: index, Value: v}
}

// Fold splits decoded slots into successful values and failures.
// targets is used only to label failures and may be nil.
func Fold[T any](slots []Result[T], targets []common.Address) ([]Result[T], []SlotError) {
	ok := make([]Result[T], 0, len(slots))
	var failures []SlotError
	for _, s := range slots {
		if s.OK() {
			ok = append(ok, s)
			continue
		}
		var target common.Address
		if s.Index < len(targets) {
			target = targets[s.Index]
		}
		failures = append(failures, SlotError{Index: s.Index, Target: target, Err: s.Err})
	}
	return ok, failures
}

// UnpackMethod returns a decoder for a single-output view method.
func UnpackMethod[T any](parsed abi.ABI, method string) func([]byte) (T, error) {
	return func(data []byte) (T, error) {
		var zero T
		out, err := parsed.Unpack(method, data)
		if err != nil {
			return zero, err
		}
		if len(out) == 0 {
			return zero, fmt.Errorf("%s: empty result", method)
		}
		v, ok := out[0].(T)
		if !ok {
			return zero, fmt.Errorf("%s: unexpected type %T", method, out[0])
		}
		return v, nil
	}
}
