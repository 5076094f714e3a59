// internal/blockchain/evm/errors.go
package evm

import (
	"errors"
	"strings"
)

// ErrReverted marks a call the EVM rejected. Reverts are deterministic for a
// given state, so reads that revert are never retried.
var ErrReverted = errors.New("execution reverted")

// IsRevert reports whether err came from an EVM revert.
func IsRevert(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, ErrReverted) {
		return true
	}
	return strings.Contains(strings.ToLower(err.Error()), "execution reverted")
}

// IsRetryableError определяет, можно ли повторить чтение при данной ошибке
func IsRetryableError(err error) bool {
	if err == nil || IsRevert(err) {
		return false
	}

	errStr := strings.ToLower(err.Error())
	for _, critical := range []string{"invalid argument", "unauthorized", "forbidden", "method not found"} {
		if strings.Contains(errStr, critical) {
			return false
		}
	}
	return true
}
