// internal/dex/model/token_estimate.go
package model

import (
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"
)

// Holdings представляет балансы кошелька по одному токену.
type Holdings struct {
	Wallet common.Address
	Token  common.Address

	// Native баланс нативной валюты в wei
	Native *big.Int

	// TokenBalance баланс токена в базовых единицах
	TokenBalance *big.Int

	// TokenDecimals точность токена
	TokenDecimals uint8

	// EstimatedNative оценка стоимости TokenBalance при продаже (nil если котировка недоступна)
	EstimatedNative *big.Int

	UpdatedAt time.Time
}
