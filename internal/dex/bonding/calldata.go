// internal/dex/bonding/calldata.go
package bonding

import (
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"

	"github.com/whaleshi/b/internal/contracts"
	"github.com/whaleshi/b/internal/dex/model"
	"github.com/whaleshi/b/internal/multicall"
)

// Calldata builders and decoders for batching factory reads through multicall.

func PackTokens(index int) ([]byte, error) {
	return contracts.FactoryABI.Pack("tokens", big.NewInt(int64(index)))
}

func PackURI(token common.Address) ([]byte, error) {
	return contracts.FactoryABI.Pack("uri", token)
}

func PackTokensInfo(token common.Address) ([]byte, error) {
	return contracts.FactoryABI.Pack("tokensInfo", token)
}

var (
	DecodeTokenAddress = multicall.UnpackMethod[common.Address](contracts.FactoryABI, "tokens")
	DecodeURI          = multicall.UnpackMethod[string](contracts.FactoryABI, "uri")
)

// tokenInfoTuple matches the tokensInfo output names.
type tokenInfoTuple struct {
	Base        common.Address
	Quote       common.Address
	Reserve0    *big.Int
	Reserve1    *big.Int
	VReserve0   *big.Int
	VReserve1   *big.Int
	MaxOffers   *big.Int
	TotalSupply *big.Int
	LastPrice   *big.Int
	Target      *big.Int
	Creator     common.Address
	Launched    bool
}

// DecodeTokensInfo decodes the 12-field tokensInfo tuple.
func DecodeTokensInfo(data []byte) (*model.TokenInfo, error) {
	var t tokenInfoTuple
	if err := contracts.FactoryABI.UnpackIntoInterface(&t, "tokensInfo", data); err != nil {
		return nil, fmt.Errorf("decode tokensInfo: %w", err)
	}
	return &model.TokenInfo{
		Base:        t.Base,
		Quote:       t.Quote,
		Reserve0:    t.Reserve0,
		Reserve1:    t.Reserve1,
		VReserve0:   t.VReserve0,
		VReserve1:   t.VReserve1,
		MaxOffers:   t.MaxOffers,
		TotalSupply: t.TotalSupply,
		LastPrice:   t.LastPrice,
		Target:      t.Target,
		Creator:     t.Creator,
		Launched:    t.Launched,
	}, nil
}

// EncodeTokensInfo packs info as the factory would return it. Used by tests
// and by the fake chain.
func EncodeTokensInfo(info *model.TokenInfo) ([]byte, error) {
	return contracts.FactoryABI.Methods["tokensInfo"].Outputs.Pack(TokensInfoValues(info)...)
}

// TokensInfoValues flattens info into the tuple order.
func TokensInfoValues(info *model.TokenInfo) []interface{} {
	orZero := func(v *big.Int) *big.Int {
		if v == nil {
			return new(big.Int)
		}
		return v
	}
	return []interface{}{
		info.Base, info.Quote,
		orZero(info.Reserve0), orZero(info.Reserve1),
		orZero(info.VReserve0), orZero(info.VReserve1),
		orZero(info.MaxOffers), orZero(info.TotalSupply),
		orZero(info.LastPrice), orZero(info.Target),
		info.Creator, info.Launched,
	}
}
