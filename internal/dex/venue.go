// =============================================
// File: internal/dex/venue.go
// =============================================
package dex

import (
	"context"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"

	"github.com/whaleshi/b/internal/blockchain/evm"
	"github.com/whaleshi/b/internal/dex/amm"
	"github.com/whaleshi/b/internal/dex/bonding"
	"github.com/whaleshi/b/internal/dex/model"
)

// Route picks the venue from the latest known token state.
// It never fetches; a missing snapshot is ErrStateUnavailable.
func Route(info *model.TokenInfo) (model.Venue, error) {
	if info == nil {
		return 0, ErrStateUnavailable
	}
	if info.Launched {
		return model.VenueExternal, nil
	}
	return model.VenueInternal, nil
}

// venueAdapter is one execution path. The executor never branches on venue
// outside (*QuoteEngine).adapter.
type venueAdapter interface {
	quote(ctx context.Context, side model.Side, token common.Address, amountIn *big.Int) (*big.Int, error)
	tradeCall(intent model.TradeIntent, recipient common.Address, deadline *big.Int) (evm.Call, error)
	// spender is the contract that pulls tokens on sell.
	spender() common.Address
}

// bondingVenue – адаптер внутреннего рынка фабрики.
type bondingVenue struct {
	factory *bonding.Factory
}

func (v *bondingVenue) quote(ctx context.Context, side model.Side, token common.Address, amountIn *big.Int) (*big.Int, error) {
	switch side {
	case model.SideBuy:
		out, _, err := v.factory.TryBuy(ctx, token, amountIn)
		return out, err
	case model.SideSell:
		return v.factory.TrySell(ctx, token, amountIn)
	default:
		return nil, fmt.Errorf("unknown side %s", side)
	}
}

func (v *bondingVenue) tradeCall(intent model.TradeIntent, _ common.Address, _ *big.Int) (evm.Call, error) {
	switch intent.Side {
	case model.SideBuy:
		return v.factory.BuyCall(intent.Token, intent.AmountIn, intent.MinAmountOut)
	case model.SideSell:
		return v.factory.SellCall(intent.Token, intent.AmountIn, intent.MinAmountOut)
	default:
		return evm.Call{}, fmt.Errorf("unknown side %s", intent.Side)
	}
}

func (v *bondingVenue) spender() common.Address { return v.factory.Address() }

// ammVenue – адаптер внешнего AMM-роутера.
type ammVenue struct {
	router *amm.Router
}

func (v *ammVenue) quote(ctx context.Context, side model.Side, token common.Address, amountIn *big.Int) (*big.Int, error) {
	switch side {
	case model.SideBuy:
		return v.router.AmountsOut(ctx, amountIn, v.router.BuyPath(token))
	case model.SideSell:
		return v.router.AmountsOut(ctx, amountIn, v.router.SellPath(token))
	default:
		return nil, fmt.Errorf("unknown side %s", side)
	}
}

func (v *ammVenue) tradeCall(intent model.TradeIntent, recipient common.Address, deadline *big.Int) (evm.Call, error) {
	switch intent.Side {
	case model.SideBuy:
		return v.router.SwapExactETHForTokensCall(intent.AmountIn, intent.MinAmountOut, intent.Token, recipient, deadline)
	case model.SideSell:
		return v.router.SwapExactTokensForETHCall(intent.AmountIn, intent.MinAmountOut, intent.Token, recipient, deadline)
	default:
		return evm.Call{}, fmt.Errorf("unknown side %s", intent.Side)
	}
}

func (v *ammVenue) spender() common.Address { return v.router.Address() }
