// =============================================
// File: internal/dex/quote.go
// =============================================
package dex

import (
	"context"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"

	"github.com/whaleshi/b/internal/dex/amm"
	"github.com/whaleshi/b/internal/dex/bonding"
	"github.com/whaleshi/b/internal/dex/model"
)

// QuoteEngine runs the venue-appropriate read-only simulation.
type QuoteEngine struct {
	internal venueAdapter
	external venueAdapter
}

func NewQuoteEngine(factory *bonding.Factory, router *amm.Router) *QuoteEngine {
	return &QuoteEngine{
		internal: &bondingVenue{factory: factory},
		external: &ammVenue{router: router},
	}
}

func (q *QuoteEngine) adapter(venue model.Venue) (venueAdapter, error) {
	switch venue {
	case model.VenueInternal:
		return q.internal, nil
	case model.VenueExternal:
		return q.external, nil
	default:
		return nil, fmt.Errorf("unknown venue %s", venue)
	}
}

// Quote returns the expected output for amountIn. A non-positive amountIn is
// answered with zero and no network call; any read failure is ErrQuoteUnavailable.
func (q *QuoteEngine) Quote(ctx context.Context, venue model.Venue, side model.Side, token common.Address, amountIn *big.Int) (*big.Int, error) {
	if amountIn == nil || amountIn.Sign() <= 0 {
		return new(big.Int), nil
	}
	a, err := q.adapter(venue)
	if err != nil {
		return nil, err
	}
	out, err := a.quote(ctx, side, token, amountIn)
	if err != nil {
		return nil, fmt.Errorf("%w: %s %s on %s: %v", ErrQuoteUnavailable, side, token.Hex(), venue, err)
	}
	if out == nil {
		return nil, fmt.Errorf("%w: empty result", ErrQuoteUnavailable)
	}
	return out, nil
}

// QuoteFor wraps Quote into a model.Quote.
func (q *QuoteEngine) QuoteFor(ctx context.Context, venue model.Venue, side model.Side, token common.Address, amountIn *big.Int) (*model.Quote, error) {
	out, err := q.Quote(ctx, venue, side, token, amountIn)
	if err != nil {
		return nil, err
	}
	return &model.Quote{
		Venue:             venue,
		Side:              side,
		Token:             token,
		AmountIn:          amountIn,
		ExpectedAmountOut: out,
	}, nil
}
