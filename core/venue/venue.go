// Package venue defines the redemption venue the gateway sells its reserve
// asset to when treasury liquidity runs short.
package venue

import (
	"context"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
)

// Result is what a venue reports for one redemption, in settlement units
// except Price, which is in the venue's own price decimals.
type Result struct {
	Payout *big.Int
	Fee    *big.Int
	Price  *big.Int
}

type Liquidity struct {
	Available *big.Int // settlement asset the venue can pay out now
	Reserve   *big.Int // reserve asset the venue has taken in
}

type Venue interface {
	// Quote reports what selling amount of reserve asset would pay, net of
	// the venue fee, without moving anything.
	Quote(ctx context.Context, amount *big.Int) (Result, error)
	// RedeemFor sells amount of the reserve asset and pays the settlement
	// asset to user.
	RedeemFor(ctx context.Context, user common.Address, amount *big.Int) (Result, error)
	CheckLiquidity(ctx context.Context) (Liquidity, error)
	CheckPaused(ctx context.Context) (bool, error)
}
