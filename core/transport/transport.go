// Package transport moves underlying assets. The engine only needs plain
// fungible-asset transfers; allowance handling belongs to the implementation.
package transport

import (
	"context"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
)

type Transport interface {
	// Transfer moves amount of asset held by from (an account the engine
	// controls, such as the treasury) to to.
	Transfer(ctx context.Context, asset common.Address, from, to common.Address, amount *big.Int) error
	// TransferFrom pulls amount of asset from a user who approved the engine.
	TransferFrom(ctx context.Context, asset common.Address, from, to common.Address, amount *big.Int) error
	BalanceOf(ctx context.Context, asset common.Address, account common.Address) (*big.Int, error)
	Decimals(ctx context.Context, asset common.Address) (uint8, error)
}
