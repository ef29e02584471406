package asset

import (
	"context"
	"math/big"

	"usdo-ledger/core/model"
)

// FixedPrice is a price source that always answers the same price, fresh at
// the time of the call. Used for simulated deployments.
type FixedPrice struct {
	Price        *big.Int
	FeedDecimals uint8
	Now          func() uint64
}

func (f *FixedPrice) LatestRoundData(context.Context) (model.RoundData, error) {
	now := f.Now()
	return model.RoundData{
		RoundID:         big.NewInt(1),
		Answer:          model.Copy(f.Price),
		StartedAt:       now,
		UpdatedAt:       now,
		AnsweredInRound: big.NewInt(1),
	}, nil
}

func (f *FixedPrice) Decimals(context.Context) (uint8, error) {
	return f.FeedDecimals, nil
}
