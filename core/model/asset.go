package model

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"
)

// AssetConfig describes an underlying asset accepted for mint or paid out on
// redeem. A zero PriceFeed means the asset is treated as a 1:1 stable.
type AssetConfig struct {
	Asset       common.Address `json:"asset"`
	IsSupported bool           `json:"is_supported"`
	PriceFeed   common.Address `json:"price_feed"`
	Decimals    uint8          `json:"decimals"`
}

func (c AssetConfig) HasFeed() bool {
	return c.PriceFeed != (common.Address{})
}

// RoundData is one answer of a price source.
type RoundData struct {
	RoundID         *big.Int
	Answer          *big.Int
	StartedAt       uint64
	UpdatedAt       uint64
	AnsweredInRound *big.Int
}
