package model

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"
)

// RedemptionRequest is a queued redemption whose ledger amount has already
// been burned from Sender.
type RedemptionRequest struct {
	ID        common.Hash    `json:"id"`
	Sender    common.Address `json:"sender"`
	Receiver  common.Address `json:"receiver"`
	Amount    *big.Int       `json:"amount"`
	Timestamp uint64         `json:"timestamp"`
}

// BatchResult sums the entries settled by one queue processing call.
type BatchResult struct {
	Processed   int                 `json:"processed"`
	Requests    []RedemptionRequest `json:"requests"`
	TotalLedger *big.Int            `json:"total_ledger"`
	TotalOut    *big.Int            `json:"total_out"`
	TotalFee    *big.Int            `json:"total_fee"`
	Remaining   int                 `json:"remaining"`
}
