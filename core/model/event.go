package model

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"
)

type EventKind string

const (
	EventInstantMint         EventKind = "instant_mint"
	EventInstantRedeem       EventKind = "instant_redeem"
	EventManualRedeem        EventKind = "manual_redeem"
	EventRedeemRequested     EventKind = "redeem_requested"
	EventRedemptionCancelled EventKind = "redemption_cancelled"
	EventRedemptionProcessed EventKind = "redemption_processed"
	EventTransfer            EventKind = "transfer"
	EventWrap                EventKind = "wrap"
	EventUnwrap              EventKind = "unwrap"
	EventMultiplierAdvanced  EventKind = "multiplier_advanced"
	EventMultiplierUpdated   EventKind = "multiplier_updated"
	EventVenueRedeem         EventKind = "venue_redeem"
	EventAdmin               EventKind = "admin"
)

// Event is emitted once the operation that produced it has committed.
type Event struct {
	Kind      EventKind      `json:"kind"`
	Op        string         `json:"op,omitempty"`
	Caller    common.Address `json:"caller"`
	From      common.Address `json:"from,omitempty"`
	To        common.Address `json:"to,omitempty"`
	Asset     common.Address `json:"asset,omitempty"`
	ID        common.Hash    `json:"id,omitempty"`
	Amount    *big.Int       `json:"amount,omitempty"`
	Ledger    *big.Int       `json:"ledger,omitempty"`
	Fee       *big.Int       `json:"fee,omitempty"`
	Count     int            `json:"count,omitempty"`
	Timestamp uint64         `json:"timestamp"`
}
