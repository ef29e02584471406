package model

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"
)

type Account struct {
	Address          common.Address `json:"address"`
	Shares           *big.Int       `json:"shares"`
	Balance          *big.Int       `json:"balance"`
	Wrapped          *big.Int       `json:"wrapped"`
	Banned           bool           `json:"banned"`
	KycApproved      bool           `json:"kyc_approved"`
	FirstDepositDone bool           `json:"first_deposit_done"`
	PendingRedeem    *big.Int       `json:"pending_redeem"`
}

// MintQuote is the result of a mint preview.
type MintQuote struct {
	NetAmount   *big.Int `json:"net_amount"`
	Fee         *big.Int `json:"fee"`
	LedgerValue *big.Int `json:"ledger_value"`
	Issued      *big.Int `json:"issued"`
	Wrapped     *big.Int `json:"wrapped,omitempty"`
}

// RedeemQuote is the result of a redeem preview, in settlement asset units.
type RedeemQuote struct {
	Underlying *big.Int `json:"underlying"`
	Fee        *big.Int `json:"fee"`
	NetAmount  *big.Int `json:"net_amount"`
}
