package core

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"

	"usdo-ledger/core/limiter"
	"usdo-ledger/core/model"
)

func (g *Gateway) BalanceOf(account common.Address) (v *big.Int) {
	g.view(func() { v = g.ledger.BalanceOf(account) })
	return
}

func (g *Gateway) SharesOf(account common.Address) (v *big.Int) {
	g.view(func() { v = g.ledger.SharesOf(account) })
	return
}

func (g *Gateway) TotalSupply() (v *big.Int) {
	g.view(func() { v = g.ledger.TotalSupply() })
	return
}

func (g *Gateway) TotalShares() (v *big.Int) {
	g.view(func() { v = g.ledger.TotalShares() })
	return
}

func (g *Gateway) ConvertToShares(amount *big.Int) (v *big.Int) {
	g.view(func() { v = g.ledger.ConvertToShares(amount) })
	return
}

func (g *Gateway) ConvertToAmount(shares *big.Int) (v *big.Int) {
	g.view(func() { v = g.ledger.ConvertToAmount(shares) })
	return
}

// GetBonusMultiplier returns the multiplier now and after the next advance.
func (g *Gateway) GetBonusMultiplier() (curr, next *big.Int) {
	g.view(func() { curr, next = g.scheduler.Current() })
	return
}

func (g *Gateway) GetRedemptionQueueLength() (n int) {
	g.view(func() { n = g.queue.Len() })
	return
}

func (g *Gateway) GetRedemptionQueueInfo(index int) (model.RedemptionRequest, error) {
	var (
		req model.RedemptionRequest
		ok  bool
	)
	g.view(func() { req, ok = g.queue.At(index) })
	if !ok {
		return model.RedemptionRequest{}, model.NewError(model.CodeUnknownRequest, "no queue entry at %d", index)
	}
	return req, nil
}

// GetRedemptionUserInfo is the ledger amount queued for receiver.
func (g *Gateway) GetRedemptionUserInfo(receiver common.Address) (v *big.Int) {
	g.view(func() { v = g.queue.Pending(receiver) })
	return
}

func (g *Gateway) WrappedBalanceOf(account common.Address) (v *big.Int) {
	g.view(func() { v = g.wrapper.BalanceOf(account) })
	return
}

func (g *Gateway) TotalWrapped() (v *big.Int) {
	g.view(func() { v = g.wrapper.TotalWrapped() })
	return
}

func (g *Gateway) IsKyc(account common.Address) (ok bool) {
	g.view(func() { ok = g.kyc.Has(account) })
	return
}

func (g *Gateway) Assets() (out []model.AssetConfig) {
	g.view(func() { out = g.registry.Assets() })
	return
}

type Limits struct {
	Mint               limiter.Window `json:"mint"`
	Redeem             limiter.Window `json:"redeem"`
	MintRemaining      *big.Int       `json:"mint_remaining"`
	RedeemRemaining    *big.Int       `json:"redeem_remaining"`
	FirstDepositAmount *big.Int       `json:"first_deposit_amount"`
	TotalSupplyCap     *big.Int       `json:"total_supply_cap"`
	MintFeeBps         uint64         `json:"mint_fee_bps"`
	RedeemFeeBps       uint64         `json:"redeem_fee_bps"`
	MintPaused         bool           `json:"mint_paused"`
	RedeemPaused       bool           `json:"redeem_paused"`
	LedgerPaused       bool           `json:"ledger_paused"`
	APYBps             uint64         `json:"apy_bps"`
	TimeBuffer         uint64         `json:"time_buffer"`
	LastUpdate         uint64         `json:"last_update"`
}

func (g *Gateway) Limits() (l Limits) {
	g.view(func() {
		now := g.now()
		mint, redeem := g.limiter.Window(limiter.Mint), g.limiter.Window(limiter.Redeem)
		last, _ := g.scheduler.LastUpdate()
		l = Limits{
			Mint:               mint,
			Redeem:             redeem,
			MintRemaining:      mint.Remaining(now),
			RedeemRemaining:    redeem.Remaining(now),
			FirstDepositAmount: model.Copy(g.firstDepositAmount),
			TotalSupplyCap:     optional(g.supplyCap),
			MintFeeBps:         g.mintFeeBps,
			RedeemFeeBps:       g.redeemFeeBps,
			MintPaused:         g.mintPaused,
			RedeemPaused:       g.redeemPaused,
			LedgerPaused:       g.ledger.Paused(),
			APYBps:             g.scheduler.APY(),
			TimeBuffer:         g.scheduler.TimeBuffer(),
			LastUpdate:         last,
		}
	})
	return
}

// AdvanceDue reports whether AdvanceMultiplier would pass its time gate now.
func (g *Gateway) AdvanceDue() (due bool) {
	g.view(func() {
		due = g.scheduler.Due(g.now())
	})
	return
}

func (g *Gateway) Account(address common.Address) (a model.Account) {
	g.view(func() {
		a = model.Account{
			Address:          address,
			Shares:           g.ledger.SharesOf(address),
			Balance:          g.ledger.BalanceOf(address),
			Wrapped:          g.wrapper.BalanceOf(address),
			Banned:           g.ledger.IsBanned(address),
			KycApproved:      g.kyc.Has(address),
			FirstDepositDone: g.firstDeposit.Has(address),
			PendingRedeem:    g.queue.Pending(address),
		}
	})
	return
}
