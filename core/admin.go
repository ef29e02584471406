package core

import (
	"context"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/sirupsen/logrus"

	"usdo-ledger/core/asset"
	"usdo-ledger/core/limiter"
	"usdo-ledger/core/model"
)

func (g *Gateway) adminEvent(op Op, caller common.Address, amount *big.Int) {
	g.emit(model.Event{Kind: model.EventAdmin, Op: string(op), Caller: caller, Amount: model.Copy(amount)})
}

func (g *Gateway) UpdateAPY(caller common.Address, bps uint64) error {
	return g.exec(OpUpdateAPY, caller, func() error {
		g.scheduler.SetAPY(bps)
		g.adminEvent(OpUpdateAPY, caller, new(big.Int).SetUint64(bps))
		return nil
	}, logrus.Fields{"bps": bps})
}

func (g *Gateway) SetTimeBuffer(caller common.Address, seconds uint64) error {
	return g.exec(OpSetTimeBuffer, caller, func() error {
		g.scheduler.SetTimeBuffer(seconds)
		g.adminEvent(OpSetTimeBuffer, caller, new(big.Int).SetUint64(seconds))
		return nil
	}, logrus.Fields{"seconds": seconds})
}

// AdvanceMultiplier applies the daily increment once the time buffer has
// passed since the previous advance.
func (g *Gateway) AdvanceMultiplier(caller common.Address) (*big.Int, error) {
	var multiplier *big.Int
	err := g.exec(OpAdvanceMultiplier, caller, func() (err error) {
		now := g.now()
		multiplier, err = g.scheduler.Advance(now)
		if err != nil {
			return err
		}
		g.emit(model.Event{
			Kind:      model.EventMultiplierAdvanced,
			Caller:    caller,
			Amount:    g.scheduler.Increment(),
			Ledger:    model.Copy(multiplier),
			Timestamp: now,
		})
		return nil
	}, nil)
	return multiplier, err
}

// UpdateMultiplier overwrites the multiplier. Zero is rejected.
func (g *Gateway) UpdateMultiplier(caller common.Address, multiplier *big.Int) error {
	return g.exec(OpUpdateMultiplier, caller, func() error {
		if err := g.ledger.UpdateMultiplier(multiplier); err != nil {
			return err
		}
		g.emit(model.Event{Kind: model.EventMultiplierUpdated, Caller: caller, Ledger: model.Copy(multiplier)})
		return nil
	}, logrus.Fields{"multiplier": multiplier})
}

func (g *Gateway) UpdateMintFee(caller common.Address, bps uint64) error {
	return g.exec(OpUpdateMintFee, caller, func() error {
		if err := checkFee(bps); err != nil {
			return err
		}
		setField(g.journal, &g.mintFeeBps, bps)
		g.adminEvent(OpUpdateMintFee, caller, new(big.Int).SetUint64(bps))
		return nil
	}, logrus.Fields{"bps": bps})
}

func (g *Gateway) UpdateRedeemFee(caller common.Address, bps uint64) error {
	return g.exec(OpUpdateRedeemFee, caller, func() error {
		if err := checkFee(bps); err != nil {
			return err
		}
		setField(g.journal, &g.redeemFeeBps, bps)
		g.adminEvent(OpUpdateRedeemFee, caller, new(big.Int).SetUint64(bps))
		return nil
	}, logrus.Fields{"bps": bps})
}

func checkFee(bps uint64) error {
	if bps > model.BpsDenominator {
		return model.NewError(model.CodeInvalidInput, "fee %d bps above %d", bps, model.BpsDenominator)
	}
	return nil
}

// SetTotalSupplyCap caps total supply. A nil cap removes the cap.
func (g *Gateway) SetTotalSupplyCap(caller common.Address, supplyCap *big.Int) error {
	return g.exec(OpSetTotalSupplyCap, caller, func() error {
		if supplyCap != nil && supplyCap.Sign() < 0 {
			return model.NewError(model.CodeInvalidInput, "supply cap must not be negative")
		}
		setField(g.journal, &g.supplyCap, optional(supplyCap))
		g.emit(model.Event{Kind: model.EventAdmin, Op: string(OpSetTotalSupplyCap), Caller: caller, Amount: optional(supplyCap)})
		return nil
	}, logrus.Fields{"cap": supplyCap})
}

func (g *Gateway) SetFirstDepositAmount(caller common.Address, amount *big.Int) error {
	return g.exec(OpSetFirstDepositAmount, caller, func() error {
		if err := checkAmount(amount); err != nil {
			return err
		}
		setField(g.journal, &g.firstDepositAmount, model.Copy(amount))
		g.adminEvent(OpSetFirstDepositAmount, caller, amount)
		return nil
	}, logrus.Fields{"amount": amount})
}

func (g *Gateway) SetMintMinimum(caller common.Address, v *big.Int) error {
	return g.setMinimum(caller, limiter.Mint, v)
}

func (g *Gateway) SetRedeemMinimum(caller common.Address, v *big.Int) error {
	return g.setMinimum(caller, limiter.Redeem, v)
}

func (g *Gateway) SetMintLimit(caller common.Address, v *big.Int) error {
	return g.setLimit(caller, limiter.Mint, v)
}

func (g *Gateway) SetRedeemLimit(caller common.Address, v *big.Int) error {
	return g.setLimit(caller, limiter.Redeem, v)
}

func (g *Gateway) SetMintDuration(caller common.Address, seconds uint64) error {
	return g.setDuration(caller, limiter.Mint, seconds)
}

func (g *Gateway) SetRedeemDuration(caller common.Address, seconds uint64) error {
	return g.setDuration(caller, limiter.Redeem, seconds)
}

func (g *Gateway) setMinimum(caller common.Address, kind limiter.Kind, v *big.Int) error {
	return g.exec(OpSetLimiter, caller, func() error {
		if err := checkAmount(v); err != nil {
			return err
		}
		g.limiter.SetMinimum(kind, v)
		g.adminEvent(OpSetLimiter, caller, v)
		return nil
	}, logrus.Fields{"window": kindName(kind), "minimum": v})
}

func (g *Gateway) setLimit(caller common.Address, kind limiter.Kind, v *big.Int) error {
	return g.exec(OpSetLimiter, caller, func() error {
		if err := checkAmount(v); err != nil {
			return err
		}
		g.limiter.SetLimit(kind, v)
		g.adminEvent(OpSetLimiter, caller, v)
		return nil
	}, logrus.Fields{"window": kindName(kind), "limit": v})
}

func (g *Gateway) setDuration(caller common.Address, kind limiter.Kind, seconds uint64) error {
	return g.exec(OpSetLimiter, caller, func() error {
		g.limiter.SetDuration(kind, seconds)
		g.adminEvent(OpSetLimiter, caller, new(big.Int).SetUint64(seconds))
		return nil
	}, logrus.Fields{"window": kindName(kind), "duration": seconds})
}

func kindName(kind limiter.Kind) string {
	if kind == limiter.Redeem {
		return "redeem"
	}
	return "mint"
}

func checkAmount(v *big.Int) error {
	if v == nil || v.Sign() < 0 {
		return model.NewError(model.CodeInvalidInput, "amount must not be negative")
	}
	return nil
}

func (g *Gateway) GrantKycInBulk(caller common.Address, accounts []common.Address) error {
	return g.exec(OpGrantKyc, caller, func() error {
		n := 0
		for _, a := range accounts {
			if a == (common.Address{}) {
				return model.NewError(model.CodeInvalidInput, "zero address in kyc list")
			}
			if putMember(g.journal, g.kyc, a) {
				n++
			}
		}
		g.emit(model.Event{Kind: model.EventAdmin, Op: string(OpGrantKyc), Caller: caller, Count: n})
		return nil
	}, logrus.Fields{"accounts": len(accounts)})
}

func (g *Gateway) RevokeKycInBulk(caller common.Address, accounts []common.Address) error {
	return g.exec(OpRevokeKyc, caller, func() error {
		n := 0
		for _, a := range accounts {
			if removeMember(g.journal, g.kyc, a) {
				n++
			}
		}
		g.emit(model.Event{Kind: model.EventAdmin, Op: string(OpRevokeKyc), Caller: caller, Count: n})
		return nil
	}, logrus.Fields{"accounts": len(accounts)})
}

func (g *Gateway) PauseMint(caller common.Address) error {
	return g.setFlag(OpPauseMint, caller, &g.mintPaused, true)
}

func (g *Gateway) UnpauseMint(caller common.Address) error {
	return g.setFlag(OpUnpauseMint, caller, &g.mintPaused, false)
}

func (g *Gateway) PauseRedeem(caller common.Address) error {
	return g.setFlag(OpPauseRedeem, caller, &g.redeemPaused, true)
}

func (g *Gateway) UnpauseRedeem(caller common.Address) error {
	return g.setFlag(OpUnpauseRedeem, caller, &g.redeemPaused, false)
}

func (g *Gateway) setFlag(op Op, caller common.Address, flag *bool, v bool) error {
	return g.exec(op, caller, func() error {
		setField(g.journal, flag, v)
		g.adminEvent(op, caller, nil)
		return nil
	}, nil)
}

func (g *Gateway) PauseLedger(caller common.Address) error {
	return g.exec(OpPauseLedger, caller, func() error {
		g.ledger.Pause()
		g.adminEvent(OpPauseLedger, caller, nil)
		return nil
	}, nil)
}

func (g *Gateway) UnpauseLedger(caller common.Address) error {
	return g.exec(OpUnpauseLedger, caller, func() error {
		g.ledger.Unpause()
		g.adminEvent(OpUnpauseLedger, caller, nil)
		return nil
	}, nil)
}

func (g *Gateway) Ban(caller common.Address, accounts ...common.Address) error {
	return g.exec(OpBan, caller, func() error {
		g.ledger.Ban(accounts...)
		g.emit(model.Event{Kind: model.EventAdmin, Op: string(OpBan), Caller: caller, Count: len(accounts)})
		return nil
	}, logrus.Fields{"accounts": len(accounts)})
}

func (g *Gateway) Unban(caller common.Address, accounts ...common.Address) error {
	return g.exec(OpUnban, caller, func() error {
		g.ledger.Unban(accounts...)
		g.emit(model.Event{Kind: model.EventAdmin, Op: string(OpUnban), Caller: caller, Count: len(accounts)})
		return nil
	}, logrus.Fields{"accounts": len(accounts)})
}

// SetAssetConfig adds or updates a supported asset. feed must be set exactly
// when cfg names a price feed.
func (g *Gateway) SetAssetConfig(ctx context.Context, caller common.Address, cfg model.AssetConfig, feed asset.PriceSource) error {
	return g.exec(OpSetAssetConfig, caller, func() error {
		if err := g.registry.SetAssetConfig(ctx, cfg, feed); err != nil {
			return err
		}
		g.emit(model.Event{Kind: model.EventAdmin, Op: string(OpSetAssetConfig), Caller: caller, Asset: cfg.Asset})
		return nil
	}, logrus.Fields{"asset": cfg.Asset.Hex(), "feed": cfg.PriceFeed.Hex()})
}

func (g *Gateway) RemoveAsset(caller, assetAddr common.Address) error {
	return g.exec(OpRemoveAsset, caller, func() error {
		if err := g.registry.RemoveAsset(assetAddr); err != nil {
			return err
		}
		g.emit(model.Event{Kind: model.EventAdmin, Op: string(OpRemoveAsset), Caller: caller, Asset: assetAddr})
		return nil
	}, logrus.Fields{"asset": assetAddr.Hex()})
}

func (g *Gateway) SetMaxStalePeriod(caller common.Address, seconds uint64) error {
	return g.exec(OpSetMaxStalePeriod, caller, func() error {
		g.registry.SetMaxStalePeriod(seconds)
		g.adminEvent(OpSetMaxStalePeriod, caller, new(big.Int).SetUint64(seconds))
		return nil
	}, logrus.Fields{"seconds": seconds})
}

// Funder is implemented by simulated transports that can credit balances.
type Funder interface {
	Fund(asset, to common.Address, amount *big.Int) error
}

// Fund credits amount of asset to an account on a simulated transport.
func (g *Gateway) Fund(caller, assetAddr, to common.Address, amount *big.Int) error {
	return g.exec(OpFund, caller, func() error {
		f, ok := g.assets.(Funder)
		if !ok {
			return model.NewError(model.CodeInvalidInput, "asset transport cannot be funded")
		}
		if err := f.Fund(assetAddr, to, amount); err != nil {
			return err
		}
		g.emit(model.Event{Kind: model.EventAdmin, Op: string(OpFund), Caller: caller, To: to, Asset: assetAddr, Amount: model.Copy(amount)})
		return nil
	}, logrus.Fields{"asset": assetAddr.Hex(), "to": to.Hex(), "amount": amount})
}
