package core

import (
	"context"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/sirupsen/logrus"

	"usdo-ledger/core/model"
)

// InstantMint takes amount of asset from caller and issues ledger units to
// to. Both parties must be on the allow list.
func (g *Gateway) InstantMint(ctx context.Context, caller, assetAddr, to common.Address, amount *big.Int) (model.MintQuote, error) {
	var quote model.MintQuote
	err := g.exec(OpInstantMint, caller, func() (err error) {
		quote, err = g.instantMint(ctx, caller, assetAddr, to, amount, false)
		return err
	}, logrus.Fields{"asset": assetAddr.Hex(), "to": to.Hex(), "amount": amount})
	return quote, err
}

// InstantMintAndWrap mints into custody and credits to with the minted
// shares as a wrapped, non-rebasing balance.
func (g *Gateway) InstantMintAndWrap(ctx context.Context, caller, assetAddr, to common.Address, amount *big.Int) (model.MintQuote, error) {
	var quote model.MintQuote
	err := g.exec(OpInstantMintAndWrap, caller, func() (err error) {
		quote, err = g.instantMint(ctx, caller, assetAddr, to, amount, true)
		return err
	}, logrus.Fields{"asset": assetAddr.Hex(), "to": to.Hex(), "amount": amount})
	return quote, err
}

// PreviewMint quotes a mint of amount of asset without touching state.
func (g *Gateway) PreviewMint(ctx context.Context, assetAddr common.Address, amount *big.Int) (model.MintQuote, error) {
	var (
		quote model.MintQuote
		err   error
	)
	g.view(func() {
		quote, err = g.quoteMint(ctx, assetAddr, amount)
	})
	return quote, err
}

// quoteMint charges the fee on the deposit, values the rest in ledger units
// and scales it by curr/next so that the holder reaches the full value only
// once the next multiplier advance lands.
func (g *Gateway) quoteMint(ctx context.Context, assetAddr common.Address, amount *big.Int) (model.MintQuote, error) {
	if !model.IsPositive(amount) {
		return model.MintQuote{}, model.NewError(model.CodeInvalidInput, "mint amount must be positive")
	}
	fee := model.BpsOf(amount, g.mintFeeBps)
	net := new(big.Int).Sub(amount, fee)

	value, err := g.registry.ConvertFromUnderlying(ctx, assetAddr, net)
	if err != nil {
		return model.MintQuote{}, err
	}
	curr, next := g.scheduler.Current()
	return model.MintQuote{
		NetAmount:   net,
		Fee:         fee,
		LedgerValue: value,
		Issued:      model.MulDiv(value, curr, next),
	}, nil
}

func (g *Gateway) instantMint(ctx context.Context, caller, assetAddr, to common.Address, amount *big.Int, wrapped bool) (model.MintQuote, error) {
	if g.mintPaused {
		return model.MintQuote{}, model.NewError(model.CodePaused, "mint is paused")
	}
	if err := g.checkKyc(caller, to); err != nil {
		return model.MintQuote{}, err
	}

	quote, err := g.quoteMint(ctx, assetAddr, amount)
	if err != nil {
		return model.MintQuote{}, err
	}
	if err := g.checkMintMinimum(caller, quote.LedgerValue); err != nil {
		return model.MintQuote{}, err
	}
	if quote.Issued.Sign() == 0 {
		return model.MintQuote{}, model.NewError(model.CodeMintLessThanMinimum, "mint of %s issues nothing", amount)
	}
	now := g.now()
	if err := g.limiter.CheckAndConsumeMint(now, quote.Issued); err != nil {
		return model.MintQuote{}, err
	}
	if supply := new(big.Int).Add(g.ledger.TotalSupply(), quote.Issued); g.supplyCap != nil && supply.Cmp(g.supplyCap) > 0 {
		return model.MintQuote{}, model.NewError(model.CodeTotalSupplyCapExceeded, "supply would reach %s, cap %s", supply, g.supplyCap)
	}

	if quote.Fee.Sign() > 0 {
		if err := g.assets.TransferFrom(ctx, assetAddr, caller, g.cfg.FeeTo, quote.Fee); err != nil {
			return model.MintQuote{}, err
		}
	}
	if err := g.assets.TransferFrom(ctx, assetAddr, caller, g.cfg.Treasury, quote.NetAmount); err != nil {
		return model.MintQuote{}, err
	}

	if wrapped {
		shares := g.ledger.ConvertToShares(quote.Issued)
		if err := g.ledger.Mint(g.wrapper.Custody(), quote.Issued); err != nil {
			return model.MintQuote{}, err
		}
		g.wrapper.Credit(to, shares)
		quote.Wrapped = shares
	} else if err := g.ledger.Mint(to, quote.Issued); err != nil {
		return model.MintQuote{}, err
	}

	g.emit(model.Event{
		Kind:      model.EventInstantMint,
		Caller:    caller,
		From:      caller,
		To:        to,
		Asset:     assetAddr,
		Amount:    model.Copy(amount),
		Ledger:    model.Copy(quote.Issued),
		Fee:       model.Copy(quote.Fee),
		Timestamp: now,
	})
	return quote, nil
}

// checkMintMinimum applies the first-deposit threshold to an account's first
// mint and the regular minimum afterwards.
func (g *Gateway) checkMintMinimum(caller common.Address, value *big.Int) error {
	if !g.firstDeposit.Has(caller) {
		if value.Cmp(model.Copy(g.firstDepositAmount)) < 0 {
			return model.NewError(model.CodeFirstDepositLessThanRequired, "%s below first deposit %s", value, model.Copy(g.firstDepositAmount))
		}
		putMember(g.journal, g.firstDeposit, caller)
		return nil
	}
	if minimum := g.limiter.MintMinimum(); value.Cmp(minimum) < 0 {
		return model.NewError(model.CodeMintLessThanMinimum, "%s below minimum %s", value, minimum)
	}
	return nil
}

func (g *Gateway) checkKyc(accounts ...common.Address) error {
	for _, a := range accounts {
		if !g.kyc.Has(a) {
			return model.NewError(model.CodeNotInAllowList, "%s", a.Hex())
		}
	}
	return nil
}
