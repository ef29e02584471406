package core

import (
	"context"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/sirupsen/logrus"

	"usdo-ledger/core/model"
)

// PreviewRedeem quotes what burning amount ledger units pays out in the
// settlement asset.
func (g *Gateway) PreviewRedeem(ctx context.Context, amount *big.Int) (model.RedeemQuote, error) {
	var (
		quote model.RedeemQuote
		err   error
	)
	g.view(func() {
		quote, err = g.quoteRedeem(ctx, amount)
	})
	return quote, err
}

// quoteRedeem converts to the settlement asset and charges the redeem fee on
// the result. The receiver always gets exactly NetAmount.
func (g *Gateway) quoteRedeem(ctx context.Context, amount *big.Int) (model.RedeemQuote, error) {
	if !model.IsPositive(amount) {
		return model.RedeemQuote{}, model.NewError(model.CodeInvalidInput, "redeem amount must be positive")
	}
	underlying, err := g.registry.ConvertToUnderlying(ctx, g.cfg.Settlement, amount)
	if err != nil {
		return model.RedeemQuote{}, err
	}
	fee := model.BpsOf(underlying, g.redeemFeeBps)
	return model.RedeemQuote{
		Underlying: underlying,
		Fee:        fee,
		NetAmount:  new(big.Int).Sub(underlying, fee),
	}, nil
}

// InstantRedeemSelf burns amount from caller and pays caller right away.
func (g *Gateway) InstantRedeemSelf(ctx context.Context, caller common.Address, amount *big.Int) (model.RedeemQuote, error) {
	return g.InstantRedeem(ctx, caller, caller, amount)
}

// InstantRedeem burns amount from caller and pays to right away, selling
// reserve to the venue when the treasury is short.
func (g *Gateway) InstantRedeem(ctx context.Context, caller, to common.Address, amount *big.Int) (model.RedeemQuote, error) {
	var quote model.RedeemQuote
	err := g.exec(OpInstantRedeem, caller, func() (err error) {
		quote, err = g.redeemNow(ctx, caller, to, amount, true)
		return err
	}, logrus.Fields{"to": to.Hex(), "amount": amount})
	return quote, err
}

// Redeem is the manual path: it settles from treasury liquidity only and
// fails when the treasury cannot cover it.
func (g *Gateway) Redeem(ctx context.Context, caller, to common.Address, amount *big.Int) (model.RedeemQuote, error) {
	var quote model.RedeemQuote
	err := g.exec(OpRedeem, caller, func() (err error) {
		quote, err = g.redeemNow(ctx, caller, to, amount, false)
		return err
	}, logrus.Fields{"to": to.Hex(), "amount": amount})
	return quote, err
}

func (g *Gateway) redeemNow(ctx context.Context, caller, to common.Address, amount *big.Int, useVenue bool) (model.RedeemQuote, error) {
	if err := g.checkRedeemable(caller, to); err != nil {
		return model.RedeemQuote{}, err
	}
	quote, err := g.quoteRedeem(ctx, amount)
	if err != nil {
		return model.RedeemQuote{}, err
	}
	now := g.now()
	if err := g.limiter.CheckAndConsumeRedeem(now, amount); err != nil {
		return model.RedeemQuote{}, err
	}
	if err := g.ledger.Burn(caller, amount); err != nil {
		return model.RedeemQuote{}, err
	}

	available, err := g.treasuryLiquidity(ctx)
	if err != nil {
		return model.RedeemQuote{}, err
	}
	if available.Cmp(quote.Underlying) < 0 {
		if !useVenue {
			return model.RedeemQuote{}, model.NewError(model.CodeInsufficientLiquidity, "treasury holds %s, redemption needs %s", available, quote.Underlying)
		}
		if err := g.coverShortfall(ctx, new(big.Int).Sub(quote.Underlying, available)); err != nil {
			return model.RedeemQuote{}, err
		}
	}

	if err := g.payOut(ctx, to, quote); err != nil {
		return model.RedeemQuote{}, err
	}

	kind := model.EventInstantRedeem
	if !useVenue {
		kind = model.EventManualRedeem
	}
	g.emit(model.Event{
		Kind:      kind,
		Caller:    caller,
		From:      caller,
		To:        to,
		Asset:     g.cfg.Settlement,
		Amount:    model.Copy(quote.NetAmount),
		Ledger:    model.Copy(amount),
		Fee:       model.Copy(quote.Fee),
		Timestamp: now,
	})
	return quote, nil
}

// maxQuoteRounds bounds how often the reserve amount is scaled up until the
// venue quote, net of its fee, covers the shortfall.
const maxQuoteRounds = 8

// coverShortfall sells enough reserve to the venue for the treasury to hold
// at least shortfall more settlement asset. The first reserve amount comes
// from the registry price rounding up and is then grossed up against the
// venue's own quote, so venue fees and price drift are covered.
func (g *Gateway) coverShortfall(ctx context.Context, shortfall *big.Int) error {
	if g.venue == nil || g.cfg.Reserve == (common.Address{}) {
		return model.NewError(model.CodeInsufficientLiquidity, "treasury short by %s and no venue is configured", shortfall)
	}
	paused, err := g.venue.CheckPaused(ctx)
	if err != nil {
		return err
	}
	if paused {
		return model.NewError(model.CodeInsufficientLiquidity, "treasury short by %s and the venue is paused", shortfall)
	}
	liq, err := g.venue.CheckLiquidity(ctx)
	if err != nil {
		return err
	}
	if liq.Available == nil || liq.Available.Cmp(shortfall) < 0 {
		return model.NewError(model.CodeInsufficientLiquidity, "venue holds %v, treasury short by %s", liq.Available, shortfall)
	}

	reserve, err := g.reserveFor(ctx, shortfall)
	if err != nil {
		return err
	}
	res, err := g.venue.RedeemFor(ctx, g.cfg.Treasury, reserve)
	if err != nil {
		return err
	}
	if res.Payout == nil || res.Payout.Cmp(shortfall) < 0 {
		return model.NewError(model.CodeInsufficientLiquidity, "venue paid %v for a shortfall of %s", res.Payout, shortfall)
	}

	g.log.WithFields(logrus.Fields{
		"reserve":  reserve,
		"payout":   res.Payout,
		"fee":      res.Fee,
		"price":    res.Price,
		"shortage": shortfall,
	}).Info("venue covered treasury shortfall")
	g.emit(model.Event{
		Kind:   model.EventVenueRedeem,
		From:   g.cfg.Treasury,
		To:     g.cfg.Treasury,
		Asset:  g.cfg.Reserve,
		Amount: model.Copy(reserve),
		Fee:    model.Copy(res.Fee),
	})
	return nil
}

// reserveFor finds a reserve amount whose venue payout covers shortfall.
func (g *Gateway) reserveFor(ctx context.Context, shortfall *big.Int) (*big.Int, error) {
	value, err := g.registry.ConvertFromUnderlying(ctx, g.cfg.Settlement, shortfall)
	if err != nil {
		return nil, err
	}
	reserve, err := g.registry.ConvertToUnderlyingCeil(ctx, g.cfg.Reserve, value)
	if err != nil {
		return nil, err
	}
	if reserve.Sign() == 0 {
		reserve.SetInt64(1)
	}
	for i := 0; i < maxQuoteRounds; i++ {
		q, err := g.venue.Quote(ctx, reserve)
		if err != nil {
			return nil, err
		}
		if q.Payout != nil && q.Payout.Cmp(shortfall) >= 0 {
			return reserve, nil
		}
		if q.Payout == nil || q.Payout.Sign() == 0 {
			return nil, model.NewError(model.CodeInsufficientLiquidity, "venue quotes nothing for %s reserve", reserve)
		}
		scaled := model.MulDivUp(reserve, shortfall, q.Payout)
		if scaled.Cmp(reserve) <= 0 {
			scaled.Add(reserve, big.NewInt(1))
		}
		reserve = scaled
	}
	return nil, model.NewError(model.CodeInsufficientLiquidity, "venue quote does not cover a shortfall of %s", shortfall)
}

func (g *Gateway) payOut(ctx context.Context, to common.Address, quote model.RedeemQuote) error {
	if quote.NetAmount.Sign() > 0 {
		if err := g.assets.Transfer(ctx, g.cfg.Settlement, g.cfg.Treasury, to, quote.NetAmount); err != nil {
			return err
		}
	}
	if quote.Fee.Sign() > 0 {
		if err := g.assets.Transfer(ctx, g.cfg.Settlement, g.cfg.Treasury, g.cfg.FeeTo, quote.Fee); err != nil {
			return err
		}
	}
	return nil
}

func (g *Gateway) treasuryLiquidity(ctx context.Context) (*big.Int, error) {
	return g.assets.BalanceOf(ctx, g.cfg.Settlement, g.cfg.Treasury)
}

func (g *Gateway) checkRedeemable(caller, to common.Address) error {
	if g.redeemPaused {
		return model.NewError(model.CodePaused, "redeem is paused")
	}
	return g.checkKyc(caller, to)
}

// RedeemRequest burns amount from caller and queues the payout to to.
func (g *Gateway) RedeemRequest(ctx context.Context, caller, to common.Address, amount *big.Int) (model.RedemptionRequest, error) {
	var req model.RedemptionRequest
	err := g.exec(OpRedeemRequest, caller, func() error {
		if err := g.checkRedeemable(caller, to); err != nil {
			return err
		}
		if !model.IsPositive(amount) {
			return model.NewError(model.CodeInvalidInput, "redeem amount must be positive")
		}
		// the settlement asset must still be convertible when the entry is queued
		if _, err := g.registry.ConvertToUnderlying(ctx, g.cfg.Settlement, amount); err != nil {
			return err
		}
		now := g.now()
		if err := g.limiter.CheckAndConsumeRedeem(now, amount); err != nil {
			return err
		}
		if err := g.ledger.Burn(caller, amount); err != nil {
			return err
		}
		req = g.queue.Enqueue(caller, to, amount, now)
		g.emit(model.Event{
			Kind:      model.EventRedeemRequested,
			Caller:    caller,
			From:      caller,
			To:        to,
			ID:        req.ID,
			Ledger:    model.Copy(amount),
			Timestamp: now,
		})
		return nil
	}, logrus.Fields{"to": to.Hex(), "amount": amount})
	return req, err
}

// ProcessRedemptionQueue pays queued requests in order from treasury
// liquidity. count 0 processes the whole queue. Running out of liquidity
// stops the batch without failing it.
func (g *Gateway) ProcessRedemptionQueue(ctx context.Context, caller common.Address, count int) (model.BatchResult, error) {
	var result model.BatchResult
	err := g.exec(OpProcessQueue, caller, func() error {
		result = model.BatchResult{TotalLedger: new(big.Int), TotalOut: new(big.Int), TotalFee: new(big.Int)}
		done, err := g.queue.Process(count, func(req model.RedemptionRequest) (bool, error) {
			quote, err := g.quoteRedeem(ctx, req.Amount)
			if err != nil {
				return false, err
			}
			available, err := g.treasuryLiquidity(ctx)
			if err != nil {
				return false, err
			}
			if quote.Underlying.Cmp(available) > 0 {
				return false, nil
			}
			if err := g.payOut(ctx, req.Receiver, quote); err != nil {
				return false, err
			}
			result.TotalLedger.Add(result.TotalLedger, req.Amount)
			result.TotalOut.Add(result.TotalOut, quote.NetAmount)
			result.TotalFee.Add(result.TotalFee, quote.Fee)
			return true, nil
		})
		if err != nil {
			return err
		}
		result.Processed = len(done)
		result.Requests = done
		result.Remaining = g.queue.Len()
		if result.Processed > 0 {
			g.emit(model.Event{
				Kind:   model.EventRedemptionProcessed,
				Caller: caller,
				Asset:  g.cfg.Settlement,
				Amount: model.Copy(result.TotalOut),
				Ledger: model.Copy(result.TotalLedger),
				Fee:    model.Copy(result.TotalFee),
				Count:  result.Processed,
			})
		}
		return nil
	}, logrus.Fields{"count": count})
	return result, err
}

// Cancel drops count requests from the head of the queue and mints their
// amounts back to the senders.
func (g *Gateway) Cancel(caller common.Address, count int) ([]model.RedemptionRequest, error) {
	var out []model.RedemptionRequest
	err := g.exec(OpCancel, caller, func() (err error) {
		total := new(big.Int)
		out, err = g.queue.Cancel(count, func(req model.RedemptionRequest) error {
			total.Add(total, req.Amount)
			return g.ledger.Mint(req.Sender, req.Amount)
		})
		if err != nil {
			return err
		}
		g.emit(model.Event{
			Kind:   model.EventRedemptionCancelled,
			Caller: caller,
			Ledger: total,
			Count:  len(out),
		})
		return nil
	}, logrus.Fields{"count": count})
	return out, err
}
