package venue

import (
	"context"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"

	"usdo-ledger/core/model"
	"usdo-ledger/core/transport"
)

type TellerConfig struct {
	Account       common.Address // where the venue keeps its settlement liquidity
	Owner         common.Address // seller of the reserve asset, usually the treasury
	Reserve       common.Address
	Settlement    common.Address
	Price         *big.Int // settlement per reserve, PriceDecimals
	PriceDecimals uint8
	FeeBps        uint64
}

// Teller is an in-process venue that buys the reserve asset at a fixed price
// and pays out of its own settlement balance.
type Teller struct {
	cfg    TellerConfig
	assets transport.Transport
	paused bool
}

func NewTeller(cfg TellerConfig, assets transport.Transport) *Teller {
	return &Teller{cfg: cfg, assets: assets}
}

func (t *Teller) SetPaused(paused bool) {
	t.paused = paused
}

func (t *Teller) SetPrice(price *big.Int) {
	t.cfg.Price = model.Copy(price)
}

func (t *Teller) Quote(ctx context.Context, amount *big.Int) (Result, error) {
	if !model.IsPositive(amount) {
		return Result{}, model.NewError(model.CodeInvalidInput, "venue amount must be positive")
	}
	gross, err := t.quote(ctx, amount)
	if err != nil {
		return Result{}, err
	}
	fee := model.BpsOf(gross, t.cfg.FeeBps)
	return Result{Payout: gross.Sub(gross, fee), Fee: fee, Price: model.Copy(t.cfg.Price)}, nil
}

// RedeemFor takes amount of reserve from the owner and pays user.
func (t *Teller) RedeemFor(ctx context.Context, user common.Address, amount *big.Int) (Result, error) {
	if t.paused {
		return Result{}, model.NewError(model.CodePaused, "venue is paused")
	}
	res, err := t.Quote(ctx, amount)
	if err != nil {
		return Result{}, err
	}
	payout := res.Payout

	available, err := t.assets.BalanceOf(ctx, t.cfg.Settlement, t.cfg.Account)
	if err != nil {
		return Result{}, err
	}
	if available.Cmp(payout) < 0 {
		return Result{}, model.NewError(model.CodeInsufficientLiquidity, "venue holds %s, payout %s", available, payout)
	}

	if err := t.assets.TransferFrom(ctx, t.cfg.Reserve, t.cfg.Owner, t.cfg.Account, amount); err != nil {
		return Result{}, fmt.Errorf("venue take reserve: %w", err)
	}
	if err := t.assets.Transfer(ctx, t.cfg.Settlement, t.cfg.Account, user, payout); err != nil {
		return Result{}, fmt.Errorf("venue pay out: %w", err)
	}

	return res, nil
}

func (t *Teller) CheckLiquidity(ctx context.Context) (Liquidity, error) {
	available, err := t.assets.BalanceOf(ctx, t.cfg.Settlement, t.cfg.Account)
	if err != nil {
		return Liquidity{}, err
	}
	reserve, err := t.assets.BalanceOf(ctx, t.cfg.Reserve, t.cfg.Account)
	if err != nil {
		return Liquidity{}, err
	}
	return Liquidity{Available: available, Reserve: reserve}, nil
}

func (t *Teller) CheckPaused(context.Context) (bool, error) {
	return t.paused, nil
}

// quote converts a reserve amount to settlement units, rounding down.
func (t *Teller) quote(ctx context.Context, amount *big.Int) (*big.Int, error) {
	rd, err := t.assets.Decimals(ctx, t.cfg.Reserve)
	if err != nil {
		return nil, err
	}
	sd, err := t.assets.Decimals(ctx, t.cfg.Settlement)
	if err != nil {
		return nil, err
	}
	num := new(big.Int).Mul(amount, t.cfg.Price)
	num.Mul(num, model.Pow10(sd))
	den := new(big.Int).Mul(model.Pow10(t.cfg.PriceDecimals), model.Pow10(rd))
	return num.Quo(num, den), nil
}
