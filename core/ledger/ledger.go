// Package ledger keeps the share ledger of the rebasing token. Balances are
// never stored: balanceOf(a) = shares(a) * multiplier / 1e18, so a
// multiplier change rebases every holder at once.
package ledger

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/zyedidia/generic/mapset"

	"usdo-ledger/core/model"
	"usdo-ledger/core/txn"
)

type Ledger struct {
	shares      map[common.Address]*big.Int
	banned      mapset.Set[common.Address]
	totalShares *big.Int
	multiplier  *big.Int
	paused      bool

	rec txn.Recorder
}

func New(rec txn.Recorder) *Ledger {
	return &Ledger{
		shares:      make(map[common.Address]*big.Int),
		banned:      mapset.New[common.Address](),
		totalShares: new(big.Int),
		multiplier:  model.Copy(model.Base),
		rec:         txn.Or(rec),
	}
}

// ConvertToShares rounds down so that no value is created from rounding.
func (l *Ledger) ConvertToShares(amount *big.Int) *big.Int {
	return model.MulDiv(amount, model.Base, l.multiplier)
}

func (l *Ledger) ConvertToAmount(shares *big.Int) *big.Int {
	return model.MulDiv(shares, l.multiplier, model.Base)
}

func (l *Ledger) SharesOf(account common.Address) *big.Int {
	if s, ok := l.shares[account]; ok {
		return model.Copy(s)
	}
	return new(big.Int)
}

func (l *Ledger) BalanceOf(account common.Address) *big.Int {
	return l.ConvertToAmount(l.SharesOf(account))
}

func (l *Ledger) TotalShares() *big.Int {
	return model.Copy(l.totalShares)
}

func (l *Ledger) TotalSupply() *big.Int {
	return l.ConvertToAmount(l.totalShares)
}

func (l *Ledger) Multiplier() *big.Int {
	return model.Copy(l.multiplier)
}

func (l *Ledger) Paused() bool {
	return l.paused
}

func (l *Ledger) IsBanned(account common.Address) bool {
	return l.banned.Has(account)
}

func (l *Ledger) Mint(to common.Address, amount *big.Int) error {
	if err := l.checkAmount(amount); err != nil {
		return err
	}
	if to == (common.Address{}) {
		return model.NewError(model.CodeInvalidInput, "mint to zero address")
	}
	if l.paused {
		return model.ErrPaused
	}
	if l.banned.Has(to) {
		return model.NewError(model.CodeBannedAccount, "%s", to.Hex())
	}

	shares := l.ConvertToShares(amount)
	l.setShares(to, new(big.Int).Add(l.SharesOf(to), shares))
	l.setTotalShares(new(big.Int).Add(l.totalShares, shares))
	return nil
}

func (l *Ledger) Burn(from common.Address, amount *big.Int) error {
	if err := l.checkAmount(amount); err != nil {
		return err
	}
	if l.paused {
		return model.ErrPaused
	}
	if l.banned.Has(from) {
		return model.NewError(model.CodeBannedAccount, "%s", from.Hex())
	}

	shares := l.ConvertToShares(amount)
	held := l.SharesOf(from)
	if held.Cmp(shares) < 0 {
		return model.NewError(model.CodeInsufficientBalance, "%s has %s, burn needs %s", from.Hex(), l.ConvertToAmount(held), amount)
	}

	l.setShares(from, held.Sub(held, shares))
	l.setTotalShares(new(big.Int).Sub(l.totalShares, shares))
	return nil
}

// Transfer moves the shares worth amount at the current multiplier.
func (l *Ledger) Transfer(from, to common.Address, amount *big.Int) error {
	if err := l.checkAmount(amount); err != nil {
		return err
	}
	if to == (common.Address{}) {
		return model.NewError(model.CodeInvalidInput, "transfer to zero address")
	}
	if l.paused {
		return model.ErrPaused
	}
	for _, a := range []common.Address{from, to} {
		if l.banned.Has(a) {
			return model.NewError(model.CodeBannedAccount, "%s", a.Hex())
		}
	}

	shares := l.ConvertToShares(amount)
	held := l.SharesOf(from)
	if held.Cmp(shares) < 0 {
		return model.NewError(model.CodeInsufficientBalance, "%s has %s, transfer needs %s", from.Hex(), l.ConvertToAmount(held), amount)
	}
	if from == to {
		return nil
	}

	l.setShares(from, held.Sub(held, shares))
	l.setShares(to, new(big.Int).Add(l.SharesOf(to), shares))
	return nil
}

// UpdateMultiplier overwrites the multiplier. Monotonicity is not enforced
// here; the daily path only ever adds.
func (l *Ledger) UpdateMultiplier(multiplier *big.Int) error {
	if !model.IsPositive(multiplier) {
		return model.NewError(model.CodeInvalidInput, "multiplier must be positive")
	}
	l.setMultiplier(model.Copy(multiplier))
	return nil
}

func (l *Ledger) AddToMultiplier(delta *big.Int) error {
	if delta == nil || delta.Sign() < 0 {
		return model.NewError(model.CodeInvalidInput, "negative multiplier increment")
	}
	l.setMultiplier(new(big.Int).Add(l.multiplier, delta))
	return nil
}

func (l *Ledger) Pause() {
	l.setPaused(true)
}

func (l *Ledger) Unpause() {
	l.setPaused(false)
}

func (l *Ledger) Ban(accounts ...common.Address) {
	for _, a := range accounts {
		if l.banned.Has(a) {
			continue
		}
		a := a
		l.banned.Put(a)
		l.rec.Record(func() { l.banned.Remove(a) })
	}
}

func (l *Ledger) Unban(accounts ...common.Address) {
	for _, a := range accounts {
		if !l.banned.Has(a) {
			continue
		}
		a := a
		l.banned.Remove(a)
		l.rec.Record(func() { l.banned.Put(a) })
	}
}

func (l *Ledger) checkAmount(amount *big.Int) error {
	if amount == nil || amount.Sign() < 0 {
		return model.NewError(model.CodeInvalidInput, "amount must not be negative")
	}
	return nil
}

// setters below replace values instead of mutating them in place, so the
// pointers captured by undo steps stay valid.

func (l *Ledger) setShares(account common.Address, shares *big.Int) {
	prev, existed := l.shares[account]
	l.shares[account] = shares
	l.rec.Record(func() {
		if existed {
			l.shares[account] = prev
		} else {
			delete(l.shares, account)
		}
	})
}

func (l *Ledger) setTotalShares(total *big.Int) {
	prev := l.totalShares
	l.totalShares = total
	l.rec.Record(func() { l.totalShares = prev })
}

func (l *Ledger) setMultiplier(m *big.Int) {
	prev := l.multiplier
	l.multiplier = m
	l.rec.Record(func() { l.multiplier = prev })
}

func (l *Ledger) setPaused(paused bool) {
	prev := l.paused
	l.paused = paused
	l.rec.Record(func() { l.paused = prev })
}
