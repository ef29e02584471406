// Package wrap keeps non-rebasing balances. One wrapped unit is one ledger
// share parked in the custody account, so a wrapped balance stays fixed
// while its ledger value grows with the multiplier.
package wrap

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"

	"usdo-ledger/core/model"
	"usdo-ledger/core/txn"
)

// Ledger is the part of the share ledger the wrapper moves value through.
type Ledger interface {
	ConvertToShares(amount *big.Int) *big.Int
	ConvertToAmount(shares *big.Int) *big.Int
	Transfer(from, to common.Address, amount *big.Int) error
}

type Wrapper struct {
	custody common.Address
	ledger  Ledger
	units   map[common.Address]*big.Int
	total   *big.Int

	rec txn.Recorder
}

func New(custody common.Address, ledger Ledger, rec txn.Recorder) *Wrapper {
	return &Wrapper{
		custody: custody,
		ledger:  ledger,
		units:   make(map[common.Address]*big.Int),
		total:   new(big.Int),
		rec:     txn.Or(rec),
	}
}

func (w *Wrapper) Custody() common.Address {
	return w.custody
}

func (w *Wrapper) BalanceOf(account common.Address) *big.Int {
	return model.Copy(w.units[account])
}

func (w *Wrapper) TotalWrapped() *big.Int {
	return model.Copy(w.total)
}

// Wrap moves amount of from's ledger balance into custody and credits to
// with the shares that moved.
func (w *Wrapper) Wrap(from, to common.Address, amount *big.Int) (*big.Int, error) {
	if !model.IsPositive(amount) {
		return nil, model.NewError(model.CodeInvalidInput, "wrap amount must be positive")
	}
	if to == (common.Address{}) {
		return nil, model.NewError(model.CodeInvalidInput, "wrap to zero address")
	}
	units := w.ledger.ConvertToShares(amount)
	if units.Sign() == 0 {
		return nil, model.NewError(model.CodeInvalidInput, "wrap amount %s is below one share", amount)
	}
	if err := w.ledger.Transfer(from, w.custody, amount); err != nil {
		return nil, err
	}
	w.Credit(to, units)
	return units, nil
}

// Unwrap burns units of from and releases their current ledger value to to.
// Rounding dust stays in custody.
func (w *Wrapper) Unwrap(from, to common.Address, units *big.Int) (*big.Int, error) {
	if !model.IsPositive(units) {
		return nil, model.NewError(model.CodeInvalidInput, "unwrap units must be positive")
	}
	held := w.BalanceOf(from)
	if held.Cmp(units) < 0 {
		return nil, model.NewError(model.CodeInsufficientBalance, "%s holds %s wrapped, unwrap needs %s", from.Hex(), held, units)
	}

	amount := w.ledger.ConvertToAmount(units)
	w.setUnits(from, held.Sub(held, units))
	w.setTotal(new(big.Int).Sub(w.total, units))
	if amount.Sign() > 0 {
		if err := w.ledger.Transfer(w.custody, to, amount); err != nil {
			return nil, err
		}
	}
	return amount, nil
}

// Credit adds units to account for shares the caller has already placed in
// custody.
func (w *Wrapper) Credit(account common.Address, units *big.Int) {
	w.setUnits(account, new(big.Int).Add(w.BalanceOf(account), units))
	w.setTotal(new(big.Int).Add(w.total, units))
}

func (w *Wrapper) setUnits(account common.Address, v *big.Int) {
	prev, existed := w.units[account]
	if v.Sign() == 0 {
		delete(w.units, account)
	} else {
		w.units[account] = v
	}
	w.rec.Record(func() {
		if existed {
			w.units[account] = prev
		} else {
			delete(w.units, account)
		}
	})
}

func (w *Wrapper) setTotal(v *big.Int) {
	prev := w.total
	w.total = v
	w.rec.Record(func() { w.total = prev })
}

type State struct {
	Units map[common.Address]*big.Int `json:"units"`
	Total *big.Int                    `json:"total"`
}

func (w *Wrapper) Export() State {
	st := State{Units: make(map[common.Address]*big.Int, len(w.units)), Total: model.Copy(w.total)}
	for a, v := range w.units {
		st.Units[a] = model.Copy(v)
	}
	return st
}

func (w *Wrapper) Import(st State) error {
	units := make(map[common.Address]*big.Int, len(st.Units))
	sum := new(big.Int)
	for a, v := range st.Units {
		if v == nil || v.Sign() < 0 {
			return model.NewError(model.CodeInvalidInput, "wrapped balance of %s is negative", a.Hex())
		}
		if v.Sign() == 0 {
			continue
		}
		units[a] = model.Copy(v)
		sum.Add(sum, v)
	}
	if sum.Cmp(model.Copy(st.Total)) != 0 {
		return model.NewError(model.CodeInvalidInput, "wrapped balances sum to %s, total is %s", sum, model.Copy(st.Total))
	}
	w.units = units
	w.total = sum
	return nil
}
