package core

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/sirupsen/logrus"

	"usdo-ledger/core/model"
)

// Transfer moves amount of caller's rebasing balance to to.
func (g *Gateway) Transfer(caller, to common.Address, amount *big.Int) error {
	return g.exec(OpTransfer, caller, func() error {
		if err := g.ledger.Transfer(caller, to, amount); err != nil {
			return err
		}
		g.emit(model.Event{Kind: model.EventTransfer, Caller: caller, From: caller, To: to, Ledger: model.Copy(amount)})
		return nil
	}, logrus.Fields{"to": to.Hex(), "amount": amount})
}

// Wrap turns amount of caller's rebasing balance into wrapped units for to.
func (g *Gateway) Wrap(caller, to common.Address, amount *big.Int) (*big.Int, error) {
	var units *big.Int
	err := g.exec(OpWrap, caller, func() (err error) {
		units, err = g.wrapper.Wrap(caller, to, amount)
		if err != nil {
			return err
		}
		g.emit(model.Event{Kind: model.EventWrap, Caller: caller, From: caller, To: to, Amount: model.Copy(units), Ledger: model.Copy(amount)})
		return nil
	}, logrus.Fields{"to": to.Hex(), "amount": amount})
	return units, err
}

// Unwrap releases the current value of units wrapped by caller to to.
func (g *Gateway) Unwrap(caller, to common.Address, units *big.Int) (*big.Int, error) {
	var amount *big.Int
	err := g.exec(OpUnwrap, caller, func() (err error) {
		amount, err = g.wrapper.Unwrap(caller, to, units)
		if err != nil {
			return err
		}
		g.emit(model.Event{Kind: model.EventUnwrap, Caller: caller, From: caller, To: to, Amount: model.Copy(units), Ledger: model.Copy(amount)})
		return nil
	}, logrus.Fields{"to": to.Hex(), "units": units})
	return amount, err
}
