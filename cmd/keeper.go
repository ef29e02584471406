package main

import (
	"context"
	"errors"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/sirupsen/logrus"

	"usdo-ledger/core"
	"usdo-ledger/core/model"
)

// keeper advances the multiplier once a day and drains the redemption queue
// while liquidity lasts. Its account needs the operator and maintainer roles.
type keeper struct {
	gw       *core.Gateway
	account  common.Address
	interval time.Duration
	log      *logrus.Entry
}

func newKeeper(gw *core.Gateway, account common.Address, interval time.Duration) *keeper {
	return &keeper{
		gw:       gw,
		account:  account,
		interval: interval,
		log:      logrus.WithFields(logrus.Fields{"component": "keeper", "account": account.Hex()}),
	}
}

func (k *keeper) run(ctx context.Context) error {
	ticker := time.NewTicker(k.interval)
	defer ticker.Stop()

	for {
		k.tick(ctx)
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}
	}
}

// tick reports whether anything changed. Rejected operations are logged and
// retried on the next tick; the gateway persists whatever commits.
func (k *keeper) tick(ctx context.Context) (changed bool) {
	if k.gw.AdvanceDue() {
		m, err := k.gw.AdvanceMultiplier(k.account)
		switch {
		case err == nil:
			k.log.Infof("multiplier advanced to %s", m)
			changed = true
		case errors.Is(err, model.ErrTooEarly):
		default:
			k.log.WithError(err).Warn("advance multiplier")
		}
	}

	if k.gw.GetRedemptionQueueLength() > 0 {
		res, err := k.gw.ProcessRedemptionQueue(ctx, k.account, 0)
		if err != nil {
			k.log.WithError(err).Warn("process redemption queue")
		} else if res.Processed > 0 {
			k.log.Infof("processed %d redemptions, %d left", res.Processed, res.Remaining)
			changed = true
		}
	}
	return changed
}
