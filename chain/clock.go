package chain

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/sirupsen/logrus"

	"usdo-ledger/core/model"
)

type HeadReader interface {
	LatestHead(ctx context.Context) (model.ChainHead, error)
}

// HeadClock tracks the timestamp of the latest block so the engine can run
// on chain time. Until the first head arrives it falls back to wall time.
type HeadClock struct {
	reader   HeadReader
	interval time.Duration
	ts       atomic.Uint64
	number   atomic.Uint64
	wall     func() uint64
}

func NewHeadClock(reader HeadReader, interval time.Duration) *HeadClock {
	return &HeadClock{
		reader:   reader,
		interval: interval,
		wall:     func() uint64 { return uint64(time.Now().Unix()) },
	}
}

func (c *HeadClock) Now() uint64 {
	if ts := c.ts.Load(); ts > 0 {
		return ts
	}
	return c.wall()
}

// Poll reads the head once. Timestamps never move backwards.
func (c *HeadClock) Poll(ctx context.Context) error {
	head, err := c.reader.LatestHead(ctx)
	if err != nil {
		return err
	}
	if head.Timestamp > c.ts.Load() {
		c.ts.Store(head.Timestamp)
		c.number.Store(head.Number)
	}
	return nil
}

func (c *HeadClock) Run(ctx context.Context) error {
	ticker := time.NewTicker(c.interval)
	defer ticker.Stop()

	for {
		if err := c.Poll(ctx); err != nil {
			logrus.Errorf("LatestHead err: %v", err)
		} else {
			logrus.Debugf("chain head %d at %d", c.number.Load(), c.ts.Load())
		}

		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}
	}
}
