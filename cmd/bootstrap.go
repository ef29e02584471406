package main

import (
	"context"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/sirupsen/logrus"

	"usdo-ledger/chain"
	"usdo-ledger/config"
	"usdo-ledger/core"
	"usdo-ledger/core/asset"
	"usdo-ledger/core/model"
	"usdo-ledger/core/transport"
	"usdo-ledger/core/txn"
	"usdo-ledger/core/venue"
	"usdo-ledger/store"
)

const venuePriceDecimals = 8

// recentEvents is how many committed events GET /events can list.
const recentEvents = 1000

// node is a running engine with everything it was built from.
type node struct {
	cfg    *config.Config
	gw     *core.Gateway
	mem    *transport.Memory
	store  *store.Store
	events *core.MemorySink
	bc     *chain.BlockchainClient
	head   *chain.HeadClock
	feeds  asset.FeedResolver
	now    func() uint64
}

// newNode builds the engine from cfg and restores the latest snapshot. A
// fresh store is bootstrapped from the config and saved.
func newNode(ctx context.Context, cfg *config.Config) (*node, error) {
	n := &node{cfg: cfg, now: core.WallClock}

	if cfg.ChainURL != "" {
		bc, err := chain.NewBlockchainClient(cfg.ChainURL)
		if err != nil {
			return nil, fmt.Errorf("dial %s: %w", cfg.ChainURL, err)
		}
		n.bc = bc
	}
	if cfg.Clock == "chain" {
		n.head = chain.NewHeadClock(n.bc, cfg.ClockInterval)
		if err := n.head.Poll(ctx); err != nil {
			logrus.Warnf("read chain head: %v, using wall time until the next poll", err)
		}
		n.now = n.head.Now
	}
	n.feeds = n.resolver()

	db, err := store.Open(cfg.DataDir, cfg.History)
	if err != nil {
		n.close()
		return nil, err
	}
	n.store = db

	if err := n.build(ctx); err != nil {
		n.close()
		return nil, err
	}
	return n, nil
}

func (n *node) close() {
	if n.store != nil {
		if err := n.store.Close(); err != nil {
			logrus.Errorf("close store: %v", err)
		}
	}
	if n.bc != nil {
		n.bc.Close()
	}
}

func (n *node) build(ctx context.Context) error {
	gcfg, err := n.cfg.Gateway()
	if err != nil {
		return err
	}

	j := txn.New()
	n.mem = transport.NewMemory(j)
	for _, a := range n.cfg.Assets {
		n.mem.Register(config.Address(a.Address), a.Decimals)
	}

	log := logrus.WithField("component", "gateway")
	n.events = core.NewMemorySink(recentEvents)
	deps := core.Deps{
		Assets:  n.mem,
		Journal: j,
		Clock:   n.now,
		Sink:    core.Tee{core.LogSink{Entry: log}, n.events},
		Logger:  log,
		Store:   n.store,
	}
	if n.cfg.Venue.Enabled {
		price, err := config.Units(n.cfg.Venue.Price, venuePriceDecimals)
		if err != nil {
			return fmt.Errorf("venue price: %w", err)
		}
		deps.Venue = venue.NewTeller(venue.TellerConfig{
			Account:       config.Address(n.cfg.Venue.Account),
			Owner:         gcfg.Treasury,
			Reserve:       gcfg.Reserve,
			Settlement:    gcfg.Settlement,
			Price:         price,
			PriceDecimals: venuePriceDecimals,
			FeeBps:        n.cfg.Venue.FeeBps,
		}, n.mem)
	}

	if n.gw, err = core.New(gcfg, deps); err != nil {
		return err
	}

	st, found, err := n.store.Load()
	if err != nil {
		return fmt.Errorf("load snapshot: %w", err)
	}
	if found {
		if err := n.gw.Import(st, n.feeds); err != nil {
			return fmt.Errorf("restore snapshot: %w", err)
		}
		logrus.Infof("restored snapshot, supply %s, queue %d", n.gw.TotalSupply(), n.gw.GetRedemptionQueueLength())
		return nil
	}

	if err := n.bootstrap(ctx, gcfg.Admin); err != nil {
		return fmt.Errorf("bootstrap: %w", err)
	}
	logrus.Infof("bootstrapped %d assets from config", len(n.cfg.Assets))
	return n.store.Save(n.gw.Export())
}

// bootstrap applies the configured roles, assets and allow list as the admin.
func (n *node) bootstrap(ctx context.Context, admin common.Address) error {
	for name, accounts := range n.cfg.Roles {
		role := model.Role(name)
		for _, a := range config.Addresses(accounts) {
			if err := n.gw.GrantRole(admin, role, a); err != nil {
				return fmt.Errorf("grant %s to %s: %w", name, a.Hex(), err)
			}
		}
	}

	for _, a := range n.cfg.Assets {
		cfg := model.AssetConfig{
			Asset:       config.Address(a.Address),
			IsSupported: true,
			PriceFeed:   config.Address(a.Feed),
		}
		var feed asset.PriceSource
		if cfg.HasFeed() {
			var err error
			if feed, err = n.feeds(cfg.PriceFeed); err != nil {
				return err
			}
		}
		if err := n.gw.SetAssetConfig(ctx, admin, cfg, feed); err != nil {
			return fmt.Errorf("configure %s: %w", a.Address, err)
		}
	}

	if len(n.cfg.Kyc) > 0 {
		return n.gw.GrantKycInBulk(admin, config.Addresses(n.cfg.Kyc))
	}
	return nil
}

// resolver serves configured fixed prices first and falls back to on-chain
// aggregators.
func (n *node) resolver() asset.FeedResolver {
	fixed := make(map[common.Address]*asset.FixedPrice)
	for _, a := range n.cfg.Assets {
		if a.Feed == "" || a.Price == "" {
			continue
		}
		price, err := config.Units(a.Price, a.PriceDecimals)
		if err != nil {
			logrus.Warnf("asset %s price: %v", a.Address, err)
			continue
		}
		fixed[config.Address(a.Feed)] = &asset.FixedPrice{
			Price:        price,
			FeedDecimals: a.PriceDecimals,
			Now:          n.now,
		}
	}

	var onchain asset.FeedResolver
	if n.bc != nil {
		onchain = chain.FeedResolver(n.bc)
	}
	return func(feed common.Address) (asset.PriceSource, error) {
		if f, ok := fixed[feed]; ok {
			return f, nil
		}
		if onchain == nil {
			return nil, fmt.Errorf("feed %s has no fixed price and chain_url is empty", feed.Hex())
		}
		return onchain(feed)
	}
}
