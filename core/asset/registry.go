// Package asset converts between underlying asset units and 18-decimal
// ledger units.
//
// Underlying to ledger rounds down, so the ledger is never over-credited.
// Ledger to underlying rounds the decimal scaling up, so the protocol never
// under-reserves, and rounds the price division down, so it never overpays.
package asset

import (
	"context"
	"fmt"
	"math/big"
	"sort"

	"github.com/ethereum/go-ethereum/common"

	"usdo-ledger/core/model"
	"usdo-ledger/core/txn"
)

type PriceSource interface {
	LatestRoundData(ctx context.Context) (model.RoundData, error)
	Decimals(ctx context.Context) (uint8, error)
}

// DecimalsReader reports the native decimals of an asset.
type DecimalsReader interface {
	Decimals(ctx context.Context, asset common.Address) (uint8, error)
}

// FeedResolver rebuilds a price source from its address on restore.
type FeedResolver func(feed common.Address) (PriceSource, error)

type entry struct {
	cfg  model.AssetConfig
	feed PriceSource
}

type Registry struct {
	assets   map[common.Address]entry
	maxStale uint64
	decimals DecimalsReader
	now      func() uint64

	rec txn.Recorder
}

func New(decimals DecimalsReader, now func() uint64, maxStale uint64, rec txn.Recorder) *Registry {
	return &Registry{
		assets:   make(map[common.Address]entry),
		maxStale: maxStale,
		decimals: decimals,
		now:      now,
		rec:      txn.Or(rec),
	}
}

// SetAssetConfig adds or updates a supported asset. Disabling goes through
// RemoveAsset only, so a config with IsSupported=false is always rejected.
func (r *Registry) SetAssetConfig(ctx context.Context, cfg model.AssetConfig, feed PriceSource) error {
	if !cfg.IsSupported {
		return model.NewError(model.CodeInvalidInput, "asset config upsert cannot disable %s", cfg.Asset.Hex())
	}
	if cfg.Asset == (common.Address{}) {
		return model.NewError(model.CodeInvalidInput, "zero asset address")
	}
	if cfg.HasFeed() != (feed != nil) {
		return model.NewError(model.CodeInvalidInput, "price feed address and source must be set together")
	}

	dec, err := r.decimals.Decimals(ctx, cfg.Asset)
	if err != nil {
		return fmt.Errorf("read decimals of %s: %w", cfg.Asset.Hex(), err)
	}
	if dec > model.LedgerDecimals {
		return model.NewError(model.CodeInvalidInput, "asset %s has %d decimals", cfg.Asset.Hex(), dec)
	}
	cfg.Decimals = dec

	r.put(entry{cfg: cfg, feed: feed})
	return nil
}

func (r *Registry) RemoveAsset(asset common.Address) error {
	e, ok := r.assets[asset]
	if !ok || !e.cfg.IsSupported {
		return model.NewError(model.CodeAssetNotSupported, "%s", asset.Hex())
	}
	e.cfg.IsSupported = false
	r.put(e)
	return nil
}

func (r *Registry) SetMaxStalePeriod(seconds uint64) {
	prev := r.maxStale
	r.maxStale = seconds
	r.rec.Record(func() { r.maxStale = prev })
}

func (r *Registry) MaxStalePeriod() uint64 {
	return r.maxStale
}

func (r *Registry) Config(asset common.Address) (model.AssetConfig, bool) {
	e, ok := r.assets[asset]
	return e.cfg, ok
}

func (r *Registry) Assets() []model.AssetConfig {
	out := make([]model.AssetConfig, 0, len(r.assets))
	for _, e := range r.assets {
		out = append(out, e.cfg)
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].Asset.Cmp(out[j].Asset) < 0
	})
	return out
}

func (r *Registry) ConvertFromUnderlying(ctx context.Context, asset common.Address, amount *big.Int) (*big.Int, error) {
	e, err := r.supported(asset)
	if err != nil {
		return nil, err
	}
	scale := model.Pow10(model.LedgerDecimals - e.cfg.Decimals)
	if e.feed == nil {
		return new(big.Int).Mul(amount, scale), nil
	}

	price, feedDec, err := r.price(ctx, e)
	if err != nil {
		return nil, err
	}
	usd := model.MulDiv(amount, price, model.Pow10(feedDec))
	return usd.Mul(usd, scale), nil
}

func (r *Registry) ConvertToUnderlying(ctx context.Context, asset common.Address, ledgerAmount *big.Int) (*big.Int, error) {
	return r.convertTo(ctx, asset, ledgerAmount, false)
}

// ConvertToUnderlyingCeil rounds both steps up. It quotes how much of an
// asset must be sold to cover ledgerAmount in full.
func (r *Registry) ConvertToUnderlyingCeil(ctx context.Context, asset common.Address, ledgerAmount *big.Int) (*big.Int, error) {
	return r.convertTo(ctx, asset, ledgerAmount, true)
}

func (r *Registry) convertTo(ctx context.Context, asset common.Address, ledgerAmount *big.Int, ceil bool) (*big.Int, error) {
	e, err := r.supported(asset)
	if err != nil {
		return nil, err
	}
	scale := model.Pow10(model.LedgerDecimals - e.cfg.Decimals)
	amount := model.MulDivUp(ledgerAmount, big.NewInt(1), scale)
	if e.feed == nil {
		return amount, nil
	}

	price, feedDec, err := r.price(ctx, e)
	if err != nil {
		return nil, err
	}
	if ceil {
		return model.MulDivUp(amount, model.Pow10(feedDec), price), nil
	}
	return model.MulDiv(amount, model.Pow10(feedDec), price), nil
}

func (r *Registry) supported(asset common.Address) (entry, error) {
	e, ok := r.assets[asset]
	if !ok || !e.cfg.IsSupported {
		return entry{}, model.NewError(model.CodeAssetNotSupported, "%s", asset.Hex())
	}
	return e, nil
}

func (r *Registry) price(ctx context.Context, e entry) (*big.Int, uint8, error) {
	round, err := e.feed.LatestRoundData(ctx)
	if err != nil {
		return nil, 0, fmt.Errorf("price feed %s: %w", e.cfg.PriceFeed.Hex(), err)
	}
	if now := r.now(); now > round.UpdatedAt && now-round.UpdatedAt > r.maxStale {
		return nil, 0, model.NewError(model.CodeStalePrice, "feed %s updated at %d, now %d", e.cfg.PriceFeed.Hex(), round.UpdatedAt, now)
	}
	if !model.IsPositive(round.Answer) {
		return nil, 0, model.NewError(model.CodeInvalidPrice, "feed %s answered %v", e.cfg.PriceFeed.Hex(), round.Answer)
	}
	if round.AnsweredInRound != nil && round.RoundID != nil && round.AnsweredInRound.Cmp(round.RoundID) < 0 {
		return nil, 0, model.NewError(model.CodeStalePrice, "feed %s round %s answered in %s", e.cfg.PriceFeed.Hex(), round.RoundID, round.AnsweredInRound)
	}

	dec, err := e.feed.Decimals(ctx)
	if err != nil {
		return nil, 0, fmt.Errorf("price feed %s decimals: %w", e.cfg.PriceFeed.Hex(), err)
	}
	return round.Answer, dec, nil
}

func (r *Registry) put(e entry) {
	asset := e.cfg.Asset
	prev, existed := r.assets[asset]
	r.assets[asset] = e
	r.rec.Record(func() {
		if existed {
			r.assets[asset] = prev
		} else {
			delete(r.assets, asset)
		}
	})
}

type State struct {
	Assets         []model.AssetConfig `json:"assets"`
	MaxStalePeriod uint64              `json:"max_stale_period"`
}

func (r *Registry) Export() State {
	return State{Assets: r.Assets(), MaxStalePeriod: r.maxStale}
}

// Import restores configs without reading decimals again; feeds are rebuilt
// through resolve.
func (r *Registry) Import(st State, resolve FeedResolver) error {
	assets := make(map[common.Address]entry, len(st.Assets))
	for _, cfg := range st.Assets {
		e := entry{cfg: cfg}
		if cfg.HasFeed() {
			if resolve == nil {
				return fmt.Errorf("asset %s needs feed %s but no resolver was given", cfg.Asset.Hex(), cfg.PriceFeed.Hex())
			}
			feed, err := resolve(cfg.PriceFeed)
			if err != nil {
				return fmt.Errorf("resolve feed %s: %w", cfg.PriceFeed.Hex(), err)
			}
			e.feed = feed
		}
		assets[cfg.Asset] = e
	}
	r.assets = assets
	r.maxStale = st.MaxStalePeriod
	return nil
}
