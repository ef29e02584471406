// Package core is the mint/redeem gateway. It composes the share ledger, the
// multiplier scheduler, the asset registry, the rate limiter, the redemption
// queue and the wrapper, and runs every external operation as one atomic
// step: either all of its mutations commit or none do.
package core

import (
	"fmt"
	"math/big"
	"sync"

	"github.com/ethereum/go-ethereum/common"
	"github.com/sirupsen/logrus"
	"github.com/zyedidia/generic/mapset"

	"usdo-ledger/core/asset"
	"usdo-ledger/core/ledger"
	"usdo-ledger/core/limiter"
	"usdo-ledger/core/model"
	"usdo-ledger/core/queue"
	"usdo-ledger/core/rebase"
	"usdo-ledger/core/transport"
	"usdo-ledger/core/txn"
	"usdo-ledger/core/venue"
	"usdo-ledger/core/wrap"
)

type Config struct {
	Treasury   common.Address // receives mint proceeds, pays redemptions
	FeeTo      common.Address
	Custody    common.Address // holds the shares behind wrapped balances
	Settlement common.Address // asset paid out on redemption
	Reserve    common.Address // asset sold to the venue on a treasury shortfall

	Admin common.Address

	MintFeeBps         uint64
	RedeemFeeBps       uint64
	APYBps             uint64
	TimeBuffer         uint64
	MaxStalePeriod     uint64
	FirstDepositAmount *big.Int
	TotalSupplyCap     *big.Int
	Mint               limiter.Window
	Redeem             limiter.Window
}

type Deps struct {
	Assets transport.Transport
	// Venue may be nil; a treasury shortfall then fails the instant path.
	Venue venue.Venue
	// Journal must be the recorder the transport was built with when the
	// transport is in-memory. A fresh one is used when nil.
	Journal *txn.Journal
	Clock   func() uint64
	Sink    Sink
	Logger  *logrus.Entry
	// Store, when set, receives the state after every successful operation
	// while the gateway lock is still held. A failed save undoes the
	// operation.
	Store Persister
}

// Persister keeps engine snapshots.
type Persister interface {
	Save(st State) error
}

type Gateway struct {
	mu sync.Mutex

	cfg     Config
	journal *txn.Journal
	now     func() uint64
	sink    Sink
	log     *logrus.Entry
	store   Persister

	ledger    *ledger.Ledger
	scheduler *rebase.Scheduler
	registry  *asset.Registry
	limiter   *limiter.Limiter
	queue     *queue.Queue
	wrapper   *wrap.Wrapper
	assets    transport.Transport
	venue     venue.Venue

	kyc          mapset.Set[common.Address]
	firstDeposit mapset.Set[common.Address]
	roles        map[model.Role]mapset.Set[common.Address]

	mintFeeBps         uint64
	redeemFeeBps       uint64
	firstDepositAmount *big.Int
	supplyCap          *big.Int
	mintPaused         bool
	redeemPaused       bool

	events []model.Event
}

func New(cfg Config, deps Deps) (*Gateway, error) {
	if deps.Assets == nil {
		return nil, fmt.Errorf("gateway needs an asset transport")
	}
	if cfg.Treasury == (common.Address{}) || cfg.Custody == (common.Address{}) {
		return nil, fmt.Errorf("treasury and custody addresses are required")
	}
	if cfg.MintFeeBps > model.BpsDenominator || cfg.RedeemFeeBps > model.BpsDenominator {
		return nil, fmt.Errorf("fee above %d bps", model.BpsDenominator)
	}

	j := deps.Journal
	if j == nil {
		j = txn.New()
	}
	now := deps.Clock
	if now == nil {
		now = WallClock
	}
	log := deps.Logger
	if log == nil {
		log = logrus.WithField("component", "gateway")
	}
	sink := deps.Sink
	if sink == nil {
		sink = LogSink{Entry: log}
	}

	g := &Gateway{
		cfg:     cfg,
		journal: j,
		now:     now,
		sink:    sink,
		log:     log,
		store:   deps.Store,

		assets: deps.Assets,
		venue:  deps.Venue,

		kyc:          mapset.New[common.Address](),
		firstDeposit: mapset.New[common.Address](),
		roles:        make(map[model.Role]mapset.Set[common.Address]),

		mintFeeBps:         cfg.MintFeeBps,
		redeemFeeBps:       cfg.RedeemFeeBps,
		firstDepositAmount: model.Copy(cfg.FirstDepositAmount),
		supplyCap:          optional(cfg.TotalSupplyCap),
	}
	g.ledger = ledger.New(j)
	g.scheduler = rebase.New(g.ledger, cfg.TimeBuffer, j)
	g.scheduler.SetAPY(cfg.APYBps)
	g.registry = asset.New(deps.Assets, now, cfg.MaxStalePeriod, j)
	g.limiter = limiter.New(cfg.Mint, cfg.Redeem, j)
	g.queue = queue.New(j)
	g.wrapper = wrap.New(cfg.Custody, g.ledger, j)

	for _, r := range []model.Role{model.RoleAdmin, model.RoleOperator, model.RoleMaintainer, model.RolePauser} {
		g.roles[r] = mapset.New[common.Address]()
	}
	if cfg.Admin != (common.Address{}) {
		g.roles[model.RoleAdmin].Put(cfg.Admin)
	}
	return g, nil
}

func (g *Gateway) Config() Config {
	return g.cfg
}

// exec runs fn as one unit of work. Events fn emits reach the sink only
// after the journal commits.
func (g *Gateway) exec(op Op, caller common.Address, fn func() error, fields logrus.Fields) error {
	events, err := g.run(op, caller, fn)
	entry := g.log.WithFields(fields).WithField("op", op).WithField("caller", caller.Hex())
	if err != nil {
		entry.WithField("code", int(model.CodeOf(err))).Warnf("%s rejected: %v", op, err)
		return err
	}
	entry.Infof("%s committed", op)
	for _, e := range events {
		g.sink.Emit(e)
	}
	return nil
}

func (g *Gateway) run(op Op, caller common.Address, fn func() error) (events []model.Event, err error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if err := g.authorize(op, caller); err != nil {
		return nil, err
	}

	g.journal.Begin()
	g.events = g.events[:0]
	defer func() {
		if r := recover(); r != nil {
			g.journal.Rollback()
			g.events = nil
			panic(r)
		}
	}()

	if err := fn(); err != nil {
		g.journal.Rollback()
		g.events = nil
		return nil, err
	}
	if g.store != nil {
		if err := g.store.Save(g.export()); err != nil {
			g.journal.Rollback()
			g.events = nil
			return nil, fmt.Errorf("persist %s: %w", op, err)
		}
	}
	g.journal.Commit()
	events, g.events = g.events, nil
	return events, nil
}

func (g *Gateway) emit(e model.Event) {
	if e.Timestamp == 0 {
		e.Timestamp = g.now()
	}
	g.events = append(g.events, e)
}

// view runs a read under the gateway lock.
func (g *Gateway) view(fn func()) {
	g.mu.Lock()
	defer g.mu.Unlock()
	fn()
}

// optional copies x, keeping nil as nil. A nil supply cap means no cap.
func optional(x *big.Int) *big.Int {
	if x == nil {
		return nil
	}
	return new(big.Int).Set(x)
}

// journaled setters for gateway-owned state

func setField[T any](rec txn.Recorder, p *T, v T) {
	prev := *p
	*p = v
	rec.Record(func() { *p = prev })
}

func putMember(rec txn.Recorder, set mapset.Set[common.Address], a common.Address) bool {
	if set.Has(a) {
		return false
	}
	set.Put(a)
	rec.Record(func() { set.Remove(a) })
	return true
}

func removeMember(rec txn.Recorder, set mapset.Set[common.Address], a common.Address) bool {
	if !set.Has(a) {
		return false
	}
	set.Remove(a)
	rec.Record(func() { set.Put(a) })
	return true
}
