package core

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/zyedidia/generic/mapset"

	"usdo-ledger/core/asset"
	"usdo-ledger/core/ledger"
	"usdo-ledger/core/limiter"
	"usdo-ledger/core/model"
	"usdo-ledger/core/queue"
	"usdo-ledger/core/rebase"
	"usdo-ledger/core/transport"
	"usdo-ledger/core/wrap"
)

// GatewayState is the state the gateway owns directly.
type GatewayState struct {
	Kyc                []common.Address                `json:"kyc"`
	FirstDeposit       []common.Address                `json:"first_deposit"`
	Roles              map[model.Role][]common.Address `json:"roles"`
	MintFeeBps         uint64                          `json:"mint_fee_bps"`
	RedeemFeeBps       uint64                          `json:"redeem_fee_bps"`
	FirstDepositAmount *big.Int                        `json:"first_deposit_amount"`
	TotalSupplyCap     *big.Int                        `json:"total_supply_cap"`
	MintPaused         bool                            `json:"mint_paused"`
	RedeemPaused       bool                            `json:"redeem_paused"`
}

// State is everything needed to rebuild a gateway after a restart.
type State struct {
	Ledger    ledger.State           `json:"ledger"`
	Scheduler rebase.State           `json:"scheduler"`
	Assets    asset.State            `json:"assets"`
	Limiter   limiter.State          `json:"limiter"`
	Queue     queue.State            `json:"queue"`
	Wrapped   wrap.State             `json:"wrapped"`
	Gateway   GatewayState           `json:"gateway"`
	Transport *transport.MemoryState `json:"transport,omitempty"`
}

// Snapshotter is implemented by transports whose balances live in process.
type Snapshotter interface {
	Export() transport.MemoryState
	Import(st transport.MemoryState)
}

func (g *Gateway) Export() (st State) {
	g.view(func() {
		st = g.export()
	})
	return st
}

// export reads the state; the caller holds the lock.
func (g *Gateway) export() State {
	st := State{
		Ledger:    g.ledger.Export(),
		Scheduler: g.scheduler.Export(),
		Assets:    g.registry.Export(),
		Limiter:   g.limiter.Export(),
		Queue:     g.queue.Export(),
		Wrapped:   g.wrapper.Export(),
		Gateway: GatewayState{
			Kyc:                members(g.kyc),
			FirstDeposit:       members(g.firstDeposit),
			Roles:              make(map[model.Role][]common.Address, len(g.roles)),
			MintFeeBps:         g.mintFeeBps,
			RedeemFeeBps:       g.redeemFeeBps,
			FirstDepositAmount: model.Copy(g.firstDepositAmount),
			TotalSupplyCap:     optional(g.supplyCap),
			MintPaused:         g.mintPaused,
			RedeemPaused:       g.redeemPaused,
		},
	}
	for r, set := range g.roles {
		st.Gateway.Roles[r] = members(set)
	}
	if s, ok := g.assets.(Snapshotter); ok {
		ts := s.Export()
		st.Transport = &ts
	}
	return st
}

// Import replaces the whole engine state. Nothing changes unless every part
// of st is valid. resolve rebuilds price feeds named by asset configs.
func (g *Gateway) Import(st State, resolve asset.FeedResolver) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	if st.Gateway.MintFeeBps > model.BpsDenominator || st.Gateway.RedeemFeeBps > model.BpsDenominator {
		return model.NewError(model.CodeInvalidInput, "snapshot fee above %d bps", model.BpsDenominator)
	}

	l := ledger.New(g.journal)
	if err := l.Import(st.Ledger); err != nil {
		return err
	}
	s := rebase.New(l, 0, g.journal)
	s.Import(st.Scheduler)
	r := asset.New(g.assets, g.now, 0, g.journal)
	if err := r.Import(st.Assets, resolve); err != nil {
		return err
	}
	lim := limiter.New(limiter.Window{}, limiter.Window{}, g.journal)
	lim.Import(st.Limiter)
	q := queue.New(g.journal)
	q.Import(st.Queue)
	w := wrap.New(g.cfg.Custody, l, g.journal)
	if err := w.Import(st.Wrapped); err != nil {
		return err
	}
	if custody := l.SharesOf(g.cfg.Custody); custody.Cmp(w.TotalWrapped()) < 0 {
		return model.NewError(model.CodeInvalidInput, "custody holds %s shares for %s wrapped", custody, w.TotalWrapped())
	}

	roles := make(map[model.Role]mapset.Set[common.Address], len(g.roles))
	for role := range g.roles {
		roles[role] = mapset.New[common.Address]()
	}
	for role, accounts := range st.Gateway.Roles {
		if !role.Valid() {
			return model.NewError(model.CodeInvalidInput, "unknown role %q in snapshot", role)
		}
		for _, a := range accounts {
			roles[role].Put(a)
		}
	}

	g.ledger, g.scheduler, g.registry, g.limiter, g.queue, g.wrapper = l, s, r, lim, q, w
	g.roles = roles
	g.kyc = setOf(st.Gateway.Kyc)
	g.firstDeposit = setOf(st.Gateway.FirstDeposit)
	g.mintFeeBps = st.Gateway.MintFeeBps
	g.redeemFeeBps = st.Gateway.RedeemFeeBps
	g.firstDepositAmount = model.Copy(st.Gateway.FirstDepositAmount)
	g.supplyCap = optional(st.Gateway.TotalSupplyCap)
	g.mintPaused = st.Gateway.MintPaused
	g.redeemPaused = st.Gateway.RedeemPaused

	if snap, ok := g.assets.(Snapshotter); ok && st.Transport != nil {
		snap.Import(*st.Transport)
	}
	return nil
}

func setOf(accounts []common.Address) mapset.Set[common.Address] {
	set := mapset.New[common.Address]()
	for _, a := range accounts {
		set.Put(a)
	}
	return set
}
