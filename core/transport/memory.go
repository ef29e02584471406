package transport

import (
	"context"
	"fmt"
	"math/big"
	"sort"

	"github.com/ethereum/go-ethereum/common"

	"usdo-ledger/core/model"
	"usdo-ledger/core/txn"
)

type balanceKey struct {
	asset   common.Address
	account common.Address
}

// Memory is a journaled in-memory Transport. Its mutations roll back with
// the engine operation that made them.
type Memory struct {
	decimals map[common.Address]uint8
	balances map[balanceKey]*big.Int

	rec txn.Recorder
}

func NewMemory(rec txn.Recorder) *Memory {
	return &Memory{
		decimals: make(map[common.Address]uint8),
		balances: make(map[balanceKey]*big.Int),
		rec:      txn.Or(rec),
	}
}

func (m *Memory) Register(asset common.Address, decimals uint8) {
	prev, existed := m.decimals[asset]
	m.decimals[asset] = decimals
	m.rec.Record(func() {
		if existed {
			m.decimals[asset] = prev
		} else {
			delete(m.decimals, asset)
		}
	})
}

// Fund credits amount out of thin air. Simulation only.
func (m *Memory) Fund(asset, to common.Address, amount *big.Int) error {
	if _, ok := m.decimals[asset]; !ok {
		return model.NewError(model.CodeAssetNotSupported, "%s is not registered", asset.Hex())
	}
	if amount == nil || amount.Sign() < 0 {
		return model.NewError(model.CodeInvalidInput, "negative amount")
	}
	m.set(balanceKey{asset, to}, new(big.Int).Add(m.balance(asset, to), amount))
	return nil
}

func (m *Memory) Transfer(_ context.Context, asset, from, to common.Address, amount *big.Int) error {
	return m.move(asset, from, to, amount)
}

func (m *Memory) TransferFrom(_ context.Context, asset, from, to common.Address, amount *big.Int) error {
	return m.move(asset, from, to, amount)
}

func (m *Memory) BalanceOf(_ context.Context, asset, account common.Address) (*big.Int, error) {
	return m.balance(asset, account), nil
}

func (m *Memory) Decimals(_ context.Context, asset common.Address) (uint8, error) {
	d, ok := m.decimals[asset]
	if !ok {
		return 0, fmt.Errorf("asset %s is not registered", asset.Hex())
	}
	return d, nil
}

func (m *Memory) move(asset, from, to common.Address, amount *big.Int) error {
	if _, ok := m.decimals[asset]; !ok {
		return model.NewError(model.CodeAssetNotSupported, "%s is not registered", asset.Hex())
	}
	if amount == nil || amount.Sign() < 0 {
		return model.NewError(model.CodeInvalidInput, "negative amount")
	}
	if amount.Sign() == 0 || from == to {
		return nil
	}
	held := m.balance(asset, from)
	if held.Cmp(amount) < 0 {
		return model.NewError(model.CodeInsufficientBalance, "%s holds %s of %s, needs %s", from.Hex(), held, asset.Hex(), amount)
	}
	m.set(balanceKey{asset, from}, held.Sub(held, amount))
	m.set(balanceKey{asset, to}, new(big.Int).Add(m.balance(asset, to), amount))
	return nil
}

func (m *Memory) balance(asset, account common.Address) *big.Int {
	return model.Copy(m.balances[balanceKey{asset, account}])
}

func (m *Memory) set(k balanceKey, v *big.Int) {
	prev, existed := m.balances[k]
	m.balances[k] = v
	m.rec.Record(func() {
		if existed {
			m.balances[k] = prev
		} else {
			delete(m.balances, k)
		}
	})
}

type Holding struct {
	Asset   common.Address `json:"asset"`
	Account common.Address `json:"account"`
	Amount  *big.Int       `json:"amount"`
}

type MemoryState struct {
	Decimals map[common.Address]uint8 `json:"decimals"`
	Holdings []Holding                `json:"holdings"`
}

func (m *Memory) Export() MemoryState {
	st := MemoryState{Decimals: make(map[common.Address]uint8, len(m.decimals))}
	for a, d := range m.decimals {
		st.Decimals[a] = d
	}
	for k, v := range m.balances {
		if v.Sign() > 0 {
			st.Holdings = append(st.Holdings, Holding{Asset: k.asset, Account: k.account, Amount: model.Copy(v)})
		}
	}
	sort.Slice(st.Holdings, func(i, j int) bool {
		if c := st.Holdings[i].Asset.Cmp(st.Holdings[j].Asset); c != 0 {
			return c < 0
		}
		return st.Holdings[i].Account.Cmp(st.Holdings[j].Account) < 0
	})
	return st
}

func (m *Memory) Import(st MemoryState) {
	m.decimals = make(map[common.Address]uint8, len(st.Decimals))
	for a, d := range st.Decimals {
		m.decimals[a] = d
	}
	m.balances = make(map[balanceKey]*big.Int, len(st.Holdings))
	for _, h := range st.Holdings {
		m.balances[balanceKey{h.Asset, h.Account}] = model.Copy(h.Amount)
	}
}
