package ledger

import (
	"math/big"
	"sort"

	"github.com/ethereum/go-ethereum/common"
	"github.com/zyedidia/generic/mapset"

	"usdo-ledger/core/model"
)

type State struct {
	Shares      map[common.Address]*big.Int `json:"shares"`
	Banned      []common.Address            `json:"banned"`
	TotalShares *big.Int                    `json:"total_shares"`
	Multiplier  *big.Int                    `json:"multiplier"`
	Paused      bool                        `json:"paused"`
}

func (l *Ledger) Export() State {
	st := State{
		Shares:      make(map[common.Address]*big.Int, len(l.shares)),
		TotalShares: model.Copy(l.totalShares),
		Multiplier:  model.Copy(l.multiplier),
		Paused:      l.paused,
	}
	for a, s := range l.shares {
		if s.Sign() > 0 {
			st.Shares[a] = model.Copy(s)
		}
	}
	l.banned.Each(func(a common.Address) {
		st.Banned = append(st.Banned, a)
	})
	sort.Slice(st.Banned, func(i, j int) bool {
		return st.Banned[i].Cmp(st.Banned[j]) < 0
	})
	return st
}

// Import replaces the ledger contents. The sum of account shares must match
// TotalShares.
func (l *Ledger) Import(st State) error {
	if !model.IsPositive(st.Multiplier) {
		return model.NewError(model.CodeInvalidInput, "snapshot multiplier must be positive")
	}
	sum := new(big.Int)
	shares := make(map[common.Address]*big.Int, len(st.Shares))
	for a, s := range st.Shares {
		if s == nil || s.Sign() < 0 {
			return model.NewError(model.CodeInvalidInput, "negative shares for %s", a.Hex())
		}
		shares[a] = model.Copy(s)
		sum.Add(sum, s)
	}
	if st.TotalShares == nil || sum.Cmp(st.TotalShares) != 0 {
		return model.NewError(model.CodeInvalidInput, "total shares %v does not match account sum %s", st.TotalShares, sum)
	}

	banned := mapset.New[common.Address]()
	for _, a := range st.Banned {
		banned.Put(a)
	}

	l.shares = shares
	l.banned = banned
	l.totalShares = model.Copy(st.TotalShares)
	l.multiplier = model.Copy(st.Multiplier)
	l.paused = st.Paused
	return nil
}
