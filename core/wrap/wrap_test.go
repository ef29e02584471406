package wrap

import (
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/require"

	"usdo-ledger/core/ledger"
	"usdo-ledger/core/model"
	"usdo-ledger/core/txn"
)

var (
	custody = common.HexToAddress("0xc0")
	alice   = common.HexToAddress("0xa1")
	bob     = common.HexToAddress("0xb1")
)

func ether(n int64) *big.Int {
	return new(big.Int).Mul(big.NewInt(n), model.Base)
}

func TestWrapKeepsUnitsAcrossRebase(t *testing.T) {
	l := ledger.New(nil)
	w := New(custody, l, nil)
	require.NoError(t, l.Mint(alice, ether(100)))

	units, err := w.Wrap(alice, bob, ether(40))
	require.NoError(t, err)
	require.Equal(t, ether(40), units)
	require.Equal(t, ether(60), l.BalanceOf(alice))
	require.Equal(t, ether(40), l.BalanceOf(custody))

	// 10% rebase: wrapped units stay, their value grows
	require.NoError(t, l.AddToMultiplier(new(big.Int).Div(model.Base, big.NewInt(10))))
	require.Equal(t, ether(40), w.BalanceOf(bob))

	amount, err := w.Unwrap(bob, bob, ether(40))
	require.NoError(t, err)
	require.Equal(t, ether(44), amount)
	require.Equal(t, ether(44), l.BalanceOf(bob))
	require.Equal(t, 0, w.TotalWrapped().Sign())
	require.Equal(t, 0, l.SharesOf(custody).Sign())
}

func TestWrapFailures(t *testing.T) {
	l := ledger.New(nil)
	w := New(custody, l, nil)
	require.NoError(t, l.Mint(alice, ether(1)))

	_, err := w.Wrap(alice, bob, big.NewInt(0))
	require.ErrorIs(t, err, model.ErrInvalidInput)

	_, err = w.Wrap(alice, bob, ether(2))
	require.ErrorIs(t, err, model.ErrInsufficientBalance)

	_, err = w.Unwrap(bob, bob, big.NewInt(1))
	require.ErrorIs(t, err, model.ErrInsufficientBalance)

	l.Pause()
	_, err = w.Wrap(alice, bob, ether(1))
	require.ErrorIs(t, err, model.ErrPaused)
	require.Equal(t, 0, w.TotalWrapped().Sign())
}

func TestCreditAndRollback(t *testing.T) {
	j := txn.New()
	l := ledger.New(j)
	w := New(custody, l, j)

	j.Begin()
	shares := l.ConvertToShares(ether(5))
	require.NoError(t, l.Mint(custody, ether(5)))
	w.Credit(alice, shares)
	j.Commit()
	require.Equal(t, ether(5), w.BalanceOf(alice))

	j.Begin()
	_, err := w.Unwrap(alice, alice, ether(2))
	require.NoError(t, err)
	l.Pause()
	j.Rollback()

	require.Equal(t, ether(5), w.BalanceOf(alice))
	require.Equal(t, ether(5), w.TotalWrapped())
	require.Equal(t, 0, l.BalanceOf(alice).Sign())
	require.False(t, l.Paused())
}

func TestExportImport(t *testing.T) {
	l := ledger.New(nil)
	w := New(custody, l, nil)
	require.NoError(t, l.Mint(alice, ether(3)))
	_, err := w.Wrap(alice, bob, ether(3))
	require.NoError(t, err)

	r := New(custody, l, nil)
	require.NoError(t, r.Import(w.Export()))
	require.Equal(t, ether(3), r.BalanceOf(bob))

	bad := w.Export()
	bad.Total = ether(4)
	require.ErrorIs(t, r.Import(bad), model.ErrInvalidInput)
}
