package transport

import (
	"context"
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/require"

	"usdo-ledger/core/model"
	"usdo-ledger/core/txn"
)

var (
	usdc  = common.HexToAddress("0xc1")
	alice = common.HexToAddress("0xa1")
	bob   = common.HexToAddress("0xb1")
)

func TestMemoryTransfer(t *testing.T) {
	ctx := context.Background()
	m := NewMemory(nil)
	m.Register(usdc, 6)
	require.NoError(t, m.Fund(usdc, alice, big.NewInt(100)))

	require.NoError(t, m.TransferFrom(ctx, usdc, alice, bob, big.NewInt(40)))
	require.NoError(t, m.Transfer(ctx, usdc, bob, alice, big.NewInt(0)))

	a, _ := m.BalanceOf(ctx, usdc, alice)
	b, _ := m.BalanceOf(ctx, usdc, bob)
	require.Equal(t, "60", a.String())
	require.Equal(t, "40", b.String())

	err := m.Transfer(ctx, usdc, bob, alice, big.NewInt(41))
	require.ErrorIs(t, err, model.ErrInsufficientBalance)

	err = m.Transfer(ctx, common.HexToAddress("0xdead"), bob, alice, big.NewInt(1))
	require.ErrorIs(t, err, model.ErrAssetNotSupported)

	d, err := m.Decimals(ctx, usdc)
	require.NoError(t, err)
	require.Equal(t, uint8(6), d)
}

func TestMemoryRollback(t *testing.T) {
	ctx := context.Background()
	j := txn.New()
	m := NewMemory(j)
	m.Register(usdc, 6)
	require.NoError(t, m.Fund(usdc, alice, big.NewInt(10)))

	j.Begin()
	require.NoError(t, m.Transfer(ctx, usdc, alice, bob, big.NewInt(10)))
	j.Rollback()

	a, _ := m.BalanceOf(ctx, usdc, alice)
	b, _ := m.BalanceOf(ctx, usdc, bob)
	require.Equal(t, "10", a.String())
	require.Equal(t, 0, b.Sign())
}

func TestMemoryExportImport(t *testing.T) {
	m := NewMemory(nil)
	m.Register(usdc, 6)
	require.NoError(t, m.Fund(usdc, alice, big.NewInt(10)))
	require.NoError(t, m.Fund(usdc, bob, big.NewInt(3)))

	r := NewMemory(nil)
	r.Import(m.Export())
	require.Equal(t, m.Export(), r.Export())
	require.Len(t, r.Export().Holdings, 2)
}
