package queue

import (
	"errors"
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/require"

	"usdo-ledger/core/model"
	"usdo-ledger/core/txn"
)

var (
	alice = common.HexToAddress("0xa1")
	bob   = common.HexToAddress("0xb1")
	carol = common.HexToAddress("0xc1")
)

func settleAll(model.RedemptionRequest) (bool, error) { return true, nil }

func TestEnqueueIDsAreUnique(t *testing.T) {
	q := New(nil)
	a := q.Enqueue(alice, bob, big.NewInt(10), 100)
	b := q.Enqueue(alice, bob, big.NewInt(10), 100)
	require.NotEqual(t, a.ID, b.ID)

	// same length after a pop must still give a fresh id
	_, err := q.Process(1, settleAll)
	require.NoError(t, err)
	c := q.Enqueue(alice, bob, big.NewInt(10), 100)
	require.NotEqual(t, b.ID, c.ID)
	require.NotEqual(t, a.ID, c.ID)
}

func TestProcessFIFO(t *testing.T) {
	q := New(nil)
	r1 := q.Enqueue(alice, bob, big.NewInt(1), 1)
	r2 := q.Enqueue(alice, bob, big.NewInt(2), 2)
	r3 := q.Enqueue(bob, carol, big.NewInt(3), 3)

	var seen []common.Hash
	done, err := q.Process(2, func(r model.RedemptionRequest) (bool, error) {
		seen = append(seen, r.ID)
		return true, nil
	})
	require.NoError(t, err)
	require.Equal(t, []common.Hash{r1.ID, r2.ID}, seen)
	require.Len(t, done, 2)
	require.Equal(t, 1, q.Len())

	head, ok := q.At(0)
	require.True(t, ok)
	require.Equal(t, r3.ID, head.ID)
	require.Equal(t, 0, q.Pending(bob).Sign())
	require.Equal(t, "3", q.Pending(carol).String())
}

func TestProcessStopsOnRefusal(t *testing.T) {
	q := New(nil)
	q.Enqueue(alice, bob, big.NewInt(5), 1)
	q.Enqueue(alice, bob, big.NewInt(5), 1)

	liquidity := big.NewInt(7)
	done, err := q.Process(2, func(r model.RedemptionRequest) (bool, error) {
		if r.Amount.Cmp(liquidity) > 0 {
			return false, nil
		}
		liquidity.Sub(liquidity, r.Amount)
		return true, nil
	})
	require.NoError(t, err)
	require.Len(t, done, 1)
	require.Equal(t, 1, q.Len())
	require.Equal(t, "5", q.Pending(bob).String())
}

func TestProcessZeroMeansAll(t *testing.T) {
	q := New(nil)
	for i := 0; i < 5; i++ {
		q.Enqueue(alice, bob, big.NewInt(1), uint64(i))
	}

	calls := 0
	done, err := q.Process(0, func(r model.RedemptionRequest) (bool, error) {
		calls++
		// entries added mid-batch are not part of the snapshot
		if calls == 1 {
			q.Enqueue(alice, bob, big.NewInt(1), 99)
		}
		return true, nil
	})
	require.NoError(t, err)
	require.Len(t, done, 5)
	require.Equal(t, 1, q.Len())

	_, err = q.Process(-1, settleAll)
	require.ErrorIs(t, err, model.ErrInvalidInput)
}

func TestCancel(t *testing.T) {
	q := New(nil)
	q.Enqueue(alice, carol, big.NewInt(4), 1)
	q.Enqueue(bob, carol, big.NewInt(6), 1)
	q.Enqueue(bob, bob, big.NewInt(8), 1)

	refunded := map[common.Address]int64{}
	out, err := q.Cancel(2, func(r model.RedemptionRequest) error {
		refunded[r.Sender] += r.Amount.Int64()
		return nil
	})
	require.NoError(t, err)
	require.Len(t, out, 2)
	require.Equal(t, map[common.Address]int64{alice: 4, bob: 6}, refunded)
	require.Equal(t, 0, q.Pending(carol).Sign())
	require.Equal(t, "8", q.Pending(bob).String())

	for _, n := range []int{0, 2, -1} {
		_, err := q.Cancel(n, func(model.RedemptionRequest) error { return nil })
		require.ErrorIs(t, err, model.ErrInvalidInput, "count %d", n)
	}

	q2 := New(nil)
	_, err = q2.Cancel(1, func(model.RedemptionRequest) error { return nil })
	require.ErrorIs(t, err, model.ErrInvalidInput)
}

func TestRollbackAcrossCompaction(t *testing.T) {
	j := txn.New()
	q := New(j)
	for i := 0; i < compactAt+10; i++ {
		q.Enqueue(alice, bob, big.NewInt(1), uint64(i))
	}
	before := q.Export()

	j.Begin()
	_, err := q.Process(compactAt+5, settleAll)
	require.NoError(t, err)
	require.Equal(t, 5, q.Len())
	require.Equal(t, 0, q.head)
	q.Enqueue(carol, carol, big.NewInt(9), 1)
	j.Rollback()

	require.Equal(t, before, q.Export())
	require.Equal(t, "74", q.Pending(bob).String())
	require.Equal(t, 0, q.Pending(carol).Sign())
}

func TestCancelRefundFailure(t *testing.T) {
	j := txn.New()
	q := New(j)
	q.Enqueue(alice, bob, big.NewInt(1), 1)
	q.Enqueue(alice, bob, big.NewInt(2), 1)

	j.Begin()
	_, err := q.Cancel(2, func(r model.RedemptionRequest) error {
		if r.Amount.Int64() == 2 {
			return errors.New("boom")
		}
		return nil
	})
	require.Error(t, err)
	j.Rollback()

	require.Equal(t, 2, q.Len())
	require.Equal(t, "3", q.Pending(bob).String())
}

func TestExportImportRebuildsPending(t *testing.T) {
	q := New(nil)
	q.Enqueue(alice, bob, big.NewInt(2), 1)
	q.Enqueue(alice, carol, big.NewInt(3), 1)
	q.Enqueue(carol, bob, big.NewInt(4), 1)
	_, err := q.Process(1, settleAll)
	require.NoError(t, err)

	r := New(nil)
	r.Import(q.Export())
	require.Equal(t, 2, r.Len())
	require.Equal(t, "4", r.Pending(bob).String())
	require.Equal(t, "3", r.Pending(carol).String())

	// ids keep advancing after restore
	next := r.Enqueue(alice, bob, big.NewInt(2), 1)
	require.Equal(t, uint64(4), r.Export().Nonce)
	require.NotEqual(t, common.Hash{}, next.ID)
}
