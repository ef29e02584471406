package chain

import (
	"context"
	"errors"
	"math/big"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/require"

	"usdo-ledger/core/model"
)

type fakeFeed struct {
	calls map[string]int
	round []interface{}
	dec   uint8
}

func (f *fakeFeed) CallContract(_ context.Context, call ethereum.CallMsg, _ *big.Int) ([]byte, error) {
	method, err := AggregatorABI.MethodById(call.Data[:4])
	if err != nil {
		return nil, err
	}
	f.calls[method.Name]++
	if method.Name == "decimals" {
		return method.Outputs.Pack(f.dec)
	}
	return method.Outputs.Pack(f.round...)
}

func TestAggregatorReadsRoundData(t *testing.T) {
	ctx := context.Background()
	feed := &fakeFeed{
		calls: map[string]int{},
		dec:   8,
		round: []interface{}{
			big.NewInt(7),
			big.NewInt(105_000_000),
			big.NewInt(1_700_000_000),
			big.NewInt(1_700_000_100),
			big.NewInt(7),
		},
	}
	a := NewAggregator(feed, common.HexToAddress("0xfeed"))

	round, err := a.LatestRoundData(ctx)
	require.NoError(t, err)
	require.Equal(t, "105000000", round.Answer.String())
	require.Equal(t, uint64(1_700_000_100), round.UpdatedAt)
	require.Equal(t, 0, round.RoundID.Cmp(round.AnsweredInRound))

	for i := 0; i < 3; i++ {
		d, err := a.Decimals(ctx)
		require.NoError(t, err)
		require.Equal(t, uint8(8), d)
	}
	require.Equal(t, 1, feed.calls["decimals"])
}

func TestParseRoundDataRejectsShortOutput(t *testing.T) {
	_, err := ParseRoundData([]interface{}{big.NewInt(1)})
	require.Error(t, err)

	_, err = ParseRoundData([]interface{}{big.NewInt(1), big.NewInt(1), "x", big.NewInt(1), big.NewInt(1)})
	require.Error(t, err)
}

type fakeHeads struct {
	heads []model.ChainHead
	err   error
}

func (f *fakeHeads) LatestHead(context.Context) (model.ChainHead, error) {
	if f.err != nil {
		return model.ChainHead{}, f.err
	}
	h := f.heads[0]
	if len(f.heads) > 1 {
		f.heads = f.heads[1:]
	}
	return h, nil
}

func TestHeadClock(t *testing.T) {
	ctx := context.Background()
	heads := &fakeHeads{heads: []model.ChainHead{{Number: 10, Timestamp: 1000}, {Number: 9, Timestamp: 990}, {Number: 11, Timestamp: 1012}}}
	c := NewHeadClock(heads, time.Second)
	c.wall = func() uint64 { return 42 }

	require.Equal(t, uint64(42), c.Now())
	require.NoError(t, c.Poll(ctx))
	require.Equal(t, uint64(1000), c.Now())
	require.NoError(t, c.Poll(ctx))
	require.Equal(t, uint64(1000), c.Now())
	require.Equal(t, uint64(10), c.number.Load())
	require.NoError(t, c.Poll(ctx))
	require.Equal(t, uint64(1012), c.Now())

	heads.err = errors.New("rpc down")
	require.Error(t, c.Poll(ctx))
	require.Equal(t, uint64(1012), c.Now())
}
