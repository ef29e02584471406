package chain

import (
	"context"
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	g "github.com/pandodao/generic"
	"github.com/yiplee/go-cache"

	"usdo-ledger/core/asset"
	"usdo-ledger/core/model"
)

const AggregatorABIJson = `[{"inputs":[],"name":"decimals","outputs":[{"internalType":"uint8","name":"","type":"uint8"}],"stateMutability":"view","type":"function"},{"inputs":[],"name":"latestRoundData","outputs":[{"internalType":"uint80","name":"roundId","type":"uint80"},{"internalType":"int256","name":"answer","type":"int256"},{"internalType":"uint256","name":"startedAt","type":"uint256"},{"internalType":"uint256","name":"updatedAt","type":"uint256"},{"internalType":"uint80","name":"answeredInRound","type":"uint80"}],"stateMutability":"view","type":"function"}]`

var AggregatorABI = g.Must(abi.JSON(strings.NewReader(AggregatorABIJson)))

// Aggregator reads a price feed contract exposing latestRoundData and
// decimals. Decimals never change for a deployed feed and are cached.
type Aggregator struct {
	caller   ethereum.ContractCaller
	address  common.Address
	decimals *cache.Cache[common.Address, uint8]
}

var _ asset.PriceSource = (*Aggregator)(nil)

func NewAggregator(caller ethereum.ContractCaller, address common.Address) *Aggregator {
	return &Aggregator{
		caller:   caller,
		address:  address,
		decimals: cache.New[common.Address, uint8](),
	}
}

func (a *Aggregator) LatestRoundData(ctx context.Context) (model.RoundData, error) {
	out, err := a.call(ctx, "latestRoundData")
	if err != nil {
		return model.RoundData{}, err
	}
	return ParseRoundData(out)
}

func (a *Aggregator) Decimals(ctx context.Context) (uint8, error) {
	if d, ok := a.decimals.Get(a.address); ok {
		return d, nil
	}
	out, err := a.call(ctx, "decimals")
	if err != nil {
		return 0, err
	}
	d, ok := out[0].(uint8)
	if !ok {
		return 0, fmt.Errorf("decimals of %s: unexpected %T", a.address.Hex(), out[0])
	}
	a.decimals.Set(a.address, d)
	return d, nil
}

func (a *Aggregator) call(ctx context.Context, method string) ([]interface{}, error) {
	data, err := AggregatorABI.Pack(method)
	if err != nil {
		return nil, err
	}
	raw, err := a.caller.CallContract(ctx, ethereum.CallMsg{To: &a.address, Data: data}, nil)
	if err != nil {
		return nil, fmt.Errorf("call %s on %s: %w", method, a.address.Hex(), err)
	}
	out, err := AggregatorABI.Unpack(method, raw)
	if err != nil {
		return nil, fmt.Errorf("unpack %s from %s: %w", method, a.address.Hex(), err)
	}
	return out, nil
}

// ParseRoundData converts unpacked latestRoundData outputs.
func ParseRoundData(out []interface{}) (model.RoundData, error) {
	if len(out) != 5 {
		return model.RoundData{}, fmt.Errorf("latestRoundData returned %d values", len(out))
	}
	var ints [5]*big.Int
	for i, v := range out {
		n, ok := v.(*big.Int)
		if !ok {
			return model.RoundData{}, fmt.Errorf("latestRoundData value %d: unexpected %T", i, v)
		}
		ints[i] = n
	}
	if !ints[2].IsUint64() || !ints[3].IsUint64() {
		return model.RoundData{}, fmt.Errorf("latestRoundData timestamps out of range")
	}
	return model.RoundData{
		RoundID:         ints[0],
		Answer:          ints[1],
		StartedAt:       ints[2].Uint64(),
		UpdatedAt:       ints[3].Uint64(),
		AnsweredInRound: ints[4],
	}, nil
}

// FeedResolver builds Aggregators for feed addresses restored from a
// snapshot.
func FeedResolver(caller ethereum.ContractCaller) asset.FeedResolver {
	return func(feed common.Address) (asset.PriceSource, error) {
		return NewAggregator(caller, feed), nil
	}
}
