package store

import (
	"encoding/json"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/sirupsen/logrus"

	"usdo-ledger/core"
	"usdo-ledger/core/asset"
	"usdo-ledger/core/ledger"
	"usdo-ledger/core/limiter"
	"usdo-ledger/core/model"
	"usdo-ledger/core/queue"
	"usdo-ledger/core/rebase"
	"usdo-ledger/core/transport"
	"usdo-ledger/core/wrap"
)

// stateV1 is the first snapshot layout. The queue carried stored
// per-receiver totals and no id nonce, and there were no wrapped balances.
type stateV1 struct {
	Ledger    ledger.State  `json:"ledger"`
	Scheduler rebase.State  `json:"scheduler"`
	Assets    asset.State   `json:"assets"`
	Limiter   limiter.State `json:"limiter"`
	Queue     struct {
		Requests []model.RedemptionRequest   `json:"requests"`
		UserInfo map[common.Address]*big.Int `json:"user_info"`
	} `json:"queue"`
	Gateway   core.GatewayState      `json:"gateway"`
	Transport *transport.MemoryState `json:"transport,omitempty"`
}

func decode(env envelope) (core.State, error) {
	if env.MultiplierBase != model.Base.String() {
		return core.State{}, fmt.Errorf("snapshot multiplier base %q, engine uses %s", env.MultiplierBase, model.Base)
	}

	switch env.Version {
	case SchemaVersion:
		var st core.State
		if err := json.Unmarshal(env.State, &st); err != nil {
			return core.State{}, fmt.Errorf("decode v%d snapshot: %w", env.Version, err)
		}
		return st, nil
	case 1:
		var v1 stateV1
		if err := json.Unmarshal(env.State, &v1); err != nil {
			return core.State{}, fmt.Errorf("decode v1 snapshot: %w", err)
		}
		return migrateV1(v1), nil
	default:
		return core.State{}, fmt.Errorf("unknown snapshot version %d", env.Version)
	}
}

// migrateV1 drops the stored queue totals, which are derived from the
// entries now, and starts the id nonce after the queued entries.
func migrateV1(v1 stateV1) core.State {
	sums := make(map[common.Address]*big.Int)
	for _, r := range v1.Queue.Requests {
		sum, ok := sums[r.Receiver]
		if !ok {
			sum = new(big.Int)
			sums[r.Receiver] = sum
		}
		sum.Add(sum, r.Amount)
	}
	for receiver, stored := range v1.Queue.UserInfo {
		if model.Copy(stored).Cmp(model.Copy(sums[receiver])) != 0 {
			logrus.Warnf("migrate v1: queued total of %s was %s, entries sum to %s", receiver.Hex(), stored, model.Copy(sums[receiver]))
		}
	}

	return core.State{
		Ledger:    v1.Ledger,
		Scheduler: v1.Scheduler,
		Assets:    v1.Assets,
		Limiter:   v1.Limiter,
		Queue: queue.State{
			Requests: v1.Queue.Requests,
			Nonce:    uint64(len(v1.Queue.Requests)),
		},
		Wrapped:   wrap.State{Units: map[common.Address]*big.Int{}, Total: new(big.Int)},
		Gateway:   v1.Gateway,
		Transport: v1.Transport,
	}
}
