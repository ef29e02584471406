// Package queue holds deferred redemptions in strict FIFO order together with
// the pending amount per receiver.
package queue

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"

	"usdo-ledger/core/model"
	"usdo-ledger/core/txn"
)

// compactAt is the number of consumed slots after which the arena is
// reallocated.
const compactAt = 64

type Queue struct {
	items   []model.RedemptionRequest // arena; live entries are items[head:]
	head    int
	pending map[common.Address]*big.Int
	nonce   uint64

	rec txn.Recorder
}

func New(rec txn.Recorder) *Queue {
	return &Queue{
		pending: make(map[common.Address]*big.Int),
		rec:     txn.Or(rec),
	}
}

func (q *Queue) Len() int {
	return len(q.items) - q.head
}

// At returns the entry at index, 0 being the head.
func (q *Queue) At(index int) (model.RedemptionRequest, bool) {
	if index < 0 || index >= q.Len() {
		return model.RedemptionRequest{}, false
	}
	return clone(q.items[q.head+index]), true
}

// Pending is the sum of queued amounts for receiver.
func (q *Queue) Pending(receiver common.Address) *big.Int {
	return model.Copy(q.pending[receiver])
}

// Enqueue appends a request whose amount has already been burned from sender.
func (q *Queue) Enqueue(sender, receiver common.Address, amount *big.Int, now uint64) model.RedemptionRequest {
	req := model.RedemptionRequest{
		ID:        model.RedemptionID(sender, receiver, amount, now, q.nonce),
		Sender:    sender,
		Receiver:  receiver,
		Amount:    model.Copy(amount),
		Timestamp: now,
	}

	prevItems, prevNonce := q.items, q.nonce
	q.items = append(q.items, req)
	q.nonce++
	q.rec.Record(func() { q.items, q.nonce = prevItems, prevNonce })

	q.addPending(receiver, amount)
	return clone(req)
}

// Cancel pops count entries from the head and hands each to refund, which
// returns the burned amount to its sender.
func (q *Queue) Cancel(count int, refund func(model.RedemptionRequest) error) ([]model.RedemptionRequest, error) {
	if count <= 0 || count > q.Len() {
		return nil, model.NewError(model.CodeInvalidInput, "cancel %d of %d queued", count, q.Len())
	}

	out := make([]model.RedemptionRequest, 0, count)
	for i := 0; i < count; i++ {
		req := q.pop()
		if err := refund(clone(req)); err != nil {
			return nil, err
		}
		out = append(out, req)
	}
	q.compact()
	return out, nil
}

// Settle decides whether the head entry can be paid. Returning false stops
// the batch and leaves the entry queued.
type Settle func(model.RedemptionRequest) (bool, error)

// Process settles up to count entries from the head, all of them when count
// is 0 (the length is taken once, at call time). A refused settlement ends
// the batch early and is not an error.
func (q *Queue) Process(count int, settle Settle) ([]model.RedemptionRequest, error) {
	if count < 0 {
		return nil, model.NewError(model.CodeInvalidInput, "negative count")
	}
	if count == 0 || count > q.Len() {
		count = q.Len()
	}

	out := make([]model.RedemptionRequest, 0, count)
	for i := 0; i < count; i++ {
		ok, err := settle(clone(q.items[q.head]))
		if err != nil {
			return nil, err
		}
		if !ok {
			break
		}
		out = append(out, q.pop())
	}
	q.compact()
	return out, nil
}

func (q *Queue) pop() model.RedemptionRequest {
	req := q.items[q.head]
	q.head++
	q.rec.Record(func() { q.head-- })
	q.subPending(req.Receiver, req.Amount)
	return clone(req)
}

// compact drops consumed slots once enough have piled up. Entries are never
// mutated in place, so undo steps holding the old slice stay valid.
func (q *Queue) compact() {
	if q.head < compactAt || q.head*2 < len(q.items) {
		return
	}
	prevItems, prevHead := q.items, q.head
	q.items = append([]model.RedemptionRequest(nil), q.items[q.head:]...)
	q.head = 0
	q.rec.Record(func() { q.items, q.head = prevItems, prevHead })
}

func (q *Queue) addPending(receiver common.Address, amount *big.Int) {
	q.setPending(receiver, new(big.Int).Add(q.Pending(receiver), amount))
}

func (q *Queue) subPending(receiver common.Address, amount *big.Int) {
	q.setPending(receiver, new(big.Int).Sub(q.Pending(receiver), amount))
}

func (q *Queue) setPending(receiver common.Address, v *big.Int) {
	prev, existed := q.pending[receiver]
	if v.Sign() == 0 {
		delete(q.pending, receiver)
	} else {
		q.pending[receiver] = v
	}
	q.rec.Record(func() {
		if existed {
			q.pending[receiver] = prev
		} else {
			delete(q.pending, receiver)
		}
	})
}

func clone(r model.RedemptionRequest) model.RedemptionRequest {
	r.Amount = model.Copy(r.Amount)
	return r
}

type State struct {
	Requests []model.RedemptionRequest `json:"requests"`
	Nonce    uint64                    `json:"nonce"`
}

func (q *Queue) Export() State {
	st := State{Nonce: q.nonce, Requests: make([]model.RedemptionRequest, 0, q.Len())}
	for _, r := range q.items[q.head:] {
		st.Requests = append(st.Requests, clone(r))
	}
	return st
}

// Import restores the queue; per-receiver sums are recomputed from the
// entries.
func (q *Queue) Import(st State) {
	q.items = make([]model.RedemptionRequest, 0, len(st.Requests))
	q.head = 0
	q.pending = make(map[common.Address]*big.Int)
	q.nonce = st.Nonce
	for _, r := range st.Requests {
		q.items = append(q.items, clone(r))
		sum := q.Pending(r.Receiver)
		q.pending[r.Receiver] = sum.Add(sum, r.Amount)
	}
}
