// Package limiter enforces per-call minimums and rolling-window caps on the
// mint and redeem paths.
package limiter

import (
	"math/big"

	"usdo-ledger/core/model"
	"usdo-ledger/core/txn"
)

// Window is a fixed-length window that restarts the first time it is used at
// or after Start+Duration.
type Window struct {
	Start    uint64   `json:"start"`
	Used     *big.Int `json:"used"`
	Limit    *big.Int `json:"limit"`
	Duration uint64   `json:"duration"`
	Minimum  *big.Int `json:"minimum"`
}

func NewWindow(limit *big.Int, duration uint64, minimum *big.Int) Window {
	return Window{
		Used:     new(big.Int),
		Limit:    model.Copy(limit),
		Duration: duration,
		Minimum:  model.Copy(minimum),
	}
}

func (w Window) clone() Window {
	w.Used = model.Copy(w.Used)
	w.Limit = model.Copy(w.Limit)
	w.Minimum = model.Copy(w.Minimum)
	return w
}

// Expired reports whether the window starting at Start has run its full
// Duration by now. A now before Start never expires the window.
func (w Window) Expired(now uint64) bool {
	return now >= w.Start && now-w.Start >= w.Duration
}

// Remaining is what can still be consumed at now.
func (w Window) Remaining(now uint64) *big.Int {
	used := w.Used
	if w.Expired(now) {
		used = new(big.Int)
	}
	rem := new(big.Int).Sub(w.Limit, used)
	if rem.Sign() < 0 {
		rem.SetInt64(0)
	}
	return rem
}

type Kind int

const (
	Mint Kind = iota
	Redeem
)

type Limiter struct {
	mint   Window
	redeem Window

	rec txn.Recorder
}

func New(mint, redeem Window, rec txn.Recorder) *Limiter {
	return &Limiter{mint: mint.clone(), redeem: redeem.clone(), rec: txn.Or(rec)}
}

// CheckAndConsumeMint consumes amount from the mint window. The mint minimum
// is enforced by the caller, which also knows about first deposits.
func (l *Limiter) CheckAndConsumeMint(now uint64, amount *big.Int) error {
	return l.consume(Mint, now, amount)
}

// CheckAndConsumeRedeem rejects amounts below the redeem minimum before the
// window is touched.
func (l *Limiter) CheckAndConsumeRedeem(now uint64, amount *big.Int) error {
	if amount.Cmp(l.redeem.Minimum) < 0 {
		return model.NewError(model.CodeRedeemLessThanMinimum, "%s below minimum %s", amount, l.redeem.Minimum)
	}
	return l.consume(Redeem, now, amount)
}

func (l *Limiter) consume(kind Kind, now uint64, amount *big.Int) error {
	w := l.window(kind).clone()
	if w.Expired(now) {
		w.Start = now
		w.Used = new(big.Int)
	}

	used := new(big.Int).Add(w.Used, amount)
	if used.Cmp(w.Limit) > 0 {
		code := model.CodeMintLimitExceeded
		if kind == Redeem {
			code = model.CodeRedeemLimitExceeded
		}
		return model.NewError(code, "window used %s + %s exceeds limit %s", w.Used, amount, w.Limit)
	}
	w.Used = used
	l.set(kind, w)
	return nil
}

func (l *Limiter) Window(kind Kind) Window {
	return l.window(kind).clone()
}

func (l *Limiter) MintMinimum() *big.Int {
	return model.Copy(l.mint.Minimum)
}

func (l *Limiter) SetLimit(kind Kind, limit *big.Int) {
	w := l.window(kind).clone()
	w.Limit = model.Copy(limit)
	l.set(kind, w)
}

func (l *Limiter) SetDuration(kind Kind, duration uint64) {
	w := l.window(kind).clone()
	w.Duration = duration
	l.set(kind, w)
}

func (l *Limiter) SetMinimum(kind Kind, minimum *big.Int) {
	w := l.window(kind).clone()
	w.Minimum = model.Copy(minimum)
	l.set(kind, w)
}

func (l *Limiter) window(kind Kind) *Window {
	if kind == Redeem {
		return &l.redeem
	}
	return &l.mint
}

func (l *Limiter) set(kind Kind, w Window) {
	slot := l.window(kind)
	prev := *slot
	*slot = w
	l.rec.Record(func() { *slot = prev })
}

type State struct {
	Mint   Window `json:"mint"`
	Redeem Window `json:"redeem"`
}

func (l *Limiter) Export() State {
	return State{Mint: l.mint.clone(), Redeem: l.redeem.clone()}
}

func (l *Limiter) Import(st State) {
	l.mint = st.Mint.clone()
	l.redeem = st.Redeem.clone()
}
