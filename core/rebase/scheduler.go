// Package rebase gates how often and by how much the bonus multiplier
// advances.
package rebase

import (
	"math/big"

	"usdo-ledger/core/model"
	"usdo-ledger/core/txn"
)

const daysPerYear = 365

// Multiplier is the part of the ledger the scheduler drives.
type Multiplier interface {
	Multiplier() *big.Int
	AddToMultiplier(delta *big.Int) error
}

type Scheduler struct {
	target     Multiplier
	apyBps     uint64
	increment  *big.Int
	timeBuffer uint64
	lastUpdate uint64
	advanced   bool

	rec txn.Recorder
}

func New(target Multiplier, timeBuffer uint64, rec txn.Recorder) *Scheduler {
	return &Scheduler{
		target:     target,
		increment:  new(big.Int),
		timeBuffer: timeBuffer,
		rec:        txn.Or(rec),
	}
}

// DailyIncrement is bps * 1e18 / 365 / 1e4 with truncating divisions.
func DailyIncrement(apyBps uint64) *big.Int {
	inc := new(big.Int).Mul(new(big.Int).SetUint64(apyBps), model.Base)
	inc.Quo(inc, big.NewInt(daysPerYear))
	return inc.Quo(inc, big.NewInt(model.BpsDenominator))
}

func (s *Scheduler) SetAPY(bps uint64) {
	prevAPY, prevInc := s.apyBps, s.increment
	s.apyBps = bps
	s.increment = DailyIncrement(bps)
	s.rec.Record(func() { s.apyBps, s.increment = prevAPY, prevInc })
}

func (s *Scheduler) SetTimeBuffer(seconds uint64) {
	prev := s.timeBuffer
	s.timeBuffer = seconds
	s.rec.Record(func() { s.timeBuffer = prev })
}

// Advance applies one daily increment. It fails with TooEarly until
// timeBuffer seconds have passed since the previous advance; the very first
// advance is always allowed.
func (s *Scheduler) Advance(now uint64) (*big.Int, error) {
	if !s.Due(now) {
		return nil, model.NewError(model.CodeTooEarly, "last advance at %d, buffer %ds, now %d", s.lastUpdate, s.timeBuffer, now)
	}
	if err := s.target.AddToMultiplier(s.increment); err != nil {
		return nil, err
	}

	prevLast, prevAdvanced := s.lastUpdate, s.advanced
	s.lastUpdate, s.advanced = now, true
	s.rec.Record(func() { s.lastUpdate, s.advanced = prevLast, prevAdvanced })
	return s.target.Multiplier(), nil
}

// Current returns the multiplier now and the one the next advance produces.
func (s *Scheduler) Current() (curr, next *big.Int) {
	curr = s.target.Multiplier()
	return curr, new(big.Int).Add(curr, s.increment)
}

func (s *Scheduler) APY() uint64 {
	return s.apyBps
}

func (s *Scheduler) Increment() *big.Int {
	return model.Copy(s.increment)
}

// Due reports whether Advance would pass its time gate at now.
func (s *Scheduler) Due(now uint64) bool {
	if !s.advanced {
		return true
	}
	return now >= s.lastUpdate && now-s.lastUpdate >= s.timeBuffer
}

func (s *Scheduler) TimeBuffer() uint64 {
	return s.timeBuffer
}

func (s *Scheduler) LastUpdate() (uint64, bool) {
	return s.lastUpdate, s.advanced
}

type State struct {
	APYBps     uint64 `json:"apy_bps"`
	TimeBuffer uint64 `json:"time_buffer"`
	LastUpdate uint64 `json:"last_update"`
	Advanced   bool   `json:"advanced"`
}

func (s *Scheduler) Export() State {
	return State{
		APYBps:     s.apyBps,
		TimeBuffer: s.timeBuffer,
		LastUpdate: s.lastUpdate,
		Advanced:   s.advanced,
	}
}

func (s *Scheduler) Import(st State) {
	s.apyBps = st.APYBps
	s.increment = DailyIncrement(st.APYBps)
	s.timeBuffer = st.TimeBuffer
	s.lastUpdate = st.LastUpdate
	s.advanced = st.Advanced
}
