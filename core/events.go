package core

import (
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"usdo-ledger/core/model"
)

// Sink receives committed events in order.
type Sink interface {
	Emit(e model.Event)
}

// LogSink writes events as log lines.
type LogSink struct {
	Entry *logrus.Entry
}

func (s LogSink) Emit(e model.Event) {
	s.Entry.WithFields(logrus.Fields{
		"kind":   e.Kind,
		"op":     e.Op,
		"from":   e.From.Hex(),
		"to":     e.To.Hex(),
		"amount": e.Amount,
		"ledger": e.Ledger,
		"fee":    e.Fee,
		"count":  e.Count,
		"id":     e.ID.Hex(),
	}).Debug("event")
}

// MemorySink keeps the most recent events in memory.
type MemorySink struct {
	mu     sync.Mutex
	events []model.Event
	max    int
}

// NewMemorySink keeps up to limit events; 0 keeps all of them.
func NewMemorySink(limit int) *MemorySink {
	return &MemorySink{max: limit}
}

func (s *MemorySink) Emit(e model.Event) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, e)
	if s.max > 0 && len(s.events) > s.max {
		s.events = append([]model.Event(nil), s.events[len(s.events)-s.max:]...)
	}
}

func (s *MemorySink) Events() []model.Event {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]model.Event(nil), s.events...)
}

// Tee sends every event to each sink in turn.
type Tee []Sink

func (t Tee) Emit(e model.Event) {
	for _, s := range t {
		s.Emit(e)
	}
}

// WallClock is the default clock, in unix seconds.
func WallClock() uint64 {
	return uint64(time.Now().Unix())
}
