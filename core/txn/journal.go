// Package txn provides the undo journal every engine component writes to, so
// that a failed operation leaves no partial state behind.
package txn

// Recorder receives the undo step of a mutation that has just been applied.
type Recorder interface {
	Record(undo func())
}

type discard struct{}

func (discard) Record(func()) {}

// Discard drops every undo step. Components built without a journal use it.
var Discard Recorder = discard{}

// Or returns rec, or Discard when rec is nil.
func Or(rec Recorder) Recorder {
	if rec == nil {
		return Discard
	}
	return rec
}

// Journal collects undo steps between Begin and Commit/Rollback. Outside a
// scope nothing is recorded.
type Journal struct {
	active bool
	undo   []func()
}

func New() *Journal {
	return &Journal{}
}

func (j *Journal) Begin() {
	j.active = true
	j.undo = j.undo[:0]
}

func (j *Journal) Record(undo func()) {
	if !j.active {
		return
	}
	j.undo = append(j.undo, undo)
}

func (j *Journal) Commit() {
	j.active = false
	j.undo = j.undo[:0]
}

// Rollback replays the recorded undo steps in reverse order.
func (j *Journal) Rollback() {
	j.active = false
	for i := len(j.undo) - 1; i >= 0; i-- {
		j.undo[i]()
	}
	j.undo = j.undo[:0]
}

func (j *Journal) Active() bool {
	return j.active
}

func (j *Journal) Len() int {
	return len(j.undo)
}
