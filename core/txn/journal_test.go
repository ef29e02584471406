package txn

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestJournalRollbackOrder(t *testing.T) {
	j := New()
	state := []int{}

	j.Begin()
	for i := 1; i <= 3; i++ {
		prev := append([]int(nil), state...)
		state = append(state, i)
		j.Record(func() { state = prev })
	}
	require.Equal(t, []int{1, 2, 3}, state)
	require.Equal(t, 3, j.Len())

	j.Rollback()
	require.Empty(t, state)
	require.False(t, j.Active())
}

func TestJournalCommitDropsUndo(t *testing.T) {
	j := New()
	x := 1

	j.Begin()
	x = 2
	j.Record(func() { x = 1 })
	j.Commit()
	j.Rollback()

	require.Equal(t, 2, x)
}

func TestJournalIgnoresOutsideScope(t *testing.T) {
	j := New()
	j.Record(func() { t.Fatal("must not run") })
	require.Equal(t, 0, j.Len())
	j.Begin()
	j.Rollback()
}

func TestOr(t *testing.T) {
	require.Equal(t, Discard, Or(nil))
	j := New()
	require.Equal(t, Recorder(j), Or(j))
}
