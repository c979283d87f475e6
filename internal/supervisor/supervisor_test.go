package supervisor

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type testJob struct {
	priority int
	key      string
}

func (j testJob) Priority() int      { return j.priority }
func (j testJob) ExclusionKey() string { return j.key }

func newSupervisor(limit LimitFunc[int]) *Supervisor[testJob, int, string] {
	return New[testJob, int, string](limit)
}

func TestStealPriorityOrder(t *testing.T) {
	s := newSupervisor(nil)
	s.Queue.Append(testJob{priority: 3, key: "a"})
	s.Queue.Append(testJob{priority: 2, key: "b"})
	s.Queue.Append(testJob{priority: 1, key: "c"})
	s.Queue.SortByPriorityDesc()

	running := make([]Slot[string], 2)
	got := s.Steal(running, 2)
	require.Len(t, got, 2)
	assert.Equal(t, 3, got[0].priority)
	assert.Equal(t, 2, got[1].priority)
	assert.Equal(t, 1, s.Queue.Len())
}

func TestStealExclusionSkipsBlockedJob(t *testing.T) {
	s := newSupervisor(nil)
	s.Queue.Append(testJob{priority: 2, key: "shared"})
	s.Queue.Append(testJob{priority: 1, key: "other"})

	running := []Slot[string]{{Occupied: true, Key: "shared"}}
	got := s.Steal(running, 2)

	// the high priority job is blocked by exclusion, the lower priority,
	// non-conflicting job should run ahead of it
	require.Len(t, got, 1)
	assert.Equal(t, "other", got[0].key)
	assert.Equal(t, 1, s.Queue.Len())
	assert.Equal(t, "shared", s.Queue.At(0).key)
}

func TestStealThrottleSkipsBlockedJobsButNotLaterJob(t *testing.T) {
	limit := func(p int) (uint8, bool) {
		return uint8(p), true // cap == priority, so priority 1 throttles at 1 busy worker
	}
	s := newSupervisor(limit)
	s.Queue.Append(testJob{priority: 1, key: "a"})
	s.Queue.Append(testJob{priority: 1, key: "b"})
	s.Queue.Append(testJob{priority: 2, key: "c"})

	running := []Slot[string]{{Occupied: true, Key: "already-running"}}
	got := s.Steal(running, 3)

	// busy == 1 at entry; priority-1 cap is 1 so both priority-1 jobs are
	// throttled (busy never increments within the call); priority-2 cap is
	// 2 so the priority-2 job is selected.
	require.Len(t, got, 1)
	assert.Equal(t, "c", got[0].key)
	assert.Equal(t, 2, s.Queue.Len())
}

func TestStealNeverExceedsLimit(t *testing.T) {
	s := newSupervisor(nil)
	for i := 0; i < 5; i++ {
		s.Queue.Append(testJob{priority: i, key: string(rune('a' + i))})
	}
	s.Queue.SortByPriorityDesc()

	got := s.Steal(make([]Slot[string], 5), 2)
	assert.Len(t, got, 2)
	assert.Equal(t, 3, s.Queue.Len())
}

func TestStealSkipDoesNotRemoveBlockedCandidate(t *testing.T) {
	s := newSupervisor(nil)
	s.Queue.Append(testJob{priority: 2, key: "x"})
	s.Queue.Append(testJob{priority: 1, key: "y"})

	running := []Slot[string]{{Occupied: true, Key: "x"}, {Occupied: true, Key: "y"}}
	got := s.Steal(running, 5)

	assert.Empty(t, got)
	assert.Equal(t, 2, s.Queue.Len())
}

// TestStealSoftCapWithinOneCall documents a deliberate choice: a single
// Steal call can admit more capped jobs than the cap if busy started below
// it, since busy is a snapshot and isn't incremented per selection.
func TestStealSoftCapWithinOneCall(t *testing.T) {
	limit := func(int) (uint8, bool) { return 1, true }
	s := newSupervisor(limit)
	s.Queue.Append(testJob{priority: 1, key: "a"})
	s.Queue.Append(testJob{priority: 1, key: "b"})

	got := s.Steal(make([]Slot[string], 2), 2)
	assert.Len(t, got, 2, "busy snapshot at entry was 0 so both capped jobs are admitted in one call")
}
