package source

import (
	"cmp"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/go-foundations/jobrunner/internal/supervisor"
)

// tester is a minimal recurring/prioritized job used across this package's
// tests.
type tester struct {
	priority int
}

func (t tester) Priority() int        { return t.priority }
func (t tester) ExclusionKey() struct{} { return struct{}{} }
func (t tester) Matches(other tester) bool { return t.priority == other.priority }
func (t tester) Clone() tester        { return t }

// keyedTester is used only by TestMergeProcedure, which needs a distinct
// merge key per job; it has to be declared at package scope since Go
// doesn't allow attaching methods to a type declared inside a function
// body, and PendingQueue's type parameter requires Priority/ExclusionKey.
type keyedTester struct {
	priority int
	key      rune
}

func (t keyedTester) Priority() int      { return t.priority }
func (t keyedTester) ExclusionKey() rune { return t.key }

func newQueue() *supervisor.PendingQueue[tester, int, struct{}] {
	return supervisor.NewPendingQueue[tester, int, struct{}]()
}

func lockedLoad[J any](m *Manager[J], waitForNew bool, q Queue[J]) {
	var mu sync.Mutex
	mu.Lock()
	m.Load(waitForNew, &mu, q)
	mu.Unlock()
}

// drainAll empties q the same way the worker pool's loader does (via
// Supervisor.Steal), so a test can simulate a dispatch round between two
// Load passes instead of letting entries pile up across calls.
func drainAll[J supervisor.Job[P, K], P cmp.Ordered, K comparable](q *supervisor.PendingQueue[J, P, K]) []J {
	sup := supervisor.New[J, P, K](nil)
	sup.Queue = q
	return sup.Steal(nil, q.Len())
}

func TestPriorityQueueOrdering(t *testing.T) {
	queue := newQueue()
	send, manager := New[tester](nil, nil)
	defer send.Close()

	require.NoError(t, send.Send(tester{priority: 2}))
	require.NoError(t, send.Send(tester{priority: 3}))
	require.NoError(t, send.Send(tester{priority: 1}))

	time.Sleep(5 * time.Millisecond)
	lockedLoad(manager, false, queue)

	got := queue.Snapshot()
	require.Len(t, got, 3)
	assert.Equal(t, []tester{{priority: 3}, {priority: 2}, {priority: 1}}, got)
}

func TestRecurringReadyImmediately(t *testing.T) {
	queue := newQueue()
	oneMinAgo := time.Now().Add(-time.Minute)
	entries := []Entry[tester]{
		NewIntervalEntry(tester{priority: 1}, time.Second, oneMinAgo),
		NewIntervalEntry(tester{priority: 2}, time.Second, oneMinAgo),
		NewIntervalEntry(tester{priority: 3}, time.Second, oneMinAgo),
	}
	send, manager := New[tester](entries, nil)
	defer send.Close()

	before := time.Now()
	lockedLoad(manager, false, queue)
	assert.Less(t, time.Since(before), time.Millisecond)

	got := queue.Snapshot()
	assert.Equal(t, []tester{{priority: 3}, {priority: 2}, {priority: 1}}, got)
}

// TestPriorityOrderWithRecurringAndProducer mixes two recurring entries
// that are due now with a directly producer-submitted job of priority 2,
// and checks a single load pass orders them strictly by priority.
func TestPriorityOrderWithRecurringAndProducer(t *testing.T) {
	queue := newQueue()
	oneMinAgo := time.Now().Add(-time.Minute)
	entries := []Entry[tester]{
		NewIntervalEntry(tester{priority: 1}, time.Second, oneMinAgo),
		NewIntervalEntry(tester{priority: 3}, time.Second, oneMinAgo),
	}
	send, manager := New[tester](entries, nil)
	defer send.Close()

	require.NoError(t, send.Send(tester{priority: 2}))
	time.Sleep(5 * time.Millisecond)

	lockedLoad(manager, false, queue)
	assert.Equal(t, []tester{{priority: 3}, {priority: 2}, {priority: 1}}, queue.Snapshot())
}

func TestRecurringIntervalGating(t *testing.T) {
	queue := newQueue()
	oneMinAgo := time.Now().Add(-time.Minute)
	entries := []Entry[tester]{
		NewIntervalEntry(tester{priority: 1}, time.Millisecond, oneMinAgo),
		NewIntervalEntry(tester{priority: 2}, time.Millisecond, oneMinAgo),
		NewIntervalEntry(tester{priority: 3}, time.Millisecond, oneMinAgo),
	}
	send, manager := New[tester](entries, nil)
	defer send.Close()

	lockedLoad(manager, false, queue)
	assert.Equal(t, []tester{{priority: 3}, {priority: 2}, {priority: 1}}, queue.Snapshot())
	drainAll(queue)

	// this is inherently timing sensitive near the interval boundary, so we
	// only assert that a reload after sleeping past the interval always
	// picks the jobs back up. The queue is drained between loads, the way
	// the worker pool's loader drains it via Steal after every dispatch
	// round, so the second load's result reflects only what came due in
	// this pass rather than an accumulation across both passes.
	time.Sleep(2 * time.Millisecond)
	lockedLoad(manager, false, queue)
	assert.Equal(t, []tester{{priority: 3}, {priority: 2}, {priority: 1}}, queue.Snapshot())
}

func TestQueuedJobResetsMatchingRecurringEntry(t *testing.T) {
	queue := newQueue()
	start := time.Now()
	halfIntervalAgo := start.Add(-10 * time.Millisecond)
	entries := []Entry[tester]{
		NewIntervalEntry(tester{priority: 1}, 20*time.Millisecond, halfIntervalAgo),
		NewIntervalEntry(tester{priority: 2}, 20*time.Millisecond, halfIntervalAgo),
		NewIntervalEntry(tester{priority: 3}, 20*time.Millisecond, halfIntervalAgo),
	}
	send, manager := New[tester](entries, nil)
	defer send.Close()

	require.NoError(t, send.Send(tester{priority: 2}))
	lockedLoad(manager, false, queue)
	assert.Equal(t, []tester{{priority: 2}}, queue.Snapshot())
	drainAll(queue)

	// with the queue empty, this load blocks in awaitOne until priority 1
	// and 3's entries come due, giving the earlier enqueue of priority 2 a
	// chance to have reset its own entry's window in the meantime.
	lockedLoad(manager, false, queue)
	assert.ElementsMatch(t, []tester{{priority: 3}, {priority: 1}}, queue.Snapshot())
}

func TestMergeProcedure(t *testing.T) {
	mergeFn := func(incoming keyedTester, existing *keyedTester) MergeResult[keyedTester] {
		if incoming.key != existing.key {
			return NotMerged(incoming)
		}
		if incoming.priority > existing.priority {
			existing.priority = incoming.priority
		}
		return Success[keyedTester]()
	}

	queue := supervisor.NewPendingQueue[keyedTester, int, rune]()
	send, manager := New[keyedTester](nil, mergeFn)
	defer send.Close()

	require.NoError(t, send.Send(keyedTester{priority: 1, key: 'c'}))
	require.NoError(t, send.Send(keyedTester{priority: 1, key: 'b'}))
	require.NoError(t, send.Send(keyedTester{priority: 2, key: 'a'}))
	lockedLoad(manager, false, queue)

	require.NoError(t, send.Send(keyedTester{priority: 1, key: 'a'}))
	require.NoError(t, send.Send(keyedTester{priority: 2, key: 'b'}))
	lockedLoad(manager, false, queue)

	got := queue.Snapshot()
	require.Len(t, got, 3)
	assert.Equal(t, keyedTester{priority: 2, key: 'a'}, got[0])
	assert.Equal(t, keyedTester{priority: 2, key: 'b'}, got[1])
	assert.Equal(t, keyedTester{priority: 1, key: 'c'}, got[2])
}
