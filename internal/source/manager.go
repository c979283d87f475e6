package source

import (
	"sync"
	"time"
)

// defaultIdleCap is the fixed wake interval used when the recurring
// registry is empty: arbitrary, but finite, so shutdown is still detected
// even with nothing recurring configured.
const defaultIdleCap = 5 * time.Second

// Manager drives intake: it drains the merging channel, consults the
// recurring registry, and pushes everything into the shared pending queue,
// sorted by priority, each time Load is called.
type Manager[J any] struct {
	registry *Registry[J]
	recv     *receiver[J]
	idleCap  time.Duration
}

// New creates a (Sender, Manager) pair from a set of recurring entries and
// an optional merge function, using the default 5s idle cap.
func New[J any](entries []Entry[J], mergeFn MergeFunc[J]) (Sender[J], *Manager[J]) {
	return NewWithIdleCap(entries, mergeFn, defaultIdleCap)
}

// NewWithIdleCap is New with an explicit idle cap, mainly for tests that
// don't want to wait 5 real seconds for a timeout to matter.
func NewWithIdleCap[J any](entries []Entry[J], mergeFn MergeFunc[J], idleCap time.Duration) (Sender[J], *Manager[J]) {
	sender, recv := newChannel(mergeFn)
	return sender, &Manager[J]{
		registry: NewRegistry(entries...),
		recv:     recv,
		idleCap:  idleCap,
	}
}

// SoonestDue exposes the registry's SoonestDue so the worker pool can bound
// its completion-wait by it.
func (m *Manager[J]) SoonestDue() (time.Time, bool) {
	return m.registry.SoonestDue()
}

// queueTimeout computes the timeout for this load pass: zero if something
// is already due, otherwise the time remaining until the soonest recurring
// entry is due, or the idle cap if there are no recurring entries at all.
func (m *Manager[J]) queueTimeout() time.Duration {
	soonest, ok := m.registry.SoonestDue()
	if !ok {
		return m.idleCap
	}
	if d := time.Until(soonest); d > 0 {
		return d
	}
	return 0
}

// LoadStats summarizes one Load pass for logging and metrics: how many jobs
// arrived from producers, how many of those were absorbed by merging rather
// than appended fresh, and how many recurring instances came due.
type LoadStats struct {
	Received         int
	Merged           int
	RecurringEmitted int
}

// Load runs one intake pass:
//  1. compute the timeout from the registry
//  2. if zero, drain whatever's ready without blocking
//  3. otherwise await one arrival, releasing mu across the blocking wait
//  4. regardless of the channel result, collect due recurring jobs, notify
//     every entry before each lands in the queue, and append them
//  5. sort the queue by priority descending
//
// mu must already be held by the caller on entry and is held again on
// return; Load releases it only internally, across the blocking channel
// wait in step 3.
func (m *Manager[J]) Load(waitForNew bool, mu *sync.Mutex, queue Queue[J]) LoadStats {
	timeout := m.queueTimeout()
	notify := m.registry.NotifyEnqueued

	var intake intakeStats
	if timeout <= 0 {
		intake = m.recv.drainReady(queue, notify)
	} else {
		intake = m.recv.awaitOne(mu, queue, timeout, waitForNew, notify)
	}

	due := m.registry.CollectDue()
	for _, job := range due {
		m.registry.NotifyEnqueued(job)
		queue.Append(job)
	}

	queue.SortByPriorityDesc()

	return LoadStats{
		Received:         intake.received,
		Merged:           intake.merged,
		RecurringEmitted: len(due),
	}
}
