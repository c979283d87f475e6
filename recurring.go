package jobrunner

import (
	"time"

	"github.com/go-foundations/jobrunner/internal/source"
)

// RecurringEntry is a recurring job definition consulted by the pool's
// loader on every dispatch round: DueNow reports whether a new instance
// should be enqueued right now, NotifyEnqueued lets the entry reset its
// window when a matching job lands in the queue (whether emitted by this
// entry or submitted directly by a producer), and NextDue bounds how long
// the loader may sleep before checking again.
type RecurringEntry[J any] = source.Entry[J]

// NewIntervalEntry creates a recurring entry that re-emits a clone of
// template whenever now is strictly after the last matching enqueue plus
// interval. lastEnqueue seeds the initial window, typically time.Now() for
// "start counting from pool startup" or a time in the past to make the
// entry due immediately.
func NewIntervalEntry[J Recurrable[J]](template J, interval time.Duration, lastEnqueue time.Time) RecurringEntry[J] {
	return source.NewIntervalEntry(template, interval, lastEnqueue)
}

// NewCronEntry creates a recurring entry driven by a standard five-field
// cron expression rather than a fixed interval, for templates that should
// fire on a wall-clock schedule.
func NewCronEntry[J Recurrable[J]](template J, expr string, lastEnqueue time.Time) (RecurringEntry[J], error) {
	return source.NewCronEntry(template, expr, lastEnqueue)
}

// NeverRecurring is a recurring entry that never fires, kept only so a
// registry can be declared generically over an entry type even when no
// recurring jobs are configured. An empty slice of RecurringEntry already
// achieves this in idiomatic Go; NeverRecurring exists for callers who want
// an explicit placeholder value instead. It must never actually be polled.
func NeverRecurring[J any]() RecurringEntry[J] {
	return source.NeverEntry[J]{}
}
