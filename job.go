// Package jobrunner provides a prioritized, exclusion-aware worker pool: a
// fixed set of goroutines that dispatch jobs from a shared queue under three
// simultaneous constraints — strict priority order, per-job exclusion keys
// (so two jobs that would conflict never run at the same time), and a
// priority-dependent concurrency cap. Recurring jobs are re-enqueued on an
// interval or cron schedule and suppressed whenever a matching job arrives
// from producers.
package jobrunner

import (
	"cmp"

	"github.com/go-foundations/jobrunner/internal/source"
	"github.com/go-foundations/jobrunner/internal/supervisor"
)

// Job is the contract a producer's work item must satisfy. Priority values
// are compared with the ordinary `>` operator (higher sorts first);
// ExclusionKey identifies the resource a job occupies while running — two
// jobs with the same key never run concurrently. Execute does the actual
// work and runs on a worker goroutine; a panic inside Execute is recovered
// by the pool and does not take down the worker.
type Job[P cmp.Ordered, K comparable] interface {
	Priority() P
	ExclusionKey() K
	Execute()
}

// NoExclusion is an exclusion key for jobs that never conflict with
// anything, including other NoExclusion jobs. Each value returned by
// NewNoExclusionKey is distinct under ==, since it wraps a pointer obtained
// from a fresh allocation: pointer identity is a zero-allocation-logic way
// to get a comparable type whose instances never compare equal.
type NoExclusion struct {
	token *byte
}

// NewNoExclusionKey returns a key distinct from every other key ever
// returned by this function, for jobs whose ExclusionKey method should
// behave as "conflicts with nothing".
func NewNoExclusionKey() NoExclusion {
	return NoExclusion{token: new(byte)}
}

// MergeResult is the outcome of offering an incoming job to an existing
// queued job; see MergeSuccess and MergeNotMerged.
type MergeResult[J any] = source.MergeResult[J]

// MergeFunc collapses an incoming job into an existing queued one before it
// is dispatched. It runs under the pool's internal mutex, so it must be
// pure and non-blocking.
type MergeFunc[J any] = source.MergeFunc[J]

// MergeSuccess reports that an incoming job was absorbed into the existing
// queued job the merge function was given (which it may have mutated in
// place).
func MergeSuccess[J any]() MergeResult[J] {
	return source.Success[J]()
}

// MergeNotMerged reports that the incoming job was not absorbed and should
// be tried against the next queued entry.
func MergeNotMerged[J any](job J) MergeResult[J] {
	return source.NotMerged(job)
}

// ConcurrencyLimitFunc reports the maximum number of workers that may be
// busy at the instant a job of priority p is dispatched. The second return
// value is false when priority p has no cap.
type ConcurrencyLimitFunc[P cmp.Ordered] = supervisor.LimitFunc[P]

// NoConcurrencyLimit is a ConcurrencyLimitFunc that never throttles any
// priority.
func NoConcurrencyLimit[P cmp.Ordered](p P) (uint8, bool) {
	return supervisor.NoLimit[P](p)
}

// Recurrable is the contract a recurring job template must satisfy:
// Matches reports whether a freshly-enqueued job counts as an instance of
// this template (for the purpose of resetting its recurrence window), and
// Clone produces the next instance to enqueue when the entry comes due.
type Recurrable[J any] = source.Recurrable[J]
