package source

import (
	"sync/atomic"
	"time"
)

// Queue is the minimal shape the channel and the source manager need from a
// pending queue: somewhere to append, inspect and sort jobs. Supervisor's
// PendingQueue satisfies this without either package importing the other.
type Queue[J any] interface {
	Append(job J)
	Len() int
	At(i int) J
	Set(i int, job J)
	SortByPriorityDesc()
}

// Sender is the producer-facing half of a merging channel: Send never
// blocks and never fails except after the channel has been explicitly
// closed (the Go stand-in for "all producers dropped their senders", since
// Go channels have no reference-counted close).
type Sender[J any] struct {
	in     chan<- J
	closed *atomic.Bool
}

// sendError is the error type of ErrChannelClosed.
type sendError string

func (e sendError) Error() string { return string(e) }

// ErrChannelClosed is returned by Sender.Send after Close has been called.
const ErrChannelClosed = sendError("jobrunner: send on closed channel")

// Send delivers job to the scheduler. It does not block on queue depth: the
// channel backing a Sender is unbounded (see newChannel below).
func (s Sender[J]) Send(job J) (err error) {
	if s.closed.Load() {
		return ErrChannelClosed
	}
	defer func() {
		if recover() != nil {
			err = ErrChannelClosed
		}
	}()
	s.in <- job
	return nil
}

// Close signals that no more jobs will be sent. Idempotent.
func (s Sender[J]) Close() {
	if s.closed.CompareAndSwap(false, true) {
		close(s.in)
	}
}

// receiver is the scheduler-facing half: drainReady and awaitOne implement
// the non-blocking and blocking intake procedures.
type receiver[J any] struct {
	out     <-chan J
	mergeFn MergeFunc[J]
}

// newChannel creates a paired Sender/receiver backed by an unbounded buffer.
// A forwarding goroutine bridges an unbuffered intake channel to an
// unbuffered output channel via an internal growable slice, which is the
// standard way to get an unbounded channel in Go: the forwarder is always
// ready to accept on the intake side, so Send effectively never blocks on
// depth, only on the brief scheduling window needed to hand the value to
// the forwarder goroutine.
func newChannel[J any](mergeFn MergeFunc[J]) (Sender[J], *receiver[J]) {
	in := make(chan J)
	out := make(chan J)

	go func() {
		defer close(out)
		var buf []J
		for {
			if len(buf) == 0 {
				v, ok := <-in
				if !ok {
					return
				}
				buf = append(buf, v)
				continue
			}
			select {
			case v, ok := <-in:
				if !ok {
					for _, item := range buf {
						out <- item
					}
					return
				}
				buf = append(buf, v)
			case out <- buf[0]:
				buf = buf[1:]
			}
		}
	}()

	return Sender[J]{in: in, closed: &atomic.Bool{}}, &receiver[J]{out: out, mergeFn: mergeFn}
}

// intakeStats tallies what happened during a drainReady or awaitOne call,
// so the source manager can report it upward for logging and metrics.
type intakeStats struct {
	received int
	merged   int
}

func (s intakeStats) hasNew() bool { return s.received > 0 }

// drainReady pulls every currently available job without blocking, calling
// onEach and enqueuing each one.
func (r *receiver[J]) drainReady(queue Queue[J], onEach func(J)) intakeStats {
	var stats intakeStats
	for {
		select {
		case job, ok := <-r.out:
			if !ok {
				return stats
			}
			onEach(job)
			if r.enqueue(queue, job) {
				stats.merged++
			}
			stats.received++
		default:
			return stats
		}
	}
}

// awaitOne drains what's ready first; if nothing arrived and (waitForNew or
// the queue is empty), block on the channel for up to timeout with the
// caller's lock released. On disconnect it degrades to a plain sleep for
// timeout rather than treating it as a fatal error.
func (r *receiver[J]) awaitOne(mu unlocker, queue Queue[J], timeout time.Duration, waitForNew bool, onEach func(J)) intakeStats {
	if stats := r.drainReady(queue, onEach); stats.hasNew() {
		return stats
	}
	if !waitForNew && queue.Len() > 0 {
		return intakeStats{}
	}

	mu.Unlock()
	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case job, ok := <-r.out:
		if !ok {
			time.Sleep(timeout)
			mu.Lock()
			return intakeStats{}
		}
		mu.Lock()
		onEach(job)
		merged := r.enqueue(queue, job)
		stats := intakeStats{received: 1}
		if merged {
			stats.merged = 1
		}
		return stats
	case <-timer.C:
		mu.Lock()
		return intakeStats{}
	}
}

// unlocker is the subset of sync.Mutex that awaitOne needs: the caller's
// lock, which awaitOne releases across the blocking receive and re-acquires
// before returning.
type unlocker interface {
	Lock()
	Unlock()
}

// enqueue implements the merge procedure: with no merge function, append to
// the tail. Otherwise walk the queue in order offering each existing entry
// the incoming job; stop on the first merge success, otherwise append to
// the tail. It reports whether the job was absorbed by merging rather than
// appended fresh.
func (r *receiver[J]) enqueue(queue Queue[J], job J) bool {
	if r.mergeFn == nil {
		queue.Append(job)
		return false
	}
	for i := 0; i < queue.Len(); i++ {
		existing := queue.At(i)
		result := r.mergeFn(job, &existing)
		if result.merged() {
			queue.Set(i, existing)
			return true
		}
		job = result.next()
	}
	queue.Append(job)
	return false
}
