package supervisor

import "cmp"

// LimitFunc reports the maximum number of workers that may be busy at the
// instant a job of priority p is dispatched. The second return value is
// false when there is no cap for that priority.
type LimitFunc[P cmp.Ordered] func(p P) (limit uint8, ok bool)

// NoLimit is a LimitFunc that never throttles any priority.
func NoLimit[P cmp.Ordered](P) (uint8, bool) { return 0, false }

// Supervisor owns the pending queue and the concurrency-limit callback, and
// selects runnable batches from the queue via Steal.
type Supervisor[J Job[P, K], P cmp.Ordered, K comparable] struct {
	Queue *PendingQueue[J, P, K]
	Limit LimitFunc[P]
}

// New creates a Supervisor with an empty queue and the given concurrency
// limit function. A nil limit is treated as NoLimit.
func New[J Job[P, K], P cmp.Ordered, K comparable](limit LimitFunc[P]) *Supervisor[J, P, K] {
	if limit == nil {
		limit = NoLimit[P]
	}
	return &Supervisor[J, P, K]{
		Queue: NewPendingQueue[J, P, K](),
		Limit: limit,
	}
}

// Steal produces up to limit dispatchable jobs from the front of the
// priority-sorted queue without violating the concurrency cap or exclusion
// constraints implied by running.
//
// It walks the queue maintaining a skip pointer: a candidate blocked by
// throttle or exclusion is passed over (skip advances, the job stays
// queued) so that lower-priority, non-conflicting work can run ahead of
// blocked higher-priority work. A selected candidate is removed from the
// queue at its current position and appended to the result; the skip
// pointer does not advance in that case, since the next element has shifted
// into the vacated index.
//
// busy is computed once at entry and is not updated as jobs are selected
// within this call, so a single call can return multiple jobs of a capped
// priority whose combined run would exceed the cap if busy started below
// it. This is a deliberate soft cap rather than a hard one; see DESIGN.md.
func (s *Supervisor[J, P, K]) Steal(running []Slot[K], limit int) []J {
	busy := 0
	for _, slot := range running {
		if slot.Occupied {
			busy++
		}
	}

	var result []J
	skip := 0
	for len(result) < limit && skip < s.Queue.Len() {
		candidate := s.Queue.At(skip)

		if cap, limited := s.Limit(candidate.Priority()); limited && busy >= int(cap) {
			skip++
			continue
		}

		key := candidate.ExclusionKey()
		conflict := false
		for _, slot := range running {
			if slot.Occupied && slot.Key == key {
				conflict = true
				break
			}
		}
		if conflict {
			skip++
			continue
		}

		s.Queue.items = append(s.Queue.items[:skip], s.Queue.items[skip+1:]...)
		result = append(result, candidate)
	}
	return result
}
