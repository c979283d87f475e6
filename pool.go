package jobrunner

import (
	"cmp"
	"errors"
	"sync"
	"time"

	"github.com/go-foundations/jobrunner/internal/source"
	"github.com/go-foundations/jobrunner/internal/supervisor"
	"github.com/go-foundations/jobrunner/internal/telemetry"
)

// Config holds the settings a Pool is spawned with.
type Config struct {
	// ThreadNum is the fixed number of worker goroutines.
	ThreadNum int
	// IdleCap bounds how long the loader sleeps when the recurring registry
	// is empty and nothing is pending.
	IdleCap time.Duration
	// Logger receives dispatch-round and job lifecycle events. Nil means no
	// logging.
	Logger *telemetry.Logger
	// Metrics receives queue-depth and dispatch counters. Nil means metrics
	// are not collected.
	Metrics *telemetry.Metrics
}

// DefaultConfig returns a four-worker pool configuration with a 5s idle cap
// and no logging or metrics.
func DefaultConfig() Config {
	return Config{
		ThreadNum: 4,
		IdleCap:   5 * time.Second,
	}
}

func (c Config) withDefaults() Config {
	if c.ThreadNum <= 0 {
		c.ThreadNum = 1
	}
	if c.IdleCap <= 0 {
		c.IdleCap = 5 * time.Second
	}
	return c
}

// ErrLoaderStopped is returned by Sender.Send once the pool's loader has
// shut down.
var ErrLoaderStopped = errors.New("jobrunner: pool loader has stopped")

// Sender is the producer-facing handle returned by Spawn.
type Sender[J any] struct {
	inner source.Sender[J]
	done  <-chan struct{}
}

// Send delivers job to the pool. It never blocks on queue depth.
func (s Sender[J]) Send(job J) error {
	select {
	case <-s.done:
		return ErrLoaderStopped
	default:
	}
	if err := s.inner.Send(job); err != nil {
		return ErrLoaderStopped
	}
	return nil
}

// Pool is a fixed-size worker pool that dispatches jobs from a shared
// priority queue under exclusion and concurrency-cap constraints. One
// loader goroutine drives intake (via an internal Source Manager) and
// dispatch selection (via an internal Supervisor); ThreadNum worker
// goroutines execute selected jobs.
type Pool[J Job[P, K], P cmp.Ordered, K comparable] struct {
	cfg Config

	manager    *source.Manager[J]
	supervisor *supervisor.Supervisor[J, P, K]
	logger     *telemetry.Logger
	metrics    *telemetry.Metrics

	mu      sync.Mutex
	cond    *sync.Cond
	running []supervisor.Slot[K]

	slotJobs []chan J
	done     chan struct{}
	wg       sync.WaitGroup
	stop     sync.Once
}

// Spawn builds a pool from its configuration, recurring entries, an
// optional merge function and an optional concurrency-limit function, and
// immediately starts its loader and worker goroutines. The returned Sender
// is the only way producers submit jobs.
func Spawn[J Job[P, K], P cmp.Ordered, K comparable](
	cfg Config,
	entries []RecurringEntry[J],
	mergeFn MergeFunc[J],
	limit ConcurrencyLimitFunc[P],
) (Sender[J], *Pool[J, P, K]) {
	cfg = cfg.withDefaults()

	sender, manager := source.NewWithIdleCap(entries, mergeFn, cfg.IdleCap)

	logger := cfg.Logger
	if logger == nil {
		logger = telemetry.NewNop()
	}

	p := &Pool[J, P, K]{
		cfg:        cfg,
		manager:    manager,
		supervisor: supervisor.New[J, P, K](limit),
		logger:     logger,
		metrics:    cfg.Metrics,
		running:    make([]supervisor.Slot[K], cfg.ThreadNum),
		slotJobs:   make([]chan J, cfg.ThreadNum),
		done:       make(chan struct{}),
	}
	p.cond = sync.NewCond(&p.mu)
	for i := range p.slotJobs {
		p.slotJobs[i] = make(chan J, 1)
	}

	p.wg.Add(cfg.ThreadNum + 1)
	for i := 0; i < cfg.ThreadNum; i++ {
		go p.worker(i)
	}
	go p.loaderLoop()

	return Sender[J]{inner: sender, done: p.done}, p
}

// freeSlotsLocked returns the indices of every unoccupied running slot. mu
// must be held.
func (p *Pool[J, P, K]) freeSlotsLocked() []int {
	var free []int
	for i, slot := range p.running {
		if !slot.Occupied {
			free = append(free, i)
		}
	}
	return free
}

// waitForCompletionLocked blocks the loader until a worker slot frees up,
// the soonest recurring entry comes due, or the idle cap elapses,
// whichever is first. mu must be held on entry and is held again on
// return; it is released internally while waiting on the condition
// variable, matching the lock-release discipline Load uses around its own
// blocking wait.
func (p *Pool[J, P, K]) waitForCompletionLocked() {
	wait := p.cfg.IdleCap
	if soonest, ok := p.manager.SoonestDue(); ok {
		if d := time.Until(soonest); d < wait {
			wait = d
		}
	}
	if wait < 0 {
		wait = 0
	}

	timer := time.AfterFunc(wait, func() {
		p.mu.Lock()
		p.cond.Broadcast()
		p.mu.Unlock()
	})
	defer timer.Stop()

	p.cond.Wait()
}

// loaderLoop is the single goroutine driving intake and dispatch: load,
// steal a runnable batch for every free slot, hand each selected job to its
// worker, and wait for a freed slot, the soonest recurring due time or the
// idle cap when nothing is runnable.
func (p *Pool[J, P, K]) loaderLoop() {
	defer p.wg.Done()

	p.mu.Lock()
	waitForNew := false
	for {
		select {
		case <-p.done:
			p.mu.Unlock()
			p.closeSlots()
			return
		default:
		}

		stats := p.manager.Load(waitForNew, &p.mu, p.supervisor.Queue)
		if p.metrics != nil {
			p.metrics.QueueDepth.Set(float64(p.supervisor.Queue.Len()))
			p.metrics.MergesApplied.Add(float64(stats.Merged))
			p.metrics.RecurringEmitted.Add(float64(stats.RecurringEmitted))
		}
		p.logger.RecurringEmitted(stats.RecurringEmitted)

		free := p.freeSlotsLocked()
		queuedBefore := p.supervisor.Queue.Len()
		jobs := p.supervisor.Steal(p.running, len(free))
		p.logger.DispatchRound(queuedBefore, len(jobs))

		if len(jobs) == 0 {
			// Nothing was dispatched this round, whether because the queue
			// is empty or because every candidate is blocked by exclusion
			// or throttle with all slots occupied. Either way the loader
			// must block rather than spin: wait for a worker to free a
			// slot, the soonest recurring entry to come due, or the idle
			// cap to elapse, whichever happens first. A job sent during
			// this wait does not end it; the next Load picks it up.
			waitForNew = p.supervisor.Queue.Len() == 0
			p.waitForCompletionLocked()
			continue
		}

		waitForNew = false
		for i, job := range jobs {
			slot := free[i]
			p.running[slot] = supervisor.Slot[K]{Occupied: true, Key: job.ExclusionKey()}
			if p.metrics != nil {
				p.metrics.JobsDispatched.Inc()
			}
			p.slotJobs[slot] <- job
		}
		if p.metrics != nil {
			p.metrics.BusySlots.Set(float64(p.busyCountLocked()))
		}
	}
}

func (p *Pool[J, P, K]) busyCountLocked() int {
	busy := 0
	for _, slot := range p.running {
		if slot.Occupied {
			busy++
		}
	}
	return busy
}

func (p *Pool[J, P, K]) closeSlots() {
	for _, ch := range p.slotJobs {
		close(ch)
	}
}

// worker runs a job at a time from its dedicated slot channel until the
// pool closes it.
func (p *Pool[J, P, K]) worker(id int) {
	defer p.wg.Done()
	for job := range p.slotJobs[id] {
		p.executeJob(id, job)
	}
}

// executeJob runs job.Execute, recovering any panic so a single bad job
// can't take down the worker, then clears the slot and wakes the loader.
func (p *Pool[J, P, K]) executeJob(id int, job J) {
	started := time.Now()
	p.logger.JobStarted(id, job.Priority(), job.ExclusionKey())

	defer func() {
		if r := recover(); r != nil {
			p.logger.JobPanicked(id, r)
		} else {
			p.logger.JobCompleted(id, time.Since(started))
		}

		p.mu.Lock()
		p.running[id] = supervisor.Slot[K]{}
		if p.metrics != nil {
			p.metrics.BusySlots.Set(float64(p.busyCountLocked()))
		}
		p.cond.Broadcast()
		p.mu.Unlock()
	}()

	job.Execute()
}

// Stop signals the loader to shut down and stop accepting new dispatch
// rounds. It does not block; call Wait to block until every goroutine has
// exited. Idempotent.
func (p *Pool[J, P, K]) Stop() {
	p.stop.Do(func() {
		close(p.done)
		p.mu.Lock()
		p.cond.Broadcast()
		p.mu.Unlock()
	})
}

// Wait blocks until the loader and all workers have exited after Stop.
func (p *Pool[J, P, K]) Wait() {
	p.wg.Wait()
}
