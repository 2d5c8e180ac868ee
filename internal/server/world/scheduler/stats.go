package scheduler

import "sync/atomic"

// Stats is a diagnostic snapshot of the scheduler.
type Stats struct {
	Pending     int
	Running     int
	Cached      int
	LiveBlocks  int
	Advanced    uint64
	Blocked     uint64
	Failed      uint64
	Dropped     uint64
	Evicted     uint64
	Rendered    uint64
	Regenerated uint64
}

type counters struct {
	pending     atomic.Int64
	running     atomic.Int64
	advanced    atomic.Uint64
	blocked     atomic.Uint64
	failed      atomic.Uint64
	dropped     atomic.Uint64
	evicted     atomic.Uint64
	rendered    atomic.Uint64
	regenerated atomic.Uint64
}

// Stats returns current counters. Safe to call from any goroutine.
func (s *Scheduler) Stats() Stats {
	return Stats{
		Pending:     int(s.counters.pending.Load()),
		Running:     int(s.counters.running.Load()),
		Cached:      s.cache.Len(),
		LiveBlocks:  s.pool.Live(),
		Advanced:    s.counters.advanced.Load(),
		Blocked:     s.counters.blocked.Load(),
		Failed:      s.counters.failed.Load(),
		Dropped:     s.counters.dropped.Load(),
		Evicted:     s.counters.evicted.Load(),
		Rendered:    s.counters.rendered.Load(),
		Regenerated: s.counters.regenerated.Load(),
	}
}
