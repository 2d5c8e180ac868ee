package scheduler

import (
	"errors"
	"sort"

	"go.uber.org/zap"

	"github.com/OCharnyshevich/chunkgen/internal/server/world/chunk"
	"github.com/OCharnyshevich/chunkgen/internal/server/world/stage"
)

// step runs one coordinator pass. Failed chunks are only retried on ticks.
func (s *Scheduler) step(tick bool) {
	if tick {
		for pos, c := range s.retry {
			s.pending[pos] = c
		}
		clear(s.retry)

		edits := s.failedEdits
		s.failedEdits = nil
		for _, e := range edits {
			s.applyEdit(e)
		}
	}
	s.reap()
	s.flush()
	s.evict()
	s.schedule()
	if s.cfg.VerifyLinks {
		s.verifyLinks()
	}
	s.publish()
	s.stats.Do(s.logStats)
}

func (s *Scheduler) publish() {
	s.counters.pending.Store(int64(len(s.pending) + len(s.retry)))
	s.counters.running.Store(int64(len(s.running)))
}

func (s *Scheduler) logStats() {
	st := s.Stats()
	s.log.Info("stats",
		zap.Stringer("focal", s.focal),
		zap.Int("pending", st.Pending),
		zap.Int("running", st.Running),
		zap.Int("cached", st.Cached),
		zap.Int("live_blocks", st.LiveBlocks),
		zap.Uint64("advanced", st.Advanced),
		zap.Uint64("blocked", st.Blocked),
		zap.Uint64("failed", st.Failed),
		zap.Uint64("evicted", st.Evicted),
		zap.Uint64("rendered", st.Rendered),
	)
}

// flush applies everything queued by other goroutines since the last step.
func (s *Scheduler) flush() {
	s.mu.Lock()
	in := s.inbox
	s.inbox = inbox{requests: make(map[chunk.Pos]stage.Stage), regens: make(map[chunk.Pos]struct{})}
	s.mu.Unlock()

	if in.focal != nil {
		s.focal = *in.focal
	}
	if in.view != nil {
		s.cfg.ViewRadius = *in.view
		s.retention = RetentionFor(s.cfg.ViewRadius, s.cfg.RetentionMargin)
		s.log.Debug("retention changed", zap.Int("view_radius", s.cfg.ViewRadius))
	}
	for pos := range in.regens {
		if c, ok := s.cache.Get(pos); ok {
			if c.Running() {
				s.regen[pos] = struct{}{}
				continue
			}
			s.regenerate(c)
		}
	}
	for pos, want := range in.requests {
		s.request(pos, want)
	}
	for _, e := range in.edits {
		s.applyEdit(e)
	}
}

// request raises pos to want, creating it if needed.
func (s *Scheduler) request(pos chunk.Pos, want stage.Stage) *chunk.Chunk {
	c, _ := s.cache.GetOrCreate(pos)
	c.RaiseTarget(want)
	s.enqueue(c)
	return c
}

// enqueue marks c pending if it has work left and no job holds it.
func (s *Scheduler) enqueue(c *chunk.Chunk) {
	if c.Running() || c.Stage() >= c.Target() {
		return
	}
	if _, ok := s.retry[c.Pos()]; ok {
		return
	}
	c.SetStable(false)
	s.pending[c.Pos()] = c
}

// reap post-processes every finished job.
func (s *Scheduler) reap() {
drain:
	for {
		select {
		case r := <-s.results:
			s.finished = append(s.finished, r)
		default:
			break drain
		}
	}
	for _, r := range s.finished {
		c := r.chunk
		delete(s.running, c.Pos())
		c.SetRunning(false)

		switch {
		case r.err != nil:
			s.counters.failed.Add(1)
			s.log.Warn("advance failed", zap.Stringer("pos", c.Pos()), zap.Stringer("stage", c.Stage()), zap.Error(r.err))
			if errors.Is(r.err, chunk.ErrBlockBudget) {
				// Budget frees up as chunks are evicted; retry on a later tick.
				s.retry[c.Pos()] = c
			} else {
				s.pending[c.Pos()] = c
			}
		case r.res.Blocked():
			s.counters.blocked.Add(1)
			s.log.Debug("advance blocked", zap.Stringer("pos", c.Pos()), zap.Int("missing", len(r.res.Missing)))
			s.block(c, r.res.Missing)
			s.pending[c.Pos()] = c
		default:
			s.counters.advanced.Add(1)
			s.finish(c)
		}

		if _, ok := s.regen[c.Pos()]; ok {
			delete(s.regen, c.Pos())
			delete(s.retry, c.Pos())
			s.regenerate(c)
		}
	}
	s.finished = s.finished[:0]
}

// finish handles a chunk that just advanced one stage.
func (s *Scheduler) finish(c *chunk.Chunk) {
	cur, target := c.Stage(), c.Target()
	if cur == stage.Full {
		c.SetStable(true)
		s.settle(c)
		s.syncNeighbors(c)
		return
	}
	if cur >= target {
		c.SetStable(true)
		s.settle(c)
		return
	}
	if s.dist(c) > s.retention.Need[target] {
		s.drop(c)
		return
	}
	s.pending[c.Pos()] = c
}

// settle clears dependency state once nothing waits on c.
func (s *Scheduler) settle(c *chunk.Chunk) {
	c.Deps = chunk.Deps{Emergency: chunk.NoEmergency}
}

// drop lowers c's target to what it has, because its target is no longer
// needed this far from the focal point.
func (s *Scheduler) drop(c *chunk.Chunk) {
	c.SetTarget(c.Stage())
	c.SetStable(true)
	s.settle(c)
	delete(s.pending, c.Pos())
	s.counters.dropped.Add(1)
}

// block records why c cannot advance and pulls its dependencies in.
func (s *Scheduler) block(c *chunk.Chunk, missing map[chunk.Pos]stage.Stage) {
	c.SetStable(false)
	c.Deps.Missing = missing
	if c.Deps.Emergency == chunk.NoEmergency {
		c.Deps.Emergency = 0
	}
	for pos, need := range missing {
		s.request(pos, need)
	}
	s.raiseEmergency(c)
}

// raiseEmergency pushes urgency from root down its dependency graph. Each
// dependency gets at most one more than its dependant, capped at
// MaxEmergency. Levels only decrease, so the walk terminates.
func (s *Scheduler) raiseEmergency(root *chunk.Chunk) {
	stack := []*chunk.Chunk{root}
	for len(stack) > 0 {
		c := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		level := min(c.Deps.Emergency+1, s.cfg.MaxEmergency)
		for pos := range c.Deps.Missing {
			d, ok := s.cache.Get(pos)
			if !ok || d.Deps.Emergency <= level {
				continue
			}
			d.Deps.Emergency = level
			stack = append(stack, d)
		}
	}
}

func (s *Scheduler) dist(c *chunk.Chunk) int {
	return c.Pos().Chebyshev(s.focal)
}

type candidate struct {
	c         *chunk.Chunk
	ready     bool
	emergency int
	cheb      int
	manh      int
	missing   map[chunk.Pos]stage.Stage
}

func less(a, b *candidate) bool {
	if a.ready != b.ready {
		return a.ready
	}
	if a.emergency != b.emergency {
		return a.emergency < b.emergency
	}
	if a.cheb != b.cheb {
		return a.cheb < b.cheb
	}
	if a.manh != b.manh {
		return a.manh < b.manh
	}
	pa, pb := a.c.Pos(), b.c.Pos()
	if pa.X != pb.X {
		return pa.X < pb.X
	}
	return pa.Z < pb.Z
}

// schedule sorts pending chunks and starts jobs for the ready ones.
// Chunks that would block have their dependencies pulled in instead.
func (s *Scheduler) schedule() {
	if len(s.pending) == 0 {
		return
	}
	cands := make([]*candidate, 0, len(s.pending))
	for pos, c := range s.pending {
		cur, target := c.Stage(), c.Target()
		switch {
		case c.Running():
			delete(s.pending, pos)
			continue
		case cur >= target:
			delete(s.pending, pos)
			c.SetStable(true)
			s.settle(c)
			continue
		case s.dist(c) > s.retention.Need[target]:
			s.drop(c)
			continue
		}
		ready := s.pipeline.CanAdvance(c)
		var missing map[chunk.Pos]stage.Stage
		if !ready {
			missing = s.pipeline.Missing(c)
		}
		cands = append(cands, &candidate{
			c:       c,
			ready:   ready,
			cheb:    s.dist(c),
			manh:    pos.Manhattan(s.focal),
			missing: missing,
		})
	}
	for _, cd := range cands {
		if !cd.ready {
			s.block(cd.c, cd.missing)
		}
	}
	for _, cd := range cands {
		cd.emergency = cd.c.Deps.Emergency
	}
	sort.Slice(cands, func(i, j int) bool { return less(cands[i], cands[j]) })

	free := s.cfg.Workers - len(s.running)
	for _, cd := range cands {
		if free <= 0 || !cd.ready {
			break
		}
		s.dispatch(cd.c)
		free--
	}
}

// dispatch starts a job advancing c by one stage.
func (s *Scheduler) dispatch(c *chunk.Chunk) {
	pos := c.Pos()
	delete(s.pending, pos)
	s.running[pos] = c
	c.SetStable(false)
	c.SetRunning(true)

	to := c.Stage().Next()
	s.jobs.Add(1)
	go func() {
		defer s.jobs.Done()
		res, err := s.pipeline.Advance(c, to)
		s.results <- result{chunk: c, res: res, err: err}
	}()
}
