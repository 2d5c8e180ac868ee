// Package scheduler drives chunks to their requested stages with a
// bounded pool of workers.
package scheduler

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/OCharnyshevich/chunkgen/internal/server/world/cache"
	"github.com/OCharnyshevich/chunkgen/internal/server/world/chunk"
	"github.com/OCharnyshevich/chunkgen/internal/server/world/pipeline"
	"github.com/OCharnyshevich/chunkgen/internal/server/world/render"
	"github.com/OCharnyshevich/chunkgen/internal/server/world/stage"
	"github.com/OCharnyshevich/chunkgen/pkg/world/gen"
)

// ErrNotIdle is returned by Start on a scheduler that was already started.
var ErrNotIdle = errors.New("scheduler: not idle")

// ErrStopped is returned by callers waiting on a scheduler that stopped.
var ErrStopped = errors.New("scheduler: stopped")

type state int32

const (
	idle state = iota
	running
	draining
	stopped
)

func (s state) String() string {
	return [...]string{"idle", "running", "draining", "stopped"}[s]
}

type edit struct {
	x, y, z int
	state   uint16
}

// inbox collects requests from other goroutines until the coordinator
// flushes them.
type inbox struct {
	requests map[chunk.Pos]stage.Stage
	regens   map[chunk.Pos]struct{}
	edits    []edit
	focal    *chunk.Pos
	view     *int
}

type result struct {
	chunk *chunk.Chunk
	res   pipeline.Result
	err   error
}

// Scheduler owns the chunk cache and advances chunks one stage per job.
// All chunk metadata is touched by a single coordinator goroutine.
type Scheduler struct {
	cfg      Config
	log      *zap.Logger
	cache    *cache.Cache
	pool     *chunk.Pool
	pipeline *pipeline.Pipeline
	trigger  render.Trigger

	state atomic.Int32

	mu    sync.Mutex
	inbox inbox

	wake    chan struct{}
	results chan result
	cancel  context.CancelFunc
	done    chan struct{}
	jobs    sync.WaitGroup

	// Coordinator-owned.
	focal     chunk.Pos
	retention Retention
	pending   map[chunk.Pos]*chunk.Chunk
	running   map[chunk.Pos]*chunk.Chunk
	retry     map[chunk.Pos]*chunk.Chunk
	regen     map[chunk.Pos]struct{}
	finished  []result
	// Edits that hit the block budget, replayed on ticks.
	failedEdits []edit

	counters counters
	stats    rate.Sometimes
}

// New creates an idle scheduler. trigger may be nil.
func New(cfg Config, terrain gen.Terrain, structures gen.StructureSource, trigger render.Trigger, log *zap.Logger) *Scheduler {
	c := cache.New()
	pool := chunk.NewPool(cfg.MaxBlockArrays)
	return &Scheduler{
		cfg:       cfg,
		log:       log.Named("scheduler").With(zap.String("session", uuid.NewString())),
		cache:     c,
		pool:      pool,
		pipeline:  pipeline.New(terrain, structures, pool, c),
		trigger:   trigger,
		inbox:     inbox{requests: make(map[chunk.Pos]stage.Stage), regens: make(map[chunk.Pos]struct{})},
		wake:      make(chan struct{}, 1),
		results:   make(chan result, max(cfg.Workers, 1)),
		done:      make(chan struct{}),
		retention: RetentionFor(cfg.ViewRadius, cfg.RetentionMargin),
		pending:   make(map[chunk.Pos]*chunk.Chunk),
		running:   make(map[chunk.Pos]*chunk.Chunk),
		retry:     make(map[chunk.Pos]*chunk.Chunk),
		regen:     make(map[chunk.Pos]struct{}),
		stats:     rate.Sometimes{Interval: cfg.StatsInterval},
	}
}

// Start launches the coordinator. It returns ErrNotIdle if the scheduler
// was started before.
func (s *Scheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	if !s.state.CompareAndSwap(int32(idle), int32(running)) {
		s.mu.Unlock()
		return ErrNotIdle
	}
	ctx, s.cancel = context.WithCancel(ctx)
	s.mu.Unlock()
	s.log.Info("scheduler started",
		zap.Int("workers", s.cfg.Workers),
		zap.Int("view_radius", s.cfg.ViewRadius),
	)
	go s.run(ctx)
	return nil
}

// Stop stops dispatching, waits for running jobs and drops pending work.
// Cached chunks stay readable. Stop is safe to call more than once.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	switch state(s.state.Load()) {
	case idle:
		s.state.Store(int32(stopped))
		s.mu.Unlock()
		close(s.done)
		return
	case stopped:
		s.mu.Unlock()
		<-s.done
		return
	}
	s.mu.Unlock()
	s.mu.Lock()
	s.state.CompareAndSwap(int32(running), int32(draining))
	cancel := s.cancel
	s.mu.Unlock()
	cancel()
	<-s.done
}

// Done is closed once the scheduler has stopped.
func (s *Scheduler) Done() <-chan struct{} { return s.done }

func (s *Scheduler) run(ctx context.Context) {
	defer close(s.done)
	ticker := time.NewTicker(s.cfg.PollInterval)
	defer ticker.Stop()

	tick := true
	for {
		s.step(tick)
		tick = false
		select {
		case <-ctx.Done():
			s.drain()
			return
		case r := <-s.results:
			s.finished = append(s.finished, r)
		case <-s.wake:
		case <-ticker.C:
			tick = true
		}
	}
}

// drain waits for running jobs and discards everything still queued.
func (s *Scheduler) drain() {
	s.state.Store(int32(draining))
	s.jobs.Wait()
	s.reap()
	for _, c := range s.pending {
		c.SetTarget(c.Stage())
	}
	for _, c := range s.retry {
		c.SetTarget(c.Stage())
		c.SetStable(true)
	}
	clear(s.pending)
	clear(s.retry)
	clear(s.regen)
	s.failedEdits = nil

	s.mu.Lock()
	s.inbox = inbox{requests: make(map[chunk.Pos]stage.Stage), regens: make(map[chunk.Pos]struct{})}
	s.mu.Unlock()

	s.publish()
	s.state.Store(int32(stopped))
	st := s.Stats()
	s.log.Info("scheduler stopped",
		zap.Int("cached", st.Cached),
		zap.Uint64("advanced", st.Advanced),
		zap.Uint64("evicted", st.Evicted),
	)
}

func (s *Scheduler) accepting() bool {
	st := state(s.state.Load())
	return st == idle || st == running
}

func (s *Scheduler) notify() {
	select {
	case s.wake <- struct{}{}:
	default:
	}
}

// Request asks for pos to reach at least want.
func (s *Scheduler) Request(pos chunk.Pos, want stage.Stage) {
	s.RequestRegion(pos, 0, want)
}

// RequestRegion asks for every chunk within radius (Chebyshev) of center
// to reach at least want. Safe to call from any goroutine.
func (s *Scheduler) RequestRegion(center chunk.Pos, radius int, want stage.Stage) {
	if !s.accepting() || want == stage.Empty {
		return
	}
	s.mu.Lock()
	for dx := -radius; dx <= radius; dx++ {
		for dz := -radius; dz <= radius; dz++ {
			pos := center.Add(dx, dz)
			if cur, ok := s.inbox.requests[pos]; !ok || cur < want {
				s.inbox.requests[pos] = want
			}
		}
	}
	s.mu.Unlock()
	s.notify()
}

// SetFocalPoint moves the centre used for priority and eviction.
func (s *Scheduler) SetFocalPoint(pos chunk.Pos) {
	s.mu.Lock()
	s.inbox.focal = &pos
	s.mu.Unlock()
	s.notify()
}

// SetViewRadius changes the retention radius.
func (s *Scheduler) SetViewRadius(r int) {
	r = max(r, 0)
	s.mu.Lock()
	s.inbox.view = &r
	s.mu.Unlock()
	s.notify()
}

// Regenerate resets pos to Empty and replays it to its target. Block
// edits are kept. A running chunk is reset once its job finishes.
func (s *Scheduler) Regenerate(pos chunk.Pos) {
	if !s.accepting() {
		return
	}
	s.mu.Lock()
	s.inbox.regens[pos] = struct{}{}
	s.mu.Unlock()
	s.notify()
}

// SetBlock queues a block edit at world coordinates. The surrounding 3×3
// chunks are brought to Full.
func (s *Scheduler) SetBlock(x, y, z int, state uint16) {
	if !s.accepting() {
		return
	}
	s.mu.Lock()
	s.inbox.edits = append(s.inbox.edits, edit{x: x, y: y, z: z, state: state})
	s.mu.Unlock()
	s.notify()
}

// TryGetCached returns a snapshot of pos without waiting. The caller must
// Release it.
func (s *Scheduler) TryGetCached(pos chunk.Pos) (chunk.Snapshot, bool) {
	c, ok := s.cache.Get(pos)
	if !ok {
		return chunk.Snapshot{}, false
	}
	return c.Snapshot(), true
}
