package scheduler

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/OCharnyshevich/chunkgen/internal/server/world/chunk"
	"github.com/OCharnyshevich/chunkgen/internal/server/world/pipeline"
	"github.com/OCharnyshevich/chunkgen/internal/server/world/stage"
	"github.com/OCharnyshevich/chunkgen/pkg/world/gen"
)

// recorder is a render trigger that counts completions per chunk.
type recorder struct {
	t     *testing.T
	mu    sync.Mutex
	fired map[chunk.Pos]int
}

func (r *recorder) OnSurroundingsComplete(s chunk.Snapshot) {
	defer s.Release()
	if s.Stage != stage.Full || s.Blocks == nil {
		r.t.Errorf("render fired for %v at %v", s.Pos, s.Stage)
	}
	r.mu.Lock()
	r.fired[s.Pos]++
	r.mu.Unlock()
}

func (r *recorder) count(pos chunk.Pos) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.fired[pos]
}

func (r *recorder) total() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, v := range r.fired {
		n += v
	}
	return n
}

func testConfig() Config {
	return Config{
		Workers:      2,
		PollInterval: 10 * time.Millisecond,
		ViewRadius:   2,
		MaxEmergency: 8,
		VerifyLinks:  true,
	}
}

func newTestScheduler(t *testing.T, cfg Config) (*Scheduler, *recorder) {
	t.Helper()
	terrain := gen.NewFlatTerrain(0)
	planner := gen.NewPlanner(42, terrain, gen.DefaultCatalog())
	rec := &recorder{t: t, fired: make(map[chunk.Pos]int)}
	return New(cfg, terrain, planner, rec, zap.NewNop()), rec
}

// checker verifies scheduler invariants after every step.
type checker struct {
	stages map[uint64]stage.Stage
}

func (ck *checker) check(t *testing.T, s *Scheduler) {
	t.Helper()
	for pos, c := range s.pending {
		if c.Running() {
			t.Fatalf("%v is pending while running", pos)
		}
		if _, ok := s.running[pos]; ok {
			t.Fatalf("%v is both pending and running", pos)
		}
	}
	for pos, c := range s.running {
		if got, ok := s.cache.Get(pos); !ok || got != c {
			t.Fatalf("running chunk %v is no longer cached", pos)
		}
	}
	if len(s.running) > s.cfg.Workers {
		t.Fatalf("%d jobs running with %d workers", len(s.running), s.cfg.Workers)
	}
	s.cache.Range(func(c *chunk.Chunk) bool {
		st := c.Stage()
		if prev, ok := ck.stages[c.Gen()]; ok && st < prev {
			t.Fatalf("%v went back from %v to %v", c, prev, st)
		}
		ck.stages[c.Gen()] = st
		return true
	})
}

func inboxEmpty(s *Scheduler) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.inbox.requests) == 0 && len(s.inbox.regens) == 0 && len(s.inbox.edits) == 0 &&
		s.inbox.focal == nil && s.inbox.view == nil
}

// drive runs the coordinator by hand until done reports true.
func drive(t *testing.T, s *Scheduler, done func() bool) {
	t.Helper()
	ck := &checker{stages: make(map[uint64]stage.Stage)}
	idle := 0
	for {
		s.step(true)
		ck.check(t, s)
		if done() {
			return
		}
		if len(s.running) == 0 {
			if idle++; idle > 10 {
				t.Fatalf("no progress: %d pending, %d retrying", len(s.pending), len(s.retry))
			}
			continue
		}
		idle = 0
		select {
		case r := <-s.results:
			s.finished = append(s.finished, r)
		case <-time.After(10 * time.Second):
			t.Fatal("timed out waiting for a job")
		}
	}
}

// settle drives the scheduler until it has nothing left to do.
func settle(t *testing.T, s *Scheduler) {
	t.Helper()
	drive(t, s, func() bool {
		return len(s.running) == 0 && len(s.pending) == 0 && len(s.retry) == 0 && inboxEmpty(s)
	})
}

func mustChunk(t *testing.T, s *Scheduler, pos chunk.Pos) *chunk.Chunk {
	t.Helper()
	c, ok := s.cache.Get(pos)
	if !ok {
		t.Fatalf("%v not cached", pos)
	}
	return c
}

func TestSingleChunkToFull(t *testing.T) {
	cfg := testConfig()
	cfg.Workers = 1
	cfg.ViewRadius = 0
	s, rec := newTestScheduler(t, cfg)

	s.Request(chunk.Pos{}, stage.Full)
	settle(t, s)

	c := mustChunk(t, s, chunk.Pos{})
	if c.Stage() != stage.Full || !c.Stable() {
		t.Fatalf("(0,0) stage=%v stable=%v, want full and stable", c.Stage(), c.Stable())
	}
	_, refs, _ := c.Structures()
	for _, r := range refs {
		x, z := r.Origin()
		if o := gen.ChunkOf(x, z); o.Chebyshev(c.Pos()) > pipeline.ReferenceRadius {
			t.Errorf("reference from %v is beyond the reference radius", o)
		}
	}
	for d := chunk.Direction(0); d < chunk.Directions; d++ {
		n := mustChunk(t, s, chunk.Neighbor(c.Pos(), d))
		if n.Stage() < stage.Noise {
			t.Errorf("neighbour %v at %v, want at least noise", n.Pos(), n.Stage())
		}
	}
	if rec.total() != 0 {
		t.Errorf("render fired %d times without full neighbours", rec.total())
	}
	if st := s.Stats(); st.Pending != 0 || st.Running != 0 || st.Advanced == 0 {
		t.Errorf("unexpected stats %+v", st)
	}
}

func TestAdjacentChunksLinkSymmetrically(t *testing.T) {
	cfg := testConfig()
	cfg.ViewRadius = 1
	s, rec := newTestScheduler(t, cfg)

	s.Request(chunk.Pos{}, stage.Full)
	s.Request(chunk.Pos{X: 1}, stage.Full)
	settle(t, s)

	a, b := mustChunk(t, s, chunk.Pos{}), mustChunk(t, s, chunk.Pos{X: 1})
	if a.Mesh.Links[chunk.East] != b.Link() || b.Mesh.Links[chunk.West] != a.Link() {
		t.Errorf("links not symmetric: %v / %v", a.Mesh.Links[chunk.East], b.Mesh.Links[chunk.West])
	}
	if rec.total() != 0 {
		t.Errorf("render fired %d times for incomplete surroundings", rec.total())
	}
}

func TestRenderFiresOncePerCompleteChunk(t *testing.T) {
	s, rec := newTestScheduler(t, testConfig())

	s.RequestRegion(chunk.Pos{}, 2, stage.Full)
	settle(t, s)

	for x := -2; x <= 2; x++ {
		for z := -2; z <= 2; z++ {
			pos := chunk.Pos{X: x, Z: z}
			want := 0
			if pos.Chebyshev(chunk.Pos{}) <= 1 {
				want = 1
			}
			if got := rec.count(pos); got != want {
				t.Errorf("render count for %v = %d, want %d", pos, got, want)
			}
			if c := mustChunk(t, s, pos); c.Mesh.Complete != (want == 1) {
				t.Errorf("%v complete = %v", pos, c.Mesh.Complete)
			}
		}
	}

	// Asking again for stages already reached does nothing.
	before := s.Stats()
	s.RequestRegion(chunk.Pos{}, 2, stage.Full)
	s.RequestRegion(chunk.Pos{}, 1, stage.Noise)
	settle(t, s)
	after := s.Stats()
	if after.Advanced != before.Advanced || after.Rendered != before.Rendered {
		t.Errorf("re-request did work: before %+v after %+v", before, after)
	}
	if rec.total() != 9 {
		t.Errorf("render fired %d times, want 9", rec.total())
	}
}

func TestShrinkingRetentionEvictsIdleChunks(t *testing.T) {
	cfg := testConfig()
	cfg.Workers = 4
	cfg.ViewRadius = 3
	s, _ := newTestScheduler(t, cfg)

	s.RequestRegion(chunk.Pos{}, 3, stage.Full)
	steps := 0
	drive(t, s, func() bool {
		steps++
		return steps > 40 && len(s.running) > 0 || len(s.running) == 0 && len(s.pending) == 0
	})

	// Shrink while jobs are in flight; drive checks running chunks stay cached.
	s.SetViewRadius(0)
	s.SetFocalPoint(chunk.Pos{X: 1})
	settle(t, s)

	keep := RetentionFor(0, 0).Keep
	s.cache.Range(func(c *chunk.Chunk) bool {
		if d := c.Pos().Chebyshev(chunk.Pos{X: 1}); d > keep[c.Stage()] {
			t.Errorf("%v at %v kept at distance %d", c.Pos(), c.Stage(), d)
		}
		return true
	})
	if st := s.Stats(); st.Evicted == 0 {
		t.Error("nothing was evicted")
	}

	live := 0
	s.cache.Range(func(c *chunk.Chunk) bool {
		if c.Stage() >= stage.Noise {
			live++
		}
		return true
	})
	if s.pool.Live() != live {
		t.Errorf("%d block arrays live for %d chunks with blocks", s.pool.Live(), live)
	}
}

func TestEmergencyPropagation(t *testing.T) {
	cfg := testConfig()
	cfg.MaxEmergency = 1
	s, _ := newTestScheduler(t, cfg)

	a, _ := s.cache.GetOrCreate(chunk.Pos{})
	b, _ := s.cache.GetOrCreate(chunk.Pos{X: 1})
	c, _ := s.cache.GetOrCreate(chunk.Pos{X: 2})
	b.Deps.Missing = map[chunk.Pos]stage.Stage{c.Pos(): stage.StructureSeed}

	s.block(a, map[chunk.Pos]stage.Stage{b.Pos(): stage.StructureSeed})
	if a.Deps.Emergency != 0 {
		t.Errorf("root emergency = %d, want 0", a.Deps.Emergency)
	}
	if b.Deps.Emergency != 1 {
		t.Errorf("dependency emergency = %d, want 1", b.Deps.Emergency)
	}
	if c.Deps.Emergency != 1 {
		t.Errorf("transitive emergency = %d, want clamp to 1", c.Deps.Emergency)
	}
	if b.Target() != stage.StructureSeed {
		t.Errorf("dependency target = %v, want structure_seed", b.Target())
	}
	if _, ok := s.pending[b.Pos()]; !ok {
		t.Error("dependency was not enqueued")
	}

	s.settle(b)
	if b.Deps.Emergency != chunk.NoEmergency || b.Deps.Missing != nil {
		t.Errorf("settled deps = %+v", b.Deps)
	}
}

func TestCandidateOrder(t *testing.T) {
	mk := func(x, z int, ready bool, em int) *candidate {
		pos := chunk.Pos{X: x, Z: z}
		return &candidate{
			c:         chunk.New(pos, 1),
			ready:     ready,
			emergency: em,
			cheb:      pos.Chebyshev(chunk.Pos{}),
			manh:      pos.Manhattan(chunk.Pos{}),
		}
	}
	tests := []struct {
		name string
		a, b *candidate
	}{
		{"ready first", mk(5, 5, true, chunk.NoEmergency), mk(0, 0, false, 0)},
		{"emergency", mk(5, 5, true, 1), mk(0, 0, true, 2)},
		{"chebyshev", mk(1, 1, true, 3), mk(2, 0, true, 3)},
		{"manhattan", mk(1, 0, true, 3), mk(1, 1, true, 3)},
		{"position", mk(-1, 0, true, 3), mk(0, 1, true, 3)},
	}
	for _, tt := range tests {
		if !less(tt.a, tt.b) || less(tt.b, tt.a) {
			t.Errorf("%s: ordering wrong", tt.name)
		}
	}
}

func TestRetentionFor(t *testing.T) {
	r := RetentionFor(4, 1)
	want := map[stage.Stage][2]int{
		stage.Full:               {5, 6},
		stage.Noise:              {6, 6},
		stage.StructureReference: {6, 6},
		stage.StructureSeed:      {8, 8},
		stage.Empty:              {8, 8},
	}
	for st, w := range want {
		if r.Need[st] != w[0] || r.Keep[st] != w[1] {
			t.Errorf("%v: need %d keep %d, want %d %d", st, r.Need[st], r.Keep[st], w[0], w[1])
		}
	}
}

func TestBudgetFailureRetries(t *testing.T) {
	cfg := testConfig()
	cfg.Workers = 1
	cfg.ViewRadius = 10
	cfg.MaxBlockArrays = 1
	s, _ := newTestScheduler(t, cfg)

	s.Request(chunk.Pos{}, stage.Noise)
	s.Request(chunk.Pos{X: 5}, stage.Noise)
	drive(t, s, func() bool { return s.Stats().Failed > 0 })

	var failed *chunk.Chunk
	for _, c := range s.retry {
		failed = c
	}
	if failed == nil || failed.Stable() || failed.Stage() != stage.StructureReference {
		t.Fatalf("failed chunk not waiting for retry: %v", failed)
	}

	// Move away from the other chunk so it is evicted and its blocks freed.
	s.SetViewRadius(0)
	s.SetFocalPoint(failed.Pos())
	settle(t, s)
	if got := mustChunk(t, s, failed.Pos()); got.Stage() != stage.Noise {
		t.Errorf("retried chunk at %v, want noise", got.Stage())
	}
}

func TestDrainSettlesRetryingChunks(t *testing.T) {
	cfg := testConfig()
	cfg.Workers = 1
	cfg.ViewRadius = 10
	cfg.MaxBlockArrays = 1
	s, _ := newTestScheduler(t, cfg)

	s.Request(chunk.Pos{}, stage.Noise)
	s.Request(chunk.Pos{X: 5}, stage.Noise)
	drive(t, s, func() bool { return s.Stats().Failed > 0 })

	var failed []*chunk.Chunk
	for _, c := range s.retry {
		failed = append(failed, c)
	}
	if len(failed) == 0 {
		t.Fatal("no chunk waiting for retry")
	}

	s.drain()
	for _, c := range failed {
		if c.Target() != c.Stage() || !c.Stable() {
			t.Errorf("%v after drain: stage=%v target=%v stable=%v", c.Pos(), c.Stage(), c.Target(), c.Stable())
		}
	}
	if st := s.Stats(); st.Pending != 0 {
		t.Errorf("pending after drain = %d", st.Pending)
	}
}

func TestSetBlockAppliesAndRemeshes(t *testing.T) {
	s, rec := newTestScheduler(t, testConfig())

	// An edit before generation is kept as an override.
	s.SetBlock(-8, 60, -8, gen.Stone)
	s.RequestRegion(chunk.Pos{}, 2, stage.Full)
	settle(t, s)

	snap, ok := s.TryGetCached(chunk.Pos{X: -1, Z: -1})
	if !ok || snap.GetBlock(8, 60, 8) != gen.Stone {
		t.Fatalf("pre-generation edit missing (cached=%v)", ok)
	}
	snap.Release()

	// An edit on the east border of (0,0) re-meshes it and (1,0).
	s.SetBlock(15, 100, 3, gen.Dirt)
	settle(t, s)
	snap, _ = s.TryGetCached(chunk.Pos{})
	if snap.GetBlock(15, 100, 3) != gen.Dirt {
		t.Error("edit not visible")
	}
	snap.Release()
	if got := rec.count(chunk.Pos{}); got != 2 {
		t.Errorf("(0,0) rendered %d times, want 2", got)
	}
	if got := rec.count(chunk.Pos{X: 1}); got != 2 {
		t.Errorf("(1,0) rendered %d times, want 2", got)
	}
	if got := rec.count(chunk.Pos{X: -1}); got != 1 {
		t.Errorf("(-1,0) rendered %d times, want 1", got)
	}
}

func TestBudgetFailedEditRetried(t *testing.T) {
	cfg := testConfig()
	cfg.Workers = 1
	cfg.ViewRadius = 1
	// Nine Full chunks plus their Noise ring: exactly the live arrays.
	cfg.MaxBlockArrays = 25
	s, rec := newTestScheduler(t, cfg)

	s.RequestRegion(chunk.Pos{}, 1, stage.Full)
	settle(t, s)
	if live := s.pool.Live(); live != 25 {
		t.Fatalf("live arrays = %d, want 25", live)
	}
	if got := rec.count(chunk.Pos{}); got != 1 {
		t.Fatalf("(0,0) rendered %d times, want 1", got)
	}

	// A held snapshot forces a copy, which the budget refuses.
	held, _ := s.TryGetCached(chunk.Pos{})
	s.SetBlock(3, 120, 3, gen.Stone)
	drive(t, s, func() bool { return len(s.failedEdits) == 1 })

	snap, _ := s.TryGetCached(chunk.Pos{})
	if got := snap.GetBlock(3, 120, 3); got != gen.Air {
		t.Errorf("edit visible before retry: %d", got)
	}
	snap.Release()
	held.Release()

	drive(t, s, func() bool { return len(s.failedEdits) == 0 })
	snap, _ = s.TryGetCached(chunk.Pos{})
	defer snap.Release()
	if got := snap.GetBlock(3, 120, 3); got != gen.Stone {
		t.Errorf("block after retry = %d, want stone", got)
	}
	if got := rec.count(chunk.Pos{}); got != 2 {
		t.Errorf("(0,0) rendered %d times, want 2", got)
	}
	if live := s.pool.Live(); live != 25 {
		t.Errorf("live arrays after retry = %d, want 25", live)
	}
}

func TestRegenerateReplaysToTarget(t *testing.T) {
	s, rec := newTestScheduler(t, testConfig())
	s.RequestRegion(chunk.Pos{}, 2, stage.Full)
	settle(t, s)

	before, _ := s.TryGetCached(chunk.Pos{})
	defer before.Release()
	s.SetBlock(1, 90, 1, gen.Stone)
	s.Regenerate(chunk.Pos{})
	settle(t, s)

	after, ok := s.TryGetCached(chunk.Pos{})
	if !ok || after.Stage != stage.Full {
		t.Fatalf("regenerated chunk at %v", after.Stage)
	}
	defer after.Release()
	if after.Gen != before.Gen {
		t.Error("regeneration replaced the chunk instead of resetting it")
	}
	if after.GetBlock(1, 90, 1) != gen.Stone {
		t.Error("edit lost across regeneration")
	}
	for x := 0; x < gen.ChunkWidth; x++ {
		for y := 0; y < 80; y++ {
			if after.GetBlock(x, y, 7) != before.GetBlock(x, y, 7) {
				t.Fatalf("block (%d,%d,7) differs after regeneration", x, y)
			}
		}
	}
	if st := s.Stats(); st.Regenerated != 1 {
		t.Errorf("regenerated = %d, want 1", st.Regenerated)
	}
	if got := rec.count(chunk.Pos{}); got != 2 {
		t.Errorf("(0,0) rendered %d times, want 2 (before and after regeneration)", got)
	}
}

func TestStartStop(t *testing.T) {
	cfg := testConfig()
	cfg.ViewRadius = 1
	s, _ := newTestScheduler(t, cfg)

	ctx := context.Background()
	if err := s.Start(ctx); err != nil {
		t.Fatal(err)
	}
	if err := s.Start(ctx); !errors.Is(err, ErrNotIdle) {
		t.Fatalf("second Start = %v, want ErrNotIdle", err)
	}

	s.RequestRegion(chunk.Pos{}, 1, stage.Full)
	deadline := time.Now().Add(20 * time.Second)
	for {
		snap, ok := s.TryGetCached(chunk.Pos{})
		full := ok && snap.Stage == stage.Full
		snap.Release()
		if full {
			break
		}
		if time.Now().After(deadline) {
			t.Fatal("(0,0) did not reach full")
		}
		time.Sleep(5 * time.Millisecond)
	}

	s.Stop()
	s.Stop()
	select {
	case <-s.Done():
	default:
		t.Fatal("Done not closed after Stop")
	}
	st := s.Stats()
	if st.Running != 0 || st.Pending != 0 {
		t.Errorf("work left after stop: %+v", st)
	}
	if _, ok := s.TryGetCached(chunk.Pos{}); !ok {
		t.Error("cache not readable after stop")
	}
	s.Request(chunk.Pos{X: 50}, stage.Full)
	if !inboxEmpty(s) {
		t.Error("request accepted after stop")
	}
	if err := s.Start(ctx); !errors.Is(err, ErrNotIdle) {
		t.Errorf("Start after Stop = %v, want ErrNotIdle", err)
	}
}

func TestStopBeforeStart(t *testing.T) {
	s, _ := newTestScheduler(t, testConfig())
	s.Stop()
	<-s.Done()
	if err := s.Start(context.Background()); !errors.Is(err, ErrNotIdle) {
		t.Errorf("Start after Stop = %v, want ErrNotIdle", err)
	}
}

func TestVerifyLinksPanicsOnAsymmetry(t *testing.T) {
	s, _ := newTestScheduler(t, testConfig())
	a, _ := s.cache.GetOrCreate(chunk.Pos{})
	b, _ := s.cache.GetOrCreate(chunk.Pos{X: 1})
	a.Mesh.Links[chunk.East] = b.Link()

	defer func() {
		if recover() == nil {
			t.Error("verifyLinks did not panic")
		}
	}()
	s.verifyLinks()
}
