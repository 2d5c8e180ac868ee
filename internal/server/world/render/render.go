// Package render is the boundary between chunk generation and meshing.
package render

import (
	"context"
	"sync"
	"sync/atomic"

	"go.uber.org/zap"

	"github.com/OCharnyshevich/chunkgen/internal/server/world/chunk"
	"github.com/OCharnyshevich/chunkgen/pkg/world/gen"
)

// Trigger is told when a Full chunk has all eight neighbours Full too.
// The receiver owns the snapshot and must Release it. Calls come from the
// scheduler's coordinator and must not block.
type Trigger interface {
	OnSurroundingsComplete(s chunk.Snapshot)
}

// TriggerFunc adapts a function to Trigger.
type TriggerFunc func(chunk.Snapshot)

func (f TriggerFunc) OnSurroundingsComplete(s chunk.Snapshot) { f(s) }

// Mesher builds a mesh from a complete chunk.
type Mesher interface {
	Mesh(ctx context.Context, s chunk.Snapshot)
}

// Dispatcher is a Trigger that hands snapshots to a bounded pool of
// meshers. Submissions never block; when the queue is full the snapshot
// is dropped.
type Dispatcher struct {
	jobs    chan chunk.Snapshot
	workers int
	mesher  Mesher
	log     *zap.Logger

	stopped   atomic.Bool
	submitted atomic.Uint64
	dropped   atomic.Uint64
	meshed    atomic.Uint64
}

// NewDispatcher creates a dispatcher. Call Run to start the meshers.
func NewDispatcher(workers, queueSize int, mesher Mesher, log *zap.Logger) *Dispatcher {
	return &Dispatcher{
		jobs:    make(chan chunk.Snapshot, queueSize),
		workers: max(workers, 1),
		mesher:  mesher,
		log:     log.Named("render"),
	}
}

func (d *Dispatcher) OnSurroundingsComplete(s chunk.Snapshot) {
	if d.stopped.Load() {
		s.Release()
		return
	}
	select {
	case d.jobs <- s:
		d.submitted.Add(1)
	default:
		d.dropped.Add(1)
		d.log.Debug("mesh queue full, dropping", zap.Stringer("pos", s.Pos))
		s.Release()
	}
}

// Run meshes queued snapshots until ctx is done, then releases whatever
// is still queued.
func (d *Dispatcher) Run(ctx context.Context) error {
	var wg sync.WaitGroup
	for range d.workers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			d.worker(ctx)
		}()
	}
	<-ctx.Done()
	d.stopped.Store(true)
	wg.Wait()
	for {
		select {
		case s := <-d.jobs:
			s.Release()
		default:
			return nil
		}
	}
}

func (d *Dispatcher) worker(ctx context.Context) {
	for {
		select {
		case s := <-d.jobs:
			d.mesher.Mesh(ctx, s)
			s.Release()
			d.meshed.Add(1)
		case <-ctx.Done():
			return
		}
	}
}

// Stats reports submitted, dropped and meshed snapshot counts.
func (d *Dispatcher) Stats() (submitted, dropped, meshed uint64) {
	return d.submitted.Load(), d.dropped.Load(), d.meshed.Load()
}

// LogMesher stands in for a real mesher: it summarises each chunk's
// surface and logs it.
type LogMesher struct {
	log *zap.Logger
}

func NewLogMesher(log *zap.Logger) *LogMesher {
	return &LogMesher{log: log.Named("mesher")}
}

func (m *LogMesher) Mesh(_ context.Context, s chunk.Snapshot) {
	if s.Heights == nil {
		return
	}
	lo, hi := gen.WorldHeight, 0
	for i := range s.Heights.Heights {
		h := int(s.Heights.Heights[i])
		lo, hi = min(lo, h), max(hi, h)
	}
	m.log.Debug("chunk meshed",
		zap.Stringer("pos", s.Pos),
		zap.Uint64("gen", s.Gen),
		zap.Int("min_height", lo),
		zap.Int("max_height", hi),
		zap.Int("structures", s.Seeds+s.References),
	)
}
