package world

import (
	"context"
	"time"

	"github.com/OCharnyshevich/chunkgen/internal/server/world/chunk"
	"github.com/OCharnyshevich/chunkgen/internal/server/world/scheduler"
	"github.com/OCharnyshevich/chunkgen/internal/server/world/stage"
	"github.com/OCharnyshevich/chunkgen/pkg/world/gen"
)

// pollInterval is how often PreGenerateRadius checks progress.
const pollInterval = 10 * time.Millisecond

// BlockPos represents a block position in the world.
type BlockPos struct {
	X, Y, Z int
}

// Chunk returns the chunk containing p.
func (p BlockPos) Chunk() chunk.Pos {
	return gen.ChunkOf(p.X, p.Z)
}

// World reads and edits blocks through a running scheduler.
type World struct {
	sched   *scheduler.Scheduler
	terrain gen.Terrain
}

// New creates a World over sched. terrain must be the one sched generates with.
func New(sched *scheduler.Scheduler, terrain gen.Terrain) *World {
	return &World{sched: sched, terrain: terrain}
}

// GetBlock returns the block state at the given position. ok is false
// while the chunk holding it is not Full. Positions above or below the
// world read as air once their column's chunk is Full.
func (w *World) GetBlock(x, y, z int) (state uint16, ok bool) {
	pos := gen.ChunkOf(x, z)
	snap, found := w.sched.TryGetCached(pos)
	if !found {
		return gen.Air, false
	}
	defer snap.Release()
	if snap.Stage != stage.Full {
		return gen.Air, false
	}
	if y < 0 || y >= gen.WorldHeight {
		return gen.Air, true
	}
	return snap.GetBlock(x-pos.BlockX(), y, z-pos.BlockZ()), true
}

// SetBlock queues a block edit. It becomes visible once the scheduler has
// applied it and the chunk is Full.
func (w *World) SetBlock(x, y, z int, state uint16) {
	w.sched.SetBlock(x, y, z, state)
}

// SpawnHeight returns the terrain height at spawn (0, 0) + 1 for the player to stand on.
func (w *World) SpawnHeight() int {
	return w.terrain.SampleHeight(0, 0) + 1
}

// PreGenerateRadius requests every chunk within radius of center at Full
// and waits until they are all Full. It returns how many chunks were
// ready when it stopped. radius should not exceed the scheduler's view
// radius, or chunks outside retention are dropped before they finish.
func (w *World) PreGenerateRadius(ctx context.Context, center chunk.Pos, radius int) (int, error) {
	w.sched.RequestRegion(center, radius, stage.Full)

	total := (2*radius + 1) * (2*radius + 1)
	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()
	for {
		ready := w.countFull(center, radius)
		if ready == total {
			return ready, nil
		}
		select {
		case <-ctx.Done():
			return ready, ctx.Err()
		case <-w.sched.Done():
			return ready, scheduler.ErrStopped
		case <-ticker.C:
		}
	}
}

func (w *World) countFull(center chunk.Pos, radius int) int {
	n := 0
	for dx := -radius; dx <= radius; dx++ {
		for dz := -radius; dz <= radius; dz++ {
			snap, ok := w.sched.TryGetCached(center.Add(dx, dz))
			if !ok {
				continue
			}
			if snap.Stage == stage.Full {
				n++
			}
			snap.Release()
		}
	}
	return n
}
