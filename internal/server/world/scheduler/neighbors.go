package scheduler

import (
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/OCharnyshevich/chunkgen/internal/server/world/chunk"
	"github.com/OCharnyshevich/chunkgen/internal/server/world/stage"
	"github.com/OCharnyshevich/chunkgen/pkg/world/gen"
)

// syncNeighbors links a chunk that just became Full with every neighbour
// that is Full and settled, and fires the render trigger for any side
// whose surroundings became complete.
func (s *Scheduler) syncNeighbors(c *chunk.Chunk) {
	for d := chunk.Direction(0); d < chunk.Directions; d++ {
		n, ok := s.cache.Get(chunk.Neighbor(c.Pos(), d))
		if !ok || !n.Stable() || n.Running() || n.Stage() != stage.Full {
			continue
		}
		c.Mesh.Links[d] = n.Link()
		n.Mesh.Links[d.Opposite()] = c.Link()
		s.checkComplete(n)
	}
	s.checkComplete(c)
}

func (s *Scheduler) checkComplete(c *chunk.Chunk) {
	if c.Mesh.Complete || !c.Mesh.AllLinked() {
		return
	}
	c.Mesh.Complete = true
	s.render(c)
}

func (s *Scheduler) render(c *chunk.Chunk) {
	s.counters.rendered.Add(1)
	if s.trigger != nil {
		s.trigger.OnSurroundingsComplete(c.Snapshot())
	}
}

// unlink severs every link of c on both sides. Neighbours lose their
// complete status.
func (s *Scheduler) unlink(c *chunk.Chunk) {
	for d := chunk.Direction(0); d < chunk.Directions; d++ {
		l := c.Mesh.Links[d]
		if !l.Linked() {
			continue
		}
		if n, ok := s.cache.Resolve(l); ok && n.Mesh.Links[d.Opposite()] == c.Link() {
			n.Mesh.Links[d.Opposite()] = chunk.Link{}
			n.Mesh.Complete = false
		}
	}
	c.Mesh = chunk.Mesh{}
}

// verifyLinks panics if any link is not mirrored by its target.
func (s *Scheduler) verifyLinks() {
	s.cache.Range(func(c *chunk.Chunk) bool {
		for d := chunk.Direction(0); d < chunk.Directions; d++ {
			l := c.Mesh.Links[d]
			if !l.Linked() {
				continue
			}
			n, ok := s.cache.Resolve(l)
			if !ok {
				panic(fmt.Sprintf("scheduler: %v links to missing %v#%d", c, l.Pos, l.Gen))
			}
			if l.Pos != chunk.Neighbor(c.Pos(), d) {
				panic(fmt.Sprintf("scheduler: %v slot %d links to non-adjacent %v", c, d, n))
			}
			if back := n.Mesh.Links[d.Opposite()]; back != c.Link() {
				panic(fmt.Sprintf("scheduler: %v links to %v but not back", c, n))
			}
		}
		if c.Mesh.Complete && !c.Mesh.AllLinked() {
			panic(fmt.Sprintf("scheduler: %v complete with missing links", c))
		}
		return true
	})
}

// evict drops chunks too far from the focal point for their stage.
// Running chunks are never evicted.
func (s *Scheduler) evict() {
	s.cache.Range(func(c *chunk.Chunk) bool {
		if c.Running() || s.dist(c) <= s.retention.Keep[c.Stage()] {
			return true
		}
		ev, ok := s.cache.Evict(c.Pos())
		if !ok {
			return true
		}
		s.unlink(ev)
		pos := ev.Pos()
		delete(s.pending, pos)
		delete(s.retry, pos)
		delete(s.regen, pos)
		ev.Release()
		s.counters.evicted.Add(1)
		return true
	})
}

// regenerate resets c to Empty and queues it back up to its target.
func (s *Scheduler) regenerate(c *chunk.Chunk) {
	s.unlink(c)
	c.Reset()
	s.settle(c)
	s.counters.regenerated.Add(1)
	s.enqueue(c)
}

// applyEdit writes a block edit and forces the surrounding chunks to Full.
func (s *Scheduler) applyEdit(e edit) {
	pos := gen.ChunkOf(e.x, e.z)
	l := chunk.Local{X: e.x - pos.BlockX(), Y: e.y, Z: e.z - pos.BlockZ()}
	for dx := -1; dx <= 1; dx++ {
		for dz := -1; dz <= 1; dz++ {
			s.request(pos.Add(dx, dz), stage.Full)
		}
	}

	c, _ := s.cache.Get(pos)
	changed, err := c.SetBlock(l, e.state)
	if err != nil {
		s.counters.failed.Add(1)
		s.log.Warn("block edit failed", zap.Stringer("pos", pos), zap.Error(err))
		if errors.Is(err, chunk.ErrBlockBudget) {
			s.failedEdits = append(s.failedEdits, e)
		}
		return
	}
	if !changed {
		return
	}
	// Re-mesh the chunk, and neighbours whose border faces the edit.
	if c.Mesh.Complete {
		s.render(c)
	}
	for d := chunk.Direction(0); d < chunk.Directions; d++ {
		dx, dz := d.Offset()
		if !touches(l.X, dx) || !touches(l.Z, dz) {
			continue
		}
		if n, ok := s.cache.Resolve(c.Mesh.Links[d]); ok && n.Mesh.Complete {
			s.render(n)
		}
	}
}

// touches reports whether local coordinate v lies on the chunk border
// facing delta.
func touches(v, delta int) bool {
	switch delta {
	case -1:
		return v == 0
	case 1:
		return v == 15
	default:
		return true
	}
}
