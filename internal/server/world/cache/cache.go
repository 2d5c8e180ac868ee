// Package cache stores the chunks the scheduler knows about.
package cache

import (
	"encoding/binary"
	"sync"
	"sync/atomic"

	"github.com/cespare/xxhash/v2"

	"github.com/OCharnyshevich/chunkgen/internal/server/world/chunk"
)

const shardCount = 32

type shard struct {
	mu     sync.RWMutex
	chunks map[chunk.Pos]*chunk.Chunk
}

// Cache is a concurrent chunk map, striped by position hash.
type Cache struct {
	shards [shardCount]shard
	gen    atomic.Uint64
	size   atomic.Int64
}

// New creates an empty cache.
func New() *Cache {
	c := &Cache{}
	for i := range c.shards {
		c.shards[i].chunks = make(map[chunk.Pos]*chunk.Chunk)
	}
	return c
}

func (c *Cache) shard(pos chunk.Pos) *shard {
	var key [16]byte
	binary.LittleEndian.PutUint64(key[:8], uint64(int64(pos.X)))
	binary.LittleEndian.PutUint64(key[8:], uint64(int64(pos.Z)))
	return &c.shards[xxhash.Sum64(key[:])%shardCount]
}

// Get returns the chunk at pos, if cached.
func (c *Cache) Get(pos chunk.Pos) (*chunk.Chunk, bool) {
	s := c.shard(pos)
	s.mu.RLock()
	defer s.mu.RUnlock()
	ch, ok := s.chunks[pos]
	return ch, ok
}

// GetOrCreate returns the chunk at pos, inserting a new empty one with a
// fresh generation number if absent. created reports an insertion.
func (c *Cache) GetOrCreate(pos chunk.Pos) (ch *chunk.Chunk, created bool) {
	s := c.shard(pos)
	s.mu.RLock()
	ch, ok := s.chunks[pos]
	s.mu.RUnlock()
	if ok {
		return ch, false
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	// Double-check after acquiring write lock.
	if ch, ok := s.chunks[pos]; ok {
		return ch, false
	}
	ch = chunk.New(pos, c.gen.Add(1))
	s.chunks[pos] = ch
	c.size.Add(1)
	return ch, true
}

// Resolve returns the chunk a link points at, unless it was evicted since.
func (c *Cache) Resolve(l chunk.Link) (*chunk.Chunk, bool) {
	if !l.Linked() {
		return nil, false
	}
	ch, ok := c.Get(l.Pos)
	if !ok || ch.Gen() != l.Gen {
		return nil, false
	}
	return ch, true
}

// Evict removes the chunk at pos unless a job is running on it. It returns
// the removed chunk.
func (c *Cache) Evict(pos chunk.Pos) (*chunk.Chunk, bool) {
	s := c.shard(pos)
	s.mu.Lock()
	defer s.mu.Unlock()
	ch, ok := s.chunks[pos]
	if !ok || ch.Running() {
		return nil, false
	}
	delete(s.chunks, pos)
	c.size.Add(-1)
	return ch, true
}

// Range calls fn for every cached chunk until fn returns false. Shards are
// copied before fn runs, so fn may evict.
func (c *Cache) Range(fn func(*chunk.Chunk) bool) {
	for i := range c.shards {
		s := &c.shards[i]
		s.mu.RLock()
		list := make([]*chunk.Chunk, 0, len(s.chunks))
		for _, ch := range s.chunks {
			list = append(list, ch)
		}
		s.mu.RUnlock()
		for _, ch := range list {
			if !fn(ch) {
				return
			}
		}
	}
}

// Len returns the number of cached chunks.
func (c *Cache) Len() int {
	return int(c.size.Load())
}
