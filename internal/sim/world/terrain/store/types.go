package store

import (
	"sync"

	"infinitus.ai/internal/sim/world/chunk"
	"infinitus.ai/internal/sim/world/logic/mathx"
)

// Map is the loaded-chunk spatial index. At most one chunk per coordinate.
type Map struct {
	mu     sync.RWMutex
	chunks map[mathx.Vec3i]*chunk.Chunk
}

func NewMap() *Map {
	return &Map{chunks: map[mathx.Vec3i]*chunk.Chunk{}}
}

func (m *Map) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.chunks)
}

func (m *Map) Get(k mathx.Vec3i) (*chunk.Chunk, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	c, ok := m.chunks[k]
	return c, ok
}

func (m *Map) Has(k mathx.Vec3i) bool {
	_, ok := m.Get(k)
	return ok
}

// Insert adds c unless its coordinate is taken. It reports whether c was stored.
func (m *Map) Insert(c *chunk.Chunk) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	k := c.Position()
	if _, ok := m.chunks[k]; ok {
		return false
	}
	m.chunks[k] = c
	return true
}

// LoadOrCreate returns the chunk at k, calling create under the lock if absent.
func (m *Map) LoadOrCreate(k mathx.Vec3i, create func() *chunk.Chunk) (*chunk.Chunk, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if c, ok := m.chunks[k]; ok {
		return c, false
	}
	c := create()
	m.chunks[k] = c
	return c, true
}

// Remove deletes k, running fn on the chunk while the lock is still held.
func (m *Map) Remove(k mathx.Vec3i, fn func(c *chunk.Chunk)) (*chunk.Chunk, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.chunks[k]
	if !ok {
		return nil, false
	}
	if fn != nil {
		fn(c)
	}
	delete(m.chunks, k)
	return c, true
}

// Range visits chunks in map order under the read lock until fn returns false.
func (m *Map) Range(fn func(k mathx.Vec3i, c *chunk.Chunk) bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for k, c := range m.chunks {
		if !fn(k, c) {
			return
		}
	}
}

// Drain removes and returns every chunk.
func (m *Map) Drain() []*chunk.Chunk {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]*chunk.Chunk, 0, len(m.chunks))
	for k, c := range m.chunks {
		out = append(out, c)
		delete(m.chunks, k)
	}
	return out
}
