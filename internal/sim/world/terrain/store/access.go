package store

import (
	"sort"

	"infinitus.ai/internal/sim/world/logic/mathx"
	"infinitus.ai/internal/sim/world/voxel"
)

// Keys returns loaded coordinates ordered by x, then y, then z.
func (m *Map) Keys() []mathx.Vec3i {
	m.mu.RLock()
	keys := make([]mathx.Vec3i, 0, len(m.chunks))
	for k := range m.chunks {
		keys = append(keys, k)
	}
	m.mu.RUnlock()
	sort.Slice(keys, func(i, j int) bool {
		if keys[i].X != keys[j].X {
			return keys[i].X < keys[j].X
		}
		if keys[i].Y != keys[j].Y {
			return keys[i].Y < keys[j].Y
		}
		return keys[i].Z < keys[j].Z
	})
	return keys
}

// NeighborMaterial reads a voxel of another chunk. ok is false when that chunk
// is not loaded or is being deleted.
func (m *Map) NeighborMaterial(coord, local mathx.Vec3i) (voxel.Material, bool) {
	c, ok := m.Get(coord)
	if !ok || c.BeingDeleted() {
		return voxel.Air, false
	}
	return c.Material(local), true
}

// MaterialAt reads the world-space voxel p from whichever chunk holds it.
func (m *Map) MaterialAt(p mathx.Vec3i, size int) (voxel.Material, bool) {
	coord, local := mathx.Split(p, size)
	return m.NeighborMaterial(coord, local)
}
