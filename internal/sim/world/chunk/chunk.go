// Package chunk holds the fixed-size voxel cube the world streams around the observer.
//
// Materials are guarded by a per-chunk RWMutex: generation jobs build into a
// private buffer and Commit it, other jobs read neighbours through the locked
// accessors. Cull masks are written only by the job that owns the chunk's mesh
// stage and read by the same job afterwards, so they carry no lock.
package chunk

import (
	"sync"
	"sync/atomic"

	"github.com/cespare/xxhash/v2"

	"infinitus.ai/internal/sim/world/logic/mathx"
	"infinitus.ai/internal/sim/world/mesh"
	"infinitus.ai/internal/sim/world/voxel"
)

type Chunk struct {
	pos   mathx.Vec3i
	size  int
	arena *Arena

	mu        sync.RWMutex
	materials []voxel.Material // nil reads as all air

	cull []uint8

	populated    [2]atomic.Bool
	meshed       atomic.Bool
	beingCreated atomic.Bool
	beingDeleted atomic.Bool
	destroyed    atomic.Bool

	mesh atomic.Pointer[mesh.Mesh]

	// groups is owned by the renderer and only touched under the world's render lock.
	groups any
}

func (c *Chunk) Position() mathx.Vec3i { return c.pos }
func (c *Chunk) Size() int             { return c.size }

// Translation is the world-space voxel coordinate of local (0,0,0).
func (c *Chunk) Translation() mathx.Vec3i { return c.pos.Scale(c.size) }

// Center is the world-space centre used for nearest-first ordering.
func (c *Chunk) Center() mathx.Vec3i {
	h := c.size / 2
	return c.Translation().Add(mathx.Vec3i{X: h, Y: h, Z: h})
}

func (c *Chunk) Index(l mathx.Vec3i) int { return l.X + c.size*(l.Y+c.size*l.Z) }

func (c *Chunk) InBounds(l mathx.Vec3i) bool {
	return l.X >= 0 && l.Y >= 0 && l.Z >= 0 && l.X < c.size && l.Y < c.size && l.Z < c.size
}

// Material returns the material at local l. Out of bounds reads as air.
func (c *Chunk) Material(l mathx.Vec3i) voxel.Material {
	if !c.InBounds(l) {
		return voxel.Air
	}
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.materials == nil {
		return voxel.Air
	}
	return c.materials[c.Index(l)]
}

func (c *Chunk) SetMaterial(l mathx.Vec3i, m voxel.Material) {
	if !c.InBounds(l) {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.materials == nil {
		if m == voxel.Air {
			return
		}
		c.materials = c.arena.Buffer()
	}
	c.materials[c.Index(l)] = m
}

// IsTransparent reports whether faces behind local l stay visible.
func (c *Chunk) IsTransparent(l mathx.Vec3i) bool { return c.Material(l).Transparent() }

// View runs fn with the material array under the read lock. m is nil for an all-air chunk.
func (c *Chunk) View(fn func(m []voxel.Material)) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	fn(c.materials)
}

// Edit runs fn with a writable material array under the write lock.
func (c *Chunk) Edit(fn func(m []voxel.Material)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.materials == nil {
		c.materials = c.arena.Buffer()
	}
	fn(c.materials)
}

// Commit swaps in a buffer from NewBuffer. An all-air buffer is released instead.
func (c *Chunk) Commit(buf []voxel.Material) {
	empty := true
	for _, m := range buf {
		if m != voxel.Air {
			empty = false
			break
		}
	}
	c.mu.Lock()
	old := c.materials
	if empty {
		c.materials = nil
	} else {
		c.materials = buf
	}
	c.mu.Unlock()
	if old != nil {
		c.arena.Release(old)
	}
	if empty {
		c.arena.Release(buf)
	}
}

// NewBuffer returns a private copy of the current materials.
func (c *Chunk) NewBuffer() []voxel.Material {
	buf := c.arena.Buffer()
	c.mu.RLock()
	if c.materials != nil {
		copy(buf, c.materials)
	}
	c.mu.RUnlock()
	return buf
}

// ReleaseBuffer returns a buffer from NewBuffer that was not committed.
func (c *Chunk) ReleaseBuffer(buf []voxel.Material) { c.arena.Release(buf) }

// IsEmpty reports whether the chunk holds only air.
func (c *Chunk) IsEmpty() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.materials == nil
}

// Bytes returns a copy of the materials, one byte per voxel.
func (c *Chunk) Bytes() []byte {
	out := make([]byte, c.size*c.size*c.size)
	c.mu.RLock()
	defer c.mu.RUnlock()
	for i, m := range c.materials {
		out[i] = byte(m)
	}
	return out
}

// LoadBytes replaces the materials with b (as produced by Bytes).
func (c *Chunk) LoadBytes(b []byte) bool {
	if len(b) != c.size*c.size*c.size {
		return false
	}
	buf := c.arena.Buffer()
	for i, v := range b {
		buf[i] = voxel.Material(v)
	}
	c.Commit(buf)
	return true
}

var zeroBlock [4096]byte

// Digest is an xxhash64 of the materials. All-air chunks hash like zero bytes.
func (c *Chunk) Digest() uint64 {
	d := xxhash.New()
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.materials == nil {
		n := c.size * c.size * c.size
		for n > 0 {
			k := min(n, len(zeroBlock))
			_, _ = d.Write(zeroBlock[:k])
			n -= k
		}
		return d.Sum64()
	}
	var scratch [4096]byte
	for off := 0; off < len(c.materials); off += len(scratch) {
		end := min(off+len(scratch), len(c.materials))
		for i, m := range c.materials[off:end] {
			scratch[i] = byte(m)
		}
		_, _ = d.Write(scratch[:end-off])
	}
	return d.Sum64()
}

// VisitVoxels calls fn for every non-air voxel with its cull mask.
func (c *Chunk) VisitVoxels(fn func(l mathx.Vec3i, m voxel.Material, cull uint8)) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.materials == nil {
		return
	}
	i := 0
	for z := 0; z < c.size; z++ {
		for y := 0; y < c.size; y++ {
			for x := 0; x < c.size; x++ {
				m := c.materials[i]
				if m != voxel.Air {
					var mask uint8
					if c.cull != nil {
						mask = c.cull[i]
					}
					fn(mathx.Vec3i{X: x, Y: y, Z: z}, m, mask)
				}
				i++
			}
		}
	}
}

// ResetCull clears every cull bit.
func (c *Chunk) ResetCull() {
	if c.cull == nil {
		c.cull = make([]uint8, c.size*c.size*c.size)
		return
	}
	clear(c.cull)
}

func (c *Chunk) SetCulled(l mathx.Vec3i, f voxel.Face, culled bool) {
	if c.cull == nil {
		c.ResetCull()
	}
	i := c.Index(l)
	if culled {
		c.cull[i] |= f.Bit()
	} else {
		c.cull[i] &^= f.Bit()
	}
}

func (c *Chunk) SetCullMask(l mathx.Vec3i, mask uint8) {
	if c.cull == nil {
		c.ResetCull()
	}
	c.cull[c.Index(l)] = mask
}

func (c *Chunk) CullMask(l mathx.Vec3i) uint8 {
	if c.cull == nil || !c.InBounds(l) {
		return 0
	}
	return c.cull[c.Index(l)]
}

func (c *Chunk) IsCulled(l mathx.Vec3i, f voxel.Face) bool { return c.CullMask(l)&f.Bit() != 0 }

// CreateMesh builds and stores the mesh from the current cull masks.
func (c *Chunk) CreateMesh() *mesh.Mesh {
	m := mesh.Build(c)
	c.mesh.Store(m)
	return m
}

func (c *Chunk) Mesh() *mesh.Mesh { return c.mesh.Load() }

func (c *Chunk) RenderGroups() any     { return c.groups }
func (c *Chunk) SetRenderGroups(g any) { c.groups = g }

func (c *Chunk) Populated(pass int) bool       { return c.populated[pass].Load() }
func (c *Chunk) SetPopulated(pass int, v bool) { c.populated[pass].Store(v) }
func (c *Chunk) Meshed() bool                  { return c.meshed.Load() }
func (c *Chunk) SetMeshed(v bool)              { c.meshed.Store(v) }
func (c *Chunk) BeingCreated() bool            { return c.beingCreated.Load() }
func (c *Chunk) SetBeingCreated(v bool)        { c.beingCreated.Store(v) }
func (c *Chunk) BeingDeleted() bool            { return c.beingDeleted.Load() }
func (c *Chunk) SetBeingDeleted(v bool)        { c.beingDeleted.Store(v) }
func (c *Chunk) Destroyed() bool               { return c.destroyed.Load() }

// Destroy returns the storage to the arena. Safe to call twice.
func (c *Chunk) Destroy() {
	if !c.destroyed.CompareAndSwap(false, true) {
		return
	}
	c.mu.Lock()
	old := c.materials
	c.materials = nil
	c.mu.Unlock()
	if old != nil {
		c.arena.Release(old)
	}
	c.cull = nil
	c.mesh.Store(nil)
	c.groups = nil
	c.arena.live.Add(-1)
}
