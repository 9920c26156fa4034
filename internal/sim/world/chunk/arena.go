package chunk

import (
	"fmt"
	"sync"
	"sync/atomic"

	"infinitus.ai/internal/sim/world/logic/mathx"
	"infinitus.ai/internal/sim/world/voxel"
)

// Arena allocates chunks of one edge length and recycles their voxel storage.
type Arena struct {
	size   int
	volume int

	pool sync.Pool
	live atomic.Int64
}

func NewArena(size int) (*Arena, error) {
	if size <= 0 || size > 1024 {
		return nil, fmt.Errorf("chunk size out of range: %d", size)
	}
	a := &Arena{size: size, volume: size * size * size}
	a.pool.New = func() any {
		b := make([]voxel.Material, a.volume)
		return &b
	}
	return a, nil
}

func (a *Arena) Size() int { return a.size }

// Live counts chunks created and not yet destroyed.
func (a *Arena) Live() int { return int(a.live.Load()) }

// New returns an empty (all air) chunk at chunk coordinate pos.
func (a *Arena) New(pos mathx.Vec3i) *Chunk {
	a.live.Add(1)
	return &Chunk{pos: pos, size: a.size, arena: a}
}

// Buffer returns a zeroed material buffer of the arena's volume.
func (a *Arena) Buffer() []voxel.Material {
	bp := a.pool.Get().(*[]voxel.Material)
	b := *bp
	clear(b)
	return b
}

// Release hands a buffer obtained from Buffer back to the arena.
func (a *Arena) Release(b []voxel.Material) {
	if len(b) != a.volume {
		return
	}
	a.pool.Put(&b)
}
