// Package cull computes per-voxel face visibility for a chunk.
package cull

import (
	"infinitus.ai/internal/sim/world/chunk"
	"infinitus.ai/internal/sim/world/logic/mathx"
	"infinitus.ai/internal/sim/world/voxel"
)

// Neighbors resolves voxels in other chunks. ok is false when the chunk is
// unloaded or being deleted, and the face is then rendered.
type Neighbors interface {
	NeighborMaterial(coord, local mathx.Vec3i) (m voxel.Material, ok bool)
}

type Stats struct {
	Voxels   int // non-air voxels visited
	Visible  int // faces left unculled
	Boundary int // faces resolved against a neighbour chunk
	Missing  int // boundary faces whose neighbour was absent
}

// Hidden reports whether a face of a voxel of material m is covered by a neighbour of material n.
func Hidden(m, n voxel.Material) bool {
	return !n.Transparent() || (n == m && m != voxel.Air)
}

// Chunk rewrites every cull mask of c. n may be nil, in which case every
// neighbour chunk counts as absent.
func Chunk(c *chunk.Chunk, n Neighbors) Stats {
	var st Stats
	c.ResetCull()
	if c.IsEmpty() {
		return st
	}
	s := c.Size()
	pos := c.Position()
	buf := c.NewBuffer()
	defer c.ReleaseBuffer(buf)

	i := 0
	for z := 0; z < s; z++ {
		for y := 0; y < s; y++ {
			for x := 0; x < s; x++ {
				m := buf[i]
				i++
				if m == voxel.Air {
					continue
				}
				st.Voxels++
				l := mathx.Vec3i{X: x, Y: y, Z: z}
				var mask uint8
				for f := voxel.Face(0); f < voxel.Faces; f++ {
					p := l.Add(voxel.Normals[f])
					if c.InBounds(p) {
						if Hidden(m, buf[c.Index(p)]) {
							mask |= f.Bit()
						}
						continue
					}
					st.Boundary++
					if n == nil {
						st.Missing++
						continue
					}
					dc, dl := mathx.Split(p, s)
					nm, ok := n.NeighborMaterial(pos.Add(dc), dl)
					if !ok {
						st.Missing++
						continue
					}
					if Hidden(m, nm) {
						mask |= f.Bit()
					}
				}
				if mask != voxel.AllCulled {
					for f := voxel.Face(0); f < voxel.Faces; f++ {
						if mask&f.Bit() == 0 {
							st.Visible++
						}
					}
				}
				c.SetCullMask(l, mask)
			}
		}
	}
	return st
}
