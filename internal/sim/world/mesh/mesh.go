// Package mesh turns culled chunk voxels into face quads and exports them.
package mesh

import (
	"infinitus.ai/internal/sim/world/logic/mathx"
	"infinitus.ai/internal/sim/world/voxel"
)

// Source is the read side of a culled chunk.
type Source interface {
	Size() int
	Translation() mathx.Vec3i
	// VisitVoxels calls fn for every non-air voxel with its cull mask.
	VisitVoxels(fn func(local mathx.Vec3i, m voxel.Material, cull uint8))
}

// Quad is one visible unit face.
type Quad struct {
	Local    mathx.Vec3i
	Face     voxel.Face
	Material voxel.Material
}

type Mesh struct {
	Origin mathx.Vec3i
	Quads  []Quad
}

// Build emits one quad per face whose cull bit is clear.
func Build(src Source) *Mesh {
	m := &Mesh{Origin: src.Translation()}
	src.VisitVoxels(func(l mathx.Vec3i, mat voxel.Material, cull uint8) {
		if cull == voxel.AllCulled {
			return
		}
		for f := voxel.Face(0); f < voxel.Faces; f++ {
			if cull&f.Bit() != 0 {
				continue
			}
			m.Quads = append(m.Quads, Quad{Local: l, Face: f, Material: mat})
		}
	})
	return m
}

func (m *Mesh) Empty() bool { return m == nil || len(m.Quads) == 0 }

// CountByFace returns the number of quads per face direction.
func (m *Mesh) CountByFace() [voxel.Faces]int {
	var out [voxel.Faces]int
	if m == nil {
		return out
	}
	for _, q := range m.Quads {
		out[q.Face]++
	}
	return out
}

// corners lists the unit-cube corners of each face, counter-clockwise seen from outside.
var corners = [voxel.Faces][4][3]float32{
	voxel.Right:  {{1, 0, 0}, {1, 1, 0}, {1, 1, 1}, {1, 0, 1}},
	voxel.Left:   {{0, 0, 1}, {0, 1, 1}, {0, 1, 0}, {0, 0, 0}},
	voxel.Top:    {{0, 1, 0}, {0, 1, 1}, {1, 1, 1}, {1, 1, 0}},
	voxel.Bottom: {{0, 0, 0}, {1, 0, 0}, {1, 0, 1}, {0, 0, 1}},
	voxel.Front:  {{1, 0, 1}, {1, 1, 1}, {0, 1, 1}, {0, 0, 1}},
	voxel.Back:   {{0, 0, 0}, {0, 1, 0}, {1, 1, 0}, {1, 0, 0}},
}

// Geometry is an indexed triangle list in world space.
type Geometry struct {
	Positions [][3]float32
	Normals   [][3]float32
	Colors    [][4]float32
	Indices   []uint32
}

func (m *Mesh) Geometry() Geometry {
	var g Geometry
	if m.Empty() {
		return g
	}
	n := len(m.Quads)
	g.Positions = make([][3]float32, 0, n*4)
	g.Normals = make([][3]float32, 0, n*4)
	g.Colors = make([][4]float32, 0, n*4)
	g.Indices = make([]uint32, 0, n*6)
	ox, oy, oz := float32(m.Origin.X), float32(m.Origin.Y), float32(m.Origin.Z)
	for _, q := range m.Quads {
		base := uint32(len(g.Positions))
		nv := voxel.Normals[q.Face]
		normal := [3]float32{float32(nv.X), float32(nv.Y), float32(nv.Z)}
		col := q.Material.Color()
		lx, ly, lz := ox+float32(q.Local.X), oy+float32(q.Local.Y), oz+float32(q.Local.Z)
		for _, c := range corners[q.Face] {
			g.Positions = append(g.Positions, [3]float32{lx + c[0], ly + c[1], lz + c[2]})
			g.Normals = append(g.Normals, normal)
			g.Colors = append(g.Colors, col)
		}
		g.Indices = append(g.Indices, base, base+1, base+2, base, base+2, base+3)
	}
	return g
}
