package cull

import (
	"testing"

	"infinitus.ai/internal/sim/world/chunk"
	"infinitus.ai/internal/sim/world/logic/mathx"
	"infinitus.ai/internal/sim/world/terrain/store"
	"infinitus.ai/internal/sim/world/voxel"
)

func solidChunk(t *testing.T, a *chunk.Arena, pos mathx.Vec3i, m voxel.Material) *chunk.Chunk {
	t.Helper()
	c := a.New(pos)
	c.Edit(func(buf []voxel.Material) {
		for i := range buf {
			buf[i] = m
		}
	})
	return c
}

func TestHidden(t *testing.T) {
	cases := []struct {
		m, n voxel.Material
		want bool
	}{
		{voxel.Stone, voxel.Stone, true},
		{voxel.Stone, voxel.Air, false},
		{voxel.Stone, voxel.Water, false},
		{voxel.Water, voxel.Water, true},
		{voxel.Leaves, voxel.Leaves, true},
		{voxel.Water, voxel.Leaves, false},
		{voxel.Water, voxel.Sand, true},
	}
	for _, c := range cases {
		if got := Hidden(c.m, c.n); got != c.want {
			t.Fatalf("Hidden(%v,%v)=%v want %v", c.m, c.n, got, c.want)
		}
	}
}

func TestBoundaryFaceRenderedWhenNeighbourUnloaded(t *testing.T) {
	const s = 8
	a, _ := chunk.NewArena(s)
	m := store.NewMap()
	c := solidChunk(t, a, mathx.Vec3i{}, voxel.Stone)
	m.Insert(c)

	Chunk(c, m)
	edge := mathx.Vec3i{X: s - 1, Y: 3, Z: 3}
	if c.IsCulled(edge, voxel.Right) {
		t.Fatalf("+x face at the edge should render while (1,0,0) is unloaded")
	}
	if !c.IsCulled(edge, voxel.Left) {
		t.Fatalf("-x face inside the chunk should be hidden")
	}
	inner := mathx.Vec3i{X: 3, Y: 3, Z: 3}
	if c.CullMask(inner) != voxel.AllCulled {
		t.Fatalf("inner voxel mask=%06b", c.CullMask(inner))
	}

	// loading an opaque neighbour hides the face on the next cull
	m.Insert(solidChunk(t, a, mathx.Vec3i{X: 1}, voxel.Stone))
	Chunk(c, m)
	if !c.IsCulled(edge, voxel.Right) {
		t.Fatalf("+x face should be hidden by a loaded stone neighbour")
	}

	// a neighbour being deleted counts as absent again
	n, _ := m.Get(mathx.Vec3i{X: 1})
	n.SetBeingDeleted(true)
	Chunk(c, m)
	if c.IsCulled(edge, voxel.Right) {
		t.Fatalf("+x face should render while the neighbour is being deleted")
	}
}

func TestCullStatsSingleVoxel(t *testing.T) {
	a, _ := chunk.NewArena(4)
	c := a.New(mathx.Vec3i{})
	c.SetMaterial(mathx.Vec3i{X: 1, Y: 1, Z: 1}, voxel.Stone)
	st := Chunk(c, nil)
	if st.Voxels != 1 || st.Visible != 6 || st.Boundary != 0 {
		t.Fatalf("stats=%+v", st)
	}
	if got := len(c.CreateMesh().Quads); got != 6 {
		t.Fatalf("quads=%d", got)
	}
}

func TestWaterSurfaceOnlyFacesAir(t *testing.T) {
	a, _ := chunk.NewArena(4)
	c := a.New(mathx.Vec3i{})
	c.Edit(func(buf []voxel.Material) {
		for z := 0; z < 4; z++ {
			for x := 0; x < 4; x++ {
				buf[x+4*(0+4*z)] = voxel.Water
				buf[x+4*(1+4*z)] = voxel.Water
			}
		}
	})
	Chunk(c, nil)
	l := mathx.Vec3i{X: 1, Y: 1, Z: 1}
	if c.IsCulled(l, voxel.Top) {
		t.Fatalf("water top facing air should render")
	}
	if !c.IsCulled(l, voxel.Bottom) || !c.IsCulled(l, voxel.Left) {
		t.Fatalf("water-water faces should be hidden: %06b", c.CullMask(l))
	}
}
