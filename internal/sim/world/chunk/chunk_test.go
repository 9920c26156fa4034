package chunk

import (
	"testing"

	"infinitus.ai/internal/sim/world/logic/mathx"
	"infinitus.ai/internal/sim/world/voxel"
)

func newTestChunk(t *testing.T, size int) (*Arena, *Chunk) {
	t.Helper()
	a, err := NewArena(size)
	if err != nil {
		t.Fatalf("NewArena: %v", err)
	}
	return a, a.New(mathx.Vec3i{X: 1, Y: -1, Z: 2})
}

func TestNewChunkIsAirWithFlagsClear(t *testing.T) {
	_, c := newTestChunk(t, 8)
	if !c.IsEmpty() {
		t.Fatalf("new chunk should be empty")
	}
	if c.Populated(0) || c.Populated(1) || c.Meshed() || c.BeingCreated() || c.BeingDeleted() {
		t.Fatalf("flags should start false")
	}
	if got := c.Material(mathx.Vec3i{X: 3, Y: 3, Z: 3}); got != voxel.Air {
		t.Fatalf("material=%v want AIR", got)
	}
	if c.Translation() != (mathx.Vec3i{X: 8, Y: -8, Z: 16}) {
		t.Fatalf("translation=%+v", c.Translation())
	}
	if c.Center() != (mathx.Vec3i{X: 12, Y: -4, Z: 20}) {
		t.Fatalf("center=%+v", c.Center())
	}
}

func TestSetMaterialAndIndex(t *testing.T) {
	_, c := newTestChunk(t, 4)
	l := mathx.Vec3i{X: 1, Y: 2, Z: 3}
	if c.Index(l) != 1+4*(2+4*3) {
		t.Fatalf("index=%d", c.Index(l))
	}
	c.SetMaterial(l, voxel.Stone)
	if c.Material(l) != voxel.Stone || c.IsTransparent(l) {
		t.Fatalf("stone not stored")
	}
	c.SetMaterial(mathx.Vec3i{X: 9}, voxel.Stone) // out of bounds ignored
	if c.Material(mathx.Vec3i{X: -1}) != voxel.Air {
		t.Fatalf("out of bounds should read air")
	}
	b := c.Bytes()
	if b[c.Index(l)] != byte(voxel.Stone) {
		t.Fatalf("Bytes mismatch")
	}
}

func TestCommitAllAirReleasesStorage(t *testing.T) {
	_, c := newTestChunk(t, 4)
	c.SetMaterial(mathx.Vec3i{}, voxel.Dirt)
	buf := c.NewBuffer()
	if buf[0] != voxel.Dirt {
		t.Fatalf("NewBuffer should copy materials")
	}
	clear(buf)
	c.Commit(buf)
	if !c.IsEmpty() {
		t.Fatalf("all-air commit should drop storage")
	}
}

func TestDigestStableAcrossStorage(t *testing.T) {
	a, c := newTestChunk(t, 4)
	d0 := c.Digest()
	other := a.New(mathx.Vec3i{})
	other.Edit(func(m []voxel.Material) {})
	if other.Digest() != d0 {
		t.Fatalf("empty and zeroed chunk digests differ")
	}
	c.SetMaterial(mathx.Vec3i{X: 1}, voxel.Sand)
	if c.Digest() == d0 {
		t.Fatalf("digest did not change after edit")
	}
	cp := a.New(mathx.Vec3i{})
	if !cp.LoadBytes(c.Bytes()) || cp.Digest() != c.Digest() {
		t.Fatalf("LoadBytes round trip digest mismatch")
	}
}

func TestCullMaskAndMesh(t *testing.T) {
	_, c := newTestChunk(t, 4)
	l := mathx.Vec3i{X: 1, Y: 1, Z: 1}
	c.SetMaterial(l, voxel.Stone)
	c.ResetCull()
	c.SetCullMask(l, voxel.AllCulled)
	c.SetCulled(l, voxel.Top, false)
	if c.IsCulled(l, voxel.Top) || !c.IsCulled(l, voxel.Left) {
		t.Fatalf("cull mask=%06b", c.CullMask(l))
	}
	m := c.CreateMesh()
	if len(m.Quads) != 1 || m.Quads[0].Face != voxel.Top || m.Quads[0].Material != voxel.Stone {
		t.Fatalf("quads=%+v", m.Quads)
	}
	if c.Mesh() != m {
		t.Fatalf("mesh not stored")
	}
}

func TestDestroyIsIdempotent(t *testing.T) {
	a, c := newTestChunk(t, 4)
	c.SetMaterial(mathx.Vec3i{}, voxel.Stone)
	if a.Live() != 1 {
		t.Fatalf("live=%d", a.Live())
	}
	c.Destroy()
	c.Destroy()
	if !c.Destroyed() || a.Live() != 0 || !c.IsEmpty() {
		t.Fatalf("destroy: destroyed=%v live=%d", c.Destroyed(), a.Live())
	}
}

func TestNewArenaRejectsBadSize(t *testing.T) {
	if _, err := NewArena(0); err == nil {
		t.Fatalf("expected error")
	}
}
