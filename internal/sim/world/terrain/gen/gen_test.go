package gen

import (
	"bytes"
	"testing"

	"infinitus.ai/internal/sim/world/chunk"
	"infinitus.ai/internal/sim/world/logic/mathx"
	"infinitus.ai/internal/sim/world/terrain/noise"
	"infinitus.ai/internal/sim/world/voxel"
)

// flatNoise returns a constant per field, keyed by seed offset.
type flatNoise struct {
	seed int64
	vals map[int64]float32
}

func (f flatNoise) Fractal(offset, size [3]int, frequency float32, octaves int, seed int64) []float32 {
	out := make([]float32, size[0]*size[1]*size[2])
	v := f.vals[seed-f.seed]
	for i := range out {
		out[i] = v
	}
	return out
}

func (f flatNoise) Release([]float32) {}

type recorder struct {
	writes map[mathx.Vec3i]voxel.Material
}

func (r *recorder) WriteOutside(p mathx.Vec3i, m voxel.Material) {
	if r.writes == nil {
		r.writes = map[mathx.Vec3i]voxel.Material{}
	}
	r.writes[p] = m
}

func newChunk(t *testing.T, size int, pos mathx.Vec3i) *chunk.Chunk {
	t.Helper()
	a, err := chunk.NewArena(size)
	if err != nil {
		t.Fatalf("NewArena: %v", err)
	}
	return a.New(pos)
}

func TestPass1FlatGround(t *testing.T) {
	// earth .1 * 50 = 5: stone strictly below world y 5
	g := New(flatNoise{seed: 10, vals: map[int64]float32{1: 0.1}}, 10)
	c := newChunk(t, 16, mathx.Vec3i{})
	g.Pass1(c)
	for y := 0; y < 16; y++ {
		want := voxel.Air
		if y < 5 {
			want = voxel.Stone
		}
		if got := c.Material(mathx.Vec3i{X: 3, Y: y, Z: 7}); got != want {
			t.Fatalf("y=%d: got %v want %v", y, got, want)
		}
	}
}

func TestPass2GrassDirtAndStone(t *testing.T) {
	g := New(flatNoise{seed: 10, vals: map[int64]float32{1: 0.1}}, 10)
	c := newChunk(t, 16, mathx.Vec3i{})
	g.Pass1(c)
	st := g.Pass2(c, nil)
	if st.Surfaces != 256 {
		t.Fatalf("surfaces=%d want 256", st.Surfaces)
	}
	col := func(y int) voxel.Material { return c.Material(mathx.Vec3i{X: 8, Y: y, Z: 8}) }
	if col(4) != voxel.Grass {
		t.Fatalf("surface=%v", col(4))
	}
	for y := 1; y <= 3; y++ {
		if col(y) != voxel.Dirt {
			t.Fatalf("y=%d: got %v want DIRT", y, col(y))
		}
	}
	if col(0) != voxel.Stone {
		t.Fatalf("y=0: got %v want STONE", col(0))
	}
}

func TestPass2WaterAndBeach(t *testing.T) {
	// ground at world y -10, chunk spans [-16,0)
	g := New(flatNoise{seed: 3, vals: map[int64]float32{1: -0.2}}, 3)
	c := newChunk(t, 16, mathx.Vec3i{Y: -1})
	g.Pass1(c)
	g.Pass2(c, nil)
	col := func(y int) voxel.Material { return c.Material(mathx.Vec3i{X: 2, Y: y, Z: 9}) }
	if col(5) != voxel.Grass {
		t.Fatalf("surface=%v want GRASS", col(5))
	}
	for y := 6; y < 16; y++ {
		if col(y) != voxel.Water {
			t.Fatalf("y=%d: got %v want WATER", y, col(y))
		}
	}

	// ground at world y 1: surface at 0 lies in the beach band
	g = New(flatNoise{seed: 3, vals: map[int64]float32{1: 0.02}}, 3)
	c = newChunk(t, 16, mathx.Vec3i{})
	g.Pass1(c)
	st := g.Pass2(c, nil)
	if st.Trees != 0 {
		t.Fatalf("trees on beach: %d", st.Trees)
	}
	if got := c.Material(mathx.Vec3i{X: 1, Y: 0, Z: 1}); got != voxel.Sand {
		t.Fatalf("beach surface=%v want SAND", got)
	}
}

func TestPlaceTreeAtEdgeForwardsOutside(t *testing.T) {
	const s = 16
	buf := make([]voxel.Material, s*s*s)
	origin := mathx.Vec3i{X: 16}
	root := mathx.Vec3i{X: 1, Y: 4, Z: 8}
	rec := &recorder{}
	outside := placeTree(buf, s, origin, root, rec)

	total := 0
	TreeVoxels(func(mathx.Vec3i, voxel.Material) { total++ })
	inside := 0
	for _, m := range buf {
		if m != voxel.Air {
			inside++
		}
	}
	if inside+outside != total {
		t.Fatalf("inside=%d outside=%d total=%d", inside, outside, total)
	}
	if outside == 0 || len(rec.writes) != outside {
		t.Fatalf("outside=%d recorded=%d", outside, len(rec.writes))
	}
	for p := range rec.writes {
		if p.X >= 16 {
			t.Fatalf("recorded in-bounds voxel %+v", p)
		}
	}
	if buf[root.X+s*(root.Y+1+s*root.Z)] != voxel.Wood {
		t.Fatalf("trunk missing above root")
	}

	// with no writer the out of bounds part is skipped
	clear(buf)
	if n := placeTree(buf, s, origin, root, nil); n != outside {
		t.Fatalf("nil writer outside=%d want %d", n, outside)
	}
}

func TestGenerateDeterministic(t *testing.T) {
	a := newChunk(t, 16, mathx.Vec3i{Y: -1})
	b := newChunk(t, 16, mathx.Vec3i{Y: -1})
	New(noise.NewSimplex(), 1337).Generate(a, nil)
	New(noise.NewSimplex(), 1337).Generate(b, nil)
	if !bytes.Equal(a.Bytes(), b.Bytes()) {
		t.Fatalf("same seed produced different grids")
	}
	if a.Digest() != b.Digest() {
		t.Fatalf("digest mismatch")
	}
}

// originHistogram is the material count of chunk (0,0,0), size 16, seed 1337,
// indexed by voxel.Material.
var originHistogram = [voxel.Materials]int{1269, 2625, 135, 45, 22, 0, 0, 0}

func TestGoldenChunkOrigin(t *testing.T) {
	c := newChunk(t, 16, mathx.Vec3i{})
	New(noise.NewSimplex(), 1337).Generate(c, nil)

	var got [voxel.Materials]int
	for _, b := range c.Bytes() {
		if int(b) >= len(got) {
			t.Fatalf("unknown material %d", b)
		}
		got[b]++
	}
	if got != originHistogram {
		t.Fatalf("material histogram=%v want %v", got, originHistogram)
	}
}
