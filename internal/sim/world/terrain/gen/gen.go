// Package gen populates chunks in two passes: base solidity, then surface materials and trees.
package gen

import (
	"infinitus.ai/internal/sim/world/chunk"
	"infinitus.ai/internal/sim/world/logic/mathx"
	"infinitus.ai/internal/sim/world/terrain/noise"
	"infinitus.ai/internal/sim/world/voxel"
)

const (
	risesBaseHeight      = 20
	earthRange           = 50
	mountainousnessRange = 200
	plateauThreshold     = 0.1

	SeaLevel   = 0
	WaterDepth = 48
	BeachLow   = -6
	BeachHigh  = 2
	SandDepth  = 4
	DirtDepth  = 3
	TreeChance = 0.02
)

// field is one noise request: frequency, octaves and seed offset from the world seed.
type field struct {
	freq    float32
	octaves int
	seed    int64
}

var (
	mountainousness = field{.003, 7, 0}
	earth           = field{.0005, 1, 1}
	hills           = field{.01, 2, 2}
	detail          = field{.01, 1, 3}
	plateauFill     = field{.002, 7, 4}
	plateauHeight   = field{.003, 2, 5}
	treeDensity     = field{.01, 2, 6}

	treeDrawSeed int64 = 7
)

// BoundaryWriter receives template voxels that land outside the chunk being generated.
// p is a world-space voxel coordinate.
type BoundaryWriter interface {
	WriteOutside(p mathx.Vec3i, m voxel.Material)
}

type Generator struct {
	Noise noise.Provider
	Seed  int64
}

func New(p noise.Provider, seed int64) *Generator {
	return &Generator{Noise: p, Seed: seed}
}

func (g *Generator) sample2D(f field, t mathx.Vec3i, s int) []float32 {
	return g.Noise.Fractal([3]int{t.Z, t.X, 0}, [3]int{s, s, 1}, f.freq, f.octaves, g.Seed+f.seed)
}

// Pass1 marks stone below the ground height and inside plateaus. It is a pure
// function of the chunk coordinate and the seed.
func (g *Generator) Pass1(c *chunk.Chunk) {
	s := c.Size()
	t := c.Translation()

	mount := g.sample2D(mountainousness, t, s)
	earthSet := g.sample2D(earth, t, s)
	hillSet := g.sample2D(hills, t, s)
	detailSet := g.sample2D(detail, t, s)
	fill := g.Noise.Fractal([3]int{t.Z, t.X, t.Y}, [3]int{s, s, s}, plateauFill.freq, plateauFill.octaves, g.Seed+plateauFill.seed)
	plateauSet := g.sample2D(plateauHeight, t, s)
	defer func() {
		g.Noise.Release(plateauSet)
		g.Noise.Release(fill)
		g.Noise.Release(detailSet)
		g.Noise.Release(hillSet)
		g.Noise.Release(earthSet)
		g.Noise.Release(mount)
	}()

	buf := c.NewBuffer()
	i2, i3 := 0, 0
	for z := 0; z < s; z++ {
		for x := 0; x < s; x++ {
			m := max(mount[i2]*mountainousnessRange, 0)
			e := earthSet[i2] * earthRange
			h := hillSet[i2] * 5 * m / 30
			d := detailSet[i2] * 2
			ground := e + h + d
			ph := e + plateauSet[i2]*m - risesBaseHeight + d
			for y := 0; y < s; y++ {
				vy := float32(t.Y + y)
				var plateau float32
				if vy > ph {
					plateau = fill[i3] * (vy - ph)
				}
				if vy < ground || plateau > plateauThreshold {
					buf[x+s*(y+s*z)] = voxel.Stone
				}
				i3++
			}
			i2++
		}
	}
	c.Commit(buf)
}

type Pass2Stats struct {
	Surfaces int
	Trees    int
	Outside  int
}

// Pass2 classifies surfaces, floods the water band and plants trees. Template
// voxels outside the chunk go to out; a nil out drops them.
func (g *Generator) Pass2(c *chunk.Chunk, out BoundaryWriter) Pass2Stats {
	s := c.Size()
	t := c.Translation()
	density := g.sample2D(treeDensity, t, s)
	defer g.Noise.Release(density)

	var st Pass2Stats
	buf := c.NewBuffer()
	idx := func(x, y, z int) int { return x + s*(y+s*z) }

	var roots []mathx.Vec3i
	for z := 0; z < s; z++ {
		for x := 0; x < s; x++ {
			surface := -1
			for y := s - 2; y >= 0; y-- {
				if buf[idx(x, y, z)] != voxel.Air && buf[idx(x, y+1, z)] == voxel.Air {
					surface = y
					break
				}
			}

			for y := 0; y < s; y++ {
				wy := t.Y + y
				if wy >= SeaLevel-WaterDepth && wy < SeaLevel && buf[idx(x, y, z)] == voxel.Air {
					buf[idx(x, y, z)] = voxel.Water
				}
			}
			if surface < 0 {
				continue
			}
			st.Surfaces++
			wy := t.Y + surface

			if wy >= BeachLow && wy <= BeachHigh {
				for y := surface; y > surface-SandDepth && y >= 0; y-- {
					if buf[idx(x, y, z)] == voxel.Stone {
						buf[idx(x, y, z)] = voxel.Sand
					}
				}
				continue
			}

			buf[idx(x, surface, z)] = voxel.Grass
			for y := surface - 1; y >= surface-DirtDepth && y >= 0; y-- {
				if buf[idx(x, y, z)] == voxel.Stone {
					buf[idx(x, y, z)] = voxel.Dirt
				}
			}

			if wy < SeaLevel {
				continue
			}
			chance := (float64(density[z*s+x]) + 1) / 2 * TreeChance
			if mathx.Unit(mathx.Hash3(g.Seed+treeDrawSeed, t.X+x, wy, t.Z+z)) < chance {
				roots = append(roots, mathx.Vec3i{X: x, Y: surface, Z: z})
			}
		}
	}

	for _, r := range roots {
		st.Outside += placeTree(buf, s, t, r, out)
		st.Trees++
	}
	c.Commit(buf)
	return st
}

// Generate runs both passes.
func (g *Generator) Generate(c *chunk.Chunk, out BoundaryWriter) Pass2Stats {
	g.Pass1(c)
	return g.Pass2(c, out)
}
