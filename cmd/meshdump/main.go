package main

import (
	"flag"
	"fmt"
	"os"
	"strconv"
	"strings"

	"infinitus.ai/internal/sim/world/chunk"
	"infinitus.ai/internal/sim/world/cull"
	"infinitus.ai/internal/sim/world/logic/mathx"
	"infinitus.ai/internal/sim/world/mesh"
	"infinitus.ai/internal/sim/world/terrain/gen"
	"infinitus.ai/internal/sim/world/terrain/noise"
)

func main() {
	var (
		coord = flag.String("chunk", "0,0,0", "chunk coordinate x,y,z")
		seed  = flag.Int64("seed", 1337, "world seed")
		size  = flag.Int("size", 128, "chunk edge length in voxels")
		out   = flag.String("out", "chunk.glb", "output .glb path")
	)
	flag.Parse()

	pos, err := parseCoord(*coord)
	if err != nil {
		fmt.Fprintln(os.Stderr, "-chunk:", err)
		os.Exit(2)
	}
	m, st, err := dump(pos, *seed, *size)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	if err := mesh.WriteGLB(*out, []mesh.Named{{Name: fmt.Sprintf("chunk_%d_%d_%d", pos.X, pos.Y, pos.Z), Mesh: m}}); err != nil {
		fmt.Fprintln(os.Stderr, "write glb:", err)
		os.Exit(1)
	}
	fmt.Printf("chunk=%v seed=%d size=%d voxels=%d visible=%d quads=%d faces=%v out=%s\n",
		pos, *seed, *size, st.Voxels, st.Visible, len(m.Quads), m.CountByFace(), *out)
}

// dump generates both passes for one chunk and meshes it with every
// neighbour treated as unloaded. Tree voxels that leave the chunk are dropped.
func dump(pos mathx.Vec3i, seed int64, size int) (*mesh.Mesh, cull.Stats, error) {
	arena, err := chunk.NewArena(size)
	if err != nil {
		return nil, cull.Stats{}, err
	}
	c := arena.New(pos)
	defer c.Destroy()
	gen.New(noise.NewSimplex(), seed).Generate(c, nil)
	st := cull.Chunk(c, nil)
	return c.CreateMesh(), st, nil
}

func parseCoord(s string) (mathx.Vec3i, error) {
	var v [3]int
	parts := strings.Split(s, ",")
	if len(parts) != 3 {
		return mathx.Vec3i{}, fmt.Errorf("want x,y,z, got %q", s)
	}
	for i, p := range parts {
		n, err := strconv.Atoi(strings.TrimSpace(p))
		if err != nil {
			return mathx.Vec3i{}, fmt.Errorf("component %d: %w", i, err)
		}
		v[i] = n
	}
	return mathx.Vec3i{X: v[0], Y: v[1], Z: v[2]}, nil
}
