package gen

import (
	"infinitus.ai/internal/sim/world/logic/mathx"
	"infinitus.ai/internal/sim/world/voxel"
)

const (
	TreeWidth  = 5
	TreeHeight = 7
)

// Tree is indexed [y][z][x]; layer 0 sits one voxel above the root.
var Tree = func() [TreeHeight][TreeWidth][TreeWidth]voxel.Material {
	const (
		o = voxel.Air
		w = voxel.Wood
		l = voxel.Leaves
	)
	return [TreeHeight][TreeWidth][TreeWidth]voxel.Material{
		{{o, o, o, o, o}, {o, o, o, o, o}, {o, o, w, o, o}, {o, o, o, o, o}, {o, o, o, o, o}},
		{{o, o, o, o, o}, {o, o, o, o, o}, {o, o, w, o, o}, {o, o, o, o, o}, {o, o, o, o, o}},
		{{o, l, l, l, o}, {l, l, l, l, l}, {l, l, w, l, l}, {l, l, l, l, l}, {o, l, l, l, o}},
		{{o, o, l, o, o}, {o, l, l, l, o}, {l, l, w, l, l}, {o, l, l, l, o}, {o, o, l, o, o}},
		{{o, o, o, o, o}, {o, l, l, l, o}, {o, l, w, l, o}, {o, l, l, l, o}, {o, o, o, o, o}},
		{{o, o, o, o, o}, {o, o, l, o, o}, {o, l, w, l, o}, {o, o, l, o, o}, {o, o, o, o, o}},
		{{o, o, o, o, o}, {o, o, o, o, o}, {o, o, l, o, o}, {o, o, o, o, o}, {o, o, o, o, o}},
	}
}()

// TreeVoxels calls fn with the offset of every solid template voxel relative to the root.
func TreeVoxels(fn func(off mathx.Vec3i, m voxel.Material)) {
	for ty := 0; ty < TreeHeight; ty++ {
		for tz := 0; tz < TreeWidth; tz++ {
			for tx := 0; tx < TreeWidth; tx++ {
				m := Tree[ty][tz][tx]
				if m == voxel.Air {
					continue
				}
				fn(mathx.Vec3i{X: tx - TreeWidth/2, Y: ty + 1, Z: tz - TreeWidth/2}, m)
			}
		}
	}
}

// placeTree writes the template into air voxels of buf and forwards the
// remainder to out. It returns the number of voxels that fell outside.
func placeTree(buf []voxel.Material, s int, origin, root mathx.Vec3i, out BoundaryWriter) int {
	outside := 0
	TreeVoxels(func(off mathx.Vec3i, m voxel.Material) {
		p := root.Add(off)
		if p.X < 0 || p.Y < 0 || p.Z < 0 || p.X >= s || p.Y >= s || p.Z >= s {
			outside++
			if out != nil {
				out.WriteOutside(origin.Add(p), m)
			}
			return
		}
		i := p.X + s*(p.Y+s*p.Z)
		if buf[i] == voxel.Air || buf[i] == voxel.Leaves {
			buf[i] = m
		}
	})
	return outside
}
