package voxel

import "infinitus.ai/internal/sim/world/logic/mathx"

type Material uint8

const (
	Air Material = iota
	Stone
	Dirt
	Grass
	Sand
	Wood
	Leaves
	Water

	Materials
)

var materialNames = [Materials]string{"AIR", "STONE", "DIRT", "GRASS", "SAND", "WOOD", "LEAVES", "WATER"}

func (m Material) String() string {
	if m < Materials {
		return materialNames[m]
	}
	return "UNKNOWN"
}

// Transparent reports whether faces behind a voxel of this material stay visible.
func (m Material) Transparent() bool {
	switch m {
	case Air, Water, Leaves:
		return true
	}
	return false
}

// Palette returns material names in id order.
func Palette() []string {
	out := make([]string, len(materialNames))
	copy(out, materialNames[:])
	return out
}

// Color is the linear RGBA used by mesh exports.
func (m Material) Color() [4]float32 {
	switch m {
	case Stone:
		return [4]float32{0.5, 0.5, 0.5, 1}
	case Dirt:
		return [4]float32{0.45, 0.3, 0.15, 1}
	case Grass:
		return [4]float32{0.3, 0.65, 0.2, 1}
	case Sand:
		return [4]float32{0.9, 0.82, 0.55, 1}
	case Wood:
		return [4]float32{0.4, 0.25, 0.1, 1}
	case Leaves:
		return [4]float32{0.2, 0.55, 0.2, 1}
	case Water:
		return [4]float32{0.2, 0.35, 0.8, 0.6}
	}
	return [4]float32{0, 0, 0, 0}
}

// Face indexes the cull mask bits.
type Face uint8

const (
	Right Face = iota
	Left
	Top
	Bottom
	Front
	Back

	Faces = 6
)

// Normals holds the neighbour offset for each face.
var Normals = [Faces]mathx.Vec3i{
	{X: 1}, {X: -1},
	{Y: 1}, {Y: -1},
	{Z: 1}, {Z: -1},
}

func (f Face) Bit() uint8 { return 1 << f }

// AllCulled is a mask with every face hidden.
const AllCulled uint8 = 1<<Faces - 1
