package mathx

// Vec3i is an integer triple used for chunk coordinates and chunk-local voxel positions.
type Vec3i struct {
	X, Y, Z int
}

func (v Vec3i) Add(o Vec3i) Vec3i { return Vec3i{X: v.X + o.X, Y: v.Y + o.Y, Z: v.Z + o.Z} }
func (v Vec3i) Sub(o Vec3i) Vec3i { return Vec3i{X: v.X - o.X, Y: v.Y - o.Y, Z: v.Z - o.Z} }
func (v Vec3i) Scale(s int) Vec3i { return Vec3i{X: v.X * s, Y: v.Y * s, Z: v.Z * s} }

// Abs returns the per-axis absolute value.
func (v Vec3i) Abs() Vec3i { return Vec3i{X: AbsInt(v.X), Y: AbsInt(v.Y), Z: AbsInt(v.Z)} }

func FloorDiv(a, b int) int {
	// b > 0
	q := a / b
	r := a % b
	if r < 0 {
		q--
	}
	return q
}

func Mod(a, b int) int {
	// b > 0
	m := a % b
	if m < 0 {
		m += b
	}
	return m
}

func AbsInt(x int) int {
	if x < 0 {
		return -x
	}
	return x
}

// Split maps a world-space voxel coordinate to (chunk coordinate, chunk-local coordinate).
func Split(p Vec3i, size int) (Vec3i, Vec3i) {
	c := Vec3i{X: FloorDiv(p.X, size), Y: FloorDiv(p.Y, size), Z: FloorDiv(p.Z, size)}
	l := Vec3i{X: Mod(p.X, size), Y: Mod(p.Y, size), Z: Mod(p.Z, size)}
	return c, l
}

func mix64(z uint64) uint64 {
	z += 0x9e3779b97f4a7c15
	z = (z ^ (z >> 30)) * 0xbf58476d1ce4e5b9
	z = (z ^ (z >> 27)) * 0x94d049bb133111eb
	return z ^ (z >> 31)
}

func Hash3(seed int64, x, y, z int) uint64 {
	ux := uint64(uint32(int32(x)))
	uy := uint64(uint32(int32(y)))
	uz := uint64(uint32(int32(z)))
	v := uint64(seed) ^ (ux * 0x9e3779b97f4a7c15) ^ (uy * 0xc2b2ae3d27d4eb4f) ^ (uz * 0xbf58476d1ce4e5b9)
	return mix64(v)
}

// Unit maps a hash to [0,1) using its top 53 bits.
func Unit(h uint64) float64 {
	return float64(h>>11) / (1 << 53)
}
