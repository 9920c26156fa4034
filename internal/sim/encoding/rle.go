package encoding

import (
	"bytes"
	"encoding/base64"
	"encoding/binary"
	"fmt"

	"infinitus.ai/internal/sim/world/voxel"
)

// EncodeRLE encodes materials into base64(varint pairs).
// The pairs are (material, run_len) repeated.
func EncodeRLE(ms []voxel.Material) string {
	var buf bytes.Buffer
	var tmp [binary.MaxVarintLen64]byte

	i := 0
	for i < len(ms) {
		m := ms[i]
		run := 1
		for j := i + 1; j < len(ms) && ms[j] == m; j++ {
			run++
		}

		n := binary.PutUvarint(tmp[:], uint64(m))
		buf.Write(tmp[:n])
		n = binary.PutUvarint(tmp[:], uint64(run))
		buf.Write(tmp[:n])

		i += run
	}

	return base64.StdEncoding.EncodeToString(buf.Bytes())
}

// EncodeBytesRLE is EncodeRLE over the one-byte-per-voxel form of chunk.Bytes.
func EncodeBytesRLE(b []byte) string {
	ms := make([]voxel.Material, len(b))
	for i, v := range b {
		ms[i] = voxel.Material(v)
	}
	return EncodeRLE(ms)
}

// DecodeRLE reverses EncodeRLE. With limit > 0 the output may not exceed limit voxels.
func DecodeRLE(b64 string, limit int) ([]voxel.Material, error) {
	raw, err := base64.StdEncoding.DecodeString(b64)
	if err != nil {
		return nil, err
	}
	var out []voxel.Material
	for i := 0; i < len(raw); {
		m, n := binary.Uvarint(raw[i:])
		if n <= 0 {
			return nil, fmt.Errorf("bad varint at %d", i)
		}
		i += n
		run, n := binary.Uvarint(raw[i:])
		if n <= 0 {
			return nil, fmt.Errorf("bad varint at %d", i)
		}
		i += n
		if m >= uint64(voxel.Materials) {
			return nil, fmt.Errorf("material id out of range: %d", m)
		}
		if limit > 0 && uint64(len(out))+run > uint64(limit) {
			return nil, fmt.Errorf("run overflows %d voxels", limit)
		}
		for k := uint64(0); k < run; k++ {
			out = append(out, voxel.Material(m))
		}
	}
	return out, nil
}
