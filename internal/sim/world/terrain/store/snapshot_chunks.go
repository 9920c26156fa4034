package store

import (
	"fmt"

	snapv1 "infinitus.ai/internal/persistence/snapshot"
	"infinitus.ai/internal/sim/world/chunk"
	"infinitus.ai/internal/sim/world/logic/mathx"
)

// ExportChunks converts fully populated chunks into snapshot chunks, in Keys order.
func ExportChunks(m *Map) []snapv1.ChunkV1 {
	keys := m.Keys()
	out := make([]snapv1.ChunkV1, 0, len(keys))
	for _, k := range keys {
		ch, ok := m.Get(k)
		if !ok || ch.BeingDeleted() || !ch.Populated(0) || !ch.Populated(1) {
			continue
		}
		sc := snapv1.ChunkV1{
			CX:        k.X,
			CY:        k.Y,
			CZ:        k.Z,
			Size:      ch.Size(),
			Populated: [2]bool{true, true},
			Digest:    ch.Digest(),
		}
		if !ch.IsEmpty() {
			sc.Materials = ch.Bytes()
		}
		out = append(out, sc)
	}
	return out
}

// ImportChunks rebuilds chunks from snapshot chunks. Imported chunks are
// populated and not meshed.
func ImportChunks(a *chunk.Arena, chunks []snapv1.ChunkV1) ([]*chunk.Chunk, error) {
	size := a.Size()
	out := make([]*chunk.Chunk, 0, len(chunks))
	fail := func(err error) ([]*chunk.Chunk, error) {
		for _, c := range out {
			c.Destroy()
		}
		return nil, err
	}
	for _, sc := range chunks {
		if sc.Size != size {
			return fail(fmt.Errorf("snapshot chunk size mismatch: got %d want %d", sc.Size, size))
		}
		if len(sc.Materials) != 0 && len(sc.Materials) != size*size*size {
			return fail(fmt.Errorf("snapshot chunk materials length mismatch: got %d want %d", len(sc.Materials), size*size*size))
		}
		c := a.New(mathx.Vec3i{X: sc.CX, Y: sc.CY, Z: sc.CZ})
		if len(sc.Materials) != 0 {
			c.LoadBytes(sc.Materials)
		}
		if sc.Digest != 0 && c.Digest() != sc.Digest {
			c.Destroy()
			return fail(fmt.Errorf("snapshot chunk %d,%d,%d digest mismatch", sc.CX, sc.CY, sc.CZ))
		}
		c.SetPopulated(0, sc.Populated[0])
		c.SetPopulated(1, sc.Populated[1])
		out = append(out, c)
	}
	return out, nil
}
