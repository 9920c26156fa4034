package store

import (
	"testing"

	snapv1 "infinitus.ai/internal/persistence/snapshot"
	"infinitus.ai/internal/sim/world/chunk"
	"infinitus.ai/internal/sim/world/logic/mathx"
	"infinitus.ai/internal/sim/world/voxel"
)

func TestExportAndImportChunksRoundTrip(t *testing.T) {
	a, err := chunk.NewArena(4)
	if err != nil {
		t.Fatalf("NewArena: %v", err)
	}
	m := NewMap()
	ch := a.New(mathx.Vec3i{X: 1, Y: 0, Z: -2})
	ch.SetMaterial(mathx.Vec3i{}, voxel.Stone)
	ch.SetMaterial(mathx.Vec3i{X: 1, Y: 1}, voxel.Water)
	ch.SetPopulated(0, true)
	ch.SetPopulated(1, true)
	m.Insert(ch)

	partial := a.New(mathx.Vec3i{})
	partial.SetPopulated(0, true)
	m.Insert(partial)

	exported := ExportChunks(m)
	if len(exported) != 1 {
		t.Fatalf("expected 1 exported chunk, got %d", len(exported))
	}
	if exported[0].Materials[0] != byte(voxel.Stone) || exported[0].CZ != -2 {
		t.Fatalf("unexpected exported chunk: %+v", exported[0])
	}

	imported, err := ImportChunks(a, exported)
	if err != nil {
		t.Fatalf("import failed: %v", err)
	}
	if len(imported) != 1 {
		t.Fatalf("imported=%d", len(imported))
	}
	got := imported[0]
	if got.Position() != ch.Position() || got.Digest() != ch.Digest() {
		t.Fatalf("imported chunk mismatch")
	}
	if !got.Populated(1) || got.Meshed() {
		t.Fatalf("imported flags: populated=%v meshed=%v", got.Populated(1), got.Meshed())
	}
}

func TestImportChunksRejectsInvalidShape(t *testing.T) {
	a, _ := chunk.NewArena(4)
	_, err := ImportChunks(a, []snapv1.ChunkV1{{Size: 8}})
	if err == nil {
		t.Fatalf("expected error for size mismatch")
	}
	_, err = ImportChunks(a, []snapv1.ChunkV1{{Size: 4, Materials: make([]byte, 10)}})
	if err == nil {
		t.Fatalf("expected error for bad materials length")
	}
	if a.Live() != 0 {
		t.Fatalf("failed import leaked %d chunks", a.Live())
	}
}
