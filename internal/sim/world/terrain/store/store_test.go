package store

import (
	"testing"

	"infinitus.ai/internal/sim/world/chunk"
	"infinitus.ai/internal/sim/world/logic/mathx"
	"infinitus.ai/internal/sim/world/voxel"
)

func TestMapInsertIsUniquePerCoordinate(t *testing.T) {
	a, _ := chunk.NewArena(4)
	m := NewMap()
	k := mathx.Vec3i{X: 2, Y: -1}
	if !m.Insert(a.New(k)) {
		t.Fatalf("first insert failed")
	}
	if m.Insert(a.New(k)) {
		t.Fatalf("second insert should be rejected")
	}
	created := 0
	c, fresh := m.LoadOrCreate(k, func() *chunk.Chunk { created++; return a.New(k) })
	if fresh || created != 0 || c.Position() != k {
		t.Fatalf("LoadOrCreate on existing: fresh=%v created=%d", fresh, created)
	}
	if m.Len() != 1 {
		t.Fatalf("len=%d", m.Len())
	}
}

func TestMapKeysSortedAndRemove(t *testing.T) {
	a, _ := chunk.NewArena(4)
	m := NewMap()
	for _, k := range []mathx.Vec3i{{X: 1}, {X: -1, Y: 2}, {X: -1, Y: 0, Z: 5}, {}} {
		m.Insert(a.New(k))
	}
	keys := m.Keys()
	want := []mathx.Vec3i{{X: -1, Z: 5}, {X: -1, Y: 2}, {}, {X: 1}}
	for i := range want {
		if keys[i] != want[i] {
			t.Fatalf("keys=%v", keys)
		}
	}
	var seen bool
	if _, ok := m.Remove(mathx.Vec3i{X: 1}, func(c *chunk.Chunk) { seen = true }); !ok || !seen {
		t.Fatalf("remove failed")
	}
	if _, ok := m.Remove(mathx.Vec3i{X: 1}, nil); ok {
		t.Fatalf("second remove should miss")
	}
	if len(m.Drain()) != 3 || m.Len() != 0 {
		t.Fatalf("drain left %d", m.Len())
	}
}

func TestNeighborMaterialSkipsDeleting(t *testing.T) {
	a, _ := chunk.NewArena(4)
	m := NewMap()
	c := a.New(mathx.Vec3i{X: 1})
	c.SetMaterial(mathx.Vec3i{}, voxel.Stone)
	m.Insert(c)
	if mat, ok := m.MaterialAt(mathx.Vec3i{X: 4}, 4); !ok || mat != voxel.Stone {
		t.Fatalf("MaterialAt=%v,%v", mat, ok)
	}
	c.SetBeingDeleted(true)
	if _, ok := m.NeighborMaterial(mathx.Vec3i{X: 1}, mathx.Vec3i{}); ok {
		t.Fatalf("deleting chunk should read as missing")
	}
	if _, ok := m.NeighborMaterial(mathx.Vec3i{X: 9}, mathx.Vec3i{}); ok {
		t.Fatalf("unloaded chunk should read as missing")
	}
}
