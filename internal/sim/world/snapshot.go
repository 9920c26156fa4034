package world

import (
	"fmt"

	"infinitus.ai/internal/persistence/snapshot"
	"infinitus.ai/internal/sim/world/jobs"
	"infinitus.ai/internal/sim/world/terrain/store"
	"infinitus.ai/internal/sim/world/voxel"
)

// ExportSnapshot captures every fully populated loaded chunk. Frame goroutine only.
func (w *World) ExportSnapshot() snapshot.SnapshotV1 {
	chunks := store.ExportChunks(w.loaded)
	return snapshot.SnapshotV1{
		Header: snapshot.Header{
			Version:   snapshot.Version,
			Frame:     w.Frame(),
			Seed:      w.cfg.Seed,
			ChunkSize: w.arena.Size(),
			Chunks:    len(chunks),
		},
		Observer: [3]float32(w.observerPos),
		Palette:  voxel.Palette(),
		Chunks:   chunks,
	}
}

// ImportChunks restores snapshot chunks as populated, unmeshed chunks. Coordinates
// already loaded are kept as they are. It returns how many chunks were inserted.
func (w *World) ImportChunks(snap snapshot.SnapshotV1) (int, error) {
	if snap.Header.Seed != w.cfg.Seed {
		return 0, fmt.Errorf("snapshot seed %d does not match world seed %d", snap.Header.Seed, w.cfg.Seed)
	}
	if snap.Header.ChunkSize != w.arena.Size() {
		return 0, fmt.Errorf("snapshot chunk size %d does not match world chunk size %d", snap.Header.ChunkSize, w.arena.Size())
	}
	chunks, err := store.ImportChunks(w.arena, snap.Chunks)
	if err != nil {
		return 0, fmt.Errorf("import chunks: %w", err)
	}
	n := 0
	for _, c := range chunks {
		if !c.Populated(0) || !c.Populated(1) || !w.loaded.Insert(c) {
			c.Destroy()
			continue
		}
		k := c.Position()
		w.stage[jobs.Mesh][k] = c
		n++
	}
	w.printf("imported %d/%d chunks from frame %d", n, len(snap.Chunks), snap.Header.Frame)
	return n, nil
}
