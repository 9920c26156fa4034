package snapshot

import (
	"path/filepath"
	"testing"
)

func TestWriteReadSnapshotRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "snap", "frame-42.snap.zst")
	in := SnapshotV1{
		Header:   Header{Frame: 42, Seed: 1337, ChunkSize: 4},
		Observer: [3]float32{1, 2, 3},
		Palette:  []string{"AIR", "STONE"},
		Chunks: []ChunkV1{
			{CX: 1, CY: -1, CZ: 0, Size: 4, Populated: [2]bool{true, true}, Digest: 99, Materials: make([]byte, 64)},
			{CX: 0, CY: 0, CZ: 0, Size: 4, Populated: [2]bool{true, false}},
		},
	}
	in.Chunks[0].Materials[5] = 1
	if err := WriteSnapshot(path, in); err != nil {
		t.Fatalf("write: %v", err)
	}

	h, err := ReadHeader(path)
	if err != nil {
		t.Fatalf("header: %v", err)
	}
	if h.Version != Version || h.Frame != 42 || h.Chunks != 2 {
		t.Fatalf("header=%+v", h)
	}

	out, err := ReadSnapshot(path)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if len(out.Chunks) != 2 || out.Chunks[0].Materials[5] != 1 || out.Chunks[0].CY != -1 {
		t.Fatalf("chunks=%+v", out.Chunks)
	}
	if out.Chunks[1].Populated != [2]bool{true, false} || len(out.Chunks[1].Materials) != 0 {
		t.Fatalf("second chunk=%+v", out.Chunks[1])
	}
	if out.Observer != in.Observer || out.Header.Seed != 1337 {
		t.Fatalf("observer=%v seed=%d", out.Observer, out.Header.Seed)
	}
}

func TestReadSnapshotMissingFile(t *testing.T) {
	if _, err := ReadSnapshot(filepath.Join(t.TempDir(), "nope")); err == nil {
		t.Fatalf("expected error")
	}
}
