package encoding

import (
	"testing"

	"infinitus.ai/internal/sim/world/voxel"
)

func TestRLE_RoundTrip(t *testing.T) {
	in := make([]voxel.Material, 0, 200)
	in = append(in, voxel.Stone, voxel.Stone, voxel.Stone, voxel.Dirt, voxel.Dirt, voxel.Grass)
	for i := 0; i < 50; i++ {
		in = append(in, voxel.Air)
	}
	in = append(in, voxel.Water, voxel.Leaves, voxel.Leaves, voxel.Leaves)

	enc := EncodeRLE(in)
	out, err := DecodeRLE(enc, 0)
	if err != nil {
		t.Fatalf("DecodeRLE: %v", err)
	}
	if len(out) != len(in) {
		t.Fatalf("len mismatch: got %d want %d", len(out), len(in))
	}
	for i := range in {
		if out[i] != in[i] {
			t.Fatalf("mismatch at %d: got %d want %d", i, out[i], in[i])
		}
	}

	b := make([]byte, len(in))
	for i, m := range in {
		b[i] = byte(m)
	}
	if EncodeBytesRLE(b) != enc {
		t.Fatalf("byte and material encodings differ")
	}
}

func TestRLE_Limits(t *testing.T) {
	enc := EncodeRLE(make([]voxel.Material, 4096))
	if _, err := DecodeRLE(enc, 4095); err == nil {
		t.Fatalf("expected overflow error")
	}
	if out, err := DecodeRLE(enc, 4096); err != nil || len(out) != 4096 {
		t.Fatalf("len=%d err=%v", len(out), err)
	}
	// material 200 with run 1
	if _, err := DecodeRLE("yAEB", 0); err == nil {
		t.Fatalf("expected material range error")
	}
	if _, err := DecodeRLE("!!", 0); err == nil {
		t.Fatalf("expected base64 error")
	}
}
