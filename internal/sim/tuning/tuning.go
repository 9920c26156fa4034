package tuning

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

type Tuning struct {
	ProtocolVersion string `yaml:"protocol_version"`

	ChunkSize     int `yaml:"chunk_size"`
	Threads       int `yaml:"threads"`
	FrameRateHz   int `yaml:"frame_rate_hz"`
	RenderAddRate int `yaml:"chunks_added_per_frame"`

	RenderDistance Radius `yaml:"render_distance"`
	LoadDistance   Radius `yaml:"load_distance"`

	LoadsPerFrame   int `yaml:"loads_per_frame"`
	UnloadsPerFrame int `yaml:"unloads_per_frame"`
	DeletionFrames  int `yaml:"deletion_frames"`

	SnapshotEveryFrames int `yaml:"snapshot_every_frames"`
}

// Radius is a per-axis chunk distance; vertical may differ from horizontal.
type Radius struct {
	Horizontal int `yaml:"horizontal"`
	Vertical   int `yaml:"vertical"`
}

func Defaults() Tuning {
	return Tuning{
		ProtocolVersion: "0.1",

		ChunkSize:     128,
		Threads:       4,
		FrameRateHz:   60,
		RenderAddRate: 1,

		RenderDistance: Radius{Horizontal: 1, Vertical: 1},
		LoadDistance:   Radius{Horizontal: 8, Vertical: 8},

		LoadsPerFrame:   2,
		UnloadsPerFrame: 5,
		DeletionFrames:  5,

		SnapshotEveryFrames: 3600,
	}
}

// Load overlays the file at path on Defaults and validates the result.
func Load(path string) (Tuning, error) {
	t := Defaults()
	raw, err := os.ReadFile(path)
	if err != nil {
		return t, err
	}
	if err := yaml.Unmarshal(raw, &t); err != nil {
		return t, fmt.Errorf("tuning.yaml: %w", err)
	}
	if err := t.Validate(); err != nil {
		return t, fmt.Errorf("tuning.yaml: %w", err)
	}
	return t, nil
}

func (t Tuning) Validate() error {
	positive := []struct {
		name string
		v    int
	}{
		{"chunk_size", t.ChunkSize},
		{"threads", t.Threads},
		{"frame_rate_hz", t.FrameRateHz},
		{"chunks_added_per_frame", t.RenderAddRate},
		{"loads_per_frame", t.LoadsPerFrame},
		{"unloads_per_frame", t.UnloadsPerFrame},
	}
	for _, p := range positive {
		if p.v <= 0 {
			return fmt.Errorf("%s must be > 0 (got %d)", p.name, p.v)
		}
	}
	if t.ChunkSize > 1024 {
		return fmt.Errorf("chunk_size too large (got %d)", t.ChunkSize)
	}
	if t.DeletionFrames < 0 {
		return fmt.Errorf("deletion_frames must be >= 0 (got %d)", t.DeletionFrames)
	}
	if t.RenderDistance.Horizontal < 0 || t.RenderDistance.Vertical < 0 {
		return fmt.Errorf("render_distance must be >= 0")
	}
	if t.RenderDistance.Horizontal > t.LoadDistance.Horizontal || t.RenderDistance.Vertical > t.LoadDistance.Vertical {
		return fmt.Errorf("render_distance %+v exceeds load_distance %+v", t.RenderDistance, t.LoadDistance)
	}
	return nil
}
