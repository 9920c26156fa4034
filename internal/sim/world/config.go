package world

import (
	"errors"
	"log"
	"time"

	"github.com/go-gl/mathgl/mgl32"

	"infinitus.ai/internal/persistence/snapshot"
	"infinitus.ai/internal/sim/tuning"
	"infinitus.ai/internal/sim/world/chunk"
	"infinitus.ai/internal/sim/world/terrain/noise"
)

type Config struct {
	Seed   int64
	Tuning tuning.Tuning

	Noise    noise.Provider
	Observer ObserverProvider

	// Optional collaborators (may be nil).
	Renderer    Renderer
	Logger      *log.Logger
	FrameLogger FrameLogger
	StageIndex  StageIndex

	// Optional snapshot sink. Sends never block the frame.
	SnapshotSink chan<- snapshot.SnapshotV1
}

// ObserverProvider reports the tracked camera position. Polled once per frame.
type ObserverProvider interface {
	ObserverPosition() mgl32.Vec3
}

// Renderer owns render groups built from meshed chunks. Both methods are
// called with the world's render lock held.
type Renderer interface {
	// AddChunk creates (or replaces) the render groups of c.
	AddChunk(c *chunk.Chunk)
	// RemoveChunk releases whatever AddChunk created for c.
	RemoveChunk(c *chunk.Chunk)
}

type FrameLogger interface {
	WriteFrame(entry FrameLogEntry) error
}

// FrameLoggers writes each entry to every logger and joins the errors.
type FrameLoggers []FrameLogger

func (ls FrameLoggers) WriteFrame(entry FrameLogEntry) error {
	var errs []error
	for _, l := range ls {
		if err := l.WriteFrame(entry); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// StageIndex records finished jobs. It must not block.
type StageIndex interface {
	RecordStage(rec StageRecord)
}

type FrameLogEntry struct {
	Frame         uint64    `json:"frame"`
	ObserverChunk [3]int    `json:"observer_chunk"`
	Loaded        int       `json:"loaded"`
	PendingLoad   int       `json:"pending_load"`
	PendingUnload int       `json:"pending_unload"`
	Deletion      int       `json:"deletion"`
	RenderAdd     int       `json:"render_add"`
	Busy          int       `json:"busy"`
	Dispatched    [3]int    `json:"dispatched"`
	Completed     [3]int    `json:"completed"`
	Destroyed     int       `json:"destroyed,omitempty"`
	EditsMerged   int       `json:"edits_merged,omitempty"`
	EditsDropped  int       `json:"edits_dropped,omitempty"`
	Populated     bool      `json:"populated"`
	Meshed        bool      `json:"meshed"`
	Time          time.Time `json:"time"`
}

type StageRecord struct {
	Frame    uint64
	Chunk    [3]int
	Stage    string
	Duration time.Duration
	Digest   uint64
}

func (c *Config) applyDefaults() {
	if c.Noise == nil {
		c.Noise = noise.NewSimplex()
	}
	if c.Observer == nil {
		c.Observer = StaticObserver{}
	}
	if c.Renderer == nil {
		c.Renderer = NopRenderer{}
	}
}
