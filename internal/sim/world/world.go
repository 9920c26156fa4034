// Package world streams chunks around an observer and drives their generation
// and meshing on the job pool.
//
// Update is called from one goroutine (the frame goroutine). The spatial map,
// the render-add queue, the deletion queue and the deferred edits each have
// their own lock. Renderer calls are made with the render lock held.
package world

import (
	"fmt"
	"log"
	"sync"
	"sync/atomic"

	"github.com/go-gl/mathgl/mgl32"

	"infinitus.ai/internal/sim/tuning"
	"infinitus.ai/internal/sim/world/chunk"
	"infinitus.ai/internal/sim/world/jobs"
	"infinitus.ai/internal/sim/world/logic/mathx"
	"infinitus.ai/internal/sim/world/terrain/gen"
	"infinitus.ai/internal/sim/world/terrain/store"
)

type World struct {
	cfg    Config
	logger *log.Logger

	arena  *chunk.Arena
	gen    *gen.Generator
	pool   *jobs.Pool
	loaded *store.Map

	frame atomic.Uint64

	observerPos       mgl32.Vec3
	observerChunk     mathx.Vec3i
	prevObserverChunk mathx.Vec3i
	observerKnown     bool

	pendingLoad   coordQueue
	pendingUnload coordQueue

	deletionMu sync.Mutex
	deletion   []deletionEntry

	renderMu sync.Mutex

	addMu     sync.Mutex
	renderAdd []*chunk.Chunk

	edits editQueue

	// stage[i] holds loaded chunks that may still need jobs of stage i.
	stage [jobs.Stages]map[mathx.Vec3i]*chunk.Chunk

	populated bool
	meshed    bool

	frameStats frameCounters
	closed     bool

	stop     chan struct{}
	stopOnce sync.Once

	// published is the Stats of the last finished frame, for other goroutines.
	published atomic.Pointer[Stats]
}

type deletionEntry struct {
	chunk  *chunk.Chunk
	frames int
}

// frameCounters collects per-frame numbers for the frame log.
type frameCounters struct {
	dispatched   [jobs.Stages]int
	completed    [jobs.Stages]int
	destroyed    int
	editsMerged  int
	editsDropped int
}

func New(cfg Config) (*World, error) {
	if err := cfg.Tuning.Validate(); err != nil {
		return nil, fmt.Errorf("world tuning: %w", err)
	}
	cfg.applyDefaults()

	arena, err := chunk.NewArena(cfg.Tuning.ChunkSize)
	if err != nil {
		return nil, err
	}
	pool, err := jobs.NewPool(cfg.Tuning.Threads, cfg.Logger)
	if err != nil {
		return nil, err
	}
	w := &World{
		cfg:    cfg,
		logger: cfg.Logger,
		arena:  arena,
		gen:    gen.New(cfg.Noise, cfg.Seed),
		pool:   pool,
		loaded: store.NewMap(),
		stop:   make(chan struct{}),
	}
	w.pendingLoad.init()
	w.pendingUnload.init()
	for i := range w.stage {
		w.stage[i] = map[mathx.Vec3i]*chunk.Chunk{}
	}
	return w, nil
}

func (w *World) ChunkSize() int            { return w.arena.Size() }
func (w *World) Seed() int64               { return w.cfg.Seed }
func (w *World) Frame() uint64             { return w.frame.Load() }
func (w *World) Arena() *chunk.Arena       { return w.arena }
func (w *World) Generator() *gen.Generator { return w.gen }
func (w *World) Tuning() tuning.Tuning     { return w.cfg.Tuning }

// ObserverChunk is the chunk coordinate computed on the last update.
func (w *World) ObserverChunk() mathx.Vec3i { return w.observerChunk }

// Populated reports whether the last frame found no pass-1 or pass-2 candidate.
func (w *World) Populated() bool { return w.populated }

// Meshed reports whether the last frame found no chunk left to mesh.
func (w *World) Meshed() bool { return w.meshed }

type Stats struct {
	Frame         uint64
	ObserverChunk mathx.Vec3i
	Loaded        int
	PendingLoad   int
	PendingUnload int
	Deletion      int
	RenderAdd     int
	Busy          int
	Workers       int
	StageSets     [jobs.Stages]int
	Edits         int
	LiveChunks    int
	Populated     bool
	Meshed        bool
}

func (w *World) Stats() Stats {
	st := Stats{
		Frame:         w.Frame(),
		ObserverChunk: w.observerChunk,
		Loaded:        w.loaded.Len(),
		PendingLoad:   w.pendingLoad.Len(),
		PendingUnload: w.pendingUnload.Len(),
		Busy:          w.pool.Busy(),
		Workers:       w.pool.Workers(),
		Edits:         w.edits.Len(),
		LiveChunks:    w.arena.Live(),
		Populated:     w.populated,
		Meshed:        w.meshed,
	}
	w.deletionMu.Lock()
	st.Deletion = len(w.deletion)
	w.deletionMu.Unlock()
	w.addMu.Lock()
	st.RenderAdd = len(w.renderAdd)
	w.addMu.Unlock()
	for i := range w.stage {
		st.StageSets[i] = len(w.stage[i])
	}
	return st
}

// Metrics returns the Stats published at the end of the last frame. Safe from any goroutine.
func (w *World) Metrics() Stats {
	if st := w.published.Load(); st != nil {
		return *st
	}
	return Stats{}
}

// Close waits for running jobs, then releases render groups and destroys every chunk.
func (w *World) Close() {
	if w.closed {
		return
	}
	w.closed = true
	w.pool.Close(w.handleResult)

	// the map lock is released before the render lock is taken
	drained := w.loaded.Drain()
	w.renderMu.Lock()
	defer w.renderMu.Unlock()
	for _, c := range drained {
		w.cfg.Renderer.RemoveChunk(c)
		c.Destroy()
	}
	w.deletionMu.Lock()
	for _, d := range w.deletion {
		d.chunk.Destroy()
	}
	w.deletion = nil
	w.deletionMu.Unlock()
	w.addMu.Lock()
	w.renderAdd = nil
	w.addMu.Unlock()
	for i := range w.stage {
		clear(w.stage[i])
	}
	w.printf("closed after %d frames", w.Frame())
}

func (w *World) printf(format string, args ...any) {
	if w.logger != nil {
		w.logger.Printf(format, args...)
	}
}
