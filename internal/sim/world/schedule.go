package world

import (
	"fmt"
	"math"
	"time"

	"infinitus.ai/internal/sim/world/chunk"
	"infinitus.ai/internal/sim/world/cull"
	"infinitus.ai/internal/sim/world/jobs"
	"infinitus.ai/internal/sim/world/logic/mathx"
)

// Update runs one frame: job completions and deferred edits, streaming,
// deletion, render-add, then pass-1, pass-2 and mesh scheduling in that order.
func (w *World) Update() {
	if w.closed {
		return
	}
	w.frame.Add(1)
	w.frameStats = frameCounters{}

	w.pool.Drain(w.handleResult)
	w.mergeEdits()

	w.UpdateChunksAroundPlayer()
	w.advanceDeletion()
	w.drainRenderAdd()
	w.schedule()

	st := w.Stats()
	w.published.Store(&st)
	w.logFrame(st)
	w.maybeSnapshot()
}

func (w *World) schedule() {
	pass1 := w.dispatchStage(jobs.Pass1)
	pass2 := false
	if !pass1 {
		pass2 = w.dispatchStage(jobs.Pass2)
	}
	w.populated = !pass1 && !pass2

	unmeshed := false
	if w.populated {
		unmeshed = w.dispatchStage(jobs.Mesh)
	}
	w.meshed = w.populated && !unmeshed
}

// dispatchStage launches jobs for eligible chunks until none is left or no slot
// is idle. It reports whether an eligible chunk was left waiting.
func (w *World) dispatchStage(stage jobs.Stage) bool {
	for {
		c := w.candidate(stage)
		if c == nil {
			return false
		}
		slot := w.pool.IdleSlot()
		if slot < 0 {
			return true
		}
		c.SetBeingCreated(true)
		if err := w.pool.Dispatch(slot, jobs.Job{Stage: stage, Chunk: c, Run: w.job(stage, c)}); err != nil {
			c.SetBeingCreated(false)
			w.printf("dispatch %s %+v: %v", stage, c.Position(), err)
			return true
		}
		w.frameStats.dispatched[stage]++
	}
}

func eligible(stage jobs.Stage, c *chunk.Chunk) bool {
	if c.BeingCreated() || c.BeingDeleted() {
		return false
	}
	switch stage {
	case jobs.Pass1:
		return !c.Populated(0)
	case jobs.Pass2:
		return c.Populated(0) && !c.Populated(1)
	case jobs.Mesh:
		return c.Populated(0) && c.Populated(1) && !c.Meshed()
	}
	return false
}

// candidate picks any eligible chunk in render distance for the population
// passes, and the one nearest the observer for meshing.
//
// A job may finish between Drain and schedule, leaving its chunk in an earlier
// stage set until the next frame, so the earlier sets are scanned as well.
func (w *World) candidate(stage jobs.Stage) *chunk.Chunk {
	var best *chunk.Chunk
	bestDist := float32(math.MaxFloat32)
	for s := jobs.Pass1; s <= stage; s++ {
		for k, c := range w.stage[s] {
			if !w.IsChunkInRenderDistance(k, w.observerChunk) || !eligible(stage, c) {
				continue
			}
			if stage != jobs.Mesh {
				return c
			}
			center := c.Center()
			d := w.observerPos.Sub([3]float32{float32(center.X), float32(center.Y), float32(center.Z)}).Len()
			if d < bestDist {
				bestDist = d
				best = c
			}
		}
	}
	return best
}

func (w *World) job(stage jobs.Stage, c *chunk.Chunk) func() {
	switch stage {
	case jobs.Pass1:
		return func() {
			w.gen.Pass1(c)
			c.SetPopulated(0, true)
			c.SetBeingCreated(false)
		}
	case jobs.Pass2:
		return func() {
			w.gen.Pass2(c, w)
			c.SetPopulated(1, true)
			c.SetBeingCreated(false)
		}
	default:
		return func() {
			cull.Chunk(c, w.loaded)
			c.CreateMesh()
			w.enqueueRenderAdd(c)
			c.SetMeshed(true)
			c.SetBeingCreated(false)
		}
	}
}

// handleResult moves a finished chunk to its next stage set. Chunks unloaded
// while their job ran are ignored.
func (w *World) handleResult(r jobs.Result) {
	w.frameStats.completed[r.Stage]++
	c := r.Chunk
	if c == nil || c.Destroyed() || c.BeingDeleted() {
		return
	}
	k := c.Position()
	if cur, ok := w.loaded.Get(k); !ok || cur != c {
		return
	}
	switch r.Stage {
	case jobs.Pass1:
		delete(w.stage[jobs.Pass1], k)
		if !c.Populated(1) {
			w.stage[jobs.Pass2][k] = c
		}
	case jobs.Pass2:
		delete(w.stage[jobs.Pass1], k)
		delete(w.stage[jobs.Pass2], k)
		w.stage[jobs.Mesh][k] = c
		w.edits.unpark(k)
	case jobs.Mesh:
		if c.Meshed() {
			for i := range w.stage {
				delete(w.stage[i], k)
			}
		}
	}
	if w.cfg.StageIndex != nil {
		w.cfg.StageIndex.RecordStage(StageRecord{
			Frame:    w.Frame(),
			Chunk:    [3]int{k.X, k.Y, k.Z},
			Stage:    r.Stage.String(),
			Duration: r.Duration,
			Digest:   c.Digest(),
		})
	}
}

// WarmUp loads the whole load neighbourhood at once and runs frames until the
// render neighbourhood is populated and no job is running.
func (w *World) WarmUp(maxFrames int) (int, error) {
	pos := w.cfg.Observer.ObserverPosition()
	cur := w.WorldPosToChunkPos(pos)
	ld := w.cfg.Tuning.LoadDistance
	for x := cur.X - ld.Horizontal; x <= cur.X+ld.Horizontal; x++ {
		for y := cur.Y - ld.Vertical; y <= cur.Y+ld.Vertical; y++ {
			for z := cur.Z - ld.Horizontal; z <= cur.Z+ld.Horizontal; z++ {
				w.LoadChunk(mathx.Vec3i{X: x, Y: y, Z: z})
			}
		}
	}
	w.observerPos = pos
	w.observerChunk = cur
	w.prevObserverChunk = cur
	w.observerKnown = true

	start := time.Now()
	for i := 1; i <= maxFrames; i++ {
		w.Update()
		if w.populated && w.pool.Busy() == 0 {
			w.printf("warm up: populated after %d frames (%s) loaded=%d", i, time.Since(start).Round(time.Millisecond), w.loaded.Len())
			return i, nil
		}
		w.pool.WaitOne(w.handleResult)
	}
	return maxFrames, fmt.Errorf("world not populated after %d frames", maxFrames)
}

func (w *World) logFrame(st Stats) {
	if w.cfg.FrameLogger == nil {
		return
	}
	e := FrameLogEntry{
		Frame:         st.Frame,
		ObserverChunk: [3]int{st.ObserverChunk.X, st.ObserverChunk.Y, st.ObserverChunk.Z},
		Loaded:        st.Loaded,
		PendingLoad:   st.PendingLoad,
		PendingUnload: st.PendingUnload,
		Deletion:      st.Deletion,
		RenderAdd:     st.RenderAdd,
		Busy:          st.Busy,
		Dispatched:    w.frameStats.dispatched,
		Completed:     w.frameStats.completed,
		Destroyed:     w.frameStats.destroyed,
		EditsMerged:   w.frameStats.editsMerged,
		EditsDropped:  w.frameStats.editsDropped,
		Populated:     st.Populated,
		Meshed:        st.Meshed,
		Time:          time.Now().UTC(),
	}
	if err := w.cfg.FrameLogger.WriteFrame(e); err != nil {
		w.printf("frame log: %v", err)
	}
}

func (w *World) maybeSnapshot() {
	every := w.cfg.Tuning.SnapshotEveryFrames
	if w.cfg.SnapshotSink == nil || every <= 0 || w.Frame()%uint64(every) != 0 {
		return
	}
	snap := w.ExportSnapshot()
	select {
	case w.cfg.SnapshotSink <- snap:
	default:
		w.printf("snapshot dropped frame=%d reason=sink_full", snap.Header.Frame)
	}
}
