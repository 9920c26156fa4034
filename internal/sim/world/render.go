package world

import (
	"sync"

	"infinitus.ai/internal/sim/world/chunk"
)

// NopRenderer discards render groups.
type NopRenderer struct{}

func (NopRenderer) AddChunk(*chunk.Chunk)    {}
func (NopRenderer) RemoveChunk(*chunk.Chunk) {}

// RenderLock returns the lock held around every Renderer call. Code outside
// the frame loop that touches render groups takes it first.
func (w *World) RenderLock() sync.Locker { return &w.renderMu }

func (w *World) enqueueRenderAdd(c *chunk.Chunk) {
	w.addMu.Lock()
	w.renderAdd = append(w.renderAdd, c)
	w.addMu.Unlock()
}

// purgeRenderAdd drops every queued reference to c. Caller holds the render lock.
func (w *World) purgeRenderAdd(c *chunk.Chunk) {
	w.addMu.Lock()
	defer w.addMu.Unlock()
	out := w.renderAdd[:0]
	for _, q := range w.renderAdd {
		if q != c {
			out = append(out, q)
		}
	}
	clear(w.renderAdd[len(out):])
	w.renderAdd = out
}

// drainRenderAdd hands up to the per-frame quota of meshed chunks to the renderer.
func (w *World) drainRenderAdd() int {
	w.renderMu.Lock()
	defer w.renderMu.Unlock()
	n := 0
	for i := 0; i < w.cfg.Tuning.RenderAddRate; i++ {
		w.addMu.Lock()
		if len(w.renderAdd) == 0 {
			w.addMu.Unlock()
			break
		}
		c := w.renderAdd[0]
		w.renderAdd[0] = nil
		w.renderAdd = w.renderAdd[1:]
		w.addMu.Unlock()

		if c.BeingDeleted() || c.Destroyed() {
			continue
		}
		w.cfg.Renderer.AddChunk(c)
		n++
	}
	return n
}
