package world

import (
	"math"
	"sort"

	"github.com/go-gl/mathgl/mgl32"

	"infinitus.ai/internal/sim/tuning"
	"infinitus.ai/internal/sim/world/chunk"
	"infinitus.ai/internal/sim/world/jobs"
	"infinitus.ai/internal/sim/world/logic/mathx"
)

// WorldPosToChunkPos floor-divides each axis by the chunk size.
func (w *World) WorldPosToChunkPos(p mgl32.Vec3) mathx.Vec3i {
	s := float64(w.arena.Size())
	return mathx.Vec3i{
		X: int(math.Floor(float64(p[0]) / s)),
		Y: int(math.Floor(float64(p[1]) / s)),
		Z: int(math.Floor(float64(p[2]) / s)),
	}
}

func within(k, center mathx.Vec3i, r tuning.Radius) bool {
	d := k.Sub(center).Abs()
	return d.X <= r.Horizontal && d.Z <= r.Horizontal && d.Y <= r.Vertical
}

func (w *World) IsChunkInRenderDistance(k, observer mathx.Vec3i) bool {
	return within(k, observer, w.cfg.Tuning.RenderDistance)
}

func (w *World) IsChunkInLoadDistance(k, observer mathx.Vec3i) bool {
	return within(k, observer, w.cfg.Tuning.LoadDistance)
}

func (w *World) GetChunkAt(k mathx.Vec3i) (*chunk.Chunk, bool) { return w.loaded.Get(k) }
func (w *World) IsChunkLoaded(k mathx.Vec3i) bool              { return w.loaded.Has(k) }

// LoadedKeys returns loaded coordinates in x, y, z order.
func (w *World) LoadedKeys() []mathx.Vec3i { return w.loaded.Keys() }

// UpdateChunksAroundPlayer polls the observer, refreshes the pending sets when
// the observer chunk changed, then drains the per-frame load and unload quotas.
func (w *World) UpdateChunksAroundPlayer() {
	w.observerPos = w.cfg.Observer.ObserverPosition()
	cur := w.WorldPosToChunkPos(w.observerPos)
	w.observerChunk = cur

	if !w.observerKnown || cur != w.prevObserverChunk {
		w.observerKnown = true
		ld := w.cfg.Tuning.LoadDistance
		for x := cur.X - ld.Horizontal; x <= cur.X+ld.Horizontal; x++ {
			for y := cur.Y - ld.Vertical; y <= cur.Y+ld.Vertical; y++ {
				for z := cur.Z - ld.Horizontal; z <= cur.Z+ld.Horizontal; z++ {
					k := mathx.Vec3i{X: x, Y: y, Z: z}
					if !w.loaded.Has(k) {
						w.pendingLoad.Add(k)
					}
				}
			}
		}
		w.pendingLoad.Retain(func(k mathx.Vec3i) bool { return w.IsChunkInLoadDistance(k, cur) })
		w.pendingLoad.SortByDistance(cur)

		var far []mathx.Vec3i
		w.loaded.Range(func(k mathx.Vec3i, _ *chunk.Chunk) bool {
			if !w.IsChunkInLoadDistance(k, cur) {
				far = append(far, k)
			}
			return true
		})
		for _, k := range far {
			w.pendingUnload.Add(k)
		}
		w.pendingUnload.Retain(func(k mathx.Vec3i) bool { return !w.IsChunkInLoadDistance(k, cur) })
		w.prevObserverChunk = cur
	}

	for i := 0; i < w.cfg.Tuning.LoadsPerFrame; i++ {
		k, ok := w.pendingLoad.Pop()
		if !ok {
			break
		}
		w.LoadChunk(k)
	}
	for i := 0; i < w.cfg.Tuning.UnloadsPerFrame; i++ {
		k, ok := w.pendingUnload.Pop()
		if !ok {
			break
		}
		w.UnloadChunk(k)
	}
}

// LoadChunk inserts an empty chunk at k. It is a no-op when k is already loaded.
func (w *World) LoadChunk(k mathx.Vec3i) bool {
	c, created := w.loaded.LoadOrCreate(k, func() *chunk.Chunk { return w.arena.New(k) })
	if created {
		w.stage[jobs.Pass1][k] = c
	}
	return created
}

// UnloadChunk releases the render groups of k, queues the chunk for deletion
// and removes it from the map. It is a no-op when k is not loaded.
func (w *World) UnloadChunk(k mathx.Vec3i) bool {
	_, ok := w.loaded.Remove(k, func(c *chunk.Chunk) {
		w.renderMu.Lock()
		w.cfg.Renderer.RemoveChunk(c)
		w.renderMu.Unlock()

		w.deletionMu.Lock()
		c.SetBeingDeleted(true)
		w.deletion = append(w.deletion, deletionEntry{chunk: c})
		w.deletionMu.Unlock()
	})
	if !ok {
		return false
	}
	for i := range w.stage {
		delete(w.stage[i], k)
	}
	w.frameStats.editsDropped += w.edits.dropParked(k)
	return true
}

// advanceDeletion ages queued chunks and destroys those past the delay that no
// job owns, dropping them from the render-add queue first.
func (w *World) advanceDeletion() {
	w.deletionMu.Lock()
	defer w.deletionMu.Unlock()
	if len(w.deletion) == 0 {
		return
	}
	w.renderMu.Lock()
	defer w.renderMu.Unlock()

	threshold := w.cfg.Tuning.DeletionFrames
	kept := w.deletion[:0]
	for _, d := range w.deletion {
		if d.frames > threshold {
			if !d.chunk.BeingCreated() {
				w.purgeRenderAdd(d.chunk)
				d.chunk.Destroy()
				w.frameStats.destroyed++
				continue
			}
		} else {
			d.frames++
		}
		kept = append(kept, d)
	}
	clear(w.deletion[len(kept):])
	w.deletion = kept
}

// coordQueue is an ordered set of chunk coordinates. Frame goroutine only.
type coordQueue struct {
	set   map[mathx.Vec3i]struct{}
	order []mathx.Vec3i
}

func (q *coordQueue) init() { q.set = map[mathx.Vec3i]struct{}{} }

func (q *coordQueue) Len() int { return len(q.set) }

func (q *coordQueue) Has(k mathx.Vec3i) bool {
	_, ok := q.set[k]
	return ok
}

func (q *coordQueue) Add(k mathx.Vec3i) bool {
	if _, ok := q.set[k]; ok {
		return false
	}
	q.set[k] = struct{}{}
	q.order = append(q.order, k)
	return true
}

func (q *coordQueue) Pop() (mathx.Vec3i, bool) {
	if len(q.order) == 0 {
		return mathx.Vec3i{}, false
	}
	k := q.order[0]
	q.order = q.order[1:]
	delete(q.set, k)
	return k, true
}

func (q *coordQueue) Retain(keep func(k mathx.Vec3i) bool) {
	out := q.order[:0]
	for _, k := range q.order {
		if keep(k) {
			out = append(out, k)
		} else {
			delete(q.set, k)
		}
	}
	q.order = out
}

// SortByDistance orders the queue nearest first around c.
func (q *coordQueue) SortByDistance(c mathx.Vec3i) {
	dist := func(k mathx.Vec3i) int {
		d := k.Sub(c)
		return d.X*d.X + d.Y*d.Y + d.Z*d.Z
	}
	sort.SliceStable(q.order, func(i, j int) bool { return dist(q.order[i]) < dist(q.order[j]) })
}
