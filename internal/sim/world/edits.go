package world

import (
	"sync"

	"infinitus.ai/internal/sim/world/jobs"
	"infinitus.ai/internal/sim/world/logic/mathx"
	"infinitus.ai/internal/sim/world/voxel"
)

type edit struct {
	local mathx.Vec3i
	m     voxel.Material
}

// editQueue collects template voxels that generation jobs wrote past their own chunk.
// Edits for chunks that no pass 2 job will reach are parked until one does.
type editQueue struct {
	mu      sync.Mutex
	pending map[mathx.Vec3i][]edit
	parked  map[mathx.Vec3i][]edit
	n       int
}

func (q *editQueue) add(coord mathx.Vec3i, e edit) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.pending == nil {
		q.pending = map[mathx.Vec3i][]edit{}
	}
	q.pending[coord] = append(q.pending[coord], e)
	q.n++
}

func (q *editQueue) take() map[mathx.Vec3i][]edit {
	q.mu.Lock()
	defer q.mu.Unlock()
	p := q.pending
	q.pending = nil
	for _, list := range p {
		q.n -= len(list)
	}
	return p
}

func (q *editQueue) requeue(coord mathx.Vec3i, list []edit) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.pending == nil {
		q.pending = map[mathx.Vec3i][]edit{}
	}
	q.pending[coord] = append(q.pending[coord], list...)
	q.n += len(list)
}

func (q *editQueue) park(coord mathx.Vec3i, list []edit) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.parked == nil {
		q.parked = map[mathx.Vec3i][]edit{}
	}
	q.parked[coord] = append(q.parked[coord], list...)
	q.n += len(list)
}

// unpark moves the parked edits for coord back to pending.
func (q *editQueue) unpark(coord mathx.Vec3i) {
	q.mu.Lock()
	defer q.mu.Unlock()
	list, ok := q.parked[coord]
	if !ok {
		return
	}
	delete(q.parked, coord)
	if q.pending == nil {
		q.pending = map[mathx.Vec3i][]edit{}
	}
	q.pending[coord] = append(q.pending[coord], list...)
}

// dropParked forgets the parked edits for coord and returns how many there were.
func (q *editQueue) dropParked(coord mathx.Vec3i) int {
	q.mu.Lock()
	defer q.mu.Unlock()
	n := len(q.parked[coord])
	delete(q.parked, coord)
	q.n -= n
	return n
}

func (q *editQueue) parkedLen() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	n := 0
	for _, list := range q.parked {
		n += len(list)
	}
	return n
}

func (q *editQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.n
}

// WriteOutside queues a world-space template voxel for the chunk that holds it.
// Safe for concurrent use by jobs.
func (w *World) WriteOutside(p mathx.Vec3i, m voxel.Material) {
	coord, local := mathx.Split(p, w.arena.Size())
	w.edits.add(coord, edit{local: local, m: m})
}

// mergeEdits applies queued voxels to chunks that finished both passes and no
// job owns. Edits for unloaded or deleting chunks are dropped. Edits for chunks
// still generating inside render distance wait; those outside are parked until
// pass 2 completes there. A merged chunk that was meshed is meshed again.
func (w *World) mergeEdits() {
	pending := w.edits.take()
	for coord, list := range pending {
		c, ok := w.loaded.Get(coord)
		if !ok || c.BeingDeleted() {
			w.frameStats.editsDropped += len(list)
			continue
		}
		if !c.Populated(1) && !c.BeingCreated() && !w.IsChunkInRenderDistance(coord, w.observerChunk) {
			w.edits.park(coord, list)
			continue
		}
		if c.BeingCreated() || !c.Populated(1) {
			w.edits.requeue(coord, list)
			continue
		}
		c.Edit(func(buf []voxel.Material) {
			for _, e := range list {
				i := c.Index(e.local)
				if buf[i] == voxel.Air || buf[i] == voxel.Leaves {
					buf[i] = e.m
				}
			}
		})
		w.frameStats.editsMerged += len(list)
		if c.Meshed() {
			c.SetMeshed(false)
			w.stage[jobs.Mesh][coord] = c
		}
	}
}
