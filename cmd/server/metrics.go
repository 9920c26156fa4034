package main

import (
	"fmt"
	"io"

	"infinitus.ai/internal/sim/world"
	"infinitus.ai/internal/transport/observer"
)

// writeMetrics renders the minimal Prometheus exposition format.
func writeMetrics(out io.Writer, worldID string, m world.Stats, obs *observer.Server) {
	gauge := func(name, help string, v any) {
		fmt.Fprintf(out, "# HELP infinitus_%s %s\n", name, help)
		fmt.Fprintf(out, "# TYPE infinitus_%s gauge\n", name)
		fmt.Fprintf(out, "infinitus_%s{world=%q} %v\n", name, worldID, v)
	}
	gauge("world_frame", "Last finished frame.", m.Frame)
	gauge("world_loaded_chunks", "Loaded chunk count.", m.Loaded)
	gauge("world_busy_workers", "Worker slots with an undrained job.", m.Busy)
	gauge("world_live_chunks", "Chunks allocated from the arena.", m.LiveChunks)

	fmt.Fprintf(out, "# HELP infinitus_world_queue_depth Streaming queue depth.\n")
	fmt.Fprintf(out, "# TYPE infinitus_world_queue_depth gauge\n")
	for _, q := range []struct {
		name string
		n    int
	}{
		{"load", m.PendingLoad},
		{"unload", m.PendingUnload},
		{"deletion", m.Deletion},
		{"render_add", m.RenderAdd},
		{"edits", m.Edits},
	} {
		fmt.Fprintf(out, "infinitus_world_queue_depth{world=%q,queue=%q} %d\n", worldID, q.name, q.n)
	}

	fmt.Fprintf(out, "# HELP infinitus_world_stage_set Chunks waiting for a stage.\n")
	fmt.Fprintf(out, "# TYPE infinitus_world_stage_set gauge\n")
	for i, name := range []string{"pass1", "pass2", "mesh"} {
		fmt.Fprintf(out, "infinitus_world_stage_set{world=%q,stage=%q} %d\n", worldID, name, m.StageSets[i])
	}

	if obs != nil {
		gauge("observer_subscribers", "Connected observer websockets.", obs.Subscribers())
		gauge("observer_groups", "Cached render groups.", obs.Groups())
		fmt.Fprintf(out, "# HELP infinitus_observer_dropped_total Messages dropped for slow subscribers.\n")
		fmt.Fprintf(out, "# TYPE infinitus_observer_dropped_total counter\n")
		fmt.Fprintf(out, "infinitus_observer_dropped_total{world=%q} %d\n", worldID, obs.Dropped())
	}
}
