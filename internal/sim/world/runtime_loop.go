package world

import (
	"context"
	"encoding/binary"
	"time"

	"github.com/cespare/xxhash/v2"

	"infinitus.ai/internal/sim/world/logic/rates"
)

// At most slowLogMax slow-frame lines per slowLogWindow frames.
const (
	slowLogWindow = 600
	slowLogMax    = 5
)

// Run calls Update at the tuned frame rate until ctx is done, Stop is called,
// or maxFrames frames ran (maxFrames <= 0 means no limit).
func (w *World) Run(ctx context.Context, maxFrames int) error {
	interval := time.Second / time.Duration(w.cfg.Tuning.FrameRateHz)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	var slow rates.Window
	ran := 0
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-w.stop:
			return nil
		case <-ticker.C:
			start := time.Now()
			w.Update()
			ran++
			if d := time.Since(start); d > interval {
				if ok, _ := slow.Allow(w.Frame(), slowLogWindow, slowLogMax); ok {
					w.printf("frame %d took %s (budget %s, %d slow frames not logged)",
						w.Frame(), d.Round(time.Microsecond), interval, slow.TakeSuppressed())
				}
			}
			if maxFrames > 0 && ran >= maxFrames {
				return nil
			}
		}
	}
}

func (w *World) Stop() { w.stopOnce.Do(func() { close(w.stop) }) }

// StepOnce runs a single frame and returns its number with the state digest.
func (w *World) StepOnce() (frame uint64, digest uint64) {
	w.Update()
	return w.Frame(), w.StateDigest()
}

// StateDigest hashes the coordinates and material digests of every fully
// populated loaded chunk, in key order.
func (w *World) StateDigest() uint64 {
	d := xxhash.New()
	var b [8]byte
	put := func(v uint64) {
		binary.LittleEndian.PutUint64(b[:], v)
		_, _ = d.Write(b[:])
	}
	for _, k := range w.loaded.Keys() {
		c, ok := w.loaded.Get(k)
		if !ok || !c.Populated(0) || !c.Populated(1) {
			continue
		}
		put(uint64(int64(k.X)))
		put(uint64(int64(k.Y)))
		put(uint64(int64(k.Z)))
		put(c.Digest())
	}
	return d.Sum64()
}
