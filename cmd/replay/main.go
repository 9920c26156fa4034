package main

import (
	"bufio"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/klauspost/compress/zstd"

	"infinitus.ai/internal/persistence/snapshot"
	"infinitus.ai/internal/sim/world"
	"infinitus.ai/internal/sim/world/chunk"
	"infinitus.ai/internal/sim/world/logic/mathx"
)

func main() {
	var (
		snapPath  = flag.String("snapshot", "", "path to .snap.zst")
		framesDir = flag.String("frames", "", "dir containing frames-*.jsonl.zst (optional)")
		fromFrame = flag.Uint64("from_frame", 0, "first frame to summarise (inclusive, optional)")
		toFrame   = flag.Uint64("to_frame", 0, "last frame to summarise (inclusive, optional)")
	)
	flag.Parse()

	if *snapPath == "" && *framesDir == "" {
		fmt.Fprintln(os.Stderr, "missing -snapshot or -frames")
		os.Exit(2)
	}

	if *snapPath != "" {
		snap, err := snapshot.ReadSnapshot(*snapPath)
		if err != nil {
			fmt.Fprintln(os.Stderr, "read snapshot:", err)
			os.Exit(1)
		}
		fmt.Printf("snapshot v%d frame=%d seed=%d chunk_size=%d chunks=%d observer=%v\n",
			snap.Header.Version, snap.Header.Frame, snap.Header.Seed, snap.Header.ChunkSize, len(snap.Chunks), snap.Observer)
		rep, err := verifySnapshot(snap)
		if err != nil {
			fmt.Fprintln(os.Stderr, "verify snapshot:", err)
			os.Exit(1)
		}
		fmt.Printf("digests ok: chunks=%d empty=%d materials=%v\n", rep.Chunks, rep.Empty, rep.Histogram(snap.Palette))
	}

	if *framesDir == "" {
		return
	}
	files, err := listFrameFiles(*framesDir)
	if err != nil {
		fmt.Fprintln(os.Stderr, "list frames:", err)
		os.Exit(1)
	}
	if len(files) == 0 {
		fmt.Fprintln(os.Stderr, "no frame files found in", *framesDir)
		os.Exit(1)
	}
	var sum frameSummary
	for _, path := range files {
		if err := sum.addFile(path, *fromFrame, *toFrame); err != nil {
			fmt.Fprintln(os.Stderr, "replay:", err)
			os.Exit(1)
		}
	}
	fmt.Println(sum.String())
}

type snapshotReport struct {
	Chunks    int
	Empty     int
	Materials map[byte]int
}

func (r snapshotReport) Histogram(palette []string) map[string]int {
	out := make(map[string]int, len(r.Materials))
	for m, n := range r.Materials {
		name := fmt.Sprintf("#%d", m)
		if int(m) < len(palette) {
			name = palette[m]
		}
		out[name] = n
	}
	return out
}

// verifySnapshot reloads every chunk and checks its stored digest.
func verifySnapshot(snap snapshot.SnapshotV1) (snapshotReport, error) {
	rep := snapshotReport{Materials: map[byte]int{}}
	arena, err := chunk.NewArena(snap.Header.ChunkSize)
	if err != nil {
		return rep, err
	}
	for _, cv := range snap.Chunks {
		c := arena.New(mathx.Vec3i{X: cv.CX, Y: cv.CY, Z: cv.CZ})
		if len(cv.Materials) != 0 && !c.LoadBytes(cv.Materials) {
			c.Destroy()
			return rep, fmt.Errorf("chunk (%d,%d,%d): %d material bytes for size %d", cv.CX, cv.CY, cv.CZ, len(cv.Materials), cv.Size)
		}
		got := c.Digest()
		if c.IsEmpty() {
			rep.Empty++
		}
		c.Destroy()
		if got != cv.Digest {
			return rep, fmt.Errorf("chunk (%d,%d,%d): digest %016x want %016x", cv.CX, cv.CY, cv.CZ, got, cv.Digest)
		}
		for _, b := range cv.Materials {
			rep.Materials[b]++
		}
		rep.Chunks++
	}
	return rep, nil
}

func listFrameFiles(dir string) ([]string, error) {
	ents, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}
	names := make([]string, 0, len(ents))
	for _, e := range ents {
		if e.IsDir() {
			continue
		}
		name := e.Name()
		if strings.HasPrefix(name, "frames-") && strings.HasSuffix(name, ".jsonl.zst") {
			names = append(names, name)
		}
	}
	sort.Strings(names)
	out := make([]string, 0, len(names))
	for _, name := range names {
		out = append(out, filepath.Join(dir, name))
	}
	return out, nil
}

type frameSummary struct {
	Frames     int
	First      uint64
	Last       uint64
	MaxLoaded  int
	MaxBusy    int
	Dispatched [3]int
	Completed  [3]int
	Destroyed  int
	Merged     int
	Dropped    int
	Gaps       int
}

func (s *frameSummary) addFile(path string, from, to uint64) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	dec, err := zstd.NewReader(f)
	if err != nil {
		return err
	}
	defer dec.Close()
	if err := s.add(dec, from, to); err != nil {
		return fmt.Errorf("%s: %w", filepath.Base(path), err)
	}
	return nil
}

func (s *frameSummary) add(r io.Reader, from, to uint64) error {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 64*1024), 8*1024*1024)
	for sc.Scan() {
		var e world.FrameLogEntry
		if err := json.Unmarshal(sc.Bytes(), &e); err != nil {
			return fmt.Errorf("unmarshal: %w", err)
		}
		if e.Frame < from || (to != 0 && e.Frame > to) {
			continue
		}
		if s.Frames == 0 {
			s.First = e.Frame
		} else if e.Frame != s.Last+1 {
			s.Gaps++
		}
		s.Frames++
		s.Last = e.Frame
		s.MaxLoaded = max(s.MaxLoaded, e.Loaded)
		s.MaxBusy = max(s.MaxBusy, e.Busy)
		for i := range s.Dispatched {
			s.Dispatched[i] += e.Dispatched[i]
			s.Completed[i] += e.Completed[i]
		}
		s.Destroyed += e.Destroyed
		s.Merged += e.EditsMerged
		s.Dropped += e.EditsDropped
	}
	return sc.Err()
}

func (s frameSummary) String() string {
	return fmt.Sprintf("frames=%d range=[%d,%d] gaps=%d max_loaded=%d max_busy=%d dispatched=%v completed=%v destroyed=%d edits_merged=%d edits_dropped=%d",
		s.Frames, s.First, s.Last, s.Gaps, s.MaxLoaded, s.MaxBusy, s.Dispatched, s.Completed, s.Destroyed, s.Merged, s.Dropped)
}
