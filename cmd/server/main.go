package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"net"
	"net/http"
	"net/http/pprof"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/go-gl/mathgl/mgl32"

	persistlog "infinitus.ai/internal/persistence/log"
	"infinitus.ai/internal/persistence/snapshot"
	"infinitus.ai/internal/sim/tuning"
	"infinitus.ai/internal/sim/world"
	"infinitus.ai/internal/transport/observer"
)

func main() {
	var (
		addr       = flag.String("addr", ":8080", "http listen address")
		worldID    = flag.String("world", "world_1", "world id (index and ingest records)")
		seed       = flag.Int64("seed", 0, "world seed (0 derives one from the clock; ignored when resuming)")
		dataDir    = flag.String("data", "./data", "runtime data directory")
		tuningPath = flag.String("tuning", "./configs/tuning.yaml", "path to tuning.yaml")
		disableDB  = flag.Bool("disable_db", false, "disable the chunk stage index")
		frameLog   = flag.Bool("frame_log", true, "write one compressed JSONL entry per frame")
		frames     = flag.Int("frames", 0, "stop after this many frames (0 runs until signalled)")
		warmup     = flag.Int("warmup_frames", 100000, "frame cap for the initial population")

		snapPath   = flag.String("snapshot", "", "path to snapshot to load (optional)")
		loadLatest = flag.Bool("load_latest_snapshot", true, "load latest snapshot from data dir if present (when -snapshot is empty)")

		start   = flag.String("start", "0,0,0", "observer start position x,y,z")
		heading = flag.String("heading", "0.5,0,0", "observer movement per frame x,y,z")
		orbit   = flag.Float64("orbit", 0, "circle around -start with this radius (0 flies straight)")
	)
	flag.Parse()

	logger := log.New(os.Stdout, "[server] ", log.LstdFlags|log.Lmicroseconds)

	tune, err := tuning.Load(*tuningPath)
	if err != nil {
		if !os.IsNotExist(err) {
			logger.Fatalf("load tuning: %v", err)
		}
		logger.Printf("tuning not found (%s); using defaults", *tuningPath)
		tune = tuning.Defaults()
	}

	startPos, err := parseVec3(*start)
	if err != nil {
		logger.Fatalf("-start: %v", err)
	}
	step, err := parseVec3(*heading)
	if err != nil {
		logger.Fatalf("-heading: %v", err)
	}

	snapshotToLoad := strings.TrimSpace(*snapPath)
	if snapshotToLoad == "" && *loadLatest {
		snapshotToLoad = latestSnapshot(*dataDir)
	}
	var resume *snapshot.SnapshotV1
	if snapshotToLoad != "" {
		snap, err := snapshot.ReadSnapshot(snapshotToLoad)
		if err != nil {
			logger.Fatalf("read snapshot: %v", err)
		}
		if *seed != 0 && snap.Header.Seed != *seed {
			logger.Fatalf("snapshot seed mismatch: flag=%d snap=%d", *seed, snap.Header.Seed)
		}
		*seed = snap.Header.Seed
		startPos = mgl32.Vec3(snap.Observer)
		resume = &snap
	}
	if *seed == 0 {
		*seed = time.Now().UnixNano()
	}

	// Optional: read-model index backend (does not affect generation).
	idx, err := openRuntimeIndex(*dataDir, *worldID, *disableDB, logger)
	if err != nil {
		logger.Fatalf("open index backend: %v", err)
	}
	if idx != nil {
		defer idx.Close()
		if err := recordTuning(idx, tune, *seed); err != nil {
			logger.Printf("index backend: upsert tuning: %v", err)
		}
	}

	obsSrv := observer.NewServer(log.New(os.Stdout, "[observer] ", log.LstdFlags|log.Lmicroseconds))
	obsSrv.FrameEvery = uint64(max(tune.FrameRateHz, 1))
	obsSrv.AllowRemote = envBool("INF_OBSERVER_ALLOW_REMOTE", false)

	loggers := world.FrameLoggers{obsSrv}
	if *frameLog {
		fl := persistlog.NewFrameLogger(*dataDir)
		defer fl.Close()
		loggers = append(loggers, fl)
	}
	snapLog := persistlog.NewSnapshotLogger(*dataDir)
	defer snapLog.Close()

	snapCh := make(chan snapshot.SnapshotV1, 2)
	cfg := world.Config{
		Seed:   *seed,
		Tuning: tune,
		Observer: &world.FlyingObserver{
			Start:   startPos,
			Heading: step,
			Radius:  float32(*orbit),
		},
		Renderer:     obsSrv,
		Logger:       log.New(os.Stdout, "[world] ", log.LstdFlags|log.Lmicroseconds),
		FrameLogger:  loggers,
		SnapshotSink: snapCh,
	}
	if idx != nil {
		cfg.StageIndex = idx
	}
	w, err := world.New(cfg)
	if err != nil {
		logger.Fatalf("world: %v", err)
	}
	obsSrv.Attach(w)

	if resume != nil {
		n, err := w.ImportChunks(*resume)
		if err != nil {
			logger.Fatalf("import snapshot: %v", err)
		}
		logger.Printf("resumed from snapshot=%s frame=%d chunks=%d", filepath.Base(snapshotToLoad), resume.Header.Frame, n)
	}

	t0 := time.Now()
	n, err := w.WarmUp(*warmup)
	if err != nil {
		logger.Fatalf("warm up: %v", err)
	}
	logger.Printf("world ready seed=%d frames=%d in %s", *seed, n, time.Since(t0).Round(time.Millisecond))

	writeSnap := func(snap snapshot.SnapshotV1) {
		path := filepath.Join(*dataDir, "snapshots", fmt.Sprintf("%d.snap.zst", snap.Header.Frame))
		if err := snapshot.WriteSnapshot(path, snap); err != nil {
			logger.Printf("snapshot write: %v", err)
			return
		}
		snap.Header.Chunks = len(snap.Chunks)
		if idx != nil {
			idx.RecordSnapshot(path, snap.Header)
		}
		if err := snapLog.RecordSnapshot(path, snap.Header); err != nil {
			logger.Printf("snapshot audit: %v", err)
		}
	}

	ctx, cancel := signalContext()
	defer cancel()

	// Snapshot writer.
	writerDone := make(chan struct{})
	go func() {
		defer close(writerDone)
		for {
			select {
			case <-ctx.Done():
				return
			case snap := <-snapCh:
				writeSnap(snap)
			}
		}
	}()

	runDone := make(chan struct{})
	go func() {
		defer close(runDone)
		if err := w.Run(ctx, *frames); err != nil && err != context.Canceled {
			logger.Printf("world stopped: %v", err)
		}
		// -frames reached: shut the server down too.
		cancel()
	}()

	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(rw http.ResponseWriter, r *http.Request) {
		rw.WriteHeader(200)
		_, _ = rw.Write([]byte("ok"))
	})
	mux.HandleFunc("/metrics", func(rw http.ResponseWriter, r *http.Request) {
		rw.Header().Set("Content-Type", "text/plain; version=0.0.4")
		writeMetrics(rw, *worldID, w.Metrics(), obsSrv)
	})
	mux.HandleFunc("/admin/v1/state", func(rw http.ResponseWriter, r *http.Request) {
		if !isLoopbackRemote(r.RemoteAddr) {
			http.Error(rw, "forbidden", http.StatusForbidden)
			return
		}
		rw.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(rw).Encode(struct {
			WorldID string      `json:"world_id"`
			Seed    int64       `json:"seed"`
			Stats   world.Stats `json:"stats"`
		}{*worldID, *seed, w.Metrics()})
	})
	mux.HandleFunc("/v1/observer/bootstrap", obsSrv.BootstrapHandler())
	mux.HandleFunc("/v1/observer/ws", obsSrv.WSHandler())
	if envBool("INF_ENABLE_PPROF_HTTP", false) {
		mux.HandleFunc("/debug/pprof/", pprof.Index)
		mux.HandleFunc("/debug/pprof/cmdline", pprof.Cmdline)
		mux.HandleFunc("/debug/pprof/profile", pprof.Profile)
		mux.HandleFunc("/debug/pprof/symbol", pprof.Symbol)
		mux.HandleFunc("/debug/pprof/trace", pprof.Trace)
	} else {
		logger.Printf("pprof endpoints disabled (INF_ENABLE_PPROF_HTTP=false)")
	}

	srv := &http.Server{
		Addr:              *addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		<-ctx.Done()
		ctx2, cancel2 := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel2()
		_ = srv.Shutdown(ctx2)
	}()

	logger.Printf("listening on %s", *addr)
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Fatalf("ListenAndServe: %v", err)
	}

	<-runDone
	<-writerDone
	// The frame loop has stopped, so exporting from this goroutine is safe.
	writeSnap(w.ExportSnapshot())
	w.Close()
	logger.Printf("stopped at frame=%d digest=%016x", w.Frame(), w.StateDigest())
}

func signalContext() (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(context.Background())
	ch := make(chan os.Signal, 2)
	signal.Notify(ch, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-ch
		cancel()
	}()
	return ctx, cancel
}

func latestSnapshot(dataDir string) string {
	dir := filepath.Join(dataDir, "snapshots")
	ents, err := os.ReadDir(dir)
	if err != nil {
		return ""
	}
	var best string
	var bestFrame uint64
	for _, e := range ents {
		if e.IsDir() {
			continue
		}
		name := e.Name()
		if !strings.HasSuffix(name, ".snap.zst") {
			continue
		}
		frame, err := strconv.ParseUint(strings.TrimSuffix(name, ".snap.zst"), 10, 64)
		if err != nil {
			continue
		}
		if best == "" || frame > bestFrame {
			bestFrame = frame
			best = filepath.Join(dir, name)
		}
	}
	return best
}

func isLoopbackRemote(remoteAddr string) bool {
	host := remoteAddr
	if h, _, err := net.SplitHostPort(remoteAddr); err == nil {
		host = h
	}
	host = strings.TrimPrefix(host, "[")
	host = strings.TrimSuffix(host, "]")
	ip := net.ParseIP(host)
	return ip != nil && ip.IsLoopback()
}

func parseVec3(s string) (mgl32.Vec3, error) {
	var v mgl32.Vec3
	parts := strings.Split(s, ",")
	if len(parts) != 3 {
		return v, fmt.Errorf("want x,y,z, got %q", s)
	}
	for i, p := range parts {
		f, err := strconv.ParseFloat(strings.TrimSpace(p), 32)
		if err != nil {
			return v, fmt.Errorf("component %d: %w", i, err)
		}
		v[i] = float32(f)
	}
	return v, nil
}
