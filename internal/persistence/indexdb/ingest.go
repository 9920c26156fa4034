package indexdb

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"infinitus.ai/internal/persistence/snapshot"
	"infinitus.ai/internal/sim/world"
)

// IngestConfig configures the HTTP batch index.
type IngestConfig struct {
	Endpoint      string
	Token         string
	WorldID       string
	BatchSize     int
	FlushInterval time.Duration
	HTTPTimeout   time.Duration
	Logger        *log.Logger
}

// IngestIndex posts the same records as SQLiteIndex to a remote ingest
// endpoint in JSON batches. A failed batch is kept and retried on the next flush.
type IngestIndex struct {
	cfg        IngestConfig
	httpClient *http.Client

	ch   chan ingestEvent
	wg   sync.WaitGroup
	once sync.Once

	closed atomic.Bool

	queueDropped atomic.Uint64
	flushFail    atomic.Uint64
	sent         atomic.Uint64
}

type ingestEvent struct {
	Kind    string `json:"kind"`
	WorldID string `json:"world_id"`
	Payload any    `json:"payload"`
}

type ingestStagePayload struct {
	Frame      uint64 `json:"frame"`
	Chunk      [3]int `json:"chunk"`
	Stage      string `json:"stage"`
	DurationUS int64  `json:"duration_us"`
	Digest     string `json:"digest"`
}

type ingestSnapshotPayload struct {
	Frame     uint64 `json:"frame"`
	Path      string `json:"path"`
	Seed      int64  `json:"seed"`
	ChunkSize int    `json:"chunk_size"`
	Chunks    int    `json:"chunks"`
}

type IngestStats struct {
	QueueDroppedTotal uint64
	FlushFailTotal    uint64
	SentTotal         uint64
}

// maxRetained bounds how many unsent events survive failed flushes.
const maxRetained = 8192

func OpenIngest(cfg IngestConfig) (*IngestIndex, error) {
	cfg.Endpoint = strings.TrimSpace(cfg.Endpoint)
	cfg.WorldID = strings.TrimSpace(cfg.WorldID)
	if cfg.Endpoint == "" {
		return nil, fmt.Errorf("empty ingest endpoint")
	}
	if cfg.WorldID == "" {
		return nil, fmt.Errorf("empty world id")
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 128
	}
	if cfg.FlushInterval <= 0 {
		cfg.FlushInterval = 500 * time.Millisecond
	}
	if cfg.HTTPTimeout <= 0 {
		cfg.HTTPTimeout = 10 * time.Second
	}

	d := &IngestIndex{
		cfg: cfg,
		httpClient: &http.Client{
			Timeout: cfg.HTTPTimeout,
		},
		ch: make(chan ingestEvent, 32768),
	}

	d.wg.Add(1)
	go func() {
		defer d.wg.Done()
		d.loop()
	}()

	return d, nil
}

func (d *IngestIndex) Close() error {
	if d == nil {
		return nil
	}
	d.once.Do(func() {
		d.closed.Store(true)
		close(d.ch)
		d.wg.Wait()
	})
	return nil
}

func (d *IngestIndex) RecordStage(rec world.StageRecord) {
	if d == nil || d.closed.Load() {
		return
	}
	d.enqueue(ingestEvent{Kind: "chunk_stage", WorldID: d.cfg.WorldID, Payload: ingestStagePayload{
		Frame:      rec.Frame,
		Chunk:      rec.Chunk,
		Stage:      rec.Stage,
		DurationUS: rec.Duration.Microseconds(),
		Digest:     fmt.Sprintf("%016x", rec.Digest),
	}})
}

func (d *IngestIndex) RecordSnapshot(path string, h snapshot.Header) {
	if d == nil || d.closed.Load() {
		return
	}
	d.enqueue(ingestEvent{Kind: "snapshot", WorldID: d.cfg.WorldID, Payload: ingestSnapshotPayload{
		Frame:     h.Frame,
		Path:      path,
		Seed:      h.Seed,
		ChunkSize: h.ChunkSize,
		Chunks:    h.Chunks,
	}})
}

func (d *IngestIndex) Stats() IngestStats {
	return IngestStats{
		QueueDroppedTotal: d.queueDropped.Load(),
		FlushFailTotal:    d.flushFail.Load(),
		SentTotal:         d.sent.Load(),
	}
}

func (d *IngestIndex) enqueue(ev ingestEvent) {
	select {
	case d.ch <- ev:
	default:
		if d.queueDropped.Add(1)%1024 == 1 {
			d.printf("ingest queue full; drop kind=%s world=%s", ev.Kind, ev.WorldID)
		}
	}
}

func (d *IngestIndex) loop() {
	ticker := time.NewTicker(d.cfg.FlushInterval)
	defer ticker.Stop()

	batch := make([]ingestEvent, 0, d.cfg.BatchSize)
	flush := func() {
		if len(batch) == 0 {
			return
		}
		if err := d.sendBatch(batch); err != nil {
			d.flushFail.Add(1)
			d.printf("ingest flush failed batch=%d err=%v", len(batch), err)
			if len(batch) > maxRetained {
				d.queueDropped.Add(uint64(len(batch) - maxRetained))
				batch = append(batch[:0], batch[len(batch)-maxRetained:]...)
			}
			return
		}
		d.sent.Add(uint64(len(batch)))
		batch = batch[:0]
	}

	for {
		select {
		case ev, ok := <-d.ch:
			if !ok {
				flush()
				return
			}
			batch = append(batch, ev)
			if len(batch) >= d.cfg.BatchSize {
				flush()
			}
		case <-ticker.C:
			flush()
		}
	}
}

func (d *IngestIndex) sendBatch(events []ingestEvent) error {
	body := struct {
		Events []ingestEvent `json:"events"`
	}{Events: events}
	buf, err := json.Marshal(body)
	if err != nil {
		return err
	}

	req, err := http.NewRequest(http.MethodPost, d.cfg.Endpoint, bytes.NewReader(buf))
	if err != nil {
		return err
	}
	req.Header.Set("content-type", "application/json")
	if d.cfg.Token != "" {
		req.Header.Set("x-index-token", d.cfg.Token)
	}
	resp, err := d.httpClient.Do(req)
	if err != nil {
		return err
	}
	respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 16*1024))
	_ = resp.Body.Close()
	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return nil
	}
	return fmt.Errorf("status=%d body=%s", resp.StatusCode, strings.TrimSpace(string(respBody)))
}

func (d *IngestIndex) printf(format string, args ...any) {
	if d != nil && d.cfg.Logger != nil {
		d.cfg.Logger.Printf(format, args...)
	}
}
