// Package log keeps the server's frame records and snapshot audit trail as
// hourly zstd-compressed JSONL segments.
package log

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/klauspost/compress/zstd"

	"infinitus.ai/internal/persistence/snapshot"
	"infinitus.ai/internal/sim/world"
)

// Segmented appends JSON records to <dir>/<prefix>-YYYY-MM-DD-HH.jsonl.zst and
// starts a new segment whenever the UTC hour changes. Reopening an hour appends
// a new zstd frame to the existing segment.
type Segmented struct {
	dir    string
	prefix string
	clock  func() time.Time

	mu      sync.Mutex
	hour    string
	records int
	file    *os.File
	zw      *zstd.Encoder
	buf     *bufio.Writer
	enc     *json.Encoder
}

func NewSegmented(dir, prefix string) *Segmented {
	return &Segmented{dir: dir, prefix: prefix, clock: time.Now}
}

// Append writes v as one line and flushes it through the compressor.
func (s *Segmented) Append(v any) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if h := s.clock().UTC().Format("2006-01-02-15"); h != s.hour {
		if err := s.switchTo(h); err != nil {
			return err
		}
	}
	if err := s.enc.Encode(v); err != nil {
		return err
	}
	s.records++
	return s.buf.Flush()
}

// Segment is the file currently written, empty before the first record.
func (s *Segmented) Segment() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.hour == "" {
		return ""
	}
	return s.segmentPath(s.hour)
}

// Records counts what went into the current segment since it was opened.
func (s *Segmented) Records() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.records
}

func (s *Segmented) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.release()
}

func (s *Segmented) segmentPath(hour string) string {
	return filepath.Join(s.dir, fmt.Sprintf("%s-%s.jsonl.zst", s.prefix, hour))
}

func (s *Segmented) switchTo(hour string) error {
	if err := s.release(); err != nil {
		return err
	}
	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return err
	}
	f, err := os.OpenFile(s.segmentPath(hour), os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return err
	}
	zw, err := zstd.NewWriter(f, zstd.WithEncoderLevel(zstd.SpeedFastest))
	if err != nil {
		_ = f.Close()
		return err
	}
	s.file, s.zw = f, zw
	s.buf = bufio.NewWriterSize(zw, 128*1024)
	s.enc = json.NewEncoder(s.buf)
	s.hour, s.records = hour, 0
	return nil
}

func (s *Segmented) release() error {
	if s.file == nil {
		return nil
	}
	err := errors.Join(s.buf.Flush(), s.zw.Close(), s.file.Close())
	s.file, s.zw, s.buf, s.enc = nil, nil, nil, nil
	return err
}

// FrameLogger keeps one record per world frame under <dataDir>/frames.
type FrameLogger struct{ seg *Segmented }

func NewFrameLogger(dataDir string) *FrameLogger {
	return &FrameLogger{seg: NewSegmented(filepath.Join(dataDir, "frames"), "frames")}
}

func (l *FrameLogger) WriteFrame(e world.FrameLogEntry) error { return l.seg.Append(e) }
func (l *FrameLogger) Close() error                           { return l.seg.Close() }

// SnapshotEntry is one line of the snapshot audit trail.
type SnapshotEntry struct {
	Frame  uint64    `json:"frame"`
	Seed   int64     `json:"seed"`
	Path   string    `json:"path"`
	Chunks int       `json:"chunks"`
	Bytes  int64     `json:"bytes"`
	Time   time.Time `json:"time"`
}

// SnapshotLogger audits written snapshots under <dataDir>/audit.
type SnapshotLogger struct{ seg *Segmented }

func NewSnapshotLogger(dataDir string) *SnapshotLogger {
	return &SnapshotLogger{seg: NewSegmented(filepath.Join(dataDir, "audit"), "snapshots")}
}

// RecordSnapshot audits the snapshot file at path. A file that cannot be
// stated is recorded with zero bytes.
func (l *SnapshotLogger) RecordSnapshot(path string, h snapshot.Header) error {
	e := SnapshotEntry{
		Frame:  h.Frame,
		Seed:   h.Seed,
		Path:   path,
		Chunks: h.Chunks,
		Time:   l.seg.clock().UTC(),
	}
	if fi, err := os.Stat(path); err == nil {
		e.Bytes = fi.Size()
	}
	return l.seg.Append(e)
}

func (l *SnapshotLogger) Close() error { return l.seg.Close() }
