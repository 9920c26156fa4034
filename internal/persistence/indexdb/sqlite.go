package indexdb

import (
	"context"
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	_ "modernc.org/sqlite"

	"infinitus.ai/internal/persistence/snapshot"
	"infinitus.ai/internal/sim/tuning"
	"infinitus.ai/internal/sim/world"
)

// SQLiteIndex is a secondary, queryable record of finished chunk jobs and
// written snapshots. All writes go through one goroutine.
type SQLiteIndex struct {
	db *sql.DB

	ch   chan req
	wg   sync.WaitGroup
	once sync.Once

	closed atomic.Bool

	dropStage    atomic.Uint64
	dropSnapshot atomic.Uint64
	written      atomic.Uint64
}

type reqKind int

const (
	reqStage reqKind = iota + 1
	reqSnapshot
)

type req struct {
	kind reqKind

	stage    world.StageRecord
	snapshot snapshotRow
}

type snapshotRow struct {
	Frame     uint64
	Path      string
	Seed      int64
	ChunkSize int
	Chunks    int
}

type Stats struct {
	QueueDepth        int
	QueueCapacity     int
	DropStageTotal    uint64
	DropSnapshotTotal uint64
	WrittenTotal      uint64
}

func OpenSQLite(path string) (*SQLiteIndex, error) {
	if path == "" {
		return nil, fmt.Errorf("empty db path")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	if err := initPragmas(db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("sqlite pragmas: %w", err)
	}
	if err := initSchema(db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("sqlite schema: %w", err)
	}

	s := &SQLiteIndex{
		db: db,
		// A warm-up burst finishes three jobs per chunk for thousands of chunks.
		ch: make(chan req, 65536),
	}
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.loop()
	}()
	return s, nil
}

func initPragmas(db *sql.DB) error {
	pragmas := []string{
		"PRAGMA journal_mode=WAL;",
		"PRAGMA synchronous=NORMAL;",
		"PRAGMA busy_timeout=5000;",
		"PRAGMA temp_store=MEMORY;",
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			return err
		}
	}
	return nil
}

func initSchema(db *sql.DB) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS meta (
			key TEXT PRIMARY KEY,
			value TEXT NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS configs (
			name TEXT PRIMARY KEY,
			digest TEXT NOT NULL,
			json TEXT NOT NULL,
			updated_at TEXT NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS chunk_stages (
			frame INTEGER NOT NULL,
			cx INTEGER NOT NULL,
			cy INTEGER NOT NULL,
			cz INTEGER NOT NULL,
			stage TEXT NOT NULL,
			duration_us INTEGER NOT NULL,
			digest TEXT NOT NULL
		);`,
		`CREATE INDEX IF NOT EXISTS idx_chunk_stages_pos ON chunk_stages(cx, cz, cy, frame);`,
		`CREATE TABLE IF NOT EXISTS snapshots (
			frame INTEGER PRIMARY KEY,
			path TEXT NOT NULL,
			seed INTEGER NOT NULL,
			chunk_size INTEGER NOT NULL,
			chunks INTEGER NOT NULL
		);`,
	}
	for _, s := range stmts {
		if _, err := db.Exec(s); err != nil {
			return err
		}
	}
	return nil
}

func (s *SQLiteIndex) Close() error {
	var err error
	s.once.Do(func() {
		s.closed.Store(true)
		close(s.ch)
		s.wg.Wait()
		err = s.db.Close()
	})
	return err
}

// RecordStage queues a finished job. It drops the record when the writer falls behind.
func (s *SQLiteIndex) RecordStage(rec world.StageRecord) {
	if s == nil || s.closed.Load() {
		return
	}
	select {
	case s.ch <- req{kind: reqStage, stage: rec}:
	default:
		s.dropStage.Add(1)
	}
}

func (s *SQLiteIndex) RecordSnapshot(path string, h snapshot.Header) {
	if s == nil || s.closed.Load() {
		return
	}
	r := snapshotRow{Frame: h.Frame, Path: path, Seed: h.Seed, ChunkSize: h.ChunkSize, Chunks: h.Chunks}
	select {
	case s.ch <- req{kind: reqSnapshot, snapshot: r}:
	default:
		s.dropSnapshot.Add(1)
	}
}

func (s *SQLiteIndex) Stats() Stats {
	if s == nil {
		return Stats{}
	}
	return Stats{
		QueueDepth:        len(s.ch),
		QueueCapacity:     cap(s.ch),
		DropStageTotal:    s.dropStage.Load(),
		DropSnapshotTotal: s.dropSnapshot.Load(),
		WrittenTotal:      s.written.Load(),
	}
}

// UpsertTuning stores the tuning actually applied and the world seed.
func (s *SQLiteIndex) UpsertTuning(tune tuning.Tuning, seed int64) error {
	if s == nil {
		return nil
	}
	b, err := json.Marshal(tune)
	if err != nil {
		return err
	}
	sum := sha256.Sum256(b)
	now := time.Now().UTC().Format(time.RFC3339Nano)

	tx, err := s.db.BeginTx(context.Background(), nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.Exec(`INSERT OR REPLACE INTO meta(key,value) VALUES('schema_version','1')`); err != nil {
		return err
	}
	if _, err := tx.Exec(`INSERT OR REPLACE INTO meta(key,value) VALUES('seed',?)`, fmt.Sprint(seed)); err != nil {
		return err
	}
	if _, err := tx.Exec(`INSERT OR REPLACE INTO configs(name,digest,json,updated_at) VALUES(?,?,?,?)`,
		"tuning", hex.EncodeToString(sum[:]), string(b), now); err != nil {
		return err
	}
	return tx.Commit()
}

// StageRow is one chunk_stages row.
type StageRow struct {
	Frame      uint64
	Chunk      [3]int
	Stage      string
	DurationUS int64
	Digest     string
}

// ChunkHistory returns the recorded jobs of one chunk in frame order.
func (s *SQLiteIndex) ChunkHistory(ctx context.Context, c [3]int) ([]StageRow, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT frame, stage, duration_us, digest FROM chunk_stages WHERE cx=? AND cy=? AND cz=? ORDER BY frame, rowid`,
		c[0], c[1], c[2])
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []StageRow
	for rows.Next() {
		r := StageRow{Chunk: c}
		var frame int64
		if err := rows.Scan(&frame, &r.Stage, &r.DurationUS, &r.Digest); err != nil {
			return nil, err
		}
		r.Frame = uint64(frame)
		out = append(out, r)
	}
	return out, rows.Err()
}

func (s *SQLiteIndex) CountStages(ctx context.Context) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM chunk_stages`).Scan(&n)
	return n, err
}

func (s *SQLiteIndex) loop() {
	ctx := context.Background()

	insertStage, _ := s.db.Prepare(`INSERT INTO chunk_stages(frame,cx,cy,cz,stage,duration_us,digest) VALUES(?,?,?,?,?,?,?)`)
	insertSnapshot, _ := s.db.Prepare(`INSERT OR REPLACE INTO snapshots(frame,path,seed,chunk_size,chunks) VALUES(?,?,?,?,?)`)
	defer func() {
		if insertStage != nil {
			_ = insertStage.Close()
		}
		if insertSnapshot != nil {
			_ = insertSnapshot.Close()
		}
	}()

	var (
		tx            *sql.Tx
		opCount       int
		lastCommit    = time.Now()
		commitEvery   = 2000
		commitMaxWait = 2 * time.Second
	)

	begin := func() {
		if tx != nil {
			return
		}
		txx, err := s.db.BeginTx(ctx, nil)
		if err != nil {
			time.Sleep(50 * time.Millisecond)
			return
		}
		tx = txx
		opCount = 0
		lastCommit = time.Now()
	}
	commit := func() {
		if tx == nil {
			return
		}
		_ = tx.Commit()
		tx = nil
		opCount = 0
		lastCommit = time.Now()
	}
	rollback := func() {
		if tx == nil {
			return
		}
		_ = tx.Rollback()
		tx = nil
		opCount = 0
		lastCommit = time.Now()
	}

	for r := range s.ch {
		begin()
		if tx == nil {
			continue
		}
		switch r.kind {
		case reqStage:
			st := r.stage
			if insertStage != nil {
				if _, err := tx.Stmt(insertStage).Exec(
					int64(st.Frame),
					st.Chunk[0], st.Chunk[1], st.Chunk[2],
					st.Stage,
					st.Duration.Microseconds(),
					fmt.Sprintf("%016x", st.Digest),
				); err != nil {
					rollback()
					continue
				}
				opCount++
			}

		case reqSnapshot:
			sn := r.snapshot
			if insertSnapshot != nil {
				if _, err := tx.Stmt(insertSnapshot).Exec(
					int64(sn.Frame),
					sn.Path,
					sn.Seed,
					sn.ChunkSize,
					sn.Chunks,
				); err != nil {
					rollback()
					continue
				}
				opCount++
			}
		}
		s.written.Add(1)
		if opCount >= commitEvery || time.Since(lastCommit) >= commitMaxWait || len(s.ch) == 0 {
			commit()
		}
	}

	commit()
}
