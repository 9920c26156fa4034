package main

import (
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"infinitus.ai/internal/persistence/indexdb"
	"infinitus.ai/internal/persistence/snapshot"
	"infinitus.ai/internal/sim/tuning"
	"infinitus.ai/internal/sim/world"
)

type runtimeIndex interface {
	world.StageIndex
	RecordSnapshot(path string, h snapshot.Header)
	Close() error
}

func openRuntimeIndex(dataDir, worldID string, disableDB bool, logger *log.Logger) (runtimeIndex, error) {
	if disableDB {
		return nil, nil
	}

	backend := strings.ToLower(strings.TrimSpace(os.Getenv("INF_INDEX_BACKEND")))
	if backend == "" {
		backend = "sqlite"
	}

	switch backend {
	case "none", "off", "disabled":
		return nil, nil
	case "sqlite":
		idx, err := indexdb.OpenSQLite(filepath.Join(dataDir, "index", "world.sqlite"))
		if err != nil {
			return nil, err
		}
		return idx, nil
	case "ingest":
		endpoint := strings.TrimSpace(os.Getenv("INF_INDEX_INGEST_URL"))
		token := strings.TrimSpace(os.Getenv("INF_INDEX_INGEST_TOKEN"))
		if endpoint == "" {
			return nil, fmt.Errorf("INF_INDEX_BACKEND=ingest but INF_INDEX_INGEST_URL is empty")
		}
		idx, err := indexdb.OpenIngest(indexdb.IngestConfig{
			Endpoint:      endpoint,
			Token:         token,
			WorldID:       worldID,
			BatchSize:     envInt("INF_INDEX_INGEST_BATCH_SIZE", 128),
			FlushInterval: time.Duration(envInt("INF_INDEX_INGEST_FLUSH_MS", 500)) * time.Millisecond,
			Logger:        logger,
		})
		if err != nil {
			return nil, err
		}
		return idx, nil
	default:
		return nil, fmt.Errorf("unsupported INF_INDEX_BACKEND: %s", backend)
	}
}

// recordTuning stores the effective tuning when the backend keeps configs.
func recordTuning(idx runtimeIndex, tune tuning.Tuning, seed int64) error {
	s, ok := idx.(*indexdb.SQLiteIndex)
	if !ok {
		return nil
	}
	return s.UpsertTuning(tune, seed)
}

func envBool(key string, def bool) bool {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return def
	}
	return b
}

func envInt(key string, def int) int {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil || n <= 0 {
		return def
	}
	return n
}
