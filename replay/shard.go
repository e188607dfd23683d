package replay

import (
	"encoding/gob"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/rs/zerolog/log"
)

// Shard write retry policy. The write is retried a bounded number of times
// and then escalated as an error instead of looping forever on a persistent
// fault.
const (
	maxWriteRetries = 10
	writeRetryDelay = 100 * time.Millisecond
)

const shardSuffix = ".traj"

// ShardPath names the shard file a worker rank owns inside dir.
func ShardPath(dir string, rank int) string {
	return filepath.Join(dir, fmt.Sprintf("worker_%d%s", rank, shardSuffix))
}

// SaveShard overwrites rank's shard file with the given trajectories. The
// write goes to a temp file first and is renamed into place, so a reader
// never observes a partially written shard. Transient failures retry up to
// maxWriteRetries before the error surfaces.
func SaveShard(dir string, rank int, trajs []Trajectory) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create shard dir: %w", err)
	}
	outPath := ShardPath(dir, rank)

	var lastErr error
	for attempt := 1; attempt <= maxWriteRetries; attempt++ {
		if lastErr = writeShard(outPath, trajs); lastErr == nil {
			return nil
		}
		log.Warn().Err(lastErr).Int("rank", rank).Int("attempt", attempt).
			Msg("shard write failed, retrying")
		time.Sleep(writeRetryDelay)
	}
	return fmt.Errorf("write shard %s after %d attempts: %w", outPath, maxWriteRetries, lastErr)
}

func writeShard(outPath string, trajs []Trajectory) error {
	tmpPath := outPath + ".tmp"
	f, err := os.OpenFile(tmpPath, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("open tmp shard: %w", err)
	}
	if err := gob.NewEncoder(f).Encode(trajs); err != nil {
		_ = f.Close()
		_ = os.Remove(tmpPath)
		return fmt.Errorf("encode shard: %w", err)
	}
	if err := f.Close(); err != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("close tmp shard: %w", err)
	}
	if err := os.Rename(tmpPath, outPath); err != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("rename shard: %w", err)
	}
	return nil
}

// LoadShard reads one shard file.
func LoadShard(path string) ([]Trajectory, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open shard: %w", err)
	}
	defer f.Close()

	var trajs []Trajectory
	if err := gob.NewDecoder(f).Decode(&trajs); err != nil {
		return nil, fmt.Errorf("decode shard %s: %w", path, err)
	}
	return trajs, nil
}

// LoadAll reads every worker shard in dir, in rank-name order. A missing
// directory is an empty pool, not an error.
func LoadAll(dir string) ([]Trajectory, error) {
	paths, err := filepath.Glob(filepath.Join(dir, "worker_*"+shardSuffix))
	if err != nil {
		return nil, err
	}
	sort.Strings(paths)

	var all []Trajectory
	for _, path := range paths {
		trajs, err := LoadShard(path)
		if err != nil {
			return nil, err
		}
		all = append(all, trajs...)
	}
	return all, nil
}

// ClearDir removes every worker shard in dir.
func ClearDir(dir string) error {
	paths, err := filepath.Glob(filepath.Join(dir, "worker_*"+shardSuffix))
	if err != nil {
		return err
	}
	for _, path := range paths {
		if err := os.Remove(path); err != nil {
			return fmt.Errorf("remove shard: %w", err)
		}
	}
	return nil
}
