package replay

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/parquet-go/parquet-go"
	"github.com/parquet-go/parquet-go/compress/zstd"
)

// ArchiveRow is one transition flattened for long-term columnar storage and
// for handing sampled batches to the external optimizer. Unlike the gob
// shards, the parquet layout is stable across versions.
type ArchiveRow struct {
	GameID       string    `parquet:"game_id,dict"`
	Step         int32     `parquet:"step"`
	BoardSize    int32     `parquet:"board_size"`
	State        []float32 `parquet:"state"`
	Action       int32     `parquet:"action"`
	Reward       float32   `parquet:"reward"`
	NextState    []float32 `parquet:"next_state"`
	Terminal     bool      `parquet:"terminal"`
	Outcome      int32     `parquet:"outcome"`
	SearchPolicy []float32 `parquet:"search_policy"`
}

// ArchiveRows flattens trajectories into archive rows.
func ArchiveRows(trajs []Trajectory, boardSize int) []ArchiveRow {
	var rows []ArchiveRow
	for _, traj := range trajs {
		for i, t := range traj.Transitions {
			rows = append(rows, ArchiveRow{
				GameID:       traj.GameID,
				Step:         int32(i),
				BoardSize:    int32(boardSize),
				State:        t.State,
				Action:       t.Action,
				Reward:       t.Reward,
				NextState:    t.NextState,
				Terminal:     t.Terminal != 0,
				Outcome:      t.Outcome,
				SearchPolicy: t.SearchPolicy,
			})
		}
	}
	return rows
}

// BatchRows flattens training batches into archive rows, without game
// attribution (samples are shuffled across games).
func BatchRows(batches []Batch, boardSize int) []ArchiveRow {
	var rows []ArchiveRow
	for _, b := range batches {
		for i := range b.States {
			rows = append(rows, ArchiveRow{
				BoardSize:    int32(boardSize),
				State:        b.States[i],
				Action:       b.Actions[i],
				Reward:       b.Rewards[i],
				NextState:    b.NextStates[i],
				Terminal:     b.Terminals[i] != 0,
				Outcome:      b.Outcomes[i],
				SearchPolicy: b.SearchPolicy[i],
			})
		}
	}
	return rows
}

// WriteArchiveParquetAtomic writes rows to a new timestamped parquet file in
// outDir. The file is written into outDir/tmp first and then renamed, so
// readers never observe a partially written file.
func WriteArchiveParquetAtomic(outDir string, rows []ArchiveRow) (string, error) {
	if err := os.MkdirAll(outDir, 0o755); err != nil {
		return "", fmt.Errorf("create output dir: %w", err)
	}
	tmpDir := filepath.Join(outDir, "tmp")
	if err := os.MkdirAll(tmpDir, 0o755); err != nil {
		return "", fmt.Errorf("create tmp dir: %w", err)
	}

	name := fmt.Sprintf("replay_%d.parquet", time.Now().UnixNano())
	finalPath := filepath.Join(outDir, name)
	tmpPath := filepath.Join(tmpDir, name+".tmp")
	_ = os.Remove(tmpPath)

	if err := parquet.WriteFile(tmpPath, rows,
		parquet.Compression(&zstd.Codec{Level: zstd.SpeedBetterCompression}),
		parquet.SkipPageBounds("state"),
		parquet.SkipPageBounds("next_state"),
		parquet.KeyValueMetadata("schema", "replay_transition_v1"),
	); err != nil {
		_ = os.Remove(tmpPath)
		return "", fmt.Errorf("write parquet: %w", err)
	}

	if err := os.Rename(tmpPath, finalPath); err != nil {
		_ = os.Remove(tmpPath)
		return "", fmt.Errorf("rename parquet: %w", err)
	}
	return finalPath, nil
}

// ReadArchiveParquet loads every row of an archive file.
func ReadArchiveParquet(path string) ([]ArchiveRow, error) {
	rows, err := parquet.ReadFile[ArchiveRow](path)
	if err != nil {
		return nil, fmt.Errorf("read parquet: %w", err)
	}
	return rows, nil
}
