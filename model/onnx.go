package model

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/rs/zerolog/log"

	"tengen/game"
	"tengen/inference"
	"tengen/montecarlo"
	"tengen/replay"
)

// OnnxConfig wires an OnnxModel to its weights file and trainer service.
type OnnxConfig struct {
	Name      string
	BoardSize int
	// ModelPath is the live weights file. The trainer service rewrites it in
	// place during Optimize; forward sessions are reopened afterwards.
	ModelPath string
	// WorkDir receives the parquet batch files handed to the trainer.
	WorkDir      string
	LearningRate float64
	Sessions     int
	Inference    inference.Config
}

// OnnxModel runs forward passes through a pool of ONNX Runtime sessions and
// delegates gradient steps to a TrainerClient. Optimize and checkpoint
// operations are serialized; forward calls may run concurrently from many
// workers.
type OnnxModel struct {
	cfg     OnnxConfig
	trainer *TrainerClient

	mu   sync.Mutex
	pool *inference.Pool
}

func NewOnnxModel(cfg OnnxConfig, trainer *TrainerClient) (*OnnxModel, error) {
	if cfg.Name == "" {
		return nil, fmt.Errorf("model: name is required")
	}
	if cfg.Sessions <= 0 {
		cfg.Sessions = 1
	}
	if cfg.Inference.BoardSize == 0 {
		cfg.Inference.BoardSize = cfg.BoardSize
	}

	pool, err := inference.NewPool(cfg.ModelPath, cfg.Sessions, cfg.Inference)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", cfg.ModelPath, err)
	}
	return &OnnxModel{cfg: cfg, trainer: trainer, pool: pool}, nil
}

func (m *OnnxModel) Name() string { return m.cfg.Name }

func (m *OnnxModel) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.pool.Close()
}

func (m *OnnxModel) ValueFunc() montecarlo.ValueFunc {
	return func(states []game.State) ([]float32, error) {
		m.mu.Lock()
		pool := m.pool
		m.mu.Unlock()
		return pool.ValueFunc()(states)
	}
}

func (m *OnnxModel) PolicyFunc() montecarlo.PolicyFunc {
	return func(states []game.State) ([][]float32, error) {
		m.mu.Lock()
		pool := m.pool
		m.mu.Unlock()
		return pool.PolicyFunc()(states)
	}
}

// Optimize hands the batches to the trainer service as a parquet file and
// reopens the forward sessions once the weights have been rewritten.
func (m *OnnxModel) Optimize(ctx context.Context, batches []replay.Batch) (Summary, error) {
	rows := replay.BatchRows(batches, m.cfg.BoardSize)
	batchPath, err := replay.WriteArchiveParquetAtomic(m.cfg.WorkDir, rows)
	if err != nil {
		return Summary{}, fmt.Errorf("write batch file: %w", err)
	}
	defer os.Remove(batchPath)

	summary, err := m.trainer.Optimize(ctx, TrainRequest{
		ModelPath:    m.cfg.ModelPath,
		BatchesPath:  batchPath,
		BoardSize:    m.cfg.BoardSize,
		LearningRate: m.cfg.LearningRate,
	})
	if err != nil {
		return Summary{}, err
	}

	if err := m.reload(); err != nil {
		return Summary{}, err
	}
	log.Debug().Str("model", m.cfg.Name).Stringer("metrics", summary).Msg("optimized")
	return summary, nil
}

func (m *OnnxModel) SaveCheckpoint(path string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return copyFileAtomic(m.cfg.ModelPath, path)
}

func (m *OnnxModel) LoadCheckpoint(path string) error {
	if err := copyFileAtomic(path, m.cfg.ModelPath); err != nil {
		return err
	}
	return m.reload()
}

// reload swaps in fresh sessions over the current weights file.
func (m *OnnxModel) reload() error {
	pool, err := inference.NewPool(m.cfg.ModelPath, m.cfg.Sessions, m.cfg.Inference)
	if err != nil {
		return fmt.Errorf("reload %s: %w", m.cfg.ModelPath, err)
	}
	m.mu.Lock()
	old := m.pool
	m.pool = pool
	m.mu.Unlock()
	return old.Close()
}

func copyFileAtomic(src, dst string) error {
	data, err := os.ReadFile(src)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return err
	}
	tmp := dst + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return err
	}
	return os.Rename(tmp, dst)
}
