// Package config loads and validates the training hyperparameters from a
// YAML file. Configuration problems are fatal at construction time.
package config

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// Model kinds.
const (
	ModelValue       = "val"
	ModelActorCritic = "ac"
)

type Config struct {
	BoardSize int    `yaml:"board_size"`
	Model     string `yaml:"model"`
	Workers   int    `yaml:"workers"`

	Iterations   int `yaml:"iterations"`
	Episodes     int `yaml:"episodes"`
	Evaluations  int `yaml:"evaluations"`
	EvalInterval int `yaml:"eval_interval"`

	BatchSize  int `yaml:"batch_size"`
	TrainSize  int `yaml:"train_size"`
	ReplaySize int `yaml:"replay_size"`

	Searches int `yaml:"searches"`

	Temp      float32 `yaml:"temp"`
	TempDecay float32 `yaml:"temp_decay"`
	MinTemp   float32 `yaml:"min_temp"`
	// TempSteps is the move count below which the scheduled temperature
	// applies. Defaults to the board area.
	TempSteps int `yaml:"temp_steps"`

	EpisodesDir    string `yaml:"episodes_dir"`
	CheckpointPath string `yaml:"checkpoint_path"`
	SaveDir        string `yaml:"save_dir"`

	TrainerURL   string  `yaml:"trainer_url"`
	LearningRate float64 `yaml:"learning_rate"`

	Seed int64 `yaml:"seed"`
}

// Default returns the hyperparameters for a fresh run on a given board.
func Default(boardSize int) Config {
	return Config{
		BoardSize:    boardSize,
		Model:        ModelValue,
		Workers:      4,
		Iterations:   256,
		Episodes:     256,
		Evaluations:  256,
		EvalInterval: 1,
		BatchSize:    32,
		TrainSize:    32 * 1000,
		ReplaySize:   1024 * 2 * boardSize * boardSize,
		Searches:     0,
		Temp:         1.0 / 32,
		TempDecay:    3.0 / 4,
		MinTemp:      1.0 / 32,
		TempSteps:    boardSize * boardSize,
		EpisodesDir:  "episodes",
		CheckpointPath: filepath.Join("checkpoints",
			fmt.Sprintf("checkpoint_%dx%d.onnx", boardSize, boardSize)),
		SaveDir:      "runs",
		TrainerURL:   "http://127.0.0.1:8421",
		LearningRate: 1e-3,
	}
}

// Load reads a YAML config file over the defaults for its board size.
func Load(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("read config: %w", err)
	}

	// First pass just for the board size, so size-derived defaults are
	// computed before the real decode overrides them.
	var probe struct {
		BoardSize int `yaml:"board_size"`
	}
	if err := yaml.Unmarshal(data, &probe); err != nil {
		return Config{}, fmt.Errorf("parse config: %w", err)
	}
	if probe.BoardSize == 0 {
		probe.BoardSize = 7
	}

	cfg := Default(probe.BoardSize)
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("parse config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) Validate() error {
	if c.BoardSize < 2 {
		return fmt.Errorf("config: board size %d is too small", c.BoardSize)
	}
	if c.Model != ModelValue && c.Model != ModelActorCritic {
		return fmt.Errorf("config: unknown model kind %q", c.Model)
	}
	if c.Workers < 1 {
		return fmt.Errorf("config: need at least one worker, got %d", c.Workers)
	}
	if c.Iterations < 1 || c.Episodes < 1 || c.Evaluations < 1 {
		return fmt.Errorf("config: iterations, episodes and evaluations must be positive")
	}
	if c.EvalInterval < 1 {
		return fmt.Errorf("config: eval interval must be positive, got %d", c.EvalInterval)
	}
	if c.BatchSize < 1 || c.TrainSize < 1 || c.ReplaySize < 1 {
		return fmt.Errorf("config: batch, train and replay sizes must be positive")
	}
	if c.Searches < 0 {
		return fmt.Errorf("config: searches must not be negative, got %d", c.Searches)
	}
	return nil
}
