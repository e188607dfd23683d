package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"tengen/cluster"
	"tengen/config"
	"tengen/game"
	"tengen/inference"
	"tengen/minigo"
	"tengen/model"
	"tengen/policy"
	"tengen/replay"
	"tengen/train"
)

type doneMsg struct{ err error }

type tuiModel struct {
	startTime time.Time
	latest    train.Event
	rows      []string
	updates   chan train.Event
	err       error
	finished  bool
}

func initialTui(updates chan train.Event) tuiModel {
	return tuiModel{startTime: time.Now(), updates: updates}
}

type TickMsg time.Time

func tickCmd() tea.Cmd {
	return tea.Tick(time.Millisecond*250, func(t time.Time) tea.Msg {
		return TickMsg(t)
	})
}

func waitForUpdate(updates chan train.Event) tea.Cmd {
	return func() tea.Msg {
		return <-updates
	}
}

func (m tuiModel) Init() tea.Cmd {
	return tea.Batch(waitForUpdate(m.updates), tickCmd())
}

func (m tuiModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		if msg.String() == "q" || msg.String() == "ctrl+c" {
			return m, tea.Quit
		}
	case TickMsg:
		return m, tickCmd()
	case doneMsg:
		m.finished = true
		m.err = msg.err
		return m, tea.Quit
	case train.Event:
		m.latest = msg
		row := fmt.Sprintf("itr %02d | replay %d | %s | wr C %.1f%% R %.1f%% G %.1f%%",
			msg.Iteration, msg.ReplayLen, msg.Metrics,
			100*msg.WinRates.Checkpoint, 100*msg.WinRates.Random, 100*msg.WinRates.Greedy)
		m.rows = append([]string{row}, m.rows...)
		if len(m.rows) > 10 {
			m.rows = m.rows[:10]
		}
		return m, waitForUpdate(m.updates)
	}
	return m, nil
}

func (m tuiModel) View() string {
	s := fmt.Sprintf("Iteration:  %d\n", m.latest.Iteration)
	s += fmt.Sprintf("Replay:     %d\n", m.latest.ReplayLen)
	s += fmt.Sprintf("Rejections: %d\n", m.latest.Rejections)
	s += fmt.Sprintf("Duration:   %s\n\n", time.Since(m.startTime).Round(time.Second))

	s += "Recent Iterations:\n"
	for _, r := range m.rows {
		s += r + "\n"
	}

	s += "\nPress q to quit.\n"
	return s
}

func main() {
	configPath := flag.String("config", "", "YAML config file; defaults are used when empty")
	boardSize := flag.Int("board-size", 7, "Board size when no config file is given")
	useTui := flag.Bool("tui", false, "Show a live terminal monitor instead of plain logs")
	freshReplay := flag.Bool("fresh-replay", false, "Remove stale replay shards before training")
	flag.Parse()

	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: "15:04:05"})
	zerolog.SetGlobalLevel(zerolog.DebugLevel)

	cfg := config.Default(*boardSize)
	if *configPath != "" {
		var err error
		cfg, err = config.Load(*configPath)
		if err != nil {
			log.Fatal().Err(err).Msg("load config")
		}
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := os.MkdirAll(cfg.EpisodesDir, 0o755); err != nil {
		log.Fatal().Err(err).Msg("create episodes dir")
	}
	if *freshReplay {
		if err := replay.ClearDir(cfg.EpisodesDir); err != nil {
			log.Fatal().Err(err).Msg("clear episodes dir")
		}
	}

	if _, err := os.Stat(cfg.CheckpointPath); os.IsNotExist(err) {
		log.Fatal().Str("path", cfg.CheckpointPath).
			Msg("no initial checkpoint; export one with the trainer service first")
	}

	trainerClient := model.NewTrainerClient(cfg.TrainerURL)
	infCfg := inference.Config{BoardSize: cfg.BoardSize}

	// The candidate starts from the checkpoint weights on a fresh run.
	candidatePath := filepath.Join(cfg.SaveDir, "candidate.onnx")
	if _, err := os.Stat(candidatePath); os.IsNotExist(err) {
		if err := seedCandidate(cfg.CheckpointPath, candidatePath); err != nil {
			log.Fatal().Err(err).Msg("seed candidate weights")
		}
	}

	curr, err := model.NewOnnxModel(model.OnnxConfig{
		Name:         "Current",
		BoardSize:    cfg.BoardSize,
		ModelPath:    candidatePath,
		WorkDir:      cfg.SaveDir,
		LearningRate: cfg.LearningRate,
		Inference:    infCfg,
	}, trainerClient)
	if err != nil {
		log.Fatal().Err(err).Msg("open candidate model")
	}
	defer curr.Close()

	checkpoint, err := model.NewOnnxModel(model.OnnxConfig{
		Name:      "Checkpoint",
		BoardSize: cfg.BoardSize,
		ModelPath: cfg.CheckpointPath,
		WorkDir:   cfg.SaveDir,
		Inference: infCfg,
	}, trainerClient)
	if err != nil {
		log.Fatal().Err(err).Msg("open checkpoint model")
	}
	defer checkpoint.Close()

	currPi, checkpointPi, err := buildPolicies(cfg, curr, checkpoint)
	if err != nil {
		log.Fatal().Err(err).Msg("build policies")
	}

	group := cluster.NewGroup(cfg.Workers)
	newEnv := func() game.Environment { return minigo.NewEnv(cfg.BoardSize) }
	trainer := train.New(train.Config{
		Iterations:     cfg.Iterations,
		Episodes:       cfg.Episodes,
		Evaluations:    cfg.Evaluations,
		EvalInterval:   cfg.EvalInterval,
		BatchSize:      cfg.BatchSize,
		TrainSize:      cfg.TrainSize,
		ReplaySize:     cfg.ReplaySize,
		TempDecay:      cfg.TempDecay,
		MinTemp:        cfg.MinTemp,
		EpisodesDir:    cfg.EpisodesDir,
		CheckpointPath: cfg.CheckpointPath,
		SaveDir:        cfg.SaveDir,
		Seed:           cfg.Seed,
	}, group, curr, checkpoint, currPi, checkpointPi, newEnv)

	log.Debug().Int("workers", cfg.Workers).Int("board_size", cfg.BoardSize).
		Str("model", cfg.Model).Msg("starting training")

	if !*useTui {
		if err := trainer.Run(ctx); err != nil {
			log.Fatal().Err(err).Msg("training failed")
		}
		return
	}

	updates := make(chan train.Event, cfg.Workers)
	trainer.Progress = func(ev train.Event) {
		select {
		case updates <- ev:
		default:
		}
	}

	p := tea.NewProgram(initialTui(updates), tea.WithAltScreen())
	go func() {
		err := trainer.Run(ctx)
		p.Send(doneMsg{err: err})
	}()

	final, err := p.Run()
	if err != nil {
		log.Fatal().Err(err).Msg("monitor failed")
	}
	if m, ok := final.(tuiModel); ok && m.err != nil {
		log.Fatal().Err(m.err).Msg("training failed")
	}
}

func seedCandidate(checkpointPath, candidatePath string) error {
	data, err := os.ReadFile(checkpointPath)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(candidatePath), 0o755); err != nil {
		return err
	}
	return os.WriteFile(candidatePath, data, 0o644)
}

func buildPolicies(cfg config.Config, curr, checkpoint model.Model) (policy.Policy, policy.Policy, error) {
	switch cfg.Model {
	case config.ModelValue:
		return policy.NewValue("Current", curr.ValueFunc(), cfg.Searches, cfg.Temp, cfg.TempSteps),
			policy.NewValue("Checkpoint", checkpoint.ValueFunc(), cfg.Searches, cfg.Temp, cfg.TempSteps),
			nil
	case config.ModelActorCritic:
		return policy.NewTree("Current", curr.ValueFunc(), curr.PolicyFunc(), cfg.Searches, cfg.Temp, cfg.TempSteps),
			policy.NewTree("Checkpoint", checkpoint.ValueFunc(), checkpoint.PolicyFunc(), cfg.Searches, cfg.Temp, cfg.TempSteps),
			nil
	default:
		return nil, nil, fmt.Errorf("unknown model kind %q", cfg.Model)
	}
}
