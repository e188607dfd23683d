package train

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/rs/zerolog/log"

	"tengen/model"
)

const statsHeader = "TIME\tITR\tREPLAY\tC_ACC\tC_LOSS\tA_ACC\tA_LOSS\tC_WR\tR_WR\tG_WR"

// StatsWriter appends the per-iteration progress table to savedir/stats.txt
// and mirrors each row to the log. Only rank 0 writes to it.
type StatsWriter struct {
	f     *os.File
	start time.Time
}

func NewStatsWriter(saveDir string) (*StatsWriter, error) {
	if err := os.MkdirAll(saveDir, 0o755); err != nil {
		return nil, err
	}
	f, err := os.Create(filepath.Join(saveDir, "stats.txt"))
	if err != nil {
		return nil, fmt.Errorf("create stats file: %w", err)
	}

	s := &StatsWriter{f: f, start: time.Now()}
	if err := s.writeLine(statsHeader); err != nil {
		f.Close()
		return nil, err
	}
	return s, nil
}

func (s *StatsWriter) WriteRow(iteration, replayLen int, m model.Summary, wr WinRates) error {
	row := fmt.Sprintf("%s\t%02d\t%07d\t%04.1f\t%.3f\t%04.1f\t%.3f\t%04.1f\t%04.1f\t%04.1f",
		elapsed(time.Since(s.start)), iteration, replayLen,
		100*m.CritAcc, m.CritLoss, 100*m.ActAcc, m.ActLoss,
		100*wr.Checkpoint, 100*wr.Random, 100*wr.Greedy)
	return s.writeLine(row)
}

func (s *StatsWriter) writeLine(line string) error {
	log.Info().Msg(line)
	if _, err := fmt.Fprintln(s.f, line); err != nil {
		return fmt.Errorf("write stats: %w", err)
	}
	return nil
}

func (s *StatsWriter) Close() error { return s.f.Close() }
