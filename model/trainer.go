package model

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// TrainerClient talks to the external optimizer service, the process that
// owns the autodiff stack. One call trains the weights at ModelPath in place
// against a parquet file of batches and returns the pass metrics.
type TrainerClient struct {
	baseURL string
	client  *http.Client
}

func NewTrainerClient(baseURL string) *TrainerClient {
	return &TrainerClient{
		baseURL: baseURL,
		client:  &http.Client{Timeout: 10 * time.Minute},
	}
}

// TrainRequest describes one optimization pass. Paths must be reachable by
// the trainer service, which runs next to the training binary and shares its
// filesystem.
type TrainRequest struct {
	ModelPath    string  `json:"model_path"`
	BatchesPath  string  `json:"batches_path"`
	BoardSize    int     `json:"board_size"`
	LearningRate float64 `json:"learning_rate"`
}

type trainResponse struct {
	CritAcc  float64 `json:"crit_acc"`
	CritLoss float64 `json:"crit_loss"`
	ActAcc   float64 `json:"act_acc"`
	ActLoss  float64 `json:"act_loss"`
	Error    string  `json:"error,omitempty"`
}

// Optimize posts the request and blocks until the trainer has updated the
// weights on disk.
func (t *TrainerClient) Optimize(ctx context.Context, req TrainRequest) (Summary, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return Summary{}, fmt.Errorf("marshal train request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, t.baseURL+"/optimize", bytes.NewReader(body))
	if err != nil {
		return Summary{}, err
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := t.client.Do(httpReq)
	if err != nil {
		return Summary{}, fmt.Errorf("call trainer: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return Summary{}, fmt.Errorf("trainer returned %d: %s", resp.StatusCode, msg)
	}

	var tr trainResponse
	if err := json.NewDecoder(resp.Body).Decode(&tr); err != nil {
		return Summary{}, fmt.Errorf("decode trainer response: %w", err)
	}
	if tr.Error != "" {
		return Summary{}, fmt.Errorf("trainer: %s", tr.Error)
	}

	return Summary{
		CritAcc:  tr.CritAcc,
		CritLoss: tr.CritLoss,
		ActAcc:   tr.ActAcc,
		ActLoss:  tr.ActLoss,
	}, nil
}
