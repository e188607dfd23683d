// Package inference wraps ONNX Runtime sessions behind batched value and
// policy functions for the search. Requests from many workers funnel into a
// single batching loop per session, forming full batches when load is high
// and flushing on a short timeout otherwise.
package inference

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"sync"
	"time"

	ort "github.com/yalue/onnxruntime_go"

	"tengen/game"
	"tengen/montecarlo"
)

const (
	DefaultBatchSize    = 128
	DefaultBatchTimeout = 1 * time.Millisecond
)

// Config sizes the ONNX client for one board size.
type Config struct {
	BoardSize    int
	BatchSize    int
	BatchTimeout time.Duration
}

func (c Config) withDefaults() (Config, error) {
	if c.BoardSize <= 0 {
		return c, fmt.Errorf("inference: board size is required")
	}
	if c.BatchSize <= 0 {
		c.BatchSize = DefaultBatchSize
	}
	if c.BatchTimeout <= 0 {
		c.BatchTimeout = DefaultBatchTimeout
	}
	return c, nil
}

func (c Config) inputSize() int  { return game.NumPlanes * c.BoardSize * c.BoardSize }
func (c Config) policySize() int { return c.BoardSize*c.BoardSize + 1 }

type request struct {
	input []float32
	resp  chan response
}

type response struct {
	policy []float32
	value  float32
	err    error
}

// Client runs forward passes through one ONNX Runtime session with request
// batching. The network takes the state planes as "input" and produces
// "policy" logits over all actions plus a scalar "value".
type Client struct {
	session  *ort.DynamicAdvancedSession
	requests chan request
	cfg      Config
}

var ortInitOnce sync.Once
var ortInitErr error

// NewClient loads the model at modelPath and starts the batching loop.
func NewClient(modelPath string, cfg Config) (*Client, error) {
	cfg, err := cfg.withDefaults()
	if err != nil {
		return nil, err
	}

	if runtime.GOOS == "linux" {
		if p := os.Getenv("ORT_SHARED_LIBRARY_PATH"); p != "" {
			ort.SetSharedLibraryPath(p)
		} else {
			cwd, _ := os.Getwd()
			candidates := []string{
				"libonnxruntime.so",
				"libonnxruntime.so.1",
			}
			for _, name := range candidates {
				abs := filepath.Join(cwd, name)
				if _, err := os.Stat(abs); err == nil {
					ort.SetSharedLibraryPath(abs)
					break
				}
			}
		}
	}

	ortInitOnce.Do(func() {
		ortInitErr = ort.InitializeEnvironment()
	})
	if ortInitErr != nil {
		return nil, fmt.Errorf("init onnxruntime: %w", ortInitErr)
	}

	options, err := ort.NewSessionOptions()
	if err != nil {
		return nil, err
	}
	defer options.Destroy()

	// Workers provide the parallelism; keep each session single-threaded.
	options.SetIntraOpNumThreads(1)
	options.SetInterOpNumThreads(1)

	session, err := ort.NewDynamicAdvancedSession(modelPath,
		[]string{"input"}, []string{"policy", "value"}, options)
	if err != nil {
		return nil, fmt.Errorf("create session: %w", err)
	}

	c := &Client{
		session:  session,
		cfg:      cfg,
		requests: make(chan request, cfg.BatchSize*2),
	}
	go c.batchLoop()
	return c, nil
}

func (c *Client) Close() error {
	return c.session.Destroy()
}

// Predict runs one state through the network.
func (c *Client) Predict(state game.State) ([]float32, float32, error) {
	input := make([]float32, c.cfg.inputSize())
	copy(input, state.Planes())

	resp := make(chan response, 1)
	c.requests <- request{input: input, resp: resp}
	r := <-resp
	return r.policy, r.value, r.err
}

// ValueFunc adapts the client to the search's batched value interface.
func (c *Client) ValueFunc() montecarlo.ValueFunc {
	return func(states []game.State) ([]float32, error) {
		vals := make([]float32, len(states))
		for i, s := range states {
			_, v, err := c.Predict(s)
			if err != nil {
				return nil, err
			}
			vals[i] = v
		}
		return vals, nil
	}
}

// PolicyFunc adapts the client to the search's batched policy interface.
func (c *Client) PolicyFunc() montecarlo.PolicyFunc {
	return func(states []game.State) ([][]float32, error) {
		logits := make([][]float32, len(states))
		for i, s := range states {
			p, _, err := c.Predict(s)
			if err != nil {
				return nil, err
			}
			logits[i] = p
		}
		return logits, nil
	}
}

func (c *Client) batchLoop() {
	batchInput := make([]float32, 0, c.cfg.BatchSize*c.cfg.inputSize())
	requests := make([]request, 0, c.cfg.BatchSize)

	ticker := time.NewTicker(c.cfg.BatchTimeout)
	defer ticker.Stop()

	for {
		select {
		case req := <-c.requests:
			requests = append(requests, req)
			batchInput = append(batchInput, req.input...)
			if len(requests) >= c.cfg.BatchSize {
				c.runBatch(requests, batchInput)
				requests = requests[:0]
				batchInput = batchInput[:0]
			}
		case <-ticker.C:
			if len(requests) > 0 {
				c.runBatch(requests, batchInput)
				requests = requests[:0]
				batchInput = batchInput[:0]
			}
		}
	}
}

func (c *Client) runBatch(requests []request, batchInput []float32) {
	n := int64(len(requests))
	size := int64(c.cfg.BoardSize)

	inputTensor, err := ort.NewTensor(ort.NewShape(n, game.NumPlanes, size, size), batchInput)
	if err != nil {
		c.failBatch(requests, err)
		return
	}
	defer inputTensor.Destroy()

	policyTensor, err := ort.NewEmptyTensor[float32](ort.NewShape(n, int64(c.cfg.policySize())))
	if err != nil {
		c.failBatch(requests, err)
		return
	}
	defer policyTensor.Destroy()

	valueTensor, err := ort.NewEmptyTensor[float32](ort.NewShape(n, 1))
	if err != nil {
		c.failBatch(requests, err)
		return
	}
	defer valueTensor.Destroy()

	if err := c.session.Run([]ort.Value{inputTensor}, []ort.Value{policyTensor, valueTensor}); err != nil {
		c.failBatch(requests, err)
		return
	}

	policyData := policyTensor.GetData()
	valueData := valueTensor.GetData()
	ps := c.cfg.policySize()
	for i, req := range requests {
		policy := make([]float32, ps)
		copy(policy, policyData[i*ps:(i+1)*ps])
		req.resp <- response{policy: policy, value: valueData[i]}
	}
}

func (c *Client) failBatch(requests []request, err error) {
	for _, req := range requests {
		req.resp <- response{err: err}
	}
}
