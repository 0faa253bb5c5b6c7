package manager

import (
	"context"
	"encoding/binary"
	"encoding/json"
	"errors"
	"math"
	"os"
	"strings"
	"sync"
	"testing"

	"specd/internal/store"
	"specd/pkg/types"
)

func newTestManager(t *testing.T, cfg ManagerConfig) (*Manager, *store.Store) {
	t.Helper()
	st, err := store.Open(t.TempDir())
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { _ = st.Close() })
	cfg.Store = st
	if cfg.Converter == nil {
		cfg.Converter = &fakeConverter{}
	}
	return NewWithConfig(cfg), st
}

// fakeConverter records calls and writes a placeholder output file.
type fakeConverter struct {
	mu    sync.Mutex
	err   error
	calls [][2]string
}

func (c *fakeConverter) Convert(ctx context.Context, src, dst string) error {
	c.mu.Lock()
	c.calls = append(c.calls, [2]string{src, dst})
	c.mu.Unlock()
	if c.err != nil {
		return c.err
	}
	return os.WriteFile(dst, []byte("HDF5"), 0o644)
}

// fakeAdapter is a lightweight in-memory adapter used for tests.
type fakeAdapter struct {
	startErr error
	out      json.RawMessage
	block    chan struct{}
	started  chan struct{}
	received json.RawMessage
	files    ModelFiles
}

func (f *fakeAdapter) Start(ctx context.Context, mdl types.Model, files ModelFiles) (InferSession, error) {
	if f.startErr != nil {
		return nil, f.startErr
	}
	f.files = files
	return &fakeSession{f: f}, nil
}

type fakeSession struct{ f *fakeAdapter }

func (s *fakeSession) Predict(ctx context.Context, data json.RawMessage) (json.RawMessage, error) {
	s.f.received = data
	if s.f.started != nil {
		s.f.started <- struct{}{}
	}
	if s.f.block != nil {
		select {
		case <-s.f.block:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	return s.f.out, nil
}

func (s *fakeSession) Close() error { return nil }

var errBoom = errors.New("boom")

func float32Bytes(vals ...float32) []byte {
	b := make([]byte, 4*len(vals))
	for i, v := range vals {
		binary.LittleEndian.PutUint32(b[i*4:], math.Float32bits(v))
	}
	return b
}

// tinyModelJSON is a Dense(2->1, linear) TF.js model reading weights.bin.
const tinyModelJSON = `{
  "format": "layers-model",
  "modelTopology": {"class_name": "Sequential", "config": {"name": "tiny", "layers": [
    {"class_name": "Dense", "config": {"name": "d", "units": 1, "activation": "linear", "batch_input_shape": [null, 2]}}
  ]}},
  "weightsManifest": [{"paths": ["weights.bin"], "weights": [
    {"name": "d/kernel", "shape": [2, 1], "dtype": "float32"},
    {"name": "d/bias", "shape": [1], "dtype": "float32"}
  ]}]
}`

func part(name, body string) *FilePart {
	return &FilePart{Name: name, Body: strings.NewReader(body)}
}
