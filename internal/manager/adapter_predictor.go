package manager

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os/exec"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"specd/pkg/types"
)

const predictorStderrTail = 2048

// predictorAdapter evaluates Keras models by running an external command:
//
//	<bin> [args...] <model-path>
//
// The request data is written to stdin as JSON and the predictions are read
// back from stdout as JSON.
type predictorAdapter struct {
	bin     string
	args    []string
	timeout time.Duration
	log     zerolog.Logger
}

// NewPredictorAdapter returns the adapter for .h5 models. An empty bin makes
// every Start fail with a dependency-unavailable error.
func NewPredictorAdapter(bin string, args []string, timeout time.Duration, log zerolog.Logger) InferenceAdapter {
	return &predictorAdapter{bin: strings.TrimSpace(bin), args: args, timeout: timeout, log: log}
}

// lookPath resolves the configured predictor binary.
func (a *predictorAdapter) lookPath() (string, error) {
	if a.bin == "" {
		return "", ErrDependencyUnavailable("keras predictor not configured")
	}
	p, err := exec.LookPath(a.bin)
	if err != nil {
		return "", ErrDependencyUnavailable(fmt.Sprintf("keras predictor %q not found: %v", a.bin, err))
	}
	return p, nil
}

func (a *predictorAdapter) Start(ctx context.Context, mdl types.Model, files ModelFiles) (InferSession, error) {
	bin, err := a.lookPath()
	if err != nil {
		return nil, err
	}
	if files.AbsPath == "" {
		return nil, errors.New("model path is empty")
	}
	return &predictorSession{a: a, bin: bin, modelPath: files.AbsPath}, nil
}

type predictorSession struct {
	a         *predictorAdapter
	bin       string
	modelPath string
}

func (s *predictorSession) Predict(ctx context.Context, data json.RawMessage) (json.RawMessage, error) {
	if s.a.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.a.timeout)
		defer cancel()
	}
	args := append(append([]string{}, s.a.args...), s.modelPath)
	cmd := exec.CommandContext(ctx, s.bin, args...)
	cmd.Stdin = bytes.NewReader(data)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	start := time.Now()
	err := cmd.Run()
	s.a.log.Debug().Str("model", s.modelPath).Dur("took", time.Since(start)).Err(err).Msg("predictor finished")
	if err != nil {
		if ctx.Err() != nil {
			return nil, fmt.Errorf("predictor: %w", ctx.Err())
		}
		return nil, fmt.Errorf("predictor failed: %v: %s", err, stderrTail(stderr.Bytes()))
	}
	out := bytes.TrimSpace(stdout.Bytes())
	if !json.Valid(out) {
		return nil, fmt.Errorf("predictor returned invalid JSON: %s", stderrTail(out))
	}
	// Accept either a bare prediction array or {"predictions": ...}.
	var wrapped struct {
		Predictions json.RawMessage `json:"predictions"`
	}
	if out[0] == '{' && json.Unmarshal(out, &wrapped) == nil && len(wrapped.Predictions) > 0 {
		return wrapped.Predictions, nil
	}
	return json.RawMessage(out), nil
}

func (s *predictorSession) Close() error { return nil }

func stderrTail(b []byte) string {
	b = bytes.TrimSpace(b)
	if len(b) > predictorStderrTail {
		b = b[len(b)-predictorStderrTail:]
	}
	return string(b)
}
