// Package convert turns TensorFlow.js layers models into Keras HDF5 files by
// delegating to the tensorflowjs_converter tool.
package convert

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// DefaultBin is the converter looked up on PATH when none is configured.
const DefaultBin = "tensorflowjs_converter"

const (
	defaultTimeout = 5 * time.Minute
	stderrTail     = 2048
)

// ErrUnavailable reports that the converter binary cannot be found.
var ErrUnavailable = errors.New("model converter unavailable")

// Converter writes a Keras model converted from the TF.js model at src to dst.
type Converter interface {
	Convert(ctx context.Context, src, dst string) error
}

// CommandConverter runs tensorflowjs_converter as a subprocess.
type CommandConverter struct {
	Bin     string
	Timeout time.Duration
	Log     zerolog.Logger
}

// NewCommandConverter returns a converter for bin (DefaultBin when empty).
// A non-positive timeout selects the package default.
func NewCommandConverter(bin string, timeout time.Duration, log zerolog.Logger) *CommandConverter {
	if strings.TrimSpace(bin) == "" {
		bin = DefaultBin
	}
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	return &CommandConverter{Bin: bin, Timeout: timeout, Log: log}
}

// Args returns the converter arguments for a src/dst pair.
func Args(src, dst string) []string {
	return []string{
		"--input_format=tfjs_layers_model",
		"--output_format=keras",
		src,
		dst,
	}
}

// LookPath resolves the converter binary.
func (c *CommandConverter) LookPath() (string, error) {
	p, err := exec.LookPath(c.Bin)
	if err != nil {
		return "", fmt.Errorf("%w: %s: %v", ErrUnavailable, c.Bin, err)
	}
	return p, nil
}

func (c *CommandConverter) Convert(ctx context.Context, src, dst string) error {
	bin, err := c.LookPath()
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(ctx, c.Timeout)
	defer cancel()

	start := time.Now()
	cmd := exec.CommandContext(ctx, bin, Args(src, dst)...)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	c.Log.Debug().Str("bin", bin).Str("src", src).Str("dst", dst).Msg("convert start")
	if err := cmd.Run(); err != nil {
		if ctx.Err() != nil {
			return fmt.Errorf("convert %s: %w", src, ctx.Err())
		}
		return fmt.Errorf("convert %s: %w: %s", src, err, tail(stderr.Bytes()))
	}
	fi, err := os.Stat(dst)
	if err != nil {
		return fmt.Errorf("convert %s: converter produced no output: %w", src, err)
	}
	c.Log.Info().Str("dst", dst).Int64("bytes", fi.Size()).Dur("dur", time.Since(start)).Msg("convert done")
	return nil
}

func tail(b []byte) string {
	b = bytes.TrimSpace(b)
	if len(b) > stderrTail {
		b = b[len(b)-stderrTail:]
	}
	return string(b)
}
