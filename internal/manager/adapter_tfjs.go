package manager

import (
	"context"
	"encoding/json"
	"fmt"

	"specd/internal/tfjs"
	"specd/pkg/types"
)

// tfjsAdapter evaluates TF.js layers models in process.
type tfjsAdapter struct{}

// NewTFJSAdapter returns the adapter for .json models.
func NewTFJSAdapter() InferenceAdapter { return tfjsAdapter{} }

func (tfjsAdapter) Start(ctx context.Context, mdl types.Model, files ModelFiles) (InferSession, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	model, err := tfjs.Load(files.FS, files.Name)
	if err != nil {
		return nil, fmt.Errorf("load %s: %w", mdl.ID, err)
	}
	return &tfjsSession{model: model}, nil
}

type tfjsSession struct{ model *tfjs.Model }

func (s *tfjsSession) Predict(ctx context.Context, data json.RawMessage) (json.RawMessage, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return s.model.PredictJSON(data)
}

func (s *tfjsSession) Close() error { return nil }
