package manager

import (
	"context"
	"encoding/json"
	"io/fs"

	"specd/pkg/types"
)

// InferenceAdapter abstracts the runtime that evaluates one model format.
type InferenceAdapter interface {
	// Start loads the model and prepares a session for one request.
	Start(ctx context.Context, mdl types.Model, files ModelFiles) (InferSession, error)
}

// InferSession represents a loaded model for the lifetime of one request.
type InferSession interface {
	// Predict evaluates data and returns the model output as JSON.
	// Implementations must return when the context is canceled.
	Predict(ctx context.Context, data json.RawMessage) (json.RawMessage, error)
	// Close releases any resources associated with the session.
	Close() error
}

// ModelFiles locates a resolved model for an adapter.
type ModelFiles struct {
	// FS is the project's model folder; Name is relative to it.
	FS   fs.FS
	Name string
	// AbsPath is the OS path handed to external tools.
	AbsPath string
}
