package manager

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"time"

	"specd/internal/registry"
	"specd/internal/store"
	"specd/pkg/types"
)

// Model resolves a stored model of project by filename.
func (m *Manager) Model(project, name string) (types.Model, error) {
	if err := store.ValidateProject(project); err != nil {
		return types.Model{}, ErrInvalidInput("Invalid project_id")
	}
	mdl, err := registry.Resolve(m.store, project, name)
	if err != nil {
		if errors.Is(err, registry.ErrModelNotFound) {
			return types.Model{}, ErrModelNotFound(name)
		}
		return types.Model{}, err
	}
	return mdl, nil
}

// Predict loads the named model of project from disk and evaluates data with
// the adapter for its format. Models are not cached between calls.
func (m *Manager) Predict(ctx context.Context, project, modelName string, data json.RawMessage) (json.RawMessage, error) {
	mdl, err := m.Model(project, modelName)
	if err != nil {
		return nil, err
	}
	if d := bytes.TrimSpace(data); len(d) == 0 || bytes.Equal(d, []byte("null")) {
		return nil, ErrMissingField("Missing data")
	}
	adapter := m.adapterFor(registry.Format(mdl.Format))
	if adapter == nil {
		return nil, ErrInvalidInput("Unsupported model format")
	}

	modelID := project + "/" + mdl.ID
	release, err := m.beginInference(ctx, modelID)
	if err != nil {
		return nil, err
	}
	defer release()

	fsys, err := m.store.FolderFS(project, store.ModelFolder)
	if err != nil {
		return nil, err
	}
	abs, err := m.store.AbsPath(project, store.ModelFolder, mdl.ID)
	if err != nil {
		return nil, err
	}

	start := time.Now()
	out, err := m.runInference(ctx, adapter, mdl, ModelFiles{FS: fsys, Name: mdl.ID, AbsPath: abs}, data)
	if err != nil {
		m.setErr(err)
		m.log.Error().Err(err).Str("model", modelID).Msg("inference failed")
		m.publish(EventInferenceFailed, project, map[string]any{"model": mdl.ID, "error": err.Error()})
		return nil, err
	}
	m.inferences.Add(1)
	took := time.Since(start)
	m.log.Info().Str("model", modelID).Str("format", mdl.Format).Dur("took", took).Msg("inference done")
	m.publish(EventInferenceDone, project, map[string]any{"model": mdl.ID, "took_ms": took.Milliseconds()})
	return out, nil
}

func (m *Manager) runInference(ctx context.Context, a InferenceAdapter, mdl types.Model, files ModelFiles, data json.RawMessage) (json.RawMessage, error) {
	sess, err := a.Start(ctx, mdl, files)
	if err != nil {
		return nil, err
	}
	defer func() { _ = sess.Close() }()
	return sess.Predict(ctx, data)
}
