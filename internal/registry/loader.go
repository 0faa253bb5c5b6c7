package registry

import (
	"errors"
	"fmt"
	"strings"

	"specd/internal/common/fsutil"
	"specd/internal/store"
	"specd/pkg/types"
)

// Format identifies how a stored model is serialized.
type Format string

const (
	FormatUnknown Format = ""
	// FormatTFJS is a TensorFlow.js layers model (model.json + weight shards).
	FormatTFJS Format = "tfjs-layers"
	// FormatKeras is a Keras HDF5 model.
	FormatKeras Format = "keras-h5"
)

// ErrModelNotFound is returned when a project has no model file by that name.
var ErrModelNotFound = errors.New("model not found")

// DetectFormat maps a model filename to its serialization by extension.
func DetectFormat(name string) Format {
	switch fsutil.Ext(name) {
	case "json":
		return FormatTFJS
	case "h5":
		return FormatKeras
	default:
		return FormatUnknown
	}
}

// Scan lists the models stored for a project. Files of unknown format
// (weight shards, for instance) are skipped. A project without a model
// folder has no models.
func Scan(st *store.Store, project string) ([]types.Model, error) {
	entries, err := st.ReadDir(project, store.ModelFolder)
	if errors.Is(err, store.ErrNotFound) {
		return []types.Model{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("scan models: %w", err)
	}
	models := make([]types.Model, 0, len(entries))
	for _, e := range entries {
		format := DetectFormat(e.Name())
		if format == FormatUnknown {
			continue
		}
		var size int64
		if fi, err := e.Info(); err == nil {
			size = fi.Size()
		}
		models = append(models, types.Model{
			ID:        e.Name(),
			Project:   project,
			Path:      st.Path(project, store.ModelFolder, e.Name()),
			Format:    string(format),
			SizeBytes: size,
		})
	}
	return models, nil
}

// Resolve looks up one model of a project by filename.
func Resolve(st *store.Store, project, name string) (types.Model, error) {
	if strings.TrimSpace(name) == "" {
		return types.Model{}, fmt.Errorf("%w: (unspecified)", ErrModelNotFound)
	}
	fi, err := st.Stat(project, store.ModelFolder, name)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) || errors.Is(err, store.ErrInvalidPath) {
			return types.Model{}, fmt.Errorf("%w: %s", ErrModelNotFound, name)
		}
		return types.Model{}, err
	}
	if !fi.Mode().IsRegular() {
		return types.Model{}, fmt.Errorf("%w: %s", ErrModelNotFound, name)
	}
	return types.Model{
		ID:        name,
		Project:   project,
		Path:      st.Path(project, store.ModelFolder, name),
		Format:    string(DetectFormat(name)),
		SizeBytes: fi.Size(),
	}, nil
}
