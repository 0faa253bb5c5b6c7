package manager

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"specd/internal/common/fsutil"
	"specd/internal/convert"
	"specd/internal/registry"
	"specd/internal/store"
	"specd/pkg/types"
)

// AllowedExtensions lists the accepted model upload extensions, compared
// against the lower-cased text after the last dot of the client filename.
var AllowedExtensions = map[string]struct{}{
	"json":       {},
	"h5":         {},
	"model.json": {},
}

// weightsExtension is the only extension accepted for weight shard parts.
const weightsExtension = "bin"

// Upload messages returned to clients.
const (
	MsgFileSaved      = "File saved"
	MsgModelConverted = "TensorFlow.js model converted and saved"
)

// FilePart is one uploaded file.
type FilePart struct {
	Name string
	Body io.Reader
}

// ModelUpload is an AI model upload with optional TF.js weight shards.
type ModelUpload struct {
	Project string
	File    *FilePart
	Weights []FilePart
}

func allowedExtension(name string) bool {
	_, ok := AllowedExtensions[fsutil.Ext(name)]
	return ok
}

// SaveModel writes the uploaded model under the project's model folder. TF.js
// (.json) uploads are converted to a sibling .h5 file and the converted path is
// reported; conversion errors are returned as-is and the raw file stays.
func (m *Manager) SaveModel(ctx context.Context, up ModelUpload) (types.UploadModelResponse, error) {
	if up.Project == "" || up.File == nil || up.File.Name == "" {
		return types.UploadModelResponse{}, ErrMissingField("Missing project_id or file")
	}
	if !allowedExtension(up.File.Name) {
		return types.UploadModelResponse{}, ErrInvalidInput("File type not allowed")
	}
	if err := store.ValidateProject(up.Project); err != nil {
		return types.UploadModelResponse{}, ErrInvalidInput("Invalid project_id")
	}
	name := fsutil.SanitizeFilename(up.File.Name)
	if name == "" {
		return types.UploadModelResponse{}, ErrInvalidInput("Invalid filename")
	}
	isTFJS := fsutil.Ext(up.File.Name) == "json"
	if len(up.Weights) > 0 && !isTFJS {
		return types.UploadModelResponse{}, ErrInvalidInput("Weights are only accepted with TensorFlow.js models")
	}
	weightNames := make([]string, len(up.Weights))
	for i, w := range up.Weights {
		if fsutil.Ext(w.Name) != weightsExtension {
			return types.UploadModelResponse{}, ErrInvalidInput("File type not allowed")
		}
		weightNames[i] = fsutil.SanitizeFilename(w.Name)
		if weightNames[i] == "" {
			return types.UploadModelResponse{}, ErrInvalidInput("Invalid filename")
		}
	}

	for i, w := range up.Weights {
		if _, err := m.store.Write(up.Project, store.ModelFolder, weightNames[i], w.Body); err != nil {
			m.setErr(err)
			return types.UploadModelResponse{}, fmt.Errorf("save weights %s: %w", weightNames[i], err)
		}
	}
	n, err := m.store.Write(up.Project, store.ModelFolder, name, up.File.Body)
	if err != nil {
		m.setErr(err)
		return types.UploadModelResponse{}, fmt.Errorf("save model %s: %w", name, err)
	}
	m.models.Add(1)
	m.log.Info().Str("project", up.Project).Str("file", name).Int64("bytes", n).Int("weights", len(up.Weights)).Msg("model saved")
	m.publish(EventModelSaved, up.Project, map[string]any{"file": name, "bytes": n})

	if !isTFJS {
		return types.UploadModelResponse{
			Message: MsgFileSaved,
			Path:    m.store.Path(up.Project, store.ModelFolder, name),
		}, nil
	}

	dst := convertedName(name)
	if err := m.convert(ctx, up.Project, name, dst); err != nil {
		return types.UploadModelResponse{}, err
	}
	return types.UploadModelResponse{
		Message: MsgModelConverted,
		Path:    m.store.Path(up.Project, store.ModelFolder, dst),
	}, nil
}

// convertedName swaps the extension of a TF.js model filename for .h5.
func convertedName(name string) string {
	if i := strings.LastIndex(name, "."); i > 0 {
		name = name[:i]
	}
	return name + ".h5"
}

func (m *Manager) convert(ctx context.Context, project, src, dst string) error {
	srcPath, err := m.store.AbsPath(project, store.ModelFolder, src)
	if err != nil {
		return err
	}
	dstPath, err := m.store.AbsPath(project, store.ModelFolder, dst)
	if err != nil {
		return err
	}
	if err := m.currentConverter().Convert(ctx, srcPath, dstPath); err != nil {
		m.setErr(err)
		m.log.Error().Err(err).Str("project", project).Str("file", src).Msg("model conversion failed")
		m.publish(EventConvertFailed, project, map[string]any{"file": src, "error": err.Error()})
		if errors.Is(err, convert.ErrUnavailable) {
			return ErrDependencyUnavailable(err.Error())
		}
		return fmt.Errorf("convert %s: %w", src, err)
	}
	m.conversions.Add(1)
	m.log.Info().Str("project", project).Str("file", src).Str("output", dst).Msg("model converted")
	m.publish(EventModelConverted, project, map[string]any{"file": src, "output": dst})
	return nil
}

// ListModels returns the models stored for project, sorted by filename.
func (m *Manager) ListModels(project string) ([]types.Model, error) {
	if err := store.ValidateProject(project); err != nil {
		return nil, ErrInvalidInput("Invalid project_id")
	}
	return registry.Scan(m.store, project)
}
