package manager

import (
	"errors"
	"io/fs"
	"os"
	"path"

	"specd/internal/store"
	"specd/pkg/types"
)

// ListFiles maps each existing folder of project to its sorted filenames.
// A project without uploads yields an empty listing.
func (m *Manager) ListFiles(project string) (types.FileListing, error) {
	if err := store.ValidateProject(project); err != nil {
		return nil, ErrInvalidInput("Invalid project_id")
	}
	listing, err := m.store.List(project)
	if err != nil {
		return nil, err
	}
	return types.FileListing(listing), nil
}

// OpenFile opens a stored file for reading. Unknown folders, unsafe names
// missing files and paths escaping the root all report not found. The caller closes the file.
func (m *Manager) OpenFile(project, folder, name string) (*os.File, fs.FileInfo, error) {
	f, fi, err := m.store.Open(project, folder, name)
	if err != nil {
		// Root escapes (symlinks pointing outside) land here as well.
		if !errors.Is(err, store.ErrNotFound) {
			m.log.Debug().Err(err).Str("project", project).Str("folder", folder).Str("file", name).Msg("open stored file")
		}
		return nil, nil, notFoundError{path: path.Join(project, folder, name)}
	}
	return f, fi, nil
}
