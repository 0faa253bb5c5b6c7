// Package store persists project artifacts below a single upload directory.
//
// Layout: <dir>/<project>/<folder>/<name>, where folder is one of Folders.
// All access goes through an os.Root opened on <dir>, so no operation can
// resolve outside of it, symlinks included.
package store

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"

	"github.com/google/uuid"

	"specd/internal/common/fsutil"
)

// Known project folders.
const (
	SpectrogramFolder = "jsondata"
	ModelFolder       = "aiModels"
)

// Folders lists the project folders in listing order.
var Folders = []string{SpectrogramFolder, ModelFolder}

const (
	dirPerm  = 0o755
	filePerm = 0o644
)

// Store is a project-scoped artifact store rooted at one directory.
type Store struct {
	dir  string // as configured, used when reporting paths
	abs  string
	root *os.Root
}

// Open creates dir when missing and returns a Store sandboxed to it.
func Open(dir string) (*Store, error) {
	if strings.TrimSpace(dir) == "" {
		return nil, fmt.Errorf("empty upload dir")
	}
	expanded, err := fsutil.ExpandHome(dir)
	if err != nil {
		return nil, err
	}
	abs, err := filepath.Abs(expanded)
	if err != nil {
		return nil, fmt.Errorf("abs path: %w", err)
	}
	if err := os.MkdirAll(abs, dirPerm); err != nil {
		return nil, fmt.Errorf("create upload dir: %w", err)
	}
	root, err := os.OpenRoot(abs)
	if err != nil {
		return nil, fmt.Errorf("open upload root: %w", err)
	}
	return &Store{dir: expanded, abs: abs, root: root}, nil
}

// Close releases the root handle.
func (s *Store) Close() error { return s.root.Close() }

// Dir returns the upload directory as configured.
func (s *Store) Dir() string { return s.dir }

// IsKnownFolder reports whether folder is one of Folders.
func IsKnownFolder(folder string) bool {
	for _, f := range Folders {
		if f == folder {
			return true
		}
	}
	return false
}

// ValidateProject checks that id can name a project directory.
func ValidateProject(id string) error {
	if !fsutil.IsSafeElement(id) {
		return fmt.Errorf("%w: %q", ErrInvalidProject, id)
	}
	return nil
}

// rel returns the slash-separated path of name relative to the root.
func rel(project, folder, name string) (string, error) {
	if err := ValidateProject(project); err != nil {
		return "", err
	}
	if !IsKnownFolder(folder) {
		return "", fmt.Errorf("%w: unknown folder %q", ErrInvalidPath, folder)
	}
	if name == "" {
		return path.Join(project, folder), nil
	}
	if !fsutil.IsSafeElement(name) {
		return "", fmt.Errorf("%w: %q", ErrInvalidPath, name)
	}
	return path.Join(project, folder, name), nil
}

// Path returns the reported path of a stored file, joined onto the
// configured upload directory (e.g. uploads/p1/aiModels/model.h5).
func (s *Store) Path(project, folder, name string) string {
	return filepath.Join(s.dir, project, folder, name)
}

// AbsPath returns the absolute OS path of a stored file after validating its
// components. It is meant for handing files to external tools.
func (s *Store) AbsPath(project, folder, name string) (string, error) {
	r, err := rel(project, folder, name)
	if err != nil {
		return "", err
	}
	return filepath.Join(s.abs, filepath.FromSlash(r)), nil
}

// Write stores the content of r under project/folder/name, creating
// directories as needed. The content is written to a hidden temporary file
// and renamed into place, so concurrent writers of the same name resolve to
// last-writer-wins without readers ever seeing a partial file.
func (s *Store) Write(project, folder, name string, r io.Reader) (int64, error) {
	target, err := rel(project, folder, name)
	if err != nil {
		return 0, err
	}
	if err := s.root.MkdirAll(path.Dir(target), dirPerm); err != nil {
		return 0, fmt.Errorf("create %s: %w", path.Dir(target), err)
	}
	// Fixed-length temp name; any legal element name must fit beside it.
	tmp := path.Join(path.Dir(target), ".tmp-"+uuid.NewString())
	f, err := s.root.OpenFile(tmp, os.O_WRONLY|os.O_CREATE|os.O_EXCL, filePerm)
	if err != nil {
		return 0, fmt.Errorf("create temp file: %w", err)
	}
	n, err := io.Copy(f, r)
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		_ = s.root.Remove(tmp)
		return n, fmt.Errorf("write %s: %w", target, err)
	}
	if err := s.root.Rename(tmp, target); err != nil {
		_ = s.root.Remove(tmp)
		return n, fmt.Errorf("rename into %s: %w", target, err)
	}
	return n, nil
}

// WriteFile is Write for in-memory content.
func (s *Store) WriteFile(project, folder, name string, data []byte) error {
	_, err := s.Write(project, folder, name, bytes.NewReader(data))
	return err
}

// Exists reports whether project/folder/name is a regular file.
func (s *Store) Exists(project, folder, name string) bool {
	fi, err := s.Stat(project, folder, name)
	return err == nil && fi.Mode().IsRegular()
}

// Stat returns file info for a stored file.
func (s *Store) Stat(project, folder, name string) (fs.FileInfo, error) {
	r, err := rel(project, folder, name)
	if err != nil {
		return nil, err
	}
	fi, err := s.root.Stat(r)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, r)
		}
		return nil, err
	}
	return fi, nil
}

// Open opens a stored regular file for reading. The caller closes it.
func (s *Store) Open(project, folder, name string) (*os.File, fs.FileInfo, error) {
	r, err := rel(project, folder, name)
	if err != nil {
		return nil, nil, err
	}
	f, err := s.root.Open(r)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil, fmt.Errorf("%w: %s", ErrNotFound, r)
		}
		return nil, nil, err
	}
	fi, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, nil, err
	}
	if !fi.Mode().IsRegular() {
		f.Close()
		return nil, nil, fmt.Errorf("%w: %s", ErrNotFound, r)
	}
	return f, fi, nil
}

// ReadDir lists the regular files of one project folder, sorted by name.
// Temporary files of in-flight writes are skipped. A missing folder yields
// ErrNotFound.
func (s *Store) ReadDir(project, folder string) ([]fs.DirEntry, error) {
	r, err := rel(project, folder, "")
	if err != nil {
		return nil, err
	}
	entries, err := fs.ReadDir(s.root.FS(), r)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, r)
		}
		return nil, err
	}
	out := entries[:0]
	for _, e := range entries {
		if strings.HasPrefix(e.Name(), ".") || !e.Type().IsRegular() {
			continue
		}
		out = append(out, e)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name() < out[j].Name() })
	return out, nil
}

// List returns the filenames of every existing project folder. Missing
// folders, including a project that was never written, are omitted.
func (s *Store) List(project string) (map[string][]string, error) {
	if err := ValidateProject(project); err != nil {
		return nil, err
	}
	out := make(map[string][]string, len(Folders))
	for _, folder := range Folders {
		entries, err := s.ReadDir(project, folder)
		if errors.Is(err, ErrNotFound) {
			continue
		}
		if err != nil {
			return nil, err
		}
		names := make([]string, 0, len(entries))
		for _, e := range entries {
			names = append(names, e.Name())
		}
		out[folder] = names
	}
	return out, nil
}

// FolderFS returns a read-only view of one project folder.
func (s *Store) FolderFS(project, folder string) (fs.FS, error) {
	r, err := rel(project, folder, "")
	if err != nil {
		return nil, err
	}
	return fs.Sub(s.root.FS(), r)
}

// Writable reports whether the upload root still accepts writes.
func (s *Store) Writable() error {
	probe := ".probe-" + uuid.NewString()
	if err := s.root.WriteFile(probe, nil, filePerm); err != nil {
		return fmt.Errorf("upload dir not writable: %w", err)
	}
	return s.root.Remove(probe)
}
