package store

import "errors"

// Sentinel errors, checked with errors.Is.
var (
	// ErrNotFound indicates the requested file or folder does not exist.
	ErrNotFound = errors.New("file not found")
	// ErrInvalidProject indicates a project id that is not a single safe path element.
	ErrInvalidProject = errors.New("invalid project id")
	// ErrInvalidPath indicates a folder or filename that would leave the project tree.
	ErrInvalidPath = errors.New("invalid path")
)
