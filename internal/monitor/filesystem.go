package monitor

import (
	"io"
	"io/fs"
)

// FilesystemManager is the set of filesystem operations the core performs.
// All paths are absolute OS paths.
type FilesystemManager interface {
	// ReadDir lists a directory sorted by file name.
	ReadDir(dir string) ([]fs.DirEntry, error)

	// Lstat returns file info without following symbolic links.
	Lstat(path string) (fs.FileInfo, error)

	// Open opens a regular file for reading.
	Open(path string) (io.ReadCloser, error)

	// MkdirAll creates a directory and any missing parents.
	MkdirAll(dir string) error

	// Rename moves a file. Callers check that newPath is free beforehand.
	Rename(oldPath, newPath string) error
}

// NameFilter decides whether a basename is reserved and must not be monitored.
type NameFilter interface {
	Match(name string) bool
}
