package fs

import (
	"fmt"
	"io"
	"io/fs"
	"os"

	"github.com/guijianchou/IDM-Download-Monitor/internal/monitor"
)

// OSFilesystemManager is the real filesystem implementation of FilesystemManager.
type OSFilesystemManager struct{}

// NewOSFilesystemManager creates a filesystem manager that operates on the real filesystem.
func NewOSFilesystemManager() *OSFilesystemManager {
	return &OSFilesystemManager{}
}

// ReadDir lists a directory sorted by name.
func (m *OSFilesystemManager) ReadDir(dir string) ([]fs.DirEntry, error) {
	return os.ReadDir(dir)
}

// Lstat returns file info without following symbolic links.
func (m *OSFilesystemManager) Lstat(path string) (fs.FileInfo, error) {
	return os.Lstat(path)
}

// Open opens a regular file for reading. Symlinks, devices, pipes and sockets are
// refused so hashing never leaves the monitored tree or blocks on a FIFO.
func (m *OSFilesystemManager) Open(path string) (io.ReadCloser, error) {
	info, err := os.Lstat(path)
	if err != nil {
		return nil, err
	}
	mode := info.Mode()
	switch {
	case mode&os.ModeSymlink != 0:
		return nil, fmt.Errorf("symlinks not supported: %s", path)
	case mode&os.ModeDevice != 0:
		return nil, fmt.Errorf("device files not supported: %s", path)
	case mode&os.ModeNamedPipe != 0:
		return nil, fmt.Errorf("named pipes not supported: %s", path)
	case mode&os.ModeSocket != 0:
		return nil, fmt.Errorf("sockets not supported: %s", path)
	case mode.IsDir():
		return nil, fmt.Errorf("cannot open directory as file: %s", path)
	}
	return os.Open(path)
}

// MkdirAll creates dir and its parents.
func (m *OSFilesystemManager) MkdirAll(dir string) error {
	return os.MkdirAll(dir, 0755)
}

// Rename moves oldPath to newPath.
func (m *OSFilesystemManager) Rename(oldPath, newPath string) error {
	return os.Rename(oldPath, newPath)
}

// Compile-time check that OSFilesystemManager implements monitor.FilesystemManager
var _ monitor.FilesystemManager = (*OSFilesystemManager)(nil)
