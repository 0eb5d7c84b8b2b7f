package testutil

import (
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	dlfs "github.com/guijianchou/IDM-Download-Monitor/internal/fs"
	"github.com/guijianchou/IDM-Download-Monitor/internal/monitor"
)

// SpyFilesystemManager wraps the real filesystem, counts calls and injects
// failures for chosen paths.
type SpyFilesystemManager struct {
	inner monitor.FilesystemManager

	mu         sync.Mutex
	opens      map[string]int
	renames    []string
	openErrs   map[string]error
	lstatErrs  map[string]error
	readErrs   map[string]error
	renameErrs map[string]error
}

// NewSpyFilesystemManager creates a spy over the OS filesystem.
func NewSpyFilesystemManager() *SpyFilesystemManager {
	return &SpyFilesystemManager{
		inner:      dlfs.NewOSFilesystemManager(),
		opens:      make(map[string]int),
		openErrs:   make(map[string]error),
		lstatErrs:  make(map[string]error),
		readErrs:   make(map[string]error),
		renameErrs: make(map[string]error),
	}
}

// FailOpen makes every Open of path return err.
func (m *SpyFilesystemManager) FailOpen(path string, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.openErrs[filepath.Clean(path)] = err
}

// FailLstat makes every Lstat of path return err.
func (m *SpyFilesystemManager) FailLstat(path string, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.lstatErrs[filepath.Clean(path)] = err
}

// FailReadDir makes every ReadDir of dir return err.
func (m *SpyFilesystemManager) FailReadDir(dir string, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.readErrs[filepath.Clean(dir)] = err
}

// FailRename makes renaming from oldPath return err.
func (m *SpyFilesystemManager) FailRename(oldPath string, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.renameErrs[filepath.Clean(oldPath)] = err
}

// Opens returns how many times path was opened.
func (m *SpyFilesystemManager) Opens(path string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.opens[filepath.Clean(path)]
}

// TotalOpens returns the number of Open calls across all paths.
func (m *SpyFilesystemManager) TotalOpens() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	total := 0
	for _, n := range m.opens {
		total += n
	}
	return total
}

// Renames returns every successful rename as "old -> new".
func (m *SpyFilesystemManager) Renames() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.renames...)
}

func (m *SpyFilesystemManager) ReadDir(dir string) ([]fs.DirEntry, error) {
	m.mu.Lock()
	err := m.readErrs[filepath.Clean(dir)]
	m.mu.Unlock()
	if err != nil {
		return nil, err
	}
	return m.inner.ReadDir(dir)
}

func (m *SpyFilesystemManager) Lstat(path string) (fs.FileInfo, error) {
	m.mu.Lock()
	err := m.lstatErrs[filepath.Clean(path)]
	m.mu.Unlock()
	if err != nil {
		return nil, err
	}
	return m.inner.Lstat(path)
}

func (m *SpyFilesystemManager) Open(path string) (io.ReadCloser, error) {
	m.mu.Lock()
	m.opens[filepath.Clean(path)]++
	err := m.openErrs[filepath.Clean(path)]
	m.mu.Unlock()
	if err != nil {
		return nil, err
	}
	return m.inner.Open(path)
}

func (m *SpyFilesystemManager) MkdirAll(dir string) error {
	return m.inner.MkdirAll(dir)
}

func (m *SpyFilesystemManager) Rename(oldPath, newPath string) error {
	m.mu.Lock()
	err := m.renameErrs[filepath.Clean(oldPath)]
	m.mu.Unlock()
	if err != nil {
		return err
	}
	if err := m.inner.Rename(oldPath, newPath); err != nil {
		return err
	}
	m.mu.Lock()
	m.renames = append(m.renames, oldPath+" -> "+newPath)
	m.mu.Unlock()
	return nil
}

// WriteFile creates root/relPath (slash-separated) with content and mtime,
// creating parent folders as needed. It returns the absolute path.
func WriteFile(t *testing.T, root, relPath string, content []byte, mtime time.Time) string {
	t.Helper()
	path := filepath.Join(root, filepath.FromSlash(relPath))
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		t.Fatalf("creating parent of %s: %v", relPath, err)
	}
	if err := os.WriteFile(path, content, 0644); err != nil {
		t.Fatalf("writing %s: %v", relPath, err)
	}
	if err := os.Chtimes(path, mtime, mtime); err != nil {
		t.Fatalf("setting mtime of %s: %v", relPath, err)
	}
	return path
}

// FileExists reports whether root/relPath exists.
func FileExists(t *testing.T, root, relPath string) bool {
	t.Helper()
	_, err := os.Lstat(filepath.Join(root, filepath.FromSlash(relPath)))
	return err == nil
}

// ReadFile returns the content of root/relPath.
func ReadFile(t *testing.T, root, relPath string) []byte {
	t.Helper()
	data, err := os.ReadFile(filepath.Join(root, filepath.FromSlash(relPath)))
	if err != nil {
		t.Fatalf("reading %s: %v", relPath, err)
	}
	return data
}

// Compile-time check
var _ monitor.FilesystemManager = (*SpyFilesystemManager)(nil)
