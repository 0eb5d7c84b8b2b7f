package vault

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"sync"

	"github.com/guijianchou/IDM-Download-Monitor/internal/monitor"
)

// MemoryVault keeps archives in memory. It is safe for concurrent use and is
// mostly useful for tests and for `type = "memory"` trial configurations.
type MemoryVault struct {
	name     string
	archives map[string][]byte
	versions map[string]int64
	mu       sync.RWMutex
}

// NewMemoryVault creates an empty in-memory vault.
func NewMemoryVault(name string) *MemoryVault {
	return &MemoryVault{
		name:     name,
		archives: make(map[string][]byte),
		versions: make(map[string]int64),
	}
}

// PutArchive stores the archive, replacing any previous one with the same name.
func (m *MemoryVault) PutArchive(ctx context.Context, name string, r io.Reader, size int64, version int64) error {
	if err := validateName(name); err != nil {
		return err
	}
	data, err := io.ReadAll(r)
	if err != nil {
		return fmt.Errorf("failed to read archive: %w", err)
	}
	if int64(len(data)) != size {
		return fmt.Errorf("size mismatch: expected %d bytes, got %d", size, len(data))
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	m.archives[name] = data
	m.versions[name] = version
	return nil
}

// GetArchive writes the named archive to w.
func (m *MemoryVault) GetArchive(ctx context.Context, name string, w io.Writer) error {
	m.mu.RLock()
	defer m.mu.RUnlock()

	data, ok := m.archives[name]
	if !ok {
		return fmt.Errorf("%w: %s", ErrArchiveNotFound, name)
	}
	if _, err := io.Copy(w, bytes.NewReader(data)); err != nil {
		return fmt.Errorf("failed to write archive: %w", err)
	}
	return nil
}

// GetArchiveVersion returns 0 for an archive that was never stored.
func (m *MemoryVault) GetArchiveVersion(ctx context.Context, name string) (int64, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	return m.versions[name], nil
}

// ValidateSetup always succeeds.
func (m *MemoryVault) ValidateSetup(ctx context.Context) error {
	return nil
}

var _ monitor.Vault = (*MemoryVault)(nil)
