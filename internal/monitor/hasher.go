package monitor

import (
	"crypto/sha1"
	"encoding/hex"
	"io"
)

const (
	// DefaultChunkSize is used when no chunk-size hint is configured.
	DefaultChunkSize = 4096

	mediumFileSize  = 1 << 20
	largeFileSize   = 64 << 20
	mediumChunkSize = 64 << 10
	maxChunkSize    = 1 << 20
)

// Hasher computes SHA-1 content digests with size-aware chunked reads.
type Hasher struct {
	fsmgr     FilesystemManager
	maxSize   int64
	chunkHint int
}

// NewHasher returns a Hasher that skips files larger than maxSize bytes
// (0 disables the ceiling). chunkHint is the read size for small files.
func NewHasher(fsmgr FilesystemManager, maxSize int64, chunkHint int) *Hasher {
	if chunkHint <= 0 {
		chunkHint = DefaultChunkSize
	}
	if chunkHint > maxChunkSize {
		chunkHint = maxChunkSize
	}
	return &Hasher{fsmgr: fsmgr, maxSize: maxSize, chunkHint: chunkHint}
}

// ChunkSize returns the read size for a file of the given size: the hint for
// files up to 1 MiB, 64 KiB up to 64 MiB and 1 MiB beyond, never below the hint.
func (h *Hasher) ChunkSize(size int64) int {
	switch {
	case size <= mediumFileSize:
		return h.chunkHint
	case size <= largeFileSize:
		return max(h.chunkHint, mediumChunkSize)
	default:
		return maxChunkSize
	}
}

// Hash returns the hex digest of the file at path, or HashSkipped when size
// exceeds the ceiling. Failures are returned as *ReadError and are not retried.
func (h *Hasher) Hash(path string, size int64) (string, error) {
	if h.maxSize > 0 && size > h.maxSize {
		return HashSkipped, nil
	}

	f, err := h.fsmgr.Open(path)
	if err != nil {
		return "", &ReadError{Path: path, Err: err}
	}
	defer f.Close()

	sum := sha1.New()
	buf := make([]byte, h.ChunkSize(size))
	for {
		n, err := f.Read(buf)
		if n > 0 {
			sum.Write(buf[:n])
		}
		if err == io.EOF {
			break
		}
		if err != nil {
			return "", &ReadError{Path: path, Err: err}
		}
	}

	return hex.EncodeToString(sum.Sum(nil)), nil
}
