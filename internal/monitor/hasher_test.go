package monitor_test

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/guijianchou/IDM-Download-Monitor/internal/monitor"
	"github.com/guijianchou/IDM-Download-Monitor/internal/testutil"
)

func TestHasher_Hash(t *testing.T) {
	t.Parallel()
	mtime := time.Date(2024, 1, 1, 12, 0, 0, 0, time.Local)

	t.Run("hashes small and multi-chunk files", func(t *testing.T) {
		t.Parallel()
		root := t.TempDir()
		fsmgr := testutil.NewSpyFilesystemManager()
		h := monitor.NewHasher(fsmgr, 0, 16)

		small := []byte("hello")
		big := []byte(strings.Repeat("0123456789", 1000))
		smallPath := testutil.WriteFile(t, root, "small.txt", small, mtime)
		bigPath := testutil.WriteFile(t, root, "big.bin", big, mtime)

		got, err := h.Hash(smallPath, int64(len(small)))
		if err != nil {
			t.Fatalf("Hash() error = %v", err)
		}
		if want := testutil.SHA1Hex(small); got != want {
			t.Errorf("Hash() = %s, want %s", got, want)
		}

		got, err = h.Hash(bigPath, int64(len(big)))
		if err != nil {
			t.Fatalf("Hash() error = %v", err)
		}
		if want := testutil.SHA1Hex(big); got != want {
			t.Errorf("Hash() = %s, want %s", got, want)
		}
	})

	t.Run("skips files above the ceiling without opening them", func(t *testing.T) {
		t.Parallel()
		root := t.TempDir()
		fsmgr := testutil.NewSpyFilesystemManager()
		h := monitor.NewHasher(fsmgr, 10, 0)
		path := testutil.WriteFile(t, root, "large.iso", []byte("more than ten bytes"), mtime)

		got, err := h.Hash(path, 19)
		if err != nil {
			t.Fatalf("Hash() error = %v", err)
		}
		if got != monitor.HashSkipped {
			t.Errorf("Hash() = %s, want %s", got, monitor.HashSkipped)
		}
		if fsmgr.Opens(path) != 0 {
			t.Errorf("file opened %d times, want 0", fsmgr.Opens(path))
		}
	})

	t.Run("size at the ceiling is hashed", func(t *testing.T) {
		t.Parallel()
		root := t.TempDir()
		h := monitor.NewHasher(testutil.NewSpyFilesystemManager(), 5, 0)
		path := testutil.WriteFile(t, root, "five.txt", []byte("12345"), mtime)

		got, err := h.Hash(path, 5)
		if err != nil {
			t.Fatalf("Hash() error = %v", err)
		}
		if got == monitor.HashSkipped {
			t.Error("Hash() skipped a file exactly at the ceiling")
		}
	})

	t.Run("open failure is a ReadError", func(t *testing.T) {
		t.Parallel()
		root := t.TempDir()
		fsmgr := testutil.NewSpyFilesystemManager()
		path := testutil.WriteFile(t, root, "locked.pdf", []byte("x"), mtime)
		denied := errors.New("permission denied")
		fsmgr.FailOpen(path, denied)

		_, err := monitor.NewHasher(fsmgr, 0, 0).Hash(path, 1)
		var rerr *monitor.ReadError
		if !errors.As(err, &rerr) {
			t.Fatalf("Hash() error = %v, want *ReadError", err)
		}
		if rerr.Path != path {
			t.Errorf("ReadError.Path = %s, want %s", rerr.Path, path)
		}
		if !errors.Is(err, denied) {
			t.Errorf("Hash() error should wrap the open failure")
		}
		if fsmgr.Opens(path) != 1 {
			t.Errorf("file opened %d times, want exactly 1", fsmgr.Opens(path))
		}
	})
}

func TestHasher_ChunkSize(t *testing.T) {
	tests := []struct {
		name string
		hint int
		size int64
		want int
	}{
		{name: "small uses hint", hint: 8192, size: 100, want: 8192},
		{name: "default hint", hint: 0, size: 100, want: monitor.DefaultChunkSize},
		{name: "exactly 1 MiB uses hint", hint: 8192, size: 1 << 20, want: 8192},
		{name: "medium uses 64 KiB", hint: 8192, size: 2 << 20, want: 64 << 10},
		{name: "medium keeps a larger hint", hint: 128 << 10, size: 2 << 20, want: 128 << 10},
		{name: "large uses 1 MiB", hint: 8192, size: 100 << 20, want: 1 << 20},
		{name: "hint capped at 1 MiB", hint: 4 << 20, size: 10, want: 1 << 20},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			h := monitor.NewHasher(nil, 0, tt.hint)
			if got := h.ChunkSize(tt.size); got != tt.want {
				t.Errorf("ChunkSize(%d) = %d, want %d", tt.size, got, tt.want)
			}
		})
	}
}
