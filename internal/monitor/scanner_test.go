package monitor_test

import (
	"os"
	"path/filepath"
	"reflect"
	"testing"
	"time"

	dlfs "github.com/guijianchou/IDM-Download-Monitor/internal/fs"
	"github.com/guijianchou/IDM-Download-Monitor/internal/monitor"
	"github.com/guijianchou/IDM-Download-Monitor/internal/testutil"
)

func relPaths(files []monitor.ScannedFile) []string {
	out := make([]string, len(files))
	for i, f := range files {
		out[i] = f.RelativePath
	}
	return out
}

func TestScanner_Scan(t *testing.T) {
	t.Parallel()
	root := t.TempDir()
	mtime := time.Date(2024, 2, 3, 4, 5, 6, 0, time.Local)

	testutil.WriteFile(t, root, "b.pdf", []byte("b"), mtime)
	testutil.WriteFile(t, root, "a.txt", []byte("a"), mtime)
	testutil.WriteFile(t, root, "results.csv", []byte("path,sha1sum,timestamp\n"), mtime)
	testutil.WriteFile(t, root, "Thumbs.db", []byte("x"), mtime)
	testutil.WriteFile(t, root, "Documents/report.pdf", []byte("r"), mtime)
	testutil.WriteFile(t, root, "Documents/nested/deep.pdf", []byte("d"), mtime)
	testutil.WriteFile(t, root, "Other/unknown.bin", []byte("u"), mtime)
	testutil.WriteFile(t, root, "Music/song.mp3", []byte("s"), mtime)

	excluded, err := dlfs.NewExcludeMatcher([]string{"results.csv", "thumbs.db"})
	if err != nil {
		t.Fatalf("NewExcludeMatcher() error = %v", err)
	}

	scanner := monitor.NewScanner(testutil.NewSpyFilesystemManager(), root, []string{"Music", "Documents", "Video"}, excluded)
	scan, err := scanner.Scan()
	if err != nil {
		t.Fatalf("Scan() error = %v", err)
	}
	if len(scan.Warnings) != 0 {
		t.Errorf("Scan() warnings = %v, want none", scan.Warnings)
	}

	want := []string{"a.txt", "b.pdf", "Music/song.mp3", "Documents/report.pdf"}
	if got := relPaths(scan.Files); !reflect.DeepEqual(got, want) {
		t.Errorf("Scan() paths = %v, want %v", got, want)
	}

	f := scan.Files[0]
	if f.AbsPath != filepath.Join(root, "a.txt") {
		t.Errorf("AbsPath = %s, want %s", f.AbsPath, filepath.Join(root, "a.txt"))
	}
	if f.Size != 1 {
		t.Errorf("Size = %d, want 1", f.Size)
	}
	if f.Modified.String() != "2024-02-03T04:05:06" {
		t.Errorf("Modified = %s, want 2024-02-03T04:05:06", f.Modified)
	}
}

func TestScanner_Symlinks(t *testing.T) {
	t.Parallel()
	root := t.TempDir()
	outside := t.TempDir()
	mtime := time.Date(2024, 2, 3, 4, 5, 6, 0, time.Local)

	testutil.WriteFile(t, outside, "secret.pdf", []byte("s"), mtime)
	testutil.WriteFile(t, root, "real.pdf", []byte("r"), mtime)
	if err := os.Symlink(filepath.Join(outside, "secret.pdf"), filepath.Join(root, "link.pdf")); err != nil {
		t.Skipf("symlinks not supported: %v", err)
	}
	if err := os.Symlink(outside, filepath.Join(root, "Documents")); err != nil {
		t.Fatalf("Symlink() error = %v", err)
	}

	scanner := monitor.NewScanner(testutil.NewSpyFilesystemManager(), root, []string{"Documents"}, nil)
	scan, err := scanner.Scan()
	if err != nil {
		t.Fatalf("Scan() error = %v", err)
	}

	if got := relPaths(scan.Files); !reflect.DeepEqual(got, []string{"real.pdf"}) {
		t.Errorf("Scan() paths = %v, want [real.pdf]", got)
	}
	if len(scan.Warnings) != 1 || scan.Warnings[0].Path != "Documents" {
		t.Errorf("Scan() warnings = %v, want one for Documents", scan.Warnings)
	}
}

func TestScanner_EntryFailureIsWarning(t *testing.T) {
	t.Parallel()
	root := t.TempDir()
	mtime := time.Date(2024, 2, 3, 4, 5, 6, 0, time.Local)
	testutil.WriteFile(t, root, "ok.txt", []byte("o"), mtime)
	bad := testutil.WriteFile(t, root, "vanished.txt", []byte("v"), mtime)

	fsmgr := testutil.NewSpyFilesystemManager()
	fsmgr.FailLstat(bad, os.ErrNotExist)

	scan, err := monitor.NewScanner(fsmgr, root, nil, nil).Scan()
	if err != nil {
		t.Fatalf("Scan() error = %v", err)
	}
	if got := relPaths(scan.Files); !reflect.DeepEqual(got, []string{"ok.txt"}) {
		t.Errorf("Scan() paths = %v, want [ok.txt]", got)
	}
	if len(scan.Warnings) != 1 || scan.Warnings[0].Path != "vanished.txt" {
		t.Errorf("Scan() warnings = %v, want one for vanished.txt", scan.Warnings)
	}
	if len(scan.UnreadFiles) != 0 {
		t.Errorf("UnreadFiles = %v, want none for a vanished file", scan.UnreadFiles)
	}
}

func TestScanner_TransientFailuresAreUnread(t *testing.T) {
	t.Parallel()
	root := t.TempDir()
	mtime := time.Date(2024, 2, 3, 4, 5, 6, 0, time.Local)
	locked := testutil.WriteFile(t, root, "locked.txt", []byte("l"), mtime)
	testutil.WriteFile(t, root, "Music/a.mp3", []byte("a"), mtime)
	testutil.WriteFile(t, root, "Video/b.mp4", []byte("b"), mtime)

	fsmgr := testutil.NewSpyFilesystemManager()
	fsmgr.FailLstat(locked, os.ErrPermission)
	fsmgr.FailReadDir(filepath.Join(root, "Music"), os.ErrPermission)

	scan, err := monitor.NewScanner(fsmgr, root, []string{"Music", "Video"}, nil).Scan()
	if err != nil {
		t.Fatalf("Scan() error = %v", err)
	}
	if got := relPaths(scan.Files); !reflect.DeepEqual(got, []string{"Video/b.mp4"}) {
		t.Errorf("Scan() paths = %v, want [Video/b.mp4]", got)
	}
	if !reflect.DeepEqual(scan.UnreadFiles, []string{"locked.txt"}) {
		t.Errorf("UnreadFiles = %v, want [locked.txt]", scan.UnreadFiles)
	}
	if !reflect.DeepEqual(scan.UnreadFolders, []string{"Music"}) {
		t.Errorf("UnreadFolders = %v, want [Music]", scan.UnreadFolders)
	}
	if len(scan.Warnings) != 2 {
		t.Errorf("Scan() warnings = %v, want 2", scan.Warnings)
	}

	if !scan.Unread(monitor.NewFileRecord("Music/old.mp3", "h", monitor.Timestamp{})) {
		t.Error("Unread() = false for a record in an unread folder")
	}
	if scan.Unread(monitor.NewFileRecord("Video/old.mp4", "h", monitor.Timestamp{})) {
		t.Error("Unread() = true for a record in a scanned folder")
	}
}

func TestScanner_MissingRoot(t *testing.T) {
	t.Parallel()
	root := filepath.Join(t.TempDir(), "nope")

	_, err := monitor.NewScanner(testutil.NewSpyFilesystemManager(), root, nil, nil).Scan()
	if err == nil {
		t.Error("Scan() expected error for missing root")
	}
}
