package recordstore

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/guijianchou/IDM-Download-Monitor/internal/monitor"
)

func precise(t *testing.T, s string) monitor.Timestamp {
	t.Helper()
	ts, err := monitor.ParseTimestamp(s)
	require.NoError(t, err)
	return ts
}

func writeStore(t *testing.T, content string) *CSVStore {
	t.Helper()
	path := filepath.Join(t.TempDir(), DefaultFileName)
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return NewCSVStore(path)
}

func TestCSVStore_LoadMissingFile(t *testing.T) {
	t.Parallel()
	store := NewCSVStore(filepath.Join(t.TempDir(), DefaultFileName))

	snap, warnings, err := store.Load()
	require.NoError(t, err)
	assert.Empty(t, warnings)
	assert.Equal(t, 0, snap.Len())
}

func TestCSVStore_LoadEmptyFile(t *testing.T) {
	t.Parallel()
	store := writeStore(t, "")

	snap, _, err := store.Load()
	require.NoError(t, err)
	assert.Equal(t, 0, snap.Len())
}

func TestCSVStore_LoadLegacyLayout(t *testing.T) {
	t.Parallel()
	store := writeStore(t, "path,sha1sum,timestamp\r\n"+
		`~\Documents\file.pdf,aaa111,24/03/05`+"\r\n"+
		`~\setup.exe,bbb222,23/12/31`+"\r\n")

	snap, warnings, err := store.Load()
	require.NoError(t, err)
	assert.Empty(t, warnings)
	require.Equal(t, 2, snap.Len())

	doc, ok := snap.ByHash("aaa111")
	require.True(t, ok)
	assert.Equal(t, "Documents/file.pdf", doc.RelativePath)
	assert.Equal(t, "Documents", doc.Category)
	assert.Equal(t, "file.pdf", doc.FileName)
	assert.True(t, doc.MtimeLegacy.IsLegacy())
	assert.True(t, doc.MtimePrecise.IsZero())
	assert.Equal(t, "24/03/05", doc.MtimeLegacy.String())

	exe, ok := snap.ByPath("setup.exe")
	require.True(t, ok)
	assert.Equal(t, monitor.RootCategory, exe.Category)
	assert.Equal(t, "bbb222", exe.ContentHash)
}

func TestCSVStore_LegacyLoadThenSave(t *testing.T) {
	t.Parallel()
	store := writeStore(t, "path,sha1sum,timestamp\n"+`~\Documents\file.pdf,aaa111,24/03/05`+"\n")

	snap, _, err := store.Load()
	require.NoError(t, err)
	require.NoError(t, store.Save(snap))

	data, err := os.ReadFile(store.Path())
	require.NoError(t, err)
	want := "path,rel_path,folder_name,filename,sha1sum,timestamp,mtime_iso\r\n" +
		`~\Documents\file.pdf,Documents/file.pdf,Documents,file.pdf,aaa111,24/03/05,` + "\r\n"
	assert.Equal(t, want, string(data))

	reloaded, _, err := store.Load()
	require.NoError(t, err)
	rec, ok := reloaded.ByPath("Documents/file.pdf")
	require.True(t, ok)
	assert.Equal(t, "Documents", rec.Category)
	assert.Equal(t, "aaa111", rec.ContentHash)
}

func TestCSVStore_SaveExtendedLayout(t *testing.T) {
	t.Parallel()
	store := NewCSVStore(filepath.Join(t.TempDir(), DefaultFileName))
	mtime := monitor.PreciseTimestamp(time.Date(2024, 3, 5, 14, 7, 9, 500, time.Local))
	snap := monitor.NewSnapshot([]monitor.FileRecord{
		monitor.NewFileRecord("Programs/setup.exe", "abc", mtime),
		monitor.NewFileRecord("notes, draft.txt", monitor.HashSkipped, mtime),
	})

	require.NoError(t, store.Save(snap))

	data, err := os.ReadFile(store.Path())
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSuffix(string(data), "\r\n"), "\r\n")
	require.Len(t, lines, 3)
	assert.Equal(t, `~\Programs\setup.exe,Programs/setup.exe,Programs,setup.exe,abc,24/03/05,2024-03-05T14:07:09`, lines[1])
	assert.Equal(t, `"~\notes, draft.txt","notes, draft.txt",~,"notes, draft.txt",SKIPPED_TOO_LARGE,24/03/05,2024-03-05T14:07:09`, lines[2])

	reloaded, warnings, err := store.Load()
	require.NoError(t, err)
	assert.Empty(t, warnings)
	assert.Equal(t, snap.Records(), reloaded.Records())
}

func TestCSVStore_SaveLeavesNoTempFiles(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	store := NewCSVStore(filepath.Join(dir, DefaultFileName))
	mtime := precise(t, "2024-01-02T03:04:05")

	require.NoError(t, store.Save(monitor.NewSnapshot([]monitor.FileRecord{monitor.NewFileRecord("a.txt", "h1", mtime)})))
	require.NoError(t, store.Save(monitor.NewSnapshot([]monitor.FileRecord{monitor.NewFileRecord("b.txt", "h2", mtime)})))

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, DefaultFileName, entries[0].Name())

	snap, _, err := store.Load()
	require.NoError(t, err)
	_, ok := snap.ByPath("b.txt")
	assert.True(t, ok)
	_, ok = snap.ByPath("a.txt")
	assert.False(t, ok)
}

func TestDecode_SkipsBadRows(t *testing.T) {
	t.Parallel()

	input := strings.Join([]string{
		"path,rel_path,folder_name,filename,sha1sum,timestamp,mtime_iso",
		`~\ok.txt,ok.txt,~,ok.txt,h1,24/01/01,2024-01-01T10:00:00`,
		`~\short.txt,short.txt,~,short.txt,h2`,
		`~\nohash.txt,nohash.txt,~,nohash.txt,,24/01/01,2024-01-01T10:00:00`,
		`~\..\escape.txt,../escape.txt,..,escape.txt,h3,24/01/01,2024-01-01T10:00:00`,
		`~\a\b\deep.txt,a/b/deep.txt,a,deep.txt,h4,24/01/01,2024-01-01T10:00:00`,
		`~\badtime.txt,badtime.txt,~,badtime.txt,h5,yesterday,2024-01-01T10:00:00`,
		`~\ok.txt,ok.txt,~,ok.txt,h6,24/01/01,2024-01-01T10:00:00`,
		`~\Music\song.mp3,Music/song.mp3,Music,song.mp3,h7,24/01/01,2024-01-01T10:00:00`,
	}, "\n") + "\n"

	snap, warnings, err := Decode(strings.NewReader(input))
	require.NoError(t, err)
	assert.Len(t, warnings, 6)
	require.Equal(t, 2, snap.Len())

	rec, ok := snap.ByPath("ok.txt")
	require.True(t, ok)
	assert.Equal(t, "h1", rec.ContentHash, "first row for a path wins")
	_, ok = snap.ByPath("Music/song.mp3")
	assert.True(t, ok)
}

func TestDecode_InvalidTable(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		input string
	}{
		{name: "no hash column", input: "path,timestamp\n~\\a.txt,24/01/01\n"},
		{name: "no path column", input: "sha1sum,timestamp\nabc,24/01/01\n"},
		{name: "not a table", input: "\x00\x01\x02binary junk"},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			_, _, err := Decode(strings.NewReader(tt.input))
			assert.ErrorIs(t, err, monitor.ErrInvalidTable)
		})
	}
}

func TestDecode_HeaderAliasesAndBOM(t *testing.T) {
	t.Parallel()
	input := "\uFEFFRelative_Path, Content_Hash ,mtime_precise\nVideo/clip.mp4,h1,2024-05-06T07:08:09\n"

	snap, warnings, err := Decode(strings.NewReader(input))
	require.NoError(t, err)
	assert.Empty(t, warnings)
	rec, ok := snap.ByPath("Video/clip.mp4")
	require.True(t, ok)
	assert.Equal(t, "Video", rec.Category)
	assert.Equal(t, "2024-05-06T07:08:09", rec.MtimePrecise.String())
	assert.Equal(t, "24/05/06", rec.MtimeLegacy.String())
}

func TestCSVStore_ImportRejectsInvalidTable(t *testing.T) {
	t.Parallel()
	original := "path,sha1sum,timestamp\n~\\a.txt,h1,24/01/01\n"
	store := writeStore(t, original)

	_, _, err := store.Import(bytes.NewReader([]byte("hello,world\n1,2\n")))
	require.ErrorIs(t, err, monitor.ErrInvalidTable)

	data, err := os.ReadFile(store.Path())
	require.NoError(t, err)
	assert.Equal(t, original, string(data))

	n, _, err := store.Import(strings.NewReader("path,sha1sum,timestamp\n~\\b.txt,h2,24/01/01\n~\\c.txt,h3,24/01/01\n"))
	require.NoError(t, err)
	assert.Equal(t, 2, n)
}
