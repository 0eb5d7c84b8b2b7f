package recordstore

import (
	"bufio"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/guijianchou/IDM-Download-Monitor/internal/monitor"
)

const (
	// DefaultFileName is the store file name inside the monitored root.
	DefaultFileName = "results.csv"

	// TempFilePattern names the file a save writes before renaming it into
	// place. A crash mid-save can leave one behind next to the store.
	TempFilePattern = ".results-*.tmp"
)

var (
	// ExtendedHeader is the layout every save writes.
	ExtendedHeader = []string{"path", "rel_path", "folder_name", "filename", "sha1sum", "timestamp", "mtime_iso"}

	// LegacyHeader is the layout of stores written by the first versions.
	LegacyHeader = []string{"path", "sha1sum", "timestamp"}
)

// column names accepted on load, keyed by alias.
var columnAliases = map[string]string{
	"path":          "path",
	"rel_path":      "rel_path",
	"relative_path": "rel_path",
	"folder_name":   "folder_name",
	"category":      "folder_name",
	"filename":      "filename",
	"file_name":     "filename",
	"sha1sum":       "sha1sum",
	"sha1":          "sha1sum",
	"content_hash":  "sha1sum",
	"timestamp":     "timestamp",
	"mtime_legacy":  "timestamp",
	"mtime_iso":     "mtime_iso",
	"mtime_precise": "mtime_iso",
}

// CSVStore is a RecordStore kept in a comma-separated file.
type CSVStore struct {
	path string
}

// NewCSVStore creates a store backed by the file at path. The file need not exist.
func NewCSVStore(path string) *CSVStore {
	return &CSVStore{path: path}
}

// Path returns the store file location.
func (s *CSVStore) Path() string { return s.path }

// Load reads the table. A missing or empty file is an empty snapshot.
func (s *CSVStore) Load() (*monitor.Snapshot, []monitor.Warning, error) {
	f, err := os.Open(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return monitor.NewSnapshot(nil), nil, nil
		}
		return nil, nil, fmt.Errorf("opening record store: %w", err)
	}
	defer f.Close()

	snap, warnings, err := Decode(f)
	if err != nil {
		return nil, nil, fmt.Errorf("reading %s: %w", s.path, err)
	}
	return snap, warnings, nil
}

// Save writes the table to a temporary file next to the store and renames it
// into place, so a crash leaves either the old or the new table.
func (s *CSVStore) Save(snap *monitor.Snapshot) error {
	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("creating store directory: %w", err)
	}

	tmpFile, err := os.CreateTemp(dir, TempFilePattern)
	if err != nil {
		return fmt.Errorf("creating temp file: %w", err)
	}
	tmpPath := tmpFile.Name()

	success := false
	defer func() {
		if !success {
			os.Remove(tmpPath)
		}
	}()

	w := bufio.NewWriter(tmpFile)
	if err := Encode(w, snap); err != nil {
		tmpFile.Close()
		return err
	}
	if err := w.Flush(); err != nil {
		tmpFile.Close()
		return fmt.Errorf("writing temp file: %w", err)
	}
	if err := tmpFile.Sync(); err != nil {
		tmpFile.Close()
		return fmt.Errorf("syncing temp file: %w", err)
	}
	if err := tmpFile.Close(); err != nil {
		return fmt.Errorf("closing temp file: %w", err)
	}

	if err := os.Rename(tmpPath, s.path); err != nil {
		return fmt.Errorf("replacing record store: %w", err)
	}

	success = true
	return nil
}

// Import validates a table read from r and makes it the stored table.
// It returns the number of records kept.
func (s *CSVStore) Import(r io.Reader) (int, []monitor.Warning, error) {
	snap, warnings, err := Decode(r)
	if err != nil {
		return 0, nil, err
	}
	if err := s.Save(snap); err != nil {
		return 0, warnings, err
	}
	return snap.Len(), warnings, nil
}

// Encode writes snap in the extended layout. Rows end in CRLF, matching the files
// produced by earlier versions on Windows.
func Encode(w io.Writer, snap *monitor.Snapshot) error {
	cw := csv.NewWriter(w)
	cw.UseCRLF = true

	if err := cw.Write(ExtendedHeader); err != nil {
		return fmt.Errorf("writing header: %w", err)
	}
	for _, r := range snap.Records() {
		legacy := r.MtimeLegacy
		if legacy.IsZero() {
			legacy = r.MtimePrecise.Legacy()
		}
		row := []string{
			r.DisplayPath(),
			r.RelativePath,
			r.Category,
			r.FileName,
			r.ContentHash,
			legacy.String(),
			r.MtimePrecise.String(),
		}
		if err := cw.Write(row); err != nil {
			return fmt.Errorf("writing row for %s: %w", r.RelativePath, err)
		}
	}
	cw.Flush()
	if err := cw.Error(); err != nil {
		return fmt.Errorf("flushing table: %w", err)
	}
	return nil
}

// Decode reads a table in either layout. Rows that cannot be used are skipped
// and reported; a missing header or required column fails with
// monitor.ErrInvalidTable.
func Decode(r io.Reader) (*monitor.Snapshot, []monitor.Warning, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.LazyQuotes = true

	header, err := cr.Read()
	if err == io.EOF {
		return monitor.NewSnapshot(nil), nil, nil
	}
	if err != nil {
		return nil, nil, fmt.Errorf("%w: reading header: %w", monitor.ErrInvalidTable, err)
	}

	cols, err := mapColumns(header)
	if err != nil {
		return nil, nil, err
	}

	var (
		records  []monitor.FileRecord
		warnings []monitor.Warning
		seen     = make(map[string]bool)
	)
	for {
		row, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			var perr *csv.ParseError
			if errors.As(err, &perr) {
				warnings = append(warnings, monitor.Warning{Path: fmt.Sprintf("line %d", perr.StartLine), Err: err})
				continue
			}
			return nil, nil, fmt.Errorf("reading table: %w", err)
		}
		line, _ := cr.FieldPos(0)

		if len(row) != len(header) {
			warnings = append(warnings, monitor.Warning{
				Path: fmt.Sprintf("line %d", line),
				Err:  fmt.Errorf("expected %d fields, got %d", len(header), len(row)),
			})
			continue
		}

		rec, err := cols.record(row)
		if err != nil {
			warnings = append(warnings, monitor.Warning{Path: fmt.Sprintf("line %d", line), Err: err})
			continue
		}
		if seen[rec.RelativePath] {
			warnings = append(warnings, monitor.Warning{
				Path: fmt.Sprintf("line %d", line),
				Err:  fmt.Errorf("duplicate row for %s", rec.RelativePath),
			})
			continue
		}
		seen[rec.RelativePath] = true
		records = append(records, rec)
	}

	return monitor.NewSnapshot(records), warnings, nil
}

// columns maps canonical column names to row indexes; -1 when absent.
type columns map[string]int

func mapColumns(header []string) (columns, error) {
	cols := columns{}
	for _, canonical := range ExtendedHeader {
		cols[canonical] = -1
	}
	for i, name := range header {
		name = strings.ToLower(strings.TrimSpace(strings.TrimPrefix(name, "\ufeff")))
		canonical, ok := columnAliases[name]
		if !ok || cols[canonical] != -1 {
			continue
		}
		cols[canonical] = i
	}

	if cols["sha1sum"] == -1 {
		return nil, fmt.Errorf("%w: no content hash column in header %v", monitor.ErrInvalidTable, header)
	}
	if cols["path"] == -1 && cols["rel_path"] == -1 {
		return nil, fmt.Errorf("%w: no path column in header %v", monitor.ErrInvalidTable, header)
	}
	return cols, nil
}

func (c columns) get(row []string, name string) string {
	i := c[name]
	if i < 0 || i >= len(row) {
		return ""
	}
	return strings.TrimSpace(row[i])
}

func (c columns) record(row []string) (monitor.FileRecord, error) {
	hash := c.get(row, "sha1sum")
	if hash == "" {
		return monitor.FileRecord{}, errors.New("empty content hash")
	}

	rel := strings.ReplaceAll(c.get(row, "rel_path"), `\`, "/")
	if rel == "" {
		rel = monitor.ParseDisplayPath(c.get(row, "path"))
	}
	if err := validateRelativePath(rel); err != nil {
		return monitor.FileRecord{}, err
	}

	legacy, err := monitor.ParseTimestamp(c.get(row, "timestamp"))
	if err != nil {
		return monitor.FileRecord{}, fmt.Errorf("timestamp: %w", err)
	}
	precise, err := monitor.ParseTimestamp(c.get(row, "mtime_iso"))
	if err != nil {
		return monitor.FileRecord{}, fmt.Errorf("mtime_iso: %w", err)
	}
	if precise.IsZero() && !legacy.IsLegacy() {
		// Some intermediate versions wrote the precise time into "timestamp".
		precise = legacy
	}

	mtime := precise
	if mtime.IsZero() {
		mtime = legacy
	}
	rec := monitor.NewFileRecord(rel, hash, mtime)
	if legacy.IsLegacy() {
		rec.MtimeLegacy = legacy
	}
	return rec, nil
}

// validateRelativePath accepts root files and files one folder deep.
func validateRelativePath(rel string) error {
	if rel == "" {
		return errors.New("empty path")
	}
	if path.IsAbs(rel) || path.Clean(rel) != rel || !filepath.IsLocal(filepath.FromSlash(rel)) {
		return fmt.Errorf("path %q is not inside the monitored root", rel)
	}
	parts := strings.Split(rel, "/")
	switch len(parts) {
	case 1:
		return nil
	case 2:
		if err := monitor.ValidateCategory(parts[0]); err != nil {
			return fmt.Errorf("path %q: %w", rel, err)
		}
		return nil
	default:
		return fmt.Errorf("path %q is nested deeper than one category folder", rel)
	}
}

var _ monitor.RecordStore = (*CSVStore)(nil)
