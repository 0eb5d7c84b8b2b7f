package monitor

import (
	"errors"
	"fmt"
	"io/fs"
	"path/filepath"
)

// ScannedFile is one regular file observed during a scan.
type ScannedFile struct {
	RelativePath string
	AbsPath      string
	Size         int64
	Modified     Timestamp
}

// ScanResult is the outcome of one scan.
type ScanResult struct {
	Files    []ScannedFile
	Warnings []Warning

	// Entries that exist but could not be inspected this time: relative paths
	// of files whose stat failed and category folders that could not be read.
	// Their previous records are still valid.
	UnreadFiles   []string
	UnreadFolders []string
}

// Unread reports whether rec lives at a path the scan could not inspect.
func (r *ScanResult) Unread(rec FileRecord) bool {
	for _, p := range r.UnreadFiles {
		if p == rec.RelativePath {
			return true
		}
	}
	for _, c := range r.UnreadFolders {
		if c == rec.Category {
			return true
		}
	}
	return false
}

// Scanner enumerates regular files directly under the root and directly under each
// known category folder. It never descends further and never follows symlinks.
type Scanner struct {
	fsmgr      FilesystemManager
	root       string
	categories []string
	excluded   NameFilter
}

// NewScanner creates a Scanner. excluded may be nil.
func NewScanner(fsmgr FilesystemManager, root string, categories []string, excluded NameFilter) *Scanner {
	return &Scanner{
		fsmgr:      fsmgr,
		root:       filepath.Clean(root),
		categories: categories,
		excluded:   excluded,
	}
}

// Scan returns the files in deterministic order: root files by name, then each
// category folder in policy order. Problems with single entries become warnings;
// only an unreadable root fails the scan.
func (s *Scanner) Scan() (*ScanResult, error) {
	res := &ScanResult{}

	entries, err := s.fsmgr.ReadDir(s.root)
	if err != nil {
		return nil, fmt.Errorf("reading monitored root: %w", err)
	}
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		s.inspect(res, entry.Name(), RootCategory)
	}

	for _, category := range s.categories {
		dir := filepath.Join(s.root, category)
		info, err := s.fsmgr.Lstat(dir)
		if errors.Is(err, fs.ErrNotExist) {
			continue
		}
		if err != nil {
			res.Warnings = append(res.Warnings, Warning{Path: category, Err: err})
			res.UnreadFolders = append(res.UnreadFolders, category)
			continue
		}
		if !info.IsDir() {
			if info.Mode()&fs.ModeSymlink != 0 {
				res.Warnings = append(res.Warnings, Warning{Path: category, Err: errors.New("category folder is a symbolic link, not followed")})
			}
			continue
		}

		entries, err := s.fsmgr.ReadDir(dir)
		if err != nil {
			res.Warnings = append(res.Warnings, Warning{Path: category, Err: err})
			res.UnreadFolders = append(res.UnreadFolders, category)
			continue
		}
		for _, entry := range entries {
			if entry.IsDir() {
				continue
			}
			s.inspect(res, entry.Name(), category)
		}
	}

	return res, nil
}

func (s *Scanner) inspect(res *ScanResult, name, category string) {
	if s.excluded != nil && s.excluded.Match(name) {
		return
	}

	rel := JoinRelativePath(category, name)
	abs := filepath.Join(s.root, filepath.FromSlash(rel))
	info, err := s.fsmgr.Lstat(abs)
	if err != nil {
		res.Warnings = append(res.Warnings, Warning{Path: rel, Err: err})
		// A file that vanished since ReadDir is gone; anything else is transient.
		if !errors.Is(err, fs.ErrNotExist) {
			res.UnreadFiles = append(res.UnreadFiles, rel)
		}
		return
	}
	if !info.Mode().IsRegular() {
		return
	}

	res.Files = append(res.Files, ScannedFile{
		RelativePath: rel,
		AbsPath:      abs,
		Size:         info.Size(),
		Modified:     PreciseTimestamp(info.ModTime()),
	})
}
