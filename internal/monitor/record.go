package monitor

import (
	"path"
	"strings"
)

const (
	// HashSkipped marks a file that exceeded the hash size ceiling. It is not a
	// content identity: two skipped records are told apart by path.
	HashSkipped = "SKIPPED_TOO_LARGE"

	// RootCategory is the category of files sitting directly in the monitored root.
	RootCategory = "~"

	// DisplayPrefix starts every display path in the record store.
	DisplayPrefix = `~\`
)

// FileRecord is the persisted fingerprint of one distinct file content on disk.
type FileRecord struct {
	ContentHash  string
	RelativePath string // slash-separated, relative to the monitored root
	Category     string // folder name, or RootCategory
	FileName     string
	MtimeLegacy  Timestamp
	MtimePrecise Timestamp
}

// NewFileRecord builds a record for relPath, deriving category and file name.
func NewFileRecord(relPath, hash string, mtime Timestamp) FileRecord {
	category, name := SplitRelativePath(relPath)
	r := FileRecord{
		ContentHash:  hash,
		RelativePath: relPath,
		Category:     category,
		FileName:     name,
		MtimeLegacy:  mtime.Legacy(),
	}
	if !mtime.IsLegacy() {
		r.MtimePrecise = mtime
	}
	return r
}

// Skipped reports whether the record carries the hash-skip sentinel.
func (r FileRecord) Skipped() bool { return r.ContentHash == HashSkipped }

// Identity is the dedup key: the content hash, or the path for skipped records.
func (r FileRecord) Identity() string {
	if r.Skipped() {
		return HashSkipped + ":" + r.RelativePath
	}
	return r.ContentHash
}

// Mtime returns the most precise modification time known for the record.
func (r FileRecord) Mtime() Timestamp {
	if !r.MtimePrecise.IsZero() {
		return r.MtimePrecise
	}
	return r.MtimeLegacy
}

// DisplayPath renders the record as ~\Category\name, or ~\name for root files.
func (r FileRecord) DisplayPath() string {
	if r.Category == RootCategory || r.Category == "" {
		return DisplayPrefix + r.FileName
	}
	return DisplayPrefix + r.Category + `\` + r.FileName
}

// relocate returns a copy of r that lives at relPath.
func (r FileRecord) relocate(relPath string) FileRecord {
	r.RelativePath = relPath
	r.Category, r.FileName = SplitRelativePath(relPath)
	return r
}

// SplitRelativePath returns the category and file name of a relative path.
// Paths without a directory part belong to RootCategory.
func SplitRelativePath(relPath string) (category, name string) {
	dir, name := path.Split(relPath)
	dir = strings.TrimSuffix(dir, "/")
	if dir == "" {
		return RootCategory, name
	}
	return dir, name
}

// JoinRelativePath is the inverse of SplitRelativePath.
func JoinRelativePath(category, name string) string {
	if category == "" || category == RootCategory {
		return name
	}
	return category + "/" + name
}

// ParseDisplayPath reconstructs the relative path of a legacy ~\Folder\name entry.
func ParseDisplayPath(display string) string {
	rest, ok := strings.CutPrefix(display, DisplayPrefix)
	if !ok {
		rest = strings.TrimPrefix(display, "~/")
	}
	rest = strings.ReplaceAll(rest, `\`, "/")
	return strings.Trim(rest, "/")
}

// Snapshot is an immutable, ordered set of records indexed by identity and path.
// A nil *Snapshot behaves as an empty one.
type Snapshot struct {
	records    []FileRecord
	byIdentity map[string]int
	byPath     map[string]int
}

// NewSnapshot indexes records in order. If two records share an identity or a path,
// lookups resolve to the first one.
func NewSnapshot(records []FileRecord) *Snapshot {
	s := &Snapshot{
		records:    make([]FileRecord, len(records)),
		byIdentity: make(map[string]int, len(records)),
		byPath:     make(map[string]int, len(records)),
	}
	copy(s.records, records)
	for i, r := range s.records {
		if _, ok := s.byIdentity[r.Identity()]; !ok {
			s.byIdentity[r.Identity()] = i
		}
		if _, ok := s.byPath[r.RelativePath]; !ok {
			s.byPath[r.RelativePath] = i
		}
	}
	return s
}

func (s *Snapshot) Len() int {
	if s == nil {
		return 0
	}
	return len(s.records)
}

// Records returns a copy of the records in store order.
func (s *Snapshot) Records() []FileRecord {
	if s == nil {
		return nil
	}
	out := make([]FileRecord, len(s.records))
	copy(out, s.records)
	return out
}

// ByHash finds the record holding content hash h. The skip sentinel never matches.
func (s *Snapshot) ByHash(h string) (FileRecord, bool) {
	if s == nil || h == HashSkipped {
		return FileRecord{}, false
	}
	return s.byIdentityKey(h)
}

// ByPath finds the record at a relative path.
func (s *Snapshot) ByPath(relPath string) (FileRecord, bool) {
	if s == nil {
		return FileRecord{}, false
	}
	i, ok := s.byPath[relPath]
	if !ok {
		return FileRecord{}, false
	}
	return s.records[i], true
}

func (s *Snapshot) byIdentityKey(id string) (FileRecord, bool) {
	if s == nil {
		return FileRecord{}, false
	}
	i, ok := s.byIdentity[id]
	if !ok {
		return FileRecord{}, false
	}
	return s.records[i], true
}
