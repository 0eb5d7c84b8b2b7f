package analysis

import (
	"cmp"
	"context"
	"fmt"
	"path"
	"path/filepath"
	"slices"
	"strings"

	"github.com/dustin/go-humanize"

	"github.com/guijianchou/IDM-Download-Monitor/internal/monitor"
)

const (
	// NoExtension labels files without an extension.
	NoExtension = "No Extension"

	topFileTypes   = 10
	changesPreview = 5
)

type counted struct {
	label string
	n     int64
}

// sortCounts orders by count, largest first, then by label.
func sortCounts(m map[string]int64) []counted {
	out := make([]counted, 0, len(m))
	for label, n := range m {
		out = append(out, counted{label: label, n: n})
	}
	slices.SortFunc(out, func(a, b counted) int {
		if c := cmp.Compare(b.n, a.n); c != 0 {
			return c
		}
		return strings.Compare(a.label, b.label)
	})
	return out
}

func percent(n, total int64) float64 {
	if total == 0 {
		return 0
	}
	return float64(n) * 100 / float64(total)
}

// FileTypeAnalyzer reports the distribution of file extensions.
type FileTypeAnalyzer struct{}

func NewFileTypeAnalyzer() *FileTypeAnalyzer { return &FileTypeAnalyzer{} }

func (*FileTypeAnalyzer) Name() string { return "file_types" }

func (*FileTypeAnalyzer) Analyze(_ context.Context, current, _ *monitor.Snapshot) (*Report, error) {
	stats := make(map[string]int64)
	for _, r := range current.Records() {
		ext := strings.ToLower(path.Ext(r.FileName))
		if ext == "" || ext == r.FileName {
			ext = NoExtension
		}
		stats[ext]++
	}

	total := int64(current.Len())
	rep := &Report{
		Name:  "file_types",
		Title: "File type distribution",
		Stats: stats,
		Lines: []string{fmt.Sprintf("%d files, %d types", total, len(stats))},
	}
	for i, c := range sortCounts(stats) {
		if i == topFileTypes {
			rep.Lines = append(rep.Lines, fmt.Sprintf("... and %d more types", len(stats)-topFileTypes))
			break
		}
		rep.Lines = append(rep.Lines, fmt.Sprintf("%-14s %6d  %5.1f%%", c.label, c.n, percent(c.n, total)))
	}
	return rep, nil
}

// Size bucket labels, smallest first.
const (
	BucketTiny   = "Tiny (<1KB)"
	BucketSmall  = "Small (1KB-1MB)"
	BucketMedium = "Medium (1MB-100MB)"
	BucketLarge  = "Large (100MB-1GB)"
	BucketHuge   = "Huge (>1GB)"

	// StatTotalBytes and StatUnavailable are extra keys in the size report stats.
	StatTotalBytes  = "total_bytes"
	StatUnavailable = "unavailable"
)

var sizeBuckets = []struct {
	label string
	below int64
}{
	{BucketTiny, 1 << 10},
	{BucketSmall, 1 << 20},
	{BucketMedium, 100 << 20},
	{BucketLarge, 1 << 30},
	{BucketHuge, -1},
}

func bucketFor(size int64) string {
	for _, b := range sizeBuckets {
		if b.below < 0 || size < b.below {
			return b.label
		}
	}
	return BucketHuge
}

// FileSizeAnalyzer buckets the stored files by their current size on disk.
type FileSizeAnalyzer struct {
	fsmgr monitor.FilesystemManager
	root  string
}

func NewFileSizeAnalyzer(fsmgr monitor.FilesystemManager, root string) *FileSizeAnalyzer {
	return &FileSizeAnalyzer{fsmgr: fsmgr, root: root}
}

func (*FileSizeAnalyzer) Name() string { return "file_sizes" }

func (a *FileSizeAnalyzer) Analyze(ctx context.Context, current, _ *monitor.Snapshot) (*Report, error) {
	stats := make(map[string]int64, len(sizeBuckets)+2)
	for _, b := range sizeBuckets {
		stats[b.label] = 0
	}

	var total, unavailable int64
	for _, r := range current.Records() {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		info, err := a.fsmgr.Lstat(filepath.Join(a.root, filepath.FromSlash(r.RelativePath)))
		if err != nil || !info.Mode().IsRegular() {
			unavailable++
			continue
		}
		stats[bucketFor(info.Size())]++
		total += info.Size()
	}
	stats[StatTotalBytes] = total
	stats[StatUnavailable] = unavailable

	measured := int64(current.Len()) - unavailable
	rep := &Report{
		Name:  "file_sizes",
		Title: "File size distribution",
		Stats: stats,
	}
	for _, b := range sizeBuckets {
		n := stats[b.label]
		rep.Lines = append(rep.Lines, fmt.Sprintf("%-20s %6d  %5.1f%%", b.label, n, percent(n, measured)))
	}
	rep.Lines = append(rep.Lines, fmt.Sprintf("Total size: %s", humanize.IBytes(uint64(total))))
	if unavailable > 0 {
		rep.Lines = append(rep.Lines, fmt.Sprintf("%d files could not be measured", unavailable))
	}
	return rep, nil
}

// ChangeAnalyzer summarizes what changed between the previous and current snapshot.
type ChangeAnalyzer struct{}

func NewChangeAnalyzer() *ChangeAnalyzer { return &ChangeAnalyzer{} }

func (*ChangeAnalyzer) Name() string { return "changes" }

func (*ChangeAnalyzer) Analyze(_ context.Context, current, previous *monitor.Snapshot) (*Report, error) {
	summary := monitor.Diff(previous, current)
	rep := &Report{
		Name:  "changes",
		Title: "Changes since the previous cycle",
		Stats: map[string]int64{
			"new":      int64(len(summary.New)),
			"modified": int64(len(summary.Modified)),
			"deleted":  int64(len(summary.Deleted)),
			"moved":    int64(len(summary.Moved)),
		},
	}
	if summary.Empty() {
		rep.Lines = []string{"No changes"}
		return rep, nil
	}

	section := func(label string, items []string) {
		if len(items) == 0 {
			return
		}
		rep.Lines = append(rep.Lines, fmt.Sprintf("%s: %d", label, len(items)))
		for i, item := range items {
			if i == changesPreview {
				rep.Lines = append(rep.Lines, fmt.Sprintf("  ... and %d more", len(items)-changesPreview))
				break
			}
			rep.Lines = append(rep.Lines, "  "+item)
		}
	}
	displays := func(records []monitor.FileRecord) []string {
		out := make([]string, len(records))
		for i, r := range records {
			out[i] = r.DisplayPath()
		}
		return out
	}
	moves := make([]string, len(summary.Moved))
	for i, mv := range summary.Moved {
		moves[i] = mv.From + " -> " + mv.To
	}

	section("New", displays(summary.New))
	section("Modified", displays(summary.Modified))
	section("Deleted", displays(summary.Deleted))
	section("Moved", moves)
	return rep, nil
}

// CategoryAnalyzer counts stored records per category folder.
type CategoryAnalyzer struct{}

func NewCategoryAnalyzer() *CategoryAnalyzer { return &CategoryAnalyzer{} }

func (*CategoryAnalyzer) Name() string { return "categories" }

func (*CategoryAnalyzer) Analyze(_ context.Context, current, _ *monitor.Snapshot) (*Report, error) {
	stats := make(map[string]int64)
	for _, r := range current.Records() {
		stats[r.Category]++
	}
	rep := &Report{
		Name:  "categories",
		Title: "Files per category",
		Stats: stats,
	}
	total := int64(current.Len())
	for _, c := range sortCounts(stats) {
		rep.Lines = append(rep.Lines, fmt.Sprintf("%-14s %6d  %5.1f%%", c.label, c.n, percent(c.n, total)))
	}
	return rep, nil
}

var (
	_ Analyzer = (*FileTypeAnalyzer)(nil)
	_ Analyzer = (*FileSizeAnalyzer)(nil)
	_ Analyzer = (*ChangeAnalyzer)(nil)
	_ Analyzer = (*CategoryAnalyzer)(nil)
)
