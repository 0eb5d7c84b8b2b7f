package fs

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	"github.com/gobwas/glob"

	"github.com/guijianchou/IDM-Download-Monitor/internal/monitor"
)

// IgnoreFileName lists extra exclusion patterns, one per line, inside the root.
const IgnoreFileName = ".dlmonignore"

// defaultExcludePatterns are always applied regardless of config.
var defaultExcludePatterns = []string{IgnoreFileName}

// ExcludeMatcher reports reserved basenames: the record store file, OS sentinel
// files and any configured glob. Matching ignores case, since the monitored folder
// is often a Windows Downloads directory.
type ExcludeMatcher struct {
	patterns []glob.Glob
	raw      []string
}

// NewExcludeMatcher compiles the given patterns plus the defaults.
// Blank lines and lines starting with '#' are skipped.
func NewExcludeMatcher(rawPatterns []string) (*ExcludeMatcher, error) {
	m := &ExcludeMatcher{}
	for _, raw := range append(append([]string{}, defaultExcludePatterns...), rawPatterns...) {
		raw = strings.TrimSpace(raw)
		if raw == "" || strings.HasPrefix(raw, "#") {
			continue
		}
		g, err := glob.Compile(strings.ToLower(raw))
		if err != nil {
			return nil, fmt.Errorf("%w: exclusion %q: %w", monitor.ErrInvalidPattern, raw, err)
		}
		m.patterns = append(m.patterns, g)
		m.raw = append(m.raw, raw)
	}
	return m, nil
}

// LiteralPattern returns a pattern matching exactly name, for file names that
// must not be read as globs.
func LiteralPattern(name string) string {
	return glob.QuoteMeta(name)
}

// Match reports whether a basename is excluded from monitoring.
func (m *ExcludeMatcher) Match(name string) bool {
	lower := strings.ToLower(name)
	for _, p := range m.patterns {
		if p.Match(lower) {
			return true
		}
	}
	return false
}

// Patterns returns the active patterns in the order they were given.
func (m *ExcludeMatcher) Patterns() []string {
	out := make([]string, len(m.raw))
	copy(out, m.raw)
	return out
}

// ParseIgnoreFile reads an ignore file and returns the raw pattern strings.
// Returns nil and no error if the file does not exist.
func ParseIgnoreFile(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("opening ignore file: %w", err)
	}
	defer f.Close()

	var patterns []string
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		patterns = append(patterns, scanner.Text())
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("reading ignore file: %w", err)
	}
	return patterns, nil
}

var _ monitor.NameFilter = (*ExcludeMatcher)(nil)
