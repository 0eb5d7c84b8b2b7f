package fs

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/guijianchou/IDM-Download-Monitor/internal/monitor"
)

func TestNewExcludeMatcher(t *testing.T) {
	t.Run("skips blank lines and comments", func(t *testing.T) {
		t.Parallel()
		m, err := NewExcludeMatcher([]string{"", "  ", "# comment", "*.log"})
		if err != nil {
			t.Fatalf("NewExcludeMatcher() error = %v", err)
		}
		got := m.Patterns()
		if len(got) != 2 {
			t.Fatalf("expected default plus 1 pattern, got %v", got)
		}
		if got[1] != "*.log" {
			t.Errorf("expected *.log, got %s", got[1])
		}
	})

	t.Run("rejects malformed glob", func(t *testing.T) {
		t.Parallel()
		_, err := NewExcludeMatcher([]string{"[invalid"})
		if !errors.Is(err, monitor.ErrInvalidPattern) {
			t.Fatalf("NewExcludeMatcher() error = %v, want ErrInvalidPattern", err)
		}
	})
}

func TestExcludeMatcher_Match(t *testing.T) {
	reserved := []string{"results.csv", "desktop.ini", "Thumbs.db", ".DS_Store"}

	tests := []struct {
		name     string
		patterns []string
		file     string
		want     bool
	}{
		{name: "record store file", patterns: reserved, file: "results.csv", want: true},
		{name: "sentinel ignores case", patterns: reserved, file: "thumbs.db", want: true},
		{name: "desktop.ini upper case", patterns: reserved, file: "DESKTOP.INI", want: true},
		{name: "ordinary file passes", patterns: reserved, file: "report.pdf", want: false},
		{name: "similar name passes", patterns: reserved, file: "results.csv.bak", want: false},
		{name: "ignore file always excluded", patterns: nil, file: IgnoreFileName, want: true},
		{name: "partial download glob", patterns: []string{"*.crdownload", "*.part"}, file: "movie.mkv.part", want: true},
		{name: "question mark wildcard", patterns: []string{"?.tmp"}, file: "a.tmp", want: true},
		{name: "question mark does not match multiple chars", patterns: []string{"?.tmp"}, file: "ab.tmp", want: false},
		{name: "character class", patterns: []string{"~$*.[dx]*"}, file: "~$budget.xlsx", want: true},
		{name: "empty name", patterns: []string{"*.log"}, file: "", want: false},
		{name: "literal brackets match themselves", patterns: []string{LiteralPattern("dl[1].csv")}, file: "dl[1].csv", want: true},
		{name: "literal brackets are not a class", patterns: []string{LiteralPattern("dl[1].csv")}, file: "dl1.csv", want: false},
		{name: "literal star is not a wildcard", patterns: []string{LiteralPattern("log*.csv")}, file: "logfile.csv", want: false},
		{name: "literal braces match themselves", patterns: []string{LiteralPattern("{a,b}.csv")}, file: "{A,B}.csv", want: true},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			m, err := NewExcludeMatcher(tt.patterns)
			if err != nil {
				t.Fatalf("NewExcludeMatcher() error = %v", err)
			}
			if got := m.Match(tt.file); got != tt.want {
				t.Errorf("Match(%q) = %v, want %v", tt.file, got, tt.want)
			}
		})
	}
}

func TestParseIgnoreFile(t *testing.T) {
	t.Run("reads patterns from file", func(t *testing.T) {
		t.Parallel()
		dir := t.TempDir()
		path := filepath.Join(dir, IgnoreFileName)
		content := "*.log\n# comment\n\n*.tmp\nsetup-*.exe\n"
		if err := os.WriteFile(path, []byte(content), 0644); err != nil {
			t.Fatalf("writing test file: %v", err)
		}

		patterns, err := ParseIgnoreFile(path)
		if err != nil {
			t.Fatalf("ParseIgnoreFile() error = %v", err)
		}
		if len(patterns) != 5 { // raw lines; filtering is NewExcludeMatcher's job
			t.Fatalf("expected 5 raw lines, got %d", len(patterns))
		}

		m, err := NewExcludeMatcher(patterns)
		if err != nil {
			t.Fatalf("NewExcludeMatcher() error = %v", err)
		}
		if len(m.Patterns()) != 4 {
			t.Errorf("expected 4 parsed patterns, got %v", m.Patterns())
		}
		if !m.Match("setup-1.2.exe") {
			t.Error("expected setup-1.2.exe to be excluded")
		}
	})

	t.Run("returns nil for missing file", func(t *testing.T) {
		t.Parallel()
		patterns, err := ParseIgnoreFile("/nonexistent/" + IgnoreFileName)
		if err != nil {
			t.Fatalf("ParseIgnoreFile() error = %v", err)
		}
		if patterns != nil {
			t.Errorf("expected nil patterns, got %v", patterns)
		}
	})
}
