package monitor

import (
	"errors"
	"path/filepath"
	"testing"
)

func TestContainedDestination(t *testing.T) {
	root := filepath.Join(string(filepath.Separator), "home", "user", "Downloads")

	tests := []struct {
		name     string
		category string
		file     string
		want     string
		wantErr  bool
	}{
		{name: "plain", category: "Documents", file: "a.pdf", want: filepath.Join(root, "Documents", "a.pdf")},
		{name: "parent category", category: "..", file: "a.pdf", wantErr: true},
		{name: "nested category", category: "a/b", file: "a.pdf", wantErr: true},
		{name: "file name with separator", category: "Documents", file: "../a.pdf", wantErr: true},
		{name: "dot file name", category: "Documents", file: ".", wantErr: true},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			got, err := containedDestination(root, tt.category, tt.file)
			if tt.wantErr {
				if !errors.Is(err, ErrUnsafeCategory) {
					t.Fatalf("containedDestination() error = %v, want ErrUnsafeCategory", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("containedDestination() error = %v", err)
			}
			if got != tt.want {
				t.Errorf("containedDestination() = %s, want %s", got, tt.want)
			}
		})
	}
}

func TestSplitName(t *testing.T) {
	tests := []struct {
		name, stem, ext string
	}{
		{name: "x.pdf", stem: "x", ext: ".pdf"},
		{name: "src.tar.gz", stem: "src.tar", ext: ".gz"},
		{name: "README", stem: "README", ext: ""},
		{name: ".profile", stem: ".profile", ext: ""},
	}
	for _, tt := range tests {
		stem, ext := splitName(tt.name)
		if stem != tt.stem || ext != tt.ext {
			t.Errorf("splitName(%q) = (%q, %q), want (%q, %q)", tt.name, stem, ext, tt.stem, tt.ext)
		}
	}
}
