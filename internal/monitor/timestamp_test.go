package monitor_test

import (
	"testing"
	"time"

	"github.com/guijianchou/IDM-Download-Monitor/internal/monitor"
)

func mustParse(t *testing.T, s string) monitor.Timestamp {
	t.Helper()
	ts, err := monitor.ParseTimestamp(s)
	if err != nil {
		t.Fatalf("ParseTimestamp(%q) error = %v", s, err)
	}
	return ts
}

func TestParseTimestamp(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		wantKind monitor.TimestampKind
		wantStr  string
	}{
		{name: "empty", input: "", wantKind: monitor.TimestampUnset, wantStr: ""},
		{name: "precise", input: "2024-03-05T14:07:09", wantKind: monitor.TimestampPrecise, wantStr: "2024-03-05T14:07:09"},
		{name: "precise with fraction", input: "2024-03-05T14:07:09.734", wantKind: monitor.TimestampPrecise, wantStr: "2024-03-05T14:07:09"},
		{name: "legacy", input: "24/03/05", wantKind: monitor.TimestampLegacy, wantStr: "24/03/05"},
		{name: "surrounding space", input: " 24/03/05 ", wantKind: monitor.TimestampLegacy, wantStr: "24/03/05"},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			ts := mustParse(t, tt.input)
			if ts.Kind() != tt.wantKind {
				t.Errorf("Kind() = %v, want %v", ts.Kind(), tt.wantKind)
			}
			if ts.String() != tt.wantStr {
				t.Errorf("String() = %q, want %q", ts.String(), tt.wantStr)
			}
		})
	}

	for _, bad := range []string{"yesterday", "2024-13-45T99:00:00", "24-03-05", "3/5/2024"} {
		if _, err := monitor.ParseTimestamp(bad); err == nil {
			t.Errorf("ParseTimestamp(%q) expected error", bad)
		}
	}
}

func TestTimestamp_Compare(t *testing.T) {
	morning := mustParse(t, "2024-03-05T08:00:00")
	evening := mustParse(t, "2024-03-05T20:00:00")
	nextDay := mustParse(t, "2024-03-06T01:00:00")
	legacy := mustParse(t, "24/03/05")
	var unset monitor.Timestamp

	t.Run("precise values compare by second", func(t *testing.T) {
		if morning.Compare(evening) >= 0 {
			t.Error("morning should sort before evening")
		}
		if morning.Equal(evening) {
			t.Error("morning should not equal evening")
		}
	})

	t.Run("legacy date equals any time on that date", func(t *testing.T) {
		if !legacy.Equal(morning) || !evening.Equal(legacy) {
			t.Error("legacy date should equal precise times on the same date")
		}
		if legacy.Equal(nextDay) {
			t.Error("legacy date should not equal the next day")
		}
		if legacy.Compare(nextDay) >= 0 {
			t.Error("legacy date should sort before the next day")
		}
	})

	t.Run("unset sorts first and never equals", func(t *testing.T) {
		if unset.Compare(legacy) >= 0 {
			t.Error("unset should sort first")
		}
		if unset.Compare(unset) != 0 {
			t.Error("unset should compare equal to unset")
		}
		if unset.Equal(unset) {
			t.Error("Equal() on unset timestamps should be false")
		}
	})
}

func TestPreciseTimestamp_TruncatesToSecond(t *testing.T) {
	a := monitor.PreciseTimestamp(time.Date(2024, 1, 2, 3, 4, 5, 100, time.Local))
	b := monitor.PreciseTimestamp(time.Date(2024, 1, 2, 3, 4, 5, 999_999_999, time.Local))
	if !a.Equal(b) {
		t.Errorf("%v and %v should be equal after truncation", a, b)
	}
	if got := a.Legacy().String(); got != "24/01/02" {
		t.Errorf("Legacy().String() = %q, want 24/01/02", got)
	}
}
