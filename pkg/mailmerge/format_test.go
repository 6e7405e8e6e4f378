package mailmerge

import (
	"testing"
	"time"

	"golang.org/x/text/language"
)

func TestFormatNumber(t *testing.T) {
	tests := []struct {
		pattern string
		value   float64
		want    string
	}{
		{"#,##0.00", 1234.5, "1,234.50"},
		{"#,##0.00", -1234.5, "-1,234.50"},
		{"#,##0", 1234567, "1,234,567"},
		{"0.00", 3.14159, "3.14"},
		{"0", 3.7, "4"},
		{"0.##", 3.10, "3.1"},
		{"00000", 42, "00042"},
		{"0.00%", 0.125, "12.50%"},
		{"N2", 1234.5, "1,234.50"},
		{"N0", 1234.5, "1,234"},
		{"P1", 0.25, "25.0%"},
		{"$#,##0.00", 1234.5, "$1,234.50"},
		{"0.00 kg", 2.5, "2.50 kg"},
	}
	for _, tt := range tests {
		if got := formatNumber(tt.pattern, tt.value, language.English); got != tt.want {
			t.Errorf("formatNumber(%q, %v) = %q, want %q", tt.pattern, tt.value, got, tt.want)
		}
	}
}

func TestFormatDate(t *testing.T) {
	ref := time.Date(2024, time.March, 5, 14, 7, 9, 0, time.UTC)
	tests := []struct {
		pattern string
		want    string
	}{
		{"yyyy-MM-dd", "2024-03-05"},
		{"d.M.yy", "5.3.24"},
		{"dddd, MMMM d, yyyy", "Tuesday, March 5, 2024"},
		{"MMM d", "Mar 5"},
		{"HH:mm:ss", "14:07:09"},
		{"h:mm am/pm", "2:07 pm"},
		{"hh:mm AM/PM", "02:07 PM"},
	}
	for _, tt := range tests {
		if got := formatDate(tt.pattern, ref); got != tt.want {
			t.Errorf("formatDate(%q) = %q, want %q", tt.pattern, got, tt.want)
		}
	}
}

func TestParseDateValueLayouts(t *testing.T) {
	for _, s := range []string{"2024-03-05", "2024-03-05T14:07:09", "01/02/2024"} {
		if _, ok := parseDateValue(s); !ok {
			t.Errorf("parseDateValue(%q) not recognized", s)
		}
	}
	if _, ok := parseDateValue("not a date"); ok {
		t.Error("parseDateValue accepted garbage")
	}
}

func TestParseNumericValue(t *testing.T) {
	tests := []struct {
		in   any
		want float64
		ok   bool
	}{
		{42, 42, true},
		{int64(7), 7, true},
		{3.5, 3.5, true},
		{" 12.5 ", 12.5, true},
		{"abc", 0, false},
		{struct{}{}, 0, false},
	}
	for _, tt := range tests {
		got, ok := parseNumericValue(tt.in)
		if ok != tt.ok || got != tt.want {
			t.Errorf("parseNumericValue(%v) = (%v, %v), want (%v, %v)", tt.in, got, ok, tt.want, tt.ok)
		}
	}
}
