package security

import (
	"strings"
	"testing"
)

func TestSanitizeFilename(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"run.dat", "run.dat"},
		{"damped_undriven-2.dat", "damped_undriven-2.dat"},
		{"my run.dat", "my_run.dat"},
		{"a  //  b", "a_b"},
		{"../../etc/passwd", ".._.._etc_passwd"},
		{"trailing?", "trailing_"},
		{"φ-scan.dat", "_-scan.dat"},
		{"", "unknown"},
		{".", "unknown"},
		{"..", "unknown"},
	}
	for _, tc := range tests {
		if got := SanitizeFilename(tc.in); got != tc.want {
			t.Errorf("SanitizeFilename(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}

func TestSanitizeFilename_Length(t *testing.T) {
	got := SanitizeFilename(strings.Repeat("x", 500))
	if len(got) != maxFilenameLen {
		t.Errorf("len = %d, want %d", len(got), maxFilenameLen)
	}
}
