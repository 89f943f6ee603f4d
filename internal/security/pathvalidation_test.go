package security

import (
	"os"
	"path/filepath"
	"testing"
)

func TestValidatePathWithinDirectory(t *testing.T) {
	base := t.TempDir()
	outside := t.TempDir()
	if err := os.Mkdir(filepath.Join(base, "sub"), 0755); err != nil {
		t.Fatal(err)
	}
	if err := os.Symlink(outside, filepath.Join(base, "escape")); err != nil {
		t.Skipf("symlinks unsupported: %v", err)
	}

	tests := []struct {
		name    string
		path    string
		wantErr bool
	}{
		{"file in dir", filepath.Join(base, "a.csv"), false},
		{"new file in subdir", filepath.Join(base, "sub", "new", "a.csv"), false},
		{"dot dot", filepath.Join(base, "..", "a.csv"), true},
		{"other dir", filepath.Join(outside, "a.csv"), true},
		{"through symlink", filepath.Join(base, "escape", "a.csv"), true},
		{"new file through symlink", filepath.Join(base, "escape", "deep", "a.csv"), true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidatePathWithinDirectory(tt.path, base)
			if (err != nil) != tt.wantErr {
				t.Errorf("ValidatePathWithinDirectory(%q) error = %v, wantErr %v", tt.path, err, tt.wantErr)
			}
		})
	}
}

func TestSanitizeFilename(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"mouse_01", "mouse_01"},
		{"cage 3/day 2", "cage_3_day_2"},
		{"../../etc/passwd", "etc_passwd"},
		{"", "unknown"},
		{"///", "unknown"},
		{"exp-1.v2", "exp-1.v2"},
	}
	for _, tt := range tests {
		if got := SanitizeFilename(tt.in); got != tt.want {
			t.Errorf("SanitizeFilename(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestOutputPath(t *testing.T) {
	base := t.TempDir()
	got, err := OutputPath(base, "analyse", "cage 3", ".csv")
	if err != nil {
		t.Fatal(err)
	}
	want := filepath.Join(base, "analyse", "cage_3.csv")
	if got != want {
		t.Errorf("OutputPath() = %q, want %q", got, want)
	}
	if info, err := os.Stat(filepath.Join(base, "analyse")); err != nil || !info.IsDir() {
		t.Errorf("stage directory not created: %v", err)
	}

	got, err = OutputPath(base, "..", "../x", ".csv")
	if err != nil {
		t.Fatal(err)
	}
	if filepath.Dir(filepath.Dir(got)) != base {
		t.Errorf("OutputPath escaped %s: %s", base, got)
	}
}
