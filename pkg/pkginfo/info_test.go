// SPDX-License-Identifier: MPL-2.0

package pkginfo

import (
	"errors"
	"testing"
)

func TestValidateName(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		valid bool
	}{
		{"hello", true},
		{"Hello_World-2.1", true},
		{"0day", true},
		{"", false},
		{".hidden", false},
		{"-dash", false},
		{"with/slash", false},
		{"with space", false},
		{"..", false},
	}

	for _, tt := range tests {
		err := ValidateName(tt.name)
		if tt.valid && err != nil {
			t.Errorf("ValidateName(%q) unexpected error: %v", tt.name, err)
		}
		if !tt.valid && !errors.Is(err, ErrInvalidName) {
			t.Errorf("ValidateName(%q) = %v, want ErrInvalidName", tt.name, err)
		}
	}
}

func TestNew(t *testing.T) {
	t.Parallel()

	info := New("hello", "1.6.0p8")
	if info.Version != DefaultVersion {
		t.Errorf("Version = %q, want %q", info.Version, DefaultVersion)
	}
	if info.VersionPackaged != "1.6.0p8" || info.VersionMinRequired != "1.6.0p8" {
		t.Errorf("host version not applied: %+v", info)
	}
	if info.VersionUsableUntil != "" {
		t.Errorf("VersionUsableUntil = %q, want empty", info.VersionUsableUntil)
	}
	if info.Title != "Title of hello" || info.DownloadURL != "http://example.com/hello/" {
		t.Errorf("unexpected defaults: %+v", info)
	}
	if info.NumFiles() != 0 {
		t.Errorf("NumFiles() = %d, want 0", info.NumFiles())
	}
}

func TestInfoFiles(t *testing.T) {
	t.Parallel()

	info := New("hello", "2.0.0")
	info.SetFiles("checks", []string{"a", "b"})
	info.SetFiles("doc", []string{"README"})
	info.SetFiles("web", nil)

	if got := info.NumFiles(); got != 3 {
		t.Errorf("NumFiles() = %d, want 3", got)
	}
	if got := info.PartIdents(); len(got) != 2 || got[0] != "checks" || got[1] != "doc" {
		t.Errorf("PartIdents() = %v", got)
	}
	if !info.Owns("checks", "b") || info.Owns("checks", "c") || info.Owns("web", "a") {
		t.Error("Owns() gave a wrong answer")
	}

	clone := info.Clone()
	clone.Files["checks"][0] = "changed"
	if info.Files["checks"][0] != "a" {
		t.Error("Clone() shares file slices")
	}

	info.SetFiles("checks", nil)
	if _, ok := info.Files["checks"]; ok {
		t.Error("SetFiles with no files should drop the part")
	}
}

func TestInfoValidate(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		version string
		files   map[string][]string
		wantErr error
	}{
		{"ok", "1.0", map[string][]string{"checks": {"a", "sub/b"}}, nil},
		{"absolute", "1.0", map[string][]string{"checks": {"/etc/passwd"}}, ErrInvalidRecord},
		{"escape", "1.0", map[string][]string{"checks": {"../x"}}, ErrInvalidRecord},
		{"unclean", "1.0", map[string][]string{"checks": {"a//b"}}, ErrInvalidRecord},
		{"duplicate", "1.0", map[string][]string{"checks": {"a", "a"}}, ErrInvalidRecord},
		{"empty ident", "1.0", map[string][]string{"": {"a"}}, ErrInvalidRecord},
		{"empty version", "", nil, ErrInvalidRecord},
		{"version with slash", "1.0/../../escaped", nil, ErrInvalidRecord},
		{"version with backslash", `1.0\x`, nil, ErrInvalidRecord},
		{"version with dot dot", "1..0", nil, ErrInvalidRecord},
		{"version with NUL", "1.0\x00", nil, ErrInvalidRecord},
		{"dotted version", "1.2.3p4", nil, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			info := New("hello", "2.0.0")
			info.Version = tt.version
			info.Files = tt.files
			err := info.Validate()
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("Validate() = %v, want %v", err, tt.wantErr)
			}
		})
	}
}
