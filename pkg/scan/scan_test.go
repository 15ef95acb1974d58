// SPDX-License-Identifier: MPL-2.0

package scan

import (
	"os"
	"path/filepath"
	"slices"
	"testing"

	"github.com/mkptool/mkp/pkg/parts"
)

type ownerMap map[string]string

func (m ownerMap) OwnerOf(part, path string) (string, bool) {
	owner, ok := m[part+"/"+path]
	return owner, ok
}

func writeFiles(t *testing.T, root string, rels ...string) {
	t.Helper()
	for _, rel := range rels {
		p := filepath.Join(root, filepath.FromSlash(rel))
		if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
			t.Fatal(err)
		}
		if err := os.WriteFile(p, []byte(rel), 0o644); err != nil {
			t.Fatal(err)
		}
	}
}

func testPart(t *testing.T) parts.Part {
	t.Helper()
	return parts.Part{
		Ident:   "checks",
		Title:   "Checks",
		Path:    filepath.Join(t.TempDir(), "checks"),
		Exclude: parts.DefaultExcludes,
	}
}

func TestUnpackaged(t *testing.T) {
	t.Parallel()

	part := testPart(t)
	writeFiles(t, part.Path,
		"zeta", "alpha", "sub/dir/deep", "owned",
		".hidden", "backup~", "__pycache__/x.pyc", "sub/.git/config", "mod.pyc",
	)

	got, err := Unpackaged(part, ownerMap{"checks/owned": "other"})
	if err != nil {
		t.Fatalf("Unpackaged() error = %v", err)
	}
	want := []string{"alpha", "sub/dir/deep", "zeta"}
	if !slices.Equal(got, want) {
		t.Errorf("Unpackaged() = %v, want %v", got, want)
	}

	// Owned files of another part do not hide ours.
	got, err = Unpackaged(part, ownerMap{"doc/owned": "other"})
	if err != nil {
		t.Fatal(err)
	}
	if !slices.Contains(got, "owned") {
		t.Errorf("ownership leaked across parts: %v", got)
	}
}

func TestUnpackagedMissingRoot(t *testing.T) {
	t.Parallel()

	part := testPart(t)
	got, err := Unpackaged(part, nil)
	if err != nil || len(got) != 0 {
		t.Errorf("Unpackaged() on missing root = %v, %v", got, err)
	}
}

func TestUnpackagedRootIsFile(t *testing.T) {
	t.Parallel()

	part := testPart(t)
	if err := os.WriteFile(part.Path, nil, 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := Unpackaged(part, nil); err == nil {
		t.Error("expected error when part root is a file")
	}
}

func TestUnpackagedSymlinks(t *testing.T) {
	t.Parallel()

	part := testPart(t)
	outside := t.TempDir()
	writeFiles(t, part.Path, "real")
	writeFiles(t, outside, "target", "dir/inner")

	links := map[string]string{
		"link-to-file": filepath.Join(outside, "target"),
		"link-to-dir":  filepath.Join(outside, "dir"),
		"dangling":     filepath.Join(outside, "missing"),
	}
	for name, target := range links {
		if err := os.Symlink(target, filepath.Join(part.Path, name)); err != nil {
			t.Skipf("symlinks unsupported: %v", err)
		}
	}

	got, err := Unpackaged(part, nil)
	if err != nil {
		t.Fatal(err)
	}
	want := []string{"link-to-file", "real"}
	if !slices.Equal(got, want) {
		t.Errorf("Unpackaged() = %v, want %v", got, want)
	}
}
