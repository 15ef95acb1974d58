// SPDX-License-Identifier: MPL-2.0

package packaging_test

import (
	"errors"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"testing"

	"github.com/mkptool/mkp/internal/testutil"
	"github.com/mkptool/mkp/pkg/archive"
	"github.com/mkptool/mkp/pkg/packaging"
	"github.com/mkptool/mkp/pkg/pkginfo"
	"github.com/mkptool/mkp/pkg/types"
)

// packFrom builds a package named name on a fresh site with the given files
// (part/path -> content) and returns the package file path.
func packFrom(t *testing.T, name string, files map[string]string, edit func(*pkginfo.Info)) types.FilesystemPath {
	t.Helper()

	site := testutil.NewSite(t)
	for key, content := range files {
		ident, rel, _ := strings.Cut(key, "/")
		site.WriteFile(t, ident, rel, content)
	}
	m := site.Manager(t)
	info, err := m.Create(name)
	if err != nil {
		t.Fatal(err)
	}
	if edit != nil {
		edit(info)
		if err := site.Store.Write(info); err != nil {
			t.Fatal(err)
		}
	}
	path, err := m.Pack(name, types.FilesystemPath(t.TempDir()))
	if err != nil {
		t.Fatal(err)
	}
	return path
}

func refNames(refs []packaging.FileRef) []string {
	out := make([]string, len(refs))
	for i, r := range refs {
		out[i] = r.Part.Ident + "/" + r.Path
	}
	return out
}

func TestExampleScenario(t *testing.T) {
	t.Parallel()

	site := testutil.NewSite(t)
	mycheck := site.WriteFile(t, "checks", "mycheck", "#!/usr/bin/env python\n")
	m := site.Manager(t)

	info, err := m.Create("demo")
	if err != nil {
		t.Fatal(err)
	}
	if !slices.Equal(info.Files["checks"], []string{"mycheck"}) || info.NumFiles() != 1 {
		t.Fatalf("Create() = %v", info.Files)
	}

	out := t.TempDir()
	path, err := m.Pack("demo", types.FilesystemPath(out))
	if err != nil {
		t.Fatal(err)
	}
	if string(path) != filepath.Join(out, "demo-1.0.mkp") {
		t.Errorf("Pack() = %q", path)
	}

	if _, err := m.Remove("demo"); err != nil {
		t.Fatal(err)
	}
	if _, err := os.Stat(mycheck); !errors.Is(err, os.ErrNotExist) {
		t.Fatal("Remove() left the file behind")
	}

	result, err := m.Install(path)
	if err != nil {
		t.Fatalf("Install() error = %v", err)
	}
	if got := testutil.MustReadFile(t, mycheck); got != "#!/usr/bin/env python\n" {
		t.Errorf("reinstalled content = %q", got)
	}
	if _, ok := site.Store.Read("demo"); !ok {
		t.Error("record not recreated")
	}
	if result.Replaced != nil || !slices.Equal(refNames(result.Added), []string{"checks/mycheck"}) {
		t.Errorf("unexpected result %+v", result)
	}
	if result.TransactionID == "" {
		t.Error("missing transaction id")
	}
}

func TestPackInstallOnCleanSite(t *testing.T) {
	t.Parallel()

	files := map[string]string{
		"checks/hello":          "check",
		"web/plugins/wato/x.py": "wato",
		"doc/hello/README":      "docs",
		"bin/tool":              "#!/bin/sh\n",
	}
	path := packFrom(t, "hello", files, func(i *pkginfo.Info) {
		i.Version = "2.3"
		i.Author = "Someone"
	})
	if filepath.Base(string(path)) != "hello-2.3.mkp" {
		t.Errorf("package file = %s", path)
	}

	target := testutil.NewSite(t)
	m := target.Manager(t)
	result, err := m.Install(path)
	if err != nil {
		t.Fatalf("Install() error = %v", err)
	}

	for key, content := range files {
		ident, rel, _ := strings.Cut(key, "/")
		if got := testutil.MustReadFile(t, target.Path(t, ident, rel)); got != content {
			t.Errorf("%s = %q, want %q", key, got, content)
		}
	}

	stored, ok := target.Store.Read("hello")
	if !ok {
		t.Fatal("record missing")
	}
	if stored.Version != "2.3" || stored.Author != "Someone" || stored.NumFiles() != 4 {
		t.Errorf("stored record = %+v", stored)
	}
	if len(result.Added) != 4 || len(result.Updated) != 0 || len(result.Removed) != 0 {
		t.Errorf("result counts = %d/%d/%d", len(result.Added), len(result.Updated), len(result.Removed))
	}
	if !result.Compatibility.OK() {
		t.Errorf("Compatibility = %+v", result.Compatibility)
	}

	// Staging areas are cleaned up.
	entries, err := os.ReadDir(target.Store.Dir())
	if err != nil {
		t.Fatal(err)
	}
	for _, e := range entries {
		if e.IsDir() {
			t.Errorf("leftover directory %s in package dir", e.Name())
		}
	}
}

func TestInstallPreservesMode(t *testing.T) {
	t.Parallel()

	site := testutil.NewSite(t)
	p := site.WriteFile(t, "bin", "tool", "#!/bin/sh\n")
	if err := os.Chmod(p, 0o755); err != nil {
		t.Fatal(err)
	}
	m := site.Manager(t)
	if _, err := m.Create("tool"); err != nil {
		t.Fatal(err)
	}
	path, err := m.Pack("tool", types.FilesystemPath(t.TempDir()))
	if err != nil {
		t.Fatal(err)
	}

	target := testutil.NewSite(t)
	if _, err := target.Manager(t).Install(path); err != nil {
		t.Fatal(err)
	}
	fi, err := os.Stat(target.Path(t, "bin", "tool"))
	if err != nil {
		t.Fatal(err)
	}
	if fi.Mode().Perm() != 0o755 {
		t.Errorf("mode = %v, want 0755", fi.Mode().Perm())
	}
}

func TestInstallReplacesOlderVersion(t *testing.T) {
	t.Parallel()

	v2 := packFrom(t, "demo", map[string]string{
		"checks/common": "new common",
		"checks/added":  "added",
	}, func(i *pkginfo.Info) { i.Version = "2.0" })

	site := testutil.NewSite(t)
	site.WriteFile(t, "checks", "common", "old common")
	oldOnly := site.WriteFile(t, "checks", "old_only", "old")
	m := site.Manager(t)
	if _, err := m.Create("demo"); err != nil {
		t.Fatal(err)
	}

	result, err := m.Install(v2)
	if err != nil {
		t.Fatalf("Install() error = %v", err)
	}

	if got := testutil.MustReadFile(t, site.Path(t, "checks", "common")); got != "new common" {
		t.Errorf("common = %q", got)
	}
	if got := testutil.MustReadFile(t, site.Path(t, "checks", "added")); got != "added" {
		t.Errorf("added = %q", got)
	}
	if _, err := os.Stat(oldOnly); !errors.Is(err, os.ErrNotExist) {
		t.Error("file only in the old version survived")
	}

	info, _ := site.Store.Read("demo")
	if info.Version != "2.0" || !slices.Equal(info.Files["checks"], []string{"added", "common"}) {
		t.Errorf("record = %+v", info)
	}
	if result.Replaced == nil || result.Replaced.Version != pkginfo.DefaultVersion {
		t.Errorf("Replaced = %+v", result.Replaced)
	}
	if !slices.Equal(refNames(result.Added), []string{"checks/added"}) ||
		!slices.Equal(refNames(result.Updated), []string{"checks/common"}) ||
		!slices.Equal(refNames(result.Removed), []string{"checks/old_only"}) {
		t.Errorf("added=%v updated=%v removed=%v",
			refNames(result.Added), refNames(result.Updated), refNames(result.Removed))
	}

	owners, err := site.Store.Ownership()
	if err != nil {
		t.Fatal(err)
	}
	if _, owned := owners.OwnerOf("checks", "old_only"); owned {
		t.Error("old_only still owned")
	}
}

func TestInstallConflictTouchesNothing(t *testing.T) {
	t.Parallel()

	pkg := packFrom(t, "newcomer", map[string]string{
		"checks/shared": "newcomer version",
		"checks/fresh":  "fresh",
	}, nil)

	site := testutil.NewSite(t)
	shared := site.WriteFile(t, "checks", "shared", "owner version")
	m := site.Manager(t)
	if _, err := m.Create("owner"); err != nil {
		t.Fatal(err)
	}

	_, err := m.Install(pkg)
	wantKind(t, err, packaging.KindFileConflict, packaging.ErrFileConflict)

	var conflict *packaging.FileConflictError
	if !errors.As(err, &conflict) || len(conflict.Conflicts) != 1 || conflict.Conflicts[0].Owner != "owner" {
		t.Errorf("conflict detail = %+v", conflict)
	}
	if got := testutil.MustReadFile(t, shared); got != "owner version" {
		t.Errorf("shared file overwritten: %q", got)
	}
	if _, err := os.Stat(site.Path(t, "checks", "fresh")); !errors.Is(err, os.ErrNotExist) {
		t.Error("conflicting install wrote files")
	}
	if _, ok := site.Store.Read("newcomer"); ok {
		t.Error("conflicting install wrote a record")
	}
}

func TestInstallRollsBackFailedSwap(t *testing.T) {
	t.Parallel()

	pkg := packFrom(t, "demo", map[string]string{
		"checks/a":        "v2",
		"checks/sub/file": "v2",
	}, func(i *pkginfo.Info) { i.Version = "2.0" })

	site := testutil.NewSite(t)
	a := site.WriteFile(t, "checks", "a", "v1")
	m := site.Manager(t)
	if _, err := m.Create("demo"); err != nil {
		t.Fatal(err)
	}
	// A plain file where the package needs a directory makes the second
	// replacement fail after the first succeeded.
	site.WriteFile(t, "checks", "sub", "blocker")

	_, err := m.Install(pkg)
	wantKind(t, err, packaging.KindIOFailure, packaging.ErrIOFailure)

	var pe *packaging.Error
	if !errors.As(err, &pe) || pe.Step != "replace checks/sub/file" {
		t.Errorf("failing step = %+v", pe)
	}
	if got := testutil.MustReadFile(t, a); got != "v1" {
		t.Errorf("a = %q after rollback, want v1", got)
	}
	info, _ := site.Store.Read("demo")
	if info.Version != pkginfo.DefaultVersion || !slices.Equal(info.Files["checks"], []string{"a"}) {
		t.Errorf("record changed: %+v", info)
	}
}

func TestInstallFileBecomesDirectory(t *testing.T) {
	t.Parallel()

	v2 := packFrom(t, "demo", map[string]string{"checks/a/b": "v2"},
		func(i *pkginfo.Info) { i.Version = "2.0" })

	site := testutil.NewSite(t)
	site.WriteFile(t, "checks", "a", "v1")
	m := site.Manager(t)
	if _, err := m.Create("demo"); err != nil {
		t.Fatal(err)
	}

	result, err := m.Install(v2)
	if err != nil {
		t.Fatalf("Install() error = %v", err)
	}
	if got := testutil.MustReadFile(t, site.Path(t, "checks", "a/b")); got != "v2" {
		t.Errorf("a/b = %q", got)
	}
	if !slices.Equal(refNames(result.Added), []string{"checks/a/b"}) ||
		!slices.Equal(refNames(result.Removed), []string{"checks/a"}) {
		t.Errorf("added=%v removed=%v", refNames(result.Added), refNames(result.Removed))
	}
	info, _ := site.Store.Read("demo")
	if !slices.Equal(info.Files["checks"], []string{"a/b"}) {
		t.Errorf("record files = %v", info.Files)
	}
}

func TestInstallDirectoryBecomesFile(t *testing.T) {
	t.Parallel()

	v2 := packFrom(t, "demo", map[string]string{"checks/a": "v2"},
		func(i *pkginfo.Info) { i.Version = "2.0" })

	site := testutil.NewSite(t)
	site.WriteFile(t, "checks", "a/b", "v1")
	m := site.Manager(t)
	if _, err := m.Create("demo"); err != nil {
		t.Fatal(err)
	}

	if _, err := m.Install(v2); err != nil {
		t.Fatalf("Install() error = %v", err)
	}
	fi, err := os.Lstat(site.Path(t, "checks", "a"))
	if err != nil {
		t.Fatal(err)
	}
	if !fi.Mode().IsRegular() {
		t.Errorf("checks/a mode = %v, want a regular file", fi.Mode())
	}
	if got := testutil.MustReadFile(t, site.Path(t, "checks", "a")); got != "v2" {
		t.Errorf("a = %q", got)
	}
}

func TestInstallRollsBackTypeChange(t *testing.T) {
	t.Parallel()

	pkg := packFrom(t, "demo", map[string]string{
		"checks/a/b":      "v2",
		"checks/sub/file": "v2",
	}, func(i *pkginfo.Info) { i.Version = "2.0" })

	site := testutil.NewSite(t)
	a := site.WriteFile(t, "checks", "a", "v1")
	m := site.Manager(t)
	if _, err := m.Create("demo"); err != nil {
		t.Fatal(err)
	}
	site.WriteFile(t, "checks", "sub", "blocker")

	_, err := m.Install(pkg)
	wantKind(t, err, packaging.KindIOFailure, packaging.ErrIOFailure)

	fi, err := os.Lstat(a)
	if err != nil {
		t.Fatalf("checks/a after rollback: %v", err)
	}
	if !fi.Mode().IsRegular() || testutil.MustReadFile(t, a) != "v1" {
		t.Errorf("checks/a not restored: mode %v", fi.Mode())
	}
	info, _ := site.Store.Read("demo")
	if info.Version != pkginfo.DefaultVersion || !slices.Equal(info.Files["checks"], []string{"a"}) {
		t.Errorf("record changed: %+v", info)
	}
}

func TestInstallRejectsUnsafeVersion(t *testing.T) {
	t.Parallel()

	site := testutil.NewSite(t)
	m := site.Manager(t)

	info := pkginfo.New("demo", "2.0.0")
	info.Version = "1.0/../../escaped"
	path := filepath.Join(t.TempDir(), "crafted.mkp")
	f, err := os.Create(path)
	if err != nil {
		t.Fatal(err)
	}
	if err := archive.Write(f, info, site.Parts.Idents(), nil); err != nil {
		t.Fatal(err)
	}
	if err := f.Close(); err != nil {
		t.Fatal(err)
	}

	_, err = m.Install(types.FilesystemPath(path))
	wantKind(t, err, packaging.KindCorruptArchive, packaging.ErrCorruptArchive)
	if !errors.Is(err, pkginfo.ErrInvalidRecord) {
		t.Errorf("error %v does not name the record", err)
	}
	if _, ok := site.Store.Read("demo"); ok {
		t.Error("crafted package was recorded")
	}
}

func TestInstallVersionGate(t *testing.T) {
	t.Parallel()

	pkg := packFrom(t, "future", map[string]string{"checks/f": "f"}, func(i *pkginfo.Info) {
		i.VersionMinRequired = "2.9.0"
	})

	t.Run("enforced", func(t *testing.T) {
		t.Parallel()

		site := testutil.NewSite(t)
		m := site.Manager(t, func(o *packaging.Options) { o.EnforceCompatibility = true })
		_, err := m.Install(pkg)
		wantKind(t, err, packaging.KindIncompatibleVersion, packaging.ErrIncompatibleVersion)
		if _, err := os.Stat(site.Path(t, "checks", "f")); !errors.Is(err, os.ErrNotExist) {
			t.Error("rejected install wrote files")
		}
	})

	t.Run("reported only", func(t *testing.T) {
		t.Parallel()

		site := testutil.NewSite(t)
		result, err := site.Manager(t).Install(pkg)
		if err != nil {
			t.Fatalf("Install() error = %v", err)
		}
		if result.Compatibility.Status != pkginfo.CompatTooOld {
			t.Errorf("Compatibility = %+v", result.Compatibility)
		}
	})
}

func TestInstallErrors(t *testing.T) {
	t.Parallel()

	site := testutil.NewSite(t)
	m := site.Manager(t)

	_, err := m.Install(types.FilesystemPath(filepath.Join(t.TempDir(), "missing.mkp")))
	wantKind(t, err, packaging.KindNotFound, packaging.ErrNotFound)

	junk := filepath.Join(t.TempDir(), "junk.mkp")
	testutil.MustWriteFile(t, junk, "not a package", 0o644)
	_, err = m.Install(types.FilesystemPath(junk))
	wantKind(t, err, packaging.KindCorruptArchive, packaging.ErrCorruptArchive)

	var pe *packaging.Error
	if !errors.As(err, &pe) || pe.Step != "extract" {
		t.Errorf("failing step = %+v", pe)
	}
}

func TestInspect(t *testing.T) {
	t.Parallel()

	pkg := packFrom(t, "demo", map[string]string{"checks/x": "x"}, nil)
	m := testutil.NewSite(t).Manager(t)

	info, err := m.Inspect(pkg)
	if err != nil {
		t.Fatalf("Inspect() error = %v", err)
	}
	if info.Name != "demo" || info.NumFiles() != 1 {
		t.Errorf("Inspect() = %+v", info)
	}

	_, err = m.Inspect(types.FilesystemPath(filepath.Join(t.TempDir(), "none.mkp")))
	wantKind(t, err, packaging.KindNotFound, packaging.ErrNotFound)
}
