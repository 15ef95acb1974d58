// SPDX-License-Identifier: MPL-2.0

package testutil

import (
	"path/filepath"
	"testing"

	"github.com/mkptool/mkp/pkg/packaging"
	"github.com/mkptool/mkp/pkg/parts"
	"github.com/mkptool/mkp/pkg/store"
	"github.com/mkptool/mkp/pkg/types"
)

// HostVersion is the host version Site managers run as.
const HostVersion = "2.0.0p5"

// Site is a temporary site directory with the default part table.
type Site struct {
	Root   string
	VarDir string
	Parts  *parts.Registry
	Store  *store.Store
}

// NewSite creates an empty site below t.TempDir().
func NewSite(t testing.TB) *Site {
	t.Helper()

	root := t.TempDir()
	reg, err := parts.Default(root)
	if err != nil {
		t.Fatalf("parts.Default(): %v", err)
	}
	varDir := parts.DefaultVarDir(root)
	MustMkdirAll(t, varDir, 0o755)

	return &Site{
		Root:   root,
		VarDir: varDir,
		Parts:  reg,
		Store:  store.New(filepath.Join(varDir, "packages"), nil),
	}
}

// Path returns the absolute path of rel inside the part ident.
func (s *Site) Path(t testing.TB, ident, rel string) string {
	t.Helper()
	part, ok := s.Parts.Lookup(ident)
	if !ok {
		t.Fatalf("unknown part %q", ident)
	}
	return part.Abs(rel)
}

// WriteFile creates rel in part ident with the given content and returns
// its absolute path.
func (s *Site) WriteFile(t testing.TB, ident, rel, content string) string {
	t.Helper()
	p := s.Path(t, ident, rel)
	MustWriteFile(t, p, content, 0o644)
	return p
}

// Manager returns a manager for the site. Options are applied on top of the
// site defaults.
func (s *Site) Manager(t testing.TB, opts ...func(*packaging.Options)) *packaging.Manager {
	t.Helper()

	o := packaging.Options{
		Parts:       s.Parts,
		Store:       s.Store,
		VarDir:      types.FilesystemPath(s.VarDir),
		HostVersion: HostVersion,
	}
	for _, opt := range opts {
		opt(&o)
	}

	m, err := packaging.New(o)
	if err != nil {
		t.Fatalf("packaging.New(): %v", err)
	}
	return m
}
