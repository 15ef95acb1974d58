// SPDX-License-Identifier: MPL-2.0

// Package parts defines the filesystem categories ("parts") whose files can be
// owned by packages, plus the config parts that are only searched for
// unpackaged files.
package parts

import (
	"errors"
	"fmt"
	"path"
	"path/filepath"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
)

// DefaultExcludes are the globs every default part ignores: hidden entries,
// editor backups and Python bytecode.
var DefaultExcludes = []string{
	"**/.*",
	"**/*~",
	"**/__pycache__/**",
	"**/*.pyc",
}

var (
	// ErrEmptyIdent is returned when a part has no identifier.
	ErrEmptyIdent = errors.New("part ident must not be empty")
	// ErrDuplicateIdent is returned when two parts share an identifier.
	ErrDuplicateIdent = errors.New("duplicate part ident")
	// ErrRelativeRoot is returned when a part root is not absolute.
	ErrRelativeRoot = errors.New("part root must be an absolute path")
	// ErrBadPattern is returned for an exclude glob doublestar cannot parse.
	ErrBadPattern = errors.New("invalid exclude pattern")
)

type (
	// Part is one filesystem category. Ident is the stable key used in package
	// records and archive member names.
	Part struct {
		Ident   string
		Title   string
		Path    string
		Exclude []string
	}

	// Registry holds the package parts and config parts in display order.
	// A Registry is immutable after New.
	Registry struct {
		pkgParts []Part
		cfgParts []Part
		byIdent  map[string]int
	}
)

// Excluded reports whether the slash-separated path rel (relative to the part
// root) matches one of the part's exclude globs.
func (p Part) Excluded(rel string) bool {
	for _, pattern := range p.Exclude {
		if ok, _ := doublestar.Match(pattern, rel); ok {
			return true
		}
		// A pattern matching a parent directory excludes everything below it.
		for dir := path.Dir(rel); dir != "." && dir != "/"; dir = path.Dir(dir) {
			if ok, _ := doublestar.Match(pattern, dir); ok {
				return true
			}
		}
	}
	return false
}

// Abs returns the absolute filesystem path of rel inside the part.
func (p Part) Abs(rel string) string {
	return filepath.Join(p.Path, filepath.FromSlash(rel))
}

// String returns "ident (path)".
func (p Part) String() string {
	return fmt.Sprintf("%s (%s)", p.Ident, p.Path)
}

// New validates the given parts and returns a registry. Idents must be unique
// across package and config parts.
func New(pkgParts, cfgParts []Part) (*Registry, error) {
	r := &Registry{
		pkgParts: clone(pkgParts),
		cfgParts: clone(cfgParts),
		byIdent:  make(map[string]int, len(pkgParts)+len(cfgParts)),
	}

	for i, p := range r.All() {
		if strings.TrimSpace(p.Ident) == "" {
			return nil, ErrEmptyIdent
		}
		if _, dup := r.byIdent[p.Ident]; dup {
			return nil, fmt.Errorf("%w: %s", ErrDuplicateIdent, p.Ident)
		}
		if !filepath.IsAbs(p.Path) {
			return nil, fmt.Errorf("%w: %s: %q", ErrRelativeRoot, p.Ident, p.Path)
		}
		for _, pattern := range p.Exclude {
			if !doublestar.ValidatePattern(pattern) {
				return nil, fmt.Errorf("%w: %s: %q", ErrBadPattern, p.Ident, pattern)
			}
		}
		r.byIdent[p.Ident] = i
	}

	return r, nil
}

// PackageParts returns the parts whose files can be owned by packages.
func (r *Registry) PackageParts() []Part {
	return clone(r.pkgParts)
}

// ConfigParts returns the discovery-only parts.
func (r *Registry) ConfigParts() []Part {
	return clone(r.cfgParts)
}

// All returns package parts followed by config parts.
func (r *Registry) All() []Part {
	all := make([]Part, 0, len(r.pkgParts)+len(r.cfgParts))
	all = append(all, r.pkgParts...)
	return append(all, r.cfgParts...)
}

// Lookup returns the part with the given ident.
func (r *Registry) Lookup(ident string) (Part, bool) {
	i, ok := r.byIdent[ident]
	if !ok {
		return Part{}, false
	}
	if i < len(r.pkgParts) {
		return r.pkgParts[i], true
	}
	return r.cfgParts[i-len(r.pkgParts)], true
}

// IsPackagePart reports whether ident names a package part.
func (r *Registry) IsPackagePart(ident string) bool {
	i, ok := r.byIdent[ident]
	return ok && i < len(r.pkgParts)
}

// Idents returns the package part idents in registry order.
func (r *Registry) Idents() []string {
	idents := make([]string, len(r.pkgParts))
	for i, p := range r.pkgParts {
		idents[i] = p.Ident
	}
	return idents
}

func clone(src []Part) []Part {
	out := make([]Part, len(src))
	for i, p := range src {
		p.Exclude = append([]string(nil), p.Exclude...)
		out[i] = p
	}
	return out
}
