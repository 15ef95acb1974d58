// SPDX-License-Identifier: MPL-2.0

// Package pkginfo defines the package metadata record, its CUE text encoding
// and the host version compatibility check.
//
// A record names a package, carries its free-text metadata and lists the
// files it owns per part. The file count is always derived from Files; any
// count found in input text is ignored.
package pkginfo

import (
	"errors"
	"fmt"
	"maps"
	"regexp"
	"slices"
	"strings"

	"github.com/mkptool/mkp/pkg/fspath"
)

// DefaultVersion is the version given to newly created packages.
const DefaultVersion = "1.0"

var (
	// ErrInvalidName is returned for names that cannot be used as a store
	// file name or archive prefix.
	ErrInvalidName = errors.New("invalid package name")

	// ErrInvalidRecord is returned when record text cannot be decoded or
	// violates the record rules.
	ErrInvalidRecord = errors.New("invalid package info")

	nameRegex = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9_.-]*$`)
)

// Info is the metadata record of one package.
type Info struct {
	Name    string
	Version string

	// VersionPackaged is the host version the package was created on.
	VersionPackaged string
	// VersionMinRequired is the lowest host version the package supports.
	VersionMinRequired string
	// VersionUsableUntil is the last supported host version; empty means
	// no upper bound.
	VersionUsableUntil string

	Title       string
	Author      string
	DownloadURL string
	Description string

	// Files maps part idents to part-relative, slash-separated paths.
	// Records are normalised: SetFiles and Parse never keep a part with an
	// empty list, and Parse always returns a non-nil map. Encode followed by
	// Parse therefore reproduces a record exactly once it is normalised.
	Files map[string][]string
}

// ValidateName checks name against the package name rules.
func ValidateName(name string) error {
	if !nameRegex.MatchString(name) {
		return fmt.Errorf("%w: %q (must match %s)", ErrInvalidName, name, nameRegex)
	}
	return nil
}

// ValidateVersion checks that version is non-empty and usable inside the
// package file name "<name>-<version>.mkp".
func ValidateVersion(version string) error {
	switch {
	case version == "":
		return errors.New("version must not be empty")
	case strings.ContainsAny(version, "/\\\x00"):
		return fmt.Errorf("version %q is not usable in a file name", version)
	case strings.Contains(version, ".."):
		return fmt.Errorf("version %q contains \"..\"", version)
	}
	return nil
}

// New returns the initial record for a freshly created package. Files is
// empty; the caller fills it with the claimed files.
func New(name, hostVersion string) *Info {
	return &Info{
		Name:               name,
		Version:            DefaultVersion,
		VersionPackaged:    hostVersion,
		VersionMinRequired: hostVersion,
		Title:              "Title of " + name,
		Author:             "Add your name here",
		DownloadURL:        "http://example.com/" + name + "/",
		Description:        "Please add a description here",
		Files:              map[string][]string{},
	}
}

// NumFiles returns the total number of files over all parts.
func (i *Info) NumFiles() int {
	n := 0
	for _, files := range i.Files {
		n += len(files)
	}
	return n
}

// PartIdents returns the idents of parts with at least one file, sorted.
func (i *Info) PartIdents() []string {
	idents := make([]string, 0, len(i.Files))
	for ident, files := range i.Files {
		if len(files) > 0 {
			idents = append(idents, ident)
		}
	}
	slices.Sort(idents)
	return idents
}

// Owns reports whether the record lists path in part.
func (i *Info) Owns(part, path string) bool {
	return slices.Contains(i.Files[part], path)
}

// Clone returns a deep copy.
func (i *Info) Clone() *Info {
	c := *i
	c.Files = make(map[string][]string, len(i.Files))
	for ident, files := range i.Files {
		c.Files[ident] = slices.Clone(files)
	}
	return &c
}

// SetFiles stores files for part. An empty list removes the part.
func (i *Info) SetFiles(part string, files []string) {
	if i.Files == nil {
		i.Files = map[string][]string{}
	}
	if len(files) == 0 {
		delete(i.Files, part)
		return
	}
	i.Files[part] = slices.Clone(files)
}

// Validate checks the name, the version and every listed path.
func (i *Info) Validate() error {
	if err := ValidateName(i.Name); err != nil {
		return err
	}
	if err := ValidateVersion(i.Version); err != nil {
		return fmt.Errorf("%w: %s: %w", ErrInvalidRecord, i.Name, err)
	}
	for _, ident := range slices.Sorted(maps.Keys(i.Files)) {
		if ident == "" {
			return fmt.Errorf("%w: %s: empty part ident", ErrInvalidRecord, i.Name)
		}
		seen := make(map[string]struct{}, len(i.Files[ident]))
		for _, p := range i.Files[ident] {
			clean, err := fspath.CleanRel(p)
			if err != nil {
				return fmt.Errorf("%w: %s: files.%s: %w", ErrInvalidRecord, i.Name, ident, err)
			}
			if clean != p {
				return fmt.Errorf("%w: %s: files.%s: path %q is not clean", ErrInvalidRecord, i.Name, ident, p)
			}
			if _, dup := seen[p]; dup {
				return fmt.Errorf("%w: %s: files.%s: duplicate path %q", ErrInvalidRecord, i.Name, ident, p)
			}
			seen[p] = struct{}{}
		}
	}
	return nil
}
