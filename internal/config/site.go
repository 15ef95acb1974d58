// SPDX-License-Identifier: MPL-2.0

package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/mkptool/mkp/pkg/parts"
	"github.com/mkptool/mkp/pkg/types"
)

const (
	// PackagesDirName is the directory below the var dir holding the
	// package records.
	PackagesDirName = "packages"
	// versionLinkName is the site's link to its installed version,
	// e.g. version -> ../../versions/2.0.0p5.cre.
	versionLinkName = "version"
)

// ErrNoSiteRoot is returned by Resolve when no site root is configured.
var ErrNoSiteRoot = errors.New("site root not configured")

// Site is the resolved layout of one site.
type Site struct {
	Root        types.FilesystemPath
	VarDir      types.FilesystemPath
	PackageDir  types.FilesystemPath
	HostVersion string
	Parts       *parts.Registry
}

// Resolve builds the site layout from cfg: the default part table with the
// overrides applied, all paths made absolute below the site root.
func Resolve(cfg *Config) (*Site, error) {
	if strings.TrimSpace(cfg.SiteRoot) == "" {
		return nil, fmt.Errorf("%w: use --site, %s_SITE_ROOT or %s", ErrNoSiteRoot, EnvPrefix, SiteRootEnv)
	}
	root, err := filepath.Abs(cfg.SiteRoot)
	if err != nil {
		return nil, fmt.Errorf("resolving site root: %w", err)
	}

	varDir := parts.DefaultVarDir(root)
	if cfg.VarDir != "" {
		varDir = underRoot(root, cfg.VarDir)
	}

	pkgParts, cfgParts, err := applyOverrides(root, cfg.Parts)
	if err != nil {
		return nil, err
	}
	reg, err := parts.New(pkgParts, cfgParts)
	if err != nil {
		return nil, fmt.Errorf("building part table: %w", err)
	}

	host := cfg.HostVersion
	if host == "" {
		host = DetectHostVersion(types.FilesystemPath(root))
	}

	return &Site{
		Root:        types.FilesystemPath(root),
		VarDir:      types.FilesystemPath(varDir),
		PackageDir:  types.FilesystemPath(filepath.Join(varDir, PackagesDirName)),
		HostVersion: host,
		Parts:       reg,
	}, nil
}

// applyOverrides merges overrides into the default table. Unknown idents
// are appended as package parts.
func applyOverrides(root string, overrides []PartOverride) (pkgParts, cfgParts []parts.Part, err error) {
	pkgParts, cfgParts = parts.DefaultTable()
	for _, table := range [][]parts.Part{pkgParts, cfgParts} {
		for i := range table {
			table[i].Path = underRoot(root, table[i].Path)
		}
	}

	for _, o := range overrides {
		target := findPart(pkgParts, o.Ident)
		if target == nil {
			target = findPart(cfgParts, o.Ident)
		}
		if target == nil {
			if o.Path == "" {
				return nil, nil, fmt.Errorf("%w: new part %q needs a path", ErrInvalidPartOverride, o.Ident)
			}
			pkgParts = append(pkgParts, parts.Part{
				Ident:   o.Ident,
				Title:   o.Ident,
				Exclude: append([]string(nil), parts.DefaultExcludes...),
			})
			target = &pkgParts[len(pkgParts)-1]
		}
		if o.Title != "" {
			target.Title = o.Title
		}
		if o.Path != "" {
			target.Path = underRoot(root, o.Path)
		}
		if o.Exclude != nil {
			target.Exclude = append([]string{}, o.Exclude...)
		}
	}
	return pkgParts, cfgParts, nil
}

func findPart(table []parts.Part, ident string) *parts.Part {
	for i := range table {
		if table[i].Ident == ident {
			return &table[i]
		}
	}
	return nil
}

// underRoot returns p unchanged when absolute, else joined to root.
func underRoot(root, p string) string {
	p = filepath.FromSlash(p)
	if filepath.IsAbs(p) {
		return filepath.Clean(p)
	}
	return filepath.Join(root, p)
}

// DetectHostVersion reads the version from the site's version link. The
// link target's base name is the version, possibly with an edition suffix
// such as ".cre". It returns "" when the link is missing.
func DetectHostVersion(root types.FilesystemPath) string {
	target, err := os.Readlink(filepath.Join(string(root), versionLinkName))
	if err != nil {
		return ""
	}
	return filepath.Base(target)
}
