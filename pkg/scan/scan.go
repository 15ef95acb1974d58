// SPDX-License-Identifier: MPL-2.0

// Package scan finds files below a part root that no installed package owns.
package scan

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"sync"

	"github.com/charlievieth/fastwalk"

	"github.com/mkptool/mkp/pkg/parts"
)

// Owners is the read-only ownership view the scanner consults.
type Owners interface {
	OwnerOf(part, path string) (string, bool)
}

// Unpackaged returns the slash-separated, part-relative paths of every
// regular file (or symlink to one) below the part root that is neither
// excluded nor owned. The result is sorted. A missing root yields an empty
// result. Symlinked directories are not descended into.
func Unpackaged(part parts.Part, owners Owners) ([]string, error) {
	files, err := Files(part)
	if err != nil {
		return nil, err
	}
	if owners == nil {
		return files, nil
	}
	return slices.DeleteFunc(files, func(rel string) bool {
		_, owned := owners.OwnerOf(part.Ident, rel)
		return owned
	}), nil
}

// Files returns every non-excluded file below the part root, sorted.
func Files(part parts.Part) ([]string, error) {
	root := part.Path
	fi, err := os.Stat(root)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("scan %s: %w", part.Ident, err)
	}
	if !fi.IsDir() {
		return nil, fmt.Errorf("scan %s: %s is not a directory", part.Ident, root)
	}

	var (
		mu    sync.Mutex
		found []string
	)

	conf := fastwalk.Config{Follow: false}
	err = fastwalk.Walk(&conf, root, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			// Entries vanishing mid-walk are not an error.
			if errors.Is(err, fs.ErrNotExist) {
				return nil
			}
			return err
		}
		if p == root {
			return nil
		}

		rel, err := filepath.Rel(root, p)
		if err != nil {
			return err
		}
		rel = filepath.ToSlash(rel)

		if d.IsDir() {
			if part.Excluded(rel) {
				return filepath.SkipDir
			}
			return nil
		}
		if part.Excluded(rel) || !isFile(p, d) {
			return nil
		}

		mu.Lock()
		found = append(found, rel)
		mu.Unlock()
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("scan %s: %w", part.Ident, err)
	}

	slices.Sort(found)
	return found, nil
}

// isFile reports whether d is a regular file or a symlink resolving to one.
func isFile(p string, d fs.DirEntry) bool {
	switch {
	case d.Type().IsRegular():
		return true
	case d.Type()&fs.ModeSymlink != 0:
		fi, err := os.Stat(p)
		return err == nil && fi.Mode().IsRegular()
	default:
		return false
	}
}
