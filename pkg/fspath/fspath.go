// SPDX-License-Identifier: MPL-2.0

// Package fspath provides typed wrappers around path/filepath for
// types.FilesystemPath values, plus the two containment rules the package
// manager relies on: a directory being inside a managed root, and a
// package-relative path staying inside its part root.
package fspath

import (
	"errors"
	"fmt"
	"path"
	"path/filepath"
	"strings"

	"github.com/mkptool/mkp/pkg/types"
)

// ErrUnsafeRelPath is returned by CleanRel for paths that are absolute,
// empty, or escape their root via "..".
var ErrUnsafeRelPath = errors.New("unsafe relative path")

// Join wraps filepath.Join, accepting and returning types.FilesystemPath.
func Join(elem ...types.FilesystemPath) types.FilesystemPath {
	strs := make([]string, len(elem))
	for i, e := range elem {
		strs[i] = string(e)
	}
	return types.FilesystemPath(filepath.Join(strs...))
}

// JoinStr joins a typed base path with raw string segments such as part
// relative paths or fixed file names.
func JoinStr(base types.FilesystemPath, elem ...string) types.FilesystemPath {
	parts := make([]string, 1, 1+len(elem))
	parts[0] = string(base)
	parts = append(parts, elem...)
	return types.FilesystemPath(filepath.Join(parts...))
}

// JoinRel joins a part root with a slash-separated package-relative path.
func JoinRel(root types.FilesystemPath, rel string) types.FilesystemPath {
	return types.FilesystemPath(filepath.Join(string(root), filepath.FromSlash(rel)))
}

// Dir wraps filepath.Dir for FilesystemPath.
func Dir(p types.FilesystemPath) types.FilesystemPath {
	return types.FilesystemPath(filepath.Dir(string(p)))
}

// Abs wraps filepath.Abs for FilesystemPath.
func Abs(p types.FilesystemPath) (types.FilesystemPath, error) {
	abs, err := filepath.Abs(string(p))
	if err != nil {
		return "", fmt.Errorf("resolving absolute path: %w", err)
	}
	return types.FilesystemPath(abs), nil
}

// Clean wraps filepath.Clean for FilesystemPath.
func Clean(p types.FilesystemPath) types.FilesystemPath {
	return types.FilesystemPath(filepath.Clean(string(p)))
}

// IsWithin reports whether dir equals root or lies below it. Both paths are
// cleaned first; symlinks are not resolved.
func IsWithin(dir, root types.FilesystemPath) bool {
	d := filepath.Clean(string(dir))
	r := filepath.Clean(string(root))
	if d == r {
		return true
	}
	if !strings.HasSuffix(r, string(filepath.Separator)) {
		r += string(filepath.Separator)
	}
	return strings.HasPrefix(d, r)
}

// CleanRel normalizes a package-relative path to its slash-separated clean
// form. Absolute paths, empty paths and paths leaving the root are rejected.
func CleanRel(rel string) (string, error) {
	if rel == "" {
		return "", fmt.Errorf("%w: empty", ErrUnsafeRelPath)
	}
	slashed := filepath.ToSlash(rel)
	if path.IsAbs(slashed) || filepath.IsAbs(rel) {
		return "", fmt.Errorf("%w: %q is absolute", ErrUnsafeRelPath, rel)
	}
	cleaned := path.Clean(slashed)
	if cleaned == "." || cleaned == ".." || strings.HasPrefix(cleaned, "../") {
		return "", fmt.Errorf("%w: %q leaves its root", ErrUnsafeRelPath, rel)
	}
	return cleaned, nil
}
