// SPDX-License-Identifier: MPL-2.0

package packaging

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"syscall"

	"github.com/mkptool/mkp/pkg/fspath"
	"github.com/mkptool/mkp/pkg/types"
)

// moveFile renames src to dst, creating dst's parent. Across filesystems it
// copies and removes instead.
func moveFile(src, dst string) error {
	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return err
	}
	err := os.Rename(src, dst)
	if err == nil || !errors.Is(err, syscall.EXDEV) {
		return err
	}
	if err := copyFile(src, dst); err != nil {
		return err
	}
	return os.Remove(src)
}

// copyFile copies a regular file or symlink, keeping permission bits.
func copyFile(src, dst string) (err error) {
	fi, err := os.Lstat(src)
	if err != nil {
		return err
	}

	if fi.Mode()&fs.ModeSymlink != 0 {
		target, err := os.Readlink(src)
		if err != nil {
			return err
		}
		return os.Symlink(target, dst)
	}
	if !fi.Mode().IsRegular() {
		return fmt.Errorf("%s: not a regular file", src)
	}

	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer func() { _ = in.Close() }()

	out, err := os.OpenFile(dst, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, fi.Mode().Perm())
	if err != nil {
		return err
	}
	defer func() {
		if closeErr := out.Close(); closeErr != nil && err == nil {
			err = closeErr
		}
	}()

	_, err = io.Copy(out, in)
	return err
}

// writeFile writes r to path with the given permission bits.
func writeFile(path string, mode fs.FileMode, r io.Reader) (err error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, mode.Perm())
	if err != nil {
		return err
	}
	defer func() {
		if closeErr := f.Close(); closeErr != nil && err == nil {
			err = closeErr
		}
	}()

	if _, err := io.Copy(f, r); err != nil {
		return err
	}
	// OpenFile honours the umask; packaged modes are restored exactly.
	return f.Chmod(mode.Perm())
}

// exists reports whether path exists, without following a final symlink.
func exists(path string) (bool, error) {
	_, err := os.Lstat(path)
	if err == nil {
		return true, nil
	}
	if errors.Is(err, fs.ErrNotExist) {
		return false, nil
	}
	return false, err
}

// pruneEmptyDirs removes dir and then its parents for as long as they are
// empty. root and anything outside it are never removed.
func pruneEmptyDirs(dir, root string) {
	root = filepath.Clean(root)
	for dir = filepath.Clean(dir); dir != root; dir = filepath.Dir(dir) {
		if !fspath.IsWithin(types.FilesystemPath(dir), types.FilesystemPath(root)) {
			return
		}
		if err := os.Remove(dir); err != nil {
			return
		}
	}
}
