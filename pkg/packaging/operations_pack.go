// SPDX-License-Identifier: MPL-2.0

package packaging

import (
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/mkptool/mkp/pkg/archive"
	"github.com/mkptool/mkp/pkg/fspath"
	"github.com/mkptool/mkp/pkg/pkginfo"
	"github.com/mkptool/mkp/pkg/types"
)

// Pack writes the package file of the installed package name into destDir
// (the working directory when empty) and returns its path. destDir must not
// be the var dir or a part root, or lie below one.
func (m *Manager) Pack(name string, destDir types.FilesystemPath) (types.FilesystemPath, error) {
	const op = "pack"

	absDest, err := m.outputDir(op, name, destDir)
	if err != nil {
		return "", err
	}

	info, err := m.lookup(op, name)
	if err != nil {
		return "", err
	}

	target := fspath.JoinStr(absDest, archive.FileName(info))
	if fspath.Dir(target) != absDest {
		return "", newError(KindParseError, op, name, "file name",
			fmt.Errorf("%w: %s: version %q", pkginfo.ErrInvalidRecord, name, info.Version))
	}
	m.logger.Debug("packing", "name", name, "file", target)

	tmp, err := os.CreateTemp(string(absDest), "."+info.Name+"-*"+archive.Ext)
	if err != nil {
		return "", newError(KindIOFailure, op, name, "create file", err)
	}
	tmpName := tmp.Name()
	defer func() {
		if tmpName != "" {
			_ = os.Remove(tmpName)
		}
	}()

	if err := m.writeArchive(tmp, info); err != nil {
		_ = tmp.Close()
		return "", newError(KindIOFailure, op, name, "write archive", err)
	}
	if err := tmp.Close(); err != nil {
		return "", newError(KindIOFailure, op, name, "write archive", err)
	}
	if err := os.Chmod(tmpName, 0o644); err != nil {
		return "", newError(KindIOFailure, op, name, "write archive", err)
	}
	if err := os.Rename(tmpName, string(target)); err != nil {
		return "", newError(KindIOFailure, op, name, "commit archive", err)
	}
	tmpName = ""

	m.logger.Debug("packed", "name", name, "file", target, "files", info.NumFiles())
	return target, nil
}

// PackTo streams the package file of the installed package name to w. Like
// Pack with an empty destDir, it refuses to run from a managed directory.
func (m *Manager) PackTo(name string, w io.Writer) error {
	const op = "pack"

	if _, err := m.outputDir(op, name, ""); err != nil {
		return err
	}

	info, err := m.lookup(op, name)
	if err != nil {
		return err
	}
	if err := m.writeArchive(w, info); err != nil {
		return newError(KindIOFailure, op, name, "write archive", err)
	}
	return nil
}

// outputDir returns the absolute form of dir, or of the working directory
// when dir is empty, and rejects managed directories.
func (m *Manager) outputDir(op, name string, dir types.FilesystemPath) (types.FilesystemPath, error) {
	if dir == "" {
		wd, err := os.Getwd()
		if err != nil {
			return "", newError(KindIOFailure, op, name, "working directory", err)
		}
		dir = types.FilesystemPath(wd)
	}
	abs, err := fspath.Abs(dir)
	if err != nil {
		return "", newError(KindIOFailure, op, name, "working directory", err)
	}
	if root, inside := m.managedRoot(abs); inside {
		return "", newError(KindWorkingDirectoryConflict, op, name, "",
			fmt.Errorf("%w: %s is inside %s", ErrWorkingDirectoryConflict, abs, root))
	}
	return abs, nil
}

func (m *Manager) writeArchive(w io.Writer, info *pkginfo.Info) error {
	return archive.Write(w, info, m.parts.Idents(), m.openPartFile,
		archive.WithCompressionLevel(m.level))
}

func (m *Manager) openPartFile(ident, rel string) (io.ReadCloser, fs.FileInfo, error) {
	part, ok := m.parts.Lookup(ident)
	if !ok {
		return nil, nil, fmt.Errorf("unknown part %q", ident)
	}
	f, err := os.Open(part.Abs(rel))
	if err != nil {
		return nil, nil, err
	}
	fi, err := f.Stat()
	if err != nil {
		_ = f.Close()
		return nil, nil, err
	}
	m.logger.Debug("packing file", "part", ident, "path", rel)
	return f, fi, nil
}

// managedRoot returns the managed directory dir lies in, if any.
func (m *Manager) managedRoot(dir types.FilesystemPath) (types.FilesystemPath, bool) {
	roots := []types.FilesystemPath{m.varDir}
	for _, p := range m.parts.All() {
		roots = append(roots, types.FilesystemPath(p.Path))
	}

	resolved := resolve(dir)
	for _, root := range roots {
		if fspath.IsWithin(dir, root) || fspath.IsWithin(resolved, resolve(root)) {
			return root, true
		}
	}
	return "", false
}

// resolve follows symlinks where the path exists.
func resolve(p types.FilesystemPath) types.FilesystemPath {
	if r, err := filepath.EvalSymlinks(string(p)); err == nil {
		return types.FilesystemPath(r)
	}
	return p
}
