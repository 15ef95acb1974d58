// SPDX-License-Identifier: MPL-2.0

package packaging

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/mkptool/mkp/pkg/pkginfo"
)

// Remove deletes every file of the installed package name, then its record.
// Files that are already gone are skipped with a warning. Directories left
// empty below a part root are removed as well.
func (m *Manager) Remove(name string) (*pkginfo.Info, error) {
	const op = "remove"

	release, err := m.acquire(op)
	if err != nil {
		return nil, err
	}
	defer release()

	info, err := m.lookup(op, name)
	if err != nil {
		return nil, err
	}

	m.logger.Debug("removing package", "name", name)
	for _, ref := range m.Files(info) {
		err := os.Remove(string(ref.Abs))
		switch {
		case err == nil:
			m.logger.Debug("removed file", "part", ref.Part.Ident, "path", ref.Path)
			pruneEmptyDirs(filepath.Dir(string(ref.Abs)), ref.Part.Path)
		case errors.Is(err, fs.ErrNotExist):
			m.logger.Warn("file already removed", "part", ref.Part.Ident, "path", ref.Path)
		default:
			return nil, newError(KindIOFailure, op, name, "remove "+ref.Part.Ident+"/"+ref.Path, err)
		}
	}

	if err := m.store.Delete(name); err != nil {
		return nil, newError(KindIOFailure, op, name, "delete record", err)
	}

	m.logger.Debug("package removed", "name", name)
	return info, nil
}

// Release drops the record of name. Its files stay on disk and become
// unpackaged.
func (m *Manager) Release(name string) (*pkginfo.Info, error) {
	const op = "release"

	release, err := m.acquire(op)
	if err != nil {
		return nil, err
	}
	defer release()

	info, err := m.lookup(op, name)
	if err != nil {
		return nil, err
	}

	if err := m.store.Delete(name); err != nil {
		return nil, newError(KindIOFailure, op, name, "delete record", err)
	}

	m.logger.Debug("package released", "name", name, "files", info.NumFiles())
	return info, nil
}
