// SPDX-License-Identifier: MPL-2.0

package packaging

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"maps"
	"os"
	"path/filepath"
	"slices"

	"github.com/charmbracelet/log"
	"github.com/google/uuid"

	"github.com/mkptool/mkp/pkg/archive"
	"github.com/mkptool/mkp/pkg/pkginfo"
	"github.com/mkptool/mkp/pkg/types"
)

const stagingPrefix = ".install-"

// InstallResult describes a completed install.
type InstallResult struct {
	// Info is the installed record.
	Info *pkginfo.Info
	// Replaced is the previous record of the same name, if any.
	Replaced *pkginfo.Info

	Added   []FileRef
	Updated []FileRef
	// Removed lists files of Replaced the new version no longer ships.
	Removed []FileRef

	Compatibility pkginfo.Compatibility
	// TransactionID names the staging area and appears in log lines.
	TransactionID string
}

// swap records one completed filesystem move so it can be undone.
type swap struct {
	target string
	root   string // part root, kept when pruning
	backup string // empty when target did not exist
	placed bool   // target now holds a staged file
}

// Install installs or updates the package in the package file at path.
//
// The package file is first extracted into a staging area next to the
// records. Only when every listed file arrived, no file belongs to another
// package and the version gate passes are the files moved into place. Files
// the new version no longer ships are moved away before the new files are
// placed, so a path may change from file to directory or back. Any
// failure while moving files or writing the record restores the previous
// files and record.
func (m *Manager) Install(path types.FilesystemPath) (*InstallResult, error) {
	const op = "install"
	name := string(path)

	if _, err := os.Stat(name); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, newError(KindNotFound, op, name, "", err)
		}
		return nil, newError(KindIOFailure, op, name, "open", err)
	}

	release, err := m.acquire(op)
	if err != nil {
		return nil, err
	}
	defer release()

	txID := uuid.NewString()
	logger := m.logger.With("tx", txID)

	staging := filepath.Join(m.store.Dir(), stagingPrefix+txID)
	if err := os.MkdirAll(staging, 0o700); err != nil {
		return nil, newError(KindIOFailure, op, name, "create staging area", err)
	}
	defer func() {
		if err := os.RemoveAll(staging); err != nil {
			logger.Warn("could not remove staging area", "dir", staging, "err", err)
		}
	}()
	stagedRoot := filepath.Join(staging, "files")
	backupRoot := filepath.Join(staging, "backup")

	// 1. extract
	logger.Debug("extracting", "file", name)
	info, err := m.extract(name, stagedRoot)
	if err != nil {
		kind := KindIOFailure
		if errors.Is(err, archive.ErrCorrupt) {
			kind = KindCorruptArchive
		}
		return nil, newError(kind, op, name, "extract", err)
	}
	name = info.Name
	m.dropUnknownParts(info, logger)

	// 2. verify
	for _, ref := range m.Files(info) {
		if ok, _ := exists(stagedPath(stagedRoot, ref)); !ok {
			return nil, newError(KindCorruptArchive, op, name, "verify",
				fmt.Errorf("%w: %s/%s is listed but missing", ErrCorruptArchive, ref.Part.Ident, ref.Path))
		}
	}

	// 3. conflicts
	old, _ := m.store.Read(info.Name)
	owners, err := m.store.Ownership()
	if err != nil {
		return nil, newError(KindIOFailure, op, name, "ownership", err)
	}
	owners = owners.Without(info.Name)
	var conflicts []Conflict
	for _, ref := range m.Files(info) {
		if owner, owned := owners.OwnerOf(ref.Part.Ident, ref.Path); owned {
			conflicts = append(conflicts, Conflict{Part: ref.Part.Ident, Path: ref.Path, Owner: owner})
		}
	}
	if len(conflicts) > 0 {
		return nil, newError(KindFileConflict, op, name, "check ownership", &FileConflictError{Conflicts: conflicts})
	}

	// 4. version gate
	compat := m.Compatibility(info)
	switch {
	case compat.Status == pkginfo.CompatUnknown:
		logger.Warn("cannot check version compatibility", "name", name, "reason", compat.Reason)
	case !compat.OK() && m.enforce:
		return nil, newError(KindIncompatibleVersion, op, name, "check version",
			fmt.Errorf("%w: %s", ErrIncompatibleVersion, compat.Reason))
	case !compat.OK():
		logger.Warn("package is not compatible with this version", "name", name, "reason", compat.Reason)
	}

	result := &InstallResult{
		Info:          info,
		Replaced:      old,
		Compatibility: compat,
		TransactionID: txID,
	}

	// 5. swap
	var done []swap
	rollback := func() {
		for i := len(done) - 1; i >= 0; i-- {
			s := done[i]
			if s.placed {
				if err := os.Remove(s.target); err != nil && !errors.Is(err, fs.ErrNotExist) {
					logger.Error("rollback: cannot remove installed file", "path", s.target, "err", err)
				}
				pruneEmptyDirs(filepath.Dir(s.target), s.root)
			}
			if s.backup != "" {
				if err := moveFile(s.backup, s.target); err != nil {
					logger.Error("rollback: cannot restore file", "path", s.target, "err", err)
				}
			}
		}
	}

	if old != nil {
		for _, ref := range m.Files(old) {
			if info.Owns(ref.Part.Ident, ref.Path) {
				continue
			}
			target := string(ref.Abs)
			present, err := exists(target)
			if err != nil {
				rollback()
				return nil, newError(KindIOFailure, op, name, "remove "+ref.Part.Ident+"/"+ref.Path, err)
			}
			if !present {
				logger.Warn("obsolete file already gone", "part", ref.Part.Ident, "path", ref.Path)
				continue
			}
			s := swap{
				target: target,
				root:   ref.Part.Path,
				backup: stagedPath(filepath.Join(backupRoot, "obsolete"), ref),
			}
			if err := moveFile(target, s.backup); err != nil {
				rollback()
				return nil, newError(KindIOFailure, op, name, "remove "+ref.Part.Ident+"/"+ref.Path, err)
			}
			done = append(done, s)
			pruneEmptyDirs(filepath.Dir(target), ref.Part.Path)
			result.Removed = append(result.Removed, ref)
			logger.Debug("removed obsolete file", "part", ref.Part.Ident, "path", ref.Path)
		}
	}

	for _, ref := range m.Files(info) {
		target := string(ref.Abs)
		s := swap{target: target, root: ref.Part.Path}

		present, err := exists(target)
		if err != nil {
			rollback()
			return nil, newError(KindIOFailure, op, name, "replace "+ref.Part.Ident+"/"+ref.Path, err)
		}
		if present {
			s.backup = stagedPath(backupRoot, ref)
			if err := moveFile(target, s.backup); err != nil {
				rollback()
				return nil, newError(KindIOFailure, op, name, "replace "+ref.Part.Ident+"/"+ref.Path, err)
			}
		}
		if err := moveFile(stagedPath(stagedRoot, ref), target); err != nil {
			done = append(done, s)
			rollback()
			return nil, newError(KindIOFailure, op, name, "replace "+ref.Part.Ident+"/"+ref.Path, err)
		}
		s.placed = true
		done = append(done, s)

		if old != nil && old.Owns(ref.Part.Ident, ref.Path) {
			result.Updated = append(result.Updated, ref)
		} else {
			result.Added = append(result.Added, ref)
		}
		logger.Debug("installed file", "part", ref.Part.Ident, "path", ref.Path)
	}

	// 6. persist
	if err := m.store.Write(info); err != nil {
		rollback()
		if old != nil {
			if restoreErr := m.store.Write(old); restoreErr != nil {
				logger.Error("rollback: cannot restore record", "name", name, "err", restoreErr)
			}
		}
		return nil, newError(KindIOFailure, op, name, "write record", err)
	}

	logger.Debug("package installed", "name", name, "version", info.Version,
		"added", len(result.Added), "updated", len(result.Updated), "removed", len(result.Removed))
	return result, nil
}

// extract unpacks the package file into root/<part>/<path>.
func (m *Manager) extract(path, root string) (*pkginfo.Info, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer func() { _ = f.Close() }()

	return archive.Extract(f, func(ident, rel string, mode fs.FileMode, r io.Reader) error {
		if !m.parts.IsPackagePart(ident) {
			m.logger.Debug("skipping member of unknown part", "part", ident, "path", rel)
			return nil
		}
		return writeFile(filepath.Join(root, ident, filepath.FromSlash(rel)), mode, r)
	})
}

// dropUnknownParts removes parts the registry does not know from info.
func (m *Manager) dropUnknownParts(info *pkginfo.Info, logger *log.Logger) {
	for _, ident := range slices.Sorted(maps.Keys(info.Files)) {
		if !m.parts.IsPackagePart(ident) {
			logger.Warn("ignoring files of unknown part", "part", ident, "files", len(info.Files[ident]))
			info.SetFiles(ident, nil)
		}
	}
}

func stagedPath(root string, ref FileRef) string {
	return filepath.Join(root, ref.Part.Ident, filepath.FromSlash(ref.Path))
}
