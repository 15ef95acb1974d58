// SPDX-License-Identifier: MPL-2.0

// Package store persists package metadata records, one file per package, and
// derives the file ownership index from them.
package store

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/charmbracelet/log"

	"github.com/mkptool/mkp/pkg/pkginfo"
)

// tempPrefix marks in-flight writes. Names() skips them.
const tempPrefix = ".tmp-"

// ErrNotFound is returned by Load when no record exists.
var ErrNotFound = errors.New("package not found")

// Store reads and writes records below a single directory.
type Store struct {
	dir    string
	logger *log.Logger
}

// New returns a store rooted at dir (usually <var_dir>/packages). The
// directory is created on first write. A nil logger discards output.
func New(dir string, logger *log.Logger) *Store {
	if logger == nil {
		logger = log.New(io.Discard)
	}
	return &Store{dir: dir, logger: logger}
}

// Dir returns the store directory.
func (s *Store) Dir() string {
	return s.dir
}

// Path returns the record file of name.
func (s *Store) Path(name string) string {
	return filepath.Join(s.dir, name)
}

// Read returns the record of name, or false if it is missing or unreadable.
func (s *Store) Read(name string) (*pkginfo.Info, bool) {
	info, err := s.Load(name)
	if err != nil {
		if !errors.Is(err, ErrNotFound) {
			s.logger.Debug("ignoring unreadable package record", "name", name, "err", err)
		}
		return nil, false
	}
	return info, true
}

// Load is Read with the reason for a missing record: ErrNotFound, a
// pkginfo.ErrInvalidRecord parse failure or an I/O error.
func (s *Store) Load(name string) (*pkginfo.Info, error) {
	if err := pkginfo.ValidateName(name); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrNotFound, err)
	}

	raw, err := os.ReadFile(s.Path(name))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, name)
		}
		return nil, fmt.Errorf("read package record %s: %w", name, err)
	}

	info, err := s.Parse(raw, name)
	if err != nil {
		return nil, err
	}
	if info.Name != name {
		return nil, fmt.Errorf("%w: record %s names package %q", pkginfo.ErrInvalidRecord, name, info.Name)
	}
	return info, nil
}

// Parse decodes record text.
func (s *Store) Parse(raw []byte, source string) (*pkginfo.Info, error) {
	return pkginfo.Parse(raw, source)
}

// Write persists info atomically: the record is written to a temp file in
// the store directory, synced and renamed over the old one.
func (s *Store) Write(info *pkginfo.Info) error {
	if err := info.Validate(); err != nil {
		return err
	}
	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return fmt.Errorf("create package directory: %w", err)
	}

	tmp, err := os.CreateTemp(s.dir, tempPrefix+info.Name+"-*")
	if err != nil {
		return fmt.Errorf("create temp record: %w", err)
	}
	tmpName := tmp.Name()
	defer func() {
		if tmpName != "" {
			_ = os.Remove(tmpName)
		}
	}()

	if _, err := tmp.Write(pkginfo.Encode(info)); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("write record %s: %w", info.Name, err)
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("sync record %s: %w", info.Name, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close record %s: %w", info.Name, err)
	}
	if err := os.Chmod(tmpName, 0o644); err != nil {
		return fmt.Errorf("chmod record %s: %w", info.Name, err)
	}
	if err := os.Rename(tmpName, s.Path(info.Name)); err != nil {
		return fmt.Errorf("commit record %s: %w", info.Name, err)
	}
	tmpName = ""

	s.logger.Debug("wrote package record", "name", info.Name, "files", info.NumFiles())
	return nil
}

// Delete removes the record of name. A missing record is not an error.
func (s *Store) Delete(name string) error {
	if err := pkginfo.ValidateName(name); err != nil {
		return err
	}
	if err := os.Remove(s.Path(name)); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("delete record %s: %w", name, err)
	}
	return nil
}

// Names returns the names of all stored records, sorted. Hidden files, temp
// files and directories are skipped.
func (s *Store) Names() ([]string, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("list package directory: %w", err)
	}

	names := make([]string, 0, len(entries))
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || strings.HasPrefix(name, ".") {
			continue
		}
		if pkginfo.ValidateName(name) != nil {
			continue
		}
		names = append(names, name)
	}
	slices.Sort(names)
	return names, nil
}

// All returns every readable record in name order. Unreadable records are
// skipped.
func (s *Store) All() ([]*pkginfo.Info, error) {
	names, err := s.Names()
	if err != nil {
		return nil, err
	}
	infos := make([]*pkginfo.Info, 0, len(names))
	for _, name := range names {
		if info, ok := s.Read(name); ok {
			infos = append(infos, info)
		}
	}
	return infos, nil
}
