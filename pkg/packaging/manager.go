// SPDX-License-Identifier: MPL-2.0

// Package packaging implements the package lifecycle: create, pack, install,
// remove and release, plus the read-only queries behind list, show and find.
//
// Mutating operations are serialized by an exclusive lock on
// <var_dir>/packages/.lock (flock where available) and an in-process mutex.
// Queries take no lock.
package packaging

import (
	"errors"
	"fmt"
	"io"
	"os"
	"sync"

	"github.com/charmbracelet/log"
	"github.com/klauspost/compress/gzip"

	"github.com/mkptool/mkp/pkg/archive"
	"github.com/mkptool/mkp/pkg/fspath"
	"github.com/mkptool/mkp/pkg/parts"
	"github.com/mkptool/mkp/pkg/pkginfo"
	"github.com/mkptool/mkp/pkg/scan"
	"github.com/mkptool/mkp/pkg/store"
	"github.com/mkptool/mkp/pkg/types"
)

// lockFileName lives in the store directory; Names() skips it.
const lockFileName = ".lock"

type (
	// Options configures a Manager.
	Options struct {
		// Parts is the part registry. Required.
		Parts *parts.Registry
		// Store holds the package records. Required.
		Store *store.Store
		// VarDir is the internal data directory; pack refuses to write
		// inside it. Required.
		VarDir types.FilesystemPath
		// HostVersion is recorded in new packages and used for the
		// compatibility check.
		HostVersion string
		// Logger receives step-by-step progress. Nil discards.
		Logger *log.Logger
		// LockPath overrides the namespace lock file.
		LockPath types.FilesystemPath
		// EnforceCompatibility makes install fail for packages whose
		// version range excludes HostVersion.
		EnforceCompatibility bool
		// CompressionLevel is the gzip level for pack. Zero selects the
		// default level.
		CompressionLevel int
	}

	// Manager runs package operations against one site.
	Manager struct {
		parts   *parts.Registry
		store   *store.Store
		varDir  types.FilesystemPath
		host    string
		logger  *log.Logger
		lock    types.FilesystemPath
		enforce bool
		level   int

		mu sync.Mutex
	}

	// PartFiles groups files of one part.
	PartFiles struct {
		Part  parts.Part
		Files []string
	}

	// FileRef is one package file with its absolute location.
	FileRef struct {
		Part parts.Part
		Path string
		Abs  types.FilesystemPath
	}

	// Summary is one row of List. Info is nil and Err set when the record
	// is missing or broken.
	Summary struct {
		Name string
		Info *pkginfo.Info
		Err  error
	}
)

// New validates opts and returns a Manager.
func New(opts Options) (*Manager, error) {
	if opts.Parts == nil {
		return nil, errors.New("packaging: part registry is required")
	}
	if opts.Store == nil {
		return nil, errors.New("packaging: store is required")
	}
	if err := opts.VarDir.ValidateAbs(); err != nil {
		return nil, fmt.Errorf("packaging: var dir: %w", err)
	}

	logger := opts.Logger
	if logger == nil {
		logger = log.New(io.Discard)
	}

	lockPath := opts.LockPath
	if lockPath == "" {
		lockPath = fspath.JoinStr(types.FilesystemPath(opts.Store.Dir()), lockFileName)
	}

	level := opts.CompressionLevel
	if level == 0 {
		level = gzip.DefaultCompression
	}

	return &Manager{
		parts:   opts.Parts,
		store:   opts.Store,
		varDir:  fspath.Clean(opts.VarDir),
		host:    opts.HostVersion,
		logger:  logger,
		lock:    lockPath,
		enforce: opts.EnforceCompatibility,
		level:   level,
	}, nil
}

// Parts returns the part registry.
func (m *Manager) Parts() *parts.Registry {
	return m.parts
}

// HostVersion returns the configured host version.
func (m *Manager) HostVersion() string {
	return m.host
}

// PackageDir returns the directory holding the package records.
func (m *Manager) PackageDir() types.FilesystemPath {
	return types.FilesystemPath(m.store.Dir())
}

// acquire takes the namespace lock. The returned func releases it.
func (m *Manager) acquire(op string) (func(), error) {
	m.mu.Lock()

	fl, err := acquireFileLock(string(m.lock), m.logger)
	if err != nil {
		if errors.Is(err, errFlockUnavailable) {
			return m.mu.Unlock, nil
		}
		m.mu.Unlock()
		return nil, newError(KindIOFailure, op, "", "lock", err)
	}

	return func() {
		fl.Release()
		m.mu.Unlock()
	}, nil
}

// Get returns the installed record of name.
func (m *Manager) Get(name string) (*pkginfo.Info, error) {
	if err := pkginfo.ValidateName(name); err != nil {
		return nil, newError(KindInvalidName, "show", name, "", err)
	}
	info, err := m.store.Load(name)
	if err != nil {
		return nil, m.loadError("show", name, err)
	}
	return info, nil
}

// lookup is Get for mutating operations: a broken record counts as missing,
// with the parse failure kept as the cause.
func (m *Manager) lookup(op, name string) (*pkginfo.Info, error) {
	if err := pkginfo.ValidateName(name); err != nil {
		return nil, newError(KindInvalidName, op, name, "", err)
	}
	info, err := m.store.Load(name)
	if err != nil {
		if errors.Is(err, pkginfo.ErrInvalidRecord) {
			return nil, newError(KindNotFound, op, name, "", err)
		}
		return nil, m.loadError(op, name, err)
	}
	return info, nil
}

func (m *Manager) loadError(op, name string, err error) error {
	switch {
	case errors.Is(err, store.ErrNotFound):
		return newError(KindNotFound, op, name, "", err)
	case errors.Is(err, pkginfo.ErrInvalidRecord):
		return newError(KindParseError, op, name, "", err)
	default:
		return newError(KindIOFailure, op, name, "read record", err)
	}
}

// List returns one summary per stored record, sorted by name. Broken
// records are reported with Err set instead of failing the listing.
func (m *Manager) List() ([]Summary, error) {
	names, err := m.store.Names()
	if err != nil {
		return nil, newError(KindIOFailure, "list", "", "", err)
	}

	summaries := make([]Summary, 0, len(names))
	for _, name := range names {
		info, err := m.store.Load(name)
		summaries = append(summaries, Summary{Name: name, Info: info, Err: err})
	}
	return summaries, nil
}

// Inspect reads the record of a package file without touching the payload.
func (m *Manager) Inspect(path types.FilesystemPath) (*pkginfo.Info, error) {
	f, err := os.Open(string(path))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, newError(KindNotFound, "show", string(path), "", err)
		}
		return nil, newError(KindIOFailure, "show", string(path), "open", err)
	}
	defer func() { _ = f.Close() }()

	info, err := archive.ReadInfo(f)
	if err != nil {
		return nil, newError(KindCorruptArchive, "show", string(path), "", err)
	}
	return info, nil
}

// Files returns the absolute locations of the record's files in part order.
// Files in parts the registry does not know are omitted.
func (m *Manager) Files(info *pkginfo.Info) []FileRef {
	var refs []FileRef
	for _, part := range m.parts.PackageParts() {
		for _, p := range info.Files[part.Ident] {
			refs = append(refs, FileRef{
				Part: part,
				Path: p,
				Abs:  fspath.JoinRel(types.FilesystemPath(part.Path), p),
			})
		}
	}
	return refs
}

// Find returns the unpackaged files of every package part, then of every
// config part. Parts without unpackaged files are omitted.
func (m *Manager) Find() ([]PartFiles, error) {
	owners, err := m.store.Ownership()
	if err != nil {
		return nil, newError(KindIOFailure, "find", "", "ownership", err)
	}

	var result []PartFiles
	for _, part := range m.parts.All() {
		files, err := scan.Unpackaged(part, owners)
		if err != nil {
			return nil, newError(KindIOFailure, "find", "", "scan "+part.Ident, err)
		}
		if len(files) > 0 {
			result = append(result, PartFiles{Part: part, Files: files})
		}
	}
	return result, nil
}

// Compatibility checks info against the host version.
func (m *Manager) Compatibility(info *pkginfo.Info) pkginfo.Compatibility {
	return pkginfo.CheckCompatibility(info, m.host)
}
