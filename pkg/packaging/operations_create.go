// SPDX-License-Identifier: MPL-2.0

package packaging

import (
	"github.com/mkptool/mkp/pkg/pkginfo"
	"github.com/mkptool/mkp/pkg/scan"
)

// Create claims every unpackaged file of the package parts for a new package
// named name. The record is written atomically, so a failed create leaves no
// claim behind.
func (m *Manager) Create(name string) (*pkginfo.Info, error) {
	const op = "create"

	if err := pkginfo.ValidateName(name); err != nil {
		return nil, newError(KindInvalidName, op, name, "", err)
	}

	release, err := m.acquire(op)
	if err != nil {
		return nil, err
	}
	defer release()

	if _, exists := m.store.Read(name); exists {
		return nil, newError(KindAlreadyExists, op, name, "", nil)
	}

	owners, err := m.store.Ownership()
	if err != nil {
		return nil, newError(KindIOFailure, op, name, "ownership", err)
	}

	m.logger.Debug("creating package", "name", name)
	info := pkginfo.New(name, m.host)
	for _, part := range m.parts.PackageParts() {
		files, err := scan.Unpackaged(part, owners)
		if err != nil {
			return nil, newError(KindIOFailure, op, name, "scan "+part.Ident, err)
		}
		info.SetFiles(part.Ident, files)
		for _, f := range files {
			m.logger.Debug("claimed file", "part", part.Ident, "path", f)
		}
	}

	if err := m.store.Write(info); err != nil {
		return nil, newError(KindIOFailure, op, name, "write record", err)
	}

	m.logger.Debug("package created", "name", name, "files", info.NumFiles(),
		"record", m.store.Path(name))
	return info, nil
}
