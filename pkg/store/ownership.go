// SPDX-License-Identifier: MPL-2.0

package store

type fileKey struct {
	part string
	path string
}

// Ownership maps (part, path) pairs to the package that lists them. It is a
// snapshot; it does not follow later store changes.
type Ownership struct {
	owners  map[fileKey]string
	without string
}

// Ownership builds the index from every readable record.
func (s *Store) Ownership() (*Ownership, error) {
	infos, err := s.All()
	if err != nil {
		return nil, err
	}

	o := &Ownership{owners: make(map[fileKey]string)}
	for _, info := range infos {
		for part, files := range info.Files {
			for _, p := range files {
				key := fileKey{part: part, path: p}
				if prev, taken := o.owners[key]; taken {
					s.logger.Warn("file listed by two packages", "part", part, "path", p, "kept", prev, "ignored", info.Name)
					continue
				}
				o.owners[key] = info.Name
			}
		}
	}
	return o, nil
}

// OwnerOf returns the package owning path in part.
func (o *Ownership) OwnerOf(part, path string) (string, bool) {
	name, ok := o.owners[fileKey{part: part, path: path}]
	if !ok || name == o.without {
		return "", false
	}
	return name, true
}

// Without returns a view of the index that ignores the files of name.
func (o *Ownership) Without(name string) *Ownership {
	return &Ownership{owners: o.owners, without: name}
}

// Len returns the number of owned files.
func (o *Ownership) Len() int {
	if o.without == "" {
		return len(o.owners)
	}
	n := 0
	for _, owner := range o.owners {
		if owner != o.without {
			n++
		}
	}
	return n
}
