// SPDX-License-Identifier: MPL-2.0

package pkginfo

import (
	_ "embed"
	"fmt"
	"strconv"
	"strings"

	"github.com/mkptool/mkp/pkg/cueutil"
)

//go:embed pkginfo_schema.cue
var schemaBytes []byte

// record is the wire shape shared by every encoding. Decoding from CUE uses
// the json tags.
type record struct {
	Name               string              `json:"name" yaml:"name" toml:"name"`
	Version            string              `json:"version" yaml:"version" toml:"version"`
	VersionPackaged    string              `json:"version.packaged" yaml:"version.packaged" toml:"version.packaged"`
	VersionMinRequired string              `json:"version.min_required" yaml:"version.min_required" toml:"version.min_required"`
	VersionUsableUntil *string             `json:"version.usable_until" yaml:"version.usable_until" toml:"version.usable_until,omitempty"`
	Title              string              `json:"title" yaml:"title" toml:"title"`
	Author             string              `json:"author" yaml:"author" toml:"author"`
	DownloadURL        string              `json:"download_url" yaml:"download_url" toml:"download_url"`
	Description        string              `json:"description" yaml:"description" toml:"description"`
	Files              map[string][]string `json:"files" yaml:"files" toml:"files"`
	NumFiles           int                 `json:"num_files" yaml:"num_files" toml:"num_files"`
}

func toRecord(i *Info) record {
	r := record{
		Name:               i.Name,
		Version:            i.Version,
		VersionPackaged:    i.VersionPackaged,
		VersionMinRequired: i.VersionMinRequired,
		Title:              i.Title,
		Author:             i.Author,
		DownloadURL:        i.DownloadURL,
		Description:        i.Description,
		Files:              make(map[string][]string, len(i.Files)),
		NumFiles:           i.NumFiles(),
	}
	if i.VersionUsableUntil != "" {
		until := i.VersionUsableUntil
		r.VersionUsableUntil = &until
	}
	for _, ident := range i.PartIdents() {
		r.Files[ident] = i.Files[ident]
	}
	return r
}

func fromRecord(r *record) *Info {
	i := &Info{
		Name:               r.Name,
		Version:            r.Version,
		VersionPackaged:    r.VersionPackaged,
		VersionMinRequired: r.VersionMinRequired,
		Title:              r.Title,
		Author:             r.Author,
		DownloadURL:        r.DownloadURL,
		Description:        r.Description,
		Files:              make(map[string][]string, len(r.Files)),
	}
	if r.VersionUsableUntil != nil {
		i.VersionUsableUntil = *r.VersionUsableUntil
	}
	for ident, files := range r.Files {
		i.SetFiles(ident, files)
	}
	return i
}

// Encode renders the record as CUE text. Parts are written in sorted order,
// paths in record order. num_files is recomputed.
func Encode(i *Info) []byte {
	var sb strings.Builder

	field := func(label, value string) {
		sb.WriteString(cueutil.QuoteLabel(label))
		sb.WriteString(": ")
		sb.WriteString(cueutil.Quote(value))
		sb.WriteString("\n")
	}

	field("name", i.Name)
	field("version", i.Version)
	field("version.packaged", i.VersionPackaged)
	field("version.min_required", i.VersionMinRequired)
	if i.VersionUsableUntil != "" {
		field("version.usable_until", i.VersionUsableUntil)
	}
	field("title", i.Title)
	field("author", i.Author)
	field("download_url", i.DownloadURL)
	field("description", i.Description)

	idents := i.PartIdents()
	if len(idents) == 0 {
		sb.WriteString(cueutil.QuoteLabel("files") + ": {}\n")
	} else {
		sb.WriteString(cueutil.QuoteLabel("files") + ": {\n")
		for _, ident := range idents {
			sb.WriteString("\t" + cueutil.QuoteLabel(ident) + ": [\n")
			for _, p := range i.Files[ident] {
				sb.WriteString("\t\t" + cueutil.Quote(p) + ",\n")
			}
			sb.WriteString("\t]\n")
		}
		sb.WriteString("}\n")
	}

	sb.WriteString(cueutil.QuoteLabel("num_files") + ": " + strconv.Itoa(i.NumFiles()) + "\n")
	return []byte(sb.String())
}

// Parse decodes record text. CUE and JSON are both accepted since JSON is
// valid CUE. source names the text in error messages.
func Parse(raw []byte, source string) (*Info, error) {
	result, err := cueutil.ParseAndDecode[record](schemaBytes, raw, "#PackageInfo",
		cueutil.WithFilename(source))
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidRecord, err)
	}

	info := fromRecord(result.Value)
	if err := info.Validate(); err != nil {
		return nil, err
	}
	return info, nil
}
