// SPDX-License-Identifier: MPL-2.0

package pkginfo

import (
	"encoding/json"
	"fmt"

	"github.com/goccy/go-yaml"
	"github.com/pelletier/go-toml/v2"
)

// Format is an output encoding for a record.
type Format string

const (
	// FormatCUE is the native record encoding.
	FormatCUE Format = "cue"
	// FormatJSON is used for the info.json archive member.
	FormatJSON Format = "json"
	// FormatYAML renders the record as YAML.
	FormatYAML Format = "yaml"
	// FormatTOML renders the record as TOML.
	FormatTOML Format = "toml"
)

// Formats lists the supported export formats.
func Formats() []Format {
	return []Format{FormatCUE, FormatJSON, FormatYAML, FormatTOML}
}

// ParseFormat validates a format name.
func ParseFormat(s string) (Format, error) {
	for _, f := range Formats() {
		if string(f) == s {
			return f, nil
		}
	}
	return "", fmt.Errorf("unknown format %q (want one of %v)", s, Formats())
}

// Export encodes the record in the given format.
func Export(i *Info, f Format) ([]byte, error) {
	switch f {
	case FormatCUE:
		return Encode(i), nil
	case FormatJSON:
		return EncodeJSON(i)
	case FormatYAML:
		return yaml.Marshal(toRecord(i))
	case FormatTOML:
		return toml.Marshal(toRecord(i))
	default:
		return nil, fmt.Errorf("unknown format %q", f)
	}
}

// EncodeJSON renders the record as indented JSON.
func EncodeJSON(i *Info) ([]byte, error) {
	data, err := json.MarshalIndent(toRecord(i), "", "  ")
	if err != nil {
		return nil, err
	}
	return append(data, '\n'), nil
}
