// SPDX-License-Identifier: MPL-2.0

package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/klauspost/compress/gzip"
)

const (
	// ColorSchemeAuto detects the terminal color scheme automatically.
	ColorSchemeAuto ColorScheme = "auto"
	// ColorSchemeDark forces dark color scheme.
	ColorSchemeDark ColorScheme = "dark"
	// ColorSchemeLight forces light color scheme.
	ColorSchemeLight ColorScheme = "light"
)

var (
	// ErrInvalidColorScheme is returned when a ColorScheme value is not recognized.
	ErrInvalidColorScheme = errors.New("invalid color scheme")
	// ErrInvalidCompressionLevel is returned for levels other than -1 and 1..9.
	ErrInvalidCompressionLevel = errors.New("invalid compression level")
	// ErrInvalidPartOverride is the sentinel error wrapped by InvalidPartOverrideError.
	ErrInvalidPartOverride = errors.New("invalid part override")
	// ErrInvalidConfig is the sentinel error wrapped by InvalidConfigError.
	ErrInvalidConfig = errors.New("invalid config")
)

type (
	// ColorScheme specifies the terminal color scheme preference.
	ColorScheme string

	// InvalidColorSchemeError is returned when a ColorScheme value is not recognized.
	// It wraps ErrInvalidColorScheme for errors.Is() compatibility.
	InvalidColorSchemeError struct {
		Value ColorScheme
	}

	// CompressionLevel is a gzip level: -1 (default) or 1 through 9.
	// Package files are always compressed, so 0 is rejected.
	CompressionLevel int

	// InvalidCompressionLevelError wraps ErrInvalidCompressionLevel.
	InvalidCompressionLevelError struct {
		Value CompressionLevel
	}

	// PartOverride changes one entry of the default part table, or adds a
	// package part when Ident is not in the table. Empty fields keep the
	// default; a non-nil Exclude replaces the default globs.
	PartOverride struct {
		Ident   string   `json:"ident" mapstructure:"ident"`
		Title   string   `json:"title,omitempty" mapstructure:"title"`
		Path    string   `json:"path,omitempty" mapstructure:"path"`
		Exclude []string `json:"exclude,omitempty" mapstructure:"exclude"`
	}

	// InvalidPartOverrideError is returned for a part override without an
	// ident or with a duplicated one.
	InvalidPartOverrideError struct {
		Index  int
		Ident  string
		Reason string
	}

	// InvalidConfigError collects the field errors of a Config.
	InvalidConfigError struct {
		FieldErrors []error
	}

	// Config holds the application configuration.
	Config struct {
		// SiteRoot is the base directory of the site. Falls back to $OMD_ROOT.
		SiteRoot string `json:"site_root" mapstructure:"site_root"`
		// VarDir is the internal data directory. Relative paths are taken
		// relative to SiteRoot; empty selects var/check_mk.
		VarDir string `json:"var_dir" mapstructure:"var_dir"`
		// HostVersion is the version of the site. Empty means detect it from
		// the site's version link.
		HostVersion string `json:"host_version" mapstructure:"host_version"`
		// Parts overrides the default part table.
		Parts []PartOverride `json:"parts" mapstructure:"parts"`
		// Archive configures written package archives.
		Archive ArchiveConfig `json:"archive" mapstructure:"archive"`
		// Packaging configures the lifecycle operations.
		Packaging PackagingConfig `json:"packaging" mapstructure:"packaging"`
		// UI configures the user interface
		UI UIConfig `json:"ui" mapstructure:"ui"`
	}

	ArchiveConfig struct {
		// CompressionLevel is the gzip level used by pack.
		CompressionLevel CompressionLevel `json:"compression_level" mapstructure:"compression_level"`
	}

	PackagingConfig struct {
		// EnforceCompatibility rejects installs whose version range excludes
		// the host version.
		EnforceCompatibility bool `json:"enforce_compatibility" mapstructure:"enforce_compatibility"`
	}

	UIConfig struct {
		// ColorScheme sets the color scheme
		ColorScheme ColorScheme `json:"color_scheme" mapstructure:"color_scheme"`
		// Verbose enables verbose output
		Verbose bool `json:"verbose" mapstructure:"verbose"`
	}
)

// DefaultConfig returns the built-in configuration.
func DefaultConfig() *Config {
	return &Config{
		Parts: []PartOverride{},
		Archive: ArchiveConfig{
			CompressionLevel: CompressionLevel(gzip.DefaultCompression),
		},
		Packaging: PackagingConfig{
			EnforceCompatibility: false,
		},
		UI: UIConfig{
			ColorScheme: ColorSchemeAuto,
			Verbose:     false,
		},
	}
}

// String returns the string representation of the ColorScheme.
func (c ColorScheme) String() string { return string(c) }

// IsValid returns whether the ColorScheme is one of the defined values.
func (c ColorScheme) IsValid() (bool, []error) {
	switch c {
	case ColorSchemeAuto, ColorSchemeDark, ColorSchemeLight:
		return true, nil
	default:
		return false, []error{&InvalidColorSchemeError{Value: c}}
	}
}

// Error implements the error interface.
func (e *InvalidColorSchemeError) Error() string {
	return fmt.Sprintf("invalid color scheme %q (valid: auto, dark, light)", e.Value)
}

// Unwrap returns ErrInvalidColorScheme for errors.Is() compatibility.
func (e *InvalidColorSchemeError) Unwrap() error { return ErrInvalidColorScheme }

// IsValid returns whether the level is accepted by gzip.
func (l CompressionLevel) IsValid() (bool, []error) {
	if l != gzip.DefaultCompression && (l < gzip.BestSpeed || l > gzip.BestCompression) {
		return false, []error{&InvalidCompressionLevelError{Value: l}}
	}
	return true, nil
}

// Error implements the error interface.
func (e *InvalidCompressionLevelError) Error() string {
	return fmt.Sprintf("invalid compression level %d (valid: -1 or 1 to 9)", e.Value)
}

// Unwrap returns ErrInvalidCompressionLevel for errors.Is() compatibility.
func (e *InvalidCompressionLevelError) Unwrap() error { return ErrInvalidCompressionLevel }

// Error implements the error interface.
func (e *InvalidPartOverrideError) Error() string {
	if e.Ident == "" {
		return fmt.Sprintf("parts[%d]: %s", e.Index, e.Reason)
	}
	return fmt.Sprintf("parts[%d] %q: %s", e.Index, e.Ident, e.Reason)
}

// Unwrap returns ErrInvalidPartOverride for errors.Is() compatibility.
func (e *InvalidPartOverrideError) Unwrap() error { return ErrInvalidPartOverride }

// IsValid checks the fields CUE cannot check once environment overrides
// are merged, plus the uniqueness of part override idents.
func (c Config) IsValid() (bool, []error) {
	var errs []error
	if valid, fieldErrs := c.UI.ColorScheme.IsValid(); !valid {
		errs = append(errs, fieldErrs...)
	}
	if valid, fieldErrs := c.Archive.CompressionLevel.IsValid(); !valid {
		errs = append(errs, fieldErrs...)
	}

	seen := make(map[string]int, len(c.Parts))
	for i, p := range c.Parts {
		if strings.TrimSpace(p.Ident) == "" {
			errs = append(errs, &InvalidPartOverrideError{Index: i, Reason: "ident must not be empty"})
			continue
		}
		if first, dup := seen[p.Ident]; dup {
			errs = append(errs, &InvalidPartOverrideError{
				Index:  i,
				Ident:  p.Ident,
				Reason: fmt.Sprintf("duplicate of parts[%d]", first),
			})
			continue
		}
		seen[p.Ident] = i
	}

	if len(errs) > 0 {
		return false, []error{&InvalidConfigError{FieldErrors: errs}}
	}
	return true, nil
}

// Error implements the error interface for InvalidConfigError.
func (e *InvalidConfigError) Error() string {
	msgs := make([]string, len(e.FieldErrors))
	for i, err := range e.FieldErrors {
		msgs[i] = err.Error()
	}
	return fmt.Sprintf("invalid config: %s", strings.Join(msgs, "; "))
}

// Unwrap returns ErrInvalidConfig and the field errors for errors.Is().
func (e *InvalidConfigError) Unwrap() []error {
	return append([]error{ErrInvalidConfig}, e.FieldErrors...)
}
