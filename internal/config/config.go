// SPDX-License-Identifier: MPL-2.0

package config

import (
	"context"
	_ "embed"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	"github.com/spf13/viper"

	"github.com/mkptool/mkp/internal/issue"
	"github.com/mkptool/mkp/pkg/cueutil"
	"github.com/mkptool/mkp/pkg/parts"
	"github.com/mkptool/mkp/pkg/types"
)

const (
	// AppName is the application name.
	AppName = "mkp"
	// ConfigFileName is the name of the config file (without extension).
	ConfigFileName = "mkp"
	// ConfigFileExt is the config file extension.
	ConfigFileExt = "cue"
	// EnvPrefix prefixes environment overrides, e.g. MKP_SITE_ROOT.
	EnvPrefix = "MKP"
	// SiteRootEnv is the site root fallback set inside OMD sites.
	SiteRootEnv = "OMD_ROOT"
)

//go:embed config_schema.cue
var configSchema string

// ConfigDir returns the mkp configuration directory using platform-specific
// conventions: Windows uses %APPDATA%, macOS uses ~/Library/Application Support,
// and Linux/others use $XDG_CONFIG_HOME (defaulting to ~/.config).
//
//nolint:revive // ConfigDir is more descriptive than Dir for external callers
func ConfigDir() (types.FilesystemPath, error) {
	if configDirOverride != "" {
		return configDirOverride, nil
	}

	var configDir string

	switch runtime.GOOS {
	case "windows":
		configDir = os.Getenv("APPDATA")
		if configDir == "" {
			configDir = filepath.Join(os.Getenv("USERPROFILE"), "AppData", "Roaming")
		}
	case "darwin":
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("failed to get home directory: %w", err)
		}
		configDir = filepath.Join(home, "Library", "Application Support")
	default:
		configDir = os.Getenv("XDG_CONFIG_HOME")
		if configDir == "" {
			home, err := os.UserHomeDir()
			if err != nil {
				return "", fmt.Errorf("failed to get home directory: %w", err)
			}
			configDir = filepath.Join(home, ".config")
		}
	}

	return types.FilesystemPath(filepath.Join(configDir, AppName)), nil
}

// ConfigFilePath returns the default config file location.
func ConfigFilePath() (types.FilesystemPath, error) {
	dir, err := ConfigDir()
	if err != nil {
		return "", err
	}
	return types.FilesystemPath(filepath.Join(string(dir), ConfigFileName+"."+ConfigFileExt)), nil
}

// loadWithOptions performs option-driven config loading. The returned path
// is the config file that was read, or empty when only defaults and the
// environment apply.
func loadWithOptions(ctx context.Context, opts LoadOptions) (*Config, types.FilesystemPath, error) {
	select {
	case <-ctx.Done():
		return nil, "", fmt.Errorf("load config canceled: %w", ctx.Err())
	default:
	}

	if err := opts.Validate(); err != nil {
		return nil, "", err
	}

	v := newViper()

	resolvedPath, err := loadConfigFile(v, opts)
	if err != nil {
		return nil, "", err
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, "", fmt.Errorf("failed to parse config: %w", err)
	}

	if opts.SiteRoot != "" {
		cfg.SiteRoot = string(opts.SiteRoot)
	}
	if cfg.SiteRoot == "" {
		cfg.SiteRoot = os.Getenv(SiteRootEnv)
	}

	if valid, errs := cfg.IsValid(); !valid {
		op := issue.NewErrorContext().
			WithOperation("validate configuration").
			WithSuggestion("Part override idents must be unique and non-empty").
			WithSuggestion("ui.color_scheme must be one of auto, dark, light").
			WithIssue(issue.ConfigLoadFailedId)
		if resolvedPath != "" {
			op = op.WithResource(string(resolvedPath))
		}
		return nil, "", op.Wrap(errors.Join(errs...)).BuildError()
	}

	return &cfg, resolvedPath, nil
}

// newViper returns a viper instance with the built-in defaults and the
// MKP_ environment overrides registered.
func newViper() *viper.Viper {
	v := viper.New()

	defaults := DefaultConfig()
	v.SetDefault("site_root", defaults.SiteRoot)
	v.SetDefault("var_dir", defaults.VarDir)
	v.SetDefault("host_version", defaults.HostVersion)
	v.SetDefault("parts", defaults.Parts)
	v.SetDefault("archive.compression_level", int(defaults.Archive.CompressionLevel))
	v.SetDefault("packaging.enforce_compatibility", defaults.Packaging.EnforceCompatibility)
	v.SetDefault("ui.color_scheme", string(defaults.UI.ColorScheme))
	v.SetDefault("ui.verbose", defaults.UI.Verbose)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	return v
}

// loadConfigFile merges the first config file found into v: the explicit
// path when set, else mkp.cue in the config dir, else ./mkp.cue.
func loadConfigFile(v *viper.Viper, opts LoadOptions) (types.FilesystemPath, error) {
	if opts.ConfigFilePath != "" {
		if !fileExists(opts.ConfigFilePath) {
			return "", issue.NewErrorContext().
				WithOperation("load configuration").
				WithResource(string(opts.ConfigFilePath)).
				WithSuggestion("Verify the file path is correct").
				WithSuggestion("Check that the file exists and is readable").
				WithSuggestion("Use 'mkp config show' to see the default configuration").
				WithIssue(issue.ConfigLoadFailedId).
				Wrap(fmt.Errorf("config file not found: %s", opts.ConfigFilePath)).
				BuildError()
		}
		if err := loadCUEIntoViper(v, opts.ConfigFilePath); err != nil {
			return "", cueLoadError(opts.ConfigFilePath, err)
		}
		return opts.ConfigFilePath, nil
	}

	cfgDir, err := configDirWithOverride(opts.ConfigDirPath)
	if err != nil {
		return "", err
	}

	candidates := []types.FilesystemPath{
		types.FilesystemPath(filepath.Join(string(cfgDir), ConfigFileName+"."+ConfigFileExt)),
		types.FilesystemPath(ConfigFileName + "." + ConfigFileExt),
	}
	for _, path := range candidates {
		if !fileExists(path) {
			continue
		}
		if err := loadCUEIntoViper(v, path); err != nil {
			return "", cueLoadError(path, err)
		}
		return path, nil
	}

	// No config file: defaults and environment only.
	return "", nil
}

func cueLoadError(path types.FilesystemPath, err error) error {
	return issue.NewErrorContext().
		WithOperation("load configuration").
		WithResource(string(path)).
		WithSuggestion("Check that the file contains valid CUE syntax").
		WithSuggestion("Verify the configuration values match the expected schema").
		WithSuggestion("See 'mkp config --help' for configuration options").
		WithIssue(issue.ConfigLoadFailedId).
		Wrap(err).
		BuildError()
}

// configDirWithOverride resolves the configuration directory, honoring
// explicit provider options before platform defaults.
func configDirWithOverride(configDirPath types.FilesystemPath) (types.FilesystemPath, error) {
	if configDirPath != "" {
		return configDirPath, nil
	}

	return ConfigDir()
}

// loadCUEIntoViper parses a CUE file, validates it against the #Config schema,
// and merges its contents into Viper.
//
// This does not use cueutil.ParseAndDecode: the config decodes to a map for
// Viper, is validated with Concrete(false), and is merged rather than returned.
func loadCUEIntoViper(v *viper.Viper, path types.FilesystemPath) error {
	data, err := os.ReadFile(string(path))
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}

	if err := cueutil.CheckFileSize(data, cueutil.DefaultMaxFileSize, string(path)); err != nil {
		return err
	}

	ctx := cuecontext.New()

	schemaValue := ctx.CompileString(configSchema)
	if schemaValue.Err() != nil {
		return fmt.Errorf("internal error: failed to compile config schema: %w", schemaValue.Err())
	}

	userValue := ctx.CompileBytes(data, cue.Filename(string(path)))
	if userValue.Err() != nil {
		return cueutil.FormatError(userValue.Err(), string(path))
	}

	schema := schemaValue.LookupPath(cue.ParsePath("#Config"))
	unified := schema.Unify(userValue)
	if err := unified.Validate(cue.Concrete(false)); err != nil {
		return cueutil.FormatError(err, string(path))
	}

	var configMap map[string]any
	if err := unified.Decode(&configMap); err != nil {
		return cueutil.FormatError(err, string(path))
	}

	// Merging keeps the defaults and lets the environment override.
	if err := v.MergeConfigMap(configMap); err != nil {
		return fmt.Errorf("failed to merge config: %w", err)
	}

	return nil
}

// fileExists checks if a file exists and is not a directory
func fileExists(path types.FilesystemPath) bool {
	info, err := os.Stat(string(path))
	if os.IsNotExist(err) {
		return false
	}
	return err == nil && !info.IsDir()
}

// EnsureConfigDir creates the config directory if it doesn't exist
func EnsureConfigDir() error {
	cfgDir, err := ConfigDir()
	if err != nil {
		return err
	}
	return os.MkdirAll(string(cfgDir), 0o755)
}

// CreateDefaultConfig writes the default config file unless one exists. It
// reports the path and whether the file was created.
func CreateDefaultConfig() (types.FilesystemPath, bool, error) {
	cfgPath, err := ConfigFilePath()
	if err != nil {
		return "", false, err
	}

	if _, err := os.Stat(string(cfgPath)); err == nil {
		return cfgPath, false, nil
	}

	if err := writeConfig(cfgPath, DefaultConfig()); err != nil {
		return "", false, err
	}
	return cfgPath, true, nil
}

// Save writes cfg to the default config file.
func Save(cfg *Config) error {
	cfgPath, err := ConfigFilePath()
	if err != nil {
		return err
	}
	return writeConfig(cfgPath, cfg)
}

func writeConfig(path types.FilesystemPath, cfg *Config) error {
	if err := os.MkdirAll(filepath.Dir(string(path)), 0o755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}
	if err := os.WriteFile(string(path), []byte(GenerateCUE(cfg)), 0o644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}

// GenerateCUE generates a CUE representation of the configuration. Unset
// optional fields are written as comments so the file stays valid.
func GenerateCUE(cfg *Config) string {
	var sb strings.Builder

	sb.WriteString("// mkp configuration file\n\n")

	writeOptional(&sb, "site_root", cfg.SiteRoot, "/omd/sites/mysite")
	writeOptional(&sb, "var_dir", cfg.VarDir, parts.VarDir)
	writeOptional(&sb, "host_version", cfg.HostVersion, "2.0.0p5")

	sb.WriteString("\n// Default parts (ident: path below site_root):\n")
	pkgParts, cfgParts := parts.DefaultTable()
	for _, p := range append(pkgParts, cfgParts...) {
		fmt.Fprintf(&sb, "//   %-15s %s\n", p.Ident, filepath.ToSlash(p.Path))
	}
	if len(cfg.Parts) == 0 {
		sb.WriteString("parts: []\n")
	} else {
		sb.WriteString("parts: [\n")
		for _, p := range cfg.Parts {
			sb.WriteString("\t{ident: " + cueutil.Quote(p.Ident))
			if p.Title != "" {
				sb.WriteString(", title: " + cueutil.Quote(p.Title))
			}
			if p.Path != "" {
				sb.WriteString(", path: " + cueutil.Quote(p.Path))
			}
			if p.Exclude != nil {
				quoted := make([]string, len(p.Exclude))
				for i, e := range p.Exclude {
					quoted[i] = cueutil.Quote(e)
				}
				sb.WriteString(", exclude: [" + strings.Join(quoted, ", ") + "]")
			}
			sb.WriteString("},\n")
		}
		sb.WriteString("]\n")
	}

	sb.WriteString("\narchive: {\n")
	fmt.Fprintf(&sb, "\tcompression_level: %d\n", cfg.Archive.CompressionLevel)
	sb.WriteString("}\n")

	sb.WriteString("\npackaging: {\n")
	fmt.Fprintf(&sb, "\tenforce_compatibility: %v\n", cfg.Packaging.EnforceCompatibility)
	sb.WriteString("}\n")

	sb.WriteString("\nui: {\n")
	fmt.Fprintf(&sb, "\tcolor_scheme: %s\n", cueutil.Quote(string(cfg.UI.ColorScheme)))
	fmt.Fprintf(&sb, "\tverbose: %v\n", cfg.UI.Verbose)
	sb.WriteString("}\n")

	return sb.String()
}

// writeOptional writes key: value, or a commented example when value is
// empty.
func writeOptional(sb *strings.Builder, key, value, example string) {
	if value == "" {
		fmt.Fprintf(sb, "// %s: %s\n", key, cueutil.Quote(example))
		return
	}
	fmt.Fprintf(sb, "%s: %s\n", key, cueutil.Quote(value))
}
