// SPDX-License-Identifier: MPL-2.0

package config

import (
	"context"
	"errors"
	"path/filepath"
	"reflect"
	"strings"
	"testing"

	"github.com/mkptool/mkp/internal/issue"
	"github.com/mkptool/mkp/internal/testutil"
	"github.com/mkptool/mkp/pkg/types"
)

// clearEnv unsets every variable Load reads so the host environment cannot
// leak into a test.
func clearEnv(t *testing.T) {
	t.Helper()
	for _, key := range []string{
		SiteRootEnv,
		"MKP_SITE_ROOT",
		"MKP_VAR_DIR",
		"MKP_HOST_VERSION",
		"MKP_ARCHIVE_COMPRESSION_LEVEL",
		"MKP_PACKAGING_ENFORCE_COMPATIBILITY",
		"MKP_UI_COLOR_SCHEME",
		"MKP_UI_VERBOSE",
	} {
		t.Cleanup(testutil.MustUnsetenv(t, key))
	}
}

func writeConfigFile(t *testing.T, content string) types.FilesystemPath {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, ConfigFileName+"."+ConfigFileExt)
	testutil.MustWriteFile(t, path, content, 0o644)
	return types.FilesystemPath(path)
}

func load(t *testing.T, opts LoadOptions) (*Loaded, error) {
	t.Helper()
	if opts.ConfigDirPath == "" && opts.ConfigFilePath == "" {
		opts.ConfigDirPath = types.FilesystemPath(t.TempDir())
	}
	return NewProvider().Load(context.Background(), opts)
}

func TestLoad_DefaultsWithoutFile(t *testing.T) {
	clearEnv(t)

	loaded, err := load(t, LoadOptions{})
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if loaded.Path != "" {
		t.Errorf("Path = %q, want empty", loaded.Path)
	}
	want := DefaultConfig()
	if len(loaded.Config.Parts) != 0 {
		t.Errorf("Parts = %v, want none", loaded.Config.Parts)
	}
	loaded.Config.Parts = want.Parts
	if !reflect.DeepEqual(loaded.Config, want) {
		t.Errorf("Load() = %+v, want %+v", loaded.Config, want)
	}
}

func TestLoad_CUEFile(t *testing.T) {
	clearEnv(t)

	path := writeConfigFile(t, `
site_root:    "/omd/sites/prod"
var_dir:      "var/mkp"
host_version: "2.1.0p3"
parts: [
	{ident: "checks", title: "Legacy checks"},
	{ident: "bin", path: "/opt/bin", exclude: []},
]
archive: compression_level: 9
packaging: enforce_compatibility: true
ui: {
	color_scheme: "dark"
	verbose:      true
}
`)

	loaded, err := load(t, LoadOptions{ConfigFilePath: path})
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if loaded.Path != path {
		t.Errorf("Path = %q, want %q", loaded.Path, path)
	}

	cfg := loaded.Config
	if cfg.SiteRoot != "/omd/sites/prod" || cfg.VarDir != "var/mkp" || cfg.HostVersion != "2.1.0p3" {
		t.Errorf("site settings = %q %q %q", cfg.SiteRoot, cfg.VarDir, cfg.HostVersion)
	}
	if cfg.Archive.CompressionLevel != 9 {
		t.Errorf("compression level = %d, want 9", cfg.Archive.CompressionLevel)
	}
	if !cfg.Packaging.EnforceCompatibility {
		t.Error("enforce_compatibility should be true")
	}
	if cfg.UI.ColorScheme != ColorSchemeDark || !cfg.UI.Verbose {
		t.Errorf("ui = %+v", cfg.UI)
	}

	wantParts := []PartOverride{
		{Ident: "checks", Title: "Legacy checks"},
		{Ident: "bin", Path: "/opt/bin", Exclude: []string{}},
	}
	if len(cfg.Parts) != len(wantParts) {
		t.Fatalf("parts = %+v, want %+v", cfg.Parts, wantParts)
	}
	for i, want := range wantParts {
		got := cfg.Parts[i]
		if got.Ident != want.Ident || got.Title != want.Title || got.Path != want.Path {
			t.Errorf("parts[%d] = %+v, want %+v", i, got, want)
		}
		if len(got.Exclude) != len(want.Exclude) {
			t.Errorf("parts[%d].Exclude = %v, want %v", i, got.Exclude, want.Exclude)
		}
	}
}

func TestLoad_ConfigDir(t *testing.T) {
	clearEnv(t)

	path := writeConfigFile(t, `host_version: "2.2.0"`)
	loaded, err := load(t, LoadOptions{ConfigDirPath: types.FilesystemPath(filepath.Dir(string(path)))})
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if loaded.Path != path {
		t.Errorf("Path = %q, want %q", loaded.Path, path)
	}
	if loaded.Config.HostVersion != "2.2.0" {
		t.Errorf("HostVersion = %q, want 2.2.0", loaded.Config.HostVersion)
	}
	if loaded.Config.UI.ColorScheme != ColorSchemeAuto {
		t.Errorf("unset keys should keep defaults, got color scheme %q", loaded.Config.UI.ColorScheme)
	}
}

func TestLoad_Errors(t *testing.T) {
	clearEnv(t)

	tests := []struct {
		name    string
		content string
		missing bool
		wantMsg string
	}{
		{name: "missing file", missing: true, wantMsg: "config file not found"},
		{name: "syntax error", content: "site_root: \"/omd\n", wantMsg: "load configuration"},
		{name: "unknown color scheme", content: `ui: color_scheme: "blue"`, wantMsg: "ui.color_scheme"},
		{name: "unknown field", content: `container_engine: "podman"`, wantMsg: "container_engine"},
		{name: "compression out of range", content: `archive: compression_level: 12`, wantMsg: "compression_level"},
		{name: "part without ident", content: `parts: [{path: "x"}]`, wantMsg: "ident"},
		{name: "duplicate part", content: `parts: [{ident: "web"}, {ident: "web"}]`, wantMsg: "duplicate of parts[0]"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var path types.FilesystemPath
			if tt.missing {
				path = types.FilesystemPath(filepath.Join(t.TempDir(), "nope.cue"))
			} else {
				path = writeConfigFile(t, tt.content)
			}

			_, err := load(t, LoadOptions{ConfigFilePath: path})
			if err == nil {
				t.Fatal("Load() should fail")
			}
			var ae *issue.ActionableError
			if !errors.As(err, &ae) {
				t.Fatalf("error should be *issue.ActionableError, got %T: %v", err, err)
			}
			if ae.Issue != issue.ConfigLoadFailedId {
				t.Errorf("Issue = %d, want ConfigLoadFailedId", ae.Issue)
			}
			if !strings.Contains(err.Error(), tt.wantMsg) {
				t.Errorf("error %q does not mention %q", err, tt.wantMsg)
			}
		})
	}
}

func TestLoad_EnvironmentOverridesFile(t *testing.T) {
	clearEnv(t)

	path := writeConfigFile(t, `
site_root: "/omd/sites/file"
archive: compression_level: 1
`)
	t.Cleanup(testutil.MustSetenv(t, "MKP_SITE_ROOT", "/omd/sites/env"))
	t.Cleanup(testutil.MustSetenv(t, "MKP_ARCHIVE_COMPRESSION_LEVEL", "7"))
	t.Cleanup(testutil.MustSetenv(t, "MKP_PACKAGING_ENFORCE_COMPATIBILITY", "true"))

	loaded, err := load(t, LoadOptions{ConfigFilePath: path})
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	cfg := loaded.Config
	if cfg.SiteRoot != "/omd/sites/env" {
		t.Errorf("SiteRoot = %q, want the environment value", cfg.SiteRoot)
	}
	if cfg.Archive.CompressionLevel != 7 {
		t.Errorf("CompressionLevel = %d, want 7", cfg.Archive.CompressionLevel)
	}
	if !cfg.Packaging.EnforceCompatibility {
		t.Error("EnforceCompatibility should come from the environment")
	}
}

func TestLoad_InvalidEnvironmentValue(t *testing.T) {
	clearEnv(t)
	t.Cleanup(testutil.MustSetenv(t, "MKP_UI_COLOR_SCHEME", "neon"))

	_, err := load(t, LoadOptions{})
	if !errors.Is(err, ErrInvalidColorScheme) {
		t.Fatalf("Load() error = %v, want ErrInvalidColorScheme", err)
	}
}

func TestLoad_SiteRootPrecedence(t *testing.T) {
	clearEnv(t)
	t.Cleanup(testutil.MustSetenv(t, SiteRootEnv, "/omd/sites/omd"))

	loaded, err := load(t, LoadOptions{})
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if loaded.Config.SiteRoot != "/omd/sites/omd" {
		t.Errorf("SiteRoot = %q, want %s fallback", loaded.Config.SiteRoot, SiteRootEnv)
	}

	path := writeConfigFile(t, `site_root: "/omd/sites/file"`)
	loaded, err = load(t, LoadOptions{ConfigFilePath: path})
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if loaded.Config.SiteRoot != "/omd/sites/file" {
		t.Errorf("SiteRoot = %q, config file should beat %s", loaded.Config.SiteRoot, SiteRootEnv)
	}

	loaded, err = load(t, LoadOptions{ConfigFilePath: path, SiteRoot: "/srv/site"})
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if loaded.Config.SiteRoot != "/srv/site" {
		t.Errorf("SiteRoot = %q, the option should win", loaded.Config.SiteRoot)
	}
}

func TestLoad_Canceled(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := NewProvider().Load(ctx, LoadOptions{}); !errors.Is(err, context.Canceled) {
		t.Fatalf("Load() error = %v, want context.Canceled", err)
	}
}

func TestGenerateCUE_RoundTrip(t *testing.T) {
	clearEnv(t)

	cfg := DefaultConfig()
	cfg.SiteRoot = "/omd/sites/prod"
	cfg.HostVersion = "2.0.0p5"
	cfg.Parts = []PartOverride{
		{Ident: "web", Title: "Web \"extensions\"", Path: "local/web"},
		{Ident: "bin", Exclude: []string{"**/*.bak"}},
	}
	cfg.Archive.CompressionLevel = 5
	cfg.UI.ColorScheme = ColorSchemeLight

	path := writeConfigFile(t, GenerateCUE(cfg))
	loaded, err := load(t, LoadOptions{ConfigFilePath: path})
	if err != nil {
		t.Fatalf("loading generated config: %v\n%s", err, GenerateCUE(cfg))
	}
	if !reflect.DeepEqual(loaded.Config, cfg) {
		t.Errorf("round trip mismatch:\n got %+v\nwant %+v", loaded.Config, cfg)
	}
}

func TestGenerateCUE_Defaults(t *testing.T) {
	t.Parallel()

	out := GenerateCUE(DefaultConfig())
	for _, want := range []string{
		`// site_root: "/omd/sites/mysite"`,
		"//   checks          local/share/check_mk/checks",
		"parts: []",
		"compression_level: -1",
		"enforce_compatibility: false",
		`color_scheme: "auto"`,
	} {
		if !strings.Contains(out, want) {
			t.Errorf("GenerateCUE() missing %q:\n%s", want, out)
		}
	}
}

func TestCreateDefaultConfig(t *testing.T) {
	dir := t.TempDir()
	SetConfigDirOverride(types.FilesystemPath(dir))
	t.Cleanup(Reset)

	path, created, err := CreateDefaultConfig()
	if err != nil {
		t.Fatalf("CreateDefaultConfig() error = %v", err)
	}
	if !created {
		t.Error("first call should create the file")
	}
	if want := filepath.Join(dir, "mkp.cue"); string(path) != want {
		t.Errorf("path = %q, want %q", path, want)
	}
	if got := testutil.MustReadFile(t, string(path)); got != GenerateCUE(DefaultConfig()) {
		t.Errorf("file content differs from GenerateCUE(DefaultConfig())")
	}

	testutil.MustWriteFile(t, string(path), "// mine\n", 0o644)
	if _, created, err = CreateDefaultConfig(); err != nil || created {
		t.Errorf("second call: created = %v, err = %v; want existing file kept", created, err)
	}
	if got := testutil.MustReadFile(t, string(path)); got != "// mine\n" {
		t.Errorf("existing config was overwritten: %q", got)
	}

	cfg := DefaultConfig()
	cfg.UI.Verbose = true
	if err := Save(cfg); err != nil {
		t.Fatalf("Save() error = %v", err)
	}
	if !strings.Contains(testutil.MustReadFile(t, string(path)), "verbose: true") {
		t.Error("Save() did not write the config")
	}
}

func TestConfigDir_XDG(t *testing.T) {
	Reset()
	home := t.TempDir()
	t.Cleanup(testutil.SetHomeDir(t, home))

	dir, err := ConfigDir()
	if err != nil {
		t.Fatalf("ConfigDir() error = %v", err)
	}
	if !strings.HasPrefix(string(dir), home) || filepath.Base(string(dir)) != AppName {
		t.Errorf("ConfigDir() = %q, want a mkp dir below %q", dir, home)
	}
}
