// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/mkptool/mkp/internal/config"
)

func TestConfigShow(t *testing.T) {
	env := newTestEnv(t)

	out := env.mustRun("--site", "/omd/sites/test", "config", "show")
	for _, want := range []string{
		"Current Configuration",
		"Config file: " + env.cfgFile,
		"site_root: /omd/sites/test",
		"host_version: 2.0.0p5",
		"var_dir: (not set)",
		"compression_level: -1",
		"enforce_compatibility: false",
		"color_scheme: auto",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("config show missing %q:\n%s", want, out)
		}
	}
}

func TestConfigPath(t *testing.T) {
	env := newTestEnv(t)

	if out := env.mustRun("config", "path"); out != env.cfgFile+"\n" {
		t.Errorf("config path = %q, want %q", out, env.cfgFile+"\n")
	}
}

func TestConfigInit(t *testing.T) {
	env := newTestEnv(t)
	cfgPath, err := config.ConfigFilePath()
	if err != nil {
		t.Fatalf("ConfigFilePath() error = %v", err)
	}

	out := env.mustRun("config", "init")
	if !strings.Contains(out, "Created default config file at: "+string(cfgPath)) {
		t.Errorf("config init = %q", out)
	}
	if _, err := os.Stat(string(cfgPath)); err != nil {
		t.Fatalf("config file not written: %v", err)
	}

	out = env.mustRun("config", "init")
	if !strings.Contains(out, "Config file already exists at: "+string(cfgPath)) {
		t.Errorf("second config init = %q", out)
	}
}

func TestConfigDumpLoadsBack(t *testing.T) {
	env := newTestEnv(t)

	out := env.mustRun("--site", "/omd/sites/test", "config", "dump")
	dumped := filepath.Join(t.TempDir(), "dumped.cue")
	if err := os.WriteFile(dumped, []byte(out), 0o644); err != nil {
		t.Fatal(err)
	}

	env.cfgFile = dumped
	show := env.mustRun("config", "show")
	if !strings.Contains(show, "site_root: /omd/sites/test") {
		t.Errorf("dumped config did not keep site_root:\n%s", show)
	}
}

func TestConfigInvalidFile(t *testing.T) {
	env := newTestEnv(t)
	if err := os.WriteFile(env.cfgFile, []byte("ui: color_scheme: \"purple\"\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	_, stderr, err := env.run("config", "show")
	assertExitFailure(t, err)
	if !strings.Contains(stderr, "# Failed to load configuration!") {
		t.Errorf("stderr = %q", stderr)
	}
}
