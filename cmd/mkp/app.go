// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"context"
	"io"
	"os"

	"github.com/charmbracelet/glamour"
	"github.com/charmbracelet/log"

	"github.com/mkptool/mkp/internal/config"
	"github.com/mkptool/mkp/internal/issue"
	"github.com/mkptool/mkp/pkg/packaging"
	"github.com/mkptool/mkp/pkg/store"
	"github.com/mkptool/mkp/pkg/types"
)

type (
	// App wires CLI services and shared dependencies. It is the composition root for
	// the CLI layer: every command constructor receives the App and reaches the
	// configuration, the package manager and the output writers through it.
	App struct {
		Config ConfigProvider
		Issues issue.Renderer
		stdout io.Writer
		stderr io.Writer

		flags globalFlags
	}

	// Dependencies defines the injection points for building an App. Nil fields are
	// replaced with production defaults by NewApp.
	Dependencies struct {
		Config ConfigProvider
		Issues issue.Renderer
		Stdout io.Writer
		Stderr io.Writer
	}

	// ConfigProvider loads configuration using explicit options.
	ConfigProvider interface {
		Load(ctx context.Context, opts config.LoadOptions) (*config.Loaded, error)
	}

	// globalFlags holds the persistent root flags.
	globalFlags struct {
		verbose    bool
		configFile string
		site       string
	}

	// session is the per-invocation state of a package command.
	session struct {
		cfg     *config.Config
		cfgPath types.FilesystemPath
		site    *config.Site
		manager *packaging.Manager
		logger  *log.Logger
		verbose bool
	}
)

// NewApp creates an App with defaults for omitted dependencies.
func NewApp(deps Dependencies) (*App, error) {
	if deps.Stdout == nil {
		deps.Stdout = os.Stdout
	}
	if deps.Stderr == nil {
		deps.Stderr = os.Stderr
	}
	if deps.Config == nil {
		deps.Config = config.NewProvider()
	}
	if deps.Issues == nil {
		deps.Issues = issue.RenderFunc(glamour.Render)
	}

	return &App{
		Config: deps.Config,
		Issues: deps.Issues,
		stdout: deps.Stdout,
		stderr: deps.Stderr,
	}, nil
}

// loadOptions translates the root flags into config load options.
func (a *App) loadOptions() config.LoadOptions {
	return config.LoadOptions{
		ConfigFilePath: types.FilesystemPath(a.flags.configFile),
		SiteRoot:       types.FilesystemPath(a.flags.site),
	}
}

// loadConfig loads the configuration honoring --config and --site.
func (a *App) loadConfig(ctx context.Context) (*config.Loaded, error) {
	return a.Config.Load(ctx, a.loadOptions())
}

// verbose reports whether -v was given or ui.verbose is set.
func (a *App) verbose(cfg *config.Config) bool {
	return a.flags.verbose || (cfg != nil && cfg.UI.Verbose)
}

// newLogger returns the stderr logger used by the package manager.
func (a *App) newLogger(verbose bool) *log.Logger {
	level := log.InfoLevel
	if verbose {
		level = log.DebugLevel
	}
	return log.NewWithOptions(a.stderr, log.Options{
		Prefix: config.AppName,
		Level:  level,
	})
}

// openSession loads the configuration, resolves the site layout and builds
// the package manager for it.
func (a *App) openSession(ctx context.Context) (*session, error) {
	loaded, err := a.loadConfig(ctx)
	if err != nil {
		return nil, err
	}
	cfg := loaded.Config

	site, err := config.Resolve(cfg)
	if err != nil {
		return nil, issue.NewErrorContext().
			WithOperation("resolve site").
			WithSuggestions(
				"Pass the site directory with --site",
				"Set site_root in "+config.ConfigFileName+"."+config.ConfigFileExt+" or export "+config.SiteRootEnv,
			).
			WithIssue(issue.ConfigLoadFailedId).
			Wrap(err).
			BuildError()
	}

	verbose := a.verbose(cfg)
	logger := a.newLogger(verbose)
	logger.Debug("site resolved", "root", site.Root, "packages", site.PackageDir, "version", site.HostVersion)

	mgr, err := packaging.New(packaging.Options{
		Parts:                site.Parts,
		Store:                store.New(string(site.PackageDir), logger),
		VarDir:               site.VarDir,
		HostVersion:          site.HostVersion,
		Logger:               logger,
		EnforceCompatibility: cfg.Packaging.EnforceCompatibility,
		CompressionLevel:     int(cfg.Archive.CompressionLevel),
	})
	if err != nil {
		return nil, err
	}

	return &session{
		cfg:     cfg,
		cfgPath: loaded.Path,
		site:    site,
		manager: mgr,
		logger:  logger,
		verbose: verbose,
	}, nil
}

// colorScheme returns the configured scheme of s, or auto before a session
// exists.
func (s *session) colorScheme() config.ColorScheme {
	if s == nil || s.cfg == nil {
		return config.ColorSchemeAuto
	}
	return s.cfg.UI.ColorScheme
}
