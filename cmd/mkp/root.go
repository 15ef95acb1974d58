// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/charmbracelet/fang"
	"github.com/spf13/cobra"
)

var (
	// Version is the semantic version (set via -ldflags).
	Version = "dev"
	// Commit is the git commit hash (set via -ldflags).
	Commit = "unknown"
	// BuildDate is the build timestamp (set via -ldflags).
	BuildDate = "unknown"
)

// getVersionString returns a formatted version string for display.
func getVersionString() string {
	if Version == "dev" {
		return "dev (built from source)"
	}
	return fmt.Sprintf("%s (commit: %s, built: %s)", Version, Commit, BuildDate)
}

// newRootCommand builds the full command tree around app.
func newRootCommand(app *App) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "mkp",
		Short: "Manage add-on packages of a monitoring site",
		Long: TitleStyle.Render("mkp") + SubtitleStyle.Render(" - Manage add-on packages of a monitoring site") + `

mkp bundles the files you added to a site into named packages, writes
them to portable .mkp files and installs those files on other sites.

` + SubtitleStyle.Render("Lifecycle:") + `
  1. Put your files into the site's part directories
  2. Claim them with: mkp create NAME
  3. Edit the package details, then: mkp pack NAME
  4. On the target site: mkp install NAME-VERSION.mkp

` + SubtitleStyle.Render("Examples:") + `
  mkp find                  List files no package owns
  mkp list -v               Show installed packages as a table
  mkp show hello            Show the details of a package
  mkp remove hello          Delete a package and its files
  mkp release hello         Forget a package but keep its files`,
		SilenceUsage: true,
	}
	rootCmd.SetOut(app.stdout)
	rootCmd.SetErr(app.stderr)

	flags := rootCmd.PersistentFlags()
	flags.BoolVarP(&app.flags.verbose, "verbose", "v", false, "enable verbose output")
	flags.StringVar(&app.flags.configFile, "config", "", "config file (default is $XDG_CONFIG_HOME/mkp/mkp.cue)")
	flags.StringVar(&app.flags.site, "site", "", "site root directory (default is site_root from config or $OMD_ROOT)")

	rootCmd.AddCommand(
		newCreateCommand(app),
		newPackCommand(app),
		newInstallCommand(app),
		newRemoveCommand(app),
		newReleaseCommand(app),
		newFindCommand(app),
		newListCommand(app),
		newShowCommand(app),
		newConfigCommand(app),
	)
	return rootCmd
}

// Execute builds the production App and runs the command tree.
// This is called by main.main().
func Execute() {
	app, err := NewApp(Dependencies{})
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	// fang prints returned errors; commands already reported theirs.
	if err := fang.Execute(
		context.Background(),
		newRootCommand(app),
		fang.WithVersion(getVersionString()),
		fang.WithNotifySignal(os.Interrupt),
		fang.WithErrorHandler(func(w io.Writer, styles fang.Styles, err error) {
			var exitErr *ExitError
			if errors.As(err, &exitErr) && exitErr.Err == nil {
				return
			}
			fang.DefaultErrorHandler(w, styles, err)
		}),
	); err != nil {
		var exitErr *ExitError
		if errors.As(err, &exitErr) {
			os.Exit(int(exitErr.Code))
		}
		os.Exit(1)
	}
}
