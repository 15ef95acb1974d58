// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"context"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/mkptool/mkp/internal/issue"
	"github.com/mkptool/mkp/pkg/pkginfo"
)

// formatText is the human-readable show output.
const formatText = "text"

// showLabelWidth aligns the values of the text output.
const showLabelWidth = 31

func newShowCommand(app *App) *cobra.Command {
	var format string

	cmd := &cobra.Command{
		Use:   "show NAME|PACK.mkp...",
		Short: "Show the details of a package",
		Long: `Show the record of the installed package NAME or of the package file
PACK.mkp. Package files are not extracted.

--format selects text (default) or one of cue, json, yaml and toml.

Examples:
  mkp show hello
  mkp show hello-1.0.mkp
  mkp show hello --format yaml`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runShow(cmd.Context(), app, args, format)
		},
	}
	cmd.Flags().StringVar(&format, "format", formatText, "output format: text, cue, json, yaml or toml")
	return cmd
}

func runShow(ctx context.Context, app *App, args []string, format string) error {
	var export pkginfo.Format
	if format != formatText {
		f, err := pkginfo.ParseFormat(format)
		if err != nil {
			return app.reportError(issue.NewErrorContext().
				WithOperation("show package").
				WithSuggestion("Use --format text, cue, json, yaml or toml").
				Wrap(err).
				BuildError(), nil)
		}
		export = f
	}

	s, err := app.openSession(ctx)
	if err != nil {
		return app.reportError(err, nil)
	}

	for _, arg := range args {
		info, err := loadInfo(s, arg)
		if err != nil {
			return app.reportError(err, s)
		}

		if export != "" {
			out, err := pkginfo.Export(info, export)
			if err != nil {
				return app.reportError(err, s)
			}
			fmt.Fprint(app.stdout, string(out))
			if len(out) > 0 && out[len(out)-1] != '\n' {
				fmt.Fprintln(app.stdout)
			}
			continue
		}

		if !isPackageFile(arg) {
			writeField(app.stdout, "Package file", filepath.Join(string(s.site.PackageDir), info.Name))
		}
		writeInfo(app.stdout, s, info)
	}
	return nil
}

func writeInfo(w io.Writer, s *session, info *pkginfo.Info) {
	until := info.VersionUsableUntil
	if until == "" {
		until = "No version limitation"
	}

	writeField(w, "Name", info.Name)
	writeField(w, "Version", info.Version)
	writeField(w, "Packaged on Checkmk Version", info.VersionPackaged)
	writeField(w, "Required Checkmk Version", info.VersionMinRequired)
	writeField(w, "Valid until Checkmk version", until)
	writeField(w, "Title", info.Title)
	writeField(w, "Author", info.Author)
	writeField(w, "Download-URL", info.DownloadURL)
	writeField(w, "Files", partCounts(s.manager, info))
	fmt.Fprintf(w, "Description:\n  %s\n", strings.ReplaceAll(info.Description, "\n", "\n  "))
}

func writeField(w io.Writer, label, value string) {
	fmt.Fprintf(w, "%-*s%s\n", showLabelWidth, label+":", value)
}
