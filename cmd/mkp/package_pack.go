// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/mkptool/mkp/pkg/types"
)

// stdoutOutput selects streaming the package file to stdout.
const stdoutOutput = "-"

func newPackCommand(app *App) *cobra.Command {
	var output string

	cmd := &cobra.Command{
		Use:   "pack NAME",
		Short: "Write the package file of an installed package",
		Long: `Write NAME-VERSION.mkp for the installed package NAME.

The file is written to the current directory unless --output names another
one. Packing into the site's own directories is refused. Use --output - to
write the package file to stdout.

Examples:
  mkp pack hello
  mkp pack hello --output /tmp
  mkp pack hello -o - > hello.mkp`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runPack(cmd.Context(), app, args[0], output)
		},
	}
	cmd.Flags().StringVarP(&output, "output", "o", "", "output directory for the package file (default: current directory)")
	return cmd
}

func runPack(ctx context.Context, app *App, name, output string) error {
	s, err := app.openSession(ctx)
	if err != nil {
		return app.reportError(err, nil)
	}

	if output == stdoutOutput {
		if err := s.manager.PackTo(name, app.stdout); err != nil {
			return app.reportError(err, s)
		}
		return nil
	}

	if s.verbose {
		fmt.Fprintf(app.stdout, "Packing %s...\n", CmdStyle.Render(name))
	}
	path, err := s.manager.Pack(name, types.FilesystemPath(output))
	if err != nil {
		return app.reportError(err, s)
	}

	fmt.Fprintf(app.stdout, "%s Successfully created %s\n", SuccessStyle.Render(successIcon), CmdStyle.Render(string(path)))
	if s.verbose {
		if fi, statErr := os.Stat(string(path)); statErr == nil {
			fmt.Fprintf(app.stdout, "%s Size: %s\n", infoIcon, formatFileSize(fi.Size()))
		}
	}
	return nil
}
