// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
)

func newRemoveCommand(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "remove NAME",
		Short: "Remove an installed package and its files",
		Long: `Delete every file the package NAME owns, then its record. Files that are
already gone are skipped.

Examples:
  mkp remove hello`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runRemove(cmd.Context(), app, args[0])
		},
	}
}

func newReleaseCommand(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "release NAME",
		Short: "Forget a package but keep its files",
		Long: `Delete the record of the package NAME. Its files stay in place and show up
in 'mkp find' again, ready to be claimed by a new package.

Examples:
  mkp release hello`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runRelease(cmd.Context(), app, args[0])
		},
	}
}

func runRemove(ctx context.Context, app *App, name string) error {
	s, err := app.openSession(ctx)
	if err != nil {
		return app.reportError(err, nil)
	}

	if s.verbose {
		fmt.Fprintf(app.stdout, "Removing package %s...\n", CmdStyle.Render(name))
	}
	info, err := s.manager.Remove(name)
	if err != nil {
		return app.reportError(err, s)
	}
	fmt.Fprintf(app.stdout, "%s Successfully removed package %s.\n", SuccessStyle.Render(successIcon), CmdStyle.Render(info.Name))
	return nil
}

func runRelease(ctx context.Context, app *App, name string) error {
	s, err := app.openSession(ctx)
	if err != nil {
		return app.reportError(err, nil)
	}

	info, err := s.manager.Release(name)
	if err != nil {
		return app.reportError(err, s)
	}
	fmt.Fprintf(app.stdout, "%s Released package %s, %d files are unpackaged now.\n",
		SuccessStyle.Render(successIcon), CmdStyle.Render(info.Name), info.NumFiles())
	return nil
}
