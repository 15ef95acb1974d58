// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"
)

func newCreateCommand(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "create NAME",
		Short: "Create a package from the unpackaged files",
		Long: `Create a new package that claims every file in the package parts
that no other package owns.

The package record is written with placeholder details; edit it before
packing.

Examples:
  mkp create hello
  mkp create -v hello`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCreate(cmd.Context(), app, args[0])
		},
	}
}

func runCreate(ctx context.Context, app *App, name string) error {
	s, err := app.openSession(ctx)
	if err != nil {
		return app.reportError(err, nil)
	}

	if s.verbose {
		fmt.Fprintf(app.stdout, "Creating new package %s...\n", CmdStyle.Render(name))
	}
	info, err := s.manager.Create(name)
	if err != nil {
		return app.reportError(err, s)
	}

	if s.verbose {
		writeFilesByPart(app.stdout, s.manager.Files(info), "  ")
	}
	fmt.Fprintf(app.stdout, "%s New package %s created with %d files.\n",
		SuccessStyle.Render(successIcon), CmdStyle.Render(info.Name), info.NumFiles())
	fmt.Fprintf(app.stdout, "Please edit package details in %s\n",
		partTitleStyle.Render(filepath.Join(string(s.site.PackageDir), info.Name)))
	return nil
}
